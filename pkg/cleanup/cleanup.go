// Copyright 2025 Certen Protocol
//
// Expiry and cleanup: reclaiming settlement receipts and finished
// epochs past their TTL, paying a fixed crank reward to whoever calls
// in. Grounded on pkg/batch/scheduler.go's ticker-loop shape, generalized
// from "close a batch on timeout" to "reclaim an expired account and pay
// the caller." The cleanup path never touches a live epoch's root or a
// live chunk's bits — it only closes accounts that have already served
// their purpose and sat past their grace period.

package cleanup

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/settlement"
)

// ReceiptLister enumerates settlement receipts eligible for reclamation.
// cmd/cranker wires this against pkg/ledgerstore; tests wire a fake.
type ReceiptLister interface {
	ListReceipts(orderBook chainid.ID) ([]*settlement.Receipt, error)
	DeleteReceipt(ctx context.Context, orderBook chainid.ID, makerOrderID, takerOrderID uint64) error
}

// EpochLister enumerates finalized epochs eligible for reclamation.
type EpochLister interface {
	ListFinalizedEpochs(orderBook chainid.ID) ([]epoch.Snapshot, error)
	DeleteEpoch(ctx context.Context, orderBook chainid.ID, epochIndex uint32) error
}

// RewardPayer pays the fixed crank reward to the caller reclaiming an
// expired account. Backed by the same VaultTransferer concern
// pkg/settlement uses, but addressed to an arbitrary caller rather than
// a maker/taker leg.
type RewardPayer interface {
	PayReward(ctx context.Context, orderBook chainid.ID, to chainid.ID, amount uint64) error
}

// Config configures a Worker.
type Config struct {
	OrderBook chainid.ID
	// Caller is paid CleanupReward for every account this worker
	// reclaims on its own ticker. A crank typically passes its own
	// signing identity — crank rewards accrue to whoever operates the
	// loop, the same way the spec describes "any caller" being whoever
	// happens to invoke cleanup.
	Caller             chainid.ID
	GracePeriodSeconds int64 // spec §4.J: now > expires_at + grace_period
	CleanupReward      uint64
	Interval           time.Duration
	Logger             *log.Logger

	// SettlementTTLSeconds mirrors the order book's settlement_ttl_seconds.
	// Settlement receipts already carry their own ExpiresAt (SettledAt +
	// this TTL, stamped by pkg/settlement at settle time); an epoch's
	// finalization record does not, so epoch reclamation derives its own
	// expires_at the same way: FinalizedAt + SettlementTTLSeconds.
	SettlementTTLSeconds int64
}

// DefaultConfig returns a conservative default: a one-hour grace period
// on top of each receipt/epoch's own TTL, checked every five minutes.
func DefaultConfig() *Config {
	return &Config{
		GracePeriodSeconds: 3600,
		Interval:           5 * time.Minute,
		Logger:             log.New(log.Writer(), "[Cleanup] ", log.LstdFlags),
	}
}

// Worker runs the periodic reclaim loop for one order book. It never
// mutates merkle roots or bitfield contents; it only closes accounts
// whose purpose — proving at-most-once settlement, or bounding a
// verifier's proof depth — has already been served.
type Worker struct {
	mu sync.Mutex

	cfg      *Config
	receipts ReceiptLister
	epochs   EpochLister
	rewards  RewardPayer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker builds a cleanup worker. A nil cfg uses DefaultConfig.
func NewWorker(receipts ReceiptLister, epochs EpochLister, rewards RewardPayer, cfg *Config) (*Worker, error) {
	if receipts == nil || epochs == nil || rewards == nil {
		return nil, ErrNilCollaborator
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Cleanup] ", log.LstdFlags)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Worker{cfg: cfg, receipts: receipts, epochs: epochs, rewards: rewards}, nil
}

// Start launches the background reclaim loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.stopCh != nil {
		w.mu.Unlock()
		return // already running
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop halts the reclaim loop and waits for it to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	stopCh := w.stopCh
	w.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-w.doneCh
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			n, err := w.Sweep(ctx, time.Now().Unix())
			if err != nil {
				w.cfg.Logger.Printf("sweep error: %v", err)
				continue
			}
			if n > 0 {
				w.cfg.Logger.Printf("reclaimed %d expired account(s), paid %d to %s", n, uint64(n)*w.cfg.CleanupReward, w.cfg.Caller)
			}
		}
	}
}

// Sweep runs one reclaim pass, paying Config.Caller for each reclaimed
// account. Exported so cmd/cranker and tests can drive it synchronously
// instead of waiting on the ticker.
func (w *Worker) Sweep(ctx context.Context, now int64) (reclaimed int, err error) {
	orderBook, caller := w.cfg.OrderBook, w.cfg.Caller

	receipts, err := w.receipts.ListReceipts(orderBook)
	if err != nil {
		return 0, err
	}
	for _, r := range receipts {
		if now <= r.ExpiresAt+w.cfg.GracePeriodSeconds {
			continue
		}
		if err := w.receipts.DeleteReceipt(ctx, orderBook, r.MakerOrderID, r.TakerOrderID); err != nil {
			return reclaimed, err
		}
		if err := w.rewards.PayReward(ctx, orderBook, caller, w.cfg.CleanupReward); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}

	epochs, err := w.epochs.ListFinalizedEpochs(orderBook)
	if err != nil {
		return reclaimed, err
	}
	for _, e := range epochs {
		if now <= e.FinalizedAt+w.cfg.SettlementTTLSeconds+w.cfg.GracePeriodSeconds {
			continue
		}
		if err := w.epochs.DeleteEpoch(ctx, orderBook, e.EpochIndex); err != nil {
			return reclaimed, err
		}
		if err := w.rewards.PayReward(ctx, orderBook, caller, w.cfg.CleanupReward); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}

	return reclaimed, nil
}

// ReclaimReceipt targets a single settlement receipt, so a caller can
// name exactly which account they are closing rather than waiting for
// the next sweep. pkg/apiserver's cleanup endpoint runs Sweep instead.
// Returns ErrCleanupBeforeExpiry if the receipt's grace period has not
// yet elapsed.
func (w *Worker) ReclaimReceipt(ctx context.Context, makerOrderID, takerOrderID uint64, caller chainid.ID, now int64) error {
	receipts, err := w.receipts.ListReceipts(w.cfg.OrderBook)
	if err != nil {
		return err
	}
	for _, r := range receipts {
		if r.MakerOrderID != makerOrderID || r.TakerOrderID != takerOrderID {
			continue
		}
		if now <= r.ExpiresAt+w.cfg.GracePeriodSeconds {
			return ErrCleanupBeforeExpiry
		}
		if err := w.receipts.DeleteReceipt(ctx, w.cfg.OrderBook, makerOrderID, takerOrderID); err != nil {
			return err
		}
		return w.rewards.PayReward(ctx, w.cfg.OrderBook, caller, w.cfg.CleanupReward)
	}
	return ErrReceiptNotFound
}
