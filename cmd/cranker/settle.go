// Copyright 2025 Certen Protocol
//
// Settlement pipeline wiring: matches produced by pkg/orderbook.Match
// cannot settle until both legs' epochs are finalized, so pending
// matches sit in a queue and are retried every settlement tick, the same
// "keep retrying until the precondition clears" shape the teacher's
// pkg/batch.ConfirmationTracker uses while waiting for on-chain
// confirmations.

package main

import (
	"context"
	"log"

	"github.com/certen/orderbook-core/pkg/bitfield"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/ledgerstore"
	"github.com/certen/orderbook-core/pkg/obsmetrics"
	"github.com/certen/orderbook-core/pkg/orderbook"
	"github.com/certen/orderbook-core/pkg/settlement"
)

// receiptRecorder mirrors settlement receipts to the audit log. Narrow
// on purpose so settlementEngine does not need to know whether an audit
// database is configured at all.
type receiptRecorder interface {
	RecordReceipt(ctx context.Context, receipt *settlement.Receipt) error
}

// settlementEngine owns the pending-match queue for one order book.
type settlementEngine struct {
	store   *orderbook.Store
	ledger  *ledgerstore.Store
	vault   *loggingVault
	metrics *obsmetrics.Metrics
	logger  *log.Logger
	audit   receiptRecorder

	obID    chainid.ID
	pending []orderbook.MatchResult
}

func newSettlementEngine(store *orderbook.Store, ledger *ledgerstore.Store, vault *loggingVault, metrics *obsmetrics.Metrics, audit receiptRecorder, obID chainid.ID, logger *log.Logger) *settlementEngine {
	if logger == nil {
		logger = log.New(log.Writer(), "[Settlement] ", log.LstdFlags)
	}
	return &settlementEngine{store: store, ledger: ledger, vault: vault, metrics: metrics, audit: audit, obID: obID, logger: logger}
}

// Enqueue adds freshly matched pairs to the pending queue.
func (e *settlementEngine) Enqueue(results []orderbook.MatchResult) {
	e.pending = append(e.pending, results...)
}

// Tick attempts to settle every pending match whose legs are both
// finalized, leaving the rest queued for the next tick.
func (e *settlementEngine) Tick(ctx context.Context, now int64) {
	if len(e.pending) == 0 {
		return
	}

	still := e.pending[:0]
	for _, m := range e.pending {
		ok, err := e.trySettle(ctx, m, now)
		if err != nil && kindOf(err) == string(settlement.KindAlreadySettled) {
			// Idempotent outcome: the pair already settled, nothing left to do.
			e.logger.Printf("already settled maker=%d taker=%d; dropping", m.Maker.Leaf.OrderID, m.Taker.Leaf.OrderID)
			continue
		}
		if err != nil {
			e.logger.Printf("settlement failed for maker=%d taker=%d: %v", m.Maker.Leaf.OrderID, m.Taker.Leaf.OrderID, err)
			if e.metrics != nil {
				e.metrics.SettlementsFailed.WithLabelValues(kindOf(err)).Inc()
			}
			continue // fatal checks never succeed on retry; drop it
		}
		if !ok {
			still = append(still, m) // epochs not finalized yet, retry later
			continue
		}
		if e.metrics != nil {
			e.metrics.SettlementsOK.Inc()
		}
	}
	e.pending = still
}

func kindOf(err error) string {
	if se, ok := err.(*settlement.Error); ok {
		return string(se.Kind)
	}
	return "unknown"
}

// trySettle returns (false, nil) when the match cannot yet be attempted
// because one of its legs' epochs has not finalized.
func (e *settlementEngine) trySettle(ctx context.Context, m orderbook.MatchResult, now int64) (bool, error) {
	makerEpoch, ok := e.store.Epoch(m.Maker.Leaf.EpochIndex)
	if !ok {
		return false, nil
	}
	takerEpoch, ok := e.store.Epoch(m.Taker.Leaf.EpochIndex)
	if !ok {
		return false, nil
	}
	makerSnap, takerSnap := makerEpoch.Snapshot(), takerEpoch.Snapshot()
	if !makerSnap.Finalized || !takerSnap.Finalized {
		return false, nil
	}

	makerProof, err := e.store.ProofForOrder(m.Maker.Leaf.OrderID)
	if err != nil {
		return true, err
	}
	takerProof, err := e.store.ProofForOrder(m.Taker.Leaf.OrderID)
	if err != nil {
		return true, err
	}

	book := e.store.OrderBook()

	makerChunk, err := e.ensureChunk(book, m.Maker.Leaf.EpochIndex, m.Maker.Leaf.OrderIndex)
	if err != nil {
		return true, err
	}
	takerChunk := makerChunk
	if !sameChunk(m.Maker.Leaf.EpochIndex, m.Maker.Leaf.OrderIndex, m.Taker.Leaf.EpochIndex, m.Taker.Leaf.OrderIndex) {
		takerChunk, err = e.ensureChunk(book, m.Taker.Leaf.EpochIndex, m.Taker.Leaf.OrderIndex)
		if err != nil {
			return true, err
		}
	}

	makerLeaf := m.Maker.Leaf.Encode()
	takerLeaf := m.Taker.Leaf.Encode()

	req := &settlement.Request{
		OrderBookID:    e.obID,
		OrderBook:      book,
		MakerEpoch:     makerSnap,
		TakerEpoch:     takerSnap,
		MakerLeafBytes: makerLeaf[:],
		TakerLeafBytes: takerLeaf[:],
		MakerProof:     makerProof,
		TakerProof:     takerProof,
		MakerChunk:     makerChunk,
		TakerChunk:     takerChunk,
		MakerAccount:   m.Maker.Leaf.Maker,
		TakerAccount:   m.Taker.Leaf.Maker,
		FillAmount:     m.FillAmount,
		FillPrice:      m.FillPrice,
		Now:            now,
		Vault:          e.vault,
		Receipts:       e.ledger,
	}

	result, err := settlement.Verify(ctx, req)
	if err != nil {
		return true, err
	}

	if err := e.ledger.PutChunk(makerChunk); err != nil {
		return true, err
	}
	if takerChunk != makerChunk {
		if err := e.ledger.PutChunk(takerChunk); err != nil {
			return true, err
		}
	}
	e.logger.Printf("settled maker=%d taker=%d fill=%d price=%d", result.Receipt.MakerOrderID, result.Receipt.TakerOrderID, result.Receipt.FillAmount, result.Receipt.FillPrice)

	if e.audit != nil {
		if err := e.audit.RecordReceipt(ctx, result.Receipt); err != nil {
			e.logger.Printf("audit record-receipt failed for maker=%d taker=%d: %v", result.Receipt.MakerOrderID, result.Receipt.TakerOrderID, err)
		}
	}
	return true, nil
}

// sameChunk reports whether the maker and taker legs address the same
// (registry, chunk_index) pair — the normal case, since the match loop
// pairs orders resting in the same live book and one epoch maps to one
// chunk. trySettle must not call ensureChunk twice in that case: GetChunk
// has no cache, so two independent calls would reconstruct two distinct
// *bitfield.Chunk objects from the same KV key, each bit set on its own
// copy, and the second PutChunk would silently overwrite the first bit.
func sameChunk(makerEpoch, makerOrderIndex, takerEpoch, takerOrderIndex uint32) bool {
	if makerEpoch != takerEpoch {
		return false
	}
	makerChunkIdx, _ := bitfield.GlobalIndex(uint64(makerOrderIndex))
	takerChunkIdx, _ := bitfield.GlobalIndex(uint64(takerOrderIndex))
	return makerChunkIdx == takerChunkIdx
}

// ensureChunk materializes (creating if necessary) the settlement
// bitfield chunk covering orderIndex within epochIndex's settlement
// registry, one chunk per epoch since max_orders_per_epoch aligns with
// bitfield.ChunkBits.
func (e *settlementEngine) ensureChunk(book *orderbook.OrderBook, epochIndex uint32, orderIndex uint32) (*bitfield.Chunk, error) {
	owner := settlement.SettlementRegistryOwner(e.obID, epochIndex)
	chunkIdx, _ := bitfield.GlobalIndex(uint64(orderIndex))

	reg, err := e.ledger.GetRegistry(owner)
	if err == ledgerstore.ErrNotFound {
		reg, err = bitfield.NewRegistry(owner, bitfield.ChunkBits)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if !reg.IsMaterialized(chunkIdx) {
		if _, err := reg.MaterializeChunk(chunkIdx); err != nil {
			return nil, err
		}
	}
	if err := e.ledger.PutRegistry(reg); err != nil {
		return nil, err
	}

	chunk, err := e.ledger.GetChunk(owner, chunkIdx)
	if err == ledgerstore.ErrNotFound {
		return bitfield.NewChunk(owner, chunkIdx, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}
