// Copyright 2025 Certen Protocol
//
// The cranker's three background loops: match, epoch rotation, and
// settlement retry. Each is a ticker-driven goroutine selecting on
// ctx.Done(), the same shape as pkg/batch/scheduler.go's run(ctx) and
// pkg/cleanup.Worker.run.

package main

import (
	"context"
	"log"
	"time"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/ledgerstore"
	"github.com/certen/orderbook-core/pkg/obsmetrics"
	"github.com/certen/orderbook-core/pkg/orderbook"
)

// epochRecorder mirrors epoch lifecycle transitions to the audit log.
type epochRecorder interface {
	RecordEpoch(ctx context.Context, orderBookID chainid.ID, snap epoch.Snapshot) error
}

// matchLoop snapshots both books every matchInterval and feeds fresh
// fills into the settlement engine's pending queue.
func matchLoop(ctx context.Context, store *orderbook.Store, settler *settlementEngine, metrics *obsmetrics.Metrics, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			results := store.Match(t.Unix())
			if len(results) > 0 {
				logger.Printf("match loop produced %d fill(s)", len(results))
				settler.Enqueue(results)
				if metrics != nil {
					metrics.MatchesExecuted.Add(float64(len(results)))
				}
			}
			if metrics != nil {
				bids, asks := store.Depth()
				metrics.BookDepthBid.Set(float64(bids))
				metrics.BookDepthAsk.Set(float64(asks))
			}
		}
	}
}

// epochLoop rotates the current epoch on its own cadence (independent of
// the max_orders_per_epoch rotation AddOrder triggers automatically),
// finalizes whatever it just rotated, and persists both to
// pkg/ledgerstore.
func epochLoop(ctx context.Context, store *orderbook.Store, ledger *ledgerstore.Store, audit epochRecorder, obID chainid.ID, interval time.Duration, metrics *obsmetrics.Metrics, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			now := t.Unix()
			rotated, _, err := store.RotateEpoch(now)
			if err != nil {
				logger.Printf("epoch rotation failed: %v", err)
				continue
			}
			if rotated == nil {
				continue
			}
			snap := rotated.Snapshot()
			if !snap.RootSubmitted {
				continue // nothing new rotated this tick
			}
			if err := store.FinalizeEpoch(snap.EpochIndex, now); err != nil {
				logger.Printf("epoch %d finalize failed: %v", snap.EpochIndex, err)
			} else if metrics != nil {
				metrics.EpochsFinalized.Inc()
			}
			if metrics != nil {
				metrics.EpochRotations.Inc()
			}
			finalSnap, _ := store.Epoch(snap.EpochIndex)
			finalSnapshot := finalSnap.Snapshot()
			if err := ledger.PutEpoch(obID, finalSnapshot); err != nil {
				logger.Printf("persist epoch %d failed: %v", snap.EpochIndex, err)
			}
			if audit != nil {
				if err := audit.RecordEpoch(ctx, obID, finalSnapshot); err != nil {
					logger.Printf("audit record-epoch %d failed: %v", snap.EpochIndex, err)
				}
			}
		}
	}
}

// settlementLoop retries the pending-match queue every settlementInterval.
func settlementLoop(ctx context.Context, settler *settlementEngine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			settler.Tick(ctx, t.Unix())
		}
	}
}
