// Copyright 2025 Certen Protocol

package auditstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
)

// EpochRepository records epoch lifecycle transitions for historical
// reporting, independent of pkg/ledgerstore's live epoch-index directory.
type EpochRepository struct {
	client *Client
}

// NewEpochRepository creates a new epoch repository.
func NewEpochRepository(client *Client) *EpochRepository {
	return &EpochRepository{client: client}
}

// RecordEpoch upserts the current state of one epoch snapshot.
func (r *EpochRepository) RecordEpoch(ctx context.Context, orderBookID chainid.ID, snap epoch.Snapshot) error {
	var root []byte
	if snap.RootSubmitted {
		root = snap.Root[:]
	}
	var finalizedAt *int64
	if snap.Finalized {
		finalizedAt = &snap.FinalizedAt
	}

	query := `
		INSERT INTO epochs (order_book_id, epoch_index, state, root, order_count, opened_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_book_id, epoch_index) DO UPDATE SET
			state = EXCLUDED.state,
			root = EXCLUDED.root,
			order_count = EXCLUDED.order_count,
			finalized_at = EXCLUDED.finalized_at`

	_, err := r.client.db.ExecContext(ctx, query,
		orderBookID.Bytes(), snap.EpochIndex, epochState(snap), root, snap.OrderCount, snap.OpenedAt, finalizedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record epoch: %w", err)
	}
	return nil
}

func epochState(snap epoch.Snapshot) epoch.State {
	switch {
	case snap.Finalized:
		return epoch.StateFinalized
	case snap.RootSubmitted:
		return epoch.StateRootPending
	default:
		return epoch.StateOpen
	}
}

// GetEpoch returns the recorded snapshot for one epoch.
func (r *EpochRepository) GetEpoch(ctx context.Context, orderBookID chainid.ID, epochIndex uint32) (*epoch.Snapshot, error) {
	query := `
		SELECT epoch_index, state, root, order_count, opened_at, finalized_at
		FROM epochs WHERE order_book_id = $1 AND epoch_index = $2`

	var snap epoch.Snapshot
	snap.OrderBook = orderBookID
	var state uint8
	var root []byte
	var finalizedAt sql.NullInt64

	err := r.client.db.QueryRowContext(ctx, query, orderBookID.Bytes(), epochIndex).Scan(
		&snap.EpochIndex, &state, &root, &snap.OrderCount, &snap.OpenedAt, &finalizedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEpochNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get epoch: %w", err)
	}

	if epoch.State(state) >= epoch.StateRootPending {
		snap.RootSubmitted = true
		copy(snap.Root[:], root)
	}
	if epoch.State(state) == epoch.StateFinalized {
		snap.Finalized = true
		snap.FinalizedAt = finalizedAt.Int64
	}
	return &snap, nil
}
