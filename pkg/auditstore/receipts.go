// Copyright 2025 Certen Protocol

package auditstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/settlement"
)

// ReceiptRepository records every settlement receipt pkg/settlement.Verify
// produces, independent of pkg/ledgerstore's bitfield-backed at-most-once
// enforcement. This is an append-mostly audit trail: RecordReceipt is
// idempotent, and MarkReclaimed only annotates a row, never deletes it,
// so the history survives pkg/cleanup reclaiming the ledger-side copy.
type ReceiptRepository struct {
	client *Client
}

// NewReceiptRepository creates a new receipt repository.
func NewReceiptRepository(client *Client) *ReceiptRepository {
	return &ReceiptRepository{client: client}
}

// RecordReceipt inserts one audit row for a completed settlement.
func (r *ReceiptRepository) RecordReceipt(ctx context.Context, receipt *settlement.Receipt) error {
	query := `
		INSERT INTO receipts (
			order_book_id, maker_order_id, taker_order_id,
			fill_amount, fill_price, fee_amount, settled_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_book_id, maker_order_id, taker_order_id) DO NOTHING`

	_, err := r.client.db.ExecContext(ctx, query,
		receipt.OrderBook.Bytes(), receipt.MakerOrderID, receipt.TakerOrderID,
		receipt.FillAmount, receipt.FillPrice, receipt.FeeAmount, receipt.SettledAt, receipt.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record receipt: %w", err)
	}
	return nil
}

// GetReceipt returns the audit row for one maker/taker match.
func (r *ReceiptRepository) GetReceipt(ctx context.Context, orderBookID chainid.ID, makerOrderID, takerOrderID uint64) (*settlement.Receipt, error) {
	query := `
		SELECT maker_order_id, taker_order_id, fill_amount, fill_price, fee_amount, settled_at, expires_at
		FROM receipts WHERE order_book_id = $1 AND maker_order_id = $2 AND taker_order_id = $3`

	receipt := &settlement.Receipt{OrderBook: orderBookID}
	err := r.client.db.QueryRowContext(ctx, query, orderBookID.Bytes(), makerOrderID, takerOrderID).Scan(
		&receipt.MakerOrderID, &receipt.TakerOrderID, &receipt.FillAmount, &receipt.FillPrice, &receipt.FeeAmount, &receipt.SettledAt, &receipt.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// MarkReclaimed annotates a receipt row with the time pkg/cleanup reclaimed
// its ledger-side copy. The audit row itself is retained.
func (r *ReceiptRepository) MarkReclaimed(ctx context.Context, orderBookID chainid.ID, makerOrderID, takerOrderID uint64, reclaimedAt int64) error {
	query := `
		UPDATE receipts SET reclaimed_at = $1
		WHERE order_book_id = $2 AND maker_order_id = $3 AND taker_order_id = $4`

	res, err := r.client.db.ExecContext(ctx, query, reclaimedAt, orderBookID.Bytes(), makerOrderID, takerOrderID)
	if err != nil {
		return fmt.Errorf("failed to mark receipt reclaimed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// ListReceiptsByOrderBook returns every recorded receipt for one order
// book, most recently settled first.
func (r *ReceiptRepository) ListReceiptsByOrderBook(ctx context.Context, orderBookID chainid.ID, limit int) ([]*settlement.Receipt, error) {
	query := `
		SELECT maker_order_id, taker_order_id, fill_amount, fill_price, fee_amount, settled_at, expires_at
		FROM receipts WHERE order_book_id = $1 ORDER BY settled_at DESC LIMIT $2`

	rows, err := r.client.db.QueryContext(ctx, query, orderBookID.Bytes(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var out []*settlement.Receipt
	for rows.Next() {
		receipt := &settlement.Receipt{OrderBook: orderBookID}
		if err := rows.Scan(&receipt.MakerOrderID, &receipt.TakerOrderID, &receipt.FillAmount, &receipt.FillPrice, &receipt.FeeAmount, &receipt.SettledAt, &receipt.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}
