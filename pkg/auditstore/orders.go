// Copyright 2025 Certen Protocol

package auditstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

// OrderRepository records every order ever inserted into an order book,
// independent of whether it is still live in pkg/orderbook.Store.
type OrderRepository struct {
	client *Client
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(client *Client) *OrderRepository {
	return &OrderRepository{client: client}
}

// RecordOrder inserts one audit row for an accepted order. Idempotent on
// (order_book_id, order_id): a retry of the same insert is a no-op.
// requestID is the HTTP-layer correlation ID (pkg/apiserver) stamped on
// the row so a duplicate submission can be traced back to its request.
func (r *OrderRepository) RecordOrder(ctx context.Context, orderBookID chainid.ID, requestID uuid.UUID, leaf orderleaf.Leaf) error {
	query := `
		INSERT INTO orders (
			order_book_id, order_id, request_id, maker, side, price, amount,
			epoch_index, order_index, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_book_id, order_id) DO NOTHING`

	_, err := r.client.db.ExecContext(ctx, query,
		orderBookID.Bytes(), leaf.OrderID, requestID.String(), leaf.Maker.Bytes(), uint8(leaf.Side),
		leaf.Price, leaf.Amount, leaf.EpochIndex, leaf.OrderIndex, leaf.CreatedAt, leaf.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// OrderRecord is the audit-log projection of one order row.
type OrderRecord struct {
	OrderID    uint64
	Maker      chainid.ID
	Side       orderleaf.Side
	Price      uint64
	Amount     uint64
	EpochIndex uint32
	OrderIndex uint32
	CreatedAt  int64
	ExpiresAt  int64
}

// GetOrder returns the audit row for one order.
func (r *OrderRepository) GetOrder(ctx context.Context, orderBookID chainid.ID, orderID uint64) (*OrderRecord, error) {
	query := `
		SELECT order_id, maker, side, price, amount, epoch_index, order_index, created_at, expires_at
		FROM orders WHERE order_book_id = $1 AND order_id = $2`

	var rec OrderRecord
	var maker []byte
	var side uint8
	err := r.client.db.QueryRowContext(ctx, query, orderBookID.Bytes(), orderID).Scan(
		&rec.OrderID, &maker, &side, &rec.Price, &rec.Amount, &rec.EpochIndex, &rec.OrderIndex, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	rec.Maker = chainid.BytesToID(maker)
	rec.Side = orderleaf.Side(side)
	return &rec, nil
}

// ListOrdersByEpoch returns every order recorded against one epoch, in
// order_index order.
func (r *OrderRepository) ListOrdersByEpoch(ctx context.Context, orderBookID chainid.ID, epochIndex uint32) ([]*OrderRecord, error) {
	query := `
		SELECT order_id, maker, side, price, amount, epoch_index, order_index, created_at, expires_at
		FROM orders WHERE order_book_id = $1 AND epoch_index = $2 ORDER BY order_index ASC`

	rows, err := r.client.db.QueryContext(ctx, query, orderBookID.Bytes(), epochIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*OrderRecord
	for rows.Next() {
		var rec OrderRecord
		var maker []byte
		var side uint8
		if err := rows.Scan(&rec.OrderID, &maker, &side, &rec.Price, &rec.Amount, &rec.EpochIndex, &rec.OrderIndex, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		rec.Maker = chainid.BytesToID(maker)
		rec.Side = orderleaf.Side(side)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
