// Copyright 2025 Certen Protocol
//
// External collaborators settlement depends on but does not implement.
// Token custody and durable receipt storage are deliberately out of this
// package's scope (see SPEC_FULL.md's non-goals) — cmd/cranker wires an
// in-memory VaultTransferer (loggingVault) and a concrete ReceiptStore
// backed by pkg/ledgerstore; tests wire fakes.

package settlement

import (
	"context"

	"github.com/certen/orderbook-core/pkg/chainid"
)

// VaultTransferer moves funds between vault and owner accounts. Verify
// calls it up to three times per settlement (base leg, quote leg, and a
// fee leg when the fee is non-zero); Verify itself does not roll back a
// transfer that went through when a later one fails.
type VaultTransferer interface {
	Transfer(ctx context.Context, from, to, mint chainid.ID, amount uint64) error
}

// ReceiptStore records settlement receipts and answers duplicate-settlement
// queries. PutReceipt is expected to be called only after the bitfield
// check-and-set has already proven this (maker_order_id, taker_order_id)
// pair has never settled; the store's own uniqueness constraint (if any)
// is a second line of defense, not the primary one.
type ReceiptStore interface {
	HasReceipt(orderBook chainid.ID, makerOrderID, takerOrderID uint64) (bool, error)
	PutReceipt(ctx context.Context, r *Receipt) error
}
