// Copyright 2025 Certen Protocol

package settlement

import "github.com/certen/orderbook-core/pkg/chainid"

// Receipt is the durable record of one completed settlement. Its
// (OrderBook, MakerOrderID, TakerOrderID) triple is the identity the
// bitfield check-and-set already enforces as at-most-once; the receipt
// itself exists so pkg/apiserver and pkg/auditstore have something to
// serve back without re-deriving it from the bitfield and both proofs.
type Receipt struct {
	OrderBook    chainid.ID
	MakerOrderID uint64
	TakerOrderID uint64
	MakerEpoch   uint32
	TakerEpoch   uint32
	FillAmount   uint64
	FillPrice    uint64
	QuoteVolume  uint64
	FeeAmount    uint64
	SettledAt    int64
	// ExpiresAt is SettledAt + the order book's settlement_ttl_seconds
	// (spec.md §3: "expires_at = created_at + settlement_ttl"). pkg/cleanup
	// reclaims the receipt once now > ExpiresAt + its own grace period.
	ExpiresAt int64
}
