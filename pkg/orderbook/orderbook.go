// Copyright 2025 Certen Protocol
//
// OrderBook is the on-chain-style configuration and rolling-stats record
// for one base/quote market. It carries no order data itself — that
// lives in Store — mirroring the split the teacher draws between a
// lightweight on-chain-style account and the heavier off-chain state it
// governs.

package orderbook

import "github.com/certen/orderbook-core/pkg/chainid"

// Stats is the order book's rolling aggregate, reported alongside its
// configuration by pkg/apiserver.
type Stats struct {
	TotalVolumeBase  uint64
	TotalVolumeQuote uint64
	TotalFeesPaid    uint64
}

// OrderBook is the market's static configuration plus accumulating
// counters updated as epochs rotate and settlements land.
type OrderBook struct {
	Authority  chainid.ID
	BaseMint   chainid.ID
	QuoteMint  chainid.ID
	BaseVault  chainid.ID
	QuoteVault chainid.ID
	FeeVault   chainid.ID

	CurrentEpoch     uint32
	TotalOrders      uint64
	TotalSettlements uint64

	TickSize             uint64
	FeeBps               uint16 // <= 10_000
	SettlementTTLSeconds int64

	// PriceScale resolves spec.md §9 Open Question 2: the installation-
	// specific scale factor connecting price to quote_volume
	// (quote_volume = fill_amount * fill_price / PriceScale). Must be a
	// positive power of ten, documented at order-book-creation time —
	// there is no implicit default.
	PriceScale uint64

	// CleanupReward is the fixed amount paid from the authority-funded
	// reserve to whoever calls pkg/cleanup after a receipt or epoch's
	// TTL has elapsed.
	CleanupReward   uint64
	TotalRewardsPaid uint64

	Active bool

	Stats Stats
}

// NewOrderBook validates and constructs an order book. feeBps must be
// <= 10_000; priceScale must be a positive power of ten.
func NewOrderBook(authority, baseMint, quoteMint, baseVault, quoteVault, feeVault chainid.ID, tickSize uint64, feeBps uint16, settlementTTLSeconds int64, priceScale uint64, cleanupReward uint64) (*OrderBook, error) {
	if feeBps > 10_000 {
		return nil, ErrFeeBpsTooLarge
	}
	if priceScale == 0 || !isPowerOfTen(priceScale) {
		return nil, ErrInvalidPriceScale
	}

	return &OrderBook{
		Authority:            authority,
		BaseMint:             baseMint,
		QuoteMint:            quoteMint,
		BaseVault:            baseVault,
		QuoteVault:           quoteVault,
		FeeVault:             feeVault,
		TickSize:             tickSize,
		FeeBps:               feeBps,
		SettlementTTLSeconds: settlementTTLSeconds,
		PriceScale:           priceScale,
		CleanupReward:        cleanupReward,
		Active:               true,
	}, nil
}

func isPowerOfTen(n uint64) bool {
	for n > 1 {
		if n%10 != 0 {
			return false
		}
		n /= 10
	}
	return n == 1
}
