// Copyright 2025 Certen Protocol

package orderbook

import "errors"

var (
	ErrNilStore          = errors.New("orderbook: store cannot be nil")
	ErrBookInactive      = errors.New("orderbook: order book is not active")
	ErrZeroAmount        = errors.New("orderbook: amount must be > 0")
	ErrOrderNotFound     = errors.New("orderbook: order not found")
	ErrEpochNotFound     = errors.New("orderbook: epoch not found")
	ErrNoCurrentEpoch    = errors.New("orderbook: no open epoch to rotate")
	ErrMaxOrdersExceeded = errors.New("orderbook: max_orders_per_epoch is 0 or negative")
	ErrFeeBpsTooLarge    = errors.New("orderbook: fee_bps must be <= 10000")
	ErrInvalidPriceScale = errors.New("orderbook: price_scale must be a positive power of ten")
)
