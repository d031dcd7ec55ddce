// Copyright 2025 Certen Protocol

package orderbook

import "github.com/certen/orderbook-core/pkg/orderleaf"

// Order is a live off-chain order: its canonical leaf plus the mutable
// remaining amount the matcher decrements as fills land. Leaf itself
// stays byte-identical to what was hashed into the epoch's tree —
// Remaining is bookkeeping that never gets re-encoded into that leaf.
type Order struct {
	Leaf      orderleaf.Leaf
	Remaining uint64
}

func (o *Order) filled() bool {
	return o.Remaining == 0
}
