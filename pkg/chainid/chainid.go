// Copyright 2025 Certen Protocol
//
// Package chainid models the 32-byte on-chain identities used
// throughout the order-book core: owners, makers/takers, mints, and
// vaults. ID is an alias of go-ethereum's common.Hash rather than a
// fresh fixed-array type, matching how the rest of this codebase's
// lineage (pkg/anchor/event_watcher.go, pkg/ethereum/*.go) represents
// 32-byte on-chain values — hex codec and String() come for free
// instead of being reimplemented. There is no 20-byte identity type.

package chainid

import (
	"github.com/ethereum/go-ethereum/common"
)

// ID is a 32-byte identity: an owner pubkey, a maker/taker account, a
// mint, or a vault. Account-based runtimes vary in address width; this
// core standardizes on 32 bytes per spec.md's order-leaf layout.
type ID = common.Hash

// BytesToID truncates/pads b into an ID the way common.BytesToHash does.
func BytesToID(b []byte) ID {
	return common.BytesToHash(b)
}

// HexToID parses a hex string (with or without 0x) into an ID.
func HexToID(s string) ID {
	return common.HexToHash(s)
}

// Seed is the 64-bit discriminator that, together with an owner ID,
// derives a merkle commitment's identity (spec.md §6: merkle <-
// ("merkle_root", owner, seed)).
type Seed = uint64

// DeriveKey produces the deterministic byte key spec.md §6 describes for
// a tuple of string and binary components — e.g.
// DeriveKey("merkle_root", owner[:], seedLE) — used as the KV key in
// pkg/ledgerstore. It is not a cryptographic hash: distinct tuples must
// map to distinct keys, which a simple length-prefixed concatenation
// already guarantees, and the on-chain analogue (a PDA) is out of scope
// for this core (spec.md §1 lists account-rent/derivation mechanics
// under "account-based blockchain runtime", not this module).
func DeriveKey(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		var lenPrefix [4]byte
		n := len(p)
		lenPrefix[0] = byte(n)
		lenPrefix[1] = byte(n >> 8)
		lenPrefix[2] = byte(n >> 16)
		lenPrefix[3] = byte(n >> 24)
		out = append(out, lenPrefix[:]...)
		out = append(out, p...)
	}
	return out
}
