// Copyright 2025 Certen Protocol
//
// Canonical order-leaf encoding. This layout is the ABI: every producer
// (the off-chain cranker) and every consumer (the settlement verifier)
// must implement it bit-for-bit identically, because the merkle leaf
// hash is computed directly over these 81 bytes. Re-ordering fields,
// switching endianness, or varying the side enum's width breaks
// cross-implementation verification silently, not loudly, so this file
// is the single place that layout is allowed to live.

package orderleaf

import (
	"encoding/binary"
	"fmt"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/hashmix"
)

// Side is the enum occupying exactly one byte in the encoding.
type Side uint8

const (
	SideBid Side = 0
	SideAsk Side = 1
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// EncodedLen is the fixed size of a canonical order leaf in bytes:
// maker(32) + order_id(8) + side(1) + price(8) + amount(8) +
// epoch_index(4) + order_index(4) + created_at(8) + expires_at(8).
const EncodedLen = 32 + 8 + 1 + 8 + 8 + 4 + 4 + 8 + 8

// Leaf is the decoded form of one order's canonical bytes.
type Leaf struct {
	Maker      chainid.ID
	OrderID    uint64
	Side       Side
	Price      uint64
	Amount     uint64
	EpochIndex uint32
	OrderIndex uint32
	CreatedAt  int64
	ExpiresAt  int64 // 0 means never
}

// Encode produces the canonical 81-byte little-endian layout.
func (l Leaf) Encode() [EncodedLen]byte {
	var out [EncodedLen]byte
	off := 0

	copy(out[off:off+32], l.Maker[:])
	off += 32

	binary.LittleEndian.PutUint64(out[off:off+8], l.OrderID)
	off += 8

	out[off] = byte(l.Side)
	off++

	binary.LittleEndian.PutUint64(out[off:off+8], l.Price)
	off += 8

	binary.LittleEndian.PutUint64(out[off:off+8], l.Amount)
	off += 8

	binary.LittleEndian.PutUint32(out[off:off+4], l.EpochIndex)
	off += 4

	binary.LittleEndian.PutUint32(out[off:off+4], l.OrderIndex)
	off += 4

	binary.LittleEndian.PutUint64(out[off:off+8], uint64(l.CreatedAt))
	off += 8

	binary.LittleEndian.PutUint64(out[off:off+8], uint64(l.ExpiresAt))
	off += 8

	return out
}

// Decode parses the canonical encoding back into a Leaf. It rejects any
// buffer that is not exactly EncodedLen bytes' worth of the expected
// layout — the encoding is the single source of truth, so there is no
// lenient or backward-compatible parse path.
func Decode(b []byte) (Leaf, error) {
	if len(b) < EncodedLen {
		return Leaf{}, ErrShortBuffer
	}
	if len(b) > EncodedLen {
		return Leaf{}, fmt.Errorf("orderleaf: buffer is %d bytes, want exactly %d", len(b), EncodedLen)
	}

	var l Leaf
	off := 0

	l.Maker = chainid.BytesToID(b[off : off+32])
	off += 32

	l.OrderID = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	side := Side(b[off])
	if side != SideBid && side != SideAsk {
		return Leaf{}, ErrInvalidSide
	}
	l.Side = side
	off++

	l.Price = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	l.Amount = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	l.EpochIndex = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	l.OrderIndex = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	l.CreatedAt = int64(binary.LittleEndian.Uint64(b[off : off+8]))
	off += 8

	l.ExpiresAt = int64(binary.LittleEndian.Uint64(b[off : off+8]))

	return l, nil
}

// Hash computes the leaf's domain-separated merkle hash, H(0x00 || bytes).
func (l Leaf) Hash(mixer hashmix.Mixer) [32]byte {
	encoded := l.Encode()
	buf := make([]byte, 0, EncodedLen+1)
	buf = append(buf, hashmix.LeafPrefix)
	buf = append(buf, encoded[:]...)
	return mixer.Sum(buf)
}

// Expired reports whether the leaf has expired as of now. expires_at==0
// means the order never expires.
func (l Leaf) Expired(now int64) bool {
	return l.ExpiresAt > 0 && now > l.ExpiresAt
}

// GlobalIndex returns the flat, tree-wide index this leaf occupies
// within its epoch. Epochs never span more than one tree, so
// OrderIndex is already the leaf's index inside that epoch's tree.
func (l Leaf) GlobalIndex() uint32 {
	return l.OrderIndex
}
