// Copyright 2025 Certen Protocol
//
// Bitfield chunk: a fixed 256-byte page of 2,048 addressable flags, with
// a cached popcount maintained across every mutation rather than
// recomputed from scratch — the registry and the settlement verifier
// both depend on reading set_count in O(1).

package bitfield

import (
	"sync"

	"github.com/certen/orderbook-core/pkg/chainid"
)

const (
	// ChunkBits is the number of addressable flags per chunk.
	ChunkBits = 2048
	// ChunkBytes is the on-disk/on-wire size of a chunk's bit page.
	ChunkBytes = ChunkBits / 8
)

// Chunk is a single bitfield page: registry backref, chunk_index, the
// 256-byte bit page itself, and its cached popcount.
type Chunk struct {
	mu sync.RWMutex

	Registry   chainid.ID
	ChunkIndex uint32
	Bits       [ChunkBytes]byte
	SetCount   uint16
	CreatedAt  int64
}

// NewChunk returns a freshly materialized, all-zero chunk.
func NewChunk(registry chainid.ID, chunkIndex uint32, createdAt int64) *Chunk {
	return &Chunk{
		Registry:   registry,
		ChunkIndex: chunkIndex,
		CreatedAt:  createdAt,
	}
}

func (c *Chunk) byteAndMask(i uint32) (byteIdx int, mask byte) {
	return int(i / 8), 1 << (i % 8)
}

// IsSet reports whether bit i is set. i must be < ChunkBits.
func (c *Chunk) IsSet(i uint32) (bool, error) {
	if i >= ChunkBits {
		return false, ErrBitIndexOutOfRange
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	byteIdx, mask := c.byteAndMask(i)
	return c.Bits[byteIdx]&mask != 0, nil
}

// Set flips bit i on if it was previously unset, incrementing SetCount,
// and reports whether a transition occurred. Setting an already-set bit
// is a no-op that reports newlySet=false (callers surface this as the
// informational AlreadySet condition, not an error).
func (c *Chunk) Set(i uint32) (newlySet bool, err error) {
	if i >= ChunkBits {
		return false, ErrBitIndexOutOfRange
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byteIdx, mask := c.byteAndMask(i)
	if c.Bits[byteIdx]&mask != 0 {
		return false, nil
	}
	c.Bits[byteIdx] |= mask
	c.SetCount++
	return true, nil
}

// Unset flips bit i off if it was previously set, decrementing SetCount,
// and reports whether a transition occurred (AlreadyUnset if not).
func (c *Chunk) Unset(i uint32) (wasSet bool, err error) {
	if i >= ChunkBits {
		return false, ErrBitIndexOutOfRange
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byteIdx, mask := c.byteAndMask(i)
	if c.Bits[byteIdx]&mask == 0 {
		return false, nil
	}
	c.Bits[byteIdx] &^= mask
	c.SetCount--
	return true, nil
}

// FillRateBps returns the chunk's fill rate in basis points:
// floor(set_count * 10_000 / 2048).
func (c *Chunk) FillRateBps() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint32(c.SetCount) * 10_000 / ChunkBits
}

// Popcount recomputes the true popcount from the bit page. Used only by
// tests to assert the invariant set_count == popcount(bits); production
// code must never use this as a substitute for the cached SetCount.
func (c *Chunk) Popcount() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count uint16
	for _, b := range c.Bits {
		count += uint16(popcountByte(b))
	}
	return count
}

func popcountByte(b byte) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}
