// Copyright 2025 Certen Protocol

package bitfield

import (
	"testing"

	"github.com/certen/orderbook-core/pkg/chainid"
)

func TestChunk_SingleChunkClaim(t *testing.T) {
	// Scenario 1: registry capacity 2048, chunk 0 materialized.
	reg, err := NewRegistry(chainid.BytesToID([]byte("owner")), ChunkBits)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	if newly, err := reg.MaterializeChunk(0); err != nil || !newly {
		t.Fatalf("materialize chunk 0: newly=%v err=%v", newly, err)
	}

	chunk := NewChunk(reg.Owner, 0, 1700000000)

	newlySet, err := chunk.Set(42)
	if err != nil || !newlySet {
		t.Fatalf("set(42): newlySet=%v err=%v", newlySet, err)
	}
	if chunk.SetCount != 1 {
		t.Errorf("set_count mismatch: got %d, want 1", chunk.SetCount)
	}
	if isSet, _ := chunk.IsSet(42); !isSet {
		t.Error("bit 42 should be set")
	}

	newlySet, err = chunk.Set(42)
	if err != nil || newlySet {
		t.Fatalf("re-set(42): newlySet=%v err=%v, want false/nil", newlySet, err)
	}
	if chunk.SetCount != 1 {
		t.Errorf("set_count should be unchanged by re-set: got %d", chunk.SetCount)
	}

	wasSet, err := chunk.Unset(42)
	if err != nil || !wasSet {
		t.Fatalf("unset(42): wasSet=%v err=%v", wasSet, err)
	}
	if chunk.SetCount != 0 {
		t.Errorf("set_count mismatch after unset: got %d, want 0", chunk.SetCount)
	}
}

func TestChunk_SetCountMatchesPopcount(t *testing.T) {
	chunk := NewChunk(chainid.ID{}, 0, 0)
	indices := []uint32{0, 1, 7, 8, 500, 2047}
	for _, i := range indices {
		if _, err := chunk.Set(i); err != nil {
			t.Fatalf("set(%d): %v", i, err)
		}
	}
	if chunk.SetCount != uint16(len(indices)) {
		t.Errorf("set_count mismatch: got %d, want %d", chunk.SetCount, len(indices))
	}
	if chunk.Popcount() != chunk.SetCount {
		t.Errorf("popcount invariant violated: popcount=%d set_count=%d", chunk.Popcount(), chunk.SetCount)
	}
}

func TestChunk_SetUnsetRoundTrip(t *testing.T) {
	chunk := NewChunk(chainid.ID{}, 0, 0)
	before := chunk.SetCount

	if _, err := chunk.Set(1000); err != nil {
		t.Fatal(err)
	}
	if _, err := chunk.Unset(1000); err != nil {
		t.Fatal(err)
	}

	isSet, _ := chunk.IsSet(1000)
	if isSet {
		t.Error("bit should have returned to unset")
	}
	if chunk.SetCount != before {
		t.Errorf("set_count should return to prior value: got %d, want %d", chunk.SetCount, before)
	}
}

func TestChunk_OutOfRange(t *testing.T) {
	chunk := NewChunk(chainid.ID{}, 0, 0)

	if _, err := chunk.IsSet(ChunkBits); err != ErrBitIndexOutOfRange {
		t.Errorf("is_set(2048): expected ErrBitIndexOutOfRange, got %v", err)
	}
	if _, err := chunk.Set(ChunkBits); err != ErrBitIndexOutOfRange {
		t.Errorf("set(2048): expected ErrBitIndexOutOfRange, got %v", err)
	}
	if _, err := chunk.Unset(ChunkBits); err != ErrBitIndexOutOfRange {
		t.Errorf("unset(2048): expected ErrBitIndexOutOfRange, got %v", err)
	}
}

func TestChunk_FillRateBps(t *testing.T) {
	chunk := NewChunk(chainid.ID{}, 0, 0)
	for i := uint32(0); i < 1024; i++ {
		if _, err := chunk.Set(i); err != nil {
			t.Fatal(err)
		}
	}
	// 1024/2048 == 50% == 5000 bps
	if got := chunk.FillRateBps(); got != 5000 {
		t.Errorf("fill_rate_bps mismatch: got %d, want 5000", got)
	}
}

func TestRegistry_InvalidCapacity(t *testing.T) {
	cases := []uint64{0, 1, 2047, 2049, ChunkBits + 1}
	for _, capacity := range cases {
		if _, err := NewRegistry(chainid.ID{}, capacity); err != ErrInvalidCapacity {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got %v", capacity, err)
		}
	}
}

func TestRegistry_MaterializeChunk(t *testing.T) {
	reg, err := NewRegistry(chainid.ID{}, ChunkBits*4)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	if newly, err := reg.MaterializeChunk(2); err != nil || !newly {
		t.Fatalf("materialize chunk 2: newly=%v err=%v", newly, err)
	}
	if reg.ChunkCount != 3 {
		t.Errorf("chunk_count mismatch: got %d, want 3", reg.ChunkCount)
	}

	// Idempotent: re-materializing the same index is a no-op.
	if newly, err := reg.MaterializeChunk(2); err != nil || newly {
		t.Errorf("re-materialize chunk 2: newly=%v err=%v, want false/nil", newly, err)
	}

	if _, err := reg.MaterializeChunk(4); err != ErrChunkIndexOutOfRange {
		t.Errorf("materialize chunk 4 (out of range): got %v", err)
	}
}

func TestGlobalIndexRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 2047, 2048, 4096 + 13, 999999}
	for _, idx := range cases {
		c, l := GlobalIndex(idx)
		if got := Combine(c, l); got != idx {
			t.Errorf("round-trip failed for %d: chunk=%d local=%d combine=%d", idx, c, l, got)
		}
	}
}
