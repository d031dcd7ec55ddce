// Copyright 2025 Certen Protocol
//
// Bitfield registry: the ownership/capacity directory over a family of
// chunks. The registry never holds bit data itself — only chunk_count
// and which chunk_index values have been materialized — so it can be
// kept tiny and read on every settlement without touching the (much
// larger) chunk pages themselves.

package bitfield

import (
	"sync"

	"github.com/certen/orderbook-core/pkg/chainid"
)

// Registry is the capacity guard and chunk directory for one owner.
type Registry struct {
	mu sync.RWMutex

	Owner         chainid.ID
	TotalCapacity uint64 // bits; must be a positive multiple of ChunkBits
	ChunkCount    uint32 // number of chunk_index values materialized so far

	materialized map[uint32]bool
}

// NewRegistry creates a registry directory. total_capacity must be a
// positive multiple of ChunkBits.
func NewRegistry(owner chainid.ID, totalCapacity uint64) (*Registry, error) {
	if totalCapacity == 0 || totalCapacity%ChunkBits != 0 {
		return nil, ErrInvalidCapacity
	}
	return &Registry{
		Owner:         owner,
		TotalCapacity: totalCapacity,
		materialized:  make(map[uint32]bool),
	}, nil
}

// CapacityChunks is the number of chunk slots this registry can address.
func (r *Registry) CapacityChunks() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint32(r.TotalCapacity / ChunkBits)
}

// MaterializeChunk records chunk_index as materialized, idempotently:
// calling it twice for the same index is a no-op the second time
// (newlyMaterialized=false) rather than an error, since the deterministic
// derivation of a chunk's identity from (registry, chunk_index) already
// makes duplicate chunks impossible — this call only updates the
// registry's own bookkeeping to match.
func (r *Registry) MaterializeChunk(chunkIndex uint32) (newlyMaterialized bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := uint32(r.TotalCapacity / ChunkBits)
	if chunkIndex >= capacity {
		return false, ErrChunkIndexOutOfRange
	}
	if r.materialized[chunkIndex] {
		return false, nil
	}

	r.materialized[chunkIndex] = true
	if chunkIndex+1 > r.ChunkCount {
		r.ChunkCount = chunkIndex + 1
	}
	return true, nil
}

// IsMaterialized reports whether chunk_index has already been
// materialized in this registry.
func (r *Registry) IsMaterialized(chunkIndex uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.materialized[chunkIndex]
}

// GlobalIndex splits a flat index into its (chunk_index, local_index)
// pair and the inverse. Settlement uses this to derive the chunk a given
// order_index lives in (spec: chunk_index = order_index / 2048,
// local_index = order_index mod 2048).
func GlobalIndex(index uint64) (chunkIndex uint32, localIndex uint32) {
	return uint32(index / ChunkBits), uint32(index % ChunkBits)
}

// Combine is the inverse of GlobalIndex.
func Combine(chunkIndex, localIndex uint32) uint64 {
	return uint64(chunkIndex)*ChunkBits + uint64(localIndex)
}
