// Copyright 2025 Certen Protocol

package bitfield

import "errors"

var (
	ErrInvalidCapacity      = errors.New("bitfield: total_capacity must be a positive multiple of 2048")
	ErrChunkIndexOutOfRange = errors.New("bitfield: chunk_index out of range")
	ErrBitIndexOutOfRange   = errors.New("bitfield: bit index out of range [0, 2048)")
)
