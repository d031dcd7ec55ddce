// Copyright 2025 Certen Protocol

package orderleaf

import "errors"

var (
	ErrShortBuffer = errors.New("orderleaf: buffer shorter than the canonical 81-byte encoding")
	ErrInvalidSide = errors.New("orderleaf: side byte must be 0 (bid) or 1 (ask)")
)
