// Copyright 2025 Certen Protocol

package merkle

import "errors"

var (
	ErrCommitmentFinalized = errors.New("merkle: commitment is already finalized")
	ErrMerkleNotFinalized  = errors.New("merkle: commitment is not yet finalized")
)
