// Copyright 2025 Certen Protocol

package epoch

import "errors"

var (
	ErrEpochNotOpen          = errors.New("epoch: submit_epoch_root requires state Open")
	ErrRootAlreadySubmitted  = errors.New("epoch: root already submitted for this epoch")
	ErrEpochNotRootPending   = errors.New("epoch: finalize_epoch requires state RootPending")
	ErrEpochAlreadyFinalized = errors.New("epoch: epoch is already finalized")
	ErrEpochNotFinalized     = errors.New("epoch: epoch is not yet finalized")
	ErrOrderCountExceeds     = errors.New("epoch: order count exceeds 2048 * max_chunks")
	ErrOutOfSequence         = errors.New("epoch: epoch_index must be the prior epoch_index + 1")
)
