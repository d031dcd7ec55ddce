// Copyright 2025 Certen Protocol
//
// Settlement error kinds. Each carries the stable identifier strings
// an operator or the off-chain cranker keys remediation off of, so the
// kind itself (not just the Go error chain) has to survive past this
// package's boundary. The cranker treats AlreadySettled as a successful
// idempotent outcome and drops the match; every other kind is logged,
// counted as a failure, and dropped. Failed settlements are not retried.

package settlement

import "fmt"

// Kind is a stable settlement failure identifier.
type Kind string

const (
	KindBookInactive           Kind = "BookInactive"
	KindSettlementTTLExceeded  Kind = "SettlementTTLExceeded"
	KindInvalidLeaf            Kind = "InvalidLeaf"
	KindSameSide               Kind = "SameSide"
	KindZeroAmount             Kind = "ZeroAmount"
	KindPriceNotCrossed        Kind = "PriceNotCrossed"
	KindTickViolation          Kind = "TickViolation"
	KindOrderExpired           Kind = "OrderExpired"
	KindEpochNotFinalized      Kind = "EpochNotFinalized"
	KindInvalidMerkleProof     Kind = "InvalidMerkleProof"
	KindFillExceedsAmount      Kind = "FillExceedsAmount"
	KindChunkIdentityMismatch  Kind = "ChunkIdentityMismatch"
	KindAlreadySettled         Kind = "AlreadySettled"
	KindInsufficientVaultBal   Kind = "InsufficientVaultBalance"
	KindReceiptAlreadyExists   Kind = "ReceiptAlreadyExists"
)

// Error is a typed, fatal settlement failure. The settlement pipeline
// aborts on the first Error returned. An Error from checks 1–7 leaves
// all state unchanged; an Error from the vault-transfer or receipt step
// leaves both bitfield bits set and any transfers already made in place.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("settlement: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("settlement: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
