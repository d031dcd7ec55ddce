// Copyright 2025 Certen Protocol
//
// Sentinel errors for repository operations, following the teacher's
// F.4 remediation convention: explicit errors instead of nil, nil returns.

package auditstore

import "errors"

var (
	ErrOrderNotFound   = errors.New("auditstore: order not found")
	ErrEpochNotFound   = errors.New("auditstore: epoch not found")
	ErrReceiptNotFound = errors.New("auditstore: receipt not found")
)
