// Copyright 2025 Certen Protocol

package ledgerstore

import "errors"

// ErrNotFound is returned when a requested key is absent, replacing the
// bare nil/nil the teacher's original ledger store historically
// returned — see pkg/ledger/errors.go's own F.4 remediation note, which
// this store continues.
var ErrNotFound = errors.New("ledgerstore: record not found")
