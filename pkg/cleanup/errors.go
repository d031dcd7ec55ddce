// Copyright 2025 Certen Protocol

package cleanup

import "errors"

var (
	ErrNilCollaborator     = errors.New("cleanup: receipts, epochs, and rewards collaborators must be non-nil")
	ErrCleanupBeforeExpiry = errors.New("cleanup: account has not yet passed expires_at + grace_period")
	ErrReceiptNotFound     = errors.New("cleanup: receipt not found for order book")
)
