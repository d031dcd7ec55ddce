// Copyright 2025 Certen Protocol

package apiserver

import "net/http"

// RegisterRoutes wires Handlers onto mux the way main.go's startValidator
// wires its own /api/... routes onto a single http.ServeMux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.HandleFunc("/api/book", h.HandleBookState)
	mux.HandleFunc("/api/epoch", h.HandleEpoch)
	mux.HandleFunc("/api/order-proof", h.HandleOrderProof)
	mux.HandleFunc("/api/order", h.HandleSubmitOrder)
	mux.HandleFunc("/api/admin/rotate-epoch", h.HandleRotateEpoch)
	mux.HandleFunc("/api/admin/finalize-epoch", h.HandleFinalizeEpoch)
	mux.HandleFunc("/api/admin/cleanup-sweep", h.HandleCleanupSweep)
}
