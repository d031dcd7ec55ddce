// Copyright 2025 Certen Protocol
//
// HTTP status/ops API for the off-chain cranker. Mirrors the teacher's
// handler-struct-with-injected-dependencies shape from
// pkg/server/batch_handlers.go: a single Handlers struct, constructed
// with NewHandlers, whose methods RegisterRoutes registers as
// http.HandlerFunc against a mux in cmd/cranker.

package apiserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/cleanup"
	"github.com/certen/orderbook-core/pkg/obsmetrics"
	"github.com/certen/orderbook-core/pkg/orderbook"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

// OrderRecorder is the audit-log sink for newly accepted orders. requestID
// plays the same correlation role as BatchID in the teacher's
// pkg/batch.Collector: one value threaded from the HTTP request through
// the audit row so a support engineer can join API logs to the audit
// mirror. It is a server-generated request_id (pkg/apiserver), not the
// caller-visible order_id.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, orderBookID chainid.ID, requestID uuid.UUID, leaf orderleaf.Leaf) error
}

// Handlers serves read-only book/epoch state, order submission, and
// admin operations (epoch rotation, finalization, cleanup reclaim) over
// HTTP.
type Handlers struct {
	store      *orderbook.Store
	cleanup    *cleanup.Worker
	metrics    *obsmetrics.Metrics
	audit      OrderRecorder
	adminToken string
	logger     *log.Logger
}

// NewHandlers constructs a Handlers bound to one order book's store and
// its cleanup worker. metrics and audit are both optional (nil-safe).
// adminToken gates the admin-only endpoints (rotate-epoch,
// finalize-epoch, cleanup-sweep); with an empty adminToken every admin
// call is answered 503, and cmd/cranker's config.Validate() refuses an
// empty token.
func NewHandlers(store *orderbook.Store, cw *cleanup.Worker, metrics *obsmetrics.Metrics, audit OrderRecorder, adminToken string, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[APIServer] ", log.LstdFlags)
	}
	return &Handlers{store: store, cleanup: cw, metrics: metrics, audit: audit, adminToken: adminToken, logger: logger}
}

// requireAdmin enforces spec.md §4.G's "caller = authority" / "caller =
// authorized cranker" guard on the admin surface. Bearer-token match
// uses subtle.ConstantTimeCompare, the same timing-safe comparison
// pkg/merkle.Verify uses for proof/root equality. Returns false (and
// has already written the response) when the caller is not authorized.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.adminToken == "" {
		writeJSONError(w, "Unauthorized: admin token not configured", http.StatusServiceUnavailable)
		return false
	}
	const prefix = "Bearer "
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, prefix) {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	supplied := strings.TrimPrefix(authz, prefix)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminToken)) != 1 {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// HandleHealth responds 200 OK once the store is wired. Used as the
// liveness/readiness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.store == nil {
		writeJSONError(w, "order store not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bookStateResponse is the JSON shape for GET /api/book.
type bookStateResponse struct {
	OrderBookID  string `json:"order_book_id"`
	Active       bool   `json:"active"`
	CurrentEpoch uint32 `json:"current_epoch"`
	TotalOrders  uint64 `json:"total_orders"`
	BidDepth     int    `json:"bid_depth"`
	AskDepth     int    `json:"ask_depth"`
}

// HandleBookState handles GET /api/book.
func (h *Handlers) HandleBookState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	book := h.store.OrderBook()
	bids, asks := h.store.Depth()
	writeJSON(w, http.StatusOK, bookStateResponse{
		OrderBookID:  book.Authority.Hex(),
		Active:       book.Active,
		CurrentEpoch: book.CurrentEpoch,
		TotalOrders:  book.TotalOrders,
		BidDepth:     bids,
		AskDepth:     asks,
	})
}

// HandleEpoch handles GET /api/epoch?index=N.
func (h *Handlers) HandleEpoch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := parseUint32Query(r, "index")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, ok := h.store.Epoch(index)
	if !ok {
		writeJSONError(w, "epoch not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// HandleOrderProof handles GET /api/order-proof?order_id=N.
func (h *Handlers) HandleOrderProof(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderID, err := parseUint64Query(r, "order_id")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	proof, err := h.store.ProofForOrder(orderID)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

// submitOrderRequest is the JSON body for POST /api/order. Side is the
// wire string form of orderleaf.Side ("bid" or "ask") rather than its
// raw byte so callers never have to learn the 0/1 enum encoding — the
// 81-byte canonical leaf (spec.md §3) is still what gets hashed, this
// is just the request shape at the API boundary.
type submitOrderRequest struct {
	Maker     string `json:"maker"`      // hex-encoded 32-byte maker ID
	Side      string `json:"side"`       // "bid" or "ask"
	Price     uint64 `json:"price"`
	Amount    uint64 `json:"amount"`
	ExpiresAt int64  `json:"expires_at"` // 0 = never
}

type submitOrderResponse struct {
	OrderID    uint64 `json:"order_id"`
	EpochIndex uint32 `json:"epoch_index"`
	OrderIndex uint32 `json:"order_index"`
	RequestID  string `json:"request_id"`
}

// HandleSubmitOrder handles POST /api/order: spec.md §4.H's add_order,
// exposed over HTTP since order submission is the one mutation the
// off-chain store allows from outside the cranker's own loops.
func (h *Handlers) HandleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var side orderleaf.Side
	switch req.Side {
	case "bid":
		side = orderleaf.SideBid
	case "ask":
		side = orderleaf.SideAsk
	default:
		writeJSONError(w, `side must be "bid" or "ask"`, http.StatusBadRequest)
		return
	}

	maker := chainid.HexToID(req.Maker)
	now := time.Now().Unix()
	requestID := uuid.New()

	order, err := h.store.AddOrder(maker, side, req.Price, req.Amount, now, req.ExpiresAt)
	if err != nil {
		h.logger.Printf("submit-order failed request_id=%s: %v", requestID, err)
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersAccepted.WithLabelValues(side.String()).Inc()
	}
	if h.audit != nil {
		if err := h.audit.RecordOrder(r.Context(), h.store.OrderBook().Authority, requestID, order.Leaf); err != nil {
			h.logger.Printf("audit record-order failed for order_id=%d request_id=%s: %v", order.Leaf.OrderID, requestID, err)
		}
	}

	writeJSON(w, http.StatusCreated, submitOrderResponse{
		OrderID:    order.Leaf.OrderID,
		EpochIndex: order.Leaf.EpochIndex,
		OrderIndex: order.Leaf.OrderIndex,
		RequestID:  requestID.String(),
	})
}

// HandleRotateEpoch handles POST /api/admin/rotate-epoch. Operator-triggered;
// the epoch loop in cmd/cranker normally does this on its own ticker.
func (h *Handlers) HandleRotateEpoch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	e, tree, err := h.store.RotateEpoch(time.Now().Unix())
	if err != nil {
		h.logger.Printf("rotate-epoch failed: %v", err)
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	resp := map[string]interface{}{"epoch": e.Snapshot()}
	if tree != nil {
		resp["root"] = chainid.BytesToID(tree.Root()[:]).Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleFinalizeEpoch handles POST /api/admin/finalize-epoch?index=N.
func (h *Handlers) HandleFinalizeEpoch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	index, err := parseUint32Query(r, "index")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.FinalizeEpoch(index, time.Now().Unix()); err != nil {
		h.logger.Printf("finalize-epoch %d failed: %v", index, err)
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// HandleCleanupSweep handles POST /api/admin/cleanup-sweep. Triggers an
// out-of-cycle cleanup.Worker.Sweep instead of waiting for its ticker.
func (h *Handlers) HandleCleanupSweep(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	if h.cleanup == nil {
		writeJSONError(w, "cleanup worker not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	reclaimed, err := h.cleanup.Sweep(ctx, time.Now().Unix())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reclaimed": reclaimed})
}

func parseUint32Query(r *http.Request, name string) (uint32, error) {
	v := r.URL.Query().Get(name)
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func parseUint64Query(r *http.Request, name string) (uint64, error) {
	v := r.URL.Query().Get(name)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
