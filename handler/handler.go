package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-ledger/metrics"
	"storefront-ledger/service"
	"storefront-ledger/store"
)

// Handler is the HTTP layer that talks to service.Service. It assumes the
// user_id in each request was already authenticated upstream.
type Handler struct {
	svc service.ServiceInterface
	log *zap.Logger
	met *metrics.ServerMetrics
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, log *zap.Logger, met *metrics.ServerMetrics) *Handler {
	return &Handler{svc: s, log: log, met: met}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.instrument)

	// Products
	r.HandleFunc("/products/list", h.ListProducts).Methods("GET")
	r.HandleFunc("/products/restock", h.RestockProduct).Methods("POST")
	r.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods("GET")

	// Cart
	r.HandleFunc("/cart/add", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/update", h.UpdateCart).Methods("POST")
	r.HandleFunc("/cart/remove", h.RemoveFromCart).Methods("POST")
	r.HandleFunc("/cart/clear", h.ClearCart).Methods("POST")
	r.HandleFunc("/cart/list", h.ListCart).Methods("GET")

	// Checkout
	r.HandleFunc("/checkout/order", h.Checkout).Methods("POST")

	// Ops
	r.Handle("/metrics", h.met.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
}

// --- request / response shapes ---
type restockReq struct {
	ProductID int64 `json:"product_id"`
	Amount    int   `json:"amount"`
}

type addCartReq struct {
	UserID    string              `json:"user_id"`
	ProductID int64               `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Name      string              `json:"name,omitempty"`
	Price     decimal.NullDecimal `json:"price,omitempty"`
}

type updateCartReq struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Action    string `json:"action"` // "increase" | "decrease"
}

type removeCartReq struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
}

type userReq struct {
	UserID string `json:"user_id"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps the ledger's error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrCartItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrCheckoutFailed):
		return http.StatusConflict
	case errors.Is(err, store.ErrTransactionAborted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err.Error())
}

// --- Handler ---

// GetProduct handles GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.svc.GetProduct(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListProducts handles GET /products/list
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// RestockProduct handles POST /products/restock
// body: { "product_id": 1, "amount": 5 }
func (h *Handler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.svc.RestockProduct(req.ProductID, req.Amount); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restocked"})
}

// AddToCart handles POST /cart/add
// body: { "user_id": "...", "product_id": 1, "quantity": 2, "name": "...", "price": "2.00" }
// name/price are optional snapshot hints; the product record is the fallback.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeErr(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.svc.AddItem(req.UserID, req.ProductID, req.Quantity, req.Name, req.Price); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// UpdateCart handles POST /cart/update
// body: { "user_id": "...", "product_id": 1, "action": "increase"|"decrease" }
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req updateCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeErr(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var err error
	switch req.Action {
	case "increase":
		err = h.svc.IncreaseQuantity(req.UserID, req.ProductID, 1)
	case "decrease":
		err = h.svc.DecreaseQuantity(req.UserID, req.ProductID, 1)
	default:
		writeErr(w, http.StatusBadRequest, "action must be increase or decrease")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveFromCart handles POST /cart/remove
// body: { "user_id": "...", "product_id": 1 }
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeErr(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.svc.RemoveItem(req.UserID, req.ProductID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ClearCart handles POST /cart/clear
// body: { "user_id": "..." }
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeErr(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.svc.ClearCart(req.UserID); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ListCart handles GET /cart/list?user_id=...
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErr(w, http.StatusBadRequest, "user_id required")
		return
	}
	items, total, err := h.svc.GetCart(userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "items": items, "total": total})
}

// Checkout handles POST /checkout/order
// body: { "user_id": "..." }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeErr(w, http.StatusBadRequest, "user_id required")
		return
	}
	ord, err := h.svc.Checkout(req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.met.OrdersPlaced.Inc()
	h.log.Info("order placed",
		zap.String("order_id", ord.ID),
		zap.String("user_id", ord.UserID),
		zap.String("total", ord.Total.String()),
		zap.Int("lines", len(ord.Items)))
	writeJSON(w, http.StatusCreated, ord)
}
