package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-engine/internal/order/application"
	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/dmehra2102/order-engine/pkg/idempotency"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyScope  = "create-order"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in application.CreateOrderInput) (application.OrderView, error)
	GetOrder(ctx context.Context, orderID int64) (application.OrderView, error)
	GetOrdersByClient(ctx context.Context, clientID int64) ([]application.OrderView, error)
	GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]application.OrderView, error)
	GetAllOrders(ctx context.Context) ([]application.OrderView, error)
	GetOrderTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (application.OrderView, error)
}

type IdempotencyStore interface {
	Key(scope, key string) string
	Claim(ctx context.Context, key string) ([]byte, error)
	Complete(ctx context.Context, key string, response []byte) error
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	service OrderService
	idem    IdempotencyStore
	tracer  trace.Tracer
}

// NewHandler builds the REST adapter. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(log *slog.Logger, service OrderService, idem IdempotencyStore) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/client/{clientId}", h.ordersByClient)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/total", h.orderTotal)
		r.Patch("/{id}/status", h.updateStatus)
	})
	return r
}

type createOrderReq struct {
	ClientID int64          `json:"client_id"`
	Items    []orderItemReq `json:"items"`
	Source   string         `json:"source"`
}

type orderItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type orderResp struct {
	ID          int64           `json:"id"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	CreatedAt   time.Time       `json:"created_at"`
	Status      string          `json:"status"`
	TotalAmount string          `json:"total_amount"`
	Source      string          `json:"source"`
	Items       []orderItemResp `json:"items"`
}

type orderItemResp struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type totalResp struct {
	OrderID     int64  `json:"order_id"`
	TotalAmount string `json:"total_amount"`
}

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid body")
		return
	}

	key, handled := h.claim(ctx, w, r)
	if handled {
		return
	}

	in := application.CreateOrderInput{ClientID: req.ClientID, Source: req.Source}
	for _, item := range req.Items {
		in.Items = append(in.Items, application.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	view, err := h.service.CreateOrder(ctx, in)
	if err != nil {
		h.release(ctx, key)
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.Int64("order.id", view.ID))

	body, err := json.Marshal(toOrderResp(view))
	if err != nil {
		h.release(ctx, key)
		h.fail(w, err)
		return
	}
	if key != "" {
		if err := h.idem.Complete(ctx, key, body); err != nil {
			h.log.Warn("idempotency complete failed", "key", key, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// claim returns the store key owned by this request, "" when idempotency does
// not apply. handled reports that a response was already written.
func (h *Handler) claim(ctx context.Context, w http.ResponseWriter, r *http.Request) (key string, handled bool) {
	raw := r.Header.Get(idempotencyHeader)
	if raw == "" || h.idem == nil {
		return "", false
	}
	key = h.idem.Key(idempotencyScope, raw)

	stored, err := h.idem.Claim(ctx, key)
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		h.writeError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is in progress")
		return "", true
	case err != nil:
		h.log.Warn("idempotency claim failed, continuing without it", "key", key, "err", err)
		return "", false
	case stored != nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(stored)
		return "", true
	}
	return key, false
}

func (h *Handler) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idem.Release(ctx, key); err != nil {
		h.log.Warn("idempotency release failed", "key", key, "err", err)
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.ListOrders")
	defer span.End()

	var (
		views []application.OrderView
		err   error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, parseErr := domain.ParseStatus(raw)
		if parseErr != nil {
			h.fail(w, parseErr)
			return
		}
		views, err = h.service.GetOrdersByStatus(ctx, status)
	} else {
		views, err = h.service.GetAllOrders(ctx)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResps(views))
}

func (h *Handler) ordersByClient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.OrdersByClient")
	defer span.End()

	clientID, ok := h.pathID(w, r, "clientId")
	if !ok {
		return
	}
	views, err := h.service.GetOrdersByClient(ctx, clientID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResps(views))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.GetOrder")
	defer span.End()

	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.service.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResp(view))
}

func (h *Handler) orderTotal(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.OrderTotal")
	defer span.End()

	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	total, err := h.service.GetOrderTotal(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, totalResp{OrderID: id, TotalAmount: total.StringFixed(2)})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.UpdateStatus")
	defer span.End()

	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	status, err := domain.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, err)
		return
	}
	view, err := h.service.UpdateStatus(ctx, id, status)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResp(view))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+param)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrClientNotFound):
		h.writeError(w, http.StatusNotFound, "CLIENT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		h.log.Error("request failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, errorResp{Error: msg, Code: code})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response failed", "err", err)
	}
}

func toOrderResps(views []application.OrderView) []orderResp {
	out := make([]orderResp, 0, len(views))
	for _, v := range views {
		out = append(out, toOrderResp(v))
	}
	return out
}

func toOrderResp(v application.OrderView) orderResp {
	items := make([]orderItemResp, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, orderItemResp{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}
	return orderResp{
		ID:          v.ID,
		ClientID:    v.ClientID,
		ClientName:  v.ClientName,
		CreatedAt:   v.CreatedAt,
		Status:      string(v.Status),
		TotalAmount: v.TotalAmount.StringFixed(2),
		Source:      v.Source,
		Items:       items,
	}
}
