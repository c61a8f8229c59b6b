package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-chi/chi/v5"

	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// OrderHandlers exposes order booking, lookup and the lifecycle transitions.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	guard  func(http.Handler) http.Handler
}

// NewOrderHandlers constructs the order handlers. Creation is unguarded until WithIdempotency is set.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{authn: authn, orders: orders}
}

// WithIdempotency guards order creation with the given middleware.
func (h *OrderHandlers) WithIdempotency(mw func(http.Handler) http.Handler) *OrderHandlers {
	h.guard = mw
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listOrders)
	guarded(r, h.guard).Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:process", h.transition(services.OrderService.MarkProcessing))
	r.Post("/{orderID}:complete", h.transition(services.OrderService.MarkCompleted))
	r.Post("/{orderID}:cancel", h.transition(services.OrderService.Cancel))
}

// StatusRoutes registers the read-only /order-statuses catalogue.
func (h *OrderHandlers) StatusRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listStatuses)
}

type orderPayload struct {
	ID          string  `json:"id"`
	ClientID    *string `json:"client_id"`
	ExecutorID  *string `json:"executor_id"`
	ServiceID   *string `json:"service_id"`
	Status      string  `json:"status"`
	ScheduledAt string  `json:"scheduled_at"`
	CompletedAt *string `json:"completed_at"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type createOrderRequest struct {
	ServiceID   string      `json:"service_id" validate:"required"`
	ExecutorID  null.String `json:"executor_id" validate:"omitempty,min=1"`
	ScheduledAt null.Time   `json:"scheduled_at"`
}

type orderStatusPayload struct {
	ID    int    `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

type orderStatusListResponse struct {
	Items []orderStatusPayload `json:"items"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		ServiceID:  strings.TrimSpace(query.Get("service_id")),
		ExecutorID: strings.TrimSpace(query.Get("executor_id")),
		Pagination: pageOf(params),
	}
	for _, raw := range query["status"] {
		for _, value := range strings.Split(raw, ",") {
			if value = strings.ToLower(strings.TrimSpace(value)); value != "" {
				filter.Statuses = append(filter.Statuses, services.OrderStatus(value))
			}
		}
	}

	page, err := h.orders.ListOrders(ctx, actor, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		Actor:       actor,
		ServiceID:   req.ServiceID,
		ExecutorID:  req.ExecutorID.Ptr(),
		ScheduledAt: req.ScheduledAt.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type transitionFunc func(services.OrderService, context.Context, services.OrderTransitionCommand) (services.Order, error)

func (h *OrderHandlers) transition(apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.orders == nil {
			writeUnavailable(ctx, w, "order")
			return
		}
		actor, ok := actorFromRequest(ctx, w)
		if !ok {
			return
		}
		order, err := apply(h.orders, ctx, services.OrderTransitionCommand{Actor: actor, OrderID: chi.URLParam(r, "orderID")})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
	}
}

func (h *OrderHandlers) listStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	records, err := h.orders.ListStatuses(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]orderStatusPayload, 0, len(records))
	for _, record := range records {
		items = append(items, orderStatusPayload{ID: record.ID, Code: string(record.Code), Label: record.Label})
	}
	httpx.WriteJSON(w, http.StatusOK, orderStatusListResponse{Items: items})
}

func buildOrderPayload(order services.Order) orderPayload {
	return orderPayload{
		ID:          order.ID,
		ClientID:    order.ClientID,
		ExecutorID:  order.ExecutorID,
		ServiceID:   order.ServiceID,
		Status:      string(order.Status),
		ScheduledAt: formatTime(order.ScheduledAt),
		CompletedAt: formatTimePtr(order.CompletedAt),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}
}
