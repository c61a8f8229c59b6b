package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// CartHandlers exposes the authenticated user's cart.
type CartHandlers struct {
	authn   *auth.Authenticator
	carts   services.CartService
	pricing services.PricingEngine
	guard   func(http.Handler) http.Handler
}

func NewCartHandlers(authn *auth.Authenticator, carts services.CartService, pricing services.PricingEngine) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts, pricing: pricing}
}

// WithIdempotency guards item creation with the given middleware. It runs after authentication
// so keys are scoped to the caller.
func (h *CartHandlers) WithIdempotency(mw func(http.Handler) http.Handler) *CartHandlers {
	h.guard = mw
	return h
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	guarded(r, h.guard).Post("/items", h.addItem)
	r.Delete("/items", h.clearCart)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
}

type cartItemPayload struct {
	ID          string `json:"id"`
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
	AddedAt     string `json:"added_at"`
}

type cartResponse struct {
	ID            string            `json:"id"`
	Items         []cartItemPayload `json:"items"`
	Total         string            `json:"total"`
	PositionCount int               `json:"position_count"`
	UnitCount     int               `json:"unit_count"`
	UpdatedAt     string            `json:"updated_at"`
}

type addCartItemRequest struct {
	ServiceID string `json:"service_id" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

type addCartItemResponse struct {
	Item    cartItemPayload `json:"item"`
	Created bool            `json:"created"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.pricing == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	view, err := h.carts.GetCart(ctx, actor.UserID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]cartItemPayload, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, h.buildItemPayload(item))
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{
		ID:            view.Cart.ID,
		Items:         items,
		Total:         view.Summary.Total.StringFixed(2),
		PositionCount: view.Summary.PositionCount,
		UnitCount:     view.Summary.UnitCount,
		UpdatedAt:     formatTime(view.Cart.UpdatedAt),
	})
}

// addItem defaults the quantity to one; an explicit zero or negative value is rejected by the cart.
func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.pricing == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req addCartItemRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    actor.UserID,
		ServiceID: req.ServiceID,
		Quantity:  quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, addCartItemResponse{Item: h.buildItemPayload(result.Item), Created: result.Created})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.pricing == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	item, err := h.carts.SetItemQuantity(ctx, services.SetCartItemQuantityCommand{
		UserID:   actor.UserID,
		ItemID:   chi.URLParam(r, "itemID"),
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildItemPayload(item))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{UserID: actor.UserID, ItemID: chi.URLParam(r, "itemID")})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.carts.Clear(ctx, actor.UserID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) buildItemPayload(item services.CartItem) cartItemPayload {
	return cartItemPayload{
		ID:          item.ID,
		ServiceID:   item.ServiceID,
		ServiceName: item.ServiceName,
		UnitPrice:   item.ServicePrice.StringFixed(2),
		Quantity:    item.Quantity,
		LineTotal:   h.pricing.LineItemCost(item).StringFixed(2),
		AddedAt:     formatTime(item.AddedAt),
	}
}
