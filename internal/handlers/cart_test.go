package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Unit659z/Clover-studio/internal/services"
)

func newCartRouter(carts services.CartService) http.Handler {
	return NewRouter(WithCartRoutes(NewCartHandlers(nil, carts, &stubPricingEngine{}).Routes))
}

func TestCartHandlersGetCart(t *testing.T) {
	carts := &stubCartService{
		getCartFunc: func(_ context.Context, userID string) (services.CartView, error) {
			if userID != "user_client" {
				t.Fatalf("unexpected user %s", userID)
			}
			return services.CartView{
				Cart: services.Cart{ID: "crt_1", UserID: userID, Items: []services.CartItem{
					{ID: "itm_1", ServiceID: "svc_1", ServiceName: "Cleaning", ServicePrice: decimal.RequireFromString("100"), Quantity: 3},
				}},
				Summary: services.CartSummary{Total: decimal.RequireFromString("300"), PositionCount: 1, UnitCount: 3},
			}, nil
		},
	}

	resp := serve(t, newCartRouter(carts), http.MethodGet, "/api/v1/cart", "", clientIdentity)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload cartResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Total != "300.00" || payload.PositionCount != 1 || payload.UnitCount != 3 {
		t.Fatalf("unexpected summary %+v", payload)
	}
	if len(payload.Items) != 1 || payload.Items[0].LineTotal != "300.00" || payload.Items[0].UnitPrice != "100.00" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	resp := serve(t, newCartRouter(&stubCartService{}), http.MethodGet, "/api/v1/cart", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	var captured services.AddCartItemCommand
	created := true
	carts := &stubCartService{
		addItemFunc: func(_ context.Context, cmd services.AddCartItemCommand) (services.CartItemResult, error) {
			captured = cmd
			return services.CartItemResult{
				Item:    services.CartItem{ID: "itm_1", ServiceID: cmd.ServiceID, ServicePrice: decimal.RequireFromString("50"), Quantity: cmd.Quantity},
				Created: created,
			}, nil
		},
	}
	router := newCartRouter(carts)

	resp := serve(t, router, http.MethodPost, "/api/v1/cart/items", `{"service_id":"svc_1"}`, clientIdentity)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Quantity != 1 || captured.UserID != "user_client" {
		t.Fatalf("expected default quantity 1, got %+v", captured)
	}

	created = false
	resp = serve(t, router, http.MethodPost, "/api/v1/cart/items", `{"service_id":"svc_1","quantity":2}`, clientIdentity)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for merged line, got %d", resp.Code)
	}
	var payload addCartItemResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Created || payload.Item.LineTotal != "100.00" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCartHandlersAddItemPassesExplicitZero(t *testing.T) {
	carts := &stubCartService{
		addItemFunc: func(_ context.Context, cmd services.AddCartItemCommand) (services.CartItemResult, error) {
			if cmd.Quantity != 0 {
				t.Fatalf("expected explicit zero to reach the cart, got %d", cmd.Quantity)
			}
			return services.CartItemResult{}, services.ErrInvalidQuantity
		},
	}
	resp := serve(t, newCartRouter(carts), http.MethodPost, "/api/v1/cart/items", `{"service_id":"svc_1","quantity":0}`, clientIdentity)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCartHandlersUpdateRemoveClear(t *testing.T) {
	var setCmd services.SetCartItemQuantityCommand
	var removed services.RemoveCartItemCommand
	cleared := ""
	carts := &stubCartService{
		setQuantityFunc: func(_ context.Context, cmd services.SetCartItemQuantityCommand) (services.CartItem, error) {
			setCmd = cmd
			return services.CartItem{ID: cmd.ItemID, Quantity: cmd.Quantity, ServicePrice: decimal.RequireFromString("10")}, nil
		},
		removeItemFunc: func(_ context.Context, cmd services.RemoveCartItemCommand) error {
			removed = cmd
			return nil
		},
		clearFunc: func(_ context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}
	router := newCartRouter(carts)

	if resp := serve(t, router, http.MethodPatch, "/api/v1/cart/items/itm_1", `{"quantity":4}`, clientIdentity); resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.Code)
	}
	if setCmd.ItemID != "itm_1" || setCmd.Quantity != 4 {
		t.Fatalf("unexpected set command %+v", setCmd)
	}
	if resp := serve(t, router, http.MethodDelete, "/api/v1/cart/items/itm_1", "", clientIdentity); resp.Code != http.StatusNoContent {
		t.Fatalf("delete item: expected 204, got %d", resp.Code)
	}
	if removed.ItemID != "itm_1" || removed.UserID != "user_client" {
		t.Fatalf("unexpected remove command %+v", removed)
	}
	if resp := serve(t, router, http.MethodDelete, "/api/v1/cart/items", "", clientIdentity); resp.Code != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", resp.Code)
	}
	if cleared != "user_client" {
		t.Fatalf("expected cart cleared for user_client, got %q", cleared)
	}
}
