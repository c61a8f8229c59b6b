package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/services"
)

func newReviewRouter(reviews services.ReviewService) http.Handler {
	return NewRouter(WithReviewRoutes(NewReviewHandlers(nil, reviews).Routes))
}

func TestReviewHandlersCreate(t *testing.T) {
	var captured services.CreateReviewCommand
	reviews := &stubReviewService{
		createFunc: func(_ context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			captured = cmd
			return services.Review{ID: "rev_1", UserID: cmd.UserID, ExecutorID: cmd.ExecutorID, OrderID: cmd.OrderID, Rating: cmd.Rating, Comment: "Great", CreatedAt: handlerNow, UpdatedAt: handlerNow}, nil
		},
	}

	resp := serve(t, newReviewRouter(reviews), http.MethodPost, "/api/v1/reviews", `{"executor_id":"exe_1","order_id":"ord_1","rating":5,"comment":"Great"}`, clientIdentity)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.UserID != "user_client" || captured.OrderID == nil || *captured.OrderID != "ord_1" || captured.Rating != 5 {
		t.Fatalf("unexpected command %+v", captured)
	}
	var payload reviewPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ID != "rev_1" || payload.CreatedAt != formatTime(handlerNow) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReviewHandlersCreateErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrSelfReview, http.StatusBadRequest},
		{services.ErrInvalidRating, http.StatusBadRequest},
		{services.ErrDuplicateReview, http.StatusConflict},
		{fmt.Errorf("%w: executor exe_9", services.ErrNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		reviews := &stubReviewService{
			createFunc: func(context.Context, services.CreateReviewCommand) (services.Review, error) {
				return services.Review{}, tc.err
			},
		}
		resp := serve(t, newReviewRouter(reviews), http.MethodPost, "/api/v1/reviews", `{"executor_id":"exe_1","rating":3}`, clientIdentity)
		if resp.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, resp.Code)
		}
	}
}

func TestReviewHandlersEligibility(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		eligible bool
		reason   string
	}{
		{"eligible", nil, http.StatusOK, true, ""},
		{"self", services.ErrSelfReview, http.StatusOK, false, "self_review"},
		{"not owner", services.ErrOrderNotOwned, http.StatusOK, false, "order_not_owned"},
		{"mismatch", services.ErrExecutorMismatch, http.StatusOK, false, "executor_mismatch"},
		{"not completed", services.ErrOrderNotCompleted, http.StatusOK, false, "order_not_completed"},
		{"duplicate", services.ErrDuplicateReview, http.StatusOK, false, "duplicate_review"},
		{"unknown order", services.ErrNotFound, http.StatusNotFound, false, ""},
	}
	for _, tc := range cases {
		var captured services.ReviewEligibilityQuery
		reviews := &stubReviewService{
			canReviewFunc: func(_ context.Context, query services.ReviewEligibilityQuery) error {
				captured = query
				return tc.err
			},
		}
		resp := serve(t, newReviewRouter(reviews), http.MethodGet, "/api/v1/reviews/eligibility?executor_id=exe_1&order_id=ord_1", "", clientIdentity)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.Code)
		}
		if captured.UserID != "user_client" || captured.ExecutorID != "exe_1" || captured.OrderID == nil || *captured.OrderID != "ord_1" {
			t.Fatalf("%s: unexpected query %+v", tc.name, captured)
		}
		if tc.status != http.StatusOK {
			continue
		}
		var payload eligibilityResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if payload.Eligible != tc.eligible || payload.Reason != tc.reason {
			t.Fatalf("%s: unexpected payload %+v", tc.name, payload)
		}
	}
}

func TestReviewHandlersListIsPublic(t *testing.T) {
	var captured services.ReviewListFilter
	reviews := &stubReviewService{
		listFunc: func(_ context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error) {
			captured = filter
			return domain.CursorPage[services.Review]{Items: []services.Review{{ID: "rev_1", Rating: 4}}}, nil
		},
	}
	router := newReviewRouter(reviews)

	resp := serve(t, router, http.MethodGet, "/api/v1/reviews?executor_id=exe_1&rating=4", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if captured.ExecutorID != "exe_1" || captured.Rating == nil || *captured.Rating != 4 {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if resp := serve(t, router, http.MethodGet, "/api/v1/reviews?rating=high", "", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric rating, got %d", resp.Code)
	}
}

func TestReviewHandlersUpdateAndDelete(t *testing.T) {
	var updated services.UpdateReviewCommand
	var deletedBy services.Actor
	reviews := &stubReviewService{
		updateFunc: func(_ context.Context, cmd services.UpdateReviewCommand) (services.Review, error) {
			updated = cmd
			return services.Review{ID: cmd.ReviewID, Rating: *cmd.Rating}, nil
		},
		deleteFunc: func(_ context.Context, actor services.Actor, reviewID string) error {
			deletedBy = actor
			if reviewID != "rev_1" {
				return services.ErrNotFound
			}
			return nil
		},
	}
	router := newReviewRouter(reviews)

	resp := serve(t, router, http.MethodPatch, "/api/v1/reviews/rev_1", `{"rating":2}`, clientIdentity)
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if updated.ReviewID != "rev_1" || updated.Rating == nil || *updated.Rating != 2 || updated.Comment != nil {
		t.Fatalf("unexpected update %+v", updated)
	}

	if resp := serve(t, router, http.MethodDelete, "/api/v1/reviews/rev_1", "", clientIdentity); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	if deletedBy.UserID != "user_client" {
		t.Fatalf("unexpected actor %+v", deletedBy)
	}
	if resp := serve(t, router, http.MethodDelete, "/api/v1/reviews/rev_2", "", clientIdentity); resp.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", resp.Code)
	}
}
