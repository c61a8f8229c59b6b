package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-chi/chi/v5"

	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// ReviewHandlers exposes executor reviews and the eligibility check that gates them.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{authn: authn, reviews: reviews}
}

// Routes registers the /reviews endpoints. Listing is public.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalAuth())
		}
		public.Get("/", h.listReviews)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Post("/", h.createReview)
		private.Get("/eligibility", h.eligibility)
		private.Patch("/{reviewID}", h.updateReview)
		private.Delete("/{reviewID}", h.deleteReview)
	})
}

type reviewPayload struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ExecutorID string  `json:"executor_id"`
	OrderID    *string `json:"order_id"`
	Rating     int     `json:"rating"`
	Comment    string  `json:"comment"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type reviewListResponse struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type createReviewRequest struct {
	ExecutorID string      `json:"executor_id" validate:"required"`
	OrderID    null.String `json:"order_id" validate:"omitempty,min=1"`
	Rating     int         `json:"rating"`
	Comment    string      `json:"comment"`
}

type updateReviewRequest struct {
	Rating  null.Int    `json:"rating"`
	Comment null.String `json:"comment"`
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// eligibilityReasons lists the denials the eligibility endpoint reports as data rather than errors.
var eligibilityReasons = []struct {
	err  error
	code string
}{
	{services.ErrSelfReview, "self_review"},
	{services.ErrOrderNotOwned, "order_not_owned"},
	{services.ErrExecutorMismatch, "executor_mismatch"},
	{services.ErrOrderNotCompleted, "order_not_completed"},
	{services.ErrDuplicateReview, "duplicate_review"},
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.ReviewListFilter{
		ExecutorID: strings.TrimSpace(query.Get("executor_id")),
		OrderID:    strings.TrimSpace(query.Get("order_id")),
		UserID:     strings.TrimSpace(query.Get("user_id")),
		Pagination: pageOf(params),
	}
	if raw := strings.TrimSpace(query.Get("rating")); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "rating must be an integer", http.StatusBadRequest))
			return
		}
		filter.Rating = &rating
	}

	page, err := h.reviews.ListReviews(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]reviewPayload, 0, len(page.Items))
	for _, review := range page.Items {
		items = append(items, buildReviewPayload(review))
	}
	httpx.WriteJSON(w, http.StatusOK, reviewListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *ReviewHandlers) eligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	query := r.URL.Query()
	eligibilityQuery := services.ReviewEligibilityQuery{
		UserID:     actor.UserID,
		ExecutorID: strings.TrimSpace(query.Get("executor_id")),
	}
	if orderID := strings.TrimSpace(query.Get("order_id")); orderID != "" {
		eligibilityQuery.OrderID = &orderID
	}

	err := h.reviews.CanReview(ctx, eligibilityQuery)
	if err == nil {
		httpx.WriteJSON(w, http.StatusOK, eligibilityResponse{Eligible: true})
		return
	}
	for _, reason := range eligibilityReasons {
		if errors.Is(err, reason.err) {
			httpx.WriteJSON(w, http.StatusOK, eligibilityResponse{Reason: reason.code, Message: err.Error()})
			return
		}
	}
	writeServiceError(ctx, w, err)
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req createReviewRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	review, err := h.reviews.CreateReview(ctx, services.CreateReviewCommand{
		UserID:     actor.UserID,
		ExecutorID: req.ExecutorID,
		OrderID:    req.OrderID.Ptr(),
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildReviewPayload(review))
}

func (h *ReviewHandlers) updateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req updateReviewRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	review, err := h.reviews.UpdateReview(ctx, services.UpdateReviewCommand{
		Actor:    actor,
		ReviewID: chi.URLParam(r, "reviewID"),
		Rating:   req.Rating.Ptr(),
		Comment:  req.Comment.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReviewPayload(review))
}

func (h *ReviewHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.reviews.DeleteReview(ctx, actor, chi.URLParam(r, "reviewID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:         review.ID,
		UserID:     review.UserID,
		ExecutorID: review.ExecutorID,
		OrderID:    review.OrderID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  formatTime(review.CreatedAt),
		UpdatedAt:  formatTime(review.UpdatedAt),
	}
}
