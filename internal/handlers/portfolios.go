package handlers

import (
	"net/http"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-chi/chi/v5"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/repositories"
	"github.com/Unit659z/Clover-studio/internal/services"
)

var portfolioOrderFields = []string{
	string(repositories.PortfolioSortUploadedAt),
	string(repositories.PortfolioSortTitle),
}

// PortfolioHandlers exposes executor portfolio items. Listing and lookup are public.
type PortfolioHandlers struct {
	authn      *auth.Authenticator
	portfolios services.PortfolioService
}

func NewPortfolioHandlers(authn *auth.Authenticator, portfolios services.PortfolioService) *PortfolioHandlers {
	return &PortfolioHandlers{authn: authn, portfolios: portfolios}
}

// Routes registers the /portfolios endpoints.
func (h *PortfolioHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalAuth())
		}
		public.Get("/", h.listItems)
		public.Get("/{itemID}", h.getItem)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Post("/", h.createItem)
		private.Patch("/{itemID}", h.updateItem)
		private.Delete("/{itemID}", h.deleteItem)
	})
}

type portfolioPayload struct {
	ID          string  `json:"id"`
	ExecutorID  string  `json:"executor_id"`
	Title       string  `json:"title"`
	VideoLink   *string `json:"video_link"`
	Description string  `json:"description"`
	UploadedAt  string  `json:"uploaded_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type portfolioListResponse struct {
	Items         []portfolioPayload `json:"items"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type createPortfolioRequest struct {
	Title       string      `json:"title" validate:"max=150"`
	VideoLink   null.String `json:"video_link" validate:"omitempty,url"`
	Description string      `json:"description" validate:"max=4000"`
}

type updatePortfolioRequest struct {
	Title       null.String `json:"title" validate:"omitempty,max=150"`
	VideoLink   null.String `json:"video_link" validate:"omitempty,url"`
	Description null.String `json:"description" validate:"omitempty,max=4000"`
}

func (h *PortfolioHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.portfolios == nil {
		writeUnavailable(ctx, w, "portfolio")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r, portfolioOrderFields...)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.PortfolioFilter{
		ExecutorID: strings.TrimSpace(query.Get("executor_id")),
		Search:     strings.TrimSpace(query.Get("q")),
		Pagination: pageOf(params),
	}
	if params.Order != nil {
		filter.SortBy = repositories.PortfolioSort(params.Order.Field)
		filter.SortOrder = domain.SortAsc
		if params.Order.Desc {
			filter.SortOrder = domain.SortDesc
		}
	}

	page, err := h.portfolios.ListPortfolioItems(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]portfolioPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildPortfolioPayload(item))
	}
	httpx.WriteJSON(w, http.StatusOK, portfolioListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *PortfolioHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.portfolios == nil {
		writeUnavailable(ctx, w, "portfolio")
		return
	}
	item, err := h.portfolios.GetPortfolioItem(ctx, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPortfolioPayload(item))
}

func (h *PortfolioHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.portfolios == nil {
		writeUnavailable(ctx, w, "portfolio")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req createPortfolioRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	item, err := h.portfolios.CreatePortfolioItem(ctx, services.CreatePortfolioItemCommand{
		Actor:       actor,
		Title:       req.Title,
		VideoLink:   req.VideoLink.Ptr(),
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildPortfolioPayload(item))
}

func (h *PortfolioHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.portfolios == nil {
		writeUnavailable(ctx, w, "portfolio")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req updatePortfolioRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	item, err := h.portfolios.UpdatePortfolioItem(ctx, services.UpdatePortfolioItemCommand{
		Actor:       actor,
		ItemID:      chi.URLParam(r, "itemID"),
		Title:       req.Title.Ptr(),
		VideoLink:   req.VideoLink.Ptr(),
		Description: req.Description.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPortfolioPayload(item))
}

func (h *PortfolioHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.portfolios == nil {
		writeUnavailable(ctx, w, "portfolio")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.portfolios.DeletePortfolioItem(ctx, actor, chi.URLParam(r, "itemID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildPortfolioPayload(item services.PortfolioItem) portfolioPayload {
	return portfolioPayload{
		ID:          item.ID,
		ExecutorID:  item.ExecutorID,
		Title:       item.Title,
		VideoLink:   item.VideoLink,
		Description: item.Description,
		UploadedAt:  formatTime(item.UploadedAt),
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
}
