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

var newsOrderFields = []string{
	string(repositories.NewsSortPublishedAt),
	string(repositories.NewsSortTitle),
}

// NewsHandlers exposes studio news. Anyone may read; admins write.
type NewsHandlers struct {
	authn *auth.Authenticator
	news  services.NewsService
}

func NewNewsHandlers(authn *auth.Authenticator, news services.NewsService) *NewsHandlers {
	return &NewsHandlers{authn: authn, news: news}
}

// Routes registers the /news endpoints.
func (h *NewsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalAuth())
		}
		public.Get("/", h.listNews)
		public.Get("/{newsID}", h.getNews)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Post("/", h.createNews)
		private.Patch("/{newsID}", h.updateNews)
		private.Delete("/{newsID}", h.deleteNews)
	})
}

type newsPayload struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	AuthorID    *string `json:"author_id"`
	PublishedAt string  `json:"published_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type newsListResponse struct {
	Items         []newsPayload `json:"items"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type createNewsRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Content     string    `json:"content" validate:"required"`
	PublishedAt null.Time `json:"published_at"`
}

type updateNewsRequest struct {
	Title       null.String `json:"title" validate:"omitempty,max=200"`
	Content     null.String `json:"content"`
	PublishedAt null.Time   `json:"published_at"`
}

func (h *NewsHandlers) listNews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.news == nil {
		writeUnavailable(ctx, w, "news")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r, newsOrderFields...)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.NewsListFilter{
		AuthorID:   strings.TrimSpace(query.Get("author_id")),
		Search:     strings.TrimSpace(query.Get("q")),
		Pagination: pageOf(params),
	}
	if params.Order != nil {
		filter.SortBy = repositories.NewsSort(params.Order.Field)
		filter.SortOrder = domain.SortAsc
		if params.Order.Desc {
			filter.SortOrder = domain.SortDesc
		}
	}

	page, err := h.news.ListNews(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]newsPayload, 0, len(page.Items))
	for _, article := range page.Items {
		items = append(items, buildNewsPayload(article))
	}
	httpx.WriteJSON(w, http.StatusOK, newsListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *NewsHandlers) getNews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.news == nil {
		writeUnavailable(ctx, w, "news")
		return
	}
	article, err := h.news.GetNews(ctx, chi.URLParam(r, "newsID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildNewsPayload(article))
}

func (h *NewsHandlers) createNews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.news == nil {
		writeUnavailable(ctx, w, "news")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req createNewsRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	article, err := h.news.CreateNews(ctx, services.CreateNewsCommand{
		Actor:       actor,
		Title:       req.Title,
		Content:     req.Content,
		PublishedAt: req.PublishedAt.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildNewsPayload(article))
}

func (h *NewsHandlers) updateNews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.news == nil {
		writeUnavailable(ctx, w, "news")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req updateNewsRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	article, err := h.news.UpdateNews(ctx, services.UpdateNewsCommand{
		Actor:       actor,
		NewsID:      chi.URLParam(r, "newsID"),
		Title:       req.Title.Ptr(),
		Content:     req.Content.Ptr(),
		PublishedAt: req.PublishedAt.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildNewsPayload(article))
}

func (h *NewsHandlers) deleteNews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.news == nil {
		writeUnavailable(ctx, w, "news")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.news.DeleteNews(ctx, actor, chi.URLParam(r, "newsID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildNewsPayload(article services.NewsArticle) newsPayload {
	return newsPayload{
		ID:          article.ID,
		Title:       article.Title,
		Content:     article.Content,
		AuthorID:    article.AuthorID,
		PublishedAt: formatTime(article.PublishedAt),
		UpdatedAt:   formatTime(article.UpdatedAt),
	}
}
