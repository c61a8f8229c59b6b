package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
	"github.com/Unit659z/Clover-studio/internal/services"
)

func newNewsRouter(news services.NewsService) http.Handler {
	return NewRouter(WithNewsRoutes(NewNewsHandlers(nil, news).Routes))
}

func TestNewsHandlersListAndGetArePublic(t *testing.T) {
	var captured services.NewsListFilter
	author := "user_admin"
	news := &stubNewsService{
		listFunc: func(_ context.Context, filter services.NewsListFilter) (domain.CursorPage[services.NewsArticle], error) {
			captured = filter
			return domain.CursorPage[services.NewsArticle]{Items: []services.NewsArticle{{ID: "nws_1", Title: "Open", AuthorID: &author, PublishedAt: handlerNow}}}, nil
		},
		getFunc: func(_ context.Context, newsID string) (services.NewsArticle, error) {
			if newsID != "nws_1" {
				return services.NewsArticle{}, services.ErrNotFound
			}
			return services.NewsArticle{ID: newsID, Title: "Open"}, nil
		},
	}
	router := newNewsRouter(news)

	resp := serve(t, router, http.MethodGet, "/api/v1/news?author_id=user_admin&q=open&ordering=-title", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.AuthorID != "user_admin" || captured.Search != "open" || captured.SortBy != repositories.NewsSortTitle || captured.SortOrder != domain.SortDesc {
		t.Fatalf("unexpected filter %+v", captured)
	}
	var payload newsListResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].AuthorID == nil || payload.Items[0].PublishedAt != formatTime(handlerNow) {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if resp := serve(t, router, http.MethodGet, "/api/v1/news?ordering=content", "", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown ordering, got %d", resp.Code)
	}
	if resp := serve(t, router, http.MethodGet, "/api/v1/news/nws_1", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}
	if resp := serve(t, router, http.MethodGet, "/api/v1/news/nws_2", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", resp.Code)
	}
}

func TestNewsHandlersCreate(t *testing.T) {
	var captured services.CreateNewsCommand
	news := &stubNewsService{
		createFunc: func(_ context.Context, cmd services.CreateNewsCommand) (services.NewsArticle, error) {
			captured = cmd
			if !cmd.Actor.IsAdmin {
				return services.NewsArticle{}, services.ErrForbidden
			}
			return services.NewsArticle{ID: "nws_1", Title: cmd.Title, Content: cmd.Content, AuthorID: &cmd.Actor.UserID, PublishedAt: *cmd.PublishedAt}, nil
		},
	}
	router := newNewsRouter(news)
	body := `{"title":"Holiday hours","content":"Closed on Monday","published_at":"2025-05-10T08:00:00Z"}`

	resp := serve(t, router, http.MethodPost, "/api/v1/news", body, adminIdentity)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Actor.UserID != "user_admin" || captured.PublishedAt == nil || !captured.PublishedAt.Equal(time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected command %+v", captured)
	}

	if resp := serve(t, router, http.MethodPost, "/api/v1/news", body, clientIdentity); resp.Code != http.StatusForbidden {
		t.Fatalf("client: expected 403, got %d", resp.Code)
	}
	if resp := serve(t, router, http.MethodPost, "/api/v1/news", body, nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.Code)
	}
	if resp := serve(t, router, http.MethodPost, "/api/v1/news", `{"title":"","content":"x"}`, adminIdentity); resp.Code != http.StatusBadRequest {
		t.Fatalf("blank title: expected 400, got %d", resp.Code)
	}
}

func TestNewsHandlersUpdateAndDelete(t *testing.T) {
	var updated services.UpdateNewsCommand
	var deleted string
	news := &stubNewsService{
		updateFunc: func(_ context.Context, cmd services.UpdateNewsCommand) (services.NewsArticle, error) {
			updated = cmd
			return services.NewsArticle{ID: cmd.NewsID, Title: *cmd.Title}, nil
		},
		deleteFunc: func(_ context.Context, _ services.Actor, newsID string) error {
			deleted = newsID
			return nil
		},
	}
	router := newNewsRouter(news)

	resp := serve(t, router, http.MethodPatch, "/api/v1/news/nws_1", `{"title":"Renamed"}`, adminIdentity)
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if updated.NewsID != "nws_1" || updated.Title == nil || *updated.Title != "Renamed" || updated.Content != nil || updated.PublishedAt != nil {
		t.Fatalf("unexpected update %+v", updated)
	}
	if resp := serve(t, router, http.MethodDelete, "/api/v1/news/nws_1", "", adminIdentity); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	if deleted != "nws_1" {
		t.Fatalf("unexpected deleted id %q", deleted)
	}
}
