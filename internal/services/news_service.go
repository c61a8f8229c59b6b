package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	newsIDPrefix       = "nws_"
	maxNewsTitleLength = 200
)

// NewsServiceDeps bundles collaborators required to construct a NewsService.
type NewsServiceDeps struct {
	News        repositories.NewsRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type newsService struct {
	news     repositories.NewsRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
	logger   serviceLogger
}

// NewNewsService wires dependencies into a concrete NewsService implementation.
func NewNewsService(deps NewsServiceDeps) (NewsService, error) {
	if deps.News == nil {
		return nil, errors.New("news service: news repository is required")
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = newNewsSanitizer()
	}
	return &newsService{
		news:     deps.News,
		clock:    defaultClock(deps.Clock),
		newID:    defaultIDGenerator(deps.IDGenerator),
		sanitize: sanitize,
		logger:   defaultLogger(deps.Logger),
	}, nil
}

func (s *newsService) CreateNews(ctx context.Context, cmd CreateNewsCommand) (NewsArticle, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return NewsArticle{}, err
	}
	now := s.clock()
	article := NewsArticle{
		ID:          newsIDPrefix + s.newID(),
		Title:       normalizeText(cmd.Title),
		Content:     s.sanitize(cmd.Content),
		AuthorID:    valuePtr(strings.TrimSpace(cmd.Actor.UserID)),
		PublishedAt: now,
		UpdatedAt:   now,
	}
	if cmd.PublishedAt != nil {
		article.PublishedAt = cmd.PublishedAt.UTC()
	}
	if err := validateNews(article); err != nil {
		return NewsArticle{}, err
	}

	if err := s.news.Insert(ctx, article); err != nil {
		return NewsArticle{}, mapRepositoryError(err, ErrNotFound)
	}
	s.logger(ctx, "news.created", map[string]any{"news": article.ID, "actor": cmd.Actor.UserID})
	return article, nil
}

func (s *newsService) UpdateNews(ctx context.Context, cmd UpdateNewsCommand) (NewsArticle, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return NewsArticle{}, err
	}
	newsID, err := requireID(cmd.NewsID, "news id")
	if err != nil {
		return NewsArticle{}, err
	}
	article, err := s.news.FindByID(ctx, newsID)
	if err != nil {
		return NewsArticle{}, mapRepositoryError(err, fmt.Errorf("%w: news %s", ErrNotFound, newsID))
	}

	if cmd.Title != nil {
		article.Title = normalizeText(*cmd.Title)
	}
	if cmd.Content != nil {
		article.Content = s.sanitize(*cmd.Content)
	}
	if cmd.PublishedAt != nil {
		article.PublishedAt = cmd.PublishedAt.UTC()
	}
	if err := validateNews(article); err != nil {
		return NewsArticle{}, err
	}
	article.UpdatedAt = s.clock()

	if err := s.news.Update(ctx, article); err != nil {
		return NewsArticle{}, mapRepositoryError(err, fmt.Errorf("%w: news %s", ErrNotFound, newsID))
	}
	return article, nil
}

func (s *newsService) DeleteNews(ctx context.Context, actor Actor, newsID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	newsID, err := requireID(newsID, "news id")
	if err != nil {
		return err
	}
	if err := s.news.Delete(ctx, newsID); err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: news %s", ErrNotFound, newsID))
	}
	s.logger(ctx, "news.deleted", map[string]any{"news": newsID, "actor": actor.UserID})
	return nil
}

func (s *newsService) GetNews(ctx context.Context, newsID string) (NewsArticle, error) {
	newsID, err := requireID(newsID, "news id")
	if err != nil {
		return NewsArticle{}, err
	}
	article, err := s.news.FindByID(ctx, newsID)
	if err != nil {
		return NewsArticle{}, mapRepositoryError(err, fmt.Errorf("%w: news %s", ErrNotFound, newsID))
	}
	return article, nil
}

func (s *newsService) ListNews(ctx context.Context, filter NewsListFilter) (domain.CursorPage[NewsArticle], error) {
	switch filter.SortBy {
	case "", repositories.NewsSortPublishedAt, repositories.NewsSortTitle:
	default:
		return domain.CursorPage[NewsArticle]{}, fmt.Errorf("%w: unsupported ordering %q", ErrValidation, filter.SortBy)
	}
	filter.AuthorID = strings.TrimSpace(filter.AuthorID)
	filter.Search = normalizeText(filter.Search)

	page, err := s.news.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[NewsArticle]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func validateNews(article NewsArticle) error {
	if article.Title == "" || utf8.RuneCountInString(article.Title) > maxNewsTitleLength {
		return fmt.Errorf("%w: title is required and must be at most %d characters", ErrValidation, maxNewsTitleLength)
	}
	if article.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	return nil
}

// newNewsSanitizer keeps basic formatting markup in articles and drops anything executable.
func newNewsSanitizer() func(string) string {
	policy := bluemonday.UGCPolicy()
	return func(input string) string {
		return strings.TrimSpace(policy.Sanitize(input))
	}
}
