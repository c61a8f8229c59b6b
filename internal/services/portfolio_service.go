package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	portfolioIDPrefix       = "pfl_"
	defaultPortfolioTitle   = "Portfolio work"
	maxPortfolioTitleLength = 150
	maxPortfolioDescription = 4000
)

// PortfolioServiceDeps bundles collaborators required to construct a PortfolioService.
type PortfolioServiceDeps struct {
	Portfolios  repositories.PortfolioRepository
	Executors   repositories.ExecutorRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type portfolioService struct {
	portfolios repositories.PortfolioRepository
	executors  repositories.ExecutorRepository
	clock      func() time.Time
	newID      func() string
	sanitize   func(string) string
	logger     serviceLogger
}

// NewPortfolioService wires dependencies into a concrete PortfolioService implementation.
func NewPortfolioService(deps PortfolioServiceDeps) (PortfolioService, error) {
	if deps.Portfolios == nil {
		return nil, errors.New("portfolio service: portfolio repository is required")
	}
	if deps.Executors == nil {
		return nil, errors.New("portfolio service: executor repository is required")
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = newReviewSanitizer()
	}
	return &portfolioService{
		portfolios: deps.Portfolios,
		executors:  deps.Executors,
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator),
		sanitize:   sanitize,
		logger:     defaultLogger(deps.Logger),
	}, nil
}

// CreatePortfolioItem attaches the item to the actor's executor profile. Admins without a
// profile of their own cannot create items.
func (s *portfolioService) CreatePortfolioItem(ctx context.Context, cmd CreatePortfolioItemCommand) (PortfolioItem, error) {
	userID, err := requireUser(cmd.Actor)
	if err != nil {
		return PortfolioItem{}, err
	}
	executor, err := s.executors.FindByUserID(ctx, userID)
	if err != nil {
		if isRepositoryNotFound(err) {
			return PortfolioItem{}, ErrNoExecutorProfile
		}
		return PortfolioItem{}, mapRepositoryError(err, ErrNotFound)
	}

	now := s.clock()
	item := PortfolioItem{
		ID:          portfolioIDPrefix + s.newID(),
		ExecutorID:  executor.ID,
		Title:       normalizeText(cmd.Title),
		Description: s.sanitize(cmd.Description),
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if item.Title == "" {
		item.Title = defaultPortfolioTitle
	}
	if item.VideoLink, err = normalizeVideoLink(cmd.VideoLink); err != nil {
		return PortfolioItem{}, err
	}
	if err := validatePortfolioItem(item); err != nil {
		return PortfolioItem{}, err
	}

	if err := s.portfolios.Insert(ctx, item); err != nil {
		return PortfolioItem{}, mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, executor.ID))
	}
	s.logger(ctx, "portfolio.item.created", map[string]any{"item": item.ID, "executor": executor.ID})
	return item, nil
}

func (s *portfolioService) UpdatePortfolioItem(ctx context.Context, cmd UpdatePortfolioItemCommand) (PortfolioItem, error) {
	item, err := s.ownedItem(ctx, cmd.Actor, cmd.ItemID)
	if err != nil {
		return PortfolioItem{}, err
	}

	if cmd.Title != nil {
		item.Title = normalizeText(*cmd.Title)
	}
	if cmd.Description != nil {
		item.Description = s.sanitize(*cmd.Description)
	}
	if cmd.VideoLink != nil {
		if item.VideoLink, err = normalizeVideoLink(cmd.VideoLink); err != nil {
			return PortfolioItem{}, err
		}
	}
	if err := validatePortfolioItem(item); err != nil {
		return PortfolioItem{}, err
	}
	item.UpdatedAt = s.clock()

	if err := s.portfolios.Update(ctx, item); err != nil {
		return PortfolioItem{}, mapRepositoryError(err, fmt.Errorf("%w: portfolio item %s", ErrNotFound, item.ID))
	}
	return item, nil
}

func (s *portfolioService) DeletePortfolioItem(ctx context.Context, actor Actor, itemID string) error {
	item, err := s.ownedItem(ctx, actor, itemID)
	if err != nil {
		return err
	}
	if err := s.portfolios.Delete(ctx, item.ID); err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: portfolio item %s", ErrNotFound, item.ID))
	}
	s.logger(ctx, "portfolio.item.deleted", map[string]any{"item": item.ID, "actor": actor.UserID})
	return nil
}

func (s *portfolioService) GetPortfolioItem(ctx context.Context, itemID string) (PortfolioItem, error) {
	itemID, err := requireID(itemID, "portfolio item id")
	if err != nil {
		return PortfolioItem{}, err
	}
	item, err := s.portfolios.FindByID(ctx, itemID)
	if err != nil {
		return PortfolioItem{}, mapRepositoryError(err, fmt.Errorf("%w: portfolio item %s", ErrNotFound, itemID))
	}
	return item, nil
}

func (s *portfolioService) ListPortfolioItems(ctx context.Context, filter PortfolioFilter) (domain.CursorPage[PortfolioItem], error) {
	switch filter.SortBy {
	case "", repositories.PortfolioSortUploadedAt, repositories.PortfolioSortTitle:
	default:
		return domain.CursorPage[PortfolioItem]{}, fmt.Errorf("%w: unsupported ordering %q", ErrValidation, filter.SortBy)
	}
	filter.ExecutorID = strings.TrimSpace(filter.ExecutorID)
	filter.Search = normalizeText(filter.Search)

	page, err := s.portfolios.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[PortfolioItem]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

// ownedItem loads an item the actor may change: one on their own executor profile, or any
// item for admins.
func (s *portfolioService) ownedItem(ctx context.Context, actor Actor, itemID string) (PortfolioItem, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return PortfolioItem{}, err
	}
	item, err := s.GetPortfolioItem(ctx, itemID)
	if err != nil {
		return PortfolioItem{}, err
	}
	if actor.IsAdmin {
		return item, nil
	}
	executor, err := s.executors.FindByID(ctx, item.ExecutorID)
	if err != nil && !isRepositoryNotFound(err) {
		return PortfolioItem{}, mapRepositoryError(err, ErrNotFound)
	}
	if err != nil || executor.UserID != userID {
		return PortfolioItem{}, fmt.Errorf("%w: only the owning executor may change a portfolio item", ErrForbidden)
	}
	return item, nil
}

func validatePortfolioItem(item PortfolioItem) error {
	if item.Title == "" || utf8.RuneCountInString(item.Title) > maxPortfolioTitleLength {
		return fmt.Errorf("%w: title is required and must be at most %d characters", ErrValidation, maxPortfolioTitleLength)
	}
	if utf8.RuneCountInString(item.Description) > maxPortfolioDescription {
		return fmt.Errorf("%w: description must be at most %d characters", ErrValidation, maxPortfolioDescription)
	}
	return nil
}

// normalizeVideoLink accepts absolute http(s) URLs. A blank link means none.
func normalizeVideoLink(raw *string) (*string, error) {
	link := trimmedPtr(raw)
	if link == nil {
		return nil, nil
	}
	parsed, err := url.Parse(*link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: video link must be an absolute http or https URL", ErrValidation)
	}
	return link, nil
}
