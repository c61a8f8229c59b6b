package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	reviewIDPrefix     = "rev_"
	reviewEventCreated = "review.created"

	maxReviewCommentLength = 2000
)

// ReviewEventPublisher emits review lifecycle events to downstream consumers.
type ReviewEventPublisher interface {
	PublishReviewEvent(ctx context.Context, event ReviewEvent) error
}

// ReviewEvent captures metadata for review lifecycle events.
type ReviewEvent struct {
	Type       string
	ReviewID   string
	ExecutorID string
	OrderID    string
	Rating     int
	ActorID    string
	OccurredAt time.Time
}

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Orders      repositories.OrderRepository
	Executors   repositories.ExecutorRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Events      ReviewEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews    repositories.ReviewRepository
	orders     repositories.OrderRepository
	executors  repositories.ExecutorRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	sanitize   func(string) string
	events     ReviewEventPublisher
	logger     serviceLogger
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}
	if deps.Executors == nil {
		return nil, errors.New("review service: executor repository is required")
	}

	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = newReviewSanitizer()
	}

	return &reviewService{
		reviews:    deps.Reviews,
		orders:     deps.Orders,
		executors:  deps.Executors,
		unitOfWork: defaultUnitOfWork(deps.UnitOfWork),
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator),
		sanitize:   sanitize,
		events:     deps.Events,
		logger:     defaultLogger(deps.Logger),
	}, nil
}

// CanReview checks, in order: self review, order ownership, executor match, order
// completion and an existing review for the same order.
func (s *reviewService) CanReview(ctx context.Context, query ReviewEligibilityQuery) error {
	userID, err := requireID(query.UserID, "user id")
	if err != nil {
		return err
	}
	executorID, err := requireID(query.ExecutorID, "executor id")
	if err != nil {
		return err
	}

	executor, err := s.executors.FindByID(ctx, executorID)
	if err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, executorID))
	}
	if executor.UserID == userID {
		return ErrSelfReview
	}

	orderID := trimmedPtr(query.OrderID)
	if orderID == nil {
		return nil
	}

	order, err := s.orders.FindByID(ctx, *orderID)
	if err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: order %s", ErrNotFound, *orderID))
	}
	if !isOrderClient(order, userID) {
		return ErrOrderNotOwned
	}
	if order.ExecutorID == nil || *order.ExecutorID != executor.ID {
		return ErrExecutorMismatch
	}
	if order.Status != domain.OrderStatusCompleted {
		return ErrOrderNotCompleted
	}

	exists, err := s.reviews.ExistsForUserOrder(ctx, userID, order.ID)
	if err != nil {
		return mapRepositoryError(err, ErrNotFound)
	}
	if exists {
		return ErrDuplicateReview
	}
	return nil
}

func (s *reviewService) CreateReview(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	userID, err := requireUser(Actor{UserID: cmd.UserID})
	if err != nil {
		return Review{}, err
	}
	if err := validateRating(cmd.Rating); err != nil {
		return Review{}, err
	}
	comment, err := s.cleanComment(cmd.Comment)
	if err != nil {
		return Review{}, err
	}

	now := s.clock()
	review := Review{
		ID:         reviewIDPrefix + s.newID(),
		UserID:     userID,
		ExecutorID: strings.TrimSpace(cmd.ExecutorID),
		OrderID:    trimmedPtr(cmd.OrderID),
		Rating:     cmd.Rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.CanReview(txCtx, ReviewEligibilityQuery{
			UserID:     review.UserID,
			ExecutorID: review.ExecutorID,
			OrderID:    review.OrderID,
		}); err != nil {
			return err
		}
		if err := s.reviews.Insert(txCtx, review); err != nil {
			if review.OrderID != nil && isRepositoryConflict(err) {
				return fmt.Errorf("%w: %v", ErrDuplicateReview, err)
			}
			return mapRepositoryError(err, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return Review{}, err
	}

	if s.events != nil {
		event := ReviewEvent{
			Type:       reviewEventCreated,
			ReviewID:   review.ID,
			ExecutorID: review.ExecutorID,
			Rating:     review.Rating,
			ActorID:    review.UserID,
			OccurredAt: now,
		}
		if review.OrderID != nil {
			event.OrderID = *review.OrderID
		}
		if err := s.events.PublishReviewEvent(ctx, event); err != nil {
			s.logger(ctx, "review.event.publish.failed", map[string]any{
				"review": review.ID,
				"error":  err.Error(),
			})
		}
	}
	return review, nil
}

func (s *reviewService) UpdateReview(ctx context.Context, cmd UpdateReviewCommand) (Review, error) {
	userID, err := requireUser(cmd.Actor)
	if err != nil {
		return Review{}, err
	}
	reviewID, err := requireID(cmd.ReviewID, "review id")
	if err != nil {
		return Review{}, err
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return Review{}, mapRepositoryError(err, fmt.Errorf("%w: review %s", ErrNotFound, reviewID))
	}
	if review.UserID != userID {
		return Review{}, fmt.Errorf("%w: only the author may edit a review", ErrForbidden)
	}

	if cmd.Rating != nil {
		if err := validateRating(*cmd.Rating); err != nil {
			return Review{}, err
		}
		review.Rating = *cmd.Rating
	}
	if cmd.Comment != nil {
		comment, err := s.cleanComment(*cmd.Comment)
		if err != nil {
			return Review{}, err
		}
		review.Comment = comment
	}
	review.UpdatedAt = s.clock()

	if err := s.reviews.Update(ctx, review); err != nil {
		return Review{}, mapRepositoryError(err, fmt.Errorf("%w: review %s", ErrNotFound, reviewID))
	}
	return review, nil
}

func (s *reviewService) DeleteReview(ctx context.Context, actor Actor, reviewID string) error {
	userID, err := requireUser(actor)
	if err != nil {
		return err
	}
	reviewID, err = requireID(reviewID, "review id")
	if err != nil {
		return err
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: review %s", ErrNotFound, reviewID))
	}
	if review.UserID != userID {
		return fmt.Errorf("%w: only the author may delete a review", ErrForbidden)
	}
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: review %s", ErrNotFound, reviewID))
	}
	return nil
}

func (s *reviewService) ListReviews(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error) {
	if filter.Rating != nil {
		if err := validateRating(*filter.Rating); err != nil {
			return domain.CursorPage[Review]{}, err
		}
	}
	filter.ExecutorID = strings.TrimSpace(filter.ExecutorID)
	filter.OrderID = strings.TrimSpace(filter.OrderID)
	filter.UserID = strings.TrimSpace(filter.UserID)

	page, err := s.reviews.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Review]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func (s *reviewService) cleanComment(raw string) (string, error) {
	comment := s.sanitize(raw)
	if len([]rune(comment)) > maxReviewCommentLength {
		return "", fmt.Errorf("%w: comment must be at most %d characters", ErrValidation, maxReviewCommentLength)
	}
	return comment, nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// newReviewSanitizer strips markup and returns plain text with normalised whitespace.
func newReviewSanitizer() func(string) string {
	policy := bluemonday.StrictPolicy()
	return func(input string) string {
		return sanitizeReviewText(html.UnescapeString(policy.Sanitize(input)))
	}
}

// sanitizeReviewText trims whitespace, strips control characters and collapses spacing while
// preserving intentional newlines.
func sanitizeReviewText(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		line = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, line)
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
