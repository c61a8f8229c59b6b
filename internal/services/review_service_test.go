package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
)

type captureReviewEvents struct {
	events []ReviewEvent
}

func (c *captureReviewEvents) PublishReviewEvent(_ context.Context, event ReviewEvent) error {
	c.events = append(c.events, event)
	return nil
}

type reviewFixture struct {
	store  *memoryStore
	svc    ReviewService
	events *captureReviewEvents
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	store := newMemoryStore()
	store.addService("svc_s", "Deep clean", "200.00", 4)
	store.addExecutor("exe_e", "user_exec")
	store.addExecutor("exe_f", "user_exec_f")

	events := &captureReviewEvents{}
	ids := &sequenceIDs{}
	svc, err := NewReviewService(ReviewServiceDeps{
		Reviews:     store.reviewRepo(),
		Orders:      store.orderRepo(),
		Executors:   store.executorRepo(),
		UnitOfWork:  &stubUnitOfWork{},
		Clock:       fixedClock,
		IDGenerator: ids.generate,
		Events:      events,
	})
	if err != nil {
		t.Fatalf("NewReviewService: %v", err)
	}
	return &reviewFixture{store: store, svc: svc, events: events}
}

func TestReviewServiceCanReviewRejectsSelfReview(t *testing.T) {
	fx := newReviewFixture(t)
	fx.store.addOrder("ord_own", "user_exec", strPtr("exe_e"), "svc_s", domain.OrderStatusCompleted)
	fx.store.addOrder("ord_new", "user_exec", strPtr("exe_e"), "svc_s", domain.OrderStatusNew)

	for _, orderID := range []*string{nil, strPtr("ord_own"), strPtr("ord_new"), strPtr("ord_missing")} {
		err := fx.svc.CanReview(context.Background(), ReviewEligibilityQuery{UserID: "user_exec", ExecutorID: "exe_e", OrderID: orderID})
		if !errors.Is(err, ErrSelfReview) {
			t.Fatalf("order %v: expected self review, got %v", orderID, err)
		}
	}
}

func TestReviewServiceCanReviewReasons(t *testing.T) {
	fx := newReviewFixture(t)
	fx.store.addOrder("ord_done", "user_client", strPtr("exe_e"), "svc_s", domain.OrderStatusCompleted)
	fx.store.addOrder("ord_busy", "user_client", strPtr("exe_e"), "svc_s", domain.OrderStatusProcessing)
	fx.store.addOrder("ord_unassigned", "user_client", nil, "svc_s", domain.OrderStatusCompleted)

	cases := []struct {
		name  string
		query ReviewEligibilityQuery
		want  error
	}{
		{"without order", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e"}, nil},
		{"eligible", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_done")}, nil},
		{"not owner", ReviewEligibilityQuery{UserID: "user_other", ExecutorID: "exe_e", OrderID: strPtr("ord_done")}, ErrOrderNotOwned},
		{"other executor", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_f", OrderID: strPtr("ord_done")}, ErrExecutorMismatch},
		{"unassigned", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_unassigned")}, ErrExecutorMismatch},
		{"not completed", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_busy")}, ErrOrderNotCompleted},
		{"unknown executor", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_missing"}, ErrNotFound},
		{"unknown order", ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_missing")}, ErrNotFound},
	}
	for _, tc := range cases {
		err := fx.svc.CanReview(context.Background(), tc.query)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: expected eligible, got %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestReviewServiceCreateThenDuplicate(t *testing.T) {
	ctx := context.Background()
	fx := newReviewFixture(t)
	fx.store.addOrder("ord_done", "user_client", strPtr("exe_e"), "svc_s", domain.OrderStatusCompleted)

	review, err := fx.svc.CreateReview(ctx, CreateReviewCommand{
		UserID:     "user_client",
		ExecutorID: "exe_e",
		OrderID:    strPtr("ord_done"),
		Rating:     5,
		Comment:    "  <b>Great</b>   work &amp; very   tidy  ",
	})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if review.ID != "rev_0001" || review.Comment != "Great work & very tidy" {
		t.Fatalf("unexpected review %+v", review)
	}
	if len(fx.events.events) != 1 || fx.events.events[0].OrderID != "ord_done" || fx.events.events[0].Rating != 5 {
		t.Fatalf("unexpected events %+v", fx.events.events)
	}

	err = fx.svc.CanReview(ctx, ReviewEligibilityQuery{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_done")})
	if !errors.Is(err, ErrDuplicateReview) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate review, got %v", err)
	}

	_, err = fx.svc.CreateReview(ctx, CreateReviewCommand{UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_done"), Rating: 4})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected duplicate on second create, got %v", err)
	}
	if len(fx.store.reviews) != 1 {
		t.Fatalf("expected one stored review, got %d", len(fx.store.reviews))
	}
}

func TestReviewServiceCreateMapsInsertConflictToDuplicate(t *testing.T) {
	fx := newReviewFixture(t)
	fx.store.addOrder("ord_done", "user_client", strPtr("exe_e"), "svc_s", domain.OrderStatusCompleted)
	fx.store.fail["reviews.Insert"] = conflictErr("reviews.Insert")

	_, err := fx.svc.CreateReview(context.Background(), CreateReviewCommand{
		UserID: "user_client", ExecutorID: "exe_e", OrderID: strPtr("ord_done"), Rating: 3,
	})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected duplicate review from storage conflict, got %v", err)
	}
	if len(fx.events.events) != 0 {
		t.Fatalf("expected no event for failed create")
	}
}

func TestReviewServiceCreateValidation(t *testing.T) {
	fx := newReviewFixture(t)

	for _, rating := range []int{0, 6} {
		_, err := fx.svc.CreateReview(context.Background(), CreateReviewCommand{UserID: "user_client", ExecutorID: "exe_e", Rating: rating})
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected invalid rating, got %v", rating, err)
		}
	}

	_, err := fx.svc.CreateReview(context.Background(), CreateReviewCommand{
		UserID: "user_client", ExecutorID: "exe_e", Rating: 4, Comment: strings.Repeat("a", maxReviewCommentLength+1),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for long comment, got %v", err)
	}
}

func TestReviewServiceCreateRequiresUser(t *testing.T) {
	fx := newReviewFixture(t)

	for _, userID := range []string{"", "   "} {
		_, err := fx.svc.CreateReview(context.Background(), CreateReviewCommand{UserID: userID, ExecutorID: "exe_e", Rating: 4})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("user %q: expected forbidden, got %v", userID, err)
		}
	}
	if len(fx.events.events) != 0 {
		t.Fatalf("expected no events, got %d", len(fx.events.events))
	}
}

func TestReviewServiceUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	fx := newReviewFixture(t)

	review, err := fx.svc.CreateReview(ctx, CreateReviewCommand{UserID: "user_client", ExecutorID: "exe_e", Rating: 3, Comment: "ok"})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	rating := 4
	if _, err := fx.svc.UpdateReview(ctx, UpdateReviewCommand{Actor: otherActor, ReviewID: review.ID, Rating: &rating}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-author edit, got %v", err)
	}
	updated, err := fx.svc.UpdateReview(ctx, UpdateReviewCommand{Actor: clientActor, ReviewID: review.ID, Rating: &rating, Comment: strPtr("better\r\nsecond line")})
	if err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}
	if updated.Rating != 4 || updated.Comment != "better\nsecond line" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := fx.svc.DeleteReview(ctx, otherActor, review.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-author delete, got %v", err)
	}
	if err := fx.svc.DeleteReview(ctx, adminActor, review.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for admin delete of another user's review, got %v", err)
	}
	if err := fx.svc.DeleteReview(ctx, clientActor, review.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := fx.svc.DeleteReview(ctx, clientActor, review.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestReviewServiceListReviews(t *testing.T) {
	ctx := context.Background()
	fx := newReviewFixture(t)
	for _, cmd := range []CreateReviewCommand{
		{UserID: "user_a", ExecutorID: "exe_e", Rating: 5},
		{UserID: "user_b", ExecutorID: "exe_e", Rating: 2},
		{UserID: "user_a", ExecutorID: "exe_f", Rating: 5},
	} {
		if _, err := fx.svc.CreateReview(ctx, cmd); err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
	}

	five := 5
	page, err := fx.svc.ListReviews(ctx, ReviewListFilter{ExecutorID: "exe_e", Rating: &five})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].UserID != "user_a" {
		t.Fatalf("unexpected reviews %+v", page.Items)
	}

	bad := 9
	if _, err := fx.svc.ListReviews(ctx, ReviewListFilter{Rating: &bad}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected invalid rating filter error, got %v", err)
	}
}

func TestSanitizeReviewText(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"   ":                   "",
		"a \t b":                "a b",
		"line one  \n  line 2 ": "line one\nline 2",
		"bell\a here":           "bell here",
	}
	for input, want := range cases {
		if got := sanitizeReviewText(input); got != want {
			t.Fatalf("sanitizeReviewText(%q) = %q, want %q", input, got, want)
		}
	}
}
