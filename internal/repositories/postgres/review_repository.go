package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

var reviewColumns = []string{"id", "user_id", "executor_id", "order_id", "rating", "comment", "created_at", "updated_at"}

// ReviewRepository stores executor reviews.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

func scanReview(row pgx.CollectableRow) (domain.Review, error) {
	var (
		rv      domain.Review
		orderID null.String
	)
	if err := row.Scan(&rv.ID, &rv.UserID, &rv.ExecutorID, &orderID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return domain.Review{}, err
	}
	rv.OrderID = orderID.Ptr()
	return rv, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	builder := psql.Insert("reviews").
		Columns(reviewColumns...).
		Values(review.ID, review.UserID, review.ExecutorID, null.StringFromPtr(review.OrderID),
			review.Rating, review.Comment, review.CreatedAt, review.UpdatedAt)
	err := exec(ctx, ppostgres.Querier(ctx, r.pool), "reviews.insert", builder, false)
	if ppostgres.IsConstraint(err, "reviews_executor_id_fkey") || ppostgres.IsConstraint(err, "reviews_order_id_fkey") {
		return ppostgres.NotFound("reviews.insert")
	}
	return err
}

func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	builder := psql.Update("reviews").
		Set("rating", review.Rating).
		Set("comment", review.Comment).
		Set("updated_at", review.UpdatedAt).
		Where(sq.Eq{"id": review.ID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "reviews.update", builder, true)
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "reviews.delete", psql.Delete("reviews").Where(sq.Eq{"id": reviewID}), true)
}

func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	builder := psql.Select(reviewColumns...).From("reviews").Where(sq.Eq{"id": reviewID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "reviews.find", builder, scanReview)
}

func (r *ReviewRepository) ExistsForUserOrder(ctx context.Context, userID, orderID string) (bool, error) {
	query, args, err := psql.Select("1").
		From("reviews").
		Where(sq.Eq{"user_id": userID, "order_id": orderID}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, ppostgres.WrapError("reviews.exists", err)
	}
	var exists bool
	if err := ppostgres.Querier(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, ppostgres.WrapError("reviews.exists", err)
	}
	return exists, nil
}

func (r *ReviewRepository) List(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	builder := psql.Select(reviewColumns...).From("reviews")
	if filter.ExecutorID != "" {
		builder = builder.Where(sq.Eq{"executor_id": filter.ExecutorID})
	}
	if filter.OrderID != "" {
		builder = builder.Where(sq.Eq{"order_id": filter.OrderID})
	}
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Rating != nil {
		builder = builder.Where(sq.Eq{"rating": *filter.Rating})
	}
	builder = builder.OrderBy("created_at DESC", "id DESC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "reviews.list", builder, filter.Pagination, scanReview)
}
