package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

var executorColumns = []string{"e.id", "e.user_id", "e.specialization", "e.experience_years", "e.portfolio_link", "e.created_at"}

// ExecutorRepository stores executor profiles.
type ExecutorRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.ExecutorRepository = (*ExecutorRepository)(nil)

func scanExecutor(row pgx.CollectableRow) (domain.Executor, error) {
	var (
		e         domain.Executor
		portfolio null.String
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Specialization, &e.ExperienceYears, &portfolio, &e.CreatedAt); err != nil {
		return domain.Executor{}, err
	}
	e.PortfolioLink = portfolio.Ptr()
	return e, nil
}

func (r *ExecutorRepository) Insert(ctx context.Context, executor domain.Executor) error {
	builder := psql.Insert("executors").
		Columns("id", "user_id", "specialization", "experience_years", "portfolio_link", "created_at").
		Values(executor.ID, executor.UserID, executor.Specialization, executor.ExperienceYears, null.StringFromPtr(executor.PortfolioLink), executor.CreatedAt)
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "executors.insert", builder, false)
}

func (r *ExecutorRepository) FindByID(ctx context.Context, executorID string) (domain.Executor, error) {
	builder := psql.Select(executorColumns...).From("executors e").Where(sq.Eq{"e.id": executorID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "executors.find", builder, scanExecutor)
}

func (r *ExecutorRepository) FindByUserID(ctx context.Context, userID string) (domain.Executor, error) {
	builder := psql.Select(executorColumns...).From("executors e").Where(sq.Eq{"e.user_id": userID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "executors.find_by_user", builder, scanExecutor)
}

func (r *ExecutorRepository) List(ctx context.Context, filter repositories.ExecutorListFilter) (domain.CursorPage[domain.Executor], error) {
	builder := psql.Select(executorColumns...).From("executors e")
	if filter.Specialization != "" {
		builder = builder.Where(sq.ILike{"e.specialization": containsPattern(filter.Specialization)})
	}
	if filter.MinExperienceYears != nil {
		builder = builder.Where(sq.GtOrEq{"e.experience_years": *filter.MinExperienceYears})
	}
	if filter.OffersServiceID != "" {
		builder = builder.Where("EXISTS (SELECT 1 FROM executor_services es WHERE es.executor_id = e.id AND es.service_id = ?)", filter.OffersServiceID)
	}
	builder = builder.OrderBy("e.experience_years DESC", "e.id ASC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "executors.list", builder, filter.Pagination, scanExecutor)
}

var linkColumns = []string{"id", "executor_id", "service_id", "custom_price", "created_at", "updated_at"}

// CatalogRepository stores executor-service links in executor_services.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

func scanLink(row pgx.CollectableRow) (domain.CatalogLink, error) {
	var (
		l     domain.CatalogLink
		price decimal.NullDecimal
	)
	if err := row.Scan(&l.ID, &l.ExecutorID, &l.ServiceID, &price, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return domain.CatalogLink{}, err
	}
	if price.Valid {
		l.CustomPrice = &price.Decimal
	}
	return l, nil
}

func nullPrice(price *decimal.Decimal) decimal.NullDecimal {
	if price == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*price)
}

func (r *CatalogRepository) Insert(ctx context.Context, link domain.CatalogLink) error {
	builder := psql.Insert("executor_services").
		Columns(linkColumns...).
		Values(link.ID, link.ExecutorID, link.ServiceID, nullPrice(link.CustomPrice), link.CreatedAt, link.UpdatedAt)
	err := exec(ctx, ppostgres.Querier(ctx, r.pool), "catalog.insert", builder, false)
	if ppostgres.IsConstraint(err, "executor_services_executor_id_fkey") || ppostgres.IsConstraint(err, "executor_services_service_id_fkey") {
		return ppostgres.NotFound("catalog.insert")
	}
	return err
}

func (r *CatalogRepository) UpdatePrice(ctx context.Context, executorID, serviceID string, customPrice *decimal.Decimal, updatedAt time.Time) (domain.CatalogLink, error) {
	builder := psql.Update("executor_services").
		Set("custom_price", nullPrice(customPrice)).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"executor_id": executorID, "service_id": serviceID}).
		Suffix("RETURNING id, executor_id, service_id, custom_price, created_at, updated_at")
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "catalog.update_price", builder, scanLink)
}

func (r *CatalogRepository) Delete(ctx context.Context, executorID, serviceID string) error {
	builder := psql.Delete("executor_services").Where(sq.Eq{"executor_id": executorID, "service_id": serviceID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "catalog.delete", builder, true)
}

func (r *CatalogRepository) FindLinkFor(ctx context.Context, executorID, serviceID string) (domain.CatalogLink, error) {
	builder := psql.Select(linkColumns...).
		From("executor_services").
		Where(sq.Eq{"executor_id": executorID, "service_id": serviceID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "catalog.find", builder, scanLink)
}

func (r *CatalogRepository) Exists(ctx context.Context, executorID, serviceID string) (bool, error) {
	query, args, err := psql.Select("1").
		From("executor_services").
		Where(sq.Eq{"executor_id": executorID, "service_id": serviceID}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, ppostgres.WrapError("catalog.exists", err)
	}
	var exists bool
	if err := ppostgres.Querier(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, ppostgres.WrapError("catalog.exists", err)
	}
	return exists, nil
}

func (r *CatalogRepository) ListByExecutor(ctx context.Context, executorID string, pager domain.Pagination) (domain.CursorPage[domain.CatalogLink], error) {
	builder := psql.Select(linkColumns...).
		From("executor_services").
		Where(sq.Eq{"executor_id": executorID}).
		OrderBy("created_at ASC", "id ASC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "catalog.list_by_executor", builder, pager, scanLink)
}
