package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

var serviceColumns = []string{"s.id", "s.name", "s.description", "s.base_price", "s.duration_hours", "s.created_at", "s.updated_at"}

var serviceSortColumns = map[repositories.ServiceSort]string{
	repositories.ServiceSortName:          "s.name",
	repositories.ServiceSortBasePrice:     "s.base_price",
	repositories.ServiceSortCreatedAt:     "s.created_at",
	repositories.ServiceSortDurationHours: "s.duration_hours",
}

// ServiceRepository stores catalogue services in the services table.
type ServiceRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.ServiceRepository = (*ServiceRepository)(nil)

func scanService(row pgx.CollectableRow) (domain.Service, error) {
	var s domain.Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.BasePrice, &s.DurationHours, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *ServiceRepository) Insert(ctx context.Context, service domain.Service) error {
	builder := psql.Insert("services").
		Columns("id", "name", "description", "base_price", "duration_hours", "created_at", "updated_at").
		Values(service.ID, service.Name, service.Description, service.BasePrice, service.DurationHours, service.CreatedAt, service.UpdatedAt)
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "services.insert", builder, false)
}

func (r *ServiceRepository) Update(ctx context.Context, service domain.Service) error {
	builder := psql.Update("services").
		Set("name", service.Name).
		Set("description", service.Description).
		Set("base_price", service.BasePrice).
		Set("duration_hours", service.DurationHours).
		Set("updated_at", service.UpdatedAt).
		Where(sq.Eq{"id": service.ID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "services.update", builder, true)
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	builder := psql.Delete("services").Where(sq.Eq{"id": serviceID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "services.delete", builder, true)
}

func (r *ServiceRepository) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	builder := psql.Select(serviceColumns...).From("services s").Where(sq.Eq{"s.id": serviceID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "services.find", builder, scanService)
}

func (r *ServiceRepository) List(ctx context.Context, filter repositories.ServiceListFilter) (domain.CursorPage[domain.Service], error) {
	builder := psql.Select(serviceColumns...).From("services s")
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		builder = builder.Where(sq.Or{
			sq.ILike{"s.name": pattern},
			sq.ILike{"s.description": pattern},
		})
	}
	if filter.Price.From != nil {
		builder = builder.Where(sq.GtOrEq{"s.base_price": *filter.Price.From})
	}
	if filter.Price.To != nil {
		builder = builder.Where(sq.LtOrEq{"s.base_price": *filter.Price.To})
	}
	if filter.DurationHours != nil {
		builder = builder.Where(sq.Eq{"s.duration_hours": *filter.DurationHours})
	}

	column, ok := serviceSortColumns[filter.SortBy]
	if !ok {
		column = "s.created_at"
	}
	direction := sortDirection(filter.SortOrder)
	builder = builder.OrderBy(fmt.Sprintf("%s %s", column, direction), fmt.Sprintf("s.id %s", direction))

	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "services.list", builder, filter.Pagination, scanService)
}

func (r *ServiceRepository) ListWithoutOrders(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Service], error) {
	builder := psql.Select(serviceColumns...).
		From("services s").
		Where("NOT EXISTS (SELECT 1 FROM orders o WHERE o.service_id = s.id)").
		OrderBy("s.name ASC", "s.id ASC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "services.list_without_orders", builder, pager, scanService)
}

// CostCalculationRepository keeps one cost breakdown row per service.
type CostCalculationRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CostCalculationRepository = (*CostCalculationRepository)(nil)

func scanCostCalculation(row pgx.CollectableRow) (domain.CostCalculation, error) {
	var c domain.CostCalculation
	err := row.Scan(&c.ServiceID, &c.BasePrice, &c.AdditionalCost, &c.TotalCost, &c.UpdatedAt)
	return c, err
}

func (r *CostCalculationRepository) Upsert(ctx context.Context, calc domain.CostCalculation) (domain.CostCalculation, error) {
	builder := psql.Insert("service_cost_calculations").
		Columns("service_id", "base_price", "additional_cost", "total_cost", "updated_at").
		Values(calc.ServiceID, calc.BasePrice, calc.AdditionalCost, calc.TotalCost, calc.UpdatedAt).
		Suffix(`ON CONFLICT (service_id) DO UPDATE SET
			base_price = EXCLUDED.base_price,
			additional_cost = EXCLUDED.additional_cost,
			total_cost = EXCLUDED.total_cost,
			updated_at = EXCLUDED.updated_at
		RETURNING service_id, base_price, additional_cost, total_cost, updated_at`)
	saved, err := queryOne(ctx, ppostgres.Querier(ctx, r.pool), "cost_calculations.upsert", builder, scanCostCalculation)
	if err != nil && ppostgres.IsConstraint(err, "service_cost_calculations_service_id_fkey") {
		return domain.CostCalculation{}, ppostgres.NotFound("cost_calculations.upsert")
	}
	return saved, err
}

func (r *CostCalculationRepository) FindByServiceID(ctx context.Context, serviceID string) (domain.CostCalculation, error) {
	builder := psql.Select("service_id", "base_price", "additional_cost", "total_cost", "updated_at").
		From("service_cost_calculations").
		Where(sq.Eq{"service_id": serviceID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "cost_calculations.find", builder, scanCostCalculation)
}
