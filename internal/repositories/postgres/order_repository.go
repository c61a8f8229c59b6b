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

// OrderStatusRepository reads the order_statuses lookup table.
type OrderStatusRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.OrderStatusRepository = (*OrderStatusRepository)(nil)

func scanStatus(row pgx.CollectableRow) (domain.OrderStatusRecord, error) {
	var s domain.OrderStatusRecord
	err := row.Scan(&s.ID, &s.Code, &s.Label)
	return s, err
}

func (r *OrderStatusRepository) FindByCode(ctx context.Context, code domain.OrderStatus) (domain.OrderStatusRecord, error) {
	builder := psql.Select("id", "code", "label").From("order_statuses").Where(sq.Eq{"code": string(code)})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "order_statuses.find", builder, scanStatus)
}

func (r *OrderStatusRepository) List(ctx context.Context) ([]domain.OrderStatusRecord, error) {
	query, args, err := psql.Select("id", "code", "label").From("order_statuses").OrderBy("id").ToSql()
	if err != nil {
		return nil, ppostgres.WrapError("order_statuses.list", err)
	}
	rows, err := ppostgres.Querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, ppostgres.WrapError("order_statuses.list", err)
	}
	records, err := pgx.CollectRows(rows, scanStatus)
	if err != nil {
		return nil, ppostgres.WrapError("order_statuses.list", err)
	}
	return records, nil
}

var orderColumns = []string{
	"o.id", "o.client_id", "o.executor_id", "o.service_id", "o.status_id", "st.code",
	"o.scheduled_at", "o.completed_at", "o.created_at", "o.updated_at",
}

// OrderRepository stores orders and resolves their status code through order_statuses.
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var (
		o                           domain.Order
		clientID, executorID, svcID null.String
		completedAt                 null.Time
	)
	if err := row.Scan(&o.ID, &clientID, &executorID, &svcID, &o.StatusID, &o.Status,
		&o.ScheduledAt, &completedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.ClientID = clientID.Ptr()
	o.ExecutorID = executorID.Ptr()
	o.ServiceID = svcID.Ptr()
	o.CompletedAt = completedAt.Ptr()
	return o, nil
}

func selectOrders() sq.SelectBuilder {
	return psql.Select(orderColumns...).
		From("orders o").
		Join("order_statuses st ON st.id = o.status_id")
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	builder := psql.Insert("orders").
		Columns("id", "client_id", "executor_id", "service_id", "status_id", "scheduled_at", "completed_at", "created_at", "updated_at").
		Values(
			order.ID,
			null.StringFromPtr(order.ClientID),
			null.StringFromPtr(order.ExecutorID),
			null.StringFromPtr(order.ServiceID),
			order.StatusID,
			order.ScheduledAt,
			null.TimeFromPtr(order.CompletedAt),
			order.CreatedAt,
			order.UpdatedAt,
		)
	err := exec(ctx, ppostgres.Querier(ctx, r.pool), "orders.insert", builder, false)
	if ppostgres.IsConstraint(err, "orders_executor_id_fkey") || ppostgres.IsConstraint(err, "orders_service_id_fkey") {
		return ppostgres.NotFound("orders.insert")
	}
	return err
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	builder := selectOrders().Where(sq.Eq{"o.id": orderID}).Suffix("FOR UPDATE OF o")
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "orders.find_for_update", builder, scanOrder)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	builder := selectOrders().Where(sq.Eq{"o.id": orderID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "orders.find", builder, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, order domain.Order) error {
	builder := psql.Update("orders").
		Set("status_id", order.StatusID).
		Set("completed_at", null.TimeFromPtr(order.CompletedAt)).
		Set("updated_at", order.UpdatedAt).
		Where(sq.Eq{"id": order.ID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "orders.update_status", builder, true)
}

func (r *OrderRepository) FindOrdersFor(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	builder := selectOrders()
	if filter.VisibleToUserID != "" {
		builder = builder.Where(sq.Or{
			sq.Eq{"o.client_id": filter.VisibleToUserID},
			sq.Expr("EXISTS (SELECT 1 FROM executors e WHERE e.id = o.executor_id AND e.user_id = ?)", filter.VisibleToUserID),
		})
	}
	if len(filter.Statuses) > 0 {
		codes := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			codes = append(codes, string(status))
		}
		builder = builder.Where(sq.Eq{"st.code": codes})
	}
	if filter.ServiceID != "" {
		builder = builder.Where(sq.Eq{"o.service_id": filter.ServiceID})
	}
	if filter.ExecutorID != "" {
		builder = builder.Where(sq.Eq{"o.executor_id": filter.ExecutorID})
	}
	builder = builder.OrderBy("o.created_at DESC", "o.id DESC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "orders.list", builder, filter.Pagination, scanOrder)
}
