package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

// Registry exposes the postgres-backed repositories and the shared transaction manager.
type Registry struct {
	pool      *pgxpool.Pool
	tx        *ppostgres.TxManager
	services  *ServiceRepository
	costs     *CostCalculationRepository
	executors *ExecutorRepository
	catalog   *CatalogRepository
	statuses  *OrderStatusRepository
	orders    *OrderRepository
	reviews   *ReviewRepository
	carts     *CartRepository
	news      *NewsRepository
	messages  *MessageRepository
	portfolio *PortfolioRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry assembles every repository over pool. health may be nil when readiness is not probed.
func NewRegistry(pool *pgxpool.Pool, health repositories.HealthRepository, opts ...ppostgres.TxOption) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres registry: pool is required")
	}
	return &Registry{
		pool:      pool,
		tx:        ppostgres.NewTxManager(pool, opts...),
		services:  &ServiceRepository{pool: pool},
		costs:     &CostCalculationRepository{pool: pool},
		executors: &ExecutorRepository{pool: pool},
		catalog:   &CatalogRepository{pool: pool},
		statuses:  &OrderStatusRepository{pool: pool},
		orders:    &OrderRepository{pool: pool},
		reviews:   &ReviewRepository{pool: pool},
		carts:     &CartRepository{pool: pool},
		news:      &NewsRepository{pool: pool},
		messages:  &MessageRepository{pool: pool},
		portfolio: &PortfolioRepository{pool: pool},
		health:    health,
	}, nil
}

func (r *Registry) Close(context.Context) error {
	r.pool.Close()
	return nil
}

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.tx.RunInTx(ctx, fn)
}

func (r *Registry) Services() repositories.ServiceRepository { return r.services }

func (r *Registry) CostCalculations() repositories.CostCalculationRepository { return r.costs }

func (r *Registry) Executors() repositories.ExecutorRepository { return r.executors }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) OrderStatuses() repositories.OrderStatusRepository { return r.statuses }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Reviews() repositories.ReviewRepository { return r.reviews }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) News() repositories.NewsRepository { return r.news }

func (r *Registry) Messages() repositories.MessageRepository { return r.messages }

func (r *Registry) Portfolios() repositories.PortfolioRepository { return r.portfolio }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
