package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Unit659z/Clover-studio/internal/platform/config"
	"github.com/Unit659z/Clover-studio/internal/platform/observability"
	"github.com/Unit659z/Clover-studio/internal/repositories"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Pricing   services.PricingEngine
	Catalog   services.CatalogService
	Cart      services.CartService
	Orders    services.OrderService
	Reviews   services.ReviewService
	News      services.NewsService
	Messages  services.MessageService
	Portfolio services.PortfolioService
	System    services.HealthService
}

// EventPublisher is satisfied by publishers able to emit every service's events.
type EventPublisher interface {
	services.OrderEventPublisher
	services.ReviewEventPublisher
	services.MessageEventPublisher
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	publisher EventPublisher
	build     services.BuildInfo
	clock     func() time.Time
}

// WithLogger routes service event logs through the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventPublisher enables domain event publishing.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithBuildInfo sets the version metadata reported by readiness checks.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring passes the postgres
// registry; tests can supply in-memory registries.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	svc, err := buildServices(reg, cfg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, o options) (Services, error) {
	var svc Services

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Catalog:  reg.Catalog(),
		Services: reg.Services(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	premium := cfg.Catalog.PremiumThreshold
	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Services:         reg.Services(),
		CostCalculations: reg.CostCalculations(),
		Executors:        reg.Executors(),
		Catalog:          reg.Catalog(),
		UnitOfWork:       reg,
		Clock:            o.clock,
		PremiumThreshold: &premium,
		Logger:           observability.EventLogger(o.logger, "catalog"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Services:   reg.Services(),
		Pricing:    pricing,
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     observability.EventLogger(o.logger, "cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	orderDeps := services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Statuses:     reg.OrderStatuses(),
		Services:     reg.Services(),
		Executors:    reg.Executors(),
		Catalog:      reg.Catalog(),
		Pricing:      pricing,
		UnitOfWork:   reg,
		Clock:        o.clock,
		ScheduleLead: cfg.Orders.DefaultScheduleLead,
		Logger:       observability.EventLogger(o.logger, "orders"),
	}
	reviewDeps := services.ReviewServiceDeps{
		Reviews:    reg.Reviews(),
		Orders:     reg.Orders(),
		Executors:  reg.Executors(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     observability.EventLogger(o.logger, "reviews"),
	}
	messageDeps := services.MessageServiceDeps{
		Messages: reg.Messages(),
		Clock:    o.clock,
		Logger:   observability.EventLogger(o.logger, "messages"),
	}
	if o.publisher != nil {
		orderDeps.Events = o.publisher
		reviewDeps.Events = o.publisher
		messageDeps.Events = o.publisher
	}

	orderSvc, err := services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	reviewSvc, err := services.NewReviewService(reviewDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	newsSvc, err := services.NewNewsService(services.NewsServiceDeps{
		News:   reg.News(),
		Clock:  o.clock,
		Logger: observability.EventLogger(o.logger, "news"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build news service: %w", err)
	}
	svc.News = newsSvc

	messageSvc, err := services.NewMessageService(messageDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build message service: %w", err)
	}
	svc.Messages = messageSvc

	portfolioSvc, err := services.NewPortfolioService(services.PortfolioServiceDeps{
		Portfolios: reg.Portfolios(),
		Executors:  reg.Executors(),
		Clock:      o.clock,
		Logger:     observability.EventLogger(o.logger, "portfolio"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build portfolio service: %w", err)
	}
	svc.Portfolio = portfolioSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := o.build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = o.clock().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            o.clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
