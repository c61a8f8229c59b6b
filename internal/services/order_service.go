package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix = "ord_"

	defaultOrderScheduleLead = 24 * time.Hour
)

var orderStateTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusNew:        {domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled},
}

var knownOrderStatuses = []OrderStatus{
	domain.OrderStatusNew,
	domain.OrderStatusProcessing,
	domain.OrderStatusCompleted,
	domain.OrderStatusCancelled,
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Statuses     repositories.OrderStatusRepository
	Services     repositories.ServiceRepository
	Executors    repositories.ExecutorRepository
	Catalog      repositories.CatalogRepository
	Pricing      PricingEngine
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	ScheduleLead time.Duration
	Events       OrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	statuses     repositories.OrderStatusRepository
	services     repositories.ServiceRepository
	executors    repositories.ExecutorRepository
	catalog      repositories.CatalogRepository
	pricing      PricingEngine
	unitOfWork   repositories.UnitOfWork
	clock        func() time.Time
	newID        func() string
	scheduleLead time.Duration
	events       OrderEventPublisher
	logger       serviceLogger
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Statuses == nil {
		return nil, errors.New("order service: order status repository is required")
	}
	if deps.Services == nil {
		return nil, errors.New("order service: service repository is required")
	}
	if deps.Executors == nil {
		return nil, errors.New("order service: executor repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}

	lead := deps.ScheduleLead
	if lead <= 0 {
		lead = defaultOrderScheduleLead
	}

	return &orderService{
		orders:       deps.Orders,
		statuses:     deps.Statuses,
		services:     deps.Services,
		executors:    deps.Executors,
		catalog:      deps.Catalog,
		pricing:      deps.Pricing,
		unitOfWork:   defaultUnitOfWork(deps.UnitOfWork),
		clock:        defaultClock(deps.Clock),
		newID:        defaultIDGenerator(deps.IDGenerator),
		scheduleLead: lead,
		events:       deps.Events,
		logger:       defaultLogger(deps.Logger),
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	clientID, err := requireUser(cmd.Actor)
	if err != nil {
		return Order{}, err
	}
	serviceID, err := requireID(cmd.ServiceID, "service id")
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	scheduledAt := now.Add(s.scheduleLead)
	if cmd.ScheduledAt != nil {
		scheduledAt = cmd.ScheduledAt.UTC()
	}
	if !scheduledAt.After(now) {
		return Order{}, ErrScheduledTimeInPast
	}
	executorID := trimmedPtr(cmd.ExecutorID)

	order := Order{
		ID:          orderIDPrefix + s.newID(),
		ClientID:    &clientID,
		ExecutorID:  executorID,
		ServiceID:   &serviceID,
		Status:      domain.OrderStatusNew,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.services.FindByID(txCtx, serviceID); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		if executorID != nil {
			if _, err := s.executors.FindByID(txCtx, *executorID); err != nil {
				return mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, *executorID))
			}
			offers, err := s.catalog.Exists(txCtx, *executorID, serviceID)
			if err != nil {
				return mapRepositoryError(err, ErrNotFound)
			}
			if !offers {
				return ErrExecutorDoesNotOfferService
			}
		}

		status, err := s.lookupStatus(txCtx, domain.OrderStatusNew)
		if err != nil {
			return err
		}
		order.StatusID = status.ID

		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metadata := map[string]any{
		"serviceId":   serviceID,
		"scheduledAt": scheduledAt.Format(time.RFC3339),
	}
	if executorID != nil {
		metadata["executorId"] = *executorID
		if s.pricing != nil {
			if price, err := s.pricing.EffectivePrice(ctx, *executorID, serviceID); err == nil {
				metadata["effectivePrice"] = domain.FormatMoney(price)
			}
		}
	}
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		CurrentStatus: string(order.Status),
		ActorID:       clientID,
		OccurredAt:    now,
		Metadata:      metadata,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return Order{}, err
	}
	orderID, err = requireID(orderID, "order id")
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, fmt.Errorf("%w: order %s", ErrNotFound, orderID))
	}
	if actor.IsAdmin || isOrderClient(order, userID) {
		return order, nil
	}
	isExecutor, err := s.isAssignedExecutor(ctx, order, userID)
	if err != nil {
		return Order{}, err
	}
	if !isExecutor {
		return Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error) {
	userID, err := requireUser(actor)
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}
	for _, status := range filter.Statuses {
		if !slices.Contains(knownOrderStatuses, status) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown order status %q", ErrValidation, status)
		}
	}

	repoFilter := repositories.OrderListFilter{
		Statuses:   filter.Statuses,
		ServiceID:  strings.TrimSpace(filter.ServiceID),
		ExecutorID: strings.TrimSpace(filter.ExecutorID),
		Pagination: filter.Pagination,
	}
	if !actor.IsAdmin {
		repoFilter.VisibleToUserID = userID
	}

	page, err := s.orders.FindOrdersFor(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func (s *orderService) MarkProcessing(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderStatusProcessing)
}

func (s *orderService) MarkCompleted(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderStatusCompleted)
}

func (s *orderService) Cancel(ctx context.Context, cmd OrderTransitionCommand) (Order, error) {
	return s.transition(ctx, cmd, domain.OrderStatusCancelled)
}

func (s *orderService) ListStatuses(ctx context.Context) ([]OrderStatusRecord, error) {
	statuses, err := s.statuses.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, ErrNotFound)
	}
	return statuses, nil
}

// transition locks the order row, checks the actor and precondition, and writes the
// new status inside one unit of work.
func (s *orderService) transition(ctx context.Context, cmd OrderTransitionCommand, target OrderStatus) (Order, error) {
	userID, err := requireUser(cmd.Actor)
	if err != nil {
		return Order{}, err
	}
	orderID, err := requireID(cmd.OrderID, "order id")
	if err != nil {
		return Order{}, err
	}

	var (
		order    Order
		previous OrderStatus
		now      = s.clock()
	)
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: order %s", ErrNotFound, orderID))
		}
		if err := s.authorizeTransition(txCtx, cmd.Actor, userID, order, target); err != nil {
			return err
		}
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: order is %s and cannot become %s", ErrInvalidTransition, order.Status, target)
		}
		if target == domain.OrderStatusCancelled && !cmd.Actor.IsAdmin && order.Status != domain.OrderStatusNew {
			return fmt.Errorf("%w: clients may only cancel new orders", ErrForbidden)
		}

		status, err := s.lookupStatus(txCtx, target)
		if err != nil {
			return err
		}

		previous = order.Status
		applyStatusTransition(&order, status, now)

		if err := s.orders.UpdateStatus(txCtx, order); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: order %s", ErrNotFound, orderID))
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status),
		ActorID:        userID,
		OccurredAt:     now,
		Metadata:       map[string]any{"admin": cmd.Actor.IsAdmin},
	})
	return order, nil
}

func (s *orderService) authorizeTransition(ctx context.Context, actor Actor, userID string, order Order, target OrderStatus) error {
	if actor.IsAdmin {
		return nil
	}
	if target == domain.OrderStatusCancelled {
		if isOrderClient(order, userID) {
			return nil
		}
		return fmt.Errorf("%w: only the order's client or an admin may cancel", ErrForbidden)
	}

	isExecutor, err := s.isAssignedExecutor(ctx, order, userID)
	if err != nil {
		return err
	}
	if !isExecutor {
		return fmt.Errorf("%w: only the assigned executor or an admin may move the order to %s", ErrForbidden, target)
	}
	return nil
}

func (s *orderService) isAssignedExecutor(ctx context.Context, order Order, userID string) (bool, error) {
	if order.ExecutorID == nil {
		return false, nil
	}
	executor, err := s.executors.FindByID(ctx, *order.ExecutorID)
	if err != nil {
		if isRepositoryNotFound(err) {
			return false, nil
		}
		return false, mapRepositoryError(err, ErrNotFound)
	}
	return executor.UserID == userID, nil
}

func (s *orderService) lookupStatus(ctx context.Context, code OrderStatus) (OrderStatusRecord, error) {
	status, err := s.statuses.FindByCode(ctx, code)
	if err != nil {
		if isRepositoryNotFound(err) {
			return OrderStatusRecord{}, fmt.Errorf("%w: order status %q is not configured", ErrConfiguration, code)
		}
		return OrderStatusRecord{}, mapRepositoryError(err, ErrConfiguration)
	}
	return status, nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

// applyStatusTransition keeps completed_at set exactly when the status is terminal.
func applyStatusTransition(order *Order, status OrderStatusRecord, now time.Time) {
	order.Status = status.Code
	order.StatusID = status.ID
	order.UpdatedAt = now
	if status.Code.IsTerminal() {
		order.CompletedAt = valuePtr(now)
	} else {
		order.CompletedAt = nil
	}
}

func canTransition(current, target OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func isOrderClient(order Order, userID string) bool {
	return order.ClientID != nil && *order.ClientID == userID
}
