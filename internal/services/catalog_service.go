package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	serviceIDPrefix  = "svc_"
	executorIDPrefix = "exe_"
	linkIDPrefix     = "esl_"

	maxServiceNameLength    = 255
	maxSpecializationLength = 255
)

var defaultPremiumThreshold = decimal.NewFromInt(30000)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Services         repositories.ServiceRepository
	CostCalculations repositories.CostCalculationRepository
	Executors        repositories.ExecutorRepository
	Catalog          repositories.CatalogRepository
	UnitOfWork       repositories.UnitOfWork
	Clock            func() time.Time
	IDGenerator      func() string
	PremiumThreshold *decimal.Decimal
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	services   repositories.ServiceRepository
	costs      repositories.CostCalculationRepository
	executors  repositories.ExecutorRepository
	catalog    repositories.CatalogRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	premium    decimal.Decimal
	logger     serviceLogger
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Services == nil {
		return nil, errors.New("catalog service: service repository is required")
	}
	if deps.CostCalculations == nil {
		return nil, errors.New("catalog service: cost calculation repository is required")
	}
	if deps.Executors == nil {
		return nil, errors.New("catalog service: executor repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}

	premium := defaultPremiumThreshold
	if deps.PremiumThreshold != nil {
		premium = domain.RoundMoney(*deps.PremiumThreshold)
	}

	return &catalogService{
		services:   deps.Services,
		costs:      deps.CostCalculations,
		executors:  deps.Executors,
		catalog:    deps.Catalog,
		unitOfWork: defaultUnitOfWork(deps.UnitOfWork),
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator),
		premium:    premium,
		logger:     defaultLogger(deps.Logger),
	}, nil
}

func (s *catalogService) CreateService(ctx context.Context, cmd CreateServiceCommand) (Service, error) {
	if err := s.requireCatalogEditor(ctx, cmd.Actor); err != nil {
		return Service{}, err
	}

	now := s.clock()
	service := Service{
		ID:            serviceIDPrefix + s.newID(),
		Name:          normalizeText(cmd.Name),
		Description:   strings.TrimSpace(cmd.Description),
		BasePrice:     cmd.BasePrice,
		DurationHours: cmd.DurationHours,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := validateService(service); err != nil {
		return Service{}, err
	}
	service.BasePrice = domain.RoundMoney(service.BasePrice)

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.services.Insert(txCtx, service); err != nil {
			return mapRepositoryError(err, ErrNotFound)
		}
		return s.syncCostCalculation(txCtx, service, now)
	})
	if err != nil {
		return Service{}, err
	}
	return service, nil
}

func (s *catalogService) UpdateService(ctx context.Context, cmd UpdateServiceCommand) (Service, error) {
	if err := s.requireCatalogEditor(ctx, cmd.Actor); err != nil {
		return Service{}, err
	}
	serviceID, err := requireID(cmd.ServiceID, "service id")
	if err != nil {
		return Service{}, err
	}

	var service Service
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		service, err = s.services.FindByID(txCtx, serviceID)
		if err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		if cmd.Name != nil {
			service.Name = normalizeText(*cmd.Name)
		}
		if cmd.Description != nil {
			service.Description = strings.TrimSpace(*cmd.Description)
		}
		if cmd.BasePrice != nil {
			service.BasePrice = *cmd.BasePrice
		}
		if cmd.DurationHours != nil {
			service.DurationHours = *cmd.DurationHours
		}
		if err := validateService(service); err != nil {
			return err
		}
		service.BasePrice = domain.RoundMoney(service.BasePrice)

		now := s.clock()
		service.UpdatedAt = now
		if err := s.services.Update(txCtx, service); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		return s.syncCostCalculation(txCtx, service, now)
	})
	if err != nil {
		return Service{}, err
	}
	return service, nil
}

func (s *catalogService) DeleteService(ctx context.Context, actor Actor, serviceID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	serviceID, err := requireID(serviceID, "service id")
	if err != nil {
		return err
	}
	if err := s.services.Delete(ctx, serviceID); err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
	}
	s.logger(ctx, "catalog.service.deleted", map[string]any{"service": serviceID, "actor": actor.UserID})
	return nil
}

func (s *catalogService) GetService(ctx context.Context, serviceID string) (Service, error) {
	serviceID, err := requireID(serviceID, "service id")
	if err != nil {
		return Service{}, err
	}
	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		return Service{}, mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
	}
	return service, nil
}

func (s *catalogService) ListServices(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[Service], error) {
	switch filter.SortBy {
	case "", repositories.ServiceSortName, repositories.ServiceSortBasePrice,
		repositories.ServiceSortCreatedAt, repositories.ServiceSortDurationHours:
	default:
		return domain.CursorPage[Service]{}, fmt.Errorf("%w: unsupported ordering %q", ErrValidation, filter.SortBy)
	}
	if from, to := filter.Price.From, filter.Price.To; from != nil && to != nil && from.GreaterThan(*to) {
		return domain.CursorPage[Service]{}, fmt.Errorf("%w: min price exceeds max price", ErrValidation)
	}
	filter.Search = normalizeText(filter.Search)

	page, err := s.services.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Service]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func (s *catalogService) ListUnorderedServices(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[Service], error) {
	if err := requireAdmin(actor); err != nil {
		return domain.CursorPage[Service]{}, err
	}
	page, err := s.services.ListWithoutOrders(ctx, pager)
	if err != nil {
		return domain.CursorPage[Service]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func (s *catalogService) ListPremiumServices(ctx context.Context, minPrice *decimal.Decimal, pager Pagination) (domain.CursorPage[Service], error) {
	threshold := s.premium
	if minPrice != nil {
		if err := checkMoney("min price", *minPrice); err != nil {
			return domain.CursorPage[Service]{}, err
		}
		threshold = domain.RoundMoney(*minPrice)
	}
	return s.ListServices(ctx, ServiceListFilter{
		Price:      domain.RangeQuery[decimal.Decimal]{From: &threshold},
		SortBy:     repositories.ServiceSortBasePrice,
		SortOrder:  domain.SortDesc,
		Pagination: pager,
	})
}

func (s *catalogService) GetCostCalculation(ctx context.Context, serviceID string) (CostCalculation, error) {
	serviceID, err := requireID(serviceID, "service id")
	if err != nil {
		return CostCalculation{}, err
	}
	calc, err := s.costs.FindByServiceID(ctx, serviceID)
	if err != nil {
		return CostCalculation{}, mapRepositoryError(err, fmt.Errorf("%w: cost calculation for service %s", ErrNotFound, serviceID))
	}
	return calc, nil
}

func (s *catalogService) SetAdditionalCost(ctx context.Context, cmd SetAdditionalCostCommand) (CostCalculation, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return CostCalculation{}, err
	}
	serviceID, err := requireID(cmd.ServiceID, "service id")
	if err != nil {
		return CostCalculation{}, err
	}
	if err := checkMoney("additional cost", cmd.AdditionalCost); err != nil {
		return CostCalculation{}, err
	}

	var calc CostCalculation
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		service, err := s.services.FindByID(txCtx, serviceID)
		if err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		calc, err = s.costs.Upsert(txCtx, newCostCalculation(service, cmd.AdditionalCost, s.clock()))
		return mapRepositoryError(err, ErrNotFound)
	})
	if err != nil {
		return CostCalculation{}, err
	}
	return calc, nil
}

func (s *catalogService) RegisterExecutor(ctx context.Context, cmd RegisterExecutorCommand) (Executor, error) {
	actorID, err := requireUser(cmd.Actor)
	if err != nil {
		return Executor{}, err
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		userID = actorID
	}
	if userID != actorID && !cmd.Actor.IsAdmin {
		return Executor{}, fmt.Errorf("%w: only admins may register executors for other users", ErrForbidden)
	}

	executor := Executor{
		ID:              executorIDPrefix + s.newID(),
		UserID:          userID,
		Specialization:  normalizeText(cmd.Specialization),
		ExperienceYears: cmd.ExperienceYears,
		PortfolioLink:   trimmedPtr(cmd.PortfolioLink),
		CreatedAt:       s.clock(),
	}
	if executor.Specialization == "" || utf8.RuneCountInString(executor.Specialization) > maxSpecializationLength {
		return Executor{}, fmt.Errorf("%w: specialization is required and must be at most %d characters", ErrValidation, maxSpecializationLength)
	}
	if executor.ExperienceYears < 0 {
		return Executor{}, fmt.Errorf("%w: experience years must not be negative", ErrValidation)
	}

	if err := s.executors.Insert(ctx, executor); err != nil {
		if isRepositoryConflict(err) {
			return Executor{}, fmt.Errorf("%w: user %s already has an executor profile", ErrConflict, userID)
		}
		return Executor{}, mapRepositoryError(err, ErrNotFound)
	}
	return executor, nil
}

func (s *catalogService) GetExecutor(ctx context.Context, executorID string) (Executor, error) {
	executorID, err := requireID(executorID, "executor id")
	if err != nil {
		return Executor{}, err
	}
	executor, err := s.executors.FindByID(ctx, executorID)
	if err != nil {
		return Executor{}, mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, executorID))
	}
	return executor, nil
}

func (s *catalogService) ListExecutors(ctx context.Context, filter ExecutorListFilter) (domain.CursorPage[Executor], error) {
	if filter.MinExperienceYears != nil && *filter.MinExperienceYears < 0 {
		return domain.CursorPage[Executor]{}, fmt.Errorf("%w: minimum experience must not be negative", ErrValidation)
	}
	filter.Specialization = normalizeText(filter.Specialization)
	filter.OffersServiceID = strings.TrimSpace(filter.OffersServiceID)

	page, err := s.executors.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Executor]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

func (s *catalogService) Link(ctx context.Context, cmd LinkServiceCommand) (CatalogLink, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return CatalogLink{}, err
	}
	executorID, serviceID, err := requirePair(cmd.ExecutorID, cmd.ServiceID)
	if err != nil {
		return CatalogLink{}, err
	}
	price, err := normalizeCustomPrice(cmd.CustomPrice)
	if err != nil {
		return CatalogLink{}, err
	}

	now := s.clock()
	link := CatalogLink{
		ID:          linkIDPrefix + s.newID(),
		ExecutorID:  executorID,
		ServiceID:   serviceID,
		CustomPrice: price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.executors.FindByID(txCtx, executorID); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, executorID))
		}
		if _, err := s.services.FindByID(txCtx, serviceID); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		if err := s.catalog.Insert(txCtx, link); err != nil {
			if isRepositoryConflict(err) {
				return fmt.Errorf("%w: %v", ErrAlreadyLinked, err)
			}
			return mapRepositoryError(err, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return CatalogLink{}, err
	}
	return link, nil
}

func (s *catalogService) Unlink(ctx context.Context, cmd UnlinkServiceCommand) error {
	if err := requireAdmin(cmd.Actor); err != nil {
		return err
	}
	executorID, serviceID, err := requirePair(cmd.ExecutorID, cmd.ServiceID)
	if err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, executorID, serviceID); err != nil {
		return mapRepositoryError(err, ErrNotOffered)
	}
	return nil
}

func (s *catalogService) UpdateLinkPrice(ctx context.Context, cmd UpdateLinkPriceCommand) (CatalogLink, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return CatalogLink{}, err
	}
	executorID, serviceID, err := requirePair(cmd.ExecutorID, cmd.ServiceID)
	if err != nil {
		return CatalogLink{}, err
	}
	price, err := normalizeCustomPrice(cmd.CustomPrice)
	if err != nil {
		return CatalogLink{}, err
	}
	link, err := s.catalog.UpdatePrice(ctx, executorID, serviceID, price, s.clock())
	if err != nil {
		return CatalogLink{}, mapRepositoryError(err, ErrNotOffered)
	}
	return link, nil
}

func (s *catalogService) Offers(ctx context.Context, executorID, serviceID string) (bool, error) {
	executorID, serviceID, err := requirePair(executorID, serviceID)
	if err != nil {
		return false, err
	}
	offers, err := s.catalog.Exists(ctx, executorID, serviceID)
	if err != nil {
		return false, mapRepositoryError(err, ErrNotFound)
	}
	return offers, nil
}

func (s *catalogService) ListOffers(ctx context.Context, executorID string, pager Pagination) (domain.CursorPage[CatalogLink], error) {
	executorID, err := requireID(executorID, "executor id")
	if err != nil {
		return domain.CursorPage[CatalogLink]{}, err
	}
	if _, err := s.executors.FindByID(ctx, executorID); err != nil {
		return domain.CursorPage[CatalogLink]{}, mapRepositoryError(err, fmt.Errorf("%w: executor %s", ErrNotFound, executorID))
	}
	page, err := s.catalog.ListByExecutor(ctx, executorID, pager)
	if err != nil {
		return domain.CursorPage[CatalogLink]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

// requireCatalogEditor admits admins and users with an executor profile.
func (s *catalogService) requireCatalogEditor(ctx context.Context, actor Actor) error {
	userID, err := requireUser(actor)
	if err != nil {
		return err
	}
	if actor.IsAdmin {
		return nil
	}
	if _, err := s.executors.FindByUserID(ctx, userID); err != nil {
		if isRepositoryNotFound(err) {
			return fmt.Errorf("%w: only admins and executors may edit services", ErrForbidden)
		}
		return mapRepositoryError(err, ErrForbidden)
	}
	return nil
}

// syncCostCalculation copies the service price into its cost row, keeping any surcharge.
func (s *catalogService) syncCostCalculation(ctx context.Context, service Service, now time.Time) error {
	additional := decimal.Zero
	existing, err := s.costs.FindByServiceID(ctx, service.ID)
	switch {
	case err == nil:
		additional = existing.AdditionalCost
	case !isRepositoryNotFound(err):
		return mapRepositoryError(err, ErrNotFound)
	}
	_, err = s.costs.Upsert(ctx, newCostCalculation(service, additional, now))
	return mapRepositoryError(err, ErrNotFound)
}

func newCostCalculation(service Service, additional decimal.Decimal, now time.Time) CostCalculation {
	base := domain.RoundMoney(service.BasePrice)
	additional = domain.RoundMoney(additional)
	return CostCalculation{
		ServiceID:      service.ID,
		BasePrice:      base,
		AdditionalCost: additional,
		TotalCost:      base.Add(additional),
		UpdatedAt:      now,
	}
}

func validateService(service Service) error {
	switch {
	case service.Name == "":
		return fmt.Errorf("%w: service name is required", ErrValidation)
	case utf8.RuneCountInString(service.Name) > maxServiceNameLength:
		return fmt.Errorf("%w: service name must be at most %d characters", ErrValidation, maxServiceNameLength)
	case service.DurationHours < 0:
		return fmt.Errorf("%w: duration hours must not be negative", ErrValidation)
	}
	return checkMoney("base price", service.BasePrice)
}

// checkMoney rejects amounts that are negative, finer than cents or too large to store.
func checkMoney(field string, amount decimal.Decimal) error {
	if err := domain.ValidateMoney(amount); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
	}
	return nil
}

func normalizeCustomPrice(price *decimal.Decimal) (*decimal.Decimal, error) {
	if price == nil {
		return nil, nil
	}
	if err := checkMoney("custom price", *price); err != nil {
		return nil, err
	}
	return valuePtr(domain.RoundMoney(*price)), nil
}

func requirePair(executorID, serviceID string) (string, string, error) {
	executorID, err := requireID(executorID, "executor id")
	if err != nil {
		return "", "", err
	}
	serviceID, err = requireID(serviceID, "service id")
	if err != nil {
		return "", "", err
	}
	return executorID, serviceID, nil
}

func requireAdmin(actor Actor) error {
	if _, err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

// normalizeText composes to NFC and collapses runs of whitespace.
func normalizeText(value string) string {
	return norm.NFC.String(strings.Join(strings.Fields(value), " "))
}
