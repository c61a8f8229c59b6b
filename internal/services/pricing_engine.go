package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

// PricingEngineDeps bundles collaborators for the pricing engine.
type PricingEngineDeps struct {
	Catalog  repositories.CatalogRepository
	Services repositories.ServiceRepository
}

type pricingEngine struct {
	catalog  repositories.CatalogRepository
	services repositories.ServiceRepository
}

// NewPricingEngine constructs a PricingEngine reading prices from the catalogue.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: catalog repository is required")
	}
	if deps.Services == nil {
		return nil, errors.New("pricing engine: service repository is required")
	}
	return &pricingEngine{catalog: deps.Catalog, services: deps.Services}, nil
}

// EffectivePrice returns the link's custom price, falling back to the service base price.
func (e *pricingEngine) EffectivePrice(ctx context.Context, executorID, serviceID string) (decimal.Decimal, error) {
	executorID, err := requireID(executorID, "executor id")
	if err != nil {
		return decimal.Decimal{}, err
	}
	serviceID, err = requireID(serviceID, "service id")
	if err != nil {
		return decimal.Decimal{}, err
	}

	link, err := e.catalog.FindLinkFor(ctx, executorID, serviceID)
	if err != nil {
		return decimal.Decimal{}, mapRepositoryError(err, ErrNotOffered)
	}
	if link.CustomPrice != nil {
		return domain.RoundMoney(*link.CustomPrice), nil
	}

	service, err := e.services.FindByID(ctx, serviceID)
	if err != nil {
		return decimal.Decimal{}, mapRepositoryError(err, ErrNotOffered)
	}
	return domain.RoundMoney(service.BasePrice), nil
}

// LineItemCost prices a cart line at the service's current base price.
func (e *pricingEngine) LineItemCost(item CartItem) decimal.Decimal {
	return lineItemCost(item)
}

func (e *pricingEngine) CartTotal(cart Cart) decimal.Decimal {
	return cartTotal(cart)
}

func (e *pricingEngine) PositionCount(cart Cart) int {
	return len(cart.Items)
}

func (e *pricingEngine) UnitCount(cart Cart) int {
	return unitCount(cart)
}

func (e *pricingEngine) Summarize(cart Cart) CartSummary {
	return summarizeCart(cart)
}

func lineItemCost(item CartItem) decimal.Decimal {
	return domain.RoundMoney(item.ServicePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
}

func cartTotal(cart Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(lineItemCost(item))
	}
	return domain.RoundMoney(total)
}

func unitCount(cart Cart) int {
	units := 0
	for _, item := range cart.Items {
		units += item.Quantity
	}
	return units
}

func summarizeCart(cart Cart) CartSummary {
	return CartSummary{
		Total:         cartTotal(cart),
		PositionCount: len(cart.Items),
		UnitCount:     unitCount(cart),
	}
}
