package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	cartIDPrefix     = "cart_"
	cartItemIDPrefix = "cti_"
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Services    repositories.ServiceRepository
	Pricing     PricingEngine
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	services   repositories.ServiceRepository
	pricing    PricingEngine
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     serviceLogger
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Services == nil {
		return nil, errors.New("cart service: service repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("cart service: pricing engine is required")
	}
	return &cartService{
		carts:      deps.Carts,
		services:   deps.Services,
		pricing:    deps.Pricing,
		unitOfWork: defaultUnitOfWork(deps.UnitOfWork),
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator),
		logger:     defaultLogger(deps.Logger),
	}, nil
}

func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	userID, err := requireID(userID, "user id")
	if err != nil {
		return Cart{}, err
	}
	cart, err := s.carts.GetOrCreate(ctx, cartIDPrefix+s.newID(), userID, s.clock())
	if err != nil {
		return Cart{}, mapRepositoryError(err, ErrNotFound)
	}
	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	return CartView{Cart: cart, Summary: s.pricing.Summarize(cart)}, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItemResult, error) {
	serviceID, err := requireID(cmd.ServiceID, "service id")
	if err != nil {
		return CartItemResult{}, err
	}
	if err := checkQuantity(cmd.Quantity); err != nil {
		return CartItemResult{}, err
	}

	var result CartItemResult
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.services.FindByID(txCtx, serviceID); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: service %s", ErrNotFound, serviceID))
		}
		cart, err := s.GetOrCreateCart(txCtx, cmd.UserID)
		if err != nil {
			return err
		}

		now := s.clock()
		item, created, err := s.carts.IncrementItem(txCtx, CartItem{
			ID:        cartItemIDPrefix + s.newID(),
			CartID:    cart.ID,
			ServiceID: serviceID,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
		if err != nil {
			// the merged quantity can still overflow the column
			if isRepositoryInvalid(err) {
				return fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
			}
			return mapRepositoryError(err, ErrNotFound)
		}
		if err := s.carts.Touch(txCtx, cart.ID, now); err != nil {
			return mapRepositoryError(err, ErrNotFound)
		}
		result = CartItemResult{Item: item, Created: created}
		return nil
	})
	if err != nil {
		return CartItemResult{}, err
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"cartId":   result.Item.CartID,
		"itemId":   result.Item.ID,
		"service":  serviceID,
		"quantity": result.Item.Quantity,
		"created":  result.Created,
	})
	return result, nil
}

func (s *cartService) SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (CartItem, error) {
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return CartItem{}, err
	}
	if err := checkQuantity(cmd.Quantity); err != nil {
		return CartItem{}, err
	}

	var item CartItem
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.GetOrCreateCart(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		item, err = s.carts.SetItemQuantity(txCtx, cart.ID, itemID, cmd.Quantity)
		if err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID))
		}
		return mapRepositoryError(s.carts.Touch(txCtx, cart.ID, s.clock()), ErrNotFound)
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) error {
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return err
	}
	return s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.GetOrCreateCart(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		if err := s.carts.DeleteItem(txCtx, cart.ID, itemID); err != nil {
			return mapRepositoryError(err, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID))
		}
		return mapRepositoryError(s.carts.Touch(txCtx, cart.ID, s.clock()), ErrNotFound)
	})
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	return s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.GetOrCreateCart(txCtx, userID)
		if err != nil {
			return err
		}
		if err := s.carts.DeleteItems(txCtx, cart.ID); err != nil {
			return mapRepositoryError(err, ErrNotFound)
		}
		return mapRepositoryError(s.carts.Touch(txCtx, cart.ID, s.clock()), ErrNotFound)
	})
}

func checkQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxItemQuantity {
		return ErrInvalidQuantity
	}
	return nil
}
