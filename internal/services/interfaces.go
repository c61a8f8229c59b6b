package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	Service           = domain.Service
	CostCalculation   = domain.CostCalculation
	Executor          = domain.Executor
	CatalogLink       = domain.CatalogLink
	Order             = domain.Order
	OrderStatus       = domain.OrderStatus
	OrderStatusRecord = domain.OrderStatusRecord
	Review            = domain.Review
	Cart              = domain.Cart
	CartItem          = domain.CartItem
	CartSummary       = domain.CartSummary
	NewsArticle       = domain.NewsArticle
	Message           = domain.Message
	PortfolioItem     = domain.PortfolioItem

	ServiceListFilter  = repositories.ServiceListFilter
	ExecutorListFilter = repositories.ExecutorListFilter
	ReviewListFilter   = repositories.ReviewListFilter
	NewsListFilter     = repositories.NewsListFilter
	PortfolioFilter    = repositories.PortfolioListFilter
)

// Actor is the already-authenticated caller of a core operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// PricingEngine resolves executor prices and aggregates carts. Aggregation methods are pure.
type PricingEngine interface {
	EffectivePrice(ctx context.Context, executorID, serviceID string) (decimal.Decimal, error)
	LineItemCost(item CartItem) decimal.Decimal
	CartTotal(cart Cart) decimal.Decimal
	PositionCount(cart Cart) int
	UnitCount(cart Cart) int
	Summarize(cart Cart) CartSummary
}

// CartService manages the single cart each user owns.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItemResult, error)
	SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (CartItem, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) error
	Clear(ctx context.Context, userID string) error
}

// CartView bundles a cart with its computed aggregates.
type CartView struct {
	Cart    Cart
	Summary CartSummary
}

// AddCartItemCommand adds Quantity units of a service to the user's cart.
type AddCartItemCommand struct {
	UserID    string
	ServiceID string
	Quantity  int
}

// CartItemResult reports the stored line and whether it was newly inserted.
type CartItemResult struct {
	Item    CartItem
	Created bool
}

// SetCartItemQuantityCommand overwrites the quantity of an existing line.
type SetCartItemQuantityCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

// RemoveCartItemCommand deletes a line from the user's cart.
type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

// OrderService drives the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error)
	ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error)
	MarkProcessing(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	MarkCompleted(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd OrderTransitionCommand) (Order, error)
	ListStatuses(ctx context.Context) ([]OrderStatusRecord, error)
}

// CreateOrderCommand books a service. A nil ScheduledAt defaults to the configured lead time.
type CreateOrderCommand struct {
	Actor       Actor
	ServiceID   string
	ExecutorID  *string
	ScheduledAt *time.Time
}

// OrderTransitionCommand moves an order to the state implied by the called method.
type OrderTransitionCommand struct {
	Actor   Actor
	OrderID string
}

// OrderListFilter narrows order listings; visibility is derived from the actor.
type OrderListFilter struct {
	Statuses   []OrderStatus
	ServiceID  string
	ExecutorID string
	Pagination Pagination
}

// ReviewService gates and stores executor reviews.
type ReviewService interface {
	CanReview(ctx context.Context, query ReviewEligibilityQuery) error
	CreateReview(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	UpdateReview(ctx context.Context, cmd UpdateReviewCommand) (Review, error)
	DeleteReview(ctx context.Context, actor Actor, reviewID string) error
	ListReviews(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error)
}

// ReviewEligibilityQuery asks whether UserID may review ExecutorID, optionally for an order.
type ReviewEligibilityQuery struct {
	UserID     string
	ExecutorID string
	OrderID    *string
}

// CreateReviewCommand captures a new review.
type CreateReviewCommand struct {
	UserID     string
	ExecutorID string
	OrderID    *string
	Rating     int
	Comment    string
}

// UpdateReviewCommand edits the author's own review. Nil fields are left unchanged.
type UpdateReviewCommand struct {
	Actor    Actor
	ReviewID string
	Rating   *int
	Comment  *string
}

// CatalogService manages services, executors and the links between them.
type CatalogService interface {
	CreateService(ctx context.Context, cmd CreateServiceCommand) (Service, error)
	UpdateService(ctx context.Context, cmd UpdateServiceCommand) (Service, error)
	DeleteService(ctx context.Context, actor Actor, serviceID string) error
	GetService(ctx context.Context, serviceID string) (Service, error)
	ListServices(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[Service], error)
	ListUnorderedServices(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[Service], error)
	ListPremiumServices(ctx context.Context, minPrice *decimal.Decimal, pager Pagination) (domain.CursorPage[Service], error)

	GetCostCalculation(ctx context.Context, serviceID string) (CostCalculation, error)
	SetAdditionalCost(ctx context.Context, cmd SetAdditionalCostCommand) (CostCalculation, error)

	RegisterExecutor(ctx context.Context, cmd RegisterExecutorCommand) (Executor, error)
	GetExecutor(ctx context.Context, executorID string) (Executor, error)
	ListExecutors(ctx context.Context, filter ExecutorListFilter) (domain.CursorPage[Executor], error)

	Link(ctx context.Context, cmd LinkServiceCommand) (CatalogLink, error)
	Unlink(ctx context.Context, cmd UnlinkServiceCommand) error
	UpdateLinkPrice(ctx context.Context, cmd UpdateLinkPriceCommand) (CatalogLink, error)
	Offers(ctx context.Context, executorID, serviceID string) (bool, error)
	ListOffers(ctx context.Context, executorID string, pager Pagination) (domain.CursorPage[CatalogLink], error)
}

// CreateServiceCommand adds a catalogue service.
type CreateServiceCommand struct {
	Actor         Actor
	Name          string
	Description   string
	BasePrice     decimal.Decimal
	DurationHours int
}

// UpdateServiceCommand patches a catalogue service. Nil fields are left unchanged.
type UpdateServiceCommand struct {
	Actor         Actor
	ServiceID     string
	Name          *string
	Description   *string
	BasePrice     *decimal.Decimal
	DurationHours *int
}

// SetAdditionalCostCommand sets the surcharge on top of a service's base price.
type SetAdditionalCostCommand struct {
	Actor          Actor
	ServiceID      string
	AdditionalCost decimal.Decimal
}

// RegisterExecutorCommand creates an executor profile. An empty UserID registers the actor.
type RegisterExecutorCommand struct {
	Actor           Actor
	UserID          string
	Specialization  string
	ExperienceYears int
	PortfolioLink   *string
}

// LinkServiceCommand records that an executor offers a service.
type LinkServiceCommand struct {
	Actor       Actor
	ExecutorID  string
	ServiceID   string
	CustomPrice *decimal.Decimal
}

// UnlinkServiceCommand removes an executor-service link.
type UnlinkServiceCommand struct {
	Actor      Actor
	ExecutorID string
	ServiceID  string
}

// UpdateLinkPriceCommand sets or clears (nil) the custom price of a link.
type UpdateLinkPriceCommand struct {
	Actor       Actor
	ExecutorID  string
	ServiceID   string
	CustomPrice *decimal.Decimal
}

// NewsService publishes studio announcements. Reads are public; writes need an admin.
type NewsService interface {
	CreateNews(ctx context.Context, cmd CreateNewsCommand) (NewsArticle, error)
	UpdateNews(ctx context.Context, cmd UpdateNewsCommand) (NewsArticle, error)
	DeleteNews(ctx context.Context, actor Actor, newsID string) error
	GetNews(ctx context.Context, newsID string) (NewsArticle, error)
	ListNews(ctx context.Context, filter NewsListFilter) (domain.CursorPage[NewsArticle], error)
}

// CreateNewsCommand publishes an article authored by the actor. A nil PublishedAt means now.
type CreateNewsCommand struct {
	Actor       Actor
	Title       string
	Content     string
	PublishedAt *time.Time
}

// UpdateNewsCommand patches an article. Nil fields are left unchanged.
type UpdateNewsCommand struct {
	Actor       Actor
	NewsID      string
	Title       *string
	Content     *string
	PublishedAt *time.Time
}

// MessageService exchanges direct messages. Only the sender and receiver ever see a message.
type MessageService interface {
	SendMessage(ctx context.Context, cmd SendMessageCommand) (Message, error)
	GetMessage(ctx context.Context, actor Actor, messageID string) (Message, error)
	ListMessages(ctx context.Context, actor Actor, filter MessageListFilter) (domain.CursorPage[Message], error)
	MarkRead(ctx context.Context, actor Actor, messageID string) (Message, error)
	DeleteMessage(ctx context.Context, actor Actor, messageID string) error
}

// SendMessageCommand sends Content from the actor to ReceiverID.
type SendMessageCommand struct {
	Actor      Actor
	ReceiverID string
	Content    string
}

// MessageListFilter narrows the actor's own messages.
type MessageListFilter struct {
	SenderID   string
	ReceiverID string
	IsRead     *bool
	Pagination Pagination
}

// PortfolioService manages the work samples executors attach to their profiles.
type PortfolioService interface {
	CreatePortfolioItem(ctx context.Context, cmd CreatePortfolioItemCommand) (PortfolioItem, error)
	UpdatePortfolioItem(ctx context.Context, cmd UpdatePortfolioItemCommand) (PortfolioItem, error)
	DeletePortfolioItem(ctx context.Context, actor Actor, itemID string) error
	GetPortfolioItem(ctx context.Context, itemID string) (PortfolioItem, error)
	ListPortfolioItems(ctx context.Context, filter PortfolioFilter) (domain.CursorPage[PortfolioItem], error)
}

// CreatePortfolioItemCommand adds an item to the actor's own executor profile. A blank
// Title falls back to the default title.
type CreatePortfolioItemCommand struct {
	Actor       Actor
	Title       string
	VideoLink   *string
	Description string
}

// UpdatePortfolioItemCommand patches an item. Nil fields are left unchanged and an empty
// VideoLink clears the link.
type UpdatePortfolioItemCommand struct {
	Actor       Actor
	ItemID      string
	Title       *string
	VideoLink   *string
	Description *string
}

// HealthService reports dependency readiness.
type HealthService interface {
	Readiness(ctx context.Context) (domain.SystemHealthReport, error)
}
