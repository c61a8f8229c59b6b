package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Services() ServiceRepository
	CostCalculations() CostCalculationRepository
	Executors() ExecutorRepository
	Catalog() CatalogRepository
	OrderStatuses() OrderStatusRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Carts() CartRepository
	News() NewsRepository
	Messages() MessageRepository
	Portfolios() PortfolioRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
	// IsInvalid reports values the store rejected as out of range for their column.
	IsInvalid() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories called with the context handed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ServiceRepository persists catalogue services.
type ServiceRepository interface {
	Insert(ctx context.Context, service domain.Service) error
	Update(ctx context.Context, service domain.Service) error
	Delete(ctx context.Context, serviceID string) error
	FindByID(ctx context.Context, serviceID string) (domain.Service, error)
	List(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[domain.Service], error)
	// ListWithoutOrders returns services that no order references.
	ListWithoutOrders(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Service], error)
}

// ServiceSort names the columns service listings may be ordered by.
type ServiceSort string

const (
	ServiceSortName          ServiceSort = "name"
	ServiceSortBasePrice     ServiceSort = "base_price"
	ServiceSortCreatedAt     ServiceSort = "created_at"
	ServiceSortDurationHours ServiceSort = "duration_hours"
)

// ServiceListFilter narrows service listings.
type ServiceListFilter struct {
	Search        string
	Price         domain.RangeQuery[decimal.Decimal]
	DurationHours *int
	SortBy        ServiceSort
	SortOrder     domain.SortOrder
	Pagination    domain.Pagination
}

// CostCalculationRepository stores the per-service cost breakdown.
type CostCalculationRepository interface {
	Upsert(ctx context.Context, calc domain.CostCalculation) (domain.CostCalculation, error)
	FindByServiceID(ctx context.Context, serviceID string) (domain.CostCalculation, error)
}

// ExecutorRepository persists executor profiles.
type ExecutorRepository interface {
	Insert(ctx context.Context, executor domain.Executor) error
	FindByID(ctx context.Context, executorID string) (domain.Executor, error)
	FindByUserID(ctx context.Context, userID string) (domain.Executor, error)
	List(ctx context.Context, filter ExecutorListFilter) (domain.CursorPage[domain.Executor], error)
}

// ExecutorListFilter narrows executor listings.
type ExecutorListFilter struct {
	Specialization     string
	MinExperienceYears *int
	OffersServiceID    string
	Pagination         domain.Pagination
}

// CatalogRepository persists executor-service links. Implementations enforce pair
// uniqueness in storage and report duplicates as conflicts.
type CatalogRepository interface {
	Insert(ctx context.Context, link domain.CatalogLink) error
	UpdatePrice(ctx context.Context, executorID, serviceID string, customPrice *decimal.Decimal, updatedAt time.Time) (domain.CatalogLink, error)
	Delete(ctx context.Context, executorID, serviceID string) error
	FindLinkFor(ctx context.Context, executorID, serviceID string) (domain.CatalogLink, error)
	Exists(ctx context.Context, executorID, serviceID string) (bool, error)
	ListByExecutor(ctx context.Context, executorID string, pager domain.Pagination) (domain.CursorPage[domain.CatalogLink], error)
}

// OrderStatusRepository reads the status lookup table.
type OrderStatusRepository interface {
	FindByCode(ctx context.Context, code domain.OrderStatus) (domain.OrderStatusRecord, error)
	List(ctx context.Context) ([]domain.OrderStatusRecord, error)
}

// OrderRepository persists orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// FindByIDForUpdate locks the order row for the rest of the surrounding transaction.
	FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, order domain.Order) error
	FindOrdersFor(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order listings. When VisibleToUserID is set only orders
// where that user is the client or the assigned executor's owner are returned.
type OrderListFilter struct {
	VisibleToUserID string
	Statuses        []domain.OrderStatus
	ServiceID       string
	ExecutorID      string
	Pagination      domain.Pagination
}

// ReviewRepository persists reviews. Implementations enforce (user, order) uniqueness in storage.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Update(ctx context.Context, review domain.Review) error
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	ExistsForUserOrder(ctx context.Context, userID, orderID string) (bool, error)
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[domain.Review], error)
}

// ReviewListFilter narrows review listings.
type ReviewListFilter struct {
	ExecutorID string
	OrderID    string
	UserID     string
	Rating     *int
	Pagination domain.Pagination
}

// CartRepository owns the cart header and its items.
type CartRepository interface {
	// GetOrCreate returns the user's cart, inserting an empty one with the supplied id when absent.
	GetOrCreate(ctx context.Context, cartID, userID string, now time.Time) (domain.Cart, error)
	// IncrementItem adds quantity to the (cart, service) line in one statement, inserting the line when
	// missing. The boolean reports whether a new line was inserted.
	IncrementItem(ctx context.Context, item domain.CartItem) (domain.CartItem, bool, error)
	SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (domain.CartItem, error)
	DeleteItem(ctx context.Context, cartID, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
	Touch(ctx context.Context, cartID string, updatedAt time.Time) error
}

// NewsRepository persists news articles.
type NewsRepository interface {
	Insert(ctx context.Context, article domain.NewsArticle) error
	Update(ctx context.Context, article domain.NewsArticle) error
	Delete(ctx context.Context, newsID string) error
	FindByID(ctx context.Context, newsID string) (domain.NewsArticle, error)
	List(ctx context.Context, filter NewsListFilter) (domain.CursorPage[domain.NewsArticle], error)
}

// NewsSort names the columns news listings may be ordered by.
type NewsSort string

const (
	NewsSortPublishedAt NewsSort = "published_at"
	NewsSortTitle       NewsSort = "title"
)

// NewsListFilter narrows news listings. Unsorted listings are newest first.
type NewsListFilter struct {
	AuthorID   string
	Search     string
	SortBy     NewsSort
	SortOrder  domain.SortOrder
	Pagination domain.Pagination
}

// MessageRepository persists direct messages.
type MessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	FindByID(ctx context.Context, messageID string) (domain.Message, error)
	// MarkRead flags the message as read and returns it. Marking twice is not an error.
	MarkRead(ctx context.Context, messageID string) (domain.Message, error)
	Delete(ctx context.Context, messageID string) error
	List(ctx context.Context, filter MessageListFilter) (domain.CursorPage[domain.Message], error)
}

// MessageListFilter narrows message listings. ParticipantID is mandatory and limits results
// to messages that user sent or received.
type MessageListFilter struct {
	ParticipantID string
	SenderID      string
	ReceiverID    string
	IsRead        *bool
	Pagination    domain.Pagination
}

// PortfolioRepository persists executor portfolio items.
type PortfolioRepository interface {
	Insert(ctx context.Context, item domain.PortfolioItem) error
	Update(ctx context.Context, item domain.PortfolioItem) error
	Delete(ctx context.Context, itemID string) error
	FindByID(ctx context.Context, itemID string) (domain.PortfolioItem, error)
	List(ctx context.Context, filter PortfolioListFilter) (domain.CursorPage[domain.PortfolioItem], error)
}

// PortfolioSort names the columns portfolio listings may be ordered by.
type PortfolioSort string

const (
	PortfolioSortUploadedAt PortfolioSort = "uploaded_at"
	PortfolioSortTitle      PortfolioSort = "title"
)

// PortfolioListFilter narrows portfolio listings. Unsorted listings are newest first.
type PortfolioListFilter struct {
	ExecutorID string
	Search     string
	SortBy     PortfolioSort
	SortOrder  domain.SortOrder
	Pagination domain.Pagination
}

// HealthRepository exposes dependency health information for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
