package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric fields.
type RangeQuery[T any] struct {
	From *T
	To   *T
}

// Service is a catalogue entry that clients order and executors offer.
type Service struct {
	ID            string
	Name          string
	Description   string
	BasePrice     decimal.Decimal
	DurationHours int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationDays converts the service duration to eight hour working days.
func (s Service) DurationDays() float64 {
	return float64(s.DurationHours) / 8.0
}

// CostCalculation keeps the derived cost breakdown for a service.
type CostCalculation struct {
	ServiceID      string
	BasePrice      decimal.Decimal
	AdditionalCost decimal.Decimal
	TotalCost      decimal.Decimal
	UpdatedAt      time.Time
}

// Executor is a service-provider profile owned by exactly one user.
type Executor struct {
	ID              string
	UserID          string
	Specialization  string
	ExperienceYears int
	PortfolioLink   *string
	CreatedAt       time.Time
}

// CatalogLink records that an executor offers a service, optionally at a custom price.
type CatalogLink struct {
	ID          string
	ExecutorID  string
	ServiceID   string
	CustomPrice *decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderStatus enumerates the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderStatusRecord is a row of the status lookup table orders reference.
type OrderStatusRecord struct {
	ID    int
	Code  OrderStatus
	Label string
}

// Order tracks a single service booking through its lifecycle.
type Order struct {
	ID          string
	ClientID    *string
	ExecutorID  *string
	ServiceID   *string
	StatusID    int
	Status      OrderStatus
	ScheduledAt time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Review is a rating left by a user about an executor.
type Review struct {
	ID         string
	UserID     string
	ExecutorID string
	OrderID    *string
	Rating     int
	Comment    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewsArticle is a studio announcement. AuthorID is nil once the author account is gone.
type NewsArticle struct {
	ID          string
	Title       string
	Content     string
	AuthorID    *string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// Message is a direct note from one user to another.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	SentAt     time.Time
	IsRead     bool
}

// PortfolioItem is a piece of past work shown on an executor profile.
type PortfolioItem struct {
	ID          string
	ExecutorID  string
	Title       string
	VideoLink   *string
	Description string
	UploadedAt  time.Time
	UpdatedAt   time.Time
}

// Cart is the per-user collection of services selected for purchase.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a single (cart, service) line. ServiceName and ServicePrice are read
// from the current service row and are not stored on the item.
type CartItem struct {
	ID           string
	CartID       string
	ServiceID    string
	ServiceName  string
	ServicePrice decimal.Decimal
	Quantity     int
	AddedAt      time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
