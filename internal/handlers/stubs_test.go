package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/services"
)

type stubCatalogService struct {
	services.CatalogService

	createServiceFunc func(context.Context, services.CreateServiceCommand) (services.Service, error)
	updateServiceFunc func(context.Context, services.UpdateServiceCommand) (services.Service, error)
	deleteServiceFunc func(context.Context, services.Actor, string) error
	getServiceFunc    func(context.Context, string) (services.Service, error)
	listServicesFunc  func(context.Context, services.ServiceListFilter) (domain.CursorPage[services.Service], error)
	listUnorderedFunc func(context.Context, services.Actor, services.Pagination) (domain.CursorPage[services.Service], error)
	listPremiumFunc   func(context.Context, *decimal.Decimal, services.Pagination) (domain.CursorPage[services.Service], error)
	getCostFunc       func(context.Context, string) (services.CostCalculation, error)
	setCostFunc       func(context.Context, services.SetAdditionalCostCommand) (services.CostCalculation, error)
	registerFunc      func(context.Context, services.RegisterExecutorCommand) (services.Executor, error)
	getExecutorFunc   func(context.Context, string) (services.Executor, error)
	listExecutorsFunc func(context.Context, services.ExecutorListFilter) (domain.CursorPage[services.Executor], error)
	linkFunc          func(context.Context, services.LinkServiceCommand) (services.CatalogLink, error)
	unlinkFunc        func(context.Context, services.UnlinkServiceCommand) error
	updateLinkFunc    func(context.Context, services.UpdateLinkPriceCommand) (services.CatalogLink, error)
	listOffersFunc    func(context.Context, string, services.Pagination) (domain.CursorPage[services.CatalogLink], error)
}

func (s *stubCatalogService) CreateService(ctx context.Context, cmd services.CreateServiceCommand) (services.Service, error) {
	return s.createServiceFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateService(ctx context.Context, cmd services.UpdateServiceCommand) (services.Service, error) {
	return s.updateServiceFunc(ctx, cmd)
}

func (s *stubCatalogService) DeleteService(ctx context.Context, actor services.Actor, serviceID string) error {
	return s.deleteServiceFunc(ctx, actor, serviceID)
}

func (s *stubCatalogService) GetService(ctx context.Context, serviceID string) (services.Service, error) {
	return s.getServiceFunc(ctx, serviceID)
}

func (s *stubCatalogService) ListServices(ctx context.Context, filter services.ServiceListFilter) (domain.CursorPage[services.Service], error) {
	return s.listServicesFunc(ctx, filter)
}

func (s *stubCatalogService) ListUnorderedServices(ctx context.Context, actor services.Actor, pager services.Pagination) (domain.CursorPage[services.Service], error) {
	return s.listUnorderedFunc(ctx, actor, pager)
}

func (s *stubCatalogService) ListPremiumServices(ctx context.Context, minPrice *decimal.Decimal, pager services.Pagination) (domain.CursorPage[services.Service], error) {
	return s.listPremiumFunc(ctx, minPrice, pager)
}

func (s *stubCatalogService) GetCostCalculation(ctx context.Context, serviceID string) (services.CostCalculation, error) {
	return s.getCostFunc(ctx, serviceID)
}

func (s *stubCatalogService) SetAdditionalCost(ctx context.Context, cmd services.SetAdditionalCostCommand) (services.CostCalculation, error) {
	return s.setCostFunc(ctx, cmd)
}

func (s *stubCatalogService) RegisterExecutor(ctx context.Context, cmd services.RegisterExecutorCommand) (services.Executor, error) {
	return s.registerFunc(ctx, cmd)
}

func (s *stubCatalogService) GetExecutor(ctx context.Context, executorID string) (services.Executor, error) {
	return s.getExecutorFunc(ctx, executorID)
}

func (s *stubCatalogService) ListExecutors(ctx context.Context, filter services.ExecutorListFilter) (domain.CursorPage[services.Executor], error) {
	return s.listExecutorsFunc(ctx, filter)
}

func (s *stubCatalogService) Link(ctx context.Context, cmd services.LinkServiceCommand) (services.CatalogLink, error) {
	return s.linkFunc(ctx, cmd)
}

func (s *stubCatalogService) Unlink(ctx context.Context, cmd services.UnlinkServiceCommand) error {
	return s.unlinkFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateLinkPrice(ctx context.Context, cmd services.UpdateLinkPriceCommand) (services.CatalogLink, error) {
	return s.updateLinkFunc(ctx, cmd)
}

func (s *stubCatalogService) ListOffers(ctx context.Context, executorID string, pager services.Pagination) (domain.CursorPage[services.CatalogLink], error) {
	return s.listOffersFunc(ctx, executorID, pager)
}

type stubPricingEngine struct {
	services.PricingEngine
	effectivePriceFunc func(context.Context, string, string) (decimal.Decimal, error)
}

func (s *stubPricingEngine) EffectivePrice(ctx context.Context, executorID, serviceID string) (decimal.Decimal, error) {
	return s.effectivePriceFunc(ctx, executorID, serviceID)
}

func (s *stubPricingEngine) LineItemCost(item services.CartItem) decimal.Decimal {
	return item.ServicePrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

type stubCartService struct {
	services.CartService

	getCartFunc     func(context.Context, string) (services.CartView, error)
	addItemFunc     func(context.Context, services.AddCartItemCommand) (services.CartItemResult, error)
	setQuantityFunc func(context.Context, services.SetCartItemQuantityCommand) (services.CartItem, error)
	removeItemFunc  func(context.Context, services.RemoveCartItemCommand) error
	clearFunc       func(context.Context, string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.CartView, error) {
	return s.getCartFunc(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.CartItemResult, error) {
	return s.addItemFunc(ctx, cmd)
}

func (s *stubCartService) SetItemQuantity(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.CartItem, error) {
	return s.setQuantityFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) error {
	return s.removeItemFunc(ctx, cmd)
}

func (s *stubCartService) Clear(ctx context.Context, userID string) error {
	return s.clearFunc(ctx, userID)
}

type stubOrderService struct {
	services.OrderService

	createFunc       func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFunc          func(context.Context, services.Actor, string) (services.Order, error)
	listFunc         func(context.Context, services.Actor, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	processFunc      func(context.Context, services.OrderTransitionCommand) (services.Order, error)
	completeFunc     func(context.Context, services.OrderTransitionCommand) (services.Order, error)
	cancelFunc       func(context.Context, services.OrderTransitionCommand) (services.Order, error)
	listStatusesFunc func(context.Context) ([]services.OrderStatusRecord, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	return s.getFunc(ctx, actor, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, actor services.Actor, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listFunc(ctx, actor, filter)
}

func (s *stubOrderService) MarkProcessing(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	return s.processFunc(ctx, cmd)
}

func (s *stubOrderService) MarkCompleted(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	return s.completeFunc(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.OrderTransitionCommand) (services.Order, error) {
	return s.cancelFunc(ctx, cmd)
}

func (s *stubOrderService) ListStatuses(ctx context.Context) ([]services.OrderStatusRecord, error) {
	return s.listStatusesFunc(ctx)
}

type stubReviewService struct {
	services.ReviewService

	canReviewFunc func(context.Context, services.ReviewEligibilityQuery) error
	createFunc    func(context.Context, services.CreateReviewCommand) (services.Review, error)
	updateFunc    func(context.Context, services.UpdateReviewCommand) (services.Review, error)
	deleteFunc    func(context.Context, services.Actor, string) error
	listFunc      func(context.Context, services.ReviewListFilter) (domain.CursorPage[services.Review], error)
}

func (s *stubReviewService) CanReview(ctx context.Context, query services.ReviewEligibilityQuery) error {
	return s.canReviewFunc(ctx, query)
}

func (s *stubReviewService) CreateReview(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubReviewService) UpdateReview(ctx context.Context, cmd services.UpdateReviewCommand) (services.Review, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubReviewService) DeleteReview(ctx context.Context, actor services.Actor, reviewID string) error {
	return s.deleteFunc(ctx, actor, reviewID)
}

func (s *stubReviewService) ListReviews(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error) {
	return s.listFunc(ctx, filter)
}

type stubNewsService struct {
	services.NewsService

	createFunc func(context.Context, services.CreateNewsCommand) (services.NewsArticle, error)
	updateFunc func(context.Context, services.UpdateNewsCommand) (services.NewsArticle, error)
	deleteFunc func(context.Context, services.Actor, string) error
	getFunc    func(context.Context, string) (services.NewsArticle, error)
	listFunc   func(context.Context, services.NewsListFilter) (domain.CursorPage[services.NewsArticle], error)
}

func (s *stubNewsService) CreateNews(ctx context.Context, cmd services.CreateNewsCommand) (services.NewsArticle, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubNewsService) UpdateNews(ctx context.Context, cmd services.UpdateNewsCommand) (services.NewsArticle, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubNewsService) DeleteNews(ctx context.Context, actor services.Actor, newsID string) error {
	return s.deleteFunc(ctx, actor, newsID)
}

func (s *stubNewsService) GetNews(ctx context.Context, newsID string) (services.NewsArticle, error) {
	return s.getFunc(ctx, newsID)
}

func (s *stubNewsService) ListNews(ctx context.Context, filter services.NewsListFilter) (domain.CursorPage[services.NewsArticle], error) {
	return s.listFunc(ctx, filter)
}

type stubMessageService struct {
	services.MessageService

	sendFunc     func(context.Context, services.SendMessageCommand) (services.Message, error)
	getFunc      func(context.Context, services.Actor, string) (services.Message, error)
	listFunc     func(context.Context, services.Actor, services.MessageListFilter) (domain.CursorPage[services.Message], error)
	markReadFunc func(context.Context, services.Actor, string) (services.Message, error)
	deleteFunc   func(context.Context, services.Actor, string) error
}

func (s *stubMessageService) SendMessage(ctx context.Context, cmd services.SendMessageCommand) (services.Message, error) {
	return s.sendFunc(ctx, cmd)
}

func (s *stubMessageService) GetMessage(ctx context.Context, actor services.Actor, messageID string) (services.Message, error) {
	return s.getFunc(ctx, actor, messageID)
}

func (s *stubMessageService) ListMessages(ctx context.Context, actor services.Actor, filter services.MessageListFilter) (domain.CursorPage[services.Message], error) {
	return s.listFunc(ctx, actor, filter)
}

func (s *stubMessageService) MarkRead(ctx context.Context, actor services.Actor, messageID string) (services.Message, error) {
	return s.markReadFunc(ctx, actor, messageID)
}

func (s *stubMessageService) DeleteMessage(ctx context.Context, actor services.Actor, messageID string) error {
	return s.deleteFunc(ctx, actor, messageID)
}

type stubPortfolioService struct {
	services.PortfolioService

	createFunc func(context.Context, services.CreatePortfolioItemCommand) (services.PortfolioItem, error)
	updateFunc func(context.Context, services.UpdatePortfolioItemCommand) (services.PortfolioItem, error)
	deleteFunc func(context.Context, services.Actor, string) error
	getFunc    func(context.Context, string) (services.PortfolioItem, error)
	listFunc   func(context.Context, services.PortfolioFilter) (domain.CursorPage[services.PortfolioItem], error)
}

func (s *stubPortfolioService) CreatePortfolioItem(ctx context.Context, cmd services.CreatePortfolioItemCommand) (services.PortfolioItem, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubPortfolioService) UpdatePortfolioItem(ctx context.Context, cmd services.UpdatePortfolioItemCommand) (services.PortfolioItem, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubPortfolioService) DeletePortfolioItem(ctx context.Context, actor services.Actor, itemID string) error {
	return s.deleteFunc(ctx, actor, itemID)
}

func (s *stubPortfolioService) GetPortfolioItem(ctx context.Context, itemID string) (services.PortfolioItem, error) {
	return s.getFunc(ctx, itemID)
}

func (s *stubPortfolioService) ListPortfolioItems(ctx context.Context, filter services.PortfolioFilter) (domain.CursorPage[services.PortfolioItem], error) {
	return s.listFunc(ctx, filter)
}

type stubHealthService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthService) Readiness(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

// serve runs a request through the router, optionally as an authenticated user.
func serve(t *testing.T, router http.Handler, method, target, body string, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

var (
	clientIdentity = &auth.Identity{UID: "user_client", Roles: []string{auth.RoleUser}}
	adminIdentity  = &auth.Identity{UID: "user_admin", Roles: []string{auth.RoleAdmin}}
)

func strPtr(v string) *string { return &v }
