package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

var testNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

type repoError struct {
	op          string
	notFound    bool
	conflict    bool
	unavailable bool
	invalid     bool
}

func (e repoError) Error() string {
	return "repo " + e.op
}

func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }
func (e repoError) IsInvalid() bool     { return e.invalid }

func notFoundErr(op string) error    { return repoError{op: op + ": not found", notFound: true} }
func conflictErr(op string) error    { return repoError{op: op + ": conflict", conflict: true} }
func unavailableErr(op string) error { return repoError{op: op + ": unavailable", unavailable: true} }
func invalidErr(op string) error     { return repoError{op: op + ": out of range", invalid: true} }

// memoryStore backs every in-memory repository used by the service tests. Entries in
// fail short-circuit the named operation (for example "orders.UpdateStatus").
type memoryStore struct {
	services  map[string]domain.Service
	costs     map[string]domain.CostCalculation
	executors map[string]domain.Executor
	links     map[string]domain.CatalogLink
	statuses  []domain.OrderStatusRecord
	orders    map[string]domain.Order
	orderSeq  []string
	reviews   map[string]domain.Review
	reviewSeq []string
	carts     map[string]domain.Cart
	cartItems map[string][]domain.CartItem
	news      map[string]domain.NewsArticle
	newsSeq   []string
	messages  map[string]domain.Message
	msgSeq    []string
	portfolio map[string]domain.PortfolioItem
	itemSeq   []string
	fail      map[string]error
	calls     map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		services:  map[string]domain.Service{},
		costs:     map[string]domain.CostCalculation{},
		executors: map[string]domain.Executor{},
		links:     map[string]domain.CatalogLink{},
		statuses: []domain.OrderStatusRecord{
			{ID: 1, Code: domain.OrderStatusNew, Label: "New"},
			{ID: 2, Code: domain.OrderStatusProcessing, Label: "Processing"},
			{ID: 3, Code: domain.OrderStatusCompleted, Label: "Completed"},
			{ID: 4, Code: domain.OrderStatusCancelled, Label: "Cancelled"},
		},
		orders:    map[string]domain.Order{},
		reviews:   map[string]domain.Review{},
		carts:     map[string]domain.Cart{},
		cartItems: map[string][]domain.CartItem{},
		news:      map[string]domain.NewsArticle{},
		messages:  map[string]domain.Message{},
		portfolio: map[string]domain.PortfolioItem{},
		fail:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (m *memoryStore) enter(op string) error {
	m.calls[op]++
	return m.fail[op]
}

func (m *memoryStore) addService(id, name, price string, hours int) domain.Service {
	service := domain.Service{
		ID:            id,
		Name:          name,
		BasePrice:     decimal.RequireFromString(price),
		DurationHours: hours,
		CreatedAt:     testNow.Add(-time.Duration(len(m.services)+1) * time.Hour),
		UpdatedAt:     testNow,
	}
	m.services[id] = service
	return service
}

func (m *memoryStore) addExecutor(id, userID string) domain.Executor {
	executor := domain.Executor{ID: id, UserID: userID, Specialization: "plumbing", ExperienceYears: 3, CreatedAt: testNow}
	m.executors[id] = executor
	return executor
}

func (m *memoryStore) addLink(executorID, serviceID string, customPrice *string) domain.CatalogLink {
	link := domain.CatalogLink{
		ID:         "esl_" + executorID + "_" + serviceID,
		ExecutorID: executorID,
		ServiceID:  serviceID,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	if customPrice != nil {
		price := decimal.RequireFromString(*customPrice)
		link.CustomPrice = &price
	}
	m.links[linkKey(executorID, serviceID)] = link
	return link
}

func (m *memoryStore) addOrder(id, clientID string, executorID *string, serviceID string, status domain.OrderStatus) domain.Order {
	record, _ := m.status(status)
	order := domain.Order{
		ID:          id,
		ClientID:    &clientID,
		ExecutorID:  executorID,
		ServiceID:   &serviceID,
		StatusID:    record.ID,
		Status:      status,
		ScheduledAt: testNow.Add(24 * time.Hour),
		CreatedAt:   testNow.Add(-time.Duration(len(m.orders)+1) * time.Minute),
		UpdatedAt:   testNow,
	}
	if status.IsTerminal() {
		completed := testNow
		order.CompletedAt = &completed
	}
	m.orders[id] = order
	m.orderSeq = append(m.orderSeq, id)
	return order
}

func (m *memoryStore) status(code domain.OrderStatus) (domain.OrderStatusRecord, bool) {
	for _, record := range m.statuses {
		if record.Code == code {
			return record, true
		}
	}
	return domain.OrderStatusRecord{}, false
}

func (m *memoryStore) serviceRepo() repositories.ServiceRepository { return memoryServiceRepo{m} }

func (m *memoryStore) costRepo() repositories.CostCalculationRepository { return memoryCostRepo{m} }

func (m *memoryStore) executorRepo() repositories.ExecutorRepository { return memoryExecutorRepo{m} }

func (m *memoryStore) catalogRepo() repositories.CatalogRepository { return memoryCatalogRepo{m} }

func (m *memoryStore) statusRepo() repositories.OrderStatusRepository { return memoryStatusRepo{m} }

func (m *memoryStore) orderRepo() repositories.OrderRepository { return memoryOrderRepo{m} }

func (m *memoryStore) reviewRepo() repositories.ReviewRepository { return memoryReviewRepo{m} }

func (m *memoryStore) cartRepo() repositories.CartRepository { return memoryCartRepo{m} }

func (m *memoryStore) newsRepo() repositories.NewsRepository { return memoryNewsRepo{m} }

func (m *memoryStore) messageRepo() repositories.MessageRepository { return memoryMessageRepo{m} }

func (m *memoryStore) portfolioRepo() repositories.PortfolioRepository { return memoryPortfolioRepo{m} }

func linkKey(executorID, serviceID string) string {
	return executorID + "|" + serviceID
}

type memoryServiceRepo struct{ m *memoryStore }

func (r memoryServiceRepo) Insert(_ context.Context, service domain.Service) error {
	if err := r.m.enter("services.Insert"); err != nil {
		return err
	}
	if _, ok := r.m.services[service.ID]; ok {
		return conflictErr("services.Insert")
	}
	r.m.services[service.ID] = service
	return nil
}

func (r memoryServiceRepo) Update(_ context.Context, service domain.Service) error {
	if err := r.m.enter("services.Update"); err != nil {
		return err
	}
	if _, ok := r.m.services[service.ID]; !ok {
		return notFoundErr("services.Update")
	}
	r.m.services[service.ID] = service
	return nil
}

func (r memoryServiceRepo) Delete(_ context.Context, serviceID string) error {
	if err := r.m.enter("services.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.services[serviceID]; !ok {
		return notFoundErr("services.Delete")
	}
	delete(r.m.services, serviceID)
	delete(r.m.costs, serviceID)
	return nil
}

func (r memoryServiceRepo) FindByID(_ context.Context, serviceID string) (domain.Service, error) {
	if err := r.m.enter("services.FindByID"); err != nil {
		return domain.Service{}, err
	}
	service, ok := r.m.services[serviceID]
	if !ok {
		return domain.Service{}, notFoundErr("services.FindByID")
	}
	return service, nil
}

func (r memoryServiceRepo) List(_ context.Context, filter repositories.ServiceListFilter) (domain.CursorPage[domain.Service], error) {
	if err := r.m.enter("services.List"); err != nil {
		return domain.CursorPage[domain.Service]{}, err
	}
	search := strings.ToLower(filter.Search)
	var items []domain.Service
	for _, service := range r.m.services {
		if search != "" && !strings.Contains(strings.ToLower(service.Name+" "+service.Description), search) {
			continue
		}
		if filter.Price.From != nil && service.BasePrice.LessThan(*filter.Price.From) {
			continue
		}
		if filter.Price.To != nil && service.BasePrice.GreaterThan(*filter.Price.To) {
			continue
		}
		if filter.DurationHours != nil && service.DurationHours != *filter.DurationHours {
			continue
		}
		items = append(items, service)
	}
	sort.Slice(items, func(i, j int) bool {
		less := items[i].Name < items[j].Name
		if filter.SortBy == repositories.ServiceSortBasePrice {
			less = items[i].BasePrice.LessThan(items[j].BasePrice)
		}
		if filter.SortOrder == domain.SortDesc {
			return !less
		}
		return less
	})
	return domain.CursorPage[domain.Service]{Items: items}, nil
}

func (r memoryServiceRepo) ListWithoutOrders(_ context.Context, _ domain.Pagination) (domain.CursorPage[domain.Service], error) {
	if err := r.m.enter("services.ListWithoutOrders"); err != nil {
		return domain.CursorPage[domain.Service]{}, err
	}
	ordered := map[string]bool{}
	for _, order := range r.m.orders {
		if order.ServiceID != nil {
			ordered[*order.ServiceID] = true
		}
	}
	var items []domain.Service
	for id, service := range r.m.services {
		if !ordered[id] {
			items = append(items, service)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Service]{Items: items}, nil
}

type memoryCostRepo struct{ m *memoryStore }

func (r memoryCostRepo) Upsert(_ context.Context, calc domain.CostCalculation) (domain.CostCalculation, error) {
	if err := r.m.enter("costs.Upsert"); err != nil {
		return domain.CostCalculation{}, err
	}
	r.m.costs[calc.ServiceID] = calc
	return calc, nil
}

func (r memoryCostRepo) FindByServiceID(_ context.Context, serviceID string) (domain.CostCalculation, error) {
	if err := r.m.enter("costs.FindByServiceID"); err != nil {
		return domain.CostCalculation{}, err
	}
	calc, ok := r.m.costs[serviceID]
	if !ok {
		return domain.CostCalculation{}, notFoundErr("costs.FindByServiceID")
	}
	return calc, nil
}

type memoryExecutorRepo struct{ m *memoryStore }

func (r memoryExecutorRepo) Insert(_ context.Context, executor domain.Executor) error {
	if err := r.m.enter("executors.Insert"); err != nil {
		return err
	}
	for _, existing := range r.m.executors {
		if existing.UserID == executor.UserID {
			return conflictErr("executors.Insert")
		}
	}
	r.m.executors[executor.ID] = executor
	return nil
}

func (r memoryExecutorRepo) FindByID(_ context.Context, executorID string) (domain.Executor, error) {
	if err := r.m.enter("executors.FindByID"); err != nil {
		return domain.Executor{}, err
	}
	executor, ok := r.m.executors[executorID]
	if !ok {
		return domain.Executor{}, notFoundErr("executors.FindByID")
	}
	return executor, nil
}

func (r memoryExecutorRepo) FindByUserID(_ context.Context, userID string) (domain.Executor, error) {
	if err := r.m.enter("executors.FindByUserID"); err != nil {
		return domain.Executor{}, err
	}
	for _, executor := range r.m.executors {
		if executor.UserID == userID {
			return executor, nil
		}
	}
	return domain.Executor{}, notFoundErr("executors.FindByUserID")
}

func (r memoryExecutorRepo) List(_ context.Context, filter repositories.ExecutorListFilter) (domain.CursorPage[domain.Executor], error) {
	if err := r.m.enter("executors.List"); err != nil {
		return domain.CursorPage[domain.Executor]{}, err
	}
	var items []domain.Executor
	for _, executor := range r.m.executors {
		if filter.Specialization != "" && !strings.Contains(strings.ToLower(executor.Specialization), strings.ToLower(filter.Specialization)) {
			continue
		}
		if filter.MinExperienceYears != nil && executor.ExperienceYears < *filter.MinExperienceYears {
			continue
		}
		if filter.OffersServiceID != "" {
			if _, ok := r.m.links[linkKey(executor.ID, filter.OffersServiceID)]; !ok {
				continue
			}
		}
		items = append(items, executor)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Executor]{Items: items}, nil
}

type memoryCatalogRepo struct{ m *memoryStore }

func (r memoryCatalogRepo) Insert(_ context.Context, link domain.CatalogLink) error {
	if err := r.m.enter("catalog.Insert"); err != nil {
		return err
	}
	key := linkKey(link.ExecutorID, link.ServiceID)
	if _, ok := r.m.links[key]; ok {
		return conflictErr("catalog.Insert")
	}
	r.m.links[key] = link
	return nil
}

func (r memoryCatalogRepo) UpdatePrice(_ context.Context, executorID, serviceID string, customPrice *decimal.Decimal, updatedAt time.Time) (domain.CatalogLink, error) {
	if err := r.m.enter("catalog.UpdatePrice"); err != nil {
		return domain.CatalogLink{}, err
	}
	key := linkKey(executorID, serviceID)
	link, ok := r.m.links[key]
	if !ok {
		return domain.CatalogLink{}, notFoundErr("catalog.UpdatePrice")
	}
	link.CustomPrice = customPrice
	link.UpdatedAt = updatedAt
	r.m.links[key] = link
	return link, nil
}

func (r memoryCatalogRepo) Delete(_ context.Context, executorID, serviceID string) error {
	if err := r.m.enter("catalog.Delete"); err != nil {
		return err
	}
	key := linkKey(executorID, serviceID)
	if _, ok := r.m.links[key]; !ok {
		return notFoundErr("catalog.Delete")
	}
	delete(r.m.links, key)
	return nil
}

func (r memoryCatalogRepo) FindLinkFor(_ context.Context, executorID, serviceID string) (domain.CatalogLink, error) {
	if err := r.m.enter("catalog.FindLinkFor"); err != nil {
		return domain.CatalogLink{}, err
	}
	link, ok := r.m.links[linkKey(executorID, serviceID)]
	if !ok {
		return domain.CatalogLink{}, notFoundErr("catalog.FindLinkFor")
	}
	return link, nil
}

func (r memoryCatalogRepo) Exists(_ context.Context, executorID, serviceID string) (bool, error) {
	if err := r.m.enter("catalog.Exists"); err != nil {
		return false, err
	}
	_, ok := r.m.links[linkKey(executorID, serviceID)]
	return ok, nil
}

func (r memoryCatalogRepo) ListByExecutor(_ context.Context, executorID string, _ domain.Pagination) (domain.CursorPage[domain.CatalogLink], error) {
	if err := r.m.enter("catalog.ListByExecutor"); err != nil {
		return domain.CursorPage[domain.CatalogLink]{}, err
	}
	var items []domain.CatalogLink
	for _, link := range r.m.links {
		if link.ExecutorID == executorID {
			items = append(items, link)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ServiceID < items[j].ServiceID })
	return domain.CursorPage[domain.CatalogLink]{Items: items}, nil
}

type memoryStatusRepo struct{ m *memoryStore }

func (r memoryStatusRepo) FindByCode(_ context.Context, code domain.OrderStatus) (domain.OrderStatusRecord, error) {
	if err := r.m.enter("statuses.FindByCode"); err != nil {
		return domain.OrderStatusRecord{}, err
	}
	record, ok := r.m.status(code)
	if !ok {
		return domain.OrderStatusRecord{}, notFoundErr("statuses.FindByCode")
	}
	return record, nil
}

func (r memoryStatusRepo) List(_ context.Context) ([]domain.OrderStatusRecord, error) {
	if err := r.m.enter("statuses.List"); err != nil {
		return nil, err
	}
	return append([]domain.OrderStatusRecord(nil), r.m.statuses...), nil
}

type memoryOrderRepo struct{ m *memoryStore }

func (r memoryOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if err := r.m.enter("orders.Insert"); err != nil {
		return err
	}
	if _, ok := r.m.orders[order.ID]; ok {
		return conflictErr("orders.Insert")
	}
	r.m.orders[order.ID] = order
	r.m.orderSeq = append(r.m.orderSeq, order.ID)
	return nil
}

func (r memoryOrderRepo) FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	if err := r.m.enter("orders.FindByIDForUpdate"); err != nil {
		return domain.Order{}, err
	}
	return r.find(orderID)
}

func (r memoryOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	if err := r.m.enter("orders.FindByID"); err != nil {
		return domain.Order{}, err
	}
	return r.find(orderID)
}

func (r memoryOrderRepo) find(orderID string) (domain.Order, error) {
	order, ok := r.m.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("orders.FindByID")
	}
	return order, nil
}

func (r memoryOrderRepo) UpdateStatus(_ context.Context, order domain.Order) error {
	if err := r.m.enter("orders.UpdateStatus"); err != nil {
		return err
	}
	stored, ok := r.m.orders[order.ID]
	if !ok {
		return notFoundErr("orders.UpdateStatus")
	}
	stored.Status = order.Status
	stored.StatusID = order.StatusID
	stored.CompletedAt = order.CompletedAt
	stored.UpdatedAt = order.UpdatedAt
	r.m.orders[order.ID] = stored
	return nil
}

func (r memoryOrderRepo) FindOrdersFor(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if err := r.m.enter("orders.FindOrdersFor"); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	var items []domain.Order
	for _, id := range r.m.orderSeq {
		order := r.m.orders[id]
		if filter.VisibleToUserID != "" && !r.visible(order, filter.VisibleToUserID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, order.Status) {
			continue
		}
		if filter.ServiceID != "" && (order.ServiceID == nil || *order.ServiceID != filter.ServiceID) {
			continue
		}
		if filter.ExecutorID != "" && (order.ExecutorID == nil || *order.ExecutorID != filter.ExecutorID) {
			continue
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (r memoryOrderRepo) visible(order domain.Order, userID string) bool {
	if order.ClientID != nil && *order.ClientID == userID {
		return true
	}
	if order.ExecutorID == nil {
		return false
	}
	executor, ok := r.m.executors[*order.ExecutorID]
	return ok && executor.UserID == userID
}

func containsStatus(statuses []domain.OrderStatus, status domain.OrderStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

type memoryReviewRepo struct{ m *memoryStore }

func (r memoryReviewRepo) Insert(_ context.Context, review domain.Review) error {
	if err := r.m.enter("reviews.Insert"); err != nil {
		return err
	}
	if _, ok := r.m.executors[review.ExecutorID]; !ok {
		return notFoundErr("reviews.Insert")
	}
	if review.OrderID != nil {
		for _, existing := range r.m.reviews {
			if existing.OrderID != nil && *existing.OrderID == *review.OrderID && existing.UserID == review.UserID {
				return conflictErr("reviews.Insert")
			}
		}
	}
	r.m.reviews[review.ID] = review
	r.m.reviewSeq = append(r.m.reviewSeq, review.ID)
	return nil
}

func (r memoryReviewRepo) Update(_ context.Context, review domain.Review) error {
	if err := r.m.enter("reviews.Update"); err != nil {
		return err
	}
	if _, ok := r.m.reviews[review.ID]; !ok {
		return notFoundErr("reviews.Update")
	}
	r.m.reviews[review.ID] = review
	return nil
}

func (r memoryReviewRepo) Delete(_ context.Context, reviewID string) error {
	if err := r.m.enter("reviews.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.reviews[reviewID]; !ok {
		return notFoundErr("reviews.Delete")
	}
	delete(r.m.reviews, reviewID)
	return nil
}

func (r memoryReviewRepo) FindByID(_ context.Context, reviewID string) (domain.Review, error) {
	if err := r.m.enter("reviews.FindByID"); err != nil {
		return domain.Review{}, err
	}
	review, ok := r.m.reviews[reviewID]
	if !ok {
		return domain.Review{}, notFoundErr("reviews.FindByID")
	}
	return review, nil
}

func (r memoryReviewRepo) ExistsForUserOrder(_ context.Context, userID, orderID string) (bool, error) {
	if err := r.m.enter("reviews.ExistsForUserOrder"); err != nil {
		return false, err
	}
	for _, review := range r.m.reviews {
		if review.UserID == userID && review.OrderID != nil && *review.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryReviewRepo) List(_ context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	if err := r.m.enter("reviews.List"); err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	var items []domain.Review
	for _, id := range r.m.reviewSeq {
		review, ok := r.m.reviews[id]
		if !ok {
			continue
		}
		if filter.ExecutorID != "" && review.ExecutorID != filter.ExecutorID {
			continue
		}
		if filter.UserID != "" && review.UserID != filter.UserID {
			continue
		}
		if filter.OrderID != "" && (review.OrderID == nil || *review.OrderID != filter.OrderID) {
			continue
		}
		if filter.Rating != nil && review.Rating != *filter.Rating {
			continue
		}
		items = append(items, review)
	}
	return domain.CursorPage[domain.Review]{Items: items}, nil
}

type memoryCartRepo struct{ m *memoryStore }

func (r memoryCartRepo) GetOrCreate(_ context.Context, cartID, userID string, now time.Time) (domain.Cart, error) {
	if err := r.m.enter("carts.GetOrCreate"); err != nil {
		return domain.Cart{}, err
	}
	cart, ok := r.m.carts[userID]
	if !ok {
		cart = domain.Cart{ID: cartID, UserID: userID, CreatedAt: now, UpdatedAt: now}
		r.m.carts[userID] = cart
	}
	cart.Items = nil
	for _, item := range r.m.cartItems[cart.ID] {
		cart.Items = append(cart.Items, r.hydrate(item))
	}
	return cart, nil
}

func (r memoryCartRepo) hydrate(item domain.CartItem) domain.CartItem {
	service := r.m.services[item.ServiceID]
	item.ServiceName = service.Name
	item.ServicePrice = service.BasePrice
	return item
}

func (r memoryCartRepo) IncrementItem(_ context.Context, item domain.CartItem) (domain.CartItem, bool, error) {
	if err := r.m.enter("carts.IncrementItem"); err != nil {
		return domain.CartItem{}, false, err
	}
	if _, ok := r.m.services[item.ServiceID]; !ok {
		return domain.CartItem{}, false, notFoundErr("carts.IncrementItem")
	}
	items := r.m.cartItems[item.CartID]
	for i := range items {
		if items[i].ServiceID == item.ServiceID {
			if items[i].Quantity+item.Quantity > math.MaxInt32 {
				return domain.CartItem{}, false, invalidErr("carts.IncrementItem")
			}
			items[i].Quantity += item.Quantity
			return r.hydrate(items[i]), false, nil
		}
	}
	r.m.cartItems[item.CartID] = append(items, item)
	return r.hydrate(item), true, nil
}

func (r memoryCartRepo) SetItemQuantity(_ context.Context, cartID, itemID string, quantity int) (domain.CartItem, error) {
	if err := r.m.enter("carts.SetItemQuantity"); err != nil {
		return domain.CartItem{}, err
	}
	items := r.m.cartItems[cartID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			return r.hydrate(items[i]), nil
		}
	}
	return domain.CartItem{}, notFoundErr("carts.SetItemQuantity")
}

func (r memoryCartRepo) DeleteItem(_ context.Context, cartID, itemID string) error {
	if err := r.m.enter("carts.DeleteItem"); err != nil {
		return err
	}
	items := r.m.cartItems[cartID]
	for i := range items {
		if items[i].ID == itemID {
			r.m.cartItems[cartID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return notFoundErr("carts.DeleteItem")
}

func (r memoryCartRepo) DeleteItems(_ context.Context, cartID string) error {
	if err := r.m.enter("carts.DeleteItems"); err != nil {
		return err
	}
	delete(r.m.cartItems, cartID)
	return nil
}

func (r memoryCartRepo) Touch(_ context.Context, cartID string, updatedAt time.Time) error {
	if err := r.m.enter("carts.Touch"); err != nil {
		return err
	}
	for userID, cart := range r.m.carts {
		if cart.ID == cartID {
			cart.UpdatedAt = updatedAt
			r.m.carts[userID] = cart
			return nil
		}
	}
	return notFoundErr("carts.Touch")
}

type memoryNewsRepo struct{ m *memoryStore }

func (r memoryNewsRepo) Insert(_ context.Context, article domain.NewsArticle) error {
	if err := r.m.enter("news.Insert"); err != nil {
		return err
	}
	r.m.news[article.ID] = article
	r.m.newsSeq = append(r.m.newsSeq, article.ID)
	return nil
}

func (r memoryNewsRepo) Update(_ context.Context, article domain.NewsArticle) error {
	if err := r.m.enter("news.Update"); err != nil {
		return err
	}
	if _, ok := r.m.news[article.ID]; !ok {
		return notFoundErr("news.Update")
	}
	r.m.news[article.ID] = article
	return nil
}

func (r memoryNewsRepo) Delete(_ context.Context, newsID string) error {
	if err := r.m.enter("news.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.news[newsID]; !ok {
		return notFoundErr("news.Delete")
	}
	delete(r.m.news, newsID)
	return nil
}

func (r memoryNewsRepo) FindByID(_ context.Context, newsID string) (domain.NewsArticle, error) {
	if err := r.m.enter("news.FindByID"); err != nil {
		return domain.NewsArticle{}, err
	}
	article, ok := r.m.news[newsID]
	if !ok {
		return domain.NewsArticle{}, notFoundErr("news.FindByID")
	}
	return article, nil
}

func (r memoryNewsRepo) List(_ context.Context, filter repositories.NewsListFilter) (domain.CursorPage[domain.NewsArticle], error) {
	if err := r.m.enter("news.List"); err != nil {
		return domain.CursorPage[domain.NewsArticle]{}, err
	}
	var items []domain.NewsArticle
	for _, id := range r.m.newsSeq {
		article, ok := r.m.news[id]
		if !ok {
			continue
		}
		if filter.AuthorID != "" && (article.AuthorID == nil || *article.AuthorID != filter.AuthorID) {
			continue
		}
		if filter.Search != "" && !containsFold(filter.Search, article.Title, article.Content) {
			continue
		}
		items = append(items, article)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return domain.CursorPage[domain.NewsArticle]{Items: items}, nil
}

type memoryMessageRepo struct{ m *memoryStore }

func (r memoryMessageRepo) Insert(_ context.Context, msg domain.Message) error {
	if err := r.m.enter("messages.Insert"); err != nil {
		return err
	}
	r.m.messages[msg.ID] = msg
	r.m.msgSeq = append(r.m.msgSeq, msg.ID)
	return nil
}

func (r memoryMessageRepo) FindByID(_ context.Context, messageID string) (domain.Message, error) {
	if err := r.m.enter("messages.FindByID"); err != nil {
		return domain.Message{}, err
	}
	msg, ok := r.m.messages[messageID]
	if !ok {
		return domain.Message{}, notFoundErr("messages.FindByID")
	}
	return msg, nil
}

func (r memoryMessageRepo) MarkRead(_ context.Context, messageID string) (domain.Message, error) {
	if err := r.m.enter("messages.MarkRead"); err != nil {
		return domain.Message{}, err
	}
	msg, ok := r.m.messages[messageID]
	if !ok {
		return domain.Message{}, notFoundErr("messages.MarkRead")
	}
	msg.IsRead = true
	r.m.messages[messageID] = msg
	return msg, nil
}

func (r memoryMessageRepo) Delete(_ context.Context, messageID string) error {
	if err := r.m.enter("messages.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.messages[messageID]; !ok {
		return notFoundErr("messages.Delete")
	}
	delete(r.m.messages, messageID)
	return nil
}

func (r memoryMessageRepo) List(_ context.Context, filter repositories.MessageListFilter) (domain.CursorPage[domain.Message], error) {
	if err := r.m.enter("messages.List"); err != nil {
		return domain.CursorPage[domain.Message]{}, err
	}
	var items []domain.Message
	for i := len(r.m.msgSeq) - 1; i >= 0; i-- {
		msg, ok := r.m.messages[r.m.msgSeq[i]]
		if !ok {
			continue
		}
		if msg.SenderID != filter.ParticipantID && msg.ReceiverID != filter.ParticipantID {
			continue
		}
		if filter.SenderID != "" && msg.SenderID != filter.SenderID {
			continue
		}
		if filter.ReceiverID != "" && msg.ReceiverID != filter.ReceiverID {
			continue
		}
		if filter.IsRead != nil && msg.IsRead != *filter.IsRead {
			continue
		}
		items = append(items, msg)
	}
	return domain.CursorPage[domain.Message]{Items: items}, nil
}

type memoryPortfolioRepo struct{ m *memoryStore }

func (r memoryPortfolioRepo) Insert(_ context.Context, item domain.PortfolioItem) error {
	if err := r.m.enter("portfolio.Insert"); err != nil {
		return err
	}
	if _, ok := r.m.executors[item.ExecutorID]; !ok {
		return notFoundErr("portfolio.Insert")
	}
	r.m.portfolio[item.ID] = item
	r.m.itemSeq = append(r.m.itemSeq, item.ID)
	return nil
}

func (r memoryPortfolioRepo) Update(_ context.Context, item domain.PortfolioItem) error {
	if err := r.m.enter("portfolio.Update"); err != nil {
		return err
	}
	if _, ok := r.m.portfolio[item.ID]; !ok {
		return notFoundErr("portfolio.Update")
	}
	r.m.portfolio[item.ID] = item
	return nil
}

func (r memoryPortfolioRepo) Delete(_ context.Context, itemID string) error {
	if err := r.m.enter("portfolio.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.portfolio[itemID]; !ok {
		return notFoundErr("portfolio.Delete")
	}
	delete(r.m.portfolio, itemID)
	return nil
}

func (r memoryPortfolioRepo) FindByID(_ context.Context, itemID string) (domain.PortfolioItem, error) {
	if err := r.m.enter("portfolio.FindByID"); err != nil {
		return domain.PortfolioItem{}, err
	}
	item, ok := r.m.portfolio[itemID]
	if !ok {
		return domain.PortfolioItem{}, notFoundErr("portfolio.FindByID")
	}
	return item, nil
}

func (r memoryPortfolioRepo) List(_ context.Context, filter repositories.PortfolioListFilter) (domain.CursorPage[domain.PortfolioItem], error) {
	if err := r.m.enter("portfolio.List"); err != nil {
		return domain.CursorPage[domain.PortfolioItem]{}, err
	}
	var items []domain.PortfolioItem
	for _, id := range r.m.itemSeq {
		item, ok := r.m.portfolio[id]
		if !ok {
			continue
		}
		if filter.ExecutorID != "" && item.ExecutorID != filter.ExecutorID {
			continue
		}
		if filter.Search != "" && !containsFold(filter.Search, item.Title, item.Description) {
			continue
		}
		items = append(items, item)
	}
	return domain.CursorPage[domain.PortfolioItem]{Items: items}, nil
}

func containsFold(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

type stubUnitOfWork struct {
	calls int
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	return fn(ctx)
}

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) generate() string {
	s.next++
	return fmt.Sprintf("%04d", s.next)
}

func fixedClock() time.Time {
	return testNow
}

func strPtr(v string) *string {
	return &v
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireIs(err error, targets ...error) error {
	for _, target := range targets {
		if !errors.Is(err, target) {
			return fmt.Errorf("expected %v to match %v", err, target)
		}
	}
	return nil
}
