package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/repositories"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// ServiceHandlers exposes the service catalogue, its cost calculator and the catalogue insights.
type ServiceHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

func NewServiceHandlers(authn *auth.Authenticator, catalog services.CatalogService) *ServiceHandlers {
	return &ServiceHandlers{authn: authn, catalog: catalog}
}

// Routes registers the /services endpoints. Reads are public.
func (h *ServiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalAuth())
		}
		public.Get("/", h.listServices)
		public.Get("/insights/premium", h.listPremium)
		public.Get("/{serviceID}", h.getService)
		public.Get("/{serviceID}/cost", h.getCost)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Post("/", h.createService)
		private.Patch("/{serviceID}", h.updateService)
		private.Delete("/{serviceID}", h.deleteService)
		private.Put("/{serviceID}/cost", h.setCost)
		private.Get("/insights/unordered", h.listUnordered)
	})
}

type servicePayload struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	BasePrice     string  `json:"base_price"`
	DurationHours int     `json:"duration_hours"`
	DurationDays  float64 `json:"duration_days"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type serviceListResponse struct {
	Items         []servicePayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type createServiceRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=4000"`
	BasePrice     decimal.Decimal `json:"base_price"`
	DurationHours int             `json:"duration_hours" validate:"gte=0"`
}

type updateServiceRequest struct {
	Name          null.String         `json:"name" validate:"omitempty,min=1,max=200"`
	Description   null.String         `json:"description" validate:"omitempty,max=4000"`
	BasePrice     decimal.NullDecimal `json:"base_price"`
	DurationHours null.Int            `json:"duration_hours" validate:"omitempty,gte=0"`
}

type costPayload struct {
	ServiceID      string `json:"service_id"`
	BasePrice      string `json:"base_price"`
	AdditionalCost string `json:"additional_cost"`
	TotalCost      string `json:"total_cost"`
	UpdatedAt      string `json:"updated_at"`
}

type setCostRequest struct {
	AdditionalCost decimal.Decimal `json:"additional_cost"`
}

var serviceOrderFields = []string{
	string(repositories.ServiceSortName),
	string(repositories.ServiceSortBasePrice),
	string(repositories.ServiceSortCreatedAt),
	string(repositories.ServiceSortDurationHours),
}

func (h *ServiceHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r, serviceOrderFields...)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.ServiceListFilter{
		Search:     strings.TrimSpace(query.Get("q")),
		Pagination: pageOf(params),
	}
	var err error
	if filter.Price.From, err = parseDecimalParam(query.Get("min_price")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be a non-negative amount with at most two decimals", http.StatusBadRequest))
		return
	}
	if filter.Price.To, err = parseDecimalParam(query.Get("max_price")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price must be a non-negative amount with at most two decimals", http.StatusBadRequest))
		return
	}
	if raw := strings.TrimSpace(query.Get("duration_hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "duration_hours must be an integer", http.StatusBadRequest))
			return
		}
		filter.DurationHours = &hours
	}
	if params.Order != nil {
		filter.SortBy = repositories.ServiceSort(params.Order.Field)
		filter.SortOrder = domain.SortAsc
		if params.Order.Desc {
			filter.SortOrder = domain.SortDesc
		}
	}

	page, err := h.catalog.ListServices(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildServiceList(page))
}

func (h *ServiceHandlers) listPremium(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	minPrice, err := parseDecimalParam(r.URL.Query().Get("min_price"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be a non-negative amount with at most two decimals", http.StatusBadRequest))
		return
	}
	page, err := h.catalog.ListPremiumServices(ctx, minPrice, pageOf(params))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildServiceList(page))
}

func (h *ServiceHandlers) listUnordered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	page, err := h.catalog.ListUnorderedServices(ctx, actor, pageOf(params))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildServiceList(page))
}

func (h *ServiceHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	service, err := h.catalog.GetService(ctx, chi.URLParam(r, "serviceID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildServicePayload(service))
}

func (h *ServiceHandlers) createService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req createServiceRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	service, err := h.catalog.CreateService(ctx, services.CreateServiceCommand{
		Actor:         actor,
		Name:          req.Name,
		Description:   req.Description,
		BasePrice:     req.BasePrice,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildServicePayload(service))
}

func (h *ServiceHandlers) updateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req updateServiceRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	service, err := h.catalog.UpdateService(ctx, services.UpdateServiceCommand{
		Actor:         actor,
		ServiceID:     chi.URLParam(r, "serviceID"),
		Name:          req.Name.Ptr(),
		Description:   req.Description.Ptr(),
		BasePrice:     decimalPtr(req.BasePrice),
		DurationHours: req.DurationHours.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildServicePayload(service))
}

func (h *ServiceHandlers) deleteService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.catalog.DeleteService(ctx, actor, chi.URLParam(r, "serviceID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ServiceHandlers) getCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	calc, err := h.catalog.GetCostCalculation(ctx, chi.URLParam(r, "serviceID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCostPayload(calc))
}

func (h *ServiceHandlers) setCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req setCostRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	calc, err := h.catalog.SetAdditionalCost(ctx, services.SetAdditionalCostCommand{
		Actor:          actor,
		ServiceID:      chi.URLParam(r, "serviceID"),
		AdditionalCost: req.AdditionalCost,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCostPayload(calc))
}

func buildServicePayload(service services.Service) servicePayload {
	return servicePayload{
		ID:            service.ID,
		Name:          service.Name,
		Description:   service.Description,
		BasePrice:     service.BasePrice.StringFixed(2),
		DurationHours: service.DurationHours,
		DurationDays:  service.DurationDays(),
		CreatedAt:     formatTime(service.CreatedAt),
		UpdatedAt:     formatTime(service.UpdatedAt),
	}
}

func buildServiceList(page domain.CursorPage[services.Service]) serviceListResponse {
	items := make([]servicePayload, 0, len(page.Items))
	for _, service := range page.Items {
		items = append(items, buildServicePayload(service))
	}
	return serviceListResponse{Items: items, NextPageToken: page.NextPageToken}
}

func buildCostPayload(calc services.CostCalculation) costPayload {
	return costPayload{
		ServiceID:      calc.ServiceID,
		BasePrice:      calc.BasePrice.StringFixed(2),
		AdditionalCost: calc.AdditionalCost.StringFixed(2),
		TotalCost:      calc.TotalCost.StringFixed(2),
		UpdatedAt:      formatTime(calc.UpdatedAt),
	}
}
