package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// ExecutorHandlers exposes executor profiles, the services they offer and their effective prices.
type ExecutorHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	pricing services.PricingEngine
}

func NewExecutorHandlers(authn *auth.Authenticator, catalog services.CatalogService, pricing services.PricingEngine) *ExecutorHandlers {
	return &ExecutorHandlers{authn: authn, catalog: catalog, pricing: pricing}
}

// Routes registers the /executors endpoints.
func (h *ExecutorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalAuth())
		}
		public.Get("/", h.listExecutors)
		public.Get("/{executorID}", h.getExecutor)
		public.Get("/{executorID}/offers", h.listOffers)
		public.Get("/{executorID}/offers/{serviceID}/price", h.effectivePrice)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireAuth())
		}
		private.Post("/", h.registerExecutor)
		private.Put("/{executorID}/offers/{serviceID}", h.linkService)
		private.Patch("/{executorID}/offers/{serviceID}", h.updateOfferPrice)
		private.Delete("/{executorID}/offers/{serviceID}", h.unlinkService)
	})
}

type executorPayload struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Specialization  string  `json:"specialization"`
	ExperienceYears int     `json:"experience_years"`
	PortfolioLink   *string `json:"portfolio_link,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type executorListResponse struct {
	Items         []executorPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type registerExecutorRequest struct {
	UserID          null.String `json:"user_id" validate:"omitempty,max=128"`
	Specialization  string      `json:"specialization" validate:"required,max=200"`
	ExperienceYears int         `json:"experience_years" validate:"gte=0,lte=80"`
	PortfolioLink   null.String `json:"portfolio_link" validate:"omitempty,url,max=500"`
}

type offerPayload struct {
	ID          string  `json:"id"`
	ExecutorID  string  `json:"executor_id"`
	ServiceID   string  `json:"service_id"`
	CustomPrice *string `json:"custom_price"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type offerListResponse struct {
	Items         []offerPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// offerPriceRequest carries an optional custom price; null or absent means the base price applies.
type offerPriceRequest struct {
	CustomPrice decimal.NullDecimal `json:"custom_price"`
}

type effectivePriceResponse struct {
	ExecutorID string `json:"executor_id"`
	ServiceID  string `json:"service_id"`
	Price      string `json:"price"`
}

func (h *ExecutorHandlers) listExecutors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.ExecutorListFilter{
		Specialization:  strings.TrimSpace(query.Get("specialization")),
		OffersServiceID: strings.TrimSpace(query.Get("service_id")),
		Pagination:      pageOf(params),
	}
	if raw := strings.TrimSpace(query.Get("min_experience")); raw != "" {
		years, err := strconv.Atoi(raw)
		if err != nil || years < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_experience must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.MinExperienceYears = &years
	}

	page, err := h.catalog.ListExecutors(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]executorPayload, 0, len(page.Items))
	for _, executor := range page.Items {
		items = append(items, buildExecutorPayload(executor))
	}
	httpx.WriteJSON(w, http.StatusOK, executorListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *ExecutorHandlers) getExecutor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	executor, err := h.catalog.GetExecutor(ctx, chi.URLParam(r, "executorID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildExecutorPayload(executor))
}

func (h *ExecutorHandlers) registerExecutor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req registerExecutorRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	executor, err := h.catalog.RegisterExecutor(ctx, services.RegisterExecutorCommand{
		Actor:           actor,
		UserID:          req.UserID.String,
		Specialization:  req.Specialization,
		ExperienceYears: req.ExperienceYears,
		PortfolioLink:   req.PortfolioLink.Ptr(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildExecutorPayload(executor))
}

func (h *ExecutorHandlers) listOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	page, err := h.catalog.ListOffers(ctx, chi.URLParam(r, "executorID"), pageOf(params))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]offerPayload, 0, len(page.Items))
	for _, link := range page.Items {
		items = append(items, buildOfferPayload(link))
	}
	httpx.WriteJSON(w, http.StatusOK, offerListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *ExecutorHandlers) linkService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	req, ok := h.decodeOptionalPrice(w, r)
	if !ok {
		return
	}
	link, err := h.catalog.Link(ctx, services.LinkServiceCommand{
		Actor:       actor,
		ExecutorID:  chi.URLParam(r, "executorID"),
		ServiceID:   chi.URLParam(r, "serviceID"),
		CustomPrice: decimalPtr(req.CustomPrice),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildOfferPayload(link))
}

func (h *ExecutorHandlers) updateOfferPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req offerPriceRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}
	link, err := h.catalog.UpdateLinkPrice(ctx, services.UpdateLinkPriceCommand{
		Actor:       actor,
		ExecutorID:  chi.URLParam(r, "executorID"),
		ServiceID:   chi.URLParam(r, "serviceID"),
		CustomPrice: decimalPtr(req.CustomPrice),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOfferPayload(link))
}

func (h *ExecutorHandlers) unlinkService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	err := h.catalog.Unlink(ctx, services.UnlinkServiceCommand{
		Actor:      actor,
		ExecutorID: chi.URLParam(r, "executorID"),
		ServiceID:  chi.URLParam(r, "serviceID"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ExecutorHandlers) effectivePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		writeUnavailable(ctx, w, "pricing")
		return
	}
	executorID := chi.URLParam(r, "executorID")
	serviceID := chi.URLParam(r, "serviceID")
	price, err := h.pricing.EffectivePrice(ctx, executorID, serviceID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, effectivePriceResponse{
		ExecutorID: executorID,
		ServiceID:  serviceID,
		Price:      price.StringFixed(2),
	})
}

// decodeOptionalPrice accepts an empty body on link creation.
func (h *ExecutorHandlers) decodeOptionalPrice(w http.ResponseWriter, r *http.Request) (offerPriceRequest, bool) {
	var req offerPriceRequest
	if r.ContentLength == 0 {
		return req, true
	}
	return req, decodeRequest(r.Context(), w, r, &req)
}

func buildExecutorPayload(executor services.Executor) executorPayload {
	return executorPayload{
		ID:              executor.ID,
		UserID:          executor.UserID,
		Specialization:  executor.Specialization,
		ExperienceYears: executor.ExperienceYears,
		PortfolioLink:   executor.PortfolioLink,
		CreatedAt:       formatTime(executor.CreatedAt),
	}
}

func buildOfferPayload(link services.CatalogLink) offerPayload {
	payload := offerPayload{
		ID:         link.ID,
		ExecutorID: link.ExecutorID,
		ServiceID:  link.ServiceID,
		CreatedAt:  formatTime(link.CreatedAt),
		UpdatedAt:  formatTime(link.UpdatedAt),
	}
	if link.CustomPrice != nil {
		price := link.CustomPrice.StringFixed(2)
		payload.CustomPrice = &price
	}
	return payload
}
