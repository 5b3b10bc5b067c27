package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/database"
)

// CatalogStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	ListProductsByShop(ctx context.Context, shopID uuid.UUID) ([]database.Product, error)

	CreateService(ctx context.Context, arg database.CreateServiceParams) (database.Service, error)
	GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	ListServicesByShop(ctx context.Context, shopID uuid.UUID) ([]database.Service, error)

	CreateServiceTier(ctx context.Context, arg database.CreateServiceTierParams) (database.ServiceTier, error)
	ListTiersByService(ctx context.Context, serviceID uuid.UUID) ([]database.ServiceTier, error)
}

// CatalogHandler handles product, service and pricing tier endpoints.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
	})
	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetService)
			r.Get("/tiers", h.ListTiers)
			r.Post("/tiers", h.CreateTier)
		})
	})
}

// --- Request / Response types ---

type createProductRequest struct {
	Name    string `json:"name"`
	Price   string `json:"price"`
	Taxable bool   `json:"taxable"`
}

type productResponse struct {
	ID      uuid.UUID `json:"id"`
	ShopID  uuid.UUID `json:"shop_id"`
	Name    string    `json:"name"`
	Price   string    `json:"price"`
	Taxable bool      `json:"taxable"`
}

type createServiceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Taxable     bool   `json:"taxable"`
}

type serviceResponse struct {
	ID          uuid.UUID      `json:"id"`
	ShopID      uuid.UUID      `json:"shop_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Taxable     bool           `json:"taxable"`
	Tiers       []tierResponse `json:"tiers,omitempty"`
}

type createTierRequest struct {
	Name             string `json:"name"`
	Label            string `json:"label"`
	Price            string `json:"price"`
	VehicleSizeAware bool   `json:"vehicle_size_aware"`
	SedanPrice       string `json:"sedan_price"`
	TruckSuvPrice    string `json:"truck_suv_price"`
	SuvVanPrice      string `json:"suv_van_price"`
	PerUnit          bool   `json:"per_unit"`
	PerUnitLabel     string `json:"per_unit_label"`
	PerUnitMax       int32  `json:"per_unit_max"`
	SortOrder        int32  `json:"sort_order"`
}

type tierResponse struct {
	ID               uuid.UUID `json:"id"`
	ServiceID        uuid.UUID `json:"service_id"`
	Name             string    `json:"name"`
	Label            string    `json:"label"`
	Price            string    `json:"price"`
	VehicleSizeAware bool      `json:"vehicle_size_aware"`
	SedanPrice       *string   `json:"sedan_price"`
	TruckSuvPrice    *string   `json:"truck_suv_price"`
	SuvVanPrice      *string   `json:"suv_van_price"`
	PerUnit          bool      `json:"per_unit"`
	PerUnitLabel     *string   `json:"per_unit_label"`
	PerUnitMax       *int32    `json:"per_unit_max"`
	SortOrder        int32     `json:"sort_order"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:      p.ID,
		ShopID:  p.ShopID,
		Name:    p.Name,
		Price:   numericToString(p.Price),
		Taxable: p.Taxable,
	}
}

func toServiceResponse(s database.Service, tiers []database.ServiceTier) serviceResponse {
	resp := serviceResponse{
		ID:      s.ID,
		ShopID:  s.ShopID,
		Name:    s.Name,
		Taxable: s.Taxable,
	}
	if s.Description.Valid {
		resp.Description = &s.Description.String
	}
	for _, t := range tiers {
		resp.Tiers = append(resp.Tiers, toTierResponse(t))
	}
	return resp
}

func toTierResponse(t database.ServiceTier) tierResponse {
	resp := tierResponse{
		ID:               t.ID,
		ServiceID:        t.ServiceID,
		Name:             t.Name,
		Label:            t.Label,
		Price:            numericToString(t.Price),
		VehicleSizeAware: t.VehicleSizeAware,
		PerUnit:          t.PerUnit,
		SortOrder:        t.SortOrder,
	}
	if t.SedanPrice.Valid {
		s := numericToString(t.SedanPrice)
		resp.SedanPrice = &s
	}
	if t.TruckSuvPrice.Valid {
		s := numericToString(t.TruckSuvPrice)
		resp.TruckSuvPrice = &s
	}
	if t.SuvVanPrice.Valid {
		s := numericToString(t.SuvVanPrice)
		resp.SuvVanPrice = &s
	}
	if t.PerUnitLabel.Valid {
		resp.PerUnitLabel = &t.PerUnitLabel.String
	}
	if t.PerUnitMax.Valid {
		resp.PerUnitMax = &t.PerUnitMax.Int32
	}
	return resp
}

// --- Handlers ---

// ListProducts returns all active products for the shop.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	products, err := h.store.ListProductsByShop(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateProduct adds a retail product to the shop catalog.
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		ShopID:  shopID,
		Name:    req.Name,
		Price:   database.DecimalToNumeric(price),
		Taxable: req.Taxable,
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// ListServices returns all active services for the shop.
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	services, err := h.store.ListServicesByShop(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list services: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]serviceResponse, len(services))
	for i, s := range services {
		resp[i] = toServiceResponse(s, nil)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateService adds a detailing service to the shop catalog.
func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	service, err := h.store.CreateService(r.Context(), database.CreateServiceParams{
		ShopID:      shopID,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		Taxable:     req.Taxable,
	})
	if err != nil {
		log.Printf("ERROR: create service: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toServiceResponse(service, nil))
}

// GetService returns a service with its pricing tiers.
func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service ID"})
		return
	}

	service, err := h.store.GetService(r.Context(), database.GetServiceParams{
		ID:     serviceID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "service not found"})
			return
		}
		log.Printf("ERROR: get service: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tiers, err := h.store.ListTiersByService(r.Context(), serviceID)
	if err != nil {
		log.Printf("ERROR: list tiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toServiceResponse(service, tiers))
}

// ListTiers returns the pricing tiers of a service.
func (h *CatalogHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service ID"})
		return
	}

	if _, err := h.store.GetService(r.Context(), database.GetServiceParams{
		ID:     serviceID,
		ShopID: shopID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "service not found"})
			return
		}
		log.Printf("ERROR: get service for tiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tiers, err := h.store.ListTiersByService(r.Context(), serviceID)
	if err != nil {
		log.Printf("ERROR: list tiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tierResponse, len(tiers))
	for i, t := range tiers {
		resp[i] = toTierResponse(t)
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateTier adds a pricing tier to a service. A size-aware tier carries
// per-size prices; its base price acts as the fallback for unknown sizes.
func (h *CatalogHandler) CreateTier(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service ID"})
		return
	}

	var req createTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and label are required"})
		return
	}

	if _, err := h.store.GetService(r.Context(), database.GetServiceParams{
		ID:     serviceID,
		ShopID: shopID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "service not found"})
			return
		}
		log.Printf("ERROR: get service for tier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	params := database.CreateServiceTierParams{
		ServiceID:        serviceID,
		Name:             req.Name,
		Label:            req.Label,
		Price:            database.DecimalToNumeric(price),
		VehicleSizeAware: req.VehicleSizeAware,
		PerUnit:          req.PerUnit,
		PerUnitLabel:     textOrNull(req.PerUnitLabel),
		SortOrder:        req.SortOrder,
	}
	if req.PerUnitMax > 0 {
		params.PerUnitMax = pgtype.Int4{Int32: req.PerUnitMax, Valid: true}
	}

	if req.VehicleSizeAware {
		params.SedanPrice, err = optionalPrice(req.SedanPrice)
		if err == nil {
			params.TruckSuvPrice, err = optionalPrice(req.TruckSuvPrice)
		}
		if err == nil {
			params.SuvVanPrice, err = optionalPrice(req.SuvVanPrice)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size price"})
			return
		}
	}

	tier, err := h.store.CreateServiceTier(r.Context(), params)
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "tier name already exists on this service"})
			return
		}
		log.Printf("ERROR: create tier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTierResponse(tier))
}

// --- Helpers ---

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("price must not be negative")
	}
	return d, nil
}

func optionalPrice(s string) (pgtype.Numeric, error) {
	if s == "" {
		return pgtype.Numeric{}, nil
	}
	d, err := parsePrice(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	return database.DecimalToNumeric(d), nil
}

func numericToString(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(2)
}
