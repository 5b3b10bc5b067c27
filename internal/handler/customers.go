package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/enum"
)

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	ListCustomersByShop(ctx context.Context, arg database.ListCustomersByShopParams) ([]database.Customer, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	AdjustLoyaltyPoints(ctx context.Context, arg database.AdjustLoyaltyPointsParams) (database.Customer, error)
	CreateVehicle(ctx context.Context, arg database.CreateVehicleParams) (database.Vehicle, error)
	ListVehiclesByCustomer(ctx context.Context, customerID uuid.UUID) ([]database.Vehicle, error)
}

// CustomerHandler handles customer and vehicle endpoints.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/customers
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Post("/loyalty", h.AdjustLoyalty)
		r.Get("/vehicles", h.ListVehicles)
		r.Post("/vehicles", h.AddVehicle)
	})
}

// --- Request / Response types ---

type createCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type adjustLoyaltyRequest struct {
	Delta  int32  `json:"delta"`
	Reason string `json:"reason"`
}

type createVehicleRequest struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int32  `json:"year"`
	Color        string `json:"color"`
	SizeClass    string `json:"size_class"`
	LicensePlate string `json:"license_plate"`
}

type customerResponse struct {
	ID            uuid.UUID `json:"id"`
	ShopID        uuid.UUID `json:"shop_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         *string   `json:"email"`
	Notes         *string   `json:"notes"`
	LoyaltyPoints int32     `json:"loyalty_points"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type vehicleResponse struct {
	ID           uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         *int32    `json:"year"`
	Color        *string   `json:"color"`
	SizeClass    string    `json:"size_class"`
	LicensePlate *string   `json:"license_plate"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	resp := customerResponse{
		ID:            c.ID,
		ShopID:        c.ShopID,
		Name:          c.Name,
		Phone:         c.Phone,
		LoyaltyPoints: c.LoyaltyPoints,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Email.Valid {
		resp.Email = &c.Email.String
	}
	if c.Notes.Valid {
		resp.Notes = &c.Notes.String
	}
	return resp
}

func toVehicleResponse(v database.Vehicle) vehicleResponse {
	resp := vehicleResponse{
		ID:         v.ID,
		CustomerID: v.CustomerID,
		Make:       v.Make,
		Model:      v.Model,
		SizeClass:  v.SizeClass,
		CreatedAt:  v.CreatedAt,
	}
	if v.Year.Valid {
		resp.Year = &v.Year.Int32
	}
	if v.Color.Valid {
		resp.Color = &v.Color.String
	}
	if v.LicensePlate.Valid {
		resp.LicensePlate = &v.LicensePlate.String
	}
	return resp
}

// --- Handlers ---

// List returns all active customers for the given shop, with optional search.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	limit, offset := parsePagination(r)

	customers, err := h.store.ListCustomersByShop(r.Context(), database.ListCustomersByShopParams{
		ShopID: shopID,
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single customer by ID.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{
		ID:     customerID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Create adds a new customer to the given shop.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone is required"})
		return
	}

	customer, err := h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
		ShopID: shopID,
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  textOrNull(req.Email),
		Notes:  textOrNull(req.Notes),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone already exists for this shop"})
			return
		}
		log.Printf("ERROR: create customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// Update modifies an existing customer in the given shop.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and phone are required"})
		return
	}

	customer, err := h.store.UpdateCustomer(r.Context(), database.UpdateCustomerParams{
		ID:     customerID,
		ShopID: shopID,
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  textOrNull(req.Email),
		Notes:  textOrNull(req.Notes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone already exists for this shop"})
			return
		}
		log.Printf("ERROR: update customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// AdjustLoyalty manually credits or debits a customer's loyalty balance.
func (h *CustomerHandler) AdjustLoyalty(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	var req adjustLoyaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{
		ID:     customerID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer for loyalty: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if customer.LoyaltyPoints+req.Delta < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "insufficient loyalty points"})
		return
	}

	updated, err := h.store.AdjustLoyaltyPoints(r.Context(), database.AdjustLoyaltyPointsParams{
		ID:    customerID,
		Delta: req.Delta,
	})
	if err != nil {
		log.Printf("ERROR: adjust loyalty points: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(updated))
}

// ListVehicles returns all vehicles on file for a customer.
func (h *CustomerHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	// Verify customer exists and belongs to shop
	if _, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{
		ID:     customerID,
		ShopID: shopID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer for vehicles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	vehicles, err := h.store.ListVehiclesByCustomer(r.Context(), customerID)
	if err != nil {
		log.Printf("ERROR: list vehicles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]vehicleResponse, len(vehicles))
	for i, v := range vehicles {
		resp[i] = toVehicleResponse(v)
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddVehicle registers a vehicle under a customer.
func (h *CustomerHandler) AddVehicle(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	var req createVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Make == "" || req.Model == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "make and model are required"})
		return
	}

	if !isValidSizeClass(req.SizeClass) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size_class"})
		return
	}

	// Verify customer exists and belongs to shop
	if _, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{
		ID:     customerID,
		ShopID: shopID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer for vehicle: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	year := pgtype.Int4{}
	if req.Year > 0 {
		year = pgtype.Int4{Int32: req.Year, Valid: true}
	}

	vehicle, err := h.store.CreateVehicle(r.Context(), database.CreateVehicleParams{
		CustomerID:   customerID,
		Make:         req.Make,
		Model:        req.Model,
		Year:         year,
		Color:        textOrNull(req.Color),
		SizeClass:    req.SizeClass,
		LicensePlate: textOrNull(req.LicensePlate),
	})
	if err != nil {
		log.Printf("ERROR: create vehicle: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toVehicleResponse(vehicle))
}

// --- Helpers ---

func isValidSizeClass(sizeClass string) bool {
	switch sizeClass {
	case enum.VehicleSizeSedan, enum.VehicleSizeTruckSuv2Row,
		enum.VehicleSizeTruckSuv3Row, enum.VehicleSizeSuvVan:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func parsePagination(r *http.Request) (limit, offset int32) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = int32(v)
		}
	}
	if limit > 100 {
		limit = 100
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = int32(v)
		}
	}
	return limit, offset
}
