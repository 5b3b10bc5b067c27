package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/middleware"
	"github.com/glosspos/api/internal/service"
	"github.com/glosspos/api/internal/ws"
)

// QuoteServicer defines the service methods needed by quote handlers.
// Satisfied by *service.QuoteService; narrow interface for testability.
type QuoteServicer interface {
	Create(ctx context.Context, req service.CreateQuoteRequest) (*service.QuoteResult, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*service.QuoteResult, error)
	List(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error)
	Send(ctx context.Context, shopID, id uuid.UUID, channel string) (*service.QuoteResult, error)
	MarkViewed(ctx context.Context, shopID, id uuid.UUID) (database.Quote, error)
	Accept(ctx context.Context, shopID, id uuid.UUID) (database.Quote, error)
}

// QuoteHandler handles quote lifecycle endpoints.
type QuoteHandler struct {
	svc QuoteServicer
	hub Broadcaster
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(svc QuoteServicer, hub Broadcaster) *QuoteHandler {
	return &QuoteHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers quote endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/quotes
func (h *QuoteHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/send", h.Send)
		r.Post("/view", h.MarkViewed)
		r.Post("/accept", h.Accept)
	})
}

// --- Request / Response types ---

type createQuoteRequest struct {
	CustomerID string `json:"customer_id"`
	VehicleID  string `json:"vehicle_id"`
	Notes      string `json:"notes"`
	ValidDays  int    `json:"valid_days"`

	Items          []submitItemRequest          `json:"items"`
	ManualDiscount *submitManualDiscountRequest `json:"manual_discount"`
}

type sendQuoteRequest struct {
	Channel string `json:"channel"`
}

type quoteResponse struct {
	ID          uuid.UUID `json:"id"`
	ShopID      uuid.UUID `json:"shop_id"`
	QuoteNumber string    `json:"quote_number"`
	Status      string    `json:"status"`
	CustomerID  *string   `json:"customer_id"`
	VehicleID   *string   `json:"vehicle_id"`
	ValidUntil  time.Time `json:"valid_until"`
	Notes       *string   `json:"notes"`

	Subtotal       string `json:"subtotal"`
	TaxAmount      string `json:"tax_amount"`
	DiscountAmount string `json:"discount_amount"`
	TotalAmount    string `json:"total_amount"`

	ConvertedOrderID *string    `json:"converted_order_id"`
	SentAt           *time.Time `json:"sent_at"`
	ViewedAt         *time.Time `json:"viewed_at"`
	AcceptedAt       *time.Time `json:"accepted_at"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []quoteItemResponse `json:"items,omitempty"`
}

type quoteItemResponse struct {
	ID               uuid.UUID `json:"id"`
	ItemType         string    `json:"item_type"`
	ProductID        *string   `json:"product_id"`
	ServiceID        *string   `json:"service_id"`
	Name             string    `json:"name"`
	Quantity         int32     `json:"quantity"`
	UnitPrice        string    `json:"unit_price"`
	TotalPrice       string    `json:"total_price"`
	Taxable          bool      `json:"taxable"`
	TaxAmount        string    `json:"tax_amount"`
	TierName         *string   `json:"tier_name"`
	VehicleSizeClass *string   `json:"vehicle_size_class"`
	PerUnitQty       *int32    `json:"per_unit_qty"`
	PerUnitPrice     *string   `json:"per_unit_price"`
	PerUnitLabel     *string   `json:"per_unit_label"`
}

func dbQuoteToResponse(q database.Quote) quoteResponse {
	resp := quoteResponse{
		ID:             q.ID,
		ShopID:         q.ShopID,
		QuoteNumber:    q.QuoteNumber,
		Status:         q.Status,
		ValidUntil:     q.ValidUntil,
		Subtotal:       numericToString(q.Subtotal),
		TaxAmount:      numericToString(q.TaxAmount),
		DiscountAmount: numericToString(q.DiscountAmount),
		TotalAmount:    numericToString(q.TotalAmount),
		CreatedBy:      q.CreatedBy,
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}
	if q.CustomerID.Valid {
		s := uuid.UUID(q.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if q.VehicleID.Valid {
		s := uuid.UUID(q.VehicleID.Bytes).String()
		resp.VehicleID = &s
	}
	if q.Notes.Valid {
		resp.Notes = &q.Notes.String
	}
	if q.ConvertedOrderID.Valid {
		s := uuid.UUID(q.ConvertedOrderID.Bytes).String()
		resp.ConvertedOrderID = &s
	}
	if q.SentAt.Valid {
		resp.SentAt = &q.SentAt.Time
	}
	if q.ViewedAt.Valid {
		resp.ViewedAt = &q.ViewedAt.Time
	}
	if q.AcceptedAt.Valid {
		resp.AcceptedAt = &q.AcceptedAt.Time
	}
	return resp
}

func dbQuoteItemToResponse(it database.QuoteItem) quoteItemResponse {
	resp := quoteItemResponse{
		ID:         it.ID,
		ItemType:   it.ItemType,
		Name:       it.Name,
		Quantity:   it.Quantity,
		UnitPrice:  numericToString(it.UnitPrice),
		TotalPrice: numericToString(it.TotalPrice),
		Taxable:    it.Taxable,
		TaxAmount:  numericToString(it.TaxAmount),
	}
	if it.ProductID.Valid {
		s := uuid.UUID(it.ProductID.Bytes).String()
		resp.ProductID = &s
	}
	if it.ServiceID.Valid {
		s := uuid.UUID(it.ServiceID.Bytes).String()
		resp.ServiceID = &s
	}
	if it.TierName.Valid {
		resp.TierName = &it.TierName.String
	}
	if it.VehicleSizeClass.Valid {
		resp.VehicleSizeClass = &it.VehicleSizeClass.String
	}
	if it.PerUnitQty.Valid {
		resp.PerUnitQty = &it.PerUnitQty.Int32
	}
	if it.PerUnitPrice.Valid {
		s := numericToString(it.PerUnitPrice)
		resp.PerUnitPrice = &s
	}
	if it.PerUnitLabel.Valid {
		resp.PerUnitLabel = &it.PerUnitLabel.String
	}
	return resp
}

func quoteResultToResponse(result *service.QuoteResult) quoteResponse {
	resp := dbQuoteToResponse(result.Quote)
	for _, it := range result.Items {
		resp.Items = append(resp.Items, dbQuoteItemToResponse(it))
	}
	return resp
}

// --- Handlers ---

// Create handles POST /shops/{sid}/quotes.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	svcItems := make([]service.SubmitItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.SubmitItemRequest{
			ItemType:   item.ItemType,
			ProductID:  item.ProductID,
			ServiceID:  item.ServiceID,
			TierName:   item.TierName,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Taxable:    item.Taxable,
			Quantity:   item.Quantity,
			PerUnitQty: item.PerUnitQty,
		}
	}

	svcReq := service.CreateQuoteRequest{
		ShopID:     shopID,
		CreatedBy:  claims.UserID,
		CustomerID: req.CustomerID,
		VehicleID:  req.VehicleID,
		Notes:      req.Notes,
		ValidDays:  req.ValidDays,
		Items:      svcItems,
	}
	if req.ManualDiscount != nil {
		svcReq.ManualDiscount = &service.SubmitManualDiscountRequest{
			Kind:  req.ManualDiscount.Kind,
			Value: req.ManualDiscount.Value,
			Label: req.ManualDiscount.Label,
		}
	}

	result, err := h.svc.Create(r.Context(), svcReq)
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, quoteResultToResponse(result))
}

// List handles GET /shops/{sid}/quotes.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	limit, offset := parsePagination(r)

	quotes, err := h.svc.List(r.Context(), database.ListQuotesParams{
		ShopID: shopID,
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list quotes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]quoteResponse, len(quotes))
	for i, q := range quotes {
		resp[i] = dbQuoteToResponse(q)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /shops/{sid}/quotes/{id}.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, quoteID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Get(r.Context(), shopID, quoteID)
	if err != nil {
		h.writeQuoteError(w, err, "get quote")
		return
	}

	writeJSON(w, http.StatusOK, quoteResultToResponse(result))
}

// Send handles POST /shops/{sid}/quotes/{id}/send.
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	shopID, quoteID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req sendQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Send(r.Context(), shopID, quoteID, req.Channel)
	if err != nil {
		h.writeQuoteError(w, err, "send quote")
		return
	}

	h.broadcastQuote(shopID, result.Quote)
	writeJSON(w, http.StatusOK, quoteResultToResponse(result))
}

// MarkViewed handles POST /shops/{sid}/quotes/{id}/view.
func (h *QuoteHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	shopID, quoteID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	quote, err := h.svc.MarkViewed(r.Context(), shopID, quoteID)
	if err != nil {
		h.writeQuoteError(w, err, "mark quote viewed")
		return
	}

	h.broadcastQuote(shopID, quote)
	writeJSON(w, http.StatusOK, dbQuoteToResponse(quote))
}

// Accept handles POST /shops/{sid}/quotes/{id}/accept.
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	shopID, quoteID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	quote, err := h.svc.Accept(r.Context(), shopID, quoteID)
	if err != nil {
		h.writeQuoteError(w, err, "accept quote")
		return
	}

	h.broadcastQuote(shopID, quote)
	writeJSON(w, http.StatusOK, dbQuoteToResponse(quote))
}

// --- Helpers ---

func (h *QuoteHandler) parseIDs(w http.ResponseWriter, r *http.Request) (shopID, quoteID uuid.UUID, ok bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, uuid.Nil, false
	}
	quoteID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return shopID, quoteID, true
}

func (h *QuoteHandler) writeQuoteError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrQuoteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
	case errors.Is(err, service.ErrQuoteExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrQuoteStatus):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidChannel), errors.Is(err, service.ErrCustomerUnreachable):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *QuoteHandler) broadcastQuote(shopID uuid.UUID, q database.Quote) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"quote_id":     q.ID.String(),
		"quote_number": q.QuoteNumber,
		"status":       q.Status,
	})
	if err != nil {
		return
	}
	h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventQuoteUpdated, Payload: payload})
}
