package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/enum"
	"github.com/glosspos/api/internal/middleware"
	"github.com/glosspos/api/internal/service"
	"github.com/glosspos/api/internal/ws"
)

// OrderSubmitter defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req service.SubmitOrderRequest) (*service.SubmitOrderResult, error)
}

// OrderStore defines the database methods needed by order read/payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CompleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// Broadcaster pushes events to the shop's connected staff devices.
// Satisfied by *ws.Hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastToShop(shopID uuid.UUID, event ws.Event)
}

// OrderHandler handles order and payment endpoints.
type OrderHandler struct {
	svc   OrderSubmitter
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderSubmitter, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/payments", h.AddPayment)
}

// --- Request / Response types ---

type submitOrderRequest struct {
	CustomerID string `json:"customer_id"`
	VehicleID  string `json:"vehicle_id"`
	JobID      string `json:"job_id"`
	QuoteID    string `json:"quote_id"`
	Notes      string `json:"notes"`

	Items []submitItemRequest `json:"items"`

	Coupon          *submitCouponRequest         `json:"coupon"`
	LoyaltyPoints   int32                        `json:"loyalty_points"`
	LoyaltyDiscount string                       `json:"loyalty_discount"`
	ManualDiscount  *submitManualDiscountRequest `json:"manual_discount"`
}

type submitItemRequest struct {
	ItemType   string `json:"item_type"`
	ProductID  string `json:"product_id"`
	ServiceID  string `json:"service_id"`
	TierName   string `json:"tier_name"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unit_price"`
	Taxable    bool   `json:"taxable"`
	Quantity   int32  `json:"quantity"`
	PerUnitQty int32  `json:"per_unit_qty"`
}

type submitCouponRequest struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Discount string `json:"discount_amount"`
}

type submitManualDiscountRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Label string `json:"label"`
}

type orderResponse struct {
	ID           uuid.UUID `json:"id"`
	ShopID       uuid.UUID `json:"shop_id"`
	TicketNumber string    `json:"ticket_number"`
	Status       string    `json:"status"`
	CustomerID   *string   `json:"customer_id"`
	VehicleID    *string   `json:"vehicle_id"`
	JobID        *string   `json:"job_id"`
	Notes        *string   `json:"notes"`

	CouponCode     *string `json:"coupon_code"`
	CouponDiscount *string `json:"coupon_discount"`

	LoyaltyPoints   int32   `json:"loyalty_points"`
	LoyaltyDiscount *string `json:"loyalty_discount"`

	ManualDiscountLabel  *string `json:"manual_discount_label"`
	ManualDiscountAmount *string `json:"manual_discount_amount"`

	Subtotal       string `json:"subtotal"`
	TaxAmount      string `json:"tax_amount"`
	DiscountAmount string `json:"discount_amount"`
	TotalAmount    string `json:"total_amount"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
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

type addPaymentRequest struct {
	Method          string `json:"method"`
	Amount          string `json:"amount"`
	ReferenceNumber string `json:"reference_number"`
	AmountReceived  string `json:"amount_received"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	Method          string    `json:"method"`
	Amount          string    `json:"amount"`
	Status          string    `json:"status"`
	ReferenceNumber *string   `json:"reference_number"`
	AmountReceived  *string   `json:"amount_received"`
	ChangeAmount    *string   `json:"change_amount"`
	ProcessedBy     uuid.UUID `json:"processed_by"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// addPaymentResponse reports the payment plus the order's settlement state.
type addPaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	PaidTotal   string          `json:"paid_total"`
	OrderStatus string          `json:"order_status"`
}

// orderDetailResponse extends orderResponse with payments for the GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
}

// --- Handlers ---

// Create handles POST /shops/{sid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	for i, item := range req.Items {
		if item.ItemType == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "item_type is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
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

	svcReq := service.SubmitOrderRequest{
		ShopID:          shopID,
		CreatedBy:       claims.UserID,
		CustomerID:      req.CustomerID,
		VehicleID:       req.VehicleID,
		JobID:           req.JobID,
		QuoteID:         req.QuoteID,
		Notes:           req.Notes,
		Items:           svcItems,
		LoyaltyPoints:   req.LoyaltyPoints,
		LoyaltyDiscount: req.LoyaltyDiscount,
	}
	if req.Coupon != nil {
		svcReq.Coupon = &service.SubmitCouponRequest{
			ID:       req.Coupon.ID,
			Code:     req.Coupon.Code,
			Discount: req.Coupon.Discount,
		}
	}
	if req.ManualDiscount != nil {
		svcReq.ManualDiscount = &service.SubmitManualDiscountRequest{
			Kind:  req.ManualDiscount.Kind,
			Value: req.ManualDiscount.Value,
			Label: req.ManualDiscount.Label,
		}
	}

	result, err := h.svc.SubmitOrder(r.Context(), svcReq)
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrInsufficientPoints) || errors.Is(err, service.ErrQuoteNotConvertible) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: submit order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(result.Order)
	for _, it := range result.Items {
		resp.Items = append(resp.Items, dbOrderItemToResponse(it))
	}

	h.broadcast(shopID, ws.EventOrderCreated, map[string]string{
		"order_id":      result.Order.ID.String(),
		"ticket_number": result.Order.TicketNumber,
		"total_amount":  numericToString(result.Order.TotalAmount),
	})

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /shops/{sid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	limit, offset := parsePagination(r)

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		ShopID: shopID,
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /shops/{sid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:     orderID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{orderResponse: dbOrderToResponse(order)}
	for _, it := range items {
		resp.Items = append(resp.Items, dbOrderItemToResponse(it))
	}
	resp.Payments = make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp.Payments[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddPayment handles POST /shops/{sid}/orders/{id}/payments. Cash
// payments compute change from amount_received; the order flips to
// COMPLETED once completed payments cover the total.
func (h *OrderHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
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

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req addPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Method {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:     orderID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.Status != enum.OrderStatusOpen {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "order is not open"})
		return
	}

	params := database.CreatePaymentParams{
		OrderID:         orderID,
		Method:          req.Method,
		Amount:          database.DecimalToNumeric(amount),
		Status:          enum.PaymentStatusCompleted,
		ReferenceNumber: textOrNull(req.ReferenceNumber),
		ProcessedBy:     claims.UserID,
		ProcessedAt:     time.Now(),
	}

	if req.Method == enum.PaymentMethodCash {
		received, err := decimal.NewFromString(req.AmountReceived)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_received is required for cash payments"})
			return
		}
		if received.LessThan(amount) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_received is less than amount"})
			return
		}
		params.AmountReceived = database.DecimalToNumeric(received)
		params.ChangeAmount = database.DecimalToNumeric(received.Sub(amount))
	}

	payment, err := h.store.CreatePayment(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	paid, err := h.store.SumPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: sum payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status := order.Status
	if !database.NumericToDecimal(paid).LessThan(database.NumericToDecimal(order.TotalAmount)) {
		completed, err := h.store.CompleteOrder(r.Context(), orderID)
		if err != nil {
			log.Printf("ERROR: complete order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		status = completed.Status

		h.broadcast(shopID, ws.EventOrderPaid, map[string]string{
			"order_id":      orderID.String(),
			"ticket_number": order.TicketNumber,
			"paid_total":    numericToString(paid),
		})
	}

	writeJSON(w, http.StatusCreated, addPaymentResponse{
		Payment:     dbPaymentToResponse(payment),
		PaidTotal:   numericToString(paid),
		OrderStatus: status,
	})
}

// --- Helpers ---

func (h *OrderHandler) broadcast(shopID uuid.UUID, eventType string, payload map[string]string) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.hub.BroadcastToShop(shopID, ws.Event{Type: eventType, Payload: data})
}

func formatItemError(index int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", index, msg)
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidItemType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrServiceNotFound) ||
		errors.Is(err, service.ErrTierNotFound) ||
		errors.Is(err, service.ErrVehicleNotFound) ||
		errors.Is(err, service.ErrCustomerNotFound) ||
		errors.Is(err, service.ErrQuoteNotFound) ||
		errors.Is(err, service.ErrLoyaltyNeedsCustomer) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidServiceID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrInvalidVehicleID) ||
		errors.Is(err, service.ErrInvalidJobID) ||
		errors.Is(err, service.ErrInvalidQuoteID) ||
		errors.Is(err, service.ErrInvalidCouponID) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrInvalidDiscountKind) ||
		errors.Is(err, service.ErrPerUnitMax)
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		ShopID:         o.ShopID,
		TicketNumber:   o.TicketNumber,
		Status:         o.Status,
		LoyaltyPoints:  o.LoyaltyPoints,
		Subtotal:       numericToString(o.Subtotal),
		TaxAmount:      numericToString(o.TaxAmount),
		DiscountAmount: numericToString(o.DiscountAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.VehicleID.Valid {
		s := uuid.UUID(o.VehicleID.Bytes).String()
		resp.VehicleID = &s
	}
	if o.JobID.Valid {
		s := uuid.UUID(o.JobID.Bytes).String()
		resp.JobID = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.CouponCode.Valid {
		resp.CouponCode = &o.CouponCode.String
	}
	if o.CouponDiscount.Valid {
		s := numericToString(o.CouponDiscount)
		resp.CouponDiscount = &s
	}
	if o.LoyaltyDiscount.Valid {
		s := numericToString(o.LoyaltyDiscount)
		resp.LoyaltyDiscount = &s
	}
	if o.ManualDiscountLabel.Valid {
		resp.ManualDiscountLabel = &o.ManualDiscountLabel.String
	}
	if o.ManualDiscountAmount.Valid {
		s := numericToString(o.ManualDiscountAmount)
		resp.ManualDiscountAmount = &s
	}
	return resp
}

func dbOrderItemToResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
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

func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Method:      p.Method,
		Amount:      numericToString(p.Amount),
		Status:      p.Status,
		ProcessedBy: p.ProcessedBy,
		ProcessedAt: p.ProcessedAt,
	}
	if p.ReferenceNumber.Valid {
		resp.ReferenceNumber = &p.ReferenceNumber.String
	}
	if p.AmountReceived.Valid {
		s := numericToString(p.AmountReceived)
		resp.AmountReceived = &s
	}
	if p.ChangeAmount.Valid {
		s := numericToString(p.ChangeAmount)
		resp.ChangeAmount = &s
	}
	return resp
}
