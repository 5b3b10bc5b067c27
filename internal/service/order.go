package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/enum"
	"github.com/glosspos/api/internal/order"
	"github.com/glosspos/api/internal/pricing"
)

const maxTicketNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidItemType      = errors.New("invalid item_type")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrProductNotFound      = errors.New("product not found in shop")
	ErrServiceNotFound      = errors.New("service not found in shop")
	ErrTierNotFound         = errors.New("pricing tier not found on service")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrQuoteNotConvertible  = errors.New("quote is not in an accepted state")
	ErrInsufficientPoints   = errors.New("customer has insufficient loyalty points")
	ErrLoyaltyNeedsCustomer = errors.New("customer_id is required to redeem loyalty points")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidServiceID     = errors.New("invalid service_id")
	ErrInvalidCustomerID    = errors.New("invalid customer_id")
	ErrInvalidVehicleID     = errors.New("invalid vehicle_id")
	ErrInvalidJobID         = errors.New("invalid job_id")
	ErrInvalidQuoteID       = errors.New("invalid quote_id")
	ErrInvalidCouponID      = errors.New("invalid coupon id")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrPerUnitMax           = errors.New("per-unit quantity exceeds the tier maximum")
	ErrInvalidDiscountKind  = errors.New("invalid discount kind")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to submit orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextTicketNumber(ctx context.Context, shopID uuid.UUID) (int32, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	GetServiceTier(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (database.Vehicle, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	AdjustLoyaltyPoints(ctx context.Context, arg database.AdjustLoyaltyPointsParams) (database.Customer, error)
	GetQuote(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error)
	MarkQuoteConverted(ctx context.Context, arg database.MarkQuoteConvertedParams) (database.Quote, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), so the
// service can run its work inside a transaction it controls.
type NewOrderStore func(db database.DBTX) OrderStore

// SubmitItemRequest is a single line in the submitted cart. The server
// resolves every price from the catalog; client-sent prices are only
// honored for CUSTOM lines.
type SubmitItemRequest struct {
	ItemType   string
	ProductID  string
	ServiceID  string
	TierName   string
	Name       string
	UnitPrice  string
	Taxable    bool
	Quantity   int32
	PerUnitQty int32
}

// SubmitCouponRequest is a coupon already validated upstream; the
// engine only stacks its fixed dollar discount.
type SubmitCouponRequest struct {
	ID       string
	Code     string
	Discount string
}

// SubmitManualDiscountRequest is a staff-entered discount.
type SubmitManualDiscountRequest struct {
	Kind  string
	Value string
	Label string
}

// SubmitOrderRequest is the validated input for creating an order.
type SubmitOrderRequest struct {
	ShopID    uuid.UUID
	CreatedBy uuid.UUID

	CustomerID string
	VehicleID  string
	JobID      string
	QuoteID    string
	Notes      string

	Items []SubmitItemRequest

	Coupon          *SubmitCouponRequest
	LoyaltyPoints   int32
	LoyaltyDiscount string
	ManualDiscount  *SubmitManualDiscountRequest
}

// SubmitOrderResult is the created order with its persisted items.
type SubmitOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService turns a submitted cart into a persisted order. Totals
// are recomputed server-side through the composition engine; the
// client's numbers are never trusted.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	taxRate  decimal.Decimal
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore, taxRate decimal.Decimal) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, taxRate: taxRate}
}

// SubmitOrder validates, reprices, and creates an order atomically.
// Retries up to maxTicketNumberRetries times on ticket_number unique
// constraint violations (concurrent transactions reading the same MAX).
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		switch item.ItemType {
		case enum.ItemTypeProduct, enum.ItemTypeService, enum.ItemTypeCustom:
		default:
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemType)
		}
	}
	if req.LoyaltyPoints > 0 && req.CustomerID == "" {
		return nil, ErrLoyaltyNeedsCustomer
	}
	if req.ManualDiscount != nil {
		switch req.ManualDiscount.Kind {
		case enum.DiscountKindDollar, enum.DiscountKindPercent:
		default:
			return nil, ErrInvalidDiscountKind
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxTicketNumberRetries; attempt++ {
		result, err := s.submitOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isTicketNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isTicketNumberConflict checks for a unique constraint violation on
// the ticket number (pgconn error code 23505).
func isTicketNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_shop_id_ticket_number_key"
	}
	return false
}

func (s *OrderService) submitOrderTx(ctx context.Context, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextTicketNumber(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get next ticket number: %w", err)
	}
	ticketNumber := fmt.Sprintf("DTL-%03d", nextNum)

	// Rebuild the cart through the composition engine with prices from
	// the catalog, so the stored totals match what the engine showed.
	ord := order.New(s.taxRate)

	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		if _, err := store.GetCustomer(ctx, database.GetCustomerParams{ID: cid, ShopID: req.ShopID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCustomerNotFound
			}
			return nil, fmt.Errorf("get customer: %w", err)
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
		ord = order.Reduce(ord, order.SetCustomer{CustomerID: &cid})
	}

	vehicleID := pgtype.UUID{}
	if req.VehicleID != "" {
		vid, err := uuid.Parse(req.VehicleID)
		if err != nil {
			return nil, ErrInvalidVehicleID
		}
		vehicle, err := store.GetVehicle(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVehicleNotFound
			}
			return nil, fmt.Errorf("get vehicle: %w", err)
		}
		vehicleID = pgtype.UUID{Bytes: vid, Valid: true}
		ord = order.Reduce(ord, order.SetVehicle{VehicleID: &vid, SizeClass: vehicle.SizeClass})
	}

	for i, item := range req.Items {
		if item.Quantity <= 0 && item.ItemType != enum.ItemTypeService {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		action, err := resolveItemAction(ctx, store, req.ShopID, item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		ord = order.Reduce(ord, action)
	}

	couponID := pgtype.UUID{}
	couponCode := pgtype.Text{}
	couponDiscount := pgtype.Numeric{}
	if req.Coupon != nil {
		cid, err := uuid.Parse(req.Coupon.ID)
		if err != nil {
			return nil, ErrInvalidCouponID
		}
		disc, err := decimal.NewFromString(req.Coupon.Discount)
		if err != nil || disc.IsNegative() {
			return nil, fmt.Errorf("coupon: %w", ErrInvalidAmount)
		}
		couponID = pgtype.UUID{Bytes: cid, Valid: true}
		couponCode = pgtype.Text{String: req.Coupon.Code, Valid: true}
		couponDiscount = database.DecimalToNumeric(disc)
		ord = order.Reduce(ord, order.SetCoupon{Coupon: &order.Coupon{
			ID:       cid,
			Code:     req.Coupon.Code,
			Discount: disc,
		}})
	}

	if req.LoyaltyPoints > 0 {
		loyaltyDiscount, err := decimal.NewFromString(req.LoyaltyDiscount)
		if err != nil || loyaltyDiscount.IsNegative() {
			return nil, fmt.Errorf("loyalty: %w", ErrInvalidAmount)
		}
		customer, err := store.GetCustomer(ctx, database.GetCustomerParams{
			ID:     uuid.UUID(customerID.Bytes),
			ShopID: req.ShopID,
		})
		if err != nil {
			return nil, fmt.Errorf("get customer for loyalty: %w", err)
		}
		if customer.LoyaltyPoints < req.LoyaltyPoints {
			return nil, ErrInsufficientPoints
		}
		ord = order.Reduce(ord, order.SetLoyaltyRedeem{
			Points:   req.LoyaltyPoints,
			Discount: loyaltyDiscount,
		})
	}

	if req.ManualDiscount != nil {
		value, err := decimal.NewFromString(req.ManualDiscount.Value)
		if err != nil || value.IsNegative() {
			return nil, fmt.Errorf("manual discount: %w", ErrInvalidAmount)
		}
		ord = order.Reduce(ord, order.ApplyManualDiscount{
			Kind:  req.ManualDiscount.Kind,
			Value: value,
			Label: req.ManualDiscount.Label,
		})
	}

	if req.Notes != "" {
		ord = order.Reduce(ord, order.SetNotes{Notes: req.Notes})
	}

	if ord.DiscountAmount.GreaterThan(ord.Subtotal.Add(ord.TaxAmount)) {
		log.Printf("WARNING: order %s: discount %s exceeds subtotal+tax %s, total clamped to zero",
			ticketNumber, ord.DiscountAmount, ord.Subtotal.Add(ord.TaxAmount))
	}

	jobID := pgtype.UUID{}
	if req.JobID != "" {
		jid, err := uuid.Parse(req.JobID)
		if err != nil {
			return nil, ErrInvalidJobID
		}
		jobID = pgtype.UUID{Bytes: jid, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	manualKind := pgtype.Text{}
	manualValue := pgtype.Numeric{}
	manualLabel := pgtype.Text{}
	manualAmount := pgtype.Numeric{}
	if ord.Manual != nil {
		manualKind = pgtype.Text{String: ord.Manual.Kind, Valid: true}
		manualValue = database.DecimalToNumeric(ord.Manual.Value)
		if ord.Manual.Label != "" {
			manualLabel = pgtype.Text{String: ord.Manual.Label, Valid: true}
		}
		manualAmount = database.DecimalToNumeric(ord.Manual.Amount)
	}

	created, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ShopID:       req.ShopID,
		TicketNumber: ticketNumber,
		Status:       enum.OrderStatusOpen,
		CustomerID:   customerID,
		VehicleID:    vehicleID,
		JobID:        jobID,
		Notes:        notes,

		CouponID:       couponID,
		CouponCode:     couponCode,
		CouponDiscount: couponDiscount,

		LoyaltyPoints:   req.LoyaltyPoints,
		LoyaltyDiscount: database.DecimalToNumeric(ord.LoyaltyDiscount),

		ManualDiscountKind:   manualKind,
		ManualDiscountValue:  manualValue,
		ManualDiscountLabel:  manualLabel,
		ManualDiscountAmount: manualAmount,

		Subtotal:       database.DecimalToNumeric(ord.Subtotal),
		TaxAmount:      database.DecimalToNumeric(ord.TaxAmount),
		DiscountAmount: database.DecimalToNumeric(ord.DiscountAmount),
		TotalAmount:    database.DecimalToNumeric(ord.Total),

		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for i, line := range ord.Items {
		item, err := store.CreateOrderItem(ctx, orderItemParams(created.ID, line, int32(i)))
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if req.LoyaltyPoints > 0 {
		if _, err := store.AdjustLoyaltyPoints(ctx, database.AdjustLoyaltyPointsParams{
			ID:    uuid.UUID(customerID.Bytes),
			Delta: -req.LoyaltyPoints,
		}); err != nil {
			return nil, fmt.Errorf("redeem loyalty points: %w", err)
		}
	}

	if req.QuoteID != "" {
		qid, err := uuid.Parse(req.QuoteID)
		if err != nil {
			return nil, ErrInvalidQuoteID
		}
		quote, err := store.GetQuote(ctx, database.GetQuoteParams{ID: qid, ShopID: req.ShopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrQuoteNotFound
			}
			return nil, fmt.Errorf("get quote: %w", err)
		}
		if quote.Status != enum.QuoteStatusAccepted {
			return nil, ErrQuoteNotConvertible
		}
		if _, err := store.MarkQuoteConverted(ctx, database.MarkQuoteConvertedParams{
			ID:      qid,
			OrderID: pgtype.UUID{Bytes: created.ID, Valid: true},
		}); err != nil {
			return nil, fmt.Errorf("mark quote converted: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitOrderResult{Order: created, Items: items}, nil
}

// catalogStore is the slice of the store both order and quote
// submission need to resolve line prices.
type catalogStore interface {
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	GetServiceTier(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error)
}

// resolveItemAction resolves one submitted line against the catalog and
// returns the reducer action that adds it.
func resolveItemAction(ctx context.Context, store catalogStore, shopID uuid.UUID, item SubmitItemRequest) (order.Action, error) {
	switch item.ItemType {
	case enum.ItemTypeProduct:
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, ErrInvalidProductID
		}
		product, err := store.GetProduct(ctx, database.GetProductParams{ID: productID, ShopID: shopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		return order.AddProduct{
			ItemID:    uuid.New(),
			ProductID: productID,
			Name:      product.Name,
			UnitPrice: database.NumericToDecimal(product.Price),
			Taxable:   product.Taxable,
			Quantity:  item.Quantity,
		}, nil

	case enum.ItemTypeService:
		serviceID, err := uuid.Parse(item.ServiceID)
		if err != nil {
			return nil, ErrInvalidServiceID
		}
		svc, err := store.GetService(ctx, database.GetServiceParams{ID: serviceID, ShopID: shopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrServiceNotFound
			}
			return nil, fmt.Errorf("get service: %w", err)
		}
		tierRow, err := store.GetServiceTier(ctx, database.GetServiceTierParams{
			ServiceID: serviceID,
			Name:      item.TierName,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTierNotFound
			}
			return nil, fmt.Errorf("get service tier: %w", err)
		}
		if tierRow.PerUnit && tierRow.PerUnitMax.Valid && tierRow.PerUnitMax.Int32 > 0 &&
			item.PerUnitQty > tierRow.PerUnitMax.Int32 {
			return nil, fmt.Errorf("%w: %d > %d", ErrPerUnitMax, item.PerUnitQty, tierRow.PerUnitMax.Int32)
		}
		return order.AddService{
			ItemID:     uuid.New(),
			ServiceID:  serviceID,
			Name:       svc.Name,
			Tier:       TierFromRow(tierRow),
			Taxable:    svc.Taxable,
			PerUnitQty: item.PerUnitQty,
		}, nil

	case enum.ItemTypeCustom:
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || price.IsNegative() {
			return nil, ErrInvalidAmount
		}
		return order.AddCustomItem{
			ItemID:    uuid.New(),
			Name:      item.Name,
			UnitPrice: price,
			Taxable:   item.Taxable,
			Quantity:  item.Quantity,
		}, nil
	}
	return nil, ErrInvalidItemType
}

// TierFromRow converts a stored tier definition into the pricing
// engine's representation.
func TierFromRow(t database.ServiceTier) pricing.Tier {
	return pricing.Tier{
		Name:             t.Name,
		Label:            t.Label,
		Price:            database.NumericToDecimal(t.Price),
		VehicleSizeAware: t.VehicleSizeAware,
		SedanPrice:       database.NumericToDecimalPtr(t.SedanPrice),
		TruckSuvPrice:    database.NumericToDecimalPtr(t.TruckSuvPrice),
		SuvVanPrice:      database.NumericToDecimalPtr(t.SuvVanPrice),
		PerUnit:          t.PerUnit,
		PerUnitLabel:     t.PerUnitLabel.String,
		PerUnitMax:       t.PerUnitMax.Int32,
	}
}

func orderItemParams(orderID uuid.UUID, line order.LineItem, sortOrder int32) database.CreateOrderItemParams {
	productID := pgtype.UUID{}
	if line.ProductID != nil {
		productID = pgtype.UUID{Bytes: *line.ProductID, Valid: true}
	}
	serviceID := pgtype.UUID{}
	if line.ServiceID != nil {
		serviceID = pgtype.UUID{Bytes: *line.ServiceID, Valid: true}
	}
	tierName := pgtype.Text{}
	if line.TierName != "" {
		tierName = pgtype.Text{String: line.TierName, Valid: true}
	}
	sizeClass := pgtype.Text{}
	if line.VehicleSizeClass != "" {
		sizeClass = pgtype.Text{String: line.VehicleSizeClass, Valid: true}
	}
	perUnitQty := pgtype.Int4{}
	perUnitPrice := pgtype.Numeric{}
	perUnitLabel := pgtype.Text{}
	if line.PerUnitQty > 0 {
		perUnitQty = pgtype.Int4{Int32: line.PerUnitQty, Valid: true}
		perUnitPrice = database.DecimalToNumeric(line.PerUnitPrice)
		perUnitLabel = pgtype.Text{String: line.PerUnitLabel, Valid: true}
	}
	return database.CreateOrderItemParams{
		OrderID:          orderID,
		ItemType:         line.ItemType,
		ProductID:        productID,
		ServiceID:        serviceID,
		Name:             line.Name,
		Quantity:         line.Quantity,
		UnitPrice:        database.DecimalToNumeric(line.UnitPrice),
		TotalPrice:       database.DecimalToNumeric(line.TotalPrice),
		Taxable:          line.Taxable,
		TaxAmount:        database.DecimalToNumeric(line.TaxAmount),
		TierName:         tierName,
		VehicleSizeClass: sizeClass,
		PerUnitQty:       perUnitQty,
		PerUnitPrice:     perUnitPrice,
		PerUnitLabel:     perUnitLabel,
		SortOrder:        sortOrder,
	}
}
