package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getNextTicketNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(ticket_number FROM 5) AS INTEGER)), 0) + 1
FROM orders
WHERE shop_id = $1
`

// GetNextTicketNumber returns the next sequential ticket number for the
// shop. Concurrent callers can race; CreateOrder's unique constraint
// catches the collision and the service retries.
func (q *Queries) GetNextTicketNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextTicketNumber, shopID).Scan(&n)
	return n, err
}

const orderColumns = `id, shop_id, ticket_number, status, customer_id, vehicle_id, job_id, notes,
	coupon_id, coupon_code, coupon_discount,
	loyalty_points, loyalty_discount,
	manual_discount_kind, manual_discount_value, manual_discount_label, manual_discount_amount,
	subtotal, tax_amount, discount_amount, total_amount,
	created_by, created_at, updated_at`

const createOrder = `
INSERT INTO orders (shop_id, ticket_number, status, customer_id, vehicle_id, job_id, notes,
	coupon_id, coupon_code, coupon_discount,
	loyalty_points, loyalty_discount,
	manual_discount_kind, manual_discount_value, manual_discount_label, manual_discount_amount,
	subtotal, tax_amount, discount_amount, total_amount, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ShopID       uuid.UUID
	TicketNumber string
	Status       string
	CustomerID   pgtype.UUID
	VehicleID    pgtype.UUID
	JobID        pgtype.UUID
	Notes        pgtype.Text

	CouponID       pgtype.UUID
	CouponCode     pgtype.Text
	CouponDiscount pgtype.Numeric

	LoyaltyPoints   int32
	LoyaltyDiscount pgtype.Numeric

	ManualDiscountKind   pgtype.Text
	ManualDiscountValue  pgtype.Numeric
	ManualDiscountLabel  pgtype.Text
	ManualDiscountAmount pgtype.Numeric

	Subtotal       pgtype.Numeric
	TaxAmount      pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric

	CreatedBy uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ShopID, arg.TicketNumber, arg.Status, arg.CustomerID, arg.VehicleID, arg.JobID, arg.Notes,
		arg.CouponID, arg.CouponCode, arg.CouponDiscount,
		arg.LoyaltyPoints, arg.LoyaltyDiscount,
		arg.ManualDiscountKind, arg.ManualDiscountValue, arg.ManualDiscountLabel, arg.ManualDiscountAmount,
		arg.Subtotal, arg.TaxAmount, arg.DiscountAmount, arg.TotalAmount, arg.CreatedBy)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND shop_id = $2
`

type GetOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.ShopID))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE shop_id = $1
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	ShopID uuid.UUID
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.ShopID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const completeOrder = `
UPDATE orders
SET status = 'COMPLETED', updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) CompleteOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, completeOrder, id))
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ShopID, &o.TicketNumber, &o.Status, &o.CustomerID, &o.VehicleID, &o.JobID, &o.Notes,
		&o.CouponID, &o.CouponCode, &o.CouponDiscount,
		&o.LoyaltyPoints, &o.LoyaltyDiscount,
		&o.ManualDiscountKind, &o.ManualDiscountValue, &o.ManualDiscountLabel, &o.ManualDiscountAmount,
		&o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.TotalAmount,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// ── Order items ──

const orderItemColumns = `id, order_id, item_type, product_id, service_id, name, quantity,
	unit_price, total_price, taxable, tax_amount, tier_name, vehicle_size_class,
	per_unit_qty, per_unit_price, per_unit_label, sort_order`

const createOrderItem = `
INSERT INTO order_items (order_id, item_type, product_id, service_id, name, quantity,
	unit_price, total_price, taxable, tax_amount, tier_name, vehicle_size_class,
	per_unit_qty, per_unit_price, per_unit_label, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID          uuid.UUID
	ItemType         string
	ProductID        pgtype.UUID
	ServiceID        pgtype.UUID
	Name             string
	Quantity         int32
	UnitPrice        pgtype.Numeric
	TotalPrice       pgtype.Numeric
	Taxable          bool
	TaxAmount        pgtype.Numeric
	TierName         pgtype.Text
	VehicleSizeClass pgtype.Text
	PerUnitQty       pgtype.Int4
	PerUnitPrice     pgtype.Numeric
	PerUnitLabel     pgtype.Text
	SortOrder        int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ItemType, arg.ProductID, arg.ServiceID, arg.Name, arg.Quantity,
		arg.UnitPrice, arg.TotalPrice, arg.Taxable, arg.TaxAmount, arg.TierName, arg.VehicleSizeClass,
		arg.PerUnitQty, arg.PerUnitPrice, arg.PerUnitLabel, arg.SortOrder)
	return scanOrderItem(row)
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY sort_order
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ItemType, &it.ProductID, &it.ServiceID, &it.Name, &it.Quantity,
		&it.UnitPrice, &it.TotalPrice, &it.Taxable, &it.TaxAmount, &it.TierName, &it.VehicleSizeClass,
		&it.PerUnitQty, &it.PerUnitPrice, &it.PerUnitLabel, &it.SortOrder)
	return it, err
}

// ── Payments ──

const paymentColumns = `id, order_id, method, amount, status, reference_number,
	amount_received, change_amount, processed_by, processed_at`

const createPayment = `
INSERT INTO payments (order_id, method, amount, status, reference_number,
	amount_received, change_amount, processed_by, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID         uuid.UUID
	Method          string
	Amount          pgtype.Numeric
	Status          string
	ReferenceNumber pgtype.Text
	AmountReceived  pgtype.Numeric
	ChangeAmount    pgtype.Numeric
	ProcessedBy     uuid.UUID
	ProcessedAt     time.Time
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.Method, arg.Amount, arg.Status,
		arg.ReferenceNumber, arg.AmountReceived, arg.ChangeAmount, arg.ProcessedBy, arg.ProcessedAt)
	return scanPayment(row)
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY processed_at
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const sumPaymentsByOrder = `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE order_id = $1 AND status = 'COMPLETED'
`

func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, sumPaymentsByOrder, orderID).Scan(&sum)
	return sum, err
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.ReferenceNumber,
		&p.AmountReceived, &p.ChangeAmount, &p.ProcessedBy, &p.ProcessedAt)
	return p, err
}
