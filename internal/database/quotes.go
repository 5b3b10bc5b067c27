package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getNextQuoteNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(quote_number FROM 5) AS INTEGER)), 0) + 1
FROM quotes
WHERE shop_id = $1
`

func (q *Queries) GetNextQuoteNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextQuoteNumber, shopID).Scan(&n)
	return n, err
}

const quoteColumns = `id, shop_id, quote_number, status, customer_id, vehicle_id, valid_until, notes,
	subtotal, tax_amount, discount_amount, total_amount,
	converted_order_id, sent_at, viewed_at, accepted_at,
	created_by, created_at, updated_at`

const createQuote = `
INSERT INTO quotes (shop_id, quote_number, status, customer_id, vehicle_id, valid_until, notes,
	subtotal, tax_amount, discount_amount, total_amount, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + quoteColumns

type CreateQuoteParams struct {
	ShopID      uuid.UUID
	QuoteNumber string
	Status      string
	CustomerID  pgtype.UUID
	VehicleID   pgtype.UUID
	ValidUntil  time.Time
	Notes       pgtype.Text

	Subtotal       pgtype.Numeric
	TaxAmount      pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric

	CreatedBy uuid.UUID
}

func (q *Queries) CreateQuote(ctx context.Context, arg CreateQuoteParams) (Quote, error) {
	row := q.db.QueryRow(ctx, createQuote, arg.ShopID, arg.QuoteNumber, arg.Status,
		arg.CustomerID, arg.VehicleID, arg.ValidUntil, arg.Notes,
		arg.Subtotal, arg.TaxAmount, arg.DiscountAmount, arg.TotalAmount, arg.CreatedBy)
	return scanQuote(row)
}

const getQuote = `
SELECT ` + quoteColumns + `
FROM quotes
WHERE id = $1 AND shop_id = $2
`

type GetQuoteParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetQuote(ctx context.Context, arg GetQuoteParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, getQuote, arg.ID, arg.ShopID))
}

const listQuotes = `
SELECT ` + quoteColumns + `
FROM quotes
WHERE shop_id = $1
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListQuotesParams struct {
	ShopID uuid.UUID
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListQuotes(ctx context.Context, arg ListQuotesParams) ([]Quote, error) {
	rows, err := q.db.Query(ctx, listQuotes, arg.ShopID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		qt, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, qt)
	}
	return quotes, rows.Err()
}

const updateQuoteStatus = `
UPDATE quotes
SET status = $2,
    sent_at = CASE WHEN $2 = 'SENT' THEN $3 ELSE sent_at END,
    viewed_at = CASE WHEN $2 = 'VIEWED' THEN $3 ELSE viewed_at END,
    accepted_at = CASE WHEN $2 = 'ACCEPTED' THEN $3 ELSE accepted_at END,
    updated_at = now()
WHERE id = $1
RETURNING ` + quoteColumns

type UpdateQuoteStatusParams struct {
	ID     uuid.UUID
	Status string
	At     pgtype.Timestamptz
}

func (q *Queries) UpdateQuoteStatus(ctx context.Context, arg UpdateQuoteStatusParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, updateQuoteStatus, arg.ID, arg.Status, arg.At))
}

const expireQuote = `
UPDATE quotes
SET status = 'EXPIRED', updated_at = now()
WHERE id = $1 AND status IN ('DRAFT', 'SENT', 'VIEWED')
`

// ExpireQuote lazily marks a quote past its validity window. Idempotent:
// terminal quotes are untouched.
func (q *Queries) ExpireQuote(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, expireQuote, id)
	return err
}

const markQuoteConverted = `
UPDATE quotes
SET status = 'CONVERTED', converted_order_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + quoteColumns

type MarkQuoteConvertedParams struct {
	ID      uuid.UUID
	OrderID pgtype.UUID
}

func (q *Queries) MarkQuoteConverted(ctx context.Context, arg MarkQuoteConvertedParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx, markQuoteConverted, arg.ID, arg.OrderID))
}

func scanQuote(row rowScanner) (Quote, error) {
	var qt Quote
	err := row.Scan(&qt.ID, &qt.ShopID, &qt.QuoteNumber, &qt.Status, &qt.CustomerID, &qt.VehicleID,
		&qt.ValidUntil, &qt.Notes,
		&qt.Subtotal, &qt.TaxAmount, &qt.DiscountAmount, &qt.TotalAmount,
		&qt.ConvertedOrderID, &qt.SentAt, &qt.ViewedAt, &qt.AcceptedAt,
		&qt.CreatedBy, &qt.CreatedAt, &qt.UpdatedAt)
	return qt, err
}

// ── Quote items ──

const quoteItemColumns = `id, quote_id, item_type, product_id, service_id, name, quantity,
	unit_price, total_price, taxable, tax_amount, tier_name, vehicle_size_class,
	per_unit_qty, per_unit_price, per_unit_label, sort_order`

const createQuoteItem = `
INSERT INTO quote_items (quote_id, item_type, product_id, service_id, name, quantity,
	unit_price, total_price, taxable, tax_amount, tier_name, vehicle_size_class,
	per_unit_qty, per_unit_price, per_unit_label, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + quoteItemColumns

type CreateQuoteItemParams struct {
	QuoteID          uuid.UUID
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

func (q *Queries) CreateQuoteItem(ctx context.Context, arg CreateQuoteItemParams) (QuoteItem, error) {
	row := q.db.QueryRow(ctx, createQuoteItem,
		arg.QuoteID, arg.ItemType, arg.ProductID, arg.ServiceID, arg.Name, arg.Quantity,
		arg.UnitPrice, arg.TotalPrice, arg.Taxable, arg.TaxAmount, arg.TierName, arg.VehicleSizeClass,
		arg.PerUnitQty, arg.PerUnitPrice, arg.PerUnitLabel, arg.SortOrder)
	return scanQuoteItem(row)
}

const listQuoteItemsByQuote = `
SELECT ` + quoteItemColumns + `
FROM quote_items
WHERE quote_id = $1
ORDER BY sort_order
`

func (q *Queries) ListQuoteItemsByQuote(ctx context.Context, quoteID uuid.UUID) ([]QuoteItem, error) {
	rows, err := q.db.Query(ctx, listQuoteItemsByQuote, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		it, err := scanQuoteItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanQuoteItem(row rowScanner) (QuoteItem, error) {
	var it QuoteItem
	err := row.Scan(&it.ID, &it.QuoteID, &it.ItemType, &it.ProductID, &it.ServiceID, &it.Name, &it.Quantity,
		&it.UnitPrice, &it.TotalPrice, &it.Taxable, &it.TaxAmount, &it.TierName, &it.VehicleSizeClass,
		&it.PerUnitQty, &it.PerUnitPrice, &it.PerUnitLabel, &it.SortOrder)
	return it, err
}
