package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/clock"
	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/enum"
	"github.com/glosspos/api/internal/notify"
	"github.com/glosspos/api/internal/order"
)

// Errors returned by the quote service.
var (
	ErrQuoteStatus         = errors.New("quote status does not allow this operation")
	ErrQuoteExpired        = errors.New("quote validity window has passed")
	ErrInvalidChannel      = errors.New("invalid notification channel")
	ErrCustomerUnreachable = errors.New("customer has no contact for the chosen channel")
)

// QuoteStore defines the DB methods needed for the quote lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type QuoteStore interface {
	GetNextQuoteNumber(ctx context.Context, shopID uuid.UUID) (int32, error)
	CreateQuote(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error)
	GetQuote(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error)
	ListQuotes(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error)
	UpdateQuoteStatus(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error)
	ExpireQuote(ctx context.Context, id uuid.UUID) error
	CreateQuoteItem(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error)
	ListQuoteItemsByQuote(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteItem, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	GetServiceTier(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (database.Vehicle, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
}

// NewQuoteStore creates a QuoteStore from a DBTX (pool or tx).
type NewQuoteStore func(db database.DBTX) QuoteStore

// CreateQuoteRequest is the validated input for drafting a quote.
type CreateQuoteRequest struct {
	ShopID    uuid.UUID
	CreatedBy uuid.UUID

	CustomerID string
	VehicleID  string
	Notes      string
	ValidDays  int // 0 means the configured default

	Items          []SubmitItemRequest
	ManualDiscount *SubmitManualDiscountRequest
}

// QuoteResult is a quote with its line items.
type QuoteResult struct {
	Quote database.Quote
	Items []database.QuoteItem
}

// QuoteService manages the draft/sent/viewed/accepted/expired quote
// lifecycle. Expiry is lazy: nothing scans for stale quotes, a read
// past the validity window persists EXPIRED on its way out.
type QuoteService struct {
	pool      TxBeginner
	newStore  NewQuoteStore
	store     QuoteStore
	clock     clock.Clock
	notifier  notify.Notifier
	taxRate   decimal.Decimal
	validDays int
}

func NewQuoteService(pool TxBeginner, newStore NewQuoteStore, store QuoteStore, clk clock.Clock, notifier notify.Notifier, taxRate decimal.Decimal, validDays int) *QuoteService {
	return &QuoteService{
		pool:      pool,
		newStore:  newStore,
		store:     store,
		clock:     clk,
		notifier:  notifier,
		taxRate:   taxRate,
		validDays: validDays,
	}
}

// Create prices the requested items through the composition engine and
// stores the quote as a draft.
func (s *QuoteService) Create(ctx context.Context, req CreateQuoteRequest) (*QuoteResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.ManualDiscount != nil {
		switch req.ManualDiscount.Kind {
		case enum.DiscountKindDollar, enum.DiscountKindPercent:
		default:
			return nil, ErrInvalidDiscountKind
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextQuoteNumber(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get next quote number: %w", err)
	}
	quoteNumber := fmt.Sprintf("QTE-%03d", nextNum)

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
		action, err := resolveItemAction(ctx, store, req.ShopID, item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		ord = order.Reduce(ord, action)
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

	validDays := req.ValidDays
	if validDays <= 0 {
		validDays = s.validDays
	}
	validUntil := s.clock.Now().Add(time.Duration(validDays) * 24 * time.Hour)

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	quote, err := store.CreateQuote(ctx, database.CreateQuoteParams{
		ShopID:      req.ShopID,
		QuoteNumber: quoteNumber,
		Status:      enum.QuoteStatusDraft,
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		ValidUntil:  validUntil,
		Notes:       notes,

		Subtotal:       database.DecimalToNumeric(ord.Subtotal),
		TaxAmount:      database.DecimalToNumeric(ord.TaxAmount),
		DiscountAmount: database.DecimalToNumeric(ord.DiscountAmount),
		TotalAmount:    database.DecimalToNumeric(ord.Total),

		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	var items []database.QuoteItem
	for i, line := range ord.Items {
		item, err := store.CreateQuoteItem(ctx, quoteItemParams(quote.ID, line, int32(i)))
		if err != nil {
			return nil, fmt.Errorf("create quote item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &QuoteResult{Quote: quote, Items: items}, nil
}

// Get fetches a quote, lazily expiring it when its validity window has
// passed.
func (s *QuoteService) Get(ctx context.Context, shopID, id uuid.UUID) (*QuoteResult, error) {
	quote, err := s.store.GetQuote(ctx, database.GetQuoteParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	quote, err = s.applyLazyExpiry(ctx, quote)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListQuoteItemsByQuote(ctx, quote.ID)
	if err != nil {
		return nil, fmt.Errorf("list quote items: %w", err)
	}
	return &QuoteResult{Quote: quote, Items: items}, nil
}

// List returns quotes for the shop, lazily expiring any whose validity
// window has passed.
func (s *QuoteService) List(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error) {
	quotes, err := s.store.ListQuotes(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	for i := range quotes {
		quotes[i], err = s.applyLazyExpiry(ctx, quotes[i])
		if err != nil {
			return nil, err
		}
	}
	return quotes, nil
}

// Send moves a draft quote to SENT and delivers it to the customer over
// the chosen channel.
func (s *QuoteService) Send(ctx context.Context, shopID, id uuid.UUID, channel string) (*QuoteResult, error) {
	if channel != enum.NotifyChannelEmail && channel != enum.NotifyChannelSMS {
		return nil, ErrInvalidChannel
	}
	quote, err := s.store.GetQuote(ctx, database.GetQuoteParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	quote, err = s.applyLazyExpiry(ctx, quote)
	if err != nil {
		return nil, err
	}
	if quote.Status != enum.QuoteStatusDraft {
		return nil, ErrQuoteStatus
	}
	if !quote.CustomerID.Valid {
		return nil, ErrCustomerUnreachable
	}

	customer, err := s.store.GetCustomer(ctx, database.GetCustomerParams{
		ID:     uuid.UUID(quote.CustomerID.Bytes),
		ShopID: shopID,
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	recipient, err := customerRecipient(customer, channel)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateQuoteStatus(ctx, database.UpdateQuoteStatusParams{
		ID:     id,
		Status: enum.QuoteStatusSent,
		At:     pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("update quote status: %w", err)
	}

	content := fmt.Sprintf("Your quote %s for %s is ready. It is valid until %s.",
		updated.QuoteNumber,
		database.NumericToDecimal(updated.TotalAmount).StringFixed(2),
		updated.ValidUntil.Format("Jan 2, 2006"))
	if res := s.notifier.SendMessage(ctx, channel, recipient, content); res.Status == notify.StatusFailed {
		log.Printf("WARNING: send quote %s: %s notification failed: %s", updated.QuoteNumber, channel, res.ErrorDetail)
	}

	items, err := s.store.ListQuoteItemsByQuote(ctx, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("list quote items: %w", err)
	}
	return &QuoteResult{Quote: updated, Items: items}, nil
}

// MarkViewed records the customer opening the quote link.
func (s *QuoteService) MarkViewed(ctx context.Context, shopID, id uuid.UUID) (database.Quote, error) {
	return s.advance(ctx, shopID, id, enum.QuoteStatusViewed, enum.QuoteStatusSent)
}

// Accept records the customer accepting the quote. The accepted quote
// is converted into an order by order submission.
func (s *QuoteService) Accept(ctx context.Context, shopID, id uuid.UUID) (database.Quote, error) {
	return s.advance(ctx, shopID, id, enum.QuoteStatusAccepted,
		enum.QuoteStatusSent, enum.QuoteStatusViewed)
}

func (s *QuoteService) advance(ctx context.Context, shopID, id uuid.UUID, to string, from ...string) (database.Quote, error) {
	quote, err := s.store.GetQuote(ctx, database.GetQuoteParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Quote{}, ErrQuoteNotFound
		}
		return database.Quote{}, fmt.Errorf("get quote: %w", err)
	}
	quote, err = s.applyLazyExpiry(ctx, quote)
	if err != nil {
		return database.Quote{}, err
	}
	allowed := false
	for _, f := range from {
		if quote.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		if quote.Status == enum.QuoteStatusExpired {
			return database.Quote{}, ErrQuoteExpired
		}
		return database.Quote{}, ErrQuoteStatus
	}
	return s.store.UpdateQuoteStatus(ctx, database.UpdateQuoteStatusParams{
		ID:     id,
		Status: to,
		At:     pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
	})
}

// applyLazyExpiry persists EXPIRED on a non-terminal quote whose window
// has passed and returns the corrected row. Terminal statuses pass
// through unchanged, so repeated reads are stable.
func (s *QuoteService) applyLazyExpiry(ctx context.Context, quote database.Quote) (database.Quote, error) {
	switch quote.Status {
	case enum.QuoteStatusDraft, enum.QuoteStatusSent, enum.QuoteStatusViewed:
	default:
		return quote, nil
	}
	if s.clock.Now().Before(quote.ValidUntil) {
		return quote, nil
	}
	if err := s.store.ExpireQuote(ctx, quote.ID); err != nil {
		return quote, fmt.Errorf("expire quote: %w", err)
	}
	quote.Status = enum.QuoteStatusExpired
	return quote, nil
}

// customerRecipient picks the contact detail for a channel.
func customerRecipient(c database.Customer, channel string) (string, error) {
	switch channel {
	case enum.NotifyChannelEmail:
		if !c.Email.Valid || c.Email.String == "" {
			return "", ErrCustomerUnreachable
		}
		return c.Email.String, nil
	case enum.NotifyChannelSMS:
		if c.Phone == "" {
			return "", ErrCustomerUnreachable
		}
		return c.Phone, nil
	}
	return "", ErrInvalidChannel
}

func quoteItemParams(quoteID uuid.UUID, line order.LineItem, sortOrder int32) database.CreateQuoteItemParams {
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
	return database.CreateQuoteItemParams{
		QuoteID:          quoteID,
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
