package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/clock"
	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/notify"
)

// mockQuoteStore implements QuoteStore with configurable behavior.
type mockQuoteStore struct {
	getNextQuoteNumberFn func(ctx context.Context, shopID uuid.UUID) (int32, error)
	createQuoteFn        func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error)
	getQuoteFn           func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error)
	listQuotesFn         func(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error)
	updateQuoteStatusFn  func(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error)
	expireQuoteFn        func(ctx context.Context, id uuid.UUID) error
	createQuoteItemFn    func(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error)
	listQuoteItemsFn     func(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteItem, error)
	getProductFn         func(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	getServiceFn         func(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	getServiceTierFn     func(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error)
	getVehicleFn         func(ctx context.Context, id uuid.UUID) (database.Vehicle, error)
	getCustomerFn        func(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
}

func (m *mockQuoteStore) GetNextQuoteNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	return m.getNextQuoteNumberFn(ctx, shopID)
}
func (m *mockQuoteStore) CreateQuote(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
	return m.createQuoteFn(ctx, arg)
}
func (m *mockQuoteStore) GetQuote(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
	return m.getQuoteFn(ctx, arg)
}
func (m *mockQuoteStore) ListQuotes(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error) {
	return m.listQuotesFn(ctx, arg)
}
func (m *mockQuoteStore) UpdateQuoteStatus(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error) {
	return m.updateQuoteStatusFn(ctx, arg)
}
func (m *mockQuoteStore) ExpireQuote(ctx context.Context, id uuid.UUID) error {
	return m.expireQuoteFn(ctx, id)
}
func (m *mockQuoteStore) CreateQuoteItem(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error) {
	return m.createQuoteItemFn(ctx, arg)
}
func (m *mockQuoteStore) ListQuoteItemsByQuote(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteItem, error) {
	return m.listQuoteItemsFn(ctx, quoteID)
}
func (m *mockQuoteStore) GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	return m.getProductFn(ctx, arg)
}
func (m *mockQuoteStore) GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error) {
	return m.getServiceFn(ctx, arg)
}
func (m *mockQuoteStore) GetServiceTier(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error) {
	return m.getServiceTierFn(ctx, arg)
}
func (m *mockQuoteStore) GetVehicle(ctx context.Context, id uuid.UUID) (database.Vehicle, error) {
	return m.getVehicleFn(ctx, id)
}
func (m *mockQuoteStore) GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error) {
	return m.getCustomerFn(ctx, arg)
}

// mockNotifier records outgoing messages. Set result to simulate a
// gateway failure; the zero value reports every message as sent.
type mockNotifier struct {
	channels   []string
	recipients []string
	contents   []string
	result     notify.Result
}

func (m *mockNotifier) SendMessage(ctx context.Context, channel, recipient, content string) notify.Result {
	m.channels = append(m.channels, channel)
	m.recipients = append(m.recipients, recipient)
	m.contents = append(m.contents, content)
	if m.result.Status != "" {
		return m.result
	}
	return notify.Result{Status: notify.StatusSent}
}

// defaultQuoteStore knows one product (5.00, taxable) and stores quotes
// by echoing params back. Tests override what they need.
func defaultQuoteStore(shopID, productID uuid.UUID) *mockQuoteStore {
	return &mockQuoteStore{
		getNextQuoteNumberFn: func(ctx context.Context, sid uuid.UUID) (int32, error) {
			return 1, nil
		},
		createQuoteFn: func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
			return database.Quote{
				ID:             uuid.New(),
				ShopID:         arg.ShopID,
				QuoteNumber:    arg.QuoteNumber,
				Status:         arg.Status,
				CustomerID:     arg.CustomerID,
				ValidUntil:     arg.ValidUntil,
				Subtotal:       arg.Subtotal,
				TaxAmount:      arg.TaxAmount,
				DiscountAmount: arg.DiscountAmount,
				TotalAmount:    arg.TotalAmount,
				CreatedBy:      arg.CreatedBy,
			}, nil
		},
		getQuoteFn: func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
			return database.Quote{}, pgx.ErrNoRows
		},
		listQuotesFn: func(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error) {
			return nil, nil
		},
		updateQuoteStatusFn: func(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error) {
			return database.Quote{ID: arg.ID, Status: arg.Status}, nil
		},
		expireQuoteFn: func(ctx context.Context, id uuid.UUID) error {
			return nil
		},
		createQuoteItemFn: func(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error) {
			return database.QuoteItem{
				ID:         uuid.New(),
				QuoteID:    arg.QuoteID,
				ItemType:   arg.ItemType,
				Name:       arg.Name,
				Quantity:   arg.Quantity,
				UnitPrice:  arg.UnitPrice,
				TotalPrice: arg.TotalPrice,
			}, nil
		},
		listQuoteItemsFn: func(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteItem, error) {
			return nil, nil
		},
		getProductFn: func(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
			if arg.ID == productID && arg.ShopID == shopID {
				return database.Product{
					ID:      productID,
					ShopID:  shopID,
					Name:    "Air Freshener",
					Price:   makeNumeric("5.00"),
					Taxable: true,
				}, nil
			}
			return database.Product{}, pgx.ErrNoRows
		},
		getServiceFn: func(ctx context.Context, arg database.GetServiceParams) (database.Service, error) {
			return database.Service{}, pgx.ErrNoRows
		},
		getServiceTierFn: func(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error) {
			return database.ServiceTier{}, pgx.ErrNoRows
		},
		getVehicleFn: func(ctx context.Context, id uuid.UUID) (database.Vehicle, error) {
			return database.Vehicle{}, pgx.ErrNoRows
		},
		getCustomerFn: func(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error) {
			return database.Customer{}, pgx.ErrNoRows
		},
	}
}

// newQuoteTestService wires a QuoteService around the mock store with a
// fixed clock, a 10% tax rate and a 14-day default validity window.
func newQuoteTestService(store *mockQuoteStore, clk clock.Clock) (*QuoteService, *mockNotifier) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) QuoteStore { return store }
	notifier := &mockNotifier{}
	svc := NewQuoteService(pool, newStore, store, clk, notifier, decimal.RequireFromString("0.10"), 14)
	return svc, notifier
}

func quoteAt(status string, validUntil time.Time) database.Quote {
	return database.Quote{
		ID:          uuid.New(),
		QuoteNumber: "QTE-001",
		Status:      status,
		ValidUntil:  validUntil,
		TotalAmount: makeNumeric("110.00"),
	}
}

func TestCreateQuote_DefaultValidity(t *testing.T) {
	shopID := uuid.New()
	productID := uuid.New()
	store := defaultQuoteStore(shopID, productID)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var captured database.CreateQuoteParams
	baseCreate := store.createQuoteFn
	store.createQuoteFn = func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
		captured = arg
		return baseCreate(ctx, arg)
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(now))
	result, err := svc.Create(context.Background(), CreateQuoteRequest{
		ShopID:    shopID,
		CreatedBy: uuid.New(),
		Items: []SubmitItemRequest{
			{ItemType: "PRODUCT", ProductID: productID.String(), Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.QuoteNumber != "QTE-001" {
		t.Errorf("quote number: got %v, want QTE-001", captured.QuoteNumber)
	}
	if captured.Status != "DRAFT" {
		t.Errorf("status: got %v, want DRAFT", captured.Status)
	}
	want := now.Add(14 * 24 * time.Hour)
	if !captured.ValidUntil.Equal(want) {
		t.Errorf("valid_until: got %v, want %v", captured.ValidUntil, want)
	}
	// 5.00 * 2 = 10.00 subtotal, 1.00 tax
	if !numericEquals(captured.TotalAmount, "11.00") {
		t.Errorf("total: got %v, want 11.00", database.NumericToDecimal(captured.TotalAmount))
	}
	if result.Quote.Status != "DRAFT" {
		t.Errorf("result status: got %v, want DRAFT", result.Quote.Status)
	}
}

func TestCreateQuote_ExplicitValidity(t *testing.T) {
	shopID := uuid.New()
	productID := uuid.New()
	store := defaultQuoteStore(shopID, productID)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var captured database.CreateQuoteParams
	baseCreate := store.createQuoteFn
	store.createQuoteFn = func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
		captured = arg
		return baseCreate(ctx, arg)
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(now))
	_, err := svc.Create(context.Background(), CreateQuoteRequest{
		ShopID:    shopID,
		CreatedBy: uuid.New(),
		ValidDays: 3,
		Items: []SubmitItemRequest{
			{ItemType: "PRODUCT", ProductID: productID.String(), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := now.Add(3 * 24 * time.Hour)
	if !captured.ValidUntil.Equal(want) {
		t.Errorf("valid_until: got %v, want %v", captured.ValidUntil, want)
	}
}

func TestCreateQuote_EmptyItems(t *testing.T) {
	store := defaultQuoteStore(uuid.New(), uuid.New())
	svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))

	_, err := svc.Create(context.Background(), CreateQuoteRequest{
		ShopID:    uuid.New(),
		CreatedBy: uuid.New(),
	})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestGetQuote_LazyExpiry(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := quoteAt("SENT", validUntil)

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		if arg.ID == q.ID {
			return q, nil
		}
		return database.Quote{}, pgx.ErrNoRows
	}
	var expiredID uuid.UUID
	store.expireQuoteFn = func(ctx context.Context, id uuid.UUID) error {
		expiredID = id
		return nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(validUntil.Add(time.Hour)))
	result, err := svc.Get(context.Background(), shopID, q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Quote.Status != "EXPIRED" {
		t.Errorf("status after lazy expiry: got %v, want EXPIRED", result.Quote.Status)
	}
	if expiredID != q.ID {
		t.Errorf("persisted expiry for %v, want %v", expiredID, q.ID)
	}
}

func TestGetQuote_NotExpiredBeforeWindow(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := quoteAt("SENT", validUntil)

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}
	store.expireQuoteFn = func(ctx context.Context, id uuid.UUID) error {
		t.Error("expire should not be called inside the validity window")
		return nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(validUntil.Add(-time.Hour)))
	result, err := svc.Get(context.Background(), shopID, q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Quote.Status != "SENT" {
		t.Errorf("status: got %v, want SENT", result.Quote.Status)
	}
}

func TestGetQuote_AcceptedNeverExpires(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := quoteAt("ACCEPTED", validUntil)

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}
	store.expireQuoteFn = func(ctx context.Context, id uuid.UUID) error {
		t.Error("terminal statuses must not be expired")
		return nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(validUntil.Add(30*24*time.Hour)))
	result, err := svc.Get(context.Background(), shopID, q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Quote.Status != "ACCEPTED" {
		t.Errorf("status: got %v, want ACCEPTED", result.Quote.Status)
	}
}

func TestSendQuote_NotifiesCustomer(t *testing.T) {
	shopID := uuid.New()
	customerID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	q := quoteAt("DRAFT", validUntil)
	q.CustomerID = pgtype.UUID{Bytes: customerID, Valid: true}

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}
	store.getCustomerFn = func(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error) {
		return database.Customer{ID: customerID, ShopID: shopID, Phone: "+15550001111"}, nil
	}
	store.updateQuoteStatusFn = func(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error) {
		updated := q
		updated.Status = arg.Status
		updated.SentAt = arg.At
		return updated, nil
	}

	svc, notifier := newQuoteTestService(store, clock.NewFixed(validUntil.Add(-24*time.Hour)))
	result, err := svc.Send(context.Background(), shopID, q.ID, "SMS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Quote.Status != "SENT" {
		t.Errorf("status: got %v, want SENT", result.Quote.Status)
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "+15550001111" {
		t.Errorf("recipients: got %v, want the customer phone", notifier.recipients)
	}
	if !strings.Contains(notifier.contents[0], "QTE-001") {
		t.Errorf("message should mention the quote number, got: %v", notifier.contents[0])
	}
}

func TestSendQuote_DeliveryFailureStillSends(t *testing.T) {
	shopID := uuid.New()
	customerID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	q := quoteAt("DRAFT", validUntil)
	q.CustomerID = pgtype.UUID{Bytes: customerID, Valid: true}

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}
	store.getCustomerFn = func(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error) {
		return database.Customer{ID: customerID, ShopID: shopID, Phone: "+15550001111"}, nil
	}
	store.updateQuoteStatusFn = func(ctx context.Context, arg database.UpdateQuoteStatusParams) (database.Quote, error) {
		updated := q
		updated.Status = arg.Status
		updated.SentAt = arg.At
		return updated, nil
	}

	svc, notifier := newQuoteTestService(store, clock.NewFixed(validUntil.Add(-24*time.Hour)))
	notifier.result = notify.Result{Status: notify.StatusFailed, ErrorDetail: "gateway timeout"}

	result, err := svc.Send(context.Background(), shopID, q.ID, "SMS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A gateway failure is reported, not fatal; the quote is sent and
	// the staff can resend from the SENT state later.
	if result.Quote.Status != "SENT" {
		t.Errorf("status: got %v, want SENT", result.Quote.Status)
	}
	if len(notifier.recipients) != 1 {
		t.Errorf("send attempts: got %d, want 1", len(notifier.recipients))
	}
}

func TestSendQuote_RequiresDraft(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	q := quoteAt("SENT", time.Now().Add(24*time.Hour))
	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))
	_, err := svc.Send(context.Background(), shopID, q.ID, "EMAIL")
	if !errors.Is(err, ErrQuoteStatus) {
		t.Fatalf("expected ErrQuoteStatus, got: %v", err)
	}
}

func TestSendQuote_NoContactForChannel(t *testing.T) {
	shopID := uuid.New()
	customerID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	q := quoteAt("DRAFT", time.Now().Add(24*time.Hour))
	q.CustomerID = pgtype.UUID{Bytes: customerID, Valid: true}

	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}
	store.getCustomerFn = func(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error) {
		// phone only, no email
		return database.Customer{ID: customerID, ShopID: shopID, Phone: "+15550001111"}, nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))
	_, err := svc.Send(context.Background(), shopID, q.ID, "EMAIL")
	if !errors.Is(err, ErrCustomerUnreachable) {
		t.Fatalf("expected ErrCustomerUnreachable, got: %v", err)
	}
}

func TestSendQuote_InvalidChannel(t *testing.T) {
	store := defaultQuoteStore(uuid.New(), uuid.New())
	svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))

	_, err := svc.Send(context.Background(), uuid.New(), uuid.New(), "CARRIER_PIGEON")
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got: %v", err)
	}
}

func TestAcceptQuote_FromSentOrViewed(t *testing.T) {
	for _, status := range []string{"SENT", "VIEWED"} {
		t.Run(status, func(t *testing.T) {
			shopID := uuid.New()
			store := defaultQuoteStore(shopID, uuid.New())
			q := quoteAt(status, time.Now().Add(24*time.Hour))
			store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
				return q, nil
			}

			svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))
			updated, err := svc.Accept(context.Background(), shopID, q.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Status != "ACCEPTED" {
				t.Errorf("status: got %v, want ACCEPTED", updated.Status)
			}
		})
	}
}

func TestAcceptQuote_ExpiredWindow(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	validUntil := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := quoteAt("VIEWED", validUntil)
	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(validUntil.Add(time.Minute)))
	_, err := svc.Accept(context.Background(), shopID, q.ID)
	if !errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got: %v", err)
	}
}

func TestMarkViewed_RequiresSent(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	q := quoteAt("DRAFT", time.Now().Add(24*time.Hour))
	store.getQuoteFn = func(ctx context.Context, arg database.GetQuoteParams) (database.Quote, error) {
		return q, nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(time.Now()))
	_, err := svc.MarkViewed(context.Background(), shopID, q.ID)
	if !errors.Is(err, ErrQuoteStatus) {
		t.Fatalf("expected ErrQuoteStatus, got: %v", err)
	}
}

func TestListQuotes_LazyExpiresStale(t *testing.T) {
	shopID := uuid.New()
	store := defaultQuoteStore(shopID, uuid.New())
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	stale := quoteAt("SENT", now.Add(-time.Hour))
	fresh := quoteAt("SENT", now.Add(time.Hour))
	store.listQuotesFn = func(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error) {
		return []database.Quote{stale, fresh}, nil
	}

	svc, _ := newQuoteTestService(store, clock.NewFixed(now))
	quotes, err := svc.List(context.Background(), database.ListQuotesParams{ShopID: shopID, Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quotes[0].Status != "EXPIRED" {
		t.Errorf("stale quote: got %v, want EXPIRED", quotes[0].Status)
	}
	if quotes[1].Status != "SENT" {
		t.Errorf("fresh quote: got %v, want SENT", quotes[1].Status)
	}
}
