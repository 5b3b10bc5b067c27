package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Shop struct {
	ID        uuid.UUID
	Name      string
	Phone     pgtype.Text
	Address   pgtype.Text
	CreatedAt time.Time
}

type User struct {
	ID           uuid.UUID
	ShopID       uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Customer struct {
	ID            uuid.UUID
	ShopID        uuid.UUID
	Name          string
	Phone         string
	Email         pgtype.Text
	Notes         pgtype.Text
	LoyaltyPoints int32
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Vehicle struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	Make         string
	Model        string
	Year         pgtype.Int4
	Color        pgtype.Text
	SizeClass    string
	LicensePlate pgtype.Text
	CreatedAt    time.Time
}

type Product struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Taxable   bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Description pgtype.Text
	Taxable     bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ServiceTier struct {
	ID               uuid.UUID
	ServiceID        uuid.UUID
	Name             string
	Label            string
	Price            pgtype.Numeric
	VehicleSizeAware bool
	SedanPrice       pgtype.Numeric
	TruckSuvPrice    pgtype.Numeric
	SuvVanPrice      pgtype.Numeric
	PerUnit          bool
	PerUnitLabel     pgtype.Text
	PerUnitMax       pgtype.Int4
	SortOrder        int32
}

type Order struct {
	ID           uuid.UUID
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
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID               uuid.UUID
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

type Payment struct {
	ID              uuid.UUID
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

type Quote struct {
	ID          uuid.UUID
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

	ConvertedOrderID pgtype.UUID
	SentAt           pgtype.Timestamptz
	ViewedAt         pgtype.Timestamptz
	AcceptedAt       pgtype.Timestamptz

	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QuoteItem struct {
	ID               uuid.UUID
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

type Job struct {
	ID         uuid.UUID
	ShopID     uuid.UUID
	Origin     string
	Status     string
	CustomerID pgtype.UUID
	VehicleID  pgtype.UUID
	Notes      pgtype.Text

	ScheduledAt       pgtype.Timestamptz
	IntakeStartedAt   pgtype.Timestamptz
	IntakeCompletedAt pgtype.Timestamptz

	TimerSeconds  int64
	WorkStartedAt pgtype.Timestamptz
	TimerPausedAt pgtype.Timestamptz

	WorkCompletedAt   pgtype.Timestamptz
	EstimatedPickupAt pgtype.Timestamptz
	ActualPickupAt    pgtype.Timestamptz
	ClosedAt          pgtype.Timestamptz

	CancelledAt  pgtype.Timestamptz
	CancelReason pgtype.Text

	OrderID pgtype.UUID // checkout order recorded at close

	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobService is the immutable price snapshot captured when the job is
// created or edited. Catalog changes never alter an in-flight job.
type JobService struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	ServiceID uuid.UUID
	Name      string
	Price     pgtype.Numeric
	TierName  pgtype.Text
}

type JobPhoto struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	Zone        string
	Phase       string
	ImageRef    string
	Annotations pgtype.Text
	IsInternal  bool
	TakenBy     uuid.UUID
	CreatedAt   time.Time
}

type JobAddon struct {
	ID     uuid.UUID
	JobID  uuid.UUID
	Status string

	ServiceID         pgtype.UUID
	ProductID         pgtype.UUID
	CustomDescription pgtype.Text
	Name              string

	Price          pgtype.Numeric
	DiscountAmount pgtype.Numeric

	PhotoID            pgtype.UUID
	PickupDelayMinutes int32
	Message            pgtype.Text

	SentAt      time.Time
	RespondedAt pgtype.Timestamptz
	ExpiresAt   time.Time

	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
