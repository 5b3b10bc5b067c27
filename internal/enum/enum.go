package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	JobStatusScheduled  = "SCHEDULED"
	JobStatusIntake     = "INTAKE"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCompleted  = "COMPLETED"
	JobStatusClosed     = "CLOSED"
	JobStatusCancelled  = "CANCELLED"

	// JobStatusPendingApproval is a derived view only: an IN_PROGRESS job
	// with at least one pending add-on. Never stored.
	JobStatusPendingApproval = "PENDING_APPROVAL"
)

const (
	AddonStatusPending  = "PENDING"
	AddonStatusApproved = "APPROVED"
	AddonStatusDeclined = "DECLINED"
	AddonStatusExpired  = "EXPIRED"
)

const (
	QuoteStatusDraft     = "DRAFT"
	QuoteStatusSent      = "SENT"
	QuoteStatusViewed    = "VIEWED"
	QuoteStatusAccepted  = "ACCEPTED"
	QuoteStatusExpired   = "EXPIRED"
	QuoteStatusConverted = "CONVERTED"
)

const (
	OrderStatusOpen      = "OPEN"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner    = "OWNER"
	UserRoleAdmin    = "ADMIN"
	UserRoleDetailer = "DETAILER"
	UserRoleCashier  = "CASHIER"
)

const (
	JobOriginAppointment = "APPOINTMENT"
	JobOriginWalkIn      = "WALK_IN"
)

const (
	ItemTypeProduct = "PRODUCT"
	ItemTypeService = "SERVICE"
	ItemTypeCustom  = "CUSTOM"
)

const (
	PhotoPhaseIntake     = "INTAKE"
	PhotoPhaseProgress   = "PROGRESS"
	PhotoPhaseCompletion = "COMPLETION"
)

const (
	RegionExterior = "EXTERIOR"
	RegionInterior = "INTERIOR"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	VehicleSizeSedan        = "SEDAN"
	VehicleSizeTruckSuv2Row = "TRUCK_SUV_2ROW"
	VehicleSizeTruckSuv3Row = "TRUCK_SUV_3ROW"
	VehicleSizeSuvVan       = "SUV_VAN"
)

const (
	DiscountKindDollar  = "DOLLAR"
	DiscountKindPercent = "PERCENT"
)

const (
	NotifyChannelEmail = "EMAIL"
	NotifyChannelSMS   = "SMS"
)

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
)
