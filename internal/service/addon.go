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

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/enum"
	"github.com/glosspos/api/internal/job"
	"github.com/glosspos/api/internal/notify"
)

// Errors returned by the add-on workflow.
var (
	ErrAddonNotFound  = errors.New("add-on not found")
	ErrAddonResponded = errors.New("add-on was already responded to")
	ErrAddonExpired   = errors.New("add-on authorization window has passed")
	ErrAddonItem      = errors.New("exactly one of service, product or custom description is required")
	ErrInvalidPhotoID = errors.New("invalid photo id")
)

// ProposeAddonRequest is a staff recommendation for extra work found
// mid-job, sent to the customer for authorization.
type ProposeAddonRequest struct {
	ShopID    uuid.UUID
	JobID     uuid.UUID
	CreatedBy uuid.UUID

	ServiceID         string
	TierName          string
	ProductID         string
	CustomDescription string
	CustomPrice       string

	Discount           string
	PhotoID            string
	PickupDelayMinutes int32
	Message            string

	NotifyChannel string
}

// ProposeAddon prices the recommendation, guards against duplicate
// service proposals, opens the authorization window and notifies the
// customer. Per-unit tiers are exempt from the duplicate guard: more
// units of the same service is a quantity bump, not a re-sale.
func (s *JobService) ProposeAddon(ctx context.Context, req ProposeAddonRequest) (database.JobAddon, error) {
	j, err := s.getJob(ctx, req.ShopID, req.JobID)
	if err != nil {
		return database.JobAddon{}, err
	}
	if j.Status != enum.JobStatusInProgress {
		return database.JobAddon{}, ErrJobStatus
	}

	picked := 0
	for _, set := range []bool{req.ServiceID != "", req.ProductID != "", req.CustomDescription != ""} {
		if set {
			picked++
		}
	}
	if picked != 1 {
		return database.JobAddon{}, ErrAddonItem
	}

	sizeClass := ""
	if j.VehicleID.Valid {
		vehicle, err := s.store.GetVehicle(ctx, uuid.UUID(j.VehicleID.Bytes))
		if err == nil {
			sizeClass = vehicle.SizeClass
		}
	}

	var (
		name      string
		price     decimal.Decimal
		serviceID = pgtype.UUID{}
		productID = pgtype.UUID{}
		customDsc = pgtype.Text{}
	)
	switch {
	case req.ServiceID != "":
		sid, err := uuid.Parse(req.ServiceID)
		if err != nil {
			return database.JobAddon{}, ErrInvalidServiceID
		}
		svc, err := s.store.GetService(ctx, database.GetServiceParams{ID: sid, ShopID: req.ShopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.JobAddon{}, ErrServiceNotFound
			}
			return database.JobAddon{}, fmt.Errorf("get service: %w", err)
		}
		tierRow, err := s.store.GetServiceTier(ctx, database.GetServiceTierParams{
			ServiceID: sid,
			Name:      req.TierName,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.JobAddon{}, ErrTierNotFound
			}
			return database.JobAddon{}, fmt.Errorf("get tier: %w", err)
		}

		if !tierRow.PerUnit {
			services, err := s.store.ListJobServices(ctx, req.JobID)
			if err != nil {
				return database.JobAddon{}, fmt.Errorf("list job services: %w", err)
			}
			addons, err := s.expireStaleAddons(ctx, req.JobID)
			if err != nil {
				return database.JobAddon{}, err
			}
			serviceIDs := make([]uuid.UUID, 0, len(services))
			for _, js := range services {
				serviceIDs = append(serviceIDs, js.ServiceID)
			}
			if job.ServiceOnJob(serviceIDs, addonsToDomain(addons), sid) {
				return database.JobAddon{}, job.ErrDuplicateService
			}
		}

		name = svc.Name
		price = resolveTierPrice(tierRow, sizeClass)
		serviceID = pgtype.UUID{Bytes: sid, Valid: true}

	case req.ProductID != "":
		pid, err := uuid.Parse(req.ProductID)
		if err != nil {
			return database.JobAddon{}, ErrInvalidProductID
		}
		product, err := s.store.GetProduct(ctx, database.GetProductParams{ID: pid, ShopID: req.ShopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.JobAddon{}, ErrProductNotFound
			}
			return database.JobAddon{}, fmt.Errorf("get product: %w", err)
		}
		name = product.Name
		price = database.NumericToDecimal(product.Price)
		productID = pgtype.UUID{Bytes: pid, Valid: true}

	default:
		p, err := decimal.NewFromString(req.CustomPrice)
		if err != nil || p.IsNegative() {
			return database.JobAddon{}, ErrInvalidAmount
		}
		name = req.CustomDescription
		price = p
		customDsc = pgtype.Text{String: req.CustomDescription, Valid: true}
	}

	discount := decimal.Zero
	if req.Discount != "" {
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil || discount.IsNegative() {
			return database.JobAddon{}, ErrInvalidAmount
		}
	}
	if err := job.ValidateAddonDiscount(price, discount); err != nil {
		return database.JobAddon{}, err
	}

	photoID := pgtype.UUID{}
	if req.PhotoID != "" {
		phid, err := uuid.Parse(req.PhotoID)
		if err != nil {
			return database.JobAddon{}, ErrInvalidPhotoID
		}
		if _, err := s.store.GetJobPhoto(ctx, database.GetJobPhotoParams{ID: phid, JobID: req.JobID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.JobAddon{}, ErrInvalidPhotoID
			}
			return database.JobAddon{}, fmt.Errorf("get job photo: %w", err)
		}
		photoID = pgtype.UUID{Bytes: phid, Valid: true}
	}

	message := pgtype.Text{}
	if req.Message != "" {
		message = pgtype.Text{String: req.Message, Valid: true}
	}

	now := s.clock.Now()
	addon, err := s.store.CreateJobAddon(ctx, database.CreateJobAddonParams{
		JobID:             req.JobID,
		Status:            enum.AddonStatusPending,
		ServiceID:         serviceID,
		ProductID:         productID,
		CustomDescription: customDsc,
		Name:              name,

		Price:          database.DecimalToNumeric(price),
		DiscountAmount: database.DecimalToNumeric(discount),

		PhotoID:            photoID,
		PickupDelayMinutes: req.PickupDelayMinutes,
		Message:            message,

		SentAt:    now,
		ExpiresAt: now.Add(s.addonExpiry),
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return database.JobAddon{}, fmt.Errorf("create addon: %w", err)
	}

	s.notifyAddon(ctx, j, addon, req.NotifyChannel)
	return addon, nil
}

// RespondAddon records the customer's approve or decline. An approval
// with a pickup delay pushes the estimated pickup time out.
func (s *JobService) RespondAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, approved bool) (database.JobAddon, error) {
	j, err := s.getJob(ctx, shopID, jobID)
	if err != nil {
		return database.JobAddon{}, err
	}
	addon, err := s.getAddonCurrent(ctx, jobID, addonID)
	if err != nil {
		return database.JobAddon{}, err
	}
	switch addon.Status {
	case enum.AddonStatusPending:
	case enum.AddonStatusExpired:
		return database.JobAddon{}, ErrAddonExpired
	default:
		return database.JobAddon{}, ErrAddonResponded
	}

	status := enum.AddonStatusDeclined
	if approved {
		status = enum.AddonStatusApproved
	}
	now := s.clock.Now()
	responded, err := s.store.RespondJobAddon(ctx, database.RespondJobAddonParams{
		ID:          addonID,
		Status:      status,
		RespondedAt: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with expiry or another response.
			return database.JobAddon{}, ErrAddonResponded
		}
		return database.JobAddon{}, fmt.Errorf("respond addon: %w", err)
	}

	if approved && responded.PickupDelayMinutes > 0 && j.EstimatedPickupAt.Valid {
		delayed := j.EstimatedPickupAt.Time.Add(time.Duration(responded.PickupDelayMinutes) * time.Minute)
		if _, err := s.store.UpdateEstimatedPickup(ctx, database.UpdateEstimatedPickupParams{
			ID: jobID,
			At: pgtype.Timestamptz{Time: delayed, Valid: true},
		}); err != nil {
			return database.JobAddon{}, fmt.Errorf("update pickup estimate: %w", err)
		}
	}
	return responded, nil
}

// ResendAddon reopens the authorization window on an expired or
// declined add-on and notifies the customer again.
func (s *JobService) ResendAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, channel string) (database.JobAddon, error) {
	j, err := s.getJob(ctx, shopID, jobID)
	if err != nil {
		return database.JobAddon{}, err
	}
	if j.Status != enum.JobStatusInProgress {
		return database.JobAddon{}, ErrJobStatus
	}
	addon, err := s.getAddonCurrent(ctx, jobID, addonID)
	if err != nil {
		return database.JobAddon{}, err
	}
	if !job.CanResend(addon.Status) {
		return database.JobAddon{}, job.ErrAddonNotResendable
	}

	now := s.clock.Now()
	resent, err := s.store.ResendJobAddon(ctx, database.ResendJobAddonParams{
		ID:        addonID,
		SentAt:    now,
		ExpiresAt: now.Add(s.addonExpiry),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.JobAddon{}, job.ErrAddonNotResendable
		}
		return database.JobAddon{}, fmt.Errorf("resend addon: %w", err)
	}

	s.notifyAddon(ctx, j, resent, channel)
	return resent, nil
}

// getAddonCurrent fetches an add-on and applies lazy expiry before
// returning it, persisting the flip when one happens.
func (s *JobService) getAddonCurrent(ctx context.Context, jobID, addonID uuid.UUID) (database.JobAddon, error) {
	addon, err := s.store.GetJobAddon(ctx, database.GetJobAddonParams{ID: addonID, JobID: jobID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.JobAddon{}, ErrAddonNotFound
		}
		return database.JobAddon{}, fmt.Errorf("get addon: %w", err)
	}
	evaluated, changed := job.EvaluateExpiry(addonFromRow(addon), s.clock.Now())
	if changed {
		if err := s.store.ExpireJobAddon(ctx, addon.ID); err != nil {
			return database.JobAddon{}, fmt.Errorf("expire addon: %w", err)
		}
		addon.Status = evaluated.Status
	}
	return addon, nil
}

// notifyAddon tells the customer about a pending recommendation. Jobs
// without a customer or channel skip silently; staff can still show the
// add-on in person.
func (s *JobService) notifyAddon(ctx context.Context, j database.Job, addon database.JobAddon, channel string) {
	if channel == "" || !j.CustomerID.Valid {
		return
	}
	customer, err := s.store.GetCustomer(ctx, database.GetCustomerParams{
		ID:     uuid.UUID(j.CustomerID.Bytes),
		ShopID: j.ShopID,
	})
	if err != nil {
		return
	}
	recipient, err := customerRecipient(customer, channel)
	if err != nil {
		return
	}

	price := database.NumericToDecimal(addon.Price).Sub(database.NumericToDecimal(addon.DiscountAmount))
	content := fmt.Sprintf("While working on your vehicle we recommend: %s for %s.", addon.Name, price.StringFixed(2))
	if addon.PickupDelayMinutes > 0 {
		content += fmt.Sprintf(" This would delay pickup by about %d minutes.", addon.PickupDelayMinutes)
	}
	if addon.Message.Valid {
		content += " " + addon.Message.String
	}
	if res := s.notifier.SendMessage(ctx, channel, recipient, content); res.Status == notify.StatusFailed {
		log.Printf("WARNING: add-on %s: %s notification failed: %s", addon.ID, channel, res.ErrorDetail)
	}
}
