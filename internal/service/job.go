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
	"github.com/glosspos/api/internal/job"
	"github.com/glosspos/api/internal/notify"
	"github.com/glosspos/api/internal/pricing"
)

// Errors returned by the job service.
var (
	ErrJobNotFound           = errors.New("job not found")
	ErrJobStatus             = errors.New("job status does not allow this operation")
	ErrInvalidOrigin         = errors.New("invalid job origin")
	ErrNoServices            = errors.New("at least one service is required")
	ErrUnknownZone           = errors.New("unknown photo zone")
	ErrInvalidPhase          = errors.New("invalid photo phase")
	ErrIntakeIncomplete      = errors.New("intake photo coverage is incomplete")
	ErrCoverageShortfall     = errors.New("completion photo coverage is incomplete")
	ErrCancelNotAllowed      = errors.New("role may not cancel the job in its current status")
	ErrNotifyChannelRequired = errors.New("cancelling an appointment requires a notification channel")
	ErrInvalidScheduleTime   = errors.New("invalid scheduled_at")
	ErrInvalidPickupTime     = errors.New("invalid estimated pickup time")
	ErrInvalidOrderID        = errors.New("invalid order id")
)

// JobStore defines the DB methods the job lifecycle needs.
// Satisfied by *database.Queries (and its WithTx variant).
type JobStore interface {
	CreateJob(ctx context.Context, arg database.CreateJobParams) (database.Job, error)
	GetJob(ctx context.Context, arg database.GetJobParams) (database.Job, error)
	ListJobs(ctx context.Context, arg database.ListJobsParams) ([]database.Job, error)
	StartJobIntake(ctx context.Context, arg database.StartJobIntakeParams) (database.Job, error)
	SetIntakeCompleted(ctx context.Context, arg database.SetIntakeCompletedParams) (database.Job, error)
	StartJobWork(ctx context.Context, arg database.StartJobWorkParams) (database.Job, error)
	UpdateJobTimer(ctx context.Context, arg database.UpdateJobTimerParams) (database.Job, error)
	CompleteJobWork(ctx context.Context, arg database.CompleteJobWorkParams) (database.Job, error)
	RecordJobPickup(ctx context.Context, arg database.RecordJobPickupParams) (database.Job, error)
	CloseJob(ctx context.Context, arg database.CloseJobParams) (database.Job, error)
	CancelJob(ctx context.Context, arg database.CancelJobParams) (database.Job, error)
	UpdateEstimatedPickup(ctx context.Context, arg database.UpdateEstimatedPickupParams) (database.Job, error)

	CreateJobService(ctx context.Context, arg database.CreateJobServiceParams) (database.JobService, error)
	ListJobServices(ctx context.Context, jobID uuid.UUID) ([]database.JobService, error)

	CreateJobPhoto(ctx context.Context, arg database.CreateJobPhotoParams) (database.JobPhoto, error)
	GetJobPhoto(ctx context.Context, arg database.GetJobPhotoParams) (database.JobPhoto, error)
	ListJobPhotos(ctx context.Context, arg database.ListJobPhotosParams) ([]database.JobPhoto, error)
	CountPhotosByZone(ctx context.Context, arg database.CountPhotosByZoneParams) (map[string]int, error)

	CreateJobAddon(ctx context.Context, arg database.CreateJobAddonParams) (database.JobAddon, error)
	GetJobAddon(ctx context.Context, arg database.GetJobAddonParams) (database.JobAddon, error)
	ListJobAddons(ctx context.Context, jobID uuid.UUID) ([]database.JobAddon, error)
	RespondJobAddon(ctx context.Context, arg database.RespondJobAddonParams) (database.JobAddon, error)
	ExpireJobAddon(ctx context.Context, id uuid.UUID) error
	ResendJobAddon(ctx context.Context, arg database.ResendJobAddonParams) (database.JobAddon, error)

	GetService(ctx context.Context, arg database.GetServiceParams) (database.Service, error)
	GetServiceTier(ctx context.Context, arg database.GetServiceTierParams) (database.ServiceTier, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (database.Vehicle, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
}

// NewJobStore creates a JobStore from a DBTX (pool or tx).
type NewJobStore func(db database.DBTX) JobStore

// JobService orchestrates the job state machine over persistence,
// photos, the work timer, add-on authorizations and notifications.
type JobService struct {
	pool     TxBeginner
	newStore NewJobStore
	store    JobStore
	clock    clock.Clock
	notifier notify.Notifier

	intakeReq     job.Requirement
	completionReq job.Requirement
	addonExpiry   time.Duration
}

func NewJobService(pool TxBeginner, newStore NewJobStore, store JobStore, clk clock.Clock, notifier notify.Notifier,
	intakeReq, completionReq job.Requirement, addonExpiry time.Duration) *JobService {
	return &JobService{
		pool:          pool,
		newStore:      newStore,
		store:         store,
		clock:         clk,
		notifier:      notifier,
		intakeReq:     intakeReq,
		completionReq: completionReq,
		addonExpiry:   addonExpiry,
	}
}

// JobServiceRequest selects one catalog service and tier for a job.
type JobServiceRequest struct {
	ServiceID string
	TierName  string
}

// CreateJobRequest is the validated input for booking a job. Walk-ins
// are created SCHEDULED too; staff immediately starts intake on them.
type CreateJobRequest struct {
	ShopID    uuid.UUID
	CreatedBy uuid.UUID

	Origin      string
	CustomerID  string
	VehicleID   string
	Notes       string
	ScheduledAt string // RFC3339, required for appointments

	Services []JobServiceRequest
}

// JobDetail is a job with everything derived: service snapshots,
// add-ons (after lazy expiry), photos, the externally visible status
// and the live timer reading.
type JobDetail struct {
	Job      database.Job
	Services []database.JobService
	Addons   []database.JobAddon
	Photos   []database.JobPhoto

	EffectiveStatus string
	ElapsedSeconds  int64
	TimerRunning    bool
}

// JobSummary is the list view of a job.
type JobSummary struct {
	Job             database.Job
	EffectiveStatus string
	ElapsedSeconds  int64
}

// Create books a job and snapshots its service prices. The snapshot is
// priced against the vehicle on the job, so later catalog edits never
// change what was sold.
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (*JobDetail, error) {
	switch req.Origin {
	case enum.JobOriginAppointment, enum.JobOriginWalkIn:
	default:
		return nil, ErrInvalidOrigin
	}
	if len(req.Services) == 0 {
		return nil, ErrNoServices
	}

	scheduledAt := pgtype.Timestamptz{}
	if req.Origin == enum.JobOriginAppointment {
		if req.ScheduledAt == "" {
			return nil, ErrInvalidScheduleTime
		}
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScheduleTime, err)
		}
		scheduledAt = pgtype.Timestamptz{Time: t, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

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
	sizeClass := ""
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
		sizeClass = vehicle.SizeClass
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	created, err := store.CreateJob(ctx, database.CreateJobParams{
		ShopID:      req.ShopID,
		Origin:      req.Origin,
		Status:      enum.JobStatusScheduled,
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		Notes:       notes,
		ScheduledAt: scheduledAt,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	var services []database.JobService
	for i, sr := range req.Services {
		serviceID, err := uuid.Parse(sr.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("service[%d]: %w", i, ErrInvalidServiceID)
		}
		svc, err := store.GetService(ctx, database.GetServiceParams{ID: serviceID, ShopID: req.ShopID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("service[%d]: %w", i, ErrServiceNotFound)
			}
			return nil, fmt.Errorf("service[%d]: get service: %w", i, err)
		}
		tierRow, err := store.GetServiceTier(ctx, database.GetServiceTierParams{
			ServiceID: serviceID,
			Name:      sr.TierName,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("service[%d]: %w", i, ErrTierNotFound)
			}
			return nil, fmt.Errorf("service[%d]: get tier: %w", i, err)
		}
		price := resolveTierPrice(tierRow, sizeClass)
		snapshot, err := store.CreateJobService(ctx, database.CreateJobServiceParams{
			JobID:     created.ID,
			ServiceID: serviceID,
			Name:      svc.Name,
			Price:     database.DecimalToNumeric(price),
			TierName:  pgtype.Text{String: tierRow.Name, Valid: true},
		})
		if err != nil {
			return nil, fmt.Errorf("create job service: %w", err)
		}
		services = append(services, snapshot)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &JobDetail{
		Job:             created,
		Services:        services,
		EffectiveStatus: created.Status,
	}, nil
}

// Get returns the job with derived fields. Reading is not free of side
// effects: pending add-ons past their window are persisted as EXPIRED
// on the way out (idempotently, so concurrent readers agree).
func (s *JobService) Get(ctx context.Context, shopID, id uuid.UUID) (*JobDetail, error) {
	j, err := s.store.GetJob(ctx, database.GetJobParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return s.detail(ctx, j)
}

func (s *JobService) detail(ctx context.Context, j database.Job) (*JobDetail, error) {
	services, err := s.store.ListJobServices(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("list job services: %w", err)
	}
	addons, err := s.expireStaleAddons(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.ListJobPhotos(ctx, database.ListJobPhotosParams{JobID: j.ID})
	if err != nil {
		return nil, fmt.Errorf("list job photos: %w", err)
	}

	now := s.clock.Now()
	t := timerFromJob(j)
	return &JobDetail{
		Job:             j,
		Services:        services,
		Addons:          addons,
		Photos:          photos,
		EffectiveStatus: job.EffectiveStatus(j.Status, addonsToDomain(addons)),
		ElapsedSeconds:  t.ElapsedSeconds(now),
		TimerRunning:    t.Running(),
	}, nil
}

// List returns jobs with derived statuses and timer readings.
func (s *JobService) List(ctx context.Context, arg database.ListJobsParams) ([]JobSummary, error) {
	jobs, err := s.store.ListJobs(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	now := s.clock.Now()
	summaries := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		addons, err := s.expireStaleAddons(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, JobSummary{
			Job:             j,
			EffectiveStatus: job.EffectiveStatus(j.Status, addonsToDomain(addons)),
			ElapsedSeconds:  timerFromJob(j).ElapsedSeconds(now),
		})
	}
	return summaries, nil
}

// StartIntake moves a scheduled job into the intake walkthrough.
func (s *JobService) StartIntake(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if !job.CanTransition(j.Status, enum.JobStatusIntake) {
		return database.Job{}, ErrJobStatus
	}
	return s.store.StartJobIntake(ctx, database.StartJobIntakeParams{
		ID: id,
		At: pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
	})
}

// CapturePhotoRequest is one photo being attached to a job.
type CapturePhotoRequest struct {
	ShopID uuid.UUID
	JobID  uuid.UUID

	Zone        string
	Phase       string
	ImageRef    string
	Annotations string
	IsInternal  bool
	TakenBy     uuid.UUID
}

// CapturePhotoResult is the stored photo plus the coverage state of its
// phase after this capture.
type CapturePhotoResult struct {
	Photo    database.JobPhoto
	Coverage job.Coverage

	// IntakeCompleted is true when this capture was the one that
	// satisfied intake coverage.
	IntakeCompleted bool
	Job             database.Job
}

// CapturePhoto stores a photo and updates phase coverage. The first
// capture that satisfies intake coverage records intake completion on
// the job; that record is written once and never again.
func (s *JobService) CapturePhoto(ctx context.Context, req CapturePhotoRequest) (*CapturePhotoResult, error) {
	if job.ZoneRegion(req.Zone) == "" {
		return nil, ErrUnknownZone
	}
	j, err := s.getJob(ctx, req.ShopID, req.JobID)
	if err != nil {
		return nil, err
	}
	switch req.Phase {
	case enum.PhotoPhaseIntake:
		if j.Status != enum.JobStatusIntake {
			return nil, ErrJobStatus
		}
	case enum.PhotoPhaseProgress, enum.PhotoPhaseCompletion:
		if j.Status != enum.JobStatusInProgress {
			return nil, ErrJobStatus
		}
	default:
		return nil, ErrInvalidPhase
	}

	annotations := pgtype.Text{}
	if req.Annotations != "" {
		annotations = pgtype.Text{String: req.Annotations, Valid: true}
	}
	photo, err := s.store.CreateJobPhoto(ctx, database.CreateJobPhotoParams{
		JobID:       req.JobID,
		Zone:        req.Zone,
		Phase:       req.Phase,
		ImageRef:    req.ImageRef,
		Annotations: annotations,
		IsInternal:  req.IsInternal,
		TakenBy:     req.TakenBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create job photo: %w", err)
	}

	coverage, err := s.phaseCoverage(ctx, req.JobID, req.Phase)
	if err != nil {
		return nil, err
	}

	result := &CapturePhotoResult{Photo: photo, Coverage: coverage, Job: j}
	if req.Phase == enum.PhotoPhaseIntake && !j.IntakeCompletedAt.Valid && coverage.Met() {
		updated, err := s.store.SetIntakeCompleted(ctx, database.SetIntakeCompletedParams{
			ID: req.JobID,
			At: pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
		})
		switch {
		case err == nil:
			result.IntakeCompleted = true
			result.Job = updated
		case errors.Is(err, pgx.ErrNoRows):
			// Another capture won the race; completion is already recorded.
		default:
			return nil, fmt.Errorf("set intake completed: %w", err)
		}
	}
	return result, nil
}

// Coverage reports the current photo coverage for a phase.
func (s *JobService) Coverage(ctx context.Context, shopID, id uuid.UUID, phase string) (job.Coverage, error) {
	switch phase {
	case enum.PhotoPhaseIntake, enum.PhotoPhaseProgress, enum.PhotoPhaseCompletion:
	default:
		return job.Coverage{}, ErrInvalidPhase
	}
	if _, err := s.getJob(ctx, shopID, id); err != nil {
		return job.Coverage{}, err
	}
	return s.phaseCoverage(ctx, id, phase)
}

// StartWork moves an intaken job to IN_PROGRESS and starts the timer.
// Blocked until intake coverage was satisfied.
func (s *JobService) StartWork(ctx context.Context, shopID, id uuid.UUID, estimatedPickup string) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if !job.CanTransition(j.Status, enum.JobStatusInProgress) {
		return database.Job{}, ErrJobStatus
	}
	if !j.IntakeCompletedAt.Valid {
		coverage, err := s.phaseCoverage(ctx, id, enum.PhotoPhaseIntake)
		if err != nil {
			return database.Job{}, err
		}
		return database.Job{}, fmt.Errorf("%w: need %s", ErrIntakeIncomplete, coverage.Shortfall())
	}

	estimate := pgtype.Timestamptz{}
	if estimatedPickup != "" {
		t, err := time.Parse(time.RFC3339, estimatedPickup)
		if err != nil {
			return database.Job{}, fmt.Errorf("%w: %w", ErrInvalidPickupTime, err)
		}
		estimate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	return s.store.StartJobWork(ctx, database.StartJobWorkParams{
		ID:                id,
		At:                pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
		EstimatedPickupAt: estimate,
	})
}

// PauseTimer folds the running segment into the accumulator.
func (s *JobService) PauseTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if j.Status != enum.JobStatusInProgress {
		return database.Job{}, ErrJobStatus
	}
	paused, err := timerFromJob(j).Pause(s.clock.Now())
	if err != nil {
		return database.Job{}, err
	}
	return s.store.UpdateJobTimer(ctx, timerParams(id, paused))
}

// ResumeTimer opens a new running segment.
func (s *JobService) ResumeTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if j.Status != enum.JobStatusInProgress {
		return database.Job{}, ErrJobStatus
	}
	resumed, err := timerFromJob(j).Resume(s.clock.Now())
	if err != nil {
		return database.Job{}, err
	}
	return s.store.UpdateJobTimer(ctx, timerParams(id, resumed))
}

// CompleteWork finishes the detailing work. Blocked until completion
// photo coverage is satisfied; the final timer reading is frozen.
func (s *JobService) CompleteWork(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if !job.CanTransition(j.Status, enum.JobStatusCompleted) {
		return database.Job{}, ErrJobStatus
	}
	coverage, err := s.phaseCoverage(ctx, id, enum.PhotoPhaseCompletion)
	if err != nil {
		return database.Job{}, err
	}
	if !coverage.Met() {
		return database.Job{}, fmt.Errorf("%w: need %s", ErrCoverageShortfall, coverage.Shortfall())
	}

	now := s.clock.Now()
	return s.store.CompleteJobWork(ctx, database.CompleteJobWorkParams{
		ID:           id,
		At:           pgtype.Timestamptz{Time: now, Valid: true},
		TimerSeconds: timerFromJob(j).ElapsedSeconds(now),
	})
}

// RecordPickup stamps the actual vehicle pickup on a completed job.
func (s *JobService) RecordPickup(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if j.Status != enum.JobStatusCompleted {
		return database.Job{}, ErrJobStatus
	}
	return s.store.RecordJobPickup(ctx, database.RecordJobPickupParams{
		ID: id,
		At: pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
	})
}

// Close archives a completed job, linking the checkout order when one
// was created.
func (s *JobService) Close(ctx context.Context, shopID, id uuid.UUID, orderID string) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if !job.CanTransition(j.Status, enum.JobStatusClosed) {
		return database.Job{}, ErrJobStatus
	}
	orderRef := pgtype.UUID{}
	if orderID != "" {
		oid, err := uuid.Parse(orderID)
		if err != nil {
			return database.Job{}, ErrInvalidOrderID
		}
		orderRef = pgtype.UUID{Bytes: oid, Valid: true}
	}
	return s.store.CloseJob(ctx, database.CloseJobParams{
		ID:      id,
		At:      pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
		OrderID: orderRef,
	})
}

// CancelJobRequest carries the cancellation and its customer
// notification choice.
type CancelJobRequest struct {
	ShopID uuid.UUID
	JobID  uuid.UUID
	Role   string
	Reason string

	// NotifyChannel is required for appointment-originated jobs with a
	// customer on file; walk-ins cancel silently.
	NotifyChannel string
}

// Cancel applies the cancellation policy: any staff before work starts,
// owner or admin once in progress, nobody afterwards. An appointment
// customer must be told over an explicitly chosen channel, and that
// choice is validated before the cancellation is persisted.
func (s *JobService) Cancel(ctx context.Context, req CancelJobRequest) (database.Job, error) {
	j, err := s.getJob(ctx, req.ShopID, req.JobID)
	if err != nil {
		return database.Job{}, err
	}
	if !job.CanCancel(j.Status, req.Role) {
		return database.Job{}, ErrCancelNotAllowed
	}

	var recipient string
	if j.Origin == enum.JobOriginAppointment && j.CustomerID.Valid {
		if req.NotifyChannel == "" {
			return database.Job{}, ErrNotifyChannelRequired
		}
		customer, err := s.store.GetCustomer(ctx, database.GetCustomerParams{
			ID:     uuid.UUID(j.CustomerID.Bytes),
			ShopID: req.ShopID,
		})
		if err != nil {
			return database.Job{}, fmt.Errorf("get customer: %w", err)
		}
		recipient, err = customerRecipient(customer, req.NotifyChannel)
		if err != nil {
			return database.Job{}, err
		}
	}

	reason := pgtype.Text{}
	if req.Reason != "" {
		reason = pgtype.Text{String: req.Reason, Valid: true}
	}
	cancelled, err := s.store.CancelJob(ctx, database.CancelJobParams{
		ID:     req.JobID,
		At:     pgtype.Timestamptz{Time: s.clock.Now(), Valid: true},
		Reason: reason,
	})
	if err != nil {
		return database.Job{}, fmt.Errorf("cancel job: %w", err)
	}

	if recipient != "" {
		content := "Your detailing appointment has been cancelled."
		if req.Reason != "" {
			content = fmt.Sprintf("Your detailing appointment has been cancelled: %s", req.Reason)
		}
		if res := s.notifier.SendMessage(ctx, req.NotifyChannel, recipient, content); res.Status == notify.StatusFailed {
			log.Printf("WARNING: cancel job %s: %s notification failed: %s", req.JobID, req.NotifyChannel, res.ErrorDetail)
		}
	}
	return cancelled, nil
}

// UpdatePickupEstimate moves the estimated pickup time.
func (s *JobService) UpdatePickupEstimate(ctx context.Context, shopID, id uuid.UUID, at string) (database.Job, error) {
	j, err := s.getJob(ctx, shopID, id)
	if err != nil {
		return database.Job{}, err
	}
	if j.Status != enum.JobStatusInProgress && j.Status != enum.JobStatusCompleted {
		return database.Job{}, ErrJobStatus
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return database.Job{}, fmt.Errorf("%w: %w", ErrInvalidPickupTime, err)
	}
	return s.store.UpdateEstimatedPickup(ctx, database.UpdateEstimatedPickupParams{
		ID: id,
		At: pgtype.Timestamptz{Time: t, Valid: true},
	})
}

// ── helpers ──

func (s *JobService) getJob(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	j, err := s.store.GetJob(ctx, database.GetJobParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Job{}, ErrJobNotFound
		}
		return database.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *JobService) phaseCoverage(ctx context.Context, jobID uuid.UUID, phase string) (job.Coverage, error) {
	counts, err := s.store.CountPhotosByZone(ctx, database.CountPhotosByZoneParams{
		JobID: jobID,
		Phase: phase,
	})
	if err != nil {
		return job.Coverage{}, fmt.Errorf("count photos: %w", err)
	}
	req := s.completionReq
	if phase == enum.PhotoPhaseIntake {
		req = s.intakeReq
	}
	return job.EvaluateCoverage(counts, req), nil
}

// expireStaleAddons lists a job's add-ons, persisting EXPIRED for any
// pending one whose window has passed. The persisted update only
// touches PENDING rows, so concurrent readers cannot double-flip.
func (s *JobService) expireStaleAddons(ctx context.Context, jobID uuid.UUID) ([]database.JobAddon, error) {
	addons, err := s.store.ListJobAddons(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job addons: %w", err)
	}
	now := s.clock.Now()
	for i := range addons {
		evaluated, changed := job.EvaluateExpiry(addonFromRow(addons[i]), now)
		if !changed {
			continue
		}
		if err := s.store.ExpireJobAddon(ctx, addons[i].ID); err != nil {
			return nil, fmt.Errorf("expire addon: %w", err)
		}
		addons[i].Status = evaluated.Status
	}
	return addons, nil
}

func timerFromJob(j database.Job) job.Timer {
	return job.Timer{
		Seconds:      j.TimerSeconds,
		RunningSince: timestampPtr(j.WorkStartedAt),
		PausedAt:     timestampPtr(j.TimerPausedAt),
	}
}

func timerParams(id uuid.UUID, t job.Timer) database.UpdateJobTimerParams {
	arg := database.UpdateJobTimerParams{ID: id, TimerSeconds: t.Seconds}
	if t.RunningSince != nil {
		arg.WorkStartedAt = pgtype.Timestamptz{Time: *t.RunningSince, Valid: true}
	}
	if t.PausedAt != nil {
		arg.TimerPausedAt = pgtype.Timestamptz{Time: *t.PausedAt, Valid: true}
	}
	return arg
}

func timestampPtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func addonFromRow(a database.JobAddon) job.Addon {
	addon := job.Addon{
		ID:                 a.ID,
		Status:             a.Status,
		CustomDescription:  a.CustomDescription.String,
		Price:              database.NumericToDecimal(a.Price),
		Discount:           database.NumericToDecimal(a.DiscountAmount),
		PickupDelayMinutes: a.PickupDelayMinutes,
		Message:            a.Message.String,
		SentAt:             a.SentAt,
		RespondedAt:        timestampPtr(a.RespondedAt),
		ExpiresAt:          a.ExpiresAt,
	}
	if a.ServiceID.Valid {
		id := uuid.UUID(a.ServiceID.Bytes)
		addon.ServiceID = &id
	}
	if a.ProductID.Valid {
		id := uuid.UUID(a.ProductID.Bytes)
		addon.ProductID = &id
	}
	if a.PhotoID.Valid {
		id := uuid.UUID(a.PhotoID.Bytes)
		addon.PhotoID = &id
	}
	return addon
}

func addonsToDomain(rows []database.JobAddon) []job.Addon {
	addons := make([]job.Addon, 0, len(rows))
	for _, r := range rows {
		addons = append(addons, addonFromRow(r))
	}
	return addons
}

// resolveTierPrice resolves a stored tier against a vehicle size for
// snapshotting.
func resolveTierPrice(t database.ServiceTier, sizeClass string) decimal.Decimal {
	return pricing.ResolvePrice(TierFromRow(t), sizeClass)
}
