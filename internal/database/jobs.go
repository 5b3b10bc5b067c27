package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, shop_id, origin, status, customer_id, vehicle_id, notes,
	scheduled_at, intake_started_at, intake_completed_at,
	timer_seconds, work_started_at, timer_paused_at,
	work_completed_at, estimated_pickup_at, actual_pickup_at, closed_at,
	cancelled_at, cancel_reason, order_id,
	created_by, created_at, updated_at`

const createJob = `
INSERT INTO jobs (shop_id, origin, status, customer_id, vehicle_id, notes, scheduled_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + jobColumns

type CreateJobParams struct {
	ShopID      uuid.UUID
	Origin      string
	Status      string
	CustomerID  pgtype.UUID
	VehicleID   pgtype.UUID
	Notes       pgtype.Text
	ScheduledAt pgtype.Timestamptz
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) (Job, error) {
	row := q.db.QueryRow(ctx, createJob, arg.ShopID, arg.Origin, arg.Status,
		arg.CustomerID, arg.VehicleID, arg.Notes, arg.ScheduledAt, arg.CreatedBy)
	return scanJob(row)
}

const getJob = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1 AND shop_id = $2
`

type GetJobParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetJob(ctx context.Context, arg GetJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, getJob, arg.ID, arg.ShopID))
}

const listJobs = `
SELECT ` + jobColumns + `
FROM jobs
WHERE shop_id = $1
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListJobsParams struct {
	ShopID uuid.UUID
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListJobs(ctx context.Context, arg ListJobsParams) ([]Job, error) {
	rows, err := q.db.Query(ctx, listJobs, arg.ShopID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const startJobIntake = `
UPDATE jobs
SET status = 'INTAKE', intake_started_at = $2, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type StartJobIntakeParams struct {
	ID uuid.UUID
	At pgtype.Timestamptz
}

func (q *Queries) StartJobIntake(ctx context.Context, arg StartJobIntakeParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, startJobIntake, arg.ID, arg.At))
}

const setIntakeCompleted = `
UPDATE jobs
SET intake_completed_at = $2, updated_at = now()
WHERE id = $1 AND intake_completed_at IS NULL
RETURNING ` + jobColumns

type SetIntakeCompletedParams struct {
	ID uuid.UUID
	At pgtype.Timestamptz
}

// SetIntakeCompleted records intake completion exactly once; a second
// call finds intake_completed_at already set and returns no rows.
func (q *Queries) SetIntakeCompleted(ctx context.Context, arg SetIntakeCompletedParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, setIntakeCompleted, arg.ID, arg.At))
}

const startJobWork = `
UPDATE jobs
SET status = 'IN_PROGRESS', work_started_at = $2, timer_paused_at = NULL,
    estimated_pickup_at = $3, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type StartJobWorkParams struct {
	ID                uuid.UUID
	At                pgtype.Timestamptz
	EstimatedPickupAt pgtype.Timestamptz
}

func (q *Queries) StartJobWork(ctx context.Context, arg StartJobWorkParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, startJobWork, arg.ID, arg.At, arg.EstimatedPickupAt))
}

const updateJobTimer = `
UPDATE jobs
SET timer_seconds = $2, work_started_at = $3, timer_paused_at = $4, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type UpdateJobTimerParams struct {
	ID            uuid.UUID
	TimerSeconds  int64
	WorkStartedAt pgtype.Timestamptz
	TimerPausedAt pgtype.Timestamptz
}

func (q *Queries) UpdateJobTimer(ctx context.Context, arg UpdateJobTimerParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, updateJobTimer, arg.ID, arg.TimerSeconds, arg.WorkStartedAt, arg.TimerPausedAt))
}

const completeJobWork = `
UPDATE jobs
SET status = 'COMPLETED', work_completed_at = $2,
    timer_seconds = $3, work_started_at = NULL, timer_paused_at = NULL,
    updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type CompleteJobWorkParams struct {
	ID           uuid.UUID
	At           pgtype.Timestamptz
	TimerSeconds int64
}

func (q *Queries) CompleteJobWork(ctx context.Context, arg CompleteJobWorkParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, completeJobWork, arg.ID, arg.At, arg.TimerSeconds))
}

const recordJobPickup = `
UPDATE jobs
SET actual_pickup_at = $2, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type RecordJobPickupParams struct {
	ID uuid.UUID
	At pgtype.Timestamptz
}

func (q *Queries) RecordJobPickup(ctx context.Context, arg RecordJobPickupParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, recordJobPickup, arg.ID, arg.At))
}

const closeJob = `
UPDATE jobs
SET status = 'CLOSED', closed_at = $2, order_id = $3, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type CloseJobParams struct {
	ID      uuid.UUID
	At      pgtype.Timestamptz
	OrderID pgtype.UUID
}

func (q *Queries) CloseJob(ctx context.Context, arg CloseJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, closeJob, arg.ID, arg.At, arg.OrderID))
}

const cancelJob = `
UPDATE jobs
SET status = 'CANCELLED', cancelled_at = $2, cancel_reason = $3, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type CancelJobParams struct {
	ID     uuid.UUID
	At     pgtype.Timestamptz
	Reason pgtype.Text
}

func (q *Queries) CancelJob(ctx context.Context, arg CancelJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, cancelJob, arg.ID, arg.At, arg.Reason))
}

const updateEstimatedPickup = `
UPDATE jobs
SET estimated_pickup_at = $2, updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type UpdateEstimatedPickupParams struct {
	ID uuid.UUID
	At pgtype.Timestamptz
}

func (q *Queries) UpdateEstimatedPickup(ctx context.Context, arg UpdateEstimatedPickupParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, updateEstimatedPickup, arg.ID, arg.At))
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.ShopID, &j.Origin, &j.Status, &j.CustomerID, &j.VehicleID, &j.Notes,
		&j.ScheduledAt, &j.IntakeStartedAt, &j.IntakeCompletedAt,
		&j.TimerSeconds, &j.WorkStartedAt, &j.TimerPausedAt,
		&j.WorkCompletedAt, &j.EstimatedPickupAt, &j.ActualPickupAt, &j.ClosedAt,
		&j.CancelledAt, &j.CancelReason, &j.OrderID,
		&j.CreatedBy, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// ── Job service snapshots ──

const createJobService = `
INSERT INTO job_services (job_id, service_id, name, price, tier_name)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, job_id, service_id, name, price, tier_name
`

type CreateJobServiceParams struct {
	JobID     uuid.UUID
	ServiceID uuid.UUID
	Name      string
	Price     pgtype.Numeric
	TierName  pgtype.Text
}

func (q *Queries) CreateJobService(ctx context.Context, arg CreateJobServiceParams) (JobService, error) {
	row := q.db.QueryRow(ctx, createJobService, arg.JobID, arg.ServiceID, arg.Name, arg.Price, arg.TierName)
	return scanJobService(row)
}

const listJobServices = `
SELECT id, job_id, service_id, name, price, tier_name
FROM job_services
WHERE job_id = $1
ORDER BY name
`

func (q *Queries) ListJobServices(ctx context.Context, jobID uuid.UUID) ([]JobService, error) {
	rows, err := q.db.Query(ctx, listJobServices, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []JobService
	for rows.Next() {
		s, err := scanJobService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func scanJobService(row rowScanner) (JobService, error) {
	var s JobService
	err := row.Scan(&s.ID, &s.JobID, &s.ServiceID, &s.Name, &s.Price, &s.TierName)
	return s, err
}
