package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const addonColumns = `id, job_id, status, service_id, product_id, custom_description, name,
	price, discount_amount, photo_id, pickup_delay_minutes, message,
	sent_at, responded_at, expires_at, created_by, created_at, updated_at`

const createJobAddon = `
INSERT INTO job_addons (job_id, status, service_id, product_id, custom_description, name,
	price, discount_amount, photo_id, pickup_delay_minutes, message, sent_at, expires_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + addonColumns

type CreateJobAddonParams struct {
	JobID             uuid.UUID
	Status            string
	ServiceID         pgtype.UUID
	ProductID         pgtype.UUID
	CustomDescription pgtype.Text
	Name              string

	Price          pgtype.Numeric
	DiscountAmount pgtype.Numeric

	PhotoID            pgtype.UUID
	PickupDelayMinutes int32
	Message            pgtype.Text

	SentAt    time.Time
	ExpiresAt time.Time
	CreatedBy uuid.UUID
}

func (q *Queries) CreateJobAddon(ctx context.Context, arg CreateJobAddonParams) (JobAddon, error) {
	row := q.db.QueryRow(ctx, createJobAddon, arg.JobID, arg.Status,
		arg.ServiceID, arg.ProductID, arg.CustomDescription, arg.Name,
		arg.Price, arg.DiscountAmount, arg.PhotoID, arg.PickupDelayMinutes, arg.Message,
		arg.SentAt, arg.ExpiresAt, arg.CreatedBy)
	return scanJobAddon(row)
}

const getJobAddon = `
SELECT ` + addonColumns + `
FROM job_addons
WHERE id = $1 AND job_id = $2
`

type GetJobAddonParams struct {
	ID    uuid.UUID
	JobID uuid.UUID
}

func (q *Queries) GetJobAddon(ctx context.Context, arg GetJobAddonParams) (JobAddon, error) {
	return scanJobAddon(q.db.QueryRow(ctx, getJobAddon, arg.ID, arg.JobID))
}

const listJobAddons = `
SELECT ` + addonColumns + `
FROM job_addons
WHERE job_id = $1
ORDER BY sent_at
`

func (q *Queries) ListJobAddons(ctx context.Context, jobID uuid.UUID) ([]JobAddon, error) {
	rows, err := q.db.Query(ctx, listJobAddons, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addons []JobAddon
	for rows.Next() {
		a, err := scanJobAddon(rows)
		if err != nil {
			return nil, err
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

const respondJobAddon = `
UPDATE job_addons
SET status = $2, responded_at = $3, updated_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + addonColumns

type RespondJobAddonParams struct {
	ID          uuid.UUID
	Status      string
	RespondedAt pgtype.Timestamptz
}

// RespondJobAddon records the customer's approve/decline. The PENDING
// guard makes concurrent responses and late responses after expiry
// no-ops (no rows).
func (q *Queries) RespondJobAddon(ctx context.Context, arg RespondJobAddonParams) (JobAddon, error) {
	return scanJobAddon(q.db.QueryRow(ctx, respondJobAddon, arg.ID, arg.Status, arg.RespondedAt))
}

const expireJobAddon = `
UPDATE job_addons
SET status = 'EXPIRED', updated_at = now()
WHERE id = $1 AND status = 'PENDING'
`

// ExpireJobAddon persists a lazily detected expiry. Idempotent under
// concurrent readers: only a PENDING row is touched, a second caller
// matches nothing.
func (q *Queries) ExpireJobAddon(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, expireJobAddon, id)
	return err
}

const resendJobAddon = `
UPDATE job_addons
SET status = 'PENDING', sent_at = $2, expires_at = $3, responded_at = NULL, updated_at = now()
WHERE id = $1 AND status IN ('EXPIRED', 'DECLINED')
RETURNING ` + addonColumns

type ResendJobAddonParams struct {
	ID        uuid.UUID
	SentAt    time.Time
	ExpiresAt time.Time
}

func (q *Queries) ResendJobAddon(ctx context.Context, arg ResendJobAddonParams) (JobAddon, error) {
	return scanJobAddon(q.db.QueryRow(ctx, resendJobAddon, arg.ID, arg.SentAt, arg.ExpiresAt))
}

func scanJobAddon(row rowScanner) (JobAddon, error) {
	var a JobAddon
	err := row.Scan(&a.ID, &a.JobID, &a.Status, &a.ServiceID, &a.ProductID, &a.CustomDescription, &a.Name,
		&a.Price, &a.DiscountAmount, &a.PhotoID, &a.PickupDelayMinutes, &a.Message,
		&a.SentAt, &a.RespondedAt, &a.ExpiresAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
