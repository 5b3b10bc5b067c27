package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const photoColumns = `id, job_id, zone, phase, image_ref, annotations, is_internal, taken_by, created_at`

const createJobPhoto = `
INSERT INTO job_photos (job_id, zone, phase, image_ref, annotations, is_internal, taken_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + photoColumns

type CreateJobPhotoParams struct {
	JobID       uuid.UUID
	Zone        string
	Phase       string
	ImageRef    string
	Annotations pgtype.Text
	IsInternal  bool
	TakenBy     uuid.UUID
}

func (q *Queries) CreateJobPhoto(ctx context.Context, arg CreateJobPhotoParams) (JobPhoto, error) {
	row := q.db.QueryRow(ctx, createJobPhoto, arg.JobID, arg.Zone, arg.Phase,
		arg.ImageRef, arg.Annotations, arg.IsInternal, arg.TakenBy)
	return scanJobPhoto(row)
}

const getJobPhoto = `
SELECT ` + photoColumns + `
FROM job_photos
WHERE id = $1 AND job_id = $2
`

type GetJobPhotoParams struct {
	ID    uuid.UUID
	JobID uuid.UUID
}

func (q *Queries) GetJobPhoto(ctx context.Context, arg GetJobPhotoParams) (JobPhoto, error) {
	return scanJobPhoto(q.db.QueryRow(ctx, getJobPhoto, arg.ID, arg.JobID))
}

const listJobPhotos = `
SELECT ` + photoColumns + `
FROM job_photos
WHERE job_id = $1
  AND ($2 = '' OR phase = $2)
ORDER BY created_at
`

type ListJobPhotosParams struct {
	JobID uuid.UUID
	Phase string
}

func (q *Queries) ListJobPhotos(ctx context.Context, arg ListJobPhotosParams) ([]JobPhoto, error) {
	rows, err := q.db.Query(ctx, listJobPhotos, arg.JobID, arg.Phase)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []JobPhoto
	for rows.Next() {
		p, err := scanJobPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

const countPhotosByZone = `
SELECT zone, COUNT(*)
FROM job_photos
WHERE job_id = $1 AND phase = $2
GROUP BY zone
`

type CountPhotosByZoneParams struct {
	JobID uuid.UUID
	Phase string
}

// CountPhotosByZone returns the photo count per zone for one phase,
// shaped for the coverage tracker.
func (q *Queries) CountPhotosByZone(ctx context.Context, arg CountPhotosByZoneParams) (map[string]int, error) {
	rows, err := q.db.Query(ctx, countPhotosByZone, arg.JobID, arg.Phase)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var zone string
		var n int
		if err := rows.Scan(&zone, &n); err != nil {
			return nil, err
		}
		counts[zone] = n
	}
	return counts, rows.Err()
}

func scanJobPhoto(row rowScanner) (JobPhoto, error) {
	var p JobPhoto
	err := row.Scan(&p.ID, &p.JobID, &p.Zone, &p.Phase, &p.ImageRef, &p.Annotations,
		&p.IsInternal, &p.TakenBy, &p.CreatedAt)
	return p, err
}
