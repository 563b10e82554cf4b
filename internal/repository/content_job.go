package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/recast/recast/internal/model"
)

// DefaultJobListLimit caps ListContentJobs when no limit is given.
const DefaultJobListLimit = 20

// ContentJobRepository provides database access for content jobs.
type ContentJobRepository struct {
	repo *Repository
}

// NewContentJobRepository creates a new ContentJobRepository.
func NewContentJobRepository(repo *Repository) *ContentJobRepository {
	return &ContentJobRepository{repo: repo}
}

// BulkInsert inserts content jobs, skipping event IDs already stored.
func (r *ContentJobRepository) BulkInsert(ctx context.Context, jobs []*model.ContentJob) error {
	if len(jobs) == 0 {
		return nil
	}

	query := `
		INSERT INTO content_jobs (
			id, event_id, user_id, input_type, source_kind, source_url,
			source_chars, target_platforms, generated, errors, degraded, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, job := range jobs {
		generated, errs, err := encodeJobMaps(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		batch.Queue(query,
			job.ID,
			job.EventID,
			job.UserID,
			job.InputType,
			job.SourceKind,
			nullableString(job.SourceURL),
			job.SourceChars,
			pq.Array(job.TargetPlatforms),
			generated,
			errs,
			job.Degraded,
			job.CreatedAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert job %d: %w", i, err)
		}
	}

	return nil
}

// ListByUser returns the user's most recent content jobs, newest first.
func (r *ContentJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ContentJob, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultJobListLimit
	}

	query := `
		SELECT id, event_id, user_id, input_type, source_kind, COALESCE(source_url, ''),
		       source_chars, target_platforms, generated, errors, degraded, created_at
		FROM content_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list content jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.ContentJob, 0)
	for rows.Next() {
		var job model.ContentJob
		var platforms []string
		var generated, errs []byte
		if err := rows.Scan(
			&job.ID,
			&job.EventID,
			&job.UserID,
			&job.InputType,
			&job.SourceKind,
			&job.SourceURL,
			&job.SourceChars,
			pq.Array(&platforms),
			&generated,
			&errs,
			&job.Degraded,
			&job.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan content job: %w", err)
		}
		job.TargetPlatforms = platforms
		if err := decodeJobMaps(&job, generated, errs); err != nil {
			return nil, fmt.Errorf("decode content job %s: %w", job.ID, err)
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content jobs: %w", err)
	}
	return jobs, nil
}

func encodeJobMaps(job *model.ContentJob) (generated, errs []byte, err error) {
	generated, err = json.Marshal(nonNilMap(job.Generated))
	if err != nil {
		return nil, nil, err
	}
	errs, err = json.Marshal(nonNilMap(job.Errors))
	if err != nil {
		return nil, nil, err
	}
	return generated, errs, nil
}

func decodeJobMaps(job *model.ContentJob, generated, errs []byte) error {
	job.Generated = map[string]string{}
	if len(generated) > 0 {
		if err := json.Unmarshal(generated, &job.Generated); err != nil {
			return err
		}
	}
	if len(errs) > 0 {
		var m map[string]string
		if err := json.Unmarshal(errs, &m); err != nil {
			return err
		}
		if len(m) > 0 {
			job.Errors = m
		}
	}
	return nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
