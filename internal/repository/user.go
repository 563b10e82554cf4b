package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/recast/recast/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, email, name, COALESCE(password_hash, ''), COALESCE(google_id, ''),
	plan, usage_count, usage_period, created_at, updated_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, google_id, plan, usage_count, usage_period, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`

	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	if user.UsagePeriod.IsZero() {
		user.UsagePeriod = model.UsagePeriodFor(user.CreatedAt)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.PasswordHash),
		nullableString(user.GoogleID),
		user.Plan,
		user.UsageCount,
		user.UsagePeriod,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

// GetOrCreateGoogleUser returns the user linked to a Google account.
// An existing account with the same email is linked on first sign-in.
func (r *Repository) GetOrCreateGoogleUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	existing, err := scanUser(r.pool.QueryRow(ctx, query, user.GoogleID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	link := `
		UPDATE users SET google_id = $2, updated_at = NOW()
		WHERE lower(email) = lower($1) AND google_id IS NULL
		RETURNING ` + userColumns
	existing, err = scanUser(r.pool.QueryRow(ctx, link, user.Email, user.GoogleID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if err := r.CreateUser(ctx, user); err != nil {
		// Another callback may have created it
		if errors.Is(err, ErrEmailExists) {
			return r.GetUserByEmail(ctx, user.Email)
		}
		return nil, err
	}

	return user, nil
}

// IncrementUsage adds one to the user's usage counter in a single statement.
// A counter from an earlier month restarts at one.
func (r *Repository) IncrementUsage(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET usage_count = CASE WHEN usage_period = $2 THEN usage_count + 1 ELSE 1 END,
		    usage_period = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING usage_count
	`

	var count int64
	err := r.pool.QueryRow(ctx, query, userID, model.UsagePeriodFor(now)).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return count, nil
}

// UpdateUserPlan changes a user's plan.
func (r *Repository) UpdateUserPlan(ctx context.Context, userID, plan string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET plan = $2, updated_at = NOW() WHERE id = $1`,
		userID, plan,
	)
	if err != nil {
		return fmt.Errorf("update user plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.GoogleID,
		&user.Plan,
		&user.UsageCount,
		&user.UsagePeriod,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
