// Package model defines domain entities for the application.
package model

import "time"

// Plan constants.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// ValidPlans contains all valid plan values.
var ValidPlans = []string{PlanFree, PlanPro}

// User represents an account that can repurpose content.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never serialize
	GoogleID     string    `json:"-"`
	Plan         string    `json:"plan"`
	UsageCount   int64     `json:"usage_count"`
	UsagePeriod  time.Time `json:"usage_period"` // First day (UTC) of the month usage_count belongs to
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the user can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// CurrentUsage returns the usage count for the month containing now.
// A stored count that belongs to an earlier month reads as zero.
func (u *User) CurrentUsage(now time.Time) int64 {
	if !u.UsagePeriod.Equal(UsagePeriodFor(now)) {
		return 0
	}
	return u.UsageCount
}

// UsagePeriodFor returns the first instant of the UTC month containing t.
func UsagePeriodFor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Plan       string    `json:"plan"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToResponse converts a User to UserResponse using the current month's usage.
func (u *User) ToResponse(now time.Time) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Plan:       u.Plan,
		UsageCount: u.CurrentUsage(now),
		CreatedAt:  u.CreatedAt,
	}
}
