package models

import "time"

// ResetToken is a single-use password reset secret bound to an email.
// At most one live record exists per email.
type ResetToken struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the token is past its deadline at now.
// A token is still valid at exactly ExpiresAt.
func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
