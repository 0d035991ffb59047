package models

import "time"

// RefreshToken is one live refresh grant. It exists iff the refresh JWT that
// names its ID may still be used; it is never updated in place.
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
