// Package refreshtokens declares the refresh token store: the only durable
// state behind the session protocol. A record exists iff the refresh token
// bound to it may still be used.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh records.
type Repository interface {
	// Create allocates a new unique id, sets ExpiresAt = now+ttl and persists the record.
	Create(ctx context.Context, userID string, ttl time.Duration) (*models.RefreshToken, error)

	// FindByID returns common.ErrorNotFound when the record is absent.
	FindByID(ctx context.Context, id string) (*models.RefreshToken, error)

	// Delete removes the record. Deleting an absent id is not an error; the
	// bool reports whether this call removed it, which makes Delete the
	// arbiter between concurrent rotations of the same token.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteExpired purges records past their expiry and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
