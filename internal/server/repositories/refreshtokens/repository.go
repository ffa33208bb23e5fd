// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/brainy/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores token. ID and CreatedAt are filled in.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque token string.
	// Returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Take deletes the row for token and returns it. Of several concurrent
	// callers at most one receives the row; the rest get common.ErrorNotFound.
	Take(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token and reports whether a row existed.
	// Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteByUser removes every token of userID and returns the count.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
