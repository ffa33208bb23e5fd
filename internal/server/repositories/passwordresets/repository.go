// Package passwordresets persists password reset tokens. The schema allows
// a single row per user.
package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/brainy/internal/server/models"
)

type Repository interface {
	// Create stores token. A second row for the same user violates the
	// per-user unique index and yields common.ErrConflict.
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Find(ctx context.Context, token string) (*models.PasswordResetToken, error)
	// Take deletes and returns the row; common.ErrorNotFound if it is gone.
	Take(ctx context.Context, token string) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
