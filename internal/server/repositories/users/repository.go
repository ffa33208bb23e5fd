// Package users declares the credential store: persistence of user records
// looked up by id, username or email.
package users

import (
	"context"

	"github.com/dmitrijs2005/brainy/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound when no
// row matches; Create returns common.ErrConflict for a taken username or email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string) error
}
