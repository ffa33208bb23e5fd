package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/google/uuid"
)

const columns = `id, user_id, token, expires_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query :=
		`INSERT INTO password_resets (id, user_id, token, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt).Scan(&token.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	return r.one(ctx, `SELECT `+columns+` FROM password_resets WHERE token = $1`, token)
}

func (r *PostgresRepository) Take(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	return r.one(ctx, `DELETE FROM password_resets WHERE token = $1 RETURNING `+columns, token)
}

func (r *PostgresRepository) one(ctx context.Context, query string, token string) (*models.PasswordResetToken, error) {
	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.exec(ctx, `DELETE FROM password_resets WHERE token = $1`, token)
	return n > 0, err
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
