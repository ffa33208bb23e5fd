// Package services contains server-side business logic. AuthService ties the
// credential store, the access token issuer and the refresh and reset token
// stores together into the account flows exposed over HTTP.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/auth"
	"github.com/dmitrijs2005/brainy/internal/server/config"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User *models.User `json:"user"`
	TokenPair
}

// ForgotPasswordResult carries the reset token only in debug posture.
type ForgotPasswordResult struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"reset_token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ResetTokenStatus describes a reset token that is still usable.
type ResetTokenStatus struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Username  string  `validate:"required,max=100"`
	Email     string  `validate:"required,email,max=255"`
	Password  string  `validate:"required,min=6,max=72"`
	FullName  string  `validate:"required,max=255"`
	AvatarURL *string `validate:"omitempty,url"`
}

const resetRequestedMessage = "Password reset token generated"

// dummyPassword is hashed once so that logins for unknown users still pay
// for a bcrypt comparison.
const dummyPassword = "brainy-timing-equalizer"

type AuthService struct {
	db      dbx.Database
	repos   repomanager.RepositoryManager
	access  *auth.AccessTokens
	refresh *RefreshTokenStore
	resets  *ResetTokenStore
	hasher  PasswordHasher
	logger  logging.Logger
	debug   bool
	now     func() time.Time

	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now for token expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithHasher replaces the bcrypt hasher built from the config.
func WithHasher(h PasswordHasher) Option {
	return func(s *AuthService) { s.hasher = h }
}

// NewAuthService constructs an AuthService. Token lifetimes, bcrypt cost
// and the debug posture come from cfg.
func NewAuthService(db dbx.Database, m repomanager.RepositoryManager, access *auth.AccessTokens, cfg *config.Config, logger logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		db:       db,
		repos:    m,
		access:   access,
		hasher:   NewBcryptHasher(cfg.BcryptCost),
		logger:   logger,
		debug:    cfg.Debug,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(s)
	}
	s.refresh = NewRefreshTokenStore(db, m, cfg.RefreshTokenTTL, s.now)
	s.resets = NewResetTokenStore(db, m, cfg.ResetTokenTTL, s.now)
	return s
}

func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}

func (s *AuthService) validationError(err error) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, err.Error())
}

func (s *AuthService) checkPassword(password string) error {
	if err := s.validate.Var(password, "required,min=6,max=72"); err != nil {
		return fmt.Errorf("%w: password must be between %d and 72 characters", common.ErrorValidation, common.MinPasswordLength)
	}
	return nil
}

func (s *AuthService) hashPassword(ctx context.Context, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return "", err
		}
		return "", s.internal(ctx, "hash password", err)
	}
	return hash, nil
}

func (s *AuthService) issuePair(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	rt, err := s.refresh.On(db).Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	at, err := s.access.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &TokenPair{
		AccessToken:  at,
		RefreshToken: rt.Token,
		ExpiresIn:    int64(s.access.TTL() / time.Second),
	}, nil
}

// Register creates an account and signs it in. A taken username or email
// yields common.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err)
	}

	hash, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		AvatarURL:    in.AvatarURL,
		Status:       common.UserStatusActive,
	}

	var pair *TokenPair
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repos.Users(tx)

		if _, err := users.GetByUsername(ctx, in.Username); err == nil {
			return common.ErrConflict
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if _, err := users.GetByEmail(ctx, in.Email); err == nil {
			return common.ErrConflict
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if _, err := users.Create(ctx, user); err != nil {
			return err
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, s.internal(ctx, "register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*models.User, error) {
	users := s.repos.Users(s.db)
	user, err := users.GetByUsername(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = users.GetByEmail(ctx, identifier)
	}
	return user, err
}

func (s *AuthService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPassword)
	})
	_ = s.hasher.Compare(s.dummyHash, password)
}

// Login signs in by username or email. Unknown identifiers and wrong
// passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	if identifier == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.compareDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "login lookup", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Debug(ctx, "login rejected", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, common.ErrAccountLocked
	}

	if err := s.repos.Users(s.db).TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn(ctx, "cannot record last login", "user_id", user.ID, "error", err)
	}

	pair, err := s.issuePair(ctx, s.db, user)
	if err != nil {
		return nil, s.internal(ctx, "login", err)
	}
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

// Logout revokes a single session. An unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}
	removed, err := s.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		return s.internal(ctx, "logout", err)
	}
	if !removed {
		s.logger.Debug(ctx, "logout of unknown session")
	}
	return nil
}

// LogoutAll revokes every session of userID and returns how many there were.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.refresh.RevokeAll(ctx, userID)
	if err != nil {
		return 0, s.internal(ctx, "logout all", err)
	}
	s.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// Refresh rotates refreshToken: the old value is deleted and a new pair
// is issued in the same transaction. Of concurrent calls with one value at
// most one succeeds; the others get common.ErrInvalidOrExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidOrExpired
	}

	var (
		pair    *TokenPair
		expired bool
	)
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		old, err := s.refresh.On(tx).Take(ctx, refreshToken)
		if errors.Is(err, errTakenExpired) {
			expired = true
			return nil
		}
		if err != nil {
			return err
		}

		user, err := s.repos.Users(tx).GetByID(ctx, old.UserID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		if err != nil {
			return err
		}
		if !user.Active() {
			return common.ErrAccountLocked
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	switch {
	case err == nil && expired:
		return nil, common.ErrInvalidOrExpired
	case errors.Is(err, common.ErrInvalidOrExpired), errors.Is(err, common.ErrAccountLocked):
		return nil, err
	case err != nil:
		return nil, s.internal(ctx, "refresh", err)
	}
	return pair, nil
}

// ForgotPassword issues a reset token for the account with email,
// replacing any earlier one. The token is only echoed in debug posture;
// otherwise it has to be delivered out of band.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrorValidation)
	}

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "forgot password lookup", err)
	}

	var grant *models.PasswordResetToken
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		grant, err = s.resets.On(tx).Issue(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, s.internal(ctx, "forgot password", err)
	}

	s.logger.Info(ctx, "password reset requested", "user_id", user.ID)

	res := &ForgotPasswordResult{Message: resetRequestedMessage}
	if s.debug {
		res.ResetToken = grant.Token
		res.ExpiresAt = &grant.ExpiresAt
	}
	return res, nil
}

// ValidateResetToken reports whether token can still be redeemed.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (*ResetTokenStatus, error) {
	grant, err := s.resets.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpired) {
			return nil, err
		}
		return nil, s.internal(ctx, "validate reset token", err)
	}
	return &ResetTokenStatus{Valid: true, ExpiresAt: grant.ExpiresAt}, nil
}

// ResetPassword redeems token, sets the new password and revokes every
// session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	if err := s.checkPassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return nil, err
	}

	var (
		user    *models.User
		revoked int64
		expired bool
	)
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		grant, err := s.resets.On(tx).Take(ctx, token)
		if errors.Is(err, errTakenExpired) {
			expired = true
			return nil
		}
		if err != nil {
			return err
		}

		users := s.repos.Users(tx)
		if err := users.UpdatePassword(ctx, grant.UserID, hash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpired
			}
			return err
		}
		if revoked, err = s.refresh.On(tx).RevokeAll(ctx, grant.UserID); err != nil {
			return err
		}
		user, err = users.GetByID(ctx, grant.UserID)
		return err
	})
	switch {
	case err == nil && expired:
		return nil, common.ErrInvalidOrExpired
	case errors.Is(err, common.ErrInvalidOrExpired):
		return nil, err
	case err != nil:
		return nil, s.internal(ctx, "reset password", err)
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID, "sessions_revoked", revoked)
	return user, nil
}

// ChangePassword replaces the password of userID after checking the
// current one, then revokes every session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*models.User, error) {
	if err := s.checkPassword(newPassword); err != nil {
		return nil, err
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "change password lookup", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, currentPassword); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	revoked, err := s.setPassword(ctx, user, newPassword)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "password changed", "user_id", user.ID, "sessions_revoked", revoked)
	return user, nil
}

// SetPassword is the operator path: it sets the password of username
// without knowing the current one and revokes every session.
func (s *AuthService) SetPassword(ctx context.Context, username, newPassword string) error {
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return s.internal(ctx, "set password lookup", err)
	}
	revoked, err := s.setPassword(ctx, user, newPassword)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "password set by operator", "user_id", user.ID, "sessions_revoked", revoked)
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, newPassword string) (int64, error) {
	hash, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return 0, err
	}

	var revoked int64
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		var err error
		revoked, err = s.refresh.On(tx).RevokeAll(ctx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, err
		}
		return 0, s.internal(ctx, "update password", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	return revoked, nil
}

// Authenticate resolves an Authorization header value to an identity.
// Every failure is common.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, header string) (*models.Identity, error) {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	return s.access.Verify(ctx, token)
}

// Me returns the account of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "me", err)
	}
	return user, nil
}

// SweepExpired purges expired refresh and reset tokens.
func (s *AuthService) SweepExpired(ctx context.Context) (refresh, resets int64, err error) {
	if refresh, err = s.refresh.SweepExpired(ctx); err != nil {
		return 0, 0, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	if resets, err = s.resets.SweepExpired(ctx); err != nil {
		return refresh, 0, fmt.Errorf("sweep reset tokens: %w", err)
	}
	return refresh, resets, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
// A non-positive interval disables it.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh, resets, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error(ctx, "token sweep failed", "error", err)
				continue
			}
			if refresh > 0 || resets > 0 {
				s.logger.Info(ctx, "expired tokens swept", "refresh_tokens", refresh, "reset_tokens", resets)
			}
		}
	}
}
