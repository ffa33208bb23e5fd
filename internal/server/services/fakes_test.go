package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/auth"
	"github.com/dmitrijs2005/brainy/internal/server/config"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

// --- clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- database ---

// fakeDB runs transactions inline. It never touches SQL; the in-memory
// repositories ignore the DBTX they are bound to.
type fakeDB struct {
	mu  sync.Mutex
	txs int
}

func (d *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("fakeDB: no SQL")
}

func (d *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeDB: no SQL")
}

func (d *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (d *fakeDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	d.mu.Lock()
	d.txs++
	d.mu.Unlock()
	return fn(ctx, d)
}

// --- in-memory repositories ---

type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	refresh map[string]*models.RefreshToken
	resets  map[string]*models.PasswordResetToken

	// failures injected per operation name, e.g. "users.GetByID".
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		refresh: map[string]*models.RefreshToken{},
		resets:  map[string]*models.PasswordResetToken{},
		fail:    map[string]error{},
	}
}

func (m *memStore) failure(op string) error {
	return m.fail[op]
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memStore) Users(dbx.DBTX) users.Repository                 { return (*memUsers)(m) }
func (m *memStore) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return (*memRefresh)(m) }
func (m *memStore) PasswordResets(dbx.DBTX) passwordresets.Repository {
	return (*memResets)(m)
}

func (m *memStore) refreshFor(userID string) []*models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RefreshToken
	for _, t := range m.refresh {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) resetsFor(userID string) []*models.PasswordResetToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PasswordResetToken
	for _, t := range m.resets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

type memUsers memStore

func (r *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("users.Create"); err != nil {
		return nil, err
	}
	for _, x := range m.users {
		if x.Username == u.Username || x.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (r *memUsers) find(op string, match func(*models.User) bool) (*models.User, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(op); err != nil {
		return nil, err
	}
	for _, x := range m.users {
		if match(x) {
			cp := *x
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find("users.GetByID", func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find("users.GetByUsername", func(u *models.User) bool { return u.Username == username })
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find("users.GetByEmail", func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) UpdatePassword(ctx context.Context, id string, hash string) error {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("users.UpdatePassword"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUsers) TouchLastLogin(ctx context.Context, id string) error {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("users.TouchLastLogin"); err != nil {
		return err
	}
	if u, ok := m.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

type memRefresh memStore

func (r *memRefresh) Create(ctx context.Context, t *models.RefreshToken) error {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("refresh.Create"); err != nil {
		return err
	}
	if _, ok := m.refresh[t.Token]; ok {
		return common.ErrConflict
	}
	t.ID = uuid.NewString()
	cp := *t
	m.refresh[t.Token] = &cp
	return nil
}

func (r *memRefresh) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("refresh.Find"); err != nil {
		return nil, err
	}
	t, ok := m.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRefresh) Take(ctx context.Context, token string) (*models.RefreshToken, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("refresh.Take"); err != nil {
		return nil, err
	}
	t, ok := m.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.refresh, token)
	return t, nil
}

func (r *memRefresh) Delete(ctx context.Context, token string) (bool, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("refresh.Delete"); err != nil {
		return false, err
	}
	_, ok := m.refresh[token]
	delete(m.refresh, token)
	return ok, nil
}

func (r *memRefresh) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("refresh.DeleteByUser"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range m.refresh {
		if t.UserID == userID {
			delete(m.refresh, k)
			n++
		}
	}
	return n, nil
}

func (r *memRefresh) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.refresh {
		if t.Expired(now) {
			delete(m.refresh, k)
			n++
		}
	}
	return n, nil
}

type memResets memStore

func (r *memResets) Create(ctx context.Context, t *models.PasswordResetToken) error {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("resets.Create"); err != nil {
		return err
	}
	for _, x := range m.resets {
		if x.UserID == t.UserID {
			return common.ErrConflict
		}
	}
	t.ID = uuid.NewString()
	cp := *t
	m.resets[t.Token] = &cp
	return nil
}

func (r *memResets) Find(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memResets) Take(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.resets, token)
	return t, nil
}

func (r *memResets) Delete(ctx context.Context, token string) (bool, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.resets[token]
	delete(m.resets, token)
	return ok, nil
}

func (r *memResets) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.resets {
		if t.UserID == userID {
			delete(m.resets, k)
			n++
		}
	}
	return n, nil
}

func (r *memResets) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m := (*memStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.resets {
		if t.Expired(now) {
			delete(m.resets, k)
			n++
		}
	}
	return n, nil
}

// --- service fixture ---

type fixture struct {
	svc    *AuthService
	store  *memStore
	db     *fakeDB
	clock  *testClock
	access *auth.AccessTokens
}

func testConfig(debug bool) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Debug = debug
	return cfg
}

func newFixture(t *testing.T, debug bool) *fixture {
	t.Helper()
	cfg := testConfig(debug)
	clock := newTestClock()

	codec, err := auth.NewCodec(cfg.SecretKey, clock.Now)
	require.NoError(t, err)
	access := auth.NewAccessTokens(codec, cfg.AccessTokenTTL, clock.Now, logging.NewNop())

	store := newMemStore()
	db := &fakeDB{}
	svc := NewAuthService(db, store, access, cfg, logging.NewNop(), WithClock(clock.Now))

	return &fixture{svc: svc, store: store, db: db, clock: clock, access: access}
}

func (f *fixture) register(t *testing.T, username, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		FullName: username + " Test",
	})
	require.NoError(t, err)
	return res
}
