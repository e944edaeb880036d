package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/dbx"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/dmitrijs2005/workflow/internal/server/password"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories ---

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User

	getErr    error
	createErr error
	updateErr error
}

func newMemUsers() *memUsers { return &memUsers{byEmail: map[string]*models.User{}} }

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			u.UpdatedAt = updatedAt
			return nil
		}
	}
	return common.ErrorNotFound
}

func (m *memUsers) List(context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]*models.User, 0, len(m.byEmail))
	for _, u := range m.byEmail {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memResets struct {
	mu      sync.Mutex
	records []*models.ResetToken

	deleteErr error
}

func (m *memResets) Create(_ context.Context, t *models.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	m.records = append(m.records, &cp)
	return nil
}

func (m *memResets) Find(_ context.Context, email, token string) (*models.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Email == email && r.Token == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memResets) remove(keep func(*models.ResetToken) bool) int64 {
	var n int64
	kept := m.records[:0]
	for _, r := range m.records {
		if keep(r) {
			kept = append(kept, r)
		} else {
			n++
		}
	}
	m.records = kept
	return n
}

func (m *memResets) Delete(_ context.Context, t *models.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.remove(func(r *models.ResetToken) bool { return r.ID != t.ID })
	return nil
}

func (m *memResets) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.remove(func(r *models.ResetToken) bool { return r.Email != email })
	return nil
}

func (m *memResets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.remove(func(r *models.ResetToken) bool { return !r.Expired(now) }), nil
}

func (m *memResets) count(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Email == email {
			n++
		}
	}
	return n
}

type fakeRepoManager struct {
	users  *memUsers
	resets *memResets
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository { return m.resets }

// --- mailer ---

type sentMail struct {
	kind, to, name, token string
}

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

func (f *fakeMailer) SendResetEmail(_ context.Context, to, userName, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"reset", to, userName, token})
	return !f.fail
}

func (f *fakeMailer) SendResetConfirmation(_ context.Context, to, userName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"confirmation", to, userName, ""})
	return !f.fail
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}
	}
	return f.sent[len(f.sent)-1]
}

// --- wiring ---

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	rm     *fakeRepoManager
	mailer *fakeMailer
	clock  *clock
	codec  *auth.Codec
	users  *UserService
	resets *ResetService
}

func connectedHandle(t *testing.T) *store.Handle {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	h := store.Connected(db, "test")
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newEnv(t *testing.T, h *store.Handle) *env {
	t.Helper()
	if h == nil {
		h = connectedHandle(t)
	}

	clk := &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	rm := &fakeRepoManager{users: newMemUsers(), resets: &memResets{}}
	mailer := &fakeMailer{}
	hasher := password.NewHasher(bcrypt.MinCost)

	codec, err := auth.NewCodec([]byte("test-secret"), "HS256", time.Hour)
	require.NoError(t, err)
	codec = codec.WithClock(clk.Now)

	return &env{
		rm:     rm,
		mailer: mailer,
		clock:  clk,
		codec:  codec,
		users:  NewUserService(h, rm, hasher, codec, WithClock(clk.Now)),
		resets: NewResetService(h, rm, hasher, mailer, time.Hour, WithClock(clk.Now)),
	}
}

var errBoom = errors.New("boom")
