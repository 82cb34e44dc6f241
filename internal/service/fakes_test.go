package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"mobzilla/internal/entity"
	"mobzilla/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- in-memory store backing the fake repositories ---

type memStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	users    map[uuid.UUID]*entity.User
	tokens   map[uuid.UUID]*entity.VerificationToken
	sessions map[uuid.UUID]*entity.Session
	logs     []entity.SecurityLog
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		clock:    clock,
		users:    make(map[uuid.UUID]*entity.User),
		tokens:   make(map[uuid.UUID]*entity.VerificationToken),
		sessions: make(map[uuid.UUID]*entity.Session),
	}
}

func copyUser(u *entity.User) *entity.User {
	c := *u
	return &c
}

func copyToken(t *entity.VerificationToken) *entity.VerificationToken {
	c := *t
	return &c
}

// --- user repository ---

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.store.clock.Now()
	}
	r.store.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return errors.New("user not found")
	}
	r.store.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.users, user.ID)
	for id, token := range r.store.tokens {
		if token.UserID == user.ID {
			delete(r.store.tokens, id)
		}
	}
	for id, session := range r.store.sessions {
		if session.UserID == user.ID {
			delete(r.store.sessions, id)
		}
	}
	return nil
}

func (r *fakeUserRepo) VerifyEmail(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.EmailVerifiedAt = &at
	user.IsActive = true
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	users := make([]entity.User, 0, len(r.store.users))
	for _, user := range r.store.users {
		users = append(users, *user)
	}
	return users, nil
}

// --- token repository ---

type fakeTokenRepo struct {
	store *memStore
}

func (r *fakeTokenRepo) Create(ctx context.Context, token *entity.VerificationToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.store.clock.Now()
	}
	r.store.tokens[token.ID] = copyToken(token)
	return nil
}

func (r *fakeTokenRepo) Find(ctx context.Context, tokenHash string, kind entity.TokenKind) (*entity.VerificationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, token := range r.store.tokens {
		if token.TokenHash == tokenHash && token.Kind == kind {
			return copyToken(token), nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	token, ok := r.store.tokens[id]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	token.UsedAt = &at
	return true, nil
}

func (r *fakeTokenRepo) DeleteUnused(ctx context.Context, userID uuid.UUID, kind entity.TokenKind) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, token := range r.store.tokens {
		if token.UserID == userID && token.Kind == kind && token.UsedAt == nil {
			delete(r.store.tokens, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	for id, token := range r.store.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.store.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- unit of work ---

// fakeUnitOfWork has no transactional isolation; the per-operation store
// mutex is enough for the engine's conditional mark-used to stay atomic.
type fakeUnitOfWork struct {
	store *memStore
}

func (u *fakeUnitOfWork) Do(ctx context.Context, fn func(users repository.UserRepository, tokens repository.TokenRepository) error) error {
	return fn(&fakeUserRepo{store: u.store}, &fakeTokenRepo{store: u.store})
}

// --- session repository ---

type fakeSessionRepo struct {
	store *memStore
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	c := *session
	r.store.sessions[session.ID] = &c
	return nil
}

func (r *fakeSessionRepo) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := r.store.clock.Now()
	for _, session := range r.store.sessions {
		if session.TokenHash == hash && session.RevokedAt == nil && session.ExpiresAt.After(now) {
			c := *session
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) RotateToken(ctx context.Context, sessionID uuid.UUID, newHash string, expiresAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	session.TokenHash = newHash
	session.ExpiresAt = expiresAt
	return nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	now := r.store.clock.Now()
	session.RevokedAt = &now
	return nil
}

func (r *fakeSessionRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := r.store.clock.Now()
	for _, session := range r.store.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) CleanupExpired(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := r.store.clock.Now()
	for id, session := range r.store.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.store.sessions, id)
		}
	}
	return nil
}

// --- security log repository ---

type fakeLogRepo struct {
	store *memStore
}

func (r *fakeLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.logs = append(r.store.logs, *log)
	return nil
}

// --- email sender ---

type sentEmail struct {
	Template string
	To       string
	Token    string
}

type fakeMailer struct {
	mu          sync.Mutex
	sent        []sentEmail
	failVerify  bool
	failReset   bool
	failWelcome bool
}

func (m *fakeMailer) SendVerificationEmail(ctx context.Context, email string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failVerify {
		return errors.New("delivery failed")
	}
	m.sent = append(m.sent, sentEmail{Template: "verification", To: email, Token: token})
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(ctx context.Context, email string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReset {
		return errors.New("delivery failed")
	}
	m.sent = append(m.sent, sentEmail{Template: "password_reset", To: email, Token: token})
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(ctx context.Context, email string, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWelcome {
		return errors.New("delivery failed")
	}
	m.sent = append(m.sent, sentEmail{Template: "welcome", To: email})
	return nil
}

func (m *fakeMailer) lastToken(template string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Template == template {
			return m.sent[i].Token
		}
	}
	return ""
}

func (m *fakeMailer) count(template string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Template == template {
			n++
		}
	}
	return n
}

// --- access token issuer ---

type fakeAccessIssuer struct{}

func (fakeAccessIssuer) IssueAccessToken(user entity.User, sessionID uuid.UUID) (string, time.Duration, error) {
	return "access-token", 15 * time.Minute, nil
}

// --- environment ---

type testEnv struct {
	store  *memStore
	clock  *fakeClock
	mailer *fakeMailer
	engine *TokenLifecycle
	svc    *AuthService
	hasher PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore(clock)
	config := AuthConfig{
		RefreshTokenTTL:      30 * 24 * time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		VerificationWindow:   24 * time.Hour,
	}
	engine := NewTokenLifecycle(&fakeTokenRepo{store: store}, &fakeUnitOfWork{store: store}, clock, config)
	mailer := &fakeMailer{}
	hasher := BcryptPasswordHasher{Cost: bcrypt.MinCost}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewAuthService(
		&fakeUserRepo{store: store},
		&fakeSessionRepo{store: store},
		&fakeLogRepo{store: store},
		engine,
		mailer,
		hasher,
		fakeAccessIssuer{},
		clock,
		config,
		logger,
	)
	return &testEnv{
		store:  store,
		clock:  clock,
		mailer: mailer,
		engine: engine,
		svc:    svc,
		hasher: hasher,
	}
}

// storedUser fetches the single user with the given email straight from
// the store, bypassing the repository copies.
func (e *testEnv) storedUser(t *testing.T, email string) *entity.User {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, user := range e.store.users {
		if user.Email == email {
			c := *user
			return &c
		}
	}
	return nil
}

func (e *testEnv) tokenCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.tokens)
}
