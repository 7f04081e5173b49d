package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options tunes a store. Zero values use the package defaults.
type Options struct {
	SessionTTL time.Duration
	BcryptCost int
}

func (o Options) ttl() time.Duration {
	if o.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return o.SessionTTL
}

// MemoryStore is a UserStore that keeps everything in process memory.
// Accounts are lost on restart.
type MemoryStore struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	users    map[string]User // username -> user
	sessions map[string]Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts,
		now:      time.Now,
		users:    make(map[string]User),
		sessions: make(map[string]Session),
	}
}

// CreateUser validates and registers a new account.
func (m *MemoryStore) CreateUser(ctx context.Context, username, password string) (User, error) {
	if err := (Registration{Username: username, Password: password}).Validate(); err != nil {
		return User{}, err
	}

	// Hash outside the lock; bcrypt is slow on purpose.
	hash, err := HashPassword(password, m.opts.BcryptCost)
	if err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.users[username]; taken {
		return User{}, ErrUserExists
	}
	u := User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    m.now(),
	}
	m.users[username] = u
	return u, nil
}

// VerifyCredentials returns the user when the password matches.
func (m *MemoryStore) VerifyCredentials(ctx context.Context, username, password string) (User, error) {
	m.mu.RLock()
	u, ok := m.users[username]
	m.mu.RUnlock()

	if !ok {
		return User{}, RejectUnknownUser(password, m.opts.BcryptCost)
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateSession starts a session for user.
func (m *MemoryStore) CreateSession(ctx context.Context, user User) (Session, error) {
	now := m.now()
	s := Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.ttl()),
	}

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s, nil
}

// GetSession returns a live session. Expired sessions are dropped on read.
func (m *MemoryStore) GetSession(ctx context.Context, token string) (Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// DeleteSession ends a session. Deleting an unknown token is not an error.
func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// DeleteExpiredSessions purges every expired session and returns how many were removed.
func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// RunSweeper purges expired sessions every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func RunSweeper(ctx context.Context, store Sweeper, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	slog.Info("session sweeper started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
			start := time.Now()
			n, err := store.DeleteExpiredSessions(ctx)
			if err != nil {
				slog.Error("session sweep failed", "error", err)
				continue
			}
			slog.Debug("session sweep completed",
				"sessions_removed", n,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}
