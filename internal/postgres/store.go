// Package postgres stores accounts, sessions and cleaning history in PostgreSQL.
//
// Store implements auth.UserStore, auth.Sweeper and core.HistoryStore on top
// of any DBTX, normally a *pgxpool.Pool. The schema is embedded and applied
// idempotently at startup with EnsureSchema.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by Store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed user, session and history store.
type Store struct {
	db   DBTX
	opts auth.Options
	now  func() time.Time
}

// New creates a Store over db.
func New(db DBTX, opts auth.Options) *Store {
	return &Store{db: db, opts: opts, now: time.Now}
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ============================================================================
// Users
// ============================================================================

// CreateUser validates and inserts a new account.
func (s *Store) CreateUser(ctx context.Context, username, password string) (auth.User, error) {
	if err := (auth.Registration{Username: username, Password: password}).Validate(); err != nil {
		return auth.User{}, err
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return auth.User{}, err
	}

	u := auth.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Username, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return auth.User{}, auth.ErrUserExists
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// VerifyCredentials loads the user and checks the password.
func (s *Store) VerifyCredentials(ctx context.Context, username, password string) (auth.User, error) {
	u := auth.User{Username: username}
	err := s.db.QueryRow(ctx,
		`SELECT id, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, auth.RejectUnknownUser(password, s.opts.BcryptCost)
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return auth.User{}, err
	}
	return u, nil
}

// ============================================================================
// Sessions
// ============================================================================

// CreateSession inserts a session for user.
func (s *Store) CreateSession(ctx context.Context, user auth.User) (auth.Session, error) {
	now := s.now()
	ttl := s.opts.SessionTTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	sess := auth.Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return auth.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetSession returns a live session joined with its username.
func (s *Store) GetSession(ctx context.Context, token string) (auth.Session, error) {
	sess := auth.Session{Token: token}
	err := s.db.QueryRow(ctx,
		`SELECT s.user_id, u.username, s.created_at, s.expires_at
		   FROM sessions s
		   JOIN users u ON u.id = s.user_id
		  WHERE s.token = $1 AND s.expires_at > $2`,
		token, s.now(),
	).Scan(&sess.UserID, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges expired sessions.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// History
// ============================================================================

// Record inserts one cleaning run.
func (s *Store) Record(ctx context.Context, e core.HistoryEntry) error {
	if e.CleanedAt.IsZero() {
		e.CleanedAt = s.now()
	}
	ops := e.Operations
	if ops == nil {
		ops = []string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO cleaning_history
		    (id, user_id, file_name, rows_before, rows_after, columns_before, columns_after, operations, cleaned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.FileName,
		e.RowsBefore, e.RowsAfter, e.ColumnsBefore, e.ColumnsAfter,
		ops, e.CleanedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns up to limit runs for userID, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, file_name, rows_before, rows_after, columns_before, columns_after, operations, cleaned_at
		   FROM cleaning_history
		  WHERE user_id = $1
		  ORDER BY cleaned_at DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanHistoryEntry)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func scanHistoryEntry(row pgx.CollectableRow) (core.HistoryEntry, error) {
	var e core.HistoryEntry
	err := row.Scan(
		&e.ID, &e.UserID, &e.FileName,
		&e.RowsBefore, &e.RowsAfter, &e.ColumnsBefore, &e.ColumnsAfter,
		&e.Operations, &e.CleanedAt,
	)
	return e, err
}
