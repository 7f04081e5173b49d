package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeRow returns a fixed error or fills dest with values.
type fakeRow struct {
	err    error
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

// fakeDB records statements and replays canned results.
type fakeDB struct {
	execSQL []string
	execTag pgconn.CommandTag
	execErr error
	row     fakeRow
	args    []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.args = args
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("connection refused")
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.args = args
	return f.row
}

func testOptions() auth.Options {
	return auth.Options{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost}
}

func TestCreateUser_UniqueViolation(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "23505"}}}
	store := New(db, testOptions())

	_, err := store.CreateUser(context.Background(), "alice", "password1")
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestCreateUser_ValidatesBeforeInsert(t *testing.T) {
	db := &fakeDB{}
	store := New(db, testOptions())

	_, err := store.CreateUser(context.Background(), "a", "password1")
	assert.ErrorIs(t, err, auth.ErrInvalidRegistration)
	assert.Nil(t, db.args, "no statement should run")
}

func TestCreateUser_StoresHash(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{created}}}
	store := New(db, testOptions())

	u, err := store.CreateUser(context.Background(), "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, created, u.CreatedAt)

	require.Len(t, db.args, 3)
	assert.Equal(t, "alice", db.args[1])
	assert.NoError(t, auth.CheckPassword(db.args[2].(string), "password1"))
}

func TestVerifyCredentials(t *testing.T) {
	hash, err := auth.HashPassword("password1", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("unknown user", func(t *testing.T) {
		store := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, testOptions())
		_, err := store.VerifyCredentials(context.Background(), "ghost", "password1")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{values: []any{"id-1", hash, time.Now()}}}
		_, err := New(db, testOptions()).VerifyCredentials(context.Background(), "alice", "nope-nope")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("match", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{values: []any{"id-1", hash, time.Now()}}}
		u, err := New(db, testOptions()).VerifyCredentials(context.Background(), "alice", "password1")
		require.NoError(t, err)
		assert.Equal(t, "id-1", u.ID)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		store := New(&fakeDB{row: fakeRow{err: errors.New("connection reset by peer")}}, testOptions())
		_, err := store.VerifyCredentials(context.Background(), "alice", "password1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Equal(t, "DB005", core.MapError(err).Code)
	})
}

func TestGetSession_NotFound(t *testing.T) {
	store := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, testOptions())

	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestCreateSession_UsesTTL(t *testing.T) {
	db := &fakeDB{}
	store := New(db, testOptions())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, err := store.CreateSession(context.Background(), auth.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, "alice", sess.Username)
	_, err = uuid.Parse(sess.Token)
	assert.NoError(t, err)
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 3")}

	n, err := New(db, testOptions()).DeleteExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRecord_NilOperations(t *testing.T) {
	db := &fakeDB{}

	err := New(db, testOptions()).Record(context.Background(), core.HistoryEntry{ID: "r1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, db.args[7])
	assert.False(t, db.args[8].(time.Time).IsZero())
}

func TestRecent_QueryError(t *testing.T) {
	_, err := New(&fakeDB{}, testOptions()).Recent(context.Background(), "u1", 5)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "query history:"))
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db, testOptions()).EnsureSchema(context.Background()))
	require.Len(t, db.execSQL, 1)
	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS cleaning_history")
}

// TestStore_Postgres runs against a real database when TEST_DATABASE_URL is set.
func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	store := New(pool, testOptions())
	require.NoError(t, store.EnsureSchema(ctx))

	username := "it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	u, err := store.CreateUser(ctx, username, "password1")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, username, "password1")
	assert.ErrorIs(t, err, auth.ErrUserExists)

	_, err = store.VerifyCredentials(ctx, username, "password1")
	require.NoError(t, err)

	sess, err := store.CreateSession(ctx, u)
	require.NoError(t, err)
	got, err := store.GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, username, got.Username)
	require.NoError(t, store.DeleteSession(ctx, sess.Token))
	_, err = store.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	for i, name := range []string{"a.csv", "b.csv"} {
		require.NoError(t, store.Record(ctx, core.HistoryEntry{
			ID:         uuid.NewString(),
			UserID:     u.ID,
			FileName:   name,
			RowsBefore: 3, RowsAfter: 1, ColumnsBefore: 2, ColumnsAfter: 2,
			Operations: []string{core.OpTrimWhitespace},
			CleanedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}))
	}
	entries, err := store.Recent(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.csv", entries[0].FileName)
	assert.Equal(t, []string{core.OpTrimWhitespace}, entries[0].Operations)
}
