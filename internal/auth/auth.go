// Package auth defines accounts and login sessions for the cleaner.
//
// The web layer depends only on the UserStore interface. Two implementations
// exist: MemoryStore in this package (used when no database is configured)
// and postgres.Store.
//
// Passwords are stored as bcrypt hashes. Session tokens are random UUIDs with
// a fixed time-to-live; an expired session is reported as ErrSessionNotFound.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	// Both cases share one error so callers cannot probe for usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotFound is returned for unknown, deleted or expired sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRegistration wraps validation failures of new accounts.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 24 * time.Hour

// User is a registered account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is an authenticated browser session.
type Session struct {
	Token     string
	UserID    string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserStore manages accounts and their sessions.
type UserStore interface {
	CreateUser(ctx context.Context, username, password string) (User, error)
	VerifyCredentials(ctx context.Context, username, password string) (User, error)
	CreateSession(ctx context.Context, user User) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Sweeper is implemented by stores that can purge expired sessions.
type Sweeper interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Registration is the input accepted when creating an account.
type Registration struct {
	Username string `validate:"required,min=3,max=64,username"`
	Password string `validate:"required,min=8,passwordbytes"`
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	validate        = newValidator()
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("passwordbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// Validate checks the registration against the account rules.
// The returned error wraps ErrInvalidRegistration and lists every failing field.
func (r Registration) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRegistration, strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "username":
		return "username may only contain letters, digits, '.', '_' and '-'"
	case "passwordbytes":
		return fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// HashPassword returns a bcrypt hash of password. A cost of 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password with a stored hash.
// A mismatch returns ErrInvalidCredentials.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}

// dummyHashes caches one hash per bcrypt cost for unknown-user logins.
var dummyHashes sync.Map

func dummyHash(cost int) []byte {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("no such user"), cost)
	if err != nil {
		hash, _ = bcrypt.GenerateFromPassword([]byte("no such user"), bcrypt.DefaultCost)
	}
	h, _ := dummyHashes.LoadOrStore(cost, hash)
	return h.([]byte)
}

// RejectUnknownUser runs a bcrypt comparison at the store's cost and returns
// ErrInvalidCredentials, so a missing username takes as long to reject as a
// wrong password.
func RejectUnknownUser(password string, cost int) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash(cost), []byte(password))
	return ErrInvalidCredentials
}
