package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
)

type contextKey string

const ctxKeySession contextKey = "session"

// withSession stores the signed-in session on ctx.
func withSession(ctx context.Context, sess auth.Session) context.Context {
	ctx = context.WithValue(ctx, ctxKeySession, sess)
	return logging.ContextWithUser(ctx, sess.Username)
}

// sessionFromContext returns the session set by loadSession.
func sessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(ctxKeySession).(auth.Session)
	return sess, ok
}

// loadSession resolves the session cookie, if any. Stale cookies are
// cleared; requests without a valid session continue anonymously.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cfg.Session.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.deps.Users.GetSession(r.Context(), cookie.Value)
		switch {
		case err == nil:
			r = r.WithContext(withSession(r.Context(), sess))
		case errors.Is(err, auth.ErrSessionNotFound):
			s.results.drop(cookie.Value)
			s.clearSessionCookie(w)
		default:
			logging.FromContext(r.Context()).Error("load session failed", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// requireSession sends anonymous browsers to the login page and answers
// API clients with 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFromContext(r.Context()); !ok {
			if wantsJSON(r) {
				s.respondError(w, r, auth.ErrSessionNotFound, http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
