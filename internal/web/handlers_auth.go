package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/JonMunkholm/csvcleaner/internal/web/templates"
)

// handleIndex sends signed-in users to the cleaner and everyone else to login.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/cleaner", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/cleaner", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.AuthPage(templates.AuthPageData{Action: templates.ActionLogin}))
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.AuthPage(templates.AuthPageData{Action: templates.ActionRegister}))
}

// handleLogin verifies credentials, opens a session and sets its cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	user, err := s.deps.Users.VerifyCredentials(r.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logging.FromContext(r.Context()).Warn("login failed", "username", username)
		s.render(w, r, http.StatusUnauthorized, templates.AuthPage(templates.AuthPageData{
			Action:      templates.ActionLogin,
			Username:    username,
			Message:     "Invalid credentials",
			MessageType: templates.MessageError,
		}))
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	sess, err := s.deps.Users.CreateSession(r.Context(), user)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, sess)
	logging.FromContext(r.Context()).Info("user logged in", "user", user.Username)
	http.Redirect(w, r, "/cleaner", http.StatusSeeOther)
}

// handleRegister creates an account and shows the login form on success.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	_, err := s.deps.Users.CreateUser(r.Context(), username, password)
	if err != nil {
		var status int
		var message string
		switch {
		case errors.Is(err, auth.ErrUserExists):
			status, message = http.StatusConflict, "Username already exists"
		case errors.Is(err, auth.ErrInvalidRegistration):
			status, message = http.StatusBadRequest, registrationProblem(err)
		default:
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		s.render(w, r, status, templates.AuthPage(templates.AuthPageData{
			Action:      templates.ActionRegister,
			Username:    username,
			Message:     message,
			MessageType: templates.MessageError,
		}))
		return
	}

	logging.FromContext(r.Context()).Info("user registered", "user", username)
	s.render(w, r, http.StatusOK, templates.AuthPage(templates.AuthPageData{
		Action:      templates.ActionLogin,
		Username:    username,
		Message:     "Registration successful! Please login.",
		MessageType: templates.MessageSuccess,
	}))
}

// registrationProblem turns "invalid registration: a; b" into "A; b".
func registrationProblem(err error) string {
	detail := strings.TrimPrefix(err.Error(), auth.ErrInvalidRegistration.Error())
	detail = strings.TrimLeft(detail, ": ")
	if detail == "" {
		return "Invalid registration"
	}
	return strings.ToUpper(detail[:1]) + detail[1:]
}

// handleLogout ends the session and forgets its last result.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := sessionFromContext(r.Context()); ok {
		if err := s.deps.Users.DeleteSession(r.Context(), sess.Token); err != nil {
			logging.FromContext(r.Context()).Error("delete session failed", "error", err)
		}
		s.results.drop(sess.Token)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
