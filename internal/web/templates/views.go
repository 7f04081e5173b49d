// Package templates holds the HTML views. Views are written as .templ files
// and compiled with `templ generate` into the checked-in _templ.go files.
package templates

//go:generate templ generate

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/core"
)

// Auth page actions.
const (
	ActionLogin    = "Login"
	ActionRegister = "Register"
)

// Message kinds shown above the auth form.
const (
	MessageSuccess = "success"
	MessageError   = "error"
)

// AuthPageData drives the shared login and registration page.
type AuthPageData struct {
	Action      string // ActionLogin or ActionRegister
	Username    string // Echoed back after a failed attempt
	Message     string
	MessageType string // MessageSuccess or MessageError
}

func (d AuthPageData) title() string {
	if d.Action == ActionRegister {
		return ActionRegister
	}
	return ActionLogin
}

func (d AuthPageData) formAction() string {
	if d.Action == ActionRegister {
		return "/register"
	}
	return "/login"
}

func (d AuthPageData) switchHref() string {
	if d.Action == ActionRegister {
		return "/login"
	}
	return "/register"
}

func (d AuthPageData) switchLabel() string {
	if d.Action == ActionRegister {
		return "Already registered? Login"
	}
	return "Create an account"
}

// ResultView is one finished run as shown on the dashboard.
type ResultView struct {
	FileName        string
	Stats           core.Stats
	OperationLabels []string
	Original        core.PreviewTable
	Cleaned         core.PreviewTable
}

// DashboardData drives the main page.
type DashboardData struct {
	Username     string
	StorageLabel string // e.g. "PostgreSQL" or "In-memory"
	Operations   []core.Operation
	Selected     map[string]bool
	Result       *ResultView
	Error        *core.UserMessage
	History      []core.HistoryEntry
}

func operationSummary(labels []string) string {
	if len(labels) == 0 {
		return "none"
	}
	return strings.Join(labels, ", ")
}

func operationList(names []string) string {
	return strings.Join(core.Labels(names), ", ")
}

func rowCaption(p core.PreviewTable) string {
	return fmt.Sprintf("Showing %d of %d rows", p.Shown(), p.TotalRows)
}

func cleanedAt(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
