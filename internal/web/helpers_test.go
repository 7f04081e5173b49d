package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/tabular"
	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newIPRateLimiter(2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"), "burst exhausted")
	assert.True(t, rl.allow("b"), "buckets are per client")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.allow("a"), "one token refilled")
	assert.False(t, rl.allow("a"))

	now = now.Add(visitorTTL + time.Second)
	rl.allow("c")
	assert.Equal(t, 1, rl.size(), "idle clients swept")
}

func TestIPRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		perMinute int
		want      int
	}{
		{1, 60},
		{2, 30},
		{7, 9},
		{100, 1},
		{0, 60},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.perMinute), func(t *testing.T) {
			assert.Equal(t, tt.want, newIPRateLimiter(tt.perMinute).retryAfter())
		})
	}
}

func TestResultStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rs := newResultStore(time.Hour)
	rs.now = func() time.Time { return now }

	ds := core.Dataset{Header: []string{"a"}, Rows: [][]string{{"1"}}}
	rs.put("t1", &core.RunResult{FileName: "x.csv", Cleaned: ds})

	got, ok := rs.get("t1")
	assert.True(t, ok)
	assert.Equal(t, "x.csv", got.fileName)
	assert.Equal(t, ds, got.cleaned)

	_, ok = rs.get("t2")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = rs.get("t1")
	assert.False(t, ok, "expired")

	rs.put("t3", &core.RunResult{FileName: "y.csv"})
	rs.drop("t3")
	_, ok = rs.get("t3")
	assert.False(t, ok)
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		in     string
		format tabular.Format
		want   string
	}{
		{"people.csv", tabular.FormatCSV, "cleaned_people.csv"},
		{"people.csv", tabular.FormatXLSX, "cleaned_people.xlsx"},
		{"report.final.xlsx", tabular.FormatCSV, "cleaned_report.final.csv"},
		{"../../etc/passwd.csv", tabular.FormatCSV, "cleaned_passwd.csv"},
		{"", tabular.FormatCSV, "cleaned_data.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, downloadName(tt.in, tt.format), tt.in)
	}
}

func TestFormOperations(t *testing.T) {
	assert.Equal(t, []string{}, formOperations(nil))
	assert.Equal(t,
		[]string{"trim_whitespace", "remove_nulls", "remove_duplicates"},
		formOperations([]string{" trim_whitespace , remove_nulls", "", "remove_duplicates"}),
	)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.OperationError{Name: "x"}, http.StatusBadRequest},
		{&core.MalformedError{Row: 1, Want: 2, Got: 1}, http.StatusUnprocessableEntity},
		{errNoFile, http.StatusBadRequest},
		{fmt.Errorf("decode a.txt: %w", tabular.ErrUnsupportedType), http.StatusUnsupportedMediaType},
		{fmt.Errorf("decode a.csv: %w", tabular.ErrEmptyFile), http.StatusBadRequest},
		{errors.New("http: request body too large"), http.StatusRequestEntityTooLarge},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrSessionNotFound, http.StatusUnauthorized},
		{auth.ErrUserExists, http.StatusConflict},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{errNoResult, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errRateLimited, http.StatusTooManyRequests},
		{errors.New("something odd"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWantsJSON(t *testing.T) {
	api := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	assert.True(t, wantsJSON(api))

	page := httptest.NewRequest(http.MethodGet, "/download", nil)
	assert.False(t, wantsJSON(page))

	page.Header.Set("Accept", "application/json")
	assert.True(t, wantsJSON(page))
}
