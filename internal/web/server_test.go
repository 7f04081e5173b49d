package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/config"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/metrics"
	"github.com/JonMunkholm/csvcleaner/internal/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const peopleCSV = "name,age\n Alice ,30\nBob,\n Alice ,30\n"

type testEnv struct {
	srv   *Server
	users *auth.MemoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       10 * time.Second,
			PreviewRows:   2,
			HistoryLimit:  10,
			Encoding:      "utf-8",
			Delimiter:     ",",
		},
		Session:  config.SessionConfig{TTL: time.Hour, CookieName: "sid"},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	users := auth.NewMemoryStore(auth.Options{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost})
	codec, err := tabular.NewCodec(tabular.ReadOptions{Encoding: "utf-8", Delimiter: ','})
	require.NoError(t, err)
	recorder := metrics.NewRecorder()
	svc := core.NewService(core.ServiceConfig{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		HistoryLimit:  cfg.Upload.HistoryLimit,
	}, codec, core.NewMemoryHistory(), recorder)

	deps := Deps{
		Service: svc,
		Users:   users,
		Codec:   codec,
		Metrics: recorder.Handler(),
		Storage: "In-memory",
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	return &testEnv{srv: NewServer(cfg, deps), users: users}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, path, fileName, content string, ops ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for _, op := range ops {
		require.NoError(t, mw.WriteField("operations", op))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// login registers alice and returns her session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	_, err := e.users.CreateUser(context.Background(), "alice", "password1")
	require.NoError(t, err)

	rec := e.do(formRequest("/login", url.Values{"username": {"alice"}, "password": {"password1"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(c)
	return req
}

func TestIndex_Redirects(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	cookie := env.login(t)
	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/", nil), cookie))
	assert.Equal(t, "/cleaner", rec.Header().Get("Location"))
}

func TestRequireSession(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/cleaner", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AUTH003", body.Code)
}

func TestRequireSession_StaleCookieCleared(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := withCookie(httptest.NewRequest(http.MethodGet, "/cleaner", nil), &http.Cookie{Name: "sid", Value: "forged"})
	rec := env.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name     string
		username string
		password string
		status   int
		contains string
	}{
		{"success", "bob", "password1", http.StatusOK, "Registration successful! Please login."},
		{"duplicate", "bob", "password1", http.StatusConflict, "Username already exists"},
		{"short password", "carol", "short", http.StatusBadRequest, "Password must be at least 8 characters"},
		{"missing username", "", "password1", http.StatusBadRequest, "Username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(formRequest("/register", url.Values{"username": {tt.username}, "password": {tt.password}}))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, testConfig())
	_, err := env.users.CreateUser(context.Background(), "alice", "password1")
	require.NoError(t, err)

	rec := env.do(formRequest("/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
	assert.Empty(t, rec.Result().Cookies())

	rec = env.do(formRequest("/login", url.Values{"username": {" alice "}, "password": {"password1"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cleaner", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodPost, "/logout", nil), cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	_, err := env.users.GetSession(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/cleaner", nil), cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, "/cleaner", nil), cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Signed in as alice")
	assert.Contains(t, body, "In-memory")
	assert.Contains(t, body, `value="remove_duplicates" checked`)
	assert.NotContains(t, body, `value="standardize_case" checked`)
	assert.Contains(t, body, "No files cleaned yet.")
}

func TestCleanAndDownload(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	req := uploadRequest(t, "/cleaner", "people.csv", peopleCSV,
		core.OpTrimWhitespace, core.OpRemoveNulls, core.OpRemoveDuplicates)
	rec := env.do(withCookie(req, cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Results for people.csv")
	assert.Contains(t, body, "Showing 2 of 3 rows")
	assert.Contains(t, body, "Showing 1 of 1 rows")
	assert.Contains(t, body, "Trim Whitespace, Remove Nulls, Remove Duplicates")
	assert.NotContains(t, body, `value="standardize_case" checked`)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/download", nil), cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=cleaned_people.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "name,age\nAlice,30\n", rec.Body.String())

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/download?format=xlsx", nil), cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cleaned_people.xlsx")
	ds, err := tabular.ReadXLSX(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, core.Dataset{Header: []string{"name", "age"}, Rows: [][]string{{"Alice", "30"}}}, ds)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/download?format=pdf", nil), cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/cleaner", nil), cookie))
	assert.Contains(t, rec.Body.String(), "people.csv")
}

func TestClean_Errors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		code    string
		checked string
	}{
		{
			name:    "no file",
			req:     uploadRequest(t, "/cleaner", "", "", core.OpRemoveNulls),
			status:  http.StatusBadRequest,
			code:    "FILE004",
			checked: `value="remove_nulls" checked`,
		},
		{
			name:   "unknown operation",
			req:    uploadRequest(t, "/cleaner", "people.csv", peopleCSV, "reverse_rows"),
			status: http.StatusBadRequest,
			code:   "CLN001",
		},
		{
			name:   "ragged rows",
			req:    uploadRequest(t, "/cleaner", "bad.csv", "a,b\n1\n", core.OpTrimWhitespace),
			status: http.StatusUnprocessableEntity,
			code:   "CLN002",
		},
		{
			name:   "unsupported type",
			req:    uploadRequest(t, "/cleaner", "notes.txt", "hello"),
			status: http.StatusUnsupportedMediaType,
			code:   "FILE006",
		},
		{
			name:   "header only file is fine",
			req:    uploadRequest(t, "/cleaner", "empty.csv", "a,b\n", core.OpRemoveEmptyColumns),
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(withCookie(tt.req, cookie))
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
			if tt.checked != "" {
				assert.Contains(t, rec.Body.String(), tt.checked)
			}
		})
	}
}

func TestClean_FileNameDoesNotChangeErrorCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	const badCSV = "name,age\nal\"ice,30\n"
	tests := []struct {
		fileName string
		status   int
		code     string
	}{
		{"report.csv", http.StatusBadRequest, "FILE002"},
		{"malformed dataset.csv", http.StatusBadRequest, "FILE002"},
		{"invalid operation.csv", http.StatusBadRequest, "FILE002"},
		{"file too large.csv", http.StatusBadRequest, "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			req := withCookie(uploadRequest(t, "/api/clean", tt.fileName, badCSV, core.OpTrimWhitespace), cookie)
			rec := env.do(req)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}

	rec := env.do(withCookie(uploadRequest(t, "/cleaner", "malformed dataset.csv", badCSV, core.OpTrimWhitespace), cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE002")
	assert.NotContains(t, rec.Body.String(), "CLN002")
}

func TestClean_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 16
	env := newTestEnv(t, cfg)
	cookie := env.login(t)

	rec := env.do(withCookie(uploadRequest(t, "/cleaner", "people.csv", peopleCSV), cookie))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE001")
}

func TestDownload_NoResult(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, "/download", nil), cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPL003")
}

func TestAPIClean(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	req := uploadRequest(t, "/api/clean", "people.csv", peopleCSV, "trim_whitespace,remove_nulls", core.OpRemoveDuplicates)
	rec := env.do(withCookie(req, cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp cleanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "people.csv", resp.FileName)
	assert.Equal(t, 3, resp.Stats.RowsBefore)
	assert.Equal(t, 1, resp.Stats.RowsAfter)
	assert.Equal(t, 2, resp.RowsRemoved)
	assert.Equal(t, []string{core.OpTrimWhitespace, core.OpRemoveNulls, core.OpRemoveDuplicates}, resp.Stats.Applied)
	assert.Equal(t, 2, resp.Original.Shown())
	assert.True(t, resp.Original.Truncated)
	assert.Equal(t, [][]string{{"Alice", "30"}}, resp.Cleaned.Rows)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/history", nil), cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []core.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.History, 1)
	assert.Equal(t, "people.csv", hist.History[0].FileName)
	assert.Equal(t, 1, hist.History[0].RowsAfter)
}

func TestAPIClean_ErrorIsJSON(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.do(withCookie(uploadRequest(t, "/api/clean", "people.csv", peopleCSV, "reverse_rows"), cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CLN001", body.Code)
	assert.NotEmpty(t, body.Action)
}

func TestAPIHistory_Empty(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/history", nil), cookie))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"history":[]}`, rec.Body.String())
}

func TestAPIOperations(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/operations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Operations []operationInfo `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Operations, 6)
	assert.Equal(t, core.OpStandardizeCase, body.Operations[0].Name)
	assert.Equal(t, core.OpRemoveDuplicates, body.Operations[5].Name)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "In-memory", body.Storage)
	assert.Equal(t, 2, body.Uploads.MaxConcurrent)

	down := newTestEnv(t, testConfig(), func(d *Deps) {
		d.Ping = func(context.Context) error { return errors.New("dial tcp: connection refused") }
	})
	rec = down.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
	assert.Contains(t, rec.Body.String(), "DB004")
}

func TestMetrics_APIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	env := newTestEnv(t, cfg)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")

	cfg := testConfig()
	cfg.Security.EnableCSP = false
	rec = newTestEnv(t, cfg).do(httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1, LoginLimit: 1}
	env := newTestEnv(t, cfg)

	for i := 0; i < 2; i++ {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "198.51.100.20:4000"
	assert.Equal(t, http.StatusOK, env.do(other).Code)
}

func TestRateLimit_LoginRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 10, LoginLimit: 1}
	env := newTestEnv(t, cfg)

	form := url.Values{"username": {"ghost"}, "password": {"password1"}}
	assert.Equal(t, http.StatusUnauthorized, env.do(formRequest("/login", form)).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(formRequest("/login", form)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/login", nil)).Code)
}

// gatedDecoder holds a run inside its upload slot until release is closed.
type gatedDecoder struct {
	codec   *tabular.Codec
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDecoder) Decode(fileName string, r io.Reader) (core.Dataset, error) {
	close(d.entered)
	<-d.release
	return d.codec.Decode(fileName, r)
}

func TestShutdown_DrainsRunsAfterClosingListener(t *testing.T) {
	codec, err := tabular.NewCodec(tabular.ReadOptions{Encoding: "utf-8", Delimiter: ','})
	require.NoError(t, err)
	gate := &gatedDecoder{codec: codec, entered: make(chan struct{}), release: make(chan struct{})}

	env := newTestEnv(t, testConfig(), func(d *Deps) {
		d.Service = core.NewService(core.ServiceConfig{MaxConcurrent: 2, MaxWait: time.Second}, gate, core.NewMemoryHistory(), nil)
	})
	cookie := env.login(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- env.srv.Serve(ln) }()

	form := uploadRequest(t, "/api/clean", "people.csv", peopleCSV, core.OpTrimWhitespace)
	req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/api/clean", form.Body)
	require.NoError(t, err)
	req.Header = form.Header.Clone()
	req.AddCookie(cookie)

	type reply struct {
		status int
		err    error
	}
	inflight := make(chan reply, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			inflight <- reply{err: err}
			return
		}
		resp.Body.Close()
		inflight <- reply{status: resp.StatusCode}
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- env.srv.Shutdown(context.Background()) }()

	assert.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 5*time.Second, 10*time.Millisecond, "listener still accepting while a run is in flight")

	select {
	case err := <-stopped:
		t.Fatalf("shutdown returned before the run finished: %v", err)
	default:
	}

	close(gate.release)

	select {
	case r := <-inflight:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.status)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.NoError(t, <-served)
	assert.Equal(t, 0, env.srv.deps.Service.UploadLimiterStatus().Active)
}
