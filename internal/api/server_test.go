package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pmflow-core/internal/audit"
	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/logging"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pmflow-core/internal/project"
	"github.com/nerrad567/pmflow-core/internal/task"
	"github.com/nerrad567/pmflow-core/internal/telemetry"
)

const testSecret = "api-test-secret-0123456789abcdefghijkl"

// testClock is shared by the token issuer, validator, registry and server.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureTransport records event publishes.
type captureTransport struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (c *captureTransport) Publish(_ context.Context, topic string, payload []byte, _ byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.bodies = append(c.bodies, payload)
	return nil
}

// testEnv is a fully wired server over a temporary database.
//
// Accounts (ID = username):
//   - root: ADMIN
//   - bob, carol: PROJECT_MANAGER
//   - dave, erin, alice: MEMBER (alice has password "correct-horse")
//
// Fixtures: project "p1" (Apollo) managed by bob with member dave, and task
// "t1" in p1 assigned to erin.
type testEnv struct {
	server    *Server
	handler   http.Handler
	clock     *testClock
	users     *auth.SQLiteUserRepository
	projects  *project.SQLiteRepository
	tasks     *task.SQLiteRepository
	auditRepo *audit.SQLiteRepository
	issuer    *auth.TokenIssuer
	registry  *auth.RevocationRegistry
	bus       *captureTransport
	publisher *events.Publisher
	metrics   *telemetry.Metrics
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := logging.Discard()

	env := &testEnv{
		clock:     clock,
		users:     auth.NewUserRepository(db.DB),
		projects:  project.NewSQLiteRepository(db.DB),
		tasks:     task.NewSQLiteRepository(db.DB),
		auditRepo: audit.NewSQLiteRepository(db.DB),
		registry:  auth.NewRevocationRegistry(clock.Now),
		bus:       &captureTransport{},
		metrics:   telemetry.New(),
	}
	env.issuer = auth.NewTokenIssuer(testSecret, 24*time.Hour, clock.Now)
	env.publisher = events.NewPublisher(env.bus, events.Options{Topics: mqtt.NewTopics("pmflow"), QoS: 1, Site: "test"})
	env.metrics.TrackRevocations(env.registry.Len)

	recorder := audit.NewRecorder(env.auditRepo, 0, log.Logger)
	sinks := auth.Recorders{recorder, env.metrics, env.publisher}

	svc, err := auth.NewService(auth.ServiceDeps{
		Users:     env.users,
		Issuer:    env.issuer,
		Validator: auth.NewTokenValidator(testSecret, env.registry, clock.Now),
		Registry:  env.registry,
		Throttle:  auth.NewMemoryThrottle(3, 15*time.Minute, clock.Now),
		Recorder:  sinks,
		Logger:    log.Logger,
		Now:       clock.Now,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	enforcer := auth.NewEnforcer(auth.DefaultPolicy(), log.Logger)
	enforcer.RegisterResolver(auth.ResourceProject, env.projects)
	enforcer.RegisterResolver(auth.ResourceTask, env.tasks)
	enforcer.OnDeny(auth.DenyRecorder(sinks, clock.Now))

	deps := Deps{
		Logger:       log,
		Auth:         svc,
		Enforcer:     enforcer,
		Users:        env.users,
		Projects:     env.projects,
		Tasks:        env.tasks,
		AuditRepo:    env.auditRepo,
		Audit:        recorder,
		Events:       env.publisher,
		Metrics:      env.metrics,
		HealthChecks: map[string]HealthChecker{"database": db},
		Now:          clock.Now,
		Version:      "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.server = srv
	env.handler = srv.Handler()

	env.seed(t)
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	accounts := []struct {
		name string
		role auth.Role
		hash string
	}{
		{"root", auth.RoleAdmin, "x"},
		{"bob", auth.RoleProjectManager, "x"},
		{"carol", auth.RoleProjectManager, "x"},
		{"dave", auth.RoleMember, "x"},
		{"erin", auth.RoleMember, "x"},
		{"alice", auth.RoleMember, hash},
	}
	for _, a := range accounts {
		err := e.users.Create(ctx, &auth.User{
			ID: a.name, Username: a.name, Email: a.name + "@example.com",
			FirstName: strings.ToUpper(a.name[:1]) + a.name[1:],
			PasswordHash: a.hash, Role: a.role,
		})
		if err != nil {
			t.Fatalf("creating user %s: %v", a.name, err)
		}
	}

	p := &project.Project{
		ID: "p1", Name: "Apollo", Status: project.StatusNotStarted,
		StartDate: e.clock.Now(), ManagerID: "bob", MemberIDs: []string{"dave"},
	}
	if err := e.projects.Create(ctx, p); err != nil {
		t.Fatalf("creating project: %v", err)
	}
	tk := &task.Task{
		ID: "t1", ProjectID: "p1", Name: "Design review",
		Priority: task.PriorityHigh, Status: task.StatusTodo, AssigneeID: "erin",
	}
	if err := e.tasks.Create(ctx, tk); err != nil {
		t.Fatalf("creating task: %v", err)
	}
}

// token issues a session token for a seeded account.
func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	u, err := e.users.GetByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("GetByUsername(%s) error = %v", username, err)
	}
	tok, _, err := e.issuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

// do sends a request through the full router. body may be nil, a string or
// any JSON-encodable value.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// as is do with a fresh token for username.
func (e *testEnv) as(t *testing.T, username, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, e.token(t, username), body)
}

// publishedTopics drains the event publisher and returns what it sent.
func (e *testEnv) publishedTopics() []string {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.publisher.Run(ctx)

	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	return append([]string(nil), e.bus.topics...)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// expectError checks status and the envelope's code and, if non-empty, message.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()
	expectStatus(t, rec, status)
	env := decodeBody[errorEnvelope](t, rec)
	if env.Error.Status != status || env.Error.Code != code {
		t.Errorf("error = %+v, want status %d code %s", env.Error, status, code)
	}
	if message != "" && env.Error.Message != message {
		t.Errorf("message = %q, want %q", env.Error.Message, message)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	body := decodeBody[struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		Components map[string]string `json:"components"`
	}](t, rec)
	if body.Status != "ok" || body.Version != "test" || body.Components["database"] != "ok" {
		t.Errorf("health = %+v", body)
	}
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.HealthChecks["mqtt"] = failingCheck{}
	})

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)

	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	env.as(t, "dave", http.MethodGet, "/api/v1/users", nil)

	rec := env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)

	text := rec.Body.String()
	for _, want := range []string{
		`pmflow_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`,
		`pmflow_auth_events_total{reason="role",type="access_denied"} 1`,
		`pmflow_revoked_tokens 0`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/nothing-here", "", nil),
		http.StatusNotFound, ErrCodeNotFound, "")
	expectError(t, env.do(t, http.MethodPatch, "/api/v1/health", "", nil),
		http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "")
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a generated X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-fixed")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-fixed" {
		t.Errorf("X-Request-ID = %q, want req-fixed", got)
	}
}

func TestRequestID_RejectsUnsafeClientValue(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"has space", "line\nbreak", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if got == id || got == "" {
			t.Errorf("X-Request-ID %q was echoed as %q, want a generated ID", id, got)
		}
	}
}

func TestAccessLog_NamesCaller(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, func(d *Deps) {
		d.Logger = logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	})

	expectStatus(t, env.as(t, "dave", http.MethodGet, "/api/v1/users/me", nil), http.StatusOK)
	expectStatus(t, env.as(t, "dave", http.MethodGet, "/api/v1/users", nil), http.StatusForbidden)

	var entries []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if entry["msg"] == "http request" {
			entries = append(entries, entry)
		}
	}
	if len(entries) != 2 {
		t.Fatalf("got %d access log entries, want 2", len(entries))
	}
	if entries[0]["user_id"] != "dave" || entries[0]["role"] != "MEMBER" || entries[0]["level"] != "INFO" {
		t.Errorf("first entry = %v", entries[0])
	}
	if entries[1]["level"] != "WARN" || entries[1]["status"] != float64(http.StatusForbidden) {
		t.Errorf("denied entry = %v", entries[1])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Config.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)

	h := env.server.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	expectError(t, rec, http.StatusInternalServerError, ErrCodeInternal, "")
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t)

	body := `{"identifier":"` + strings.Repeat("a", maxRequestBodySize+1) + `"}`
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)

	expectError(t, rec, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "")
}

func TestInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", "{not json")
	expectError(t, rec, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
}
