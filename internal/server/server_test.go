package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"taskmaster/internal/db"
	"taskmaster/internal/domain"
	"taskmaster/internal/manager"
	"taskmaster/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL     string
	Manager *manager.Manager
	client  *http.Client
	close   func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := manager.New(conn)
	handler, err := New(Config{
		Manager:  m,
		BasePath: "/api/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, DevLogin: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:     "http://" + ln.Addr().String(),
		Manager: m,
		client:  &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

// seedUser inserts a profile directly and returns an Authorization header.
func seedUser(t *testing.T, srv *testServer, id string, role domain.Role) map[string]string {
	t.Helper()
	ctx := context.Background()
	adminBootstrap := domain.Identity{UserID: "bootstrap", Role: domain.RoleAdmin}
	_, err := srv.Manager.CreateUser(ctx, adminBootstrap, manager.UserCreateOptions{
		ID:    id,
		Name:  id,
		Email: id + "@example.com",
		Role:  string(role),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	token, err := signToken(id, testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, data []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, string(data))
	}
	return env
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Success || env.Error == "" {
		t.Fatalf("want failure envelope, got %s", string(data))
	}
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}

func TestClientCannotCreateProject(t *testing.T) {
	srv := newTestServer(t)
	headers := seedUser(t, srv, "client-1", domain.RoleClient)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/projects", map[string]any{
		"name": "Forbidden",
	}, headers)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Success || env.Error != "clients cannot create projects" || env.Code != "forbidden" {
		t.Fatalf("envelope: %s", string(data))
	}

	// The reason must be a bare string, not an object, and the envelope
	// carries no extra keys.
	var shape struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatalf("error field is not a plain string: %v (%s)", err, string(data))
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if _, found := keys["$schema"]; found {
		t.Fatalf("unexpected $schema key in envelope: %s", string(data))
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, "admin-1", domain.RoleAdmin)
	employee := seedUser(t, srv, "emp-1", domain.RoleEmployee)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"title":     "Ship feature",
		"assignees": []string{"emp-1"},
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	var created domain.Task
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID, map[string]any{
		"status": "in_progress",
	}, employee)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update task: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/notifications", nil, employee)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notifications: %d %s", res.StatusCode, string(data))
	}
	env = decodeEnvelope(t, data)
	var ns []domain.Notification
	if err := json.Unmarshal(env.Data, &ns); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("want 1 notification, got %d", len(ns))
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, nil, employee)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete task: %d %s", res.StatusCode, string(data))
	}
}

func TestInvisibleTaskIs404(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, "admin-1", domain.RoleAdmin)
	client := seedUser(t, srv, "client-1", domain.RoleClient)
	seedUser(t, srv, "client-2", domain.RoleClient)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/projects", map[string]any{
		"name":      "Other client's project",
		"client_id": "client-2",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var proj domain.Project
	_ = json.Unmarshal(decodeEnvelope(t, data).Data, &proj)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"title":      "Hidden",
		"project_id": proj.ID,
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var hidden domain.Task
	_ = json.Unmarshal(decodeEnvelope(t, data).Data, &hidden)

	resInvisible, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/"+hidden.ID, nil, client)
	resMissing, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/no-such-task", nil, client)
	if resInvisible.StatusCode != http.StatusNotFound || resMissing.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404/404, got %d/%d", resInvisible.StatusCode, resMissing.StatusCode)
	}
}

func TestSignupAndLogin(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/signup", map[string]any{
		"name":  "Walk In",
		"email": "walkin@example.com",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup: %d %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	var login struct {
		Token string             `json:"token"`
		User  domain.UserProfile `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.User.Role != domain.RoleClient || login.Token == "" {
		t.Fatalf("signup result: %s", string(data))
	}

	headers := map[string]string{"Authorization": "Bearer " + login.Token}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/me", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"email": "walkin@example.com",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, "admin-1", domain.RoleAdmin)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/apikeys", map[string]any{
		"name": "ci",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var key struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, data).Data, &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: %d %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/api/v1/apikeys/"+key.ID, nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("revoke key: %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key still accepted: %d", res.StatusCode)
	}
}

func TestEventsAreStaffOnly(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, "admin-1", domain.RoleAdmin)
	employee := seedUser(t, srv, "emp-1", domain.RoleEmployee)
	client := seedUser(t, srv, "client-1", domain.RoleClient)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/events", nil, client)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("client events: %d %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Error != "clients cannot view events" {
		t.Fatalf("denial: %s", string(data))
	}

	for name, headers := range map[string]map[string]string{"admin": admin, "employee": employee} {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/events", nil, headers)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s events: %d %s", name, res.StatusCode, string(data))
		}
		env := decodeEnvelope(t, data)
		var evts []domain.Event
		if err := json.Unmarshal(env.Data, &evts); err != nil {
			t.Fatalf("unmarshal events: %v", err)
		}
		if len(evts) == 0 {
			t.Fatal("expected seeded user events in audit trail")
		}
	}
}
