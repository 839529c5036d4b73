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

	"cleanflow/internal/app"
	"cleanflow/internal/db"
	"cleanflow/internal/engine"
	"cleanflow/internal/migrate"
	"cleanflow/internal/repo"
	"cleanflow/internal/tracker"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) (*testServer, string) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	admin, err := app.EnsureAdmin(context.Background(), repo.Repo{DB: conn}, "admin@test", "Admin")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	e := engine.New(conn, nil)
	handler, err := New(Config{
		Engine:  e,
		Tracker: tracker.Tracker{Repo: e.Repo},
		Auth:    AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
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
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.close)
	return testSrv, admin.ID
}

func tokenFor(t *testing.T, accountID string) string {
	t.Helper()
	token, err := MintToken(testSecret, accountID, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func authHeader(token string) map[string]string {
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

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func signupAndApprove(t *testing.T, srv *testServer, adminToken, email string) (string, string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/signup", map[string]any{
		"full_name": "Resident",
		"email":     email,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", res.StatusCode, string(data))
	}
	var p ProfileResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/residents/"+p.ID+"/approve", nil, authHeader(adminToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	return p.ID, tokenFor(t, p.ID)
}

func createCollector(t *testing.T, srv *testServer, adminToken, email, vehicle string) (CollectorResponse, string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/collectors", map[string]any{
		"full_name":      "Collector",
		"email":          email,
		"vehicle_number": vehicle,
	}, authHeader(adminToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create collector status %d: %s", res.StatusCode, string(data))
	}
	var c CollectorResponse
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal collector: %v", err)
	}
	return c, tokenFor(t, c.AccountID)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	srv, adminID := newTestServer(t)
	adminToken := tokenFor(t, adminID)
	client := srv.Client()

	_, residentToken := signupAndApprove(t, srv, adminToken, "resident@test")
	collector, collectorToken := createCollector(t, srv, adminToken, "collector@test", "BJL-1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/work-items", map[string]any{
		"kind":    "booking",
		"address": "12 Kairaba Avenue",
		"lat":     13.45,
		"lng":     -16.58,
	}, authHeader(residentToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create booking status %d: %s", res.StatusCode, string(data))
	}
	var item WorkItemResponse
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/work-items/"+item.ID+"/assign", map[string]any{
		"collector_id": collector.ID,
	}, authHeader(adminToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign status %d: %s", res.StatusCode, string(data))
	}

	// Second assignment loses the race deterministically.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/work-items/"+item.ID+"/assign", map[string]any{
		"collector_id": collector.ID,
	}, authHeader(adminToken))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second assign status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "conflict" {
		t.Fatalf("error code = %s", code)
	}

	for _, status := range []string{"in_progress", "completed"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/work-items/"+item.ID+"/status", map[string]any{
			"status": status,
		}, authHeader(collectorToken))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %s: %d: %s", status, res.StatusCode, string(data))
		}
	}
	var done WorkItemResponse
	if err := json.Unmarshal(data, &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != "completed" || done.CompletedAt == nil {
		t.Fatalf("final item = %+v", done)
	}

	// Lifecycle shows up in the event log.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?cursor=0", nil, authHeader(adminToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var events []EventResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, e := range events {
		types[e.Type] = true
	}
	for _, want := range []string{"work_item.created", "work_item.assigned", "work_item.in_progress", "work_item.completed"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}

func TestRejectedReportOverHTTP(t *testing.T) {
	srv, adminID := newTestServer(t)
	adminToken := tokenFor(t, adminID)
	_, residentToken := signupAndApprove(t, srv, adminToken, "resident@test")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/work-items", map[string]any{
		"kind":    "report",
		"address": "Bakau beach road",
		"lat":     13.48,
		"lng":     -16.68,
		"details": "construction debris dumped overnight",
	}, authHeader(residentToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create report status %d: %s", res.StatusCode, string(data))
	}
	var item WorkItemResponse
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/work-items/"+item.ID+"/status", map[string]any{
		"status": "rejected",
	}, authHeader(adminToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject status %d: %s", res.StatusCode, string(data))
	}
	var rejected WorkItemResponse
	if err := json.Unmarshal(data, &rejected); err != nil {
		t.Fatal(err)
	}
	if rejected.Status != "rejected" {
		t.Fatalf("status = %s", rejected.Status)
	}

	// Bookings cannot be rejected.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/work-items", map[string]any{
		"kind":    "booking",
		"address": "somewhere",
		"lat":     13,
		"lng":     -16,
	}, authHeader(residentToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatal(string(data))
	}
	var booking WorkItemResponse
	_ = json.Unmarshal(data, &booking)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/work-items/"+booking.ID+"/status", map[string]any{
		"status": "rejected",
	}, authHeader(adminToken))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("reject booking status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_transition" {
		t.Fatalf("error code = %s", code)
	}
}

func TestPendingApprovalBlocksWork(t *testing.T) {
	srv, _ := newTestServer(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/signup", map[string]any{
		"full_name": "Waiting",
		"email":     "waiting@test",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", res.StatusCode, string(data))
	}
	var p ProfileResponse
	_ = json.Unmarshal(data, &p)
	token := tokenFor(t, p.ID)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/work-items", map[string]any{
		"kind":    "booking",
		"address": "somewhere",
		"lat":     13,
		"lng":     -16,
	}, authHeader(token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "pending_approval" {
		t.Fatalf("error code = %s", code)
	}

	// The holding state is still visible on /me.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me struct {
		Approved bool `json:"approved"`
	}
	_ = json.Unmarshal(data, &me)
	if me.Approved {
		t.Fatal("expected approved=false")
	}
}

func TestVisibilityScoping(t *testing.T) {
	srv, adminID := newTestServer(t)
	adminToken := tokenFor(t, adminID)
	client := srv.Client()

	_, aliceToken := signupAndApprove(t, srv, adminToken, "alice@test")
	_, bobToken := signupAndApprove(t, srv, adminToken, "bob@test")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/work-items", map[string]any{
		"kind":    "booking",
		"address": "alice's place",
		"lat":     13,
		"lng":     -16,
	}, authHeader(aliceToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatal(string(data))
	}
	var item WorkItemResponse
	_ = json.Unmarshal(data, &item)

	// Bob cannot see Alice's item, by list or by id.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/work-items", nil, authHeader(bobToken))
	if res.StatusCode != http.StatusOK {
		t.Fatal(string(data))
	}
	var items []WorkItemResponse
	_ = json.Unmarshal(data, &items)
	if len(items) != 0 {
		t.Fatalf("bob sees %d items", len(items))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/work-items/"+item.ID, nil, authHeader(bobToken))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}

	// Admin sees everything; residents may not read the event log.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/work-items", nil, authHeader(adminToken))
	if res.StatusCode != http.StatusOK {
		t.Fatal(string(data))
	}
	_ = json.Unmarshal(data, &items)
	if len(items) != 1 {
		t.Fatalf("admin sees %d items", len(items))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events", nil, authHeader(aliceToken))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/work-items", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/work-items", nil, authHeader("not-a-token"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	// Health stays open.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestPositionReportOverHTTP(t *testing.T) {
	srv, adminID := newTestServer(t)
	adminToken := tokenFor(t, adminID)
	_, collectorToken := createCollector(t, srv, adminToken, "collector@test", "BJL-9")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/collectors/position", map[string]any{
		"lat": 13.4432,
		"lng": -16.6915,
	}, authHeader(collectorToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("position status %d: %s", res.StatusCode, string(data))
	}
	var c CollectorResponse
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatal(err)
	}
	if c.CurrentLat == nil || *c.CurrentLat != 13.4432 {
		t.Fatalf("lat = %v", c.CurrentLat)
	}

	// Out-of-range samples are rejected at the edge by schema validation.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/collectors/position", map[string]any{
		"lat": 95.0,
		"lng": 0.0,
	}, authHeader(collectorToken))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad sample status %d: %s", res.StatusCode, string(data))
	}
}
