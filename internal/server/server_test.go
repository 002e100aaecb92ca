package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default("gigline")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	seedActors(t, e)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
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
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func seedActors(t *testing.T, e engine.Engine) {
	t.Helper()
	ctx := context.Background()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	actors := []domain.Actor{
		{ID: "client-1", Role: domain.ActorRoleClient, Name: "Ada", CreatedAt: "2024-05-01T12:00:00Z"},
		{ID: "fl-1", Role: domain.ActorRoleFreelancer, Name: "Noor", CreatedAt: "2024-05-01T12:00:00Z"},
		{ID: "fl-2", Role: domain.ActorRoleFreelancer, Name: "Sam", CreatedAt: "2024-05-01T12:00:00Z"},
	}
	for _, a := range actors {
		if err := e.Repo.EnsureActor(ctx, tx, a); err != nil {
			t.Fatalf("seed actor %s: %v", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit seed: %v", err)
	}
}

func asClient() map[string]string {
	return map[string]string{"X-Actor-Id": "client-1", "X-Actor-Role": domain.ActorRoleClient}
}

func asFreelancer(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id, "X-Actor-Role": domain.ActorRoleFreelancer}
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

func decodeBody(t *testing.T, data []byte) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

// errorCode extracts the code from the {"error":{"code":...}} envelope.
func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	body := decodeBody(t, data)
	env, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %s", string(data))
	}
	code, _ := env["code"].(string)
	return code
}

func createJob(t *testing.T, srv *testServer, body map[string]any) map[string]any {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["title"]; !ok {
		body["title"] = "Landing page"
	}
	if _, ok := body["category"]; !ok {
		body["category"] = "Design"
	}
	if _, ok := body["budget_min"]; !ok {
		body["budget_min"] = 400.0
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/jobs", body, asClient())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job status %d: %s", res.StatusCode, string(data))
	}
	return decodeBody(t, data)
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/jobs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCreateJobRoleGate(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/jobs", map[string]any{
		"title": "Nope",
	}, asFreelancer("fl-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for freelancer creating a job, got %d: %s", res.StatusCode, string(data))
	}
}

func TestJobNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/jobs/nope", nil, asClient())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("expected not_found code, got %q", code)
	}
}

func TestPublishInvalidState(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := createJob(t, srv, nil)
	id := created["id"].(string)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/jobs/"+id+"/publish", nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/jobs/"+id+"/publish", nil, asClient())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for double publish, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_state" {
		t.Fatalf("expected invalid_state code, got %q", code)
	}
}

func TestHireFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	created := createJob(t, srv, map[string]any{
		"milestones": []map[string]any{{"title": "comps", "value": 200.0}},
	})
	jobID := created["id"].(string)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/publish", nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/proposals", map[string]any{
		"job_id":       jobID,
		"cover_letter": "I can do this",
		"bid_amount":   450.0,
	}, asFreelancer("fl-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create proposal status %d: %s", res.StatusCode, string(data))
	}
	proposal := decodeBody(t, data)
	proposalID := proposal["id"].(string)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/proposals", map[string]any{
		"job_id": jobID,
	}, asFreelancer("fl-2"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("sibling proposal status %d: %s", res.StatusCode, string(data))
	}
	sibling := decodeBody(t, data)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/proposals/"+proposalID+"/accept", nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}
	hire := decodeBody(t, data)
	job := hire["job"].(map[string]any)
	if job["status"] != domain.JobStatusInProgress {
		t.Fatalf("expected in_progress after hire, got %v", job["status"])
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/proposals/"+sibling["id"].(string), nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get sibling status %d: %s", res.StatusCode, string(data))
	}
	if got := decodeBody(t, data); got["status"] != domain.ProposalStatusRejected {
		t.Fatalf("expected sibling rejected, got %v", got["status"])
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/milestones/0/submit", map[string]any{
		"evidence": "https://example.com/comps",
	}, asFreelancer("fl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit milestone status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/milestones/0/approve", nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve milestone status %d: %s", res.StatusCode, string(data))
	}
	approval := decodeBody(t, data)
	if approval["job_completed"] != true {
		t.Fatalf("expected job_completed true on final approval, got %v", approval["job_completed"])
	}
	finalJob := approval["job"].(map[string]any)
	if finalJob["status"] != domain.JobStatusCompleted {
		t.Fatalf("expected completed job, got %v", finalJob["status"])
	}
}

func TestCancellationOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	created := createJob(t, srv, nil)
	jobID := created["id"].(string)

	doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/publish", nil, asClient())
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/proposals", map[string]any{"job_id": jobID}, asFreelancer("fl-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("proposal status %d: %s", res.StatusCode, string(data))
	}
	proposalID := decodeBody(t, data)["id"].(string)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/proposals/"+proposalID+"/accept", nil, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/cancellation", map[string]any{
		"reason": "no longer needed",
	}, asClient())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("request cancellation status %d: %s", res.StatusCode, string(data))
	}

	// The initiator cannot answer their own request.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/cancellation/respond", map[string]any{
		"action": "accept",
	}, asClient())
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for initiator response, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/jobs/"+jobID+"/cancellation/respond", map[string]any{
		"action": "accept",
	}, asFreelancer("fl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("respond status %d: %s", res.StatusCode, string(data))
	}
	job := decodeBody(t, data)
	if job["status"] != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %v", job["status"])
	}
}
