package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sancovp/metasync/internal/eventbus"
	syncpkg "github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/tracker"
)

func newTestServer(t *testing.T, secret []byte) (*Server, *tracker.MemoryStore) {
	t.Helper()
	store := tracker.NewMemoryStore()
	engine := syncpkg.NewEngine(store, testMetaRepo)
	engine.OnMessage = func(string) {}
	engine.OnWarning = func(string) {}

	bus := eventbus.New()
	bus.Register(&eventbus.ValidatorHandler{Store: store})
	bus.Register(&eventbus.SyncHandler{Engine: engine})
	bus.Register(&eventbus.ArchiveHandler{Engine: engine})

	return NewServer(ServerConfig{
		Bus:      bus,
		MetaRepo: testMetaRepo,
		Secret:   secret,
	}), store
}

func deliver(t *testing.T, srv *Server, ghEvent string, body []byte, secret []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", ghEvent)
	if secret != nil {
		req.Header.Set("X-Hub-Signature-256", Sign(body, secret))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerDeliverySyncsIssue(t *testing.T) {
	secret := []byte("s3cret")
	srv, store := newTestServer(t, secret)

	body := issuesPayload("acme/widgets", "opened", "Fix crash", []string{"status-plan"}, "")
	rec := deliver(t, srv, "issues", body, secret)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK     bool `json:"ok"`
		Synced bool `json:"synced"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || !resp.Synced {
		t.Errorf("response = %s", rec.Body.String())
	}
	if store.Issue(testMetaRepo, 1) == nil {
		t.Error("wrapper was not created")
	}
}

func TestServerRejectsBadSignature(t *testing.T) {
	secret := []byte("s3cret")
	srv, store := newTestServer(t, secret)

	body := issuesPayload("acme/widgets", "opened", "Fix crash", nil, "")
	rec := deliver(t, srv, "issues", body, []byte("wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = deliver(t, srv, "issues", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d, want 401", rec.Code)
	}

	if store.Issue(testMetaRepo, 1) != nil {
		t.Error("rejected delivery must not reach the engine")
	}
}

func TestServerIgnoresUnhandledDeliveries(t *testing.T) {
	secret := []byte("s3cret")
	srv, _ := newTestServer(t, secret)

	body := issuesPayload("acme/widgets", "assigned", "t", nil, "")
	rec := deliver(t, srv, "issues", body, secret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Ignored bool `json:"ignored"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ignored {
		t.Errorf("response = %s, want ignored", rec.Body.String())
	}
}

func TestServerArchiveDelivery(t *testing.T) {
	secret := []byte("s3cret")
	srv, store := newTestServer(t, secret)
	store.Seed("acme/widgets", 42, "Fix crash", "", tracker.StateOpen, nil)

	body := issuesPayload(testMetaRepo, "labeled", "[acme/widgets#42] Fix crash",
		[]string{"synced", "status-archived"}, "status-archived")
	rec := deliver(t, srv, "issues", body, secret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.Issue("acme/widgets", 42).State != tracker.StateClosed {
		t.Error("archive delivery should close the source issue")
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServerTransportFailureSignalsRedelivery(t *testing.T) {
	secret := []byte("s3cret")
	srv, store := newTestServer(t, secret)
	store.Err = errors.New("tracker offline")

	body := issuesPayload("acme/widgets", "opened", "Fix crash", nil, "")
	rec := deliver(t, srv, "issues", body, secret)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 so GitHub redelivers", rec.Code)
	}
}

func TestServerHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
