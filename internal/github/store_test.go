package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sancovp/metasync/internal/tracker"
)

func testStore(server *httptest.Server) *Store {
	return NewStore(testClient(server))
}

func TestStoreClassifiesAuthAsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testStore(server).GetLabels(context.Background(), "acme/widgets", 1)
	if !tracker.IsTransport(err) {
		t.Errorf("401 should classify as transport, got %v", err)
	}
}

func TestStoreKeepsClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	_, err := testStore(server).GetLabels(context.Background(), "acme/widgets", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if tracker.IsTransport(err) {
		t.Errorf("410 is not retryable, got transport error %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusGone {
		t.Errorf("APIError shape lost: %v", err)
	}
}

func TestStoreFetchMissingIssue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testStore(server).FetchIssue(context.Background(), "acme/widgets", 404)
	if !errors.Is(err, tracker.ErrIssueNotFound) {
		t.Errorf("err = %v, want ErrIssueNotFound in chain", err)
	}
	if tracker.IsTransport(err) {
		t.Errorf("a missing issue is not a transport fault: %v", err)
	}
}

func TestStoreAddUnknownLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message": "Validation Failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	err := testStore(server).EditIssue(context.Background(), "acme/widgets", 1, tracker.EditOptions{
		AddLabels: []string{"status-nonexistent"},
	})
	if !errors.Is(err, tracker.ErrLabelNotConfigured) {
		t.Errorf("err = %v, want ErrLabelNotConfigured", err)
	}
}

func TestStoreRemoveAbsentLabelTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	err := testStore(server).EditIssue(context.Background(), "acme/widgets", 1, tracker.EditOptions{
		RemoveLabels: []string{"status-plan"},
	})
	if err != nil {
		t.Errorf("removing an absent label is the desired end state, got %v", err)
	}
}

func TestStoreEditOrderTitleRemovesAdds(t *testing.T) {
	var ops []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch:
			ops = append(ops, "title")
		case r.Method == http.MethodDelete:
			ops = append(ops, "remove")
		case r.Method == http.MethodPost:
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			ops = append(ops, "add")
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	title := "new title"
	err := testStore(server).EditIssue(context.Background(), "acme/widgets", 1, tracker.EditOptions{
		Title:        &title,
		AddLabels:    []string{"status-build"},
		RemoveLabels: []string{"status-plan"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"title", "remove", "add"}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}

func TestStoreNetworkErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	err := testStore(server).AddComment(context.Background(), "acme/widgets", 1, "hi")
	if !tracker.IsTransport(err) {
		t.Errorf("connection failure should classify as transport, got %v", err)
	}
}
