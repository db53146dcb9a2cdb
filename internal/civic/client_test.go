package civic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "printdesk/pkg/logx"
)

func TestFetchSinceQueryAndOrdering(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"status":        q.Get("status"),
			"request_types": q.Get("request_types"),
			"after":         q.Get("after"),
			"limit":         q.Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		// Deliberately out of order, with one record at the boundary.
		_, _ = w.Write([]byte(`[
			{"id":"c","created_at":"2024-06-01T12:30:00Z","request_type":"6632","status":"open"},
			{"id":"a","created_at":"2024-06-01T12:00:00Z","request_type":"6632","status":"open"},
			{"id":"b","created_at":"2024-06-01T12:15:00Z","request_type":"6632","status":"acknowledged"},
			{"id":"stale","created_at":"2024-06-01T11:00:00Z","request_type":"6632","status":"open"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageLimit: 25, RatePerSec: 100}, logx.Nop())
	after := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	issues, err := c.FetchSince(context.Background(), Query{RequestTypes: "6632", After: after})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotQuery["status"] != openStatuses {
		t.Errorf("status param: %q", gotQuery["status"])
	}
	if gotQuery["request_types"] != "6632" {
		t.Errorf("request_types param: %q", gotQuery["request_types"])
	}
	if gotQuery["after"] != "2024-06-01T11:00:00Z" {
		t.Errorf("after param not strict UTC: %q", gotQuery["after"])
	}
	if gotQuery["limit"] != "25" {
		t.Errorf("limit param: %q", gotQuery["limit"])
	}

	// The boundary record is excluded, the rest ascend by creation time.
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(issues))
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if issues[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, issues[i].ID, id)
		}
	}
}

func TestFetchSinceLimitClamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit should clamp to 50, got %q", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageLimit: 500, RatePerSec: 100}, logx.Nop())
	if _, err := c.FetchSince(context.Background(), Query{RequestTypes: "6632", After: time.Now()}); err != nil {
		t.Fatal(err)
	}
}

func TestFetchSinceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 100}, logx.Nop())
	if _, err := c.FetchSince(context.Background(), Query{RequestTypes: "6632", After: time.Now()}); err == nil {
		t.Fatal("expected error on non-2xx status")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer bad.Close()

	c = NewClient(Config{BaseURL: bad.URL, RatePerSec: 100}, logx.Nop())
	if _, err := c.FetchSince(context.Background(), Query{RequestTypes: "6632", After: time.Now()}); err == nil {
		t.Fatal("expected error on malformed payload")
	}
}
