package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quickcheckhq/realtime/internal/model"
)

func TestGetInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quick-checks" {
			t.Errorf("path = %q, want /quick-checks", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "in_progress" {
			t.Errorf("status = %q, want in_progress", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"quick_checks":[{"id":12,"status":"pending","user":"jo","data":{"vin":"1HGCM82633A004352"}}],"total":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	got, err := c.GetInProgress(context.Background())
	if err != nil {
		t.Fatalf("GetInProgress: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != 12 || got[0].Payload.VIN != "1HGCM82633A004352" {
		t.Errorf("unexpected record: %+v", got[0])
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"quick_checks":[],"total":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetries(5, time.Millisecond))
	if _, err := c.GetSubmitted(context.Background()); err != nil {
		t.Fatalf("GetSubmitted: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"quick_checks":[],"total":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetries(2, time.Millisecond))
	if _, err := c.GetInProgress(context.Background()); err != nil {
		t.Fatalf("GetInProgress: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetries(3, time.Millisecond))
	_, err := c.GetQuickCheck(context.Background(), 99)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetries(2, time.Millisecond))
	_, err := c.GetInProgress(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestArchiveSendsReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/quick-checks/42/archive" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var req archiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Reason != "duplicate entry" {
			t.Errorf("reason = %q", req.Reason)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.Archive(context.Background(), 42, "duplicate entry"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
}

func TestDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/quick-checks/7" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.Delete(context.Background(), 7); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestSubmitReturnsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quick-checks/5/submit" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Data.Mileage != "40000" {
			t.Errorf("mileage = %q", req.Data.Mileage)
		}
		w.Write([]byte(`{"quick_check":{"id":5,"status":"submitted","user":"jo","data":{"mileage":"40000"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	rec, err := c.Submit(context.Background(), 5, model.Payload{Mileage: "40000"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.ID != 5 || rec.Status != "submitted" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "tok", WithRetries(10, time.Second))
	_, err := c.GetInProgress(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
