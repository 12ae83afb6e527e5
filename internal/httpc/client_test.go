package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAPI_Base(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{":8090", "http://localhost:8090"},
		{"127.0.0.1:8090", "http://127.0.0.1:8090"},
		{"http://proctor.local/", "http://proctor.local"},
		{"https://proctor.example.com", "https://proctor.example.com"},
	}
	for _, tc := range tests {
		if got := NewAPI(tc.in).Base(); got != tc.want {
			t.Errorf("NewAPI(%q).Base() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAPI_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/counter":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Write([]byte(`{"count":3,"total":10,"percent":30}`))
		case "/api/monitors/visual/start":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"camera busy","kind":"device_unavailable"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		}
	}))
	defer srv.Close()

	api := NewAPI(srv.URL)
	ctx := context.Background()

	var counter struct {
		Count   int `json:"count"`
		Percent int `json:"percent"`
	}
	if err := api.Get(ctx, "/api/counter", &counter); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if counter.Count != 3 || counter.Percent != 30 {
		t.Errorf("Unexpected body: %+v", counter)
	}

	err := api.Post(ctx, "/api/monitors/visual/start", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Kind != "device_unavailable" || apiErr.Message != "camera busy" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}

	err = api.Delete(ctx, "/missing", nil)
	if !errors.As(err, &apiErr) || apiErr.Message != "not found" {
		t.Errorf("Expected plain-text API error, got %v", err)
	}
}
