package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"manifest/internal/domain"
	"manifest/internal/http/handlers"
	"manifest/internal/orchestrator"
)

type stubGenerations struct{}

func (stubGenerations) Submit(context.Context, orchestrator.SubmitRequest) (orchestrator.SubmitResult, error) {
	return orchestrator.SubmitResult{}, domain.ErrCapacity
}

func (stubGenerations) GetStatus(id string) (orchestrator.StatusView, error) {
	return orchestrator.StatusView{ID: id, Status: domain.JobStatusQueued}, nil
}

func (stubGenerations) GetArtifact(string) (*os.File, string, error) {
	return nil, "", domain.ErrNotFound
}

func (stubGenerations) GetSourceImage(string) (*os.File, string, error) {
	return nil, "", domain.ErrNotFound
}

func TestRouterRoutes(t *testing.T) {
	app := handlers.NewApp(stubGenerations{}, 0, nil)
	h := NewRouter(app, RouterOptions{CORSOrigins: []string{"https://app.example.com"}, RateLimitPerMin: 1})

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/v1/healthz", http.StatusOK},
		{http.MethodGet, "/api/generations/abc", http.StatusOK},
		{http.MethodGet, "/api/generations/abc/video", http.StatusNotFound},
		{http.MethodGet, "/api/generations/abc/image", http.StatusNotFound},
		{http.MethodDelete, "/api/generations/abc", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.want {
			t.Fatalf("%s %s = %d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s %s: missing X-Request-Id", tc.method, tc.path)
		}
	}
}

func TestRouterRateLimitsSubmissionsOnly(t *testing.T) {
	app := handlers.NewApp(stubGenerations{}, 0, nil)
	h := NewRouter(app, RouterOptions{RateLimitPerMin: 1})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/generations", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if code := post(); code != http.StatusBadRequest {
		t.Fatalf("first submission = %d, want 400 for a non-multipart body", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second submission = %d, want 429", code)
	}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/generations/abc", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status poll %d = %d, want 200", i, rr.Code)
		}
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	app := handlers.NewApp(stubGenerations{}, 0, nil)
	h := NewRouter(app, RouterOptions{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/generations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
