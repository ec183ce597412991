package api_test

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{text: "x"}, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestReadyWithoutDatabase(t *testing.T) {
	// The test server carries no pool, so readiness must fail.
	ts := newTestServer(t, &stubGenerator{text: "x"}, nil)

	resp, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
