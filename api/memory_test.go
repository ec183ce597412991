package api_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/docchat/docchat/api"
)

func TestResetMemory(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{text: "x"}, nil)

	resp, err := http.Post(ts.URL+"/reset_memory", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /reset_memory: %v", err)
	}
	got := decodeJSON[api.StatusResponse](t, resp)
	if got.Status != "success" {
		t.Errorf("status = %q", got.Status)
	}
	if !ts.resetter.resetAll {
		t.Error("ResetAll was not called")
	}
}

func TestClearHistory(t *testing.T) {
	t.Run("defaults to the shared session", func(t *testing.T) {
		ts := newTestServer(t, &stubGenerator{text: "x"}, nil)

		resp, err := http.Post(ts.URL+"/clear_history", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /clear_history: %v", err)
		}
		got := decodeJSON[api.StatusResponse](t, resp)
		if got.Status != "success" {
			t.Errorf("status = %q", got.Status)
		}
		if len(ts.resetter.reset) != 1 || ts.resetter.reset[0] != api.DefaultSessionID {
			t.Errorf("reset sessions = %v, want the default session", ts.resetter.reset)
		}
	})

	t.Run("clears a named session", func(t *testing.T) {
		ts := newTestServer(t, &stubGenerator{text: "x"}, nil)
		session := uuid.New()

		resp, err := http.Post(ts.URL+"/clear_history", "application/json",
			jsonBody(t, api.ClearHistoryRequest{SessionID: session.String()}))
		if err != nil {
			t.Fatalf("POST /clear_history: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if len(ts.resetter.reset) != 1 || ts.resetter.reset[0] != session {
			t.Errorf("reset sessions = %v, want %s", ts.resetter.reset, session)
		}
	})

	t.Run("rejects malformed session id", func(t *testing.T) {
		ts := newTestServer(t, &stubGenerator{text: "x"}, nil)

		resp, err := http.Post(ts.URL+"/clear_history", "application/json",
			strings.NewReader(`{"sessionId": "nope"}`))
		if err != nil {
			t.Fatalf("POST /clear_history: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}
