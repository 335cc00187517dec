package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arbiter/internal/kernel"
)

func TestWitnessStream(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/witness"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	// Give the subscription a moment to register before the turn runs.
	deadline := time.Now().Add(2 * time.Second)
	for s.orch.Witness().Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	result := doJSON(t, s.Router(), http.MethodPost, "/api/turn", map[string]string{
		"session_id": "s1",
		"text":       "you must stop",
	})
	if result.Code != http.StatusOK {
		t.Fatalf("turn = %d", result.Code)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev kernel.TurnEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.SessionID != "s1" || ev.Findings == 0 {
		t.Fatalf("event = %+v", ev)
	}
}
