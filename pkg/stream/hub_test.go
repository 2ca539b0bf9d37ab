package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	conn := dialHub(t, hub)

	// Wait for the registration to land before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastConsensus(map[string]any{"matches": 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != EventTypeConsensus {
		t.Fatalf("event type = %q", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}
}

func TestHubUnsubscribeFiltersEvents(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	conn := dialHub(t, hub)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg := `{"type":"unsubscribe","events":["consensus"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Give the read pump a moment to apply the filter.
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastConsensus(map[string]any{"matches": 1})
	hub.BroadcastAccuracy(map[string]any{"correct": true})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != EventTypeAccuracy {
		t.Fatalf("got %q, want the accuracy event only", event.Type)
	}
}
