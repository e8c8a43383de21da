package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gogotex/records/internal/record"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, conn *websocket.Conn) record.Event {
	t.Helper()
	var ev record.Event
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "failed to read event")
	require.NoError(t, json.Unmarshal(p, &ev))
	return ev
}

func dial(t *testing.T, url, owner string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?owner="+owner, nil)
	require.NoError(t, err)
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, owner string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers(owner) == n }, time.Second, 10*time.Millisecond)
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, r.URL.Query().Get("owner"))
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	alice := dial(t, wsURL, "alice")
	defer alice.Close()
	bob := dial(t, wsURL, "bob")
	defer bob.Close()
	waitSubscribers(t, hub, "alice", 1)
	waitSubscribers(t, hub, "bob", 1)

	rec := &record.Record{ID: 1, Title: "T1", Content: "C1", CreatedAt: 100, UpdatedAt: 100}
	hub.Publish("alice", record.Event{Type: record.EventCreated, ID: 1, Record: rec})
	hub.Publish("bob", record.Event{Type: record.EventDeleted, ID: 9})

	ev := readEvent(t, alice)
	assert.Equal(t, record.EventCreated, ev.Type)
	assert.Equal(t, rec, ev.Record)

	ev = readEvent(t, bob)
	assert.Equal(t, record.EventDeleted, ev.Type)
	assert.Equal(t, uint64(9), ev.ID)
	assert.Nil(t, ev.Record)
}

func TestHubRemovesClosedSubscribers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, r.URL.Query().Get("owner"))
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := dial(t, wsURL, "alice")
	waitSubscribers(t, hub, "alice", 1)
	conn.Close()
	waitSubscribers(t, hub, "alice", 0)

	// publishing to an owner without subscribers is a no-op
	hub.Publish("alice", record.Event{Type: record.EventDeleted, ID: 1})
}
