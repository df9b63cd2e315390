package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-whatsapp/internal/core/domain"
)

func startHub(t *testing.T, secret string) (*EventHub, *httptest.Server) {
	t.Helper()
	hub := NewEventHub(secret)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWS_RejectsBadSecret(t *testing.T) {
	_, srv := startHub(t, "s3cret")

	for _, query := range []string{"", "secret_key=wrong"} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?" + query
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestPublish_ScopedByOrganization(t *testing.T) {
	hub, srv := startHub(t, "s3cret")

	orgA := dial(t, srv, "secret_key=s3cret&organization_id=org-a")
	all := dial(t, srv, "secret_key=s3cret")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageReceived, "org-b", map[string]string{"id": "1"})))
	require.NoError(t, hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageSent, "org-a", map[string]string{"id": "2"})))

	read := func(conn *websocket.Conn) domain.Event {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var event domain.Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	}

	// org-a never sees org-b's event
	got := read(orgA)
	assert.Equal(t, domain.EventMessageSent, got.Type)
	assert.Equal(t, "org-a", got.OrganizationID)

	assert.Equal(t, "org-b", read(all).OrganizationID)
	assert.Equal(t, "org-a", read(all).OrganizationID)
}

func TestPublish_NeverBlocks(t *testing.T) {
	hub := NewEventHub("s3cret") // Run not started, nothing drains the buffer

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBufferSize*2; i++ {
			_ = hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageReceived, "org", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}

func TestPublish_MarshalError(t *testing.T) {
	hub := NewEventHub("s3cret")

	err := hub.Publish(context.Background(), domain.NewEvent("bad", "org", make(chan int)))

	assert.Error(t, err)
}

func TestRunExit_ReleasesJoinAndLeave(t *testing.T) {
	hub := NewEventHub("s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(exited)
	}()
	cancel()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	returned := make(chan bool, 1)
	go func() {
		client := &Client{hub: hub, send: make(chan []byte, 1)}
		joined := hub.join(client)
		hub.leave(client)
		returned <- joined
	}()

	select {
	case joined := <-returned:
		assert.False(t, joined)
	case <-time.After(time.Second):
		t.Fatal("join/leave blocked after the hub stopped")
	}
}

func TestServeWS_AfterShutdownIsUnavailable(t *testing.T) {
	hub := NewEventHub("s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?secret_key=s3cret"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRunExit_ClosesConnectedConsoles(t *testing.T) {
	hub := NewEventHub("s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "secret_key=s3cret")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
