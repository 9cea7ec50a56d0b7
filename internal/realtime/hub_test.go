package realtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/operations"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	t.Cleanup(hub.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHubSendsWelcomeOnConnect(t *testing.T) {
	_, server := newTestServer(t)
	conn := dial(t, server)

	env := readEnvelope(t, conn)
	require.Equal(t, "connected", env.Type)
	require.NotEmpty(t, env.MessageID)
}

func TestHubRespondsToPing(t *testing.T) {
	_, server := newTestServer(t)
	conn := dial(t, server)
	readEnvelope(t, conn) // welcome

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	env := readEnvelope(t, conn)
	require.Equal(t, "heartbeat", env.Type)
}

func TestHubDeliversProgressOnlyToSubscribers(t *testing.T) {
	hub, server := newTestServer(t)

	subscriber := dial(t, server)
	readEnvelope(t, subscriber) // welcome
	require.NoError(t, subscriber.WriteJSON(map[string]string{"action": "subscribe", "operation_id": "op-1"}))
	readEnvelope(t, subscriber) // subscribed ack

	bystander := dial(t, server)
	readEnvelope(t, bystander) // welcome

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.PublishOperationEvent(operations.ProgressEvent{
		OperationID: "op-1",
		Type:        operations.TypeProcessVideos,
		State:       operations.StateRunning,
		Processed:   5,
		Total:       10,
		Percent:     50,
	})

	env := readEnvelope(t, subscriber)
	require.Equal(t, "operation_progress", env.Type)

	bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := bystander.ReadMessage()
	require.Error(t, err) // no message arrives: not subscribed
}

func TestHubNotifyReachesAllClients(t *testing.T) {
	hub, server := newTestServer(t)

	c1 := dial(t, server)
	readEnvelope(t, c1)
	c2 := dial(t, server)
	readEnvelope(t, c2)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.BroadcastVideoUpdate("42", "move_to_trash", nil)

	env1 := readEnvelope(t, c1)
	require.Equal(t, "notification", env1.Type)
	env2 := readEnvelope(t, c2)
	require.Equal(t, "notification", env2.Type)
}

func TestHubTerminalFrameForwardsErrorAsMessage(t *testing.T) {
	hub, server := newTestServer(t)
	conn := dial(t, server)
	readEnvelope(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "operation_id": "op-9"}))
	readEnvelope(t, conn) // subscribed ack

	hub.PublishOperationEvent(operations.ProgressEvent{
		OperationID: "op-9",
		State:       operations.StateFailed,
		Error:       "boom",
		Terminal:    true,
	})

	env := readEnvelope(t, conn)
	require.Equal(t, "operation_failed", env.Type)
}
