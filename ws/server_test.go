package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PranavReddyGaddam/Signal/config"
	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/hub"
	"github.com/PranavReddyGaddam/Signal/ws"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadTimeout:    time.Minute,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 65536,
		SendBufferSize: 16,
	}
}

func startTestServer(t *testing.T) (*hub.Hub, string) {
	t.Helper()

	h := hub.NewHub(16)
	e := echo.New()
	ws.NewServer(testConfig(), h).RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt domain.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestConnectionEstablishedOnConnect(t *testing.T) {
	_, base := startTestServer(t)
	conn := dial(t, base+"/ws/sess_1")

	evt := readEvent(t, conn)
	assert.Equal(t, domain.EventTypeConnectionEstablished, evt.Type)
	assert.Equal(t, "sess_1", evt.SessionID)
}

func TestHubEventsReachTheConnection(t *testing.T) {
	h, base := startTestServer(t)
	conn := dial(t, base+"/ws/sess_1")
	readEvent(t, conn)

	// The subscription registers during the upgrade, so the publish
	// lands in the subscriber's buffer.
	require.Eventually(t, func() bool {
		return h.SubscriberCount("sess_1") == 1
	}, time.Second, 10*time.Millisecond)

	h.Publish("sess_1", domain.NewProgressUpdate("sess_1", domain.StageIntent, 42, "working"))

	evt := readEvent(t, conn)
	assert.Equal(t, domain.EventTypeProgressUpdate, evt.Type)
	require.NotNil(t, evt.Progress)
	assert.Equal(t, 42.0, *evt.Progress)
	assert.Equal(t, "working", evt.Message)
}

func TestPingControlMessage(t *testing.T) {
	_, base := startTestServer(t)
	conn := dial(t, base+"/ws/sess_1")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	evt := readEvent(t, conn)
	assert.Equal(t, domain.EventTypePong, evt.Type)
	assert.Equal(t, "sess_1", evt.SessionID)
}

func TestSubscribeControlMessage(t *testing.T) {
	_, base := startTestServer(t)
	conn := dial(t, base+"/ws/sess_1")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"subscribe","events":["progress_update","error"]}`)))

	evt := readEvent(t, conn)
	assert.Equal(t, domain.EventTypeSubscriptionConfirmed, evt.Type)
	assert.Equal(t, []string{"progress_update", "error"}, evt.Events)
}

func TestCloseUnsubscribes(t *testing.T) {
	h, base := startTestServer(t)
	conn := dial(t, base+"/ws/sess_1")
	readEvent(t, conn)

	require.Eventually(t, func() bool {
		return h.SubscriberCount("sess_1") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return h.SubscriberCount("sess_1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTwoConnectionsSameSession(t *testing.T) {
	h, base := startTestServer(t)
	a := dial(t, base+"/ws/sess_1")
	b := dial(t, base+"/ws/sess_1")
	readEvent(t, a)
	readEvent(t, b)

	require.Eventually(t, func() bool {
		return h.SubscriberCount("sess_1") == 2
	}, time.Second, 10*time.Millisecond)

	h.Publish("sess_1", domain.NewProgressUpdate("sess_1", domain.StagePattern, 75, ""))

	for _, conn := range []*websocket.Conn{a, b} {
		evt := readEvent(t, conn)
		assert.Equal(t, domain.EventTypeProgressUpdate, evt.Type)
		require.NotNil(t, evt.Progress)
		assert.Equal(t, 75.0, *evt.Progress)
	}
}
