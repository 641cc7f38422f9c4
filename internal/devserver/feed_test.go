package devserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicetriage/internal/domain"
)

func dialFeed(t *testing.T, server *Server, baseURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/voicemails/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return server.feed.subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readNotice(t *testing.T, conn *websocket.Conn) notice {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n notice
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestFeedAnnouncesUploadAndResolution(t *testing.T) {
	server, httpServer := newTestServer(t, Options{Manual: true})
	conn := dialFeed(t, server, httpServer.URL)

	resp := postFile(t, httpServer.URL, []byte("RIFF"))
	resp.Body.Close()

	created := readNotice(t, conn)
	assert.Equal(t, "created", created.Type)
	assert.Equal(t, string(domain.StatusProcessing), created.Status)
	require.NotEmpty(t, created.ID)

	require.NoError(t, server.Fail(context.Background(), created.ID))
	updated := readNotice(t, conn)
	assert.Equal(t, notice{Type: "updated", ID: created.ID, Status: string(domain.StatusFailed)}, updated)
}

func TestFeedDropsClosedSubscribers(t *testing.T) {
	server, httpServer := newTestServer(t, Options{Manual: true})
	conn := dialFeed(t, server, httpServer.URL)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return server.feed.subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestFeedRejectsForeignOrigin(t *testing.T) {
	_, httpServer := newTestServer(t, Options{Manual: true, AllowedOrigins: []string{"http://localhost:5173"}})

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/voicemails/events"
	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
