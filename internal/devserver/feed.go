package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicetriage/pkg/logger"
)

const feedWriteTimeout = 2 * time.Second

// notice mirrors the client's change notice.
type notice struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// feedHub fans change notices out to websocket subscribers.
type feedHub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu    sync.Mutex
	conns map[*feedConn]struct{}
}

func newFeedHub(origins []string, log *logger.Logger) *feedHub {
	return &feedHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origins, origin)
			},
		},
		logger: log.Named("feed"),
		conns:  make(map[*feedConn]struct{}),
	}
}

func (h *feedHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", logger.Error(err))
		return
	}
	fc := &feedConn{conn: conn}

	h.mu.Lock()
	h.conns[fc] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", logger.String("remote", r.RemoteAddr))

	// subscribers never send; reading surfaces the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(fc)
}

func (h *feedHub) broadcast(n notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*feedConn, 0, len(h.conns))
	for fc := range h.conns {
		conns = append(conns, fc)
	}
	h.mu.Unlock()

	for _, fc := range conns {
		fc.mu.Lock()
		_ = fc.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		err := fc.conn.WriteMessage(websocket.TextMessage, payload)
		fc.mu.Unlock()
		if err != nil {
			h.remove(fc)
		}
	}
}

func (h *feedHub) remove(fc *feedConn) {
	h.mu.Lock()
	_, ok := h.conns[fc]
	delete(h.conns, fc)
	h.mu.Unlock()
	if ok {
		_ = fc.conn.Close()
	}
}

func (h *feedHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *feedHub) close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*feedConn]struct{})
	h.mu.Unlock()

	for fc := range conns {
		fc.mu.Lock()
		_ = fc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(feedWriteTimeout))
		fc.mu.Unlock()
		_ = fc.conn.Close()
	}
}
