package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicetriage/internal/ports"
	"voicetriage/pkg/logger"
)

const (
	eventsPath = "/api/voicemails/events"

	// DefaultRedialDelay is the wait between change feed connection attempts.
	DefaultRedialDelay = 5 * time.Second
)

// ChangeNotice is one message on the change feed. It only hints that the
// collection moved; the list endpoint stays authoritative.
type ChangeNotice struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

// ChangeFeed is an open change feed connection.
type ChangeFeed struct {
	conn    *websocket.Conn
	notices chan ChangeNotice
	done    chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// SubscribeChanges dials the backend's change feed. The feed closes when ctx
// ends.
func (c *Client) SubscribeChanges(ctx context.Context) (*ChangeFeed, error) {
	wsURL, err := buildEventsURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to change feed: %w", err)
	}

	feed := &ChangeFeed{
		conn:    conn,
		notices: make(chan ChangeNotice, 64),
		done:    make(chan struct{}),
	}
	go feed.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = feed.Close()
		case <-feed.done:
		}
	}()
	return feed, nil
}

// Notices yields messages until the connection ends.
func (f *ChangeFeed) Notices() <-chan ChangeNotice {
	return f.notices
}

// Wait blocks until the connection ends and returns its error, if any.
func (f *ChangeFeed) Wait() error {
	<-f.done
	return f.waitErr()
}

func (f *ChangeFeed) Close() error {
	f.closeOnce.Do(func() {
		_ = f.conn.Close()
	})
	<-f.done
	return f.waitErr()
}

func (f *ChangeFeed) waitErr() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

func (f *ChangeFeed) setErr(err error) {
	if err == nil {
		return
	}
	if isCleanClose(err) {
		return
	}

	f.errMu.Lock()
	defer f.errMu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// isCleanClose reports a normal shutdown of the connection, wrapped or not.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return errors.Is(err, net.ErrClosed)
}

func (f *ChangeFeed) readLoop() {
	defer close(f.done)
	defer close(f.notices)

	for {
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			f.setErr(fmt.Errorf("failed to read change notice: %w", err))
			return
		}

		var notice ChangeNotice
		if err := json.Unmarshal(payload, &notice); err != nil {
			continue
		}
		select {
		case f.notices <- notice:
		default:
			// dropped while earlier notices are unread
		}
	}
}

// WatchChanges invalidates the collection on every change notice until ctx
// ends. Dropped connections are redialed after redial.
func (c *Client) WatchChanges(ctx context.Context, invalidator ports.Invalidator, redial time.Duration) {
	if redial <= 0 {
		redial = DefaultRedialDelay
	}
	log := c.logger.Named("changefeed")

	for {
		feed, err := c.SubscribeChanges(ctx)
		if err != nil {
			log.Debug("change feed unavailable", logger.Error(err))
		} else {
			log.Info("change feed connected")
			// catch up on anything missed while disconnected
			invalidator.Invalidate()
			for notice := range feed.Notices() {
				log.Debug("change notice",
					logger.String("type", notice.Type),
					logger.String("id", notice.ID),
				)
				invalidator.Invalidate()
			}
			if err := feed.Wait(); err != nil {
				log.Warn("change feed dropped", logger.Error(err))
			}
		}

		timer := time.NewTimer(redial)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func buildEventsURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	eventsURL, err := url.Parse(base + eventsPath)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	if eventsURL.Scheme != "ws" && eventsURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid API base URL scheme %q", eventsURL.Scheme)
	}
	return eventsURL.String(), nil
}
