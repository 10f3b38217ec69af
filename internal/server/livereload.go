package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/markup/internal/logging"
	"github.com/conneroisu/markup/internal/middleware"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/renderer"
)

// LivePath is the websocket endpoint pages connect to for reload messages.
const LivePath = "/_markup/live"

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Messages queued per client before it is dropped.
	sendBuffer = 8
)

// UpdateMessage is sent to browsers. Type is "reload" for changed files
// and "components" for registry changes.
type UpdateMessage struct {
	Type       string    `json:"type"`
	Files      []string  `json:"files,omitempty"`
	Components []string  `json:"components,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// LiveReload tracks connected browsers and tells them to reload.
type LiveReload struct {
	logger  logging.Logger
	mutex   sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewLiveReload creates an empty hub.
func NewLiveReload(logger logging.Logger) *LiveReload {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LiveReload{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the client
// leaves or the hub closes. Cross-origin upgrades are rejected.
func (h *LiveReload) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	// The browser never sends data; CloseRead handles control frames and
	// cancels ctx when the connection goes away.
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, conn, message); err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, message []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, message)
}

func (h *LiveReload) add(c *client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug(context.Background(), "Live reload client connected", "clients", len(h.clients))
	return true
}

func (h *LiveReload) remove(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Clients returns the number of connected browsers.
func (h *LiveReload) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. Clients that are not keeping up are
// disconnected; they reconnect and reload on their own.
func (h *LiveReload) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *LiveReload) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

const liveReloadScript = `(() => {
  const url = new URL("` + LivePath + `", location.href);
  url.protocol = url.protocol === "https:" ? "wss:" : "ws:";
  let connected = false;
  const connect = () => {
    const ws = new WebSocket(url);
    ws.onopen = () => {
      if (connected) location.reload();
      connected = true;
    };
    ws.onmessage = (event) => {
      const { type } = JSON.parse(event.data);
      if (type === "reload" || type === "components") location.reload();
    };
    ws.onclose = () => setTimeout(connect, 1000);
  };
  connect();
})();`

// injectLiveReload adds the reload script, carrying the request's CSP nonce,
// before the closing body tag, or at the end when there is none.
func injectLiveReload(ctx context.Context, r *renderer.Renderer, page string) (string, error) {
	attrs := map[string]any{}
	if nonce := middleware.GetNonce(ctx); nonce != "" {
		attrs["nonce"] = nonce
	}
	script, err := r.Render(ctx, node.H("script", attrs, node.Unescaped(liveReloadScript)))
	if err != nil {
		return "", err
	}

	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		return page[:i] + script + page[i:], nil
	}
	return page + script, nil
}
