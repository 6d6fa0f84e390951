package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/debtview/internal/metrics"
	"github.com/wonny/debtview/internal/snapshot"
	"github.com/wonny/debtview/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes every new snapshot to websocket clients
type StreamHandler struct {
	reader  snapshot.Reader
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewStreamHandler creates a new stream handler. reg may be nil.
func NewStreamHandler(reader snapshot.Reader, reg *metrics.Registry, log *logger.Logger) *StreamHandler {
	return &StreamHandler{reader: reader, metrics: reg, logger: log}
}

// message is the envelope written to clients.
type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ServeWS upgrades the connection and streams snapshots. The current
// snapshot, if any, is sent first.
// GET /ws
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	updates, unsubscribe := h.reader.Subscribe()
	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}

	closed := make(chan struct{})
	go h.readPump(conn, closed)
	h.writePump(conn, updates, closed)

	unsubscribe()
	if h.metrics != nil {
		h.metrics.WSClients.Dec()
	}
}

// readPump discards client messages and reports when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, updates <-chan *snapshot.Snapshot, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if snap, err := h.reader.Latest(); err == nil {
		if err := h.send(conn, snap); err != nil {
			return
		}
	} else {
		if err := h.write(conn, message{Type: "status", Data: map[string]string{"status": "not_ready"}}); err != nil {
			return
		}
	}

	for {
		select {
		case snap := <-updates:
			if err := h.send(conn, snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, snap *snapshot.Snapshot) error {
	return h.write(conn, message{Type: "snapshot", Data: snapshot.NewView(snap, snap.Quotes)})
}

func (h *StreamHandler) write(conn *websocket.Conn, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket marshal failed")
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
