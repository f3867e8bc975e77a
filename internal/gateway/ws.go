package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pitabwire/util"
	"github.com/rs/xid"

	"github.com/lingocast/lingocast/internal/pipeline"
	"github.com/lingocast/lingocast/pkg/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler streams pipeline events to WebSocket clients. Each client is
// one broadcaster subscription; a lagging client sheds its own events
// without affecting anyone else.
type WSHandler struct {
	broadcaster *events.Broadcaster
	ctrl        *pipeline.Controller
	upgrader    websocket.Upgrader
}

// NewWSHandler creates the event stream handler.
func NewWSHandler(b *events.Broadcaster, ctrl *pipeline.Controller) *WSHandler {
	return &WSHandler{
		broadcaster: b,
		ctrl:        ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Operator UIs connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := util.Log(ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		return
	}

	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub.ID())
	defer conn.Close()

	// New clients always know where the pipeline stands before any
	// incremental event arrives.
	if err := h.writeEnvelope(conn, statusEnvelope(h.ctrl.StatusData())); err != nil {
		return
	}

	// Reads only matter for liveness: the client sends nothing we act on.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			if err := h.writeEnvelope(conn, env); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *WSHandler) writeEnvelope(conn *websocket.Conn, env events.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func statusEnvelope(data events.StatusData) events.Envelope {
	raw, _ := json.Marshal(data)
	return events.Envelope{
		ID:        xid.New().String(),
		Type:      events.Status,
		Source:    "gateway",
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
}
