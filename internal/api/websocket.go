package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openfsr/fsrd/internal/events"
	"github.com/openfsr/fsrd/internal/models"
)

const (
	// writeWait bounds a single frame write to a stuck peer.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound command frames. Commands are tiny; a
	// larger frame is a misbehaving client.
	maxMessageSize = 4096
)

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	ctrl CommandProcessor
	bus  *events.Bus
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// Origin checking is handled by the CORS middleware.
		return true
	},
}

// handleWS upgrades the connection and runs one client session: an initial
// state snapshot, a relay loop forwarding every broadcast message, and a
// command loop feeding inbound frames through the command processor.
// Command replies go through the broadcaster, so every session observes
// every command's effect, not just the session that issued it.
func (h *Handlers) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	id := uuid.New().String()
	sub := h.bus.Subscribe(id)
	defer h.bus.Unsubscribe(id)

	slog.Info("client connected", "session", id, "remote", r.RemoteAddr)
	defer slog.Info("client disconnected", "session", id)

	initial := models.CommandOK("Connected to profile manager", h.ctrl.State())
	if err := writeResponse(conn, initial); err != nil {
		return
	}

	// Either loop ending tears down the other: cancel unblocks the relay's
	// Next, closing the conn unblocks the command loop's ReadMessage.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		defer conn.Close()
		h.relayLoop(ctx, conn, sub, id)
	}()

	h.commandLoop(ctx, conn, id)
}

// relayLoop forwards broadcast messages to the client until the session
// ends. The connection is this goroutine's only writer after the initial
// snapshot, so no write lock is needed.
func (h *Handlers) relayLoop(ctx context.Context, conn *websocket.Conn, sub *events.Subscription, id string) {
	for {
		resp, dropped, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if dropped > 0 {
			slog.Warn("slow client skipped messages", "session", id, "dropped", dropped)
		}
		if err := writeResponse(conn, resp); err != nil {
			return
		}
	}
}

// commandLoop decodes each inbound text frame as one command, applies it,
// and publishes the reply. Frames that do not decode are dropped; the wire
// format is fixed and an unknown frame has no reply address anyway.
func (h *Handlers) commandLoop(ctx context.Context, conn *websocket.Conn, id string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "session", id, "err", err)
			}
			return
		}
		var cmd models.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Debug("ignoring undecodable frame", "session", id, "err", err)
			continue
		}
		h.bus.Publish(h.ctrl.Apply(ctx, cmd))
	}
}

func writeResponse(conn *websocket.Conn, resp models.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
