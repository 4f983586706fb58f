package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"transitcat/internal/hub"
	"transitcat/internal/query"
	"transitcat/internal/transit"
)

const (
	wsSendBuffer   = 64
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WSHandler answers stat requests over a WebSocket, one response per query
// message, in arrival order.
type WSHandler struct {
	hub       *hub.Hub
	network   *transit.Network
	processor *query.Processor
	logger    *slog.Logger
}

func NewWSHandler(h *hub.Hub, n *transit.Network, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:       h,
		network:   n,
		processor: query.NewProcessor(n),
		logger:    logger.With("handler", "ws"),
	}
}

// WSMessage is the envelope of every client message.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ResponseMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type WelcomeMessage struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Fingerprint string `json:"fingerprint"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// the server's read/write timeouts would otherwise cut long sessions
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.NewString(), wsSendBuffer)
	h.hub.Register(client)
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.send(client, WelcomeMessage{
		Type:        "welcome",
		SessionID:   client.ID,
		Fingerprint: h.network.Fingerprint(),
	})
	h.readLoop(ctx, conn, client)
}

// reply builds the answer to one client message. ok is false for messages
// that get no answer.
func (h *WSHandler) reply(data []byte) (msg any, ok bool) {
	var in WSMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, false
	}

	switch in.Type {
	case "query":
		var req query.Request
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			return nil, false
		}
		ServerStats.AddQueries(1)
		return ResponseMessage{Type: "response", Payload: h.processor.Handle(req)}, true
	case "ping":
		return PongMessage{Type: "pong"}, true
	default:
		return nil, false
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		if msg, ok := h.reply(data); ok {
			h.send(client, msg)
		} else {
			h.logger.Debug("ignored message", "client_id", client.ID, "size_bytes", len(data))
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, msg); err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

func (h *WSHandler) send(client *hub.Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !client.Deliver(data) {
		h.logger.Debug("failed to send message, buffer full", "client_id", client.ID)
	}
}
