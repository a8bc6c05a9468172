package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/sessions"
	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 256
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10

	errorCodeMalformed   = "protocol.malformed_payload"
	errorCodeUnknownType = "protocol.unknown_type"
)

func newUpgrader(origins []string) ws.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[strings.ToLower(origin)] = struct{}{}
	}
	return ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(parsed.Scheme+"://"+parsed.Host)]
			return ok
		},
	}
}

// websocketClient adapts one connection to hub.Client with a single write goroutine.
// Sends never block the hub: a full buffer drops the message.
type websocketClient struct {
	conn      *ws.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

var _ hub.Client = (*websocketClient)(nil)

func newWebsocketClient(conn *ws.Conn, logger *zap.Logger) *websocketClient {
	return &websocketClient{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *websocketClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *websocketClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send buffer until the client is closed or a write fails.
func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(
				ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket write deadline failed", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump decodes frames in arrival order and hands them to the coordinator.
// Overlays never get error replies; their undecodable frames are dropped.
func (h *httpHandler) readPump(ctx context.Context, client *websocketClient, sessionID string, role sessions.Role) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
				h.logger.Debug("websocket closed unexpectedly", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		message, err := protocol.Decode(data)
		if err != nil {
			if role == sessions.RoleOverlay {
				h.logger.Debug("overlay frame dropped", zap.String("session_id", sessionID), zap.Error(err))
				continue
			}
			h.rejectFrame(client, sessionID, err)
			continue
		}
		if err := h.coordinator.HandleMessage(ctx, sessionID, message); err != nil {
			h.logger.Warn("hub rejected message", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

func (h *httpHandler) rejectFrame(client *websocketClient, sessionID string, err error) {
	code := errorCodeMalformed
	if errors.Is(err, protocol.ErrUnknownType) {
		code = errorCodeUnknownType
	}
	h.logger.Debug("client frame rejected", zap.String("session_id", sessionID), zap.Error(err))
	payload, encodeErr := protocol.Encode(protocol.TypeError, protocol.Error{Code: code, Message: err.Error()})
	if encodeErr != nil {
		return
	}
	client.Send(payload)
}

func (h *httpHandler) handleWebsocket(c *gin.Context) {
	role := sessions.ParseRole(c.Query("role"))
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newWebsocketClient(conn, h.logger)
	go client.writePump()

	ctx := context.WithoutCancel(c.Request.Context())
	session, err := h.coordinator.Connect(ctx, client, c.Request.RemoteAddr, role)
	if err != nil {
		h.logger.Error("session connect failed", zap.Error(err))
		client.Close()
		return
	}

	h.readPump(ctx, client, session.ID, session.Role)
	client.Close()
	if err := h.coordinator.Disconnect(ctx, session.ID); err != nil && !errors.Is(err, hub.ErrStopped) {
		h.logger.Warn("session disconnect failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}
