package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	writeWait     = 10 * time.Second
	maxMessageLen = 65536
	sendBuffer    = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CallService is the inbound edge of the signaling state machine, as the
// transport sees it.
type CallService interface {
	Create(clientID string)
	Join(clientID, code string)
	Accept(clientID, code, participantID string)
	Reject(clientID, code, participantID string)
	RelayOffer(clientID, code string, payload json.RawMessage)
	RelayAnswer(clientID, code string, payload json.RawMessage)
	RelayICECandidate(clientID, code string, payload json.RawMessage)
	Leave(clientID, code string)
	Heartbeat(clientID, code string)
	Disconnect(clientID string)
}

// Client is a single WebSocket connection. Its identifier is the endpoint
// identifier everywhere else in the system.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// enqueue hands a message to the write pump, dropping it if the buffer is
// full. Delivery is fire-and-forget.
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loops. On
// connect the client receives the configured ICE servers so it can build
// its peer connection.
func ServeWs(hub *Hub, svc CallService, logger *zap.Logger, iceServers []webrtc.ICEServer) gin.HandlerFunc {
	return func(g *gin.Context) {
		conn, err := upgrader.Upgrade(g.Writer, g.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &Client{
			ID:     uuid.New().String(),
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, sendBuffer),
			logger: logger,
		}
		hub.register(c)
		go c.writePump()

		if len(iceServers) > 0 {
			hub.SendToClient(c.ID, "ice-servers", gin.H{"ice_servers": iceServers})
		}

		c.readPump(svc)
	}
}

func (c *Client) readPump(svc CallService) {
	defer func() {
		svc.Disconnect(c.ID)
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageLen)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.dispatch(svc, msg)
	}
}

func (c *Client) dispatch(svc CallService, msg WSMessage) {
	switch msg.Event {
	case "create-call":
		svc.Create(c.ID)
	case "join-call":
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Code != "" {
			svc.Join(c.ID, normalizeCode(payload.Code))
		}
	case "accept-participant":
		var payload struct {
			Code          string `json:"code"`
			ParticipantID string `json:"participant_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Code != "" {
			svc.Accept(c.ID, normalizeCode(payload.Code), payload.ParticipantID)
		}
	case "reject-participant":
		var payload struct {
			Code          string `json:"code"`
			ParticipantID string `json:"participant_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Code != "" {
			svc.Reject(c.ID, normalizeCode(payload.Code), payload.ParticipantID)
		}
	case "send-offer", "send-answer", "send-ice-candidate":
		var payload struct {
			Code    string          `json:"code"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Code == "" {
			return
		}
		code := normalizeCode(payload.Code)
		switch msg.Event {
		case "send-offer":
			svc.RelayOffer(c.ID, code, payload.Payload)
		case "send-answer":
			svc.RelayAnswer(c.ID, code, payload.Payload)
		default:
			svc.RelayICECandidate(c.ID, code, payload.Payload)
		}
	case "leave-call":
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Code != "" {
			svc.Leave(c.ID, normalizeCode(payload.Code))
		}
	case "heartbeat":
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Code != "" {
			svc.Heartbeat(c.ID, normalizeCode(payload.Code))
		}
	default:
		// ignore
	}
}

// normalizeCode makes user-entered codes match the generated form.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
