package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Publisher publishes a call-room event to Redis for cross-instance fanout.
type Publisher interface {
	PublishCallEvent(sessionKey, event string, payload []byte) error
}

// Subscriber subscribes to a call's Redis channel and invokes handler for
// incoming events.
type Subscriber interface {
	SubscribeCall(sessionKey string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub tracks connected clients and per-call rooms. Rooms are keyed by the
// session's room key, never by the human call code. With Redis configured,
// room events are published and re-broadcast by the subscriber so every
// instance (including this one) delivers exactly once; direct client sends
// stay local. Hub implements calls.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // clientID -> connection
	calls   map[string]map[string]*Client // sessionKey -> clientID -> connection
	subs    map[string]func()             // cancel Redis subscription per call
	logger  *zap.Logger
	pub     Publisher
	sub     Subscriber
}

// NewHub creates a hub. pub and sub may be nil for single-instance mode.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		calls:   make(map[string]map[string]*Client),
		subs:    make(map[string]func()),
		logger:  logger,
		pub:     pub,
		sub:     sub,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	for key, room := range h.calls {
		delete(room, c.ID)
		h.dropRoomIfEmptyLocked(key)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// JoinCall puts the client into the call's room. The first local occupant
// starts the Redis subscription for the call.
func (h *Hub) JoinCall(sessionKey, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	if h.calls[sessionKey] == nil {
		h.calls[sessionKey] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeCall(sessionKey, func(event string, payload []byte) {
				h.broadcastLocal(sessionKey, event, payload)
			})
			if err != nil {
				h.logger.Warn("call channel subscribe failed", zap.String("session_key", sessionKey), zap.Error(err))
			} else {
				h.subs[sessionKey] = cancel
			}
		}
	}
	h.calls[sessionKey][clientID] = c
}

// LeaveCall removes the client from the call's room; the last local
// occupant tears the Redis subscription down.
func (h *Hub) LeaveCall(sessionKey, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.calls[sessionKey]; ok {
		delete(room, clientID)
		h.dropRoomIfEmptyLocked(sessionKey)
	}
}

// dropRoomIfEmptyLocked requires h.mu held.
func (h *Hub) dropRoomIfEmptyLocked(sessionKey string) {
	if room, ok := h.calls[sessionKey]; ok && len(room) == 0 {
		delete(h.calls, sessionKey)
		if cancel, ok := h.subs[sessionKey]; ok {
			cancel()
			delete(h.subs, sessionKey)
		}
	}
}

// SendToClient delivers one event to one locally connected endpoint.
// Signaling stays local: both members of a call talk to the instance that
// admitted them.
func (h *Hub) SendToClient(clientID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.enqueue(WSMessage{Event: event, Data: data})
}

// SendToCall delivers one event to every endpoint in the call's room. With
// Redis configured the event is published only; the subscription callback
// performs the single local broadcast on every instance, so nothing is
// delivered twice.
func (h *Hub) SendToCall(sessionKey, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishCallEvent(sessionKey, event, data); err == nil {
			return
		}
		// Publish failed; deliver locally so the call is not mute.
	}
	h.broadcastLocal(sessionKey, event, data)
}

func (h *Hub) broadcastLocal(sessionKey, event string, data []byte) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	room := h.calls[sessionKey]
	targets := make([]*Client, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.enqueue(msg)
	}
}

// ClientCount reports how many endpoints are connected to this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
