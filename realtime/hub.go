package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TopicPublic   = "public"
	TopicInternal = "internal"

	EventMessage = "chat-fm:message"
)

// UserTopic is the per-user push topic.
func UserTopic(userID string) string {
	return "users:" + userID
}

// Event is the wire frame pushed to subscribed sockets.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// writeWait bounds how long a single push write may block, so one
// stalled socket cannot hold up delivery to the rest of a topic.
const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// Hub tracks which connection subscribes to which topics and publishes
// events to them. Delivery is fire-and-forget: a failed write only drops
// that connection's frame.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[Conn]bool
	subs   map[Conn][]string
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[Conn]bool),
		subs:   make(map[Conn][]string),
		log:    log,
	}
}

func (h *Hub) Subscribe(conn Conn, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if _, ok := h.topics[topic]; !ok {
			h.topics[topic] = make(map[Conn]bool)
		}
		h.topics[topic][conn] = true
	}
	h.subs[conn] = append(h.subs[conn], topics...)
}

func (h *Hub) Unsubscribe(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range h.subs[conn] {
		delete(h.topics[topic], conn)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.subs, conn)
}

// Publish sends the event to every connection subscribed to the topic.
func (h *Hub) Publish(topic string, event Event) {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", "topic", topic, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.topics[topic] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			h.log.Warn("push write failed", "topic", topic, "err", err)
		}
	}
}

// Subscribers reports how many connections listen on the topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
