package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

// Message is a live feed notification pushed to event page viewers.
type Message struct {
	Type      string             `json:"type"`
	EventID   int64              `json:"event_id"`
	Item      *model.ContentItem `json:"item,omitempty"`
	Kind      model.ContentKind  `json:"kind,omitempty"`
	Remaining int                `json:"remaining,omitempty"`
}

// Hub tracks connected viewers per event and fans out feed messages.
// Slow clients get dropped messages, never a blocked broadcast.
type Hub struct {
	mu      sync.RWMutex
	viewers map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		viewers: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to its event's viewer set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.viewers[c.eventID]
	if !ok {
		set = make(map[*Client]struct{})
		h.viewers[c.eventID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.viewers[c.eventID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.viewers, c.eventID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every viewer of its event.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.viewers[msg.EventID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ContentCreated pushes a new creation and the updated quota balance to
// the item's event feed. Satisfies the pipeline's notifier.
func (h *Hub) ContentCreated(item *model.ContentItem, remaining int) {
	feedItem := *item
	feedItem.ClaimToken = nil // claim tokens are private to the creator
	h.Broadcast(Message{
		Type:      "content_created",
		EventID:   item.EventID,
		Item:      &feedItem,
		Kind:      item.Kind,
		Remaining: remaining,
	})
}

// QuotaUpdated pushes a balance change without a new item, e.g. after a
// limit edit.
func (h *Hub) QuotaUpdated(eventID int64, kind model.ContentKind, remaining int) {
	h.Broadcast(Message{
		Type:      "quota_updated",
		EventID:   eventID,
		Kind:      kind,
		Remaining: remaining,
	})
}

// ViewerCount returns the number of connected viewers for an event.
func (h *Hub) ViewerCount(eventID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers[eventID])
}
