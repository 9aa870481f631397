package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, eventID int64) *Client {
	return &Client{
		hub:     hub,
		conn:    nil,
		eventID: eventID,
		send:    make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ViewerCount(1); got != 2 {
		t.Fatalf("expected 2 viewers, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ViewerCount(1); got != 1 {
		t.Fatalf("expected 1 viewer after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ViewerCount(1); got != 0 {
		t.Fatalf("expected 0 viewers, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ViewerCount(1); got != 0 {
		t.Fatalf("expected 0 viewers, got %d", got)
	}
}

func TestBroadcastScopedToEvent(t *testing.T) {
	hub := NewHub(slog.Default())

	viewer := mockClient(hub, 7)
	other := mockClient(hub, 8)
	hub.Register(viewer)
	hub.Register(other)

	item := &model.ContentItem{ID: 42, EventID: 7, Kind: model.KindImage, Name: "Ana"}
	hub.ContentCreated(item, 3)

	select {
	case data := <-viewer.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "content_created" {
			t.Errorf("expected type content_created, got %s", got.Type)
		}
		if got.EventID != 7 {
			t.Errorf("expected event 7, got %d", got.EventID)
		}
		if got.Item == nil || got.Item.ID != 42 {
			t.Errorf("expected item 42, got %+v", got.Item)
		}
		if got.Remaining != 3 {
			t.Errorf("expected remaining 3, got %d", got.Remaining)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case data := <-other.send:
		t.Fatalf("other event's viewer received %s", data)
	default:
	}

	hub.Unregister(viewer)
	hub.Unregister(other)
}

func TestContentCreatedStripsClaimToken(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)

	token := "secret-token"
	hub.ContentCreated(&model.ContentItem{ID: 1, EventID: 1, ClaimToken: &token}, 0)

	data := <-c.send
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Item.ClaimToken != nil {
		t.Errorf("claim token leaked into feed: %q", *got.Item.ClaimToken)
	}

	hub.Unregister(c)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.QuotaUpdated(99, model.KindVideo, 5)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.QuotaUpdated(1, model.KindImage, i)
	}

	// This should drop the message, not panic or block
	hub.QuotaUpdated(1, model.KindImage, 999)

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(eventID int64) {
			defer wg.Done()
			c := mockClient(hub, eventID)
			hub.Register(c)
			hub.QuotaUpdated(eventID, model.KindImage, 1)
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 3))
	}

	wg.Wait()

	for eventID := int64(0); eventID < 3; eventID++ {
		if got := hub.ViewerCount(eventID); got != 0 {
			t.Errorf("expected 0 viewers for event %d, got %d", eventID, got)
		}
	}
}
