package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

func tailEvent(service, level, message string) *models.Event {
	ts := time.Now().UTC()
	return &models.Event{
		Timestamp: &ts,
		Service:   service,
		Level:     models.NormalizeLevel(level),
		Message:   message,
	}
}

func TestClientWants_Filters(t *testing.T) {
	all := &Client{}
	if !all.wants(tailEvent("payments", "debug", "x")) {
		t.Fatalf("unfiltered client must match everything")
	}

	byService := &Client{service: "payments"}
	if !byService.wants(tailEvent("payments", "error", "x")) {
		t.Fatalf("expected service match")
	}
	if byService.wants(tailEvent("checkout", "error", "x")) {
		t.Fatalf("unexpected service match")
	}

	byLevel := &Client{minLevel: models.LevelError}
	if !byLevel.wants(tailEvent("payments", "fatal", "x")) {
		t.Fatalf("FATAL outranks ERROR and must match")
	}
	if byLevel.wants(tailEvent("payments", "info", "x")) {
		t.Fatalf("INFO ranks below ERROR and must not match")
	}
}

func TestHub_RegisterDispatchUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(config.WebSocketConfig{}, logger.Nop())
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 4), userID: "t"}
	h.register <- client

	deadline := time.After(2 * time.Second)
	for h.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("client never registered")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	h.BroadcastEvent(tailEvent("payments", "error", "connection refused"))

	select {
	case frame := <-client.send:
		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if msg.Type != "event" {
			t.Fatalf("expected event frame, got %q", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame dispatched")
	}

	h.unregister <- client
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatalf("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send channel never closed")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected empty hub, got %d", h.ClientCount())
	}
}

func TestHub_SlowClientDropsFrames(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, logger.Nop())
	client := &Client{hub: h, send: make(chan []byte, 1), userID: "slow"}
	h.clients[client] = true

	h.dispatch(tailEvent("payments", "error", "first fills the buffer"))
	h.dispatch(tailEvent("payments", "error", "second is dropped"))

	if got := client.dropped; got != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", got)
	}
	if len(client.send) != 1 {
		t.Fatalf("expected buffered frame to survive")
	}
}
