package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"pagebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.InboundEvent{PageID: "p1", SenderID: "u1", Text: "hello"})

	select {
	case evt := <-b.Subscribe():
		if evt.Text != "hello" {
			t.Errorf("expected 'hello', got %q", evt.Text)
		}
		if evt.PageID != "p1" {
			t.Errorf("expected page p1, got %q", evt.PageID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound event")
	}
}

func TestInMemoryBus_OutboundRouting(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan domain.OutboundReply, 1)
	b.OnOutbound("messenger", func(r domain.OutboundReply) {
		got <- r
	})

	b.SendOutbound(domain.OutboundReply{Channel: "messenger", RecipientID: "u1", Text: "hi"})

	select {
	case r := <-got:
		if r.Text != "hi" || r.RecipientID != "u1" {
			t.Errorf("unexpected reply: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler was not invoked")
	}
}

func TestInMemoryBus_OutboundNoHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// Must not panic when no handler is registered.
	b.SendOutbound(domain.OutboundReply{Channel: "unknown", Text: "lost"})
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic on a closed bus.
	b.Publish(domain.InboundEvent{PageID: "p1", Text: "late"})
}

func TestInMemoryBus_CloseIdempotent(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}
