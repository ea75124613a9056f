package relay

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"pagebot/internal/bus"
	"pagebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockResolver implements ProfileResolver with a fixed profile set.
type mockResolver struct {
	profiles map[string]*domain.PageProfile
	mu       sync.Mutex
	calls    int
}

func (m *mockResolver) Resolve(ctx context.Context, pageID string) (*domain.PageProfile, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if p, ok := m.profiles[pageID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

// mockEngine implements ReplyGenerator.
type mockEngine struct {
	reply string
	err   error
	mu    sync.Mutex
	calls int
}

func (m *mockEngine) GenerateReply(ctx context.Context, profile *domain.PageProfile, userMessage string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockEngine) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fixture struct {
	bus     *bus.InMemoryBus
	events  *bus.EventBus
	loop    *Loop
	replies chan domain.OutboundReply
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, resolver ProfileResolver, engine ReplyGenerator) *fixture {
	t.Helper()
	logger := testLogger()
	mb := bus.New(16, logger)
	eb := bus.NewEventBus(logger)

	replies := make(chan domain.OutboundReply, 16)
	mb.OnOutbound("messenger", func(r domain.OutboundReply) {
		replies <- r
	})

	loop := NewLoop(LoopConfig{
		Bus:           mb,
		Events:        eb,
		Resolver:      resolver,
		Engine:        engine,
		Logger:        logger,
		Concurrency:   2,
		FallbackReply: "Sorry, something went wrong.",
	})

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		mb.Close()
	})

	return &fixture{bus: mb, events: eb, loop: loop, replies: replies, cancel: cancel}
}

func event(pageID, sender, text string) domain.InboundEvent {
	return domain.InboundEvent{
		Channel:   "messenger",
		PageID:    pageID,
		SenderID:  sender,
		Text:      text,
		RequestID: "req-1",
		Timestamp: time.Now(),
	}
}

func waitReply(t *testing.T, replies chan domain.OutboundReply) domain.OutboundReply {
	t.Helper()
	select {
	case r := <-replies:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound reply")
		return domain.OutboundReply{}
	}
}

func TestLoop_ConfiguredPageGetsReply(t *testing.T) {
	resolver := &mockResolver{profiles: map[string]*domain.PageProfile{
		"P1": {
			PageID:      "P1",
			AccessToken: "tok1",
			Mode:        domain.ModeAssistant,
			AssistantID: "asst1",
			Enabled:     true,
		},
	}}
	engine := &mockEngine{reply: "hi there"}
	f := newFixture(t, resolver, engine)

	f.bus.Publish(event("P1", "U1", "hello"))

	r := waitReply(t, f.replies)
	if r.PageID != "P1" || r.RecipientID != "U1" {
		t.Errorf("reply misrouted: %+v", r)
	}
	if r.Text != "hi there" {
		t.Errorf("expected 'hi there', got %q", r.Text)
	}
}

func TestLoop_UnconfiguredPageSkipped(t *testing.T) {
	resolver := &mockResolver{profiles: map[string]*domain.PageProfile{}}
	engine := &mockEngine{reply: "should not happen"}
	f := newFixture(t, resolver, engine)

	var skipped sync.WaitGroup
	skipped.Add(1)
	f.events.On(bus.EventSkipped, func(e bus.Event) {
		if e.Payload["page_id"] == "P9" {
			skipped.Done()
		}
	})

	f.bus.Publish(event("P9", "U1", "hello"))

	done := make(chan struct{})
	go func() { skipped.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for skip event")
	}

	if engine.callCount() != 0 {
		t.Errorf("engine must not run for unknown pages, got %d calls", engine.callCount())
	}
	select {
	case r := <-f.replies:
		t.Errorf("no reply expected for unknown page, got %+v", r)
	default:
	}
}

func TestLoop_EngineErrorAnswersFallback(t *testing.T) {
	resolver := &mockResolver{profiles: map[string]*domain.PageProfile{
		"P1": {
			PageID:       "P1",
			AccessToken:  "tok1",
			Mode:         domain.ModeDirect,
			Instructions: "Be nice.",
			Enabled:      true,
		},
	}}
	engine := &mockEngine{err: domain.ErrPollTimeout}
	f := newFixture(t, resolver, engine)

	failed := make(chan bus.Event, 1)
	f.events.On(bus.EventReplyFailed, func(e bus.Event) { failed <- e })

	f.bus.Publish(event("P1", "U1", "hello"))

	r := waitReply(t, f.replies)
	if r.Text != "Sorry, something went wrong." {
		t.Errorf("expected fallback reply, got %q", r.Text)
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected reply.failed event")
	}
}

func TestLoop_ConcurrentEvents(t *testing.T) {
	resolver := &mockResolver{profiles: map[string]*domain.PageProfile{
		"P1": {
			PageID:       "P1",
			AccessToken:  "tok1",
			Mode:         domain.ModeDirect,
			Instructions: "Be nice.",
			Enabled:      true,
		},
	}}
	engine := &mockEngine{reply: "ok"}
	f := newFixture(t, resolver, engine)

	const n = 10
	for i := 0; i < n; i++ {
		f.bus.Publish(event("P1", "U1", "hello"))
	}
	for i := 0; i < n; i++ {
		waitReply(t, f.replies)
	}
	if engine.callCount() != n {
		t.Errorf("expected %d engine calls, got %d", n, engine.callCount())
	}
}
