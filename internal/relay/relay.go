package relay

import (
	"context"
	"errors"
	"log/slog"

	"pagebot/internal/bus"
	"pagebot/internal/domain"
	"pagebot/internal/metrics"
)

const defaultConcurrency = 5

// ProfileResolver looks up the enabled, valid profile for a page.
type ProfileResolver interface {
	Resolve(ctx context.Context, pageID string) (*domain.PageProfile, error)
}

// ReplyGenerator produces reply text for a message under a profile.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, profile *domain.PageProfile, userMessage string) (string, error)
}

// Loop is the relay core: consume inbound events → resolve the page profile
// → generate a reply → hand it back to the channel sink. Event processing
// never surfaces an error to the webhook; failures end in either a fallback
// reply or a logged skip.
type Loop struct {
	bus         domain.MessageBus
	events      *bus.EventBus
	resolver    ProfileResolver
	engine      ReplyGenerator
	logger      *slog.Logger
	concurrency int
	fallback    string
}

type LoopConfig struct {
	Bus           domain.MessageBus
	Events        *bus.EventBus
	Resolver      ProfileResolver
	Engine        ReplyGenerator
	Logger        *slog.Logger
	Concurrency   int // max parallel events (default 5)
	FallbackReply string
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Loop{
		bus:         cfg.Bus,
		events:      cfg.Events,
		resolver:    cfg.Resolver,
		engine:      cfg.Engine,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		fallback:    cfg.FallbackReply,
	}
}

// Run consumes inbound events and processes them with bounded concurrency.
// It returns when ctx is cancelled or the bus closes.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("relay loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("relay loop stopping")
			return
		case evt, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, relay loop stopping")
				return
			}
			sem <- struct{}{}
			go func(e domain.InboundEvent) {
				defer func() {
					<-sem
					if r := recover(); r != nil {
						l.logger.Error("panic while processing event",
							"request_id", e.RequestID, "panic", r)
					}
				}()
				l.processEvent(ctx, e)
			}(evt)
		}
	}
}

// processEvent handles one inbound event end to end. An unknown or disabled
// page is skipped silently; any later failure still answers the sender with
// the fallback text.
func (l *Loop) processEvent(ctx context.Context, evt domain.InboundEvent) {
	metrics.EventsInFlight.Inc()
	defer metrics.EventsInFlight.Dec()

	log := l.logger.With("request_id", evt.RequestID, "page_id", evt.PageID, "sender_id", evt.SenderID)

	profile, err := l.resolver.Resolve(ctx, evt.PageID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.Info("skipping event for unconfigured page")
			metrics.EventsSkipped.Inc()
			l.events.Emit(bus.Event{
				Type:    bus.EventSkipped,
				Source:  "relay",
				Payload: map[string]any{"page_id": evt.PageID, "request_id": evt.RequestID},
			})
			return
		}
		log.Error("profile lookup failed", "error", err)
		l.reply(evt, l.fallback)
		return
	}

	text, err := l.engine.GenerateReply(ctx, profile, evt.Text)
	if err != nil {
		log.Error("reply generation failed", "mode", string(profile.Mode), "error", err)
		metrics.RepliesFallback.Inc()
		l.events.Emit(bus.Event{
			Type:    bus.EventReplyFailed,
			Source:  "relay",
			Payload: map[string]any{"page_id": evt.PageID, "request_id": evt.RequestID, "error": err.Error()},
		})
		l.reply(evt, l.fallback)
		return
	}

	log.Info("reply generated", "mode", string(profile.Mode), "reply_len", len(text))
	metrics.RepliesGenerated.Inc()
	l.events.Emit(bus.Event{
		Type:    bus.EventReplyGenerated,
		Source:  "relay",
		Payload: map[string]any{"page_id": evt.PageID, "request_id": evt.RequestID},
	})
	l.reply(evt, text)
}

func (l *Loop) reply(evt domain.InboundEvent, text string) {
	l.bus.SendOutbound(domain.OutboundReply{
		Channel:     evt.Channel,
		PageID:      evt.PageID,
		RecipientID: evt.SenderID,
		Text:        text,
	})
}
