package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pagebot/internal/bus"
	"pagebot/internal/domain"
	"pagebot/internal/metrics"
)

// MessengerGateway is the webhook-facing side of the Messenger channel. It
// owns the HTTP server, answers the platform's verification handshake, and
// turns webhook batches into inbound events on the bus.
type MessengerGateway struct {
	addr        string
	path        string
	verifyToken string
	logger      *slog.Logger
	events      *bus.EventBus
	metricsPath string
	metricsFn   http.HandlerFunc // nil when the metrics endpoint is disabled

	bus    domain.MessageBus
	server *http.Server
}

type GatewayConfig struct {
	ListenAddr  string
	WebhookPath string
	VerifyToken string
	Logger      *slog.Logger
	Events      *bus.EventBus
	MetricsPath string
	Metrics     http.HandlerFunc
}

func NewMessengerGateway(cfg GatewayConfig) *MessengerGateway {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &MessengerGateway{
		addr:        cfg.ListenAddr,
		path:        cfg.WebhookPath,
		verifyToken: cfg.VerifyToken,
		logger:      cfg.Logger,
		events:      cfg.Events,
		metricsPath: cfg.MetricsPath,
		metricsFn:   cfg.Metrics,
	}
}

func (g *MessengerGateway) Name() string { return "messenger" }

// Start begins the webhook HTTP server and blocks until ctx is cancelled
// or the server fails.
func (g *MessengerGateway) Start(ctx context.Context, msgBus domain.MessageBus) error {
	g.bus = msgBus

	g.server = &http.Server{
		Addr:              g.addr,
		Handler:           g.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.logger.Info("webhook server starting", "addr", g.addr, "path", g.path)

	errCh := make(chan error, 1)
	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return g.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// Router builds the gateway's route table. Exposed so tests can exercise
// the handlers without a listening server.
func (g *MessengerGateway) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(g.path, g.handleVerify).Methods(http.MethodGet)
	r.HandleFunc(g.path, g.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/healthz", g.handleHealth).Methods(http.MethodGet)
	if g.metricsFn != nil {
		r.HandleFunc(g.metricsPath, g.metricsFn).Methods(http.MethodGet)
	}
	return r
}

// handleVerify answers the platform's subscription handshake: echo the
// challenge only when the mode is "subscribe" and the token matches.
func (g *MessengerGateway) handleVerify(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != g.verifyToken {
		g.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(rw, "Forbidden", http.StatusForbidden)
		return
	}

	g.logger.Info("webhook verified")
	g.events.Emit(bus.Event{Type: bus.EventWebhookVerified, Source: "messenger"})
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, challenge)
}

// handleWebhook ingests a webhook batch. The platform is always answered
// 200 so it does not disable the subscription; whatever happens downstream
// never changes the ack.
func (g *MessengerGateway) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err == nil {
		var payload WebhookPayload
		if jsonErr := json.Unmarshal(body, &payload); jsonErr != nil {
			g.logger.Warn("unparseable webhook body", "error", jsonErr)
		} else {
			g.ingest(payload)
		}
	}

	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, "EVENT_RECEIVED")
}

func (g *MessengerGateway) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	fmt.Fprint(rw, `{"status":"ok"}`)
}

// ingest publishes one inbound event per usable messaging entry. Echoes,
// non-text events, and entries with missing IDs are dropped.
func (g *MessengerGateway) ingest(payload WebhookPayload) {
	if payload.Object != "page" {
		g.logger.Debug("ignoring webhook object", "object", payload.Object)
		return
	}

	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.IsEcho || m.Message.Text == "" {
				g.logger.Debug("dropping non-text or echo event",
					"page_id", entry.ID, "sender_id", m.Sender.ID)
				continue
			}
			if entry.ID == "" || m.Sender.ID == "" {
				g.logger.Warn("dropping messaging event with missing IDs")
				continue
			}

			evt := domain.InboundEvent{
				Channel:   g.Name(),
				PageID:    entry.ID,
				SenderID:  m.Sender.ID,
				Text:      m.Message.Text,
				RequestID: uuid.NewString(),
				Timestamp: time.UnixMilli(m.Timestamp),
			}
			g.logger.Info("inbound message",
				"request_id", evt.RequestID, "page_id", evt.PageID,
				"sender_id", evt.SenderID, "text_len", len(evt.Text))
			metrics.EventsReceived.Inc()
			g.events.Emit(bus.Event{
				Type:    bus.EventReceived,
				Source:  "messenger",
				Payload: map[string]any{"page_id": evt.PageID, "request_id": evt.RequestID},
			})
			g.bus.Publish(evt)
		}
	}
}
