package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pagebot/internal/bus"
	"pagebot/internal/domain"
	"pagebot/internal/metrics"
	"pagebot/internal/provider"
)

// TokenSource resolves the profile holding the delivery credential for a
// page. The token travels with each send call, never as process state.
type TokenSource interface {
	Resolve(ctx context.Context, pageID string) (*domain.PageProfile, error)
}

// DeliveryError reports a failed send for one reply. Terminal for that
// event; the batch keeps going.
type DeliveryError struct {
	PageID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to page %s failed: %v", e.PageID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// MessengerSink delivers generated replies back through the Graph API.
// Delivery is best-effort: a failed send is logged and counted, never
// retried.
type MessengerSink struct {
	apiBase string
	tokens  TokenSource
	client  *http.Client
	logger  *slog.Logger
	events  *bus.EventBus
	timeout time.Duration
}

type SinkConfig struct {
	GraphAPIBase string
	Tokens       TokenSource
	Logger       *slog.Logger
	Events       *bus.EventBus
	SendTimeout  time.Duration
}

func NewMessengerSink(cfg SinkConfig) *MessengerSink {
	if cfg.GraphAPIBase == "" {
		cfg.GraphAPIBase = "https://graph.facebook.com/v19.0"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &MessengerSink{
		apiBase: cfg.GraphAPIBase,
		tokens:  cfg.Tokens,
		client:  provider.SharedHTTPClient(cfg.SendTimeout),
		logger:  cfg.Logger,
		events:  cfg.Events,
		timeout: cfg.SendTimeout,
	}
}

// Attach registers the sink as the outbound handler for the messenger
// channel.
func (s *MessengerSink) Attach(msgBus domain.MessageBus) {
	msgBus.OnOutbound("messenger", func(reply domain.OutboundReply) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Send(ctx, reply); err != nil {
			s.logger.Error("reply delivery failed",
				"page_id", reply.PageID, "recipient_id", reply.RecipientID, "error", err)
			metrics.DeliveryFailures.Inc()
			s.events.Emit(bus.Event{
				Type:    bus.EventDeliveryFailed,
				Source:  "messenger",
				Payload: map[string]any{"page_id": reply.PageID, "error": err.Error()},
			})
		}
	})
}

// Send posts one text reply as the page identified by reply.PageID.
func (s *MessengerSink) Send(ctx context.Context, reply domain.OutboundReply) error {
	profile, err := s.tokens.Resolve(ctx, reply.PageID)
	if err != nil {
		return &DeliveryError{PageID: reply.PageID, Err: fmt.Errorf("no credential: %w", err)}
	}

	body := sendRequest{
		Recipient: Party{ID: reply.RecipientID},
		Message:   sendMessage{Text: reply.Text},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages?access_token=%s", s.apiBase, reply.PageID, profile.AccessToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{PageID: reply.PageID, Err: fmt.Errorf("graph api request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DeliveryError{
			PageID: reply.PageID,
			Err:    fmt.Errorf("graph api %d: %s", resp.StatusCode, string(respBody)),
		}
	}
	io.Copy(io.Discard, resp.Body)

	s.logger.Debug("reply delivered", "page_id", reply.PageID, "recipient_id", reply.RecipientID)
	return nil
}
