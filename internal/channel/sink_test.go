package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pagebot/internal/bus"
	"pagebot/internal/domain"
)

// staticTokens is a TokenSource backed by a map.
type staticTokens map[string]*domain.PageProfile

func (s staticTokens) Resolve(ctx context.Context, pageID string) (*domain.PageProfile, error) {
	if p, ok := s[pageID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func testSink(t *testing.T, handler http.Handler, tokens TokenSource) *MessengerSink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := testLogger()
	return NewMessengerSink(SinkConfig{
		GraphAPIBase: srv.URL,
		Tokens:       tokens,
		Logger:       logger,
		Events:       bus.NewEventBus(logger),
	})
}

func TestSend(t *testing.T) {
	var gotPath, gotToken string
	var gotBody sendRequest
	sink := testSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"message_id":"m1"}`))
	}), staticTokens{
		"P1": {PageID: "P1", AccessToken: "tok1"},
	})

	err := sink.Send(context.Background(), domain.OutboundReply{
		Channel:     "messenger",
		PageID:      "P1",
		RecipientID: "U1",
		Text:        "hi there",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/P1/messages" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotToken != "tok1" {
		t.Errorf("expected page token tok1, got %q", gotToken)
	}
	if gotBody.Recipient.ID != "U1" || gotBody.Message.Text != "hi there" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestSend_UsesPerPageToken(t *testing.T) {
	tokens := map[string]string{}
	sink := testSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := strings.Trim(strings.TrimSuffix(r.URL.Path, "/messages"), "/")
		tokens[page] = r.URL.Query().Get("access_token")
		w.Write([]byte(`{}`))
	}), staticTokens{
		"P1": {PageID: "P1", AccessToken: "tok1"},
		"P2": {PageID: "P2", AccessToken: "tok2"},
	})

	ctx := context.Background()
	for _, page := range []string{"P1", "P2"} {
		if err := sink.Send(ctx, domain.OutboundReply{PageID: page, RecipientID: "U1", Text: "x"}); err != nil {
			t.Fatalf("send %s: %v", page, err)
		}
	}
	if tokens["P1"] != "tok1" || tokens["P2"] != "tok2" {
		t.Errorf("expected per-page tokens, got %v", tokens)
	}
}

func TestSend_GraphAPIError(t *testing.T) {
	sink := testSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusBadRequest)
	}), staticTokens{
		"P1": {PageID: "P1", AccessToken: "tok1"},
	})

	err := sink.Send(context.Background(), domain.OutboundReply{PageID: "P1", RecipientID: "U1", Text: "x"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	var de *DeliveryError
	if !errors.As(err, &de) || de.PageID != "P1" {
		t.Fatalf("expected DeliveryError for P1, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("expected API error detail, got %v", err)
	}
}

func TestSend_UnknownPage(t *testing.T) {
	sink := testSink(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("graph api must not be called without a credential")
	}), staticTokens{})

	err := sink.Send(context.Background(), domain.OutboundReply{PageID: "P9", RecipientID: "U1", Text: "x"})
	if err == nil {
		t.Fatal("expected error for unknown page")
	}
}
