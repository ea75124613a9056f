package channel

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pagebot/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testGateway(t *testing.T) (*MessengerGateway, *bus.InMemoryBus) {
	t.Helper()
	logger := testLogger()
	mb := bus.New(16, logger)
	t.Cleanup(mb.Close)

	g := NewMessengerGateway(GatewayConfig{
		WebhookPath: "/webhook",
		VerifyToken: "secret-token",
		Logger:      logger,
		Events:      bus.NewEventBus(logger),
	})
	g.bus = mb
	return g, mb
}

func get(t *testing.T, handler http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func post(t *testing.T, handler http.Handler, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	return rec
}

func TestVerify_Success(t *testing.T) {
	g, _ := testGateway(t)
	rec := get(t, g.Router(), "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rec.Body.String())
	}
}

func TestVerify_WrongToken(t *testing.T) {
	g, _ := testGateway(t)
	rec := get(t, g.Router(), "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "12345") {
		t.Error("challenge must not leak on rejection")
	}
}

func TestVerify_WrongMode(t *testing.T) {
	g, _ := testGateway(t)
	rec := get(t, g.Router(), "/webhook?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestVerify_MissingParams(t *testing.T) {
	g, _ := testGateway(t)
	rec := get(t, g.Router(), "/webhook")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhook_PublishesEvent(t *testing.T) {
	g, mb := testGateway(t)
	inbound := mb.Subscribe()

	body := `{
		"object": "page",
		"entry": [{
			"id": "P1",
			"time": 1700000000000,
			"messaging": [{
				"sender": {"id": "U1"},
				"recipient": {"id": "P1"},
				"timestamp": 1700000000000,
				"message": {"mid": "m1", "text": "hello"}
			}]
		}]
	}`
	rec := post(t, g.Router(), "/webhook", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "EVENT_RECEIVED" {
		t.Errorf("expected EVENT_RECEIVED ack, got %q", rec.Body.String())
	}

	select {
	case evt := <-inbound:
		if evt.PageID != "P1" || evt.SenderID != "U1" || evt.Text != "hello" {
			t.Errorf("unexpected event: %+v", evt)
		}
		if evt.RequestID == "" {
			t.Error("expected a request ID")
		}
	case <-time.After(time.Second):
		t.Fatal("expected an inbound event")
	}
}

func TestWebhook_MultiPageBatch(t *testing.T) {
	g, mb := testGateway(t)
	inbound := mb.Subscribe()

	body := `{
		"object": "page",
		"entry": [
			{"id": "P1", "messaging": [{"sender": {"id": "U1"}, "message": {"text": "one"}}]},
			{"id": "P2", "messaging": [{"sender": {"id": "U2"}, "message": {"text": "two"}}]}
		]
	}`
	post(t, g.Router(), "/webhook", body)

	pages := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-inbound:
			pages[evt.PageID] = true
		case <-time.After(time.Second):
			t.Fatal("expected two inbound events")
		}
	}
	if !pages["P1"] || !pages["P2"] {
		t.Errorf("expected events for both pages, got %v", pages)
	}
}

func TestWebhook_SkipsEchoesAndEmpties(t *testing.T) {
	g, mb := testGateway(t)
	inbound := mb.Subscribe()

	body := `{
		"object": "page",
		"entry": [{
			"id": "P1",
			"messaging": [
				{"sender": {"id": "P1"}, "message": {"text": "echoed", "is_echo": true}},
				{"sender": {"id": "U1"}, "message": {"text": ""}},
				{"sender": {"id": "U1"}},
				{"sender": {"id": "U2"}, "message": {"text": "real"}}
			]
		}]
	}`
	rec := post(t, g.Router(), "/webhook", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case evt := <-inbound:
		if evt.Text != "real" {
			t.Errorf("expected only the real message, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected one inbound event")
	}
	select {
	case evt := <-inbound:
		t.Errorf("unexpected extra event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebhook_MalformedBodyStillAcked(t *testing.T) {
	g, _ := testGateway(t)
	rec := post(t, g.Router(), "/webhook", "{not json")

	if rec.Code != http.StatusOK {
		t.Fatalf("malformed body must still be acked with 200, got %d", rec.Code)
	}
	if rec.Body.String() != "EVENT_RECEIVED" {
		t.Errorf("expected EVENT_RECEIVED, got %q", rec.Body.String())
	}
}

func TestWebhook_NonPageObjectIgnored(t *testing.T) {
	g, mb := testGateway(t)
	inbound := mb.Subscribe()

	post(t, g.Router(), "/webhook", `{"object":"user","entry":[{"id":"P1","messaging":[{"sender":{"id":"U1"},"message":{"text":"x"}}]}]}`)

	select {
	case evt := <-inbound:
		t.Errorf("unexpected event for non-page object: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHealthz(t *testing.T) {
	g, _ := testGateway(t)
	rec := get(t, g.Router(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected health body %q", rec.Body.String())
	}
}
