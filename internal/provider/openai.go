package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pagebot/internal/domain"
)

// OpenAI talks to an OpenAI-compatible API over raw HTTP. It implements
// both domain.Completer (chat completions) and domain.AssistantBackend
// (Assistants v2 threads and runs).
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (o *OpenAI) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("openai: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned %d", resp.StatusCode)
	}
	return nil
}

// --- chat completions (direct mode) ---

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Complete runs a single-turn chat completion with instructions as the
// system prompt.
func (o *OpenAI) Complete(ctx context.Context, instructions, userMessage string) (string, error) {
	body := oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: userMessage},
		},
		Stream: false,
	}

	var out oaiResponse
	if err := o.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", fmt.Errorf("%w: completion: %v", domain.ErrBackendUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// --- assistants v2 (assistant mode) ---

type threadResponse struct {
	ID string `json:"id"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageListResponse struct {
	Data []messageItem `json:"data"`
}

type messageItem struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	CreatedAt int64            `json:"created_at"`
	Content   []messageContent `json:"content"`
}

type messageContent struct {
	Type string `json:"type"`
	Text struct {
		Value string `json:"value"`
	} `json:"text"`
}

func (o *OpenAI) CreateThread(ctx context.Context) (string, error) {
	var out threadResponse
	if err := o.post(ctx, "/threads", struct{}{}, &out); err != nil {
		return "", fmt.Errorf("%w: create thread: %v", domain.ErrBackendUnavailable, err)
	}
	return out.ID, nil
}

func (o *OpenAI) AddMessage(ctx context.Context, threadID, text string) error {
	body := messageRequest{Role: "user", Content: text}
	if err := o.post(ctx, "/threads/"+threadID+"/messages", body, nil); err != nil {
		return fmt.Errorf("%w: add message: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (o *OpenAI) StartRun(ctx context.Context, threadID, assistantID string) (*domain.Run, error) {
	var out runResponse
	if err := o.post(ctx, "/threads/"+threadID+"/runs", runRequest{AssistantID: assistantID}, &out); err != nil {
		return nil, fmt.Errorf("%w: start run: %v", domain.ErrBackendUnavailable, err)
	}
	return &domain.Run{ID: out.ID, ThreadID: out.ThreadID, Status: domain.RunStatus(out.Status)}, nil
}

func (o *OpenAI) GetRun(ctx context.Context, threadID, runID string) (*domain.Run, error) {
	var out runResponse
	if err := o.get(ctx, "/threads/"+threadID+"/runs/"+runID, &out); err != nil {
		return nil, fmt.Errorf("%w: get run: %v", domain.ErrBackendUnavailable, err)
	}
	return &domain.Run{ID: out.ID, ThreadID: out.ThreadID, Status: domain.RunStatus(out.Status)}, nil
}

func (o *OpenAI) ListMessages(ctx context.Context, threadID string) ([]domain.ThreadMessage, error) {
	var out messageListResponse
	if err := o.get(ctx, "/threads/"+threadID+"/messages", &out); err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", domain.ErrBackendUnavailable, err)
	}

	msgs := make([]domain.ThreadMessage, 0, len(out.Data))
	for _, item := range out.Data {
		var text string
		for _, c := range item.Content {
			if c.Type == "text" {
				text = c.Text.Value
				break
			}
		}
		msgs = append(msgs, domain.ThreadMessage{
			ID:        item.ID,
			Role:      item.Role,
			Text:      text,
			CreatedAt: item.CreatedAt,
		})
	}
	return msgs, nil
}

// --- transport helpers ---

func (o *OpenAI) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	return o.do(req, out)
}

func (o *OpenAI) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	return o.do(req, out)
}

func (o *OpenAI) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
