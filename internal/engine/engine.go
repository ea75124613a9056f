package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pagebot/internal/domain"
)

// ReplyEngine turns an inbound user message into reply text according to
// the page profile's mode. Direct mode is a single completion call;
// assistant mode drives the thread/run protocol with a bounded poll loop.
type ReplyEngine struct {
	completer domain.Completer
	backend   domain.AssistantBackend
	logger    *slog.Logger

	pollInterval    time.Duration
	maxPollAttempts int
	noReplyText     string
}

type Config struct {
	Completer       domain.Completer
	Backend         domain.AssistantBackend
	Logger          *slog.Logger
	PollInterval    time.Duration
	MaxPollAttempts int
	NoReplyText     string
}

func New(cfg Config) *ReplyEngine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 30
	}
	if cfg.NoReplyText == "" {
		cfg.NoReplyText = "Sorry, no reply generated."
	}
	return &ReplyEngine{
		completer:       cfg.Completer,
		backend:         cfg.Backend,
		logger:          cfg.Logger,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		noReplyText:     cfg.NoReplyText,
	}
}

// GenerateReply produces the reply text for userMessage under the given
// profile. The profile is assumed valid; callers resolve it first.
func (e *ReplyEngine) GenerateReply(ctx context.Context, profile *domain.PageProfile, userMessage string) (string, error) {
	switch profile.Mode {
	case domain.ModeDirect:
		return e.direct(ctx, profile, userMessage)
	case domain.ModeAssistant:
		return e.assistant(ctx, profile, userMessage)
	}
	return "", fmt.Errorf("profile %s: unknown mode %q", profile.PageID, profile.Mode)
}

func (e *ReplyEngine) direct(ctx context.Context, profile *domain.PageProfile, userMessage string) (string, error) {
	text, err := e.completer.Complete(ctx, profile.Instructions, userMessage)
	if err != nil {
		return "", fmt.Errorf("completion for page %s: %w", profile.PageID, err)
	}
	if text == "" {
		e.logger.Warn("empty completion", "page_id", profile.PageID)
		return e.noReplyText, nil
	}
	return text, nil
}

func (e *ReplyEngine) assistant(ctx context.Context, profile *domain.PageProfile, userMessage string) (string, error) {
	job := newJob(profile.PageID)

	threadID, err := e.backend.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	job.ThreadID = threadID

	if err := e.backend.AddMessage(ctx, threadID, userMessage); err != nil {
		return "", err
	}

	run, err := e.backend.StartRun(ctx, threadID, profile.AssistantID)
	if err != nil {
		return "", err
	}
	job.RunID = run.ID
	job.Status = JobRunning
	e.logger.Debug("run started",
		"job_id", job.ID, "page_id", profile.PageID,
		"thread_id", threadID, "run_id", run.ID)

	run, err = e.waitForRun(ctx, job)
	if err != nil {
		return "", err
	}

	text, err := e.latestAssistantText(ctx, threadID)
	if err != nil {
		return "", err
	}
	if text == "" {
		e.logger.Warn("run completed without assistant text",
			"job_id", job.ID, "thread_id", threadID, "run_id", run.ID)
		text = e.noReplyText
	}
	job.ResultText = text
	return text, nil
}

// waitForRun polls the run until it completes, fails, or the attempt bound
// is exhausted. Each attempt is one fixed sleep followed by one status
// fetch, so a run that is already done costs exactly one round trip.
func (e *ReplyEngine) waitForRun(ctx context.Context, job *ConversationJob) (*domain.Run, error) {
	for attempt := 1; attempt <= e.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.pollInterval):
		}

		run, err := e.backend.GetRun(ctx, job.ThreadID, job.RunID)
		if err != nil {
			return nil, err
		}

		if run.Status == domain.RunCompleted {
			job.Status = JobCompleted
			e.logger.Debug("run completed", "job_id", job.ID, "attempts", attempt)
			return run, nil
		}
		if run.Status.Terminal() {
			job.Status = statusFromRun(run.Status)
			e.logger.Warn("run ended without completing",
				"job_id", job.ID, "run_id", job.RunID, "status", run.Status)
			return nil, fmt.Errorf("%w: run %s is %s", domain.ErrJobFailed, job.RunID, run.Status)
		}
	}

	job.Status = JobTimedOut
	e.logger.Warn("run poll bound exhausted",
		"job_id", job.ID, "run_id", job.RunID, "attempts", e.maxPollAttempts)
	return nil, fmt.Errorf("%w: run %s after %d attempts", domain.ErrPollTimeout, job.RunID, e.maxPollAttempts)
}

// latestAssistantText returns the text of the newest assistant turn in the
// thread, or "" when the thread holds none.
func (e *ReplyEngine) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	msgs, err := e.backend.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}

	var newest *domain.ThreadMessage
	for i := range msgs {
		if msgs[i].Role != "assistant" {
			continue
		}
		if newest == nil || msgs[i].CreatedAt > newest.CreatedAt {
			newest = &msgs[i]
		}
	}
	if newest == nil {
		return "", nil
	}
	return newest.Text, nil
}
