package domain

import "context"

// RunStatus is the backend-reported state of an assistant run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
	RunExpired    RunStatus = "expired"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// Run is one execution of an assistant over a thread.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus
}

// ThreadMessage is one turn in a conversation thread.
type ThreadMessage struct {
	ID        string
	Role      string // "user" | "assistant"
	Text      string
	CreatedAt int64 // unix seconds, as reported by the backend
}

// Completer generates a single-turn reply from free-form instructions and a
// user message. Used for direct-mode profiles.
type Completer interface {
	Complete(ctx context.Context, instructions, userMessage string) (string, error)
}

// AssistantBackend exposes the stateful thread/run protocol used for
// assistant-mode profiles. Every call carries a bearer credential held by
// the implementation; all calls have an enforced upper bound on wait time.
type AssistantBackend interface {
	CreateThread(ctx context.Context) (threadID string, err error)
	AddMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}
