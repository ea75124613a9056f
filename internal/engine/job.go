package engine

import (
	"time"

	"github.com/google/uuid"

	"pagebot/internal/domain"
)

// JobStatus is the engine-side lifecycle of a reply job, distinct from the
// backend's run status.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// ConversationJob tracks one assistant-mode reply from thread creation to
// the final text. A fresh job (and thread) is created per inbound event;
// nothing is reused across requests.
type ConversationJob struct {
	ID         string
	PageID     string
	ThreadID   string
	RunID      string
	Status     JobStatus
	ResultText string
	StartedAt  time.Time
}

func newJob(pageID string) *ConversationJob {
	return &ConversationJob{
		ID:        uuid.NewString(),
		PageID:    pageID,
		Status:    JobPending,
		StartedAt: time.Now(),
	}
}

// statusFromRun maps a terminal backend run status onto the job lifecycle.
func statusFromRun(s domain.RunStatus) JobStatus {
	switch s {
	case domain.RunCompleted:
		return JobCompleted
	case domain.RunFailed, domain.RunCancelled, domain.RunExpired:
		return JobFailed
	}
	return JobRunning
}
