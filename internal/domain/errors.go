package domain

import "errors"

var (
	// ErrBackendUnavailable covers transport failures and non-success
	// responses while creating the conversation context or submitting input.
	ErrBackendUnavailable = errors.New("reply backend unavailable")

	// ErrJobFailed means the backend reported the run as failed, cancelled
	// or expired.
	ErrJobFailed = errors.New("assistant run failed")

	// ErrPollTimeout means the run never reached a terminal state within
	// the poll bound.
	ErrPollTimeout = errors.New("assistant run poll timed out")

	// ErrProfileNotFound means no enabled profile exists for the page. The
	// event is skipped, never answered.
	ErrProfileNotFound = errors.New("page profile not found")
)
