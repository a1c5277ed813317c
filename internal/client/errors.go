package client

import (
	"fmt"

	"github.com/user/authlens/internal/model"
)

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// SubmissionError reports a failed upload to /analyze.
type SubmissionError struct {
	File string
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.File, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError reports a failed status check.
type PollError struct {
	TaskID string
	Err    error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll task %s: %v", e.TaskID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// ResultFetchError reports a failed /result fetch.
type ResultFetchError struct {
	TaskID string
	Err    error
}

func (e *ResultFetchError) Error() string {
	return fmt.Sprintf("fetch result %s: %v", e.TaskID, e.Err)
}

func (e *ResultFetchError) Unwrap() error { return e.Err }

// MalformedResultError is re-exported so callers handle the whole taxonomy
// from one package.
type MalformedResultError = model.MalformedResultError

// truncateBody limits error bodies kept in StatusError.
func truncateBody(body []byte) string {
	const maxLen = 256
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "... (truncated)"
}
