// Package tracker owns the lifecycle of analysis tasks: submit, poll,
// fetch the result once and hand it to a renderer.
//
// Exactly one task is current per Session. Submit, Resume and Reset supersede
// the previous handle; every operation on a superseded handle returns
// ErrSuperseded and has no observable effect.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/user/authlens/internal/client"
	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/util"
)

// DefaultInterval is the delay between status checks.
const DefaultInterval = 800 * time.Millisecond

var (
	// ErrSuperseded is returned for handles replaced by a newer submission.
	ErrSuperseded = errors.New("task superseded")
	// ErrNotReady is returned when fetching before done was observed.
	ErrNotReady = errors.New("task not done")
	// ErrAlreadyFetched is returned on a second fetch for the same handle.
	ErrAlreadyFetched = errors.New("result already fetched")
)

// Backend is the analysis service contract.
type Backend interface {
	Submit(ctx context.Context, path string) (string, error)
	Progress(ctx context.Context, taskID string) (*model.ProgressReport, error)
	Result(ctx context.Context, taskID string) (*model.AnalysisResult, error)
}

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StatePolling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle identifies one submitted task.
type Handle struct {
	TaskID      string
	SubmittedAt time.Time

	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	breaker *gobreaker.CircuitBreaker[*model.ProgressReport]

	// guarded by Session.mu
	done     bool
	fetched  bool
	progress int
}

// Done returns a channel closed when the handle is superseded or finished.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Options configures a Session.
type Options struct {
	// Interval between status checks. Zero means DefaultInterval.
	Interval time.Duration
	// MaxFailures is the number of consecutive failed checks after which
	// Poll gives up. Zero means 5.
	MaxFailures int
	// Meter receives clamped progress values. May be nil.
	Meter ProgressMeter
}

// Session tracks the single active task.
type Session struct {
	backend     Backend
	interval    time.Duration
	maxFailures uint32
	meter       ProgressMeter

	mu      sync.Mutex
	gen     uint64
	current *Handle
	state   State
	// cancels the upload of the generation being submitted
	cancelUpload context.CancelFunc
}

// NewSession creates a session on top of backend.
func NewSession(backend Backend, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	return &Session{
		backend:     backend,
		interval:    opts.Interval,
		maxFailures: uint32(opts.MaxFailures),
		meter:       opts.Meter,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the active handle, or nil.
func (s *Session) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsCurrent reports whether h is the active handle.
func (s *Session) IsCurrent(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return h != nil && s.current == h
}

// supersedeLocked drops the active handle, aborts a pending upload, zeroes
// the meter and returns the new generation.
func (s *Session) supersedeLocked() uint64 {
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
	if s.cancelUpload != nil {
		s.cancelUpload()
		s.cancelUpload = nil
	}
	s.gen++
	s.resetMeterLocked()
	return s.gen
}

// Meter writes happen under s.mu so they follow handle ownership.
func (s *Session) resetMeterLocked() {
	if s.meter != nil {
		s.meter.Reset()
	}
}

func (s *Session) newHandleLocked(taskID string, gen uint64) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		TaskID:      taskID,
		SubmittedAt: time.Now(),
		gen:         gen,
		ctx:         ctx,
		cancel:      cancel,
	}
	max := s.maxFailures
	h.breaker = gobreaker.NewCircuitBreaker[*model.ProgressReport](gobreaker.Settings{
		Name:        "poll-" + taskID,
		MaxRequests: 1,
		Timeout:     time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.Debug("Breaker %s: %s -> %s", name, from, to)
		},
	})
	s.current = h
	s.state = StateSubmitted
	return h
}

// Submit uploads path and makes the new task current. Any previous handle is
// superseded before the upload starts.
func (s *Session) Submit(ctx context.Context, path string) (*Handle, error) {
	s.mu.Lock()
	gen := s.supersedeLocked()
	s.state = StateSubmitted
	uploadCtx, cancel := context.WithCancel(ctx)
	s.cancelUpload = cancel
	s.mu.Unlock()
	defer cancel()

	taskID, err := s.backend.Submit(uploadCtx, path)
	if err == nil && taskID == "" {
		err = errors.New("response has no task_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return nil, ErrSuperseded
	}
	s.cancelUpload = nil
	if err != nil {
		s.state = StateIdle
		var se *client.SubmissionError
		if !errors.As(err, &se) {
			err = &client.SubmissionError{File: path, Err: err}
		}
		return nil, err
	}

	h := s.newHandleLocked(taskID, gen)
	util.Info("Task %s submitted", taskID)
	return h, nil
}

// Resume makes an existing backend task current without uploading.
func (s *Session) Resume(taskID string) *Handle {
	s.mu.Lock()
	gen := s.supersedeLocked()
	h := s.newHandleLocked(taskID, gen)
	s.mu.Unlock()
	return h
}

// Reset supersedes the active task and returns to idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.supersedeLocked()
	s.state = StateIdle
	s.mu.Unlock()
}

// Progress returns the last clamped progress seen for h.
func (s *Session) Progress(h *Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return h.progress
}

// Check performs one status query for h. It forwards progress to the meter
// and reports whether the task is done.
func (s *Session) Check(ctx context.Context, h *Handle) (bool, error) {
	if !s.IsCurrent(h) {
		return false, ErrSuperseded
	}

	reqCtx, cancel := mergeContext(ctx, h.ctx)
	defer cancel()

	report, err := h.breaker.Execute(func() (*model.ProgressReport, error) {
		return s.backend.Progress(reqCtx, h.TaskID)
	})

	s.mu.Lock()
	if s.current != h {
		s.mu.Unlock()
		return false, ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		var pe *client.PollError
		if !errors.As(err, &pe) {
			err = &client.PollError{TaskID: h.TaskID, Err: err}
		}
		return false, err
	}
	if report == nil {
		s.mu.Unlock()
		return false, &client.PollError{TaskID: h.TaskID, Err: errors.New("empty progress response")}
	}

	forward := report.Progress != nil
	if forward {
		h.progress = Clamp(*report.Progress)
	}
	progress := h.progress
	s.state = StatePolling
	if report.Status.Done() {
		h.done = true
		s.state = StateDone
	}
	if forward && s.meter != nil {
		s.meter.Set(progress)
	}
	done := h.done
	s.mu.Unlock()

	return done, nil
}

// Failing reports whether h has hit the consecutive failure limit.
func (s *Session) Failing(h *Handle) bool {
	return h.breaker.State() == gobreaker.StateOpen
}

// Poll checks h every interval until the task is done. It returns
// ErrSuperseded as soon as h is replaced, and a *client.PollError once the
// consecutive failure limit is reached.
func (s *Session) Poll(ctx context.Context, h *Handle) error {
	var lastErr error
	for {
		done, err := s.Check(ctx, h)
		switch {
		case errors.Is(err, ErrSuperseded):
			return err
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, gobreaker.ErrOpenState) || s.Failing(h) {
				if !errors.Is(err, gobreaker.ErrOpenState) || lastErr == nil {
					lastErr = err
				}
				return &client.PollError{
					TaskID: h.TaskID,
					Err:    fmt.Errorf("giving up after %d consecutive failures: %w", s.maxFailures, lastErr),
				}
			}
			lastErr = err
			util.Warn("Status check for %s failed: %v", h.TaskID, err)
		case done:
			return nil
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-h.ctx.Done():
			timer.Stop()
			return ErrSuperseded
		case <-timer.C:
		}
	}
}

// FetchResult fetches the result for h. It is allowed once, after Check
// observed done for h.
func (s *Session) FetchResult(ctx context.Context, h *Handle) (*model.AnalysisResult, error) {
	s.mu.Lock()
	switch {
	case s.current != h:
		s.mu.Unlock()
		return nil, ErrSuperseded
	case !h.done:
		s.mu.Unlock()
		return nil, ErrNotReady
	case h.fetched:
		s.mu.Unlock()
		return nil, ErrAlreadyFetched
	}
	h.fetched = true
	s.mu.Unlock()

	reqCtx, cancel := mergeContext(ctx, h.ctx)
	defer cancel()

	res, err := s.backend.Result(reqCtx, h.TaskID)
	if !s.IsCurrent(h) {
		return nil, ErrSuperseded
	}
	if err != nil {
		var fe *client.ResultFetchError
		if !errors.As(err, &fe) {
			err = &client.ResultFetchError{TaskID: h.TaskID, Err: err}
		}
		return nil, err
	}
	if res == nil {
		res = &model.AnalysisResult{}
	}
	return res, nil
}

// Deliver runs fn only if h is still current, then retires h and returns the
// session to idle. fn runs under the session lock so a concurrent Submit
// cannot interleave with it.
func (s *Session) Deliver(h *Handle, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != h {
		return ErrSuperseded
	}
	fn()
	h.cancel()
	s.current = nil
	s.state = StateIdle
	return nil
}

// DeliverFunc receives a fetched result for rendering.
type DeliverFunc func(h *Handle, res *model.AnalysisResult)

// Run submits path, polls to completion, fetches the result and delivers
// it. A superseded run returns ErrSuperseded without calling deliver.
func (s *Session) Run(ctx context.Context, path string, deliver DeliverFunc) (*Handle, error) {
	h, err := s.Submit(ctx, path)
	if err != nil {
		return nil, err
	}
	return h, s.Track(ctx, h, deliver)
}

// Track polls an existing handle to completion and delivers its result.
func (s *Session) Track(ctx context.Context, h *Handle, deliver DeliverFunc) error {
	if err := s.Poll(ctx, h); err != nil {
		return err
	}

	res, err := s.FetchResult(ctx, h)
	if err != nil {
		return err
	}

	return s.Deliver(h, func() {
		deliver(h, res)
	})
}

// mergeContext returns a context canceled when either parent is done.
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
