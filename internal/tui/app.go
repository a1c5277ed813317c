// Package tui provides a terminal user interface.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/report"
	"github.com/user/authlens/internal/tracker"
	"github.com/user/authlens/internal/util"
)

// ResultHook is called with every delivered result and its rendered view,
// e.g. to record history or export the report.
type ResultHook func(h *tracker.Handle, view *report.View, res *model.AnalysisResult)

// App is the main TUI application.
type App struct {
	session  *tracker.Session
	renderer *report.Renderer
	meter    *tracker.Meter
	interval time.Duration
	path     string
	taskID   string
	onResult ResultHook
}

// Options configures an App.
type Options struct {
	// Path is uploaded on start. Ignored when TaskID is set.
	Path string
	// TaskID resumes tracking of an already submitted task.
	TaskID   string
	Interval time.Duration
	OnResult ResultHook
}

// NewApp creates a new TUI application.
func NewApp(session *tracker.Session, renderer *report.Renderer, meter *tracker.Meter, opts Options) *App {
	if opts.Interval <= 0 {
		opts.Interval = tracker.DefaultInterval
	}
	return &App{
		session:  session,
		renderer: renderer,
		meter:    meter,
		interval: opts.Interval,
		path:     opts.Path,
		taskID:   opts.TaskID,
		onResult: opts.OnResult,
	}
}

// Run starts the TUI application and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	m := newModel(ctx, a)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	a.session.Reset()
	if err != nil {
		return err
	}
	if fm, ok := final.(uiModel); ok && fm.err != nil {
		return fm.err
	}
	return nil
}

type phase int

const (
	phaseIdle phase = iota
	phaseUploading
	phasePolling
	phaseFetching
	phaseDone
)

// uiModel is the main bubbletea model.
type uiModel struct {
	ctx      context.Context
	app      *App
	handle   *tracker.Handle
	phase    phase
	view     *report.View
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	err      error
}

func newModel(ctx context.Context, app *App) uiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	m := uiModel{
		ctx:      ctx,
		app:      app,
		spinner:  s,
		progress: p,
		viewport: viewport.New(80, 20),
	}
	m.phase = m.startPhase()
	return m
}

// Init initializes the model.
func (m uiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

func (m uiModel) startPhase() phase {
	if m.app.taskID != "" {
		return phasePolling
	}
	return phaseUploading
}

// start returns the command that makes a new task current. The handle is
// adopted when its submittedMsg arrives.
func (m uiModel) start() tea.Cmd {
	if m.app.taskID != "" {
		return resumeTask(m.app.session, m.app.taskID)
	}
	return submitFile(m.ctx, m.app.session, m.app.path)
}

// Update handles messages.
func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.app.path == "" && m.app.taskID == "" {
				return m, nil
			}
			m.app.renderer.Reset()
			m.handle = nil
			m.view = nil
			m.err = nil
			m.phase = m.startPhase()
			m.refreshReport()
			return m, m.start()
		case "esc":
			m.app.session.Reset()
			m.app.renderer.Reset()
			m.handle = nil
			m.phase = phaseIdle
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = clampWidth(msg.Width-20, 10, 80)
		m.viewport.Width = msg.Width
		m.viewport.Height = maxInt(msg.Height-8, 5)
		m.ready = true
		m.refreshReport()

	case submittedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, tracker.ErrSuperseded) {
				return m, nil
			}
			m.err = msg.err
			m.phase = phaseIdle
			return m, nil
		}
		if !m.app.session.IsCurrent(msg.handle) {
			return m, nil
		}
		m.handle = msg.handle
		m.phase = phasePolling
		return m, checkStatus(m.ctx, m.app.session, msg.handle)

	case tickMsg:
		if !m.isActive(msg.handle) {
			return m, nil
		}
		return m, checkStatus(m.ctx, m.app.session, msg.handle)

	case statusMsg:
		if !m.isActive(msg.handle) || errors.Is(msg.err, tracker.ErrSuperseded) {
			return m, nil
		}
		if msg.err != nil {
			if m.app.session.Failing(msg.handle) {
				m.err = msg.err
				m.phase = phaseIdle
				return m, nil
			}
			util.Warn("Status check for %s failed: %v", msg.handle.TaskID, msg.err)
			return m, scheduleTick(m.app.interval, msg.handle)
		}
		if msg.done {
			m.phase = phaseFetching
			return m, fetchResult(m.ctx, m.app.session, msg.handle)
		}
		return m, scheduleTick(m.app.interval, msg.handle)

	case resultMsg:
		if !m.isActive(msg.handle) || errors.Is(msg.err, tracker.ErrSuperseded) {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			m.phase = phaseIdle
			return m, nil
		}
		var view *report.View
		err := m.app.session.Deliver(msg.handle, func() {
			view = m.app.renderer.Render(msg.handle.TaskID, msg.result)
		})
		if err != nil {
			return m, nil
		}
		if m.app.onResult != nil {
			m.app.onResult(msg.handle, view, msg.result)
		}
		m.view = view
		m.phase = phaseDone
		m.refreshReport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// isActive reports whether a message for h may still change the model.
func (m uiModel) isActive(h *tracker.Handle) bool {
	return h != nil && h == m.handle && m.app.session.IsCurrent(h)
}

func (m *uiModel) refreshReport() {
	if m.view == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(RenderReport(m.view, m.viewport.Width))
	m.viewport.GotoTop()
}

// View renders the UI.
func (m uiModel) View() string {
	return NewDashboard(m).View()
}

// Messages
type submittedMsg struct {
	handle *tracker.Handle
	err    error
}

type tickMsg struct {
	handle *tracker.Handle
}

type statusMsg struct {
	handle *tracker.Handle
	done   bool
	err    error
}

type resultMsg struct {
	handle *tracker.Handle
	result *model.AnalysisResult
	err    error
}

func submitFile(ctx context.Context, s *tracker.Session, path string) tea.Cmd {
	return func() tea.Msg {
		h, err := s.Submit(ctx, path)
		return submittedMsg{handle: h, err: err}
	}
}

func resumeTask(s *tracker.Session, taskID string) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{handle: s.Resume(taskID)}
	}
}

func checkStatus(ctx context.Context, s *tracker.Session, h *tracker.Handle) tea.Cmd {
	return func() tea.Msg {
		done, err := s.Check(ctx, h)
		return statusMsg{handle: h, done: done, err: err}
	}
}

func scheduleTick(d time.Duration, h *tracker.Handle) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{handle: h}
	})
}

func fetchResult(ctx context.Context, s *tracker.Session, h *tracker.Handle) tea.Cmd {
	return func() tea.Msg {
		res, err := s.FetchResult(ctx, h)
		return resultMsg{handle: h, result: res, err: err}
	}
}

func clampWidth(w, lo, hi int) int {
	if w < lo {
		return lo
	}
	if w > hi {
		return hi
	}
	return w
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
