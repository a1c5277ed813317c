package tracker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Clamp bounds a progress value to [0, 100].
func Clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ProgressMeter receives clamped progress values. The Session calls it with
// its lock held, so implementations must not call back into the Session.
type ProgressMeter interface {
	Set(p int)
	Reset()
}

// Meter is a thread-safe bounded progress value.
type Meter struct {
	mu       sync.RWMutex
	value    int
	onChange func(int)
}

// NewMeter creates a meter at 0.
func NewMeter() *Meter {
	return &Meter{}
}

// OnChange registers a callback invoked after every Set or Reset.
func (m *Meter) OnChange(fn func(int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Set stores Clamp(p).
func (m *Meter) Set(p int) {
	m.mu.Lock()
	m.value = Clamp(p)
	v, fn := m.value, m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

// Reset sets the meter back to 0.
func (m *Meter) Reset() {
	m.Set(0)
}

// Value returns the current value.
func (m *Meter) Value() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Percent returns the value as a 0..1 fraction.
func (m *Meter) Percent() float64 {
	return float64(m.Value()) / 100
}

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

// RenderBar renders a progress bar of the given width.
func RenderBar(value, max int, width int) string {
	if max == 0 {
		max = 1
	}
	if width < 0 {
		width = 0
	}

	filled := int(float64(value) / float64(max) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return barStyle.Render(bar)
}

// View renders the meter as a bar followed by the percentage.
func (m *Meter) View(width int) string {
	v := m.Value()
	return fmt.Sprintf("%s %3d%%", RenderBar(v, 100, width), v)
}
