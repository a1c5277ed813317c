package report

import (
	"sync"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/util"
)

// Meter is the part of the progress meter the renderer resets.
type Meter interface {
	Reset()
}

// View is a rendered report: the display model plus its map instance.
type View struct {
	TaskID  string   `json:"task_id,omitempty"`
	Display *Display `json:"display"`
	Map     *Map     `json:"map,omitempty"`
	// Warning is set when the result was missing required fields.
	Warning string `json:"warning,omitempty"`
}

// Renderer populates the report region from analysis results.
type Renderer struct {
	mapView *MapView
	meter   Meter

	mu      sync.RWMutex
	visible bool
	last    *View
}

// NewRenderer creates a renderer. meter may be nil.
func NewRenderer(mapView *MapView, meter Meter) *Renderer {
	return &Renderer{
		mapView: mapView,
		meter:   meter,
	}
}

// Render reveals the report region and renders res into it.
func (r *Renderer) Render(taskID string, res *model.AnalysisResult) *View {
	view := &View{TaskID: taskID}
	if err := res.Validate(); err != nil {
		util.Warn("Task %s: %v", taskID, err)
		view.Warning = err.Error()
	}

	view.Display = Normalize(res)
	view.Map = r.mapView.Render(view.Display.Points, view.Display.MapMode)

	r.mu.Lock()
	r.visible = true
	r.last = view
	r.mu.Unlock()

	util.Debug("Rendered task %s: %d suspects, %d accepted rows", taskID,
		len(view.Display.Suspects), len(view.Display.Accepted))
	return view
}

// Reset hides the report region, zeroes the meter and drops the map.
func (r *Renderer) Reset() {
	r.mu.Lock()
	r.visible = false
	r.last = nil
	r.mu.Unlock()

	if r.meter != nil {
		r.meter.Reset()
	}
	r.mapView.Clear()
}

// Visible reports whether the report region is shown.
func (r *Renderer) Visible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}

// Last returns the most recent view, or nil after Reset.
func (r *Renderer) Last() *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}
