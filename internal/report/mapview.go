package report

import (
	"math"
	"sync"

	"github.com/user/authlens/internal/model"
)

const (
	// WorldZoom is the zoom of the default world view.
	WorldZoom = 2
	// PointZoom is the zoom used when a single suspect is plotted.
	PointZoom = 9
	// BoundsPadding is the pixel margin kept around fitted bounds.
	BoundsPadding = 20
	// MaxZoom is the maximum zoom of the tile layer.
	MaxZoom = 18

	tileSize = 256
)

// WorldCenter is the center of the default world view.
var WorldCenter = LatLng{Lat: 20, Lon: 0}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a south-west / north-east box.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// Center returns the middle of the box.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lon: (b.SouthWest.Lon + b.NorthEast.Lon) / 2,
	}
}

// Marker is a plotted point with its popup text.
type Marker struct {
	LatLng
	Popup string `json:"popup"`
}

// TileLayer describes the map tile source.
type TileLayer struct {
	URL     string `json:"url"`
	MaxZoom int    `json:"max_zoom"`
}

// Map is one map instance. Either Bounds is set (fit to bounds with Padding)
// or Center and Zoom are.
type Map struct {
	ID      int       `json:"id"`
	Tiles   TileLayer `json:"tiles"`
	Center  LatLng    `json:"center"`
	Zoom    int       `json:"zoom"`
	Bounds  *Bounds   `json:"bounds,omitempty"`
	Padding [2]int    `json:"padding"`
	Markers []Marker  `json:"markers"`

	disposed bool
}

// Disposed reports whether the instance was released.
func (m *Map) Disposed() bool {
	return m.disposed
}

// ZoomFor returns the zoom level at which the map fits a width x height pixel
// viewport. Maps without bounds keep their fixed zoom.
func (m *Map) ZoomFor(width, height int) int {
	if m.Bounds == nil {
		return m.Zoom
	}

	w := float64(width - 2*m.Padding[0])
	h := float64(height - 2*m.Padding[1])
	if w <= 0 || h <= 0 {
		return 0
	}

	lonFrac := (m.Bounds.NorthEast.Lon - m.Bounds.SouthWest.Lon) / 360
	latFrac := (mercatorY(m.Bounds.NorthEast.Lat) - mercatorY(m.Bounds.SouthWest.Lat)) / (2 * math.Pi)

	zoom := m.Tiles.MaxZoom
	if lonFrac > 0 {
		zoom = minInt(zoom, int(math.Floor(math.Log2(w/tileSize/lonFrac))))
	}
	if latFrac > 0 {
		zoom = minInt(zoom, int(math.Floor(math.Log2(h/tileSize/latFrac))))
	}
	if zoom < 0 {
		zoom = 0
	}
	return zoom
}

func mercatorY(lat float64) float64 {
	const maxLat = 85.0511287798
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MapView holds at most one map instance and replaces it on every render.
type MapView struct {
	mu      sync.Mutex
	tileURL string
	seq     int
	current *Map
}

// NewMapView creates a map view using the given tile URL template.
func NewMapView(tileURL string) *MapView {
	return &MapView{tileURL: tileURL}
}

// Render disposes the held map and, unless mode is MapNone, creates a new one
// for points.
func (v *MapView) Render(points []model.MapPoint, mode MapMode) *Map {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.disposeLocked()
	if mode == MapNone {
		return nil
	}

	v.seq++
	m := &Map{
		ID:      v.seq,
		Tiles:   TileLayer{URL: v.tileURL, MaxZoom: MaxZoom},
		Markers: make([]Marker, 0, len(points)),
	}
	for _, p := range points {
		m.Markers = append(m.Markers, Marker{
			LatLng: LatLng{Lat: p.Lat, Lon: p.Lon},
			Popup:  p.Label,
		})
	}

	switch len(points) {
	case 0:
		m.Center = WorldCenter
		m.Zoom = WorldZoom
	case 1:
		m.Center = LatLng{Lat: points[0].Lat, Lon: points[0].Lon}
		m.Zoom = PointZoom
	default:
		b := Bounds{
			SouthWest: LatLng{Lat: points[0].Lat, Lon: points[0].Lon},
			NorthEast: LatLng{Lat: points[0].Lat, Lon: points[0].Lon},
		}
		for _, p := range points[1:] {
			b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
			b.SouthWest.Lon = math.Min(b.SouthWest.Lon, p.Lon)
			b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
			b.NorthEast.Lon = math.Max(b.NorthEast.Lon, p.Lon)
		}
		m.Bounds = &b
		m.Padding = [2]int{BoundsPadding, BoundsPadding}
		m.Center = b.Center()
	}

	v.current = m
	return m
}

// Clear disposes the held map.
func (v *MapView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposeLocked()
}

// Current returns the held map, or nil.
func (v *MapView) Current() *Map {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *MapView) disposeLocked() {
	if v.current != nil {
		v.current.disposed = true
		v.current = nil
	}
}
