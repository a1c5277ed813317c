// Package model defines core data structures for authlens.
package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TaskStatus is the backend-reported state of an analysis task.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusDone    TaskStatus = "done"
)

// Done reports whether the status marks a finished task. The backend also
// reports "queued" and "running"; anything other than "done" is pending.
func (s TaskStatus) Done() bool {
	return s == StatusDone
}

// Task represents one asynchronous analysis job.
type Task struct {
	ID       string     `json:"id"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
}

// SubmitResponse is the body returned by POST /analyze.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

// ProgressReport is one GET /progress/{id} response.
type ProgressReport struct {
	Status   TaskStatus `json:"status"`
	Progress *int       `json:"progress,omitempty"`
}

// UnmarshalJSON accepts progress as a number or a numeric string.
func (p *ProgressReport) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status   Scalar          `json:"status"`
		Progress json.RawMessage `json:"progress"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Status = TaskStatus(raw.Status)
	p.Progress = looseInt(raw.Progress)
	return nil
}

// looseFloat decodes a JSON number or numeric string. Anything else,
// including null, is treated as absent.
func looseFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func looseInt(raw json.RawMessage) *int {
	f := looseFloat(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Scalar is a JSON string or number kept verbatim as text.
type Scalar string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("scalar: unexpected %s", string(data[:1]))
	}
	*s = Scalar(data)
	return nil
}

// String returns the verbatim text.
func (s Scalar) String() string {
	return string(s)
}

// AnalysisResult is the result payload of GET /result/{id}. Every field is
// optional: a nil slice or map means the key was absent or null.
type AnalysisResult struct {
	File           *string                    `json:"file,omitempty"`
	Bruteforce     *bool                      `json:"bruteforce,omitempty"`
	Stats          *Stats                     `json:"stats,omitempty"`
	AcceptedEvents []AcceptedEvent            `json:"accepted_events"`
	SuspectIPs     []string                   `json:"suspect_ips,omitempty"`
	SuspectsDetail []SuspectDetail            `json:"suspects_detail"`
	UserOperations map[string][]UserOperation `json:"user_operations"`
	Incidents      []Incident                 `json:"incidents,omitempty"`

	// Raw is the document as received from the backend, when known.
	Raw json.RawMessage `json:"-"`
}

// Stats holds the login counters.
type Stats struct {
	AcceptedTotal *int `json:"accepted_total,omitempty"`
	FailedTotal   *int `json:"failed_total,omitempty"`
}

// UnmarshalJSON accepts counters as numbers or numeric strings; other values
// leave the counter absent.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw struct {
		AcceptedTotal json.RawMessage `json:"accepted_total"`
		FailedTotal   json.RawMessage `json:"failed_total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.AcceptedTotal = looseInt(raw.AcceptedTotal)
	s.FailedTotal = looseInt(raw.FailedTotal)
	return nil
}

// AcceptedEvent is a successful login record.
type AcceptedEvent struct {
	Timestamp Scalar `json:"timestamp"`
	IP        Scalar `json:"ip"`
	User      Scalar `json:"user"`
	Port      Scalar `json:"port"`
}

// SuspectDetail is a geolocated suspect IP.
type SuspectDetail struct {
	IP       string   `json:"ip"`
	Attempts *int     `json:"attempts,omitempty"`
	Country  *string  `json:"country,omitempty"`
	Region   *string  `json:"region,omitempty"`
	City     *string  `json:"city,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// UnmarshalJSON accepts attempts and coordinates as numbers or numeric
// strings; other values leave them absent.
func (d *SuspectDetail) UnmarshalJSON(data []byte) error {
	var raw struct {
		IP       Scalar          `json:"ip"`
		Attempts json.RawMessage `json:"attempts"`
		Country  *string         `json:"country"`
		Region   *string         `json:"region"`
		City     *string         `json:"city"`
		Lat      json.RawMessage `json:"lat"`
		Lon      json.RawMessage `json:"lon"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = SuspectDetail{
		IP:       string(raw.IP),
		Attempts: looseInt(raw.Attempts),
		Country:  raw.Country,
		Region:   raw.Region,
		City:     raw.City,
		Lat:      looseFloat(raw.Lat),
		Lon:      looseFloat(raw.Lon),
	}
	return nil
}

// HasCoordinates reports whether both lat and lon are present.
func (d SuspectDetail) HasCoordinates() bool {
	return d.Lat != nil && d.Lon != nil
}

// Location joins the non-empty country, region and city with " / ".
func (d SuspectDetail) Location() string {
	var parts []string
	for _, p := range []*string{d.Country, d.Region, d.City} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, " / ")
}

// UserOperation is a log line attributed to a subject.
type UserOperation struct {
	Timestamp Scalar  `json:"timestamp"`
	Raw       *string `json:"raw,omitempty"`
	Explain   *string `json:"explain,omitempty"`
}

// Incident is one brute-force window detected by the backend.
type Incident struct {
	IP    string         `json:"ip"`
	Count int            `json:"count"`
	Start Scalar         `json:"start"`
	End   Scalar         `json:"end"`
	Users map[string]int `json:"users,omitempty"`
}

// UnmarshalJSON accepts counts as numbers or numeric strings. Unparseable
// per-user counts are dropped.
func (i *Incident) UnmarshalJSON(data []byte) error {
	var raw struct {
		IP    Scalar                     `json:"ip"`
		Count json.RawMessage            `json:"count"`
		Start Scalar                     `json:"start"`
		End   Scalar                     `json:"end"`
		Users map[string]json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Incident{IP: string(raw.IP), Start: raw.Start, End: raw.End}
	if n := looseInt(raw.Count); n != nil {
		i.Count = *n
	}
	if raw.Users != nil {
		i.Users = make(map[string]int, len(raw.Users))
		for user, v := range raw.Users {
			if n := looseInt(v); n != nil {
				i.Users[user] = *n
			}
		}
	}
	return nil
}

// MapPoint is a plotted suspect location.
type MapPoint struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label"`
}

// MapPoints derives one point per suspect with both coordinates.
func (r *AnalysisResult) MapPoints() []MapPoint {
	if r == nil {
		return nil
	}
	var points []MapPoint
	for _, d := range r.SuspectsDetail {
		if !d.HasCoordinates() {
			continue
		}
		label := d.Location()
		if label == "" {
			label = d.IP
		}
		points = append(points, MapPoint{Lat: *d.Lat, Lon: *d.Lon, Label: label})
	}
	return points
}

// MalformedResultError lists required fields missing from a result payload.
type MalformedResultError struct {
	Missing []string
}

func (e *MalformedResultError) Error() string {
	return "malformed result: missing " + strings.Join(e.Missing, ", ")
}

// Validate checks the fields the report treats as required. The report still
// renders a malformed result; callers log the error.
func (r *AnalysisResult) Validate() error {
	if r == nil {
		return &MalformedResultError{Missing: []string{"stats", "accepted_events"}}
	}
	var missing []string
	if r.Stats == nil {
		missing = append(missing, "stats")
	} else {
		if r.Stats.AcceptedTotal == nil {
			missing = append(missing, "stats.accepted_total")
		}
		if r.Stats.FailedTotal == nil {
			missing = append(missing, "stats.failed_total")
		}
	}
	if r.AcceptedEvents == nil {
		missing = append(missing, "accepted_events")
	}
	if len(missing) > 0 {
		return &MalformedResultError{Missing: missing}
	}
	return nil
}

// Run is a completed analysis recorded in the local history.
type Run struct {
	ID            int64     `json:"id"`
	TaskID        string    `json:"task_id"`
	File          string    `json:"file"`
	Server        string    `json:"server"`
	Bruteforce    bool      `json:"bruteforce"`
	AcceptedTotal int       `json:"accepted_total"`
	FailedTotal   int       `json:"failed_total"`
	SuspectCount  int       `json:"suspect_count"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CompletedAt   time.Time `json:"completed_at"`
	Result        []byte    `json:"-"`
}
