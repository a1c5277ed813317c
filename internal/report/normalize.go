// Package report turns analysis results into display structures, maps and
// exportable reports.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/user/authlens/internal/model"
)

// Absent is the display value for missing fields.
const Absent = "-"

// NonePlaceholder is the single suspect item shown when there are none.
const NonePlaceholder = "none"

// Summary is the one-line report header.
type Summary struct {
	File       string `json:"file"`
	Bruteforce string `json:"bruteforce"`
	Accepted   string `json:"accepted"`
	Failed     string `json:"failed"`
}

// Line renders the summary as a single line.
func (s Summary) Line() string {
	return fmt.Sprintf("File: %s | Brute force: %s | Accepted logins: %s | Failed logins: %s",
		s.File, s.Bruteforce, s.Accepted, s.Failed)
}

// SuspectItem is one entry of the suspect list.
type SuspectItem struct {
	IP          string `json:"ip,omitempty"`
	Location    string `json:"location,omitempty"`
	Coordinates string `json:"coordinates,omitempty"`
	Attempts    string `json:"attempts,omitempty"`
	Text        string `json:"text"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// MapMode selects how the suspect map is shown.
type MapMode int

const (
	// MapNone means no map instance at all.
	MapNone MapMode = iota
	// MapWorld is the default world view without markers.
	MapWorld
	// MapPoints plots one marker per located suspect.
	MapPoints
)

func (m MapMode) String() string {
	switch m {
	case MapWorld:
		return "world"
	case MapPoints:
		return "points"
	default:
		return "none"
	}
}

// MarshalText encodes the mode by name.
func (m MapMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// OperationRow is one row of the grouped user operations table.
type OperationRow struct {
	Timestamp string `json:"timestamp"`
	Subject   string `json:"subject"`
	Raw       string `json:"raw"`
	Explain   string `json:"explain,omitempty"`
}

// AcceptedRow is one row of the accepted logins table.
type AcceptedRow struct {
	Timestamp string `json:"timestamp"`
	IP        string `json:"ip"`
	User      string `json:"user"`
	Port      string `json:"port"`
}

// IncidentRow is one brute-force window.
type IncidentRow struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
	Start string `json:"start"`
	End   string `json:"end"`
	Users string `json:"users"`
}

// Display is the display-ready form of an analysis result.
type Display struct {
	Summary      Summary          `json:"summary"`
	SuspectTitle string           `json:"suspect_title"`
	Suspects     []SuspectItem    `json:"suspects"`
	MapMode      MapMode          `json:"map_mode"`
	Points       []model.MapPoint `json:"points"`
	// UserOps is nil when the result has no user_operations at all, which
	// hides the table; an empty non-nil slice renders an empty table.
	UserOps   []OperationRow `json:"user_ops"`
	Accepted  []AcceptedRow  `json:"accepted"`
	Incidents []IncidentRow  `json:"incidents"`
}

// HasUserOps reports whether the user operations table is shown.
func (d *Display) HasUserOps() bool {
	return d.UserOps != nil
}

// Normalize builds the display model for res. It never fails: absent fields
// degrade to Absent values or empty tables. It has no side effects.
func Normalize(res *model.AnalysisResult) *Display {
	if res == nil {
		res = &model.AnalysisResult{}
	}

	d := &Display{
		Summary:   normalizeSummary(res),
		Accepted:  normalizeAccepted(res.AcceptedEvents),
		UserOps:   normalizeUserOps(res.UserOperations),
		Incidents: normalizeIncidents(res.Incidents),
	}
	d.SuspectTitle, d.Suspects = normalizeSuspects(res.SuspectsDetail)
	d.Points = res.MapPoints()
	if d.Points == nil {
		d.Points = []model.MapPoint{}
	}

	switch {
	case len(res.SuspectsDetail) == 0:
		d.MapMode = MapNone
	case len(d.Points) == 0:
		d.MapMode = MapWorld
	default:
		d.MapMode = MapPoints
	}

	return d
}

func normalizeSummary(res *model.AnalysisResult) Summary {
	s := Summary{
		File:       Absent,
		Bruteforce: "no",
		Accepted:   Absent,
		Failed:     Absent,
	}
	if res.File != nil && *res.File != "" {
		s.File = *res.File
	}
	if res.Bruteforce != nil && *res.Bruteforce {
		s.Bruteforce = "yes"
	}
	if res.Stats != nil {
		s.Accepted = intOrAbsent(res.Stats.AcceptedTotal)
		s.Failed = intOrAbsent(res.Stats.FailedTotal)
	}
	return s
}

func normalizeSuspects(details []model.SuspectDetail) (string, []SuspectItem) {
	if len(details) == 0 {
		return "Suspect IPs: " + NonePlaceholder, []SuspectItem{{Text: NonePlaceholder, Placeholder: true}}
	}

	ips := make([]string, 0, len(details))
	items := make([]SuspectItem, 0, len(details))
	for _, d := range details {
		ips = append(ips, d.IP)

		item := SuspectItem{
			IP:       d.IP,
			Location: d.Location(),
		}
		if d.Attempts != nil {
			item.Attempts = strconv.Itoa(*d.Attempts)
		}
		if d.HasCoordinates() {
			item.Coordinates = formatFloat(*d.Lat) + ", " + formatFloat(*d.Lon)
		}

		text := item.Location
		if text == "" {
			text = d.IP
		}
		if item.Coordinates != "" {
			text += " - lat/lon: " + item.Coordinates
		}
		item.Text = text
		items = append(items, item)
	}
	return "Suspect IPs: " + strings.Join(ips, ", "), items
}

func normalizeUserOps(ops map[string][]model.UserOperation) []OperationRow {
	if ops == nil {
		return nil
	}

	subjects := make([]string, 0, len(ops))
	for subject := range ops {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	rows := make([]OperationRow, 0)
	for _, subject := range subjects {
		for _, op := range ops[subject] {
			row := OperationRow{
				Timestamp: op.Timestamp.String(),
				Subject:   subject,
			}
			if op.Raw != nil {
				row.Raw = *op.Raw
			}
			if op.Explain != nil {
				row.Explain = *op.Explain
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func normalizeAccepted(events []model.AcceptedEvent) []AcceptedRow {
	rows := make([]AcceptedRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, AcceptedRow{
			Timestamp: e.Timestamp.String(),
			IP:        e.IP.String(),
			User:      e.User.String(),
			Port:      e.Port.String(),
		})
	}
	return rows
}

func normalizeIncidents(incidents []model.Incident) []IncidentRow {
	rows := make([]IncidentRow, 0, len(incidents))
	for _, inc := range incidents {
		users := make([]string, 0, len(inc.Users))
		for u := range inc.Users {
			users = append(users, u)
		}
		sort.Strings(users)
		for i, u := range users {
			users[i] = fmt.Sprintf("%s (%d)", u, inc.Users[u])
		}

		rows = append(rows, IncidentRow{
			IP:    inc.IP,
			Count: inc.Count,
			Start: inc.Start.String(),
			End:   inc.End.String(),
			Users: strings.Join(users, ", "),
		})
	}
	return rows
}

func intOrAbsent(v *int) string {
	if v == nil {
		return Absent
	}
	return strconv.Itoa(*v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
