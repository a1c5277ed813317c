package tui

import (
	"fmt"
	"strings"

	"github.com/user/authlens/internal/report"
)

// Dashboard is the main dashboard view.
type Dashboard struct {
	m uiModel
}

// NewDashboard creates a dashboard for the current model state.
func NewDashboard(m uiModel) *Dashboard {
	return &Dashboard{m: m}
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	m := d.m
	var sb strings.Builder

	width := m.width
	if width <= 0 {
		width = 80
	}
	sb.WriteString(HeaderStyle.Width(width).Render("AuthLens"))
	sb.WriteString("\n\n")

	sb.WriteString(d.renderStatusLine())
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	}

	if m.phase == phaseDone && m.view != nil {
		sb.WriteString("\n")
		sb.WriteString(m.viewport.View())
		sb.WriteString("\n")
	}

	sb.WriteString(HelpStyle.Render("'r' resubmit • 'esc' reset • ↑/↓ scroll • 'q' quit"))
	return sb.String()
}

func (d *Dashboard) renderStatusLine() string {
	m := d.m
	task := "-"
	if m.handle != nil {
		task = m.handle.TaskID
	}

	var status string
	switch m.phase {
	case phaseUploading:
		status = m.spinner.View() + " Uploading " + m.app.path
	case phasePolling:
		status = m.spinner.View() + " Analyzing"
	case phaseFetching:
		status = m.spinner.View() + " Fetching result"
	case phaseDone:
		status = SuccessStyle.Render("✓ Done")
	default:
		status = DimStyle.Render("Idle")
	}

	return fmt.Sprintf("%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Task:"), ValueStyle.Render(task),
		LabelStyle.Render("Status:"), status,
		LabelStyle.Render("Progress:"), m.progress.ViewAs(m.app.meter.Percent()),
	)
}

// RenderReport renders a report view as styled terminal text.
func RenderReport(view *report.View, width int) string {
	sectionWidth := width - 4
	if sectionWidth < 40 {
		sectionWidth = 40
	}

	d := view.Display
	var sections []string

	summary := d.Summary
	content := fmt.Sprintf("%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("File:"), ValueStyle.Render(summary.File),
		LabelStyle.Render("Brute force:"), RenderStatus(summary.Bruteforce != "yes", "no", "yes"),
		LabelStyle.Render("Accepted:"), ValueStyle.Render(summary.Accepted),
		LabelStyle.Render("Failed:"), ValueStyle.Render(summary.Failed),
	)
	if view.Warning != "" {
		content += "\n" + WarningStyle.Render(view.Warning)
	}
	sections = append(sections, SectionStyle.Width(sectionWidth).Render(
		SectionTitleStyle.Render("Summary")+"\n"+content))

	sections = append(sections, SectionStyle.Width(sectionWidth).Render(
		SectionTitleStyle.Render(d.SuspectTitle)+"\n"+renderSuspects(d, view.Map)))

	if len(d.Incidents) > 0 {
		sections = append(sections, SectionStyle.Width(sectionWidth).Render(
			SectionTitleStyle.Render("Brute-force Incidents")+"\n"+renderIncidents(d.Incidents)))
	}

	if d.HasUserOps() {
		sections = append(sections, SectionStyle.Width(sectionWidth).Render(
			SectionTitleStyle.Render("User Operations")+"\n"+renderUserOps(d.UserOps)))
	}

	sections = append(sections, SectionStyle.Width(sectionWidth).Render(
		SectionTitleStyle.Render("Accepted Logins")+"\n"+renderAccepted(d.Accepted)))

	return strings.Join(sections, "\n")
}

func renderSuspects(d *report.Display, m *report.Map) string {
	var rows []string
	for _, s := range d.Suspects {
		if s.Placeholder {
			rows = append(rows, DimStyle.Render(s.Text))
			continue
		}
		line := SuspectStyle.Render("● ") + s.Text
		if s.Attempts != "" {
			line += DimStyle.Render(fmt.Sprintf(" (%s attempts)", s.Attempts))
		}
		rows = append(rows, line)
	}

	if m != nil {
		rows = append(rows, "", MapStyle.Render(describeMap(m)))
	}
	return strings.Join(rows, "\n")
}

func describeMap(m *report.Map) string {
	if m.Bounds != nil {
		return fmt.Sprintf("Map: %d markers, bounds (%.4f, %.4f) to (%.4f, %.4f), padding %dpx",
			len(m.Markers),
			m.Bounds.SouthWest.Lat, m.Bounds.SouthWest.Lon,
			m.Bounds.NorthEast.Lat, m.Bounds.NorthEast.Lon,
			m.Padding[0])
	}
	if len(m.Markers) == 0 {
		return fmt.Sprintf("Map: world view (%.0f, %.0f) zoom %d", m.Center.Lat, m.Center.Lon, m.Zoom)
	}
	return fmt.Sprintf("Map: %s at (%.4f, %.4f) zoom %d", m.Markers[0].Popup, m.Center.Lat, m.Center.Lon, m.Zoom)
}

func renderIncidents(incidents []report.IncidentRow) string {
	rows := []string{
		fmt.Sprintf("%-18s %-8s %-20s %s", "IP", "Count", "Window", "Users"),
		strings.Repeat("─", 70),
	}
	for _, inc := range incidents {
		rows = append(rows, fmt.Sprintf("%-18s %-8d %-20s %s",
			inc.IP, inc.Count, inc.Start+" → "+inc.End, inc.Users))
	}
	return strings.Join(rows, "\n")
}

func renderUserOps(ops []report.OperationRow) string {
	if len(ops) == 0 {
		return DimStyle.Render("No user operations")
	}
	rows := []string{
		fmt.Sprintf("%-20s %-12s %s", "Time", "User", "Raw log"),
		strings.Repeat("─", 70),
	}
	for _, op := range ops {
		rows = append(rows, fmt.Sprintf("%-20s %-12s %s", op.Timestamp, truncate(op.Subject, 12), op.Raw))
	}
	return strings.Join(rows, "\n")
}

func renderAccepted(accepted []report.AcceptedRow) string {
	if len(accepted) == 0 {
		return DimStyle.Render("No accepted logins")
	}
	rows := []string{
		fmt.Sprintf("%-20s %-18s %-12s %s", "Time", "IP", "User", "Port"),
		strings.Repeat("─", 60),
	}
	for i, a := range accepted {
		line := fmt.Sprintf("%-20s %-18s %-12s %s", a.Timestamp, a.IP, truncate(a.User, 12), a.Port)
		if i%2 == 1 {
			line = TableRowAltStyle.Render(line)
		}
		rows = append(rows, line)
	}
	return strings.Join(rows, "\n")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
