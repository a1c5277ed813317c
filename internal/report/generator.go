package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/util"
)

// ReportData holds everything written to an exported report.
type ReportData struct {
	GeneratedAt time.Time
	TaskID      string
	Server      string
	View        *View
	Incidents   []model.Incident
}

// NewReportData bundles a rendered view with its raw result.
func NewReportData(view *View, res *model.AnalysisResult, server string) *ReportData {
	data := &ReportData{
		GeneratedAt: time.Now(),
		Server:      server,
		View:        view,
	}
	if view != nil {
		data.TaskID = view.TaskID
	}
	if res != nil {
		data.Incidents = res.Incidents
	}
	return data
}

// FormatMarkdown renders the report as Markdown.
func FormatMarkdown(data *ReportData) string {
	var sb strings.Builder
	d := data.View.Display

	sb.WriteString("# Auth Log Analysis Report\n\n")
	sb.WriteString(fmt.Sprintf("- Generated: %s\n", data.GeneratedAt.Format("2006-01-02 15:04:05")))
	if data.TaskID != "" {
		sb.WriteString(fmt.Sprintf("- Task: `%s`\n", data.TaskID))
	}
	if data.Server != "" {
		sb.WriteString(fmt.Sprintf("- Backend: %s\n", data.Server))
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString(d.Summary.Line() + "\n\n")
	if data.View.Warning != "" {
		sb.WriteString(fmt.Sprintf("> Warning: %s\n\n", data.View.Warning))
	}
	if pie := GenerateLoginPie(d.Summary); pie != "" {
		sb.WriteString(pie + "\n")
	}

	sb.WriteString("## Suspects\n\n")
	sb.WriteString(d.SuspectTitle + "\n\n")
	for _, s := range d.Suspects {
		sb.WriteString("- " + mdEscape(s.Text))
		if s.Attempts != "" {
			sb.WriteString(fmt.Sprintf(" (%s attempts)", s.Attempts))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if m := data.View.Map; m != nil {
		sb.WriteString(fmt.Sprintf("Map: %d marker(s)", len(m.Markers)))
		if m.Bounds != nil {
			sb.WriteString(fmt.Sprintf(", bounds %s,%s to %s,%s",
				formatFloat(m.Bounds.SouthWest.Lat), formatFloat(m.Bounds.SouthWest.Lon),
				formatFloat(m.Bounds.NorthEast.Lat), formatFloat(m.Bounds.NorthEast.Lon)))
		} else {
			sb.WriteString(fmt.Sprintf(", center %s,%s zoom %d",
				formatFloat(m.Center.Lat), formatFloat(m.Center.Lon), m.Zoom))
		}
		sb.WriteString("\n\n")
	}

	if len(d.Incidents) > 0 {
		sb.WriteString("## Brute-force Incidents\n\n")
		sb.WriteString("| IP | Attempts | Start | End | Users |\n")
		sb.WriteString("|----|----------|-------|-----|-------|\n")
		for _, inc := range d.Incidents {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s |\n",
				inc.IP, inc.Count, inc.Start, inc.End, mdEscape(inc.Users)))
		}
		sb.WriteString("\n")
		if graph := GenerateAttackGraph(data.Incidents); graph != "" {
			sb.WriteString(graph + "\n")
		}
	}

	if d.HasUserOps() {
		sb.WriteString("## User Operations\n\n")
		sb.WriteString("| Time | User | Raw log |\n")
		sb.WriteString("|------|------|---------|\n")
		for _, op := range d.UserOps {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				mdEscape(op.Timestamp), mdEscape(op.Subject), mdEscape(op.Raw)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Accepted Logins\n\n")
	sb.WriteString("| Time | IP | User | Port |\n")
	sb.WriteString("|------|----|------|------|\n")
	for _, a := range d.Accepted {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			mdEscape(a.Timestamp), mdEscape(a.IP), mdEscape(a.User), mdEscape(a.Port)))
	}
	if len(d.Accepted) == 0 {
		sb.WriteString("\n_No accepted logins._\n")
	}

	return sb.String()
}

// WriteMarkdownFile writes the report into dir and returns its path.
func WriteMarkdownFile(data *ReportData, dir string) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	name := fmt.Sprintf("authlens-%s.md", data.GeneratedAt.Format("20060102-150405"))
	if data.TaskID != "" {
		name = fmt.Sprintf("authlens-%s-%s.md", data.GeneratedAt.Format("20060102-150405"), shortID(data.TaskID))
	}
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(FormatMarkdown(data)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
