package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/user/authlens/internal/model"
)

// CSVHeader is the header row of the accepted logins export.
var CSVHeader = []string{"time", "ip", "user", "port"}

// WriteAcceptedCSV writes the accepted login events of res as CSV.
func WriteAcceptedCSV(w io.Writer, res *model.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	var events []model.AcceptedEvent
	if res != nil {
		events = res.AcceptedEvents
	}
	for _, row := range normalizeAccepted(events) {
		if err := cw.Write([]string{row.Timestamp, row.IP, row.User, row.Port}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// AcceptedCSV returns the CSV export as bytes.
func AcceptedCSV(res *model.AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteAcceptedCSV(&buf, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IndentJSON pretty-prints a raw result document, keeping its key order and
// number text. Invalid input is returned as an error rather than passed through.
func IndentJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("invalid result document: %w", err)
	}
	return buf.Bytes(), nil
}
