package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const fullResult = `{
	"file": "auth.log",
	"bruteforce": true,
	"stats": {"accepted_total": 2, "failed_total": 57},
	"accepted_events": [
		{"timestamp": "Jan 2 10:00:00", "ip": "10.0.0.1", "user": "root", "port": 22},
		{"timestamp": "Jan 2 11:00:00", "ip": "10.0.0.9", "user": "deploy", "port": "2222"}
	],
	"suspects_detail": [
		{"ip": "1.2.3.4", "attempts": 40, "country": "DE", "city": "Berlin", "lat": 52.52, "lon": 13.405},
		{"ip": "5.6.7.8", "attempts": 17}
	],
	"user_operations": {"root": [{"timestamp": "Jan 2 10:01:00", "raw": "sudo | tee"}]},
	"incidents": [{"ip": "1.2.3.4", "count": 40, "start": "10:00", "end": "10:03", "users": {"root": 38, "admin user": 2}}]
}`

func TestFormatMarkdown(t *testing.T) {
	res := decode(t, fullResult)
	view := NewRenderer(NewMapView(testTileURL), nil).Render("task-1234567890", res)
	data := NewReportData(view, res, "http://127.0.0.1:5000")
	data.GeneratedAt = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	md := FormatMarkdown(data)

	for _, want := range []string{
		"# Auth Log Analysis Report",
		"- Task: `task-1234567890`",
		"File: auth.log | Brute force: yes | Accepted logins: 2 | Failed logins: 57",
		"pie title Login outcomes",
		"\"Failed\" : 57",
		"Suspect IPs: 1.2.3.4, 5.6.7.8",
		"- DE / Berlin - lat/lon: 52.52, 13.405 (40 attempts)",
		"- 5.6.7.8 (17 attempts)",
		"| 1.2.3.4 | 40 | 10:00 | 10:03 | admin user (2), root (38) |",
		"flowchart LR",
		"| Jan 2 10:01:00 | root | sudo \\| tee |",
		"| Jan 2 11:00:00 | 10.0.0.9 | deploy | 2222 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestFormatMarkdown_Minimal(t *testing.T) {
	res := decode(t, `{}`)
	view := NewRenderer(NewMapView(testTileURL), nil).Render("t", res)
	md := FormatMarkdown(NewReportData(view, res, ""))

	if strings.Contains(md, "pie title") {
		t.Error("pie chart should be omitted without counters")
	}
	if strings.Contains(md, "## User Operations") {
		t.Error("user operations section should be hidden")
	}
	if !strings.Contains(md, "> Warning: malformed result") {
		t.Error("malformed warning missing")
	}
	if !strings.Contains(md, "_No accepted logins._") {
		t.Error("empty accepted table note missing")
	}
}

func TestWriteMarkdownFile(t *testing.T) {
	res := decode(t, fullResult)
	view := NewRenderer(NewMapView(testTileURL), nil).Render("abcdef1234", res)
	data := NewReportData(view, res, "")
	data.GeneratedAt = time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

	dir := filepath.Join(t.TempDir(), "reports")
	path, err := WriteMarkdownFile(data, dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "authlens-20240304-050607-abcdef12.md" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(content, []byte("## Accepted Logins")) {
		t.Error("written report incomplete")
	}
}

func TestGenerateAttackGraph(t *testing.T) {
	res := decode(t, `{"incidents":[
		{"ip":"1.2.3.4","count":5,"users":{"root":3}},
		{"ip":"1.2.3.4","count":2,"users":{"root":2,"bob":1}},
		{"ip":"::1","count":1,"users":{}}
	]}`)

	graph := GenerateAttackGraph(res.Incidents)
	for _, want := range []string{
		"IP1_2_3_4[1.2.3.4]:::suspect",
		"IP__1[::1]:::suspect",
		"U_root([root])",
		"IP1_2_3_4 -->|5| U_root",
		"IP1_2_3_4 -->|1| U_bob",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}

	if GenerateAttackGraph(nil) != "" {
		t.Error("no incidents should give no graph")
	}
}

func TestAcceptedCSV(t *testing.T) {
	body, err := AcceptedCSV(decode(t, fullResult))
	if err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"time", "ip", "user", "port"},
		{"Jan 2 10:00:00", "10.0.0.1", "root", "22"},
		{"Jan 2 11:00:00", "10.0.0.9", "deploy", "2222"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v", records)
	}

	empty, err := AcceptedCSV(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(empty) != "time,ip,user,port\n" {
		t.Errorf("empty export = %q", empty)
	}
}

func TestIndentJSON(t *testing.T) {
	out, err := IndentJSON([]byte(`{"file":"a.log","stats":{"failed_total":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "\n  \"file\": \"a.log\"") {
		t.Errorf("output not indented:\n%s", out)
	}

	if _, err := IndentJSON([]byte("{broken")); err == nil {
		t.Error("invalid input should fail")
	}
}

func TestIndentJSON_KeepsDocumentVerbatim(t *testing.T) {
	out, err := IndentJSON([]byte(`{"zeta":1,"alpha":12345678901234567890,"ratio":0.10}`))
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"zeta\": 1,\n  \"alpha\": 12345678901234567890,\n  \"ratio\": 0.10\n}"
	if string(out) != want {
		t.Errorf("got\n%s\nwant\n%s", out, want)
	}
}
