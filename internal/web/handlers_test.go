package web

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/storage"
	"github.com/user/authlens/internal/util"
)

const sampleResult = `{
	"file": "auth.log",
	"bruteforce": true,
	"stats": {"accepted_total": 1, "failed_total": 42},
	"accepted_events": [{"timestamp": "Jan 2 11:00:00", "ip": "10.0.0.9", "user": "deploy", "port": 2222}],
	"suspects_detail": [
		{"ip": "1.2.3.4", "country": "DE", "city": "Berlin", "lat": 52.52, "lon": 13.405},
		{"ip": "5.6.7.8", "country": "US", "lat": 40.7, "lon": -74.0}
	],
	"user_operations": {}
}`

func newTestServer(t *testing.T, token string) (http.Handler, *storage.RunStorage) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), storage.DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := util.DefaultConfig()
	cfg.Token = token

	return NewServer(db, cfg, 0).Handler(), storage.NewRunStorage(db)
}

func seedRun(t *testing.T, runs *storage.RunStorage, taskID, raw string) {
	t.Helper()
	var res model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatal(err)
	}
	run, err := storage.NewRun(taskID, "http://backend", time.Now(), &res)
	if err != nil {
		t.Fatal(err)
	}
	if err := runs.Save(run); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, "secret")

	rec := get(t, h, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestDashboard_Empty(t *testing.T) {
	h, _ := newTestServer(t, "")

	rec := get(t, h, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Nothing to show") {
		t.Error("empty history should show the empty state")
	}
	if strings.Contains(body, "const mapData") {
		t.Error("empty state should not create a map")
	}
}

func TestDashboard_RendersLatestRun(t *testing.T) {
	h, runs := newTestServer(t, "")
	seedRun(t, runs, "task-1", sampleResult)

	rec := get(t, h, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"File: auth.log | Brute force: yes | Accepted logins: 1 | Failed logins: 42",
		"Suspect IPs: 1.2.3.4, 5.6.7.8",
		"DE / Berlin",
		"/download/csv/task-1",
		"const mapData",
		"fitBounds",
		"deploy",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDashboard_UnknownTask(t *testing.T) {
	h, runs := newTestServer(t, "")
	seedRun(t, runs, "task-1", sampleResult)

	rec := get(t, h, "/?task=missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDownloads(t *testing.T) {
	h, runs := newTestServer(t, "")
	seedRun(t, runs, "task-1", sampleResult)

	t.Run("csv", func(t *testing.T) {
		rec := get(t, h, "/download/csv/task-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		want := "time,ip,user,port\nJan 2 11:00:00,10.0.0.9,deploy,2222\n"
		if rec.Body.String() != want {
			t.Errorf("csv = %q, want %q", rec.Body.String(), want)
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="task-1.csv"` {
			t.Errorf("Content-Disposition = %q", cd)
		}
	})

	t.Run("json", func(t *testing.T) {
		rec := get(t, h, "/download/json/task-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if doc["file"] != "auth.log" {
			t.Errorf("file = %v", doc["file"])
		}
		if !strings.Contains(rec.Body.String(), "\n  ") {
			t.Error("json download should be indented")
		}
	})

	t.Run("markdown", func(t *testing.T) {
		rec := get(t, h, "/download/markdown/task-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Body.String(), "# Auth Log Analysis Report") {
			t.Errorf("markdown = %q", rec.Body.String())
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		for _, kind := range []string{"json", "csv", "markdown"} {
			rec := get(t, h, "/download/"+kind+"/nope", nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s: status = %d, want 404", kind, rec.Code)
			}
		}
	})
}

func TestAPIReport(t *testing.T) {
	h, runs := newTestServer(t, "")

	rec := get(t, h, "/api/report", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty history: status = %d, want 404", rec.Code)
	}

	seedRun(t, runs, "task-1", sampleResult)

	rec = get(t, h, "/api/report?task=task-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view struct {
		TaskID string `json:"task_id"`
		Map    *struct {
			Markers []struct {
				Popup string `json:"popup"`
			} `json:"markers"`
		} `json:"map"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.TaskID != "task-1" || view.Map == nil || len(view.Map.Markers) != 2 {
		t.Errorf("view = %+v", view)
	}
}

func TestAPIRuns(t *testing.T) {
	h, runs := newTestServer(t, "")

	rec := get(t, h, "/api/runs", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty runs = %q", rec.Body.String())
	}

	seedRun(t, runs, "task-1", sampleResult)
	rec = get(t, h, "/api/runs", nil)

	var list []model.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TaskID != "task-1" || list[0].SuspectCount != 2 {
		t.Errorf("runs = %+v", list)
	}
}

func TestRequireToken(t *testing.T) {
	h, runs := newTestServer(t, "secret")
	seedRun(t, runs, "task-1", sampleResult)

	tests := []struct {
		name   string
		target string
		header map[string]string
		want   int
	}{
		{"missing", "/download/csv/task-1", nil, http.StatusUnauthorized},
		{"wrong", "/download/csv/task-1?token=nope", nil, http.StatusUnauthorized},
		{"query", "/download/csv/task-1?token=secret", nil, http.StatusOK},
		{"header", "/download/csv/task-1", map[string]string{"X-Token": "secret"}, http.StatusOK},
		{"dashboard", "/", nil, http.StatusUnauthorized},
		{"health is open", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDashboard_TokenPropagatesToLinks(t *testing.T) {
	h, runs := newTestServer(t, "secret")
	seedRun(t, runs, "task-1", sampleResult)

	rec := get(t, h, "/?token=secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/download/json/task-1?token=secret") {
		t.Error("download links should carry the token")
	}
}

func TestDashboard_EscapesBackendLabels(t *testing.T) {
	h, runs := newTestServer(t, "")
	seedRun(t, runs, "task-1", `{
		"stats": {"accepted_total": 0, "failed_total": 1},
		"accepted_events": [],
		"suspects_detail": [{"ip": "1.2.3.4", "city": "<img src=x onerror=alert(1)>", "lat": 1, "lon": 2}]
	}`)

	rec := get(t, h, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<img src=x") {
		t.Error("backend label reached the page unescaped")
	}
	if !strings.Contains(body, "label.textContent = m.popup") || strings.Contains(body, "bindPopup(m.popup)") {
		t.Error("marker popups should be set as text, not HTML")
	}
}
