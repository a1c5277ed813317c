package model

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestScalar_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Scalar
		wantErr bool
	}{
		{"string", `"2024-01-02 10:00:00"`, "2024-01-02 10:00:00", false},
		{"integer", `22`, "22", false},
		{"float", `1.5`, "1.5", false},
		{"bool", `true`, "true", false},
		{"null", `null`, "", false},
		{"object", `{"a":1}`, "", true},
		{"array", `[1]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Scalar
			err := json.Unmarshal([]byte(tt.in), &s)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s != tt.want {
				t.Errorf("got %q, want %q", s, tt.want)
			}
		})
	}
}

func TestAnalysisResult_AbsentVersusEmpty(t *testing.T) {
	var absent AnalysisResult
	if err := json.Unmarshal([]byte(`{}`), &absent); err != nil {
		t.Fatal(err)
	}
	if absent.AcceptedEvents != nil || absent.SuspectsDetail != nil || absent.UserOperations != nil {
		t.Error("absent keys should decode to nil")
	}

	var empty AnalysisResult
	if err := json.Unmarshal([]byte(`{"accepted_events":[],"suspects_detail":[],"user_operations":{}}`), &empty); err != nil {
		t.Fatal(err)
	}
	if empty.AcceptedEvents == nil {
		t.Error("empty accepted_events should decode to a non-nil slice")
	}
	if empty.UserOperations == nil {
		t.Error("empty user_operations should decode to a non-nil map")
	}
}

func TestAnalysisResult_DecodeFull(t *testing.T) {
	raw := `{
		"file": "auth.log",
		"bruteforce": true,
		"stats": {"accepted_total": 2, "failed_total": 40},
		"accepted_events": [{"timestamp": "Jan 2 10:00:00", "ip": "10.0.0.1", "user": "root", "port": 22}],
		"suspects_detail": [{"ip": "1.2.3.4", "attempts": 12, "country": "DE", "city": "Berlin", "lat": 52.52, "lon": 13.4}],
		"user_operations": {"root": [{"timestamp": "Jan 2 10:01:00", "raw": "sudo su"}]},
		"incidents": [{"ip": "1.2.3.4", "count": 12, "start": "10:00", "end": "10:05", "users": {"root": 10, "admin": 2}}]
	}`

	var res AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatal(err)
	}

	if res.File == nil || *res.File != "auth.log" {
		t.Errorf("file = %v", res.File)
	}
	if res.AcceptedEvents[0].Port != "22" {
		t.Errorf("numeric port should be kept as text, got %q", res.AcceptedEvents[0].Port)
	}
	if got := res.SuspectsDetail[0].Location(); got != "DE / Berlin" {
		t.Errorf("Location() = %q, want %q", got, "DE / Berlin")
	}
	if res.Incidents[0].Users["admin"] != 2 {
		t.Errorf("incident users = %v", res.Incidents[0].Users)
	}
	if err := res.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestMapPoints(t *testing.T) {
	lat, lon := 48.85, 2.35
	country := "FR"
	res := &AnalysisResult{
		SuspectsDetail: []SuspectDetail{
			{IP: "1.1.1.1", Country: &country, Lat: &lat, Lon: &lon},
			{IP: "2.2.2.2", Lat: &lat},
			{IP: "3.3.3.3", Lat: &lat, Lon: &lon},
		},
	}

	got := res.MapPoints()
	want := []MapPoint{
		{Lat: 48.85, Lon: 2.35, Label: "FR"},
		{Lat: 48.85, Lon: 2.35, Label: "3.3.3.3"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapPoints() = %+v, want %+v", got, want)
	}

	var nilRes *AnalysisResult
	if pts := nilRes.MapPoints(); pts != nil {
		t.Errorf("nil result should have no points, got %v", pts)
	}
}

func TestValidate_Missing(t *testing.T) {
	accepted := 1
	res := &AnalysisResult{Stats: &Stats{AcceptedTotal: &accepted}}

	err := res.Validate()
	var me *MalformedResultError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedResultError, got %v", err)
	}
	want := []string{"stats.failed_total", "accepted_events"}
	if !reflect.DeepEqual(me.Missing, want) {
		t.Errorf("Missing = %v, want %v", me.Missing, want)
	}

	var nilRes *AnalysisResult
	if err := nilRes.Validate(); err == nil {
		t.Error("nil result should be malformed")
	}
}

func TestTaskStatus_Done(t *testing.T) {
	for _, s := range []TaskStatus{"pending", "queued", "running", ""} {
		if s.Done() {
			t.Errorf("%q should not be done", s)
		}
	}
	if !StatusDone.Done() {
		t.Error("done should be done")
	}
}

func TestAnalysisResult_TolerantNumbers(t *testing.T) {
	raw := `{
		"stats": {"accepted_total": "3", "failed_total": "n/a"},
		"accepted_events": [],
		"suspects_detail": [
			{"ip": "1.2.3.4", "attempts": "7", "lat": "1.5", "lon": 2},
			{"ip": "5.6.7.8", "lat": true, "lon": {"x": 1}}
		],
		"incidents": [{"ip": "1.2.3.4", "count": "4", "users": {"root": "2", "admin": "many"}}]
	}`

	var res AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("wrongly typed fields should not fail the result: %v", err)
	}

	if res.Stats.AcceptedTotal == nil || *res.Stats.AcceptedTotal != 3 {
		t.Errorf("accepted_total = %v", res.Stats.AcceptedTotal)
	}
	if res.Stats.FailedTotal != nil {
		t.Errorf("non-numeric failed_total should be absent, got %d", *res.Stats.FailedTotal)
	}

	located := res.SuspectsDetail[0]
	if !located.HasCoordinates() || *located.Lat != 1.5 || *located.Lon != 2 || *located.Attempts != 7 {
		t.Errorf("suspect = %+v", located)
	}
	if res.SuspectsDetail[1].HasCoordinates() {
		t.Error("non-numeric coordinates should be absent")
	}
	if got := res.MapPoints(); len(got) != 1 {
		t.Errorf("MapPoints = %+v", got)
	}

	inc := res.Incidents[0]
	if inc.Count != 4 || inc.Users["root"] != 2 {
		t.Errorf("incident = %+v", inc)
	}
	if _, ok := inc.Users["admin"]; ok {
		t.Error("unparseable user count should be dropped")
	}
}

func TestProgressReport_StringProgress(t *testing.T) {
	var rep ProgressReport
	if err := json.Unmarshal([]byte(`{"status":"running","progress":"40"}`), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Status != "running" || rep.Progress == nil || *rep.Progress != 40 {
		t.Errorf("report = %+v", rep)
	}

	rep = ProgressReport{}
	if err := json.Unmarshal([]byte(`{"status":"done","progress":null}`), &rep); err != nil {
		t.Fatal(err)
	}
	if !rep.Status.Done() || rep.Progress != nil {
		t.Errorf("report = %+v", rep)
	}
}
