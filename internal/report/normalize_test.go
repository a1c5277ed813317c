package report

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/user/authlens/internal/model"
)

func decode(t *testing.T, raw string) *model.AnalysisResult {
	t.Helper()
	var res model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return &res
}

func TestNormalize_Summary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "complete",
			raw:  `{"file":"auth.log","bruteforce":true,"stats":{"accepted_total":3,"failed_total":120}}`,
			want: "File: auth.log | Brute force: yes | Accepted logins: 3 | Failed logins: 120",
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: "File: - | Brute force: no | Accepted logins: - | Failed logins: -",
		},
		{
			name: "partial stats",
			raw:  `{"bruteforce":false,"stats":{"failed_total":0}}`,
			want: "File: - | Brute force: no | Accepted logins: - | Failed logins: 0",
		},
		{
			name: "null bruteforce",
			raw:  `{"bruteforce":null}`,
			want: "File: - | Brute force: no | Accepted logins: - | Failed logins: -",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Normalize(decode(t, tt.raw))
			if got := d.Summary.Line(); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_NilResult(t *testing.T) {
	d := Normalize(nil)
	if d.Summary.File != Absent {
		t.Errorf("File = %q", d.Summary.File)
	}
	if d.MapMode != MapNone {
		t.Errorf("MapMode = %s", d.MapMode)
	}
	if d.Accepted == nil || d.Points == nil {
		t.Error("tables should be empty, not nil")
	}
	if d.HasUserOps() {
		t.Error("user ops table should be hidden")
	}
}

func TestNormalize_Suspects(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		title     string
		texts     []string
		mode      MapMode
		numPoints int
	}{
		{
			name:  "absent",
			raw:   `{}`,
			title: "Suspect IPs: none",
			texts: []string{"none"},
			mode:  MapNone,
		},
		{
			name:  "empty",
			raw:   `{"suspects_detail":[]}`,
			title: "Suspect IPs: none",
			texts: []string{"none"},
			mode:  MapNone,
		},
		{
			name:      "located",
			raw:       `{"suspects_detail":[{"ip":"1.2.3.4","country":"CN","region":"Beijing","city":"Beijing","lat":39.9,"lon":116.4}]}`,
			title:     "Suspect IPs: 1.2.3.4",
			texts:     []string{"CN / Beijing / Beijing - lat/lon: 39.9, 116.4"},
			mode:      MapPoints,
			numPoints: 1,
		},
		{
			name:  "no coordinates",
			raw:   `{"suspects_detail":[{"ip":"5.6.7.8","country":"US"},{"ip":"9.9.9.9"}]}`,
			title: "Suspect IPs: 5.6.7.8, 9.9.9.9",
			texts: []string{"US", "9.9.9.9"},
			mode:  MapWorld,
		},
		{
			name:      "partial coordinates",
			raw:       `{"suspects_detail":[{"ip":"1.1.1.1","lat":10},{"ip":"2.2.2.2","city":"Oslo","lat":59.9,"lon":10.75}]}`,
			title:     "Suspect IPs: 1.1.1.1, 2.2.2.2",
			texts:     []string{"1.1.1.1", "Oslo - lat/lon: 59.9, 10.75"},
			mode:      MapPoints,
			numPoints: 1,
		},
		{
			name:  "empty location parts skipped",
			raw:   `{"suspects_detail":[{"ip":"3.3.3.3","country":"DE","region":"","city":"Berlin"}]}`,
			title: "Suspect IPs: 3.3.3.3",
			texts: []string{"DE / Berlin"},
			mode:  MapWorld,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Normalize(decode(t, tt.raw))
			if d.SuspectTitle != tt.title {
				t.Errorf("title = %q, want %q", d.SuspectTitle, tt.title)
			}
			var texts []string
			for _, s := range d.Suspects {
				texts = append(texts, s.Text)
			}
			if !reflect.DeepEqual(texts, tt.texts) {
				t.Errorf("texts = %q, want %q", texts, tt.texts)
			}
			if d.MapMode != tt.mode {
				t.Errorf("mode = %s, want %s", d.MapMode, tt.mode)
			}
			if len(d.Points) != tt.numPoints {
				t.Errorf("points = %d, want %d", len(d.Points), tt.numPoints)
			}
		})
	}
}

func TestNormalize_PlaceholderFlag(t *testing.T) {
	d := Normalize(decode(t, `{}`))
	if len(d.Suspects) != 1 || !d.Suspects[0].Placeholder {
		t.Errorf("expected one placeholder item, got %+v", d.Suspects)
	}
}

func TestNormalize_UserOps(t *testing.T) {
	t.Run("absent hides table", func(t *testing.T) {
		d := Normalize(decode(t, `{}`))
		if d.HasUserOps() {
			t.Error("table should be hidden")
		}
	})

	t.Run("empty shows empty table", func(t *testing.T) {
		d := Normalize(decode(t, `{"user_operations":{}}`))
		if !d.HasUserOps() || len(d.UserOps) != 0 {
			t.Errorf("want empty visible table, got %+v", d.UserOps)
		}
	})

	t.Run("grouped by subject in lexical order", func(t *testing.T) {
		d := Normalize(decode(t, `{"user_operations":{
			"root":[{"timestamp":"10:00","raw":"sudo -i"},{"timestamp":"10:05","raw":"passwd","explain":"password change"}],
			"alice":[{"timestamp":1700000000,"raw":"su root"}],
			"bob":[]
		}}`))
		want := []OperationRow{
			{Timestamp: "1700000000", Subject: "alice", Raw: "su root"},
			{Timestamp: "10:00", Subject: "root", Raw: "sudo -i"},
			{Timestamp: "10:05", Subject: "root", Raw: "passwd", Explain: "password change"},
		}
		if !reflect.DeepEqual(d.UserOps, want) {
			t.Errorf("rows = %+v\nwant %+v", d.UserOps, want)
		}
	})
}

func TestNormalize_AcceptedAndIncidents(t *testing.T) {
	d := Normalize(decode(t, `{
		"accepted_events":[{"timestamp":"Jan 1 00:00:01","ip":"10.0.0.2","user":"deploy","port":2222}],
		"incidents":[{"ip":"1.2.3.4","count":30,"start":"00:00","end":"00:02","users":{"root":25,"admin":5}}]
	}`))

	wantAccepted := []AcceptedRow{{Timestamp: "Jan 1 00:00:01", IP: "10.0.0.2", User: "deploy", Port: "2222"}}
	if !reflect.DeepEqual(d.Accepted, wantAccepted) {
		t.Errorf("accepted = %+v", d.Accepted)
	}

	if len(d.Incidents) != 1 {
		t.Fatalf("incidents = %+v", d.Incidents)
	}
	if got := d.Incidents[0].Users; got != "admin (5), root (25)" {
		t.Errorf("incident users = %q", got)
	}
}

func TestNormalize_Pure(t *testing.T) {
	res := decode(t, `{"suspects_detail":[{"ip":"1.2.3.4","lat":1,"lon":2}],"user_operations":{"b":[],"a":[]}}`)
	first := Normalize(res)
	second := Normalize(res)
	if !reflect.DeepEqual(first, second) {
		t.Error("Normalize should be deterministic")
	}
}
