package core

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
)

func TestBridgeStatus(t *testing.T) {
	tests := []struct {
		name      string
		completed string
		week      string
		want      string
	}{
		{"completed wins", "2024-05-01", "Week 3", StatusInspected},
		{"completed whitespace only", "   ", "Week 3", StatusScheduled},
		{"scheduled", "", "Week 12", StatusScheduled},
		{"unscheduled any case", "", "UnScheduled", StatusAssigned},
		{"unscheduled padded", "", "  unscheduled ", StatusAssigned},
		{"nothing set", "", "", StatusAssigned},
		{"blank week", "", "  ", StatusAssigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bridge{BIN: "1", Completed: tt.completed, Week: tt.week}
			if got := b.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBridgeJSON(t *testing.T) {
	b := Bridge{BIN: "1001", County: "Albany", Week: "Week 2", Lat: 42.65, Lon: -73.75}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if m["status"] != StatusScheduled {
		t.Errorf("status = %v, want %q", m["status"], StatusScheduled)
	}
	if m["bin"] != "1001" {
		t.Errorf("bin = %v, want %q", m["bin"], "1001")
	}
	if m["lat"] != 42.65 {
		t.Errorf("lat = %v, want 42.65", m["lat"])
	}
	for _, key := range TextKeys() {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing key %q", key)
		}
	}
	// bin, 18 text fields, lat, lon, status
	if len(m) != 22 {
		t.Errorf("JSON has %d keys, want 22", len(m))
	}
}

func TestFieldsTextAccessor(t *testing.T) {
	var b Bridge
	for _, key := range TextKeys() {
		p := b.Text(key)
		if p == nil {
			t.Fatalf("Text(%q) = nil", key)
		}
		*p = key
	}
	if b.FlagsInfo != "flags_info" || b.PrevGR != "prev_gr" || b.DueMonth != "due_month" {
		t.Errorf("Text pointers wrote to wrong fields: %+v", b)
	}
	if b.Text("lat") != nil || b.Text("bin") != nil || b.Text("status") != nil {
		t.Error("Text should be nil for non-text keys")
	}
}

func TestLookupColumn(t *testing.T) {
	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{"BIN", "bin", true},
		{" bin ", "bin", true},
		{"Latitude", "lat", true},
		{"LATITUDE", "lat", true},
		{"lat", "lat", true},
		{"Longitude", "lon", true},
		{"Date  Completed", "completed", true},
		{"Prev GR", "prev_gr", true},
		{"prev_gr", "prev_gr", true},
		{"Due Month", "due_month", true},
		{"Flags Info", "flags_info", true},
		{"Status", "", false},
		{"Inspector", "", false},
	}

	for _, tt := range tests {
		got, ok := LookupColumn(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LookupColumn(%q) = (%q, %v), want (%q, %v)", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr string
	}{
		{"empty", Payload{}, "No data provided"},
		{"missing bin", Payload{"county": "Albany"}, "BIN is required"},
		{"blank bin", Payload{"bin": "  "}, "BIN is required"},
		{"null bin", Payload{"bin": nil}, "BIN is required"},
		{"object bin", Payload{"bin": map[string]any{}}, "BIN must be a string"},
		{"bad lat", Payload{"bin": "1", "lat": "north"}, "Invalid latitude value"},
		{"null lat", Payload{"bin": "1", "lat": nil}, "Invalid latitude value"},
		{"bool lon", Payload{"bin": "1", "lon": true}, "Invalid longitude value"},
		{"nan lon", Payload{"bin": "1", "lon": "NaN"}, "Invalid longitude value"},
		{"array field", Payload{"bin": "1", "flags": []any{"a"}}, "Invalid value for flags"},
		{"numeric string lat", Payload{"bin": "1", "lat": " 42.5 "}, ""},
		{"numeric bin", Payload{"bin": float64(1001)}, ""},
		{"unknown keys ignored", Payload{"bin": "1", "inspector": map[string]any{}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePayload("create", tt.payload, true)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("parsePayload() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("parsePayload() expected %q", tt.wantErr)
			}
			if got := MapError(err).Message; got != tt.wantErr {
				t.Errorf("message = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestParsePayloadValues(t *testing.T) {
	p, err := parsePayload("create", Payload{
		"bin":    float64(1001),
		"lat":    "42.5",
		"lon":    float64(-73),
		"spans":  float64(3),
		"flags":  true,
		"issued": nil,
	}, true)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}

	if p.bin != "1001" {
		t.Errorf("bin = %q, want %q", p.bin, "1001")
	}
	var b Bridge
	p.update.Apply(&b)
	if b.Lat != 42.5 || b.Lon != -73 {
		t.Errorf("coords = (%v, %v), want (42.5, -73)", b.Lat, b.Lon)
	}
	if b.Spans != "3" {
		t.Errorf("spans = %q, want %q", b.Spans, "3")
	}
	if b.Flags != "true" {
		t.Errorf("flags = %q, want %q", b.Flags, "true")
	}
	if _, ok := p.update.Text["issued"]; !ok {
		t.Error("null issued should be an explicit empty assignment")
	}
}

func TestFeatureCollection(t *testing.T) {
	fc := FeatureCollection([]Bridge{
		{BIN: "1", Lat: 42.5, Lon: -73.75, Completed: "2024-01-15", County: "Albany"},
		{BIN: "2"},
	})
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}

	f := fc.Features[0]
	if f.ID != "1" {
		t.Errorf("ID = %v, want 1", f.ID)
	}
	if got := f.Geometry.(orb.Point); got.Lon() != -73.75 || got.Lat() != 42.5 {
		t.Errorf("point = %v", got)
	}
	if f.Properties["status"] != StatusInspected || f.Properties["county"] != "Albany" {
		t.Errorf("properties = %v", f.Properties)
	}
	if _, ok := f.Properties["due_month"]; !ok {
		t.Error("every text field should be a property")
	}
}
