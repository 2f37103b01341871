package core

import (
	"encoding/json"
	"strings"
)

// Inspection statuses derived by [Bridge.Status].
const (
	StatusInspected = "Inspected"
	StatusScheduled = "Scheduled"
	StatusAssigned  = "Assigned"
)

// Bridge is one inspection record. BIN is the immutable key.
type Bridge struct {
	BIN         string  `json:"bin"`
	Region      string  `json:"region"`
	County      string  `json:"county"`
	Due         string  `json:"due"`
	Completed   string  `json:"completed"`
	Week        string  `json:"week"`
	Flags       string  `json:"flags"`
	FlagsInfo   string  `json:"flags_info"`
	Posting     string  `json:"posting"`
	PostingInfo string  `json:"posting_info"`
	Access      string  `json:"access"`
	AccessInfo  string  `json:"access_info"`
	SPE         string  `json:"spe"`
	Stds        string  `json:"stds"`
	FieldTime   string  `json:"field_time"`
	DueMonth    string  `json:"due_month"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Spans       string  `json:"spans"`
	PrevGR      string  `json:"prev_gr"`
	Issued      string  `json:"issued"`
}

// Status derives the inspection state from completed and week.
func (b Bridge) Status() string {
	if strings.TrimSpace(b.Completed) != "" {
		return StatusInspected
	}
	week := strings.TrimSpace(b.Week)
	if week != "" && !strings.EqualFold(week, "unscheduled") {
		return StatusScheduled
	}
	return StatusAssigned
}

// MarshalJSON adds the derived status to the record.
func (b Bridge) MarshalJSON() ([]byte, error) {
	type plain Bridge
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
	}{plain(b), b.Status()})
}

// Text returns a pointer to the descriptive field named key, or nil when
// key is not a descriptive field. Stores scan into these pointers.
func (b *Bridge) Text(key string) *string {
	switch key {
	case "region":
		return &b.Region
	case "county":
		return &b.County
	case "due":
		return &b.Due
	case "completed":
		return &b.Completed
	case "week":
		return &b.Week
	case "flags":
		return &b.Flags
	case "flags_info":
		return &b.FlagsInfo
	case "posting":
		return &b.Posting
	case "posting_info":
		return &b.PostingInfo
	case "access":
		return &b.Access
	case "access_info":
		return &b.AccessInfo
	case "spe":
		return &b.SPE
	case "stds":
		return &b.Stds
	case "field_time":
		return &b.FieldTime
	case "due_month":
		return &b.DueMonth
	case "spans":
		return &b.Spans
	case "prev_gr":
		return &b.PrevGR
	case "issued":
		return &b.Issued
	}
	return nil
}

// FieldKind distinguishes free-text fields from coordinates.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldCoord
)

// Field describes one writable record field.
type Field struct {
	Key   string   // JSON key and storage column
	Label string   // spreadsheet header
	Alias []string // additional spreadsheet headers
	Kind  FieldKind
}

// Fields is the allow-list of writable fields, in column order.
// BIN is the key and is not listed.
var Fields = []Field{
	{Key: "lat", Label: "Latitude", Alias: []string{"Lat"}, Kind: FieldCoord},
	{Key: "lon", Label: "Longitude", Alias: []string{"Lon", "Long", "Lng"}, Kind: FieldCoord},
	{Key: "county", Label: "County"},
	{Key: "region", Label: "Region"},
	{Key: "due", Label: "Due", Alias: []string{"Due Date"}},
	{Key: "completed", Label: "Completed", Alias: []string{"Date Completed", "Completed Date"}},
	{Key: "prev_gr", Label: "Prev GR", Alias: []string{"Previous GR"}},
	{Key: "spans", Label: "Spans"},
	{Key: "flags", Label: "Flags"},
	{Key: "flags_info", Label: "Flags Info", Alias: []string{"Flag Info"}},
	{Key: "posting", Label: "Posting"},
	{Key: "posting_info", Label: "Posting Info"},
	{Key: "access", Label: "Access"},
	{Key: "access_info", Label: "Access Info"},
	{Key: "spe", Label: "SPE"},
	{Key: "stds", Label: "STDS", Alias: []string{"Standards"}},
	{Key: "field_time", Label: "Field Time"},
	{Key: "week", Label: "Week", Alias: []string{"Scheduled Week"}},
	{Key: "issued", Label: "Issued", Alias: []string{"Date Issued"}},
	{Key: "due_month", Label: "Due Month"},
}

// TextKeys lists the descriptive field keys in column order.
func TextKeys() []string {
	keys := make([]string, 0, len(Fields))
	for _, f := range Fields {
		if f.Kind == FieldText {
			keys = append(keys, f.Key)
		}
	}
	return keys
}


// Update is a sparse set of field assignments. Absent keys are left alone.
type Update struct {
	Text map[string]string
	Lat  *float64
	Lon  *float64
}

// SetText records a descriptive field assignment.
func (u *Update) SetText(key, value string) {
	if u.Text == nil {
		u.Text = make(map[string]string)
	}
	u.Text[key] = value
}

// Empty reports whether the update assigns nothing.
func (u Update) Empty() bool {
	return len(u.Text) == 0 && u.Lat == nil && u.Lon == nil
}

// Apply writes the assignments onto b.
func (u Update) Apply(b *Bridge) {
	for k, v := range u.Text {
		if p := b.Text(k); p != nil {
			*p = v
		}
	}
	if u.Lat != nil {
		b.Lat = *u.Lat
	}
	if u.Lon != nil {
		b.Lon = *u.Lon
	}
}
