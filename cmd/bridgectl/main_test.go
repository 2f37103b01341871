package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestImportCountExport(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "bridges.db")
	csvPath := filepath.Join(dir, "inspections.csv")
	csv := "BIN,County,Lat,Lon,Week\n1001,Albany,42.65,-73.75,Week 2\n1002,Greene,,,\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	common := []string{"--env-file", "", "--driver", "sqlite", "--db", db}

	out, err := runCmd(t, append([]string{"import", csvPath, "--dry-run"}, common...)...)
	if err != nil {
		t.Fatalf("import --dry-run error = %v", err)
	}
	if !strings.Contains(out, "(dry run) 2 rows: 2 imported") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = runCmd(t, append([]string{"import", csvPath}, common...)...)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "2 rows: 2 imported, 0 updated, 0 skipped") {
		t.Errorf("import output = %q", out)
	}

	out, err = runCmd(t, append([]string{"count"}, common...)...)
	if err != nil {
		t.Fatalf("count error = %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("count = %q, want 2", out)
	}

	out, err = runCmd(t, append([]string{"export", "-f", "geojson"}, common...)...)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal([]byte(out), &fc); err != nil {
		t.Fatalf("export output is not JSON: %v", err)
	}
	if len(fc.Features) != 2 || fc.Features[0].Properties["status"] != "Scheduled" {
		t.Errorf("features = %+v", fc.Features)
	}
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	os.WriteFile(path, []byte("BIN\n1\n"), 0o644)

	_, err := runCmd(t, "import", path, "--env-file", "", "--driver", "memory")
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Errorf("error = %v, want unsupported file type", err)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := runCmd(t, "export", "-f", "xml", "--env-file", "", "--driver", "memory")
	if err == nil {
		t.Error("export -f xml should fail")
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "user facing",
			err:  fmt.Errorf("get 7: %w", core.ErrNotFound),
			want: "Bridge not found (Code: BRG001). Check the BIN or refresh the list\n  get 7: bridge not found",
		},
		{
			name: "plain",
			err:  errors.New("unknown flag: --nope"),
			want: "unknown flag: --nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorText(tt.err); got != tt.want {
				t.Errorf("errorText() = %q, want %q", got, tt.want)
			}
		})
	}
}
