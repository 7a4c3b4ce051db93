package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseID(tt.arg, "payment")
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseID(%q) expected error", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseID(%q) failed: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if err := validateInputFile(nil, []string{path}); err != nil {
		t.Errorf("expected existing file to validate, got %v", err)
	}
	if err := validateInputFile(nil, []string{filepath.Join(dir, "missing.csv")}); err == nil {
		t.Error("expected error for missing file")
	}
	if err := validateInputFile(nil, []string{dir}); err == nil {
		t.Error("expected error for directory input")
	}
}

func TestValidateReportFlags(t *testing.T) {
	reset := func() {
		reportFrom, reportTo, reportFormat, reportFile = "", "", "console", ""
	}

	t.Run("defaults fill the window", func(t *testing.T) {
		reset()
		if err := validateReportFlags(nil, nil); err != nil {
			t.Fatalf("expected defaults to validate, got %v", err)
		}
		if reportFrom == "" || reportTo == "" {
			t.Error("expected default window to be filled in")
		}
	})

	t.Run("bad date rejected", func(t *testing.T) {
		reset()
		reportFrom = "15-03-2024"
		if err := validateReportFlags(nil, nil); err == nil {
			t.Error("expected error for malformed date")
		}
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		reset()
		reportFrom = "2024-03-20"
		reportTo = "2024-03-10"
		if err := validateReportFlags(nil, nil); err == nil {
			t.Error("expected error for inverted range")
		}
	})

	t.Run("bad format rejected", func(t *testing.T) {
		reset()
		reportFormat = "pdf"
		if err := validateReportFlags(nil, nil); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("missing output directory rejected", func(t *testing.T) {
		reset()
		reportFile = filepath.Join(t.TempDir(), "nope", "out.json")
		if err := validateReportFlags(nil, nil); err == nil {
			t.Error("expected error for missing output directory")
		}
	})
}
