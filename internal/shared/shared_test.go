package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUniqueStrings(t *testing.T) {
	tc := []struct {
		name   string
		values []string
		want   []string
	}{
		{
			name:   "keeps first-seen order",
			values: []string{"sunset", "beach", "sunset"},
			want:   []string{"sunset", "beach"},
		},
		{
			name:   "drops blanks and trims",
			values: []string{"  beach ", "", "   ", "beach"},
			want:   []string{"beach"},
		},
		{
			name:   "nil input",
			values: nil,
			want:   []string{},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := UniqueStrings(tt.values)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || len(got) != len(tt.want) {
				t.Errorf("UniqueStrings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "page", 3).Info("processing")

		out := buf.String()
		if !strings.Contains(out, "processing") || !strings.Contains(out, "page=3") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("NewFileLogger creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "pxm.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("hello")

		if got := mustRead(t, path); !strings.Contains(got, "hello") {
			t.Errorf("log file missing entry: %q", got)
		}
	})
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("GenerateID() = %q is not a uuid: %v", id, err)
	}
	if id == GenerateID() {
		t.Error("GenerateID() returned the same id twice")
	}
}

func TestBrowser(t *testing.T) {
	t.Run("command per platform", func(t *testing.T) {
		for platform, bin := range map[string]string{"darwin": "open", "linux": "xdg-open", "windows": "rundll32"} {
			cmd, err := browserCommand(platform, "https://accounts.google.com/o/oauth2/auth")
			if err != nil {
				t.Fatalf("browserCommand(%s) error = %v", platform, err)
			}
			if filepath.Base(cmd.Args[0]) != bin {
				t.Errorf("browserCommand(%s) = %v, want %s", platform, cmd.Args, bin)
			}
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = orig }()

		if err := OpenBrowser("https://example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("state tokens are unique", func(t *testing.T) {
		a, b := GenerateState(), GenerateState()
		if a == "" || a == b {
			t.Errorf("GenerateState() = %q, %q", a, b)
		}
	})
}
