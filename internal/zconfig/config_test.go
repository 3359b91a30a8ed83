package zconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ifzm/mxyzptlk/zmachine"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("a missing config file should not be an error, got %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("expected defaults %+v, got %+v", want, cfg)
	}
}

func TestLoadOverlaysProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	contents := "foreground: 3\nerror_handling: abort\nvolume_factor: 42.5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Foreground != 3 {
		t.Fatalf("expected foreground 3, got %d", cfg.Foreground)
	}
	if cfg.ErrorHandling != Abort {
		t.Fatalf("expected error_handling abort, got %v", cfg.ErrorHandling)
	}
	if cfg.VolumeFactor != 42.5 {
		t.Fatalf("expected volume_factor 42.5, got %v", cfg.VolumeFactor)
	}
	// Untouched fields keep their defaults.
	if cfg.Background != Default().Background {
		t.Fatalf("expected background to keep its default, got %d", cfg.Background)
	}
}

func TestLoadRejectsMalformedYamlAsRecoverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("foreground: [this is not a scalar"), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
	if !err.Recoverable {
		t.Fatal("a malformed config file should be recoverable, not fatal")
	}
}

func TestLoadIgnoresUnknownErrorHandlingValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("error_handling: nonsense\n"), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ErrorHandling != Default().ErrorHandling {
		t.Fatalf("expected an unrecognized error_handling value to fall back to the default, got %v", cfg.ErrorHandling)
	}
}

func TestErrorHandlingPolicyMapping(t *testing.T) {
	cases := []struct {
		handling ErrorHandling
		want     zmachine.ErrorPolicy
	}{
		{Abort, zmachine.PolicyStrict},
		{Ignore, zmachine.PolicyIgnore},
		{ContinueWarnOnce, zmachine.PolicyIgnore},
		{ContinueWarnAlways, zmachine.PolicyIgnore},
	}
	for _, c := range cases {
		if got := c.handling.Policy(); got != c.want {
			t.Errorf("%s.Policy() = %v, want %v", c.handling, got, c.want)
		}
	}
}
