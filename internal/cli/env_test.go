package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoader_Candidates(t *testing.T) {
	t.Setenv(OverrideEnvVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", "config/prod.env"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	got := loader.candidates()
	want := []string{"config/prod.env", "prod.env", ".env"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	}
}

func TestEnvLoader_LoadPrefersOverride(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "override.env")
	if err := os.WriteFile(override, []byte("NEWS_HUD_TEST_VALUE=from-override\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(OverrideEnvVar, override)
	t.Setenv("NEWS_HUD_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(dir, "missing.env"), "")

	path, err := loader.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != override || os.Getenv("NEWS_HUD_TEST_VALUE") != "from-override" {
		t.Fatalf("unexpected load result: path=%s value=%q", path, os.Getenv("NEWS_HUD_TEST_VALUE"))
	}
}

func TestEnvLoader_LoadMissing(t *testing.T) {
	t.Setenv(OverrideEnvVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "missing.env"), "")
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
