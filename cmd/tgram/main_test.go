package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionListsModules(t *testing.T) {
	out, err := execute(t, "version", "--env-file", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"bot.telegram", "gateway.http", "scheduler", "telemetry.otel"} {
		if !strings.Contains(out, "  "+id+"\n") {
			t.Errorf("module %s missing from:\n%s", id, out)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TGRAM_TEST_FROM_FILE=file\nTGRAM_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TGRAM_TEST_PRESET", "env")
	t.Cleanup(func() { _ = os.Unsetenv("TGRAM_TEST_FROM_FILE") })

	if err := loadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TGRAM_TEST_FROM_FILE"); got != "file" {
		t.Errorf("TGRAM_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("TGRAM_TEST_PRESET"); got != "env" {
		t.Errorf("TGRAM_TEST_PRESET = %q, existing variables must win", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestConfigCheck(t *testing.T) {
	t.Setenv("TGRAM_TEST_TOKEN", "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw4")
	path := filepath.Join(t.TempDir(), "tgram.yaml")
	cfg := `version: "1"
modules:
  bot.telegram:
    token: ${TGRAM_TEST_TOKEN}
  scheduler:
    jobs:
      - name: digest
        schedule: "0 9 * * *"
        event: daily_digest
`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "check", path, "--env-file", "")
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK (2 modules)") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCheckRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tgram.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\nmodules:\n  bot.telegram:\n    token: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "config", "check", path, "--env-file", ""); err == nil {
		t.Fatal("config check accepted an invalid token")
	}
}
