package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sandboxHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PODHARVEST_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return home
}

func writeTestConfig(t *testing.T, home string, extra string) string {
	t.Helper()
	path := filepath.Join(home, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[[channels]]
name = "technews"
url = "https://example.com/technews"
cutoff_date = "2024-01-01"
content_type = "audio"

%s`, filepath.Join(home, "data"), filepath.Join(home, "logs"), extra)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	sandboxHome(t)

	out, err := runCLI(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init without --overwrite to refuse existing file")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	home := sandboxHome(t)
	writeTestConfig(t, home, "")
	configPath := filepath.Join(home, "config.toml")

	// show resolves the default search path, so point HOME's default at it.
	defaultDir := filepath.Join(home, ".config", "podharvest")
	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(defaultDir, "config.toml"), data, 0o644); err != nil {
		t.Fatalf("copy config: %v", err)
	}

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "technews")
	requireContains(t, out, "cutoff 2024-01-01")
}

func TestChannelsCommandRendersTable(t *testing.T) {
	home := sandboxHome(t)
	configPath := writeTestConfig(t, home, "")

	out, err := runCLI(t, "--config", configPath, "channels")
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	requireContains(t, out, "technews")
	requireContains(t, out, "audio")
	requireContains(t, out, "2024-01-01")
}

func TestHistoryCommandRequiresRunlog(t *testing.T) {
	home := sandboxHome(t)
	configPath := writeTestConfig(t, home, "[runlog]\nenabled = false\n")

	if _, err := runCLI(t, "--config", configPath, "history"); err == nil {
		t.Fatal("expected history to fail when runlog is disabled")
	}
}

func TestUnknownChannelFailsValidation(t *testing.T) {
	home := sandboxHome(t)
	configPath := writeTestConfig(t, home, "[runlog]\nenabled = false\n")

	if _, err := runCLI(t, "--config", configPath, "harvest", "--channels", "nope"); err == nil {
		t.Fatal("expected harvest with unknown channel to fail")
	}
}

func TestNotifyDisabledWithoutTopic(t *testing.T) {
	home := sandboxHome(t)
	configPath := writeTestConfig(t, home, "")

	out, err := runCLI(t, "--config", configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}
