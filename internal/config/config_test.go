package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.BlurDelay() != 100*time.Millisecond {
		t.Errorf("BlurDelay = %v", cfg.BlurDelay())
	}
	if cfg.Editor.HistoryCap != 30 {
		t.Errorf("HistoryCap = %d", cfg.Editor.HistoryCap)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(`
server {
    addr ":9000"
    allowed-origins "https://editor.example.com" "http://localhost:5173"
}
editor {
    history-cap 40
    blur-delay-ms 250
    editable-tags "p" "h1"
}
assistant {
    provider "anthropic"
    model "claude-sonnet-4-5"
}
pages {
    landing {
        file "site/index.html"
        autostart true
    }
    draft {
        file "site/draft.html"
    }
}
`)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Editor.HistoryCap != 40 || cfg.BlurDelay() != 250*time.Millisecond {
		t.Errorf("Editor = %+v", cfg.Editor)
	}
	if strings.Join(cfg.Editor.EditableTags, ",") != "p,h1" {
		t.Errorf("EditableTags = %v", cfg.Editor.EditableTags)
	}
	if cfg.Assistant.Provider != "anthropic" || cfg.Assistant.MaxTokens != 2048 {
		t.Errorf("Assistant = %+v", cfg.Assistant)
	}
	// Untouched sections keep their defaults
	if cfg.Toolbar.Width != 240 {
		t.Errorf("Toolbar = %+v", cfg.Toolbar)
	}

	auto := cfg.GetAutostartPages()
	if len(auto) != 1 || auto["landing"] == nil {
		t.Errorf("autostart pages = %v", auto)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		kdl  string
	}{
		{"history cap too small", `editor { history-cap 5 }`},
		{"history cap too large", `editor { history-cap 80 }`},
		{"negative blur", `editor { blur-delay-ms -1 }`},
		{"unknown provider", `assistant { provider "magic" }`},
		{"page without file", `pages { empty { autostart true } }`},
		{"syntax error", `server { addr `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig(tt.kdl); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if FindConfigFile(nested) != "" && !strings.HasPrefix(FindConfigFile(nested), root) {
		// A config above the temp dir is outside our control; only assert below.
		t.Skip("config file present above temp dir")
	}

	path := filepath.Join(root, ConfigFileName)
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(nested); got != path {
		t.Errorf("FindConfigFile = %q; want %q", got, path)
	}

	cfg, err := LoadConfig(nested)
	if err != nil {
		t.Fatalf("LoadConfig of written default: %v", err)
	}
	if cfg.Dir != root {
		t.Errorf("Dir = %q; want %q", cfg.Dir, root)
	}
	if cfg.StoreDir() != root {
		t.Errorf("StoreDir = %q", cfg.StoreDir())
	}
	if got := cfg.PagePath(&PageConfig{File: "site/index.html"}); got != filepath.Join(root, "site", "index.html") {
		t.Errorf("PagePath = %q", got)
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	const key = "LIVEDIT_TEST_ENV_VALUE"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("server {\n  addr \":1\"\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("%s = %q", key, got)
	}
}
