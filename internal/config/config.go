// Package config loads livedit configuration from a .livedit.kdl file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	kdl "github.com/sblinch/kdl-go"
)

// ConfigFileName is the name of the livedit configuration file.
const ConfigFileName = ".livedit.kdl"

// Config represents the livedit configuration.
type Config struct {
	Server    *ServerConfig          `kdl:"server"`
	Editor    *EditorConfig          `kdl:"editor"`
	Toolbar   *ToolbarConfig         `kdl:"toolbar"`
	Store     *StoreConfig           `kdl:"store"`
	Assistant *AssistantConfig       `kdl:"assistant"`
	Pages     map[string]*PageConfig `kdl:"pages"`

	// Dir is the directory the config was found in, or the search start
	// directory when no file exists.
	Dir string
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Addr string `kdl:"addr"`
	// AllowedOrigins lists origins allowed on the host websocket.
	// Empty means same host only; "*" allows any.
	AllowedOrigins []string `kdl:"allowed-origins"`
}

// EditorConfig configures the selection controller and host model.
type EditorConfig struct {
	HistoryCap   int      `kdl:"history-cap"`
	BlurDelayMs  int      `kdl:"blur-delay-ms"`
	EditableTags []string `kdl:"editable-tags"`
}

// ToolbarConfig sets the assumed toolbar size in CSS pixels.
type ToolbarConfig struct {
	Width  float64 `kdl:"width"`
	Height float64 `kdl:"height"`
}

// StoreConfig configures page persistence.
type StoreConfig struct {
	// Dir is the project directory pages are stored under.
	Dir string `kdl:"dir"`
	// RevisionsDB is the SQLite revision log path; "off" disables it.
	RevisionsDB string `kdl:"revisions-db"`
}

// AssistantConfig configures the regenerate collaborator.
type AssistantConfig struct {
	// Provider: "anthropic", "openai" or "none"
	Provider  string `kdl:"provider"`
	Model     string `kdl:"model"`
	MaxTokens int    `kdl:"max-tokens"`
	BaseURL   string `kdl:"base-url"`
}

// PageConfig declares a page to open as a session when serving.
type PageConfig struct {
	File      string `kdl:"file"`
	Autostart bool   `kdl:"autostart"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Addr: "127.0.0.1:7400",
		},
		Editor: &EditorConfig{
			HistoryCap:  30,
			BlurDelayMs: 100,
		},
		Toolbar: &ToolbarConfig{
			Width:  240,
			Height: 36,
		},
		Store: &StoreConfig{
			Dir: ".",
		},
		Assistant: &AssistantConfig{
			Provider:  "none",
			MaxTokens: 2048,
		},
		Pages: make(map[string]*PageConfig),
	}
}

// BlurDelay returns the editor blur delay as a duration.
func (c *Config) BlurDelay() time.Duration {
	return time.Duration(c.Editor.BlurDelayMs) * time.Millisecond
}

// StoreDir resolves the store directory against the config directory.
func (c *Config) StoreDir() string {
	if filepath.IsAbs(c.Store.Dir) || c.Dir == "" {
		return c.Store.Dir
	}
	return filepath.Join(c.Dir, c.Store.Dir)
}

// PagePath resolves a page file against the config directory.
func (c *Config) PagePath(p *PageConfig) string {
	if filepath.IsAbs(p.File) || c.Dir == "" {
		return p.File
	}
	return filepath.Join(c.Dir, p.File)
}

// GetAutostartPages returns pages configured for autostart.
func (c *Config) GetAutostartPages() map[string]*PageConfig {
	result := make(map[string]*PageConfig)
	for name, page := range c.Pages {
		if page.Autostart {
			result[name] = page
		}
	}
	return result
}

// LoadConfig loads configuration from the specified directory.
// It looks for .livedit.kdl in the directory and its parents, and loads a
// .env file next to it into the environment without overriding set values.
func LoadConfig(dir string) (*Config, error) {
	configPath := FindConfigFile(dir)
	if configPath == "" {
		cfg := DefaultConfig()
		cfg.Dir, _ = filepath.Abs(dir)
		loadEnv(cfg.Dir)
		return cfg, nil
	}

	cfg, err := LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	loadEnv(cfg.Dir)
	return cfg, nil
}

func loadEnv(dir string) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		return
	}
	_ = godotenv.Load(envPath)
}

// FindConfigFile searches for .livedit.kdl starting from dir and walking up.
func FindConfigFile(dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(absDir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			break
		}
		absDir = parent
	}

	return ""
}

// LoadConfigFile loads configuration from a specific file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(string(data))
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ParseConfig parses KDL configuration data over the defaults.
func ParseConfig(data string) (*Config, error) {
	cfg := DefaultConfig()

	if err := kdl.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Editor.HistoryCap != 0 && (c.Editor.HistoryCap < 20 || c.Editor.HistoryCap > 50) {
		return fmt.Errorf("editor history-cap %d out of range [20, 50]", c.Editor.HistoryCap)
	}
	if c.Editor.BlurDelayMs < 0 {
		return fmt.Errorf("editor blur-delay-ms must not be negative")
	}
	if c.Toolbar.Width <= 0 || c.Toolbar.Height <= 0 {
		return fmt.Errorf("toolbar size must be positive")
	}
	switch c.Assistant.Provider {
	case "", "none", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown assistant provider %q", c.Assistant.Provider)
	}
	for name, p := range c.Pages {
		if p == nil || p.File == "" {
			return fmt.Errorf("page %q has no file", name)
		}
	}
	return nil
}

// WriteDefaultConfig writes a default configuration file with documentation.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// livedit configuration

// Preview server
server {
    addr "127.0.0.1:7400"
    // Origins allowed to open the host websocket (default: same host)
    // allowed-origins "http://localhost:5173"
}

// Selection and editing
editor {
    history-cap 30      // Undo states kept, 20-50
    blur-delay-ms 100   // Delay before a blur ends editing
    // editable-tags "p" "h1" "h2" "span" "a" "button"
}

// Assumed toolbar size for placement
toolbar {
    width 240
    height 36
}

// Saved pages and revision history
store {
    dir "."
    // revisions-db "off"
}

// Regenerate backend: "anthropic", "openai" or "none".
// API keys come from ANTHROPIC_API_KEY / OPENAI_API_KEY (a .env file is read).
assistant {
    provider "none"
    // model "claude-sonnet-4-5"
    max-tokens 2048
}

// Pages to open when serving
pages {
    // landing {
    //     file "site/index.html"
    //     autostart true
    // }
}
`
	return os.WriteFile(path, []byte(defaultKDL), 0644)
}
