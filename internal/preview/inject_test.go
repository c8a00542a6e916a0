package preview

import (
	"bytes"
	"strings"
	"testing"
)

func TestShouldInject(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/json", false},
		{"text/plain", false},
		{"image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			result := ShouldInject(tt.contentType)
			if result != tt.expected {
				t.Errorf("ShouldInject(%q) = %v, expected %v", tt.contentType, result, tt.expected)
			}
		})
	}
}

func TestInjectRelayPlacement(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		before string // script must appear before this marker
		after  string // and after this one
	}{
		{"before head close", "<html><head><title>T</title></head><body><h1>x</h1></body></html>", "</head>", "<title>"},
		{"after head open", "<html><head><title>T</title><body><h1>x</h1></body></html>", "<title>", "<head>"},
		{"after body open", `<html><body class="app"><h1>x</h1></body></html>`, "<h1>", `<body class="app">`},
		{"after html open", `<html lang="en"><h1>x</h1></html>`, "<h1>", `<html lang="en">`},
		{"fragment", "<h1>x</h1>", "<h1>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InjectRelay([]byte(tt.html), "abc")
			scriptIdx := bytes.Index(result, []byte("<script data-le-relay>"))
			if scriptIdx == -1 {
				t.Fatalf("script not injected:\n%s", result)
			}
			if idx := bytes.Index(result, []byte(tt.before)); idx < scriptIdx {
				t.Errorf("script should come before %q", tt.before)
			}
			if tt.after != "" {
				if idx := bytes.Index(result, []byte(tt.after)); idx == -1 || idx > scriptIdx {
					t.Errorf("script should come after %q", tt.after)
				}
			}
			if bytes.Count(result, []byte("<script data-le-relay>")) != 1 {
				t.Error("script injected more than once")
			}
		})
	}
}

func TestRelayScriptBindsSession(t *testing.T) {
	s := relayScript(`id"with-quote`)
	if !strings.Contains(s, `window.__LIVEDIT_SESSION__ = "id\"with-quote";`) {
		t.Errorf("session id not quoted:\n%s", s[:120])
	}
	if !strings.Contains(s, "/embed") {
		t.Error("relay body missing")
	}
}
