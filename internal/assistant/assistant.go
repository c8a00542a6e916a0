// Package assistant implements AI regeneration of a selected element's
// markup on top of Anthropic or an OpenAI-compatible backend.
package assistant

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/standardbeagle/livedit/internal/config"
	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/editor"
)

var log = debug.For("assistant")

var (
	// ErrNoAPIKey is returned when the provider's API key is not set.
	ErrNoAPIKey = errors.New("api key not set")

	// ErrEmptyResponse is returned when the model produced no usable markup.
	ErrEmptyResponse = errors.New("empty response")
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5"
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
	// MaxPageContext bounds how much of the page is sent as context.
	MaxPageContext = 12000
)

const systemPrompt = `You rewrite one HTML element of a web page.
Reply with the new inner HTML of the element only: no explanation, no code fences,
no wrapping element. Keep the language and tone of the page. Do not add scripts,
styles or event handlers.`

// New returns the regenerator configured by cfg, or nil for provider "none".
func New(cfg *config.AssistantConfig) (editor.Regenerator, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("anthropic: %w (ANTHROPIC_API_KEY)", ErrNoAPIKey)
		}
		return NewAnthropic(key, cfg.Model, cfg.MaxTokens, cfg.BaseURL), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai: %w (OPENAI_API_KEY)", ErrNoAPIKey)
		}
		return NewOpenAI(key, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}

// Prompt builds the user prompt for req.
func Prompt(req editor.RegenerateRequest) string {
	var b strings.Builder
	el := req.Element
	fmt.Fprintf(&b, "Element: <%s>", strings.ToLower(el.TagName))
	if el.ID != "" {
		fmt.Fprintf(&b, " id=%q", el.ID)
	}
	if el.ClassName != "" {
		fmt.Fprintf(&b, " class=%q", el.ClassName)
	}
	fmt.Fprintf(&b, "\nPath: %s\n", el.Path)
	fmt.Fprintf(&b, "Current inner HTML:\n%s\n", el.InnerHTML)

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = "Rewrite the content so it reads better. Keep roughly the same length."
	}
	fmt.Fprintf(&b, "\nInstruction: %s\n", instruction)

	if page := req.Page; page != "" {
		if len(page) > MaxPageContext {
			page = page[:MaxPageContext]
		}
		fmt.Fprintf(&b, "\nPage for context:\n%s\n", page)
	}
	return b.String()
}

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	return p
}

// Clean strips code fences from model output and sanitises the markup.
func Clean(out string) (string, error) {
	out = strings.TrimSpace(out)
	if m := fence.FindStringSubmatch(out); m != nil {
		out = strings.TrimSpace(m[1])
	}
	clean := strings.TrimSpace(policy.Sanitize(out))
	if clean == "" {
		return "", ErrEmptyResponse
	}
	if clean != out {
		log.Debugf("sanitiser changed model output (%d -> %d bytes)", len(out), len(clean))
	}
	return clean, nil
}
