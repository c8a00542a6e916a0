package dom

import (
	"testing"

	"github.com/standardbeagle/livedit/internal/protocol"
)

func TestParseInlineStyle(t *testing.T) {
	tests := []struct {
		style string
		prop  string
		want  string
	}{
		{"color: red", "color", "red"},
		{"COLOR: red; padding: 4px 8px", "padding", "4px 8px"},
		{"background-color: rgb(1, 2, 3)", "background-color", "rgb(1, 2, 3)"},
		{"font-weight: bold !important;", "font-weight", "bold"},
		{"color: red; color: blue", "color", "blue"},
		{"/* note */ margin: 0 auto", "margin", "0 auto"},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			got := ParseInlineStyle(tt.style)[tt.prop]
			if got != tt.want {
				t.Errorf("ParseInlineStyle(%q)[%q] = %q, want %q", tt.style, tt.prop, got, tt.want)
			}
		})
	}
}

func TestComputedStyleDefaultsAndInheritance(t *testing.T) {
	d := mustParse(t, `<div id="wrap" style="color: #333; text-align: center">
		<h1 id="h">Title</h1>
		<a id="l" href="#">link</a>
		<span id="s" style="padding: 2px">x</span>
	</div>`)

	h := d.ComputedStyle(find(d, "h"))
	if h.Display != "block" || h.FontSize != "32px" || h.FontWeight != "700" {
		t.Errorf("h1 defaults wrong: %+v", h)
	}
	if h.Color != "#333" || h.TextAlign != "center" {
		t.Errorf("h1 should inherit colour and alignment: %+v", h)
	}

	l := d.ComputedStyle(find(d, "l"))
	if l.Color != "rgb(0, 0, 238)" {
		t.Errorf("link colour = %q", l.Color)
	}
	if l.Display != "inline" {
		t.Errorf("link display = %q", l.Display)
	}

	s := d.ComputedStyle(find(d, "s"))
	if s.Padding != "2px" || s.FontWeight != "400" {
		t.Errorf("span style wrong: %+v", s)
	}
}

func TestComputedStyleUsesLayoutSize(t *testing.T) {
	d := mustParse(t, `<p id="p">x</p>`)
	p := find(d, "p")
	if got := d.ComputedStyle(p).Width; got != "auto" {
		t.Errorf("width without layout = %q", got)
	}
	d.SetRect(p, protocol.Rect{Width: 120.5, Height: 40})
	cs := d.ComputedStyle(p)
	if cs.Width != "120.5px" || cs.Height != "40px" {
		t.Errorf("size = %s x %s", cs.Width, cs.Height)
	}
}
