package toolbar

import (
	"strings"
	"testing"

	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
)

func TestPlace(t *testing.T) {
	viewport := dom.Size{Width: 1000, Height: 800}
	size := dom.Size{Width: 200, Height: 30}

	tests := []struct {
		name   string
		anchor protocol.Rect
		want   Position
	}{
		{
			name:   "centred above",
			anchor: protocol.Rect{Top: 300, Left: 400, Width: 100, Height: 40},
			want:   Position{Top: 262, Left: 350},
		},
		{
			name:   "flips below near the top",
			anchor: protocol.Rect{Top: 20, Left: 400, Width: 100, Height: 40},
			want:   Position{Top: 68, Left: 350, Below: true},
		},
		{
			name:   "clamped to left margin",
			anchor: protocol.Rect{Top: 300, Left: 0, Width: 40, Height: 20},
			want:   Position{Top: 262, Left: 10},
		},
		{
			name:   "clamped to right margin",
			anchor: protocol.Rect{Top: 300, Left: 950, Width: 50, Height: 20},
			want:   Position{Top: 262, Left: 790},
		},
		{
			name:   "exactly at the top margin stays above",
			anchor: protocol.Rect{Top: 48, Left: 400, Width: 100, Height: 10},
			want:   Position{Top: 10, Left: 350},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Place(tt.anchor, viewport, size); got != tt.want {
				t.Errorf("Place() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlaceNarrowViewportKeepsLeftMargin(t *testing.T) {
	got := Place(protocol.Rect{Top: 100, Left: 50, Width: 10, Height: 10}, dom.Size{Width: 150, Height: 400}, dom.Size{Width: 200, Height: 30})
	if got.Left != Margin {
		t.Errorf("Left = %v, want %v", got.Left, Margin)
	}
}

func TestShowCreatesOnceAndHideKeeps(t *testing.T) {
	doc, err := dom.ParseString(`<body><p>hello</p></body>`)
	if err != nil {
		t.Fatal(err)
	}
	p := doc.Body().FirstChild
	doc.SetRect(p, protocol.Rect{Top: 100, Left: 100, Width: 300, Height: 20})

	tb := New(doc, dom.Size{})
	if tb.Visible() || tb.Root() != nil {
		t.Fatal("toolbar must be created lazily")
	}

	tb.Show(p)
	root := tb.Root()
	if root == nil || !tb.Visible() {
		t.Fatal("Show did not create a visible toolbar")
	}
	if s, _ := dom.Attr(root, "style"); !strings.Contains(s, "display: flex") {
		t.Errorf("style = %q", s)
	}

	tb.Hide()
	if tb.Visible() || !doc.Attached(root) {
		t.Error("Hide must keep the container attached")
	}
	if s, _ := dom.Attr(root, "style"); s != "display: none" {
		t.Errorf("style after hide = %q", s)
	}

	tb.Show(p)
	if tb.Root() != root {
		t.Error("Show must reuse the container")
	}

	content, err := doc.Content()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(content, "Regenerate") {
		t.Errorf("toolbar leaked into content: %s", content)
	}
}

func TestActionFor(t *testing.T) {
	doc, _ := dom.ParseString(`<body><p>x</p></body>`)
	tb := New(doc, dom.Size{})
	tb.Show(doc.Body().FirstChild)

	var seen []Action
	for b := tb.Root().FirstChild; b != nil; b = b.NextSibling {
		a, ok := tb.ActionFor(b)
		if !ok {
			t.Fatalf("button %v has no action", b.Attr)
		}
		seen = append(seen, a)
		if a, ok := tb.ActionFor(b.FirstChild); !ok || a != seen[len(seen)-1] {
			t.Errorf("label text of %s did not resolve to its button", a)
		}
	}
	if len(seen) != 3 || seen[0] != ActionRegenerate || seen[1] != ActionCustomEdit || seen[2] != ActionProps {
		t.Errorf("actions = %v", seen)
	}

	if _, ok := tb.ActionFor(doc.Body().FirstChild); ok {
		t.Error("page node reported a toolbar action")
	}
	if _, ok := tb.ActionFor(tb.Root()); ok {
		t.Error("container itself is not a button")
	}
	if ActionCustomEdit.MessageType() != protocol.TypeActionCustomEdit {
		t.Errorf("MessageType = %s", ActionCustomEdit.MessageType())
	}
}

func TestShowAfterReplaceRecreates(t *testing.T) {
	doc, _ := dom.ParseString(`<body><p>x</p></body>`)
	tb := New(doc, dom.Size{})
	tb.Show(doc.Body().FirstChild)
	old := tb.Root()

	if err := doc.Replace(`<body><h1>y</h1></body>`); err != nil {
		t.Fatal(err)
	}
	tb.Show(doc.Body().FirstChild)
	if tb.Root() == old || !doc.Attached(tb.Root()) {
		t.Error("toolbar was not recreated in the new document")
	}
}
