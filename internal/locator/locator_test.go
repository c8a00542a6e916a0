package locator

import (
	"errors"
	"strings"
	"testing"

	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body>
  <main id="content">
    <section class="hero dark wide"><h1>Welcome</h1><p>one</p><p class="lead">two</p></section>
    <section class="features"><ul><li>a</li><li>b</li><li id="third">c</li></ul></section>
  </main>
  <footer><a href="#top">top</a></footer>
</body></html>`

func parse(t *testing.T, s string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func elements(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		elements(c, out)
	}
}

func byText(d *dom.Document, tag, text string) *html.Node {
	var all []*html.Node
	elements(d.Root(), &all)
	for _, n := range all {
		if dom.TagName(n) == tag && dom.TextContent(n) == text {
			return n
		}
	}
	return nil
}

func TestComputePathString(t *testing.T) {
	d := parse(t, page)

	tests := []struct {
		tag, text string
		want      string
	}{
		{"h1", "Welcome", "body > main#content > section.hero.dark:nth-of-type(1) > h1"},
		{"p", "two", "body > main#content > section.hero.dark:nth-of-type(1) > p.lead:nth-of-type(2)"},
		{"li", "c", "body > main#content > section.features:nth-of-type(2) > ul > li#third:nth-of-type(3)"},
		{"a", "top", "body > footer > a"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			n := byText(d, tt.tag, tt.text)
			if n == nil {
				t.Fatalf("fixture node <%s>%s not found", tt.tag, tt.text)
			}
			if got := ComputePath(d, n).String(); got != tt.want {
				t.Errorf("ComputePath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRoundTripsEveryElement(t *testing.T) {
	d := parse(t, page)

	var all []*html.Node
	elements(d.Body(), &all)
	for _, n := range all[1:] {
		p := ComputePath(d, n)
		got := ResolveString(d, p.String())
		if got != n {
			t.Errorf("ResolveString(%q) = %v, want <%s>", p, got, n.Data)
		}
	}
}

func TestResolveUniqueIDWithSpecialCharacters(t *testing.T) {
	d := parse(t, `<body><div><span id="it's a.b#c">x</span></div></body>`)
	n := byText(d, "span", "x")
	p := ComputePath(d, n)

	parsed, err := ParsePath(p.String())
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", p, err)
	}
	if parsed[1].ID != "it's a.b#c" {
		t.Errorf("id lost through escape: %q", parsed[1].ID)
	}
	if Resolve(d, parsed) != n {
		t.Errorf("Resolve(%q) did not find the node", p)
	}
}

func TestResolveMissReturnsNil(t *testing.T) {
	d := parse(t, page)
	if n := ResolveString(d, "body > main#gone > p"); n != nil {
		t.Errorf("expected nil, got <%s>", n.Data)
	}
	if n := ResolveString(d, "not a path"); n != nil {
		t.Error("unparseable path should resolve to nil")
	}
}

func TestResolveAfterShapeChange(t *testing.T) {
	d := parse(t, page)
	p := ComputePath(d, byText(d, "li", "b")).String()

	if err := d.Replace(`<html><body><main id="content"><section class="hero dark"></section></main></body></html>`); err != nil {
		t.Fatal(err)
	}
	if n := ResolveString(d, p); n != nil {
		t.Errorf("stale path should not resolve, got <%s>", n.Data)
	}
}

func TestParsePathErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrEmptyPath},
		{"html > body", ErrBadRoot},
		{"body > .x", ErrBadDescriptor},
		{"body > p:first-child", ErrBadDescriptor},
		{"body > p:nth-of-type(0)", ErrBadDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParsePath(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParsePath(%q) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestTruncateCountsUTF16Units(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"héllo", 2, "hé"},
		{"a😀b", 2, "a"},
		{"a😀b", 3, "a😀"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCaptureSnapshot(t *testing.T) {
	d := parse(t, `<body><button id="cta" class="btn primary" data-le-selected="" style="color: red">Buy</button></body>`)
	n := byText(d, "button", "Buy")
	d.SetRect(n, protocol.Rect{Top: 5, Left: 6, Width: 70, Height: 20})
	d.TakeMutations()
	before := dom.OuterHTML(n)

	s := Capture(d, n)

	if s.TagName != "button" || s.ID != "cta" || s.ClassName != "btn primary" || s.Text != "Buy" {
		t.Errorf("identity fields wrong: %+v", s)
	}
	if s.Path != "body > button#cta" {
		t.Errorf("path = %q", s.Path)
	}
	if s.ComputedStyle.Color != "red" || s.ComputedStyle.Width != "70px" {
		t.Errorf("style = %+v", s.ComputedStyle)
	}
	if s.Rect.Left != 6 {
		t.Errorf("rect = %+v", s.Rect)
	}
	for k := range s.Attributes {
		if strings.HasPrefix(k, dom.ArtifactPrefix) {
			t.Errorf("artifact attribute %q leaked into snapshot", k)
		}
	}
	if s.Attributes["class"] != "btn primary" {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if dom.OuterHTML(n) != before || len(d.TakeMutations()) != 0 {
		t.Error("Capture must not mutate the node")
	}
}

func TestCaptureTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", 1200)
	d := parse(t, `<body><p>`+long+`</p></body>`)
	s := Capture(d, byText(d, "p", long))
	if len(s.Text) != MaxText {
		t.Errorf("text length = %d", len(s.Text))
	}
	if len(s.InnerHTML) != MaxInnerHTML {
		t.Errorf("innerHTML length = %d", len(s.InnerHTML))
	}
}
