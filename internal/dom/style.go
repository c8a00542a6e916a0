package dom

import (
	"strconv"
	"strings"

	"github.com/gorilla/css/scanner"
	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
)

// ParseInlineStyle tokenises a style attribute into lower-cased property
// names and their declared values. Later declarations win; !important is dropped.
func ParseInlineStyle(style string) map[string]string {
	decls := make(map[string]string)
	s := scanner.New(style)

	var name string
	var val strings.Builder
	inValue := false

	flush := func() {
		if name != "" && inValue {
			v := strings.TrimSpace(val.String())
			v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
			if v != "" {
				decls[name] = v
			}
		}
		name = ""
		val.Reset()
		inValue = false
	}

	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			flush()
			break
		}
		switch {
		case tok.Type == scanner.TokenComment:
		case tok.Type == scanner.TokenChar && tok.Value == ";":
			flush()
		case !inValue && tok.Type == scanner.TokenChar && tok.Value == ":":
			inValue = true
		case !inValue && tok.Type == scanner.TokenIdent:
			name = strings.ToLower(tok.Value)
		case inValue && tok.Type == scanner.TokenS:
			if val.Len() > 0 {
				val.WriteByte(' ')
			}
		case inValue:
			val.WriteString(tok.Value)
		}
	}
	return decls
}

var displayDefaults = map[string]string{
	"address": "block", "article": "block", "aside": "block", "blockquote": "block",
	"details": "block", "dialog": "block", "dd": "block", "div": "block", "dl": "block",
	"dt": "block", "fieldset": "block", "figcaption": "block", "figure": "block",
	"footer": "block", "form": "block", "h1": "block", "h2": "block", "h3": "block",
	"h4": "block", "h5": "block", "h6": "block", "header": "block", "hr": "block",
	"main": "block", "nav": "block", "ol": "block", "p": "block", "pre": "block",
	"section": "block", "ul": "block", "body": "block", "html": "block",
	"li": "list-item", "table": "table", "tr": "table-row", "td": "table-cell", "th": "table-cell",
	"img": "inline-block", "button": "inline-block", "input": "inline-block",
	"select": "inline-block", "textarea": "inline-block", "video": "inline-block",
	"head": "none", "script": "none", "style": "none", "meta": "none", "link": "none",
	"title": "none", "template": "none",
}

var fontSizeDefaults = map[string]string{
	"h1": "32px", "h2": "24px", "h3": "18.72px", "h4": "16px", "h5": "13.28px",
	"h6": "10.72px", "small": "13.3333px",
}

var boldTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"b": true, "strong": true, "th": true,
}

// Inherited properties fall back to the parent's value when neither the
// element nor the user-agent defaults declare them.
func inherited(n *html.Node, prop string, uaDefault func(tag string) string, initial string) string {
	for c := n; IsElement(c); c = c.Parent {
		style, _ := Attr(c, "style")
		if v, ok := ParseInlineStyle(style)[prop]; ok {
			return v
		}
		if v := uaDefault(TagName(c)); v != "" {
			return v
		}
	}
	return initial
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// ComputedStyle approximates the allow-listed computed style subset of n:
// inline declarations first, then user-agent defaults, with inheritance for
// colour and font properties and layout-derived width/height.
func (d *Document) ComputedStyle(n *html.Node) protocol.ComputedStyle {
	if !IsElement(n) {
		return protocol.ComputedStyle{}
	}
	style, _ := Attr(n, "style")
	decl := ParseInlineStyle(style)
	tag := TagName(n)

	get := func(prop, fallback string) string {
		if v, ok := decl[prop]; ok {
			return v
		}
		return fallback
	}

	display := displayDefaults[tag]
	if display == "" {
		display = "inline"
	}

	rect := d.Rect(n)
	width, height := "auto", "auto"
	if rect.Width > 0 || rect.Height > 0 {
		width, height = px(rect.Width), px(rect.Height)
	}

	margin := "0px"
	if tag == "body" {
		margin = "8px"
	}

	return protocol.ComputedStyle{
		Width:   get("width", width),
		Height:  get("height", height),
		Padding: get("padding", "0px"),
		Margin:  get("margin", margin),
		Display: get("display", display),
		FontSize: inherited(n, "font-size", func(t string) string {
			return fontSizeDefaults[t]
		}, "16px"),
		FontWeight: inherited(n, "font-weight", func(t string) string {
			if boldTags[t] {
				return "700"
			}
			return ""
		}, "400"),
		Color: inherited(n, "color", func(t string) string {
			if t == "a" {
				return "rgb(0, 0, 238)"
			}
			return ""
		}, "rgb(0, 0, 0)"),
		BackgroundColor: get("background-color", "rgba(0, 0, 0, 0)"),
		BorderRadius:    get("border-radius", "0px"),
		TextAlign: inherited(n, "text-align", func(t string) string {
			if t == "th" {
				return "center"
			}
			return ""
		}, "start"),
	}
}
