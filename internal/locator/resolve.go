package locator

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/dom"
	"golang.org/x/net/html"
)

var log = debug.For("locator")

// XPath translates p into an equivalent XPath expression. Positional
// predicates come before id/class predicates so the index counts all
// same-tag siblings, matching :nth-of-type.
func (p Path) XPath() string {
	var b strings.Builder
	b.WriteString("/html/body")
	for _, d := range p {
		b.WriteByte('/')
		b.WriteString(d.Tag)
		if d.Index > 0 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(d.Index))
			b.WriteByte(']')
		}
		if d.ID != "" {
			b.WriteString("[@id=")
			b.WriteString(literal(d.ID))
			b.WriteByte(']')
		}
		for _, c := range d.Classes {
			b.WriteString("[contains(concat(' ', normalize-space(@class), ' '), ")
			b.WriteString(literal(" " + c + " "))
			b.WriteString(")]")
		}
	}
	return b.String()
}

// literal quotes s as an XPath string literal.
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+part+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Resolve locates the node addressed by p. It returns nil when the document
// no longer contains a match; callers treat that as a lost selection.
func Resolve(doc *dom.Document, p Path) *html.Node {
	if len(p) == 0 {
		return doc.Body()
	}
	n, err := htmlquery.Query(doc.Root(), p.XPath())
	if err != nil {
		log.Warnf("path %s did not compile: %v", p, err)
		return nil
	}
	return n
}

// ResolveString parses and resolves a path string. Parse failures and misses
// both yield nil.
func ResolveString(doc *dom.Document, s string) *html.Node {
	p, err := ParsePath(s)
	if err != nil {
		log.Warnf("cannot parse path %q: %v", s, err)
		return nil
	}
	return Resolve(doc, p)
}
