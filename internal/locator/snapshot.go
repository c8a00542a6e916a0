package locator

import (
	"unicode/utf16"

	"github.com/antchfx/htmlquery"
	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
)

const (
	// MaxText bounds snapshot text, in UTF-16 code units.
	MaxText = 500
	// MaxInnerHTML bounds snapshot markup, in UTF-16 code units.
	MaxInnerHTML = 1000
)

// Truncate cuts s to at most n UTF-16 code units without splitting a
// surrogate pair.
func Truncate(s string, n int) string {
	units := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if units+w > n {
			return s[:i]
		}
		units += w
	}
	return s
}

// Capture takes a read-only snapshot of n. Editor artifacts (data-le-*
// attributes and the toolbar) are excluded from attributes and markup.
func Capture(doc *dom.Document, n *html.Node) protocol.ElementSnapshot {
	if !dom.IsElement(n) {
		return protocol.ElementSnapshot{}
	}

	id, _ := dom.Attr(n, "id")
	class, _ := dom.Attr(n, "class")

	page := doc.PageAttrs(n)
	attrs := make(map[string]string, len(page))
	for _, a := range page {
		attrs[a.Key] = a.Val
	}

	snap := protocol.ElementSnapshot{
		TagName:       dom.TagName(n),
		ID:            id,
		ClassName:     class,
		Text:          Truncate(htmlquery.InnerText(n), MaxText),
		InnerHTML:     Truncate(cleanInnerHTML(doc, n), MaxInnerHTML),
		Path:          ComputePath(doc, n).String(),
		ComputedStyle: doc.ComputedStyle(n),
		Rect:          doc.Rect(n),
		Attributes:    attrs,
	}
	if et, ok := dom.Attr(n, "data-element-type"); ok {
		snap.ElementType = et
	}
	return snap
}

// cleanInnerHTML renders the children of n as page markup. It works on
// copies so the live node is never touched.
func cleanInnerHTML(doc *dom.Document, n *html.Node) string {
	holder := dom.CreateElement(n.Data)
	for _, c := range dom.CloneChildren(n) {
		holder.AppendChild(c)
	}
	return dom.InnerHTML(doc.Clean(holder))
}

// InnerHTMLAt resolves path in a full page and returns the untruncated inner
// markup of the node it names.
func InnerHTMLAt(content, path string) (string, bool) {
	doc, err := dom.ParseString(content)
	if err != nil {
		return "", false
	}
	n := ResolveString(doc, path)
	if n == nil {
		return "", false
	}
	return cleanInnerHTML(doc, n), true
}
