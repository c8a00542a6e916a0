// Package locator computes structural paths for page elements, resolves them
// back to nodes and captures serialisable element snapshots.
//
// A path reads like a CSS child-combinator selector rooted at body:
//
//	body > main#content > section.hero.dark:nth-of-type(2) > h1
//
// Each level uses the element id if present, otherwise up to the first two
// class tokens, plus a 1-based :nth-of-type index when the parent has more
// than one child with the same tag.
package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/livedit/internal/dom"
	"golang.org/x/net/html"
)

const (
	// RootMarker prefixes every path.
	RootMarker = "body"
	// Separator joins descriptors.
	Separator = " > "

	maxClasses = 2
)

var (
	// ErrEmptyPath is returned for a blank path string.
	ErrEmptyPath = errors.New("empty path")
	// ErrBadRoot is returned when a path does not start at body.
	ErrBadRoot = errors.New("path must start at body")
	// ErrBadDescriptor is returned for a descriptor that cannot be parsed.
	ErrBadDescriptor = errors.New("malformed path descriptor")
)

// Descriptor identifies one element relative to its parent.
type Descriptor struct {
	Tag     string
	ID      string
	Classes []string
	// Index is the 1-based position among same-tag siblings, 0 when the tag is unique.
	Index int
}

// Path is the chain of descriptors from below body down to the node.
type Path []Descriptor

const specialChars = `\.#: >`

func escape(s string) string {
	if !strings.ContainsAny(s, specialChars) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String renders the descriptor in selector form.
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Tag)
	if d.ID != "" {
		b.WriteByte('#')
		b.WriteString(escape(d.ID))
	} else {
		for _, c := range d.Classes {
			b.WriteByte('.')
			b.WriteString(escape(c))
		}
	}
	if d.Index > 0 {
		b.WriteString(":nth-of-type(")
		b.WriteString(strconv.Itoa(d.Index))
		b.WriteByte(')')
	}
	return b.String()
}

// String renders the full path including the root marker.
func (p Path) String() string {
	parts := make([]string, 0, len(p)+1)
	parts = append(parts, RootMarker)
	for _, d := range p {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, Separator)
}

// ComputePath builds the path of n. Nodes outside body yield an empty path.
func ComputePath(doc *dom.Document, n *html.Node) Path {
	body := doc.Body()
	var rev Path
	for c := n; dom.IsElement(c) && c != body; c = c.Parent {
		if c.Parent == nil {
			return nil
		}
		rev = append(rev, describe(c))
	}
	if !dom.Contains(body, n) {
		return nil
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

func describe(n *html.Node) Descriptor {
	d := Descriptor{Tag: dom.TagName(n)}
	if id, ok := dom.Attr(n, "id"); ok && id != "" {
		d.ID = id
	} else if cls, ok := dom.Attr(n, "class"); ok {
		fields := strings.Fields(cls)
		if len(fields) > maxClasses {
			fields = fields[:maxClasses]
		}
		d.Classes = fields
	}

	index, total := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if dom.TagName(s) != d.Tag {
			continue
		}
		if _, ok := dom.Attr(s, dom.ToolbarAttr); ok {
			continue
		}
		total++
		if s == n {
			index = total
		}
	}
	if total > 1 {
		d.Index = index
	}
	return d
}

// ParsePath parses the String form of a path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyPath
	}
	parts := splitUnescaped(s)
	if strings.TrimSpace(parts[0]) != RootMarker {
		return nil, fmt.Errorf("%w: %q", ErrBadRoot, parts[0])
	}
	var p Path
	for _, part := range parts[1:] {
		d, err := parseDescriptor(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		p = append(p, d)
	}
	return p, nil
}

// splitUnescaped splits on '>' that is not preceded by a backslash.
func splitUnescaped(s string) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteByte('\\')
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '>':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(parts, cur.String())
}

func parseDescriptor(s string) (Descriptor, error) {
	var d Descriptor
	if s == "" {
		return d, fmt.Errorf("%w: empty", ErrBadDescriptor)
	}

	// Split into tokens on unescaped '.', '#' and ':' keeping the sigil.
	type token struct {
		sigil rune
		text  strings.Builder
	}
	toks := []*token{{}}
	escaped := false
	for _, r := range s {
		cur := toks[len(toks)-1]
		switch {
		case escaped:
			cur.text.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.' || r == '#' || r == ':':
			toks = append(toks, &token{sigil: r})
		default:
			cur.text.WriteRune(r)
		}
	}

	d.Tag = strings.ToLower(toks[0].text.String())
	if d.Tag == "" {
		return d, fmt.Errorf("%w: %q has no tag", ErrBadDescriptor, s)
	}
	for _, t := range toks[1:] {
		text := t.text.String()
		switch t.sigil {
		case '#':
			d.ID = text
		case '.':
			d.Classes = append(d.Classes, text)
		case ':':
			if !strings.HasPrefix(text, "nth-of-type(") || !strings.HasSuffix(text, ")") {
				return d, fmt.Errorf("%w: unsupported pseudo-class %q", ErrBadDescriptor, text)
			}
			n, err := strconv.Atoi(text[len("nth-of-type(") : len(text)-1])
			if err != nil || n < 1 {
				return d, fmt.Errorf("%w: bad index in %q", ErrBadDescriptor, text)
			}
			d.Index = n
		}
	}
	return d, nil
}
