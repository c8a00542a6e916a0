package editor

import (
	"strings"

	"github.com/standardbeagle/livedit/internal/locator"
	"github.com/standardbeagle/livedit/internal/protocol"
)

// ElementType selects the property editor layout for a selection. It has no
// effect on the protocol.
type ElementType string

const (
	TypeImage     ElementType = "image"
	TypeLink      ElementType = "link"
	TypeButton    ElementType = "button"
	TypeInput     ElementType = "input"
	TypeMedia     ElementType = "media"
	TypeHeading   ElementType = "heading"
	TypeText      ElementType = "text"
	TypeContainer ElementType = "container"
	TypeList      ElementType = "list"
	TypeGeneric   ElementType = "generic"
)

var tagTypes = map[string]ElementType{
	"img": TypeImage, "picture": TypeImage, "svg": TypeImage,
	"a":      TypeLink,
	"button": TypeButton,
	"input":  TypeInput, "textarea": TypeInput, "select": TypeInput,
	"video": TypeMedia, "audio": TypeMedia, "iframe": TypeMedia,
	"h1": TypeHeading, "h2": TypeHeading, "h3": TypeHeading,
	"h4": TypeHeading, "h5": TypeHeading, "h6": TypeHeading,
	"p": TypeText, "span": TypeText, "label": TypeText, "blockquote": TypeText,
	"strong": TypeText, "em": TypeText, "small": TypeText, "figcaption": TypeText,
	"div": TypeContainer, "section": TypeContainer, "main": TypeContainer,
	"header": TypeContainer, "footer": TypeContainer, "article": TypeContainer,
	"aside": TypeContainer, "nav": TypeContainer,
	"ul": TypeList, "ol": TypeList, "li": TypeList,
}

func knownType(s string) (ElementType, bool) {
	t := ElementType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeImage, TypeLink, TypeButton, TypeInput, TypeMedia,
		TypeHeading, TypeText, TypeContainer, TypeList, TypeGeneric:
		return t, true
	}
	return "", false
}

// Classify derives the element type from explicit metadata when present,
// otherwise from the tag name.
func Classify(s protocol.ElementSnapshot) ElementType {
	if t, ok := knownType(s.ElementType); ok {
		return t
	}
	if t, ok := knownType(s.Attributes["data-element-type"]); ok {
		return t
	}
	tag := strings.ToLower(s.TagName)
	if tag == "input" {
		switch strings.ToLower(s.Attributes["type"]) {
		case "button", "submit", "reset":
			return TypeButton
		}
	}
	if t, ok := tagTypes[tag]; ok {
		return t
	}
	return TypeGeneric
}

// propertyKeys lists the editable properties per element type, in display order.
var propertyKeys = map[ElementType][]string{
	TypeImage:     {protocol.FieldSrc, protocol.FieldAlt, protocol.FieldLoading, protocol.FieldClasses},
	TypeLink:      {protocol.FieldText, protocol.FieldHref, protocol.FieldTarget, protocol.FieldClasses},
	TypeButton:    {protocol.FieldText, protocol.FieldDisabled, protocol.FieldClasses},
	TypeInput:     {protocol.FieldDisabled, protocol.FieldClasses},
	TypeMedia:     {protocol.FieldSrc, protocol.FieldClasses},
	TypeHeading:   {protocol.FieldText, protocol.FieldClasses},
	TypeText:      {protocol.FieldText, protocol.FieldClasses},
	TypeContainer: {protocol.FieldClasses},
	TypeList:      {protocol.FieldText, protocol.FieldClasses},
	TypeGeneric:   {protocol.FieldClasses},
}

// PropertyKeys returns the editable property keys for t.
func PropertyKeys(t ElementType) []string {
	return append([]string(nil), propertyKeys[t]...)
}

// propertyValues reads the current value of every editable property of s.
// Text cut at the snapshot limit is left out, since applying it would write
// the shortened text back.
func propertyValues(t ElementType, s protocol.ElementSnapshot) map[string]string {
	keys := propertyKeys[t]
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		switch k {
		case protocol.FieldText:
			if locator.Truncate(s.Text, locator.MaxText-1) != s.Text {
				continue
			}
			out[k] = s.Text
		case protocol.FieldClasses:
			out[k] = s.ClassName
		case protocol.FieldDisabled:
			_, on := s.Attributes["disabled"]
			if on {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		default:
			out[k] = s.Attributes[k]
		}
	}
	return out
}
