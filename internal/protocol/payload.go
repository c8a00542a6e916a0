package protocol

// Empty is the payload of element-deselected and deselect.
type Empty struct{}

// Rect is a bounding client rect in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns Top+Height.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// ComputedStyle is the allow-listed subset of computed style captured with a snapshot.
type ComputedStyle struct {
	Width           string `json:"width"`
	Height          string `json:"height"`
	Padding         string `json:"padding"`
	Margin          string `json:"margin"`
	Display         string `json:"display"`
	FontSize        string `json:"fontSize"`
	FontWeight      string `json:"fontWeight"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	BorderRadius    string `json:"borderRadius"`
	TextAlign       string `json:"textAlign"`
}

// ElementSnapshot is a point-in-time capture of a node.
type ElementSnapshot struct {
	TagName       string            `json:"tagName"`
	ID            string            `json:"id"`
	ClassName     string            `json:"className"`
	Text          string            `json:"text"`
	InnerHTML     string            `json:"innerHTML"`
	Path          string            `json:"path"`
	ComputedStyle ComputedStyle     `json:"computedStyle"`
	Rect          Rect              `json:"rect"`
	Attributes    map[string]string `json:"attributes"`
	// ElementType is optional explicit metadata; hosts fall back to tag mapping.
	ElementType string `json:"elementType,omitempty"`
}

// Ready is sent once when the selector initialises.
type Ready struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// ElementSelected reports a user selection.
type ElementSelected struct {
	ElementSnapshot
	MouseX float64 `json:"mouseX"`
	MouseY float64 `json:"mouseY"`
}

// ElementEditing reports the start of an inline edit session.
type ElementEditing struct {
	ElementSnapshot
	OriginalText string `json:"originalText"`
}

// TextChanged reports a committed edit whose text differs from the original.
type TextChanged struct {
	ElementSnapshot
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

// ContentChanged carries the full document content after a committed change.
type ContentChanged struct {
	Content string `json:"content"`
}

// SetSelectionMode toggles interactive selection.
type SetSelectionMode struct {
	Enabled bool `json:"enabled"`
}

// Patch fields accepted by update-element.
const (
	FieldText     = "text"
	FieldClasses  = "classes"
	FieldHTML     = "html"
	FieldSrc      = "src"
	FieldHref     = "href"
	FieldTarget   = "target"
	FieldAlt      = "alt"
	FieldDisabled = "disabled"
	FieldLoading  = "loading"
)

// UpdateElement applies one property patch to the selected node.
type UpdateElement struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SelectByPath selects a node programmatically.
type SelectByPath struct {
	Path string `json:"path"`
}

// ReplaceContent replaces the whole document content.
type ReplaceContent struct {
	Content string `json:"content"`
}
