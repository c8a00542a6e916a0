// Package protocol defines the message vocabulary exchanged between the
// embedded page document and the editor host.
//
// Every message is a JSON object {type, data, timestamp}. The payload shape
// and the direction are fixed per type. Delivery is fire-and-forget and
// at-most-once; receivers must treat unknown types as ignorable.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type tags a message.
type Type string

// Embedded → host.
const (
	TypeReady             Type = "ready-notification"
	TypeElementSelected   Type = "element-selected"
	TypeElementDeselected Type = "element-deselected"
	TypeElementEditing    Type = "element-editing"
	TypeTextChanged       Type = "text-changed"
	TypeActionRegenerate  Type = "action-regenerate"
	TypeActionCustomEdit  Type = "action-custom-edit"
	TypeActionProps       Type = "action-props"
	TypeContentChanged    Type = "content-changed"
)

// Host → embedded.
const (
	TypeSetSelectionMode Type = "set-selection-mode"
	TypeDeselect         Type = "deselect"
	TypeUpdateElement    Type = "update-element"
	TypeSelectByPath     Type = "select-by-path"
	TypeReplaceContent   Type = "replace-content"
)

// Direction is the side a message type travels towards.
type Direction int

const (
	DirectionUnknown Direction = iota
	ToHost
	ToEmbedded
)

func (d Direction) String() string {
	switch d {
	case ToHost:
		return "embedded->host"
	case ToEmbedded:
		return "host->embedded"
	default:
		return "unknown"
	}
}

var directions = map[Type]Direction{
	TypeReady:             ToHost,
	TypeElementSelected:   ToHost,
	TypeElementDeselected: ToHost,
	TypeElementEditing:    ToHost,
	TypeTextChanged:       ToHost,
	TypeActionRegenerate:  ToHost,
	TypeActionCustomEdit:  ToHost,
	TypeActionProps:       ToHost,
	TypeContentChanged:    ToHost,
	TypeSetSelectionMode:  ToEmbedded,
	TypeDeselect:          ToEmbedded,
	TypeUpdateElement:     ToEmbedded,
	TypeSelectByPath:      ToEmbedded,
	TypeReplaceContent:    ToEmbedded,
}

// Direction returns the direction of t, or DirectionUnknown.
func (t Type) Direction() Direction {
	return directions[t]
}

// Known reports whether t is part of the vocabulary.
func (t Type) Known() bool {
	_, ok := directions[t]
	return ok
}

// IsAction reports whether t is one of the toolbar action notifications.
func (t Type) IsAction() bool {
	return t == TypeActionRegenerate || t == TypeActionCustomEdit || t == TypeActionProps
}

var (
	// ErrMalformed is returned for frames that are not a protocol message.
	ErrMalformed = errors.New("malformed message")
	// ErrMissingType is returned for messages without a type tag.
	ErrMissingType = errors.New("message has no type")
)

// Message is the wire envelope.
type Message struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// New builds a message stamped with the current time in milliseconds.
func New(t Type, data any) (Message, error) {
	return NewAt(t, data, time.Now())
}

// NewAt builds a message stamped with at.
func NewAt(t Type, data any, at time.Time) (Message, error) {
	if t == "" {
		return Message{}, ErrMissingType
	}
	if data == nil {
		data = Empty{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Message{Type: t, Data: raw, Timestamp: at.UnixMilli()}, nil
}

// Decode unmarshals the payload into v. A missing payload decodes as {}.
func (m Message) Decode(v any) error {
	data := m.Data
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, m.Type, err)
	}
	return nil
}

// Encode serialises m to JSON.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire frame. Unknown types are not an error here; the
// dispatcher decides what to ignore.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, ErrMissingType
	}
	return m, nil
}
