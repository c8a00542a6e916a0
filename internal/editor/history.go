package editor

const (
	// MinHistory and MaxHistory bound the configurable history capacity.
	MinHistory = 20
	MaxHistory = 50
	// DefaultHistory is used when no capacity is configured.
	DefaultHistory = 30
)

// History is a bounded undo/redo stack of full-document contents. The most
// recent push is the current state; Len counts it together with the past.
type History struct {
	cap     int
	past    []string
	current string
	has     bool
	future  []string
}

// NewHistory returns a history holding at most capacity states, clamped to
// [MinHistory, MaxHistory]. Zero selects DefaultHistory.
func NewHistory(capacity int) *History {
	switch {
	case capacity == 0:
		capacity = DefaultHistory
	case capacity < MinHistory:
		capacity = MinHistory
	case capacity > MaxHistory:
		capacity = MaxHistory
	}
	return &History{cap: capacity}
}

// Cap returns the capacity.
func (h *History) Cap() int { return h.cap }

// Push records content as the current state and clears the redo stack.
// Pushing the current state again is a no-op.
func (h *History) Push(content string) {
	if h.has && content == h.current {
		return
	}
	if h.has {
		h.past = append(h.past, h.current)
		if over := len(h.past) - (h.cap - 1); over > 0 {
			h.past = append([]string(nil), h.past[over:]...)
		}
	}
	h.current = content
	h.has = true
	h.future = nil
}

// Undo steps back one state and returns it.
func (h *History) Undo() (string, bool) {
	if len(h.past) == 0 {
		return "", false
	}
	h.future = append(h.future, h.current)
	h.current = h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	return h.current, true
}

// Redo steps forward one state and returns it.
func (h *History) Redo() (string, bool) {
	if len(h.future) == 0 {
		return "", false
	}
	h.past = append(h.past, h.current)
	h.current = h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	return h.current, true
}

// Current returns the current state.
func (h *History) Current() (string, bool) { return h.current, h.has }

// Len returns the number of states held, including the current one.
func (h *History) Len() int {
	if !h.has {
		return 0
	}
	return len(h.past) + 1
}

// FutureLen returns the number of redoable states.
func (h *History) FutureLen() int { return len(h.future) }

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool { return len(h.future) > 0 }
