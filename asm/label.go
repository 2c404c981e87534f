package asm

import "fmt"

// Label is an opaque handle to a code position. It is a value type; the
// authoritative bound/unbound state lives in the owning LabelManager.
type Label struct {
	ID   int
	name string
}

func (l Label) String() string {
	if l.name != "" {
		return l.name
	}
	return fmt.Sprintf("L%d", l.ID)
}

type labelState struct {
	bound  bool
	offset uint64
	name   string
}

// LabelManager allocates label ids, binds them to code offsets exactly
// once, and resolves names to ids. It is owned exclusively by the
// Assembler (or Builder) that created it; see spec §4.2.
type LabelManager struct {
	states  []labelState
	byName  map[string]int
}

// NewLabelManager returns an empty LabelManager.
func NewLabelManager() *LabelManager {
	return &LabelManager{byName: make(map[string]int)}
}

// NewLabel allocates a fresh, unbound, unnamed label. Ids are assigned in
// monotonically increasing order starting at 0.
func (m *LabelManager) NewLabel() Label {
	id := len(m.states)
	m.states = append(m.states, labelState{})
	return Label{ID: id}
}

// NewNamedLabel allocates a fresh label under a unique name, failing with
// ErrLabelAlreadyDefined if the name is already taken and
// ErrLabelNameTooLong if it exceeds MaxLabelNameLength.
func (m *LabelManager) NewNamedLabel(name string) (Label, error) {
	if len(name) > MaxLabelNameLength {
		return Label{}, fmt.Errorf("%w: %q is %d bytes", ErrLabelNameTooLong, name, len(name))
	}
	if _, exists := m.byName[name]; exists {
		return Label{}, fmt.Errorf("%w: %q", ErrLabelAlreadyDefined, name)
	}
	id := len(m.states)
	m.states = append(m.states, labelState{name: name})
	m.byName[name] = id
	return Label{ID: id, name: name}, nil
}

// Bind records the label's offset. It fails with ErrLabelAlreadyBound on a
// second call for the same label, and ErrInvalidLabel for an id this
// manager never allocated.
func (m *LabelManager) Bind(l Label, offset uint64) error {
	if l.ID < 0 || l.ID >= len(m.states) {
		return fmt.Errorf("%w: id %d", ErrInvalidLabel, l.ID)
	}
	st := &m.states[l.ID]
	if st.bound {
		return fmt.Errorf("%w: %s", ErrLabelAlreadyBound, l)
	}
	st.bound = true
	st.offset = offset
	return nil
}

// IsBound reports whether the label has been bound.
func (m *LabelManager) IsBound(l Label) bool {
	if l.ID < 0 || l.ID >= len(m.states) {
		return false
	}
	return m.states[l.ID].bound
}

// OffsetOf returns the bound offset of a label, failing with ErrUnboundLabel
// if it has not been bound yet.
func (m *LabelManager) OffsetOf(l Label) (uint64, error) {
	if l.ID < 0 || l.ID >= len(m.states) {
		return 0, fmt.Errorf("%w: id %d", ErrInvalidLabel, l.ID)
	}
	st := m.states[l.ID]
	if !st.bound {
		return 0, fmt.Errorf("%w: %s", ErrUnboundLabel, l)
	}
	return st.offset, nil
}

// LookupByName resolves a previously created named label.
func (m *LabelManager) LookupByName(name string) (Label, bool) {
	id, ok := m.byName[name]
	if !ok {
		return Label{}, false
	}
	return Label{ID: id, name: name}, true
}

// AllBound reports whether every allocated label has been bound, and
// returns the first unbound label found otherwise (for diagnostics).
func (m *LabelManager) AllBound() (ok bool, unbound Label) {
	for i, st := range m.states {
		if !st.bound {
			return false, Label{ID: i, name: st.name}
		}
	}
	return true, Label{}
}
