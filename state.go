package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// State is the lifecycle stage of a card. It drives every branch of the
// scheduling formulas.
type State int

const (
	New        State = iota + 1 // Never reviewed.
	Learning                    // Seen, not yet graduated.
	Review                      // In the long-term review cycle.
	Relearning                  // Lapsed out of Review.
)

var (
	stateNames = [...]string{New: "New", Learning: "Learning", Review: "Review", Relearning: "Relearning"}
	stateText  = [...]string{New: "new", Learning: "learning", Review: "review", Relearning: "relearning"}
	stateByText = map[string]State{
		"new":        New,
		"learning":   Learning,
		"review":     Review,
		"relearning": Relearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = State(0)
	_ json.Marshaler           = State(0)
	_ json.Unmarshaler         = (*State)(nil)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

// IsValid reports whether s is one of the four lifecycle states.
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

// String returns the name of the state ("New", "Learning", "Review",
// "Relearning"). For invalid values it returns "State(n)".
func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler. The text form is the
// lower-case name used in storage ("new", "learning", ...).
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stateText[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByText[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. State serializes as a JSON string.
func (s State) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidState, data)
	}
	return s.UnmarshalText([]byte(str))
}

// ParseState converts the stored text form into a State.
func ParseState(text string) (State, error) {
	var s State
	if err := s.UnmarshalText([]byte(text)); err != nil {
		return 0, err
	}
	return s, nil
}
