package fsrs

// Transition maps a lifecycle state and a rating to the next state.
// isLapse is true only for Review → Relearning (rating 1–2).
//
//	New         any   → Learning
//	Learning    1–4   → Learning     5–10 → Review
//	Review      1–2   → Relearning   3–10 → Review
//	Relearning  1–4   → Relearning   5–10 → Review
//
// Callers are expected to validate the rating first; an out-of-range
// state is returned unchanged.
func Transition(state State, r Rating) (next State, isLapse bool) {
	switch state {
	case New:
		return Learning, false
	case Learning:
		if r >= 5 {
			return Review, false
		}
		return Learning, false
	case Review:
		if r <= 2 {
			return Relearning, true
		}
		return Review, false
	case Relearning:
		if r >= 5 {
			return Review, false
		}
		return Relearning, false
	default:
		return state, false
	}
}
