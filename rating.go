package fsrs

import (
	"encoding/json"
	"fmt"
)

// Rating is the learner's grade of recall quality, 1 (total failure) to
// 10 (perfect).
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 10

	// MidRating is the midpoint of the scale. Ratings above it lower
	// difficulty, ratings below it raise difficulty.
	MidRating = 5.5
)

// Compile-time interface checks.
var (
	_ fmt.Stringer     = Rating(0)
	_ json.Marshaler   = Rating(0)
	_ json.Unmarshaler = (*Rating)(nil)
)

// IsValid reports whether r lies in [MinRating, MaxRating].
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// Validate returns an error wrapping ErrInvalidRating when r is out of range.
func (r Rating) Validate() error {
	if !r.IsValid() {
		return fmt.Errorf("%w: %d, must be in [%d, %d]", ErrInvalidRating, int(r), MinRating, MaxRating)
	}
	return nil
}

// String returns "n/10" for valid ratings and "Rating(n)" otherwise.
func (r Rating) String() string {
	if r.IsValid() {
		return fmt.Sprintf("%d/10", int(r))
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalJSON implements json.Marshaler. Rating serializes as a JSON number.
func (r Rating) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(int(r))
}

// UnmarshalJSON implements json.Unmarshaler. Out-of-range numbers are
// rejected rather than clamped.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	v := Rating(n)
	if err := v.Validate(); err != nil {
		return err
	}
	*r = v
	return nil
}

// Ratings returns every valid rating in ascending order.
func Ratings() []Rating {
	out := make([]Rating, 0, MaxRating)
	for r := MinRating; r <= MaxRating; r++ {
		out = append(out, r)
	}
	return out
}

// band groups adjacent ratings that share an interval modifier and a
// stability factor in the Review state.
type band int

const (
	bandLapse   band = iota // 1–2
	bandHard                // 3–4
	bandGood                // 5–6
	bandEasy                // 7–8
	bandPerfect             // 9–10
)

func (r Rating) band() band {
	return band((r - 1) / 2)
}
