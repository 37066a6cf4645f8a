package domain

import "time"

// WeightRow groups the repetition counts performed at one weight within a
// session. Reps append in chronological order.
type WeightRow struct {
	Weight float64 `json:"weight"`
	Reps   []int   `json:"reps"`
}

// Session aggregates all sets performed for one exercise on one calendar
// day. There is at most one session per (exerciseKey, day) pair.
type Session struct {
	Key uint64 `json:"key,omitempty"`

	ExerciseKey uint64 `json:"exerciseKey"`

	// Date is truncated to calendar day; it identifies the session.
	Date time.Time `json:"date"`

	// Sets keeps insertion order: one row per distinct weight, ordered by
	// first use within the session.
	Sets []WeightRow `json:"sets"`
}

// DayOf truncates a timestamp to its calendar day, in its own location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether both timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// AddSet folds one performed set into the session: reps append to the
// existing row for that weight, or a new row goes to the end of Sets. The
// rows list is small by construction (one session per day), so the lookup
// is a linear scan.
func (s *Session) AddSet(weight float64, reps int) {
	for i := range s.Sets {
		if s.Sets[i].Weight == weight {
			s.Sets[i].Reps = append(s.Sets[i].Reps, reps)
			return
		}
	}
	s.Sets = append(s.Sets, WeightRow{Weight: weight, Reps: []int{reps}})
}

// Clone returns a deep copy. Record-set mutations work on a copy so a failed
// persistence call never leaves half-updated state in memory.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Sets = make([]WeightRow, len(s.Sets))
	for i, row := range s.Sets {
		c.Sets[i] = WeightRow{Weight: row.Weight, Reps: append([]int(nil), row.Reps...)}
	}
	return &c
}
