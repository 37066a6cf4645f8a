package domain

import (
	"strings"
	"time"
)

// Exercise represents a named activity tracked over time (e.g., "Squat").
type Exercise struct {
	// Key is the store-assigned ordinal, attached after decode. Immutable
	// once assigned; zero means the exercise was never persisted.
	Key uint64 `json:"key,omitempty"`

	Name    string   `json:"name"`
	Muscles []string `json:"muscles"`

	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt advances on every session mutation that touches this
	// exercise, not only on renames.
	UpdatedAt time.Time `json:"updatedAt"`

	// LastSession is a denormalized value copy of the most recent session
	// (by session date), kept so list rendering needs no extra lookup.
	// Not authoritative; the sessions store is.
	LastSession *Session `json:"lastSession"`
}

// NormalizeName returns the trimmed form under which exercise names are
// stored and compared (case-sensitive).
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
