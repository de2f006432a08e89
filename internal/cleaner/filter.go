package cleaner

import (
	"strconv"
	"strings"
	"time"
)

// Filter selects which conversations a clean run touches. The zero value
// matches everything.
type Filter struct {
	// Kinds restricts the run to the listed categories. Empty means all.
	Kinds []Kind
	// Cutoff keeps only conversations whose last activity is strictly
	// before this instant. Zero disables the check; conversations without
	// a last-activity timestamp are never excluded by it.
	Cutoff time.Time
	// Match is a case-insensitive substring the display name must contain.
	Match string
	// Exclude lists conversations that must never be touched, by numeric
	// ID, username (with or without the leading @) or exact title.
	// It takes precedence over every other predicate.
	Exclude []string
}

// Matches reports whether the conversation is included by the filter.
// Predicates short-circuit on the first exclusion, exclude list first.
func (f Filter) Matches(c Conversation) bool {
	if f.excluded(c) {
		return false
	}

	if len(f.Kinds) > 0 {
		kind := Classify(c)
		found := false
		for _, k := range f.Kinds {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !f.Cutoff.IsZero() && !c.LastActivity.IsZero() && !c.LastActivity.Before(f.Cutoff) {
		return false
	}

	if f.Match != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Match)) {
		return false
	}

	return true
}

func (f Filter) excluded(c Conversation) bool {
	if len(f.Exclude) == 0 {
		return false
	}
	id := strconv.FormatInt(c.ID, 10)
	for _, entry := range f.Exclude {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if entry == id || entry == c.Title {
			return true
		}
		if c.Username != "" && strings.TrimPrefix(entry, "@") == c.Username {
			return true
		}
	}
	return false
}
