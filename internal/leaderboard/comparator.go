package leaderboard

import (
	"sort"
	"time"
)

// scoreTolerance is the float tolerance under which two percentages count as
// the same score.
const scoreTolerance = 0.01

// Entry is one user's best recorded attempt for a (subject, test) pair.
type Entry struct {
	UserID           string    `json:"userId"`
	DisplayName      string    `json:"userName"`
	ScorePercent     float64   `json:"score"`
	TimeSpentMinutes int       `json:"timeSpent"`
	RecordedAt       time.Time `json:"timestamp"`
	Subject          string    `json:"subject"`
	TestID           string    `json:"testId"`
}

// IsBetter reports whether a outranks b. This single comparator drives the
// replace-decision, best-per-user grouping, and the display sort; the three
// must never diverge.
//
// Order: higher score, then lower time spent, then earlier timestamp. A later
// attempt that ties on both score and time does NOT replace the earlier one.
func IsBetter(a, b Entry) bool {
	diff := a.ScorePercent - b.ScorePercent
	if diff > scoreTolerance {
		return true
	}
	if diff < -scoreTolerance {
		return false
	}
	if a.TimeSpentMinutes != b.TimeSpentMinutes {
		return a.TimeSpentMinutes < b.TimeSpentMinutes
	}
	return a.RecordedAt.Before(b.RecordedAt)
}

// Reconcile decides whether a new attempt becomes the user's canonical entry.
// Returns the entry to persist, or nil to keep the existing one unchanged.
func Reconcile(existing *Entry, attempt Entry) *Entry {
	if existing == nil {
		return &attempt
	}
	if IsBetter(attempt, *existing) {
		return &attempt
	}
	return nil
}

// Sort orders entries into the canonical leaderboard order in place.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return IsBetter(entries[i], entries[j])
	})
}

// Rank returns the 1-based position of userID in the already-sorted entries,
// or 0 when the user has no entry. Rank is looked up by identity, never
// recomputed independently of the sort.
func Rank(entries []Entry, userID string) int {
	for i, e := range entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// BestPerUser collapses raw attempts down to each user's single best entry,
// then sorts canonically. Used when deriving a board from raw results rather
// than the reconciled collection.
func BestPerUser(attempts []Entry) []Entry {
	best := make(map[string]Entry, len(attempts))
	for _, attempt := range attempts {
		current, ok := best[attempt.UserID]
		if !ok || IsBetter(attempt, current) {
			best[attempt.UserID] = attempt
		}
	}

	entries := make([]Entry, 0, len(best))
	for _, e := range best {
		entries = append(entries, e)
	}
	Sort(entries)
	return entries
}
