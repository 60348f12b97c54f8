package redemption

import (
	"cmp"
	"slices"
	"time"
)

// Entry is a record annotated with its evaluation.
type Entry struct {
	Record Record
	Evaluation
}

// Skipped identifies a record that failed validation and was left out of
// an aggregation.
type Skipped struct {
	ID  string
	Err error
}

// Result is the output of Aggregate.
type Result struct {
	Entries []Entry
	Skipped []Skipped
}

// Counts returns the number of entries per status.
func (r Result) Counts() map[Status]int {
	out := map[Status]int{StatusActive: 0, StatusUsed: 0, StatusExpired: 0}
	for _, e := range r.Entries {
		out[e.Status]++
	}
	return out
}

// Aggregate evaluates every record at now and orders the result for
// display: active codes soonest-expiring first, then used codes most recent
// first, then expired codes most recent first.  Ties are broken by ID.
// Invalid records are reported in Skipped instead of failing the batch.
// The input slice is not modified.
func Aggregate(records []Record, now time.Time, window time.Duration) Result {
	res := Result{Entries: make([]Entry, 0, len(records))}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			res.Skipped = append(res.Skipped, Skipped{ID: rec.ID, Err: err})
			continue
		}
		res.Entries = append(res.Entries, Entry{Record: rec, Evaluation: Evaluate(rec, now, window)})
	}
	slices.SortFunc(res.Entries, compareEntries)
	return res
}

func compareEntries(a, b Entry) int {
	if c := cmp.Compare(a.Status.rank(), b.Status.rank()); c != 0 {
		return c
	}
	var c int
	if a.Status == StatusActive {
		c = cmp.Compare(a.Remaining, b.Remaining)
	} else {
		c = b.Record.CreatedAt.Compare(a.Record.CreatedAt)
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.Record.ID, b.Record.ID)
}
