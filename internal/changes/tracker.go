// Package changes counts the unsaved edits of an editing session.
package changes

// Counts is a snapshot of the tracker.
type Counts struct {
	Adds    int
	Deletes int
	Edits   int // distinct edited row positions
}

// Total returns adds + deletes + edited rows.
func (c Counts) Total() int {
	return c.Adds + c.Deletes + c.Edits
}

// Tracker records additions, deletions and edited rows since the last Reset.
//
// Edited rows are recorded by their position at edit time and are never
// renumbered when rows are inserted or removed, so Edits is an approximate
// count rather than a ledger of rows.
type Tracker struct {
	adds    int
	deletes int
	edited  map[int]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{edited: make(map[int]struct{})}
}

// Reset clears every counter.
func (t *Tracker) Reset() {
	t.adds = 0
	t.deletes = 0
	t.edited = make(map[int]struct{})
}

func (t *Tracker) RecordAdd()    { t.adds++ }
func (t *Tracker) RecordDelete() { t.deletes++ }

// RecordEdit marks row as edited. Repeated edits of one row count once.
func (t *Tracker) RecordEdit(row int) {
	if t.edited == nil {
		t.edited = make(map[int]struct{})
	}
	t.edited[row] = struct{}{}
}

// Counts returns the current counters.
func (t *Tracker) Counts() Counts {
	return Counts{Adds: t.adds, Deletes: t.deletes, Edits: len(t.edited)}
}

// Total returns adds + deletes + distinct edited rows.
func (t *Tracker) Total() int {
	return t.Counts().Total()
}

// HasChanges reports whether anything was recorded since the last Reset.
func (t *Tracker) HasChanges() bool {
	return t.adds > 0 || t.deletes > 0 || len(t.edited) > 0
}
