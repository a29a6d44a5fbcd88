package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_EmptyHasNoChanges(t *testing.T) {
	tr := New()
	assert.False(t, tr.HasChanges())
	assert.Equal(t, 0, tr.Total())

	var zero Tracker
	assert.False(t, zero.HasChanges())
	zero.RecordEdit(3)
	assert.True(t, zero.HasChanges())
}

func TestTracker_EachOperationSetsHasChanges(t *testing.T) {
	ops := map[string]func(*Tracker){
		"add":    func(tr *Tracker) { tr.RecordAdd() },
		"delete": func(tr *Tracker) { tr.RecordDelete() },
		"edit":   func(tr *Tracker) { tr.RecordEdit(0) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			tr := New()
			op(tr)
			assert.True(t, tr.HasChanges())
			assert.Equal(t, 1, tr.Total())

			tr.Reset()
			assert.False(t, tr.HasChanges())
			assert.Equal(t, 0, tr.Total())
		})
	}
}

func TestTracker_EditsCountDistinctRows(t *testing.T) {
	tr := New()
	tr.RecordEdit(1)
	tr.RecordEdit(1)
	tr.RecordEdit(4)
	tr.RecordAdd()
	tr.RecordDelete()
	tr.RecordDelete()

	assert.Equal(t, Counts{Adds: 1, Deletes: 2, Edits: 2}, tr.Counts())
	assert.Equal(t, 5, tr.Total())
}

// Positions are not renumbered: editing row 2, deleting row 0, then editing
// the same record (now at row 1) counts two edited rows.
func TestTracker_PositionsAreNotRenumbered(t *testing.T) {
	tr := New()
	tr.RecordEdit(2)
	tr.RecordDelete()
	tr.RecordEdit(1)

	assert.Equal(t, 3, tr.Total())
}
