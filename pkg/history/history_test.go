package history

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/miditui/pkg/midi"
)

func testProject() *midi.Project {
	return midi.NewProjectWithDefaultTrack("Test")
}

func TestPushUndoClearsRedo(t *testing.T) {
	h := New()
	h.PushUndo(NewSnapshot(testProject(), 0, nil, "Action 1"))

	undone, ok := h.PopUndo()
	if !ok {
		t.Fatal("expected undo entry")
	}
	h.PushRedo(undone)
	if !h.CanRedo() {
		t.Fatal("expected redo entry after pushing")
	}

	h.PushUndo(NewSnapshot(testProject(), 0, nil, "Action 2"))
	if h.CanRedo() {
		t.Fatal("a new action must clear the redo stack")
	}
}

func TestPushUndoPreserveRedoKeepsStack(t *testing.T) {
	h := New()
	for i := 0; i < 4; i++ {
		h.PushUndo(NewSnapshot(testProject(), 0, nil, "Action"))
	}
	for i := 0; i < 4; i++ {
		undone, _ := h.PopUndo()
		h.PushRedo(undone)
	}
	if h.UndoCount() != 0 || h.RedoCount() != 4 {
		t.Fatalf("expected 0 undo / 4 redo, got %d/%d", h.UndoCount(), h.RedoCount())
	}

	for i := 0; i < 4; i++ {
		redone, _ := h.PopRedo()
		h.PushUndoPreserveRedo(redone)
	}
	if h.UndoCount() != 4 || h.RedoCount() != 0 {
		t.Fatalf("expected 4 undo / 0 redo, got %d/%d", h.UndoCount(), h.RedoCount())
	}
}

// Property: pushing N snapshots onto the undo stack never leaves more than
// MaxHistorySize entries, and leaves at least one entry whenever N > 0.
func TestHistoryBoundedSizeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("undo stack never exceeds MaxHistorySize and is non-empty after any push", prop.ForAll(
		func(pushCount int) bool {
			h := New()
			for i := 0; i < pushCount; i++ {
				h.PushUndo(NewSnapshot(testProject(), 0, nil, "Action"))
			}

			if h.UndoCount() > MaxHistorySize {
				return false
			}
			if pushCount > 0 && !h.CanUndo() {
				return false
			}
			return true
		},
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

// Property: any sequence of undo-then-redo round trips returns the stacks
// to their pre-undo sizes.
func TestUndoRedoRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("undoing then redoing the same count restores stack sizes", prop.ForAll(
		func(actionCount, undoCount int) bool {
			if undoCount > actionCount {
				undoCount = actionCount
			}

			h := New()
			for i := 0; i < actionCount; i++ {
				h.PushUndo(NewSnapshot(testProject(), 0, nil, "Action"))
			}
			// Only MaxHistorySize snapshots survive the pushes.
			undoBefore := h.UndoCount()
			if undoCount > undoBefore {
				undoCount = undoBefore
			}

			for i := 0; i < undoCount; i++ {
				undone, ok := h.PopUndo()
				if !ok {
					return false
				}
				h.PushRedo(undone)
			}
			if h.RedoCount() != min(undoCount, MaxHistorySize) {
				return false
			}

			for i := 0; i < undoCount; i++ {
				redone, ok := h.PopRedo()
				if !ok {
					return false
				}
				h.PushUndoPreserveRedo(redone)
			}
			return h.RedoCount() == 0 && h.UndoCount() == undoBefore
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestSnapshotValidation(t *testing.T) {
	project := testProject()

	valid := NewSnapshot(project, 0, nil, "Valid")
	if !valid.IsValid() {
		t.Fatal("expected snapshot with in-range track index to be valid")
	}

	invalid := NewSnapshot(project, 10, nil, "Invalid")
	if invalid.IsValid() {
		t.Fatal("expected snapshot with out-of-range track index to be invalid")
	}
}

func TestValidSelectedNotesFiltersDeleted(t *testing.T) {
	project := testProject()
	track := project.TrackAt(0)
	id := track.CreateNote(60, 100, 0, 480)

	selected := map[midi.NoteID]bool{id: true, midi.NoteID(999999): true}
	snap := NewSnapshot(project, 0, selected, "Select")

	valid := snap.ValidSelectedNotes()
	if len(valid) != 1 || !valid[id] {
		t.Fatalf("expected only the existing note id to survive, got %v", valid)
	}
}
