// Package history implements snapshot-based undo/redo with
// branching-timeline semantics: redoing an undone action replays it without
// disturbing the rest of the redo stack, but any new action after an undo
// discards the abandoned future.
package history

import "github.com/zurustar/miditui/pkg/midi"

// MaxHistorySize bounds each stack; the oldest entry is dropped once a push
// would exceed it.
const MaxHistorySize = 8

// Snapshot captures everything needed to restore the application to a
// prior point: the full project plus the UI selection state an edit
// operation cares about.
type Snapshot struct {
	Project            *midi.Project
	SelectedTrackIndex int
	SelectedNotes      map[midi.NoteID]bool
	Description        string
}

// NewSnapshot clones project and the selection set into a new Snapshot.
func NewSnapshot(project *midi.Project, selectedTrackIndex int, selectedNotes map[midi.NoteID]bool, description string) Snapshot {
	data, err := project.ToJSON()
	var clone *midi.Project
	if err == nil {
		clone, err = midi.ProjectFromJSON(data)
	}
	if err != nil {
		clone = project
	}

	notes := make(map[midi.NoteID]bool, len(selectedNotes))
	for id := range selectedNotes {
		notes[id] = true
	}

	return Snapshot{
		Project:            clone,
		SelectedTrackIndex: selectedTrackIndex,
		SelectedNotes:      notes,
		Description:        description,
	}
}

// IsValid reports whether the snapshot can be safely restored: a track
// count of zero makes index 0 valid (it will be clamped by the caller),
// otherwise the selected index must be in range.
func (s Snapshot) IsValid() bool {
	count := s.Project.TrackCount()
	return count == 0 || s.SelectedTrackIndex < count
}

// ValidSelectedNotes returns the subset of SelectedNotes that still exist
// on the selected track, dropping references to notes a redo or undo
// removed.
func (s Snapshot) ValidSelectedNotes() map[midi.NoteID]bool {
	track := s.Project.TrackAt(s.SelectedTrackIndex)
	if track == nil {
		return map[midi.NoteID]bool{}
	}
	result := map[midi.NoteID]bool{}
	for _, n := range track.Notes() {
		if s.SelectedNotes[n.ID] {
			result[n.ID] = true
		}
	}
	return result
}

// Manager holds the undo and redo stacks.
type Manager struct {
	undoStack []Snapshot
	redoStack []Snapshot
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		undoStack: make([]Snapshot, 0, MaxHistorySize),
		redoStack: make([]Snapshot, 0, MaxHistorySize),
	}
}

// PushUndo records a snapshot taken before an operation and clears the redo
// stack: any new action starts a fresh timeline branch.
func (m *Manager) PushUndo(snapshot Snapshot) {
	m.redoStack = m.redoStack[:0]
	m.PushUndoPreserveRedo(snapshot)
}

// PushUndoPreserveRedo records a snapshot on the undo stack without
// touching the redo stack. Used when replaying a redo: the state being
// left behind goes to undo, but the rest of the redo stack must survive.
func (m *Manager) PushUndoPreserveRedo(snapshot Snapshot) {
	m.undoStack = append(m.undoStack, snapshot)
	if len(m.undoStack) > MaxHistorySize {
		m.undoStack = m.undoStack[1:]
	}
}

// PopUndo returns and removes the most recent undo snapshot. The caller is
// responsible for pushing the state being left behind onto the redo stack.
func (m *Manager) PopUndo() (Snapshot, bool) {
	if len(m.undoStack) == 0 {
		return Snapshot{}, false
	}
	last := len(m.undoStack) - 1
	snap := m.undoStack[last]
	m.undoStack = m.undoStack[:last]
	return snap, true
}

// PushRedo records a snapshot on the redo stack, taken when undoing.
func (m *Manager) PushRedo(snapshot Snapshot) {
	m.redoStack = append(m.redoStack, snapshot)
	if len(m.redoStack) > MaxHistorySize {
		m.redoStack = m.redoStack[1:]
	}
}

// PopRedo returns and removes the most recent redo snapshot.
func (m *Manager) PopRedo() (Snapshot, bool) {
	if len(m.redoStack) == 0 {
		return Snapshot{}, false
	}
	last := len(m.redoStack) - 1
	snap := m.redoStack[last]
	m.redoStack = m.redoStack[:last]
	return snap, true
}

// CanUndo reports whether an undo snapshot is available.
func (m *Manager) CanUndo() bool { return len(m.undoStack) > 0 }

// CanRedo reports whether a redo snapshot is available.
func (m *Manager) CanRedo() bool { return len(m.redoStack) > 0 }

// UndoCount returns the number of undo snapshots available.
func (m *Manager) UndoCount() int { return len(m.undoStack) }

// RedoCount returns the number of redo snapshots available.
func (m *Manager) RedoCount() int { return len(m.redoStack) }

// Clear discards both stacks, used on load, new project, or an
// unrecoverable invalid snapshot.
func (m *Manager) Clear() {
	m.undoStack = m.undoStack[:0]
	m.redoStack = m.redoStack[:0]
}
