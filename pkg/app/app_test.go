package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zurustar/miditui/pkg/midi"
)

// findSoundFont locates a real .sf2 fixture for synth-backed tests, skipping
// if none is available in the usual places.
func findSoundFont(t *testing.T) string {
	t.Helper()

	paths := []string{
		"../../GeneralUser-GS.sf2",
		"../GeneralUser-GS.sf2",
		"GeneralUser-GS.sf2",
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	t.Skip("SoundFont file not found")
	return ""
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(findSoundFont(t), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { os.Remove(autosavePath) })
	return a
}

func TestNewCreatesDefaultProject(t *testing.T) {
	a := newTestApp(t)
	if a.Project().TrackCount() != 1 {
		t.Fatalf("TrackCount = %d, want 1", a.Project().TrackCount())
	}
	if a.SelectedTrackIndex() != 0 {
		t.Fatalf("SelectedTrackIndex = %d, want 0", a.SelectedTrackIndex())
	}
}

func TestPlaceAndDeleteNoteAtCursor(t *testing.T) {
	a := newTestApp(t)
	a.MoveCursor(0, 0)
	a.PlaceNoteAtCursor()

	track := a.SelectedTrack()
	if len(track.Notes()) != 1 {
		t.Fatalf("Notes() len = %d, want 1", len(track.Notes()))
	}
	if got := track.Notes()[0].Pitch; got != a.CursorPitch() {
		t.Errorf("placed note pitch = %d, want %d", got, a.CursorPitch())
	}

	a.DeleteNoteAtCursor()
	if len(track.Notes()) != 0 {
		t.Fatalf("Notes() len after delete = %d, want 0", len(track.Notes()))
	}
}

func TestTransposeSelected(t *testing.T) {
	a := newTestApp(t)
	a.PlaceNoteAtCursor()
	id := a.SelectedTrack().Notes()[0].ID
	a.ToggleNoteSelection(id)

	a.TransposeSelected(12)

	note := a.SelectedTrack().Notes()[0]
	if note.Pitch != a.CursorPitch()+12 {
		t.Errorf("Pitch = %d, want %d", note.Pitch, a.CursorPitch()+12)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	a := newTestApp(t)
	a.PlaceNoteAtCursor()
	if len(a.SelectedTrack().Notes()) != 1 {
		t.Fatalf("expected 1 note after place")
	}

	if !a.Undo() {
		t.Fatal("Undo() = false, want true")
	}
	if len(a.SelectedTrack().Notes()) != 0 {
		t.Fatalf("expected 0 notes after undo, got %d", len(a.SelectedTrack().Notes()))
	}

	if !a.Redo() {
		t.Fatal("Redo() = false, want true")
	}
	if len(a.SelectedTrack().Notes()) != 1 {
		t.Fatalf("expected 1 note after redo, got %d", len(a.SelectedTrack().Notes()))
	}
}

func TestUndoEmptyHistoryReturnsFalse(t *testing.T) {
	a := newTestApp(t)
	if a.Undo() {
		t.Error("Undo() on empty history = true, want false")
	}
}

func TestRedoClearedAfterNewMutation(t *testing.T) {
	a := newTestApp(t)
	a.PlaceNoteAtCursor()
	a.Undo()
	a.MoveCursor(int32(midi.TicksPerBeat), 0)
	a.PlaceNoteAtCursor()

	if a.Redo() {
		t.Error("Redo() should be empty once a new mutation is pushed after Undo")
	}
}

func TestAddAndDeleteTrack(t *testing.T) {
	a := newTestApp(t)
	a.AddTrack()
	if a.Project().TrackCount() != 2 {
		t.Fatalf("TrackCount = %d, want 2", a.Project().TrackCount())
	}
	if a.SelectedTrackIndex() != 1 {
		t.Fatalf("SelectedTrackIndex = %d, want 1", a.SelectedTrackIndex())
	}

	a.DeleteSelectedTrack()
	if a.Project().TrackCount() != 1 {
		t.Fatalf("TrackCount after delete = %d, want 1", a.Project().TrackCount())
	}
}

func TestDeleteSelectedTrackRefusesLastTrack(t *testing.T) {
	a := newTestApp(t)
	a.DeleteSelectedTrack()
	if a.Project().TrackCount() != 1 {
		t.Errorf("TrackCount = %d, want 1 (last track must survive)", a.Project().TrackCount())
	}
}

func TestRenameTrackFlow(t *testing.T) {
	a := newTestApp(t)
	original := a.SelectedTrack().Name
	// The rename buffer starts out holding the current name.
	a.StartRenameTrack()
	for _, r := range "Bass" {
		a.RenameTrackInput(r)
	}
	a.RenameTrackBackspace()
	a.RenameTrackInput('s')
	a.ConfirmRenameTrack()

	if got, want := a.SelectedTrack().Name, original+"Bass"; got != want {
		t.Errorf("track name = %q, want %q", got, want)
	}
	if renaming, _ := a.RenamingTrack(); renaming {
		t.Error("RenamingTrack() still true after confirm")
	}
}

func TestConfirmRenameTrackRejectsEmptyName(t *testing.T) {
	a := newTestApp(t)
	original := a.SelectedTrack().Name
	a.StartRenameTrack()
	for range original {
		a.RenameTrackBackspace()
	}
	a.ConfirmRenameTrack()

	if got := a.SelectedTrack().Name; got != original {
		t.Errorf("track name = %q, want unchanged %q", got, original)
	}
}

func TestAdjustTempoClamps(t *testing.T) {
	a := newTestApp(t)
	a.AdjustTempo(-10000)
	if a.Project().Tempo != 20 {
		t.Errorf("Tempo = %d, want clamped to 20", a.Project().Tempo)
	}
	a.AdjustTempo(10000)
	if a.Project().Tempo != 300 {
		t.Errorf("Tempo = %d, want clamped to 300", a.Project().Tempo)
	}
}

func TestAdjustTimeSignature(t *testing.T) {
	a := newTestApp(t)
	a.AdjustTimeSignature(1, 1)
	if a.Project().TimeSigNumerator != 5 {
		t.Errorf("TimeSigNumerator = %d, want 5", a.Project().TimeSigNumerator)
	}
	if a.Project().TimeSigDenominator != 8 {
		t.Errorf("TimeSigDenominator = %d, want 8", a.Project().TimeSigDenominator)
	}
}

func TestToggleMuteAndSolo(t *testing.T) {
	a := newTestApp(t)
	a.ToggleMute(0)
	if !a.SelectedTrack().Muted {
		t.Error("Muted = false, want true")
	}
	a.ToggleSolo(0)
	if !a.SelectedTrack().Solo {
		t.Error("Solo = false, want true")
	}
}

func TestSeekByBeatsSaturatesAtZero(t *testing.T) {
	a := newTestApp(t)
	a.SeekByBeats(-100)
	if a.Transport().PositionTicks() != 0 {
		t.Errorf("PositionTicks = %d, want 0", a.Transport().PositionTicks())
	}
}

func TestNoteOnKeyOutsideInsertModePlacesAtCursor(t *testing.T) {
	a := newTestApp(t)
	a.NoteOnKey(64)
	notes := a.SelectedTrack().Notes()
	if len(notes) != 1 || notes[0].Pitch != 64 {
		t.Fatalf("expected a single note at pitch 64, got %+v", notes)
	}
}

func TestInsertModeRecordingStartsOnFirstKey(t *testing.T) {
	a := newTestApp(t)
	a.SetEditMode(Insert)
	a.NoteOnKey(60)

	if !a.insertRecordingActive {
		t.Fatal("insertRecordingActive = false after first NoteOnKey in Insert mode")
	}
	if _, active := a.InsertIndicatorTick(); !active {
		t.Error("InsertIndicatorTick() reports inactive while recording")
	}
}

func TestSetEditModeLeavingInsertStopsRecording(t *testing.T) {
	a := newTestApp(t)
	a.SetEditMode(Insert)
	a.NoteOnKey(60)
	a.SetEditMode(Normal)

	if a.insertRecordingActive {
		t.Error("insertRecordingActive still true after leaving Insert mode")
	}
}

func TestCheckAutosaveWritesAfterDelay(t *testing.T) {
	a := newTestApp(t)
	a.PlaceNoteAtCursor()
	a.lastModified = time.Now().Add(-autosaveDelay - time.Second)

	a.checkAutosave()

	if _, err := os.Stat(autosavePath); err != nil {
		t.Errorf("expected autosave file to exist: %v", err)
	}
}

func TestSetSoundFontPathForcesImmediateAutosave(t *testing.T) {
	a := newTestApp(t)
	a.SetSoundFontPath("other.sf2")

	if _, err := os.Stat(autosavePath); err != nil {
		t.Errorf("expected immediate autosave on soundfont change: %v", err)
	}
}

func TestSaveAndLoadProjectRoundTrip(t *testing.T) {
	a := newTestApp(t)
	a.PlaceNoteAtCursor()

	path := filepath.Join(t.TempDir(), "song.mproj")
	if err := a.SaveProjectAs(path); err != nil {
		t.Fatalf("SaveProjectAs failed: %v", err)
	}

	a.AddTrack()
	if err := a.LoadProjectFrom(path); err != nil {
		t.Fatalf("LoadProjectFrom failed: %v", err)
	}

	if a.Project().TrackCount() != 1 {
		t.Errorf("TrackCount after reload = %d, want 1", a.Project().TrackCount())
	}
	if len(a.SelectedTrack().Notes()) != 1 {
		t.Errorf("Notes() after reload = %d, want 1", len(a.SelectedTrack().Notes()))
	}
	if a.Undo() {
		t.Error("history should be cleared by LoadProjectFrom")
	}
}
