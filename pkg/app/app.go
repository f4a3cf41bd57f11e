// Package app holds the editor's mutable session state: the project being
// edited, the audio/transport/sequencer/history subsystems wired around it,
// and every mutator a UI layer can invoke. No UI widget touches a Project
// directly; everything goes through a method here so every change can be
// snapshotted for undo and can mark the project modified for autosave.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zurustar/miditui/pkg/audio"
	"github.com/zurustar/miditui/pkg/errkind"
	"github.com/zurustar/miditui/pkg/history"
	"github.com/zurustar/miditui/pkg/logger"
	"github.com/zurustar/miditui/pkg/midi"
	"github.com/zurustar/miditui/pkg/sequencer"
	"github.com/zurustar/miditui/pkg/transport"
)

// defaultVelocity is the velocity assigned to notes placed via the editor
// (as opposed to notes imported from an SMF file, which keep their own).
const defaultVelocity uint8 = 100

// defaultNoteDuration is the length given to a freshly placed note: one beat.
const defaultNoteDuration = midi.TicksPerBeat

// autosaveDelay is how long the project must sit unsaved-but-modified
// before check_autosave writes it out.
const autosaveDelay = 5 * time.Second

// autosavePath is the fixed location of the binary crash-recovery file.
const autosavePath = ".autosave.oxm"

// statusMessageLifetime bounds how long a status message is considered
// current; callers reading Status() past this are expected to show nothing.
const statusMessageLifetime = 4 * time.Second

// recentlyAddedNoteLifetime bounds how long the most recently placed note
// stays highlighted.
const recentlyAddedNoteLifetime = 2 * time.Second

// EditMode selects how piano-key input is interpreted.
type EditMode int

const (
	// Normal mode: keys move the cursor and place/delete single notes.
	Normal EditMode = iota
	// Insert mode: a moving recording indicator places notes in real time.
	Insert
)

// recentNote remembers the most recently placed note for UI highlighting.
type recentNote struct {
	id        midi.NoteID
	tick      uint32
	beat      uint32
	placedAt  time.Time
}

// App is the editor's session state.
type App struct {
	log *slog.Logger

	project       *midi.Project
	projectPath   string
	soundFontPath string

	synth      *audio.Synth
	transport  *transport.Transport
	sequencer  *sequencer.Sequencer
	history    *history.Manager

	selectedTrackIndex int
	selectedNotes      map[midi.NoteID]bool
	cursorTick         uint32
	cursorPitch        uint8
	scrollY            uint8

	editMode EditMode

	renamingTrack bool
	renameBuffer  string

	statusMessage string
	statusSetAt   time.Time

	lastModified time.Time
	lastAutosave time.Time

	insertRecordingActive    bool
	insertRecordingStartTime time.Time
	insertRecordingStartTick uint32
	lastInsertNoteTime       time.Time

	recent *recentNote

	activeTracks map[int]bool
}

// New creates an App wired to a SoundFont-backed synthesizer. If a crash
// recovery autosave exists and recoverAutosave is true, it is loaded in
// preference to starting a fresh project; otherwise a new project with one
// default track is created.
func New(soundFontPath string, recoverAutosave bool) (*App, error) {
	synth, err := audio.NewSynth(soundFontPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		log:           logger.GetLogger(),
		soundFontPath: soundFontPath,
		synth:         synth,
		transport:     transport.New(),
		sequencer:     sequencer.New(synth),
		history:       history.New(),
		selectedNotes: map[midi.NoteID]bool{},
		activeTracks:  map[int]bool{},
		cursorPitch:   60,
	}

	if recoverAutosave {
		if recovered, err := midi.LoadProjectFromBinary(autosavePath); err == nil {
			a.project = recovered
			a.log.Info("recovered autosaved project", "path", autosavePath)
		}
	}
	if a.project == nil {
		a.project = midi.NewProjectWithDefaultTrack("Untitled")
	}

	a.syncAudioFromProject()
	return a, nil
}

// Project returns the in-memory project for read-only UI rendering.
func (a *App) Project() *midi.Project { return a.project }

// Transport exposes the transport for read-only UI rendering.
func (a *App) Transport() *transport.Transport { return a.transport }

// SelectedTrackIndex returns the index of the currently selected track.
func (a *App) SelectedTrackIndex() int { return a.selectedTrackIndex }

// SelectedTrack returns the currently selected track, or nil if there are none.
func (a *App) SelectedTrack() *midi.Track {
	return a.project.TrackAt(a.selectedTrackIndex)
}

// SelectedNotes returns the current note selection set.
func (a *App) SelectedNotes() map[midi.NoteID]bool { return a.selectedNotes }

// CursorTick returns the piano-roll cursor's tick position.
func (a *App) CursorTick() uint32 { return a.cursorTick }

// CursorPitch returns the piano-roll cursor's pitch.
func (a *App) CursorPitch() uint8 { return a.cursorPitch }

// EditMode returns the current edit mode.
func (a *App) EditMode() EditMode { return a.editMode }

// ActiveTracks returns the set of track indices with a note sounding right
// now, as last computed by Update.
func (a *App) ActiveTracks() map[int]bool { return a.activeTracks }

// Status returns the current status message, or "" if it has expired.
func (a *App) Status() string {
	if a.statusMessage == "" || time.Since(a.statusSetAt) > statusMessageLifetime {
		return ""
	}
	return a.statusMessage
}

// RecentlyAddedNote reports the most recently placed note's ID, for
// presentation-only highlighting, or false if none is current.
func (a *App) RecentlyAddedNote() (midi.NoteID, bool) {
	if a.recent == nil || time.Since(a.recent.placedAt) > recentlyAddedNoteLifetime {
		return 0, false
	}
	return a.recent.id, true
}

func (a *App) setStatus(format string, args ...any) {
	a.statusMessage = fmt.Sprintf(format, args...)
	a.statusSetAt = time.Now()
}

// saveState pushes an undo snapshot of the current project and selection.
// Call this before mutating the project.
func (a *App) saveState(description string) {
	a.history.PushUndo(history.NewSnapshot(a.project, a.selectedTrackIndex, a.selectedNotes, description))
}

// markModified records that the project changed, for the autosave timer.
func (a *App) markModified() {
	a.lastModified = time.Now()
}

// syncAudioFromProject pushes every track's program/volume/pan into the
// synth, used at startup and after undo/redo/load restores a project.
func (a *App) syncAudioFromProject() {
	a.synth.AllNotesOff(true)
	for _, t := range a.project.Tracks() {
		a.synth.ConfigureTrack(t.Channel, t.Program, t.Volume, t.Pan)
	}
}

// ---- Selection and cursor ----

// MoveCursor shifts the cursor by (deltaTick, deltaPitch), saturating at
// the valid pitch range.
func (a *App) MoveCursor(deltaTick int32, deltaPitch int8) {
	if deltaTick < 0 {
		d := uint32(-deltaTick)
		if d > a.cursorTick {
			a.cursorTick = 0
		} else {
			a.cursorTick -= d
		}
	} else {
		a.cursorTick += uint32(deltaTick)
	}

	newPitch := int16(a.cursorPitch) + int16(deltaPitch)
	if newPitch < 0 {
		newPitch = 0
	}
	if newPitch > 127 {
		newPitch = 127
	}
	a.cursorPitch = uint8(newPitch)
}

// ToggleNoteSelection flips whether id is part of the current selection.
func (a *App) ToggleNoteSelection(id midi.NoteID) {
	if a.selectedNotes[id] {
		delete(a.selectedNotes, id)
	} else {
		a.selectedNotes[id] = true
	}
}

// SelectNotesInRange replaces the selection with every note on the
// selected track overlapping [start, end) and in [lowPitch, highPitch],
// implementing rubber-band selection.
func (a *App) SelectNotesInRange(start, end uint32, lowPitch, highPitch uint8) {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	a.selectedNotes = map[midi.NoteID]bool{}
	for _, n := range track.NotesInRange(start, end) {
		if n.Pitch >= lowPitch && n.Pitch <= highPitch {
			a.selectedNotes[n.ID] = true
		}
	}
}

// ClearSelection empties the note selection.
func (a *App) ClearSelection() {
	a.selectedNotes = map[midi.NoteID]bool{}
}

// SelectTrack changes the selected track index, clearing note selection.
func (a *App) SelectTrack(index int) {
	if index < 0 || index >= a.project.TrackCount() {
		return
	}
	a.selectedTrackIndex = index
	a.ClearSelection()
}

// ---- Note editing ----

// PlaceNoteAtCursor creates a note at the cursor on the selected track and
// previews it through the synth.
func (a *App) PlaceNoteAtCursor() {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	pitch, tick := a.cursorPitch, a.cursorTick
	channel := track.Channel

	a.saveState("Place note")
	id := track.CreateNote(pitch, defaultVelocity, tick, defaultNoteDuration)
	a.registerAddedNote(id, tick)

	a.synth.NoteOn(channel, pitch, defaultVelocity)
	a.setStatus("Added note at beat %d", tick/midi.TicksPerBeat)
	a.markModified()
}

// DeleteNoteAtCursor deletes the note at the cursor's pitch and tick on the
// selected track, if any.
func (a *App) DeleteNoteAtCursor() {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	for _, n := range track.Notes() {
		if n.Pitch == a.cursorPitch && n.IsActiveAt(a.cursorTick) {
			a.DeleteNoteByID(n.ID)
			return
		}
	}
}

// DeleteNoteByID removes a note from the selected track by ID.
func (a *App) DeleteNoteByID(id midi.NoteID) {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	a.saveState("Delete note")
	track.RemoveNote(id)
	delete(a.selectedNotes, id)
	a.setStatus("Deleted note")
	a.markModified()
}

// TransposeSelected shifts every selected note's pitch by semitones.
func (a *App) TransposeSelected(semitones int8) {
	track := a.SelectedTrack()
	if track == nil || len(a.selectedNotes) == 0 {
		return
	}
	a.saveState("Transpose notes")
	notes := track.NotesMut()
	for i := range notes {
		if a.selectedNotes[notes[i].ID] {
			notes[i].Transpose(semitones)
		}
	}
	a.markModified()
}

// AdjustDurationSelected changes every selected note's duration by
// deltaTicks, clamping to a minimum of one tick.
func (a *App) AdjustDurationSelected(deltaTicks int32) {
	track := a.SelectedTrack()
	if track == nil || len(a.selectedNotes) == 0 {
		return
	}
	a.saveState("Adjust note duration")
	notes := track.NotesMut()
	for i := range notes {
		if !a.selectedNotes[notes[i].ID] {
			continue
		}
		newDur := int64(notes[i].DurationTicks) + int64(deltaTicks)
		if newDur < 1 {
			newDur = 1
		}
		notes[i].DurationTicks = uint32(newDur)
	}
	a.markModified()
}

// MoveSelectedHorizontal shifts every selected note's start tick by
// deltaTicks and restores start-tick ordering.
func (a *App) MoveSelectedHorizontal(deltaTicks int32) {
	track := a.SelectedTrack()
	if track == nil || len(a.selectedNotes) == 0 {
		return
	}
	a.saveState("Move notes")
	notes := track.NotesMut()
	for i := range notes {
		if a.selectedNotes[notes[i].ID] {
			notes[i].Shift(deltaTicks)
		}
	}
	track.Resort()
	a.markModified()
}

// BeginDrag takes a single undo snapshot before a mouse drag begins; the
// drag itself mutates notes directly through NotesMut without per-step
// snapshots, and EndDrag marks the project modified once.
func (a *App) BeginDrag(description string) {
	a.saveState(description)
}

// EndDrag marks the project modified after a drag completes.
func (a *App) EndDrag() {
	a.markModified()
}

func (a *App) registerAddedNote(id midi.NoteID, tick uint32) {
	beat := tick / midi.TicksPerBeat
	a.recent = &recentNote{id: id, tick: tick, beat: beat, placedAt: time.Now()}
}

// ---- Track editing ----

// AddTrack appends a new melodic track and selects it.
func (a *App) AddTrack() {
	a.saveState("Add track")
	num := a.project.TrackCount() + 1
	a.project.CreateTrack(fmt.Sprintf("Track %d", num))
	a.selectedTrackIndex = a.project.TrackCount() - 1
	a.setStatus("Added Track %d", num)
	a.markModified()
}

// DeleteSelectedTrack removes the selected track, refusing to delete the
// last remaining one.
func (a *App) DeleteSelectedTrack() {
	if a.project.TrackCount() <= 1 {
		a.setStatus("Cannot delete the last track")
		return
	}
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	name, id := track.Name, track.ID
	a.saveState("Delete track")
	a.project.RemoveTrack(id)
	if a.selectedTrackIndex >= a.project.TrackCount() {
		a.selectedTrackIndex = a.project.TrackCount() - 1
	}
	a.setStatus("Deleted %s", name)
	a.markModified()
}

// StartRenameTrack begins a two-phase rename of the selected track.
func (a *App) StartRenameTrack() {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	a.renameBuffer = track.Name
	a.renamingTrack = true
	a.setStatus("Renaming track - Enter to confirm, Esc to cancel")
}

// RenameTrackInput appends a character to the rename buffer, capped at 32
// characters.
func (a *App) RenameTrackInput(c rune) {
	if a.renamingTrack && len([]rune(a.renameBuffer)) < 32 {
		a.renameBuffer += string(c)
	}
}

// RenameTrackBackspace removes the last character of the rename buffer.
func (a *App) RenameTrackBackspace() {
	if !a.renamingTrack || len(a.renameBuffer) == 0 {
		return
	}
	r := []rune(a.renameBuffer)
	a.renameBuffer = string(r[:len(r)-1])
}

// ConfirmRenameTrack applies the rename buffer to the selected track,
// refusing an empty name.
func (a *App) ConfirmRenameTrack() {
	if !a.renamingTrack {
		return
	}
	newName := a.renameBuffer
	if newName == "" {
		a.setStatus("Rename cancelled - name cannot be empty")
	} else {
		a.saveState("Rename track")
		if track := a.SelectedTrack(); track != nil {
			track.Name = newName
		}
		a.setStatus("Renamed to: %s", newName)
		a.markModified()
	}
	a.renamingTrack = false
	a.renameBuffer = ""
}

// CancelRenameTrack abandons an in-progress rename.
func (a *App) CancelRenameTrack() {
	if !a.renamingTrack {
		return
	}
	a.renamingTrack = false
	a.renameBuffer = ""
	a.setStatus("Rename cancelled")
}

// RenamingTrack reports whether a track rename is in progress, and the
// buffer's current contents.
func (a *App) RenamingTrack() (bool, string) {
	return a.renamingTrack, a.renameBuffer
}

// AdjustVolume changes a track's volume by delta, clamped to 0..127.
func (a *App) AdjustVolume(trackIndex int, delta int) {
	track := a.project.TrackAt(trackIndex)
	if track == nil {
		return
	}
	a.saveState("Adjust volume")
	track.Volume = clampUint8(int(track.Volume)+delta, 0, 127)
	a.synth.SetVolume(track.Channel, track.Volume)
	a.markModified()
}

// AdjustPan changes a track's pan by delta, clamped to 0..127.
func (a *App) AdjustPan(trackIndex int, delta int) {
	track := a.project.TrackAt(trackIndex)
	if track == nil {
		return
	}
	a.saveState("Adjust pan")
	track.Pan = clampUint8(int(track.Pan)+delta, 0, 127)
	a.synth.SetPan(track.Channel, track.Pan)
	a.markModified()
}

// CycleProgram changes a track's instrument program by delta, wrapping
// modulo 128.
func (a *App) CycleProgram(trackIndex int, delta int) {
	track := a.project.TrackAt(trackIndex)
	if track == nil {
		return
	}
	a.saveState("Change instrument")
	next := (int(track.Program) + delta) % 128
	if next < 0 {
		next += 128
	}
	track.Program = uint8(next)
	a.synth.SetProgram(track.Channel, track.Program)
	a.setStatus("Instrument: %s", a.synth.InstrumentName(track.Program))
	a.markModified()
}

// ToggleMute flips a track's mute flag and flushes any currently sounding
// voices immediately so the sequencer resumes cleanly.
func (a *App) ToggleMute(trackIndex int) {
	track := a.project.TrackAt(trackIndex)
	if track == nil {
		return
	}
	a.saveState("Toggle mute")
	track.Muted = !track.Muted
	a.synth.AllNotesOff(true)
	a.markModified()
}

// ToggleSolo flips a track's solo flag and flushes any currently sounding
// voices immediately so the sequencer resumes cleanly.
func (a *App) ToggleSolo(trackIndex int) {
	track := a.project.TrackAt(trackIndex)
	if track == nil {
		return
	}
	a.saveState("Toggle solo")
	track.Solo = !track.Solo
	a.synth.AllNotesOff(true)
	a.markModified()
}

func clampUint8(v, lo, hi int) uint8 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint8(v)
}

// ---- Tempo and time signature ----

// AdjustTempo changes the project tempo by delta BPM, clamped to 20..300.
func (a *App) AdjustTempo(delta int32) {
	a.saveState("Adjust tempo")
	next := int64(a.project.Tempo) + int64(delta)
	if next < 20 {
		next = 20
	}
	if next > 300 {
		next = 300
	}
	a.project.Tempo = uint32(next)
	a.markModified()
}

// AdjustTimeSignature changes the time signature numerator/denominator by
// the given deltas. The numerator clamps to 1..16; the denominator is
// constrained to powers of two in 1..32.
func (a *App) AdjustTimeSignature(deltaNumerator int, deltaDenominator int) {
	a.saveState("Adjust time signature")
	num := int(a.project.TimeSigNumerator) + deltaNumerator
	if num < 1 {
		num = 1
	}
	if num > 16 {
		num = 16
	}
	a.project.TimeSigNumerator = uint8(num)

	if deltaDenominator != 0 {
		den := a.project.TimeSigDenominator
		if deltaDenominator > 0 {
			for i := 0; i < deltaDenominator && den < 32; i++ {
				den *= 2
			}
		} else {
			for i := 0; i < -deltaDenominator && den > 1; i++ {
				den /= 2
			}
		}
		a.project.TimeSigDenominator = den
	}
	a.markModified()
}

// ---- Undo / redo ----

// Undo restores the most recent undo snapshot, pushing the current state
// onto the redo stack. Returns false if there was nothing to undo or the
// snapshot failed validation (in which case history is cleared).
func (a *App) Undo() bool {
	snap, ok := a.history.PopUndo()
	if !ok {
		a.setStatus("Nothing to undo")
		return false
	}
	if !snap.IsValid() {
		a.history.Clear()
		a.setStatus("Undo failed: history cleared due to invalid state")
		return false
	}

	current := history.NewSnapshot(a.project, a.selectedTrackIndex, a.selectedNotes, snap.Description)
	a.history.PushRedo(current)

	a.restoreSnapshot(snap)
	a.setStatus("Undo: %s", snap.Description)
	a.markModified()
	return true
}

// Redo restores the most recent redo snapshot, pushing the current state
// back onto the undo stack without disturbing the rest of the redo stack.
func (a *App) Redo() bool {
	snap, ok := a.history.PopRedo()
	if !ok {
		a.setStatus("Nothing to redo")
		return false
	}
	if !snap.IsValid() {
		a.history.Clear()
		a.setStatus("Redo failed: history cleared due to invalid state")
		return false
	}

	current := history.NewSnapshot(a.project, a.selectedTrackIndex, a.selectedNotes, snap.Description)
	a.history.PushUndoPreserveRedo(current)

	a.restoreSnapshot(snap)
	a.setStatus("Redo: %s", snap.Description)
	a.markModified()
	return true
}

func (a *App) restoreSnapshot(snap history.Snapshot) {
	a.project = snap.Project
	count := a.project.TrackCount()
	a.selectedTrackIndex = snap.SelectedTrackIndex
	if count > 0 && a.selectedTrackIndex >= count {
		a.selectedTrackIndex = count - 1
	}
	a.selectedNotes = snap.ValidSelectedNotes()
	a.syncAudioFromProject()
}

// ---- Transport proxies ----

// TogglePlayback toggles between Playing and Paused, resuming from the
// transport's current position.
func (a *App) TogglePlayback() {
	if a.transport.IsPlaying() {
		a.transport.SetPlaying(false)
		a.synth.AllNotesOff(false)
		a.setStatus("Paused")
		return
	}

	a.syncAudioFromProject()
	position := a.transport.PositionTicks()
	a.sequencer.Start(position)
	a.transport.SetPlaying(true)
	a.setStatus("Playing")
}

// StopPlayback halts playback and resets the position to the beginning.
func (a *App) StopPlayback() {
	a.transport.Stop()
	a.synth.AllNotesOff(true)
	a.cursorTick = 0
	a.sequencer.SetScrollX(0)
	a.setStatus("Stopped")
}

// RestartPlayback stops playback and immediately resumes from tick 0.
func (a *App) RestartPlayback() {
	a.transport.Stop()
	a.cursorTick = 0
	a.sequencer.SetScrollX(0)

	a.syncAudioFromProject()
	a.sequencer.Start(0)
	a.transport.SetPlaying(true)
	a.setStatus("Restarting from beginning")
}

// Seek repositions playback to tick without changing play/pause state. If
// playing, currently sounding notes are cut immediately and the clock rebases
// to tick; if stopped or paused, only the position is updated so the next
// play starts from there.
func (a *App) Seek(tick uint32) {
	if a.transport.IsPlaying() {
		a.synth.AllNotesOff(true)
		a.sequencer.Seek(tick)
	}
	a.transport.SetPositionTicks(tick)
	a.cursorTick = tick
}

// SeekByBeats moves the transport position by deltaBeats (positive or
// negative), saturating at 0.
func (a *App) SeekByBeats(deltaBeats int32) {
	current := a.transport.PositionTicks()
	delta := deltaBeats * int32(midi.TicksPerBeat)
	var next uint32
	if delta < 0 {
		d := uint32(-delta)
		if d > current {
			next = 0
		} else {
			next = current - d
		}
	} else {
		next = current + uint32(delta)
	}
	a.Seek(next)
}

// ---- Insert-mode real-time recording ----

// SetEditMode switches between Normal and Insert mode, stopping any
// in-progress recording when leaving Insert mode.
func (a *App) SetEditMode(mode EditMode) {
	if a.editMode == Insert && mode != Insert {
		a.stopInsertRecording()
	}
	a.editMode = mode
}

// getInsertRecordingTick computes the current recording head position from
// elapsed wall-clock time, or the static cursor tick if not yet recording.
func (a *App) getInsertRecordingTick() uint32 {
	if a.insertRecordingStartTime.IsZero() {
		return a.cursorTick
	}
	elapsedSecs := time.Since(a.insertRecordingStartTime).Seconds()
	ticksPerSecond := float64(a.project.Tempo) / 60.0 * float64(midi.TicksPerBeat)
	return a.insertRecordingStartTick + uint32(elapsedSecs*ticksPerSecond)
}

// InsertIndicatorTick returns the moving recording-head position for
// display while Insert-mode recording is active.
func (a *App) InsertIndicatorTick() (uint32, bool) {
	if a.insertRecordingActive && a.editMode == Insert {
		return a.getInsertRecordingTick(), true
	}
	return 0, false
}

// NoteOnKey places a note at the current recording head (starting a new
// recording take on the first key of an Insert-mode session) and previews
// it through the synth. Outside Insert mode this behaves like a single
// note placement at the cursor.
func (a *App) NoteOnKey(pitch uint8) {
	if a.editMode != Insert {
		a.cursorPitch = pitch
		a.PlaceNoteAtCursor()
		return
	}

	if !a.insertRecordingActive {
		a.insertRecordingActive = true
		a.insertRecordingStartTime = time.Now()
		a.insertRecordingStartTick = a.cursorTick
	}
	a.lastInsertNoteTime = time.Now()

	track := a.SelectedTrack()
	if track == nil {
		return
	}
	tick := a.getInsertRecordingTick()
	channel := track.Channel

	a.saveState("Record note")
	id := track.CreateNote(pitch, defaultVelocity, tick, defaultNoteDuration)
	a.registerAddedNote(id, tick)
	a.synth.NoteOn(channel, pitch, defaultVelocity)
	a.markModified()
}

// NoteOffKey releases a note preview started by NoteOnKey.
func (a *App) NoteOffKey(pitch uint8) {
	track := a.SelectedTrack()
	if track == nil {
		return
	}
	a.synth.NoteOff(track.Channel, pitch)
}

// updateInsertRecording checks whether recording has gone idle long enough
// to stop automatically: 2 measures of silence, where a measure is
// time_sig_numerator beats at the current tempo.
func (a *App) updateInsertRecording() {
	if !a.insertRecordingActive || a.editMode != Insert {
		return
	}
	if a.lastInsertNoteTime.IsZero() {
		return
	}

	beatsForTimeout := 2.0 * float64(a.project.TimeSigNumerator)
	secondsPerBeat := 60.0 / float64(a.project.Tempo)
	timeout := time.Duration(beatsForTimeout * secondsPerBeat * float64(time.Second))

	if time.Since(a.lastInsertNoteTime) > timeout {
		a.cursorTick = a.getInsertRecordingTick()
		a.insertRecordingActive = false
		a.insertRecordingStartTime = time.Time{}
		a.lastInsertNoteTime = time.Time{}
		a.setStatus("Recording stopped (2 measures idle)")
	}
}

// stopInsertRecording ends recording immediately, snapping the cursor to
// the final recorded position.
func (a *App) stopInsertRecording() {
	if a.insertRecordingActive {
		a.cursorTick = a.getInsertRecordingTick()
	}
	a.insertRecordingActive = false
	a.insertRecordingStartTime = time.Time{}
	a.lastInsertNoteTime = time.Time{}
}

// ---- Autosave ----

// checkAutosave writes the project to the binary autosave path if it has
// been modified for at least autosaveDelay and hasn't been autosaved since.
func (a *App) checkAutosave() {
	if a.lastModified.IsZero() {
		return
	}
	shouldSave := time.Since(a.lastModified) >= autosaveDelay &&
		(a.lastAutosave.IsZero() || a.lastAutosave.Before(a.lastModified))
	if shouldSave {
		a.ForceAutosave()
	}
}

// ForceAutosave writes the project to the binary autosave path immediately,
// bypassing the delay timer. Used when the SoundFont selection changes, so
// the new path survives a crash before the next scheduled window.
func (a *App) ForceAutosave() {
	a.project.SetSoundFontPath(a.soundFontPath)
	if err := a.project.SaveToBinary(autosavePath); err != nil {
		a.log.Warn("autosave failed", "error", err)
		return
	}
	a.lastAutosave = time.Now()
}

// SetSoundFontPath updates the active SoundFont path and forces an
// immediate autosave so the new path is recorded before the next tick.
func (a *App) SetSoundFontPath(path string) {
	a.soundFontPath = path
	a.ForceAutosave()
}

// ---- Persistence ----

// SaveProjectAs writes the project as JSON to path and remembers it as the
// current project path.
func (a *App) SaveProjectAs(path string) error {
	if err := a.project.SaveToFile(path); err != nil {
		return errkind.Wrap(errkind.IO, err, "saving project to %s", path)
	}
	a.projectPath = path
	return nil
}

// LoadProjectFrom replaces the current project with one loaded from path,
// clearing history and note selection. On failure the existing project is
// left untouched.
func (a *App) LoadProjectFrom(path string) error {
	loaded, err := midi.LoadProjectFromFile(path)
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "loading project from %s", path)
	}
	a.project = loaded
	a.projectPath = path
	a.selectedTrackIndex = 0
	a.selectedNotes = map[midi.NoteID]bool{}
	a.history.Clear()
	a.syncAudioFromProject()
	return nil
}

// RemoveAutosave deletes the crash-recovery autosave file, if present.
// Called after a clean exit so a stale recovery prompt doesn't appear next
// launch.
func (a *App) RemoveAutosave() {
	_ = os.Remove(autosavePath)
}

// ---- Main loop tick ----

// Update advances playback by one frame: it dispatches due notes through
// the sequencer, updates the active-track highlight set, checks for
// Insert-mode recording idle timeout, and runs the autosave check. It
// should be called once per UI tick.
func (a *App) Update() {
	result := a.sequencer.Update(a.project, a.transport)
	a.activeTracks = result.ActiveTracks
	if result.ShouldStop {
		a.StopPlayback()
	}

	a.updateInsertRecording()
	a.checkAutosave()
}
