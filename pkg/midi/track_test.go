package midi

import "testing"

func TestAddNoteMaintainsStartTickOrder(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 480, 240)
	tr.CreateNote(62, 100, 0, 240)
	tr.CreateNote(64, 100, 960, 240)
	tr.CreateNote(65, 100, 480, 240)

	notes := tr.Notes()
	if len(notes) != 4 {
		t.Fatalf("Notes() len = %d, want 4", len(notes))
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].StartTick < notes[i-1].StartTick {
			t.Fatalf("notes out of order: %+v", notes)
		}
	}
	// ties on StartTick preserve insertion order
	if notes[1].Pitch != 60 || notes[2].Pitch != 65 {
		t.Errorf("tie-break order wrong: %+v", notes)
	}
}

func TestRemoveAndGetNote(t *testing.T) {
	tr := NewTrack("Lead", 0)
	id := tr.CreateNote(60, 100, 0, 240)

	if _, ok := tr.GetNote(id); !ok {
		t.Fatal("GetNote should find the note right after creation")
	}

	removed, ok := tr.RemoveNote(id)
	if !ok || removed.Pitch != 60 {
		t.Fatalf("RemoveNote = %+v, %v", removed, ok)
	}
	if _, ok := tr.GetNote(id); ok {
		t.Error("GetNote should not find a removed note")
	}
	if _, ok := tr.RemoveNote(id); ok {
		t.Error("RemoveNote twice should report not found the second time")
	}
}

func TestNotesInRange(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 0, 100)   // [0,100)
	tr.CreateNote(62, 100, 100, 100) // [100,200)
	tr.CreateNote(64, 100, 300, 100) // [300,400)

	got := tr.NotesInRange(50, 150)
	if len(got) != 2 {
		t.Fatalf("NotesInRange(50,150) len = %d, want 2", len(got))
	}
}

func TestNotesAtTick(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 0, 100)
	tr.CreateNote(64, 100, 50, 100)

	got := tr.NotesAtTick(60)
	if len(got) != 2 {
		t.Fatalf("NotesAtTick(60) len = %d, want 2", len(got))
	}
	if len(tr.NotesAtTick(200)) != 0 {
		t.Error("NotesAtTick(200) should find nothing past both notes' end")
	}
}

func TestQuantizeTiesRoundUp(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 239, 100) // remainder 239 over grid 480 -> rounds down
	tr.CreateNote(62, 100, 240, 100) // exact half -> ties round up
	tr.CreateNote(64, 100, 241, 100) // remainder 241 -> rounds up

	tr.Quantize(480)

	notes := tr.Notes()
	want := []uint32{0, 480, 480}
	for i, n := range notes {
		if n.StartTick != want[i] {
			t.Errorf("note %d StartTick = %d, want %d", i, n.StartTick, want[i])
		}
	}
}

func TestQuantizeZeroGridIsNoOp(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 123, 100)
	tr.Quantize(0)
	if tr.Notes()[0].StartTick != 123 {
		t.Error("Quantize(0) should leave notes untouched")
	}
}

func TestTransposeAllReportsFailures(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(5, 100, 0, 100)
	tr.CreateNote(60, 100, 100, 100)
	tr.CreateNote(125, 100, 200, 100)

	failed := tr.TransposeAll(10)
	if failed != 1 {
		t.Fatalf("TransposeAll(10) failed count = %d, want 1 (only the 125 note overflows)", failed)
	}

	notes := tr.Notes()
	if notes[0].Pitch != 15 {
		t.Errorf("first note pitch = %d, want 15", notes[0].Pitch)
	}
	if notes[2].Pitch != 125 {
		t.Errorf("overflowing note pitch = %d, want unchanged 125", notes[2].Pitch)
	}
}

func TestNotesMutRequiresResortAfterReorder(t *testing.T) {
	tr := NewTrack("Lead", 0)
	tr.CreateNote(60, 100, 0, 100)
	tr.CreateNote(62, 100, 100, 100)

	notes := tr.NotesMut()
	notes[0].StartTick, notes[1].StartTick = 200, 0
	tr.Resort()

	sorted := tr.Notes()
	if sorted[0].StartTick != 0 || sorted[1].StartTick != 200 {
		t.Errorf("Resort did not restore order: %+v", sorted)
	}
}

func TestTrackJSONRoundTrip(t *testing.T) {
	tr := NewTrack("Bass", 2)
	tr.Muted = true
	tr.CreateNote(40, 90, 0, 240)
	tr.CreateNote(43, 90, 240, 240)

	data, err := tr.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var got Track
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}

	if got.Name != tr.Name || got.Channel != tr.Channel || got.Muted != tr.Muted {
		t.Errorf("round trip changed track fields: got %+v, want fields from %+v", got, tr)
	}
	if len(got.Notes()) != len(tr.Notes()) {
		t.Fatalf("round trip note count = %d, want %d", len(got.Notes()), len(tr.Notes()))
	}
	for i, n := range got.Notes() {
		if n != tr.Notes()[i] {
			t.Errorf("note %d round tripped as %+v, want %+v", i, n, tr.Notes()[i])
		}
	}
}

func TestNewTrackClampsChannel(t *testing.T) {
	tr := NewTrack("Over", 99)
	if tr.Channel != 15 {
		t.Errorf("Channel = %d, want clamped to 15", tr.Channel)
	}
}

func TestNewDrumTrackUsesDrumChannel(t *testing.T) {
	tr := NewDrumTrack("Kit")
	if tr.Channel != DrumChannel {
		t.Errorf("Channel = %d, want %d", tr.Channel, DrumChannel)
	}
}
