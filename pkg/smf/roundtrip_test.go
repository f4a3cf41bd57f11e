package smf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zurustar/miditui/pkg/midi"
)

func buildSampleProject() *midi.Project {
	p := midi.NewProject("Demo")
	p.Tempo = 140
	p.TimeSigNumerator = 3
	p.TimeSigDenominator = 4

	lead := midi.NewTrack("Lead", 0)
	lead.Program = 4
	lead.Volume = 110
	lead.Pan = 70
	lead.CreateNote(60, 100, 0, 480)
	lead.CreateNote(64, 90, 480, 240)
	lead.CreateNote(67, 80, 960, 960)
	p.AddTrack(lead)

	bass := midi.NewTrack("Bass", 1)
	bass.CreateNote(36, 100, 0, 1920)
	p.AddTrack(bass)

	return p
}

func TestExportImportRoundTrip(t *testing.T) {
	p := buildSampleProject()
	path := filepath.Join(t.TempDir(), "Demo.mid")

	if err := Export(p, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	imported, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if imported.Tempo != p.Tempo {
		t.Errorf("Tempo = %d, want %d", imported.Tempo, p.Tempo)
	}
	if imported.TimeSigNumerator != p.TimeSigNumerator || imported.TimeSigDenominator != p.TimeSigDenominator {
		t.Errorf("time signature = %d/%d, want %d/%d",
			imported.TimeSigNumerator, imported.TimeSigDenominator, p.TimeSigNumerator, p.TimeSigDenominator)
	}

	// The pure tempo/time-signature track carries no notes and must not
	// surface as an extra project track.
	if imported.TrackCount() != p.TrackCount() {
		t.Fatalf("TrackCount = %d, want %d", imported.TrackCount(), p.TrackCount())
	}

	for _, original := range p.Tracks() {
		var got *midi.Track
		for _, t := range imported.Tracks() {
			if t.Channel == original.Channel {
				got = t
				break
			}
		}
		if got == nil {
			t.Fatalf("no imported track found for channel %d", original.Channel)
		}
		if got.Program != original.Program {
			t.Errorf("channel %d Program = %d, want %d", original.Channel, got.Program, original.Program)
		}
		if got.Volume != original.Volume {
			t.Errorf("channel %d Volume = %d, want %d", original.Channel, got.Volume, original.Volume)
		}
		if got.Pan != original.Pan {
			t.Errorf("channel %d Pan = %d, want %d", original.Channel, got.Pan, original.Pan)
		}
		if len(got.Notes()) != len(original.Notes()) {
			t.Fatalf("channel %d note count = %d, want %d", original.Channel, len(got.Notes()), len(original.Notes()))
		}
		for i, n := range got.Notes() {
			want := original.Notes()[i]
			if n.Pitch != want.Pitch || n.Velocity != want.Velocity ||
				n.StartTick != want.StartTick || n.DurationTicks != want.DurationTicks {
				t.Errorf("channel %d note %d = %+v, want %+v", original.Channel, i, n, want)
			}
		}
	}
}

func TestImportRejectsMissingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mid")
	writeFile(t, path, []byte("not a midi file"))

	if _, err := Import(path); err == nil {
		t.Error("Import should reject a file without an MThd header")
	}
}

func TestImportRejectsSMPTETiming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smpte.mid")
	header := []byte("MThd")
	header = append(header, 0, 0, 0, 6) // length
	header = append(header, 0, 0)       // format 0
	header = append(header, 0, 1)       // 1 track
	header = append(header, 0xE7, 0x28) // SMPTE division (top bit set)
	writeFile(t, path, header)

	if _, err := Import(path); err == nil {
		t.Error("Import should reject SMPTE-timed files")
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
}
