package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zurustar/miditui/pkg/errkind"
)

// soundFontExt is the required extension for a SoundFont file.
const soundFontExt = ".sf2"

// ResolveSoundFont validates an explicitly given SoundFont path, or else
// searches the current directory for exactly one *.sf2 file when explicit
// is empty, matching the CLI surface in SPEC_FULL §6: --soundfont, a bare
// *.sf2 positional argument, or auto-discovery.
func ResolveSoundFont(explicit string) (string, error) {
	if explicit != "" {
		if !strings.EqualFold(filepath.Ext(explicit), soundFontExt) {
			return "", errkind.New(errkind.AudioInit, "%s is not a .sf2 file", explicit)
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", errkind.Wrap(errkind.AudioInit, err, "soundfont %s not found", explicit)
		}
		return explicit, nil
	}

	entries, err := os.ReadDir(".")
	if err != nil {
		return "", errkind.Wrap(errkind.AudioInit, err, "reading current directory")
	}

	var found []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), soundFontExt) {
			found = append(found, e.Name())
		}
	}

	switch len(found) {
	case 0:
		return "", errkind.New(errkind.AudioInit, "no .sf2 SoundFont found in current directory; pass --soundfont")
	case 1:
		return found[0], nil
	default:
		return "", errkind.New(errkind.AudioInit, "multiple .sf2 files found in current directory; pass --soundfont to pick one")
	}
}
