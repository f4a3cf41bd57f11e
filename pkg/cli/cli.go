// Package cli parses the miditui command-line surface.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config holds the parsed command-line configuration.
type Config struct {
	SoundFontPath string // --soundfont|-sf <path>, or a bare *.sf2 positional argument
	New           bool   // --new|-n: skip autosave recovery
	LogLevel      string // debug, info, warn, error
	ShowHelp      bool
}

// ParseArgs parses args (excluding the program name) into a Config.
// Flags and the positional SoundFont path may appear in either order.
func ParseArgs(args []string) (*Config, error) {
	reordered := reorderArgs(args)

	fs := flag.NewFlagSet("miditui", flag.ContinueOnError)

	config := &Config{}
	fs.StringVar(&config.SoundFontPath, "soundfont", "", "path to a .sf2 SoundFont file")
	fs.StringVar(&config.SoundFontPath, "sf", "", "path to a .sf2 SoundFont file (short form)")
	fs.BoolVar(&config.New, "new", false, "start a new project, skipping autosave recovery")
	fs.BoolVar(&config.New, "n", false, "start a new project, skipping autosave recovery (short form)")
	fs.StringVar(&config.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help (short form)")

	if err := fs.Parse(reordered); err != nil {
		return nil, err
	}

	if config.LogLevel == "" {
		if envLevel := os.Getenv("MIDITUI_LOG_LEVEL"); envLevel != "" {
			config.LogLevel = strings.ToLower(envLevel)
		} else {
			config.LogLevel = "info"
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// A bare positional *.sf2 argument is equivalent to --soundfont.
	if config.SoundFontPath == "" && fs.NArg() > 0 {
		arg := fs.Arg(0)
		if strings.HasSuffix(strings.ToLower(arg), ".sf2") {
			config.SoundFontPath = arg
		} else {
			return nil, fmt.Errorf("unexpected argument: %s (expected a .sf2 file)", arg)
		}
	}

	return config, nil
}

// reorderArgs moves flags (and their values) before positional arguments,
// so `miditui song.sf2 --new` and `miditui --new song.sf2` both parse.
func reorderArgs(args []string) []string {
	var flags, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "-n" && arg != "--new" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes the command-line usage summary to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `miditui - terminal multi-track MIDI sequencer

Usage:
  miditui [options] [soundfont.sf2]

Arguments:
  soundfont.sf2   Path to a SoundFont file (alternative to --soundfont)

Options:
  -sf, --soundfont <path>   Path to a .sf2 SoundFont file
  -n, --new                 Start a new project, skipping autosave recovery
  --log-level <level>       Log level: debug, info, warn, error (default: info)
  -h, --help                Show this help

Environment Variables:
  MIDITUI_LOG_LEVEL=<level>   Log level, overridden by --log-level

Examples:
  miditui GeneralUser-GS.sf2      Use the given SoundFont, recovering any autosave
  miditui --new song.sf2          Start fresh, ignoring any pending autosave
  miditui --log-level debug       Enable debug logging
`)
}
