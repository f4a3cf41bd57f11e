// Command miditui is the terminal entry point for the MIDI sequencer.
package main

import (
	"fmt"
	"os"

	"github.com/zurustar/miditui/pkg/app"
	"github.com/zurustar/miditui/pkg/cli"
	"github.com/zurustar/miditui/pkg/errkind"
	"github.com/zurustar/miditui/pkg/logger"
	"github.com/zurustar/miditui/pkg/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	config, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if config.ShowHelp {
		cli.PrintHelp()
		return 0
	}

	if err := logger.InitLogger(config.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logger.GetLogger()

	soundFontPath, err := app.ResolveSoundFont(config.SoundFontPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	session, err := app.New(soundFontPath, !config.New)
	if err != nil {
		if errkind.Is(err, errkind.AudioInit) {
			fmt.Fprintf(os.Stderr, "failed to initialize audio: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	log.Info("miditui started", "soundfont", soundFontPath)

	if err := tui.Run(session); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return 0
}
