// Package cli parses the command line. whisperkey has no subcommands, only
// flags.
package cli

import (
	"errors"
	"fmt"
)

// Parsed is the resolved command line.
type Parsed struct {
	ConfigPath  string
	ShowHelp    bool
	ShowVersion bool
	ListDevices bool
}

// Parse resolves flags. Unknown arguments are errors.
func Parse(args []string) (Parsed, error) {
	var parsed Parsed

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-h", "--help":
			parsed.ShowHelp = true
		case "--version":
			parsed.ShowVersion = true
		case "--devices":
			parsed.ListDevices = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			return Parsed{}, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	return parsed, nil
}

// HelpText renders usage for the given binary name.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH]

Runs as a resident dictation service: press the configured hotkey to start
streaming microphone audio to the transcription server, press it again to
stop; recognized text is typed into the focused application.

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/whisperkey/config.conf)
  --devices       List available audio input devices and exit
  --version       Show version
  -h, --help      Show help
`, binaryName)
}
