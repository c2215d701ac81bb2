// Package config resolves, parses, validates, and defaults whisperkey configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by whisperkey.
type Config struct {
	ServerURL      string
	ConnectTimeout time.Duration
	Audio          AudioConfig
	SendInterval   time.Duration
	Hotkey         HotkeyConfig
	DrainTimeout   time.Duration
	Typing         TypingConfig
}

// AudioConfig controls capture format and input-source selection.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
	Channels   int
	ChunkMS    int
}

// SampleWidth is the PCM sample width in bytes; capture is always s16le.
const SampleWidth = 2

// ChunkBytes returns the capture frame size implied by the audio format.
func (a AudioConfig) ChunkBytes() int {
	return a.SampleRate * a.Channels * SampleWidth * a.ChunkMS / 1000
}

// HotkeyConfig controls the global trigger combo and its debounce window.
type HotkeyConfig struct {
	Combo    string
	Cooldown time.Duration
}

// TypingConfig controls keystroke injection pacing and the sink command.
type TypingConfig struct {
	Delay time.Duration
	Cmd   CommandConfig
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
