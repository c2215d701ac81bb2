package config

import "time"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	typeCmd := "wtype --"

	return Config{
		ServerURL:      "ws://localhost:8000/asr",
		ConnectTimeout: 10 * time.Second,
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			Channels:   1,
			ChunkMS:    1000,
		},
		SendInterval: time.Second,
		Hotkey: HotkeyConfig{
			Combo:    "ctrl+alt+r",
			Cooldown: 500 * time.Millisecond,
		},
		DrainTimeout: 10 * time.Second,
		Typing: TypingConfig{
			Delay: 15 * time.Millisecond,
			Cmd:   CommandConfig{Raw: typeCmd, Argv: mustParseArgv(typeCmd)},
		},
	}
}
