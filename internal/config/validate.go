package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	url := strings.TrimSpace(cfg.ServerURL)
	if url == "" {
		return nil, fmt.Errorf("server_url must not be empty")
	}
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return nil, fmt.Errorf("server_url must use ws:// or wss:// scheme")
	}
	if cfg.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("connect_timeout_ms must be > 0")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		return nil, fmt.Errorf("audio.channels must be 1 or 2")
	}
	if cfg.Audio.ChunkMS <= 0 {
		return nil, fmt.Errorf("audio.chunk_ms must be > 0")
	}
	if cfg.SendInterval <= 0 {
		return nil, fmt.Errorf("send_interval_ms must be > 0")
	}
	if strings.TrimSpace(cfg.Hotkey.Combo) == "" {
		return nil, fmt.Errorf("hotkey must not be empty")
	}
	if cfg.Hotkey.Cooldown < 0 {
		return nil, fmt.Errorf("hotkey_cooldown_ms must be >= 0")
	}
	if cfg.DrainTimeout <= 0 {
		return nil, fmt.Errorf("drain_timeout_ms must be > 0")
	}
	if cfg.Typing.Delay < 0 {
		return nil, fmt.Errorf("typing_delay_ms must be >= 0")
	}
	if len(cfg.Typing.Cmd.Argv) == 0 {
		return nil, fmt.Errorf("type_cmd must not be empty")
	}

	if time.Duration(cfg.Audio.ChunkMS)*time.Millisecond > cfg.SendInterval {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("audio.chunk_ms=%d exceeds send_interval_ms; flushes will lag capture", cfg.Audio.ChunkMS),
		})
	}

	return warnings, nil
}
