package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse reads `key = value` configuration content over a base config.
//
// Lines are trimmed; blank lines and `#` comments are skipped. Values may be
// single- or double-quoted. Unknown keys fail with the offending line number.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lineNo := i + 1
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, nil, fmt.Errorf("line %d: expected key = value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if err := applyValue(&cfg, key, value); err != nil {
			return Config{}, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validateWarnings...)

	return cfg, warnings, nil
}

// applyValue assigns one parsed key/value pair into cfg.
func applyValue(cfg *Config, key string, value string) error {
	switch key {
	case "server_url":
		cfg.ServerURL = value
	case "connect_timeout_ms":
		return setDurationMS(&cfg.ConnectTimeout, key, value)
	case "audio.input":
		cfg.Audio.Input = value
	case "audio.fallback":
		cfg.Audio.Fallback = value
	case "audio.sample_rate":
		return setInt(&cfg.Audio.SampleRate, key, value)
	case "audio.channels":
		return setInt(&cfg.Audio.Channels, key, value)
	case "audio.chunk_ms":
		return setInt(&cfg.Audio.ChunkMS, key, value)
	case "send_interval_ms":
		return setDurationMS(&cfg.SendInterval, key, value)
	case "hotkey":
		cfg.Hotkey.Combo = value
	case "hotkey_cooldown_ms":
		return setDurationMS(&cfg.Hotkey.Cooldown, key, value)
	case "drain_timeout_ms":
		return setDurationMS(&cfg.DrainTimeout, key, value)
	case "typing_delay_ms":
		return setDurationMS(&cfg.Typing.Delay, key, value)
	case "type_cmd":
		argv, err := parseArgv(value)
		if err != nil {
			return err
		}
		cfg.Typing.Cmd = CommandConfig{Raw: value, Argv: argv}
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func setInt(dst *int, key string, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: expected integer, got %q", key, value)
	}
	*dst = n
	return nil
}

func setDurationMS(dst *time.Duration, key string, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: expected integer milliseconds, got %q", key, value)
	}
	*dst = time.Duration(n) * time.Millisecond
	return nil
}

// unquote strips one level of matching single or double quotes.
func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
