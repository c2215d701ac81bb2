package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	t.Parallel()

	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty server url", mutate: func(c *Config) { c.ServerURL = " " }, wantErr: "server_url"},
		{name: "http scheme", mutate: func(c *Config) { c.ServerURL = "http://x/asr" }, wantErr: "ws://"},
		{name: "zero connect timeout", mutate: func(c *Config) { c.ConnectTimeout = 0 }, wantErr: "connect_timeout_ms"},
		{name: "zero sample rate", mutate: func(c *Config) { c.Audio.SampleRate = 0 }, wantErr: "sample_rate"},
		{name: "three channels", mutate: func(c *Config) { c.Audio.Channels = 3 }, wantErr: "channels"},
		{name: "zero chunk", mutate: func(c *Config) { c.Audio.ChunkMS = 0 }, wantErr: "chunk_ms"},
		{name: "zero send interval", mutate: func(c *Config) { c.SendInterval = 0 }, wantErr: "send_interval_ms"},
		{name: "empty hotkey", mutate: func(c *Config) { c.Hotkey.Combo = "" }, wantErr: "hotkey"},
		{name: "negative cooldown", mutate: func(c *Config) { c.Hotkey.Cooldown = -time.Second }, wantErr: "cooldown"},
		{name: "zero drain timeout", mutate: func(c *Config) { c.DrainTimeout = 0 }, wantErr: "drain_timeout_ms"},
		{name: "negative typing delay", mutate: func(c *Config) { c.Typing.Delay = -time.Millisecond }, wantErr: "typing_delay_ms"},
		{name: "empty type cmd", mutate: func(c *Config) { c.Typing.Cmd = CommandConfig{} }, wantErr: "type_cmd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWarnsWhenChunkExceedsSendInterval(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Audio.ChunkMS = 2000

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "chunk_ms")
}

func TestChunkBytes(t *testing.T) {
	t.Parallel()

	audio := AudioConfig{SampleRate: 16000, Channels: 1, ChunkMS: 1000}
	require.Equal(t, 32000, audio.ChunkBytes())

	audio = AudioConfig{SampleRate: 16000, Channels: 1, ChunkMS: 20}
	require.Equal(t, 640, audio.ChunkBytes())
}
