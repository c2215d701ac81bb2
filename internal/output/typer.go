// Package output injects reconciled transcript text into the focused
// application, one character per keystroke-tool invocation.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rbright/whisperkey/internal/config"
)

// commandTimeout bounds a single keystroke-tool invocation.
const commandTimeout = 2 * time.Second

// CommandTyper types characters by running the configured command (for
// example `wtype --`) with the character appended as the last argument.
type CommandTyper struct {
	argv   []string
	logger *slog.Logger
}

// NewCommandTyper constructs a typer from the configured type command.
func NewCommandTyper(cmd config.CommandConfig, logger *slog.Logger) *CommandTyper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandTyper{argv: cmd.Argv, logger: logger}
}

// TypeChar emits one character to the focused application.
func (t *CommandTyper) TypeChar(ctx context.Context, ch rune) error {
	if len(t.argv) == 0 {
		return fmt.Errorf("type command argv cannot be empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	argv := append(append([]string(nil), t.argv...), string(ch))
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
