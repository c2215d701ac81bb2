// Package typist reconciles incremental stable transcripts into the minimal
// sequence of keystrokes, avoiding retyping text already emitted.
package typist

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Sink injects one character at a time into the focused application.
type Sink interface {
	TypeChar(ctx context.Context, ch rune) error
}

// Reconciler tracks what has been typed during a session and emits only the
// delta when the server extends the stable transcript. All methods are called
// from the session scheduler; no internal locking is needed.
type Reconciler struct {
	sink   Sink
	delay  time.Duration
	logger *slog.Logger

	lastEmitted string
	active      bool
}

// New constructs a reconciler typing through sink with a fixed per-character
// delay.
func New(sink Sink, delay time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{sink: sink, delay: delay, logger: logger}
}

// BeginSession clears emitted state and enables typing.
func (r *Reconciler) BeginSession() {
	r.lastEmitted = ""
	r.active = true
}

// EndSession disables typing. Idempotent.
func (r *Reconciler) EndSession() {
	r.active = false
}

// LastEmitted returns the text already converted to keystrokes this session.
func (r *Reconciler) LastEmitted() string {
	return r.lastEmitted
}

// ApplyUpdate reconciles one stable transcript against what was already
// typed.
//
// When the new text extends the previous one (ignoring the old value's
// trailing whitespace) only the suffix is typed. When the server replaced
// its transcript outright, the full new text is typed.
func (r *Reconciler) ApplyUpdate(ctx context.Context, stableText string) {
	if !r.active {
		return
	}
	if stableText == "" || stableText == r.lastEmitted {
		return
	}

	prefix := strings.TrimRight(r.lastEmitted, " \t\n")
	if strings.HasPrefix(stableText, prefix) {
		newPart := stableText[len(prefix):]
		if strings.TrimSpace(newPart) == "" {
			return
		}
		r.typeText(ctx, newPart)
		r.lastEmitted = stableText
		return
	}

	r.logger.Debug("transcript replaced, retyping", "previous_len", len(r.lastEmitted), "new_len", len(stableText))
	r.typeText(ctx, stableText)
	r.lastEmitted = stableText
}

// ApplyFinal types the terminal stable text and ends the session.
func (r *Reconciler) ApplyFinal(ctx context.Context, finalText string) {
	r.ApplyUpdate(ctx, finalText)
	r.EndSession()
}

// typeText emits characters in order, pausing between them so the receiving
// application can keep up. A sink failure on one character is logged and the
// rest of the text is still attempted.
func (r *Reconciler) typeText(ctx context.Context, text string) {
	for _, ch := range text {
		if err := r.sink.TypeChar(ctx, ch); err != nil {
			r.logger.Warn("keystroke failed", "char", string(ch), "error", err.Error())
		}
		if r.delay <= 0 {
			continue
		}
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return
		}
	}
}
