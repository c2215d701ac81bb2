// Package trigger turns global hotkey presses into debounced toggle signals
// for the session scheduler.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.design/x/hotkey"

	"github.com/rbright/whisperkey/internal/config"
)

// Combo is a parsed hotkey combination.
type Combo struct {
	Mods []hotkey.Modifier
	Key  hotkey.Key
}

// Source listens for the configured hotkey and emits toggles.
//
// Delivery is non-blocking: a toggle that fires while the scheduler is still
// handling the previous one is dropped, not queued.
type Source struct {
	combo    Combo
	cooldown time.Duration
	logger   *slog.Logger

	toggles chan struct{}

	now        func() time.Time
	lastAccept time.Time
}

// New constructs a source from the hotkey configuration.
func New(cfg config.HotkeyConfig, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	combo, err := Parse(cfg.Combo)
	if err != nil {
		return nil, err
	}
	return &Source{
		combo:    combo,
		cooldown: cfg.Cooldown,
		logger:   logger,
		toggles:  make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Toggles returns the channel the scheduler consumes toggle signals from.
func (s *Source) Toggles() <-chan struct{} {
	return s.toggles
}

// Run registers the global hotkey and listens until the context ends.
// Registration failure is fatal to startup and is returned to the caller.
func (s *Source) Run(ctx context.Context) error {
	hk := hotkey.New(s.combo.Mods, s.combo.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey: %w", err)
	}
	defer func() { _ = hk.Unregister() }()

	s.logger.Info("hotkey registered")
	s.listen(ctx, hk.Keydown(), hk.Keyup())
	return nil
}

// listen consumes raw key events, debounces them, and submits toggles.
func (s *Source) listen(ctx context.Context, keydown <-chan hotkey.Event, keyup <-chan hotkey.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-keyup:
			// Releases carry no meaning; drain them so the channel never backs up.
		case <-keydown:
			now := s.now()
			if !s.lastAccept.IsZero() && now.Sub(s.lastAccept) < s.cooldown {
				s.logger.Debug("toggle ignored within cooldown")
				continue
			}
			s.lastAccept = now

			select {
			case s.toggles <- struct{}{}:
			default:
				s.logger.Debug("toggle dropped, previous still in flight")
			}
		}
	}
}

// Parse resolves a combination like "ctrl+alt+r" into modifiers and a key.
// The last token is the key; every preceding token must be a modifier.
func Parse(combo string) (Combo, error) {
	tokens := strings.Split(combo, "+")
	if len(tokens) < 2 {
		return Combo{}, fmt.Errorf("hotkey %q must combine at least one modifier with a key", combo)
	}

	parsed := Combo{}
	for _, token := range tokens[:len(tokens)-1] {
		mod, err := parseModifier(token)
		if err != nil {
			return Combo{}, err
		}
		parsed.Mods = append(parsed.Mods, mod)
	}

	key, err := parseKey(tokens[len(tokens)-1])
	if err != nil {
		return Combo{}, err
	}
	parsed.Key = key
	return parsed, nil
}

func parseModifier(token string) (hotkey.Modifier, error) {
	switch strings.TrimSpace(strings.ToLower(token)) {
	case "ctrl", "control":
		return hotkey.ModCtrl, nil
	case "shift":
		return hotkey.ModShift, nil
	case "alt":
		return hotkey.Mod1, nil
	case "super", "meta", "win":
		return hotkey.Mod4, nil
	default:
		return 0, fmt.Errorf("unknown hotkey modifier %q", token)
	}
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"f1":    hotkey.KeyF1,
	"f2":    hotkey.KeyF2,
	"f3":    hotkey.KeyF3,
	"f4":    hotkey.KeyF4,
	"f5":    hotkey.KeyF5,
	"f6":    hotkey.KeyF6,
	"f7":    hotkey.KeyF7,
	"f8":    hotkey.KeyF8,
	"f9":    hotkey.KeyF9,
	"f10":   hotkey.KeyF10,
	"f11":   hotkey.KeyF11,
	"f12":   hotkey.KeyF12,
}

var letterKeys = map[rune]hotkey.Key{
	'a': hotkey.KeyA, 'b': hotkey.KeyB, 'c': hotkey.KeyC, 'd': hotkey.KeyD,
	'e': hotkey.KeyE, 'f': hotkey.KeyF, 'g': hotkey.KeyG, 'h': hotkey.KeyH,
	'i': hotkey.KeyI, 'j': hotkey.KeyJ, 'k': hotkey.KeyK, 'l': hotkey.KeyL,
	'm': hotkey.KeyM, 'n': hotkey.KeyN, 'o': hotkey.KeyO, 'p': hotkey.KeyP,
	'q': hotkey.KeyQ, 'r': hotkey.KeyR, 's': hotkey.KeyS, 't': hotkey.KeyT,
	'u': hotkey.KeyU, 'v': hotkey.KeyV, 'w': hotkey.KeyW, 'x': hotkey.KeyX,
	'y': hotkey.KeyY, 'z': hotkey.KeyZ,
}

var digitKeys = map[rune]hotkey.Key{
	'0': hotkey.Key0, '1': hotkey.Key1, '2': hotkey.Key2, '3': hotkey.Key3,
	'4': hotkey.Key4, '5': hotkey.Key5, '6': hotkey.Key6, '7': hotkey.Key7,
	'8': hotkey.Key8, '9': hotkey.Key9,
}

func parseKey(token string) (hotkey.Key, error) {
	name := strings.TrimSpace(strings.ToLower(token))
	if key, ok := namedKeys[name]; ok {
		return key, nil
	}
	if len(name) == 1 {
		ch := rune(name[0])
		if key, ok := letterKeys[ch]; ok {
			return key, nil
		}
		if key, ok := digitKeys[ch]; ok {
			return key, nil
		}
	}
	return 0, fmt.Errorf("unknown hotkey key %q", token)
}
