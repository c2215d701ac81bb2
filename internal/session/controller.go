// Package session drives the dictation session lifecycle: connect, capture,
// stream, drain, disconnect, all scheduled from a single control loop.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/whisperkey/internal/config"
	"github.com/rbright/whisperkey/internal/fsm"
	"github.com/rbright/whisperkey/internal/wire"
)

// pollInterval is the cadence at which the send loop drains the audio queue.
const pollInterval = 10 * time.Millisecond

// AudioSource supplies captured PCM frames. Start opens the capture device
// for the session and may fail when the device is unavailable.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop()
	Poll() ([]byte, bool)
	Shutdown()
}

// Stream is the transcription server connection.
type Stream interface {
	Connect(ctx context.Context) error
	SendHeader(sampleRate int, channels int, sampleWidth int) error
	SendAudio(pcm []byte) error
	SendStop()
	Receive(ctx context.Context) (<-chan wire.TranscriptEvent, error)
	Disconnect()
}

// Typist converts stable transcripts into keystrokes.
type Typist interface {
	BeginSession()
	ApplyUpdate(ctx context.Context, stableText string)
	ApplyFinal(ctx context.Context, finalText string)
	EndSession()
}

// Controller owns the single dictation session state machine.
//
// All state mutation happens on the Run goroutine; the send and receive
// loops run as subordinate goroutines whose lifetimes are bounded by the
// Recording and Draining states respectively.
type Controller struct {
	cfg    config.Config
	source AudioSource
	stream Stream
	typist Typist
	logger *slog.Logger

	mu    sync.Mutex
	state fsm.State
}

// NewController wires the session dependencies together.
func NewController(cfg config.Config, source AudioSource, stream Stream, typist Typist, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		cfg:    cfg,
		source: source,
		stream: stream,
		typist: typist,
		logger: logger,
		state:  fsm.StateIdle,
	}
}

// State reports the current session state. Safe to call from any goroutine.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run consumes toggle signals until the context ends. A toggle while idle
// starts a session; the session then runs to completion on this goroutine,
// consuming the stop toggle itself.
func (c *Controller) Run(ctx context.Context, toggles <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-toggles:
			c.runSession(ctx, toggles)
		}
	}
}

// runSession executes one full session lifecycle, from Connecting back to
// Idle. Failures at any stage tear the session down and return to Idle.
func (c *Controller) runSession(ctx context.Context, toggles <-chan struct{}) {
	c.transition(fsm.EventToggle)

	connectCtx, cancelConnect := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	err := c.stream.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		c.logger.Error("session connect failed", "state", c.state, "error", err.Error())
		c.transition(fsm.EventFail)
		return
	}

	// The capture device is opened per session; an unavailable device ends
	// this session but leaves the process running.
	if err := c.source.Start(ctx); err != nil {
		c.logger.Error("audio capture start failed", "state", c.state, "error", err.Error())
		c.stream.Disconnect()
		c.transition(fsm.EventFail)
		return
	}

	c.transition(fsm.EventConnected)
	c.typist.BeginSession()

	recvCtx, cancelRecv := context.WithCancel(ctx)
	defer cancelRecv()

	events, err := c.stream.Receive(recvCtx)
	if err != nil {
		c.logger.Error("session receive setup failed", "state", c.state, "error", err.Error())
		c.source.Stop()
		c.failTeardown(cancelRecv, nil)
		return
	}

	terminal := make(chan struct{})
	recvEnded := make(chan struct{})
	go c.recvLoop(recvCtx, events, terminal, recvEnded)

	sendCtx, cancelSend := context.WithCancel(ctx)
	defer cancelSend()
	sendErr := make(chan error, 1)
	sendDone := make(chan struct{})
	go c.sendLoop(sendCtx, sendErr, sendDone)

	// Recording: wait for the stop toggle or a failure.
	select {
	case <-toggles:
	case err := <-sendErr:
		c.logger.Error("audio send failed, ending session", "state", c.state, "error", err.Error())
		c.source.Stop()
		cancelSend()
		<-sendDone
		c.stream.SendStop()
		c.failTeardown(cancelRecv, recvEnded)
		return
	case <-recvEnded:
		c.logger.Error("server stream ended while recording", "state", c.state)
		c.source.Stop()
		cancelSend()
		<-sendDone
		c.stream.SendStop()
		c.failTeardown(cancelRecv, recvEnded)
		return
	case <-ctx.Done():
		c.logger.Info("shutdown during recording, forcing session stop")
		c.source.Stop()
		cancelSend()
		<-sendDone
		c.stream.SendStop()
		c.failTeardown(cancelRecv, recvEnded)
		return
	}

	// Recording -> Draining: stop capture, flush the tail, send stop.
	c.source.Stop()
	cancelSend()
	<-sendDone
	c.stream.SendStop()
	c.transition(fsm.EventToggle)

	drainTimer := time.NewTimer(c.cfg.DrainTimeout)
	defer drainTimer.Stop()
	select {
	case <-terminal:
		c.logger.Info("drain complete, terminal transcript received")
	case <-recvEnded:
		c.logger.Info("drain complete, server closed the stream")
	case <-drainTimer.C:
		c.logger.Warn("drain timed out", "timeout", c.cfg.DrainTimeout.String())
	case <-ctx.Done():
		c.logger.Info("shutdown during drain")
	}
	c.transition(fsm.EventDrained)

	c.teardown(cancelRecv, recvEnded)
	c.transition(fsm.EventDisconnected)
}

// failTeardown is the failure path back to Idle: Recording or Draining goes
// through Disconnecting without waiting for drain.
func (c *Controller) failTeardown(cancelRecv context.CancelFunc, recvEnded <-chan struct{}) {
	c.transition(fsm.EventFail)
	c.teardown(cancelRecv, recvEnded)
	c.transition(fsm.EventDisconnected)
}

// teardown closes out the receive loop and the connection, then ends the
// typing session. Runs with state Disconnecting.
func (c *Controller) teardown(cancelRecv context.CancelFunc, recvEnded <-chan struct{}) {
	cancelRecv()
	c.stream.Disconnect()
	if recvEnded != nil {
		<-recvEnded
	}
	c.typist.EndSession()
}

// sendLoop pumps the audio queue into the stream, flushing accumulated bytes
// every SendInterval. The stream header goes out once, before the first
// payload. On cancellation the loop drains whatever the source still holds
// and flushes it as the final payload.
func (c *Controller) sendLoop(ctx context.Context, errs chan<- error, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var accumulated []byte
	headerSent := false
	lastFlush := time.Now()

	flush := func() error {
		if !headerSent {
			if err := c.stream.SendHeader(c.cfg.Audio.SampleRate, c.cfg.Audio.Channels, config.SampleWidth); err != nil {
				return err
			}
			headerSent = true
		}
		if len(accumulated) == 0 {
			return nil
		}
		if err := c.stream.SendAudio(accumulated); err != nil {
			return err
		}
		accumulated = accumulated[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			for {
				frame, ok := c.source.Poll()
				if !ok {
					break
				}
				accumulated = append(accumulated, frame...)
			}
			if len(accumulated) > 0 {
				if err := flush(); err != nil {
					c.logger.Warn("final audio flush failed", "error", err.Error())
				}
			}
			return
		case <-ticker.C:
			for {
				frame, ok := c.source.Poll()
				if !ok {
					break
				}
				accumulated = append(accumulated, frame...)
			}
			if len(accumulated) == 0 || time.Since(lastFlush) < c.cfg.SendInterval {
				continue
			}
			if err := flush(); err != nil {
				errs <- err
				return
			}
			lastFlush = time.Now()
		}
	}
}

// recvLoop feeds transcript events into the typist. It closes terminal when
// the server's terminal event arrives and recvEnded when the stream ends.
func (c *Controller) recvLoop(ctx context.Context, events <-chan wire.TranscriptEvent, terminal chan<- struct{}, recvEnded chan<- struct{}) {
	defer close(recvEnded)

	for event := range events {
		if event.Final {
			c.typist.ApplyFinal(ctx, event.Text)
			close(terminal)
			return
		}
		c.typist.ApplyUpdate(ctx, event.Text)
	}
}

// transition applies one state machine event, logging the edge. An invalid
// edge indicates a controller bug and is logged, never acted on.
func (c *Controller) transition(event fsm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Error("session state machine violation", "error", err.Error())
		return
	}
	c.logger.Debug("session state change", "from", c.state, "to", next, "event", event)
	c.state = next
}
