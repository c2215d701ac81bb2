package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/whisperkey/internal/config"
)

// queueCap bounds how many PCM frames can wait between the capture callback
// and the sender. When full, the newest frame is dropped and counted.
const queueCap = 256

// Source captures fixed-size PCM frames from a Pulse input device.
//
// The device is resolved and the record stream opened per session: Start
// opens it, Stop releases it. A device failure therefore aborts only the
// session being started, not the process. Frames flow from the Pulse
// callback into a bounded queue; Poll drains the queue without blocking.
type Source struct {
	cfg        config.AudioConfig
	chunkBytes int
	logger     *slog.Logger

	queue chan []byte

	mu        sync.Mutex
	device    Device
	client    *pulse.Client
	stream    *pulse.RecordStream
	pending   []byte
	capturing bool
	closed    bool

	// open is the capture-open step; swapped out by tests.
	open func(ctx context.Context) error

	drops atomic.Int64
	bytes atomic.Int64
}

// NewSource builds a source for the configured audio format. No device is
// touched until Start.
func NewSource(cfg config.AudioConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	source := &Source{
		cfg:        cfg,
		chunkBytes: cfg.ChunkBytes(),
		logger:     logger,
		queue:      make(chan []byte, queueCap),
	}
	source.open = source.openStream
	return source
}

// Device returns metadata for the device of the current or last capture.
func (s *Source) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Start resolves the configured device, opens a record stream on it, and
// begins delivering frames. Failure wraps ErrDevice and leaves the source
// stopped. Calling Start while already capturing is a no-op.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: source is shut down", ErrDevice)
	}
	if s.capturing {
		return nil
	}

	// Discard anything a previous session left unconsumed.
	s.drainQueueLocked()
	s.pending = s.pending[:0]

	if err := s.open(ctx); err != nil {
		s.releaseLocked()
		return err
	}

	s.capturing = true
	if s.stream != nil {
		s.stream.Start()
	}
	s.logger.Info("capture started", "device", s.device.ID)
	return nil
}

// openStream connects to Pulse, resolves the configured input source, and
// creates the record stream. Caller holds s.mu.
func (s *Source) openStream(ctx context.Context) error {
	selection, err := SelectDevice(ctx, s.cfg.Input, s.cfg.Fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		s.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	client, err := newPulseClient()
	if err != nil {
		return err
	}

	pulseSource, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: resolve source %q: %v", ErrDevice, selection.Device.ID, err)
	}

	opts := []pulse.RecordOption{
		pulse.RecordSource(pulseSource),
		pulse.RecordSampleRate(s.cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(s.chunkBytes)),
		pulse.RecordMediaName("whisperkey dictation"),
	}
	if s.cfg.Channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}

	stream, err := client.NewRecord(pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE), opts...)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: create record stream: %v", ErrDevice, err)
	}

	s.device = selection.Device
	s.client = client
	s.stream = stream
	return nil
}

// Stop halts capture, flushes any residual partial frame into the queue, and
// releases the device. Frames already queued remain pollable. Calling Stop
// while idle is a no-op.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.capturing {
		return
	}
	s.capturing = false

	if len(s.pending) > 0 {
		tail := make([]byte, len(s.pending))
		copy(tail, s.pending)
		s.pending = s.pending[:0]
		s.enqueue(tail)
	}

	s.releaseLocked()
}

// Poll returns the next queued frame without blocking. The second return is
// false when the queue is empty.
func (s *Source) Poll() ([]byte, bool) {
	select {
	case frame := <-s.queue:
		return frame, true
	default:
		return nil, false
	}
}

// Dropped reports how many frames were discarded because the queue was full.
func (s *Source) Dropped() int64 {
	return s.drops.Load()
}

// BytesCaptured reports total PCM bytes accepted from the device.
func (s *Source) BytesCaptured() int64 {
	return s.bytes.Load()
}

// Shutdown releases the device and marks the source unusable. Idempotent.
func (s *Source) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.capturing = false
	s.pending = nil
	s.releaseLocked()
}

// releaseLocked closes the record stream and Pulse connection, if open.
// Caller holds s.mu.
func (s *Source) releaseLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// drainQueueLocked empties the frame queue. Caller holds s.mu.
func (s *Source) drainQueueLocked() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// onPCM receives raw device buffers and slices them into chunkBytes frames.
func (s *Source) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.EOF
	}
	if !s.capturing {
		// The device can deliver a buffered tail after Stop; discard it.
		return len(buffer), nil
	}

	s.bytes.Add(int64(len(buffer)))
	s.pending = append(s.pending, buffer...)

	for len(s.pending) >= s.chunkBytes {
		frame := make([]byte, s.chunkBytes)
		copy(frame, s.pending[:s.chunkBytes])
		s.pending = s.pending[s.chunkBytes:]
		s.enqueue(frame)
	}

	return len(buffer), nil
}

// enqueue offers one frame to the queue, dropping it when full.
func (s *Source) enqueue(frame []byte) {
	select {
	case s.queue <- frame:
	default:
		dropped := s.drops.Add(1)
		s.logger.Warn("audio queue full, dropping frame", "dropped_total", dropped)
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
