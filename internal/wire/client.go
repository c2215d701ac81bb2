// Package wire implements the websocket streaming protocol: outbound WAV
// header + PCM + stop framing, inbound JSON transcript messages.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrConnect indicates the server could not be reached.
	ErrConnect = errors.New("connect to transcription server failed")
	// ErrConnectTimeout is the timeout sub-case of ErrConnect.
	ErrConnectTimeout = fmt.Errorf("%w: timed out", ErrConnect)
	// ErrNotConnected indicates an operation that requires an open socket.
	ErrNotConnected = errors.New("client is not connected")
	// ErrSend indicates a mid-session socket write failure; the client marks
	// itself disconnected and the caller must reconnect for a new session.
	ErrSend = errors.New("send to transcription server failed")
	// ErrHeaderSent rejects a second stream header within one connection.
	ErrHeaderSent = errors.New("stream header already sent")
)

// Client owns one websocket connection to the transcription server.
//
// Connect/Send*/Disconnect are called from the session scheduler; Receive
// spawns a background reader whose events are consumed on the scheduler.
type Client struct {
	url    string
	logger *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	headerSent bool
}

// NewClient constructs a disconnected client for the given ws:// endpoint.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{url: url, logger: logger}
}

// Connect dials the server, honoring the context deadline.
// On failure the client stays disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("%w: already connected", ErrConnect)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrConnectTimeout, c.url)
		}
		return fmt.Errorf("%w: %s: %v", ErrConnect, c.url, err)
	}

	c.conn = conn
	c.headerSent = false
	return nil
}

// SendHeader emits the one-time stream header. A second call within the same
// connection is rejected.
func (c *Client) SendHeader(sampleRate int, channels int, sampleWidth int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("%w: send header", ErrNotConnected)
	}
	if c.headerSent {
		return ErrHeaderSent
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, StreamHeader(sampleRate, channels, sampleWidth)); err != nil {
		c.dropLocked()
		return fmt.Errorf("%w: header: %v", ErrSend, err)
	}
	c.headerSent = true
	return nil
}

// SendAudio emits one PCM payload frame.
func (c *Client) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("%w: send audio", ErrNotConnected)
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		c.dropLocked()
		return fmt.Errorf("%w: %d bytes: %v", ErrSend, len(pcm), err)
	}
	return nil
}

// SendStop emits the zero-length stop frame. Best-effort: the session is
// already ending, so failures are logged, not propagated.
func (c *Client) SendStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, []byte{}); err != nil {
		c.logger.Warn("stop frame send failed", "error", err.Error())
	}
}

// Receive starts reading inbound messages and returns their event stream.
//
// The channel closes when the peer closes the socket or the connection is
// torn down. A message that fails to decode is logged and skipped.
func (c *Client) Receive(ctx context.Context) (<-chan TranscriptEvent, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("%w: receive", ErrNotConnected)
	}

	events := make(chan TranscriptEvent, 16)
	go c.readLoop(ctx, conn, events)
	return events, nil
}

// readLoop decodes inbound messages until read error or context cancellation.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- TranscriptEvent) {
	defer close(events)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !isExpectedClose(err) {
				c.logger.Warn("receive loop ended", "error", err.Error())
			}
			return
		}

		event, err := decodeEvent(payload)
		if err != nil {
			c.logger.Warn("skipping undecodable message", "error", err.Error(), "bytes", len(payload))
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}

// Disconnect closes the socket; idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

// dropLocked closes and forgets the connection. Caller holds c.mu.
func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.headerSent = false
}

// isExpectedClose reports whether a read error is a normal peer close.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
