package wire

import (
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

// frame is one binary message captured by the test server.
type frame struct {
	payload []byte
}

// startEchoServer runs a websocket endpoint that records inbound binary
// frames and replies with the given JSON payloads before closing.
func startEchoServer(t *testing.T, replies []string, frames chan<- frame) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, reply := range replies {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if frames != nil {
				frames <- frame{payload: payload}
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnectFailureLeavesClientDisconnected(t *testing.T) {
	t.Parallel()

	client := NewClient("ws://127.0.0.1:1/asr", nil)
	err := client.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnect)

	require.ErrorIs(t, client.SendAudio([]byte{1}), ErrNotConnected)
}

func TestConnectTimeout(t *testing.T) {
	t.Parallel()

	// Accepts the TCP connection but never answers the websocket handshake,
	// so the dial blocks until the context deadline.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	var held []net.Conn
	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				for _, c := range held {
					_ = c.Close()
				}
				return
			}
			held = append(held, conn)
		}
	}()

	client := NewClient("ws://"+listener.Addr().String()+"/asr", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = client.Connect(ctx)
	require.ErrorIs(t, err, ErrConnectTimeout)
	require.ErrorIs(t, err, ErrConnect)
}

func TestSendHeaderOncePerConnection(t *testing.T) {
	t.Parallel()

	frames := make(chan frame, 8)
	server := startEchoServer(t, nil, frames)

	client := NewClient(wsURL(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	require.NoError(t, client.SendHeader(16000, 1, 2))
	require.ErrorIs(t, client.SendHeader(16000, 1, 2), ErrHeaderSent)

	got := <-frames
	require.Len(t, got.payload, HeaderSize)
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(got.payload[28:32]))
}

func TestSendAudioAndStopFraming(t *testing.T) {
	t.Parallel()

	frames := make(chan frame, 8)
	server := startEchoServer(t, nil, frames)

	client := NewClient(wsURL(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	require.NoError(t, client.SendHeader(16000, 1, 2))
	require.NoError(t, client.SendAudio([]byte{1, 2, 3, 4}))
	client.SendStop()

	<-frames // header
	pcm := <-frames
	require.Equal(t, []byte{1, 2, 3, 4}, pcm.payload)
	stop := <-frames
	require.Empty(t, stop.payload)
}

func TestSendAfterDisconnectFails(t *testing.T) {
	t.Parallel()

	server := startEchoServer(t, nil, nil)

	client := NewClient(wsURL(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	client.Disconnect()
	client.Disconnect() // idempotent

	require.ErrorIs(t, client.SendAudio([]byte{1}), ErrNotConnected)
	require.ErrorIs(t, client.SendHeader(16000, 1, 2), ErrNotConnected)
}

func TestReceiveDecodesEventsAndSkipsMalformed(t *testing.T) {
	t.Parallel()

	replies := []string{
		`{"lines":[{"text":"hello"}]}`,
		`{definitely not json`,
		`{"type":"unknown_kind"}`,
		`{"type":"ready_to_stop","lines":[{"text":"hello world"}]}`,
	}
	server := startEchoServer(t, replies, nil)

	client := NewClient(wsURL(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	events, err := client.Receive(context.Background())
	require.NoError(t, err)

	var got []TranscriptEvent
	for event := range events {
		got = append(got, event)
		if event.Final {
			break
		}
	}

	require.Len(t, got, 3) // malformed message skipped
	require.Equal(t, TranscriptEvent{Text: "hello"}, got[0])
	require.Equal(t, TranscriptEvent{Text: ""}, got[1])
	require.Equal(t, TranscriptEvent{Text: "hello world", Final: true}, got[2])
}

func TestReceiveEndsWhenPeerCloses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"lines":[{"text":"bye"}]}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}))
	t.Cleanup(server.Close)

	client := NewClient(wsURL(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	events, err := client.Receive(context.Background())
	require.NoError(t, err)

	event, ok := <-events
	require.True(t, ok)
	require.Equal(t, "bye", event.Text)

	select {
	case _, ok := <-events:
		require.False(t, ok, "expected closed channel after peer close")
	case <-time.After(2 * time.Second):
		t.Fatal("receive channel did not close")
	}
}

func TestReceiveRequiresConnection(t *testing.T) {
	t.Parallel()

	client := NewClient("ws://unused/asr", nil)
	_, err := client.Receive(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}
