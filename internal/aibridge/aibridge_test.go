package aibridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"voicebridge/internal/codec"
	"voicebridge/internal/playout"
)

var upgrader = websocket.Upgrader{}

type fakeTransport struct{ frames [][]byte }

func (t *fakeTransport) SendFrame(payload []byte, _ uint32, _ uint8) error {
	cp := append([]byte(nil), payload...)
	t.frames = append(t.frames, cp)
	return nil
}

func startFakeAIServer(t *testing.T, onMessage func(conn *websocket.Conn, data []byte)) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connCh <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if onMessage != nil {
				onMessage(conn, data)
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, connCh
}

func dialTestServer(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestReadLoopWritesAudioDeltaIntoEngine(t *testing.T) {
	server, serverConnCh := startFakeAIServer(t, nil)
	clientConn := dialTestServer(t, server)
	defer clientConn.Close()

	tr := &fakeTransport{}
	engine := playout.NewEngine(tr, codec.ULaw{}, nil, playout.Config{
		TrimPolicy:     playout.TrimPolicyCapTrim,
		OverflowPolicy: playout.OverflowDrainPartial,
	})

	b := New(clientConn, engine, nil)
	b.Start()
	defer b.Close()

	serverConn := <-serverConnCh
	payload := make([]byte, 160)
	for i := range payload {
		payload[i] = byte(i)
	}
	msg, err := json.Marshal(serverMessage{Type: "response.audio.delta", Audio: base64.StdEncoding.EncodeToString(payload)})
	require.NoError(t, err)
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, msg))

	require.Eventually(t, func() bool { return engine.QueuedFrames() == 1 }, time.Second, time.Millisecond)
}

func TestForwardCallerAudioSendsAppendEvent(t *testing.T) {
	received := make(chan clientMessage, 1)
	server, _ := startFakeAIServer(t, func(_ *websocket.Conn, data []byte) {
		var m clientMessage
		if err := json.Unmarshal(data, &m); err == nil {
			received <- m
		}
	})
	clientConn := dialTestServer(t, server)
	defer clientConn.Close()

	tr := &fakeTransport{}
	engine := playout.NewEngine(tr, codec.ULaw{}, nil, playout.Config{
		TrimPolicy:     playout.TrimPolicyCapTrim,
		OverflowPolicy: playout.OverflowDrainPartial,
	})
	b := New(clientConn, engine, nil)

	quietFrame := make([]byte, 320)
	require.NoError(t, b.ForwardCallerAudio(quietFrame))

	select {
	case m := <-received:
		require.Equal(t, "input_audio_buffer.append", m.Type)
		decoded, err := base64.StdEncoding.DecodeString(m.Audio)
		require.NoError(t, err)
		require.Equal(t, quietFrame, decoded)
	case <-time.After(time.Second):
		t.Fatal("server never received the forwarded audio event")
	}
}

func TestForwardCallerAudioTriggersBargeInAfterSustainedSpeech(t *testing.T) {
	server, _ := startFakeAIServer(t, func(_ *websocket.Conn, _ []byte) {})
	clientConn := dialTestServer(t, server)
	defer clientConn.Close()

	tr := &fakeTransport{}
	engine := playout.NewEngine(tr, codec.ULaw{}, nil, playout.Config{
		TrimPolicy:     playout.TrimPolicyCapTrim,
		OverflowPolicy: playout.OverflowDrainPartial,
	})
	b := New(clientConn, engine, nil)

	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0x00
		loud[i+1] = 0x7F // 0x7F00 = 32512, ~0.99 full scale, above threshold
	}

	// A partial frame sits in the accumulator tail; Clear discards it, so a
	// later Flush has nothing to enqueue.
	engine.Write(make([]byte, 100))

	for i := 0; i < bargeInConsecutiveFrames; i++ {
		require.NoError(t, b.ForwardCallerAudio(loud))
	}

	require.Equal(t, bargeInConsecutiveFrames, b.speechFrames)
	engine.Flush()
	require.Equal(t, 0, engine.QueuedFrames())
}

func TestForwardCallerAudioSilenceResetsSpeechCounter(t *testing.T) {
	server, _ := startFakeAIServer(t, func(_ *websocket.Conn, _ []byte) {})
	clientConn := dialTestServer(t, server)
	defer clientConn.Close()

	tr := &fakeTransport{}
	engine := playout.NewEngine(tr, codec.ULaw{}, nil, playout.Config{
		TrimPolicy:     playout.TrimPolicyCapTrim,
		OverflowPolicy: playout.OverflowDrainPartial,
	})
	b := New(clientConn, engine, nil)

	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i+1] = 0x7F
	}
	silent := make([]byte, 320)

	require.NoError(t, b.ForwardCallerAudio(loud))
	require.NoError(t, b.ForwardCallerAudio(silent))
	require.Equal(t, 0, b.speechFrames)
}

func TestRMSIsZeroForSilenceAndPositiveForTone(t *testing.T) {
	silent := make([]byte, 320)
	require.Equal(t, 0.0, rms(silent))

	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i+1] = 0x7F
	}
	require.Greater(t, rms(loud), 0.0)
}
