package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingHandler captures sessions and frames.
type recordingHandler struct {
	mu       sync.Mutex
	sessions []Session
	frames   []Frame
	onConn   func(ctx context.Context, s Session) error

	connected chan Session
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{connected: make(chan Session, 16)}
}

func (h *recordingHandler) OnConnected(ctx context.Context, s Session) error {
	h.mu.Lock()
	h.sessions = append(h.sessions, s)
	h.mu.Unlock()

	var err error
	if h.onConn != nil {
		err = h.onConn(ctx, s)
	}
	h.connected <- s
	return err
}

func (h *recordingHandler) OnFrame(f Frame) {
	h.mu.Lock()
	h.frames = append(h.frames, f)
	h.mu.Unlock()
}

func (h *recordingHandler) frameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func (h *recordingHandler) waitSession(t *testing.T) Session {
	t.Helper()
	select {
	case s := <-h.connected:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for session")
		return Session{}
	}
}

func testManagerConfig(url string) ManagerConfig {
	return ManagerConfig{
		Client:         testClientConfig(url),
		ReconnectDelay: 20 * time.Millisecond,
	}
}

func runManager(t *testing.T, m *Manager, h Handler) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, h) }()

	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v, want nil", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func TestManager_DeliversFramesInOrder(t *testing.T) {
	frames := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	h := newRecordingHandler()
	m := NewManager(testManagerConfig(wsURL(server)), nil, nil)
	stop := runManager(t, m, h)

	sess := h.waitSession(t)
	if sess.Reconnect {
		t.Error("first session should not be a reconnect")
	}

	deadline := time.Now().Add(time.Second)
	for h.frameCount() < len(frames) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.frames) != len(frames) {
		t.Fatalf("got %d frames, want %d", len(h.frames), len(frames))
	}
	for i, want := range frames {
		if string(h.frames[i].Data) != want {
			t.Errorf("frame %d = %s, want %s", i, h.frames[i].Data, want)
		}
		if h.frames[i].SessionID != sess.ID {
			t.Errorf("frame %d session = %v, want %v", i, h.frames[i].SessionID, sess.ID)
		}
	}
}

func TestManager_ReconnectsAfterServerClose(t *testing.T) {
	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			// Drop the first connection immediately.
			return
		}
		readUntilClosed(conn)
	})
	defer server.Close()

	h := newRecordingHandler()
	m := NewManager(testManagerConfig(wsURL(server)), nil, nil)
	stop := runManager(t, m, h)
	defer stop()

	first := h.waitSession(t)
	second := h.waitSession(t)

	if first.Reconnect {
		t.Error("first session Reconnect = true")
	}
	if !second.Reconnect {
		t.Error("second session Reconnect = false")
	}
	if first.ID == second.ID {
		t.Error("sessions share an ID")
	}

	st := m.Status()
	if st.Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", st.Reconnects)
	}
	if st.State != "connected" {
		t.Errorf("State = %q, want connected", st.State)
	}
	if st.SessionID != second.ID.String() {
		t.Errorf("SessionID = %q, want %q", st.SessionID, second.ID)
	}
}

func TestManager_SendDuringOnConnected(t *testing.T) {
	received := make(chan string, 4)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
		}
	})
	defer server.Close()

	m := NewManager(testManagerConfig(wsURL(server)), nil, nil)
	h := newRecordingHandler()
	h.onConn = func(ctx context.Context, s Session) error {
		return m.Send([]byte(`root`))
	}
	stop := runManager(t, m, h)
	defer stop()

	h.waitSession(t)
	select {
	case got := <-received:
		if got != "root" {
			t.Errorf("received %q, want root", got)
		}
	case <-time.After(time.Second):
		t.Fatal("command sent from OnConnected never arrived")
	}
}

func TestManager_SendNotConnected(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), nil, nil)
	if err := m.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
	if st := m.Status(); st.State != "disconnected" {
		t.Errorf("State = %q, want disconnected", st.State)
	}
}

func TestManager_OnConnectedErrorReconnects(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	m := NewManager(testManagerConfig(wsURL(server)), nil, nil)
	h := newRecordingHandler()
	var calls atomic.Int32
	h.onConn = func(ctx context.Context, s Session) error {
		if calls.Add(1) == 1 {
			return errors.New("setup failed")
		}
		return nil
	}
	stop := runManager(t, m, h)
	defer stop()

	h.waitSession(t)
	second := h.waitSession(t)
	if !second.Reconnect {
		t.Error("session after failed setup should be a reconnect")
	}
}

func TestManager_CancelStops(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	h := newRecordingHandler()
	m := NewManager(testManagerConfig(wsURL(server)), nil, nil)
	stop := runManager(t, m, h)

	h.waitSession(t)
	stop()

	if got := m.State(); got != StateDisconnected {
		t.Errorf("State = %v, want disconnected", got)
	}
	if err := m.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after stop = %v, want ErrNotConnected", err)
	}
}

// fakeClient is a scripted Client.
type fakeClient struct {
	connectErr error
	sendErr    error

	messages chan TimestampedMessage
	errors   chan error
	closed   atomic.Bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan TimestampedMessage, 10),
		errors:   make(chan error, 1),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error   { return f.connectErr }
func (f *fakeClient) Close() error                        { f.closed.Store(true); return nil }
func (f *fakeClient) Send(data []byte) error              { return f.sendErr }
func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }
func (f *fakeClient) Errors() <-chan error                { return f.errors }
func (f *fakeClient) IsConnected() bool                   { return !f.closed.Load() }

func TestManager_RetriesConnectForever(t *testing.T) {
	var attempts atomic.Int32
	m := NewManager(testManagerConfig("ws://unused"), nil, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client {
		c := newFakeClient()
		if attempts.Add(1) <= 3 {
			c.connectErr = errors.New("connection refused")
		}
		return c
	}

	h := newRecordingHandler()
	stop := runManager(t, m, h)
	defer stop()

	sess := h.waitSession(t)
	if got := attempts.Load(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
	if sess.Reconnect {
		t.Error("first established session should not be a reconnect")
	}
	if st := m.Status(); st.LastError == "" {
		t.Error("LastError should record the connect failure")
	}
}

func TestManager_SendFailureEndsSession(t *testing.T) {
	var clients []*fakeClient
	var mu sync.Mutex

	m := NewManager(testManagerConfig("ws://unused"), nil, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client {
		c := newFakeClient()
		mu.Lock()
		if len(clients) == 0 {
			c.sendErr = errors.New("broken pipe")
		}
		clients = append(clients, c)
		mu.Unlock()
		return c
	}

	h := newRecordingHandler()
	stop := runManager(t, m, h)
	defer stop()

	h.waitSession(t)
	if err := m.Send([]byte("x")); err == nil {
		t.Fatal("expected send error")
	}

	second := h.waitSession(t)
	if !second.Reconnect {
		t.Error("session after send failure should be a reconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	if !clients[0].closed.Load() {
		t.Error("broken client was not closed")
	}
}

func TestManager_DrainsFramesBeforeError(t *testing.T) {
	c := newFakeClient()
	m := NewManager(testManagerConfig("ws://unused"), nil, nil)
	var n atomic.Int32
	m.newClient = func(ClientConfig, *slog.Logger) Client {
		if n.Add(1) == 1 {
			return c
		}
		return newFakeClient()
	}

	h := newRecordingHandler()
	h.onConn = func(ctx context.Context, s Session) error {
		if !s.Reconnect {
			c.messages <- TimestampedMessage{Data: []byte("a"), ReceivedAt: time.Now()}
			c.messages <- TimestampedMessage{Data: []byte("b"), ReceivedAt: time.Now()}
			c.errors <- errors.New("eof")
		}
		return nil
	}
	stop := runManager(t, m, h)
	defer stop()

	h.waitSession(t)
	h.waitSession(t)

	if got := h.frameCount(); got != 2 {
		t.Errorf("frames = %d, want 2", got)
	}
}

func TestManager_RunTwice(t *testing.T) {
	m := NewManager(testManagerConfig("ws://unused"), nil, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client { return newFakeClient() }

	h := newRecordingHandler()
	stop := runManager(t, m, h)
	defer stop()
	h.waitSession(t)

	if err := m.Run(context.Background(), h); err == nil {
		t.Error("second Run should fail while the first is active")
	}
}
