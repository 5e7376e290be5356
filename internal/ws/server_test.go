package ws

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"

	"github.com/whisper/rendezvous/internal/protocol"
)

type hookLog struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	messages     []string
}

func (h *hookLog) connect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, id)
}

func (h *hookLog) disconnect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, id)
}

func (h *hookLog) disconnects() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.disconnected...)
}

func startServer(t *testing.T, cfg ServerConfig, setup func(s *Server)) (*Server, string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := NewMessageDispatcher()
	s := NewServer(cfg, d.Dispatch)
	if setup != nil {
		setup(s)
	}

	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, l.Addr().String()
}

func testConfig() ServerConfig {
	cfg := DefaultServerConfig()
	cfg.WorkerPoolSize = 8
	cfg.ReadTimeout = time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

type client struct {
	t    *testing.T
	conn net.Conn
	rw   io.ReadWriter
}

func dial(t *testing.T, addr string) *client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, br, _, err := ws.Dial(ctx, "ws://"+addr+"/ws")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return &client{t: t, conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{r, conn}}
}

func (c *client) send(raw string) {
	c.t.Helper()
	require.NoError(c.t, wsutil.WriteClientText(c.conn, []byte(raw)))
}

func (c *client) read() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(c.rw)
	require.NoError(c.t, err)

	var m map[string]any
	require.NoError(c.t, json.Unmarshal(data, &m))
	return m
}

func TestServer_SessionCreatedAfterConnectHook(t *testing.T) {
	r := require.New(t)
	hooks := &hookLog{}

	// Given a server with a connect hook
	_, addr := startServer(t, testConfig(), func(s *Server) {
		s.SetOnConnect(hooks.connect)
	})

	// When a client connects
	c := dial(t, addr)
	msg := c.read()

	// Then its first frame is session-created carrying the id the hook saw
	r.Equal(protocol.TypeSessionCreated, msg["type"])
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	r.Len(hooks.connected, 1)
	r.Equal(hooks.connected[0], msg["connectionId"])
}

func TestServer_PingAndMalformedFrames(t *testing.T) {
	r := require.New(t)
	_, addr := startServer(t, testConfig(), nil)

	c := dial(t, addr)
	c.read() // session-created

	c.send(`{"type":"ping"}`)
	r.Equal(protocol.TypePong, c.read()["type"])

	c.send(`not json`)
	msg := c.read()
	r.Equal(protocol.TypeError, msg["type"])
	r.Equal(CodeParseError, msg["code"])

	c.send(`{"type":"teleport"}`)
	msg = c.read()
	r.Equal(CodeUnsupportedType, msg["code"])
}

func TestServer_RoutesToRegisteredHandler(t *testing.T) {
	r := require.New(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	r.NoError(err)

	got := make(chan protocol.ClientMessage, 1)
	ids := make(chan string, 1)
	d := NewMessageDispatcher()
	d.Register(protocol.TypeChatMessage, func(conn *Connection, msg protocol.ClientMessage) {
		ids <- conn.ID
		got <- msg
	})

	s := NewServer(testConfig(), d.Dispatch)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	c := dial(t, l.Addr().String())
	created := c.read()

	c.send(`{"type":"chat-message","partnerId":"p1","message":"hi"}`)

	select {
	case msg := <-got:
		r.Equal(protocol.ChatMessageMsg{PartnerID: "p1", Message: "hi"}, msg)
		r.Equal(created["connectionId"], <-ids)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	// A registered type with a bad payload is answered with invalid_payload
	c.send(`{"type":"chat-message","partnerId":"p1"}`)
	r.Equal(CodeInvalidPayload, c.read()["code"])
}

func TestServer_DisconnectHookFiresOnce(t *testing.T) {
	r := require.New(t)
	hooks := &hookLog{}

	s, addr := startServer(t, testConfig(), func(s *Server) {
		s.SetOnConnect(hooks.connect)
		s.SetOnDisconnect(hooks.disconnect)
	})

	c := dial(t, addr)
	id := c.read()["connectionId"].(string)

	// When the client goes away
	r.NoError(c.conn.Close())

	// Then the hook fires for that connection
	r.Eventually(func() bool { return len(hooks.disconnects()) == 1 }, 2*time.Second, 10*time.Millisecond)
	r.Equal([]string{id}, hooks.disconnects())
	r.Zero(s.Connections().Count())

	// And a second removal is a no-op
	s.RemoveConnection(&Connection{ID: id, Conn: c.conn})
	r.Len(hooks.disconnects(), 1)
}

func TestServer_CloseFrameRemovesConnection(t *testing.T) {
	r := require.New(t)
	hooks := &hookLog{}

	s, addr := startServer(t, testConfig(), func(s *Server) {
		s.SetOnDisconnect(hooks.disconnect)
	})

	c := dial(t, addr)
	c.read()

	r.NoError(ws.WriteFrame(c.conn, ws.MaskFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))))

	r.Eventually(func() bool { return s.Connections().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	r.Len(hooks.disconnects(), 1)
}

func TestServer_HeartbeatEvictsSilentConnection(t *testing.T) {
	r := require.New(t)
	hooks := &hookLog{}

	cfg := testConfig()
	cfg.Heartbeat = HeartbeatConfig{Interval: 50 * time.Millisecond, Timeout: 50 * time.Millisecond}
	s, addr := startServer(t, cfg, func(s *Server) {
		s.SetOnDisconnect(hooks.disconnect)
	})

	// A client that never answers pings
	dial(t, addr)
	r.Eventually(func() bool { return s.Connections().Count() == 1 }, time.Second, 10*time.Millisecond)

	r.Eventually(func() bool { return len(hooks.disconnects()) == 1 }, 2*time.Second, 20*time.Millisecond)
	r.Zero(s.Connections().Count())
}

func TestServer_OriginCheck(t *testing.T) {
	r := require.New(t)

	cfg := testConfig()
	cfg.CheckOrigin = func(origin string) bool { return origin == "https://chat.example.com" }
	_, addr := startServer(t, cfg, nil)

	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Origin": []string{"https://evil.example.com"}})}
	_, _, _, err := dialer.Dial(context.Background(), "ws://"+addr+"/ws")
	r.Error(err)

	dialer = ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Origin": []string{"https://chat.example.com"}})}
	conn, _, _, err := dialer.Dial(context.Background(), "ws://"+addr+"/ws")
	r.NoError(err)
	_ = conn.Close()
}

func TestServer_MaxConnections(t *testing.T) {
	r := require.New(t)

	cfg := testConfig()
	cfg.MaxConnections = 1
	s, addr := startServer(t, cfg, nil)

	dial(t, addr)
	r.Eventually(func() bool { return s.Connections().Count() == 1 }, time.Second, 10*time.Millisecond)

	_, _, _, err := ws.Dial(context.Background(), "ws://"+addr+"/ws")
	r.Error(err)
}

func TestServer_Notify(t *testing.T) {
	r := require.New(t)
	s, addr := startServer(t, testConfig(), nil)

	c := dial(t, addr)
	id := c.read()["connectionId"].(string)

	s.Notify(id, protocol.MatchFoundMsg{
		RoomID:         "room-1",
		PartnerID:      "other",
		Initiator:      true,
		PartnerProfile: json.RawMessage(`{"name":"B"}`),
	})
	msg := c.read()
	r.Equal(protocol.TypeMatchFound, msg["type"])
	r.Equal("room-1", msg["roomId"])
	r.Equal(true, msg["initiator"])
	r.Equal(map[string]any{"name": "B"}, msg["partnerProfile"])

	// Unknown ids are dropped silently
	s.Notify("nobody", protocol.PartnerDisconnectedMsg{})
	r.Error(s.SendMessage("nobody", []byte(`{}`)))
}

func TestServer_Health(t *testing.T) {
	r := require.New(t)

	s := NewServer(testConfig(), nil)
	s.SetStats(func() any { return map[string]int{"rooms": 2} })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	r.Equal(http.StatusOK, rec.Code)
	var body struct {
		Status      string         `json:"status"`
		Connections int            `json:"connections"`
		Sessions    map[string]int `json:"sessions"`
	}
	r.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	r.Equal("ok", body.Status)
	r.Zero(body.Connections)
	r.Equal(2, body.Sessions["rooms"])
}

func TestDispatcher_Classify(t *testing.T) {
	d := NewMessageDispatcher()
	d.Register(protocol.TypeOffer, func(*Connection, protocol.ClientMessage) {})

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"should flag broken json", `{`, CodeParseError},
		{"should flag missing type", `{"sdp":{}}`, CodeParseError},
		{"should flag unknown type", `{"type":"warp"}`, CodeUnsupportedType},
		{"should flag known but unregistered type", `{"type":"answer","partnerId":"a","sdp":{}}`, ""},
		{"should flag invalid payload of registered type", `{"type":"offer","partnerId":"a"}`, CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgType, _, err := protocol.ParseClientMessage([]byte(tt.raw))
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			code, _ := d.classify(msgType, err)
			require.Equal(t, tt.code, code)
		})
	}
}
