package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"homeservices-platform/internal/realtime"
)

func newTestServer(t *testing.T) (*httptest.Server, *realtime.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := realtime.NewService(nil, realtime.NewMemoryMessageStore(), log)

	r := gin.New()
	NewHandler(svc, log).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := c.WriteJSON(frame{Event: event, Data: data}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readFrame reads until the named frame arrives or the deadline hits.
func readFrame(t *testing.T, c *websocket.Conn, event string) frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = c.SetReadDeadline(deadline)
		var f frame
		if err := c.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		if f.Event == event {
			return f
		}
	}
}

func TestAuthenticateOverWebsocket(t *testing.T) {
	srv, svc := newTestServer(t)

	c := dial(t, srv)
	send(t, c, realtime.EventAuthenticate,
		realtime.AuthenticatePayload{UserID: "user-1", Role: "customer"})

	f := readFrame(t, c, realtime.EventAuthenticated)
	var ack map[string]any
	if err := json.Unmarshal(f.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack["userId"] != "user-1" {
		t.Fatalf("ack = %v", ack)
	}

	waitOnline(t, svc, "user-1")
}

func TestMessageFlowsBetweenClients(t *testing.T) {
	srv, svc := newTestServer(t)

	sender := dial(t, srv)
	recipient := dial(t, srv)

	send(t, sender, realtime.EventAuthenticate,
		realtime.AuthenticatePayload{UserID: "user-1", Role: "customer"})
	readFrame(t, sender, realtime.EventAuthenticated)
	send(t, recipient, realtime.EventAuthenticate,
		realtime.AuthenticatePayload{UserID: "user-2", Role: "provider"})
	readFrame(t, recipient, realtime.EventAuthenticated)
	waitOnline(t, svc, "user-2")

	send(t, sender, realtime.EventSendMessage,
		realtime.SendMessagePayload{ToUserID: "user-2", Body: "hello"})

	f := readFrame(t, recipient, realtime.EventMessageReceived)
	var m realtime.Message
	if err := json.Unmarshal(f.Data, &m); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if m.FromUserID != "user-1" || m.Body != "hello" {
		t.Fatalf("unexpected message: %+v", m)
	}
	readFrame(t, sender, realtime.EventMessageSent)
}

func TestUnauthenticatedEventGetsErrorFrame(t *testing.T) {
	srv, _ := newTestServer(t)

	c := dial(t, srv)
	send(t, c, realtime.EventSendMessage,
		realtime.SendMessagePayload{ToUserID: "user-2", Body: "hi"})

	f := readFrame(t, c, realtime.EventError)
	var body map[string]any
	if err := json.Unmarshal(f.Data, &body); err != nil {
		t.Fatalf("unmarshal error frame: %v", err)
	}
	if body["message"] != "not authenticated" {
		t.Fatalf("error frame = %v", body)
	}
}

func TestDisconnectFrameClosesSession(t *testing.T) {
	srv, svc := newTestServer(t)

	c := dial(t, srv)
	send(t, c, realtime.EventAuthenticate,
		realtime.AuthenticatePayload{UserID: "user-1", Role: "customer"})
	readFrame(t, c, realtime.EventAuthenticated)
	waitOnline(t, svc, "user-1")

	send(t, c, realtime.EventDisconnect, nil)

	waitOffline(t, svc, "user-1")
}

func TestDroppedSocketUnregistersUser(t *testing.T) {
	srv, svc := newTestServer(t)

	c := dial(t, srv)
	send(t, c, realtime.EventAuthenticate,
		realtime.AuthenticatePayload{UserID: "user-1", Role: "customer"})
	readFrame(t, c, realtime.EventAuthenticated)
	waitOnline(t, svc, "user-1")

	c.Close()

	waitOffline(t, svc, "user-1")
}

func waitOnline(t *testing.T, svc *realtime.Service, userID string) {
	t.Helper()
	waitFor(t, func() bool { return svc.Registry().IsOnline(userID) }, userID+" never came online")
}

func waitOffline(t *testing.T, svc *realtime.Service, userID string) {
	t.Helper()
	waitFor(t, func() bool { return !svc.Registry().IsOnline(userID) }, userID+" never went offline")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
