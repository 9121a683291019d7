package shell

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/khaledaj/attendance-gateway/internal/notify"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.Accept))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, _, err := websocket.Dial(ctx, server.URL, nil)
	cancel()
	if err != nil {
		server.Close()
		t.Fatalf("dial hub: %v", err)
	}
	return conn, func() {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
		server.Close()
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ActiveClients() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, hub.ActiveClients())
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestHubDeliversNotificationFrames(t *testing.T) {
	hub := NewHub(nil)
	conn, done := dialHub(t, hub)
	defer done()
	waitForClients(t, hub, 1)

	req := notify.Request{
		Tag:   "attendance-reminder",
		Title: "Attendance Tracker",
		Body:  "Checked in at 09:02",
	}
	if err := hub.Show(context.Background(), req); err != nil {
		t.Fatalf("show: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Kind != FrameNotification {
		t.Fatalf("unexpected kind: %q", frame.Kind)
	}
	if frame.Notification == nil || frame.Notification.Body != "Checked in at 09:02" {
		t.Fatalf("unexpected notification: %+v", frame.Notification)
	}

	if err := hub.Close(context.Background(), "attendance-reminder"); err != nil {
		t.Fatalf("close: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Kind != FrameNotificationClose || frame.Tag != "attendance-reminder" {
		t.Fatalf("unexpected close frame: %+v", frame)
	}

	if err := hub.OpenWindow(context.Background(), "/?action=checkin"); err != nil {
		t.Fatalf("open window: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Kind != FrameNavigate || frame.Target != "/?action=checkin" {
		t.Fatalf("unexpected navigate frame: %+v", frame)
	}

	if err := hub.Claim(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Kind != FrameClaim {
		t.Fatalf("unexpected claim frame: %+v", frame)
	}
}

func TestHubBroadcastFailsWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Show(context.Background(), notify.Request{Body: "hello"}); err == nil {
		t.Fatalf("expected error with no shell clients")
	}
	if hub.ActiveClients() != 0 {
		t.Fatalf("unexpected client count: %d", hub.ActiveClients())
	}
}

func TestHubRoutesControlMessages(t *testing.T) {
	received := make(chan string, 1)
	hub := NewHub(nil)
	hub.OnControlMessage = func(_ context.Context, messageType string) {
		received <- messageType
	}

	conn, done := dialHub(t, hub)
	defer done()
	waitForClients(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type": "SKIP_WAITING"}`)); err != nil {
		t.Fatalf("write control: %v", err)
	}

	select {
	case got := <-received:
		if got != "SKIP_WAITING" {
			t.Fatalf("unexpected message type: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("control message not routed")
	}
}

func TestHubRoutesClickReports(t *testing.T) {
	type click struct{ tag, action string }
	received := make(chan click, 1)
	hub := NewHub(nil)
	hub.OnNotificationClick = func(_ context.Context, tag, action string) {
		received <- click{tag: tag, action: action}
	}

	conn, done := dialHub(t, hub)
	defer done()
	waitForClients(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload := `{"kind": "notification-click", "tag": "attendance-reminder", "action": "check-in"}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
		t.Fatalf("write click: %v", err)
	}

	select {
	case got := <-received:
		if got.tag != "attendance-reminder" || got.action != "check-in" {
			t.Fatalf("unexpected click: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("click report not routed")
	}
}

func TestHubTracksDisconnects(t *testing.T) {
	hub := NewHub(nil)
	conn, done := dialHub(t, hub)
	waitForClients(t, hub, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitForClients(t, hub, 0)
	done()
}
