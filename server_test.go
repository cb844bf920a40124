package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestStatusServer() (*StatusServer, *SharedStatus) {
	status := NewSharedStatus()
	return NewStatusServer(status, 20*time.Millisecond), status
}

func TestStatusServer_Status(t *testing.T) {
	srv, status := newTestStatusServer()
	status.UpdateStats(3, 1, 40)
	status.Report(ActivityWaitingForFish, "Waiting for fish to bite...")

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Stats.Catches != 3 || snap.Stats.Misses != 1 || snap.Stats.XP != 40 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}
	if snap.Stats.Rate != "75.00" {
		t.Errorf("expected rate 75.00, got %s", snap.Stats.Rate)
	}
	if snap.ActivityTag != ActivityWaitingForFish.String() {
		t.Errorf("unexpected activity tag %s", snap.ActivityTag)
	}
	if snap.Detail != "Waiting for fish to bite..." {
		t.Errorf("unexpected detail %q", snap.Detail)
	}
}

func TestStatusServer_StartStopOnlyFlipFlag(t *testing.T) {
	srv, status := newTestStatusServer()
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/start", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", w.Code)
	}
	if !status.IsRunning() {
		t.Error("expected run flag set")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/stop", nil))
	if status.IsRunning() {
		t.Error("expected run flag cleared")
	}
	if status.Stats() != (Stats{}) {
		t.Errorf("stop must not touch stats: %+v", status.Stats())
	}
}

func TestStatusServer_StartWrongMethod(t *testing.T) {
	srv, status := newTestStatusServer()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/start", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
	if status.IsRunning() {
		t.Error("GET must not start the bot")
	}
}

func TestStatusServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestStatusServer()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/start", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestStatusServer_Detections(t *testing.T) {
	srv, status := newTestStatusServer()
	status.SetWindow(&Region{Left: 10, Top: 20, Width: 800, Height: 600})
	status.AddDetection(DetectionBox{X: 1, Y: 2, Width: 3, Height: 4, Label: CueContinue, Confidence: 0.9, Color: "#0080FF"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/detections", nil))

	var det Detections
	if err := json.NewDecoder(w.Body).Decode(&det); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(det.Boxes) != 1 || det.Boxes[0].Label != CueContinue {
		t.Errorf("unexpected boxes %+v", det.Boxes)
	}
	if det.Window == nil || det.Window.Width != 800 {
		t.Errorf("unexpected window %+v", det.Window)
	}
}

func TestStatusServer_WebSocketStream(t *testing.T) {
	srv, status := newTestStatusServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Publish(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first Snapshot
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.ActivityTag != ActivityWaitingForStart.String() {
		t.Errorf("unexpected initial activity %s", first.ActivityTag)
	}

	status.Report(ActivityCastingLine, "Casting fishing line...")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var snap Snapshot
		conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read: %v", err)
		}
		if snap.Detail == "Casting fishing line..." {
			return
		}
	}
	t.Error("published snapshot never reflected the new detail")
}

func TestStatusServer_BroadcastDropsOnFullBuffer(t *testing.T) {
	srv, _ := newTestStatusServer()
	c := &wsClient{send: make(chan []byte, 1), server: srv}
	srv.clients[c] = true

	srv.broadcast([]byte("a"))
	srv.broadcast([]byte("b"))

	if got := string(<-c.send); got != "a" {
		t.Errorf("expected first frame kept, got %q", got)
	}
	if srv.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", srv.ClientCount())
	}
}
