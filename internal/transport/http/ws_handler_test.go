package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/Legit-prep/live-quiz-socket/internal/infra/memory"
)

func TestWebSocketClassroomFlow(t *testing.T) {
	server := newTestServer(t)

	instructor := dial(t, server)
	send(t, instructor, domain.EventCreateSession, "111111")
	barrier(t, instructor)

	alice := dial(t, server)
	send(t, alice, domain.EventJoinSession, map[string]any{"pin": "111111", "name": "Alice"})
	expectCount(t, alice, 1)
	expectCount(t, instructor, 1)

	bob := dial(t, server)
	send(t, bob, domain.EventJoinSession, map[string]any{"pin": 111111, "name": " Bob "})
	for _, conn := range []*websocket.Conn{instructor, alice, bob} {
		expectCount(t, conn, 2)
	}

	send(t, instructor, domain.EventStartTimer, map[string]any{
		"pin":           "111111",
		"time":          30,
		"correctOption": "A",
		"prompt":        "2 + 2 = ?",
	})
	for _, conn := range []*websocket.Conn{instructor, alice, bob} {
		var q map[string]any
		expectEvent(t, conn, domain.EventQuestionStarted, &q)
		if q["time"] != float64(30) || q["prompt"] != "2 + 2 = ?" {
			t.Fatalf("unexpected question payload: %v", q)
		}
		if _, ok := q["pin"]; ok {
			t.Fatalf("routing pin must not be relayed: %v", q)
		}
	}

	send(t, alice, domain.EventSubmitAnswer, map[string]any{"pin": "111111", "name": "Alice", "answer": "A"})
	expectAnswer(t, instructor, "A")
	send(t, bob, domain.EventSubmitAnswer, map[string]any{"pin": "111111", "name": "Bob", "answer": "B"})
	expectAnswer(t, instructor, "B")

	send(t, instructor, domain.EventTimeUp, "111111")

	var result domain.QuestionResult
	expectEvent(t, alice, domain.EventReceiveAnswer, nil)
	expectEvent(t, alice, domain.EventReceiveAnswer, nil)
	expectEvent(t, alice, domain.EventQuestionResult, &result)
	if result != (domain.QuestionResult{IsCorrect: true, NewScore: 10, CorrectOption: "A"}) {
		t.Fatalf("unexpected alice result: %+v", result)
	}
	expectEvent(t, bob, domain.EventReceiveAnswer, nil)
	expectEvent(t, bob, domain.EventReceiveAnswer, nil)
	expectEvent(t, bob, domain.EventQuestionResult, &result)
	if result != (domain.QuestionResult{IsCorrect: false, NewScore: 0, CorrectOption: "A"}) {
		t.Fatalf("unexpected bob result: %+v", result)
	}

	want := []domain.LeaderboardEntry{{Name: "Alice", Score: 10}, {Name: "Bob", Score: 0}}
	for _, conn := range []*websocket.Conn{alice, bob, instructor} {
		var lb []domain.LeaderboardEntry
		expectEvent(t, conn, domain.EventLeaderboardUpdate, &lb)
		if len(lb) != 2 || lb[0] != want[0] || lb[1] != want[1] {
			t.Fatalf("unexpected leaderboard: %+v", lb)
		}
	}

	send(t, instructor, domain.EventRequestFinalData, map[string]any{"pin": "111111"})
	var final []domain.LeaderboardEntry
	expectEvent(t, instructor, domain.EventFinalDataSent, &final)
	if len(final) != 2 || final[0] != want[0] {
		t.Fatalf("unexpected final data: %+v", final)
	}
	// Participants never see the final snapshot.
	barrier(t, alice)
	barrier(t, instructor)

	resp, err := http.Get(server.URL + "/reports/111111")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var report domain.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Pin != "111111" || len(report.Entries) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectEvent(t, conn, domain.EventError, nil)

	send(t, conn, domain.EventStartTimer, map[string]any{"pin": "111111", "time": 0})
	expectEvent(t, conn, domain.EventError, nil)

	send(t, conn, domain.EventJoinSession, map[string]any{"pin": "111111"})
	expectEvent(t, conn, domain.EventError, nil)

	// The connection survives and keeps serving events.
	send(t, conn, domain.EventJoinSession, map[string]any{"pin": "111111", "name": "Alice"})
	expectCount(t, conn, 1)
}

func TestWebSocketIgnoresUnknownSession(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	send(t, conn, domain.EventSubmitAnswer, map[string]any{"pin": "404404", "name": "Alice", "answer": "A"})
	send(t, conn, domain.EventTimeUp, "404404")
	send(t, conn, domain.EventRequestFinalData, "404404")
	// Ignored events produce no reply, so the barrier answer comes first.
	barrier(t, conn)
}

func TestWebSocketOriginCheck(t *testing.T) {
	hub := NewHub()
	store := memory.NewSessionStore(clockwork.NewRealClock())
	service := app.NewQuizService(store, nil, hub, app.DefaultOptions())
	server := httptest.NewServer(NewRouter(service, hub, []string{"https://classroom.example"}))
	t.Cleanup(server.Close)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(u, header); err == nil {
		t.Fatalf("expected foreign origin to be refused")
	}
	header.Set("Origin", "https://classroom.example")
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial allowed origin: %v", err)
	}
	conn.Close()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := NewHub()
	store := memory.NewSessionStore(clockwork.NewRealClock())
	service := app.NewQuizService(store, memory.NewReportStore(), hub, app.DefaultOptions())
	server := httptest.NewServer(NewRouter(service, hub, nil))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// barrier sends an unsupported event and expects its error reply next.
// Events on one connection are handled in order, so everything sent before
// has been processed once it returns.
func barrier(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, "barrier", nil)
	var payload errorPayload
	expectEvent(t, conn, domain.EventError, &payload)
	if payload.Message != errUnsupportedEvent.Error() {
		t.Fatalf("expected barrier reply, got %q", payload.Message)
	}
}

func expectCount(t *testing.T, conn *websocket.Conn, want int) {
	t.Helper()
	var got int
	expectEvent(t, conn, domain.EventUpdateCount, &got)
	if got != want {
		t.Fatalf("expected headcount %d, got %d", want, got)
	}
}

func expectAnswer(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	var got string
	expectEvent(t, conn, domain.EventReceiveAnswer, &got)
	if got != want {
		t.Fatalf("expected answer %q, got %q", want, got)
	}
}

// expectEvent reads the next frame and fails unless it is the named event.
// When into is non-nil the data field is decoded into it.
func expectEvent(t *testing.T, conn *websocket.Conn, event string, into any) {
	t.Helper()
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read %s: %v", event, err)
	}
	if msg.Event != event {
		t.Fatalf("expected %s, got %s (%s)", event, msg.Event, msg.Data)
	}
	if into != nil {
		if err := json.Unmarshal(msg.Data, into); err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
	}
}
