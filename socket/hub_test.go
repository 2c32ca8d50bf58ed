package socket

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"deshhindi/internal/session/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTranslit looks words up in a small dictionary. A word with a
// gate blocks until the gate is closed.
type fakeTranslit struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

var dictionary = map[string][]string{
	"nam":     {"नम"},
	"namaste": {"नमस्ते", "नमस्कार"},
}

func (f *fakeTranslit) Transliterate(ctx context.Context, word string) []string {
	f.mu.Lock()
	gate := f.gates[word]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if c, ok := dictionary[word]; ok {
		return c
	}
	return []string{word}
}

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, p, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %s", p)
	var nerr net.Error
	if assert.ErrorAs(t, err, &nerr) {
		assert.True(t, nerr.Timeout())
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

func text(t *testing.T, msg WSMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(msg.Payload, &s))
	return s
}

type testEnv struct {
	hub   *Hub
	mock  sqlmock.Sqlmock
	wsURL string
	tr    *fakeTranslit
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tr := &fakeTranslit{gates: map[string]chan struct{}{}}
	hub := NewHub(repository.NewSessionRepository(db), tr)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The auth middleware is not under test here.
		ServeWs(hub, w, r, r.URL.Query().Get("user_id"))
	}))
	t.Cleanup(server.Close)

	return &testEnv{hub: hub, mock: mock, wsURL: "ws" + strings.TrimPrefix(server.URL, "http"), tr: tr}
}

func (e *testEnv) dial(t *testing.T, sessionID, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL+"/ws?sessionId="+sessionID+"&user_id="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubIntegration(t *testing.T) {
	env := newEnv(t)
	initialContent := "<div>नमस्ते</div>"

	// Every connection checks that the session belongs to the caller.
	for i := 0; i < 2; i++ {
		env.mock.ExpectQuery("SELECT content FROM typing_sessions WHERE owner_id = \\$1 AND id = \\$2").
			WithArgs("user1", "s1").
			WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow(initialContent))
	}

	// First tab receives the full session, then presence.
	conn1 := env.dial(t, "s1", "user1")
	initialMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, initialMsg.Type)
	assert.Equal(t, "s1", initialMsg.SessionID)
	assert.Equal(t, initialContent, text(t, initialMsg))
	assert.Equal(t, PresenceUpdateType, readMessage(t, conn1).Type)

	// Second tab of the same owner.
	conn2 := env.dial(t, "s1", "user1")
	assert.Equal(t, UpdateType, readMessage(t, conn2).Type)
	assert.Equal(t, PresenceUpdateType, readMessage(t, conn2).Type)

	presenceUpdateMsg := readMessage(t, conn1)
	assert.Equal(t, PresenceUpdateType, presenceUpdateMsg.Type)
	var statuses []UserStatus
	require.NoError(t, json.Unmarshal(presenceUpdateMsg.Payload, &statuses))
	require.Len(t, statuses, 2, "Should be two tabs in the room")
	assert.NotEqual(t, statuses[0].ClientID, statuses[1].ClientID)

	// An update reaches the other tab, not the sender.
	updated := "<div>नमस्ते दुनिया</div>"
	send(t, conn2, UpdateType, updated)
	broadcastMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, broadcastMsg.Type)
	assert.Equal(t, "user1", broadcastMsg.UserID)
	assert.Equal(t, updated, text(t, broadcastMsg))
	expectSilence(t, conn2)

	live, ok := env.hub.Content("user1", "s1")
	assert.True(t, ok)
	assert.Equal(t, updated, live)

	// The autosave stores the dirty session once.
	env.mock.ExpectExec("UPDATE typing_sessions SET content").
		WithArgs(updated, "user1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.hub.Flush()
	env.hub.Flush()

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestServeWsRejectsForeignSession(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectQuery("SELECT content FROM typing_sessions").
		WithArgs("intruder", "s1").
		WillReturnError(sql.ErrNoRows)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL+"/ws?sessionId=s1&user_id=intruder", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(env.wsURL+"/ws?user_id=intruder", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func openRoom(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	env.mock.ExpectQuery("SELECT content FROM typing_sessions").
		WithArgs("user1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("<div><br></div>"))
	conn := env.dial(t, "s1", "user1")
	readMessage(t, conn) // UPDATE
	readMessage(t, conn) // PRESENCE_UPDATE
	return conn
}

func readSuggestions(t *testing.T, conn *websocket.Conn) SuggestionsPayload {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, SuggestionsType, msg.Type)
	var p SuggestionsPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	return p
}

func TestSuggestAndAccept(t *testing.T) {
	env := newEnv(t)
	conn := openRoom(t, env)

	send(t, conn, SuggestType, SuggestPayload{Seq: 7, Text: "namaste", Cursor: 7, Mode: "HINDI"})
	p := readSuggestions(t, conn)
	assert.Equal(t, uint64(7), p.Seq)
	assert.Equal(t, "namaste", p.Word)
	assert.Equal(t, []string{"नमस्ते", "नमस्कार", "namaste"}, p.Candidates)
	assert.True(t, p.Visible)

	send(t, conn, SuggestKeyType, KeyPayload{Seq: 7, Key: "ArrowDown"})
	p = readSuggestions(t, conn)
	assert.Equal(t, 1, p.Selected)

	send(t, conn, SuggestKeyType, KeyPayload{Seq: 7, Index: 2, Hover: true})
	p = readSuggestions(t, conn)
	assert.Equal(t, 2, p.Selected)
	assert.True(t, p.Visible)

	send(t, conn, SuggestKeyType, KeyPayload{Seq: 7, Key: "ArrowUp"})
	p = readSuggestions(t, conn)
	assert.Equal(t, 1, p.Selected)

	send(t, conn, SuggestKeyType, KeyPayload{Seq: 7, Key: "Enter"})
	msg := readMessage(t, conn)
	require.Equal(t, AcceptType, msg.Type)
	var accept AcceptPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &accept))
	assert.Equal(t, "नमस्कार", accept.Text)
	assert.Equal(t, "namaste", accept.Word)

	// English mode hides the popup without a lookup.
	send(t, conn, SuggestType, SuggestPayload{Seq: 8, Text: "namaste", Cursor: 7, Mode: "ENGLISH"})
	p = readSuggestions(t, conn)
	assert.Equal(t, uint64(8), p.Seq)
	assert.False(t, p.Visible)
	assert.Empty(t, p.Candidates)
}

func TestSuggestDropsStaleResponses(t *testing.T) {
	env := newEnv(t)
	conn := openRoom(t, env)

	gate := make(chan struct{})
	env.tr.mu.Lock()
	env.tr.gates["nam"] = gate
	env.tr.mu.Unlock()

	send(t, conn, SuggestType, SuggestPayload{Seq: 1, Text: "nam", Cursor: 3})
	send(t, conn, SuggestType, SuggestPayload{Seq: 2, Text: "namaste", Cursor: 7})

	p := readSuggestions(t, conn)
	assert.Equal(t, uint64(2), p.Seq)
	assert.Equal(t, "namaste", p.Word)

	// The slow answer for the earlier keystroke never shows up.
	close(gate)
	expectSilence(t, conn)
}

func TestDismissCancelsPendingLookup(t *testing.T) {
	env := newEnv(t)
	conn := openRoom(t, env)

	gate := make(chan struct{})
	env.tr.mu.Lock()
	env.tr.gates["namaste"] = gate
	env.tr.mu.Unlock()

	send(t, conn, SuggestType, SuggestPayload{Seq: 1, Text: "namaste", Cursor: 7})
	send(t, conn, DismissType, struct{}{})
	time.Sleep(50 * time.Millisecond)
	close(gate)
	expectSilence(t, conn)
}

func TestPublishUpdateAndRemoveSession(t *testing.T) {
	env := newEnv(t)
	conn := openRoom(t, env)

	env.hub.PublishUpdate("user1", "s1", "<div>सुधारा गया</div>")
	msg := readMessage(t, conn)
	assert.Equal(t, UpdateType, msg.Type)
	assert.Equal(t, "<div>सुधारा गया</div>", text(t, msg))

	// Stored already, so nothing to autosave.
	env.hub.Flush()

	// Other owners' rooms are untouched.
	env.hub.PublishUpdate("user2", "s1", "x")
	expectSilence(t, conn)

	env.hub.RemoveSession("user1", "s1")
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool {
		_, ok := env.hub.Content("user1", "s1")
		return !ok
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestAllowOrigins(t *testing.T) {
	defer AllowOrigins(nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")

	AllowOrigins([]string{"https://editor.example"})
	assert.False(t, upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://editor.example")
	assert.True(t, upgrader.CheckOrigin(req))

	AllowOrigins([]string{"*"})
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, upgrader.CheckOrigin(req))
}

func TestSaveWorkerFlushesOnStop(t *testing.T) {
	env := newEnv(t)
	conn := openRoom(t, env)

	send(t, conn, UpdateType, "<div>अंतिम</div>")
	assert.Eventually(t, func() bool {
		live, _ := env.hub.Content("user1", "s1")
		return live == "<div>अंतिम</div>"
	}, time.Second, 10*time.Millisecond)

	env.mock.ExpectExec("UPDATE typing_sessions SET content").
		WithArgs("<div>अंतिम</div>", "user1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		env.hub.SaveWorker(0, done)
		close(stopped)
	}()
	close(done)
	<-stopped
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

// gatedStore blocks every save until release is closed.
type gatedStore struct {
	mu      sync.Mutex
	saved   []string
	started chan string
	release chan struct{}
}

func (s *gatedStore) LoadContent(ownerID, id string) (string, error) { return "", nil }

func (s *gatedStore) SaveContent(ownerID, id, content string) error {
	s.started <- content
	<-s.release
	s.mu.Lock()
	s.saved = append(s.saved, content)
	s.mu.Unlock()
	return nil
}

func TestFlushKeepsRestWriteMadeDuringSave(t *testing.T) {
	store := &gatedStore{started: make(chan string, 4), release: make(chan struct{})}
	hub := NewHub(store, &fakeTranslit{})
	go hub.Run()

	key := RoomKey{OwnerID: "user1", SessionID: "s1"}
	hub.mu.Lock()
	hub.Rooms[key] = map[*Client]bool{}
	hub.SessionCache[key] = "<div>old</div>"
	hub.DirtySessions[key] = true
	hub.mu.Unlock()

	flushed := make(chan struct{})
	go func() {
		hub.Flush()
		close(flushed)
	}()
	assert.Equal(t, "<div>old</div>", <-store.started)

	// A REST write lands while the autosave of the old markup is in flight.
	hub.PublishUpdate("user1", "s1", "<div>new</div>")
	close(store.release)
	<-flushed

	hub.mu.Lock()
	dirty := hub.DirtySessions[key]
	hub.mu.Unlock()
	assert.True(t, dirty, "the newer markup must still be pending")

	hub.Flush()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"<div>old</div>", "<div>new</div>"}, store.saved)
}
