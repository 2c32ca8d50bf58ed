package socket

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"deshhindi/internal/editor"
	"deshhindi/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

const (
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	// Updates carry whole documents, inline images included.
	maxMessageSize = 8 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AllowOrigins limits which pages may open a socket. An empty list or "*"
// allows every origin. It is meant to be called once at startup.
func AllowOrigins(origins []string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			upgrader.CheckOrigin = func(r *http.Request) bool { return true }
			return
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
		return
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	ID     string
	Room   RoomKey
	UserID string
	Send   chan []byte

	loaded string
	popup  *editor.Popup
	ctx    context.Context
	cancel context.CancelFunc
}

type SuggestPayload struct {
	Seq    uint64      `json:"seq"`
	Text   string      `json:"text"`
	Cursor int         `json:"cursor"`
	Mode   editor.Mode `json:"mode"`
}

// SuggestionsPayload echoes the tab's own sequence number so it can tell
// which request the list answers.
type SuggestionsPayload struct {
	Seq        uint64   `json:"seq"`
	Word       string   `json:"word"`
	Candidates []string `json:"candidates"`
	Selected   int      `json:"selected"`
	Visible    bool     `json:"visible"`
}

// KeyPayload is a popup key, or with an empty Key a click on row Index.
// Hover only moves the selection to Index.
type KeyPayload struct {
	Seq   uint64 `json:"seq"`
	Key   string `json:"key"`
	Index int    `json:"index"`
	Hover bool   `json:"hover"`
}

type AcceptPayload struct {
	Seq  uint64 `json:"seq"`
	Word string `json:"word"`
	Text string `json:"text"`
}

// ServeWs opens a live editing connection to one of the caller's sessions.
// Sessions of other owners look the same as missing ones.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId parameter", http.StatusBadRequest)
		return
	}

	content, err := hub.store.LoadContent(userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Warnf("Connection rejected: session %s not found for %s", sessionID, userID)
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	mode, err := editor.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		mode = editor.ModeHindi
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Hub:    hub,
		Conn:   conn,
		ID:     xid.New().String(),
		Room:   RoomKey{OwnerID: userID, SessionID: sessionID},
		UserID: userID,
		Send:   make(chan []byte, 256),
		loaded: content,
		popup:  editor.NewPopup(mode),
		ctx:    ctx,
		cancel: cancel,
	}

	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative fields.
		msg.SessionID = c.Room.SessionID
		msg.UserID = c.UserID
		msg.room = c.Room
		msg.sender = c

		switch msg.Type {
		case UpdateType, CursorType:
			c.Hub.Broadcast <- msg
		case SuggestType:
			c.suggest(msg.Payload)
		case SuggestKeyType:
			c.suggestKey(msg.Payload)
		case DismissType:
			c.popup.Dismiss()
		default:
			logger.Sugar.Warnf("Ignoring message of unknown type %q from %s", msg.Type, c.ID)
		}
	}
}

// suggest starts a lookup for the word before the caret. Its answer is sent
// only if no newer SUGGEST or DISMISS arrived in the meantime.
func (c *Client) suggest(raw json.RawMessage) {
	var p SuggestPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.Sugar.Warnf("Bad suggest payload from %s: %v", c.ID, err)
		return
	}
	mode, err := editor.ParseMode(string(p.Mode))
	if err != nil {
		mode = c.popup.Mode()
	}
	c.popup.SetMode(mode)

	word, ok := editor.LookupWord(mode, p.Text, p.Cursor)
	if !ok {
		c.popup.Dismiss()
		c.reply(SuggestionsType, suggestions(p.Seq, c.popup.State()))
		return
	}

	seq := c.popup.Request()
	go func() {
		candidates := c.Hub.translit.Transliterate(c.ctx, word)
		if c.ctx.Err() != nil {
			return
		}
		if !c.popup.Show(seq, word, candidates) {
			return
		}
		c.reply(SuggestionsType, suggestions(p.Seq, c.popup.State()))
	}()
}

// suggestKey runs a popup key, click or hover and tells the tab what
// happened.
func (c *Client) suggestKey(raw json.RawMessage) {
	var p KeyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.Sugar.Warnf("Bad key payload from %s: %v", c.ID, err)
		return
	}
	word := c.popup.State().Word

	if p.Key == "" && p.Hover {
		c.popup.Hover(p.Index)
		c.reply(SuggestionsType, suggestions(p.Seq, c.popup.State()))
		return
	}
	if p.Key == "" {
		if text, ok := c.popup.Pick(p.Index); ok {
			c.reply(AcceptType, AcceptPayload{Seq: p.Seq, Word: word, Text: text})
		}
		return
	}

	action := c.popup.HandleKey(p.Key)
	switch action.Kind {
	case editor.ActionAccept:
		c.reply(AcceptType, AcceptPayload{Seq: p.Seq, Word: word, Text: action.Text})
	case editor.ActionNavigate, editor.ActionDismiss:
		c.reply(SuggestionsType, suggestions(p.Seq, c.popup.State()))
	}
}

func suggestions(seq uint64, st editor.PopupState) SuggestionsPayload {
	items := st.Items
	if items == nil {
		items = []string{}
	}
	return SuggestionsPayload{Seq: seq, Word: st.Word, Candidates: items, Selected: st.Selected, Visible: st.Visible}
}

// reply sends a message to this tab only, through the hub.
func (c *Client) reply(msgType string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s reply: %v", msgType, err)
		return
	}
	c.Hub.Broadcast <- WSMessage{
		Type:      msgType,
		SessionID: c.Room.SessionID,
		UserID:    c.UserID,
		Payload:   payload,
		room:      c.Room,
		target:    c,
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
