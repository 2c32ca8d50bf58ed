package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"deshhindi/pkg/logger"
)

const (
	UpdateType         = "UPDATE"          // Session markup changed
	CursorType         = "CURSOR"          // Caret moved
	PresenceUpdateType = "PRESENCE_UPDATE" // A tab joined or left
	SuggestType        = "SUGGEST"         // Caret context for a transliteration lookup
	SuggestKeyType     = "SUGGEST_KEY"     // Key pressed while the popup is open
	DismissType        = "DISMISS"         // Popup closed by the user
	SuggestionsType    = "SUGGESTIONS"     // Popup state for the requesting tab
	AcceptType         = "ACCEPT"          // Candidate chosen from the popup
)

type WSMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`

	room   RoomKey
	sender *Client // excluded from a room broadcast
	target *Client // when set, the only recipient
	// persisted marks an update that is already stored.
	persisted bool
}

const DefaultAutosaveInterval = 10 * time.Second

// RoomKey identifies a live session. Session ids are only unique per owner.
type RoomKey struct {
	OwnerID   string
	SessionID string
}

type UserStatus struct {
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	CursorPos int       `json:"cursor_pos"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store persists session markup for the hub.
type Store interface {
	LoadContent(ownerID, id string) (string, error)
	SaveContent(ownerID, id, content string) error
}

// Transliterator returns Devanagari candidates for a roman word. It falls
// back to the word itself and never fails.
type Transliterator interface {
	Transliterate(ctx context.Context, word string) []string
}

type Hub struct {
	Rooms      map[RoomKey]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	remove     chan RoomKey
	store      Store
	translit   Transliterator
	// Track session markup in memory
	SessionCache  map[RoomKey]string
	DirtySessions map[RoomKey]bool
	versions      map[RoomKey]uint64 // bumped on every cache change
	mu            sync.Mutex
	Presence      map[RoomKey]map[string]UserStatus // room -> client id -> status

	// saveMu orders the hub's own writes to the store.
	saveMu sync.Mutex
}

func NewHub(store Store, translit Transliterator) *Hub {
	return &Hub{
		Rooms:         make(map[RoomKey]map[*Client]bool),
		Broadcast:     make(chan WSMessage),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		remove:        make(chan RoomKey),
		store:         store,
		translit:      translit,
		SessionCache:  make(map[RoomKey]string),
		DirtySessions: make(map[RoomKey]bool),
		versions:      make(map[RoomKey]uint64),
		Presence:      make(map[RoomKey]map[string]UserStatus),
	}
}

func encodeText(text string) json.RawMessage {
	b, _ := json.Marshal(text)
	return b
}

// Run is the hub's event loop. Every write to a client's Send channel happens
// here, so a channel is never written after it is closed.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			key := client.Room
			// The first tab of a room seeds the cache with what ServeWs loaded.
			if h.Rooms[key] == nil {
				h.Rooms[key] = make(map[*Client]bool)
				h.Presence[key] = make(map[string]UserStatus)
				h.SessionCache[key] = client.loaded
			}
			h.Rooms[key][client] = true
			h.Presence[key][client.ID] = UserStatus{ClientID: client.ID, UserID: client.UserID, LastSeen: time.Now()}
			currentContent := h.SessionCache[key]
			h.mu.Unlock()

			// Send the full session to the tab that just joined.
			initialMsg, _ := json.Marshal(WSMessage{Type: UpdateType, SessionID: key.SessionID, Payload: encodeText(currentContent)})
			client.Send <- initialMsg

			h.broadcastPresenceUpdate(key)

		case client := <-h.Unregister:
			h.unregister(client)

		case key := <-h.remove:
			h.mu.Lock()
			delete(h.SessionCache, key)
			delete(h.DirtySessions, key)
			delete(h.versions, key)
			delete(h.Presence, key)
			for client := range h.Rooms[key] {
				close(client.Send)
				client.Conn.Close() // readPump exits and unregisters a client that is already gone
			}
			delete(h.Rooms, key)
			h.mu.Unlock()
			logger.Sugar.Infof("Removed deleted session %s of %s from the hub", key.SessionID, key.OwnerID)

		case msg := <-h.Broadcast:
			h.mu.Lock()
			if msg.target != nil {
				_, ok := h.Rooms[msg.room][msg.target]
				h.mu.Unlock()
				if ok {
					payload, _ := json.Marshal(msg)
					h.deliver(msg.target, payload)
				}
				continue
			}

			if h.Rooms[msg.room] == nil {
				h.mu.Unlock()
				continue
			}
			switch msg.Type {
			case UpdateType:
				// PublishUpdate has already cached persisted markup.
				if !msg.persisted {
					var text string
					if err := json.Unmarshal(msg.Payload, &text); err != nil {
						logger.Sugar.Warnf("Dropping malformed update for session %s: %v", msg.room.SessionID, err)
						h.mu.Unlock()
						continue
					}
					h.SessionCache[msg.room] = text
					h.versions[msg.room]++
					// The SaveWorker stores dirty sessions.
					h.DirtySessions[msg.room] = true
				}
			case CursorType:
				if msg.sender != nil {
					var c struct {
						Cursor int `json:"cursor"`
					}
					json.Unmarshal(msg.Payload, &c)
					h.Presence[msg.room][msg.sender.ID] = UserStatus{
						ClientID: msg.sender.ID, UserID: msg.UserID, CursorPos: c.Cursor, LastSeen: time.Now(),
					}
				}
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				h.mu.Unlock()
				continue
			}

			// Collect recipients under the lock, send outside it.
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.room]))
			for client := range h.Rooms[msg.room] {
				if client != msg.sender {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				h.deliver(client, payload)
			}
		}
	}
}

// deliver queues payload for client. A client whose buffer is full is lagging
// and gets dropped instead of blocking the hub.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
		h.unregister(client)
	}
}

func (h *Hub) unregister(client *Client) {
	// A Flush in progress finishes first, so a room it left dirty is saved below.
	h.saveMu.Lock()
	defer h.saveMu.Unlock()

	key := client.Room
	var (
		save      bool
		content   string
		roomAlive bool
	)

	h.mu.Lock()
	if _, ok := h.Rooms[key][client]; ok {
		delete(h.Rooms[key], client)
		delete(h.Presence[key], client.ID)
		close(client.Send)

		// The last tab closes the room; unsaved markup is stored first.
		if len(h.Rooms[key]) == 0 {
			save = h.DirtySessions[key]
			content = h.SessionCache[key]
			delete(h.Rooms, key)
			delete(h.Presence, key)
			delete(h.SessionCache, key)
			delete(h.DirtySessions, key)
			delete(h.versions, key)
			logger.Sugar.Infof("Closed and cleaned up empty room: %s", key.SessionID)
		} else {
			roomAlive = true
		}
	}
	h.mu.Unlock()

	if save {
		if err := h.store.SaveContent(key.OwnerID, key.SessionID, content); err != nil {
			logger.Sugar.Errorf("Failed to save session %s on close: %v", key.SessionID, err)
		}
	}
	if roomAlive {
		h.broadcastPresenceUpdate(key)
	}
}

// SaveWorker stores dirty sessions every interval until done is closed, then
// flushes once more.
func (h *Hub) SaveWorker(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-done:
			h.Flush()
			return
		}
	}
}

type snapshot struct {
	content string
	version uint64
}

// Flush stores every dirty session. A session is marked clean only if its
// markup did not change while it was being saved; otherwise it stays dirty,
// since the save may have overwritten newer stored markup.
func (h *Hub) Flush() {
	h.saveMu.Lock()
	defer h.saveMu.Unlock()

	toSave := make(map[RoomKey]snapshot)
	h.mu.Lock()
	for key, isDirty := range h.DirtySessions {
		if isDirty {
			toSave[key] = snapshot{content: h.SessionCache[key], version: h.versions[key]}
		}
	}
	h.mu.Unlock()

	for key, snap := range toSave {
		if err := h.store.SaveContent(key.OwnerID, key.SessionID, snap.content); err != nil {
			logger.Sugar.Errorf("Failed to save session %s: %v", key.SessionID, err)
			continue // still dirty, retried on the next tick
		}

		h.mu.Lock()
		if _, ok := h.SessionCache[key]; ok {
			h.DirtySessions[key] = h.versions[key] != snap.version
		}
		h.mu.Unlock()

		logger.Sugar.Infof("Auto-saved session: %s", key.SessionID)
	}
}

// PublishUpdate pushes markup that was already stored through the REST API
// to every open tab of the session.
func (h *Hub) PublishUpdate(ownerID, sessionID, content string) {
	key := RoomKey{OwnerID: ownerID, SessionID: sessionID}
	h.mu.Lock()
	_, open := h.Rooms[key]
	if open {
		// Readers of Content see the new markup before the broadcast goes out.
		h.SessionCache[key] = content
		h.versions[key]++
		h.DirtySessions[key] = false
	}
	h.mu.Unlock()
	if !open {
		return
	}
	h.Broadcast <- WSMessage{
		Type:      UpdateType,
		SessionID: sessionID,
		UserID:    ownerID,
		Payload:   encodeText(content),
		room:      key,
		persisted: true,
	}
}

// RemoveSession drops a deleted session from memory, so it is not saved
// back, and disconnects its tabs.
func (h *Hub) RemoveSession(ownerID, sessionID string) {
	h.remove <- RoomKey{OwnerID: ownerID, SessionID: sessionID}
}

// Content returns the live markup of a session when a room is open for it.
func (h *Hub) Content(ownerID, sessionID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	content, ok := h.SessionCache[RoomKey{OwnerID: ownerID, SessionID: sessionID}]
	return content, ok
}

func (h *Hub) broadcastPresenceUpdate(key RoomKey) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[key]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[key]))
		for _, status := range h.Presence[key] {
			userStatuses = append(userStatuses, status)
		}

		clientsToSend = make([]*Client, 0, len(h.Rooms[key]))
		for client := range h.Rooms[key] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, SessionID: key.SessionID, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			// The pumps deal with unresponsive clients.
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.ID)
		}
	}
}
