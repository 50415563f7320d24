package server

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/desertthunder/jam/internal/transport"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	maxFrame    = 64 << 10
	sendBacklog = 64
)

const (
	leaveReasonLeft         = "left"
	leaveReasonDisconnected = "disconnected"
	leaveReasonSwitched     = "switched"
)

type client struct {
	id    string
	token string
	conn  *websocket.Conn
	send  chan []byte

	// guarded by Hub.mu
	self *models.Participant
	room *room
	dead bool
}

type room struct {
	session models.Session
	clients map[*client]struct{}
}

// Hub owns every live connection and the rooms they have joined.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	rooms   map[string]*room
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		rooms:   make(map[string]*room),
	}
}

// Serve runs one connection until it closes. token is the credential the connection was accepted with.
func (h *Hub) Serve(conn *websocket.Conn, token string) {
	c := &client{
		id:    shared.GenerateID(),
		token: token,
		conn:  conn,
		send:  make(chan []byte, sendBacklog),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("client connected", "client", c.id, "remote", conn.RemoteAddr())
	go c.writePump()

	h.readLoop(c)

	h.mu.Lock()
	h.leaveLocked(c, leaveReasonDisconnected, false)
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	h.logger.Debug("client disconnected", "client", c.id)
}

// Stats reports the number of live rooms and connections.
func (h *Hub) Stats() (sessions, clients int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms), len(h.clients)
}

// Snapshot returns a copy of a live session.
func (h *Hub) Snapshot(sessionID string) (models.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return r.session.Clone(), true
}

// CloseToken closes every connection accepted with token using [transport.CloseAuthFailed]. It returns the number
// of connections closed.
func (h *Hub) CloseToken(token, reason string) int {
	h.mu.Lock()
	var targets []*client
	for c := range h.clients {
		if c.token == token {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.closeWith(transport.CloseAuthFailed, reason)
	}
	return len(targets)
}

// Close closes every live connection.
func (h *Hub) Close() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.closeWith(websocket.CloseGoingAway, "relay shutting down")
	}
}

func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := transport.Decode(raw)
		if err != nil {
			h.mu.Lock()
			h.failLocked(c, "", "malformed frame: %v", err)
			h.mu.Unlock()
			continue
		}
		h.handle(c, frame)
	}
}

func (h *Hub) handle(c *client, frame transport.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var p transport.Payload
	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.failLocked(c, "", "malformed %s: %v", frame.Event, err)
			return
		}
	}

	switch frame.Event {
	case transport.EventIdentify:
		h.identifyLocked(c, p)
	case transport.EventJoinSession:
		h.joinLocked(c, p)
	case transport.EventAddTrack:
		h.addTrackLocked(c, p)
	case transport.EventRemoveTrack:
		h.removeTrackLocked(c, p)
	case transport.EventLeaveSession:
		h.leaveLocked(c, leaveReasonLeft, true)
	default:
		h.failLocked(c, "", "unknown event %q", frame.Event)
	}
}

func (h *Hub) identifyLocked(c *client, p transport.Payload) {
	if p.UserID == "" {
		h.failLocked(c, "", "identify requires userId")
		return
	}
	if c.room != nil {
		h.failLocked(c, "", "cannot identify while in session %s", c.room.session.ID)
		return
	}

	self := models.Participant{ID: p.UserID, Name: p.Name, Avatar: p.Avatar}
	if self.Name == "" {
		self.Name = self.ID
	}
	c.self = &self
	h.queueLocked(c, transport.EventIdentified, transport.Payload{UserID: self.ID})
}

func (h *Hub) joinLocked(c *client, p transport.Payload) {
	if c.self == nil {
		h.failLocked(c, "", "identify before joining")
		return
	}
	if p.SessionID == "" {
		h.failLocked(c, "", "join_session requires sessionId")
		return
	}

	if c.room != nil && c.room.session.ID != p.SessionID {
		h.leaveLocked(c, leaveReasonSwitched, false)
	}

	r, ok := h.rooms[p.SessionID]
	if !ok {
		r = &room{session: models.Session{ID: p.SessionID}, clients: make(map[*client]struct{})}
		h.rooms[p.SessionID] = r
		h.logger.Info("session opened", "session", p.SessionID)
	}
	r.clients[c] = struct{}{}
	c.room = r

	added := r.session.AddParticipant(*c.self)
	snapshot := r.session.Clone()

	h.queueLocked(c, transport.EventSessionJoined, transport.Payload{SessionID: r.session.ID})
	h.queueLocked(c, transport.EventSessionUpdate, transport.Payload{SessionID: r.session.ID, Session: &snapshot})
	if added {
		h.broadcastLocked(r, c, transport.EventUserJoin, transport.Payload{SessionID: r.session.ID, Participant: c.self})
	}
}

func (h *Hub) addTrackLocked(c *client, p transport.Payload) {
	r, ok := h.roomForLocked(c, p)
	if !ok {
		return
	}
	if p.Track == nil || p.Track.Validate() != nil {
		h.failLocked(c, r.session.ID, "add_track requires a track id")
		return
	}

	track := *p.Track
	if track.AddedBy == "" {
		track.AddedBy = c.self.ID
	}
	if !r.session.AddTrack(track) {
		return
	}
	h.broadcastLocked(r, nil, transport.EventPlaylistUpdate, transport.Payload{SessionID: r.session.ID, Track: &track, Op: models.OpAdd})
}

func (h *Hub) removeTrackLocked(c *client, p transport.Payload) {
	r, ok := h.roomForLocked(c, p)
	if !ok {
		return
	}

	id := p.TrackID
	if id == "" && p.Track != nil {
		id = p.Track.ID
	}
	if id == "" {
		h.failLocked(c, r.session.ID, "remove_track requires trackId")
		return
	}

	i := slices.IndexFunc(r.session.Playlist, func(t models.Track) bool { return t.ID == id })
	if i < 0 {
		return
	}
	removed := r.session.Playlist[i]
	r.session.RemoveTrack(id)
	h.broadcastLocked(r, nil, transport.EventPlaylistUpdate, transport.Payload{SessionID: r.session.ID, Track: &removed, Op: models.OpRemove})
}

// roomForLocked resolves the room a playlist command targets.
func (h *Hub) roomForLocked(c *client, p transport.Payload) (*room, bool) {
	if c.room == nil {
		h.failLocked(c, p.SessionID, "join a session first")
		return nil, false
	}
	if p.SessionID != "" && p.SessionID != c.room.session.ID {
		h.failLocked(c, p.SessionID, "not joined to session %s", p.SessionID)
		return nil, false
	}
	return c.room, true
}

// leaveLocked removes c from its room. The participant stays on the roster while another connection of the same
// user remains. notifySelf also sends the user_leave to c.
func (h *Hub) leaveLocked(c *client, reason string, notifySelf bool) {
	r := c.room
	if r == nil {
		return
	}
	delete(r.clients, c)
	c.room = nil

	stillPresent := false
	for other := range r.clients {
		if other.self != nil && other.self.ID == c.self.ID {
			stillPresent = true
			break
		}
	}

	if !stillPresent && r.session.RemoveParticipant(c.self.ID) {
		payload := transport.Payload{SessionID: r.session.ID, Participant: c.self, Reason: reason}
		h.broadcastLocked(r, nil, transport.EventUserLeave, payload)
		if notifySelf {
			h.queueLocked(c, transport.EventUserLeave, payload)
		}
	}

	if len(r.clients) == 0 {
		delete(h.rooms, r.session.ID)
		h.logger.Info("session closed", "session", r.session.ID)
	}
}

func (h *Hub) failLocked(c *client, sessionID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	h.logger.Debug("rejected frame", "client", c.id, "message", msg)
	h.queueLocked(c, transport.EventError, transport.Payload{SessionID: sessionID, Message: msg})
}

// broadcastLocked queues a frame for every client in r except skip.
func (h *Hub) broadcastLocked(r *room, skip *client, event string, payload transport.Payload) {
	data, err := transport.Encode(event, payload)
	if err != nil {
		h.logger.Error("encode failed", "event", event, "error", err)
		return
	}
	for c := range r.clients {
		if c != skip {
			h.deliverLocked(c, data)
		}
	}
}

func (h *Hub) queueLocked(c *client, event string, payload transport.Payload) {
	data, err := transport.Encode(event, payload)
	if err != nil {
		h.logger.Error("encode failed", "event", event, "error", err)
		return
	}
	h.deliverLocked(c, data)
}

// deliverLocked never blocks. A client that cannot keep up is disconnected.
func (h *Hub) deliverLocked(c *client, data []byte) {
	if c.dead {
		return
	}
	select {
	case c.send <- data:
	default:
		c.dead = true
		h.logger.Warn("client too slow, disconnecting", "client", c.id)
		go c.conn.Close()
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (c *client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}
