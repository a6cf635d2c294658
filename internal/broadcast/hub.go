package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/user/lei-da-rua/internal/types"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 32
)

// Session is one connected websocket subscriber with its scope identity
type Session struct {
	conn       *websocket.Conn
	send       chan []byte
	ActorID    string
	CrewID     string
	DistrictID string
}

// Hub tracks connected sessions and delivers scoped payloads to the
// ones whose identity matches the payload scope.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	logger   *zap.Logger
}

// NewHub creates an empty session hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		logger:   logger,
	}
}

// Register adds a connection to the hub and starts its write pump
func (h *Hub) Register(conn *websocket.Conn, actorID, crewID, districtID string) *Session {
	session := &Session{
		conn:       conn,
		send:       make(chan []byte, sendQueueSize),
		ActorID:    actorID,
		CrewID:     crewID,
		DistrictID: districtID,
	}

	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.mu.Unlock()

	go h.writePump(session)

	h.logger.Info("websocket session registered",
		zap.String("actor_id", actorID),
		zap.String("crew_id", crewID),
		zap.String("district_id", districtID))
	return session
}

// Unregister removes a session and closes its connection
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	_, exists := h.sessions[session]
	if exists {
		delete(h.sessions, session)
		close(session.send)
	}
	h.mu.Unlock()

	if exists {
		session.conn.Close()
	}
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Deliver sends the payload to every session matching its scope.
// Sessions with a full send queue are dropped rather than blocked on.
func (h *Hub) Deliver(payload types.BroadcastPayload) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var stalled []*Session

	h.mu.RLock()
	for session := range h.sessions {
		if !sessionMatches(session, payload) {
			continue
		}
		select {
		case session.send <- message:
		default:
			stalled = append(stalled, session)
		}
	}
	h.mu.RUnlock()

	for _, session := range stalled {
		h.logger.Warn("dropping stalled websocket session",
			zap.String("actor_id", session.ActorID))
		h.Unregister(session)
	}
	return nil
}

func sessionMatches(session *Session, payload types.BroadcastPayload) bool {
	switch payload.Scope {
	case types.ScopeGlobal:
		return true
	case types.ScopeActor:
		return session.ActorID == payload.ScopeID
	case types.ScopeCrew:
		return session.CrewID != "" && session.CrewID == payload.ScopeID
	case types.ScopeDistrict:
		return session.DistrictID != "" && session.DistrictID == payload.ScopeID
	default:
		return false
	}
}

func (h *Hub) writePump(session *Session) {
	for message := range session.send {
		session.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := session.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("websocket write failed",
				zap.String("actor_id", session.ActorID),
				zap.Error(err))
			h.Unregister(session)
			return
		}
	}
}
