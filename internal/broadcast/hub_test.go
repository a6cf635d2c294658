package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialSession connects a client websocket and registers its server side
// in the hub with the given identity.
func dialSession(t *testing.T, hub *Hub, actorID, crewID, districtID string) *websocket.Conn {
	t.Helper()

	registered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		assert.NoError(t, err)
		hub.Register(conn, actorID, crewID, districtID)
		close(registered)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("session never registered")
	}
	return client
}

func readPayload(t *testing.T, client *websocket.Conn) types.BroadcastPayload {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, message, err := client.ReadMessage()
	assert.NoError(t, err)

	var payload types.BroadcastPayload
	assert.NoError(t, json.Unmarshal(message, &payload))
	return payload
}

func TestDeliverToMatchingScopes(t *testing.T) {
	hub := NewHub(zap.NewNop())

	actorClient := dialSession(t, hub, "player-1", "", "")
	crewClient := dialSession(t, hub, "player-2", "crew-9", "")
	assert.Equal(t, 2, hub.SessionCount())

	assert.NoError(t, hub.Deliver(types.BroadcastPayload{
		Scope:   types.ScopeActor,
		ScopeID: "player-1",
		Type:    "crime_committed",
		Body:    map[string]string{"district_id": "centro"},
	}))

	payload := readPayload(t, actorClient)
	assert.Equal(t, "crime_committed", payload.Type)

	// The crew session never sees the actor-scoped payload
	crewClient.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := crewClient.ReadMessage()
	assert.Error(t, err)
}

func TestDeliverGlobalReachesEveryone(t *testing.T) {
	hub := NewHub(zap.NewNop())

	first := dialSession(t, hub, "player-1", "", "")
	second := dialSession(t, hub, "player-2", "crew-9", "orla")

	assert.NoError(t, hub.Deliver(types.BroadcastPayload{
		Scope: types.ScopeGlobal,
		Type:  "heist_completed",
	}))

	assert.Equal(t, "heist_completed", readPayload(t, first).Type)
	assert.Equal(t, "heist_completed", readPayload(t, second).Type)
}

func TestDeliverWithNoSessions(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.NoError(t, hub.Deliver(types.BroadcastPayload{
		Scope: types.ScopeGlobal,
		Type:  "anything",
	}))
}

func TestSessionMatches(t *testing.T) {
	session := &Session{ActorID: "player-1", CrewID: "crew-9", DistrictID: "centro"}
	anonymous := &Session{ActorID: "player-2"}

	tests := []struct {
		name    string
		session *Session
		payload types.BroadcastPayload
		want    bool
	}{
		{"global matches everyone", anonymous, types.BroadcastPayload{Scope: types.ScopeGlobal}, true},
		{"actor exact match", session, types.BroadcastPayload{Scope: types.ScopeActor, ScopeID: "player-1"}, true},
		{"actor mismatch", session, types.BroadcastPayload{Scope: types.ScopeActor, ScopeID: "player-2"}, false},
		{"crew match", session, types.BroadcastPayload{Scope: types.ScopeCrew, ScopeID: "crew-9"}, true},
		{"empty crew never matches", anonymous, types.BroadcastPayload{Scope: types.ScopeCrew, ScopeID: ""}, false},
		{"district match", session, types.BroadcastPayload{Scope: types.ScopeDistrict, ScopeID: "centro"}, true},
		{"unknown scope", session, types.BroadcastPayload{Scope: "galaxy"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionMatches(tt.session, tt.payload))
		})
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	dialSession(t, hub, "player-1", "", "")

	hub.mu.RLock()
	var session *Session
	for s := range hub.sessions {
		session = s
	}
	hub.mu.RUnlock()

	hub.Unregister(session)
	hub.Unregister(session)
	assert.Equal(t, 0, hub.SessionCount())
}
