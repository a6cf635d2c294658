package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
)

// Router implements the broadcaster contract on top of the websocket
// hub, with a push fallback for actor-scoped payloads so offline
// players still hear about things that happened to them.
type Router struct {
	hub    *Hub
	push   interfaces.PushSender
	store  interfaces.Store
	logger *zap.Logger
}

var _ interfaces.Broadcaster = (*Router)(nil)

// NewRouter creates a broadcast router. The push sender may be nil
// when no messaging channel is configured.
func NewRouter(hub *Hub, push interfaces.PushSender, store interfaces.Store, logger *zap.Logger) *Router {
	return &Router{
		hub:    hub,
		push:   push,
		store:  store,
		logger: logger,
	}
}

// Broadcast delivers the payload to connected sessions and, for actor
// scope, pushes a text message to the actor's registered phone number.
// Push failures are logged and do not fail the broadcast.
func (r *Router) Broadcast(payload types.BroadcastPayload) error {
	if err := r.hub.Deliver(payload); err != nil {
		return fmt.Errorf("failed to deliver broadcast: %w", err)
	}

	if payload.Scope == types.ScopeActor && r.push != nil {
		r.pushToActor(payload)
	}
	return nil
}

func (r *Router) pushToActor(payload types.BroadcastPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	phoneNumber, err := r.store.GetPushTarget(ctx, payload.ScopeID)
	if err != nil {
		r.logger.Debug("no push target for actor",
			zap.String("actor_id", payload.ScopeID),
			zap.Error(err))
		return
	}
	if phoneNumber == "" {
		return
	}

	message := renderPushMessage(payload)
	if _, err := r.push.SendPush(phoneNumber, message); err != nil {
		r.logger.Warn("push delivery failed",
			zap.String("actor_id", payload.ScopeID),
			zap.String("phone_number", phoneNumber),
			zap.Error(err))
	}
}

func renderPushMessage(payload types.BroadcastPayload) string {
	switch payload.Type {
	case "crime_committed":
		return "🚨 Seu corre deu certo. Dá uma olhada na rua."
	case "player_attacked":
		return "⚔️ Você se meteu numa treta. Confere seu status."
	case "property_purchased":
		return "🏠 Negócio fechado. A escritura é sua."
	case "trade_settled":
		return "💰 Sua troca foi concluída. Confere o caixa."
	default:
		return fmt.Sprintf("📢 A rua tá comentando: %s", payload.Type)
	}
}
