package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
)

// UnitOfWork is the state mutation an intent performs once admitted
type UnitOfWork func(ctx context.Context) (any, error)

// Pipeline admits player intents exactly once per operation id, runs
// the unit of work, records an audit entry and routes broadcasts for
// successful operations.
type Pipeline struct {
	store       interfaces.Store
	cache       *DedupCache
	broadcaster interfaces.Broadcaster
	routes      map[string]BroadcastRule
	cfg         config.SimulationConfig
	logger      *zap.Logger
}

// BroadcastRule maps an intent type onto the scopes notified on success
type BroadcastRule struct {
	Scopes      []string
	PayloadType string
}

// NewPipeline creates an operation pipeline backed by the given store
func NewPipeline(store interfaces.Store, broadcaster interfaces.Broadcaster, cfg config.SimulationConfig, logger *zap.Logger) *Pipeline {
	cache := NewDedupCache(
		time.Duration(cfg.DedupTTL)*time.Minute,
		time.Duration(cfg.DedupSweepInterval)*time.Minute,
	)
	return &Pipeline{
		store:       store,
		cache:       cache,
		broadcaster: broadcaster,
		routes:      DefaultBroadcastRules(),
		cfg:         cfg,
		logger:      logger,
	}
}

// DefaultBroadcastRules returns the static intent-to-scope dispatch table
func DefaultBroadcastRules() map[string]BroadcastRule {
	return map[string]BroadcastRule{
		"crime_commit":      {Scopes: []string{types.ScopeActor, types.ScopeDistrict}, PayloadType: "crime_committed"},
		"heist_start":       {Scopes: []string{types.ScopeCrew, types.ScopeDistrict}, PayloadType: "heist_started"},
		"heist_complete":    {Scopes: []string{types.ScopeCrew, types.ScopeDistrict, types.ScopeGlobal}, PayloadType: "heist_completed"},
		"attack_player":     {Scopes: []string{types.ScopeActor, types.ScopeDistrict}, PayloadType: "player_attacked"},
		"property_purchase": {Scopes: []string{types.ScopeActor, types.ScopeDistrict}, PayloadType: "property_purchased"},
		"crew_war_declare":  {Scopes: []string{types.ScopeCrew, types.ScopeGlobal}, PayloadType: "crew_war_declared"},
		"market_trade":      {Scopes: []string{types.ScopeActor}, PayloadType: "trade_settled"},
		"turf_claim":        {Scopes: []string{types.ScopeCrew, types.ScopeDistrict}, PayloadType: "turf_claimed"},
	}
}

// Start begins the dedup cache sweep loop
func (p *Pipeline) Start() {
	p.cache.Start()
}

// Stop halts the dedup cache sweep loop
func (p *Pipeline) Stop() {
	p.cache.Stop()
}

// ProcessIntent runs one intent through admit, execute, audit and
// broadcast. A replayed operation id inside the idempotency window
// returns the original result marked as duplicate without running the
// unit of work again.
func (p *Pipeline) ProcessIntent(ctx context.Context, actorID string, intent types.Intent, work UnitOfWork, bctx types.BroadcastContext) (*types.OperationResult, error) {
	if actorID == "" {
		return nil, errors.New("actor id cannot be empty")
	}
	if intent.Type == "" {
		return nil, &types.ValidationError{Field: "type", Message: "intent type cannot be empty"}
	}
	if work == nil {
		return nil, errors.New("unit of work cannot be nil")
	}

	// Reserve before executing so a concurrent replay of the same
	// operation id waits for this execution instead of running its own.
	if intent.OperationID != "" {
		if cached, hit := p.cache.Reserve(intent.OperationID); hit {
			duplicate := cached
			duplicate.Duplicate = true
			p.auditAsync(actorID, intent, types.OutcomeDuplicate, "replayed operation id")
			p.logger.Info("duplicate operation absorbed",
				zap.String("actor_id", actorID),
				zap.String("operation_id", intent.OperationID),
				zap.String("intent_type", intent.Type))
			return &duplicate, nil
		}
	}

	result := types.OperationResult{OperationID: intent.OperationID}
	data, err := work(ctx)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		p.auditAsync(actorID, intent, types.OutcomeFailure, err.Error())
	} else {
		result.Success = true
		result.Data = data
		p.auditAsync(actorID, intent, types.OutcomeSuccess, "")
	}

	if intent.OperationID != "" {
		p.cache.Commit(intent.OperationID, result)
	}

	if result.Success {
		p.routeBroadcasts(actorID, intent, result, bctx)
	}

	return &result, nil
}

// CheckSuspiciousActivity inspects an actor's recent audit trail for
// duplicate or failure ratios above the configured thresholds.
func (p *Pipeline) CheckSuspiciousActivity(ctx context.Context, actorID string) (*types.SuspicionReport, error) {
	if actorID == "" {
		return nil, errors.New("actor id cannot be empty")
	}

	windowStart := time.Now().UTC().Add(-time.Duration(p.cfg.SuspicionWindow) * time.Minute)
	entries, err := p.store.AuditEntriesSince(ctx, actorID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}

	report := &types.SuspicionReport{
		ActorID:     actorID,
		WindowStart: windowStart,
		Operations:  len(entries),
	}
	for _, entry := range entries {
		switch entry.Outcome {
		case types.OutcomeDuplicate:
			report.Duplicates++
		case types.OutcomeFailure:
			report.Failures++
		}
	}

	if report.Operations < p.cfg.SuspicionMinOperations {
		return report, nil
	}

	report.DuplicateRatio = float64(report.Duplicates) / float64(report.Operations)
	report.FailureRatio = float64(report.Failures) / float64(report.Operations)

	if report.DuplicateRatio >= p.cfg.SuspicionDuplicateRatio {
		report.Flagged = true
		report.Reason = "duplicate ratio above threshold"
	} else if report.FailureRatio >= p.cfg.SuspicionFailureRatio {
		report.Flagged = true
		report.Reason = "failure ratio above threshold"
	}

	return report, nil
}

// auditAsync records the audit entry off the request path. Audit
// failures are logged and never affect the operation outcome.
func (p *Pipeline) auditAsync(actorID string, intent types.Intent, outcome, detail string) {
	entry := &types.AuditEntry{
		ID:          uuid.New().String(),
		OperationID: intent.OperationID,
		ActorID:     actorID,
		IntentType:  intent.Type,
		Params:      intent.Params,
		Outcome:     outcome,
		Detail:      detail,
		CreatedAt:   time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.store.AppendAudit(ctx, entry); err != nil {
			p.logger.Warn("failed to append audit entry",
				zap.String("actor_id", actorID),
				zap.String("operation_id", intent.OperationID),
				zap.Error(err))
		}
	}()
}

// routeBroadcasts fans a successful operation out to its scopes.
// Unknown intent types broadcast nothing and scopes with no id in the
// broadcast context are skipped.
func (p *Pipeline) routeBroadcasts(actorID string, intent types.Intent, result types.OperationResult, bctx types.BroadcastContext) {
	if p.broadcaster == nil {
		return
	}

	rule, known := p.routes[intent.Type]
	if !known {
		return
	}

	body := map[string]any{
		"actor_id":    actorID,
		"intent_type": intent.Type,
		"data":        result.Data,
	}

	for _, scope := range rule.Scopes {
		scopeID := ""
		switch scope {
		case types.ScopeActor:
			scopeID = actorID
		case types.ScopeCrew:
			if bctx.CrewID == "" {
				continue
			}
			scopeID = bctx.CrewID
		case types.ScopeDistrict:
			if bctx.DistrictID == "" {
				continue
			}
			scopeID = bctx.DistrictID
		}

		payload := types.BroadcastPayload{
			Scope:   scope,
			ScopeID: scopeID,
			Type:    rule.PayloadType,
			Body:    body,
		}
		if err := p.broadcaster.Broadcast(payload); err != nil {
			p.logger.Warn("broadcast failed",
				zap.String("scope", scope),
				zap.String("scope_id", scopeID),
				zap.String("type", rule.PayloadType),
				zap.Error(err))
		}
	}
}
