package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

// SQLStore persists the simulation core in SQLite
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Ensure SQLStore satisfies the interfaces.Store interface
var _ interfaces.Store = (*SQLStore)(nil)

// metricColumns whitelists metric names against schema columns
var metricColumns = map[string]string{
	"crime":    "crime",
	"police":   "police",
	"property": "property",
	"business": "business",
	"activity": "activity",
	"tension":  "tension",
}

// dimensionColumns whitelists reputation dimension names
var dimensionColumns = map[string]string{
	"respect": "respect",
	"fear":    "fear",
	"trust":   "trust",
	"heat":    "heat",
}

// Open connects to the configured database and prepares the schema
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLStore{db: db, logger: logger}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps concurrent request handlers from blocking the sweeper
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS district_states (
			id TEXT PRIMARY KEY,
			crime INTEGER NOT NULL DEFAULT 50,
			police INTEGER NOT NULL DEFAULT 50,
			property INTEGER NOT NULL DEFAULT 50,
			business INTEGER NOT NULL DEFAULT 50,
			activity INTEGER NOT NULL DEFAULT 50,
			tension INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'stable',
			last_calculated TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS district_events (
			id TEXT PRIMARY KEY,
			district_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			severity INTEGER NOT NULL,
			actor_id TEXT,
			target_id TEXT,
			d_crime INTEGER NOT NULL,
			d_police INTEGER NOT NULL,
			d_property INTEGER NOT NULL,
			d_business INTEGER NOT NULL,
			d_activity INTEGER NOT NULL,
			metadata TEXT,
			processed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_district_events_fold
			ON district_events(district_id, processed, created_at);`,
		`CREATE TABLE IF NOT EXISTS active_district_events (
			id TEXT PRIMARY KEY,
			district_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			metric_value INTEGER NOT NULL,
			effects TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			ended INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_active_events_open
			ON active_district_events(district_id, event_type, ended);`,
		`CREATE TABLE IF NOT EXISTS reputation_records (
			actor_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			respect INTEGER NOT NULL DEFAULT 0,
			fear INTEGER NOT NULL DEFAULT 0,
			trust INTEGER NOT NULL DEFAULT 0,
			heat INTEGER NOT NULL DEFAULT 0,
			standing TEXT NOT NULL DEFAULT 'unknown',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (actor_id, target_type, target_id)
		);`,
		`CREATE TABLE IF NOT EXISTS reputation_events (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			dimension TEXT NOT NULL,
			old_value INTEGER NOT NULL,
			new_value INTEGER NOT NULL,
			delta INTEGER NOT NULL,
			clamped INTEGER NOT NULL,
			reason TEXT NOT NULL,
			related_actor_id TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operation_audit (
			id TEXT PRIMARY KEY,
			operation_id TEXT,
			actor_id TEXT NOT NULL,
			intent_type TEXT NOT NULL,
			params TEXT,
			outcome TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor
			ON operation_audit(actor_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS push_targets (
			actor_id TEXT PRIMARY KEY,
			phone_number TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetDistrictState retrieves the authoritative row for one district
func (s *SQLStore) GetDistrictState(ctx context.Context, districtID string) (*types.DistrictState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, crime, police, property, business, activity, tension, status, last_calculated
		 FROM district_states WHERE id = ?`, districtID)

	state := &types.DistrictState{}
	err := row.Scan(&state.ID,
		&state.Metrics.CrimeLevel, &state.Metrics.PolicePresence,
		&state.Metrics.PropertyValue, &state.Metrics.BusinessHealth,
		&state.Metrics.StreetActivity, &state.Metrics.CrewTension,
		&state.Status, &state.LastCalculated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "district", ID: districtID}
	}
	if err != nil {
		return nil, &types.PersistenceError{Op: "get district state", Err: err}
	}
	return state, nil
}

// UpsertDistrictState writes the authoritative row for one district
func (s *SQLStore) UpsertDistrictState(ctx context.Context, state *types.DistrictState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO district_states (id, crime, police, property, business, activity, tension, status, last_calculated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			crime = excluded.crime,
			police = excluded.police,
			property = excluded.property,
			business = excluded.business,
			activity = excluded.activity,
			tension = excluded.tension,
			status = excluded.status,
			last_calculated = excluded.last_calculated`,
		state.ID,
		state.Metrics.CrimeLevel, state.Metrics.PolicePresence,
		state.Metrics.PropertyValue, state.Metrics.BusinessHealth,
		state.Metrics.StreetActivity, state.Metrics.CrewTension,
		state.Status, state.LastCalculated.UTC())
	if err != nil {
		return &types.PersistenceError{Op: "upsert district state", Err: err}
	}
	return nil
}

// AdjustDistrictMetric applies a clamped, row-atomic increment to one metric
func (s *SQLStore) AdjustDistrictMetric(ctx context.Context, districtID, metric string, delta, floor, ceiling int) error {
	column, ok := metricColumns[metric]
	if !ok {
		return &types.ValidationError{Field: "metric", Message: metric}
	}

	query := fmt.Sprintf(
		`UPDATE district_states SET %s = MIN(?, MAX(?, %s + ?)) WHERE id = ?`,
		column, column)
	res, err := s.db.ExecContext(ctx, query, ceiling, floor, delta, districtID)
	if err != nil {
		return &types.PersistenceError{Op: "adjust district metric", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &types.PersistenceError{Op: "adjust district metric", Err: err}
	}
	if affected == 0 {
		return &types.NotFoundError{Kind: "district", ID: districtID}
	}
	return nil
}

// AppendDistrictEvent stores one immutable district event
func (s *SQLStore) AppendDistrictEvent(ctx context.Context, event *types.DistrictEvent) error {
	var metadata any
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return &types.ValidationError{Field: "metadata", Message: err.Error()}
		}
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO district_events
			(id, district_id, event_type, severity, actor_id, target_id,
			 d_crime, d_police, d_property, d_business, d_activity,
			 metadata, processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		event.ID, event.DistrictID, event.EventType, event.Severity,
		nullable(event.ActorID), nullable(event.TargetID),
		event.Impacts.Crime, event.Impacts.Police, event.Impacts.Property,
		event.Impacts.Business, event.Impacts.Activity,
		metadata, event.CreatedAt.UTC())
	if err != nil {
		return &types.PersistenceError{Op: "append district event", Err: err}
	}
	return nil
}

// UnprocessedEvents returns unfolded events for a district newer than since
func (s *SQLStore) UnprocessedEvents(ctx context.Context, districtID string, since time.Time) ([]*types.DistrictEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, district_id, event_type, severity, actor_id, target_id,
			d_crime, d_police, d_property, d_business, d_activity, metadata, created_at
		 FROM district_events
		 WHERE district_id = ? AND processed = 0 AND created_at >= ?
		 ORDER BY created_at`, districtID, since.UTC())
	if err != nil {
		return nil, &types.PersistenceError{Op: "load unprocessed events", Err: err}
	}
	defer rows.Close()

	var events []*types.DistrictEvent
	for rows.Next() {
		event := &types.DistrictEvent{}
		var actorID, targetID, metadata sql.NullString
		err := rows.Scan(&event.ID, &event.DistrictID, &event.EventType, &event.Severity,
			&actorID, &targetID,
			&event.Impacts.Crime, &event.Impacts.Police, &event.Impacts.Property,
			&event.Impacts.Business, &event.Impacts.Activity,
			&metadata, &event.CreatedAt)
		if err != nil {
			return nil, &types.PersistenceError{Op: "scan district event", Err: err}
		}
		event.ActorID = actorID.String
		event.TargetID = targetID.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				s.logger.Warn("Skipping malformed event metadata",
					zap.String("event_id", event.ID), zap.Error(err))
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.PersistenceError{Op: "iterate district events", Err: err}
	}
	return events, nil
}

// MarkEventsProcessed flags folded events so they are never counted twice
func (s *SQLStore) MarkEventsProcessed(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.PersistenceError{Op: "mark events processed", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE district_events SET processed = 1 WHERE id = ?`)
	if err != nil {
		return &types.PersistenceError{Op: "mark events processed", Err: err}
	}
	defer stmt.Close()

	for _, id := range eventIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return &types.PersistenceError{Op: "mark events processed", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.PersistenceError{Op: "mark events processed", Err: err}
	}
	return nil
}

// OpenActiveEvent stores a newly fired timed modifier
func (s *SQLStore) OpenActiveEvent(ctx context.Context, event *types.ActiveDistrictEvent) error {
	effects, err := json.Marshal(event.Effects)
	if err != nil {
		return &types.ValidationError{Field: "effects", Message: err.Error()}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_district_events
			(id, district_id, event_type, triggered_by, metric_value, effects, started_at, expires_at, ended)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		event.ID, event.DistrictID, event.EventType, event.TriggeredBy,
		event.MetricValue, string(effects),
		event.StartedAt.UTC(), event.ExpiresAt.UTC())
	if err != nil {
		return &types.PersistenceError{Op: "open active event", Err: err}
	}
	return nil
}

// GetOpenActiveEvent returns the open instance of a (district, type) pair, if any
func (s *SQLStore) GetOpenActiveEvent(ctx context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, district_id, event_type, triggered_by, metric_value, effects, started_at, expires_at, ended
		 FROM active_district_events
		 WHERE district_id = ? AND event_type = ? AND ended = 0 AND expires_at > ?
		 ORDER BY started_at DESC LIMIT 1`,
		districtID, eventType, time.Now().UTC())
	return scanActiveEvent(row, districtID, eventType)
}

// LastActiveEvent returns the most recent instance regardless of state,
// used for cooldown checks
func (s *SQLStore) LastActiveEvent(ctx context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, district_id, event_type, triggered_by, metric_value, effects, started_at, expires_at, ended
		 FROM active_district_events
		 WHERE district_id = ? AND event_type = ?
		 ORDER BY started_at DESC LIMIT 1`,
		districtID, eventType)
	return scanActiveEvent(row, districtID, eventType)
}

func scanActiveEvent(row *sql.Row, districtID, eventType string) (*types.ActiveDistrictEvent, error) {
	event := &types.ActiveDistrictEvent{}
	var effects string
	err := row.Scan(&event.ID, &event.DistrictID, &event.EventType,
		&event.TriggeredBy, &event.MetricValue, &effects,
		&event.StartedAt, &event.ExpiresAt, &event.Ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "active event", ID: districtID + "/" + eventType}
	}
	if err != nil {
		return nil, &types.PersistenceError{Op: "scan active event", Err: err}
	}
	if err := json.Unmarshal([]byte(effects), &event.Effects); err != nil {
		return nil, &types.PersistenceError{Op: "decode active event effects", Err: err}
	}
	return event, nil
}

// OpenActiveEvents returns all open timed modifiers for a district
func (s *SQLStore) OpenActiveEvents(ctx context.Context, districtID string) ([]*types.ActiveDistrictEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, district_id, event_type, triggered_by, metric_value, effects, started_at, expires_at, ended
		 FROM active_district_events
		 WHERE district_id = ? AND ended = 0 AND expires_at > ?
		 ORDER BY started_at`, districtID, time.Now().UTC())
	if err != nil {
		return nil, &types.PersistenceError{Op: "load open active events", Err: err}
	}
	defer rows.Close()

	var events []*types.ActiveDistrictEvent
	for rows.Next() {
		event := &types.ActiveDistrictEvent{}
		var effects string
		err := rows.Scan(&event.ID, &event.DistrictID, &event.EventType,
			&event.TriggeredBy, &event.MetricValue, &effects,
			&event.StartedAt, &event.ExpiresAt, &event.Ended)
		if err != nil {
			return nil, &types.PersistenceError{Op: "scan active event", Err: err}
		}
		if err := json.Unmarshal([]byte(effects), &event.Effects); err != nil {
			return nil, &types.PersistenceError{Op: "decode active event effects", Err: err}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.PersistenceError{Op: "iterate active events", Err: err}
	}
	return events, nil
}

// CloseExpiredEvents ends every active event past its expiry
func (s *SQLStore) CloseExpiredEvents(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE active_district_events SET ended = 1 WHERE ended = 0 AND expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, &types.PersistenceError{Op: "close expired events", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &types.PersistenceError{Op: "close expired events", Err: err}
	}
	return int(affected), nil
}

// GetReputation retrieves one actor's opinion record toward one target
func (s *SQLStore) GetReputation(ctx context.Context, actorID, targetType, targetID string) (*types.ReputationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT actor_id, target_type, target_id, respect, fear, trust, heat, standing, updated_at
		 FROM reputation_records
		 WHERE actor_id = ? AND target_type = ? AND target_id = ?`,
		actorID, targetType, targetID)

	record := &types.ReputationRecord{}
	err := row.Scan(&record.ActorID, &record.TargetType, &record.TargetID,
		&record.Respect, &record.Fear, &record.Trust, &record.Heat,
		&record.Standing, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "reputation record", ID: actorID + "/" + targetType + "/" + targetID}
	}
	if err != nil {
		return nil, &types.PersistenceError{Op: "get reputation", Err: err}
	}
	return record, nil
}

// ApplyReputationDelta performs the clamped read-modify-write of one dimension
// inside a transaction, creating the record lazily on first write
func (s *SQLStore) ApplyReputationDelta(ctx context.Context, actorID, targetType, targetID, dimension string, delta, floor, ceiling int) (int, int, error) {
	column, ok := dimensionColumns[dimension]
	if !ok {
		return 0, 0, &types.ValidationError{Field: "dimension", Message: dimension}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO reputation_records (actor_id, target_type, target_id, updated_at)
		 VALUES (?, ?, ?, ?)`,
		actorID, targetType, targetID, time.Now().UTC())
	if err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}

	var oldValue int
	selectQuery := fmt.Sprintf(
		`SELECT %s FROM reputation_records WHERE actor_id = ? AND target_type = ? AND target_id = ?`, column)
	if err := tx.QueryRowContext(ctx, selectQuery, actorID, targetType, targetID).Scan(&oldValue); err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}

	updateQuery := fmt.Sprintf(
		`UPDATE reputation_records SET %s = MIN(?, MAX(?, %s + ?)), updated_at = ?
		 WHERE actor_id = ? AND target_type = ? AND target_id = ?`, column, column)
	if _, err := tx.ExecContext(ctx, updateQuery, ceiling, floor, delta, time.Now().UTC(),
		actorID, targetType, targetID); err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}

	var newValue int
	if err := tx.QueryRowContext(ctx, selectQuery, actorID, targetType, targetID).Scan(&newValue); err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &types.PersistenceError{Op: "apply reputation delta", Err: err}
	}
	return oldValue, newValue, nil
}

// SetReputationStanding stores the derived standing label
func (s *SQLStore) SetReputationStanding(ctx context.Context, actorID, targetType, targetID, standing string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reputation_records SET standing = ?
		 WHERE actor_id = ? AND target_type = ? AND target_id = ?`,
		standing, actorID, targetType, targetID)
	if err != nil {
		return &types.PersistenceError{Op: "set reputation standing", Err: err}
	}
	return nil
}

// AppendReputationEvent stores one immutable reputation audit entry
func (s *SQLStore) AppendReputationEvent(ctx context.Context, event *types.ReputationEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reputation_events
			(id, actor_id, target_type, target_id, dimension, old_value, new_value,
			 delta, clamped, reason, related_actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ActorID, event.TargetType, event.TargetID,
		event.Dimension, event.OldValue, event.NewValue,
		event.Delta, event.Clamped, event.Reason,
		nullable(event.RelatedActorID), event.CreatedAt.UTC())
	if err != nil {
		return &types.PersistenceError{Op: "append reputation event", Err: err}
	}
	return nil
}

// AppendAudit stores one operation audit entry
func (s *SQLStore) AppendAudit(ctx context.Context, entry *types.AuditEntry) error {
	var params any
	if len(entry.Params) > 0 {
		params = string(entry.Params)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operation_audit
			(id, operation_id, actor_id, intent_type, params, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullable(entry.OperationID), entry.ActorID, entry.IntentType,
		params, entry.Outcome, nullable(entry.Detail), entry.CreatedAt.UTC())
	if err != nil {
		return &types.PersistenceError{Op: "append audit", Err: err}
	}
	return nil
}

// AuditEntriesSince returns an actor's audit entries newer than since
func (s *SQLStore) AuditEntriesSince(ctx context.Context, actorID string, since time.Time) ([]*types.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation_id, actor_id, intent_type, params, outcome, detail, created_at
		 FROM operation_audit
		 WHERE actor_id = ? AND created_at >= ?
		 ORDER BY created_at`, actorID, since.UTC())
	if err != nil {
		return nil, &types.PersistenceError{Op: "load audit entries", Err: err}
	}
	defer rows.Close()

	var entries []*types.AuditEntry
	for rows.Next() {
		entry := &types.AuditEntry{}
		var operationID, params, detail sql.NullString
		err := rows.Scan(&entry.ID, &operationID, &entry.ActorID, &entry.IntentType,
			&params, &entry.Outcome, &detail, &entry.CreatedAt)
		if err != nil {
			return nil, &types.PersistenceError{Op: "scan audit entry", Err: err}
		}
		entry.OperationID = operationID.String
		entry.Detail = detail.String
		if params.Valid {
			entry.Params = json.RawMessage(params.String)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.PersistenceError{Op: "iterate audit entries", Err: err}
	}
	return entries, nil
}

// SetPushTarget links an actor to a WhatsApp phone number
func (s *SQLStore) SetPushTarget(ctx context.Context, actorID, phoneNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_targets (actor_id, phone_number) VALUES (?, ?)
		 ON CONFLICT(actor_id) DO UPDATE SET phone_number = excluded.phone_number`,
		actorID, phoneNumber)
	if err != nil {
		return &types.PersistenceError{Op: "set push target", Err: err}
	}
	return nil
}

// GetPushTarget returns the phone number linked to an actor
func (s *SQLStore) GetPushTarget(ctx context.Context, actorID string) (string, error) {
	var phoneNumber string
	err := s.db.QueryRowContext(ctx,
		`SELECT phone_number FROM push_targets WHERE actor_id = ?`, actorID).Scan(&phoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &types.NotFoundError{Kind: "push target", ID: actorID}
	}
	if err != nil {
		return "", &types.PersistenceError{Op: "get push target", Err: err}
	}
	return phoneNumber, nil
}

// Close releases the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
