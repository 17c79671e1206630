// Package store is the durable record of agents, probe history, health
// events, suspicious counters, and faucet claims (spec §3, §4.10,
// component C10, Postgres half). The LLM response cache lives in cache.go
// against Redis instead — see that file for why.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/trustoracle/oracle/pkg/model"
)

// Store is the sole writer for agent records, probe history, health
// events, and suspicious counters (spec §3 "Ownership").
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetAgent returns nil, nil when the agent does not exist.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, name, description, owner, endpoint, image_url, metadata_uri, card,
		       health_score, consecutive_failures, uptime_percent, avg_response_time_ms,
		       total_checks, successful_checks, reputation_mean, feedback_count,
		       monitored, last_checked, last_decision, last_reason, probe_history,
		       created_at, updated_at
		FROM agents WHERE agent_id = $1`, agentID)

	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return agent, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting scanAgent
// serve GetAgent's single-row lookup and ListAgents' multi-row scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*model.Agent, error) {
	var a model.Agent
	var card, history []byte

	err := row.Scan(
		&a.AgentID, &a.Name, &a.Description, &a.Owner, &a.Endpoint, &a.ImageURL, &a.MetadataURI, &card,
		&a.HealthScore, &a.ConsecutiveFailure, &a.UptimePercent, &a.AvgResponseTimeMs,
		&a.TotalChecks, &a.SuccessfulChecks, &a.ReputationMean, &a.FeedbackCount,
		&a.Monitored, &a.LastChecked, &a.LastDecision, &a.LastReason, &history,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(card) > 0 {
		var c model.Card
		if err := json.Unmarshal(card, &c); err == nil {
			a.Card = &c
		}
	}
	if len(history) > 0 {
		_ = json.Unmarshal(history, &a.ProbeHistory)
	}
	return &a, nil
}

// ListAgents returns agent rows ordered by most-recently-checked first,
// optionally restricted to monitored=true (used by the read-only trust
// API's GET /agents, spec SPEC_FULL.md §6 expansion).
func (s *Store) ListAgents(ctx context.Context, monitoredOnly bool) ([]model.Agent, error) {
	query := `
		SELECT agent_id, name, description, owner, endpoint, image_url, metadata_uri, card,
		       health_score, consecutive_failures, uptime_percent, avg_response_time_ms,
		       total_checks, successful_checks, reputation_mean, feedback_count,
		       monitored, last_checked, last_decision, last_reason, probe_history,
		       created_at, updated_at
		FROM agents`
	if monitoredOnly {
		query += ` WHERE monitored = TRUE`
	}
	query += ` ORDER BY last_checked DESC NULLS LAST`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// UpsertAgent inserts or updates the agent row, setting updatedAt on every
// write and createdAt only on insert (spec §4.10).
func (s *Store) UpsertAgent(ctx context.Context, a model.Agent) error {
	var cardJSON []byte
	if a.Card != nil {
		var err error
		cardJSON, err = json.Marshal(a.Card)
		if err != nil {
			return fmt.Errorf("marshal card: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (
			agent_id, name, description, owner, endpoint, image_url, metadata_uri, card,
			health_score, consecutive_failures, uptime_percent, avg_response_time_ms,
			total_checks, successful_checks, reputation_mean, feedback_count,
			monitored, last_checked, last_decision, last_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now(),now())
		ON CONFLICT (agent_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			owner = EXCLUDED.owner,
			endpoint = EXCLUDED.endpoint,
			image_url = EXCLUDED.image_url,
			metadata_uri = EXCLUDED.metadata_uri,
			card = EXCLUDED.card,
			health_score = EXCLUDED.health_score,
			consecutive_failures = EXCLUDED.consecutive_failures,
			uptime_percent = EXCLUDED.uptime_percent,
			avg_response_time_ms = EXCLUDED.avg_response_time_ms,
			total_checks = EXCLUDED.total_checks,
			successful_checks = EXCLUDED.successful_checks,
			reputation_mean = EXCLUDED.reputation_mean,
			feedback_count = EXCLUDED.feedback_count,
			monitored = EXCLUDED.monitored,
			last_checked = EXCLUDED.last_checked,
			last_decision = EXCLUDED.last_decision,
			last_reason = EXCLUDED.last_reason,
			updated_at = now()`,
		a.AgentID, a.Name, a.Description, a.Owner, a.Endpoint, a.ImageURL, a.MetadataURI, cardJSON,
		a.HealthScore, a.ConsecutiveFailure, a.UptimePercent, a.AvgResponseTimeMs,
		a.TotalChecks, a.SuccessfulChecks, a.ReputationMean, a.FeedbackCount,
		a.Monitored, a.LastChecked, string(a.LastDecision), a.LastReason,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.AgentID, err)
	}
	return nil
}

// PushResponseHistory appends one probe sample and trims the stored
// history to the most recent model.MaxProbeHistory entries (spec §3,
// §4.10). Runs as a single statement using jsonb array functions so the
// trim is atomic with the append.
func (s *Store) PushResponseHistory(ctx context.Context, agentID string, sample model.ProbeSample) error {
	entry, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal probe sample: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE agents
		SET probe_history = (
			SELECT jsonb_agg(elem ORDER BY ord ASC)
			FROM (
				SELECT elem, ord
				FROM jsonb_array_elements(
					COALESCE(probe_history, '[]'::jsonb) || jsonb_build_array($2::jsonb)
				) WITH ORDINALITY AS t(elem, ord)
				ORDER BY ord DESC
				LIMIT $3
			) AS trimmed
		),
		updated_at = now()
		WHERE agent_id = $1`,
		agentID, string(entry), model.MaxProbeHistory)
	if err != nil {
		return fmt.Errorf("push response history for %s: %w", agentID, err)
	}
	return nil
}

// LogHealthEvent inserts an append-only event row with a server timestamp.
func (s *Store) LogHealthEvent(ctx context.Context, e model.HealthEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_events
			(agent_id, decision, reason, health_score, response_time_ms, success, failure_type, anomaly_detected, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`,
		e.AgentID, string(e.Decision), e.Reason, e.HealthScore, e.ResponseTimeMs, e.Success, string(e.FailureType), e.AnomalyDetected,
	)
	if err != nil {
		return fmt.Errorf("log health event for %s: %w", e.AgentID, err)
	}
	return nil
}

// GetHealthHistory returns the last `limit` events for an agent, newest first.
func (s *Store) GetHealthHistory(ctx context.Context, agentID string, limit int) ([]model.HealthEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, decision, reason, health_score, response_time_ms, success, failure_type, anomaly_detected, created_at
		FROM health_events
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("get health history for %s: %w", agentID, err)
	}
	defer rows.Close()

	var events []model.HealthEvent
	for rows.Next() {
		var e model.HealthEvent
		var decision, failureType string
		if err := rows.Scan(&e.ID, &e.AgentID, &decision, &e.Reason, &e.HealthScore, &e.ResponseTimeMs, &e.Success, &failureType, &e.AnomalyDetected, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan health event: %w", err)
		}
		e.Decision = model.Decision(decision)
		e.FailureType = model.FailureType(failureType)
		events = append(events, e)
	}
	return events, rows.Err()
}

// IncrementSuspicious atomically increments the agent's consecutive
// suspicious count, returning true iff the new value reached threshold —
// in which case it also resets consecutive to 0 and stamps lastSlashedAt,
// all in the same statement (spec §4.10, §9(b)). Callers pass
// decision.SlashThreshold.
func (s *Store) IncrementSuspicious(ctx context.Context, agentID string, threshold int) (bool, error) {
	// The increment, threshold check, reset, and lastSlashedAt stamp all
	// happen in one statement: RETURNING consecutive yields 0 only when
	// the threshold was reached this call (a plain increment always
	// produces >= 1).
	var consecutive int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO suspicious_counters (agent_id, consecutive, total_seen, last_at, last_slashed_at)
		VALUES ($1,
			CASE WHEN 1 >= $2::int THEN 0 ELSE 1 END,
			1, now(),
			CASE WHEN 1 >= $2::int THEN now() END)
		ON CONFLICT (agent_id) DO UPDATE SET
			consecutive = CASE WHEN suspicious_counters.consecutive + 1 >= $2::int
				THEN 0 ELSE suspicious_counters.consecutive + 1 END,
			total_seen = suspicious_counters.total_seen + 1,
			last_at = now(),
			last_slashed_at = CASE WHEN suspicious_counters.consecutive + 1 >= $2::int
				THEN now() ELSE suspicious_counters.last_slashed_at END
		RETURNING consecutive`, agentID, threshold).Scan(&consecutive)
	if err != nil {
		return false, fmt.Errorf("increment suspicious for %s: %w", agentID, err)
	}
	return consecutive == 0, nil
}

// GetSuspicious returns the agent's debouncer state, zero-valued when no
// row exists (an agent that was never suspicious, or was deleted).
func (s *Store) GetSuspicious(ctx context.Context, agentID string) (model.SuspiciousCounter, error) {
	counter := model.SuspiciousCounter{AgentID: agentID}
	var lastAt, lastSlashedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT consecutive, total_seen, last_at, last_slashed_at
		FROM suspicious_counters WHERE agent_id = $1`, agentID).
		Scan(&counter.Consecutive, &counter.TotalSeen, &lastAt, &lastSlashedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return counter, nil
	}
	if err != nil {
		return counter, fmt.Errorf("get suspicious for %s: %w", agentID, err)
	}
	if lastAt.Valid {
		counter.LastAt = lastAt.Time
	}
	if lastSlashedAt.Valid {
		counter.LastSlashedAt = &lastSlashedAt.Time
	}
	return counter, nil
}

// ResetSuspicious sets consecutive back to 0 (called on a healthy verdict).
func (s *Store) ResetSuspicious(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suspicious_counters (agent_id, consecutive, total_seen, last_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (agent_id) DO UPDATE SET consecutive = 0`, agentID)
	if err != nil {
		return fmt.Errorf("reset suspicious for %s: %w", agentID, err)
	}
	return nil
}

// agentCacheKeyPattern matches cache keys holding the agent id in a
// bounded position. The LLM cache keys use ":" between segments
// ("health:<id>:<success>:<ms>", "narrative:<id>"), so both ":" and "_"
// count as boundaries — a key containing "17" must not be swept when
// agent "7" is deleted.
func agentCacheKeyPattern(agentID string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[_:])` + regexp.QuoteMeta(agentID) + `($|[_:])`)
}

// CacheDeleter is the subset of Cache the cascade delete needs, kept as an
// interface so this package does not import the Redis client directly in
// tests that don't need it.
type CacheDeleter interface {
	DeleteMatching(ctx context.Context, match func(key string) bool) (int, error)
}

// DeleteAgentData removes the agent row, its health events, its suspicious
// counter row, and any cache entry whose key contains the agent id in a
// bounded position (spec §3 "Lifecycle", §4.10, §8 invariant 7). Returns
// the names of collections touched.
func (s *Store) DeleteAgentData(ctx context.Context, agentID string, cache CacheDeleter) ([]string, error) {
	var touched []string

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if res, err := tx.ExecContext(ctx, `DELETE FROM health_events WHERE agent_id = $1`, agentID); err != nil {
		return nil, fmt.Errorf("delete health events for %s: %w", agentID, err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		touched = append(touched, "health_events")
	}

	if res, err := tx.ExecContext(ctx, `DELETE FROM suspicious_counters WHERE agent_id = $1`, agentID); err != nil {
		return nil, fmt.Errorf("delete suspicious counter for %s: %w", agentID, err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		touched = append(touched, "suspicious_counters")
	}

	if res, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID); err != nil {
		return nil, fmt.Errorf("delete agent %s: %w", agentID, err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		touched = append(touched, "agents")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete transaction: %w", err)
	}

	if cache != nil {
		pattern := agentCacheKeyPattern(agentID)
		n, err := cache.DeleteMatching(ctx, func(key string) bool { return pattern.MatchString(key) })
		if err != nil {
			return touched, fmt.Errorf("delete cache entries for %s: %w", agentID, err)
		}
		if n > 0 {
			touched = append(touched, "llm_cache")
		}
	}

	return touched, nil
}

// GetConfig/SetConfig give cross-restart durability to values earned at
// first launch (e.g. a faucet API token), spec §3/§4.10.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM oracle_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oracle_config (key, value, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// HasClaimedFaucet reports whether recipient (lowercased) already has a
// one-shot faucet claim recorded.
func (s *Store) HasClaimedFaucet(ctx context.Context, recipient string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM faucet_claims WHERE recipient = $1)`, strings.ToLower(recipient)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check faucet claim for %s: %w", recipient, err)
	}
	return exists, nil
}

// RecordFaucetClaim marks recipient as served. Idempotent: claiming twice
// is a no-op, not an error.
func (s *Store) RecordFaucetClaim(ctx context.Context, recipient string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO faucet_claims (recipient, claimed_at) VALUES ($1, now())
		ON CONFLICT (recipient) DO NOTHING`, strings.ToLower(recipient))
	if err != nil {
		return fmt.Errorf("record faucet claim for %s: %w", recipient, err)
	}
	return nil
}
