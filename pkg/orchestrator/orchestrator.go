// Package orchestrator wires discovery, probing, metadata resolution,
// trend analysis, LLM diagnostics, reputation, the decision engine, the
// chain writer, and the state store into the per-cycle pipeline (spec
// §4.11, component C11).
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/trustoracle/oracle/pkg/chain"
	"github.com/trustoracle/oracle/pkg/decision"
	"github.com/trustoracle/oracle/pkg/discovery"
	"github.com/trustoracle/oracle/pkg/llm"
	"github.com/trustoracle/oracle/pkg/metadata"
	"github.com/trustoracle/oracle/pkg/model"
	"github.com/trustoracle/oracle/pkg/probe"
	"github.com/trustoracle/oracle/pkg/reputation"
	"github.com/trustoracle/oracle/pkg/store"
	"github.com/trustoracle/oracle/pkg/trend"
)

// candidateServiceNames is the set of card service names accepted as an
// endpoint when none was passed in directly (spec §4.11 step 2).
var candidateServiceNames = map[string]bool{"status": true, "health": true, "ping": true}

// Metrics is the subset of observability hooks the orchestrator drives.
// Satisfied by *metrics.Metrics; kept as an interface so this package does
// not need to import Prometheus types directly.
type Metrics interface {
	ObserveCycle(d time.Duration)
	ObserveProbe(success bool)
	ObserveChainWrite(kind string, err error)
	ObserveSlash()
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycle(time.Duration)     {}
func (noopMetrics) ObserveProbe(bool)              {}
func (noopMetrics) ObserveChainWrite(string, error) {}
func (noopMetrics) ObserveSlash()                  {}

// Orchestrator runs one full monitoring cycle: discover agents, then the
// 11-step checkAndDecide pipeline for each, sequentially (spec §5).
type Orchestrator struct {
	discovery  *discovery.Discovery
	probe      *probe.Client
	metadata   *metadata.Resolver
	reputation *reputation.Fetcher
	llm        *llm.Client
	chain      *chain.Client
	store      *store.Store
	metrics    Metrics
	logger     *slog.Logger
}

// New builds an Orchestrator from its already-constructed collaborators.
// metrics may be nil, in which case observations are silently discarded.
func New(d *discovery.Discovery, p *probe.Client, m *metadata.Resolver, r *reputation.Fetcher, l *llm.Client, c *chain.Client, s *store.Store, metricsSink Metrics) *Orchestrator {
	if metricsSink == nil {
		metricsSink = noopMetrics{}
	}
	return &Orchestrator{
		discovery:  d,
		probe:      p,
		metadata:   m,
		reputation: r,
		llm:        l,
		chain:      c,
		store:      s,
		metrics:    metricsSink,
		logger:     slog.Default().With("component", "orchestrator"),
	}
}

// RunCycle implements scheduler.CycleFunc: discover, then process every
// monitored agent sequentially. A single agent's failure is isolated to
// that agent (spec §4.11: "errors at any step ... must not terminate the
// cycle or influence other agents").
func (o *Orchestrator) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() { o.metrics.ObserveCycle(time.Since(start)) }()

	targets, err := o.discovery.ListMonitored(ctx)
	if err != nil {
		o.logger.Warn("discovery failed for this cycle", "error", err)
		return
	}

	o.logger.Info("cycle starting", "agentCount", len(targets))
	for _, t := range targets {
		o.checkAndDecide(ctx, t.AgentID, t.Endpoint)
	}
}

// checkAndDecide runs the 11-step per-agent pipeline (spec §4.11).
func (o *Orchestrator) checkAndDecide(ctx context.Context, agentID, passedEndpoint string) {
	logger := o.logger.With("agentId", agentID)

	// Step 1: on-chain health read; skip entirely if not monitored.
	chainHealth, err := o.chain.GetHealthData(ctx, agentID)
	if err != nil {
		logger.Warn("chain health read failed, skipping agent this cycle", "error", err)
		return
	}
	if !chainHealth.IsMonitored {
		return
	}

	// Step 2: resolve the card, then decide the endpoint to probe.
	card, err := o.metadata.ResolveCard(ctx, agentID)
	if err != nil {
		logger.Warn("metadata resolution errored", "error", err)
	}

	endpoint := passedEndpoint
	if endpoint == "" {
		endpoint = endpointFromCard(card)
	}
	if endpoint == "" {
		logger.Warn("no endpoint known for agent, skipping")
		return
	}

	// Step 3: probe.
	result := o.probe.Probe(ctx, endpoint)
	o.metrics.ObserveProbe(result.Success)

	// Existing record, used for trend history and to avoid losing fields
	// UpsertAgent doesn't set explicitly.
	existing, err := o.store.GetAgent(ctx, agentID)
	if err != nil {
		logger.Warn("failed to load existing agent record", "error", err)
	}
	var priorHistory []model.ProbeSample
	if existing != nil {
		priorHistory = existing.ProbeHistory
	}

	// Step 4: trends, computed over history prior to this probe. The
	// anomaly flag compares this probe's latency against the rolling
	// stats and feeds both the LLM context and the health event.
	trends := trend.Analyze(priorHistory)
	anomalous := trend.Anomalous(trends.AvgTime, trends.StdDev, result.ResponseTimeMs)

	// Step 5: validate the response body, if the probe returned one.
	var validation *llm.ValidationResult
	if result.Success && len(result.Body) > 0 {
		v, err := o.llm.ValidateResponse(ctx, endpoint, result.Body, card)
		if err != nil {
			logger.Warn("validateResponse call interrupted", "error", err)
		} else {
			validation = &v
		}
	}

	// Step 6: reputation.
	rep := o.reputation.Reputation(ctx, agentID)

	// Step 7: health decision.
	healthDecision, err := o.llm.MakeHealthDecision(ctx, llm.MakeHealthDecisionInput{
		AgentID:        agentID,
		Endpoint:       endpoint,
		Success:        result.Success,
		ResponseTimeMs: result.ResponseTimeMs,
		OnChainHealth:  chainHealth,
		Trends:         trends,
		Anomalous:      anomalous,
		Validation:     validation,
		Card:           card,
	})
	if err != nil {
		logger.Warn("makeHealthDecision call interrupted", "error", err)
		return
	}
	verdict := model.Decision(healthDecision.Decision)

	// Step 8: append probe to response history.
	if err := o.store.PushResponseHistory(ctx, agentID, model.ProbeSample{
		Timestamp:      time.Now(),
		ResponseTimeMs: result.ResponseTimeMs,
		Success:        result.Success,
	}); err != nil {
		logger.Warn("failed to push response history", "error", err)
	}

	// Step 9: upsert the agent record with freshly derived fields.
	updated := deriveAgent(existing, agentID, endpoint, card, chainHealth, rep, result, verdict, healthDecision.Reason)
	if err := o.store.UpsertAgent(ctx, updated); err != nil {
		logger.Warn("failed to upsert agent", "error", err)
	}

	// Step 10: log the health event.
	reason := decision.Reason(healthDecision.Reason, model.FailureType(healthDecision.FailureType))
	event := model.HealthEvent{
		AgentID:         agentID,
		Decision:        verdict,
		Reason:          reason,
		HealthScore:     updated.HealthScore,
		ResponseTimeMs:  result.ResponseTimeMs,
		Success:         result.Success,
		FailureType:     model.FailureType(healthDecision.FailureType),
		AnomalyDetected: healthDecision.AnomalyDetected || anomalous,
	}
	if err := o.store.LogHealthEvent(ctx, event); err != nil {
		logger.Warn("failed to log health event", "error", err)
	}

	// Step 11: execute the verdict's chain action and counter effect.
	o.executeVerdict(ctx, logger, agentID, verdict, result.Success, result.ResponseTimeMs, reason)
}

// executeVerdict implements spec §4.8's verdict→action table.
func (o *Orchestrator) executeVerdict(ctx context.Context, logger *slog.Logger, agentID string, verdict model.Decision, probeSuccess bool, responseTimeMs int64, reason string) {
	ms, success := decision.UpdateHealthArgs(verdict, probeSuccess, responseTimeMs)
	if _, err := o.chain.UpdateHealth(ctx, agentID, ms, success); err != nil {
		o.metrics.ObserveChainWrite("updateHealth", err)
		logger.Warn("updateHealth failed, cycle continues", "error", err)
	} else {
		o.metrics.ObserveChainWrite("updateHealth", nil)
	}

	switch decision.CounterEffect(verdict) {
	case decision.CounterReset:
		if err := o.store.ResetSuspicious(ctx, agentID); err != nil {
			logger.Warn("failed to reset suspicious counter", "error", err)
		}
	case decision.CounterIncrement:
		slashed, err := o.store.IncrementSuspicious(ctx, agentID, decision.SlashThreshold)
		if err != nil {
			logger.Warn("failed to increment suspicious counter", "error", err)
			return
		}
		if slashed {
			if _, err := o.chain.ReportSuspicious(ctx, agentID, reason); err != nil {
				o.metrics.ObserveChainWrite("reportSuspicious", err)
				logger.Warn("reportSuspicious failed, cycle continues", "error", err)
			} else {
				o.metrics.ObserveChainWrite("reportSuspicious", nil)
				o.metrics.ObserveSlash()
			}
		}
	case decision.CounterUnchanged:
		// critical verdict: no counter movement.
	}
}

func endpointFromCard(card *model.Card) string {
	if card == nil {
		return ""
	}
	for _, svc := range card.Services {
		if candidateServiceNames[svc.Name] {
			return svc.Endpoint
		}
	}
	return ""
}

// deriveAgent computes the fresh fields spec §4.11 step 9 requires,
// carrying forward identity fields from the existing record (if any).
func deriveAgent(existing *model.Agent, agentID, endpoint string, card *model.Card, chainHealth model.ChainHealthData, rep model.ReputationSummary, result probe.Result, verdict model.Decision, reason string) model.Agent {
	a := model.Agent{AgentID: agentID}
	if existing != nil {
		a = *existing
	}

	a.Endpoint = endpoint
	if card != nil {
		a.Card = card
		a.Name = card.Name
		a.Description = card.Description
		if card.Image != "" {
			a.ImageURL = card.Image
		}
	}

	totalChecks := a.TotalChecks + 1
	successfulChecks := a.SuccessfulChecks
	if result.Success {
		successfulChecks++
	}

	a.TotalChecks = totalChecks
	a.SuccessfulChecks = successfulChecks
	a.UptimePercent = 100 * float64(successfulChecks) / float64(totalChecks)
	a.AvgResponseTimeMs = (a.AvgResponseTimeMs*float64(totalChecks-1) + float64(result.ResponseTimeMs)) / float64(totalChecks)
	a.HealthScore = int(chainHealth.HealthScore)
	a.ReputationMean = rep.Mean
	a.FeedbackCount = rep.Count
	a.Monitored = true
	a.LastChecked = time.Now()
	a.LastDecision = verdict
	a.LastReason = reason

	return a
}
