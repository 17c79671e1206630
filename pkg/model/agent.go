// Package model holds the data shapes shared across the monitoring
// pipeline: agent records, probe samples, health events, and verdicts.
package model

import "time"

// Decision is the verdict produced by the decision engine for one cycle.
type Decision string

const (
	DecisionHealthy    Decision = "healthy"
	DecisionSuspicious Decision = "suspicious"
	DecisionCritical   Decision = "critical"
)

// FailureType classifies why a non-healthy verdict occurred.
type FailureType string

const (
	FailureNone     FailureType = "none"
	FailureTimeout  FailureType = "timeout"
	FailureError    FailureType = "error"
	FailureSpoofed  FailureType = "spoofed"
	FailureDegraded FailureType = "degraded"
	FailureUnknown  FailureType = "unknown"
)

// Trend is the directional classification of an agent's recent latency.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// ProbeSample is one entry in an agent's bounded response-history window.
type ProbeSample struct {
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Success        bool      `json:"success"`
}

// MaxProbeHistory is the bound on the number of samples kept per agent
// (spec §3: "bounded sequence of the most recent 20 samples").
const MaxProbeHistory = 20

// Agent is the full per-agent record owned by the state store.
type Agent struct {
	AgentID string `json:"agentId"`

	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Endpoint    string `json:"endpoint"`
	ImageURL    string `json:"imageUrl"`
	MetadataURI string `json:"metadataUri"`
	Card        *Card  `json:"card,omitempty"`

	HealthScore        int     `json:"healthScore"`
	ConsecutiveFailure int     `json:"consecutiveFailures"`
	UptimePercent      float64 `json:"uptimePercent"`
	AvgResponseTimeMs  float64 `json:"avgResponseTimeMs"`
	TotalChecks        int64   `json:"totalChecks"`
	SuccessfulChecks   int64   `json:"successfulChecks"`
	ReputationMean     float64 `json:"reputationMean"`
	FeedbackCount      int64   `json:"feedbackCount"`

	Monitored    bool      `json:"monitored"`
	LastChecked  time.Time `json:"lastChecked"`
	LastDecision Decision  `json:"lastDecision"`
	LastReason   string    `json:"lastReason"`

	ProbeHistory []ProbeSample `json:"probeHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card is the agent's metadata descriptor resolved via the content-addressed
// gateway cascade (spec §4.4, §6).
type Card struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Services     []CardService  `json:"services,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Image        string         `json:"image,omitempty"`
}

// CardService is one named endpoint advertised in a Card.
type CardService struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// HealthEvent is one append-only row in the per-agent event log.
type HealthEvent struct {
	ID               int64       `json:"id"`
	AgentID          string      `json:"agentId"`
	Decision         Decision    `json:"decision"`
	Reason           string      `json:"reason"`
	HealthScore      int         `json:"healthScore"`
	ResponseTimeMs   int64       `json:"responseTimeMs"`
	Success          bool        `json:"success"`
	FailureType      FailureType `json:"failureType,omitempty"`
	AnomalyDetected  bool        `json:"anomalyDetected"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// SuspiciousCounter is the per-agent slash debouncer state (spec §3/§4.8).
type SuspiciousCounter struct {
	AgentID       string     `json:"agentId"`
	Consecutive   int        `json:"consecutive"`
	TotalSeen     int64      `json:"totalSeen"`
	LastAt        time.Time  `json:"lastAt"`
	LastSlashedAt *time.Time `json:"lastSlashedAt,omitempty"`
}

// Trends is the output of the trend analyzer (spec §4.5).
type Trends struct {
	AvgTime     float64 `json:"avgTime"`
	StdDev      float64 `json:"stdDev"`
	RecentTrend Trend   `json:"recentTrend"`
}

// ChainHealthData mirrors HealthMonitor.getHealthData (spec §6).
type ChainHealthData struct {
	HealthScore          uint8
	LastCheckTimestamp    int64
	TotalChecks           uint64
	SuccessfulChecks      uint64
	FailedChecks          uint64
	TotalResponseTime     uint64
	ConsecutiveFailures   uint64
	IsMonitored           bool
	StakedAmount          uint64
	Endpoint              string
}

// ReputationSummary mirrors ReputationRegistry.getSummary (spec §6/§4.7).
type ReputationSummary struct {
	Mean  float64
	Count int64
}
