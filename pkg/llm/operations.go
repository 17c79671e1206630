package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// ValidateResponse implements spec §4.6's validateResponse. Cache key:
// "response:<endpoint>:<body-hash>".
func (c *Client) ValidateResponse(ctx context.Context, endpoint string, body []byte, card any) (ValidationResult, error) {
	key := fmt.Sprintf("response:%s:%s", endpoint, fingerprint(string(body)))

	input, _ := json.Marshal(map[string]any{
		"endpoint": endpoint,
		"response": string(body),
		"card":     card,
	})

	return call(ctx, c, opValidateResponse, key, string(input), parseValidationResult, func() ValidationResult {
		return ValidationResult{IsValid: true, SchemaCompliant: true, IsSpoofed: false, Issues: []string{}, Confidence: 50}
	})
}

var parseValidationResult = parseChecked(
	[]string{"isValid", "schemaCompliant", "isSpoofed", "issues", "confidence"},
	func(v ValidationResult) error {
		if v.Confidence < 0 || v.Confidence > 100 {
			return fmt.Errorf("confidence %d outside [0,100]", v.Confidence)
		}
		return nil
	})

// MakeHealthDecisionInput carries the per-agent context for a single
// makeHealthDecision call.
type MakeHealthDecisionInput struct {
	AgentID        string
	Endpoint       string
	Success        bool
	ResponseTimeMs int64
	OnChainHealth  any
	Trends         any
	Anomalous      bool
	Validation     *ValidationResult
	Card           any
}

// MakeHealthDecision implements spec §4.6's makeHealthDecision. Cache key:
// "health:<agentId>:<success>:<responseTimeMs>" — intentionally includes
// responseTimeMs, which makes consecutive probes of differing latency miss
// each other (spec §9(c), preserved as-is).
func (c *Client) MakeHealthDecision(ctx context.Context, in MakeHealthDecisionInput) (HealthDecision, error) {
	key := fmt.Sprintf("health:%s:%t:%d", in.AgentID, in.Success, in.ResponseTimeMs)

	input, _ := json.Marshal(map[string]any{
		"agentId":          in.AgentID,
		"endpoint":         in.Endpoint,
		"success":          in.Success,
		"responseTimeMs":   in.ResponseTimeMs,
		"onChainHealth":    in.OnChainHealth,
		"trends":           in.Trends,
		"anomalySuspected": in.Anomalous,
		"validation":       in.Validation,
		"card":             in.Card,
	})

	return call(ctx, c, opMakeHealthDecision, key, string(input), parseHealthDecision, func() HealthDecision {
		decision := "suspicious"
		failureType := "error"
		if in.Success {
			decision = "healthy"
			failureType = "none"
		}
		return HealthDecision{
			Decision:    decision,
			Reason:      safeDefaultReason(in.Success),
			FailureType: failureType,
		}
	})
}

var parseHealthDecision = parseChecked(
	[]string{"decision", "reason", "failureType", "anomalyDetected"},
	func(v HealthDecision) error {
		if !inEnum(v.Decision, "healthy", "suspicious", "critical") {
			return fmt.Errorf("decision %q outside enum", v.Decision)
		}
		// failureType may be JSON null, which decodes to "".
		if !inEnum(v.FailureType, "none", "timeout", "error", "spoofed", "degraded", "unknown", "") {
			return fmt.Errorf("failureType %q outside enum", v.FailureType)
		}
		return nil
	})

func safeDefaultReason(success bool) string {
	if success {
		return "probe succeeded; llm diagnostic unavailable"
	}
	return "probe failed; llm diagnostic unavailable"
}

// GenerateTrustNarrative implements spec §4.6's generateTrustNarrative.
// Cache key: "narrative:<agentId>".
func (c *Client) GenerateTrustNarrative(ctx context.Context, agentID string, health, reputation any, lastCachedDecision string) (TrustNarrative, error) {
	key := fmt.Sprintf("narrative:%s", agentID)

	input, _ := json.Marshal(map[string]any{
		"agentId":            agentID,
		"health":             health,
		"reputation":         reputation,
		"lastCachedDecision": lastCachedDecision,
	})

	return call(ctx, c, opGenerateNarrative, key, string(input), parseTrustNarrative, func() TrustNarrative {
		return TrustNarrative{
			Summary:        "unavailable",
			Strengths:      []string{},
			Concerns:       []string{"analysis unavailable"},
			Recommendation: "verify",
			RiskLevel:      "medium",
		}
	})
}

var parseTrustNarrative = parseChecked(
	[]string{"summary", "strengths", "concerns", "recommendation", "riskLevel"},
	func(v TrustNarrative) error {
		if !inEnum(v.Recommendation, "trust", "verify", "caution", "avoid") {
			return fmt.Errorf("recommendation %q outside enum", v.Recommendation)
		}
		if !inEnum(v.RiskLevel, "low", "medium", "high", "critical") {
			return fmt.Errorf("riskLevel %q outside enum", v.RiskLevel)
		}
		return nil
	})

// ValidateOnboardingInput carries the registration-time context.
type ValidateOnboardingInput struct {
	Name         string
	Description  string
	Endpoint     string
	Reachability any
	Capabilities []string
}

// ValidateOnboarding implements spec §4.6's validateOnboarding. Cache key:
// "onboard:<name>:<endpoint>".
func (c *Client) ValidateOnboarding(ctx context.Context, in ValidateOnboardingInput) (OnboardingValidation, error) {
	key := fmt.Sprintf("onboard:%s:%s", in.Name, in.Endpoint)

	input, _ := json.Marshal(map[string]any{
		"name":         in.Name,
		"description":  in.Description,
		"endpoint":     in.Endpoint,
		"reachability": in.Reachability,
		"capabilities": in.Capabilities,
	})

	return call(ctx, c, opValidateOnboarding, key, string(input), parseOnboardingValidation, func() OnboardingValidation {
		return OnboardingValidation{
			IsValid:        true,
			Issues:         []string{},
			Suggestions:    []string{},
			DuplicateRisk:  "none",
			ReadinessScore: 50,
		}
	})
}

var parseOnboardingValidation = parseChecked(
	[]string{"isValid", "issues", "suggestions", "duplicateRisk", "readinessScore"},
	func(v OnboardingValidation) error {
		if !inEnum(v.DuplicateRisk, "none", "low", "medium", "high") {
			return fmt.Errorf("duplicateRisk %q outside enum", v.DuplicateRisk)
		}
		if v.ReadinessScore < 0 || v.ReadinessScore > 100 {
			return fmt.Errorf("readinessScore %d outside [0,100]", v.ReadinessScore)
		}
		return nil
	})
