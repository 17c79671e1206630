package llm

// ValidationResult is the output of validateResponse (spec §4.6).
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	SchemaCompliant bool    `json:"schemaCompliant"`
	IsSpoofed      bool     `json:"isSpoofed"`
	Issues         []string `json:"issues"`
	Confidence     int      `json:"confidence"`
}

// HealthDecision is the output of makeHealthDecision (spec §4.6/§4.8).
type HealthDecision struct {
	Decision        string  `json:"decision"`
	Reason          string  `json:"reason"`
	SlashPercent    *int    `json:"slashPercent,omitempty"`
	FailureType     string  `json:"failureType"`
	AnomalyDetected bool    `json:"anomalyDetected"`
	AnomalyDetails  *string `json:"anomalyDetails,omitempty"`
}

// TrustNarrative is the output of generateTrustNarrative (spec §4.6).
type TrustNarrative struct {
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
	Recommendation string   `json:"recommendation"`
	RiskLevel      string   `json:"riskLevel"`
}

// OnboardingValidation is the output of validateOnboarding (spec §4.6).
type OnboardingValidation struct {
	IsValid             bool     `json:"isValid"`
	Issues              []string `json:"issues"`
	Suggestions         []string `json:"suggestions"`
	GeneratedDescription *string `json:"generatedDescription,omitempty"`
	DuplicateRisk       string   `json:"duplicateRisk"`
	ReadinessScore      int      `json:"readinessScore"`
}
