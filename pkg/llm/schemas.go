package llm

import "encoding/json"

// operation identifies one of the four LLM calls the pipeline makes. Each
// has a fixed system prompt and output schema, held in a static table per
// spec §9's "one generic function ... invoked with four pre-built
// (prompt, schema) pairs" note.
type operation string

const (
	opValidateResponse     operation = "validateResponse"
	opMakeHealthDecision   operation = "makeHealthDecision"
	opGenerateNarrative    operation = "generateTrustNarrative"
	opValidateOnboarding   operation = "validateOnboarding"
)

type opSpec struct {
	name         string
	systemPrompt string
	schema       json.RawMessage
}

func rawSchema(s string) json.RawMessage { return json.RawMessage(s) }

var opTable = map[operation]opSpec{
	opValidateResponse: {
		name: "validate_response",
		systemPrompt: "You are a response validator for an autonomous agent health " +
			"oracle. Given an agent endpoint, the raw response body it returned, " +
			"and its declared metadata card, decide whether the response is a " +
			"well-formed, non-spoofed health reply. Respond only with the " +
			"requested JSON.",
		schema: rawSchema(`{
			"type":"object",
			"properties":{
				"isValid":{"type":"boolean"},
				"schemaCompliant":{"type":"boolean"},
				"isSpoofed":{"type":"boolean"},
				"issues":{"type":"array","items":{"type":"string"}},
				"confidence":{"type":"integer","minimum":0,"maximum":100}
			},
			"required":["isValid","schemaCompliant","isSpoofed","issues","confidence"]
		}`),
	},
	opMakeHealthDecision: {
		name: "make_health_decision",
		systemPrompt: "You are the decision core of an agent trust oracle. Given " +
			"a probe outcome, on-chain health counters, trend statistics, an " +
			"optional response validation, and the agent's metadata card, decide " +
			"whether the agent is healthy, suspicious, or critical this cycle. " +
			"Respond only with the requested JSON.",
		schema: rawSchema(`{
			"type":"object",
			"properties":{
				"decision":{"type":"string","enum":["healthy","suspicious","critical"]},
				"reason":{"type":"string"},
				"slashPercent":{"type":["integer","null"]},
				"failureType":{"type":"string","enum":["none","timeout","error","spoofed","degraded","unknown"]},
				"anomalyDetected":{"type":"boolean"},
				"anomalyDetails":{"type":["string","null"]}
			},
			"required":["decision","reason","failureType","anomalyDetected"]
		}`),
	},
	opGenerateNarrative: {
		name: "generate_trust_narrative",
		systemPrompt: "You write short trust narratives for an agent directory. " +
			"Given an agent's health score, reputation summary, and its most " +
			"recent cached decision, produce a human-readable assessment. " +
			"Respond only with the requested JSON.",
		schema: rawSchema(`{
			"type":"object",
			"properties":{
				"summary":{"type":"string"},
				"strengths":{"type":"array","items":{"type":"string"}},
				"concerns":{"type":"array","items":{"type":"string"}},
				"recommendation":{"type":"string","enum":["trust","verify","caution","avoid"]},
				"riskLevel":{"type":"string","enum":["low","medium","high","critical"]}
			},
			"required":["summary","strengths","concerns","recommendation","riskLevel"]
		}`),
	},
	opValidateOnboarding: {
		name: "validate_onboarding",
		systemPrompt: "You vet new agent registrations before they are admitted " +
			"to the monitoring pool. Given the declared name, description, " +
			"endpoint, a reachability probe, and declared capabilities, assess " +
			"whether the submission is coherent and not a likely duplicate or " +
			"fabrication. Respond only with the requested JSON.",
		schema: rawSchema(`{
			"type":"object",
			"properties":{
				"isValid":{"type":"boolean"},
				"issues":{"type":"array","items":{"type":"string"}},
				"suggestions":{"type":"array","items":{"type":"string"}},
				"generatedDescription":{"type":["string","null"]},
				"duplicateRisk":{"type":"string","enum":["none","low","medium","high"]},
				"readinessScore":{"type":"integer","minimum":0,"maximum":100}
			},
			"required":["isValid","issues","suggestions","duplicateRisk","readinessScore"]
		}`),
	},
}
