package config

import "time"

const (
	// DefaultCycleInterval is how often the scheduler ticks (spec.md §4.1).
	DefaultCycleInterval = 600 * time.Second

	// DefaultCacheTTL is the LLM response cache lifetime (spec.md §3).
	DefaultCacheTTL = 300 * time.Second

	// DefaultLLMModel is used when the environment does not pin one.
	DefaultLLMModel = "gpt-4o-mini"

	// DefaultHTTPAddr is where the read-only trust API listens.
	DefaultHTTPAddr = ":8080"

	// DefaultMetadataGateway is tried before the public IPFS gateway cascade.
	DefaultMetadataGateway = "https://ipfs.io"
)

// PublicMetadataGateways is the fixed-order cascade used by the metadata
// resolver (C4) after the configured primary gateway. Order matters: it is
// a contract with spec.md §4.4/§6 ("two or three well-known public gateways").
var PublicMetadataGateways = []string{
	"https://ipfs.io",
	"https://cloudflare-ipfs.com",
	"https://dweb.link",
}
