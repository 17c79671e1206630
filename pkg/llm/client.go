// Package llm is the structured-diagnostic collaborator (C6): four
// operations backed by one chat-completion call shape, with caching,
// retries, and safe defaults on exhaustion (spec §4.6, §7, §9).
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// CacheTTL is the standard cache lifetime for every operation (spec §4.6).
const CacheTTL = 300 * time.Second

// Cache is the subset of the response-cache store the LLM component needs.
// Backed by Redis in this implementation (see pkg/store), using native
// key expiry instead of a reader-checked deadline field.
type Cache interface {
	GetCached(ctx context.Context, key string) ([]byte, bool, error)
	SetCached(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// retryDelays implements spec §4.6's "up to 3 attempts with linear
// back-off (2s, 4s)".
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second}

// CacheObserver receives a cache hit/miss signal per call (spec's
// observability expansion — A2). Satisfied by *metrics.Metrics.
type CacheObserver interface {
	ObserveCacheResult(hit bool)
}

// Client is the C6 collaborator, backed by an OpenAI-compatible
// chat-completion endpoint.
type Client struct {
	api          *openai.Client
	model        string
	cache        Cache
	cacheTTL     time.Duration
	cacheMetrics CacheObserver
	logger       *slog.Logger
}

// WithCacheTTL overrides the default cache lifetime (CACHE_TTL_SEC).
// Non-positive values are ignored.
func (c *Client) WithCacheTTL(ttl time.Duration) *Client {
	if ttl > 0 {
		c.cacheTTL = ttl
	}
	return c
}

// WithMetrics attaches a cache-hit/miss observer and returns the same
// Client for chaining at construction time.
func (c *Client) WithMetrics(m CacheObserver) *Client {
	c.cacheMetrics = m
	return c
}

func (c *Client) observeCache(hit bool) {
	if c.cacheMetrics != nil {
		c.cacheMetrics.ObserveCacheResult(hit)
	}
}

// New builds a Client against the given API key and model name, talking to
// the default OpenAI endpoint.
func New(apiKey, model string, cache Cache) *Client {
	return NewWithBaseURL(apiKey, "", model, cache)
}

// NewWithBaseURL builds a Client against a custom OpenAI-compatible
// endpoint (self-hosted proxies, Azure-style gateways, or a test server).
// An empty baseURL falls back to the standard OpenAI API.
func NewWithBaseURL(apiKey, baseURL, model string, cache Cache) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		model:    model,
		cache:    cache,
		cacheTTL: CacheTTL,
		logger:   slog.Default().With("component", "llm"),
	}
}

// call implements spec §9's generic dispatch: one chat-completion round
// trip parameterized by operation (which fixes system prompt + schema)
// and a parser from raw JSON content into T.
func call[T any](ctx context.Context, c *Client, op operation, cacheKey, userContent string, parse func([]byte) (T, error), safeDefault func() T) (T, error) {
	spec := opTable[op]

	if cached, ok, err := c.cache.GetCached(ctx, cacheKey); err == nil && ok {
		if v, perr := parse(cached); perr == nil {
			c.observeCache(true)
			return v, nil
		}
	}
	c.observeCache(false)

	var lastErr error
	attempts := 1 + len(retryDelays)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		content, err := c.complete(ctx, spec, userContent)
		if err != nil {
			lastErr = err
			c.logger.Warn("llm call failed", "op", string(op), "attempt", attempt+1, "error", err)
			continue
		}

		v, perr := parse([]byte(content))
		if perr != nil {
			lastErr = fmt.Errorf("parse %s response: %w", op, perr)
			c.logger.Warn("llm response failed schema validation", "op", string(op), "attempt", attempt+1, "error", perr)
			continue
		}

		if err := c.cache.SetCached(ctx, cacheKey, []byte(content), c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache llm response", "op", string(op), "error", err)
		}
		return v, nil
	}

	c.logger.Warn("llm retries exhausted, using safe default", "op", string(op), "error", lastErr)
	return safeDefault(), nil
}

// complete issues one chat-completion request: the operation's stable
// system prompt first, the dynamic user content last — this ordering is a
// contract that lets the upstream provider cache the stable prefix.
func (c *Client) complete(ctx context.Context, spec opSpec, userContent string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		MaxTokens:   1024,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: spec.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   spec.name,
				Schema: spec.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// parseChecked builds a parser that unmarshals into T and then enforces
// the operation's output schema by hand: every required field must be
// present and every constrained field must pass check. A violation is
// returned as an error, which call treats as retryable (spec §4.6: "a
// parse that omits a required field or violates an enum is treated as a
// retryable failure").
func parseChecked[T any](required []string, check func(T) error) func([]byte) (T, error) {
	return func(raw []byte) (T, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return v, err
		}
		for _, f := range required {
			if _, ok := fields[f]; !ok {
				return v, fmt.Errorf("missing required field %q", f)
			}
		}
		if check != nil {
			if err := check(v); err != nil {
				return v, err
			}
		}
		return v, nil
	}
}

func inEnum(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
