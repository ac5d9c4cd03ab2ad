// Package llmgateway invokes external text models behind a single,
// retrying, credential-safe contract. Adapted from the teacher's
// internal/llm/resilient_client.go wrapping pattern, generalized from a
// single hardcoded provider to a static agent-to-model binding table, the
// way internal/review/factories.go binds AI config to a provider per org.
package llmgateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/redact"
	"github.com/livereview-cr/livereview-cr/internal/retry"
)

// CallConfig is the per-call configuration spec.md §4.A documents.
type CallConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

// DefaultCallConfig returns the documented defaults: temperature 0.1,
// max_tokens 4000, timeout_seconds 300.
func DefaultCallConfig() CallConfig {
	return CallConfig{Temperature: 0.1, MaxTokens: 4000, TimeoutSeconds: 300}
}

// Invoker is the narrow contract analyzers depend on, satisfied by
// *Gateway. Defined here so callers can substitute a fake in tests without
// constructing a real langchaingo backend.
type Invoker interface {
	Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string, cfg CallConfig) (string, error)
}

// BackendConfig describes one model backend: which langchaingo provider to
// construct and how to authenticate it.
type BackendConfig struct {
	Provider string // "googleai", "openai", "anthropic", "ollama"
	APIKey   string
	Model    string
	BaseURL  string // ollama / openai-compatible endpoints only
}

// Gateway is the LLM Gateway. Per spec.md §5 it is shared across analyzers
// and safe for concurrent calls: it owns no cross-call mutable state other
// than a request counter used to seed each call's backoff jitter.
type Gateway struct {
	// bindings maps agent_id to the backend that serves it. "" is the
	// required default entry; unknown agent IDs fall back to it.
	bindings map[string]llms.Model
	scrubber *redact.Scrubber
	counter  atomic.Uint64
}

// New builds a Gateway from a set of agent bindings. defaultBackend MUST be
// constructible; it is what unknown agent IDs resolve to.
func New(agentBindings map[string]BackendConfig, defaultBackend BackendConfig) (*Gateway, error) {
	g := &Gateway{
		bindings: make(map[string]llms.Model, len(agentBindings)+1),
		scrubber: redact.New(),
	}

	defaultModel, err := buildBackend(defaultBackend)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: building default backend: %w", err)
	}
	g.bindings[""] = defaultModel
	g.registerSecret(defaultBackend.APIKey)

	for agentID, cfg := range agentBindings {
		model, err := buildBackend(cfg)
		if err != nil {
			return nil, fmt.Errorf("llmgateway: building backend for agent %q: %w", agentID, err)
		}
		g.bindings[agentID] = model
		g.registerSecret(cfg.APIKey)
	}

	return g, nil
}

func (g *Gateway) registerSecret(secret string) {
	if secret != "" {
		g.scrubber.Add(secret)
	}
}

func buildBackend(cfg BackendConfig) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "googleai", "gemini", "google":
		opts := []googleai.Option{
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		}
		return googleai.New(context.Background(), opts...)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		}
		return anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}
}

// Invoke issues one request to the model bound to agentID (or the default,
// for unknown agent IDs), retrying transport/rate-limit failures per
// retry.LLMGatewayConfig. The returned text is the raw model reply; callers
// needing structured findings run it through ExtractJSONArray.
func (g *Gateway) Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string, cfg CallConfig) (string, error) {
	model, ok := g.bindings[agentID]
	if !ok {
		model = g.bindings[""]
	}

	if cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	callOpts := []llms.CallOption{}
	if cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}

	// Each call seeds its own jitter source off the shared atomic counter
	// rather than sharing a *rand.Rand, which is unsafe for concurrent use.
	seed := int64(g.counter.Add(1))
	jitterSource := rand.New(rand.NewSource(seed))

	var responseText string
	result := retry.Do(ctx, retry.LLMGatewayConfig(), g.shouldRetry, jitterSource, func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return classifyLLMError(err)
		}
		if len(resp.Choices) == 0 {
			return &apperrors.LLMError{Kind: apperrors.LLMParse, Message: "model returned no choices"}
		}
		responseText = resp.Choices[0].Content
		return nil
	})

	if !result.Success {
		if llmErr, ok := result.LastError.(*apperrors.LLMError); ok {
			return "", g.scrubber.RedactError(llmErr)
		}
		wrapped := &apperrors.LLMError{Kind: apperrors.LLMTransport, Message: "invoke failed", Cause: result.LastError}
		return "", g.scrubber.RedactError(wrapped)
	}

	return responseText, nil
}

// shouldRetry classifies a failed attempt's error for retry.Do. Only
// transport and rate_limited LLMError kinds are retried; everything else
// (auth, parse, timeout, and any non-LLMError) stops immediately.
func (g *Gateway) shouldRetry(err error) bool {
	llmErr, ok := err.(*apperrors.LLMError)
	if !ok {
		return false
	}
	return llmErr.Retryable()
}

// classifyLLMError maps an opaque backend error into a typed LLMError.
// langchaingo backends don't expose a structured error taxonomy, so this
// falls back to message sniffing the way the teacher's retry.IsRetryableError
// did, but produces a stable typed Kind instead of a bare bool.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "context deadline"):
		return &apperrors.LLMError{Kind: apperrors.LLMTimeout, Message: "request timed out", Cause: err}
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return &apperrors.LLMError{Kind: apperrors.LLMRateLimited, Message: "rate limited", Cause: err}
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return &apperrors.LLMError{Kind: apperrors.LLMAuth, Message: "authentication failed", Cause: err}
	default:
		return &apperrors.LLMError{Kind: apperrors.LLMTransport, Message: "transport failure", Cause: err}
	}
}
