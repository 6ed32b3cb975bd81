package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// ModelRequest is one chat-completion call.
type ModelRequest struct {
	Model            string
	SystemPrompt     string
	UserPrompt       string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ModelResponse is the raw text output of a completion call.
type ModelResponse struct {
	Content     string
	TotalTokens int64
}

// ModelProvider is a single language-model backend. Implementations must
// translate backend failures into the typed errors in errors.go so the
// chain can decide between backoff, model substitution, and fallthrough.
type ModelProvider interface {
	Name() string
	Models() []string // fallback order, most capable first
	Complete(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// --- Anthropic ---

type AnthropicProvider struct {
	client anthropic.Client
	models []string
}

func NewAnthropicProvider(apiKey string, models []string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		models: models,
	}
}

func (p *AnthropicProvider) Name() string     { return "anthropic" }
func (p *AnthropicProvider) Models() []string { return p.models }

func (p *AnthropicProvider) Complete(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return ModelResponse{}, classifyStatus(p.Name(), req.Model, apierr.StatusCode, err)
		}
		return ModelResponse{}, &NetworkError{Provider: p.Name(), Err: err}
	}

	usage := message.Usage.InputTokens + message.Usage.OutputTokens
	for _, block := range message.Content {
		if block.Type == "text" {
			return ModelResponse{Content: block.Text, TotalTokens: usage}, nil
		}
	}
	return ModelResponse{}, &ParseError{Detail: "no text content in Anthropic response"}
}

// --- OpenAI ---

type OpenAIProvider struct {
	client *openai.Client
	models []string
}

func NewOpenAIProvider(apiKey string, models []string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		models: models,
	}
}

func (p *OpenAIProvider) Name() string     { return "openai" }
func (p *OpenAIProvider) Models() []string { return p.models }

func (p *OpenAIProvider) Complete(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature:      float32(req.Temperature),
		MaxTokens:        req.MaxTokens,
		TopP:             float32(req.TopP),
		FrequencyPenalty: float32(req.FrequencyPenalty),
		PresencePenalty:  float32(req.PresencePenalty),
	})
	if err != nil {
		var apierr *openai.APIError
		if errors.As(err, &apierr) {
			return ModelResponse{}, classifyStatus(p.Name(), req.Model, apierr.HTTPStatusCode, err)
		}
		return ModelResponse{}, &NetworkError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return ModelResponse{}, &ParseError{Detail: "no choices in OpenAI response"}
	}
	return ModelResponse{
		Content:     resp.Choices[0].Message.Content,
		TotalTokens: int64(resp.Usage.TotalTokens),
	}, nil
}

// classifyStatus maps an HTTP status from a provider into the typed error
// taxonomy. Unrecognized statuses propagate as plain errors (non-retryable).
func classifyStatus(provider, model string, status int, err error) error {
	switch status {
	case 401:
		return &AuthenticationError{Provider: provider, Err: err}
	case 403:
		return &AccessDeniedError{Provider: provider, Model: model, Err: err}
	case 404:
		return &ModelNotFoundError{Provider: provider, Model: model, Err: err}
	case 429:
		return &RateLimitError{Provider: provider, Err: err}
	case 408, 500, 502, 503, 504, 529:
		return &NetworkError{Provider: provider, Err: err}
	default:
		return fmt.Errorf("%s request failed (status %d): %w", provider, status, err)
	}
}

// --- Affinity ---

// ModelAffinity remembers the last model that successfully served each
// provider so subsequent calls try it first. Soft preference only.
type ModelAffinity struct {
	mu   sync.Mutex
	last map[string]string // provider name -> model
}

func NewModelAffinity() *ModelAffinity {
	return &ModelAffinity{last: make(map[string]string)}
}

func (a *ModelAffinity) Remember(provider, model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last[provider] = model
}

// Preferred returns the provider's model list with the last successful
// model moved to the front.
func (a *ModelAffinity) Preferred(provider string, models []string) []string {
	a.mu.Lock()
	lastGood := a.last[provider]
	a.mu.Unlock()
	if lastGood == "" {
		return models
	}
	out := make([]string, 0, len(models))
	out = append(out, lastGood)
	for _, m := range models {
		if m != lastGood {
			out = append(out, m)
		}
	}
	return out
}

// --- Chain ---

// InvokeResult carries the winning response plus which backend served it
// and how many backoff retries it took.
type InvokeResult struct {
	Content     string
	Provider    string
	Model       string
	Retries     int
	TotalTokens int64
}

// ProviderChain tries providers in priority order. Within one provider it
// retries rate-limit and network errors with exponential backoff plus
// jitter, substitutes the next model on access/model errors, and falls
// through to the next provider on auth failures or model exhaustion. Any
// other error propagates immediately.
type ProviderChain struct {
	providers []ModelProvider
	affinity  *ModelAffinity
	logger    *slog.Logger

	backoffBase time.Duration
	backoffMax  time.Duration

	// Seams for tests: sleeping and jitter.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func NewProviderChain(cfg Config, providers []ModelProvider, affinity *ModelAffinity, logger *slog.Logger) *ProviderChain {
	if affinity == nil {
		affinity = NewModelAffinity()
	}
	return &ProviderChain{
		providers:   providers,
		affinity:    affinity,
		logger:      logger,
		backoffBase: time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		backoffMax:  time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		sleep:       sleepCtx,
		jitter:      rand.Float64,
	}
}

// Invoke runs one completion through the chain. maxRetries is the backoff
// budget per provider; model substitutions do not consume it.
func (c *ProviderChain) Invoke(ctx context.Context, req ModelRequest, maxRetries int) (InvokeResult, error) {
	if len(c.providers) == 0 {
		return InvokeResult{}, fmt.Errorf("no model providers configured")
	}

	var attempted []string
	var lastErr error
	totalRetries := 0

	for _, provider := range c.providers {
		models := c.affinity.Preferred(provider.Name(), provider.Models())
		modelIdx := 0
		retries := 0

		for modelIdx < len(models) {
			call := req
			call.Model = models[modelIdx]
			attempted = appendAttempt(attempted, provider.Name(), call.Model)

			resp, err := provider.Complete(ctx, call)
			if err == nil {
				c.affinity.Remember(provider.Name(), call.Model)
				c.logger.Info("model call succeeded",
					"component", "provider_chain", "provider", provider.Name(),
					"model", call.Model, "retries", totalRetries+retries, "tokens", resp.TotalTokens)
				return InvokeResult{
					Content:     resp.Content,
					Provider:    provider.Name(),
					Model:       call.Model,
					Retries:     totalRetries + retries,
					TotalTokens: resp.TotalTokens,
				}, nil
			}
			lastErr = err

			switch {
			case needsModelSubstitution(err):
				c.logger.Warn("model unavailable, substituting",
					"component", "provider_chain", "provider", provider.Name(),
					"model", call.Model, "error", err)
				modelIdx++

			case isRetryable(err) && retries < maxRetries:
				delay := c.backoffDelay(retries)
				retries++
				c.logger.Warn("retryable model error, backing off",
					"component", "provider_chain", "provider", provider.Name(),
					"model", call.Model, "retry", retries, "delay", delay, "error", err)
				if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
					return InvokeResult{}, sleepErr
				}

			case isAuthFailure(err):
				// Fall through to the next provider; surfaced only if every
				// provider fails.
				c.logger.Warn("provider auth failure, falling through",
					"component", "provider_chain", "provider", provider.Name(), "error", err)
				modelIdx = len(models)

			case isRetryable(err):
				// Budget exhausted on a retryable error: next provider.
				c.logger.Warn("retry budget exhausted",
					"component", "provider_chain", "provider", provider.Name(),
					"model", call.Model, "retries", retries, "error", err)
				modelIdx = len(models)

			default:
				return InvokeResult{}, err
			}
		}
		totalRetries += retries
	}

	return InvokeResult{}, &ProvidersExhaustedError{Attempted: attempted, LastErr: lastErr}
}

// backoffDelay doubles the base each attempt up to the cap, then adds up to
// 50% random jitter.
func (c *ProviderChain) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase << uint(attempt)
	if delay > c.backoffMax || delay <= 0 {
		delay = c.backoffMax
	}
	jitter := time.Duration(c.jitter() * float64(delay) / 2)
	return delay + jitter
}

func isAuthFailure(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

func appendAttempt(attempted []string, provider, model string) []string {
	key := provider + "/" + model
	if len(attempted) > 0 && attempted[len(attempted)-1] == key {
		return attempted
	}
	return append(attempted, key)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildProviders constructs the configured backends in priority order.
func BuildProviders(cfg Config) []ModelProvider {
	var out []ModelProvider
	for _, name := range cfg.Providers {
		switch name {
		case "anthropic":
			out = append(out, NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModels))
		case "openai":
			out = append(out, NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModels))
		}
	}
	return out
}
