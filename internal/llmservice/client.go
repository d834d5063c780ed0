package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gas-assistant/internal/config"
	"gas-assistant/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator is the single capability every agent needs from a model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewModel builds a langchaingo model for the configured provider. model
// overrides cfg.Model (for Azure it is the deployment name).
func NewModel(cfg config.LLMConfig, model string) (llms.Model, error) {
	if model == "" {
		model = cfg.Model
	}
	log.Debug().Str("provider", cfg.Provider).Str("model", model).Str("base_url", cfg.BaseURL).Msg("Creating LLM client")

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(model),
		)
	case "azure":
		return openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(cfg.Key),
			openai.WithAPIVersion(cfg.APIVersion),
			openai.WithModel(model),
		)
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Client calls a model with a fixed temperature. Each attempt gets its own
// deadline; an expired deadline is retried up to retries times while the
// caller's context is still alive.
type Client struct {
	model       llms.Model
	name        string
	temperature float64
	timeout     time.Duration
	retries     int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithName sets the name used in log lines.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

func NewClient(model llms.Model, temperature float64, opts ...Option) *Client {
	c := &Client{
		model:       model,
		name:        "llm",
		temperature: temperature,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig wires a Client from the llm section of the configuration.
func FromConfig(cfg config.LLMConfig, model, name string, temperature float64) (*Client, error) {
	m, err := NewModel(cfg, model)
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", name, err)
	}
	opts := []Option{WithName(name), WithTimeout(cfg.Timeout)}
	if cfg.Retries != nil {
		opts = append(opts, WithRetries(*cfg.Retries))
	}
	return NewClient(m, temperature, opts...), nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		var out string
		out, err = c.call(ctx, prompt)
		if err == nil {
			metrics.LLMCalls.WithLabelValues("ok").Inc()
			return out, nil
		}
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			break
		}
		metrics.LLMCalls.WithLabelValues("timeout").Inc()
		log.Warn().Str("client", c.name).Int("attempt", attempt+1).Dur("timeout", c.timeout).Msg("LLM call timed out")
	}
	metrics.LLMCalls.WithLabelValues("error").Inc()
	return "", fmt.Errorf("%s: %w", c.name, err)
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() { metrics.LLMDuration.Observe(time.Since(start).Seconds()) }()

	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
}
