package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/utils"
)

const anthropicMaxTokens = 1024

// AnthropicProvider generates summaries through the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	logger logging.Logger
}

func NewAnthropicProvider(cfg config.LLMConfig, log logging.Logger) (*AnthropicProvider, error) {
	apiKey := resolveEnvVar(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		// The enrichment façade owns retries; the SDK must not stack its own.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		logger: log,
	}, nil
}

// GenerateSummary sends the prompt as a single user message.
func (p *AnthropicProvider) GenerateSummary(ctx context.Context, prompt string) (*LLMResponse, error) {
	p.logger.Debug("calling Anthropic API", "model", p.model)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %s", utils.RedactError(err))
	}

	var parts []string
	for i := range msg.Content {
		block := &msg.Content[i]
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("Anthropic returned no text content")
	}

	totalTokens := int(msg.Usage.InputTokens + msg.Usage.OutputTokens)

	return &LLMResponse{
		Summary:     strings.Join(parts, ""),
		TokensUsed:  totalTokens,
		Model:       p.model,
		Provider:    "anthropic",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// GetProviderName returns "anthropic".
func (p *AnthropicProvider) GetProviderName() string {
	return "anthropic"
}

// GetModelName returns the Anthropic model name.
func (p *AnthropicProvider) GetModelName() string {
	return p.model
}
