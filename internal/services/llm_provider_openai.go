package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/utils"
	"github.com/platformbuilds/hindsight/pkg/resilience"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider generates summaries through the OpenAI chat completions API.
type OpenAIProvider struct {
	endpoint string
	apiKey   string
	model    string
	logger   logging.Logger
	client   *http.Client
}

func NewOpenAIProvider(cfg config.LLMConfig, log logging.Logger) (*OpenAIProvider, error) {
	apiKey := resolveEnvVar(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	return &OpenAIProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    cfg.Model,
		logger:   log,
		client:   &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

// GenerateSummary calls the chat completions endpoint with a single user
// message.
func (p *OpenAIProvider) GenerateSummary(ctx context.Context, prompt string) (*LLMResponse, error) {
	p.logger.Debug("calling OpenAI API", "model", p.model)

	reqBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", utils.RedactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		p.logger.Error("OpenAI API error", "status", resp.StatusCode, "body", utils.Redact(string(body)))
		statusErr := fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return &LLMResponse{
		Summary:     result.Choices[0].Message.Content,
		TokensUsed:  result.Usage.TotalTokens,
		Model:       p.model,
		Provider:    "openai",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// GetProviderName returns "openai".
func (p *OpenAIProvider) GetProviderName() string {
	return "openai"
}

// GetModelName returns the OpenAI model name.
func (p *OpenAIProvider) GetModelName() string {
	return p.model
}
