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

const defaultOllamaEndpoint = "http://localhost:11434/api/generate"

// OllamaProvider generates summaries through a local Ollama instance.
type OllamaProvider struct {
	endpoint string
	model    string
	logger   logging.Logger
	client   *http.Client
}

func NewOllamaProvider(cfg config.LLMConfig, log logging.Logger) (*OllamaProvider, error) {
	endpoint := resolveEnvVar(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	return &OllamaProvider{
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   log,
		client:   &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

// GenerateSummary calls the Ollama generate API in non-streaming mode.
func (p *OllamaProvider) GenerateSummary(ctx context.Context, prompt string) (*LLMResponse, error) {
	p.logger.Debug("calling Ollama API", "model", p.model, "endpoint", p.endpoint)

	reqBody := map[string]interface{}{
		"model":  p.model,
		"prompt": prompt,
		"stream": false,
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

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Ollama API error: %s", utils.RedactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		p.logger.Error("Ollama API error", "status", resp.StatusCode, "body", utils.Redact(string(body)))
		statusErr := fmt.Errorf("Ollama API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	var result struct {
		Response string `json:"response"`
		Context  []int  `json:"context"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Response == "" {
		return nil, fmt.Errorf("Ollama returned empty response")
	}

	// Ollama does not always report token counts; estimate from lengths.
	tokensUsed := len(result.Context)
	if tokensUsed == 0 {
		tokensUsed = len(prompt)/4 + len(result.Response)/4
	}

	return &LLMResponse{
		Summary:     result.Response,
		TokensUsed:  tokensUsed,
		Model:       p.model,
		Provider:    "ollama",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// GetProviderName returns "ollama".
func (p *OllamaProvider) GetProviderName() string {
	return "ollama"
}

// GetModelName returns the Ollama model name.
func (p *OllamaProvider) GetModelName() string {
	return p.model
}
