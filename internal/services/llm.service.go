package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/internal/utils"
	"github.com/platformbuilds/hindsight/pkg/logger"
	"github.com/platformbuilds/hindsight/pkg/resilience"
)

// LLMProvider generates a plain-language incident summary from a prompt.
type LLMProvider interface {
	GenerateSummary(ctx context.Context, prompt string) (*LLMResponse, error)
	GetProviderName() string
	GetModelName() string
}

// LLMResponse carries the generated summary plus provider metadata.
type LLMResponse struct {
	Summary     string    `json:"summary"`
	TokensUsed  int       `json:"tokensUsed"`
	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// NewLLMProvider selects a provider implementation from configuration.
func NewLLMProvider(cfg config.LLMConfig, log logging.Logger) (LLMProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, log)
	case "anthropic":
		return NewAnthropicProvider(cfg, log)
	case "ollama":
		return NewOllamaProvider(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// LLMService wraps a provider with a retry loop and a circuit breaker.
// Enrichment is strictly best-effort: a dead provider degrades the analysis
// (metadata keeps llm_analysis=false) but never fails the pipeline.
type LLMService struct {
	provider LLMProvider
	retrier  *resilience.Retrier
	breaker  *resilience.Breaker
	timeout  time.Duration
	logger   logging.Logger
}

// NewLLMService builds the enrichment façade. The core logger is required
// because the resilience primitives log through pkg/logger directly.
func NewLLMService(cfg config.LLMConfig, coreLog logger.Logger) (*LLMService, error) {
	log := logging.FromCoreLogger(coreLog)

	provider, err := NewLLMProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	breakerCfg := resilience.DefaultBreakerConfig("llm_" + cfg.Provider)
	if cfg.Breaker.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = uint32(cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.CooldownSeconds > 0 {
		breakerCfg.Cooldown = cfg.Breaker.Cooldown()
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		breakerCfg.SuccessThreshold = uint32(cfg.Breaker.SuccessThreshold)
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LLMService{
		provider: provider,
		retrier:  resilience.NewRetrier(retryCfg, coreLog),
		breaker:  resilience.NewBreaker(breakerCfg, coreLog),
		timeout:  timeout,
		logger:   log,
	}, nil
}

// GetProviderName returns the configured provider name.
func (s *LLMService) GetProviderName() string {
	return s.provider.GetProviderName()
}

// GetModelName returns the configured model name.
func (s *LLMService) GetModelName() string {
	return s.provider.GetModelName()
}

// EnrichAnalysis asks the provider for a plain-language summary of the
// analysis and folds it into the result metadata. On any failure the result
// is left untouched (llm_analysis stays false) and the error is returned
// for logging only.
func (s *LLMService) EnrichAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("nil analysis result")
	}

	prompt := buildIncidentPrompt(result)
	provider := s.provider.GetProviderName()

	var response *LLMResponse
	start := time.Now()

	err := s.retrier.Do(ctx, "llm_generate", func(ctx context.Context) error {
		callErr := s.breaker.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			resp, genErr := s.provider.GenerateSummary(callCtx, prompt)
			if genErr != nil {
				return genErr
			}
			response = resp
			return nil
		})
		if resilience.IsBreakerOpen(callErr) {
			monitoring.RecordLLMRejected(provider)
			return resilience.Permanent(callErr)
		}
		return callErr
	})

	monitoring.RecordLLMCall(provider, time.Since(start), err == nil)

	if err != nil {
		s.logger.Warn("LLM enrichment failed, analysis continues without it",
			"provider", provider, "error", utils.RedactError(err))
		return err
	}

	if result.Metadata == nil {
		result.Metadata = make(map[string]interface{})
	}
	result.Metadata["llm_analysis"] = true
	result.Metadata["llm_summary"] = response.Summary
	result.Metadata["llm_provider"] = response.Provider
	result.Metadata["llm_model"] = response.Model

	s.logger.Info("analysis enriched with LLM summary",
		"provider", response.Provider, "model", response.Model, "tokens_used", response.TokensUsed)
	return nil
}

// buildIncidentPrompt renders an AnalysisResult into a compact prompt. The
// structured analysis already ranked the causes; the provider only rewrites
// it for humans.
func buildIncidentPrompt(result *models.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("You are assisting with incident response for a distributed system.\n")
	b.WriteString("Summarize the following root cause analysis in 2-3 sentences a support\n")
	b.WriteString("engineer without deep system knowledge can act on.\n\n")

	b.WriteString("Incident: ")
	b.WriteString(result.IncidentSummary)
	b.WriteString("\n")

	if len(result.AffectedServices) > 0 {
		b.WriteString("Affected services: ")
		b.WriteString(strings.Join(result.AffectedServices, ", "))
		b.WriteString("\n")
	}

	if len(result.ProbableRootCauses) > 0 {
		b.WriteString("Probable root causes:\n")
		for i, cause := range result.ProbableRootCauses {
			fmt.Fprintf(&b, "%d. [confidence %.2f] %s\n", i+1, cause.Confidence, cause.Description)
		}
	}

	if len(result.RecommendedActions) > 0 {
		b.WriteString("Planned actions:\n")
		for _, action := range result.RecommendedActions {
			fmt.Fprintf(&b, "- P%d %s: %s\n", action.Priority, action.Category, action.Description)
		}
	}

	b.WriteString("\nRespond with the summary only, no preamble.")
	return b.String()
}

// resolveEnvVar expands "${VAR}" placeholders so API keys can live in the
// environment instead of the config file.
func resolveEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
		return os.Getenv(envVar)
	}
	return value
}
