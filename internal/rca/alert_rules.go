package rca

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/hindsight/internal/models"
)

// correlationRulesFile is the on-disk shape of a rules file.
type correlationRulesFile struct {
	Rules []models.CorrelationRule `yaml:"rules"`
}

// LoadCorrelationRules reads and validates a YAML rules file. Rules
// without a name get a positional one; min_alerts defaults to 1.
func LoadCorrelationRules(path string) ([]models.CorrelationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseCorrelationRules(data)
}

// ParseCorrelationRules decodes rules from YAML bytes.
func ParseCorrelationRules(data []byte) ([]models.CorrelationRule, error) {
	var file correlationRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file defines no rules")
	}

	for i := range file.Rules {
		if file.Rules[i].Name == "" {
			file.Rules[i].Name = fmt.Sprintf("rule-%d", i+1)
		}
		if file.Rules[i].MinAlerts == 0 {
			file.Rules[i].MinAlerts = 1
		}
		if err := ValidateRule(file.Rules[i]); err != nil {
			return nil, err
		}
	}
	return file.Rules, nil
}

// DefaultCorrelationRules is the grouping applied when no rules file
// is configured: bursts from one source within a minute.
func DefaultCorrelationRules() []models.CorrelationRule {
	return []models.CorrelationRule{
		{
			Name:          "same-source-burst",
			TimeWindow:    models.Duration(time.Minute),
			GroupBySource: true,
			MinAlerts:     2,
		},
	}
}
