package dq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category identifies the kind of check a rule performs.
type Category string

const (
	ReferentialIntegrity Category = "REFERENTIAL_INTEGRITY"
	Range                Category = "RANGE"
	Completeness         Category = "COMPLETENESS"
	Uniqueness           Category = "UNIQUENESS"
	Temporal             Category = "TEMPORAL"
)

// Severity drives how a rule's violations map to a check status.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Status is the outcome of one rule evaluation.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusWarning Status = "WARNING"
	StatusFail    Status = "FAIL"
)

// Rule is one declarative data quality check. The meaning of Column,
// References, Min and Max depends on the category; Threshold is the number
// of violations tolerated before the rule stops passing.
type Rule struct {
	Name       string   `yaml:"name"`
	Category   Category `yaml:"category"`
	Severity   Severity `yaml:"severity"`
	Table      string   `yaml:"table"`
	Column     string   `yaml:"column,omitempty"`
	References string   `yaml:"references,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	Threshold  int      `yaml:"threshold"`
}

// RuleSet is the parsed rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules parses a YAML rules file.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, r := range rs.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if r.Severity == "" {
			rs.Rules[i].Severity = SeverityMedium
		}
	}
	return &rs, nil
}

// statusFor maps a violation count against the threshold and severity.
// Within tolerance the rule passes; beyond it, CRITICAL and HIGH rules fail
// while MEDIUM and LOW downgrade to a warning.
func statusFor(severity Severity, violations, threshold int) Status {
	if violations <= threshold {
		return StatusPass
	}
	switch severity {
	case SeverityCritical, SeverityHigh:
		return StatusFail
	default:
		return StatusWarning
	}
}
