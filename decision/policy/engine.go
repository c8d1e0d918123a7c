// Package policy provides the Recovery Policy Engine
// Evaluates governance policies against audit reports and decides whether an invoice passes review
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"lawaudit/decision/audit"
)

// PolicyType defines the type of policy
type PolicyType string

const (
	PolicyTypeLeakageLimit  PolicyType = "leakage_limit"
	PolicyTypeLeakageRatio  PolicyType = "leakage_ratio"
	PolicyTypeCriticalFlags PolicyType = "critical_flags"
	PolicyTypeEmptyReport   PolicyType = "empty_report"
	PolicyTypeExpression    PolicyType = "expression"
)

// Severity defines policy violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Decision is the policy evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Policy defines a governance rule
type Policy struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Type        PolicyType `json:"type" yaml:"type"`
	Severity    Severity   `json:"severity" yaml:"severity"`
	Threshold   float64    `json:"threshold,omitempty" yaml:"threshold"`
	Expression  string     `json:"expression,omitempty" yaml:"expression"` // CEL, true = violated
	Enabled     bool       `json:"enabled" yaml:"-"` // files use filePolicy.Enabled
}

// Violation represents a policy violation
type Violation struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}

// Warning represents an advisory finding that does not change the decision
type Warning struct {
	PolicyID string `json:"policy_id"`
	Message  string `json:"message"`
}

// EvaluationResult contains the policy evaluation outcome
type EvaluationResult struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
	PoliciesRan int         `json:"policies_ran"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Engine evaluates policies against audit reports
type Engine struct {
	policies []Policy
	env      *cel.Env

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewEngine creates a policy engine loaded with the default policies
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("report", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		policies: defaultPolicies(),
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// AddPolicy adds a custom policy
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Policies returns the configured policies
func (e *Engine) Policies() []Policy {
	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

// Validate checks a policy is well formed, compiling its expression if it has one
func (e *Engine) Validate(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy has no id")
	}
	switch p.Severity {
	case SeverityError, SeverityWarning, SeverityInfo:
	default:
		return fmt.Errorf("policy %s: unknown severity %q", p.ID, p.Severity)
	}

	switch p.Type {
	case PolicyTypeLeakageLimit, PolicyTypeLeakageRatio, PolicyTypeCriticalFlags:
		if p.Threshold < 0 {
			return fmt.Errorf("policy %s: threshold must not be negative", p.ID)
		}
	case PolicyTypeEmptyReport:
	case PolicyTypeExpression:
		if p.Expression == "" {
			return fmt.Errorf("policy %s: expression is empty", p.ID)
		}
		if _, err := e.program(p.Expression); err != nil {
			return fmt.Errorf("policy %s: %w", p.ID, err)
		}
	default:
		return fmt.Errorf("policy %s: unknown type %q", p.ID, p.Type)
	}
	return nil
}

// Evaluate runs all enabled policies, built-in first, against the report
func (e *Engine) Evaluate(ctx context.Context, report *audit.Report, custom ...Policy) (*EvaluationResult, error) {
	result := &EvaluationResult{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Warning, 0),
		EvaluatedAt: time.Now(),
	}

	all := make([]Policy, 0, len(e.policies)+len(custom))
	all = append(all, e.policies...)
	all = append(all, custom...)

	input := reportInput(report)

	for _, p := range all {
		if !p.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.PoliciesRan++
		violation, warning, err := e.evaluatePolicy(p, report, input)
		if err != nil {
			return nil, err
		}

		if violation != nil {
			result.Violations = append(result.Violations, *violation)
			if p.Severity == SeverityError {
				result.Decision = DecisionDeny
			} else if result.Decision != DecisionDeny {
				result.Decision = DecisionWarn
			}
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}
	}

	return result, nil
}

func (e *Engine) evaluatePolicy(p Policy, report *audit.Report, input map[string]any) (*Violation, *Warning, error) {
	var message string

	switch p.Type {
	case PolicyTypeLeakageLimit:
		limit := decimal.NewFromFloat(p.Threshold)
		if report.TotalLeakage.GreaterThan(limit) {
			message = fmt.Sprintf("Identified leakage ($%s) exceeds limit ($%s)",
				report.TotalLeakage.StringFixed(2), limit.StringFixed(2))
		}

	case PolicyTypeLeakageRatio:
		if ratio := report.LeakageRatio(); ratio > p.Threshold {
			message = fmt.Sprintf("Leakage is %.1f%% of billed fees (limit %.1f%%)", ratio, p.Threshold)
		}

	case PolicyTypeCriticalFlags:
		if n := report.Summary.CriticalFlags; float64(n) > p.Threshold {
			message = fmt.Sprintf("%d critical flag(s) found (allowed %.0f)", n, p.Threshold)
		}

	case PolicyTypeEmptyReport:
		if len(report.Entries) == 0 {
			message = "No billing entries could be parsed from the input"
		}

	case PolicyTypeExpression:
		violated, err := e.evaluateExpr(p.Expression, input)
		if err != nil {
			return nil, nil, fmt.Errorf("policy %s: %w", p.ID, err)
		}
		if violated {
			message = p.Description
			if message == "" {
				message = fmt.Sprintf("Expression matched: %s", p.Expression)
			}
		}

	default:
		return nil, nil, fmt.Errorf("policy %s: unknown type %q", p.ID, p.Type)
	}

	if message == "" {
		return nil, nil, nil
	}
	if p.Severity == SeverityInfo {
		return nil, &Warning{PolicyID: p.ID, Message: message}, nil
	}
	return &Violation{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		Message:    message,
		Severity:   string(p.Severity),
	}, nil, nil
}

// reportInput flattens the report into the map exposed to expressions as `report`
func reportInput(r *audit.Report) map[string]any {
	return map[string]any{
		"report": map[string]any{
			"total_billed":    r.TotalBilled.InexactFloat64(),
			"total_leakage":   r.TotalLeakage.InexactFloat64(),
			"leakage_ratio":   r.LeakageRatio(),
			"total_entries":   int64(r.Summary.TotalEntries),
			"flagged_entries": int64(r.Summary.FlaggedEntries),
			"critical_flags":  int64(r.Summary.CriticalFlags),
			"high_flags":      int64(r.Summary.HighFlags),
			"medium_flags":    int64(r.Summary.MediumFlags),
			"confidence":      r.Summary.Confidence,
			"format":          string(r.Format),
		},
	}
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if out := ast.OutputType().String(); out != "bool" && out != "dyn" {
		return nil, fmt.Errorf("compile: expression must be boolean, got %s", out)
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}

func (e *Engine) evaluateExpr(expr string, input map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}

func defaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "empty-report",
			Name:        "Unparseable Invoice",
			Description: "Warn when no billing entries could be parsed",
			Type:        PolicyTypeEmptyReport,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
		{
			ID:          "human-review",
			Name:        "Critical Findings Need Review",
			Description: "Warn when any critical finding requires attorney review",
			Type:        PolicyTypeCriticalFlags,
			Severity:    SeverityWarning,
			Threshold:   0,
			Enabled:     true,
		},
	}
}
