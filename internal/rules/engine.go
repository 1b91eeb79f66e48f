// Package rules evaluates CEL report rules against generated summaries.
package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/salespulse/internal/domain"
)

// Engine is the CEL-based report rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ReportRule
	Program cel.Program
}

// NewEngine creates a new rule engine.
func NewEngine() (*Engine, error) {
	// Variables available to rule expressions
	env, err := cel.NewEnv(
		cel.Variable("total_orders", cel.IntType),
		cel.Variable("total_revenue", cel.DoubleType),
		cel.Variable("avg_order_value", cel.DoubleType),
		cel.Variable("region_count", cel.IntType),
		cel.Variable("category_count", cel.IntType),
		cel.Variable("top_product_sold", cel.IntType),
		cel.Variable("range_days", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.ReportRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("rule %s: unknown severity %q", rule.ID, rule.Severity)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.ReportRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// ReloadRules replaces the loaded set. Disabled rules are skipped. On a
// compile error the previous set stays in place.
func (e *Engine) ReloadRules(rules []*domain.ReportRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate checks every loaded rule against report and returns the matches,
// ordered by rule name. A rule that fails at runtime is logged and skipped.
func (e *Engine) Evaluate(report *domain.Report) []domain.Flag {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Config.Name != rules[j].Config.Name {
			return rules[i].Config.Name < rules[j].Config.Name
		}
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := Activation(report)

	var flags []domain.Flag
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			slog.Warn("report rule evaluation failed",
				"rule_id", rule.Config.ID,
				"error", err,
			)
			continue
		}

		if out == types.True {
			flags = append(flags, domain.Flag{
				RuleID:   rule.Config.ID,
				Name:     rule.Config.Name,
				Severity: rule.Config.Severity,
			})
		}
	}

	return flags
}

// Activation builds the CEL variables for a report.
func Activation(report *domain.Report) map[string]any {
	var topSold int64
	if len(report.TopProducts) > 0 {
		topSold = report.TopProducts[0].TotalSold
	}

	rangeDays := int64(report.EndDate.Sub(report.StartDate.Time).Hours()/24) + 1

	return map[string]any{
		"total_orders":     report.TotalOrders,
		"total_revenue":    report.TotalRevenue.InexactFloat64(),
		"avg_order_value":  report.AvgOrderValue.InexactFloat64(),
		"region_count":     int64(len(report.RegionStats)),
		"category_count":   int64(len(report.CategoryStats)),
		"top_product_sold": topSold,
		"range_days":       rangeDays,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rules, ordered by name.
func (e *Engine) GetLoadedRules() []*domain.ReportRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ReportRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

func (e *Engine) compileRule(rule *domain.ReportRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Config:  rule,
		Program: program,
	}, nil
}
