package domain

import "context"

// Severity determines how a violation affects a transaction.
type Severity string

const (
	// SeverityBlock aborts the transaction.
	SeverityBlock Severity = "block"
	// SeverityWarn commits but reports the violation.
	SeverityWarn Severity = "warn"
	// SeverityLog is informational.
	SeverityLog Severity = "log"
)

// Violation is a single rule finding.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	Name     string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rule " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// RuleView provides read-only access to a transaction's state for rule evaluation.
type RuleView interface {
	ListSeries() []Series
	ListFormations() []Formation
	ListInterfaces() []InterfacePoint
	ListOrientations() []Orientation
	FindFormation(name string) (Formation, bool)
	FaultRelations() FaultRelations
	AdditionalData() AdditionalData
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
