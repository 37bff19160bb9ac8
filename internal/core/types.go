package core

import "geomodel/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	PipelineState      = domain.PipelineState
)

const (
	EntitySeries         = domain.EntitySeries
	EntityFormation      = domain.EntityFormation
	EntityFault          = domain.EntityFault
	EntityInterface      = domain.EntityInterface
	EntityOrientation    = domain.EntityOrientation
	EntityGrid           = domain.EntityGrid
	EntityAdditionalData = domain.EntityAdditionalData
	EntitySolution       = domain.EntitySolution
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate  = domain.ActionCreate
	ActionUpdate  = domain.ActionUpdate
	ActionDelete  = domain.ActionDelete
	ActionReplace = domain.ActionReplace
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
