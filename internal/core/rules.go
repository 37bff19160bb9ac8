package core

// NewDefaultRulesEngine builds a rules engine with the built-in model checks.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(ForeignKeyRule())
	engine.Register(SeriesRankRule())
	engine.Register(FaultRelationRule())
	engine.Register(SurfacePointsRule())
	return engine
}
