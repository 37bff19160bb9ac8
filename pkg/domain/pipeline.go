package domain

// PipelineState tracks how far a model has progressed towards a solution.
type PipelineState string

// Pipeline states in transition order.
const (
	StateUninitialized  PipelineState = "uninitialized"
	StateDataLoaded     PipelineState = "data_loaded"
	StateNormalized     PipelineState = "normalized"
	StateStructureValid PipelineState = "structure_valid"
	StateGraphBuilt     PipelineState = "graph_built"
	StateCompiled       PipelineState = "compiled"
	StateSolved         PipelineState = "solved"
)

var pipelineRank = map[PipelineState]int{
	StateUninitialized:  0,
	StateDataLoaded:     1,
	StateNormalized:     2,
	StateStructureValid: 3,
	StateGraphBuilt:     4,
	StateCompiled:       5,
	StateSolved:         6,
}

// Reached reports whether s is at or beyond target.
func (s PipelineState) Reached(target PipelineState) bool {
	return pipelineRank[s] >= pipelineRank[target]
}

// Next returns the state following s, or s itself when already solved.
func (s PipelineState) Next() PipelineState {
	switch s {
	case StateUninitialized:
		return StateDataLoaded
	case StateDataLoaded:
		return StateNormalized
	case StateNormalized:
		return StateStructureValid
	case StateStructureValid:
		return StateGraphBuilt
	case StateGraphBuilt:
		return StateCompiled
	default:
		return StateSolved
	}
}

// SolverLayout describes the shape of a solve. Two solves with equal layouts
// can share a compiled solver.
type SolverLayout struct {
	Options             Options `json:"options"`
	NumberOfSeries      int     `json:"number_series"`
	FormationsPerSeries []int   `json:"number_formations_per_series"`
	IsFaultSeries       []bool  `json:"is_fault_series"`
	DriftEquations      []int   `json:"drift_equations"`
	NumberOfProperties  int     `json:"number_properties"`
}

// SolverInput is the ordered numeric input assembled for a solver. Interface
// points are grouped contiguously by series rank and formation id.
type SolverInput struct {
	SurfacePoints        [][3]float64 `json:"surface_points"`
	SurfaceFormationIDs  []int        `json:"surface_formation_ids"`
	SurfaceSeriesOrders  []int        `json:"surface_series_orders"`
	RefPoints            [][3]float64 `json:"ref_points"`
	RestPoints           [][3]float64 `json:"rest_points"`
	OrientationPositions [][3]float64 `json:"orientation_positions"`
	Gradients            [][3]float64 `json:"gradients"`
	Dips                 []float64    `json:"dips"`
	Azimuths             []float64    `json:"azimuths"`
	Polarities           []float64    `json:"polarities"`
	OrientationSeries    []int        `json:"orientation_series_orders"`
	LenFormationsI       []int        `json:"len_formations_i"`
	LenSeriesI           []int        `json:"len_series_i"`
	LenSeriesO           []int        `json:"len_series_o"`
	FormationIDs         []int        `json:"formation_ids"`
	FormationSeries      []int        `json:"formation_series_orders"`
	BasementID           int          `json:"basement_id"`
	FaultMatrix          [][]bool     `json:"fault_matrix"`
	Kriging              Kriging      `json:"kriging"`
	Grid                 [][3]float64 `json:"grid"`
	Values               [][]float64  `json:"values"`
}

// SolverOutput carries the raw arrays produced by a solver.
type SolverOutput struct {
	Lithology    []float64   `json:"lithology"`
	ScalarField  []float64   `json:"scalar_field"`
	SeriesFields [][]float64 `json:"series_fields,omitempty"`
}
