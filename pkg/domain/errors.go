package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStaleModel is returned when a computation finished against a revision
// that was superseded by a concurrent mutation.
var ErrStaleModel = errors.New("model changed while computing; rerun the pipeline")

// ErrNoGrid is returned when a computation is requested without a grid.
var ErrNoGrid = errors.New("model has no grid")

// UnknownFormationError is returned when a formation name is not registered.
type UnknownFormationError struct {
	Name string
}

func (e UnknownFormationError) Error() string {
	return fmt.Sprintf("formation %q not registered", e.Name)
}

// UnknownSeriesError is returned when a formation maps to a series that is
// not part of the catalog.
type UnknownSeriesError struct {
	Name      string
	Formation string
}

func (e UnknownSeriesError) Error() string {
	if e.Formation == "" {
		return fmt.Sprintf("series %q not registered", e.Name)
	}
	return fmt.Sprintf("series %q of formation %q not registered", e.Name, e.Formation)
}

// InvalidOrderError is returned when a series or formation order is not a
// permutation of the catalog.
type InvalidOrderError struct {
	Reason string
}

func (e InvalidOrderError) Error() string {
	return "invalid order: " + e.Reason
}

// AlreadyExistsError is returned when a unique entity is registered twice.
type AlreadyExistsError struct {
	Entity EntityType
	Name   string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

// DanglingReferenceError is returned when an observation row references a
// formation the registry does not know.
type DanglingReferenceError struct {
	Table     EntityType
	Index     int
	Formation string
}

func (e DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s row %d references unknown formation %q", e.Table, e.Index, e.Formation)
}

// MixedFormationError is returned when points used to derive an orientation
// belong to more than one formation.
type MixedFormationError struct {
	Formations []string
}

func (e MixedFormationError) Error() string {
	return "interface points must belong to the same formation, got " + strings.Join(e.Formations, ", ")
}

// InsufficientDataError is returned when a formation has fewer interface
// points than a surface needs.
type InsufficientDataError struct {
	Formation string
	Count     int
	Required  int
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("formation %q has %d interface points, at least %d required", e.Formation, e.Count, e.Required)
}

// InvalidInputError is returned for malformed arguments or rows.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SolverError wraps a failure raised by a solver collaborator.
type SolverError struct {
	Stage PipelineState
	Err   error
}

func (e SolverError) Error() string {
	return fmt.Sprintf("solver failed reaching %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the collaborator error.
func (e SolverError) Unwrap() error { return e.Err }
