package domain

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Sentinel errors for the migration engine taxonomy. Callers match them with
// errors.Is; the constructors below attach go-errors categories and text
// codes so boundaries can report them uniformly.
var (
	// ErrSchema marks malformed or missing schema entries.
	ErrSchema = errors.New("migrate: malformed schema")
	// ErrMigration marks an action that cannot be legally applied given the
	// current data or parameters.
	ErrMigration = errors.New("migrate: migration cannot be applied")
	// ErrConversionUnavailable is a MigrationError raised when no converter
	// resolves for a type pair, ancestor fallback included.
	ErrConversionUnavailable = fmt.Errorf("%w: no type converter available", ErrMigration)
	// ErrChainDiverged marks a post-synthesis mismatch between the working
	// schema and the target schema.
	ErrChainDiverged = errors.New("migrate: action chain diverged from target schema")
	// ErrCyclicDependency marks a directed cycle in the migrations graph.
	ErrCyclicDependency = errors.New("migrate: cyclic dependency in migrations graph")
	// ErrGraph marks a migrations graph that violates consistency rules.
	ErrGraph = errors.New("migrate: inconsistent migrations graph")
)

const (
	schemaErrorCode           = "SCHEMA_ERROR"
	migrationErrorCode        = "MIGRATION_ERROR"
	conversionUnavailableCode = "CONVERSION_UNAVAILABLE"
	chainDivergedCode         = "ACTION_CHAIN_DIVERGED"
	cyclicDependencyCode      = "CYCLIC_DEPENDENCY"
	graphErrorCode            = "GRAPH_ERROR"
)

// SchemaErrorf builds a categorized schema error.
func SchemaErrorf(format string, args ...any) error {
	return goerrors.Wrap(ErrSchema, goerrors.CategoryValidation, fmt.Sprintf(format, args...)).
		WithTextCode(schemaErrorCode)
}

// MigrationErrorf builds a categorized migration error.
func MigrationErrorf(format string, args ...any) error {
	return goerrors.Wrap(ErrMigration, goerrors.CategoryOperation, fmt.Sprintf(format, args...)).
		WithTextCode(migrationErrorCode)
}

// ConversionUnavailablef builds the converter-lookup failure error.
func ConversionUnavailablef(format string, args ...any) error {
	return goerrors.Wrap(ErrConversionUnavailable, goerrors.CategoryOperation, fmt.Sprintf(format, args...)).
		WithTextCode(conversionUnavailableCode)
}

// ChainDivergedf builds the synthesis divergence error.
func ChainDivergedf(format string, args ...any) error {
	return goerrors.Wrap(ErrChainDiverged, goerrors.CategoryOperation, fmt.Sprintf(format, args...)).
		WithTextCode(chainDivergedCode)
}

// CyclicDependencyf builds the graph cycle error.
func CyclicDependencyf(format string, args ...any) error {
	return goerrors.Wrap(ErrCyclicDependency, goerrors.CategoryOperation, fmt.Sprintf(format, args...)).
		WithTextCode(cyclicDependencyCode)
}

// GraphErrorf builds a graph consistency error.
func GraphErrorf(format string, args ...any) error {
	return goerrors.Wrap(ErrGraph, goerrors.CategoryValidation, fmt.Sprintf(format, args...)).
		WithTextCode(graphErrorCode)
}
