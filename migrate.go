// Package migrate evolves document-store schemas between versions: it diffs
// schema snapshots into reversible action chains, orders migrations along a
// dependency graph, and applies or reverts them against a live database.
package migrate

import (
	"context"

	"github.com/goliatone/go-schema-migrate/internal/actions"
	"github.com/goliatone/go-schema-migrate/internal/commands"
	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/graph"
	"github.com/goliatone/go-schema-migrate/internal/history"
	"github.com/goliatone/go-schema-migrate/internal/logging/gologger"
	"github.com/goliatone/go-schema-migrate/internal/runner"
	"github.com/goliatone/go-schema-migrate/internal/runtimeconfig"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
	"github.com/goliatone/go-schema-migrate/internal/store/memstore"
	"github.com/goliatone/go-schema-migrate/internal/store/mongostore"
	"github.com/goliatone/go-schema-migrate/internal/typeconv"
	"github.com/goliatone/go-schema-migrate/pkg/interfaces"
)

// Schema model re-exports for consumers of the migrate package.
type (
	Schema   = schema.Schema
	Document = schema.Document
	Field    = schema.Field
	Edit     = schema.Edit
)

// Action layer re-exports.
type (
	Action     = actions.Action
	ActionType = actions.ActionType
	Record     = actions.Record
	AlterDiff  = actions.AlterDiff
	Env        = actions.Env
)

// Graph and runner re-exports.
type (
	Migration = graph.Migration
	Graph     = graph.Graph
	Status    = runner.Status
)

// Store contracts.
type (
	Store      = store.Store
	Collection = store.Collection
)

// Command messages accepted by the engine's dispatchable handlers.
type (
	UpgradeCommand   = commands.UpgradeCommand
	DowngradeCommand = commands.DowngradeCommand
	StatusQuery      = commands.StatusQuery
)

// Policy controls how actions resolve nonconforming documents.
type Policy = domain.Policy

const (
	PolicyStrict  = domain.PolicyStrict
	PolicyReplace = domain.PolicyReplace
)

// Error sentinels, matchable with errors.Is across the whole engine.
var (
	ErrSchema                = domain.ErrSchema
	ErrMigration             = domain.ErrMigration
	ErrConversionUnavailable = domain.ErrConversionUnavailable
	ErrChainDiverged         = domain.ErrChainDiverged
	ErrCyclicDependency      = domain.ErrCyclicDependency
	ErrGraph                 = domain.ErrGraph
)

// Unset marks descriptor parameters that are absent on one side of a diff.
var Unset = schema.UNSET

// NewSchema returns an empty schema.
func NewSchema() Schema { return schema.New() }

// DiffSchemas produces the elementary edits transforming a into b.
func DiffSchemas(a, b Schema) []Edit { return schema.Diff(a, b) }

// PatchSchema applies edits to a copy of s.
func PatchSchema(edits []Edit, s Schema) (Schema, error) { return schema.Patch(edits, s) }

// ReverseEdits returns the edits undoing the given sequence.
func ReverseEdits(edits []Edit) []Edit { return schema.Reverse(edits) }

// MarshalSnapshot serializes a schema snapshot to JSON.
func MarshalSnapshot(s Schema) ([]byte, error) { return schema.MarshalSnapshot(s) }

// UnmarshalSnapshot parses and validates a JSON schema snapshot.
func UnmarshalSnapshot(data []byte) (Schema, error) { return schema.UnmarshalSnapshot(data) }

// DefaultActionTypes returns the built-in action variants for chain synthesis.
func DefaultActionTypes() []ActionType { return actions.DefaultActionTypes() }

// BuildChain synthesizes the action sequence transforming left into right.
func BuildChain(types []ActionType, left, right Schema) ([]Action, error) {
	return actions.BuildChain(types, left, right)
}

// Plan validates both schemas, synthesizes the action chain between them and
// returns its serialized records, ready to be stored in a migration.
func Plan(left, right Schema) ([]Record, error) {
	reg := typeconv.DefaultRegistry()
	if err := schema.Validate(left, reg.Extras); err != nil {
		return nil, err
	}
	if err := schema.Validate(right, reg.Extras); err != nil {
		return nil, err
	}
	chain, err := actions.BuildChain(actions.DefaultActionTypes(), left, right)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(chain))
	for i, action := range chain {
		records[i] = action.Record()
	}
	return records, nil
}

// DecodeRecords rebuilds actions from their serialized records.
func DecodeRecords(recs []Record) ([]Action, error) { return actions.DecodeRecords(recs) }

// NewGraph returns an empty migration graph.
func NewGraph() *Graph { return graph.New() }

// NewMemoryStore returns an in-memory store, suitable for tests and dry runs.
func NewMemoryStore() Store { return memstore.New() }

// Engine is the top-level runtime facade: a migration graph bound to a
// configuration and, once connected, to a database.
type Engine struct {
	cfg      Config
	graph    *graph.Graph
	store    store.Store
	provider interfaces.LoggerProvider
	runner   *runner.Runner
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore injects a store, skipping the configured connection. Intended
// for tests and embedded usage.
func WithStore(st Store) Option {
	return func(e *Engine) { e.store = st }
}

// WithLoggerProvider overrides the logger built from the configuration.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(e *Engine) { e.provider = provider }
}

// New builds an engine over the given migrations. The graph is verified
// eagerly; the database is dialed on Connect unless a store was injected.
func New(cfg Config, migrations []*Migration, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, graph: graph.New()}
	for _, opt := range opts {
		opt(e)
	}
	// An injected store makes the connection settings irrelevant, so skip
	// their validation and check everything else.
	if e.store == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	for _, m := range migrations {
		if err := e.graph.Add(m); err != nil {
			return nil, err
		}
	}
	if err := e.graph.Verify(); err != nil {
		return nil, err
	}
	if e.provider == nil && cfg.Features.Logger {
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Logging.Level,
			Format:    loggingFormat(cfg.Logging),
			AddSource: cfg.Logging.AddSource,
			Focus:     cfg.Logging.Focus,
		})
		if err != nil {
			return nil, err
		}
		e.provider = provider
	}
	return e, nil
}

func loggingFormat(cfg runtimeconfig.LoggingConfig) string {
	// The console provider is go-logger with its console renderer.
	if cfg.Provider == "console" && cfg.Format == "" {
		return "console"
	}
	return cfg.Format
}

// Connect dials the configured database. It is a no-op when a store was
// injected with WithStore.
func (e *Engine) Connect(ctx context.Context) error {
	if e.store != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Store.ConnectTimeout)
	defer cancel()
	st, err := mongostore.Connect(ctx, e.cfg.Store.URI, e.cfg.Store.Database)
	if err != nil {
		return err
	}
	e.store = st
	return nil
}

// Store exposes the bound store, nil before Connect.
func (e *Engine) Store() Store { return e.store }

// Graph exposes the verified migration graph.
func (e *Engine) Graph() *Graph { return e.graph }

// Upgrade applies pending migrations up to and including target; empty
// target means the last migration.
func (e *Engine) Upgrade(ctx context.Context, target string) error {
	r, err := e.ensureRunner()
	if err != nil {
		return err
	}
	return r.Upgrade(ctx, target)
}

// Downgrade reverts applied migrations down to, but not including, target;
// empty target reverts everything.
func (e *Engine) Downgrade(ctx context.Context, target string) error {
	r, err := e.ensureRunner()
	if err != nil {
		return err
	}
	return r.Downgrade(ctx, target)
}

// Commands bundles the engine's message-based handlers, ready to register
// with a go-command dispatcher.
type Commands struct {
	Upgrade   *commands.UpgradeHandler
	Downgrade *commands.DowngradeHandler
	Status    *commands.StatusHandler
}

// Commands returns upgrade and downgrade handlers bound to the engine. The
// engine must be connected first, and the command layer enabled in the
// configuration. Commands.Timeout bounds each execution; zero leaves it
// unbounded, which long-running migrations usually need.
func (e *Engine) Commands() (*Commands, error) {
	if !e.cfg.Commands.Enabled {
		return nil, domain.MigrationErrorf("command layer is disabled in the configuration")
	}
	r, err := e.ensureRunner()
	if err != nil {
		return nil, err
	}
	logger := commands.CommandLogger(e.provider, "schema")
	timeout := e.cfg.Commands.Timeout
	return &Commands{
		Upgrade: commands.NewUpgradeHandler(r, logger,
			commands.WithTimeout[commands.UpgradeCommand](timeout)),
		Downgrade: commands.NewDowngradeHandler(r, logger,
			commands.WithTimeout[commands.DowngradeCommand](timeout)),
		Status: commands.NewStatusHandler(r, logger),
	}, nil
}

// Status lists migrations in dependency order with their applied state.
func (e *Engine) Status(ctx context.Context) ([]Status, error) {
	r, err := e.ensureRunner()
	if err != nil {
		return nil, err
	}
	return r.Status(ctx)
}

func (e *Engine) ensureRunner() (*runner.Runner, error) {
	if e.runner != nil {
		return e.runner, nil
	}
	if e.store == nil {
		return nil, domain.MigrationErrorf("engine is not connected; call Connect first")
	}
	h := history.New(e.store,
		history.WithAppliedCollection(e.cfg.History.AppliedCollection),
		history.WithSnapshotCollection(e.cfg.History.SnapshotCollection),
	)
	reg := typeconv.DefaultRegistry()
	matrix, err := typeconv.DefaultMatrix(reg)
	if err != nil {
		return nil, err
	}
	r, err := runner.New(e.store, e.graph,
		runner.WithHistory(h),
		runner.WithPolicy(domain.PolicyFromString(e.cfg.Policy)),
		runner.WithTypeRegistry(reg, matrix),
		runner.WithLogger(e.provider),
	)
	if err != nil {
		return nil, err
	}
	e.runner = r
	return r, nil
}
