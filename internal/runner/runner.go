// Package runner executes migration graphs against a document store: it
// walks the dependency graph, replays schema state, runs actions in both
// directions, and keeps the database history in sync.
package runner

import (
	"context"
	"errors"

	"github.com/goliatone/go-schema-migrate/internal/actions"
	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/graph"
	"github.com/goliatone/go-schema-migrate/internal/history"
	"github.com/goliatone/go-schema-migrate/internal/logging"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
	"github.com/goliatone/go-schema-migrate/internal/typeconv"
	"github.com/goliatone/go-schema-migrate/pkg/interfaces"
)

// errStopWalk aborts a graph walk early without reporting failure.
var errStopWalk = errors.New("stop walk")

// Runner applies and reverts migrations.
type Runner struct {
	store   store.Store
	graph   *graph.Graph
	history *history.History
	initial schema.Schema
	policy  domain.Policy
	types   *typeconv.Registry
	matrix  *typeconv.Matrix
	log     interfaces.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPolicy sets the default error policy handed to actions whose diffs do
// not carry their own.
func WithPolicy(policy domain.Policy) Option {
	return func(r *Runner) {
		if policy.IsValid() {
			r.policy = policy
		}
	}
}

// WithHistory overrides the history store.
func WithHistory(h *history.History) Option {
	return func(r *Runner) {
		if h != nil {
			r.history = h
		}
	}
}

// WithInitialSchema sets the schema in force before the initial migration.
// It defaults to an empty schema.
func WithInitialSchema(s schema.Schema) Option {
	return func(r *Runner) {
		if s != nil {
			r.initial = s
		}
	}
}

// WithTypeRegistry replaces the default field-type registry and conversion
// matrix.
func WithTypeRegistry(reg *typeconv.Registry, matrix *typeconv.Matrix) Option {
	return func(r *Runner) {
		if reg != nil && matrix != nil {
			r.types = reg
			r.matrix = matrix
		}
	}
}

// WithLogger attaches a logger provider.
func WithLogger(provider interfaces.LoggerProvider) Option {
	return func(r *Runner) {
		r.log = logging.RunnerLogger(provider)
	}
}

// New builds a Runner for a verified graph.
func New(st store.Store, g *graph.Graph, opts ...Option) (*Runner, error) {
	if st == nil {
		return nil, domain.MigrationErrorf("runner needs a store")
	}
	if g == nil {
		return nil, domain.MigrationErrorf("runner needs a migration graph")
	}
	if err := g.Verify(); err != nil {
		return nil, err
	}
	reg := typeconv.DefaultRegistry()
	matrix, err := typeconv.DefaultMatrix(reg)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		store:   st,
		graph:   g,
		history: history.New(st),
		initial: schema.New(),
		policy:  domain.PolicyStrict,
		types:   reg,
		matrix:  matrix,
		log:     logging.NoOp(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Status reports every migration in dependency order with its applied state.
type Status struct {
	Name         string   `json:"name"`
	Applied      bool     `json:"applied"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Status lists migrations in walk order with their applied state.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if r.graph.Len() == 0 {
		return nil, nil
	}
	applied, err := r.history.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var out []Status
	err = r.graph.WalkDown(r.graph.Initial(), func(m *graph.Migration) error {
		out = append(out, Status{
			Name:         m.Name,
			Applied:      applied[m.Name],
			Dependencies: m.Dependencies,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upgrade applies every unapplied migration from the initial one through
// target, inclusive. An empty target means the last migration.
func (r *Runner) Upgrade(ctx context.Context, target string) error {
	if r.graph.Len() == 0 {
		return nil
	}
	target, err := r.resolveTarget(target, r.graph.Last())
	if err != nil {
		return err
	}
	applied, err := r.history.Applied(ctx)
	if err != nil {
		return err
	}

	left := r.initial.Clone()
	err = r.graph.WalkDown(r.graph.Initial(), func(m *graph.Migration) error {
		if applied[m.Name] {
			next, err := r.replayMigration(m, left)
			if err != nil {
				return err
			}
			left = next
		} else {
			r.log.Info("applying migration", "migration", m.Name)
			next, err := r.runForward(ctx, m, left)
			if err != nil {
				return err
			}
			left = next
			if err := r.history.MarkApplied(ctx, m.Name); err != nil {
				return err
			}
		}
		if m.Name == target {
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return err
	}
	return r.history.SaveSnapshot(ctx, left)
}

// Downgrade reverts applied migrations from the last one down to, but not
// including, target. An empty target reverts everything.
func (r *Runner) Downgrade(ctx context.Context, target string) error {
	if r.graph.Len() == 0 {
		return nil
	}
	if target != "" {
		if r.graph.Migration(target) == nil {
			return domain.GraphErrorf("unknown migration %q", target)
		}
	}
	applied, err := r.history.Applied(ctx)
	if err != nil {
		return err
	}
	states, err := r.preStates()
	if err != nil {
		return err
	}

	err = r.graph.WalkUp(r.graph.Last(), func(m *graph.Migration) error {
		if m.Name == target {
			return errStopWalk
		}
		if !applied[m.Name] {
			return nil
		}
		r.log.Info("reverting migration", "migration", m.Name)
		if err := r.runBackward(ctx, m, states[m.Name]); err != nil {
			return err
		}
		applied[m.Name] = false
		return r.history.MarkUnapplied(ctx, m.Name)
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return err
	}

	left := r.initial.Clone()
	err = r.graph.WalkDown(r.graph.Initial(), func(m *graph.Migration) error {
		if !applied[m.Name] {
			return nil
		}
		next, err := r.replayMigration(m, left)
		if err != nil {
			return err
		}
		left = next
		return nil
	})
	if err != nil {
		return err
	}
	return r.history.SaveSnapshot(ctx, left)
}

func (r *Runner) resolveTarget(target, fallback string) (string, error) {
	if target == "" {
		return fallback, nil
	}
	if r.graph.Migration(target) == nil {
		return "", domain.GraphErrorf("unknown migration %q", target)
	}
	return target, nil
}

// preStates computes the schema in force immediately before each migration
// runs, accumulating patches in walk order from the initial schema.
func (r *Runner) preStates() (map[string]schema.Schema, error) {
	states := make(map[string]schema.Schema, r.graph.Len())
	left := r.initial.Clone()
	err := r.graph.WalkDown(r.graph.Initial(), func(m *graph.Migration) error {
		states[m.Name] = left
		next, err := r.replayMigration(m, left)
		if err != nil {
			return err
		}
		left = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// replayMigration applies a migration's schema patches without touching data.
func (r *Runner) replayMigration(m *graph.Migration, left schema.Schema) (schema.Schema, error) {
	acts, err := m.ForwardActions()
	if err != nil {
		return nil, err
	}
	for _, action := range acts {
		left, err = r.patch(m, action, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// runForward executes a migration's actions in order, patching the schema
// after each action so the next one prepares against the state it will
// actually see.
func (r *Runner) runForward(ctx context.Context, m *graph.Migration, left schema.Schema) (schema.Schema, error) {
	acts, err := m.ForwardActions()
	if err != nil {
		return nil, err
	}
	for _, action := range acts {
		if err := action.Prepare(r.env(left)); err != nil {
			return nil, err
		}
		if err := action.RunForward(ctx); err != nil {
			return nil, domain.MigrationErrorf("migration %q, action %s on %q: %v",
				m.Name, action.Name(), action.DocumentType(), err)
		}
		left, err = r.patch(m, action, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// runBackward executes a migration's actions in reverse order. Each action
// prepares against the schema state that was in force before its own forward
// run.
func (r *Runner) runBackward(ctx context.Context, m *graph.Migration, pre schema.Schema) error {
	acts, err := m.ForwardActions()
	if err != nil {
		return err
	}
	states := make([]schema.Schema, len(acts)+1)
	states[0] = pre
	for i, action := range acts {
		states[i+1], err = r.patch(m, action, states[i])
		if err != nil {
			return err
		}
	}
	for i := len(acts) - 1; i >= 0; i-- {
		action := acts[i]
		if err := action.Prepare(r.env(states[i])); err != nil {
			return err
		}
		if err := action.RunBackward(ctx); err != nil {
			return domain.MigrationErrorf("migration %q, action %s on %q: %v",
				m.Name, action.Name(), action.DocumentType(), err)
		}
	}
	return nil
}

func (r *Runner) patch(m *graph.Migration, action actions.Action, left schema.Schema) (schema.Schema, error) {
	edits, err := action.SchemaPatch(left)
	if err != nil {
		return nil, domain.MigrationErrorf("migration %q, action %s on %q: %v",
			m.Name, action.Name(), action.DocumentType(), err)
	}
	return schema.Patch(edits, left)
}

func (r *Runner) env(left schema.Schema) actions.Env {
	return actions.Env{
		Store:  r.store,
		Schema: left,
		Policy: r.policy,
		Types:  r.types,
		Matrix: r.matrix,
	}
}
