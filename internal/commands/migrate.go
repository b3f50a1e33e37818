package commands

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-schema-migrate/internal/logging"
	"github.com/goliatone/go-schema-migrate/internal/runner"
	"github.com/goliatone/go-schema-migrate/pkg/interfaces"
)

const (
	upgradeMessageType   = "migrate.schema.upgrade"
	downgradeMessageType = "migrate.schema.downgrade"
	statusMessageType    = "migrate.schema.status"
)

// UpgradeCommand applies pending migrations up to and including To. An empty
// To migrates to the last migration in the graph.
type UpgradeCommand struct {
	To string `json:"to,omitempty"`
}

// Type implements command.Message.
func (UpgradeCommand) Type() string { return upgradeMessageType }

// Validate ensures the message carries a usable target before reaching handlers.
func (m UpgradeCommand) Validate() error {
	errs := validation.Errors{}
	if strings.TrimSpace(m.To) != m.To {
		errs["to"] = validation.NewError("migrate.schema.upgrade.target_invalid",
			"target must not carry surrounding whitespace")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DowngradeCommand reverts applied migrations down to, but not including, To.
// An empty To reverts everything.
type DowngradeCommand struct {
	To string `json:"to,omitempty"`
}

// Type implements command.Message.
func (DowngradeCommand) Type() string { return downgradeMessageType }

// Validate ensures the message carries a usable target before reaching handlers.
func (m DowngradeCommand) Validate() error {
	errs := validation.Errors{}
	if strings.TrimSpace(m.To) != m.To {
		errs["to"] = validation.NewError("migrate.schema.downgrade.target_invalid",
			"target must not carry surrounding whitespace")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UpgradeHandler runs upgrades through the shared command handler foundation.
type UpgradeHandler struct {
	inner *Handler[UpgradeCommand]
}

// NewUpgradeHandler constructs a handler wired to the provided runner.
func NewUpgradeHandler(r *runner.Runner, logger interfaces.Logger, opts ...HandlerOption[UpgradeCommand]) *UpgradeHandler {
	exec := func(ctx context.Context, msg UpgradeCommand) error {
		return r.Upgrade(ctx, msg.To)
	}
	handlerOpts := []HandlerOption[UpgradeCommand]{
		WithLogger[UpgradeCommand](logger),
		WithOperation[UpgradeCommand]("schema.upgrade"),
	}
	handlerOpts = append(handlerOpts, opts...)
	return &UpgradeHandler{inner: NewHandler[UpgradeCommand](exec, handlerOpts...)}
}

// Execute satisfies command.Commander[UpgradeCommand].Execute.
func (h *UpgradeHandler) Execute(ctx context.Context, msg UpgradeCommand) error {
	return h.inner.Execute(ctx, msg)
}

// DowngradeHandler runs downgrades through the shared command handler foundation.
type DowngradeHandler struct {
	inner *Handler[DowngradeCommand]
}

// NewDowngradeHandler constructs a handler wired to the provided runner.
func NewDowngradeHandler(r *runner.Runner, logger interfaces.Logger, opts ...HandlerOption[DowngradeCommand]) *DowngradeHandler {
	exec := func(ctx context.Context, msg DowngradeCommand) error {
		return r.Downgrade(ctx, msg.To)
	}
	handlerOpts := []HandlerOption[DowngradeCommand]{
		WithLogger[DowngradeCommand](logger),
		WithOperation[DowngradeCommand]("schema.downgrade"),
	}
	handlerOpts = append(handlerOpts, opts...)
	return &DowngradeHandler{inner: NewHandler[DowngradeCommand](exec, handlerOpts...)}
}

// Execute satisfies command.Commander[DowngradeCommand].Execute.
func (h *DowngradeHandler) Execute(ctx context.Context, msg DowngradeCommand) error {
	return h.inner.Execute(ctx, msg)
}

// StatusQuery lists migrations in dependency order with their applied state.
type StatusQuery struct{}

// Type implements command.Message.
func (StatusQuery) Type() string { return statusMessageType }

// Validate implements command.Message; the query carries no parameters.
func (StatusQuery) Validate() error { return nil }

// StatusHandler answers status queries from the runner's history.
type StatusHandler struct {
	runner *runner.Runner
	logger interfaces.Logger
}

// NewStatusHandler constructs a handler wired to the provided runner.
func NewStatusHandler(r *runner.Runner, logger interfaces.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &StatusHandler{runner: r, logger: logger}
}

// Query returns one entry per migration in dependency order.
func (h *StatusHandler) Query(ctx context.Context, msg StatusQuery) ([]runner.Status, error) {
	if err := command.ValidateMessage(msg); err != nil {
		return nil, wrapValidationError(err)
	}
	ctx = ensureContext(ctx)
	statuses, err := h.runner.Status(ctx)
	if err != nil {
		h.logger.Error("command.query.failed", "command", statusMessageType, "error", err)
		return nil, wrapExecuteError(err)
	}
	return statuses, nil
}
