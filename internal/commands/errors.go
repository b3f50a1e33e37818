package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	migrateValidationCode     = "MIGRATE_COMMAND_VALIDATION_FAILED"
	migrateContextCanceled    = "MIGRATE_COMMAND_CANCELED"
	migrateContextTimeout     = "MIGRATE_COMMAND_TIMEOUT"
	migrateContextErrorCode   = "MIGRATE_COMMAND_CONTEXT_ERROR"
	migrateExecutionErrorCode = "MIGRATE_COMMAND_EXECUTION_FAILED"
)

// Errors already wrapped by the engine (graph verification, schema patching,
// store failures) carry their own category and text code, so every wrapper
// below passes them through untouched.

func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "migration command validation failed").
		WithTextCode(migrateValidationCode)
}

func wrapContextError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "migration command cancelled").
			WithTextCode(migrateContextCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "migration command deadline exceeded").
			WithTextCode(migrateContextTimeout)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "migration command context error").
			WithTextCode(migrateContextErrorCode)
	}
}

func wrapExecuteError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, "migration command execution failed").
		WithTextCode(migrateExecutionErrorCode)
}
