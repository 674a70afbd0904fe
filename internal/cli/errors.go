package cli

// This file defines error handling utilities for the CLI, including:
//   - Sentinel errors for usage and configuration failures
//   - Error wrapping functions that integrate with the errx error system
//   - Structured error logging with context
//   - Debug mode management for error output

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"kubewarden-airgap/pkg/errx"
)

var (
	debugMode   bool
	debugModeMu sync.RWMutex
)

// SetDebugMode sets the global debug mode flag.
// When enabled, logStructuredError will output structured error logs to terminal.
func SetDebugMode(enabled bool) {
	debugModeMu.Lock()
	defer debugModeMu.Unlock()
	debugMode = enabled
}

// IsDebugMode returns whether debug mode is enabled.
func IsDebugMode() bool {
	debugModeMu.RLock()
	defer debugModeMu.RUnlock()
	return debugMode
}

type errorSpec struct {
	code        string
	description string
}

// newSentinelError creates a sentinel error and registers it in errorSpecs in one step.
func newSentinelError(msg string, code, description string) error {
	err := errors.New(msg)
	errorSpecs[err] = errorSpec{code: code, description: description}
	return err
}

// errorSpecs maps sentinel errors to their error codes and descriptions.
// Populated by newSentinelError() during variable initialization, so it must
// be declared before the sentinels.
var errorSpecs = make(map[error]errorSpec)

// lookupSpec provides a lookup function for errx.FromSentinel.
func lookupSpec(sentinel error) (code, description string) {
	spec := specFor(sentinel)
	return spec.code, spec.description
}

// newWithSentinel creates a new error in the category of base.
func newWithSentinel(base error, msg string) error {
	if base == nil {
		return errx.CreateByCode(errx.CodeCLI, errx.DescCLI, msg, nil)
	}
	return errx.FromSentinel(base, lookupSpec, msg, nil)
}

// wrapWithSentinel wraps a cause error in the category of base.
func wrapWithSentinel(base, cause error, msg string) error {
	if base == nil {
		return errx.CreateByCode(errx.CodeCLI, errx.DescCLI, msg, cause)
	}
	return errx.FromSentinel(base, lookupSpec, msg, cause)
}

// wrapWithSentinelAndContext wraps an error with additional structured context
// such as file paths or the registry in use.
func wrapWithSentinelAndContext(base, cause error, msg string, context map[string]any) error {
	err := wrapWithSentinel(base, cause, msg)
	if errxErr, ok := err.(*errx.Error); ok && len(context) > 0 {
		return errxErr.WithContextMap(context)
	}
	return err
}

var (
	// CLI errors.
	ErrUnknownImageBackend    = newSentinelError("unknown image backend", errx.CodeCLI, errx.DescCLI)
	ErrGetHomeDirectoryFailed = newSentinelError("failed to get home directory", errx.CodeCLI, errx.DescCLI)

	// Config errors.
	ErrManifestRequired      = newSentinelError("manifest file is required", errx.CodeConfig, errx.DescConfig)
	ErrRegistryRequired      = newSentinelError("registry is required", errx.CodeConfig, errx.DescConfig)
	ErrReadConfigFailed      = newSentinelError("failed to read config", errx.CodeConfig, errx.DescConfig)
	ErrUnmarshalConfigFailed = newSentinelError("failed to unmarshal config", errx.CodeConfig, errx.DescConfig)
	ErrSaveConfigFailed      = newSentinelError("failed to save config", errx.CodeConfig, errx.DescConfig)
	ErrInvalidEnvValue       = newSentinelError("invalid environment value", errx.CodeConfig, errx.DescConfig)
)

func specFor(base error) errorSpec {
	spec, ok := errorSpecs[base]
	if ok {
		return spec
	}
	return errorSpec{code: errx.CodeCLI, description: errx.DescCLI}
}

// logStructuredError logs an error with structured fields to terminal.
// Only logs when debug mode is enabled (via --debug flag).
//
// This extracts all context from errx.Error and logs it with structured fields:
// - error.code: "72000"
// - error.category: "Transport error"
// - error.context.reference: "ghcr.io/kubewarden/policy-server:v1.9.0"
// - error.context.category: "images"
func logStructuredError(logger *zap.Logger, err error, msg string) {
	if logger == nil || err == nil || !IsDebugMode() {
		return
	}

	var errxErr *errx.Error
	if errors.As(err, &errxErr) {
		fields := []zap.Field{
			zap.String("error.code", errxErr.Code()),
			zap.String("error.category", errxErr.Description()),
			zap.String("error.message", errxErr.Message()),
			zap.Error(err),
		}

		if ctx := errxErr.Context(); ctx != nil {
			for key, value := range ctx {
				fields = append(fields, zap.Any("error.context."+key, value))
			}
		}

		// Distinct field name avoids a duplicate "error" key.
		if cause := errxErr.Cause(); cause != nil {
			fields = append(fields, zap.NamedError("error.cause", cause))
		}

		logger.Error(msg, fields...)
	} else {
		logger.Error(msg, zap.Error(err))
	}
}
