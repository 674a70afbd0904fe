package airgap

import (
	"errors"

	"kubewarden-airgap/pkg/errx"
)

type errorSpec struct {
	code        string
	description string
}

// errorSpecs maps sentinel errors to their error codes and descriptions.
// Populated by newSentinelError during variable initialization, so it must be
// declared before the sentinels.
var errorSpecs = make(map[error]errorSpec)

// newSentinelError creates a sentinel error and registers it in errorSpecs.
func newSentinelError(msg string, code, description string) error {
	err := errors.New(msg)
	errorSpecs[err] = errorSpec{code: code, description: description}
	return err
}

func lookupSpec(sentinel error) (code, description string) {
	spec, ok := errorSpecs[sentinel]
	if !ok {
		return errx.CodeCLI, errx.DescCLI
	}
	return spec.code, spec.description
}

func newWithSentinel(base error, msg string) *errx.Error {
	return errx.FromSentinel(base, lookupSpec, msg, nil)
}

func wrapWithSentinel(base, cause error, msg string) *errx.Error {
	return errx.FromSentinel(base, lookupSpec, msg, cause)
}

func wrapWithSentinelAndContext(base, cause error, msg string, context map[string]any) error {
	return wrapWithSentinel(base, cause, msg).WithContextMap(context)
}

var (
	// Configuration errors.
	ErrInvalidOptions   = newSentinelError("invalid options", errx.CodeConfig, errx.DescConfig)
	ErrRegistryRequired = newSentinelError("registry is required", errx.CodeConfig, errx.DescConfig)
	ErrWorkspaceLocked  = newSentinelError("work directory is locked by another run", errx.CodeConfig, errx.DescConfig)

	// Discovery errors.
	ErrDiscoveryFailed    = newSentinelError("discovery failed", errx.CodeDiscovery, errx.DescDiscovery)
	ErrChartNotFound      = newSentinelError("chart not found in local repositories", errx.CodeDiscovery, errx.DescDiscovery)
	ErrAssetNotFound      = newSentinelError("release asset not found", errx.CodeDiscovery, errx.DescDiscovery)
	ErrEmptyListing       = newSentinelError("release asset listing is empty", errx.CodeDiscovery, errx.DescDiscovery)
	ErrNoImagesInTemplate = newSentinelError("no images found in rendered chart", errx.CodeDiscovery, errx.DescDiscovery)

	// Transport errors.
	ErrTransportFailed = newSentinelError("transport failed", errx.CodeTransport, errx.DescTransport)

	// Archive errors.
	ErrMissingArchive = newSentinelError("archive not found", errx.CodeArchive, errx.DescArchive)
	ErrArchiveFailed  = newSentinelError("archive operation failed", errx.CodeArchive, errx.DescArchive)

	// Install errors.
	ErrInstallFailed     = newSentinelError("install failed", errx.CodeInstall, errx.DescInstall)
	ErrChartFileNotFound = newSentinelError("chart file not found", errx.CodeInstall, errx.DescInstall)
)
