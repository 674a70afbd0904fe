package tools

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"kubewarden-airgap/pkg/errx"
)

// transportError wraps a registry failure with the reference it concerned.
func transportError(op, ref string, cause error) *errx.Error {
	return errx.WrapTransport(fmt.Sprintf("%s %s: %v", op, ref, cause), cause).
		WithContextMap(map[string]any{
			"operation": op,
			"ref":       ref,
		})
}

// logTransportError logs err with its errx fields flattened into logr
// key/value pairs:
//   - error.code: "72000"
//   - error.category: "Transport error"
//   - error.context.ref: "localhost:5000/kubewarden/policy-server:v1.9.0"
//
// Errors that are not *errx.Error are logged as they are.
func logTransportError(logger logr.Logger, err error, msg string) {
	if err == nil {
		return
	}

	var errxErr *errx.Error
	if !errors.As(err, &errxErr) {
		logger.Error(err, msg)
		return
	}

	keysAndValues := []any{
		"error.code", errxErr.Code(),
		"error.category", errxErr.Description(),
		"error.message", errxErr.Message(),
	}
	for key, value := range errxErr.Context() {
		keysAndValues = append(keysAndValues, "error.context."+key, value)
	}
	if cause := errxErr.Cause(); cause != nil {
		keysAndValues = append(keysAndValues, "error.cause", cause.Error())
	}
	logger.Error(err, msg, keysAndValues...)
}
