package errx

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// maxChainEntries bounds DebugString output for pathological chains.
const maxChainEntries = 64

// UserString returns the most user-friendly message available for err.
// Non-errx errors fall back to err.Error().
func UserString(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.message != "":
			return e.message
		case e.description != "":
			return e.description
		case e.code != "":
			return e.code
		}
	}
	return err.Error()
}

// IsError checks if the given error is, or wraps, an errx.Error.
func IsError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e)
}

// CodeOf returns the code of the first errx.Error in the chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// DebugString returns a verbose, one-line-per-error rendering of the chain
// with codes and context.
func DebugString(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	for i, item := range flattenChain(err) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %T: %s", i+1, item, item.Error())
		typed, ok := item.(*Error)
		if !ok {
			continue
		}
		if typed.code != "" {
			fmt.Fprintf(&b, " | code=%s", typed.code)
		}
		if typed.description != "" {
			fmt.Fprintf(&b, " | description=%q", typed.description)
		}
		if typed.message != "" {
			fmt.Fprintf(&b, " | message=%q", typed.message)
		}
		if len(typed.context) > 0 {
			fmt.Fprintf(&b, " | context={%s}", formatContext(typed.context))
		}
	}
	return b.String()
}

// flattenChain walks the error tree breadth first, following both
// Unwrap() error and Unwrap() []error.
func flattenChain(err error) []error {
	var out []error
	queue := []error{err}
	for len(queue) > 0 && len(out) < maxChainEntries {
		current := queue[0]
		queue = queue[1:]
		if current == nil {
			continue
		}
		out = append(out, current)
		queue = append(queue, unwrapAll(current)...)
	}
	return out
}

func unwrapAll(err error) []error {
	switch unwrapped := err.(type) {
	case interface{ Unwrap() []error }:
		return unwrapped.Unwrap()
	case interface{ Unwrap() error }:
		if next := unwrapped.Unwrap(); next != nil {
			return []error{next}
		}
	}
	return nil
}

func formatContext(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for key := range ctx {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, ctx[key]))
	}
	return strings.Join(parts, ", ")
}
