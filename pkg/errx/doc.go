// Package errx provides structured, code-based errors for the airgap tooling.
//
// Every error carries:
//   - A stable 5-digit code (e.g. "72000" for transport errors)
//   - A category description (e.g. "Transport error")
//   - A user-facing message
//   - Optional structured context (key-value pairs)
//   - Optional cause and base sentinel errors
//
// The first two digits of a code select the domain:
//   - 70xxx: CLI/argument validation errors
//   - 71xxx: Discovery errors (release assets, chart repository index)
//   - 72xxx: Transport errors (image, policy and chart tools)
//   - 73xxx: Reference errors (malformed image/policy/chart references)
//   - 74xxx: Archive/cache errors
//   - 75xxx: Install errors
//   - 76xxx: Manifest errors
//   - 79xxx: Configuration errors
//
// The last three digits are reserved for subcodes.
//
// Example usage:
//
//	err := errx.WrapTransport("failed to push image", cause).
//		WithContext("image", "localhost:5000/kubewarden/policy-server:v1.9.0").
//		WithBase(ErrPushFailed)
//
//	if errors.Is(err, ErrPushFailed) {
//		// Handle specific error
//	}
//
//	fmt.Println(errx.UserString(err))  // User-friendly message
//	fmt.Println(errx.DebugString(err)) // Full debug details
package errx
