package errx

// CreateByCode creates an Error using the provided code, description, and message.
// A nil cause yields New, anything else yields Wrap.
func CreateByCode(code, description, message string, cause error) *Error {
	if cause != nil {
		return Wrap(code, description, message, cause)
	}
	return New(code, description, message)
}

// FromSentinel creates an Error whose category is looked up from the sentinel.
// The sentinel becomes the base, so errors.Is(err, sentinel) holds.
func FromSentinel(sentinel error, lookup func(error) (code, description string), message string, cause error) *Error {
	code, desc := lookup(sentinel)
	if code == "" {
		code = CodeCLI
		desc = DescCLI
	}
	return CreateByCode(code, desc, message, cause).WithBase(sentinel)
}

// CLI creates a CLI/argument validation error.
func CLI(message string) *Error {
	return New(CodeCLI, DescCLI, message)
}

// Reference creates a reference error for a string that does not follow the
// image, policy or chart grammar.
func Reference(message string) *Error {
	return New(CodeReference, DescReference, message)
}

// Manifest creates a manifest error.
func Manifest(message string) *Error {
	return New(CodeManifest, DescManifest, message)
}

// WrapManifest wraps a cause with a manifest error.
func WrapManifest(message string, cause error) *Error {
	return Wrap(CodeManifest, DescManifest, message, cause)
}

// WrapTransport wraps a cause with a transport error. Use it when an external
// pull, push, save, load or install call reported failure.
func WrapTransport(message string, cause error) *Error {
	return Wrap(CodeTransport, DescTransport, message, cause)
}

// WrapDiscovery wraps a cause with a discovery error.
func WrapDiscovery(message string, cause error) *Error {
	return Wrap(CodeDiscovery, DescDiscovery, message, cause)
}
