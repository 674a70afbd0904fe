// Package reference parses and retargets the image, policy and chart
// references found in a dependency manifest.
//
// Three grammars are supported:
//
//	image:  [authority/]path[:tag][@digest]          docker.io/x:1
//	policy: registry://authority/path:tag            registry://ghcr.io/org/pol:v1
//	        https://authority/path                   https://example.com/policy.wasm
//	        ./relative/or/absolute/path.wasm
//	chart:  repoURL/name:version                     https://charts.kubewarden.io/kubewarden-crds:1.4.0
//
// Retargeting swaps only the authority (host[:port]) and keeps scheme, path,
// tag and digest untouched.
package reference

import (
	"errors"
	"fmt"
	"strings"

	"kubewarden-airgap/pkg/errx"
)

// SchemeRegistry is the policy scheme for OCI registry hosted policies.
const SchemeRegistry = "registry"

// SchemeFile is the policy scheme for local policy files.
const SchemeFile = "file"

// ErrMalformedReference is the base of every parse failure in this package.
var ErrMalformedReference = errors.New("malformed reference")

// Reference is the parsed form of an image or policy string.
type Reference struct {
	// Scheme is the policy transport ("registry", "https", ...). Empty for
	// images and local policy files.
	Scheme string
	// Authority is host[:port]. Empty for local files and for images without
	// an explicit registry.
	Authority string
	Path      string
	Tag       string
	Digest    string
}

// ParseImage parses an image reference. The tag is optional.
func ParseImage(s string) (Reference, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return Reference{}, malformed(s, "image reference must be a non-empty string without surrounding whitespace")
	}
	rest, digest := splitDigest(s)
	if digest == "" && rest != s {
		return Reference{}, malformed(s, "image reference has an empty digest")
	}
	var ref Reference
	ref.Digest = digest
	if first, remainder, ok := strings.Cut(rest, "/"); ok && looksLikeAuthority(first) {
		ref.Authority = first
		rest = remainder
	}
	ref.Path, ref.Tag = splitTag(rest)
	if ref.Path == "" {
		return Reference{}, malformed(s, "image reference has no repository path")
	}
	if ref.Tag == "" && strings.HasSuffix(rest, ":") {
		return Reference{}, malformed(s, "image reference has an empty tag")
	}
	return ref, nil
}

// ParsePolicy parses a policy URI. registry:// policies must carry a tag or a
// digest; https:// and local file policies embed their version in the path.
func ParsePolicy(s string) (Reference, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return Reference{}, malformed(s, "policy reference must be a non-empty string without surrounding whitespace")
	}
	scheme, rest, hasScheme := strings.Cut(s, "://")
	if !hasScheme {
		return Reference{Path: s}, nil
	}
	if scheme == "" {
		return Reference{}, malformed(s, "policy reference has an empty scheme")
	}

	ref := Reference{Scheme: scheme}
	authority, path, _ := strings.Cut(rest, "/")
	ref.Authority = authority
	if scheme != SchemeRegistry {
		ref.Path = path
		if authority == "" && scheme != SchemeFile {
			return Reference{}, malformed(s, "policy reference has no host")
		}
		return ref, nil
	}

	if authority == "" || path == "" {
		return Reference{}, malformed(s, "registry policy must look like registry://host/path:tag")
	}
	rest, digest := splitDigest(path)
	if digest == "" && rest != path {
		return Reference{}, malformed(s, "registry policy has an empty digest")
	}
	ref.Digest = digest
	ref.Path, ref.Tag = splitTag(rest)
	if ref.Tag == "" && strings.HasSuffix(rest, ":") {
		return Reference{}, malformed(s, "registry policy has an empty tag")
	}
	if ref.Tag == "" && ref.Digest == "" {
		return Reference{}, malformed(s, "registry policy has no tag")
	}
	return ref, nil
}

// String renders the reference back into its textual form.
func (r Reference) String() string {
	var b strings.Builder
	if r.Scheme != "" {
		b.WriteString(r.Scheme)
		b.WriteString("://")
		b.WriteString(r.Authority)
		b.WriteByte('/')
	} else if r.Authority != "" {
		b.WriteString(r.Authority)
		b.WriteByte('/')
	}
	b.WriteString(r.Path)
	if r.Tag != "" {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	if r.Digest != "" {
		b.WriteByte('@')
		b.WriteString(r.Digest)
	}
	return b.String()
}

// Retarget returns a copy of r whose authority is replaced.
func (r Reference) Retarget(authority string) Reference {
	r.Authority = authority
	return r
}

// RetargetImage rewrites the registry of image to authority.
func RetargetImage(image, authority string) (string, error) {
	if err := ValidateAuthority(authority); err != nil {
		return "", err
	}
	ref, err := ParseImage(image)
	if err != nil {
		return "", err
	}
	return ref.Retarget(authority).String(), nil
}

// RetargetPolicy rewrites the authority of a scheme://authority/... policy.
// Local policy files, with or without file://, have no authority and cannot
// be retargeted.
func RetargetPolicy(policy, authority string) (string, error) {
	if err := ValidateAuthority(authority); err != nil {
		return "", err
	}
	ref, err := ParsePolicy(policy)
	if err != nil {
		return "", err
	}
	if ref.Scheme == "" || ref.Scheme == SchemeFile || ref.Authority == "" {
		return "", malformed(policy, "local policy has no authority to retarget")
	}
	return ref.Retarget(authority).String(), nil
}

// WithDefaultTag appends ":latest" to a registry policy that has neither a tag
// nor a digest. Every other input is returned unchanged.
func WithDefaultTag(policy string) string {
	scheme, rest, ok := strings.Cut(policy, "://")
	if !ok || scheme != SchemeRegistry {
		return policy
	}
	path, digest := splitDigest(rest)
	if digest != "" || path != rest || strings.HasSuffix(path, ":") {
		return policy
	}
	if _, tag := splitTag(path); tag != "" {
		return policy
	}
	return policy + ":latest"
}

// ValidateAuthority checks that authority is a bare host[:port].
func ValidateAuthority(authority string) error {
	switch {
	case authority == "":
		return malformed(authority, "registry authority is empty")
	case strings.Contains(authority, "://"):
		return malformed(authority, "registry authority must not include a scheme")
	case strings.ContainsAny(authority, "/ \t\r\n"):
		return malformed(authority, "registry authority must be host[:port]")
	}
	return nil
}

// looksLikeAuthority mirrors the docker rule: the first path component is a
// registry when it contains a dot or a port, or is localhost.
func looksLikeAuthority(s string) bool {
	return strings.ContainsAny(s, ".:") || s == "localhost"
}

// splitTag splits "path:tag" on the last colon that follows the last slash.
func splitTag(s string) (string, string) {
	i := strings.LastIndex(s, ":")
	if i < 0 || strings.Contains(s[i+1:], "/") {
		return s, ""
	}
	return s[:i], s[i+1:]
}

func splitDigest(s string) (string, string) {
	if rest, digest, ok := strings.Cut(s, "@"); ok {
		return rest, digest
	}
	return s, ""
}

func malformed(ref, reason string) error {
	return errx.Reference(fmt.Sprintf("%s: %q", reason, ref)).
		WithBase(ErrMalformedReference).
		WithContext("reference", ref)
}
