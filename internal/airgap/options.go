package airgap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// optionsValidator is shared; validator.Validate is safe for concurrent use.
var optionsValidator = validator.New()

func init() {
	if err := optionsValidator.RegisterValidation("registry_authority", validateRegistryAuthority); err != nil {
		panic(fmt.Sprintf("failed to register registry_authority validator: %v", err))
	}
}

func validateRegistryAuthority(fl validator.FieldLevel) bool {
	return reference.ValidateAuthority(fl.Field().String()) == nil
}

// Options is the configuration threaded through every phase call.
type Options struct {
	// Registry is the target registry authority (host[:port]) for push and
	// install.
	Registry string `validate:"omitempty,registry_authority"`
	// Insecure allows plain HTTP or unverified TLS towards Registry.
	Insecure bool
	// DryRun reports every external action instead of running it.
	DryRun bool
	// WorkDir holds the archives and chart files.
	WorkDir string `validate:"required"`
	// DefaultLatest tags untagged registry:// policies with ":latest" before
	// pulling them.
	DefaultLatest bool
}

// Validate checks the options. requireRegistry is set by push and install.
func (o Options) Validate(requireRegistry bool) error {
	if requireRegistry && strings.TrimSpace(o.Registry) == "" {
		return newWithSentinel(ErrRegistryRequired, "a target registry is required (host[:port])")
	}
	if err := optionsValidator.Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return wrapWithSentinelAndContext(ErrInvalidOptions, err,
				fmt.Sprintf("invalid option %s: failed %q check", strings.ToLower(fe.Field()), fe.Tag()),
				map[string]any{"field": fe.Field(), "value": fmt.Sprint(fe.Value())})
		}
		return wrapWithSentinel(ErrInvalidOptions, err, "invalid options")
	}
	return nil
}

// PushOptions derives the push options from o.
func (o Options) PushOptions() PushOptions {
	if !o.Insecure || o.Registry == "" {
		return PushOptions{}
	}
	return PushOptions{InsecureRegistries: []string{o.Registry}}
}

// effectiveManifest applies DefaultLatest to a copy of m and validates the
// result. m itself is never modified.
func effectiveManifest(m *manifest.Manifest, opts Options) (*manifest.Manifest, error) {
	if opts.DefaultLatest {
		c := &manifest.Manifest{
			Images:   m.Entries(manifest.CategoryImages),
			Policies: m.Entries(manifest.CategoryPolicies),
			Charts:   m.Entries(manifest.CategoryCharts),
		}
		for i, uri := range c.Policies {
			c.Policies[i] = reference.WithDefaultTag(uri)
		}
		m = c
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
