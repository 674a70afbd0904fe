// Package manifest defines the dependency manifest shared by the list, pull,
// push and install phases, together with its file format and validation.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"

	"kubewarden-airgap/pkg/errx"
	"kubewarden-airgap/pkg/reference"
)

// DefaultFileName is the manifest file name used when none is given.
const DefaultFileName = "manifest.json"

// Sentinel errors for manifest handling.
var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrMissingChart    = errors.New("manifest is missing a required chart")
	ErrReadManifest    = errors.New("failed to read manifest")
	ErrWriteManifest   = errors.New("failed to write manifest")
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("manifest.schema.json", schemaJSON)

// Category names one kind of artifact in the manifest.
type Category string

const (
	CategoryImages   Category = "images"
	CategoryPolicies Category = "policies"
	CategoryCharts   Category = "charts"
)

// Manifest is the list of artifacts one airgap run needs. Entries keep their
// discovery order and are never deduplicated.
type Manifest struct {
	Images   []string `json:"images"`
	Policies []string `json:"policies"`
	Charts   []string `json:"charts"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Images: []string{}, Policies: []string{}, Charts: []string{}}
}

// Entries returns a copy of the entries of one category.
func (m *Manifest) Entries(c Category) []string {
	switch c {
	case CategoryImages:
		return slices.Clone(m.Images)
	case CategoryPolicies:
		return slices.Clone(m.Policies)
	case CategoryCharts:
		return slices.Clone(m.Charts)
	}
	return nil
}

// AddImages appends image references.
func (m *Manifest) AddImages(images ...string) { m.Images = append(m.Images, images...) }

// AddPolicies appends policy URIs.
func (m *Manifest) AddPolicies(policies ...string) { m.Policies = append(m.Policies, policies...) }

// AddCharts appends chart references.
func (m *Manifest) AddCharts(charts ...string) { m.Charts = append(m.Charts, charts...) }

// Validate checks every entry against its reference grammar and requires the
// three core charts. The first problem found is returned.
func (m *Manifest) Validate() error {
	for _, image := range m.Images {
		if _, err := reference.ParseImage(image); err != nil {
			return invalid(fmt.Sprintf("invalid image %q", image), err)
		}
	}
	for _, policy := range m.Policies {
		if _, err := reference.ParsePolicy(policy); err != nil {
			return invalid(fmt.Sprintf("invalid policy %q", policy), err)
		}
	}
	_, err := m.ChartsByRole()
	return err
}

// Load reads a manifest from a JSON (or YAML) file and checks it against the
// manifest schema. Reference grammar is checked by Validate, not here.
func Load(path string) (*Manifest, error) {
	// #nosec G304 -- path is the manifest the user asked for.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.WrapManifest(fmt.Sprintf("failed to read manifest %s: %v", path, err), err).
			WithBase(ErrReadManifest).
			WithContext("path", path)
	}
	m, err := Parse(data)
	if err != nil {
		var e *errx.Error
		if errors.As(err, &e) {
			return nil, e.WithContext("path", path)
		}
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, invalid(fmt.Sprintf("manifest is neither JSON nor YAML: %v", err), err)
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, invalid(fmt.Sprintf("failed to decode manifest: %v", err), err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, invalid(fmt.Sprintf("manifest does not match schema: %v", err), err)
	}

	m := New()
	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, invalid(fmt.Sprintf("failed to decode manifest: %v", err), err)
	}
	m.normalize()
	return m, nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := m.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errx.WrapManifest(fmt.Sprintf("failed to write manifest %s: %v", path, err), err).
			WithBase(ErrWriteManifest).
			WithContext("path", path)
	}
	return nil
}

// MarshalIndent renders the canonical JSON form, with empty arrays instead of
// null and a trailing newline.
func (m *Manifest) MarshalIndent() ([]byte, error) {
	c := *m
	c.normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&c); err != nil {
		return nil, errx.WrapManifest(fmt.Sprintf("failed to marshal manifest: %v", err), err).WithBase(ErrWriteManifest)
	}
	return buf.Bytes(), nil
}

func (m *Manifest) normalize() {
	if m.Images == nil {
		m.Images = []string{}
	}
	if m.Policies == nil {
		m.Policies = []string{}
	}
	if m.Charts == nil {
		m.Charts = []string{}
	}
}

func invalid(msg string, cause error) error {
	return errx.WrapManifest(msg, cause).WithBase(ErrInvalidManifest)
}

// missingCharts formats the roles for a diagnostic.
func missingCharts(roles []ChartRole) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
