package manifest

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"kubewarden-airgap/pkg/errx"
)

// Diff returns a unified diff between the canonical JSON forms of two
// manifests. An empty string means they are identical.
func Diff(oldName string, old *Manifest, newName string, updated *Manifest) (string, error) {
	a, err := old.MarshalIndent()
	if err != nil {
		return "", err
	}
	b, err := updated.MarshalIndent()
	if err != nil {
		return "", err
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: oldName,
		ToFile:   newName,
		Context:  3,
	})
	if err != nil {
		return "", errx.WrapManifest(fmt.Sprintf("failed to diff manifests: %v", err), err)
	}
	return out, nil
}
