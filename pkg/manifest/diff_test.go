package manifest

import (
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	old := New()
	old.AddImages("ghcr.io/kubewarden/policy-server:v1.9.0")
	old.AddCharts(coreCharts...)

	updated := New()
	updated.AddImages("ghcr.io/kubewarden/policy-server:v1.10.0")
	updated.AddCharts(coreCharts...)

	out, err := Diff("old.json", old, "new.json", updated)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for _, want := range []string{
		"--- old.json",
		"+++ new.json",
		`-    "ghcr.io/kubewarden/policy-server:v1.9.0"`,
		`+    "ghcr.io/kubewarden/policy-server:v1.10.0"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Diff() output missing %q:\n%s", want, out)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	m := New()
	m.AddCharts(coreCharts...)
	out, err := Diff("a", m, "b", m)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("Diff() of identical manifests = %q, want empty", out)
	}
}
