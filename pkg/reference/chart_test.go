package reference

import (
	"errors"
	"testing"
)

func TestParseChart(t *testing.T) {
	tests := []struct {
		in   string
		want Chart
		file string
	}{
		{"https://charts.example/crds:1.0.0", Chart{Repo: "https://charts.example", Name: "crds", Version: "1.0.0"}, "crds-1.0.0.tgz"},
		{"https://charts.kubewarden.io/kubewarden-controller:2.0.5", Chart{Repo: "https://charts.kubewarden.io", Name: "kubewarden-controller", Version: "2.0.5"}, "kubewarden-controller-2.0.5.tgz"},
		{"https://charts.jetstack.io/cert-manager:v1.13.2", Chart{Repo: "https://charts.jetstack.io", Name: "cert-manager", Version: "v1.13.2"}, "cert-manager-v1.13.2.tgz"},
		{"oci://ghcr.io/kubewarden/charts/kubewarden-crds:1.4.0", Chart{Repo: "oci://ghcr.io/kubewarden/charts", Name: "kubewarden-crds", Version: "1.4.0"}, "kubewarden-crds-1.4.0.tgz"},
		{"http://localhost:8080/charts/defaults:1.0.0", Chart{Repo: "http://localhost:8080/charts", Name: "defaults", Version: "1.0.0"}, "defaults-1.0.0.tgz"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChart(tt.in)
			if err != nil {
				t.Fatalf("ParseChart() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseChart() = %+v, want %+v", got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
			if got.FileName() != tt.file {
				t.Errorf("FileName() = %q, want %q", got.FileName(), tt.file)
			}
		})
	}
}

func TestParseChartMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"https://charts.example/crds",
		"https://charts.example:8443/crds",
		"crds:1.0.0",
		"https://charts.example/:1.0.0",
		"https://crds:1.0.0",
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseChart(in); !errors.Is(err, ErrMalformedReference) {
				t.Fatalf("ParseChart(%q) error = %v, want ErrMalformedReference", in, err)
			}
		})
	}
}

func TestChartIsOCI(t *testing.T) {
	c, err := ParseChart("oci://ghcr.io/kubewarden/charts/kubewarden-crds:1.4.0")
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsOCI() {
		t.Error("IsOCI() = false, want true")
	}
}
