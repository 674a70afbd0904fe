package errx

import (
	"errors"
	"testing"
)

func TestCategories_Constructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name string
		err  *Error
		code string
	}{
		{"cli", CLI("x"), CodeCLI},
		{"reference", Reference("x"), CodeReference},
		{"manifest", Manifest("x"), CodeManifest},
		{"wrap manifest", WrapManifest("x", cause), CodeManifest},
		{"wrap transport", WrapTransport("x", cause), CodeTransport},
		{"wrap discovery", WrapDiscovery("x", cause), CodeDiscovery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code() != tt.code {
				t.Errorf("Code() = %q, want %q", tt.err.Code(), tt.code)
			}
		})
	}
}

func TestCategories_CreateByCode(t *testing.T) {
	if err := CreateByCode(CodeCLI, DescCLI, "test", nil); err.Cause() != nil {
		t.Errorf("Cause() = %v, want nil", err.Cause())
	}
	cause := errors.New("cause")
	if err := CreateByCode(CodeCLI, DescCLI, "test", cause); err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}
}

func TestCategories_FromSentinel(t *testing.T) {
	sentinel := errors.New("sentinel")

	t.Run("uses lookup", func(t *testing.T) {
		lookup := func(error) (string, string) { return CodeInstall, DescInstall }
		err := FromSentinel(sentinel, lookup, "test", nil)
		if err.Code() != CodeInstall {
			t.Errorf("Code() = %q, want %q", err.Code(), CodeInstall)
		}
		if !errors.Is(err, sentinel) {
			t.Error("errors.Is(err, sentinel) = false, want true")
		}
	})

	t.Run("falls back to CLI", func(t *testing.T) {
		lookup := func(error) (string, string) { return "", "" }
		if err := FromSentinel(sentinel, lookup, "test", nil); err.Code() != CodeCLI {
			t.Errorf("Code() = %q, want %q", err.Code(), CodeCLI)
		}
	})
}
