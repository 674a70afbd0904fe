package errx

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFormat_UserString(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with message", New(CodeCLI, DescCLI, "test"), "test"},
		{"description only", New(CodeCLI, DescCLI, ""), DescCLI},
		{"code only", New(CodeCLI, "", ""), CodeCLI},
		{"nil", nil, ""},
		{"plain error", errors.New("standard error"), "standard error"},
		{"wrapped errx", fmt.Errorf("outer: %w", New(CodeCLI, DescCLI, "inner")), "inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserString(tt.err); got != tt.want {
				t.Errorf("UserString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat_IsErrorAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeReference, DescReference, "bad ref"))
	if !IsError(err) {
		t.Error("IsError() = false, want true")
	}
	if got := CodeOf(err); got != CodeReference {
		t.Errorf("CodeOf() = %q, want %q", got, CodeReference)
	}
	if IsError(errors.New("plain")) || IsError(nil) {
		t.Error("IsError() should be false for plain and nil errors")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf() should be empty for plain errors")
	}
}

func TestFormat_DebugString(t *testing.T) {
	t.Run("single errx error", func(t *testing.T) {
		got := DebugString(New("70000", "CLI error", "test"))
		want := "1: *errx.Error: test | code=70000 | description=\"CLI error\" | message=\"test\""
		if got != want {
			t.Errorf("DebugString() = %q, want %q", got, want)
		}
	})

	t.Run("context is sorted", func(t *testing.T) {
		err := New("72000", "", "push").WithContext("target", "b").WithContext("source", "a")
		want := "1: *errx.Error: push | code=72000 | message=\"push\" | context={source=a, target=b}"
		if got := DebugString(err); got != want {
			t.Errorf("DebugString() = %q, want %q", got, want)
		}
	})

	t.Run("cause chain", func(t *testing.T) {
		got := DebugString(Wrap("70000", "CLI error", "wrapped error", errors.New("underlying cause")))
		lines := strings.Split(got, "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
		}
		if lines[1] != "2: *errors.errorString: underlying cause" {
			t.Errorf("unexpected cause line %q", lines[1])
		}
	})

	t.Run("joined errors", func(t *testing.T) {
		got := DebugString(errors.Join(errors.New("error1"), errors.New("error2")))
		if !strings.Contains(got, "error1") || !strings.Contains(got, "error2") {
			t.Errorf("DebugString() = %q, want both joined errors", got)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if DebugString(nil) != "" {
			t.Error("DebugString(nil) should be empty")
		}
	})
}

func TestFormat_unwrapAll(t *testing.T) {
	err1, err2 := errors.New("error1"), errors.New("error2")
	if got := unwrapAll(errors.Join(err1, err2)); len(got) != 2 || got[0] != err1 || got[1] != err2 {
		t.Errorf("unwrapAll(join) = %v", got)
	}
	if got := unwrapAll(New("70000", "", "x")); got != nil {
		t.Errorf("unwrapAll(no cause) = %v, want nil", got)
	}
	if got := unwrapAll(errors.New("plain")); got != nil {
		t.Errorf("unwrapAll(plain) = %v, want nil", got)
	}
}
