package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// Tool wraps one command line binary with a fixed set of validators.
type Tool struct {
	bin        string
	exec       Executor
	validators []ExecValidator
}

// NewTool creates a Tool for bin. The binary is always allowlisted; extra
// validators run after that check.
func NewTool(bin string, exec Executor, validators ...ExecValidator) *Tool {
	if exec == nil {
		exec = DefaultExecutor
	}
	return &Tool{
		bin:        bin,
		exec:       exec,
		validators: append([]ExecValidator{AllowlistBins(bin), NoControlChars()}, validators...),
	}
}

// Bin returns the binary name.
func (t *Tool) Bin() string { return t.bin }

// CommandArgs builds a command with the given arguments.
// Validates arguments against configured validators before building.
func (t *Tool) CommandArgs(ctx context.Context, args []string) (Command, error) {
	return t.exec.Command(ctx, t.bin, args, t.validators...)
}

// Output runs the tool and returns stdout.
func (t *Tool) Output(ctx context.Context, args []string) ([]byte, error) {
	cmd, err := t.CommandArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.SetStderr(&stderr)
	out, err := cmd.Output()
	if err != nil {
		return out, t.failure(args, err, stderr.String())
	}
	return out, nil
}

// Run runs the tool and folds its combined output into the error on failure.
func (t *Tool) Run(ctx context.Context, args []string) error {
	cmd, err := t.CommandArgs(ctx, args)
	if err != nil {
		return err
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return t.failure(args, err, string(out))
	}
	return nil
}

// RunWithOutput runs the tool, piping to the provided writers.
func (t *Tool) RunWithOutput(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, err := t.CommandArgs(ctx, args)
	if err != nil {
		return err
	}
	cmd.SetStdout(stdout)
	cmd.SetStderr(stderr)
	if err := cmd.Run(); err != nil {
		return t.failure(args, err, "")
	}
	return nil
}

// Describe renders the command line the tool would run, for dry-run output.
func (t *Tool) Describe(args []string) string {
	return strings.Join(append([]string{t.bin}, args...), " ")
}

func (t *Tool) failure(args []string, err error, output string) error {
	output = strings.TrimSpace(output)
	if output == "" {
		return fmt.Errorf("%s: %w", t.Describe(args), err)
	}
	return fmt.Errorf("%s: %w: %s", t.Describe(args), err, output)
}
