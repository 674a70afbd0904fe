package tools

import (
	"context"
	"io"
)

// MockCommand records how a command was configured and returns canned
// results.
type MockCommand struct {
	Args       []string
	OutputData []byte
	OutputErr  error
	RunErr     error
	RunFunc    func() error
	StdinR     io.Reader
	StdoutW    io.Writer
	StderrW    io.Writer
}

func (c *MockCommand) Output() ([]byte, error) {
	if c.RunErr != nil {
		return c.OutputData, c.RunErr
	}
	return c.OutputData, c.OutputErr
}

func (c *MockCommand) CombinedOutput() ([]byte, error) { return c.Output() }

func (c *MockCommand) Run() error {
	if c.RunFunc != nil {
		return c.RunFunc()
	}
	return c.RunErr
}

func (c *MockCommand) SetStdout(w io.Writer) { c.StdoutW = w }
func (c *MockCommand) SetStderr(w io.Writer) { c.StderrW = w }
func (c *MockCommand) SetStdin(r io.Reader)  { c.StdinR = r }

// MockExecutor records every command it creates. Validators run exactly as
// they would for the real executor.
type MockExecutor struct {
	Commands      []ExecSpec
	DefaultOutput []byte
	DefaultErr    error
	DefaultRunErr error
	CommandFunc   func(spec ExecSpec) *MockCommand
}

func (m *MockExecutor) Command(_ context.Context, name string, args []string, validators ...ExecValidator) (Command, error) {
	spec := ExecSpec{Name: name, Args: append([]string(nil), args...)}
	for _, validate := range validators {
		if err := validate(spec); err != nil {
			return nil, err
		}
	}
	m.Commands = append(m.Commands, spec)
	if m.CommandFunc != nil {
		return m.CommandFunc(spec), nil
	}
	return &MockCommand{
		Args:       spec.Args,
		OutputData: m.DefaultOutput,
		OutputErr:  m.DefaultErr,
		RunErr:     m.DefaultRunErr,
	}, nil
}

func (m *MockExecutor) HasCommand(name string) bool {
	for _, c := range m.Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (m *MockExecutor) LastCommand() ExecSpec {
	if len(m.Commands) == 0 {
		return ExecSpec{}
	}
	return m.Commands[len(m.Commands)-1]
}

// commandHasArgs reports whether args appear in spec in the given order.
func commandHasArgs(spec ExecSpec, args ...string) bool {
	i := 0
	for _, a := range spec.Args {
		if i < len(args) && a == args[i] {
			i++
		}
	}
	return i == len(args)
}
