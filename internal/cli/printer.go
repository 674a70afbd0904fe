package cli

// This file implements the user-facing printer. Structured logs go through
// zap; everything a user is meant to read goes through here.

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Printer renders progress lines, tables and spinners with pterm.
type Printer struct {
	// Quiet suppresses everything except errors and warnings.
	Quiet bool
	Out   io.Writer
}

// DefaultPrinter writes to stdout.
var DefaultPrinter = &Printer{}

// ConfigureColor enables colors only when stdout is a terminal and noColor
// is unset.
func ConfigureColor(noColor bool) {
	if noColor || !isTerminal(os.Stdout) {
		pterm.DisableColor()
		return
	}
	pterm.EnableColor()
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int.
}

func (p *Printer) writer() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.writer(), format, args...)
}

func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.writer(), args...)
}

// Header prints a full-width title.
func (p *Printer) Header(title string) {
	if p.Quiet {
		return
	}
	p.Println(pterm.DefaultHeader.WithFullWidth().Sprint(title))
}

func (p *Printer) Section(title string) {
	if p.Quiet {
		return
	}
	p.Println(pterm.DefaultSection.Sprint(title))
}

func (p *Printer) Step(msg string) {
	if p.Quiet {
		return
	}
	p.Println(Cyan("→ ") + msg)
}

func (p *Printer) Info(msg string) {
	if p.Quiet {
		return
	}
	p.Println(pterm.Info.Sprint(msg))
}

func (p *Printer) Success(msg string) {
	if p.Quiet {
		return
	}
	p.Println(pterm.Success.Sprint(msg))
}

func (p *Printer) Warn(msg string) {
	p.Println(pterm.Warning.Sprint(msg))
}

func (p *Printer) Error(msg string) {
	p.Println(pterm.Error.Sprint(msg))
}

// DryRun reports an action that was not executed. It prints in quiet mode
// too, since it is the only output of a simulation.
func (p *Printer) DryRun(action string) {
	prefix := pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix:       pterm.Prefix{Text: "DRY-RUN", Style: pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)},
	}
	p.Println(prefix.Sprint(action))
}

// Table prints rows with the first row as header.
func (p *Printer) Table(data [][]string) {
	p.table(data, false)
}

// TableBoxed prints rows inside a box.
func (p *Printer) TableBoxed(data [][]string) {
	p.table(data, true)
}

func (p *Printer) table(data [][]string, boxed bool) {
	if len(data) == 0 {
		return
	}
	table := pterm.DefaultTable.WithData(data).WithHasHeader().WithSeparator("  ")
	if boxed {
		table = table.WithBoxed()
	}
	out, err := table.Srender()
	if err != nil {
		p.Warn(fmt.Sprintf("failed to render table: %v", err))
		return
	}
	p.Println(out)
}

// SpinnerStart starts a spinner and returns the function that stops it.
func (p *Printer) SpinnerStart(msg string) func(ok bool, final string) {
	if p.Quiet || !isTerminal(os.Stdout) {
		return func(ok bool, final string) {
			if !ok {
				p.Error(final)
				return
			}
			p.Success(final)
		}
	}
	spinner, err := pterm.DefaultSpinner.WithWriter(p.writer()).Start(msg)
	if err != nil {
		p.Info(msg)
		return func(bool, string) {}
	}
	return func(ok bool, final string) {
		if ok {
			spinner.Success(final)
			return
		}
		spinner.Fail(final)
	}
}

// Package level shortcuts on DefaultPrinter.

func Header(title string)        { DefaultPrinter.Header(title) }
func Section(title string)       { DefaultPrinter.Section(title) }
func Step(msg string)            { DefaultPrinter.Step(msg) }
func Info(msg string)            { DefaultPrinter.Info(msg) }
func Success(msg string)         { DefaultPrinter.Success(msg) }
func Warn(msg string)            { DefaultPrinter.Warn(msg) }
func Error(msg string)           { DefaultPrinter.Error(msg) }
func Table(data [][]string)      { DefaultPrinter.Table(data) }
func TableBoxed(data [][]string) { DefaultPrinter.TableBoxed(data) }
func Green(s string) string      { return pterm.Green(s) }
func Yellow(s string) string     { return pterm.Yellow(s) }
func Red(s string) string        { return pterm.Red(s) }
func Cyan(s string) string       { return pterm.Cyan(s) }
