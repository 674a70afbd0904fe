package airgap

// Reporter receives the user-facing progress of a phase.
type Reporter interface {
	Section(title string)
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	// DryRun reports an action that would have run.
	DryRun(action string)
}

type nopReporter struct{}

func (nopReporter) Section(string) {}
func (nopReporter) Info(string)    {}
func (nopReporter) Success(string) {}
func (nopReporter) Warn(string)    {}
func (nopReporter) DryRun(string)  {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return nopReporter{}
	}
	return r
}
