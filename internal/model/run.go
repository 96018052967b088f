package model

// RunState is the lifecycle state of a supervised tool run.
type RunState string

const (
	// RunStarting means the child process handle has not been obtained yet.
	RunStarting RunState = "starting"
	// RunMonitoring means the child is alive and output is being scanned.
	RunMonitoring RunState = "monitoring"
	// RunSucceeded means a success marker was seen or the child exited 0.
	RunSucceeded RunState = "succeeded"
	// RunFailed means an error marker was seen or the child exited non-zero.
	RunFailed RunState = "failed"
	// RunTimedOut means the wall-clock bound elapsed while still monitoring.
	RunTimedOut RunState = "timed_out"
	// RunKilled means the child was terminated by the supervisor or operator.
	RunKilled RunState = "killed"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunTimedOut, RunKilled:
		return true
	default:
		return false
	}
}

// LineTag classifies a single line of child output.
type LineTag string

const (
	// TagPrompt marks a line that expects operator (or scripted) input.
	TagPrompt LineTag = "prompt"
	// TagProgress marks spinner/redraw noise suppressed from the live view.
	TagProgress LineTag = "progress"
	// TagSuccess marks a definitive success indicator.
	TagSuccess LineTag = "success"
	// TagError marks a definitive failure indicator.
	TagError LineTag = "error"
	// TagOther marks everything else.
	TagOther LineTag = "other"
)
