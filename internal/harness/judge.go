package harness

import (
	"sync"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

// judge tracks the run's state machine. Once a terminal state is reached no
// later observation can move it: the first verdict sticks.
type judge struct {
	mu    sync.Mutex
	state model.RunState
}

func newJudge() *judge {
	return &judge{state: model.RunStarting}
}

func (j *judge) State() model.RunState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// transition moves to next unless the current state is already terminal.
// It reports whether the move happened.
func (j *judge) transition(next model.RunState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = next
	return true
}

func (j *judge) monitoring() bool { return j.transition(model.RunMonitoring) }
func (j *judge) succeed() bool    { return j.transition(model.RunSucceeded) }
func (j *judge) fail() bool       { return j.transition(model.RunFailed) }
func (j *judge) timeout() bool    { return j.transition(model.RunTimedOut) }
func (j *judge) kill() bool       { return j.transition(model.RunKilled) }
