package blob

import "github.com/oio-go/blobkit/status"

// State is the transaction lifecycle enum shared by every Upload,
// Download, and Removal implementation (spec.md §3 "Transaction state").
type State int

const (
	// StateInit is the state before Prepare is called.
	StateInit State = iota
	// StatePrepared is the state after a successful Prepare, accepting
	// Write calls (Upload) or Read calls (Download).
	StatePrepared
	// StateDone is the terminal state after Commit or Abort.
	StateDone
)

// Machine is an embeddable state-machine guard. Back-ends embed it and
// call its methods at the start of every operation instead of
// hand-rolling the same switch statement each time.
type Machine struct {
	state State
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// RequirePrepare validates a Prepare() call: only legal from StateInit.
func (m *Machine) RequirePrepare() status.Status {
	if m.state != StateInit {
		return status.New(status.InternalError, "Prepare called in state %v", m.state)
	}
	return status.Ok()
}

// EnterPrepared transitions Init -> Prepared. Callers must have already
// validated via RequirePrepare.
func (m *Machine) EnterPrepared() {
	m.state = StatePrepared
}

// RequireWrite validates a Write/Read call: only legal in StatePrepared.
func (m *Machine) RequireWrite() status.Status {
	if m.state != StatePrepared {
		return status.New(status.InternalError, "write/read called in state %v", m.state)
	}
	return status.Ok()
}

// RequireTerminal validates a Commit/Abort call: only legal from
// StatePrepared, and mutually exclusive with any prior Commit/Abort.
func (m *Machine) RequireTerminal() status.Status {
	if m.state != StatePrepared {
		return status.New(status.InternalError, "commit/abort called in state %v", m.state)
	}
	return status.Ok()
}

// EnterDone transitions Prepared -> Done.
func (m *Machine) EnterDone() {
	m.state = StateDone
}

// String renders the state for log fields and error explanations.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StatePrepared:
		return "Prepared"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}
