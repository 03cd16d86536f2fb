package states

import "fmt"

// Status of a run. Runs are created PENDING and only ever move along the
// edges declared in Transitions; terminal statuses have no outgoing edges.
type Status string

const (
	// PENDING Run has been created but is not executing yet.
	PENDING Status = "PENDING"

	// RUNNING Run is currently being executed.
	RUNNING Status = "RUNNING"

	// WAITING_FOR_APPROVAL Run is blocked on a human approval decision.
	// NOTE:
	// The run may wait forever if no approver ever acts on it.
	WAITING_FOR_APPROVAL Status = "WAITING_FOR_APPROVAL"

	// PAUSED Run has been paused by an operator.
	PAUSED Status = "PAUSED"

	// SUCCEEDED Run has finished successfully.
	SUCCEEDED Status = "SUCCEEDED"

	// FAILED Run has finished with an error.
	FAILED Status = "FAILED"

	// CANCELLED Run has been cancelled.
	CANCELLED Status = "CANCELLED"
)

var (
	_ALL = []Status{
		PENDING,
		RUNNING,
		WAITING_FOR_APPROVAL,
		PAUSED,
		SUCCEEDED,
		FAILED,
		CANCELLED,
	}

	terminalStatuses = []Status{
		SUCCEEDED, FAILED, CANCELLED,
	}

	// Transitions declares every legal (from, to) edge. Every declared
	// status must have an entry here, terminal ones an empty one; the
	// states package tests assert that coverage.
	Transitions = map[Status][]Status{
		PENDING:              {RUNNING},
		RUNNING:              {SUCCEEDED, FAILED, CANCELLED, WAITING_FOR_APPROVAL, PAUSED},
		WAITING_FOR_APPROVAL: {RUNNING},
		PAUSED:               {RUNNING},
		SUCCEEDED:            {},
		FAILED:               {},
		CANCELLED:            {},
	}
)

// InvalidTransitionError reports an illegal state-machine edge. It is fatal
// to the request that asked for it, never to the process.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid run transition %s -> %s", e.From, e.To)
}

func AllStatuses() []Status {
	all := make([]Status, len(_ALL))
	copy(all, _ALL)
	return all
}

func TerminalStatuses() []Status {
	terminal := make([]Status, len(terminalStatuses))
	copy(terminal, terminalStatuses)
	return terminal
}

func IsTerminal(status Status) bool {
	for _, s := range terminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsRunning(status Status) bool {
	return status == RUNNING
}

func IsWaitingForApproval(status Status) bool {
	return status == WAITING_FOR_APPROVAL
}

func IsPaused(status Status) bool {
	return status == PAUSED
}

func IsValidTransition(from, to Status) bool {
	targets, ok := Transitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

func AssertValidTransition(from, to Status) error {
	if !IsValidTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
