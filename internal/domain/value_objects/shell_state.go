package valueobjects

import "fmt"

type ShellState string

const (
	ShellStateNotStarted       ShellState = "not_started"
	ShellStateStarting         ShellState = "starting"
	ShellStateBootstrapRunning ShellState = "bootstrap_running"
	ShellStateReady            ShellState = "ready"
	ShellStateFailed           ShellState = "failed"
	ShellStateStopping         ShellState = "stopping"
	ShellStateStopped          ShellState = "stopped"
)

var shellTransitions = map[ShellState][]ShellState{
	ShellStateNotStarted:       {ShellStateStarting},
	ShellStateStarting:         {ShellStateBootstrapRunning, ShellStateFailed},
	ShellStateBootstrapRunning: {ShellStateReady, ShellStateFailed, ShellStateStopping},
	ShellStateReady:            {ShellStateStopping},
	ShellStateStopping:         {ShellStateStopped},
}

func (s ShellState) IsTerminal() bool {
	return s == ShellStateFailed || s == ShellStateStopped
}

func (s ShellState) CanTransitionTo(next ShellState) bool {
	for _, allowed := range shellTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s ShellState) TransitionTo(next ShellState) (ShellState, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("invalid shell transition %s -> %s", s, next)
	}

	return next, nil
}

func (s ShellState) String() string {
	return string(s)
}
