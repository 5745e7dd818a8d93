// Package fsm defines the stream lifecycle shared by every session type.
package fsm

import "fmt"

type State string

type Event string

const (
	// StateActive accepts audio and is decoded as chunks become ready.
	StateActive State = "active"
	// StateDraining has no more input coming but still holds unconsumed audio.
	StateDraining State = "draining"
	StateFinished State = "finished"
	StateClosed   State = "closed"
)

const (
	EventInputFinished Event = "input_finished"
	EventDrained       Event = "drained"
	EventDecoded       Event = "decoded"
	EventReset         Event = "reset"
	EventClose         Event = "close"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventClose && current != StateClosed {
		return StateClosed, nil
	}

	switch current {
	case StateActive:
		switch event {
		case EventInputFinished:
			return StateDraining, nil
		case EventDecoded:
			return StateFinished, nil
		case EventReset:
			return StateActive, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDraining:
		switch event {
		case EventDrained:
			return StateFinished, nil
		case EventReset:
			// Input stays finished; the buffered tail still has to be decoded.
			return StateDraining, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinished:
		switch event {
		case EventReset:
			return StateActive, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Accepting reports whether a stream in state may take more audio.
func Accepting(state State) bool {
	return state == StateActive
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
