// Package fsm holds the pure transition tables for practice sessions and practice items.
package fsm

import "fmt"

// State is the lifecycle phase of one practice session.
type State string

type Event string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StatePracticing  State = "practicing"
	StateDeviceError State = "device_error"
	StateComplete    State = "complete"
	StateStopped     State = "stopped"
)

const (
	EventStart    Event = "start"
	EventReady    Event = "ready"
	EventComplete Event = "complete"
	EventRetry    Event = "retry"
	EventFail     Event = "fail"
	EventStop     Event = "stop"
)

// Transition returns the phase reached from current on event.
func Transition(current State, event Event) (State, error) {
	if event == EventStop {
		if current == StateStopped {
			return current, invalidTransition(current, event)
		}
		return StateStopped, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventReady:
			return StatePracticing, nil
		case EventFail:
			return StateDeviceError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePracticing:
		switch event {
		case EventComplete:
			return StateComplete, nil
		case EventFail:
			return StateDeviceError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDeviceError:
		switch event {
		case EventRetry:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateComplete, StateStopped:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// ItemStatus is the per-item pass/fail marker.
type ItemStatus string

type ItemEvent string

const (
	ItemIdle      ItemStatus = "idle"
	ItemCorrect   ItemStatus = "correct"
	ItemIncorrect ItemStatus = "incorrect"
)

const (
	ItemSelect   ItemEvent = "select"
	ItemMatch    ItemEvent = "match"
	ItemMismatch ItemEvent = "mismatch"
)

// TransitionItem applies one recognition outcome or selection to an item.
// Correct is terminal.
func TransitionItem(current ItemStatus, event ItemEvent) (ItemStatus, error) {
	switch current {
	case ItemIdle, ItemIncorrect:
		switch event {
		case ItemSelect:
			return ItemIdle, nil
		case ItemMatch:
			return ItemCorrect, nil
		case ItemMismatch:
			return ItemIncorrect, nil
		default:
			return current, invalidItemTransition(current, event)
		}
	case ItemCorrect:
		return current, invalidItemTransition(current, event)
	default:
		return current, fmt.Errorf("unknown item status %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

func invalidItemTransition(status ItemStatus, event ItemEvent) error {
	return fmt.Errorf("invalid item transition: %s --(%s)--> ?", status, event)
}
