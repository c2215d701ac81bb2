package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateRecording     State = "recording"
	StateDraining      State = "draining"
	StateDisconnecting State = "disconnecting"
)

const (
	EventToggle       Event = "toggle"
	EventConnected    Event = "connected"
	EventDrained      Event = "drained"
	EventDisconnected Event = "disconnected"
	EventFail         Event = "fail"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventToggle:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventConnected:
			return StateRecording, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventToggle:
			return StateDraining, nil
		case EventFail:
			return StateDisconnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDraining:
		switch event {
		case EventDrained, EventFail:
			return StateDisconnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDisconnecting:
		switch event {
		case EventDisconnected:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
