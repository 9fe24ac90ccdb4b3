package staking

// TxState is the lifecycle state of a user transaction.
type TxState int

const (
	StateIdle TxState = iota
	StateAwaitingAuthorization
	StateBroadcasting
	StateExecuted
	StateInvalid
	StateSuccess
	StateDropped
	StateError
)

func (s TxState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAuthorization:
		return "awaiting-authorization"
	case StateBroadcasting:
		return "broadcasting"
	case StateExecuted:
		return "executed"
	case StateInvalid:
		return "invalid"
	case StateSuccess:
		return "success"
	case StateDropped:
		return "dropped"
	case StateError:
		return "error"
	}
	return "unknown"
}

func (s TxState) Terminal() bool {
	switch s {
	case StateInvalid, StateSuccess, StateDropped, StateError:
		return true
	}
	return false
}

var txTransitions = map[TxState][]TxState{
	StateIdle:                  {StateAwaitingAuthorization},
	StateAwaitingAuthorization: {StateBroadcasting, StateError},
	StateBroadcasting:          {StateInvalid, StateExecuted, StateDropped, StateError},
	StateExecuted:              {StateSuccess, StateDropped, StateError},
}

// txMachine tracks one transaction. Transitions not in txTransitions are ignored, which makes
// terminal states absorbing.
type txMachine struct {
	state TxState
}

// advance moves to next and reports whether the transition happened.
func (m *txMachine) advance(next TxState) bool {
	for _, allowed := range txTransitions[m.state] {
		if allowed == next {
			m.state = next
			return true
		}
	}
	return false
}
