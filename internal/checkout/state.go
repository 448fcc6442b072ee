package checkout

// State is a step of the client submission saga.
type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StateCreatingOrder     State = "creating_order"
	StateCompletingDirect  State = "completing_direct"
	StateInitiatingPayment State = "initiating_payment"
	StateRedirecting       State = "redirecting"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

var transitions = map[State][]State{
	StateIdle:              {StateValidating, StateFailed},
	StateValidating:        {StateCreatingOrder, StateIdle, StateFailed},
	StateCreatingOrder:     {StateCompletingDirect, StateInitiatingPayment, StateFailed},
	StateCompletingDirect:  {StateCompleted, StateFailed},
	StateInitiatingPayment: {StateRedirecting, StateFailed},
	StateRedirecting:       {StateIdle},
	StateCompleted:         {StateIdle},
	StateFailed:            {StateIdle},
}

func (s State) String() string {
	return string(s)
}

// CanTransitionTo reports whether the saga may move from s to next.
func (s State) CanTransitionTo(next State) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a submission attempt has ended. Only Reset
// leaves a terminal state.
func (s State) IsTerminal() bool {
	switch s {
	case StateRedirecting, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Reason classifies why an attempt ended in Failed.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonValidation Reason = "validation"
	ReasonSettings   Reason = "settings"
	ReasonOrder      Reason = "order_creation"
	ReasonPayment    Reason = "payment_initiation"
	ReasonAbandoned  Reason = "abandoned"
	ReasonUnexpected Reason = "unexpected"
)
