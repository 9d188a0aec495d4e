package interfaces

import "fmt"

// InvoiceState is the lifecycle position of an invoice, derived across the
// registries.
type InvoiceState int

const (
	StateUnregistered InvoiceState = iota
	StateRegistered
	StateCertified
	StateRiskAssessed
	StateFunded
	StateRepaid
)

// String returns the state name.
func (s InvoiceState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateCertified:
		return "certified"
	case StateRiskAssessed:
		return "risk_assessed"
	case StateFunded:
		return "funded"
	case StateRepaid:
		return "repaid"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s InvoiceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *InvoiceState) UnmarshalText(text []byte) error {
	parsed, err := ParseInvoiceState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseInvoiceState is the inverse of InvoiceState.String.
func ParseInvoiceState(name string) (InvoiceState, error) {
	for s := StateUnregistered; s <= StateRepaid; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return StateUnregistered, fmt.Errorf("unknown invoice state %q", name)
}

// Action is an operation that moves an invoice through its lifecycle.
type Action int

const (
	ActionRegister Action = iota
	ActionCertify
	ActionAssessRisk
	ActionUpdateRisk
	ActionFund
	ActionRepay
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionRegister:
		return "register"
	case ActionCertify:
		return "certify"
	case ActionAssessRisk:
		return "assess_risk"
	case ActionUpdateRisk:
		return "update_risk"
	case ActionFund:
		return "fund"
	case ActionRepay:
		return "repay"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from   InvoiceState
	action Action
}

// transitions is the complete lifecycle table. Nothing moves backwards;
// RiskAssessed is the only state that may be re-entered.
var transitions = map[transitionKey]InvoiceState{
	{StateUnregistered, ActionRegister}:   StateRegistered,
	{StateRegistered, ActionCertify}:      StateCertified,
	{StateCertified, ActionAssessRisk}:    StateRiskAssessed,
	{StateRiskAssessed, ActionAssessRisk}: StateRiskAssessed,
	{StateRiskAssessed, ActionUpdateRisk}: StateRiskAssessed,
	{StateRiskAssessed, ActionFund}:       StateFunded,
	{StateFunded, ActionRepay}:            StateRepaid,
}

// Transition returns the state reached by applying action in state from,
// or ErrInvalidTransition when the table has no such edge.
func Transition(from InvoiceState, action Action) (InvoiceState, error) {
	to, ok := transitions[transitionKey{from, action}]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}
