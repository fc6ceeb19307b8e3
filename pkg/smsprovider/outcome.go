package smsprovider

import "fmt"

// OutcomeKind is the closed set of normalized provider results. Classification
// happens once here at the provider boundary; everything downstream consumes
// the kind as data instead of re-deriving it from HTTP codes.
type OutcomeKind int

const (
	OutcomeDelivered OutcomeKind = iota
	OutcomeRetriable
	OutcomePermanent
	OutcomeBalanceExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRetriable:
		return "retriable"
	case OutcomePermanent:
		return "permanent"
	case OutcomeBalanceExhausted:
		return "balance_exhausted"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Kind          OutcomeKind
	ProviderMsgID string // set when Kind == OutcomeDelivered
	HTTPStatus    int    // set when Kind == OutcomeRetriable; 0 means network/timeout
	Reason        string // set for failures, human-readable
}

// ErrorText renders a failure outcome for storage in last_error_message.
func (o Outcome) ErrorText() string {
	switch o.Kind {
	case OutcomeRetriable:
		if o.HTTPStatus == 0 {
			return "provider unreachable: " + o.Reason
		}
		return fmt.Sprintf("provider returned HTTP %d", o.HTTPStatus)
	case OutcomeBalanceExhausted:
		return "provider account balance exhausted"
	default:
		return o.Reason
	}
}
