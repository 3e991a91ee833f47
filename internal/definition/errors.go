package definition

import "fmt"

// ErrorKind classifies definition errors
type ErrorKind int

const (
	ErrorInvalidUnit ErrorKind = iota
	ErrorDuplicateUnit
	ErrorUnknownUnit
	ErrorEmptyChain
	ErrorDuplicateStep
	ErrorInvalidDelay
	ErrorInvalidTimeout
	ErrorInvalidSchedule
	ErrorRuleAlreadyBound
	ErrorIncomplete
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorInvalidUnit:
		return "InvalidUnit"
	case ErrorDuplicateUnit:
		return "DuplicateUnit"
	case ErrorUnknownUnit:
		return "UnknownUnit"
	case ErrorEmptyChain:
		return "EmptyChain"
	case ErrorDuplicateStep:
		return "DuplicateStep"
	case ErrorInvalidDelay:
		return "InvalidDelay"
	case ErrorInvalidTimeout:
		return "InvalidTimeout"
	case ErrorInvalidSchedule:
		return "InvalidSchedule"
	case ErrorRuleAlreadyBound:
		return "RuleAlreadyBound"
	case ErrorIncomplete:
		return "Incomplete"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is; a *Error matches the sentinel of its kind.
var (
	ErrInvalidUnit      = &Error{Kind: ErrorInvalidUnit}
	ErrDuplicateUnit    = &Error{Kind: ErrorDuplicateUnit}
	ErrUnknownUnit      = &Error{Kind: ErrorUnknownUnit}
	ErrEmptyChain       = &Error{Kind: ErrorEmptyChain}
	ErrDuplicateStep    = &Error{Kind: ErrorDuplicateStep}
	ErrInvalidDelay     = &Error{Kind: ErrorInvalidDelay}
	ErrInvalidTimeout   = &Error{Kind: ErrorInvalidTimeout}
	ErrInvalidSchedule  = &Error{Kind: ErrorInvalidSchedule}
	ErrRuleAlreadyBound = &Error{Kind: ErrorRuleAlreadyBound}
	ErrIncomplete       = &Error{Kind: ErrorIncomplete}
)

// Error represents a rejected declaration
type Error struct {
	Kind    ErrorKind
	Element string // unit, step, workflow or rule name
	Message string
}

func (e *Error) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Element, e.Message)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, element, format string, args ...any) *Error {
	return &Error{Kind: kind, Element: element, Message: fmt.Sprintf(format, args...)}
}
