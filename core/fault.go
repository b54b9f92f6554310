package core

import "fmt"

// FaultKind names one of the taxonomy entries from the error-handling
// design: every fault raised by C1-C9 is caught at the coordinator
// boundary and switched on by kind, never by string matching.
type FaultKind string

const (
	FaultConfigInvalid        FaultKind = "ConfigInvalid"
	FaultInferenceUnavailable FaultKind = "InferenceUnavailable"
	FaultGeneratorExhausted   FaultKind = "GeneratorExhausted"
	FaultParseError           FaultKind = "ParseError"
	FaultToolBlocked          FaultKind = "ToolBlocked"
	FaultToolTimeout          FaultKind = "ToolTimeout"
	FaultToolError            FaultKind = "ToolError"
	FaultVerifierError        FaultKind = "VerifierError"
	FaultRateLimited          FaultKind = "RateLimited"
	FaultLockContention       FaultKind = "LockContention"
	FaultPlanCyclic           FaultKind = "PlanCyclic"
)

// Fault is a typed-kind error carrying a context map, so the coordinator
// can recover cause and component without parsing an error string.
type Fault struct {
	Kind    FaultKind
	Context map[string]any
	Cause   error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error { return f.Cause }

// NewFault builds a Fault, wrapping cause if non-nil.
func NewFault(kind FaultKind, cause error, ctx map[string]any) *Fault {
	return &Fault{Kind: kind, Context: ctx, Cause: cause}
}
