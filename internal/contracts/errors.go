package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy. Symbol-level errors never escape a cycle; CycleFault never escapes the scheduler.
var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrAdvisorFailure   = errors.New("advisor failure")
	ErrExecutionFailure = errors.New("execution failure")

	ErrMalformedPayload = errors.New("malformed payload")
	ErrInsufficientBars = errors.New("insufficient bars")

	ErrPositionExists = errors.New("position already open")
	ErrNoPosition     = errors.New("no open position")
	ErrOversell       = errors.New("fill quantity exceeds open position")

	ErrCycleRunning = errors.New("cycle already running")
	ErrStopped      = errors.New("orchestrator stopped")
)

// SymbolError records the stage at which one symbol's processing failed
type SymbolError struct {
	Symbol string
	Stage  Phase
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Symbol, e.Stage, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// CycleFault is an unexpected error that aborted a whole cycle
type CycleFault struct {
	CycleID string
	Phase   Phase
	Err     error
}

func (e *CycleFault) Error() string {
	return fmt.Sprintf("cycle %s faulted in %s: %v", e.CycleID, e.Phase, e.Err)
}

func (e *CycleFault) Unwrap() error {
	return e.Err
}

// IsCycleFault reports whether err carries a CycleFault
func IsCycleFault(err error) bool {
	var fault *CycleFault
	return errors.As(err, &fault)
}
