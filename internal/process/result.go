package process

import "fmt"

// Outcome tags a step Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeFailure is a business rejection; it is routed, never retried.
	OutcomeFailure
	// OutcomeError is an unexpected system error; it is retried before being routed.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Result is what a StepHandler reports back to the engine.
type Result struct {
	Outcome Outcome
	Code    string
	Message string
	Err     error
}

func Success() Result { return Result{Outcome: OutcomeSuccess} }

// Failure reports a business failure with a machine-readable code.
func Failure(code, message string) Result {
	return Result{Outcome: OutcomeFailure, Code: code, Message: message}
}

// SystemError reports an unexpected error.
func SystemError(err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{Outcome: OutcomeError, Message: msg, Err: err}
}

func (r Result) IsSuccess() bool { return r.Outcome == OutcomeSuccess }

// BusinessError is returned by Start and Correlate when a step failed and the
// failure was routed to its handler. The process state is already final for
// that failure when the caller sees it.
type BusinessError struct {
	Step    string
	Code    string
	Message string
	// Resumed is true when the instance went back to a waiting step instead of failing.
	Resumed bool
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("step %s failed with %s: %s", e.Step, e.Code, e.Message)
}
