package notify

import "fmt"

// Step identifies one delivery step within a dispatch operation.
type Step string

const (
	StepPersonalChannel Step = "personal_channel"
	StepSummary         Step = "summary"
	StepThread          Step = "thread"
	StepDetail          Step = "detail"
	StepPersistIDs      Step = "persist_ids"
	StepRename          Step = "rename"
	StepInstructor      Step = "instructor"
)

// StepError records the failure of a single delivery step.
type StepError struct {
	Step Step
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// DeliveryResult reports the outcome of a best-effort dispatch. It lets
// callers decide whether to log, count, or ignore partial failures instead
// of having them swallowed inside the dispatcher.
type DeliveryResult struct {
	failures []StepError
}

// Fail records a failed step.
func (r *DeliveryResult) Fail(step Step, err error) {
	r.failures = append(r.failures, StepError{Step: step, Err: err})
}

// OK reports whether every step succeeded.
func (r *DeliveryResult) OK() bool {
	return len(r.failures) == 0
}

// Failures returns the failed steps in order of occurrence.
func (r *DeliveryResult) Failures() []StepError {
	return r.failures
}

// FailedStep reports whether the given step failed.
func (r *DeliveryResult) FailedStep(step Step) bool {
	for _, f := range r.failures {
		if f.Step == step {
			return true
		}
	}
	return false
}
