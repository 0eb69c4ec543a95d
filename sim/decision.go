package sim

import "errors"

// ErrAwaitingInput is returned by a DecisionSource that needs external input
// before it can produce a decision. The scheduler leaves the turn pending and
// publishes PlayerActionRequested; the input pipeline later completes the
// turn through SubmitAction.
var ErrAwaitingInput = errors.New("decision source is awaiting input")

// A Decision names the action an entity wants to take and what it is aimed
// at. Confidence and Reasoning are diagnostic only; the scheduler ignores
// them.
type Decision struct {
	ActionName string
	Target     *Target
	Confidence float64
	Reasoning  string
}

// A DecisionSource produces actions for entities it controls. Human input
// pipelines and AI controllers implement the same contract: given the
// visible state, produce a decision or report that more input is needed.
type DecisionSource interface {
	// Decide produces a decision for the acting entity described by the
	// view. Returning ErrAwaitingInput defers the turn until input arrives.
	// Any other error makes the scheduler fall back to wait.
	Decide(view SessionView, w World) (Decision, error)
}
