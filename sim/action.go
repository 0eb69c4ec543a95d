package sim

// ActionCategory groups actions by their time cost profile.
type ActionCategory int

// Action categories.
const (
	CategoryQuick ActionCategory = iota
	CategoryNormal
	CategoryHeavy
	CategoryPrepared
)

var categoryNames = map[ActionCategory]string{
	CategoryQuick:    "quick",
	CategoryNormal:   "normal",
	CategoryHeavy:    "heavy",
	CategoryPrepared: "prepared",
}

func (c ActionCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ActionStatus is the outcome of executing an action.
type ActionStatus int

// Action outcomes. RequiresTarget and RequiresInput are valid intermediates,
// not failures: the action needs more information before it can run.
const (
	StatusSuccess ActionStatus = iota
	StatusFailed
	StatusCancelled
	StatusInterrupted
	StatusRequiresTarget
	StatusRequiresInput
)

var statusNames = map[ActionStatus]string{
	StatusSuccess:        "success",
	StatusFailed:         "failed",
	StatusCancelled:      "cancelled",
	StatusInterrupted:    "interrupted",
	StatusRequiresTarget: "requires-target",
	StatusRequiresInput:  "requires-input",
}

func (s ActionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// A Target identifies what an action is aimed at: an entity, a tile, or
// both.
type Target struct {
	EntityID string
	X, Y     int
}

// ValidationResult reports whether an action may run, with a human-readable
// reason when it may not. Validation failures are values, never errors or
// panics.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Valid is the ValidationResult for an action that may run.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid builds a failed ValidationResult.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Reason: reason}
}

// ActionResult is what executing an action produced.
type ActionResult struct {
	Status  ActionStatus
	Message string
}

// An Action is a unit of combat behavior the scheduler can validate, execute
// and charge time for. Actions are supplied by domain packages; the kernel
// only defines the contract and the built-in wait.
type Action interface {
	// Name returns the action identifier used by decision sources.
	Name() string

	// Category returns the time cost profile of the action.
	Category() ActionCategory

	// BaseWeight returns the nominal time cost in ticks.
	BaseWeight() Tick

	// EffectiveWeight returns the actual time cost for this actor in this
	// world, situational modifiers applied.
	EffectiveWeight(actor string, w World) Tick

	// Validate checks whether the actor may run the action against the
	// target. It never mutates state.
	Validate(actor string, w World, target *Target) ValidationResult

	// Execute runs the action. Resulting domain events go through emit; the
	// scheduler publishes them after execution.
	Execute(actor string, w World, target *Target, emit func(Event)) ActionResult
}

// WaitName is the name of the built-in wait action.
const WaitName = "wait"

// WaitWeight is the fixed time cost of waiting.
const WaitWeight Tick = 50

// waitAction is the built-in do-nothing action. It is always valid for a
// living actor, needs no target, and is the deterministic fallback when a
// decision source fails.
type waitAction struct{}

// NewWaitAction returns the built-in wait action.
func NewWaitAction() Action {
	return waitAction{}
}

func (waitAction) Name() string             { return WaitName }
func (waitAction) Category() ActionCategory { return CategoryQuick }
func (waitAction) BaseWeight() Tick         { return WaitWeight }

func (waitAction) EffectiveWeight(actor string, w World) Tick {
	return WaitWeight
}

func (waitAction) Validate(actor string, w World, target *Target) ValidationResult {
	c, ok := w.Combatant(actor)
	if !ok {
		return Invalid("unknown actor")
	}
	if !c.Alive() {
		return Invalid("actor is down")
	}
	return Valid()
}

func (waitAction) Execute(
	actor string,
	w World,
	target *Target,
	emit func(Event),
) ActionResult {
	return ActionResult{Status: StatusSuccess, Message: "waits"}
}
