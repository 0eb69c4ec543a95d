package sim

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Scheduler errors. Validation failures are ValidationResult values, not
// errors; these cover contract misuse.
var (
	// ErrNoActiveTurn is returned when an action is submitted while no turn
	// is pending.
	ErrNoActiveTurn = errors.New("no turn is awaiting an action")

	// ErrUnknownAction is returned when a submitted action name is not
	// registered. The pending entry is not popped.
	ErrUnknownAction = errors.New("unknown action")

	// ErrStaleEntity is returned when a popped entry references an entity
	// the world does not know. This is a contract violation; the turn is
	// discarded and the session continues.
	ErrStaleEntity = errors.New("timeline entry references an unknown entity")
)

// TurnStatus tells the caller what ProcessNextTurn accomplished.
type TurnStatus int

// Turn outcomes.
const (
	// TurnCompleted means one entry was activated and fully resolved.
	TurnCompleted TurnStatus = iota

	// TurnAwaitingInput means the acting entity needs external input; the
	// entry stays live at the head of the timeline until SubmitAction.
	TurnAwaitingInput

	// TurnIdle means the encounter is over and nothing was processed.
	TurnIdle
)

// SessionView is the read-only snapshot of turn state the scheduler exposes
// to UI, input and AI. The scheduler is the sole writer of the underlying
// state.
type SessionView struct {
	Tick           Tick
	Round          int
	ActingEntity   string
	SelectedEntity string
	CursorX        int
	CursorY        int
	PendingAction  string
}

// Positioned is implemented by combatants that occupy a grid tile. The
// scheduler uses it to keep the cursor in agreement with the acting unit.
type Positioned interface {
	Position() (x, y int)
}

// A TurnScheduler drives the turn loop: pull the next ready timeline entry,
// announce the turn, obtain an action from the entity's decision source,
// execute it, and reschedule the entity by the action's weight. It owns
// exactly one Timeline and holds injected references to the bus and the
// phase machine.
//
// The scheduler is hookable at BeforeTurn and AfterTurn, with the active
// timeline entry as the hook item.
type TurnScheduler struct {
	HookableBase

	timeline *Timeline
	bus      *EventBus
	phases   *PhaseStateMachine
	world    World
	log      *zap.Logger

	actions map[string]Action
	sources map[string]DecisionSource

	pending       *TimelineEntry
	pendingAction Action
	awaitingInput bool

	actingEntity   string
	selectedEntity string
	cursorX        int
	cursorY        int

	round          int
	processedTurns int
	compactEvery   int
}

// NewTurnScheduler creates a scheduler with a fresh timeline. The bus, phase
// machine and world are injected, never owned. A nil logger is replaced with
// a nop logger.
func NewTurnScheduler(
	bus *EventBus,
	phases *PhaseStateMachine,
	world World,
	logger *zap.Logger,
) *TurnScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &TurnScheduler{
		timeline:     NewTimeline(),
		bus:          bus,
		phases:       phases,
		world:        world,
		log:          logger,
		actions:      make(map[string]Action),
		sources:      make(map[string]DecisionSource),
		compactEvery: 32,
	}

	s.RegisterAction(NewWaitAction())
	phases.SetSelectionResetFunc(s.clearSelection)

	return s
}

// Timeline returns the scheduler's timeline for read-only use (preview,
// monitoring, recovery checks).
func (s *TurnScheduler) Timeline() *Timeline {
	return s.timeline
}

// View returns a read-only snapshot of the turn state.
func (s *TurnScheduler) View() SessionView {
	v := SessionView{
		Tick:           s.timeline.CurrentTime(),
		Round:          s.round,
		ActingEntity:   s.actingEntity,
		SelectedEntity: s.selectedEntity,
		CursorX:        s.cursorX,
		CursorY:        s.cursorY,
	}
	if s.pendingAction != nil {
		v.PendingAction = s.pendingAction.Name()
	}
	return v
}

// RegisterAction makes an action available by name. Registering a name twice
// replaces the old action.
func (s *TurnScheduler) RegisterAction(a Action) {
	s.actions[a.Name()] = a
}

// AttachCombatant schedules a combatant's first activation at its base speed
// and remembers which decision source controls it. A nil source marks the
// entity as externally controlled; its turns wait for SubmitAction.
func (s *TurnScheduler) AttachCombatant(c Combatant, src DecisionSource) {
	if src != nil {
		s.sources[c.ID()] = src
	}
	s.timeline.Schedule(c.ID(), c.Speed(), 0, c.ID()+" joins the battle", nil)
}

// DetachEntity tombstones all timeline entries of an entity that leaves the
// simulation early and returns how many were removed.
func (s *TurnScheduler) DetachEntity(id string) int {
	count := s.timeline.RemoveEntries(id)
	if s.pending != nil && s.pending.EntityID == id {
		s.clearTurnState()
	}
	return count
}

// SetCursor moves the UI cursor. Input routing owns when to call this; the
// scheduler only stores the value and repairs it on desync.
func (s *TurnScheduler) SetCursor(x, y int) {
	s.cursorX = x
	s.cursorY = y
}

// ProcessNextTurn advances the simulation by one timeline entry.
//
// The head entry is peeked, not popped, while a decision is pending, so the
// UI and the consistency checks can still see whose turn it is. The entry is
// only popped once an executable action exists.
func (s *TurnScheduler) ProcessNextTurn() (TurnStatus, error) {
	if s.awaitingInput {
		return TurnAwaitingInput, nil
	}

	if s.timeline.IsEmpty() {
		if s.checkEncounterEnd() {
			return TurnIdle, nil
		}
		s.repairEmptyTimeline()
	}

	entry := s.timeline.PeekNext()
	if entry == nil {
		// Repair found nobody to reschedule. Nothing to drive.
		return TurnIdle, nil
	}

	if entry.Kind != EntryUnit {
		return s.processScheduledEntry(entry)
	}

	combatant, ok := s.world.Combatant(entry.EntityID)
	if !ok {
		s.timeline.PopNext()
		s.log.Error("timeline entry references unknown entity",
			zap.String("entity", entry.EntityID),
			zap.Int64("tick", int64(entry.ExecutionTime)),
		)
		return TurnCompleted, fmt.Errorf("%w: %s", ErrStaleEntity, entry.EntityID)
	}
	if !combatant.Alive() {
		// The entity died without its entries being removed. Drop the entry
		// and move on; recovery logs the desync.
		s.timeline.PopNext()
		s.log.Warn("dead entity surfaced on the timeline",
			zap.String("entity", entry.EntityID),
		)
		return TurnCompleted, nil
	}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeTurn, Item: entry})
	s.syncSelection(entry, combatant)

	s.pending = entry
	s.actingEntity = entry.EntityID
	s.round++

	s.bus.PublishImmediate(UnitTurnStartedEvent{
		EventBase: MakeEventBase(entry.ExecutionTime, entry.EntityID, combatant.Team()),
	}, "scheduler")
	s.bus.Publish(TurnStartedEvent{
		EventBase: MakeEventBase(entry.ExecutionTime, entry.EntityID, combatant.Team()),
		Round:     s.round,
	}, PriorityNormal, "scheduler")

	if entry.ScheduledAction != nil {
		// Pre-committed action: execute without consulting a decision
		// source.
		s.phases.ForceBattlePhase(PhaseInterruptResolution, "pre-committed action")
		s.timeline.PopNext()
		return s.resolveAction(entry, combatant, entry.ScheduledAction, nil)
	}

	src := s.sources[entry.EntityID]
	if src == nil {
		return s.requestExternalInput(entry, combatant)
	}

	decision, err := src.Decide(s.View(), s.world)
	if errors.Is(err, ErrAwaitingInput) {
		return s.requestExternalInput(entry, combatant)
	}
	if err != nil {
		s.log.Warn("decision source failed, falling back to wait",
			zap.String("entity", entry.EntityID),
			zap.Error(err),
		)
		decision = Decision{ActionName: WaitName, Reasoning: "fallback"}
	}

	vr, err := s.SubmitAction(decision.ActionName, decision.Target)
	if err != nil || !vr.Valid {
		if err != nil {
			s.log.Warn("decision produced an unusable action, waiting instead",
				zap.String("entity", entry.EntityID),
				zap.String("action", decision.ActionName),
				zap.Error(err),
			)
		} else {
			s.log.Warn("decision produced an invalid action, waiting instead",
				zap.String("entity", entry.EntityID),
				zap.String("action", decision.ActionName),
				zap.String("reason", vr.Reason),
			)
		}
		if _, err := s.SubmitAction(WaitName, nil); err != nil {
			return TurnCompleted, err
		}
	}

	return TurnCompleted, nil
}

// SelectAction commits the acting entity to an action that still needs a
// target. The entry is not popped; the phase machine moves to targeting.
func (s *TurnScheduler) SelectAction(name string) error {
	if s.pending == nil {
		return ErrNoActiveTurn
	}

	action, ok := s.actions[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	s.pendingAction = action
	s.bus.PublishImmediate(ActionSelectedEvent{
		EventBase:  MakeEventBase(s.timeline.CurrentTime(), s.actingEntity, s.teamOf(s.actingEntity)),
		ActionName: name,
	}, "scheduler")

	return nil
}

// CancelAction backs the acting entity out of targeting. Cancellation is a
// phase transition driven by the ActionCanceled event, not a separate
// mechanism; the pending entry stays live.
func (s *TurnScheduler) CancelAction() error {
	if s.pending == nil {
		return ErrNoActiveTurn
	}

	name := ""
	if s.pendingAction != nil {
		name = s.pendingAction.Name()
	}
	s.pendingAction = nil

	s.bus.PublishImmediate(ActionCanceledEvent{
		EventBase:  MakeEventBase(s.timeline.CurrentTime(), s.actingEntity, s.teamOf(s.actingEntity)),
		ActionName: name,
	}, "scheduler")

	return nil
}

// SubmitAction resolves the pending turn with a named action and target. An
// invalid action is reported through the ValidationResult without mutating
// any state or popping the entry. On success the entry is popped, the action
// executes, the entity is rescheduled by the action's effective weight, and
// the bus is drained before returning.
func (s *TurnScheduler) SubmitAction(name string, target *Target) (ValidationResult, error) {
	if s.pending == nil {
		return ValidationResult{}, ErrNoActiveTurn
	}

	action, ok := s.actions[name]
	if !ok {
		return ValidationResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	entry := s.pending
	combatant, ok := s.world.Combatant(entry.EntityID)
	if !ok {
		s.timeline.PopNext()
		s.clearTurnState()
		return ValidationResult{}, fmt.Errorf("%w: %s", ErrStaleEntity, entry.EntityID)
	}

	vr := action.Validate(entry.EntityID, s.world, target)
	if !vr.Valid {
		return vr, nil
	}

	if s.pendingAction == nil || s.pendingAction.Name() != name {
		s.bus.PublishImmediate(ActionSelectedEvent{
			EventBase:  MakeEventBase(s.timeline.CurrentTime(), entry.EntityID, combatant.Team()),
			ActionName: name,
		}, "scheduler")
	}

	s.timeline.PopNext()

	if _, err := s.resolveAction(entry, combatant, action, target); err != nil {
		return vr, err
	}

	return vr, nil
}

// resolveAction executes an already-popped entry's action, reschedules the
// entity and closes out the turn.
func (s *TurnScheduler) resolveAction(
	entry *TimelineEntry,
	combatant Combatant,
	action Action,
	target *Target,
) (TurnStatus, error) {
	now := s.timeline.CurrentTime()
	team := combatant.Team()

	emit := func(evt Event) {
		s.bus.Publish(evt, PriorityNormal, action.Name())
	}

	result := action.Execute(entry.EntityID, s.world, target, emit)

	weight := action.EffectiveWeight(entry.EntityID, s.world)
	switch result.Status {
	case StatusFailed, StatusCancelled:
		// A post-pop failure still reschedules: an entity is never
		// permanently lost from the timeline.
		weight = WaitWeight
	case StatusRequiresTarget, StatusRequiresInput:
		// Validate should have caught this before the pop. Surface loudly
		// but fail the turn gracefully.
		s.log.Error("action demanded input after validation",
			zap.String("action", action.Name()),
			zap.String("entity", entry.EntityID),
		)
		result.Status = StatusFailed
		weight = WaitWeight
	}

	if result.Status == StatusCancelled {
		s.bus.Publish(ActionCanceledEvent{
			EventBase:  MakeEventBase(now, entry.EntityID, team),
			ActionName: action.Name(),
		}, PriorityNormal, "scheduler")
	}

	if combatant.Alive() {
		s.timeline.Schedule(
			entry.EntityID, combatant.Speed(), weight,
			entry.EntityID+" recovers from "+action.Name(), nil)
	}

	s.bus.PublishImmediate(ActionExecutedEvent{
		EventBase:  MakeEventBase(now, entry.EntityID, team),
		ActionName: action.Name(),
		Status:     result.Status,
		Weight:     weight,
	}, "scheduler")
	s.bus.PublishImmediate(UnitTurnEndedEvent{
		EventBase: MakeEventBase(now, entry.EntityID, team),
	}, "scheduler")
	s.bus.Publish(TurnEndedEvent{
		EventBase: MakeEventBase(now, entry.EntityID, team),
		Round:     s.round,
	}, PriorityNormal, "scheduler")
	s.bus.Publish(TimelineProcessedEvent{
		EventBase: MakeEventBase(now, "", ""),
	}, PriorityLow, "scheduler")

	s.clearTurnState()
	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAfterTurn, Item: entry, Detail: result})

	// Every collaborator observes this turn's consequences before the next
	// turn begins.
	s.bus.ProcessEvents(0)

	s.processedTurns++
	s.maybeCompact()
	s.checkEncounterEnd()

	return TurnCompleted, nil
}

// processScheduledEntry activates a hazard or timed-event entry. These never
// consult a decision source.
func (s *TurnScheduler) processScheduledEntry(entry *TimelineEntry) (TurnStatus, error) {
	s.timeline.PopNext()
	now := s.timeline.CurrentTime()

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeTurn, Item: entry})

	if entry.ScheduledAction != nil {
		s.phases.ForceBattlePhase(PhaseInterruptResolution, "scheduled interrupt")
		emit := func(evt Event) {
			s.bus.Publish(evt, PriorityNormal, entry.ScheduledAction.Name())
		}
		result := entry.ScheduledAction.Execute(entry.EntityID, s.world, nil, emit)

		s.bus.PublishImmediate(ActionExecutedEvent{
			EventBase:  MakeEventBase(now, entry.EntityID, ""),
			ActionName: entry.ScheduledAction.Name(),
			Status:     result.Status,
		}, "scheduler")
	} else if entry.Kind == EntryHazard {
		s.bus.Publish(HazardTriggeredEvent{
			EventBase: MakeEventBase(now, entry.EntityID, ""),
			HazardID:  entry.EntityID,
		}, PriorityHigh, "scheduler")
	}

	s.bus.Publish(TimelineProcessedEvent{
		EventBase: MakeEventBase(now, "", ""),
	}, PriorityLow, "scheduler")

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAfterTurn, Item: entry})
	s.bus.ProcessEvents(0)

	s.processedTurns++
	s.maybeCompact()

	return TurnCompleted, nil
}

// requestExternalInput leaves the turn pending and asks the input pipeline
// for an action. No timeout: a human may take arbitrarily long.
func (s *TurnScheduler) requestExternalInput(
	entry *TimelineEntry,
	combatant Combatant,
) (TurnStatus, error) {
	s.awaitingInput = true

	s.bus.Publish(PlayerActionRequestedEvent{
		EventBase: MakeEventBase(entry.ExecutionTime, entry.EntityID, combatant.Team()),
	}, PriorityHigh, "scheduler")
	s.bus.ProcessEvents(0)

	return TurnAwaitingInput, nil
}

// checkEncounterEnd publishes GameEnded once only one team remains. Returns
// true if the encounter is over.
func (s *TurnScheduler) checkEncounterEnd() bool {
	if s.phases.GamePhase() == PhaseGameOver {
		return true
	}
	if s.world.TeamsRemaining() > 1 {
		return false
	}

	winner := ""
	if living := s.world.LivingCombatants(); len(living) > 0 {
		winner = living[0].Team()
	}

	s.bus.PublishImmediate(GameEndedEvent{
		EventBase:   MakeEventBase(s.timeline.CurrentTime(), "", winner),
		WinningTeam: winner,
		Reason:      "single team remaining",
	}, "scheduler")

	return true
}

func (s *TurnScheduler) teamOf(id string) string {
	if c, ok := s.world.Combatant(id); ok {
		return c.Team()
	}
	return ""
}

func (s *TurnScheduler) clearTurnState() {
	s.pending = nil
	s.pendingAction = nil
	s.awaitingInput = false
}

// clearSelection wipes movement-range selection data. Registered with the
// phase machine so it runs when a turn-ended transition fires.
func (s *TurnScheduler) clearSelection() {
	s.selectedEntity = ""
	s.actingEntity = ""
}
