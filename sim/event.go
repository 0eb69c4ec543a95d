package sim

// Tick is a discrete simulation time unit. The Timeline is the only clock in
// the kernel and it counts in ticks.
type Tick int64

// EventType indicates the category of a kernel event.
type EventType string

// Kernel event types. Domain packages may define additional types; the bus
// routes purely by tag.
const (
	EventScenarioLoaded        EventType = "SCENARIO_LOADED"
	EventGameEnded             EventType = "GAME_ENDED"
	EventTurnStarted           EventType = "TURN_STARTED"
	EventTurnEnded             EventType = "TURN_ENDED"
	EventUnitTurnStarted       EventType = "UNIT_TURN_STARTED"
	EventUnitTurnEnded         EventType = "UNIT_TURN_ENDED"
	EventUnitMoved             EventType = "UNIT_MOVED"
	EventActionSelected        EventType = "ACTION_SELECTED"
	EventActionExecuted        EventType = "ACTION_EXECUTED"
	EventActionCanceled        EventType = "ACTION_CANCELED"
	EventMovementCanceled      EventType = "MOVEMENT_CANCELED"
	EventTimelineProcessed     EventType = "TIMELINE_PROCESSED"
	EventGamePhaseChanged      EventType = "GAME_PHASE_CHANGED"
	EventBattlePhaseChanged    EventType = "BATTLE_PHASE_CHANGED"
	EventPlayerActionRequested EventType = "PLAYER_ACTION_REQUESTED"
	EventDamageDealt           EventType = "DAMAGE_DEALT"
	EventUnitDefeated          EventType = "UNIT_DEFEATED"
	EventHazardTriggered       EventType = "HAZARD_TRIGGERED"
	EventLogMessage            EventType = "LOG_MESSAGE"
	EventDebugMessage          EventType = "DEBUG_MESSAGE"
)

// An Event is an immutable record of something that happened in the
// simulation. Every event carries the tick it was generated at and the
// entity it involves, if any.
type Event interface {
	// Type returns the tag that the bus routes the event by.
	Type() EventType

	// Tick returns the simulation time at which the event was generated.
	Tick() Tick

	// Entity returns the ID of the involved entity, or "" if none.
	Entity() string

	// Team returns the team of the involved entity, or "" if none.
	Team() string
}

// EventBase provides the common fields and getters for concrete events.
type EventBase struct {
	ID     string
	tick   Tick
	entity string
	team   string
}

// MakeEventBase creates an EventBase with a fresh ID.
func MakeEventBase(tick Tick, entity, team string) EventBase {
	return EventBase{
		ID:     GetIDGenerator().Generate(),
		tick:   tick,
		entity: entity,
		team:   team,
	}
}

// Tick returns the simulation time at which the event was generated.
func (e EventBase) Tick() Tick {
	return e.tick
}

// Entity returns the ID of the entity the event involves.
func (e EventBase) Entity() string {
	return e.entity
}

// Team returns the team of the entity the event involves.
func (e EventBase) Team() string {
	return e.team
}

// ScenarioLoadedEvent marks a scenario becoming the active battle.
type ScenarioLoadedEvent struct {
	EventBase
	ScenarioName string
}

// Type returns the event tag.
func (ScenarioLoadedEvent) Type() EventType { return EventScenarioLoaded }

// GameEndedEvent marks the end of the encounter.
type GameEndedEvent struct {
	EventBase
	WinningTeam string
	Reason      string
}

// Type returns the event tag.
func (GameEndedEvent) Type() EventType { return EventGameEnded }

// TurnStartedEvent marks the beginning of a scheduler turn, before the acting
// entity has produced an action.
type TurnStartedEvent struct {
	EventBase
	Round int
}

// Type returns the event tag.
func (TurnStartedEvent) Type() EventType { return EventTurnStarted }

// TurnEndedEvent marks the completion of a scheduler turn.
type TurnEndedEvent struct {
	EventBase
	Round int
}

// Type returns the event tag.
func (TurnEndedEvent) Type() EventType { return EventTurnEnded }

// UnitTurnStartedEvent announces which unit is now acting.
type UnitTurnStartedEvent struct {
	EventBase
}

// Type returns the event tag.
func (UnitTurnStartedEvent) Type() EventType { return EventUnitTurnStarted }

// UnitTurnEndedEvent announces that the acting unit is done. The battle phase
// machine returns to timeline processing on this event.
type UnitTurnEndedEvent struct {
	EventBase
}

// Type returns the event tag.
func (UnitTurnEndedEvent) Type() EventType { return EventUnitTurnEnded }

// UnitMovedEvent records a completed movement.
type UnitMovedEvent struct {
	EventBase
	FromX, FromY int
	ToX, ToY     int
}

// Type returns the event tag.
func (UnitMovedEvent) Type() EventType { return EventUnitMoved }

// ActionSelectedEvent records that the acting unit committed to an action,
// possibly still pending a target.
type ActionSelectedEvent struct {
	EventBase
	ActionName string
}

// Type returns the event tag.
func (ActionSelectedEvent) Type() EventType { return EventActionSelected }

// ActionExecutedEvent records a completed action, successful or not.
type ActionExecutedEvent struct {
	EventBase
	ActionName string
	Status     ActionStatus
	Weight     Tick
}

// Type returns the event tag.
func (ActionExecutedEvent) Type() EventType { return EventActionExecuted }

// ActionCanceledEvent backs the acting unit out of targeting.
type ActionCanceledEvent struct {
	EventBase
	ActionName string
}

// Type returns the event tag.
func (ActionCanceledEvent) Type() EventType { return EventActionCanceled }

// MovementCanceledEvent backs the acting unit out of action selection.
type MovementCanceledEvent struct {
	EventBase
}

// Type returns the event tag.
func (MovementCanceledEvent) Type() EventType { return EventMovementCanceled }

// TimelineProcessedEvent marks the end of one scheduler pass over the
// timeline. It intentionally maps to a self-transition in the battle phase
// machine.
type TimelineProcessedEvent struct {
	EventBase
}

// Type returns the event tag.
func (TimelineProcessedEvent) Type() EventType { return EventTimelineProcessed }

// GamePhaseChangedEvent is published by the phase machine whenever the outer
// game phase actually changes.
type GamePhaseChangedEvent struct {
	EventBase
	Old GamePhase
	New GamePhase
}

// Type returns the event tag.
func (GamePhaseChangedEvent) Type() EventType { return EventGamePhaseChanged }

// BattlePhaseChangedEvent is published by the phase machine whenever the
// inner battle phase actually changes.
type BattlePhaseChangedEvent struct {
	EventBase
	Old BattlePhase
	New BattlePhase
}

// Type returns the event tag.
func (BattlePhaseChangedEvent) Type() EventType { return EventBattlePhaseChanged }

// PlayerActionRequestedEvent asks the input pipeline to produce an action for
// the acting unit.
type PlayerActionRequestedEvent struct {
	EventBase
}

// Type returns the event tag.
func (PlayerActionRequestedEvent) Type() EventType { return EventPlayerActionRequested }

// DamageDealtEvent records damage applied to a unit.
type DamageDealtEvent struct {
	EventBase
	SourceID string
	Amount   int
	Fatal    bool
}

// Type returns the event tag.
func (DamageDealtEvent) Type() EventType { return EventDamageDealt }

// UnitDefeatedEvent records a unit leaving the battle.
type UnitDefeatedEvent struct {
	EventBase
	DefeatedBy string
}

// Type returns the event tag.
func (UnitDefeatedEvent) Type() EventType { return EventUnitDefeated }

// HazardTriggeredEvent records a hazard activation from the timeline.
type HazardTriggeredEvent struct {
	EventBase
	HazardID string
}

// Type returns the event tag.
func (HazardTriggeredEvent) Type() EventType { return EventHazardTriggered }

// LogMessageEvent carries a human-readable combat-log line.
type LogMessageEvent struct {
	EventBase
	Message string
}

// Type returns the event tag.
func (LogMessageEvent) Type() EventType { return EventLogMessage }

// DebugMessageEvent carries diagnostic text that only debug overlays show.
type DebugMessageEvent struct {
	EventBase
	Message string
}

// Type returns the event tag.
func (DebugMessageEvent) Type() EventType { return EventDebugMessage }
