package sim

import (
	"fmt"

	"go.uber.org/zap"
)

// GamePhase is the outer state of the whole application.
type GamePhase int

// Game phases.
const (
	PhaseMainMenu GamePhase = iota
	PhaseBattle
	PhaseCutscene
	PhasePause
	PhaseGameOver
)

var gamePhaseNames = map[GamePhase]string{
	PhaseMainMenu: "MAIN_MENU",
	PhaseBattle:   "BATTLE",
	PhaseCutscene: "CUTSCENE",
	PhasePause:    "PAUSE",
	PhaseGameOver: "GAME_OVER",
}

func (p GamePhase) String() string {
	if name, ok := gamePhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("GAME_PHASE_%d", int(p))
}

// BattlePhase is the inner state of an active battle. It is only meaningful
// while the game phase is BATTLE.
type BattlePhase int

// Battle phases.
const (
	PhaseTimelineProcessing BattlePhase = iota
	PhaseUnitSelection
	PhaseUnitMoving
	PhaseUnitActionSelection
	PhaseActionTargeting
	PhaseActionExecution
	PhaseInterruptResolution
	PhaseInspect
)

var battlePhaseNames = map[BattlePhase]string{
	PhaseTimelineProcessing:  "TIMELINE_PROCESSING",
	PhaseUnitSelection:       "UNIT_SELECTION",
	PhaseUnitMoving:          "UNIT_MOVING",
	PhaseUnitActionSelection: "UNIT_ACTION_SELECTION",
	PhaseActionTargeting:     "ACTION_TARGETING",
	PhaseActionExecution:     "ACTION_EXECUTION",
	PhaseInterruptResolution: "INTERRUPT_RESOLUTION",
	PhaseInspect:             "INSPECT",
}

func (p BattlePhase) String() string {
	if name, ok := battlePhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("BATTLE_PHASE_%d", int(p))
}

// A GameRule maps (current game phase, event type) to the next game phase.
type GameRule struct {
	From        GamePhase
	Event       EventType
	To          GamePhase
	Description string
}

// A BattleRule maps (current battle phase, event type) to the next battle
// phase.
type BattleRule struct {
	From        BattlePhase
	Event       EventType
	To          BattlePhase
	Description string
}

// A PhaseStateMachine holds two parallel state machines, one per dimension,
// driven by declarative rule tables. Rules are scanned linearly and the
// first match wins, so registration order is part of the contract. At most
// one transition fires per dimension per event.
//
// Transitions publish GamePhaseChanged/BattlePhaseChanged back onto the bus
// through PublishImmediate, so every collaborator observes phase changes
// through the same channel instead of polling.
type PhaseStateMachine struct {
	bus *EventBus
	log *zap.Logger

	game   GamePhase
	battle BattlePhase

	gameRules   []GameRule
	battleRules []BattleRule

	battleActive   bool
	inspectReturn  BattlePhase
	selectionReset func()
}

// NewPhaseStateMachine creates a machine with the default rule tables,
// starting at MAIN_MENU / TIMELINE_PROCESSING. A nil logger is replaced with
// a nop logger.
func NewPhaseStateMachine(bus *EventBus, logger *zap.Logger) *PhaseStateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &PhaseStateMachine{
		bus:    bus,
		log:    logger,
		game:   PhaseMainMenu,
		battle: PhaseTimelineProcessing,
	}

	m.registerDefaultRules()

	return m
}

// Attach registers the machine as a universal subscriber on the bus, so
// every dispatched event can drive transitions.
func (m *PhaseStateMachine) Attach() {
	m.bus.SubscribeAll(m.OnEvent, "phase-machine")
}

// GamePhase returns the current outer phase.
func (m *PhaseStateMachine) GamePhase() GamePhase {
	return m.game
}

// BattlePhase returns the current inner phase.
func (m *PhaseStateMachine) BattlePhase() BattlePhase {
	return m.battle
}

// SetBattleActive marks whether a battle session currently exists. Battle
// phase transitions attempted without one are logged and dropped.
func (m *PhaseStateMachine) SetBattleActive(active bool) {
	m.battleActive = active
}

// SetSelectionResetFunc installs the callback that clears movement-range
// selection state. It runs when a battle transition is triggered
// specifically by UnitTurnEnded, tied to the event rather than the
// destination phase, so a TimelineProcessed self-transition never wipes
// unrelated state.
func (m *PhaseStateMachine) SetSelectionResetFunc(f func()) {
	m.selectionReset = f
}

// AddGameRule appends a rule to the game dimension table.
func (m *PhaseStateMachine) AddGameRule(r GameRule) {
	m.gameRules = append(m.gameRules, r)
}

// AddBattleRule appends a rule to the battle dimension table.
func (m *PhaseStateMachine) AddBattleRule(r BattleRule) {
	m.battleRules = append(m.battleRules, r)
}

// GameRules returns the game dimension rule table, for debug display.
func (m *PhaseStateMachine) GameRules() []GameRule {
	return m.gameRules
}

// BattleRules returns the battle dimension rule table, for debug display.
func (m *PhaseStateMachine) BattleRules() []BattleRule {
	return m.battleRules
}

// OnEvent reacts to a dispatched event. Each dimension scans its table for
// the first rule matching the current state and the event type. Events with
// no matching rule are ignored; most events are irrelevant to phase.
func (m *PhaseStateMachine) OnEvent(evt Event) {
	for _, r := range m.gameRules {
		if r.From == m.game && r.Event == evt.Type() {
			m.TransitionGame(r.To, evt)
			break
		}
	}

	for _, r := range m.battleRules {
		if r.From != m.battle || r.Event != evt.Type() {
			continue
		}

		if m.game != PhaseBattle || !m.battleActive {
			m.log.Warn("battle phase transition without an active battle",
				zap.String("event_type", string(evt.Type())),
				zap.String("from", m.battle.String()),
				zap.String("to", r.To.String()),
			)
			break
		}

		m.TransitionBattle(r.To, evt)
		if evt.Type() == EventUnitTurnEnded && m.selectionReset != nil {
			m.selectionReset()
		}
		break
	}
}

// TransitionGame moves the game dimension to a new phase. Self-transitions
// are no-ops: nothing is published or logged.
func (m *PhaseStateMachine) TransitionGame(to GamePhase, cause Event) {
	if to == m.game {
		return
	}

	old := m.game
	m.game = to

	m.log.Info("game phase changed",
		zap.String("old", old.String()),
		zap.String("new", to.String()),
	)

	var tick Tick
	var entity, team string
	if cause != nil {
		tick = cause.Tick()
		entity = cause.Entity()
		team = cause.Team()
	}
	m.bus.PublishImmediate(GamePhaseChangedEvent{
		EventBase: MakeEventBase(tick, entity, team),
		Old:       old,
		New:       to,
	}, "phase-machine")
}

// TransitionBattle moves the battle dimension to a new phase.
// Self-transitions are no-ops.
func (m *PhaseStateMachine) TransitionBattle(to BattlePhase, cause Event) {
	if to == m.battle {
		return
	}

	old := m.battle
	m.battle = to

	m.log.Debug("battle phase changed",
		zap.String("old", old.String()),
		zap.String("new", to.String()),
	)

	var tick Tick
	var entity, team string
	if cause != nil {
		tick = cause.Tick()
		entity = cause.Entity()
		team = cause.Team()
	}
	m.bus.PublishImmediate(BattlePhaseChangedEvent{
		EventBase: MakeEventBase(tick, entity, team),
		Old:       old,
		New:       to,
	}, "phase-machine")
}

// ForceGamePhase bypasses rule matching for the game dimension. Reserved for
// initialization and emergency recovery; the reason is logged distinctly.
func (m *PhaseStateMachine) ForceGamePhase(to GamePhase, reason string) {
	m.log.Warn("forced game phase transition",
		zap.String("from", m.game.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
	)
	m.TransitionGame(to, nil)
}

// ForceBattlePhase bypasses rule matching for the battle dimension.
func (m *PhaseStateMachine) ForceBattlePhase(to BattlePhase, reason string) {
	m.log.Warn("forced battle phase transition",
		zap.String("from", m.battle.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
	)
	m.TransitionBattle(to, nil)
}

// EnterInspect forces the battle dimension into INSPECT, remembering the
// prior phase. Inspect is reachable only this way, never through rules.
func (m *PhaseStateMachine) EnterInspect() {
	if m.battle == PhaseInspect {
		return
	}
	m.inspectReturn = m.battle
	m.ForceBattlePhase(PhaseInspect, "inspect opened")
}

// ExitInspect restores the battle phase saved by EnterInspect.
func (m *PhaseStateMachine) ExitInspect() {
	if m.battle != PhaseInspect {
		return
	}
	m.ForceBattlePhase(m.inspectReturn, "inspect closed")
}

// registerDefaultRules installs the transition tables that define the kernel
// control flow. Order matters: the first matching rule per dimension wins.
func (m *PhaseStateMachine) registerDefaultRules() {
	m.gameRules = []GameRule{
		{PhaseMainMenu, EventScenarioLoaded, PhaseBattle,
			"a loaded scenario starts the battle"},
		{PhaseBattle, EventGameEnded, PhaseGameOver,
			"the encounter is decided"},
	}

	m.battleRules = []BattleRule{
		{PhaseTimelineProcessing, EventUnitTurnStarted, PhaseUnitMoving,
			"the next unit begins its turn"},
		{PhaseUnitMoving, EventUnitMoved, PhaseUnitActionSelection,
			"movement done, pick an action"},
		{PhaseUnitActionSelection, EventActionSelected, PhaseActionTargeting,
			"action picked, pick a target"},
		{PhaseUnitSelection, EventActionSelected, PhaseActionTargeting,
			"menu skipped from unit selection"},
		{PhaseUnitMoving, EventActionSelected, PhaseActionTargeting,
			"menu skipped from movement"},
		{PhaseActionTargeting, EventActionExecuted, PhaseTimelineProcessing,
			"action resolved from targeting"},
		{PhaseActionExecution, EventActionExecuted, PhaseTimelineProcessing,
			"action resolved from execution"},
		{PhaseInterruptResolution, EventActionExecuted, PhaseTimelineProcessing,
			"interrupt resolved"},
		{PhaseUnitMoving, EventUnitTurnEnded, PhaseTimelineProcessing,
			"turn ended during movement"},
		{PhaseUnitActionSelection, EventUnitTurnEnded, PhaseTimelineProcessing,
			"turn ended during action selection"},
		{PhaseActionTargeting, EventUnitTurnEnded, PhaseTimelineProcessing,
			"turn ended during targeting"},
		{PhaseActionExecution, EventUnitTurnEnded, PhaseTimelineProcessing,
			"turn ended during execution"},
		{PhaseTimelineProcessing, EventTimelineProcessed, PhaseTimelineProcessing,
			"timeline pass complete"},
		{PhaseActionTargeting, EventActionCanceled, PhaseUnitActionSelection,
			"targeting canceled, back to the menu"},
		{PhaseUnitActionSelection, EventMovementCanceled, PhaseUnitMoving,
			"action selection canceled, back to movement"},
	}
}
