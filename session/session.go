package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/skirmishlab/vanguard/battle"
	"github.com/skirmishlab/vanguard/battlelog"
	"github.com/skirmishlab/vanguard/monitoring"
	"github.com/skirmishlab/vanguard/sim"
)

// A Session is one assembled encounter, from scenario load to game over.
type Session struct {
	id           string
	scenarioName string
	log          *zap.Logger

	bus       *sim.EventBus
	phases    *sim.PhaseStateMachine
	scheduler *sim.TurnScheduler
	world     *battle.World
	tracker   *battle.EliminationTracker
	combatLog *battle.CombatLog

	recorder battlelog.Recorder
	monitor  *monitoring.Monitor
	progress *monitoring.ProgressBar

	maxTurns int
	started  bool
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// EventBus returns the bus used in the session.
func (s *Session) EventBus() *sim.EventBus {
	return s.bus
}

// Scheduler returns the turn scheduler used in the session.
func (s *Session) Scheduler() *sim.TurnScheduler {
	return s.scheduler
}

// Phases returns the phase machine used in the session.
func (s *Session) Phases() *sim.PhaseStateMachine {
	return s.phases
}

// World returns the battle world used in the session.
func (s *Session) World() *battle.World {
	return s.world
}

// CombatLog returns the combat log used in the session.
func (s *Session) CombatLog() *battle.CombatLog {
	return s.combatLog
}

// Start announces the scenario and moves the session into battle. Run calls
// it implicitly.
func (s *Session) Start() {
	if s.started {
		return
	}
	s.started = true

	s.phases.SetBattleActive(true)
	s.bus.PublishImmediate(sim.ScenarioLoadedEvent{
		EventBase:    sim.MakeEventBase(0, "", ""),
		ScenarioName: s.scenarioName,
	}, "session")
	s.bus.ProcessEvents(0)
}

// Step processes one turn. It returns the scheduler's status.
func (s *Session) Step() (sim.TurnStatus, error) {
	s.Start()
	return s.scheduler.ProcessNextTurn()
}

// Run plays the encounter until one team remains or the turn cap is hit.
// Player-controlled units without a decision source wait on their turns.
func (s *Session) Run() error {
	s.Start()

	for turn := 0; turn < s.maxTurns; turn++ {
		status, err := s.scheduler.ProcessNextTurn()
		if err != nil {
			s.log.Warn("turn ended with error", zap.Error(err))
		}

		switch status {
		case sim.TurnIdle:
			return nil
		case sim.TurnAwaitingInput:
			if _, err := s.scheduler.SubmitAction(sim.WaitName, nil); err != nil {
				return fmt.Errorf("resolving idle player turn: %w", err)
			}
		}

		if s.progress != nil {
			s.progress.IncrementFinished(1)
		}

		if s.phases.GamePhase() == sim.PhaseGameOver {
			return nil
		}
	}

	s.log.Warn("turn cap reached before the encounter ended",
		zap.Int("max_turns", s.maxTurns))

	return nil
}

// Terminate terminates the session.
func (s *Session) Terminate() {
	s.phases.SetBattleActive(false)
	if s.recorder != nil {
		s.recorder.Close()
	}
}
