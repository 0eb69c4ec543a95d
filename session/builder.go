// Package session assembles the kernel, the battle world and the supporting
// services into a runnable encounter.
package session

import (
	"go.uber.org/zap"

	"github.com/rs/xid"
	"github.com/skirmishlab/vanguard/ai"
	"github.com/skirmishlab/vanguard/battle"
	"github.com/skirmishlab/vanguard/battlelog"
	"github.com/skirmishlab/vanguard/monitoring"
	"github.com/skirmishlab/vanguard/scenario"
	"github.com/skirmishlab/vanguard/sim"
)

// Builder can be used to build a battle session.
type Builder struct {
	scenario       *scenario.Scenario
	logger         *zap.Logger
	playerSource   sim.DecisionSource
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordingOn    bool
	outputFileName string
	maxTurns       int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		recordingOn: true,
		maxTurns:    1000,
	}
}

// WithScenario sets the scenario the session plays.
func (b Builder) WithScenario(sc *scenario.Scenario) Builder {
	b.scenario = sc
	return b
}

// WithLogger sets the logger used by the session and the kernel.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithPlayerSource sets the decision source consulted for player-controlled
// units. Without one, player units fall back to waiting.
func (b Builder) WithPlayerSource(src sim.DecisionSource) Builder {
	b.playerSource = src
	return b
}

// WithMonitoring turns the monitoring server on.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring dashboard in the default browser.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutRecording sets the session to not record battle diagnostics.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the battle log.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMaxTurns caps the number of turns Run processes.
func (b Builder) WithMaxTurns(n int) Builder {
	b.maxTurns = n
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.scenario == nil {
		panic("a session requires a scenario")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.maxTurns <= 0 {
		panic("max turns must be positive")
	}
}

// Build builds the session.
func (b Builder) Build() *Session {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:           xid.New().String(),
		scenarioName: b.scenario.Name,
		log:          logger,
		maxTurns:     b.maxTurns,
	}

	s.bus = sim.NewEventBus(logger)
	s.phases = sim.NewPhaseStateMachine(s.bus, logger)
	s.phases.Attach()

	s.world = battle.NewWorld(b.scenario.Width, b.scenario.Height)
	s.scheduler = sim.NewTurnScheduler(s.bus, s.phases, s.world, logger)
	s.world.Clock = s.scheduler.Timeline()

	s.scheduler.RegisterAction(battle.NewMoveAction())
	s.scheduler.RegisterAction(battle.NewStrikeAction())
	s.scheduler.RegisterAction(battle.NewBraceAction())

	s.tracker = battle.NewEliminationTracker(s.scheduler, logger)
	s.tracker.Attach(s.bus)

	s.combatLog = battle.NewCombatLog(256)
	s.combatLog.Attach(s.bus)

	b.populateWorld(s)

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "vanguard_battle_" + s.id
		}
		s.recorder = battlelog.New(outputPath)
		battlelog.NewBusRecorder(s.recorder).Attach(s.bus)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.RegisterScheduler(s.scheduler)
		s.monitor.RegisterEventBus(s.bus)
		s.monitor.RegisterPhaseMachine(s.phases)
		s.monitor.StartServer(b.openBrowser)

		s.progress = s.monitor.CreateProgressBar("turns", uint64(b.maxTurns))
	}

	return s
}

func (b Builder) populateWorld(s *Session) {
	aiSource := ai.New()

	for _, spec := range b.scenario.Units {
		unit := &battle.Unit{
			UnitID: spec.ID,
			Squad:  spec.Team,
			Spd:    sim.Tick(spec.Speed),
			HP:     spec.HP,
			MaxHP:  spec.HP,
			X:      spec.X,
			Y:      spec.Y,
		}

		if err := s.world.AddUnit(unit); err != nil {
			panic(err)
		}

		var src sim.DecisionSource = aiSource
		if spec.Control == "player" {
			src = b.playerSource
		}

		s.scheduler.AttachCombatant(unit, src)
	}

	for _, hz := range b.scenario.Hazards {
		s.scheduler.Timeline().AddAbsolute(
			sim.Tick(hz.Tick), hz.ID, sim.EntryHazard, hz.Description, nil)
	}
}
