package battle

import (
	"fmt"

	"github.com/skirmishlab/vanguard/sim"
)

// A CombatLog turns kernel events into human-readable lines for the UI. It
// keeps a bounded tail; older lines fall off.
type CombatLog struct {
	lines []string
	cap   int
}

// NewCombatLog creates a log keeping up to capacity lines.
func NewCombatLog(capacity int) *CombatLog {
	if capacity <= 0 {
		capacity = 200
	}
	return &CombatLog{cap: capacity}
}

// Attach subscribes the log to the events it narrates.
func (l *CombatLog) Attach(bus *sim.EventBus) {
	bus.Subscribe(sim.EventUnitTurnStarted, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventUnitMoved, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventDamageDealt, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventUnitDefeated, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventHazardTriggered, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventLogMessage, l.onEvent, "combat-log")
	bus.Subscribe(sim.EventGameEnded, l.onEvent, "combat-log")
}

// Lines returns the retained lines, oldest first.
func (l *CombatLog) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *CombatLog) onEvent(evt sim.Event) {
	var line string

	switch e := evt.(type) {
	case sim.UnitTurnStartedEvent:
		line = fmt.Sprintf("%s takes a turn", e.Entity())
	case sim.UnitMovedEvent:
		line = fmt.Sprintf("%s moves (%d,%d) -> (%d,%d)",
			e.Entity(), e.FromX, e.FromY, e.ToX, e.ToY)
	case sim.DamageDealtEvent:
		line = fmt.Sprintf("%s hits %s for %d", e.SourceID, e.Entity(), e.Amount)
	case sim.UnitDefeatedEvent:
		line = fmt.Sprintf("%s is defeated by %s", e.Entity(), e.DefeatedBy)
	case sim.HazardTriggeredEvent:
		line = fmt.Sprintf("hazard %s triggers", e.HazardID)
	case sim.LogMessageEvent:
		line = e.Message
	case sim.GameEndedEvent:
		line = fmt.Sprintf("battle over: %s wins (%s)", e.WinningTeam, e.Reason)
	default:
		return
	}

	line = fmt.Sprintf("[t%d] %s", evt.Tick(), line)

	if len(l.lines) >= l.cap {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:len(l.lines)-1]
	}
	l.lines = append(l.lines, line)
}
