package battle

import (
	"go.uber.org/zap"

	"github.com/skirmishlab/vanguard/sim"
)

// An EliminationTracker watches defeat events and keeps the timeline
// consistent with the world: a defeated unit's remaining entries are
// tombstoned the moment it falls, so it can never surface for a turn again.
type EliminationTracker struct {
	scheduler *sim.TurnScheduler
	log       *zap.Logger

	defeated []string
}

// NewEliminationTracker creates a tracker for one battle session.
func NewEliminationTracker(scheduler *sim.TurnScheduler, logger *zap.Logger) *EliminationTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EliminationTracker{scheduler: scheduler, log: logger}
}

// Attach subscribes the tracker to defeat events and returns the handle.
func (t *EliminationTracker) Attach(bus *sim.EventBus) int {
	return bus.Subscribe(sim.EventUnitDefeated, t.onDefeat, "elimination-tracker")
}

// Defeated returns the IDs of fallen units in defeat order.
func (t *EliminationTracker) Defeated() []string {
	return t.defeated
}

func (t *EliminationTracker) onDefeat(evt sim.Event) {
	id := evt.Entity()
	t.defeated = append(t.defeated, id)

	removed := t.scheduler.DetachEntity(id)
	t.log.Info("unit defeated",
		zap.String("unit", id),
		zap.String("team", evt.Team()),
		zap.Int("timeline_entries_removed", removed),
	)
}
