package sim

import (
	"go.uber.org/zap"
)

// Consistency and recovery. The timeline, the selection state and the phase
// machine can drift apart when domain code misbehaves (entities dying
// without detaching, input routed during the wrong phase). These repairs
// keep a battle session alive instead of freezing it; they are last resorts,
// not normal paths, and every repair is logged.

// repairEmptyTimeline reschedules every living combatant at zero extra
// weight. Reached when the timeline is empty while both sides still have
// units, which should be impossible if every action reschedules its actor.
func (s *TurnScheduler) repairEmptyTimeline() {
	living := s.world.LivingCombatants()

	s.log.Warn("timeline empty with combatants remaining, rescheduling all",
		zap.Int("living", len(living)),
		zap.Int64("tick", int64(s.timeline.CurrentTime())),
	)

	for _, c := range living {
		s.timeline.Schedule(c.ID(), c.Speed(), 0, c.ID()+" rescheduled by recovery", nil)
	}
}

// syncSelection forces the cursor, the selected entity and the acting entity
// into agreement with the timeline's head entity at turn start. Each
// discrepancy is logged individually so desync sources stay visible.
func (s *TurnScheduler) syncSelection(entry *TimelineEntry, combatant Combatant) {
	if s.selectedEntity != "" && s.selectedEntity != entry.EntityID {
		s.log.Warn("selected entity out of sync with timeline head",
			zap.String("selected", s.selectedEntity),
			zap.String("head", entry.EntityID),
		)
	}
	s.selectedEntity = entry.EntityID

	if s.actingEntity != "" && s.actingEntity != entry.EntityID {
		s.log.Warn("acting entity out of sync with timeline head",
			zap.String("acting", s.actingEntity),
			zap.String("head", entry.EntityID),
		)
	}
	s.actingEntity = entry.EntityID

	if p, ok := combatant.(Positioned); ok {
		x, y := p.Position()
		if s.cursorX != x || s.cursorY != y {
			s.log.Warn("cursor out of sync with acting unit",
				zap.Int("cursor_x", s.cursorX),
				zap.Int("cursor_y", s.cursorY),
				zap.Int("unit_x", x),
				zap.Int("unit_y", y),
			)
			s.cursorX = x
			s.cursorY = y
		}
	}
}

// maybeCompact rebuilds the timeline heap every compactEvery processed
// turns, bounding tombstone growth without paying the rebuild cost per pop.
func (s *TurnScheduler) maybeCompact() {
	if s.compactEvery <= 0 || s.processedTurns%s.compactEvery != 0 {
		return
	}

	tombstones := s.timeline.TombstoneCount()
	if tombstones == 0 {
		return
	}

	s.timeline.Compact()
	s.log.Debug("timeline compacted",
		zap.Int("tombstones_purged", tombstones),
		zap.Int("turns_processed", s.processedTurns),
	)
}
