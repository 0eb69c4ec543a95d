package battle

import (
	"fmt"

	"github.com/skirmishlab/vanguard/sim"
)

// MoveAction walks the actor to a free tile within its range.
type MoveAction struct {
	Range  int
	Weight sim.Tick
}

// NewMoveAction creates a move with sensible defaults.
func NewMoveAction() *MoveAction {
	return &MoveAction{Range: 4, Weight: 60}
}

// Name returns the action identifier.
func (a *MoveAction) Name() string { return "move" }

// Category returns the time cost profile.
func (a *MoveAction) Category() sim.ActionCategory { return sim.CategoryNormal }

// BaseWeight returns the nominal time cost.
func (a *MoveAction) BaseWeight() sim.Tick { return a.Weight }

// EffectiveWeight returns the actual time cost for this actor.
func (a *MoveAction) EffectiveWeight(actor string, w sim.World) sim.Tick {
	return a.Weight
}

// Validate checks the destination tile.
func (a *MoveAction) Validate(actor string, w sim.World, target *sim.Target) sim.ValidationResult {
	bw, ok := w.(*World)
	if !ok {
		return sim.Invalid("move needs a battle world")
	}
	unit, ok := bw.Unit(actor)
	if !ok {
		return sim.Invalid("unknown actor")
	}
	if !unit.Alive() {
		return sim.Invalid("actor is down")
	}
	if target == nil {
		return sim.Invalid("move requires a destination tile")
	}
	if !bw.InBounds(target.X, target.Y) {
		return sim.Invalid("destination is off the map")
	}
	if _, occupied := bw.UnitAt(target.X, target.Y); occupied {
		return sim.Invalid("destination tile is occupied")
	}
	if Distance(unit.X, unit.Y, target.X, target.Y) > a.Range {
		return sim.Invalid("destination is out of range")
	}
	return sim.Valid()
}

// Execute moves the unit and emits UnitMoved.
func (a *MoveAction) Execute(
	actor string,
	w sim.World,
	target *sim.Target,
	emit func(sim.Event),
) sim.ActionResult {
	bw := w.(*World)
	unit, _ := bw.Unit(actor)

	fromX, fromY := unit.X, unit.Y
	unit.X, unit.Y = target.X, target.Y
	unit.Braced = false

	emit(sim.UnitMovedEvent{
		EventBase: sim.MakeEventBase(bw.Now(), actor, unit.Squad),
		FromX:     fromX,
		FromY:     fromY,
		ToX:       target.X,
		ToY:       target.Y,
	})

	return sim.ActionResult{
		Status:  sim.StatusSuccess,
		Message: fmt.Sprintf("%s moves to (%d,%d)", actor, target.X, target.Y),
	}
}

// StrikeAction hits an adjacent-ish enemy for flat damage.
type StrikeAction struct {
	Damage int
	Reach  int
	Weight sim.Tick
}

// NewStrikeAction creates a strike with sensible defaults.
func NewStrikeAction() *StrikeAction {
	return &StrikeAction{Damage: 4, Reach: 1, Weight: 80}
}

// Name returns the action identifier.
func (a *StrikeAction) Name() string { return "strike" }

// Category returns the time cost profile.
func (a *StrikeAction) Category() sim.ActionCategory { return sim.CategoryHeavy }

// BaseWeight returns the nominal time cost.
func (a *StrikeAction) BaseWeight() sim.Tick { return a.Weight }

// EffectiveWeight charges braced attackers extra: dropping the guard to
// swing costs time.
func (a *StrikeAction) EffectiveWeight(actor string, w sim.World) sim.Tick {
	weight := a.Weight
	if bw, ok := w.(*World); ok {
		if unit, ok := bw.Unit(actor); ok && unit.Braced {
			weight += a.Weight / 4
		}
	}
	return weight
}

// Validate checks the target unit.
func (a *StrikeAction) Validate(actor string, w sim.World, target *sim.Target) sim.ValidationResult {
	bw, ok := w.(*World)
	if !ok {
		return sim.Invalid("strike needs a battle world")
	}
	unit, ok := bw.Unit(actor)
	if !ok {
		return sim.Invalid("unknown actor")
	}
	if !unit.Alive() {
		return sim.Invalid("actor is down")
	}
	if target == nil || target.EntityID == "" {
		return sim.Invalid("strike requires a target unit")
	}
	victim, ok := bw.Unit(target.EntityID)
	if !ok {
		return sim.Invalid("no such target")
	}
	if !victim.Alive() {
		return sim.Invalid("target is already down")
	}
	if victim.Squad == unit.Squad {
		return sim.Invalid("target is an ally")
	}
	if Distance(unit.X, unit.Y, victim.X, victim.Y) > a.Reach {
		return sim.Invalid("target is out of reach")
	}
	return sim.Valid()
}

// Execute applies damage and emits the resulting events.
func (a *StrikeAction) Execute(
	actor string,
	w sim.World,
	target *sim.Target,
	emit func(sim.Event),
) sim.ActionResult {
	bw := w.(*World)
	unit, _ := bw.Unit(actor)
	victim, _ := bw.Unit(target.EntityID)

	unit.Braced = false
	dealt, fatal := bw.ApplyDamage(victim, a.Damage)

	emit(sim.DamageDealtEvent{
		EventBase: sim.MakeEventBase(bw.Now(), victim.UnitID, victim.Squad),
		SourceID:  actor,
		Amount:    dealt,
		Fatal:     fatal,
	})

	if fatal {
		emit(sim.UnitDefeatedEvent{
			EventBase:  sim.MakeEventBase(bw.Now(), victim.UnitID, victim.Squad),
			DefeatedBy: actor,
		})
	}

	return sim.ActionResult{
		Status:  sim.StatusSuccess,
		Message: fmt.Sprintf("%s strikes %s for %d", actor, victim.UnitID, dealt),
	}
}

// BraceAction raises the actor's guard until it next acts or is hit.
type BraceAction struct {
	Weight sim.Tick
}

// NewBraceAction creates a brace with sensible defaults.
func NewBraceAction() *BraceAction {
	return &BraceAction{Weight: 30}
}

// Name returns the action identifier.
func (a *BraceAction) Name() string { return "brace" }

// Category returns the time cost profile.
func (a *BraceAction) Category() sim.ActionCategory { return sim.CategoryPrepared }

// BaseWeight returns the nominal time cost.
func (a *BraceAction) BaseWeight() sim.Tick { return a.Weight }

// EffectiveWeight returns the actual time cost for this actor.
func (a *BraceAction) EffectiveWeight(actor string, w sim.World) sim.Tick {
	return a.Weight
}

// Validate checks the actor can brace.
func (a *BraceAction) Validate(actor string, w sim.World, target *sim.Target) sim.ValidationResult {
	bw, ok := w.(*World)
	if !ok {
		return sim.Invalid("brace needs a battle world")
	}
	unit, ok := bw.Unit(actor)
	if !ok {
		return sim.Invalid("unknown actor")
	}
	if !unit.Alive() {
		return sim.Invalid("actor is down")
	}
	if unit.Braced {
		return sim.Invalid("already braced")
	}
	return sim.Valid()
}

// Execute raises the guard.
func (a *BraceAction) Execute(
	actor string,
	w sim.World,
	target *sim.Target,
	emit func(sim.Event),
) sim.ActionResult {
	bw := w.(*World)
	unit, _ := bw.Unit(actor)
	unit.Braced = true

	emit(sim.LogMessageEvent{
		EventBase: sim.MakeEventBase(bw.Now(), actor, unit.Squad),
		Message:   actor + " braces for impact",
	})

	return sim.ActionResult{Status: sim.StatusSuccess, Message: actor + " braces"}
}
