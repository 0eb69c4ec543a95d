// Package battle holds the combat-side collaborators of the scheduling
// kernel: the grid world, the built-in actions, the objective tracker and
// the combat log. The kernel only sees these through its Action, World and
// event contracts.
package battle

import (
	"fmt"

	"github.com/skirmishlab/vanguard/sim"
)

// Clock reads the current simulation time. The scheduler's timeline
// satisfies it.
type Clock interface {
	CurrentTime() sim.Tick
}

// A Unit is one combatant on the grid.
type Unit struct {
	UnitID string
	Squad  string
	Spd    sim.Tick
	HP     int
	MaxHP  int
	X, Y   int

	// Braced halves the next damage the unit takes. Set by the brace
	// action, cleared when damage lands or the unit next acts.
	Braced bool
}

// ID returns the stable entity identifier.
func (u *Unit) ID() string { return u.UnitID }

// Team returns the squad the unit fights for.
func (u *Unit) Team() string { return u.Squad }

// Alive reports whether the unit can still act.
func (u *Unit) Alive() bool { return u.HP > 0 }

// Speed returns the base ticks between activations.
func (u *Unit) Speed() sim.Tick { return u.Spd }

// Position returns the unit's tile.
func (u *Unit) Position() (int, int) { return u.X, u.Y }

// A World is the mutable battle state: a bounded grid of units. It
// implements sim.World for the kernel and offers the mutation surface the
// actions need.
type World struct {
	Width  int
	Height int
	Clock  Clock

	units map[string]*Unit
	order []string
}

// NewWorld creates an empty grid world.
func NewWorld(width, height int) *World {
	return &World{
		Width:  width,
		Height: height,
		units:  make(map[string]*Unit),
	}
}

// AddUnit places a unit on the grid. Duplicate IDs and occupied tiles are
// rejected.
func (w *World) AddUnit(u *Unit) error {
	if _, exists := w.units[u.UnitID]; exists {
		return fmt.Errorf("unit %q already exists", u.UnitID)
	}
	if !w.InBounds(u.X, u.Y) {
		return fmt.Errorf("unit %q starts out of bounds at (%d,%d)", u.UnitID, u.X, u.Y)
	}
	if occupant, ok := w.UnitAt(u.X, u.Y); ok {
		return fmt.Errorf("tile (%d,%d) already holds %q", u.X, u.Y, occupant.UnitID)
	}

	w.units[u.UnitID] = u
	w.order = append(w.order, u.UnitID)
	return nil
}

// Unit returns the full unit state by ID.
func (w *World) Unit(id string) (*Unit, bool) {
	u, ok := w.units[id]
	return u, ok
}

// Combatant resolves an entity ID for the kernel.
func (w *World) Combatant(id string) (sim.Combatant, bool) {
	u, ok := w.units[id]
	if !ok {
		return nil, false
	}
	return u, true
}

// LivingCombatants returns all living units in insertion order, so the
// recovery reschedule path stays deterministic.
func (w *World) LivingCombatants() []sim.Combatant {
	var living []sim.Combatant
	for _, id := range w.order {
		if u := w.units[id]; u.Alive() {
			living = append(living, u)
		}
	}
	return living
}

// TeamsRemaining returns how many squads still have living units.
func (w *World) TeamsRemaining() int {
	teams := make(map[string]bool)
	for _, u := range w.units {
		if u.Alive() {
			teams[u.Squad] = true
		}
	}
	return len(teams)
}

// InBounds reports whether a tile lies on the grid.
func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.Width && y >= 0 && y < w.Height
}

// UnitAt returns the living unit occupying a tile, if any.
func (w *World) UnitAt(x, y int) (*Unit, bool) {
	for _, id := range w.order {
		u := w.units[id]
		if u.Alive() && u.X == x && u.Y == y {
			return u, true
		}
	}
	return nil, false
}

// Now returns the current simulation tick, or zero when no clock is wired.
func (w *World) Now() sim.Tick {
	if w.Clock == nil {
		return 0
	}
	return w.Clock.CurrentTime()
}

// ApplyDamage deals damage to a unit, halved if it is braced, and reports
// whether the hit was fatal. HP never goes below zero.
func (w *World) ApplyDamage(target *Unit, amount int) (dealt int, fatal bool) {
	if target.Braced {
		amount /= 2
		target.Braced = false
	}
	if amount < 1 {
		amount = 1
	}

	target.HP -= amount
	if target.HP < 0 {
		target.HP = 0
	}

	return amount, target.HP == 0
}

// Distance returns the Manhattan distance between two tiles.
func Distance(x1, y1, x2, y2 int) int {
	dx := x1 - x2
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y2
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
