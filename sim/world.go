package sim

// A Combatant is the minimal view of a unit the kernel needs for scheduling.
// Domain packages hold the full unit state; the kernel only ever reads.
type Combatant interface {
	// ID returns the stable entity identifier.
	ID() string

	// Team returns the side the combatant fights for.
	Team() string

	// Alive reports whether the combatant can still act.
	Alive() bool

	// Speed returns the base number of ticks between activations.
	Speed() Tick
}

// A World is the read surface the kernel uses to resolve entity references
// and detect the end of an encounter. The kernel never owns or mutates
// entities.
type World interface {
	// Combatant resolves an entity ID.
	Combatant(id string) (Combatant, bool)

	// LivingCombatants returns all units still able to act, in a stable
	// order.
	LivingCombatants() []Combatant

	// TeamsRemaining returns how many teams still have living units.
	TeamsRemaining() int
}
