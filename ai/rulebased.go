// Package ai provides decision sources that drive computer-controlled
// units through the same contract the player input pipeline uses.
package ai

import (
	"errors"
	"fmt"

	"github.com/skirmishlab/vanguard/battle"
	"github.com/skirmishlab/vanguard/sim"
)

// ErrNoActor is returned when the view names no acting entity.
var ErrNoActor = errors.New("no acting entity in view")

// RuleBased is a deterministic chase-and-strike controller: hit the closest
// enemy if it is in reach, otherwise close the distance, otherwise wait.
// Ties always break the same way, so a battle replays identically.
type RuleBased struct {
	Reach     int
	MoveRange int
}

// New creates a RuleBased source matching the default battle actions.
func New() *RuleBased {
	return &RuleBased{Reach: 1, MoveRange: 4}
}

// Decide implements sim.DecisionSource.
func (r *RuleBased) Decide(view sim.SessionView, w sim.World) (sim.Decision, error) {
	if view.ActingEntity == "" {
		return sim.Decision{}, ErrNoActor
	}

	bw, ok := w.(*battle.World)
	if !ok {
		return sim.Decision{}, errors.New("rule-based ai needs a battle world")
	}

	actor, ok := bw.Unit(view.ActingEntity)
	if !ok || !actor.Alive() {
		return sim.Decision{}, fmt.Errorf("actor %q not available", view.ActingEntity)
	}

	enemy := r.closestEnemy(bw, actor)
	if enemy == nil {
		return sim.Decision{
			ActionName: sim.WaitName,
			Confidence: 1,
			Reasoning:  "no enemies remain",
		}, nil
	}

	dist := battle.Distance(actor.X, actor.Y, enemy.X, enemy.Y)
	if dist <= r.Reach {
		return sim.Decision{
			ActionName: "strike",
			Target:     &sim.Target{EntityID: enemy.UnitID, X: enemy.X, Y: enemy.Y},
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("%s in reach at distance %d", enemy.UnitID, dist),
		}, nil
	}

	if tile, found := r.approachTile(bw, actor, enemy); found {
		return sim.Decision{
			ActionName: "move",
			Target:     &tile,
			Confidence: 0.7,
			Reasoning:  fmt.Sprintf("closing on %s", enemy.UnitID),
		}, nil
	}

	return sim.Decision{
		ActionName: sim.WaitName,
		Confidence: 0.5,
		Reasoning:  "no path closes the distance",
	}, nil
}

// closestEnemy picks the nearest living enemy, breaking distance ties by
// unit ID so the choice is reproducible.
func (r *RuleBased) closestEnemy(bw *battle.World, actor *battle.Unit) *battle.Unit {
	var best *battle.Unit
	bestDist := 0

	for _, c := range bw.LivingCombatants() {
		if c.Team() == actor.Squad {
			continue
		}
		enemy, _ := bw.Unit(c.ID())
		dist := battle.Distance(actor.X, actor.Y, enemy.X, enemy.Y)

		if best == nil || dist < bestDist ||
			(dist == bestDist && enemy.UnitID < best.UnitID) {
			best = enemy
			bestDist = dist
		}
	}

	return best
}

// approachTile scans reachable free tiles in a fixed row-major order and
// returns the one that gets closest to the enemy.
func (r *RuleBased) approachTile(
	bw *battle.World,
	actor *battle.Unit,
	enemy *battle.Unit,
) (sim.Target, bool) {
	best := sim.Target{}
	found := false
	bestDist := battle.Distance(actor.X, actor.Y, enemy.X, enemy.Y)

	for y := 0; y < bw.Height; y++ {
		for x := 0; x < bw.Width; x++ {
			if battle.Distance(actor.X, actor.Y, x, y) > r.MoveRange {
				continue
			}
			if x == actor.X && y == actor.Y {
				continue
			}
			if _, occupied := bw.UnitAt(x, y); occupied {
				continue
			}

			dist := battle.Distance(x, y, enemy.X, enemy.Y)
			if dist < bestDist {
				best = sim.Target{X: x, Y: y}
				bestDist = dist
				found = true
			}
		}
	}

	return best, found
}
