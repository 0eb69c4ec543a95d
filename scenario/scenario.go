// Package scenario loads battle setups from YAML files.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnitSpec describes one combatant in a scenario file.
type UnitSpec struct {
	ID      string `yaml:"id"`
	Team    string `yaml:"team"`
	Speed   int64  `yaml:"speed"`
	HP      int    `yaml:"hp"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Control string `yaml:"control"` // "ai" or "player"; defaults to "ai"
}

// HazardSpec describes a timed hazard activation.
type HazardSpec struct {
	ID          string `yaml:"id"`
	Tick        int64  `yaml:"tick"`
	Description string `yaml:"description"`
}

// A Scenario is a complete battle setup.
type Scenario struct {
	Name    string       `yaml:"name"`
	Width   int          `yaml:"width"`
	Height  int          `yaml:"height"`
	Units   []UnitSpec   `yaml:"units"`
	Hazards []HazardSpec `yaml:"hazards"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return &sc, nil
}

// Validate checks the scenario for internal consistency.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if sc.Width <= 0 || sc.Height <= 0 {
		return fmt.Errorf("scenario %q has invalid grid %dx%d", sc.Name, sc.Width, sc.Height)
	}
	if len(sc.Units) == 0 {
		return fmt.Errorf("scenario %q has no units", sc.Name)
	}

	seen := make(map[string]bool)
	teams := make(map[string]bool)
	for i, u := range sc.Units {
		if u.ID == "" {
			return fmt.Errorf("scenario %q: unit %d has no id", sc.Name, i)
		}
		if seen[u.ID] {
			return fmt.Errorf("scenario %q: duplicate unit id %q", sc.Name, u.ID)
		}
		seen[u.ID] = true

		if u.Team == "" {
			return fmt.Errorf("scenario %q: unit %q has no team", sc.Name, u.ID)
		}
		teams[u.Team] = true

		if u.Speed <= 0 {
			return fmt.Errorf("scenario %q: unit %q has non-positive speed", sc.Name, u.ID)
		}
		if u.HP <= 0 {
			return fmt.Errorf("scenario %q: unit %q has non-positive hp", sc.Name, u.ID)
		}
		if u.X < 0 || u.X >= sc.Width || u.Y < 0 || u.Y >= sc.Height {
			return fmt.Errorf("scenario %q: unit %q starts off the grid", sc.Name, u.ID)
		}
		if u.Control != "" && u.Control != "ai" && u.Control != "player" {
			return fmt.Errorf("scenario %q: unit %q has unknown control %q",
				sc.Name, u.ID, u.Control)
		}
	}

	if len(teams) < 2 {
		return fmt.Errorf("scenario %q needs at least two teams", sc.Name)
	}

	for i, h := range sc.Hazards {
		if h.ID == "" {
			return fmt.Errorf("scenario %q: hazard %d has no id", sc.Name, i)
		}
		if h.Tick < 0 {
			return fmt.Errorf("scenario %q: hazard %q has negative tick", sc.Name, h.ID)
		}
	}

	return nil
}
