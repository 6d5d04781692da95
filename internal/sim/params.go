// Package sim drives the external zombies model. A run receives its
// parameters as a JSON payload and writes a counts CSV whose last row holds
// the surviving humans.
package sim

import (
	"encoding/json"
	"fmt"
)

// Params is the payload handed to the zombies model. The JSON keys are the
// model's own parameter names.
type Params struct {
	RandomSeed     int64   `json:"random.seed"`
	StopAt         float64 `json:"stop.at"`
	HumanCount     int     `json:"human.count"`
	ZombieCount    int     `json:"zombie.count"`
	WorldWidth     int     `json:"world.width"`
	WorldHeight    int     `json:"world.height"`
	RunNumber      int     `json:"run.number"`
	CountsFile     string  `json:"counts_file"`
	ZombieStepSize float64 `json:"zombie_step_size"`
	HumanStepSize  float64 `json:"human_step_size"`
}

// DefaultParams returns the model's standard setup with zero step sizes.
func DefaultParams() Params {
	return Params{
		StopAt:      50,
		HumanCount:  4000,
		ZombieCount: 200,
		WorldWidth:  200,
		WorldHeight: 200,
		RunNumber:   1,
	}
}

// MakeParams returns the default setup for one (human, zombie) step-size pair
// and seed.
func MakeParams(humanStep, zombieStep float64, seed int64) Params {
	p := DefaultParams()
	p.HumanStepSize = humanStep
	p.ZombieStepSize = zombieStep
	p.RandomSeed = seed
	return p
}

// Validate checks the fields the model cannot run without.
func (p Params) Validate() error {
	if p.StopAt <= 0 {
		return fmt.Errorf("stop.at must be positive, got %g", p.StopAt)
	}
	if p.WorldWidth <= 0 || p.WorldHeight <= 0 {
		return fmt.Errorf("world must have positive size, got %dx%d", p.WorldWidth, p.WorldHeight)
	}
	if p.HumanCount < 0 || p.ZombieCount < 0 {
		return fmt.Errorf("populations must be non-negative, got %d humans and %d zombies", p.HumanCount, p.ZombieCount)
	}
	if p.HumanStepSize < 0 || p.ZombieStepSize < 0 {
		return fmt.Errorf("step sizes must be non-negative, got human %g zombie %g", p.HumanStepSize, p.ZombieStepSize)
	}
	return nil
}

// Payload encodes p as the JSON argument passed to the model.
func (p Params) Payload() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}
