// Package config loads engine and solver tuning from YAML via
// github.com/goccy/go-yaml, grounded on signadot-tony-format's
// dirbuild.Dir pattern of unmarshaling a config section straight into a
// typed struct.
package config

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// KInduction tunes the k-induction step engine.
type KInduction struct {
	// ConfirmSleepMillis is the idle-sleep interval between event polls
	// in the confirmation phase, avoiding busy-waiting on the companion
	// BMC engine's KTrue(k) promotions.
	ConfirmSleepMillis int `yaml:"confirm_sleep_millis"`
}

func (k KInduction) ConfirmSleep() time.Duration {
	if k.ConfirmSleepMillis <= 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(k.ConfirmSleepMillis) * time.Millisecond
}

// IC3IA tunes the IC3IA engine.
type IC3IA struct {
	// SeedPredicates names extra atoms (beyond I and P) to seed the abvar
	// map with before the first block phase, letting an operator hint at
	// useful abstraction granularity up front.
	SeedPredicates []string `yaml:"seed_predicates"`
	// PropagationBatchSize bounds how many of a frame's own clauses are
	// tested for propagation per partition_absrelind call; 0 means
	// unbounded (test them all in one pass, this module's default).
	PropagationBatchSize int `yaml:"propagation_batch_size"`
}

// Solver selects and tunes the SMT backend.
type Solver struct {
	// Backend names which solverfacade.Solver constructor to use. Only
	// "z3" is wired in this module; the field exists so a future
	// MathSAT-backed adapter (needed for interpolation) is a config
	// change, not a recompile.
	Backend string `yaml:"backend"`
}

// Config is the top-level document loaded from YAML.
type Config struct {
	KInduction KInduction `yaml:"k_induction"`
	IC3IA      IC3IA      `yaml:"ic3ia"`
	Solver     Solver     `yaml:"solver"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		KInduction: KInduction{ConfirmSleepMillis: 5},
		Solver:     Solver{Backend: "z3"},
	}
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}
