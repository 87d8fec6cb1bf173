// Package config defines process configuration and its validation.
package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/internal/domain/registry"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address. Empty runs the pipeline once
	// and exits.
	Addr string `koanf:"addr"`

	// Input tables.
	ContestsPath  string `koanf:"contests_path"`
	CanonPath     string `koanf:"canon_path"`
	AuxPath       string `koanf:"aux_path"`
	CrosswalkPath string `koanf:"crosswalk_path"`
	AliasesPath   string `koanf:"aliases_path"`

	// OutputDir receives the snapshot, crosswalk, strays and ledger files.
	OutputDir string `koanf:"output_dir"`

	// WorkerCount sets the number of fit workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the fit job queue.
	QueueSize int `koanf:"queue_size"`

	// FitTimeout bounds one target's fit. Zero disables the bound.
	FitTimeout time.Duration `koanf:"fit_timeout"`

	// LearningRate is alpha. Zero selects the default of the target kind.
	LearningRate float64 `koanf:"learning_rate"`

	TargetKind      string   `koanf:"target_kind"`
	TargetColumn    string   `koanf:"target_column"`
	LandedColumn    string   `koanf:"landed_column"`
	AttemptedColumn string   `koanf:"attempted_column"`
	SideColumns     []string `koanf:"side_columns"`

	// UnknownEntity is strict or lenient.
	UnknownEntity string `koanf:"unknown_entity"`

	// IsoIterations caps the propagation rounds of identity resolution.
	IsoIterations int `koanf:"iso_iterations"`

	CVFolds int `koanf:"cv_folds"`

	DaysSinceCeiling  float64  `koanf:"days_since_ceiling"`
	TopTierPromotions []string `koanf:"top_tier_promotions"`
	WeightColumn      string   `koanf:"weight_column"`
	MinutesColumn     string   `koanf:"minutes_column"`

	InitialBankroll float64 `koanf:"initial_bankroll"`
	MaxBetFraction  float64 `koanf:"max_bet_fraction"`
	KellyMultiplier float64 `koanf:"kelly_multiplier"`
	OddsSelfColumn  string  `koanf:"odds_self_column"`
	OddsOtherColumn string  `koanf:"odds_other_column"`

	// MaxRankingsLimit caps GET /rankings?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		OutputDir:         "out",
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         64,
		FitTimeout:        10 * time.Minute,
		TargetKind:        "binary",
		TargetColumn:      "win",
		UnknownEntity:     "strict",
		IsoIterations:     20,
		CVFolds:           5,
		DaysSinceCeiling:  1095,
		TopTierPromotions: []string{"UFC"},
		WeightColumn:      "weight",
		MinutesColumn:     "minutes",
		InitialBankroll:   1000,
		MaxBetFraction:    0.1,
		KellyMultiplier:   1,
		OddsSelfColumn:    "odds",
		OddsOtherColumn:   "opp_odds",
		MaxRankingsLimit:  500,
	}
}

// Kind returns the parsed target kind.
func (c *Config) Kind() (rating.Kind, error) { return rating.ParseKind(c.TargetKind) }

// Policy returns the parsed unknown-entity policy.
func (c *Config) Policy() (registry.Policy, error) { return registry.ParsePolicy(c.UnknownEntity) }

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return fmt.Errorf("%w: target_kind: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: unknown_entity: %w", ErrInvalidConfig, err)
	}

	switch {
	case c.LearningRate < 0 || math.IsNaN(c.LearningRate) || math.IsInf(c.LearningRate, 0):
		return invalid("learning_rate", c.LearningRate)
	case kind == rating.CountRatio && (c.LandedColumn == "" || c.AttemptedColumn == ""):
		return fmt.Errorf("%w: count_ratio needs landed_column and attempted_column", ErrInvalidConfig)
	case kind != rating.CountRatio && c.TargetColumn == "":
		return invalid("target_column", c.TargetColumn)
	case kind == rating.Real && c.TargetColumn == contest.DefaultOutcomeColumn:
		return fmt.Errorf("%w: real target_column %q is the outcome column", ErrInvalidConfig, c.TargetColumn)
	case kind == rating.CountRatio && c.LandedColumn == contest.DefaultOutcomeColumn:
		return fmt.Errorf("%w: count_ratio landed_column %q is the outcome column", ErrInvalidConfig, c.LandedColumn)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format", c.LogFormat)
	case c.WorkerCount < 1:
		return invalid("worker_count", c.WorkerCount)
	case c.QueueSize < 1:
		return invalid("queue_size", c.QueueSize)
	case c.FitTimeout < 0:
		return invalid("fit_timeout", c.FitTimeout)
	case c.IsoIterations < 1:
		return invalid("iso_iterations", c.IsoIterations)
	case c.CVFolds < 1:
		return invalid("cv_folds", c.CVFolds)
	case !(c.DaysSinceCeiling > 0):
		return invalid("days_since_ceiling", c.DaysSinceCeiling)
	case !(c.InitialBankroll > 0):
		return invalid("initial_bankroll", c.InitialBankroll)
	case !(c.MaxBetFraction > 0 && c.MaxBetFraction <= 1):
		return invalid("max_bet_fraction", c.MaxBetFraction)
	case !(c.KellyMultiplier > 0):
		return invalid("kelly_multiplier", c.KellyMultiplier)
	case c.MaxRankingsLimit < 1:
		return invalid("max_rankings_limit", c.MaxRankingsLimit)
	case c.OutputDir == "":
		return invalid("output_dir", c.OutputDir)
	}
	for _, col := range c.SideColumns {
		if strings.TrimSpace(col) == "" {
			return invalid("side_columns", c.SideColumns)
		}
	}
	return nil
}

func invalid(key string, v any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidConfig, key, v)
}
