// Package config carries engine settings: difficulty profiles, heuristic
// weights, and cache sizing. Settings load from defaults, an optional yaml
// file, and TESELA_-prefixed environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tesela-ai/tesela/eval"
)

// Profile maps a named difficulty level to search parameters.
type Profile struct {
	// Depth is the target search depth in plies.
	Depth int `mapstructure:"depth"`
	// RandomnessFactor in [0,1] scales the score jitter applied at the
	// root, purely to vary play at low difficulty.
	RandomnessFactor float64 `mapstructure:"randomness-factor"`
	// TimeBudgetMs bounds one search call under iterative deepening.
	TimeBudgetMs int `mapstructure:"time-budget-ms"`
	// IterativeDeepening searches depth 1, 2, ... up to Depth, keeping the
	// best move of the deepest completed depth.
	IterativeDeepening bool `mapstructure:"iterative-deepening"`
	// MaxChanceCells caps the number of empty cells a chance node branches
	// on. Zero means no cap.
	MaxChanceCells int `mapstructure:"max-chance-cells"`
	// Screening pre-ranks root moves with cheap Monte-Carlo rollouts and
	// commits full-depth search only to the most promising few.
	Screening      bool `mapstructure:"screening"`
	ScreenKeep     int  `mapstructure:"screen-keep"`
	ScreenRollouts int  `mapstructure:"screen-rollouts"`
	ScreenHorizon  int  `mapstructure:"screen-horizon"`
}

type Config struct {
	// Difficulty is the active profile name.
	Difficulty string `mapstructure:"difficulty"`
	// CacheFraction sizes the transposition table as a fraction of system
	// memory.
	CacheFraction float64 `mapstructure:"cache-fraction"`
	// YieldInterval is the node-evaluation cadence at which the search
	// checks for cancellation and yields to its caller.
	YieldInterval int `mapstructure:"yield-interval"`
	// RootParallelism is the number of goroutines evaluating root moves.
	// 1 keeps the search single-threaded.
	RootParallelism int `mapstructure:"root-parallelism"`

	Profiles map[string]Profile `mapstructure:"profiles"`
	Weights  eval.Weights       `mapstructure:"weights"`
}

// Load populates the config from defaults, the optional file at path (yaml;
// empty path skips the file), and the environment.
func (c *Config) Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("tesela")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if _, ok := c.Profiles[c.Difficulty]; !ok {
		return fmt.Errorf("difficulty %q has no profile", c.Difficulty)
	}
	return nil
}

// ProfileFor returns the profile for a difficulty level.
func (c *Config) ProfileFor(level string) (Profile, error) {
	p, ok := c.Profiles[strings.ToLower(level)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown difficulty level %q", level)
	}
	return p, nil
}

// Levels returns the known difficulty names.
func (c *Config) Levels() []string {
	levels := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		levels = append(levels, name)
	}
	return levels
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("difficulty", "medium")
	v.SetDefault("cache-fraction", 0.05)
	v.SetDefault("yield-interval", 1024)
	v.SetDefault("root-parallelism", 1)

	defaultProfiles := map[string]Profile{
		"easy": {
			Depth:            2,
			RandomnessFactor: 0.2,
			TimeBudgetMs:     50,
			MaxChanceCells:   4,
		},
		"medium": {
			Depth:              4,
			RandomnessFactor:   0.08,
			TimeBudgetMs:       150,
			IterativeDeepening: true,
			MaxChanceCells:     6,
		},
		"hard": {
			Depth:              6,
			RandomnessFactor:   0.03,
			TimeBudgetMs:       300,
			IterativeDeepening: true,
			MaxChanceCells:     6,
		},
		"expert": {
			Depth:              7,
			RandomnessFactor:   0.005,
			TimeBudgetMs:       600,
			IterativeDeepening: true,
			MaxChanceCells:     6,
			Screening:          true,
			ScreenKeep:         3,
			ScreenRollouts:     24,
			ScreenHorizon:      12,
		},
	}
	// set per-key so a config file can override one profile field without
	// clobbering the rest
	for name, p := range defaultProfiles {
		v.SetDefault("profiles."+name+".depth", p.Depth)
		v.SetDefault("profiles."+name+".randomness-factor", p.RandomnessFactor)
		v.SetDefault("profiles."+name+".time-budget-ms", p.TimeBudgetMs)
		v.SetDefault("profiles."+name+".iterative-deepening", p.IterativeDeepening)
		v.SetDefault("profiles."+name+".max-chance-cells", p.MaxChanceCells)
		v.SetDefault("profiles."+name+".screening", p.Screening)
		v.SetDefault("profiles."+name+".screen-keep", p.ScreenKeep)
		v.SetDefault("profiles."+name+".screen-rollouts", p.ScreenRollouts)
		v.SetDefault("profiles."+name+".screen-horizon", p.ScreenHorizon)
	}

	w := eval.DefaultWeights()
	v.SetDefault("weights.empty", w.Empty)
	v.SetDefault("weights.monotonicity", w.Monotonicity)
	v.SetDefault("weights.smoothness", w.Smoothness)
	v.SetDefault("weights.merge-potential", w.MergePotential)
	v.SetDefault("weights.corner-gradient", w.CornerGradient)
	v.SetDefault("weights.snake", w.Snake)
	v.SetDefault("weights.max-tile", w.MaxTile)
	v.SetDefault("weights.loss-penalty", w.LossPenalty)
}

// DefaultConfig returns a config loaded purely from defaults. It panics on
// failure, which can only be a programming error in the defaults.
func DefaultConfig() *Config {
	c := &Config{}
	if err := c.Load(""); err != nil {
		panic(err)
	}
	return c
}
