// Package config loads stealthgrid settings from defaults, .env files and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/samdwyer/stealthgrid/internal/dungeon"
	"github.com/samdwyer/stealthgrid/internal/movement"
	"github.com/samdwyer/stealthgrid/internal/pathfind"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STEALTHGRID_"

// ErrInvalidValue is returned when a setting cannot be parsed or is out of range.
var ErrInvalidValue = errors.New("invalid config value")

// Config holds every tunable.
type Config struct {
	// Seed for random number generation. Used for reproducible dungeon generation.
	// A seed of 0 means a random seed will be generated.
	Seed int64

	Width       int
	Height      int
	TargetRooms int
	LoopChance  float64
	DoorChance  float64

	Movement       movement.Strategy
	TileSize       float64
	TilesPerSecond float64
	Easing         movement.Easing

	Diagonal      bool
	Smooth        bool
	CacheTTL      time.Duration
	CacheSize     int
	MaxIterations int

	Verbosity int
	// Telemetry enables the OTLP trace exporter.
	Telemetry bool
	// TraceSampleRatio is the fraction of root traces exported, in [0,1].
	TraceSampleRatio float64
}

// Default returns the documented defaults.
func Default() Config {
	d := dungeon.DefaultConfig()
	m := movement.DefaultConfig()
	p := pathfind.DefaultConfig()
	return Config{
		Width:          d.Width,
		Height:         d.Height,
		TargetRooms:    d.TargetRooms,
		LoopChance:     d.LoopChance,
		DoorChance:     d.DoorChance,
		Movement:       m.Strategy,
		TileSize:       m.TileSize,
		TilesPerSecond: m.TilesPerSecond,
		Easing:         m.Easing,
		Diagonal:       p.Diagonal,
		Smooth:         p.Smooth,
		CacheTTL:       p.CacheTTL,
		CacheSize:      p.CacheSize,
		MaxIterations:  p.MaxIterations,
		Telemetry:      true,

		TraceSampleRatio: 1,
	}
}

// Load returns the defaults overlaid with the given .env files and then the
// process environment. With no files, ./.env is read when it exists.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	values := map[string]string{}
	if len(files) > 0 {
		read, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("read env files: %w", err)
		}
		values = read
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}
	cfg := Default()
	if err := cfg.apply(values); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

type setter func(string) error

func (c *Config) setters() map[string]setter {
	return map[string]setter{
		"SEED":             intVar(&c.Seed),
		"WIDTH":            intVar(&c.Width),
		"HEIGHT":           intVar(&c.Height),
		"ROOMS":            intVar(&c.TargetRooms),
		"LOOP_CHANCE":      floatVar(&c.LoopChance),
		"DOOR_CHANCE":      floatVar(&c.DoorChance),
		"TILE_SIZE":        floatVar(&c.TileSize),
		"TILES_PER_SECOND": floatVar(&c.TilesPerSecond),
		"DIAGONAL":         boolVar(&c.Diagonal),
		"SMOOTH":           boolVar(&c.Smooth),
		"CACHE_SIZE":       intVar(&c.CacheSize),
		"MAX_ITERATIONS":   intVar(&c.MaxIterations),
		"VERBOSITY":        intVar(&c.Verbosity),
		"TELEMETRY":        boolVar(&c.Telemetry),
		"TRACE_SAMPLE":     floatVar(&c.TraceSampleRatio),
		"CACHE_TTL": func(s string) (err error) {
			c.CacheTTL, err = time.ParseDuration(s)
			return err
		},
		"EASING": func(s string) (err error) {
			c.Easing, err = movement.ParseEasing(s)
			return err
		},
		"MOVEMENT": func(s string) (err error) {
			c.Movement, err = movement.ParseStrategy(s)
			return err
		},
	}
}

func (c *Config) apply(values map[string]string) error {
	for name, set := range c.setters() {
		raw, ok := values[EnvPrefix+name]
		if !ok {
			continue
		}
		if err := set(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidValue, EnvPrefix, name, raw, err)
		}
	}
	return nil
}

func intVar[T int | int64](dst *T) setter {
	return func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*dst = T(v)
		return nil
	}
}

func floatVar(dst *float64) setter {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolVar(dst *bool) setter {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// Validate checks ranges that the parsers cannot.
func (c Config) Validate() error {
	switch {
	case c.LoopChance < 0 || c.LoopChance > 1:
		return fmt.Errorf("%w: loop chance %v outside [0,1]", ErrInvalidValue, c.LoopChance)
	case c.DoorChance < 0 || c.DoorChance > 1:
		return fmt.Errorf("%w: door chance %v outside [0,1]", ErrInvalidValue, c.DoorChance)
	case c.TileSize <= 0 || c.TilesPerSecond <= 0:
		return fmt.Errorf("%w: tile size and tiles per second must be positive", ErrInvalidValue)
	case c.CacheSize < 1 || c.MaxIterations < 1:
		return fmt.Errorf("%w: cache size and max iterations must be positive", ErrInvalidValue)
	case c.CacheTTL < 0:
		return fmt.Errorf("%w: negative cache ttl", ErrInvalidValue)
	case c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1:
		return fmt.Errorf("%w: trace sample ratio %v outside [0,1]", ErrInvalidValue, c.TraceSampleRatio)
	}
	if err := c.Dungeon().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

// Dungeon returns the generator configuration.
func (c Config) Dungeon() dungeon.Config {
	d := dungeon.DefaultConfig()
	d.Width = c.Width
	d.Height = c.Height
	d.TargetRooms = c.TargetRooms
	d.LoopChance = c.LoopChance
	d.DoorChance = c.DoorChance
	return d
}

// Pathfind returns the pathfinder configuration.
func (c Config) Pathfind() pathfind.Config {
	p := pathfind.DefaultConfig()
	p.Diagonal = c.Diagonal
	p.Smooth = c.Smooth
	p.CacheTTL = c.CacheTTL
	p.CacheSize = c.CacheSize
	p.MaxIterations = c.MaxIterations
	return p
}

// MovementConfig returns the movement configuration.
func (c Config) MovementConfig() movement.Config {
	m := movement.DefaultConfig()
	m.Strategy = c.Movement
	m.TileSize = c.TileSize
	m.TilesPerSecond = c.TilesPerSecond
	m.Easing = c.Easing
	return m
}
