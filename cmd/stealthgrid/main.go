// Package main is the entry point for the stealthgrid level tool.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"

	"github.com/samdwyer/stealthgrid/internal/config"
	"github.com/samdwyer/stealthgrid/internal/dungeon"
	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/leveldata"
	"github.com/samdwyer/stealthgrid/internal/sim"
	"github.com/samdwyer/stealthgrid/internal/spawn"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
	"github.com/samdwyer/stealthgrid/internal/ui"
	"github.com/samdwyer/stealthgrid/internal/validate"
)

// errInvalid signals a completed run whose result failed validation.
var errInvalid = errors.New("layout is invalid")

const usage = `usage: stealthgrid <command> [flags]

commands:
  generate   generate a dungeon and print it
  validate   validate a layout
  spawn      place and repair objectives in a layout
  preview    watch guards patrol a layout
  schema     print the layout JSON schema
`

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file for local development
	// This makes HONEYCOMB_STEALTHGRID_API_KEY available
	if err := godotenv.Load(); err != nil {
		// Not fatal - env vars might be set directly
		log.Printf("Note: .env file not loaded: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 2
	}

	ctx := context.Background()
	if cfg.Telemetry {
		// Set up OTEL environment variables from our .env variables
		setupOTelEnv()
		shutdown, err := telemetry.Setup(ctx, telemetry.WithSampleRatio(cfg.TraceSampleRatio))
		if err != nil {
			log.Printf("Warning: telemetry setup failed: %v", err)
		} else {
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	a := &app{cfg: cfg, out: os.Stdout, log: telemetry.Logger(cfg.Verbosity)}
	err = a.run(ctx, os.Args[1], os.Args[2:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errInvalid):
		return 1
	default:
		log.Printf("%s: %v", os.Args[1], err)
		return 1
	}
}

// setupOTelEnv configures OTEL environment variables from our custom env vars.
func setupOTelEnv() {
	apiKey := os.Getenv("HONEYCOMB_STEALTHGRID_API_KEY")
	if apiKey == "" {
		return
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://api.honeycomb.io")
	}
	dataset := os.Getenv("HONEYCOMB_STEALTHGRID_DATASET")
	if dataset == "" {
		dataset = "stealthgrid"
	}
	os.Setenv("OTEL_EXPORTER_OTLP_HEADERS",
		fmt.Sprintf("x-honeycomb-team=%s,x-honeycomb-dataset=%s", apiKey, dataset))
}

type app struct {
	cfg config.Config
	out io.Writer
	log logr.Logger
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "generate":
		return a.generate(ctx, args)
	case "validate":
		return a.validate(ctx, args)
	case "spawn":
		return a.spawn(ctx, args)
	case "preview":
		return a.preview(ctx, args)
	case "schema":
		return a.schema(args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// seed returns the configured seed, or a time-based one when it is zero.
func (a *app) seed(flagSeed int64) int64 {
	switch {
	case flagSeed != 0:
		return flagSeed
	case a.cfg.Seed != 0:
		return a.cfg.Seed
	default:
		return time.Now().UnixNano()
	}
}

// layoutFlags registers the shared -layout and -file flags.
func layoutFlags(fs *flag.FlagSet) (name, file *string) {
	name = fs.String("layout", "vault", "embedded layout name ("+fmt.Sprint(leveldata.LayoutNames())+")")
	file = fs.String("file", "", "path to a layout JSON file (overrides -layout)")
	return name, file
}

func loadLayout(name, file string) (grid.Layout, error) {
	if file != "" {
		return leveldata.LoadLayoutFile(file)
	}
	return leveldata.LoadLayout(name)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type generateOutput struct {
	Seed       int64              `json:"seed"`
	Rooms      []dungeon.Room     `json:"rooms"`
	Corridors  []dungeon.Corridor `json:"corridors"`
	Layout     grid.Layout        `json:"layout"`
	Tiles      []string           `json:"tiles"`
	Validation *validate.Result   `json:"validation,omitempty"`
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	seedFlag := fs.Int64("seed", 0, "random seed (0 uses STEALTHGRID_SEED or the clock)")
	minRooms := fs.Int("min-rooms", 0, "retry with new seeds until at least this many rooms are placed")
	tries := fs.Uint("tries", 10, "seeds to try when -min-rooms is set")
	asJSON := fs.Bool("json", false, "print JSON instead of ASCII")
	check := fs.Bool("validate", false, "validate the generated layout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	seed := a.seed(*seedFlag)
	dcfg := a.cfg.Dungeon()
	var d *dungeon.Dungeon
	var err error
	if *minRooms > 0 {
		d, seed, err = dungeon.GenerateAtLeast(ctx, dcfg, seed, *minRooms, *tries, dungeon.WithLogger(a.log.WithName("dungeon")))
	} else {
		d, err = dungeon.NewGenerator(dcfg, rand.New(rand.NewSource(seed)), dungeon.WithLogger(a.log.WithName("dungeon"))).Generate(ctx)
	}
	if err != nil {
		return err
	}

	layout := d.Layout()
	layout.Name = fmt.Sprintf("generated-%d", seed)
	var res *validate.Result
	if *check {
		r := validate.New(validate.DefaultConfig(), validate.WithLogger(a.log.WithName("validate"))).
			Validate(ctx, d.Grid, layout, d.RoomRects()...)
		res = &r
	}

	if *asJSON {
		if err := a.writeJSON(generateOutput{
			Seed:       seed,
			Rooms:      d.Rooms,
			Corridors:  d.Corridors,
			Layout:     layout,
			Tiles:      splitRows(d.Grid),
			Validation: res,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(a.out, "seed %d, %d rooms, %d corridors\n", seed, len(d.Rooms), len(d.Corridors))
		fmt.Fprint(a.out, d.Grid.String())
		if res != nil {
			printResult(a.out, *res)
		}
	}
	if res != nil && !res.Valid {
		return errInvalid
	}
	return nil
}

func splitRows(g *grid.Grid) []string {
	return strings.Split(strings.TrimSuffix(g.String(), "\n"), "\n")
}

func printResult(w io.Writer, res validate.Result) {
	fmt.Fprintf(w, "valid: %v\n", res.Valid)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error   %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning %s\n", warn)
	}
}

func (a *app) validate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	name, file := layoutFlags(fs)
	asJSON := fs.Bool("json", true, "print the result as JSON")
	agents := fs.Bool("agents", false, "check walkability for guards instead of the player")
	if err := fs.Parse(args); err != nil {
		return err
	}
	l, err := loadLayout(*name, *file)
	if err != nil {
		return err
	}
	g, err := grid.FromLayout(l)
	if err != nil {
		return err
	}
	vcfg := validate.DefaultConfig()
	if *agents {
		vcfg.Class = grid.ActorAgent
	}
	res := validate.New(vcfg, validate.WithLogger(a.log.WithName("validate"))).Validate(ctx, g, l)
	if *asJSON {
		if err := a.writeJSON(res); err != nil {
			return err
		}
	} else {
		printResult(a.out, res)
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

type spawnOutput struct {
	Seed       int64             `json:"seed"`
	Layout     grid.Layout       `json:"layout"`
	Result     validate.Result   `json:"result"`
	Candidates []spawn.Candidate `json:"candidates,omitempty"`
}

func (a *app) spawn(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("spawn", flag.ContinueOnError)
	name, file := layoutFlags(fs)
	seedFlag := fs.Int64("seed", 0, "seed for deterministic spawns (0 uses STEALTHGRID_SEED or the clock)")
	reset := fs.Bool("clear", false, "drop authored objectives and spawn all of them")
	top := fs.Int("candidates", 0, "include the best N candidates in the output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	l, err := loadLayout(*name, *file)
	if err != nil {
		return err
	}
	if *reset {
		l.DataCore, l.KeyCard, l.HackTerminal = nil, nil, nil
	}
	g, err := grid.FromLayout(l)
	if err != nil {
		return err
	}
	seed := a.seed(*seedFlag)
	s := spawn.New(g, l, spawn.DefaultConfig(), spawn.WithLogger(a.log.WithName("spawn")))
	out, res := s.Repair(ctx, seed)

	cands := s.Candidates()
	if *top < len(cands) {
		cands = cands[:max(*top, 0)]
	}
	if err := a.writeJSON(spawnOutput{Seed: seed, Layout: out, Result: res, Candidates: cands}); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func (a *app) preview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	name, file := layoutFlags(fs)
	guards := fs.Int("guards", 2, "guards sharing the patrol route")
	if err := fs.Parse(args); err != nil {
		return err
	}
	l, err := loadLayout(*name, *file)
	if err != nil {
		return err
	}
	profiles, err := leveldata.LoadProfileRegistry()
	if err != nil {
		return err
	}
	// Log lines would tear the terminal UI.
	session, err := sim.NewSession(ctx, a.cfg, l, sim.WithGuards(*guards), sim.WithProfiles(profiles))
	if err != nil {
		return err
	}
	screen, err := ui.NewScreen()
	if err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Close()
	return session.Run(ctx, screen)
}

func (a *app) schema(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	outPath := fs.String("out", "", "write the schema to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := leveldata.SchemaJSON()
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err = a.out.Write(data)
		return err
	}
	tmpPath := *outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, *outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
