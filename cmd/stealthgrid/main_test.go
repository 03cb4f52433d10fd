package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/samdwyer/stealthgrid/internal/config"
	"github.com/samdwyer/stealthgrid/internal/grid"
)

func newTestApp() (*app, *bytes.Buffer) {
	var buf bytes.Buffer
	return &app{cfg: config.Default(), out: &buf, log: logr.Discard()}, &buf
}

func TestGenerateJSON(t *testing.T) {
	a, buf := newTestApp()
	if err := a.run(context.Background(), "generate", []string{"-seed", "42", "-json", "-validate"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	var out generateOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Seed != 42 || len(out.Rooms) == 0 {
		t.Errorf("seed=%d rooms=%d", out.Seed, len(out.Rooms))
	}
	if len(out.Tiles) != out.Layout.Height || len(out.Tiles[0]) != out.Layout.Width {
		t.Errorf("tiles are %dx%d, layout is %dx%d", len(out.Tiles[0]), len(out.Tiles), out.Layout.Width, out.Layout.Height)
	}
	if out.Validation == nil || !out.Validation.Valid {
		t.Errorf("validation = %+v", out.Validation)
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	a, first := newTestApp()
	b, second := newTestApp()
	for _, x := range []*app{a, b} {
		if err := x.run(context.Background(), "generate", []string{"-seed", "7"}); err != nil {
			t.Fatal(err)
		}
	}
	if first.String() != second.String() {
		t.Error("same seed rendered different dungeons")
	}
}

func TestValidateCommand(t *testing.T) {
	a, buf := newTestApp()
	if err := a.run(context.Background(), "validate", []string{"-layout", "vault"}); err != nil {
		t.Fatalf("validate vault: %v\n%s", err, buf.String())
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	broken := `{"name":"broken","width":6,"height":5,"playerStart":{"x":0,"y":0}}`
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}
	a, buf = newTestApp()
	err := a.run(context.Background(), "validate", []string{"-file", path})
	if !errors.Is(err, errInvalid) {
		t.Fatalf("err = %v, want errInvalid", err)
	}
	if !strings.Contains(buf.String(), "not_walkable") {
		t.Errorf("output does not name the failure:\n%s", buf.String())
	}
}

func TestSpawnCommandPlacesAllObjectives(t *testing.T) {
	a, buf := newTestApp()
	if err := a.run(context.Background(), "spawn", []string{"-layout", "archive", "-seed", "3", "-clear", "-candidates", "5"}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var out spawnOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if got := len(out.Layout.Objectives()); got != 3 {
		t.Errorf("objectives = %d, want 3", got)
	}
	if len(out.Candidates) != 5 {
		t.Errorf("candidates = %d, want 5", len(out.Candidates))
	}
}

func TestSchemaCommand(t *testing.T) {
	a, buf := newTestApp()
	if err := a.run(context.Background(), "schema", nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "playerStart") {
		t.Error("schema does not describe layouts")
	}

	path := filepath.Join(t.TempDir(), "layout.schema.json")
	if err := a.run(context.Background(), "schema", []string{"-out", path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("written schema differs from stdout (err=%v)", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp()
	if err := a.run(context.Background(), "explode", nil); err == nil {
		t.Error("expected an error")
	}
}

func TestLoadLayoutPrefersFile(t *testing.T) {
	if _, err := loadLayout("nope", ""); err == nil {
		t.Error("unknown embedded layout loaded")
	}
	l, err := loadLayout("vault", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := grid.FromLayout(l); err != nil {
		t.Errorf("vault does not build: %v", err)
	}
}
