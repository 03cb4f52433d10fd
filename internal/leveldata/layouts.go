package leveldata

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// ErrUnknownLayout is returned when no embedded layout has the requested name.
var ErrUnknownLayout = errors.New("unknown layout")

// LayoutNames returns the names of the embedded layouts in sorted order.
func LayoutNames() []string {
	files, err := fs.Glob(dataFS, "layouts/*.json")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(path.Base(f), ".json"))
	}
	sort.Strings(names)
	return names
}

// LoadLayout loads the embedded layout with the given name.
func LoadLayout(name string) (grid.Layout, error) {
	file := "layouts/" + name + ".json"
	if _, err := fs.Stat(dataFS, file); err != nil {
		return grid.Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	l, err := Load[grid.Layout](file)
	if err != nil {
		return grid.Layout{}, err
	}
	if l.Name == "" {
		l.Name = name
	}
	return l, nil
}

// LoadLayoutFile loads a layout from disk.
func LoadLayoutFile(p string) (grid.Layout, error) {
	l, err := LoadFile[grid.Layout](p)
	if err != nil {
		return grid.Layout{}, err
	}
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	return l, nil
}

// MustLoadLayout loads an embedded layout, panicking on error.
func MustLoadLayout(name string) grid.Layout {
	l, err := LoadLayout(name)
	if err != nil {
		panic(err)
	}
	return l
}
