package leveldata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
)

// Load reads and unmarshals a JSON file from the embedded filesystem.
func Load[T any](filename string) (T, error) {
	return LoadFS[T](dataFS, filename)
}

// LoadFS reads and strictly unmarshals a JSON file from fsys. Unknown
// fields are rejected so typos in authored data surface early.
func LoadFS[T any](fsys fs.FS, filename string) (T, error) {
	var result T

	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return decode[T](filename, content)
}

// LoadFile reads and strictly unmarshals a JSON file from disk.
func LoadFile[T any](path string) (T, error) {
	var result T

	content, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decode[T](path, content)
}

func decode[T any](name string, content []byte) (T, error) {
	var result T

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("failed to parse JSON from %s: %w", name, err)
	}
	return result, nil
}

// MustLoad reads and unmarshals an embedded JSON file, panicking on error.
// Use this for data that must be present for the tools to function.
func MustLoad[T any](filename string) T {
	result, err := Load[T](filename)
	if err != nil {
		panic(err)
	}
	return result
}
