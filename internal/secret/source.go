// Package secret resolves env: directives against values kept outside the
// configuration file.
package secret

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Source looks up secret values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// Map is a Source backed by a fixed map.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Environ is a Source backed by the process environment.
type Environ struct{}

func (Environ) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Chain consults each source in order and returns the first hit.
type Chain []Source

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// LoadDotenv reads a dotenv file into a Map. A missing file yields an empty
// Map so that lookups fail per key instead of up front.
func LoadDotenv(path string) (Map, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Map{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return Map(values), nil
}

// Default returns the dotenv file at path layered over the process
// environment.
func Default(path string) (Source, error) {
	dotenv, err := LoadDotenv(path)
	if err != nil {
		return nil, err
	}
	return Chain{dotenv, Environ{}}, nil
}
