package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
	"xorkevin.dev/kerrors"
)

const (
	// DefaultAlias is the database alias used when neither the caller nor the
	// manifest names one
	DefaultAlias = "src"
	// DefaultManifest is the manifest file name
	DefaultManifest = "manifest.yml"
)

var (
	// ErrInvalidConfig is returned when the manifest is missing or malformed
	ErrInvalidConfig errInvalidConfig
	// ErrUnknownAlias is returned when a database alias is not in the manifest
	ErrUnknownAlias errUnknownAlias
)

type (
	errInvalidConfig struct{}
	errUnknownAlias  struct{}
)

func (e errInvalidConfig) Error() string {
	return "Invalid config"
}

func (e errUnknownAlias) Error() string {
	return "Unknown database alias"
}

type (
	// Database is a database connection entry
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	}

	// Manifest is the project database manifest
	Manifest struct {
		Default   string              `yaml:"default"`
		Databases map[string]Database `yaml:"databases"`
	}
)

// ReadManifest reads and validates the manifest name from fsys. Database dsns
// are expanded with [ExpandEnv] using lookup, or [os.LookupEnv] if nil.
func ReadManifest(fsys fs.FS, name string, lookup LookupFunc) (*Manifest, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kerrors.WithKind(err, ErrInvalidConfig, fmt.Sprintf("Manifest %s not found. Create one with a databases section, see the ibu docs.", name))
		}
		return nil, kerrors.WithMsg(err, fmt.Sprintf("Failed to read manifest %s", name))
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, kerrors.WithKind(err, ErrInvalidConfig, fmt.Sprintf("Invalid manifest %s", name))
	}
	for k, v := range m.Databases {
		dsn, err := ExpandEnv(v.DSN, lookup)
		if err != nil {
			return nil, kerrors.WithMsg(err, fmt.Sprintf("Invalid dsn for database %s", k))
		}
		v.DSN = dsn
		m.Databases[k] = v
	}
	if err := m.validate(); err != nil {
		return nil, kerrors.WithMsg(err, fmt.Sprintf("Invalid manifest %s", name))
	}
	return m, nil
}

func (m *Manifest) validate() error {
	if len(m.Databases) == 0 {
		return kerrors.WithKind(nil, ErrInvalidConfig, "No databases defined")
	}
	for _, k := range slices.Sorted(maps.Keys(m.Databases)) {
		v := m.Databases[k]
		if v.Driver == "" {
			return kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Database %s has no driver", k))
		}
		if v.DSN == "" {
			return kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Database %s has no dsn", k))
		}
	}
	if m.Default != "" {
		if _, ok := m.Databases[m.Default]; !ok {
			return kerrors.WithKind(nil, ErrUnknownAlias, fmt.Sprintf("Default database %s is not defined", m.Default))
		}
	}
	return nil
}

// Database returns the entry for alias. An empty alias resolves to the
// manifest default, then [DefaultAlias].
func (m *Manifest) Database(alias string) (Database, string, error) {
	if alias == "" {
		alias = m.Default
	}
	if alias == "" {
		alias = DefaultAlias
	}
	db, ok := m.Databases[alias]
	if !ok {
		return Database{}, "", kerrors.WithKind(nil, ErrUnknownAlias, fmt.Sprintf("Database %s is not defined", alias))
	}
	return db, alias, nil
}

// Aliases returns the sorted database aliases
func (m *Manifest) Aliases() []string {
	return slices.Sorted(maps.Keys(m.Databases))
}
