package persistence

import "fmt"

// MigrationFn upgrades a snapshot by exactly one schema version.
type MigrationFn func(map[string]any) (map[string]any, error)

// MigrationChain composes single-version MigrationFns into a multi-version
// upgrade path. Each function is registered once and never modified after
// registration, so older snapshots stay readable indefinitely.
type MigrationChain struct {
	migrations map[int]MigrationFn
}

// NewMigrationChain constructs an empty chain.
func NewMigrationChain() *MigrationChain {
	return &MigrationChain{migrations: make(map[int]MigrationFn)}
}

// Register binds the upgrade from fromVersion to fromVersion+1. Attempting
// to register a version twice is an error: migrations are append-only.
func (c *MigrationChain) Register(fromVersion int, fn MigrationFn) error {
	if _, exists := c.migrations[fromVersion]; exists {
		return fmt.Errorf("migration from version %d already registered", fromVersion)
	}
	c.migrations[fromVersion] = fn
	return nil
}

// Migrate runs every registered step from fromVersion up to toVersion in
// order. fromVersion >= toVersion is a no-op. A missing intermediate step
// is an error rather than a silent skip.
func (c *MigrationChain) Migrate(data map[string]any, fromVersion, toVersion int) (map[string]any, error) {
	if fromVersion >= toVersion {
		return data, nil
	}

	result := data
	for version := fromVersion; version < toVersion; version++ {
		fn, ok := c.migrations[version]
		if !ok {
			return nil, fmt.Errorf("missing migration from version %d to %d", version, version+1)
		}
		migrated, err := fn(result)
		if err != nil {
			return nil, fmt.Errorf("migrating from version %d: %w", version, err)
		}
		result = migrated
	}

	return result, nil
}
