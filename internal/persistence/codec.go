// Package persistence implements versioned, optionally-compressed JSON
// snapshot storage: a tagged-union codec for the handful of types plain
// encoding/json cannot round-trip on its own, a migration chain for
// upgrading older snapshots, a file-backed state repository, and a
// single-worker auto-save service that throttles and deduplicates saves.
package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CurrentSchemaVersion is injected into every snapshot Serialize produces
// and compared against on Deserialize to decide whether migration runs.
const CurrentSchemaVersion = 1

// DataFrame is the tagged-union wire representation of a tabular result
// set: a list of column→value rows. Rather than a positional-column
// DataFrame type (no idiomatic Go analogue and no library in the corpus
// models one), the row-of-maps shape is carried straight through from
// SPEC_FULL.md's domain-stack decision.
type DataFrame []map[string]any

// MarshalJSON wraps the records in the "__dataframe__" tag the original
// snapshot format uses, so archives written by either implementation
// round-trip.
func (d DataFrame) MarshalJSON() ([]byte, error) {
	records := []map[string]any(d)
	if records == nil {
		records = []map[string]any{}
	}
	return json.Marshal(map[string]any{"__dataframe__": true, "records": records})
}

// UnmarshalJSON accepts either the tagged {"__dataframe__":true,"records":
// [...]} shape or a bare array, for forward compatibility with callers
// that already unwrapped the tag.
func (d *DataFrame) UnmarshalJSON(b []byte) error {
	var tagged struct {
		DataFrame bool             `json:"__dataframe__"`
		Records   []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(b, &tagged); err == nil && tagged.DataFrame {
		*d = tagged.Records
		return nil
	}
	var bare []map[string]any
	if err := json.Unmarshal(b, &bare); err != nil {
		return err
	}
	*d = bare
	return nil
}

// StringSet is the tagged-union wire representation of a set: a
// deterministically-sorted list of its members, since JSON has no native
// set type.
type StringSet []string

// MarshalJSON sorts the set's members before tagging, matching the
// original format's stable ordering requirement.
func (s StringSet) MarshalJSON() ([]byte, error) {
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	if sorted == nil {
		sorted = []string{}
	}
	return json.Marshal(map[string]any{"__set__": true, "values": sorted})
}

// UnmarshalJSON reads the tagged shape.
func (s *StringSet) UnmarshalJSON(b []byte) error {
	var tagged struct {
		Set    bool     `json:"__set__"`
		Values []string `json:"values"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	*s = tagged.Values
	return nil
}

// DateTime is a time.Time tagged on the wire as {"__datetime__": <RFC3339>}
// rather than a bare string, matching snapshots produced by the original
// datetime-tagging encoder.
type DateTime time.Time

// MarshalJSON emits the "__datetime__" tag.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"__datetime__": time.Time(d).Format(time.RFC3339Nano)})
}

// UnmarshalJSON reads the "__datetime__" tag.
func (d *DateTime) UnmarshalJSON(b []byte) error {
	var tagged struct {
		DateTime string `json:"__datetime__"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, tagged.DateTime)
	if err != nil {
		return err
	}
	*d = DateTime(t)
	return nil
}

// Date is a calendar date tagged on the wire as {"__date__": <YYYY-MM-DD>}.
type Date time.Time

const dateLayout = "2006-01-02"

// MarshalJSON emits the "__date__" tag.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"__date__": time.Time(d).Format(dateLayout)})
}

// UnmarshalJSON reads the "__date__" tag.
func (d *Date) UnmarshalJSON(b []byte) error {
	var tagged struct {
		Date string `json:"__date__"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, tagged.Date)
	if err != nil {
		return err
	}
	*d = Date(t)
	return nil
}

// Serializer turns a free-form snapshot payload into a JSON string carrying
// a schema_version field, and back, running the migration chain when an
// older version is read.
type Serializer struct {
	migrations *MigrationChain
}

// NewSerializer binds a Serializer to one migration chain. A nil chain is
// valid for callers that never need to read old snapshots.
func NewSerializer(migrations *MigrationChain) *Serializer {
	return &Serializer{migrations: migrations}
}

// Serialize injects schema_version and marshals the payload.
// encoding/json sorts map[string]any keys alphabetically on its own, which
// gives the stable ordering the teacher's snapshot format requires without
// any extra bookkeeping.
func (s *Serializer) Serialize(data map[string]any) (string, error) {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["schema_version"] = CurrentSchemaVersion

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing snapshot: %w", err)
	}
	return string(b), nil
}

// Deserialize parses the JSON string and migrates it up to
// CurrentSchemaVersion when its recorded version is older.
func (s *Serializer) Deserialize(jsonStr string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	version := CurrentSchemaVersion
	if v, ok := data["schema_version"].(float64); ok {
		version = int(v)
	}

	if version < CurrentSchemaVersion {
		if s.migrations == nil {
			return nil, fmt.Errorf("snapshot at version %d needs migration but no migration chain is configured", version)
		}
		migrated, err := s.migrations.Migrate(data, version, CurrentSchemaVersion)
		if err != nil {
			return nil, err
		}
		migrated["schema_version"] = CurrentSchemaVersion
		data = migrated
	}

	return data, nil
}
