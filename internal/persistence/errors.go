package persistence

import "errors"

// ErrArchiveNotFound is returned by FileRepository.Load when no snapshot
// has ever been saved for the requested strategy name.
var ErrArchiveNotFound = errors.New("no archived state for strategy")

// CorruptionError wraps a deserialize failure on an existing, readable
// record: the record is present but its JSON could not be parsed or
// migrated, which is a distinct failure mode from "never saved".
type CorruptionError struct {
	StrategyName string
	Err          error
}

func (e *CorruptionError) Error() string {
	return "corrupted snapshot for " + e.StrategyName + ": " + e.Err.Error()
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
