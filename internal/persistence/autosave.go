package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SnapshotFn lazily produces the data to persist; it is only invoked when
// a save is actually going to happen, so callers don't pay serialization
// cost on every tick that doesn't need a save.
type SnapshotFn func() map[string]any

// AutoSaveConfig controls the throttle interval, the periodic cleanup
// cadence, and cleanup's retention window.
type AutoSaveConfig struct {
	Interval        time.Duration
	CleanupInterval time.Duration
	KeepDays        int
}

// DefaultAutoSaveConfig mirrors the original service's defaults: save at
// most once a minute, sweep old snapshots once a day, keep a week of
// history.
func DefaultAutoSaveConfig() AutoSaveConfig {
	return AutoSaveConfig{Interval: 60 * time.Second, CleanupInterval: 24 * time.Hour, KeepDays: 7}
}

// AutoSaveService throttles and deduplicates periodic snapshot saves.
// Background saves for the same strategy are coalesced with
// golang.org/x/sync/singleflight rather than queued: a tick that arrives
// while a save is already in flight joins that save instead of starting a
// second one, which is this codebase's equivalent of the single-worker,
// drop-if-busy behavior a one-slot job queue gives you.
type AutoSaveService struct {
	repository   *FileRepository
	strategyName string
	serializer   *Serializer
	config       AutoSaveConfig
	logger       *log.Logger

	mu              sync.Mutex
	lastSaveTime    time.Time
	lastDigest      string
	lastCleanupTime time.Time
	pending         <-chan singleflight.Result

	sf singleflight.Group
	wg sync.WaitGroup
}

// NewAutoSaveService constructs an AutoSaveService. A zero-valued config
// field falls back to DefaultAutoSaveConfig's value for that field; a nil
// logger falls back to log.Default().
func NewAutoSaveService(repository *FileRepository, strategyName string, serializer *Serializer, config AutoSaveConfig, logger *log.Logger) *AutoSaveService {
	if repository == nil || serializer == nil {
		panic("persistence: NewAutoSaveService requires a non-nil repository and serializer")
	}
	defaults := DefaultAutoSaveConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.KeepDays <= 0 {
		config.KeepDays = defaults.KeepDays
	}
	if logger == nil {
		logger = log.Default()
	}

	now := time.Now()
	return &AutoSaveService{
		repository:      repository,
		strategyName:    strategyName,
		serializer:      serializer,
		config:          config,
		logger:          logger,
		lastCleanupTime: now,
	}
}

// MaybeSave saves only once Interval has elapsed since the last save
// attempt (successful or skipped); it is meant to be called on every tick
// of a hot loop without itself being the bottleneck.
func (a *AutoSaveService) MaybeSave(snapshotFn SnapshotFn) {
	a.mu.Lock()
	elapsed := time.Since(a.lastSaveTime)
	a.mu.Unlock()

	if elapsed < a.config.Interval {
		return
	}
	a.doSave(snapshotFn)
}

// ForceSave waits up to 30 seconds for any in-flight background save to
// finish (or for ctx to be done, whichever comes first), then saves
// synchronously regardless of whether the snapshot's digest has changed.
// Intended for a shutdown path, where the final state must be captured
// even if nothing looks different from the last periodic save.
func (a *AutoSaveService) ForceSave(ctx context.Context, snapshotFn SnapshotFn) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		a.logger.Printf("persistence: timed out waiting for pending save [%s]", a.strategyName)
	case <-ctx.Done():
	}

	data := snapshotFn()
	if err := a.repository.Save(a.strategyName, data); err != nil {
		a.logger.Printf("persistence: force save failed [%s]: %v", a.strategyName, err)
		return err
	}
	a.logger.Printf("persistence: force save complete [%s]", a.strategyName)
	return nil
}

// Reset restarts the throttle window without performing a save.
func (a *AutoSaveService) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSaveTime = time.Now()
}

// Shutdown waits for any in-flight background save to finish, bounded by
// ctx. See DESIGN.md Open Question 3 for why this takes a context rather
// than blocking unconditionally.
func (a *AutoSaveService) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Printf("persistence: shutdown context done before pending saves finished [%s]", a.strategyName)
	}
}

func (a *AutoSaveService) doSave(snapshotFn SnapshotFn) {
	data := snapshotFn()
	jsonStr, err := a.serializer.Serialize(data)
	if err != nil {
		a.logger.Printf("persistence: auto save failed [%s]: %v", a.strategyName, err)
		return
	}
	digest := computeDigest(jsonStr)

	a.mu.Lock()
	if a.lastDigest != "" && digest == a.lastDigest {
		a.lastSaveTime = time.Now()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	ch := a.sf.DoChan(a.strategyName, func() (any, error) {
		err := a.repository.SaveRaw(a.strategyName, jsonStr)
		if err == nil {
			a.maybeCleanup()
		}
		return nil, err
	})

	a.mu.Lock()
	a.lastDigest = digest
	a.lastSaveTime = time.Now()
	a.pending = ch
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		result := <-ch
		if result.Err != nil {
			a.logger.Printf("persistence: background save failed [%s]: %v", a.strategyName, result.Err)
		}
	}()
}

func (a *AutoSaveService) maybeCleanup() {
	a.mu.Lock()
	elapsed := time.Since(a.lastCleanupTime)
	a.mu.Unlock()

	if elapsed < a.config.CleanupInterval {
		return
	}

	deleted, err := a.repository.Cleanup(a.strategyName, a.config.KeepDays)
	if err != nil {
		a.logger.Printf("persistence: cleanup failed [%s]: %v", a.strategyName, err)
		return
	}

	a.mu.Lock()
	a.lastCleanupTime = time.Now()
	a.mu.Unlock()
	a.logger.Printf("persistence: cleanup complete, removed %d old snapshots [%s]", deleted, a.strategyName)
}

// computeDigest hashes the serialized snapshot with SHA-256: since
// Serializer always produces the same bytes for the same logical state
// (encoding/json's alphabetical map-key ordering plays the same role the
// source's sort_keys=True does), equal states hash equal and back-to-back
// identical saves are skipped.
func computeDigest(jsonStr string) string {
	sum := sha256.Sum256([]byte(jsonStr))
	return hex.EncodeToString(sum[:])
}
