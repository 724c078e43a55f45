package persistence

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// compressionPrefix marks a stored record's payload as zlib-compressed,
// base64-encoded JSON rather than raw JSON.
const compressionPrefix = "ZLIB:"

// DefaultCompressionThreshold is the byte size above which SaveRaw
// attempts compression; below it, compression overhead isn't worth
// paying.
const DefaultCompressionThreshold = 10 * 1024

// record is one line of a strategy's append-only snapshot file.
type record struct {
	StrategyName  string    `json:"strategy_name"`
	Payload       string    `json:"payload"`
	Compressed    bool      `json:"compressed"`
	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
}

// FileRepository is StateRepository adapted to local disk: one append-only
// JSON-lines file per strategy name, written with the same
// temp-file-then-rename-then-fsync durability idiom the rest of this
// codebase's storage layer uses, wrapped in a circuit breaker so a run of
// disk failures fails fast instead of stalling every save attempt.
type FileRepository struct {
	dir                   string
	serializer            *Serializer
	logger                *log.Logger
	compressionThreshold  int
	mu                    sync.Mutex
	breaker               *gobreaker.CircuitBreaker
}

// NewFileRepository creates a repository rooted at dir, creating it if
// necessary. A nil logger falls back to log.Default(). compressionThreshold
// <= 0 selects DefaultCompressionThreshold.
func NewFileRepository(dir string, serializer *Serializer, logger *log.Logger, compressionThreshold int) (*FileRepository, error) {
	if serializer == nil {
		panic("persistence: NewFileRepository requires a non-nil serializer")
	}
	if logger == nil {
		logger = log.Default()
	}
	if compressionThreshold <= 0 {
		compressionThreshold = DefaultCompressionThreshold
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating persistence directory: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "persistence.file_repository",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &FileRepository{
		dir:                  dir,
		serializer:           serializer,
		logger:               logger,
		compressionThreshold: compressionThreshold,
		breaker:              breaker,
	}, nil
}

func (r *FileRepository) pathFor(strategyName string) string {
	return filepath.Join(r.dir, strategyName+".jsonl")
}

// Save serializes data and appends it.
func (r *FileRepository) Save(strategyName string, data map[string]any) error {
	jsonStr, err := r.serializer.Serialize(data)
	if err != nil {
		return err
	}
	return r.SaveRaw(strategyName, jsonStr)
}

// SaveRaw appends an already-serialized JSON string, compressing it first
// when it exceeds the configured threshold and compression actually makes
// it smaller.
func (r *FileRepository) SaveRaw(strategyName, jsonStr string) error {
	_, err := r.breaker.Execute(func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		payload, compressed := r.maybeCompress(jsonStr)
		rec := record{
			StrategyName:  strategyName,
			Payload:       payload,
			Compressed:    compressed,
			SchemaVersion: CurrentSchemaVersion,
			SavedAt:       time.Now().UTC(),
		}

		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding record: %w", err)
		}

		f, err := os.OpenFile(r.pathFor(strategyName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.Write(append(line, '\n')); err != nil {
			return nil, fmt.Errorf("appending snapshot: %w", err)
		}
		if err := f.Sync(); err != nil {
			return nil, fmt.Errorf("syncing snapshot file: %w", err)
		}

		r.logger.Printf("persistence: state saved for %s", strategyName)
		return nil, nil
	})
	return err
}

// Load returns the most recently saved snapshot for strategyName.
// ErrArchiveNotFound if nothing was ever saved; *CorruptionError if a
// record exists but fails to deserialize.
func (r *FileRepository) Load(strategyName string) (map[string]any, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		records, err := r.readRecords(strategyName)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrArchiveNotFound
		}

		latest := records[len(records)-1]
		raw, err := r.maybeDecompress(latest)
		if err != nil {
			return nil, &CorruptionError{StrategyName: strategyName, Err: err}
		}

		data, err := r.serializer.Deserialize(raw)
		if err != nil {
			return nil, &CorruptionError{StrategyName: strategyName, Err: err}
		}

		r.logger.Printf("persistence: state loaded for %s", strategyName)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// VerifyIntegrity reports whether the latest record for strategyName
// parses as JSON and carries a schema_version field.
func (r *FileRepository) VerifyIntegrity(strategyName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readRecords(strategyName)
	if err != nil || len(records) == 0 {
		return false
	}

	raw, err := r.maybeDecompress(records[len(records)-1])
	if err != nil {
		return false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return false
	}
	_, ok := parsed["schema_version"]
	return ok
}

// Cleanup drops records older than keepDays, rewriting the strategy's file
// atomically (temp file + fsync + rename) so a crash mid-cleanup never
// leaves a truncated or missing file. Returns the number of records
// removed.
func (r *FileRepository) Cleanup(strategyName string, keepDays int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readRecords(strategyName)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)
	kept := make([]record, 0, len(records))
	removed := 0
	for _, rec := range records {
		if rec.SavedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}

	if removed == 0 {
		return 0, nil
	}

	if err := r.atomicRewrite(strategyName, kept); err != nil {
		return 0, err
	}

	r.logger.Printf("persistence: cleaned up %d old snapshots for %s", removed, strategyName)
	return removed, nil
}

func (r *FileRepository) readRecords(strategyName string) ([]record, error) {
	f, err := os.Open(r.pathFor(strategyName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing snapshot record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *FileRepository) atomicRewrite(strategyName string, records []record) error {
	target := r.pathFor(strategyName)
	dir := filepath.Dir(target)

	f, err := os.CreateTemp(dir, ".persistence-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmpName)
	}()

	if err := f.Chmod(0o600); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("renaming compacted snapshot file: %w", err)
	}
	tmpName = ""

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}

func (r *FileRepository) maybeCompress(jsonStr string) (string, bool) {
	raw := []byte(jsonStr)
	if len(raw) <= r.compressionThreshold {
		return jsonStr, false
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return jsonStr, false
	}
	if err := zw.Close(); err != nil {
		return jsonStr, false
	}

	if buf.Len() >= len(raw) {
		return jsonStr, false
	}

	return compressionPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

func (r *FileRepository) maybeDecompress(rec record) (string, error) {
	if !rec.Compressed && !strings.HasPrefix(rec.Payload, compressionPrefix) {
		return rec.Payload, nil
	}

	encoded := strings.TrimPrefix(rec.Payload, compressionPrefix)
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding compressed payload: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("opening compressed payload: %w", err)
	}
	defer func() { _ = zr.Close() }()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompressing payload: %w", err)
	}
	return string(raw), nil
}
