package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/parlatext/parlatext/pkg/types"
)

// Storage keys for the three pieces of persisted client state
const (
	recordsKey  = "stored_jobs"
	snapshotKey = "jobs_cache"
	promptedKey = "notification_prompted"
)

// Store is the durable local registry of job credentials plus the tracker's
// cache snapshot and the notification prompted flag.
//
// Every mutation re-reads the persisted record set immediately before
// writing (read-modify-write) and mutations are serialized, so an Add racing
// a RemoveInvalid computed from a stale snapshot can neither resurrect a
// pruned record nor delete one the concurrent Add just created.
type Store struct {
	mu sync.Mutex
	kv KV
}

// New creates a Store over the given persistence backend
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// loadRecords reads the current persisted record set. Callers must hold mu.
func (s *Store) loadRecords() ([]types.StoredJobRecord, error) {
	raw, ok, err := s.kv.Get(recordsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var records []types.StoredJobRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode stored jobs: %w", err)
	}
	return records, nil
}

func (s *Store) saveRecords(records []types.StoredJobRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode stored jobs: %w", err)
	}
	return s.kv.Put(recordsKey, raw)
}

// Add inserts a record at the head (most-recent-first order is part of the
// contract; callers render the list in this order). Adding an already
// present job_id is a no-op and does not move the record.
func (s *Store) Add(record types.StoredJobRecord) error {
	if record.JobID == "" {
		return fmt.Errorf("job_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.JobID == record.JobID {
			return nil
		}
	}
	return s.saveRecords(append([]types.StoredJobRecord{record}, records...))
}

// Remove deletes one record; no-op if absent
func (s *Store) Remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, record := range records {
		if record.JobID != jobID {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.saveRecords(kept)
}

// RemoveInvalid bulk-deletes records whose ids the server no longer knows.
// Silent by design: expiry of a tracked job is a normal lifecycle event,
// not an error to report.
func (s *Store) RemoveInvalid(ids map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, record := range records {
		if _, gone := ids[record.JobID]; !gone {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.saveRecords(kept)
}

// Clear removes all records
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(recordsKey)
}

// List returns all records, most recent first
func (s *Store) List() ([]types.StoredJobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRecords()
}

// Tokens returns the access tokens of all records, most recent first
func (s *Store) Tokens() ([]string, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(records))
	for i, record := range records {
		tokens[i] = record.AccessToken
	}
	return tokens, nil
}

// SaveSnapshot persists the last successfully fetched job list for offline
// fallback.
func (s *Store) SaveSnapshot(jobs []types.Job) error {
	raw, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Put(snapshotKey, raw)
}

// LoadSnapshot returns the cached job list and whether one exists
func (s *Store) LoadSnapshot() ([]types.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(snapshotKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var jobs []types.Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return jobs, true, nil
}

// MarkPrompted records that the user has been shown the notification
// permission prompt, so it is never shown twice.
func (s *Store) MarkPrompted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Put(promptedKey, []byte("true"))
}

// WasPrompted reports whether the permission prompt has been shown before
func (s *Store) WasPrompted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(promptedKey)
	if err != nil || !ok {
		return false, err
	}
	return string(raw) == "true", nil
}
