// Package store persists the code registry, the historical corpus, and the
// last generated batch as JSON files, in the same layout the legacy
// deployment used. Every mutation is flushed to disk before it returns.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"go2b/internal/models"
	"go2b/internal/services"
)

// JSONStore is a file-backed implementation of the code registry and the
// norm corpus. One mutex serializes every state-changing operation, which
// gives the check-and-claim and append-then-rank their atomicity.
type JSONStore struct {
	mu sync.Mutex

	codesPath string
	normsPath string
	batchPath string

	masterCode string

	codes     map[string]*models.CodeRecord
	norms     []models.NormEntry
	lastBatch []string
}

var (
	_ services.CodeStore = (*JSONStore)(nil)
	_ services.NormStore = (*JSONStore)(nil)
)

// Open loads (or initializes) the three data files. A missing registry
// starts out holding only the unused master-code entry.
func Open(codesPath, normsPath, batchPath, masterCode string) (*JSONStore, error) {
	s := &JSONStore{
		codesPath:  codesPath,
		normsPath:  normsPath,
		batchPath:  batchPath,
		masterCode: masterCode,
		codes:      map[string]*models.CodeRecord{},
	}
	if err := readJSONFile(codesPath, &s.codes); err != nil {
		return nil, err
	}
	if s.codes == nil {
		s.codes = map[string]*models.CodeRecord{}
	}
	if _, ok := s.codes[masterCode]; !ok {
		s.codes[masterCode] = &models.CodeRecord{}
	}
	if err := readJSONFile(normsPath, &s.norms); err != nil {
		return nil, err
	}
	if err := readJSONFile(batchPath, &s.lastBatch); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) GetCode(code string) (*models.CodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *JSONStore) ClaimCode(code, name, email, stamp string) (services.ClaimStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.codes[code]
	if !ok {
		return services.ClaimNotFound, nil
	}
	if rec.Used {
		return services.ClaimUsed, nil
	}
	prev := *rec
	rec.Used = true
	rec.Name = name
	rec.Email = email
	rec.RedeemedAt = stamp
	if err := s.persistCodes(); err != nil {
		*rec = prev
		return 0, err
	}
	return services.ClaimOK, nil
}

func (s *JSONStore) AttachResult(code string, report map[string]models.ScaleReport, detail []models.AnswerDetail) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.codes[code]
	if !ok {
		return false, nil
	}
	prevReport, prevDetail := rec.Report, rec.Detail
	rec.Report = report
	rec.Detail = detail
	if err := s.persistCodes(); err != nil {
		rec.Report, rec.Detail = prevReport, prevDetail
		return false, err
	}
	return true, nil
}

func (s *JSONStore) InsertBatch(count int, gen func() string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]string, 0, count)
	for len(batch) < count {
		code := gen()
		if _, exists := s.codes[code]; exists {
			continue
		}
		s.codes[code] = &models.CodeRecord{}
		batch = append(batch, code)
	}
	if err := s.persistCodes(); err != nil {
		for _, code := range batch {
			delete(s.codes, code)
		}
		return nil, err
	}
	prevBatch := s.lastBatch
	s.lastBatch = batch
	if err := writeJSONFile(s.batchPath, s.lastBatch); err != nil {
		s.lastBatch = prevBatch
		return nil, err
	}
	return append([]string(nil), batch...), nil
}

func (s *JSONStore) LastBatch() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastBatch...), nil
}

func (s *JSONStore) ListCodes() (map[string]models.CodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.CodeRecord, len(s.codes))
	for k, v := range s.codes {
		out[k] = *v
	}
	return out, nil
}

func (s *JSONStore) AppendScores(entries []models.NormEntry) (map[string][]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevLen := len(s.norms)
	s.norms = append(s.norms, entries...)
	if err := writeJSONFile(s.normsPath, s.norms); err != nil {
		s.norms = s.norms[:prevLen]
		return nil, err
	}
	touched := make(map[string][]int, len(entries))
	for _, e := range entries {
		touched[e.Scale] = nil
	}
	for _, e := range s.norms {
		if _, ok := touched[e.Scale]; ok {
			touched[e.Scale] = append(touched[e.Scale], e.Score)
		}
	}
	return touched, nil
}

func (s *JSONStore) ListNorms() ([]models.NormEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NormEntry(nil), s.norms...), nil
}

// persistCodes writes the registry, recreating the unused master entry
// first if something removed it. Caller holds the lock.
func (s *JSONStore) persistCodes() error {
	if _, ok := s.codes[s.masterCode]; !ok {
		s.codes[s.masterCode] = &models.CodeRecord{}
	}
	return writeJSONFile(s.codesPath, s.codes)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSONFile writes via temp file, fsync and rename so a crash can
// never leave a half-written data file behind.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
