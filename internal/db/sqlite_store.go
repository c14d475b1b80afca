// Package db provides the SQLite-backed registry and corpus for
// deployments that outgrow the JSON files. It implements the same store
// contracts as the JSON store, with single-statement claims doing the
// check-and-set atomically.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"go2b/internal/models"
	"go2b/internal/services"
)

type SQLiteStore struct {
	db *sql.DB
	// serializes multi-statement operations (batch insert, append+rank)
	mu         sync.Mutex
	masterCode string
}

var (
	_ services.CodeStore = (*SQLiteStore)(nil)
	_ services.NormStore = (*SQLiteStore)(nil)
)

func NewSQLiteStore(db *sql.DB, masterCode string) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	s := &SQLiteStore{db: db, masterCode: masterCode}
	if err := s.ensureMaster(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureMaster recreates the unused master entry if it is missing.
func (s *SQLiteStore) ensureMaster() error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO codes(code) VALUES (?)`, s.masterCode)
	if err != nil {
		return fmt.Errorf("ensure master code: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCode(code string) (*models.CodeRecord, error) {
	row := s.db.QueryRow(
		`SELECT used, email, nome, data, report, risposte_dettaglio FROM codes WHERE code = ?`, code)
	rec, err := scanCodeRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ClaimCode(code, name, email, stamp string) (services.ClaimStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE codes SET used = 1, nome = ?, email = ?, data = ? WHERE code = ? AND used = 0`,
		name, email, stamp, code)
	if err != nil {
		return 0, fmt.Errorf("claim code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("claim code: %w", err)
	}
	if n == 1 {
		return services.ClaimOK, nil
	}
	var used int
	err = s.db.QueryRow(`SELECT used FROM codes WHERE code = ?`, code).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return services.ClaimNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("claim code: %w", err)
	}
	return services.ClaimUsed, nil
}

func (s *SQLiteStore) AttachResult(code string, report map[string]models.ScaleReport, detail []models.AnswerDetail) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reportJSON, err := encodeJSON(report)
	if err != nil {
		return false, fmt.Errorf("attach result: %w", err)
	}
	detailJSON, err := encodeJSON(detail)
	if err != nil {
		return false, fmt.Errorf("attach result: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE codes SET report = ?, risposte_dettaglio = ? WHERE code = ?`,
		reportJSON, detailJSON, code)
	if err != nil {
		return false, fmt.Errorf("attach result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach result: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) InsertBatch(count int, gen func() string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	batch := make([]string, 0, count)
	for len(batch) < count {
		code := gen()
		res, err := tx.Exec(`INSERT OR IGNORE INTO codes(code) VALUES (?)`, code)
		if err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		if n == 0 {
			continue // collision with an existing code, try again
		}
		batch = append(batch, code)
	}
	if _, err := tx.Exec(`DELETE FROM last_batch`); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	for i, code := range batch {
		if _, err := tx.Exec(`INSERT INTO last_batch(pos, code) VALUES (?, ?)`, i, code); err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	return batch, nil
}

func (s *SQLiteStore) LastBatch() ([]string, error) {
	rows, err := s.db.Query(`SELECT code FROM last_batch ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("last batch: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("last batch: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListCodes() (map[string]models.CodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT code, used, email, nome, data, report, risposte_dettaglio FROM codes`)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()
	out := map[string]models.CodeRecord{}
	for rows.Next() {
		var (
			code               string
			used               int64
			rec                models.CodeRecord
			reportJS, detailJS sql.NullString
		)
		if err := rows.Scan(&code, &used, &rec.Email, &rec.Name, &rec.RedeemedAt, &reportJS, &detailJS); err != nil {
			return nil, fmt.Errorf("list codes: %w", err)
		}
		rec.Used = used != 0
		rec.Report = decodeReport(reportJS)
		rec.Detail = decodeDetail(detailJS)
		out[code] = rec
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendScores(entries []models.NormEntry) (map[string][]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("append scores: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if _, err := tx.Exec(`INSERT INTO norms(scala, score) VALUES (?, ?)`, e.Scale, e.Score); err != nil {
			return nil, fmt.Errorf("append scores: %w", err)
		}
	}
	touched := make(map[string][]int, len(entries))
	for _, e := range entries {
		if _, done := touched[e.Scale]; done {
			continue
		}
		rows, err := tx.Query(`SELECT score FROM norms WHERE scala = ? ORDER BY id`, e.Scale)
		if err != nil {
			return nil, fmt.Errorf("append scores: %w", err)
		}
		var pop []int
		for rows.Next() {
			var score int
			if err := rows.Scan(&score); err != nil {
				rows.Close()
				return nil, fmt.Errorf("append scores: %w", err)
			}
			pop = append(pop, score)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("append scores: %w", err)
		}
		rows.Close()
		touched[e.Scale] = pop
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append scores: %w", err)
	}
	return touched, nil
}

func (s *SQLiteStore) ListNorms() ([]models.NormEntry, error) {
	rows, err := s.db.Query(`SELECT scala, score FROM norms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list norms: %w", err)
	}
	defer rows.Close()
	var out []models.NormEntry
	for rows.Next() {
		var e models.NormEntry
		if err := rows.Scan(&e.Scale, &e.Score); err != nil {
			return nil, fmt.Errorf("list norms: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ImportLegacy copies the JSON-file registry, corpus and last batch into
// an empty SQLite database. Used once on first run with the sqlite driver.
func (s *SQLiteStore) ImportLegacy(codes map[string]models.CodeRecord, norms []models.NormEntry, lastBatch []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM norms`).Scan(&existing); err != nil {
		return fmt.Errorf("import legacy: %w", err)
	}
	if existing > 0 {
		return errors.New("import legacy: target database not empty")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("import legacy: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for code, rec := range codes {
		reportJS, err := encodeJSON(rec.Report)
		if err != nil {
			return fmt.Errorf("import legacy: %w", err)
		}
		detailJS, err := encodeJSON(rec.Detail)
		if err != nil {
			return fmt.Errorf("import legacy: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO codes(code, used, email, nome, data, report, risposte_dettaglio)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			code, boolToInt64(rec.Used), rec.Email, rec.Name, rec.RedeemedAt, reportJS, detailJS); err != nil {
			return fmt.Errorf("import legacy: %w", err)
		}
	}
	for _, e := range norms {
		if _, err := tx.Exec(`INSERT INTO norms(scala, score) VALUES (?, ?)`, e.Scale, e.Score); err != nil {
			return fmt.Errorf("import legacy: %w", err)
		}
	}
	for i, code := range lastBatch {
		if _, err := tx.Exec(`INSERT INTO last_batch(pos, code) VALUES (?, ?)`, i, code); err != nil {
			return fmt.Errorf("import legacy: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import legacy: %w", err)
	}
	return s.ensureMaster()
}

func scanCodeRecord(row *sql.Row) (*models.CodeRecord, error) {
	var (
		used               int64
		rec                models.CodeRecord
		reportJS, detailJS sql.NullString
	)
	if err := row.Scan(&used, &rec.Email, &rec.Name, &rec.RedeemedAt, &reportJS, &detailJS); err != nil {
		return nil, err
	}
	rec.Used = used != 0
	rec.Report = decodeReport(reportJS)
	rec.Detail = decodeDetail(detailJS)
	return &rec, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case map[string]models.ScaleReport:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case []models.AnswerDetail:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeReport(ns sql.NullString) map[string]models.ScaleReport {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var out map[string]models.ScaleReport
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		log.Printf("sqlite store: decode report: %v", err)
		return nil
	}
	return out
}

func decodeDetail(ns sql.NullString) []models.AnswerDetail {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var out []models.AnswerDetail
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		log.Printf("sqlite store: decode risposte_dettaglio: %v", err)
		return nil
	}
	return out
}
