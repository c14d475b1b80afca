package services

import (
	"errors"
	"testing"
	"time"

	"go2b/internal/models"
)

var errDisk = errors.New("disk failure")

type stubNormStore struct {
	entries   []models.NormEntry
	appendErr error
}

func (s *stubNormStore) AppendScores(entries []models.NormEntry) (map[string][]int, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	s.entries = append(s.entries, entries...)
	out := map[string][]int{}
	for _, e := range entries {
		for _, have := range s.entries {
			if have.Scale == e.Scale {
				out[e.Scale] = append(out[e.Scale], have.Score)
			}
		}
	}
	return out, nil
}

func (s *stubNormStore) ListNorms() ([]models.NormEntry, error) {
	return append([]models.NormEntry(nil), s.entries...), nil
}

func newScoringFixture(norms *stubNormStore) (*ScoringService, *stubCodeStore) {
	codes := newStubCodeStore("GO2B-AAAAAA")
	codeSvc := NewCodeService(codes, "GO2B-MASTER", 6)
	svc := NewScoringService(codeSvc, norms, 6, "Desiderabilità sociale")
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC) }
	return svc, codes
}

func TestCompleteSessionFirstEverRun(t *testing.T) {
	norms := &stubNormStore{}
	svc, codes := newScoringFixture(norms)

	m := NewSessionManager()
	sess := m.Start("Mario", "mario@example.com", "GO2B-AAAAAA", false, []models.Item{
		{Scale: "A", Text: "i1"},
		{Scale: "A", Text: "i2"},
	})
	_ = sess.RecordAnswer(0, 3)
	_ = sess.RecordAnswer(1, 4)

	report, err := svc.CompleteSession(sess)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	a := report.Scales["A"]
	if a.RawScore != 7 {
		t.Fatalf("raw = %d, want 7", a.RawScore)
	}
	if a.Percentile != 0 {
		t.Fatalf("percentile = %d, want 0 (self-inclusive singleton)", a.Percentile)
	}
	if a.Stanine != 9 {
		t.Fatalf("stanine = %d, want 9", a.Stanine)
	}
	if report.Date != "14/03/2025" {
		t.Fatalf("date = %s", report.Date)
	}
	if len(norms.entries) != 1 || norms.entries[0] != (models.NormEntry{Scale: "A", Score: 7}) {
		t.Fatalf("corpus = %+v", norms.entries)
	}
	// report archived onto the code record
	rec := codes.codes["GO2B-AAAAAA"]
	if rec.Report["A"].RawScore != 7 || len(rec.Detail) != 2 {
		t.Fatalf("archived record = %+v", rec)
	}
	if rec.Detail[0].Idx != 1 || rec.Detail[1].Score != 4 {
		t.Fatalf("detail = %+v", rec.Detail)
	}
}

func TestCompleteSessionIncomplete(t *testing.T) {
	svc, _ := newScoringFixture(&stubNormStore{})
	m := NewSessionManager()
	sess := m.Start("Mario", "m@example.com", "GO2B-AAAAAA", false, twoItemCatalog())
	_ = sess.RecordAnswer(0, 3)

	_, err := svc.CompleteSession(sess)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestCompleteSessionReverseScoring(t *testing.T) {
	norms := &stubNormStore{}
	svc, _ := newScoringFixture(norms)
	m := NewSessionManager()
	sess := m.Start("Mario", "m@example.com", "GO2B-AAAAAA", false, []models.Item{
		{Scale: "A", Text: "i1", Reverse: true},
		{Scale: "A", Text: "i2"},
	})
	_ = sess.RecordAnswer(0, 2) // reversed: 7-2=5
	_ = sess.RecordAnswer(1, 5)

	report, err := svc.CompleteSession(sess)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if report.Scales["A"].RawScore != 10 {
		t.Fatalf("raw = %d, want 10", report.Scales["A"].RawScore)
	}
	if report.Detail[0].Answer != 2 || report.Detail[0].Score != 5 || !report.Detail[0].Reverse {
		t.Fatalf("detail[0] = %+v", report.Detail[0])
	}
}

func TestCompleteSessionRanksAgainstGrownCorpus(t *testing.T) {
	norms := &stubNormStore{entries: []models.NormEntry{
		{Scale: "A", Score: 2},
		{Scale: "A", Score: 4},
		{Scale: "A", Score: 6},
	}}
	svc, _ := newScoringFixture(norms)
	m := NewSessionManager()
	sess := m.Start("Mario", "m@example.com", "GO2B-AAAAAA", false, []models.Item{
		{Scale: "A", Text: "i1"},
	})
	_ = sess.RecordAnswer(0, 5)

	report, err := svc.CompleteSession(sess)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	a := report.Scales["A"]
	// population after append: [2 4 5 6]; 2 of 4 strictly below 5
	if a.Percentile != 50 {
		t.Fatalf("percentile = %d, want 50", a.Percentile)
	}
	// sorted position 2 -> ceil(3/4*9) = 7
	if a.Stanine != 7 {
		t.Fatalf("stanine = %d, want 7", a.Stanine)
	}
}

func TestAlertFlag(t *testing.T) {
	cases := []struct {
		name   string
		scales map[string]models.ScaleReport
		want   bool
	}{
		{"no sd scale", map[string]models.ScaleReport{"A": {Percentile: 99}}, false},
		{"sd below thresholds", map[string]models.ScaleReport{"Desiderabilità sociale": {Percentile: 84, Stanine: 7}}, false},
		{"sd percentile high", map[string]models.ScaleReport{"Desiderabilità sociale": {Percentile: 85, Stanine: 1}}, true},
		{"sd stanine high", map[string]models.ScaleReport{"Desiderabilità sociale": {Percentile: 10, Stanine: 8}}, true},
	}
	for _, c := range cases {
		if got := AlertFlag(c.scales, "Desiderabilità sociale"); got != c.want {
			t.Fatalf("%s: alert = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCompleteSessionPropagatesCorpusFailure(t *testing.T) {
	norms := &stubNormStore{appendErr: errDisk}
	svc, codes := newScoringFixture(norms)
	m := NewSessionManager()
	sess := m.Start("Mario", "m@example.com", "GO2B-AAAAAA", false, []models.Item{{Scale: "A", Text: "i1"}})
	_ = sess.RecordAnswer(0, 3)

	if _, err := svc.CompleteSession(sess); err == nil {
		t.Fatalf("corpus failure must abort scoring")
	}
	if codes.codes["GO2B-AAAAAA"].Report != nil {
		t.Fatalf("no partial report may be archived after a failed append")
	}
}
