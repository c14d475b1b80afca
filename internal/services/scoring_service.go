package services

import (
	"time"

	"go2b/internal/models"
)

// NormStore is the durable historical corpus: an append-only multiset of
// (scale, raw score) pairs across every completed session.
type NormStore interface {
	// AppendScores appends the entries, persists, and returns the per-scale
	// populations for the touched scales after the append. Append and
	// read-back are one atomic unit relative to other completions, which is
	// what makes self-inclusive ranking safe under concurrency.
	AppendScores(entries []models.NormEntry) (map[string][]int, error)
	ListNorms() ([]models.NormEntry, error)
}

// Report is the scored outcome of one completed session.
type Report struct {
	Name   string                        `json:"nome"`
	Email  string                        `json:"email"`
	Code   string                        `json:"seriale"`
	Date   string                        `json:"data_test"`
	Scales map[string]models.ScaleReport `json:"report"`
	Alert  bool                          `json:"alert"`
	Detail []models.AnswerDetail         `json:"risposte_dettaglio"`
}

type ScoringService struct {
	codes   *CodeService
	norms   NormStore
	points  int
	sdScale string
	now     func() time.Time
}

// NewScoringService wires the engine to the historical corpus and the code
// registry. points is the Likert maximum; sdScale names the
// social-desirability scale checked for the validity alert.
func NewScoringService(codes *CodeService, norms NormStore, points int, sdScale string) *ScoringService {
	return &ScoringService{
		codes:   codes,
		norms:   norms,
		points:  points,
		sdScale: sdScale,
		now:     func() time.Time { return time.Now() },
	}
}

// CompleteSession scores a finished session. The session's own raw scores
// join the corpus first and the ranking is computed against the population
// including them; stored reports are snapshots and are never recomputed as
// the corpus keeps growing.
func (s *ScoringService) CompleteSession(sess *Session) (*Report, error) {
	if !sess.Complete() {
		return nil, NewInvalidError("session incomplete")
	}

	sums := RawScores(sess.Items, sess.Answers, s.points)
	scales := ScalesInOrder(sess.Items)
	entries := make([]models.NormEntry, 0, len(scales))
	for _, sc := range scales {
		entries = append(entries, models.NormEntry{Scale: sc, Score: sums[sc]})
	}

	populations, err := s.norms.AppendScores(entries)
	if err != nil {
		return nil, err
	}

	scaleReports := make(map[string]models.ScaleReport, len(scales))
	for _, sc := range scales {
		raw := sums[sc]
		pop := populations[sc]
		scaleReports[sc] = models.ScaleReport{
			RawScore:   raw,
			Percentile: Percentile(pop, raw),
			Stanine:    Stanine(pop, raw),
		}
	}

	detail := BuildDetail(sess.Items, sess.Answers, s.points)

	report := &Report{
		Name:   sess.Name,
		Email:  sess.Email,
		Code:   sess.Code,
		Date:   s.now().Format(models.DateLayout),
		Scales: scaleReports,
		Alert:  AlertFlag(scaleReports, s.sdScale),
		Detail: detail,
	}

	if err := s.codes.AttachResult(sess.Code, scaleReports, detail); err != nil {
		return nil, err
	}
	return report, nil
}

// AlertFlag signals a possible validity-of-responding problem: the
// social-desirability score sits unusually high in the population. It is a
// review hint for the clinician, not an error.
func AlertFlag(scales map[string]models.ScaleReport, sdScale string) bool {
	sd, ok := scales[sdScale]
	if !ok {
		return false
	}
	return sd.Percentile >= 85 || sd.Stanine >= 8
}
