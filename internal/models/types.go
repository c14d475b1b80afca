package models

// JSON field names below mirror the legacy data files (codici_seriali.json,
// database.json) so existing deployments keep their history when upgrading.

// TimeLayout is the timestamp format stored in code records.
const TimeLayout = "02/01/2006 15:04"

// DateLayout is the short date shown on reports.
const DateLayout = "02/01/2006"

// Item is one flattened questionnaire item: the prompt, the scale it
// contributes to, and whether the raw answer is reverse-scored.
type Item struct {
	Scale   string `json:"scala"`
	Text    string `json:"text"`
	Reverse bool   `json:"reverse"`
}

// CodeRecord is the stored redemption state for one serial code.
// Once Used is true the record is frozen except for the one-time
// attachment of Report/Detail at session completion.
type CodeRecord struct {
	Used       bool                   `json:"used"`
	Email      string                 `json:"email"`
	Name       string                 `json:"nome"`
	RedeemedAt string                 `json:"data"` // empty until redemption
	Detail     []AnswerDetail         `json:"risposte_dettaglio,omitempty"`
	Report     map[string]ScaleReport `json:"report,omitempty"`
}

// ScaleReport is the scored outcome for a single scale.
type ScaleReport struct {
	RawScore   int `json:"punteggio_grezzo"`
	Percentile int `json:"percentile"`
	Stanine    int `json:"stanina"`
}

// AnswerDetail is the per-item audit record kept for clinical review.
type AnswerDetail struct {
	Idx     int    `json:"idx"` // 1-based position in the catalog
	Text    string `json:"text"`
	Scale   string `json:"scala"`
	Answer  int    `json:"answer"`
	Score   int    `json:"punteggio"` // post-inversion value
	Reverse bool   `json:"reverse"`
}

// NormEntry is one (scale, raw score) pair in the historical corpus.
type NormEntry struct {
	Scale string `json:"scala"`
	Score int    `json:"score"`
}
