package services

import (
	"log"
	"math/rand"
	"strings"
	"time"

	"go2b/internal/models"
)

// ClaimStatus is the outcome of an atomic check-and-claim on one code.
type ClaimStatus int

const (
	ClaimOK ClaimStatus = iota
	ClaimNotFound
	ClaimUsed
)

// CodeStore is the durable registry of serial codes. Every mutating method
// must persist before returning and must be atomic with respect to the
// other mutating methods.
type CodeStore interface {
	GetCode(code string) (*models.CodeRecord, error)
	// ClaimCode marks an unused code as redeemed by (name, email) at stamp.
	// The existence check and the claim are one atomic unit: for concurrent
	// claims of the same code exactly one caller sees ClaimOK.
	ClaimCode(code, name, email, stamp string) (ClaimStatus, error)
	// AttachResult stores the report and answer detail on the code record,
	// overwriting any previous result. Returns false if the code is unknown.
	AttachResult(code string, report map[string]models.ScaleReport, detail []models.AnswerDetail) (bool, error)
	// InsertBatch inserts count new unused codes produced by gen, retrying
	// on collision with existing codes, and replaces the stored last batch.
	InsertBatch(count int, gen func() string) ([]string, error)
	LastBatch() ([]string, error)
	ListCodes() (map[string]models.CodeRecord, error)
}

// RedemptionOutcome distinguishes a normal single-use redemption from
// master-code access, which never consumes anything.
type RedemptionOutcome int

const (
	OutcomeRedeemed RedemptionOutcome = iota
	OutcomeMaster
)

type CodeService struct {
	store      CodeStore
	masterCode string
	codeLength int
	now        func() time.Time
}

func NewCodeService(store CodeStore, masterCode string, codeLength int) *CodeService {
	return &CodeService{
		store:      store,
		masterCode: masterCode,
		codeLength: codeLength,
		now:        func() time.Time { return time.Now() },
	}
}

// Redeem consumes a serial code for (name, email). The master code always
// succeeds and is never marked used, so it stays repeatable for
// administrative runs.
func (s *CodeService) Redeem(code, name, email string) (RedemptionOutcome, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if code == "" {
		return 0, NewInvalidError("code required")
	}
	if code == s.masterCode {
		return OutcomeMaster, nil
	}
	if name == "" || email == "" {
		return 0, NewInvalidError("name and email required")
	}
	status, err := s.store.ClaimCode(code, name, email, s.now().Format(models.TimeLayout))
	if err != nil {
		return 0, err
	}
	switch status {
	case ClaimNotFound:
		return 0, NewNotFoundError("unknown code")
	case ClaimUsed:
		return 0, NewConflictError("code already used")
	}
	return OutcomeRedeemed, nil
}

// AttachResult writes the scored report back onto the originating code
// record, last write wins. A missing record can legitimately happen for a
// master code in a misconfigured store; that is logged, not fatal.
func (s *CodeService) AttachResult(code string, report map[string]models.ScaleReport, detail []models.AnswerDetail) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	ok, err := s.store.AttachResult(code, report, detail)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("attach result: code %s not in registry, result dropped", code)
	}
	return nil
}

// GenerateBatch creates count fresh unique codes under prefix, stores them
// as unused records, and records the batch as the retrievable last batch.
func (s *CodeService) GenerateBatch(count int, prefix string) ([]string, error) {
	if count <= 0 {
		return nil, NewInvalidError("count must be positive")
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, NewInvalidError("prefix required")
	}
	return s.store.InsertBatch(count, func() string {
		return randomCode(prefix, s.codeLength)
	})
}

// LastBatch returns the most recently generated batch of codes.
func (s *CodeService) LastBatch() ([]string, error) {
	return s.store.LastBatch()
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomCode builds a serial like "GO2B-X7K2QD". Uniqueness is enforced by
// the store's collision retry, not here.
func randomCode(prefix string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return prefix + "-" + string(b)
}

// StoredResult fetches a previously archived report by code, verifying the
// holder's email matches the record.
func (s *CodeService) StoredResult(code, email string) (*models.CodeRecord, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	email = strings.ToLower(strings.TrimSpace(email))
	rec, err := s.store.GetCode(code)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Email != email {
		return nil, NewNotFoundError("result not found")
	}
	return rec, nil
}

// ArchivedResult fetches a redeemed record by code alone. Reserved for the
// operator surface, which does not know participants' emails up front.
func (s *CodeService) ArchivedResult(code string) (*models.CodeRecord, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	rec, err := s.store.GetCode(code)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Used {
		return nil, NewNotFoundError("result not found")
	}
	return rec, nil
}
