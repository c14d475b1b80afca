package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go2b/internal/middleware"
	"go2b/internal/services"
	"go2b/internal/utils"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses. Redemption errors get
// a localized, user-facing message; anything unexpected becomes an opaque
// 500 with the detail only in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusBadRequest
		msg := se.Message
		switch se.Code {
		case services.ErrorNotFound:
			status = http.StatusNotFound
			msg = utils.T(locale, "code.invalid")
		case services.ErrorConflict:
			status = http.StatusConflict
			msg = utils.T(locale, "code.used")
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		}
		writeJSON(w, status, map[string]any{"error": string(se.Code), "message": msg})
		return
	}
	log.Printf("internal error on %s %s: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": "internal error"})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"name":   "GO2B API",
		"locale": locale,
		"msg":    utils.T(locale, "health.ok"),
		"items":  rt.catalog.Len(),
	})
}

// POST /api/redeem {nome, email, seriale}
func (rt *Router) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"nome"`
		Email string `json:"email"`
		Code  string `json:"seriale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, services.NewInvalidError("invalid request body"))
		return
	}
	outcome, err := rt.codes.Redeem(req.Code, req.Name, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess := rt.sessions.Start(req.Name, req.Email, req.Code, outcome == services.OutcomeMaster, rt.catalog.Items())
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  sess.Token,
		"total":  len(sess.Items),
		"master": sess.Master,
	})
}

// GET /api/sessions/{token}/next
func (rt *Router) handleNextItem(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.sessions.Get(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sess.Complete() {
		writeJSON(w, http.StatusOK, map[string]any{"done": true, "total": len(sess.Items)})
		return
	}
	idx := len(sess.Answers)
	writeJSON(w, http.StatusOK, map[string]any{
		"done":  false,
		"idx":   idx + 1,
		"total": len(sess.Items),
		"text":  sess.Items[idx].Text,
	})
}

// POST /api/sessions/{token}/answers {index, value}
func (rt *Router) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.sessions.Get(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Index int `json:"index"`
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, services.NewInvalidError("invalid request body"))
		return
	}
	if req.Value < 1 || req.Value > rt.cfg.LikertPoints {
		writeError(w, r, services.NewInvalidError(
			fmt.Sprintf("answer must be between 1 and %d", rt.cfg.LikertPoints)))
		return
	}
	if err := sess.RecordAnswer(req.Index, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answered": len(sess.Answers),
		"total":    len(sess.Items),
		"done":     sess.Complete(),
	})
}

// POST /api/sessions/{token}/complete
func (rt *Router) handleComplete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sess, err := rt.sessions.Get(token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.scoring.CompleteSession(sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.sessions.End(token)
	writeJSON(w, http.StatusOK, report)
}

// GET /api/results/{code}?email=...
func (rt *Router) handleStoredResult(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	email := r.URL.Query().Get("email")
	rec, err := rt.codes.StoredResult(code, email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seriale":            code,
		"nome":               rec.Name,
		"email":              rec.Email,
		"data":               rec.RedeemedAt,
		"report":             rec.Report,
		"risposte_dettaglio": rec.Detail,
		"alert":              services.AlertFlag(rec.Report, rt.cfg.SocialDesirabilityScale),
	})
}

// GET /api/admin/report/{code}
func (rt *Router) handleAdminReport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := rt.codes.ArchivedResult(code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seriale":            strings.ToUpper(strings.TrimSpace(code)),
		"nome":               rec.Name,
		"email":              rec.Email,
		"data":               rec.RedeemedAt,
		"report":             rec.Report,
		"risposte_dettaglio": rec.Detail,
		"alert":              services.AlertFlag(rec.Report, rt.cfg.SocialDesirabilityScale),
	})
}

// POST /api/admin/login {user, password}
func (rt *Router) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, services.NewInvalidError("invalid request body"))
		return
	}
	token, err := rt.auth.Login(req.User, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(rt.auth.TokenTTL().Seconds()),
	})
}

// POST /api/admin/codes {count?, prefix?}
func (rt *Router) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Count  int    `json:"count"`
		Prefix string `json:"prefix"`
	}{Count: rt.cfg.BatchSize, Prefix: rt.cfg.CodePrefix}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, services.NewInvalidError("invalid request body"))
			return
		}
	}
	if req.Count == 0 {
		req.Count = rt.cfg.BatchSize
	}
	if req.Prefix == "" {
		req.Prefix = rt.cfg.CodePrefix
	}
	batch, err := rt.codes.GenerateBatch(req.Count, req.Prefix)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": batch})
}

// GET /api/admin/codes/latest
func (rt *Router) handleLastBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := rt.codes.LastBatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": batch})
}

// GET /api/admin/codes.xlsx
func (rt *Router) handleCodesXLSX(w http.ResponseWriter, r *http.Request) {
	batch, err := rt.codes.LastBatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := services.ExportCodesXLSX(batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="codici_seriali.xlsx"`)
	_, _ = w.Write(data)
}

// GET /api/admin/users.csv
func (rt *Router) handleUsersCSV(w http.ResponseWriter, r *http.Request) {
	codes, err := rt.codeStore.ListCodes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := services.ExportUsersCSV(services.RegisteredUsers(codes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="utenti_registrati.csv"`)
	_, _ = w.Write(data)
}

// GET /api/admin/norms.csv
func (rt *Router) handleNormsCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.normStore.ListNorms()
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := services.ExportNormsCSV(entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="storico_punteggi.csv"`)
	_, _ = w.Write(data)
}

// GET /api/admin/reliability.csv
func (rt *Router) handleReliabilityCSV(w http.ResponseWriter, r *http.Request) {
	codes, err := rt.codeStore.ListCodes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := services.ExportReliabilityCSV(services.ScaleReliability(codes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="affidabilita_scale.csv"`)
	_, _ = w.Write(data)
}
