package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"go2b/internal/catalog"
	"go2b/internal/config"
	"go2b/internal/middleware"
	"go2b/internal/services"
	"go2b/internal/store"
)

const testCatalog = `{
  "areas": [
    {
      "name": "Area 1",
      "scales": [
        {
          "name": "A",
          "items": [
            {"text": "prima domanda", "reverse": false},
            {"text": "seconda domanda", "reverse": false}
          ]
        }
      ]
    }
  ]
}`

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(
		filepath.Join(dir, "codici_seriali.json"),
		filepath.Join(dir, "database.json"),
		filepath.Join(dir, "ultimi_codici_generati.json"),
		"GO2B-MASTER",
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cat, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("segretissima"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.Config{
		MasterCode:              "GO2B-MASTER",
		CodePrefix:              "GO2B",
		CodeLength:              6,
		BatchSize:               50,
		LikertPoints:            6,
		SocialDesirabilityScale: "Desiderabilità sociale",
		AdminUser:               "go2badmin",
		JWTSecret:               "test-secret",
	}
	adminAuth := middleware.NewAdminAuth(cfg.JWTSecret)
	codeSvc := services.NewCodeService(st, cfg.MasterCode, cfg.CodeLength)
	scoringSvc := services.NewScoringService(codeSvc, st, cfg.LikertPoints, cfg.SocialDesirabilityScale)
	authSvc := services.NewAdminAuthService(cfg.AdminUser, string(hash), adminAuth.SignToken)
	return NewRouter(cfg, cat, codeSvc, scoringSvc, authSvc, adminAuth, st, st)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func adminToken(t *testing.T, h http.Handler) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	w := doJSON(t, h, http.MethodPost, "/api/admin/login", "", map[string]string{
		"user": "go2badmin", "password": "segretissima",
	}, &resp)
	if w.Code != http.StatusOK || resp.Token == "" {
		t.Fatalf("admin login failed: %d %s", w.Code, w.Body.String())
	}
	return resp.Token
}

func TestRedeemUnknownCodeLocalizedMessage(t *testing.T) {
	h := newTestRouter(t).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/redeem",
		strings.NewReader(`{"nome":"Mario","email":"m@example.com","seriale":"GO2B-GHOST"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Il codice seriale non è valido") {
		t.Fatalf("missing localized message: %s", w.Body.String())
	}
}

func TestRedeemMasterStartsSession(t *testing.T) {
	h := newTestRouter(t).Handler()
	var resp struct {
		Token  string `json:"token"`
		Total  int    `json:"total"`
		Master bool   `json:"master"`
	}
	w := doJSON(t, h, http.MethodPost, "/api/redeem", "", map[string]string{
		"nome": "Admin", "email": "admin@example.com", "seriale": "GO2B-MASTER",
	}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !resp.Master || resp.Total != 2 || resp.Token == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAnswerValidation(t *testing.T) {
	h := newTestRouter(t).Handler()
	var start struct {
		Token string `json:"token"`
	}
	doJSON(t, h, http.MethodPost, "/api/redeem", "", map[string]string{
		"nome": "Admin", "email": "admin@example.com", "seriale": "GO2B-MASTER",
	}, &start)

	// out-of-range Likert value
	w := doJSON(t, h, http.MethodPost, "/api/sessions/"+start.Token+"/answers", "",
		map[string]int{"index": 0, "value": 7}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("value 7: status = %d, want 400", w.Code)
	}
	// out-of-sequence index
	w = doJSON(t, h, http.MethodPost, "/api/sessions/"+start.Token+"/answers", "",
		map[string]int{"index": 1, "value": 3}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("skip ahead: status = %d, want 400", w.Code)
	}
	// completing early fails
	w = doJSON(t, h, http.MethodPost, "/api/sessions/"+start.Token+"/complete", "", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("early complete: status = %d, want 400", w.Code)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	h := newTestRouter(t).Handler()
	for _, path := range []string{"/api/admin/codes/latest", "/api/admin/users.csv", "/api/admin/norms.csv", "/api/admin/reliability.csv"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAdminBatchAndExports(t *testing.T) {
	h := newTestRouter(t).Handler()
	token := adminToken(t, h)

	var gen struct {
		Codes []string `json:"codes"`
	}
	w := doJSON(t, h, http.MethodPost, "/api/admin/codes", token,
		map[string]any{"count": 5, "prefix": "GO2B"}, &gen)
	if w.Code != http.StatusOK || len(gen.Codes) != 5 {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}

	var latest struct {
		Codes []string `json:"codes"`
	}
	doJSON(t, h, http.MethodGet, "/api/admin/codes/latest", token, nil, &latest)
	if len(latest.Codes) != 5 {
		t.Fatalf("latest batch = %v", latest.Codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/codes.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx export: %d", rec.Code)
	}
}
