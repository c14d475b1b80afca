// Package api exposes the questionnaire and admin operations over HTTP.
// All domain decisions live in internal/services; handlers only translate
// between JSON and service calls.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"go2b/internal/catalog"
	"go2b/internal/config"
	"go2b/internal/middleware"
	"go2b/internal/services"
)

type Router struct {
	cfg       config.Config
	catalog   *catalog.Catalog
	sessions  *services.SessionManager
	codes     *services.CodeService
	scoring   *services.ScoringService
	auth      *services.AdminAuthService
	adminAuth *middleware.AdminAuth
	codeStore services.CodeStore
	normStore services.NormStore
}

func NewRouter(
	cfg config.Config,
	cat *catalog.Catalog,
	codes *services.CodeService,
	scoring *services.ScoringService,
	auth *services.AdminAuthService,
	adminAuth *middleware.AdminAuth,
	codeStore services.CodeStore,
	normStore services.NormStore,
) *Router {
	return &Router{
		cfg:       cfg,
		catalog:   cat,
		sessions:  services.NewSessionManager(),
		codes:     codes,
		scoring:   scoring,
		auth:      auth,
		adminAuth: adminAuth,
		codeStore: codeStore,
		normStore: normStore,
	}
}

// Handler builds the full HTTP stack: chi's base middlewares, CORS,
// locale detection, cache and security headers, then the routes.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecureHeaders, middleware.NoStore, middleware.Locale)

	r.Get("/health", rt.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/redeem", rt.handleRedeem)
		r.Route("/sessions/{token}", func(r chi.Router) {
			r.Get("/next", rt.handleNextItem)
			r.Post("/answers", rt.handleAnswer)
			r.Post("/complete", rt.handleComplete)
		})
		r.Get("/results/{code}", rt.handleStoredResult)

		r.Post("/admin/login", rt.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(rt.adminAuth.RequireAdmin)
			r.Post("/admin/codes", rt.handleGenerateBatch)
			r.Get("/admin/codes/latest", rt.handleLastBatch)
			r.Get("/admin/codes.xlsx", rt.handleCodesXLSX)
			r.Get("/admin/users.csv", rt.handleUsersCSV)
			r.Get("/admin/norms.csv", rt.handleNormsCSV)
			r.Get("/admin/reliability.csv", rt.handleReliabilityCSV)
			r.Get("/admin/report/{code}", rt.handleAdminReport)
		})
	})

	return r
}
