package main

import (
	"database/sql"
	"log"
	"net/http"

	_ "github.com/mattn/go-sqlite3"

	"go2b/internal/api"
	"go2b/internal/catalog"
	"go2b/internal/config"
	"go2b/internal/db"
	"go2b/internal/middleware"
	"go2b/internal/services"
	"go2b/internal/store"
)

func main() {
	cfg := config.FromEnv()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	var (
		codeStore services.CodeStore
		normStore services.NormStore
	)
	switch cfg.StoreDriver {
	case "sqlite":
		if err := MigrateIfNeeded(cfg); err != nil {
			log.Fatalf("migrate legacy data: %v", err)
		}
		sqlDB, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		if err := db.RunMigrations(sqlDB, ""); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		st, err := db.NewSQLiteStore(sqlDB, cfg.MasterCode)
		if err != nil {
			log.Fatalf("init sqlite store: %v", err)
		}
		codeStore, normStore = st, st
	default:
		st, err := store.Open(cfg.CodesPath(), cfg.NormsPath(), cfg.LastBatchPath(), cfg.MasterCode)
		if err != nil {
			log.Fatalf("open data files: %v", err)
		}
		codeStore, normStore = st, st
	}

	adminAuth := middleware.NewAdminAuth(cfg.JWTSecret)
	codeSvc := services.NewCodeService(codeStore, cfg.MasterCode, cfg.CodeLength)
	scoringSvc := services.NewScoringService(codeSvc, normStore, cfg.LikertPoints, cfg.SocialDesirabilityScale)
	authSvc := services.NewAdminAuthService(cfg.AdminUser, cfg.AdminPassHash, adminAuth.SignToken)

	router := api.NewRouter(cfg, cat, codeSvc, scoringSvc, authSvc, adminAuth, codeStore, normStore)

	log.Printf("GO2B server listening on %s (%d items, store=%s)", cfg.HTTPAddr, cat.Len(), cfg.StoreDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, router.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
