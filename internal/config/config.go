package config

import (
	"path/filepath"
	"strconv"

	"go2b/internal/utils"
)

// Config carries all runtime settings. Everything comes from the
// environment so the server can run unchanged in dev and production.
type Config struct {
	HTTPAddr string
	DataDir  string

	CatalogPath string
	StoreDriver string // "json" or "sqlite"
	SQLitePath  string

	MasterCode string
	CodePrefix string
	CodeLength int
	BatchSize  int

	LikertPoints            int
	SocialDesirabilityScale string

	AdminUser     string
	AdminPassHash string // bcrypt
	JWTSecret     string
}

func FromEnv() Config {
	dataDir := utils.SafeEnv("GO2B_DATA_DIR", ".")
	return Config{
		HTTPAddr:    utils.SafeEnv("GO2B_ADDR", ":8080"),
		DataDir:     dataDir,
		CatalogPath: utils.SafeEnv("GO2B_CATALOG", filepath.Join(dataDir, "data.json")),
		StoreDriver: utils.SafeEnv("GO2B_STORE", "json"),
		SQLitePath:  utils.SafeEnv("GO2B_SQLITE_PATH", filepath.Join(dataDir, "go2b.db")),

		MasterCode: utils.SafeEnv("GO2B_MASTER_CODE", "GO2B-MASTER"),
		CodePrefix: utils.SafeEnv("GO2B_CODE_PREFIX", "GO2B"),
		CodeLength: envInt("GO2B_CODE_LENGTH", 6),
		BatchSize:  envInt("GO2B_BATCH_SIZE", 50),

		LikertPoints:            envInt("GO2B_LIKERT_POINTS", 6),
		SocialDesirabilityScale: utils.SafeEnv("GO2B_SD_SCALE", "Desiderabilità sociale"),

		AdminUser: utils.SafeEnv("GO2B_ADMIN_USER", "go2badmin"),
		// Empty hash disables admin login entirely.
		AdminPassHash: utils.SafeEnv("GO2B_ADMIN_PASS_HASH", ""),
		JWTSecret:     utils.SafeEnv("GO2B_JWT_SECRET", "go2b-dev-secret"),
	}
}

// CodesPath returns the location of the serial-code registry file.
func (c Config) CodesPath() string {
	return filepath.Join(c.DataDir, "codici_seriali.json")
}

// NormsPath returns the location of the historical corpus file.
func (c Config) NormsPath() string {
	return filepath.Join(c.DataDir, "database.json")
}

// LastBatchPath returns the location of the last-generated-batch file.
func (c Config) LastBatchPath() string {
	return filepath.Join(c.DataDir, "ultimi_codici_generati.json")
}

func envInt(key string, def int) int {
	v := utils.SafeEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
