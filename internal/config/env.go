// Package config handles environment-based configuration loading and the
// optional platform-tuning file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	StateDir string
	LogDir   string

	// Database
	DBPath string

	// Spreadsheet collaborators
	SheetKey        string
	CredentialsFile string
	SheetTab        string // optional tab-name override for the registry pull

	// Batch
	Workers       int
	CronSchedule  string
	MisfireGrace  time.Duration
	GenAIAPIKey   string
	PlatformsFile string // optional YAML with permit/pacing overrides

	// Daemon log rotation
	LogMaxSizeMB  int
	LogMaxBackups int
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error listing every invalid or missing variable.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.StateDir = envStr("APTSCAN_STATE_DIR", "/var/lib/aptscan")
	cfg.LogDir = envStr("APTSCAN_LOG_DIR", "/var/log/aptscan")

	// --- Database ---
	cfg.DBPath = envStr("APTSCAN_DB_PATH", "")
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.StateDir, "aptscan.db")
	}

	// --- Spreadsheet ---
	cfg.SheetKey = strings.TrimSpace(envStr("APTSCAN_SHEET_KEY", ""))
	cfg.CredentialsFile = envStr("APTSCAN_GOOGLE_CREDENTIALS", "")
	cfg.SheetTab = envStr("APTSCAN_SHEET_TAB", "")

	// --- Batch ---
	cfg.Workers = envInt("APTSCAN_WORKERS", 8, &errs)
	cfg.CronSchedule = envStr("APTSCAN_CRON_SCHEDULE", "0 2 * * *")
	cfg.MisfireGrace = envDuration("APTSCAN_MISFIRE_GRACE", time.Hour, &errs)
	cfg.GenAIAPIKey = envStr("APTSCAN_GENAI_API_KEY", "")
	cfg.PlatformsFile = envStr("APTSCAN_PLATFORMS_FILE", "")

	// --- Log rotation ---
	cfg.LogMaxSizeMB = envInt("APTSCAN_LOG_MAX_SIZE_MB", 5, &errs)
	cfg.LogMaxBackups = envInt("APTSCAN_LOG_MAX_BACKUPS", 7, &errs)

	// --- Validation ---
	validatePositive("APTSCAN_WORKERS", cfg.Workers, &errs)
	validatePositive("APTSCAN_LOG_MAX_SIZE_MB", cfg.LogMaxSizeMB, &errs)
	if cfg.MisfireGrace < 0 {
		errs = append(errs, fmt.Sprintf("APTSCAN_MISFIRE_GRACE: must be non-negative, got %s", cfg.MisfireGrace))
	}
	if _, err := cron.ParseStandard(cfg.CronSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("APTSCAN_CRON_SCHEDULE: invalid cron expression %q: %v", cfg.CronSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

// RequireSheet validates that the spreadsheet collaborators are configured.
// Called only by entry points that actually talk to the sheet.
func (c *EnvConfig) RequireSheet() error {
	var missing []string
	if c.SheetKey == "" {
		missing = append(missing, "APTSCAN_SHEET_KEY")
	}
	if c.CredentialsFile == "" {
		missing = append(missing, "APTSCAN_GOOGLE_CREDENTIALS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("spreadsheet access requires %s", strings.Join(missing, ", "))
	}
	return nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
