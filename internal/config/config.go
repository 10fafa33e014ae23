// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Task names, also used as scheduler job names
const (
	TaskDrain         = "drain"
	TaskReap          = "reap"
	TaskFullSync      = "full_sync"
	TaskSnapshotSync  = "snapshot_sync"
	TaskRiskScan      = "risk_scan"
	TaskArchive       = "archive"
	TaskWALCheckpoint = "wal_checkpoint"
)

// taskDefaults lists every task in registration order
var taskDefaults = []struct {
	name     string
	schedule string
	enabled  bool
}{
	{TaskDrain, "@every 1m", true},
	{TaskReap, "0 */5 * * * *", true},
	{TaskFullSync, "0 0 5 * * *", true},
	{TaskSnapshotSync, "0 */15 * * * *", true},
	{TaskRiskScan, "0 0 2 * * *", true},
	{TaskArchive, "0 30 3 * * *", false},
	{TaskWALCheckpoint, "0 0 * * * *", true},
}

type Config struct {
	DataDir      string // Base directory for core.db and history.db (always absolute)
	LogLevel     string
	TriggerToken string // Bearer token for /api/jobs, /api/queue and /api/tickets; empty disables auth
	Port         int
	DevMode      bool

	Queue   QueueConfig
	Reaper  ReaperConfig
	Sync    SyncConfig
	Market  MarketConfig
	Finnhub FinnhubConfig
	LLM     LLMConfig
	Archive ArchiveConfig
	Tasks   []TaskConfig
}

type QueueConfig struct {
	MaxAttempts        int
	BaseBackoffSeconds int
	BatchSize          int
}

type ReaperConfig struct {
	Timeout time.Duration
}

type SyncConfig struct {
	FullDelay       time.Duration
	SnapshotDelay   time.Duration
	RiskScanDelay   time.Duration
	HistoryDays     int
	StalenessWindow time.Duration
}

type MarketConfig struct {
	CacheTTL    time.Duration
	LiveTimeout time.Duration
	StreamURL   string // Empty disables the websocket status stream
}

type FinnhubConfig struct {
	APIKey  string
	BaseURL string
}

type LLMConfig struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	Providers     []string // Fallback chain order
}

type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// TaskConfig controls one scheduled task
type TaskConfig struct {
	Name     string
	Schedule string
	Enabled  bool
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("NTC_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("NTC_PORT", 8001),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		TriggerToken: getEnv("TRIGGER_TOKEN", ""),
		Queue: QueueConfig{
			MaxAttempts:        getEnvAsInt("QUEUE_MAX_ATTEMPTS", 10),
			BaseBackoffSeconds: getEnvAsInt("QUEUE_BASE_BACKOFF_SECONDS", 30),
			BatchSize:          getEnvAsInt("QUEUE_BATCH_SIZE", 10),
		},
		Reaper: ReaperConfig{
			Timeout: time.Duration(getEnvAsInt("REAPER_TIMEOUT_MINUTES", 20)) * time.Minute,
		},
		Sync: SyncConfig{
			FullDelay:       getEnvAsDuration("SYNC_FULL_DELAY", 1500*time.Millisecond),
			SnapshotDelay:   getEnvAsDuration("SYNC_SNAPSHOT_DELAY", 500*time.Millisecond),
			RiskScanDelay:   getEnvAsDuration("SYNC_RISK_SCAN_DELAY", 2*time.Second),
			HistoryDays:     getEnvAsInt("SYNC_HISTORY_DAYS", 365),
			StalenessWindow: time.Duration(getEnvAsInt("SCANNER_STALENESS_WINDOW_DAYS", 14)) * 24 * time.Hour,
		},
		Market: MarketConfig{
			CacheTTL:    getEnvAsDuration("MARKET_STATUS_CACHE_TTL", time.Minute),
			LiveTimeout: getEnvAsDuration("MARKET_STATUS_LIVE_TIMEOUT", 5*time.Second),
			StreamURL:   getEnv("MARKET_STATUS_WS_URL", ""),
		},
		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", ""),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", ""),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", ""),
			Providers:     getEnvAsList("ANALYSIS_PROVIDERS", []string{"gemini", "openai"}),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("ARCHIVE_PREFIX", "neural-ticker"),
		},
		Tasks: loadTasks(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTasks() []TaskConfig {
	tasks := make([]TaskConfig, 0, len(taskDefaults))
	for _, d := range taskDefaults {
		key := "TASK_" + strings.ToUpper(d.name)
		tasks = append(tasks, TaskConfig{
			Name:     d.name,
			Schedule: getEnv(key+"_SCHEDULE", d.schedule),
			Enabled:  getEnvAsBool(key+"_ENABLED", d.enabled),
		})
	}
	return tasks
}

// Task returns the config of the named task
func (c *Config) Task(name string) (TaskConfig, bool) {
	for _, t := range c.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskConfig{}, false
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("NTC_PORT out of range: %d", c.Port))
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("QUEUE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Queue.BaseBackoffSeconds < 1 {
		errs = append(errs, errors.New("QUEUE_BASE_BACKOFF_SECONDS must be at least 1"))
	}
	if c.Queue.BatchSize < 1 {
		errs = append(errs, errors.New("QUEUE_BATCH_SIZE must be at least 1"))
	}
	if c.Reaper.Timeout <= 0 {
		errs = append(errs, errors.New("REAPER_TIMEOUT_MINUTES must be positive"))
	}
	if c.Sync.StalenessWindow <= 0 {
		errs = append(errs, errors.New("SCANNER_STALENESS_WINDOW_DAYS must be positive"))
	}
	for _, p := range c.LLM.Providers {
		if p != "openai" && p != "gemini" {
			errs = append(errs, fmt.Errorf("ANALYSIS_PROVIDERS: unknown provider %q", p))
		}
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, t := range c.Tasks {
		if _, err := parser.Parse(t.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("TASK_%s_SCHEDULE: %w", strings.ToUpper(t.Name), err))
		}
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
