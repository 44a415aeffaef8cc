package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	API       APIConfig        `json:"api"`
	Database  DatabaseConfig   `json:"database"`
	AI        AIConfig         `json:"ai"`
	Worker    WorkerConfig     `json:"worker"`
}

type APIConfig struct {
	BaseURL        string `json:"base_url"`
	AdminEmail     string `json:"admin_email"`
	AdminPassword  string `json:"admin_password"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	DSN      string `json:"dsn"`
}

type ProviderConfig struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Data     json.RawMessage `json:"data"`
}

type AIConfig struct {
	Chat          []ProviderConfig `json:"chat"`
	Embed         []ProviderConfig `json:"embed"`
	Timeout       int              `json:"timeout"`
	MaxInputChars int              `json:"max_input_chars"`
}

type WorkerConfig struct {
	Concurrency          int     `json:"concurrency"`
	PageSize             int     `json:"page_size"`
	IdleIntervalSeconds  int     `json:"idle_interval_seconds"`
	CandidateCap         int     `json:"candidate_cap"`
	ReadLimit            int     `json:"read_limit"`
	LikeTopK             int     `json:"like_top_k"`
	LikeFloor            float64 `json:"like_floor"`
	ReplyTopK            int     `json:"reply_top_k"`
	ReplyFloor           float64 `json:"reply_floor"`
	InterestCooldownDays int     `json:"interest_cooldown_days"`
	PostCooldownDays     int     `json:"post_cooldown_days"`
	MaxTags              int     `json:"max_tags"`
	Percentile           float64 `json:"percentile"`
	Gamma                float64 `json:"gamma"`
	ImpressionMaxChars   int     `json:"impression_max_chars"`
	CacheMaxAgeDays      int     `json:"cache_max_age_days"`
	CacheCleanupSpec     string  `json:"cache_cleanup_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}
	if cfg.API.AdminEmail == "" || cfg.API.AdminPassword == "" {
		return nil, fmt.Errorf("api.admin_email/admin_password are required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.host/dbname or database.dsn is required")
	}
	if len(cfg.AI.Chat) == 0 {
		return nil, fmt.Errorf("ai.chat needs at least one provider")
	}
	if len(cfg.AI.Embed) == 0 {
		return nil, fmt.Errorf("ai.embed needs at least one provider")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 30
	}
	applyWorkerDefaults(&cfg.Worker)
	return &cfg, nil
}

func applyWorkerDefaults(w *WorkerConfig) {
	if w.Concurrency <= 0 {
		w.Concurrency = 4
	}
	if w.PageSize <= 0 {
		w.PageSize = 50
	}
	if w.IdleIntervalSeconds <= 0 {
		w.IdleIntervalSeconds = 600
	}
	if w.CandidateCap <= 0 {
		w.CandidateCap = 30
	}
	if w.ReadLimit <= 0 {
		w.ReadLimit = 10
	}
	if w.LikeTopK <= 0 {
		w.LikeTopK = 3
	}
	if w.LikeFloor == 0 {
		w.LikeFloor = 0.3
	}
	if w.ReplyTopK <= 0 {
		w.ReplyTopK = 1
	}
	if w.ReplyFloor == 0 {
		w.ReplyFloor = 0.5
	}
	if w.InterestCooldownDays <= 0 {
		w.InterestCooldownDays = 3
	}
	if w.PostCooldownDays <= 0 {
		w.PostCooldownDays = 1
	}
	if w.MaxTags <= 0 {
		w.MaxTags = 5
	}
	if w.Percentile <= 0 || w.Percentile > 1 {
		w.Percentile = 0.95
	}
	if w.Gamma <= 0 || w.Gamma > 1 {
		w.Gamma = 0.5
	}
	if w.ImpressionMaxChars <= 0 {
		w.ImpressionMaxChars = 500
	}
	if w.CacheMaxAgeDays <= 0 {
		w.CacheMaxAgeDays = 30
	}
	if w.CacheCleanupSpec == "" {
		w.CacheCleanupSpec = "0 4 * * *"
	}
}
