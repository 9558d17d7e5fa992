package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Storage. An empty DATABASE_URL keeps sessions in memory.
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`

	// Referral reports
	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN"`
	CoachChatID      int64    `env:"COACH_CHAT_ID"`
	ReportFontPaths  []string `env:"REPORT_FONT_PATHS" envSeparator:":"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"LOG_FILE"`

	// Engine
	EarlyDiagnosis bool          `env:"EARLY_DIAGNOSIS" envDefault:"false"`
	LockTimeout    time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`
}

// Load reads .env files (if present) into the environment and parses it.
// Variables already set win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// ReportsEnabled reports whether referral reports can be delivered.
func (c *Config) ReportsEnabled() bool {
	return c.TelegramBotToken != "" && c.CoachChatID != 0
}
