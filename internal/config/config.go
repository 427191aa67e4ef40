package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string
	QuizAPIURL  string

	QuestionCount int
	QuestionTTL   time.Duration

	PacingDelay           time.Duration
	RecheckDelay          time.Duration
	StaleWaitCap          time.Duration
	BattleTimeCap         time.Duration
	MinBattleAge          time.Duration
	SweepPeriod           time.Duration
	InactivitySweepPeriod time.Duration
	InactivityCap         time.Duration

	MsgCatalogDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:            ":8080",
		QuestionCount:         5,
		QuestionTTL:           time.Hour,
		PacingDelay:           3 * time.Second,
		RecheckDelay:          5 * time.Second,
		StaleWaitCap:          30 * time.Second,
		BattleTimeCap:         15 * time.Minute,
		MinBattleAge:          time.Minute,
		SweepPeriod:           30 * time.Second,
		InactivitySweepPeriod: time.Minute,
		InactivityCap:         5 * time.Minute,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.QuizAPIURL = strings.TrimSpace(os.Getenv("QUIZ_API_URL"))
	cfg.MsgCatalogDir = strings.TrimSpace(os.Getenv("MSG_CATALOG_DIR"))

	if v := strings.TrimSpace(os.Getenv("QUESTION_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuestionCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUESTION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QuestionTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PACING_DELAY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PacingDelay = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECHECK_DELAY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RecheckDelay = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("STALE_WAIT_CAP")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StaleWaitCap = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("BATTLE_TIME_CAP")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.BattleTimeCap = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("MIN_BATTLE_AGE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MinBattleAge = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_PERIOD")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepPeriod = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("INACTIVITY_SWEEP_PERIOD")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InactivitySweepPeriod = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("INACTIVITY_CAP")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InactivityCap = d
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.QuizAPIURL == "" {
		return nil, errors.New("QUIZ_API_URL is required")
	}
	return cfg, nil
}
