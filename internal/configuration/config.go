package configuration

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"pricepal/internal/logger"
)

type Config struct {
	ServerAddress       string
	DatabaseURI         string
	RedisURI            string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFrom           string
	AppURL              string
	PriceCheckSchedule  string
	ReminderSchedule    string
	ScrapeConcurrency   int
	ScrapeTimeout       time.Duration
	ObservationCacheTTL time.Duration
	AuthSecretKey       jwk.Key
	LogLevel            logger.Level
	LogToFile           bool
}

type tomlConfig struct {
	ServerAddress       string `toml:"server_address"`
	DatabaseURI         string `toml:"database_uri"`
	RedisURI            string `toml:"redis_uri"`
	SMTPHost            string `toml:"smtp_host"`
	SMTPPort            int    `toml:"smtp_port"`
	SMTPUsername        string `toml:"smtp_username"`
	SMTPPassword        string `toml:"smtp_password"`
	EmailFrom           string `toml:"email_from"`
	AppURL              string `toml:"app_url"`
	PriceCheckSchedule  string `toml:"price_check_schedule"`
	ReminderSchedule    string `toml:"reminder_schedule"`
	ScrapeConcurrency   int    `toml:"scrape_concurrency"`
	ScrapeTimeout       string `toml:"scrape_timeout"`
	ObservationCacheTTL string `toml:"observation_cache_ttl"`
	AuthSecretKey       string `toml:"auth_secret_key"`
	LogLevel            string `toml:"log_level"`
	LogToFile           bool   `toml:"log_to_file"`
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}
	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.RedisURI == "" {
		tc.RedisURI = "redis://localhost:6379"
	}

	if tc.SMTPHost == "" {
		return nil, errors.New("smtp_host is not set")
	}
	if tc.SMTPPort == 0 {
		tc.SMTPPort = 587
	}
	if tc.SMTPUsername == "" {
		return nil, errors.New("smtp_username is not set")
	}
	if tc.SMTPPassword == "" {
		return nil, errors.New("smtp_password is not set")
	}
	if tc.EmailFrom == "" {
		tc.EmailFrom = tc.SMTPUsername
	}
	if tc.AppURL == "" {
		tc.AppURL = "http://localhost:5173"
	}

	if tc.PriceCheckSchedule == "" {
		tc.PriceCheckSchedule = "0 0,4,8,12,16,20 * * *"
	}
	if tc.ReminderSchedule == "" {
		tc.ReminderSchedule = "0 10 * * SUN"
	}
	cronParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err = cronParser.Parse(tc.PriceCheckSchedule); err != nil {
		return nil, errors.Wrapf(err, "failed to parse price_check_schedule: %s", tc.PriceCheckSchedule)
	}
	if _, err = cronParser.Parse(tc.ReminderSchedule); err != nil {
		return nil, errors.Wrapf(err, "failed to parse reminder_schedule: %s", tc.ReminderSchedule)
	}

	if tc.ScrapeConcurrency == 0 {
		tc.ScrapeConcurrency = 4
	}
	if tc.ScrapeConcurrency < 1 || tc.ScrapeConcurrency > 32 {
		return nil, errors.Errorf("scrape_concurrency out of range (1-32): %d", tc.ScrapeConcurrency)
	}

	if tc.ScrapeTimeout == "" {
		tc.ScrapeTimeout = "10s"
	}
	scrapeTimeout, err := time.ParseDuration(tc.ScrapeTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse scrape_timeout: %s", tc.ScrapeTimeout)
	}

	if tc.ObservationCacheTTL == "" {
		tc.ObservationCacheTTL = "5m"
	}
	observationCacheTTL, err := time.ParseDuration(tc.ObservationCacheTTL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse observation_cache_ttl: %s", tc.ObservationCacheTTL)
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse log_level: %s", tc.LogLevel)
	}

	return &Config{
		ServerAddress:       tc.ServerAddress,
		DatabaseURI:         tc.DatabaseURI,
		RedisURI:            tc.RedisURI,
		SMTPHost:            tc.SMTPHost,
		SMTPPort:            tc.SMTPPort,
		SMTPUsername:        tc.SMTPUsername,
		SMTPPassword:        tc.SMTPPassword,
		EmailFrom:           tc.EmailFrom,
		AppURL:              tc.AppURL,
		PriceCheckSchedule:  tc.PriceCheckSchedule,
		ReminderSchedule:    tc.ReminderSchedule,
		ScrapeConcurrency:   tc.ScrapeConcurrency,
		ScrapeTimeout:       scrapeTimeout,
		ObservationCacheTTL: observationCacheTTL,
		AuthSecretKey:       authSecretKey,
		LogLevel:            logLevel,
		LogToFile:           tc.LogToFile,
	}, nil
}
