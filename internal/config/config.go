package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Slack     SlackConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL   string
	MigrationsDir string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type SlackConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// APIBase is overridable so tests and local stubs can stand in for
	// slack.com.
	APIBase string
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		errs = append(errs, err)
	}
	clientID, err := requireEnv("SLACK_CLIENT_ID")
	if err != nil {
		errs = append(errs, err)
	}
	clientSecret, err := requireEnv("SLACK_CLIENT_SECRET")
	if err != nil {
		errs = append(errs, err)
	}
	redirectURI, err := requireEnv("SLACK_REDIRECT_URI")
	if err != nil {
		errs = append(errs, err)
	}

	intervalSec, err := getEnvInt("SCHED_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, err)
	}
	batchSize, err := getEnvInt("SCHED_BATCH_SIZE", 50)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL:   postgresURL,
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Redis: redisCfg,
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(intervalSec) * time.Second,
			BatchSize: batchSize,
		},
		Slack: SlackConfig{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURI:  redirectURI,
			APIBase:      getEnv("SLACK_API_BASE", "https://slack.com"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	ttlSec, err := getEnvInt("REDIS_TTL_SECONDS", 3600)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttlSec) * time.Second,
	}, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
