package config

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	Mode      string `env:"APP_ENV" envDefault:"development"`
	JWTSecret string `env:"JWT_SECRET"`

	DB    DBConfig   `envPrefix:"DB_"`
	Votes VoteConfig `envPrefix:"VOTE_"`
}

type DBConfig struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT" envDefault:"5432"`
	User         string `env:"USER" envDefault:"postgres"`
	Password     string `env:"PASSWORD"`
	Name         string `env:"NAME" envDefault:"reddit_clone"`
	SSLMode      string `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"100"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
}

// VoteConfig tunes the vote engine's transaction retry loop.
type VoteConfig struct {
	MaxAttempts    uint          `env:"MAX_ATTEMPTS" envDefault:"3"`
	AttemptTimeout time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"2s"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"20ms"`
	MaxBackoff     time.Duration `env:"MAX_BACKOFF" envDefault:"250ms"`
	Isolation      string        `env:"ISOLATION" envDefault:"read committed"`
}

// Load reads an optional .env file and then parses the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Votes.IsolationLevel(); err != nil {
		return nil, err
	}
	if cfg.Votes.MaxAttempts == 0 {
		return nil, fmt.Errorf("VOTE_MAX_ATTEMPTS must be at least 1")
	}
	return &cfg, nil
}

// DSN renders the key/value connection string understood by both pgx and lib/pq.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsolationLevel maps the configured isolation name to a database/sql level.
// The default is read committed; CastVote relies on the ledger row lock, the
// unique pair index and the guarded counter update, not on snapshot checks.
func (c VoteConfig) IsolationLevel() (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(c.Isolation), "_", " ")) {
	case "", "read committed":
		return sql.LevelReadCommitted, nil
	case "repeatable read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unsupported VOTE_ISOLATION %q", c.Isolation)
	}
}
