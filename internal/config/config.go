package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/history"
)

const Prefix = "BLACKJACK_"

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	MaxPlayers    int `env:"MAX_PLAYERS" envDefault:"6"`
	StartingChips int `env:"STARTING_CHIPS" envDefault:"1000"`
	MinBet        int `env:"MIN_BET" envDefault:"10"`
	MaxBet        int `env:"MAX_BET" envDefault:"500"`
	NumDecks      int `env:"NUM_DECKS" envDefault:"6"`
	ReshuffleAt   int `env:"RESHUFFLE_AT" envDefault:"20"`

	NewRoundDelay time.Duration `env:"NEW_ROUND_DELAY" envDefault:"5s"`
	SendTimeout   time.Duration `env:"SEND_TIMEOUT" envDefault:"3s"`
	OutboxSize    int           `env:"OUTBOX_SIZE" envDefault:"16"`

	JWTSecret string `env:"JWT_SECRET"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Dev      bool   `env:"DEV" envDefault:"false"`

	HistoryDriver string `env:"HISTORY_DRIVER" envDefault:"none"`
	HistoryDSN    string `env:"HISTORY_DSN"`

	OTelEndpoint   string   `env:"OTEL_ENDPOINT"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s%s must be positive, got %d", Prefix, name, v))
		}
	}
	positive("MAX_PLAYERS", c.MaxPlayers)
	positive("STARTING_CHIPS", c.StartingChips)
	positive("MIN_BET", c.MinBet)
	positive("NUM_DECKS", c.NumDecks)
	positive("RESHUFFLE_AT", c.ReshuffleAt)
	positive("OUTBOX_SIZE", c.OutboxSize)

	if c.MaxBet < c.MinBet {
		errs = multierr.Append(errs, fmt.Errorf("%sMAX_BET (%d) is below MIN_BET (%d)", Prefix, c.MaxBet, c.MinBet))
	}
	if c.NewRoundDelay <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%sNEW_ROUND_DELAY must be positive", Prefix))
	}
	if c.SendTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%sSEND_TIMEOUT must be positive", Prefix))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err))
	}

	switch c.HistoryDriver {
	case "", history.DriverNone:
	case history.DriverPostgres, history.DriverSQLite:
		if c.HistoryDSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("%sHISTORY_DSN is required for driver %q", Prefix, c.HistoryDriver))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("%sHISTORY_DRIVER %q is not one of none, postgres, sqlite", Prefix, c.HistoryDriver))
	}
	return errs
}

// Rules are the defaults for tables created without their own.
func (c Config) Rules() engine.Rules {
	return engine.Rules{
		MinBet:        c.MinBet,
		MaxBet:        c.MaxBet,
		MaxPlayers:    c.MaxPlayers,
		StartingChips: c.StartingChips,
		NumDecks:      c.NumDecks,
		ReshuffleAt:   c.ReshuffleAt,
	}
}

func (c Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
