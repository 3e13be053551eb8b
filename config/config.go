package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-snake/domain/room"
)

// DefaultEnvFile is read when present; -env-file names another file and
// makes it mandatory.
const DefaultEnvFile = ".env"

type Config struct {
	Addr         string
	GridSize     int
	TickInterval time.Duration
	IdleTimeout  time.Duration
	StaticDir    string
	LogLevel     slog.Level
	LogFormat    string
}

func Default() Config {
	return Config{
		Addr:         ":9090",
		GridSize:     room.DefaultGridSize,
		TickInterval: room.DefaultTickInterval,
		IdleTimeout:  0,
		StaticDir:    "./public/frontend/dist",
		LogLevel:     slog.LevelInfo,
		LogFormat:    "json",
	}
}

// Load reads SNAKE_* variables over the defaults, then flags over both.
// Variables come from getenv first and the env file second, so the process
// environment wins over the file.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	envFile := DefaultEnvFile
	flags := cfg.flagSet(&envFile)
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	explicit := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "env-file" {
			explicit = true
		}
	})
	getenv, err := withEnvFile(envFile, explicit, getenv)
	if err != nil {
		return Config{}, err
	}

	cfg = Default()
	if err := cfg.fromEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.flagSet(&envFile).Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) flagSet(envFile *string) *flag.FlagSet {
	flags := flag.NewFlagSet("snake", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(envFile, "env-file", *envFile, "dotenv file with SNAKE_* variables")
	flags.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	flags.IntVar(&c.GridSize, "grid", c.GridSize, "grid side length in cells")
	flags.DurationVar(&c.TickInterval, "tick", c.TickInterval, "simulation tick period")
	flags.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "evict players silent for this long, 0 disables")
	flags.StringVar(&c.StaticDir, "static", c.StaticDir, "frontend build directory, empty disables")
	flags.TextVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "json or text")
	return flags
}

// withEnvFile layers the dotenv file at path under getenv. A missing file
// is only an error when it was asked for explicitly.
func withEnvFile(path string, explicit bool, getenv func(string) string) (func(string) string, error) {
	if path == "" {
		return getenv, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return func(key string) string {
		if getenv != nil {
			if v := getenv(key); v != "" {
				return v
			}
		}
		return vars[key]
	}, nil
}

func (c *Config) fromEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	var errs []error
	if v := getenv("SNAKE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("SNAKE_GRID_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNAKE_GRID_SIZE: %w", err))
		}
		c.GridSize = n
	}
	if v := getenv("SNAKE_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNAKE_TICK: %w", err))
		}
		c.TickInterval = d
	}
	if v := getenv("SNAKE_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNAKE_IDLE_TIMEOUT: %w", err))
		}
		c.IdleTimeout = d
	}
	if v, ok := lookup(getenv, "SNAKE_STATIC_DIR"); ok {
		c.StaticDir = v
	}
	if v := getenv("SNAKE_LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("SNAKE_LOG_LEVEL: %w", err))
		}
	}
	if v := getenv("SNAKE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return errors.Join(errs...)
}

// lookup treats "-" as an explicit empty value.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch v {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return v, true
}

func (c Config) Validate() error {
	var errs []error
	if c.GridSize < 2 {
		errs = append(errs, fmt.Errorf("grid size %d: must be at least 2", c.GridSize))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval %s: must be positive", c.TickInterval))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout %s: must not be negative", c.IdleTimeout))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want json or text", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
