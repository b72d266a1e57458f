package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string
	Env            string
	LogLevel       string
	Store          string
	DatabaseURL    string
	RedisURL       string
	RedisNamespace string
	NATSURL        string
	NATSSubject    string
	SeedFile       string
	Countdown      int
	Tick           time.Duration
	AllowedOrigins []string
}

func (c Config) Development() bool { return strings.EqualFold(c.Env, "development") }

// Load reads a .env file if one exists, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("AUCTION_ADDR", ":3000")
	}

	cfg := Config{
		Addr:           addr,
		Env:            envDefault("APP_ENV", "production"),
		LogLevel:       envDefault("LOG_LEVEL", "info"),
		Store:          strings.ToLower(envDefault("AUCTION_STORE", "gorm")),
		DatabaseURL:    envDefault("DATABASE_URL", "data/auction.db"),
		RedisURL:       envDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisNamespace: envDefault("REDIS_NAMESPACE", "auction"),
		NATSURL:        strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSSubject:    envDefault("NATS_SUBJECT", "auction.sales"),
		SeedFile:       strings.TrimSpace(os.Getenv("AUCTION_SEED_FILE")),
		Countdown:      envIntDefault("AUCTION_COUNTDOWN", engine.CountdownStart),
		Tick:           envDurationDefault("AUCTION_TICK", time.Second),
		AllowedOrigins: envListDefault("AUCTION_ALLOWED_ORIGINS", []string{"*"}),
	}
	if cfg.Countdown <= 0 {
		return cfg, fmt.Errorf("AUCTION_COUNTDOWN must be positive, got %d", cfg.Countdown)
	}
	if cfg.Tick <= 0 {
		return cfg, fmt.Errorf("AUCTION_TICK must be positive, got %s", cfg.Tick)
	}
	return cfg, nil
}

// Seed is the initial catalog and ledger, applied only to an empty store.
type Seed struct {
	Teams []SeedTeam `yaml:"teams"`
	Items []SeedItem `yaml:"items"`
}

type SeedTeam struct {
	Name   string `yaml:"name"`
	Budget int    `yaml:"budget"`
}

type SeedItem struct {
	Nickname string `yaml:"nickname"`
	MainPos  string `yaml:"mainPos"`
}

func LoadSeed(path string) (Seed, error) {
	var s Seed
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read seed file: %w", err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse seed file: %w", err)
	}
	return s, nil
}

// Commands turns the seed into engine commands, teams first. A team without
// a budget gets engine.DefaultBudget.
func (s Seed) Commands() []engine.Command {
	cmds := make([]engine.Command, 0, len(s.Teams)+len(s.Items))
	for _, t := range s.Teams {
		budget := t.Budget
		if budget == 0 {
			budget = engine.DefaultBudget
		}
		cmds = append(cmds, engine.Command{Type: engine.CmdAddTeam, TeamName: t.Name, Amount: budget})
	}
	for _, it := range s.Items {
		cmds = append(cmds, engine.Command{Type: engine.CmdAddItem, Nickname: it.Nickname, MainPos: it.MainPos})
	}
	return cmds
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
