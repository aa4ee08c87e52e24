package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string       `yaml:"discord_token" toml:"discord_token"`
	DatabaseURL   string       `yaml:"database_url" toml:"database_url"`
	LogLevel      string       `yaml:"log_level" toml:"log_level"`
	RetentionDays int          `yaml:"retention_days" toml:"retention_days"`
	Health        HealthConfig `yaml:"health" toml:"health"`
	Render        RenderConfig `yaml:"render" toml:"render"`
	Stats         StatsConfig  `yaml:"stats" toml:"stats"`
	EmbedColors   EmbedColors  `yaml:"embed_colors" toml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

type RenderConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds" toml:"timeout_seconds"`
	AllowMentions  bool `yaml:"allow_mentions" toml:"allow_mentions"`
	MemberPageSize int  `yaml:"member_page_size" toml:"member_page_size"`
}

func (r RenderConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type StatsConfig struct {
	IntervalSeconds  int `yaml:"interval_seconds" toml:"interval_seconds"`
	RenamesPerWindow int `yaml:"renames_per_window" toml:"renames_per_window"`
	WindowSeconds    int `yaml:"window_seconds" toml:"window_seconds"`
}

func (s StatsConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s StatsConfig) Window() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

type EmbedColors struct {
	Action int `yaml:"action" toml:"action"`
	Error  int `yaml:"error" toml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL:   "/data/herald.db",
		LogLevel:      "info",
		RetentionDays: 14,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Render: RenderConfig{
			TimeoutSeconds: 10,
			AllowMentions:  true,
			MemberPageSize: 1000,
		},
		Stats: StatsConfig{
			IntervalSeconds:  600,
			RenamesPerWindow: 2,
			WindowSeconds:    600,
		},
		EmbedColors: EmbedColors{
			Action: 0x5865F2,
			Error:  0xF97316,
		},
	}
}

// Load reads the bot configuration. DISCORD_TOKEN must be set either in the
// file or the environment.
func Load() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// LoadFile reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// decode picks the format from the file extension. YAML is the default.
func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Render.TimeoutSeconds = envInt("RENDER_TIMEOUT_SECONDS", cfg.Render.TimeoutSeconds)
	cfg.Render.AllowMentions = envBool("RENDER_ALLOW_MENTIONS", cfg.Render.AllowMentions)
	cfg.Render.MemberPageSize = envInt("RENDER_MEMBER_PAGE_SIZE", cfg.Render.MemberPageSize)
	cfg.Stats.IntervalSeconds = envInt("STATS_INTERVAL_SECONDS", cfg.Stats.IntervalSeconds)
	cfg.Stats.RenamesPerWindow = envInt("STATS_RENAMES_PER_WINDOW", cfg.Stats.RenamesPerWindow)
	cfg.Stats.WindowSeconds = envInt("STATS_WINDOW_SECONDS", cfg.Stats.WindowSeconds)
	cfg.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.EmbedColors.Action)
	cfg.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.EmbedColors.Error)
}

func normalize(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Render.TimeoutSeconds <= 0 {
		cfg.Render.TimeoutSeconds = defaults.Render.TimeoutSeconds
	}
	// Discord caps a single member list page at 1000.
	if cfg.Render.MemberPageSize <= 0 || cfg.Render.MemberPageSize > 1000 {
		cfg.Render.MemberPageSize = defaults.Render.MemberPageSize
	}
	if cfg.Stats.IntervalSeconds < 60 {
		cfg.Stats.IntervalSeconds = 60
	}
	if cfg.Stats.RenamesPerWindow <= 0 {
		cfg.Stats.RenamesPerWindow = defaults.Stats.RenamesPerWindow
	}
	if cfg.Stats.WindowSeconds <= 0 {
		cfg.Stats.WindowSeconds = defaults.Stats.WindowSeconds
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 0, 64); err == nil {
			return int(parsed)
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
