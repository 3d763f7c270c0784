// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // planner time zone must resolve in minimal images

	"github.com/robfig/cron/v3"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	AI             AIConfig
	Telegram       TelegramConfig
	Planner        PlannerConfig
	Batch          BatchConfig
	Telemetry      TelemetryConfig
	Log            LogConfig
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL runs
// the service on in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Migrate  bool
}

// CacheConfig holds Redis connection settings. An empty URL disables the
// analysis cache and live plan events.
type CacheConfig struct {
	URL        string
	ContextTTL time.Duration
}

// AIConfig holds configuration for the generation providers and call limits.
type AIConfig struct {
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
	DeepSeek         DeepSeekConfig
	Google           GoogleConfig
	Ollama           OllamaConfig
	OpenRouter       OpenRouterConfig
	Timeout          time.Duration
	Retries          int
	DailyTokenBudget int64
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// TelegramConfig holds Telegram Bot API settings for plan delivery.
type TelegramConfig struct {
	BotToken string
}

// PlannerConfig holds pipeline parameters.
type PlannerConfig struct {
	Params        planner.Config
	DefaultBudget int // minutes, used when a request gives no budget
	MaxBudget     int
	Timezone      string
}

// Location resolves the planner time zone.
func (p PlannerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}

// BatchConfig holds the scheduled batch settings.
type BatchConfig struct {
	Enabled     bool
	Schedule    string
	Concurrency int
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Exporter    string // "none", "stdout" or "otlp"
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	ServiceName string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	def := planner.DefaultConfig()

	contextTTL, err := envDuration("LEARN_CACHE_CONTEXT_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	aiTimeout, err := envDuration("LEARN_AI_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
			Migrate:  envBool("LEARN_DATABASE_MIGRATE", true),
		},
		Cache: CacheConfig{
			URL:        envStr("LEARN_CACHE_URL", ""),
			ContextTTL: contextTTL,
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("LEARN_AI_OPENAI_API_KEY", ""),
				Model:  envStr("LEARN_AI_OPENAI_MODEL", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("LEARN_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("LEARN_AI_ANTHROPIC_MODEL", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("LEARN_AI_DEEPSEEK_API_KEY", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("LEARN_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("LEARN_AI_GOOGLE_MODEL", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("LEARN_AI_OLLAMA_ENABLED", false),
				URL:     envStr("LEARN_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("LEARN_AI_OLLAMA_MODEL", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("LEARN_AI_OPENROUTER_API_KEY", ""),
			},
			Timeout:          aiTimeout,
			Retries:          envInt("LEARN_AI_RETRIES", 2),
			DailyTokenBudget: int64(envInt("LEARN_AI_DAILY_TOKEN_BUDGET", 0)),
		},
		Telegram: TelegramConfig{
			BotToken: envStr("LEARN_TELEGRAM_BOT_TOKEN", ""),
		},
		Planner: PlannerConfig{
			Params: planner.Config{
				MinAllocation:     envInt("LEARN_PLANNER_MIN_ALLOCATION", def.MinAllocation),
				MaxAllocation:     envInt("LEARN_PLANNER_MAX_ALLOCATION", def.MaxAllocation),
				MaxTopics:         envInt("LEARN_PLANNER_MAX_TOPICS", def.MaxTopics),
				FocusWindow:       envInt("LEARN_PLANNER_FOCUS_WINDOW", def.FocusWindow),
				ShortBreak:        envInt("LEARN_PLANNER_SHORT_BREAK", def.ShortBreak),
				LongBreak:         envInt("LEARN_PLANNER_LONG_BREAK", def.LongBreak),
				LongBreakEvery:    envInt("LEARN_PLANNER_LONG_BREAK_EVERY", def.LongBreakEvery),
				MasteryThreshold:  envFloat("LEARN_PLANNER_MASTERY_THRESHOLD", def.MasteryThreshold),
				StruggleThreshold: envFloat("LEARN_PLANNER_STRUGGLE_THRESHOLD", def.StruggleThreshold),
				DonationFraction:  envFloat("LEARN_PLANNER_DONATION_FRACTION", def.DonationFraction),
				PropagationFactor: envFloat("LEARN_PLANNER_PROPAGATION_FACTOR", def.PropagationFactor),
				RecentWindow:      envInt("LEARN_PLANNER_RECENT_WINDOW", def.RecentWindow),
			},
			DefaultBudget: envInt("LEARN_PLANNER_DEFAULT_BUDGET", 120),
			MaxBudget:     envInt("LEARN_PLANNER_MAX_BUDGET", 720),
			Timezone:      envStr("LEARN_PLANNER_TIMEZONE", "Asia/Kuala_Lumpur"),
		},
		Batch: BatchConfig{
			Enabled:     envBool("LEARN_BATCH_ENABLED", true),
			Schedule:    envStr("LEARN_BATCH_SCHEDULE", "0 6 * * *"),
			Concurrency: envInt("LEARN_BATCH_CONCURRENCY", 8),
		},
		Telemetry: TelemetryConfig{
			Exporter:    envStr("LEARN_TELEMETRY_EXPORTER", "none"),
			Endpoint:    envStr("LEARN_TELEMETRY_ENDPOINT", "localhost:4318"),
			Insecure:    envBool("LEARN_TELEMETRY_INSECURE", true),
			SampleRatio: envFloat("LEARN_TELEMETRY_SAMPLE_RATIO", 1),
			ServiceName: envStr("LEARN_TELEMETRY_SERVICE_NAME", "pai-planner"),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("LEARN_CURRICULUM_PATH", "./oss"),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Planner.Params.Validate(); err != nil {
		return fmt.Errorf("planner settings: %w", err)
	}

	if c.Planner.DefaultBudget <= 0 || c.Planner.DefaultBudget > c.Planner.MaxBudget {
		return fmt.Errorf("LEARN_PLANNER_DEFAULT_BUDGET must be in (0, %d], got %d", c.Planner.MaxBudget, c.Planner.DefaultBudget)
	}

	if _, err := c.Planner.Location(); err != nil {
		return fmt.Errorf("LEARN_PLANNER_TIMEZONE: %w", err)
	}

	if c.Batch.Enabled {
		if _, err := cron.ParseStandard(c.Batch.Schedule); err != nil {
			return fmt.Errorf("LEARN_BATCH_SCHEDULE %q: %w", c.Batch.Schedule, err)
		}
		if c.Batch.Concurrency <= 0 {
			return fmt.Errorf("LEARN_BATCH_CONCURRENCY must be positive, got %d", c.Batch.Concurrency)
		}
	}

	if c.AI.Retries < 0 {
		return fmt.Errorf("LEARN_AI_RETRIES must not be negative, got %d", c.AI.Retries)
	}

	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("LEARN_TELEMETRY_EXPORTER must be 'none', 'stdout' or 'otlp', got %q", c.Telemetry.Exporter)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
// Without one every generation stage runs on its fallback.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
