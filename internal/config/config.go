package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "America/Los_Angeles"
	configPathEnv   = "BANANABOT_CONFIG"

	ModeStream = "stream"
	ModeOnce   = "once"

	RateLimitSkip  = "skip"
	RateLimitReply = "reply"
)

// Config holds high-level settings required across the application.
type Config struct {
	Mode          string              `yaml:"mode" validate:"oneof=stream once"`
	Logging       LoggingConfig       `yaml:"logging"`
	Reddit        RedditConfig        `yaml:"reddit"`
	Matcher       MatcherConfig       `yaml:"matcher"`
	Limits        LimitsConfig        `yaml:"limits"`
	Worker        WorkerConfig        `yaml:"worker"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	GitHub        GitHubConfig        `yaml:"github"`
	ElevenLabs    ElevenLabsConfig    `yaml:"elevenlabs"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Audit         AuditConfig         `yaml:"audit"`
	State         StateConfig         `yaml:"state"`
	Status        StatusConfig        `yaml:"status"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LoggingConfig controls the slog handler and the optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// RedditConfig carries the feed credentials and topic filter.
type RedditConfig struct {
	ClientID     string        `yaml:"clientId" validate:"required"`
	ClientSecret string        `yaml:"clientSecret" validate:"required"`
	UserAgent    string        `yaml:"userAgent" validate:"required"`
	Username     string        `yaml:"username" validate:"required"`
	Password     string        `yaml:"password" validate:"required"`
	Subreddits   []string      `yaml:"subreddits" validate:"min=1"`
	APIBase      string        `yaml:"apiBase"`
	TokenURL     string        `yaml:"tokenUrl"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// Scope joins the subreddits into a topic filter ("a+b").
func (r RedditConfig) Scope() string {
	return strings.Join(r.Subreddits, "+")
}

// MatcherConfig describes how mentions are recognised.
type MatcherConfig struct {
	Triggers           []string `yaml:"triggers"`
	Quotes             string   `yaml:"quotes"`
	DefaultInstruction string   `yaml:"defaultInstruction"`
}

// LimitsConfig groups the admission policy.
type LimitsConfig struct {
	HourlyCap        int      `yaml:"hourlyCap"`
	DailyBudget      int      `yaml:"dailyBudget"`
	CooldownSeconds  int      `yaml:"cooldownSeconds" validate:"gte=0"`
	Allowlist        []string `yaml:"allowlist"`
	RateLimitMode    string   `yaml:"rateLimitMode" validate:"oneof=skip reply"`
	RateLimitMessage string   `yaml:"rateLimitMessage"`
	CooldownMessage  string   `yaml:"cooldownMessage"`
	Timezone         string   `yaml:"timezone"`

	location *time.Location `yaml:"-"`
}

// Cooldown returns the per-tenant spacing.
func (l LimitsConfig) Cooldown() time.Duration {
	return time.Duration(l.CooldownSeconds) * time.Second
}

// Location resolves the budget timezone string to a time.Location.
func (l LimitsConfig) Location() *time.Location {
	if l.location != nil {
		return l.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkerConfig tunes the supervisor loop.
type WorkerConfig struct {
	Pacing            time.Duration `yaml:"pacing"`
	ReconnectBackoff  time.Duration `yaml:"reconnectBackoff"`
	PublishRetryDelay time.Duration `yaml:"publishRetryDelay"`
	MaxPerRun         int           `yaml:"maxPerRun"`
	RecentLimit       int           `yaml:"recentLimit"`
	DigestInterval    time.Duration `yaml:"digestInterval"`
}

// FetchConfig bounds attachment downloads.
type FetchConfig struct {
	MaxBytes          int64         `yaml:"maxBytes" validate:"gt=0"`
	AllowedExtensions []string      `yaml:"allowedExtensions" validate:"min=1"`
	Timeout           time.Duration `yaml:"timeout"`
	ResolvePages      bool          `yaml:"resolvePages"`
}

// GeminiConfig defines how to contact the image model. ReferenceImage is an
// optional file blended into every edit.
type GeminiConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model" validate:"required"`
	APIKey         string        `yaml:"apiKey" validate:"required"`
	Timeout        time.Duration `yaml:"timeout"`
	ReferenceImage string        `yaml:"referenceImage"`
}

// GitHubConfig points at the repository that hosts published artifacts.
type GitHubConfig struct {
	APIBase string        `yaml:"apiBase"`
	Token   string        `yaml:"token" validate:"required"`
	Repo    string        `yaml:"repo" validate:"required,contains=/"`
	Branch  string        `yaml:"branch"`
	Timeout time.Duration `yaml:"timeout"`
}

// ElevenLabsConfig enables optional narration when APIKey is set.
type ElevenLabsConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	VoiceID  string        `yaml:"voiceId"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates operator channels (Telegram).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// AuditConfig points at an optional CloudEvents sink.
type AuditConfig struct {
	SinkURL string `yaml:"sinkUrl"`
	Source  string `yaml:"source"`
}

// StateConfig selects the durable state backend.
type StateConfig struct {
	DSN string `yaml:"dsn" validate:"required"`
}

// StatusConfig enables the status endpoint when Addr is set.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// ObservabilityConfig mirrors the OpenTelemetry switches.
type ObservabilityConfig struct {
	Enabled        bool    `yaml:"enabled"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint"`
	ServiceName    string  `yaml:"serviceName"`
	ServiceVersion string  `yaml:"serviceVersion"`
	SamplingRatio  float64 `yaml:"samplingRatio"`
	MetricsConsole bool    `yaml:"metricsConsole"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := cfg
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	env := viper.New()
	env.AutomaticEnv()
	cfg.applyEnvOverrides(env)
	cfg.normalize()
	cfg.bindTimezone()

	return cfg
}

// Validate reports missing credentials and malformed settings.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
}

func (c *Config) applyEnvOverrides(env *viper.Viper) {
	setString(env, "bananabot_mode", &c.Mode)
	setString(env, "log_level", &c.Logging.Level)
	setString(env, "log_file", &c.Logging.File)

	setString(env, "reddit_client_id", &c.Reddit.ClientID)
	setString(env, "reddit_client_secret", &c.Reddit.ClientSecret)
	setString(env, "reddit_user_agent", &c.Reddit.UserAgent)
	setString(env, "reddit_username", &c.Reddit.Username)
	setString(env, "reddit_password", &c.Reddit.Password)
	if v := strings.TrimSpace(env.GetString("subreddits")); v != "" {
		c.Reddit.Subreddits = parseList(strings.ReplaceAll(v, "+", ","))
	}

	setList(env, "triggers", &c.Matcher.Triggers)
	setString(env, "default_instruction", &c.Matcher.DefaultInstruction)

	setInt(env, "max_calls_per_hour", &c.Limits.HourlyCap)
	setInt(env, "max_calls_per_day", &c.Limits.DailyBudget)
	setInt(env, "user_cooldown_seconds", &c.Limits.CooldownSeconds)
	setList(env, "allowed_users", &c.Limits.Allowlist)
	setString(env, "rate_limit_mode", &c.Limits.RateLimitMode)
	setString(env, "rate_limit_message", &c.Limits.RateLimitMessage)
	setString(env, "cooldown_message", &c.Limits.CooldownMessage)
	setString(env, "budget_timezone", &c.Limits.Timezone)

	setInt(env, "max_per_run", &c.Worker.MaxPerRun)

	setString(env, "gemini_api_key", &c.Gemini.APIKey)
	setString(env, "gemini_model", &c.Gemini.Model)
	setString(env, "gemini_reference_image", &c.Gemini.ReferenceImage)

	setString(env, "github_token", &c.GitHub.Token)
	setString(env, "github_repo", &c.GitHub.Repo)
	setString(env, "github_branch", &c.GitHub.Branch)

	setString(env, "elevenlabs_api_key", &c.ElevenLabs.APIKey)
	setString(env, "elevenlabs_voice_id", &c.ElevenLabs.VoiceID)

	setString(env, "telegram_bot_token", &c.Notifications.Telegram.BotToken)
	setString(env, "telegram_chat_id", &c.Notifications.Telegram.ChatID)
	setString(env, "audit_sink_url", &c.Audit.SinkURL)

	setString(env, "bananabot_state_dsn", &c.State.DSN)
	setString(env, "bananabot_status_addr", &c.Status.Addr)

	setString(env, "otel_exporter_otlp_endpoint", &c.Observability.OTLPEndpoint)
	setString(env, "otel_service_name", &c.Observability.ServiceName)
	if env.GetBool("bananabot_otel_enabled") {
		c.Observability.Enabled = true
	}
	if env.GetBool("bananabot_otel_metrics_console") {
		c.Observability.MetricsConsole = true
	}
}

func (c *Config) normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Limits.RateLimitMode = strings.ToLower(strings.TrimSpace(c.Limits.RateLimitMode))
	c.Fetch.AllowedExtensions = lo.Map(c.Fetch.AllowedExtensions, func(ext string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	})
	if c.Observability.OTLPEndpoint != "" || c.Observability.MetricsConsole {
		c.Observability.Enabled = true
	}
	if c.Observability.SamplingRatio < 0 {
		c.Observability.SamplingRatio = 0
	}
	if c.Observability.SamplingRatio > 1 {
		c.Observability.SamplingRatio = 1
	}
}

func (c *Config) bindTimezone() {
	tz := c.Limits.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Limits.location = loc
}

func setString(env *viper.Viper, key string, dst *string) {
	if v := strings.TrimSpace(env.GetString(key)); v != "" {
		*dst = v
	}
}

func setInt(env *viper.Viper, key string, dst *int) {
	raw := strings.TrimSpace(env.GetString(key))
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, keeping %d", strings.ToUpper(key), raw, *dst)
		return
	}
	*dst = n
}

func setList(env *viper.Viper, key string, dst *[]string) {
	if v := strings.TrimSpace(env.GetString(key)); v != "" {
		*dst = parseList(v)
	}
}

func parseList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Uniq(lo.Compact(items))
}

func defaultConfig() Config {
	return Config{
		Mode:    ModeStream,
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14},
		Reddit: RedditConfig{
			Subreddits:   []string{"test"},
			APIBase:      "https://oauth.reddit.com",
			TokenURL:     "https://www.reddit.com/api/v1/access_token",
			PollInterval: 5 * time.Second,
		},
		Matcher: MatcherConfig{Triggers: []string{"u/bananas", "@bananas"}},
		Limits: LimitsConfig{
			HourlyCap:        10,
			DailyBudget:      95,
			CooldownSeconds:  120,
			RateLimitMode:    RateLimitSkip,
			RateLimitMessage: "🍌 I'm at capacity right now. Try again in a bit!",
			CooldownMessage:  "🍌 cooldown active — try again soon!",
			Timezone:         defaultTimezone,
		},
		Worker: WorkerConfig{
			Pacing:            6 * time.Second,
			ReconnectBackoff:  10 * time.Second,
			PublishRetryDelay: 2 * time.Second,
			MaxPerRun:         3,
			RecentLimit:       200,
			DigestInterval:    24 * time.Hour,
		},
		Fetch: FetchConfig{
			MaxBytes:          5 * 1024 * 1024,
			AllowedExtensions: []string{"jpg", "jpeg", "png"},
			Timeout:           30 * time.Second,
			ResolvePages:      true,
		},
		Gemini: GeminiConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Model:    "gemini-2.5-flash-image-preview",
			Timeout:  60 * time.Second,
		},
		GitHub: GitHubConfig{
			APIBase: "https://api.github.com",
			Branch:  "main",
			Timeout: 30 * time.Second,
		},
		ElevenLabs: ElevenLabsConfig{
			Endpoint: "https://api.elevenlabs.io",
			VoiceID:  "21m00Tcm4TlvDq8ikWAM",
			Model:    "eleven_multilingual_v2",
			Timeout:  45 * time.Second,
		},
		Audit: AuditConfig{Source: "bananabot"},
		State: StateConfig{DSN: "file:.config/bananas_state.json"},
		Observability: ObservabilityConfig{
			ServiceName:    "bananabot",
			ServiceVersion: "dev",
			SamplingRatio:  1,
		},
	}
}
