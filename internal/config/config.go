package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "SOCIAL_POSTER_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmModelEnv      = "LLM_MODEL"
	searchAPIKeyEnv  = "SEARCH_API_KEY"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	sessionFileEnv   = "BROWSER_SESSION_FILE"
)

// Duration wraps time.Duration so YAML values like "6h" or "30m" parse.
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Schedule      ScheduleConfig     `yaml:"schedule"`
	Generation    GenerationConfig   `yaml:"generation"`
	Sources       SourcesConfig      `yaml:"sources"`
	LLM           LLMConfig          `yaml:"llm"`
	Search        SearchConfig       `yaml:"search"`
	Publish       PublishConfig      `yaml:"publish"`
	Notifications NotificationConfig `yaml:"notifications"`
	Run           RunConfig          `yaml:"run"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ScheduleConfig names the timing constants of the planner and the posting
// window of the orchestrator.
type ScheduleConfig struct {
	Interval Duration `yaml:"interval"`
	Jitter   Duration `yaml:"jitter"`
	Buffer   Duration `yaml:"buffer"`
	Grace    Duration `yaml:"grace"`
	// Bootstrap is "immediate" or "delayed"; it applies only when no post was
	// ever published.
	Bootstrap      string   `yaml:"bootstrap"`
	BootstrapDelay Duration `yaml:"bootstrapDelay"`
}

// GenerationConfig bounds the content generator.
type GenerationConfig struct {
	Attempts      int      `yaml:"attempts"`
	RetryDelay    Duration `yaml:"retryDelay"`
	MinBodyLength int      `yaml:"minBodyLength"`
	ContextBudget int      `yaml:"contextBudget"`
	PersonaFile   string   `yaml:"personaFile"`
}

// SourcesConfig selects where new post material comes from.
type SourcesConfig struct {
	// Mode is "articles", "discovery", or "auto" (pending articles first).
	Mode             string `yaml:"mode"`
	RecentTopicCount int    `yaml:"recentTopicCount"`
	SelectorAttempts int    `yaml:"selectorAttempts"`
}

// LLMConfig defines how to contact the text-generation API.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// SearchConfig wires the external search service.
type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// PublishConfig bounds the browser publication executor.
type PublishConfig struct {
	Retries     int      `yaml:"retries"`
	RetryDelay  Duration `yaml:"retryDelay"`
	SettleWait  Duration `yaml:"settleWait"`
	SessionFile string   `yaml:"sessionFile"`
	HomeURL     string   `yaml:"homeUrl"`
	ComposeURL  string   `yaml:"composeUrl"`
	Headless    bool     `yaml:"headless"`
}

// NotificationConfig encapsulates operator alert channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send alerts.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// RunConfig picks between a single pass and a ticker-driven watch loop.
type RunConfig struct {
	Mode          string   `yaml:"mode"`
	WatchInterval Duration `yaml:"watchInterval"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports unrecoverable configuration gaps. The process must exit
// non-zero before doing any work when this fails.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set %s)", databaseDSNEnv)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required (set %s)", llmAPIKeyEnv)
	}
	if c.Sources.Mode != "articles" && c.Search.APIKey == "" {
		return fmt.Errorf("search api key is required for %s mode (set %s)", c.Sources.Mode, searchAPIKeyEnv)
	}
	switch c.Schedule.Bootstrap {
	case "immediate", "delayed":
	default:
		return fmt.Errorf("schedule.bootstrap must be immediate or delayed, got %q", c.Schedule.Bootstrap)
	}
	switch c.Sources.Mode {
	case "articles", "discovery", "auto":
	default:
		return fmt.Errorf("sources.mode must be articles, discovery or auto, got %q", c.Sources.Mode)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(searchAPIKeyEnv); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(sessionFileEnv); v != "" {
		c.Publish.SessionFile = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Schedule.Interval != 0 {
		base.Schedule.Interval = override.Schedule.Interval
	}
	if override.Schedule.Jitter != 0 {
		base.Schedule.Jitter = override.Schedule.Jitter
	}
	if override.Schedule.Buffer != 0 {
		base.Schedule.Buffer = override.Schedule.Buffer
	}
	if override.Schedule.Grace != 0 {
		base.Schedule.Grace = override.Schedule.Grace
	}
	if override.Schedule.Bootstrap != "" {
		base.Schedule.Bootstrap = override.Schedule.Bootstrap
	}
	if override.Schedule.BootstrapDelay != 0 {
		base.Schedule.BootstrapDelay = override.Schedule.BootstrapDelay
	}

	if override.Generation.Attempts != 0 {
		base.Generation.Attempts = override.Generation.Attempts
	}
	if override.Generation.RetryDelay != 0 {
		base.Generation.RetryDelay = override.Generation.RetryDelay
	}
	if override.Generation.MinBodyLength != 0 {
		base.Generation.MinBodyLength = override.Generation.MinBodyLength
	}
	if override.Generation.ContextBudget != 0 {
		base.Generation.ContextBudget = override.Generation.ContextBudget
	}
	if override.Generation.PersonaFile != "" {
		base.Generation.PersonaFile = override.Generation.PersonaFile
	}

	if override.Sources.Mode != "" {
		base.Sources.Mode = override.Sources.Mode
	}
	if override.Sources.RecentTopicCount != 0 {
		base.Sources.RecentTopicCount = override.Sources.RecentTopicCount
	}
	if override.Sources.SelectorAttempts != 0 {
		base.Sources.SelectorAttempts = override.Sources.SelectorAttempts
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}

	if override.Search.Endpoint != "" {
		base.Search.Endpoint = override.Search.Endpoint
	}
	if override.Search.APIKey != "" {
		base.Search.APIKey = override.Search.APIKey
	}

	if override.Publish.Retries != 0 {
		base.Publish.Retries = override.Publish.Retries
	}
	if override.Publish.RetryDelay != 0 {
		base.Publish.RetryDelay = override.Publish.RetryDelay
	}
	if override.Publish.SettleWait != 0 {
		base.Publish.SettleWait = override.Publish.SettleWait
	}
	if override.Publish.SessionFile != "" {
		base.Publish.SessionFile = override.Publish.SessionFile
	}
	if override.Publish.HomeURL != "" {
		base.Publish.HomeURL = override.Publish.HomeURL
	}
	if override.Publish.ComposeURL != "" {
		base.Publish.ComposeURL = override.Publish.ComposeURL
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Run.Mode != "" {
		base.Run.Mode = override.Run.Mode
	}
	if override.Run.WatchInterval != 0 {
		base.Run.WatchInterval = override.Run.WatchInterval
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Logging:  LoggingConfig{Level: "info"},
		Schedule: ScheduleConfig{
			Interval:       Duration(6 * time.Hour),
			Jitter:         Duration(30 * time.Minute),
			Buffer:         Duration(30 * time.Minute),
			Grace:          Duration(2 * time.Hour),
			Bootstrap:      "delayed",
			BootstrapDelay: Duration(5 * time.Minute),
		},
		Generation: GenerationConfig{
			Attempts:      3,
			RetryDelay:    Duration(5 * time.Second),
			MinBodyLength: 40,
			ContextBudget: 6000,
			PersonaFile:   "persona.txt",
		},
		Sources: SourcesConfig{
			Mode:             "auto",
			RecentTopicCount: 7,
			SelectorAttempts: 5,
		},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Search: SearchConfig{
			Endpoint: "https://api.tavily.com/search",
		},
		Publish: PublishConfig{
			Retries:     2,
			RetryDelay:  Duration(10 * time.Second),
			SettleWait:  Duration(5 * time.Second),
			SessionFile: "session.json",
			HomeURL:     "https://x.com/home",
			ComposeURL:  "https://x.com/compose/post",
			Headless:    true,
		},
		Run: RunConfig{
			Mode:          "once",
			WatchInterval: Duration(10 * time.Minute),
		},
	}
}
