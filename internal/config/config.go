package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"MarineIntel/internal/domain"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MARINEINTEL_CONFIG"
	sourcesPathEnv  = "MARINEINTEL_SOURCES"
	llmAPIKeyEnv    = "MARINEINTEL_LLM_API_KEY"
	llmModelEnv     = "MARINEINTEL_LLM_MODEL"
	indexURLEnv     = "MARINEINTEL_INDEX_URL"
	listenAddrEnv   = "MARINEINTEL_LISTEN_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig    `yaml:"logging"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Fetch       FetchConfig      `yaml:"fetch"`
	Regulatory  RegulatoryConfig `yaml:"regulatory"`
	State       StateConfig      `yaml:"state"`
	Archive     ArchiveConfig    `yaml:"archive"`
	LLM         LLMConfig        `yaml:"llm"`
	Index       IndexConfig      `yaml:"index"`
	Server      ServerConfig     `yaml:"server"`
	SourcesPath string           `yaml:"sourcesPath"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines the poll cadence and the daily report slot.
type SchedulerConfig struct {
	PollInterval time.Duration  `yaml:"pollInterval"`
	ReportHour   int            `yaml:"reportHour"`
	ReportMinute int            `yaml:"reportMinute"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// FetchConfig bounds each source fetch and the item filters applied to it.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	SourceDelay   time.Duration `yaml:"sourceDelay"`
	LookbackHours int           `yaml:"lookbackHours"`
	SummaryLimit  int           `yaml:"summaryLimit"`
}

// Lookback returns the stale-item horizon as a duration.
func (f FetchConfig) Lookback() time.Duration {
	return time.Duration(f.LookbackHours) * time.Hour
}

// RegulatoryConfig points the monitor at the publication page it watches.
type RegulatoryConfig struct {
	SourceName  string `yaml:"sourceName"`
	PageURL     string `yaml:"pageUrl"`
	BaseURL     string `yaml:"baseUrl"`
	MinLinkText int    `yaml:"minLinkText"`
}

// StateConfig locates the durable state database and caps seen-set growth.
type StateConfig struct {
	Path     string `yaml:"path"`
	SeenCap  int    `yaml:"seenCap"`
	SeenTail int    `yaml:"seenTail"`
}

// ArchiveConfig locates report storage and the local fallback drop.
type ArchiveConfig struct {
	Dir         string `yaml:"dir"`
	FallbackDir string `yaml:"fallbackDir"`
}

// LLMConfig defines how to contact the report generation service.
type LLMConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
	MaxTokens    int    `yaml:"maxTokens"`
}

// IndexConfig describes the downstream index collaborator.
type IndexConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Origin   string   `yaml:"origin"`
	Topics   []string `yaml:"topics"`
}

// ServerConfig configures the status/control HTTP surface.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
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
	cfg.bindTimezone()

	return cfg
}

// LoadSources reads the feed source list. It is called fresh at the start of
// every poll cycle so the file can be edited without a restart; entries
// missing a name or URL are skipped rather than failing the whole list.
func LoadSources(path string) ([]domain.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}

	var doc struct {
		Sources []domain.Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}

	sources := make([]domain.Source, 0, len(doc.Sources))
	for _, src := range doc.Sources {
		if src.Name == "" || src.URL == "" {
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(sourcesPathEnv); v != "" {
		c.SourcesPath = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(indexURLEnv); v != "" {
		c.Index.Endpoint = v
	}

	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.ListenAddr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Scheduler.PollInterval > 0 {
		base.Scheduler.PollInterval = override.Scheduler.PollInterval
	}
	if override.Scheduler.ReportHour > 0 || override.Scheduler.ReportMinute > 0 {
		base.Scheduler.ReportHour = override.Scheduler.ReportHour
		base.Scheduler.ReportMinute = override.Scheduler.ReportMinute
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.SourceDelay > 0 {
		base.Fetch.SourceDelay = override.Fetch.SourceDelay
	}
	if override.Fetch.LookbackHours > 0 {
		base.Fetch.LookbackHours = override.Fetch.LookbackHours
	}
	if override.Fetch.SummaryLimit > 0 {
		base.Fetch.SummaryLimit = override.Fetch.SummaryLimit
	}

	if override.Regulatory.PageURL != "" {
		base.Regulatory = override.Regulatory
	}

	if override.State.Path != "" {
		base.State.Path = override.State.Path
	}
	if override.State.SeenCap > 0 {
		base.State.SeenCap = override.State.SeenCap
	}
	if override.State.SeenTail > 0 {
		base.State.SeenTail = override.State.SeenTail
	}

	if override.Archive.Dir != "" {
		base.Archive.Dir = override.Archive.Dir
	}
	if override.Archive.FallbackDir != "" {
		base.Archive.FallbackDir = override.Archive.FallbackDir
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
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}

	if override.Index.Endpoint != "" {
		base.Index = override.Index
	}

	if override.Server.ListenAddr != "" {
		base.Server = override.Server
	}

	if override.SourcesPath != "" {
		base.SourcesPath = override.SourcesPath
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Minute,
			ReportHour:   7,
			ReportMinute: 0,
			Timezone:     defaultTimezone,
			location:     tz,
		},
		Fetch: FetchConfig{
			Timeout:       20 * time.Second,
			SourceDelay:   time.Second,
			LookbackHours: 48,
			SummaryLimit:  500,
		},
		Regulatory: RegulatoryConfig{
			SourceName:  "IMO Publications",
			PageURL:     "https://www.imo.org/en/MediaCentre/Pages/WhatsNew.aspx",
			BaseURL:     "https://www.imo.org",
			MinLinkText: 10,
		},
		State: StateConfig{
			Path:     "marineintel.db",
			SeenCap:  5000,
			SeenTail: 2500,
		},
		Archive: ArchiveConfig{
			Dir:         "reports",
			FallbackDir: "reports/outbox",
		},
		LLM: LLMConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "You are a maritime regulatory analyst. Write a concise daily intelligence report from the item list, grouped by theme, citing each item's source and link.",
			MaxTokens:    2000,
		},
		Index: IndexConfig{
			Endpoint: "",
			Origin:   "marineintel",
			Topics:   []string{"maritime", "decarbonization", "regulation"},
		},
		Server:      ServerConfig{ListenAddr: ":8085"},
		SourcesPath: "sources.yaml",
	}
}
