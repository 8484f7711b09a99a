package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"loralocate/strutil"
)

// Config represents the complete estimator configuration
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Console   ConsoleConfig   `yaml:"console"`
	Logging   LoggingConfig   `yaml:"logging"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// DatasetConfig points at the tracker export and the data-quality checks run
// over it before estimation.
type DatasetConfig struct {
	Path              string        `yaml:"path"`
	URL               string        `yaml:"url"`           // optional; refreshes Path before loading
	FetchTimeout      time.Duration `yaml:"fetch_timeout"` // applies to the URL refresh only
	BlockedHotspots   []string      `yaml:"blocked_hotspots"`
	MisplacementMiles float64       `yaml:"misplacement_miles"` // flag hotspots farther than this from truth
	MisplacementRSSI  float64       `yaml:"misplacement_rssi"`  // ...that still report RSSI above this
}

// OpenAIConfig configures the chat-completions oracle.
type OpenAIConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Endpoint     string        `yaml:"endpoint"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	SystemPrompt string        `yaml:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EstimatorConfig controls the per-event retry loop.
type EstimatorConfig struct {
	MaxAttempts         int           `yaml:"max_attempts"`
	Cooldown            time.Duration `yaml:"cooldown"`
	PromptPreviewEvents int           `yaml:"prompt_preview_events"`
	WarnErrorMiles      float64       `yaml:"warn_error_miles"`
	Limit               int           `yaml:"limit"`
	Preamble            string        `yaml:"preamble"`
}

// ConsoleConfig contains terminal output settings
type ConsoleConfig struct {
	WrapWidth int `yaml:"wrap_width"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	Level         string `yaml:"level"`
}

// RecorderConfig controls the SQLite results database.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig controls publishing of per-event estimates.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// TracingConfig toggles span export to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns settings that run a full estimation against
// data.json with console output only.
func DefaultConfig() Config {
	return Config{
		Dataset: DatasetConfig{
			Path:              "data.json",
			FetchTimeout:      30 * time.Second,
			MisplacementMiles: 10,
			MisplacementRSSI:  -95,
		},
		OpenAI: OpenAIConfig{
			Model:        "gpt-3.5-turbo",
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			SystemPrompt: "You are a helpful assistant.",
			Timeout:      60 * time.Second,
		},
		Estimator: EstimatorConfig{
			MaxAttempts:         16,
			Cooldown:            time.Second,
			PromptPreviewEvents: 3,
			WarnErrorMiles:      5,
		},
		Console: ConsoleConfig{WrapWidth: 60},
		Logging: LoggingConfig{
			Dir:           "data/logs",
			RetentionDays: 7,
			Level:         "info",
		},
		Recorder: RecorderConfig{Path: "data/results.db"},
		Metrics:  MetricsConfig{Listen: ":9108"},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			Topic:    "loralocate/estimates",
			ClientID: "loralocate",
		},
	}
}

// normalize fills defaults for zeroed or invalid values.
func (c *Config) normalize() {
	if c == nil {
		return
	}
	def := DefaultConfig()
	c.Dataset.Path = strings.TrimSpace(c.Dataset.Path)
	if c.Dataset.Path == "" {
		c.Dataset.Path = def.Dataset.Path
	}
	if c.Dataset.MisplacementMiles <= 0 {
		c.Dataset.MisplacementMiles = def.Dataset.MisplacementMiles
	}
	c.Dataset.URL = strings.TrimSpace(c.Dataset.URL)
	if c.Dataset.FetchTimeout <= 0 {
		c.Dataset.FetchTimeout = def.Dataset.FetchTimeout
	}
	c.Dataset.BlockedHotspots = strutil.CompactList(c.Dataset.BlockedHotspots)

	if strings.TrimSpace(c.OpenAI.Model) == "" {
		c.OpenAI.Model = def.OpenAI.Model
	}
	if strings.TrimSpace(c.OpenAI.Endpoint) == "" {
		c.OpenAI.Endpoint = def.OpenAI.Endpoint
	}
	if strings.TrimSpace(c.OpenAI.SystemPrompt) == "" {
		c.OpenAI.SystemPrompt = def.OpenAI.SystemPrompt
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = def.OpenAI.Timeout
	}
	if c.OpenAI.MaxTokens < 0 {
		c.OpenAI.MaxTokens = 0
	}

	if c.Estimator.MaxAttempts <= 0 {
		c.Estimator.MaxAttempts = def.Estimator.MaxAttempts
	}
	// A negative cooldown disables the pause; only zero means "unset".
	if c.Estimator.Cooldown == 0 {
		c.Estimator.Cooldown = def.Estimator.Cooldown
	}
	if c.Estimator.PromptPreviewEvents < 0 {
		c.Estimator.PromptPreviewEvents = 0
	}
	if c.Estimator.WarnErrorMiles < 0 {
		c.Estimator.WarnErrorMiles = 0
	}
	if c.Estimator.Limit < 0 {
		c.Estimator.Limit = 0
	}

	if c.Console.WrapWidth <= 0 {
		c.Console.WrapWidth = def.Console.WrapWidth
	}

	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = def.Logging.RetentionDays
	}
	c.Logging.Level = strutil.NormalizeLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}

	if strings.TrimSpace(c.Recorder.Path) == "" {
		c.Recorder.Path = def.Recorder.Path
	}
	if strings.TrimSpace(c.Metrics.Listen) == "" {
		c.Metrics.Listen = def.Metrics.Listen
	}
	if strings.TrimSpace(c.MQTT.Broker) == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	c.MQTT.Topic = strings.TrimRight(strings.TrimSpace(c.MQTT.Topic), "/")
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if strings.TrimSpace(c.MQTT.ClientID) == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.QoS > 2 {
		c.MQTT.QoS = 1
	}
}

// Load reads configuration from a YAML file, or from every *.yaml/*.yml file
// in a directory merged in lexical order. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		cfg.normalize()
		return &cfg, nil
	}

	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}
	cfg.normalize()
	return &cfg, nil
}

func configFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list config dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files in config dir %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Dataset: %s\n", c.Dataset.Path)
	if c.Dataset.URL != "" {
		fmt.Printf("Dataset source: %s (timeout %s)\n", c.Dataset.URL, c.Dataset.FetchTimeout)
	}
	if len(c.Dataset.BlockedHotspots) > 0 {
		fmt.Printf("Blocked hotspots: %s\n", strings.Join(c.Dataset.BlockedHotspots, ", "))
	}
	fmt.Printf("Oracle: %s (timeout %s, cooldown %s)\n", c.OpenAI.Model, c.OpenAI.Timeout, c.Estimator.Cooldown)
	limitDesc := "all"
	if c.Estimator.Limit > 0 {
		limitDesc = fmt.Sprintf("%d", c.Estimator.Limit)
	}
	fmt.Printf("Estimator: max attempts %d, events %s\n", c.Estimator.MaxAttempts, limitDesc)
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (level %s, keep %d days)\n", c.Logging.Dir, c.Logging.Level, c.Logging.RetentionDays)
	}
	if c.Recorder.Enabled {
		fmt.Printf("Recorder: %s\n", c.Recorder.Path)
	}
	if c.Metrics.Enabled {
		fmt.Printf("Metrics: %s/metrics\n", c.Metrics.Listen)
	}
	if c.MQTT.Enabled {
		fmt.Printf("MQTT: %s (topic: %s)\n", c.MQTT.Broker, c.MQTT.Topic)
	}
	if c.Tracing.Enabled {
		fmt.Println("Tracing: stdout")
	}
}
