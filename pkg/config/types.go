package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent difyvoice configuration stored as
// config.toml in the .difyvoice/ directory. The TOML layout uses sections for
// logical grouping. Credentials are never stored here: DIFY_API_KEY lives in
// the agent's env file.
type Config struct {
	Version     int               `toml:"version"`
	Dify        DifyConfig        `toml:"dify"`
	Agent       AgentConfig       `toml:"agent"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
	API         APIConfig         `toml:"api"`
	Worker      WorkerConfig      `toml:"worker"`
}

// DifyConfig holds settings for the streaming Dify adapter.
type DifyConfig struct {
	// BaseURL is the full chat-messages endpoint. DIFY_BASE_URL in the
	// env file takes precedence.
	BaseURL string `toml:"base_url,omitempty"`
	User    string `toml:"user,omitempty"`

	// Timeout bounds a whole streaming call, as a Go duration string.
	// "0" disables it.
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default when unset.
func (d DifyConfig) TimeoutDuration() (time.Duration, error) {
	if d.Timeout == "" {
		return time.ParseDuration(defaultDifyTimeout)
	}
	timeout, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid value for dify.timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("invalid value for dify.timeout: %s is negative", d.Timeout)
	}
	return timeout, nil
}

// AgentConfig holds persona settings. The env file values (AGENT_NAME,
// USERNAME, VOICE) override these.
type AgentConfig struct {
	Name     string `toml:"name,omitempty"`
	Username string `toml:"username,omitempty"`
	Voice    string `toml:"voice,omitempty"`
	EnvFile  string `toml:"env_file,omitempty"`
}

// StorageConfig holds metrics storage settings shared by chat and serve.
// PostgresDSN wins over SQLitePath when both are set.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig holds metrics event publishing settings.
type EventStreamConfig struct {
	// KafkaBrokers is a comma separated broker list. Empty disables Kafka.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits KafkaBrokers into a trimmed list, dropping empty entries.
func (e EventStreamConfig) Brokers() []string {
	return SplitList(e.KafkaBrokers)
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// WorkerConfig holds metrics worker pool settings.
type WorkerConfig struct {
	NumWorkers uint `toml:"num_workers,omitempty"`
	QueueSize  uint `toml:"queue_size,omitempty"`
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"dify.base_url": stringKey(func(c *Config) *string { return &c.Dify.BaseURL }),
	"dify.user":     stringKey(func(c *Config) *string { return &c.Dify.User }),
	"dify.timeout": {
		get: func(c *Config) string { return c.Dify.Timeout },
		set: func(c *Config, v string) error {
			if _, err := (DifyConfig{Timeout: v}).TimeoutDuration(); err != nil {
				return err
			}
			c.Dify.Timeout = v
			return nil
		},
	},
	"agent.name":                stringKey(func(c *Config) *string { return &c.Agent.Name }),
	"agent.username":            stringKey(func(c *Config) *string { return &c.Agent.Username }),
	"agent.voice":               stringKey(func(c *Config) *string { return &c.Agent.Voice }),
	"agent.env_file":            stringKey(func(c *Config) *string { return &c.Agent.EnvFile }),
	"storage.sqlite_path":       stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":      stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.EventStream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.EventStream.KafkaTopic }),
	"api.listen":                stringKey(func(c *Config) *string { return &c.API.Listen }),
	"worker.num_workers":        uintKey("worker.num_workers", func(c *Config) *uint { return &c.Worker.NumWorkers }),
	"worker.queue_size":         uintKey("worker.queue_size", func(c *Config) *uint { return &c.Worker.QueueSize }),
}
