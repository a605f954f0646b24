package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/abdul-hamid-achik/tuner/packages/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultEnvironment string                       `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Environments       map[string]EnvironmentConfig `json:"environments,omitempty" yaml:"environments,omitempty"`
	EnvFile            string                       `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Timeout            int                          `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool                        `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int                          `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                        `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string                       `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	RateLimit          float64                      `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	Headers            map[string]string            `json:"headers,omitempty" yaml:"headers,omitempty"`     // Default headers for all requests
	Templating         *bool                        `json:"templating,omitempty" yaml:"templating,omitempty"`
	Bail               *bool                        `json:"bail,omitempty" yaml:"bail,omitempty"`
	NoColor            *bool                        `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Log                LogConfig                    `json:"log,omitempty" yaml:"log,omitempty"`
	Notify             NotifyConfig                 `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// NotifyConfig selects where run summaries are posted. No URL means no
// notifications.
type NotifyConfig struct {
	On           string `json:"on,omitempty" yaml:"on,omitempty"` // always, failure, success, recovery
	Slack        string `json:"slack,omitempty" yaml:"slack,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	Webhook      string `json:"webhook,omitempty" yaml:"webhook,omitempty"`
}

type EnvironmentConfig struct {
	URLPrefix string         `json:"urlPrefix" yaml:"urlPrefix"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetTemplating() bool {
	return getBool(c.Templating, false)
}

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return http.DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// ClientOptions translates transport settings for http.NewClient.
func (c *Config) ClientOptions() []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(c.TimeoutDuration()),
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	return opts
}

// LoggerConfig maps the log section onto logger.Config.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	if c.Log.File != "" {
		lc.Output = logger.OutputFile
		lc.FilePath = c.Log.File
	}
	lc.NoColor = c.GetNoColor()
	return lc
}

// Registry builds an environment registry and switches to name, or to
// DefaultEnvironment when name is empty.
func (c *Config) Registry(name string) (*env.Registry, error) {
	reg := env.NewRegistry()
	for envName, ec := range c.Environments {
		reg.Register(&env.Environment{Name: envName, URLPrefix: ec.URLPrefix, Variables: ec.Variables})
	}
	if name == "" {
		name = c.DefaultEnvironment
	}
	if name == "" {
		return reg, nil
	}
	if err := reg.Switch(name); err != nil {
		return nil, err
	}
	return reg, nil
}

// EnvironmentNames returns configured environment names, sorted.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"tuner.yaml",
	".tuner.yaml",
	"tuner.yml",
	"tuner.json",
	".tuner.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Templating != nil {
		result.Templating = other.Templating
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if other.Log.Level != "" {
		result.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		result.Log.Format = other.Log.Format
	}
	if other.Log.File != "" {
		result.Log.File = other.Log.File
	}

	if other.Notify.On != "" {
		result.Notify.On = other.Notify.On
	}
	if other.Notify.Slack != "" {
		result.Notify.Slack = other.Notify.Slack
	}
	if other.Notify.SlackChannel != "" {
		result.Notify.SlackChannel = other.Notify.SlackChannel
	}
	if other.Notify.Webhook != "" {
		result.Notify.Webhook = other.Notify.Webhook
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]EnvironmentConfig, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig writes c as YAML or JSON depending on the path extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
