// Package config provides configuration management for the A4S control plane.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the control plane.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Backbone  BackboneConfig  `mapstructure:"backbone"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DockerConfig holds Docker client and managed-container configuration.
type DockerConfig struct {
	Host            string `mapstructure:"host"`
	APIVersion      string `mapstructure:"apiVersion"`
	DefaultNetwork  string `mapstructure:"defaultNetwork"`
	APIBaseURL      string `mapstructure:"apiBaseUrl"`
	AgentGatewayURL string `mapstructure:"agentGatewayUrl"`
	ContainerPort   int    `mapstructure:"containerPort"`
}

// RegistryConfig holds the agent/channel persistence configuration.
type RegistryConfig struct {
	SQLitePath string `mapstructure:"sqlitePath"`
}

// SchedulerConfig holds agent-scheduler timing configuration.
type SchedulerConfig struct {
	IdleTimeoutSeconds       int     `mapstructure:"idleTimeoutSeconds"`
	ReaperIntervalSeconds    int     `mapstructure:"reaperIntervalSeconds"`
	ReadinessTimeoutSeconds  float64 `mapstructure:"readinessTimeoutSeconds"`
	ReadinessPollIntervalSec float64 `mapstructure:"readinessPollIntervalSeconds"`
	ReadinessPerAttemptSec   float64 `mapstructure:"readinessPerAttemptSeconds"`
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s *SchedulerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// ReaperInterval returns the configured reaper interval as a duration.
func (s *SchedulerConfig) ReaperInterval() time.Duration {
	return time.Duration(s.ReaperIntervalSeconds) * time.Second
}

// ReadinessTimeout returns the overall readiness-poll deadline.
func (s *SchedulerConfig) ReadinessTimeout() time.Duration {
	return time.Duration(s.ReadinessTimeoutSeconds * float64(time.Second))
}

// ReadinessPollInterval returns the sleep between readiness polls.
func (s *SchedulerConfig) ReadinessPollInterval() time.Duration {
	return time.Duration(s.ReadinessPollIntervalSec * float64(time.Second))
}

// ReadinessPerAttemptTimeout returns the per-GET timeout used while polling readiness.
func (s *SchedulerConfig) ReadinessPerAttemptTimeout() time.Duration {
	return time.Duration(s.ReadinessPerAttemptSec * float64(time.Second))
}

// ProxyConfig holds the agent reverse-proxy and A2A call timeouts.
type ProxyConfig struct {
	TotalTimeoutSeconds   int `mapstructure:"totalTimeoutSeconds"`
	ConnectTimeoutSeconds int `mapstructure:"connectTimeoutSeconds"`
	A2ATimeoutSeconds     int `mapstructure:"a2aTimeoutSeconds"`
}

// TotalTimeout returns the full proxy round-trip timeout.
func (p *ProxyConfig) TotalTimeout() time.Duration {
	return time.Duration(p.TotalTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the proxy dial timeout.
func (p *ProxyConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutSeconds) * time.Second
}

// A2ATimeout returns the timeout applied to outbound A2A calls made by the
// channel orchestrator.
func (p *ProxyConfig) A2ATimeout() time.Duration {
	return time.Duration(p.A2ATimeoutSeconds) * time.Second
}

// BackboneConfig holds the configuration used to auto-register the backbone agent.
type BackboneConfig struct {
	AgentID       string `mapstructure:"agentId"`
	Image         string `mapstructure:"image"`
	ModelProvider string `mapstructure:"modelProvider"`
	ModelID       string `mapstructure:"modelId"`
	Instruction   string `mapstructure:"instruction"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("A4S_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("docker.host", DefaultDockerHost())
	v.SetDefault("docker.apiVersion", "")
	v.SetDefault("docker.defaultNetwork", "a4s-network")
	v.SetDefault("docker.apiBaseUrl", "http://host.docker.internal:8000")
	v.SetDefault("docker.agentGatewayUrl", "http://host.docker.internal:8080")
	v.SetDefault("docker.containerPort", 8000)

	v.SetDefault("registry.sqlitePath", "./a4s.db")

	v.SetDefault("scheduler.idleTimeoutSeconds", 300)
	v.SetDefault("scheduler.reaperIntervalSeconds", 30)
	v.SetDefault("scheduler.readinessTimeoutSeconds", 30.0)
	v.SetDefault("scheduler.readinessPollIntervalSeconds", 0.5)
	v.SetDefault("scheduler.readinessPerAttemptSeconds", 2.0)

	v.SetDefault("proxy.totalTimeoutSeconds", 300)
	v.SetDefault("proxy.connectTimeoutSeconds", 30)
	v.SetDefault("proxy.a2aTimeoutSeconds", 120)

	v.SetDefault("backbone.agentId", "backbone")
	v.SetDefault("backbone.image", "")
	v.SetDefault("backbone.modelProvider", "")
	v.SetDefault("backbone.modelId", "")
	v.SetDefault("backbone.instruction", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// DefaultDockerHost returns the platform-appropriate Docker socket path.
// Respects DOCKER_HOST env var as override (standard Docker convention).
func DefaultDockerHost() string {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return host
	}
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/docker_engine"
	}
	return "unix:///var/run/docker.sock"
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix A4S_ with snake_case naming.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("A4S")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("logging.level", "A4S_LOG_LEVEL")
	_ = v.BindEnv("backbone.agentId", "A4S_BACKBONE_AGENT_ID")
	_ = v.BindEnv("docker.defaultNetwork", "A4S_NETWORK")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/a4s/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.Scheduler.IdleTimeoutSeconds <= 0 {
		errs = append(errs, "scheduler.idleTimeoutSeconds must be positive")
	}
	if cfg.Scheduler.ReaperIntervalSeconds <= 0 {
		errs = append(errs, "scheduler.reaperIntervalSeconds must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Backbone.AgentID == "" {
		errs = append(errs, "backbone.agentId must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
