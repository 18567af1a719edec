package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for NORA local.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	MQTT           MQTTConfig           `yaml:"mqtt"`
	API            APIConfig            `yaml:"api"`
	InfluxDB       InfluxDBConfig       `yaml:"influxdb"`
	Logging        LoggingConfig        `yaml:"logging"`
	LocalExecution LocalExecutionConfig `yaml:"local_execution"`
	Devices        DevicesConfig        `yaml:"devices"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains admin HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LocalExecutionConfig contains the local discovery and command settings.
type LocalExecutionConfig struct {
	Enabled bool `yaml:"enabled"`

	// Host restricts the listeners to one address. Empty binds all
	// interfaces, which broadcast discovery requires.
	Host string `yaml:"host"`

	DiscoveryPort int `yaml:"discovery_port"`
	ReplyPort     int `yaml:"reply_port"`
	CommandPort   int `yaml:"command_port"`

	// GracePeriod is how long the listeners outlive the last device.
	GracePeriod time.Duration `yaml:"grace_period"`

	// CommandTimeout bounds each device command. Zero disables the bound.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// Audit records every local command in the audit log.
	Audit bool `yaml:"audit"`
}

// DevicesConfig lists the devices exposed by this agent.
type DevicesConfig struct {
	Locks  []LockConfig  `yaml:"locks"`
	Scenes []SceneConfig `yaml:"scenes"`
}

// LockConfig configures one lock.
type LockConfig struct {
	ID                    string `yaml:"id"`
	Name                  string `yaml:"name"`
	RoomHint              string `yaml:"room_hint"`
	ErrorIfStateUnchanged bool   `yaml:"error_if_state_unchanged"`
}

// SceneConfig configures one scene.
type SceneConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	RoomHint   string `yaml:"room_hint"`
	Reversible bool   `yaml:"reversible"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NORA_LOCAL_SECTION_KEY
// For example: NORA_LOCAL_DATABASE_PATH, NORA_LOCAL_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/noralocal.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nora-local",
			},
			QoS:         1,
			TopicPrefix: "nora",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		LocalExecution: LocalExecutionConfig{
			Enabled:       true,
			DiscoveryPort: 6988,
			ReplyPort:     6989,
			CommandPort:   6987,
			GracePeriod:   time.Second,
			Audit:         true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NORA_LOCAL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("NORA_LOCAL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NORA_LOCAL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NORA_LOCAL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NORA_LOCAL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NORA_LOCAL_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("NORA_LOCAL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("NORA_LOCAL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Local execution
	if v := os.Getenv("NORA_LOCAL_LOCAL_EXECUTION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LocalExecution.Enabled = b
		}
	}
	if v := os.Getenv("NORA_LOCAL_LOCAL_EXECUTION_HOST"); v != "" {
		cfg.LocalExecution.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Enabled && !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.LocalExecution.validate()...)
	errs = append(errs, c.Devices.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (l LocalExecutionConfig) validate() []string {
	if !l.Enabled {
		return nil
	}

	var errs []string
	ports := map[string]int{
		"discovery_port": l.DiscoveryPort,
		"reply_port":     l.ReplyPort,
		"command_port":   l.CommandPort,
	}
	for _, name := range []string{"discovery_port", "reply_port", "command_port"} {
		if !validPort(ports[name]) {
			errs = append(errs, "local_execution."+name+" must be between 1 and 65535")
		}
	}
	if l.DiscoveryPort == l.ReplyPort || l.DiscoveryPort == l.CommandPort || l.ReplyPort == l.CommandPort {
		errs = append(errs, "local_execution ports must be distinct")
	}
	if l.GracePeriod < 0 {
		errs = append(errs, "local_execution.grace_period must not be negative")
	}
	if l.CommandTimeout < 0 {
		errs = append(errs, "local_execution.command_timeout must not be negative")
	}
	return errs
}

func (d DevicesConfig) validate() []string {
	var errs []string
	seen := make(map[string]struct{}, len(d.Locks)+len(d.Scenes))

	check := func(kind string, i int, id, name string) {
		switch {
		case id == "":
			errs = append(errs, fmt.Sprintf("devices.%s[%d].id is required", kind, i))
		case name == "":
			errs = append(errs, fmt.Sprintf("devices.%s[%d].name is required", kind, i))
		}
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Sprintf("devices.%s[%d].id %q is not unique", kind, i, id))
		}
		seen[id] = struct{}{}
	}

	for i, l := range d.Locks {
		check("locks", i, l.ID, l.Name)
	}
	for i, s := range d.Scenes {
		check("scenes", i, s.ID, s.Name)
	}
	return errs
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// DeviceCount returns the number of configured devices.
func (c *Config) DeviceCount() int {
	return len(c.Devices.Locks) + len(c.Devices.Scenes)
}
