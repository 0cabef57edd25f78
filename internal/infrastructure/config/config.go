package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the HomeSync node agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Loop      LoopConfig      `yaml:"loop"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this node.
type DeviceConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Project string `yaml:"project"`
}

// NetworkConfig describes the network link the node depends on.
type NetworkConfig struct {
	// Interface is the host interface that must be up before the broker is
	// dialled. Empty means the link is assumed to be always available.
	Interface string `yaml:"interface"`

	// SSID, when set, makes Interface a wireless link that joins this
	// network through NetworkManager at boot. Password may be empty for an
	// open network.
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`

	// ConnectTimeout bounds link bring-up (milliseconds). After it elapses
	// the agent exits and relies on its supervisor to restart it.
	ConnectTimeout int `yaml:"connect_timeout_ms"`

	// PollInterval is the delay between link checks during bring-up (milliseconds).
	PollInterval int `yaml:"poll_interval_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`
	Topics MQTTTopicsConfig `yaml:"topics"`

	// ReconnectDelay is the minimum time between session attempts (milliseconds).
	ReconnectDelay int `yaml:"reconnect_delay_ms"`

	// ConnectTimeout bounds one session attempt (milliseconds). The control
	// loop is blocked for at most this long per attempt.
	ConnectTimeout int `yaml:"connect_timeout_ms"`

	// InboxSize is the number of inbound messages buffered between polls.
	InboxSize int `yaml:"inbox_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`

	// InsecureSkipVerify disables certificate validation. POC brokers only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTopicsConfig holds the per-device topic roots.
type MQTTTopicsConfig struct {
	Telemetry string `yaml:"telemetry"`
	Command   string `yaml:"command"`
	Status    string `yaml:"status"`
}

// TelemetryConfig controls the periodic sampling cycle.
type TelemetryConfig struct {
	// Interval between sensor samples (milliseconds).
	Interval int `yaml:"interval_ms"`

	// Channels lists the measurement kinds published each cycle.
	Channels []string `yaml:"channels"`
}

// ActuatorConfig describes the relay output.
type ActuatorConfig struct {
	// Driver is "memory" or "sysfs".
	Driver    string `yaml:"driver"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
	SysfsRoot string `yaml:"sysfs_root"`
}

// SensorConfig selects the measurement source.
type SensorConfig struct {
	// Driver is "simulated". Hardware readers plug in behind sensor.Reader.
	Driver string `yaml:"driver"`

	// FaultRate is the probability (0..1) that a simulated field reads NaN.
	FaultRate float64 `yaml:"fault_rate"`
}

// LoopConfig tunes the control loop cadence.
type LoopConfig struct {
	// Period between loop iterations (milliseconds).
	Period int `yaml:"period_ms"`
}

// InfluxDBConfig contains InfluxDB archive settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains the SQLite diagnostics journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StatusConfig contains the local status HTTP server settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMESYNC_SECTION_KEY
// For example: HOMESYNC_MQTT_HOST, HOMESYNC_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config populated with the HomeSync POC node defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:      "node1",
			Name:    "HomeSync POC Node 1",
			Project: "poc",
		},
		Network: NetworkConfig{
			// 30 checks at 500ms before the process exits.
			ConnectTimeout: 15000,
			PollInterval:   500,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 8883,
				TLS:  true,
			},
			QoS: 0,
			Topics: MQTTTopicsConfig{
				Telemetry: "homesync/poc/node1/telemetry",
				Command:   "homesync/poc/node1/command/relay",
				Status:    "homesync/poc/node1/status",
			},
			ReconnectDelay: 5000,
			ConnectTimeout: 10000,
			InboxSize:      16,
		},
		Telemetry: TelemetryConfig{
			Interval: 5000,
			Channels: []string{"voltage", "current", "power"},
		},
		Actuator: ActuatorConfig{
			Driver:    "memory",
			SysfsRoot: "/sys/class/gpio",
		},
		Sensor: SensorConfig{
			Driver: "simulated",
		},
		Loop: LoopConfig{
			Period: 50,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "homesync",
			Bucket:        "poc_telemetry",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/homesync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Status: StatusConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMESYNC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("HOMESYNC_NETWORK_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("HOMESYNC_NETWORK_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}

	if v := os.Getenv("HOMESYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMESYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMESYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HOMESYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// knownChannels are the measurement kinds a sensor reading carries.
var knownChannels = map[string]bool{
	"voltage":      true,
	"current":      true,
	"power":        true,
	"energy":       true,
	"frequency":    true,
	"power_factor": true,
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Telemetry == "" || c.MQTT.Topics.Command == "" || c.MQTT.Topics.Status == "" {
		errs = append(errs, "mqtt.topics.telemetry, command and status are required")
	}
	if strings.ContainsAny(c.MQTT.Topics.Command, "+#") {
		errs = append(errs, "mqtt.topics.command must not contain wildcards")
	}
	if c.MQTT.ReconnectDelay <= 0 {
		errs = append(errs, "mqtt.reconnect_delay_ms must be positive")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout_ms must be positive")
	}
	if c.MQTT.InboxSize <= 0 {
		errs = append(errs, "mqtt.inbox_size must be positive")
	}

	if c.Network.SSID != "" && c.Network.Interface == "" {
		errs = append(errs, "network.ssid requires network.interface")
	}
	if c.Network.ConnectTimeout <= 0 || c.Network.PollInterval <= 0 {
		errs = append(errs, "network.connect_timeout_ms and network.poll_interval_ms must be positive")
	}

	if c.Telemetry.Interval <= 0 {
		errs = append(errs, "telemetry.interval_ms must be positive")
	}
	for _, ch := range c.Telemetry.Channels {
		if !knownChannels[ch] {
			errs = append(errs, fmt.Sprintf("telemetry.channels: unknown channel %q", ch))
		}
	}

	switch c.Actuator.Driver {
	case "memory":
	case "sysfs":
		if c.Actuator.Pin < 0 {
			errs = append(errs, "actuator.pin must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("actuator.driver %q is not supported (memory, sysfs)", c.Actuator.Driver))
	}

	if c.Sensor.Driver != "simulated" {
		errs = append(errs, fmt.Sprintf("sensor.driver %q is not supported (simulated)", c.Sensor.Driver))
	}
	if c.Sensor.FaultRate < 0 || c.Sensor.FaultRate > 1 {
		errs = append(errs, "sensor.fault_rate must be between 0 and 1")
	}

	if c.Loop.Period <= 0 {
		errs = append(errs, "loop.period_ms must be positive")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTelemetryInterval returns the sampling interval as a Duration.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Millisecond
}

// GetReconnectDelay returns the minimum spacing of session attempts as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.ReconnectDelay) * time.Millisecond
}

// GetConnectTimeout returns the bound on one session attempt as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Millisecond
}

// GetLinkTimeout returns the link bring-up budget as a Duration.
func (c *Config) GetLinkTimeout() time.Duration {
	return time.Duration(c.Network.ConnectTimeout) * time.Millisecond
}

// GetLinkPollInterval returns the link polling interval as a Duration.
func (c *Config) GetLinkPollInterval() time.Duration {
	return time.Duration(c.Network.PollInterval) * time.Millisecond
}

// GetLoopPeriod returns the control loop period as a Duration.
func (c *Config) GetLoopPeriod() time.Duration {
	return time.Duration(c.Loop.Period) * time.Millisecond
}
