package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Serial holds parameters for the infrared read head attached to the meter.
type Serial struct {
	// Port is the serial device path, e.g. /dev/ttyUSB0.
	Port string `yaml:"port"`
	// BaudRate is the line speed; SML meters transmit at 9600 8N1.
	BaudRate int `yaml:"baud_rate"`
}

// MQTT holds broker connection settings for publishing readings.
type MQTT struct {
	// Broker is the broker URL, e.g. tcp://mqtt.fritz.box:1883.
	Broker string `yaml:"broker"`
	// Username authenticates against the broker (optional).
	Username string `yaml:"username"`
	// Password authenticates against the broker (optional).
	Password string `yaml:"password"`
	// ClientID identifies this daemon to the broker.
	ClientID string `yaml:"client_id"`
	// TopicPrefix is prepended to the import/export/power/state topics.
	TopicPrefix string `yaml:"topic_prefix"`
	// QoS is the quality-of-service level for published readings (0-2).
	QoS byte `yaml:"qos"`
}

// Service identifies the systemd unit managed by the installer.
type Service struct {
	// Name is the unit name without the .service suffix.
	Name string `yaml:"name"`
	// InstallDir is where the daemon binary is staged, e.g. /usr/local/bin.
	InstallDir string `yaml:"install_dir"`
}

// Provision lists OS packages required on the host.
type Provision struct {
	// Marker is a package whose presence means the toolchain is already
	// installed; when found, provisioning is skipped entirely.
	Marker string `yaml:"marker"`
	// Packages are installed via the system package manager when the
	// marker is absent.
	Packages []string `yaml:"packages"`
}

// Log controls daemon log output.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File is an optional rotating log file path for headless hosts.
	File string `yaml:"file"`
}

// Config holds settings shared by the smartmeter binaries.
type Config struct {
	Serial    Serial    `yaml:"serial"`
	MQTT      MQTT      `yaml:"mqtt"`
	Service   Service   `yaml:"service"`
	Provision Provision `yaml:"provision"`
	// UpdateFolder is the URL where update artifacts are hosted.
	UpdateFolder string `yaml:"update_folder"`
	Log          Log    `yaml:"log"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "smartmeter.yaml"

	// SystemConfigPath is where the installer persists settings for the daemon.
	SystemConfigPath = "/etc/smartmeter/smartmeter.yaml"

	// DefaultSerialPort matches the common USB infrared read head device.
	DefaultSerialPort = "/dev/ttyUSB0"

	// DefaultBaudRate is the SML transmission speed.
	DefaultBaudRate = 9600

	// DefaultClientID identifies the daemon on the broker.
	DefaultClientID = "smartmeter"

	// DefaultTopicPrefix is the base topic for published readings.
	DefaultTopicPrefix = "devices/smartmeter"

	// DefaultServiceName is the systemd unit name.
	DefaultServiceName = "smartmeter"

	// DefaultInstallDir is where the daemon binary is staged.
	DefaultInstallDir = "/usr/local/bin"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// maxQoS is the highest MQTT quality-of-service level.
	maxQoS = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidQoS is returned when the MQTT QoS level is out of range.
	errInvalidQoS = errors.New("mqtt qos must be between 0 and 2")
	// errInvalidBaudRate is returned when the serial baud rate is not positive.
	errInvalidBaudRate = errors.New("serial baud rate must be positive")
)

// Default returns a configuration populated with defaults only.
// The uninstaller falls back to it when no settings file exists.
func Default() *Config {
	var cfg Config

	applyDefaults(&cfg)

	return &cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	// Restrict permissions, the file may contain broker credentials.
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate applies defaults and checks the provided settings for formatting errors.
// The broker is optional here: teardown paths work without one, and the daemon
// enforces its presence itself.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if cfg.Serial.BaudRate <= 0 {
		return errInvalidBaudRate
	}

	if cfg.MQTT.QoS > maxQoS {
		return errInvalidQoS
	}

	if cfg.MQTT.Broker != "" {
		if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
			return fmt.Errorf("invalid broker URL: %w", err)
		}
	}

	if cfg.UpdateFolder != "" {
		if _, err := url.ParseRequestURI(cfg.UpdateFolder); err != nil {
			return fmt.Errorf("invalid update folder URI: %w", err)
		}
	}

	return nil
}

// applyDefaults fills zero-valued fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Serial.Port == "" {
		cfg.Serial.Port = DefaultSerialPort
	}

	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = DefaultBaudRate
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = DefaultServiceName
	}

	if cfg.Service.InstallDir == "" {
		cfg.Service.InstallDir = DefaultInstallDir
	}
}
