package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "WCSCANNER_CONFIG"

// SMTPPasswordEnv overrides mail.password so the secret can stay out of the file.
const SMTPPasswordEnv = "WCSCANNER_SMTP_PASSWORD"

const (
	DriverMock    = "mock"
	DriverCommand = "command"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Rig     RigConfig     `yaml:"rig"`
	Mail    MailConfig    `yaml:"mail"`
}

type ServerConfig struct {
	Port             int           `yaml:"port"`
	Host             string        `yaml:"host"`
	MaxConnections   int           `yaml:"max_connections"`
	SendBuffer       int           `yaml:"send_buffer"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

type StorageConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// RigConfig selects the hardware driver. The command driver runs external
// programs; {output}, {width}, {height} and {degrees} are substituted.
type RigConfig struct {
	Driver         string        `yaml:"driver"`
	CaptureCommand []string      `yaml:"capture_command"`
	RotateCommand  []string      `yaml:"rotate_command"`
	ReadyCommand   []string      `yaml:"ready_command"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	Passes         int           `yaml:"passes"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Subject  string `yaml:"subject"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         6789,
			Host:         "0.0.0.0",
			SendBuffer:   64,
			WriteTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			BaseDir: "~/.wcscanner",
		},
		Rig: RigConfig{
			Driver:      DriverMock,
			SettleDelay: 500 * time.Millisecond,
			Passes:      3,
		},
		Mail: MailConfig{
			Port:    587,
			Subject: "3D scan project: {project}",
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = defaultConfig()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Path returns the config file location from the environment.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return "config.yaml"
}

func (c *Config) finish() error {
	if pw := os.Getenv(SMTPPasswordEnv); pw != "" {
		c.Mail.Password = pw
	}
	c.Storage.BaseDir = expandHome(c.Storage.BaseDir)
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server.send_buffer must be positive")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Rig.Passes <= 0 {
		return fmt.Errorf("rig.passes must be positive")
	}
	switch c.Rig.Driver {
	case DriverMock:
	case DriverCommand:
		if len(c.Rig.CaptureCommand) == 0 {
			return fmt.Errorf("rig.capture_command is required for the command driver")
		}
		if len(c.Rig.RotateCommand) == 0 {
			return fmt.Errorf("rig.rotate_command is required for the command driver")
		}
	default:
		return fmt.Errorf("unknown rig.driver %q", c.Rig.Driver)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
