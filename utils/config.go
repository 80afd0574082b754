package utils

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config struct for labelscope
type Config struct {
	Server struct {
		Host         string        `yaml:"host"`
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// MaxUploadSize bounds multipart image uploads, in bytes.
		MaxUploadSize int64 `yaml:"max_upload_size"`
	} `yaml:"server"`

	Database DatabaseConfig `yaml:"database"`

	AutoLabel AutoLabelConfig `yaml:"autolabel"`

	Session struct {
		TTL             time.Duration `yaml:"ttl"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"session"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DatabaseConfig selects and configures the gorm driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Sqlite struct {
		Filename string `yaml:"filename"`
	} `yaml:"sqlite"`
	Mysql struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"mysql"`
}

// AutoLabelConfig configures the detection collaborator. Backend is "http",
// "ollama" or empty to disable auto-labeling.
type AutoLabelConfig struct {
	Backend      string        `yaml:"backend"`
	URL          string        `yaml:"url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxDimension int           `yaml:"max_dimension"`
}

// DefaultConfig returns the settings used for keys a config file leaves out.
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = "8080"
	config.Server.ReadTimeout = 5 * time.Second
	config.Server.WriteTimeout = 6 * time.Minute
	config.Server.MaxUploadSize = 32 << 20
	config.Database.Driver = "sqlite"
	config.Database.Sqlite.Filename = "labelscope.sqlite"
	config.Database.Mysql.Port = 3306
	config.AutoLabel.Timeout = 300 * time.Second
	config.AutoLabel.MaxDimension = 1024
	config.Session.TTL = 30 * time.Minute
	config.Session.CleanupInterval = time.Minute
	config.Log.Level = "info"
	return config
}

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return config, nil
}

// ValidateConfigPath just makes sure, that the path provided is a file,
// that can be read
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a normal file", path)
	}
	return nil
}

// ParseFlags will create and parse the CLI flags
// and return the path to be used elsewhere
func ParseFlags() (string, bool, error) {
	var configPath string
	var debugMode bool

	flag.StringVar(&configPath, "config", "./config.yml", "path to config file")
	flag.BoolVar(&debugMode, "debug", false, "enable debug mode")
	flag.Parse()

	if err := ValidateConfigPath(configPath); err != nil {
		return "", false, err
	}
	return configPath, debugMode, nil
}
