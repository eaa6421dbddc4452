package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/update-manifest/internal/domain/news"
)

// Config holds the settings shared by the manifest binaries.
type Config struct {
	// RootDir is the directory whose files are published in the manifest.
	RootDir string `yaml:"root_dir"`
	// FilesURL is the remote base URL clients download the files from.
	FilesURL string `yaml:"files_url"`
	// Binary is the manifest key of the client executable.
	Binary string `yaml:"binary"`
	// HTTPAddress is the listen address of the HTTP endpoints.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is the optional listen address of the gRPC endpoint.
	GRPCAddress string `yaml:"grpc_addr,omitempty"`
	// RefreshInterval is the period between background rebuilds.
	// Zero means the manifest is rebuilt on every request.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// Workers is the number of files hashed concurrently.
	Workers int `yaml:"workers"`
	// SnapshotFile is the optional path where the last manifest is kept between restarts.
	SnapshotFile string `yaml:"snapshot_file,omitempty"`
	// NewsLocale is the locale served when a request asks for an unknown one.
	NewsLocale string `yaml:"news_locale"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "update-manifest.yaml"

	// DefaultHTTPAddress is the listen address used when none is configured.
	DefaultHTTPAddress = ":8080"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRootDirRequired is returned when the published directory is missing.
	errRootDirRequired = errors.New("root directory must be provided")
	// errFilesURLRequired is returned when the remote base URL is missing.
	errFilesURLRequired = errors.New("files URL must be provided")
	// errNegativeValue is returned for negative intervals or worker counts.
	errNegativeValue = errors.New("value must not be negative")
)

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

// Save writes the configuration to the provided path.
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

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for the optional ones.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.RootDir == "" {
		return errRootDirRequired
	}

	if settings.FilesURL == "" {
		return errFilesURLRequired
	}

	if _, err := url.ParseRequestURI(settings.FilesURL); err != nil {
		return fmt.Errorf("invalid files URL: %w", err)
	}

	if settings.HTTPAddress == "" {
		settings.HTTPAddress = DefaultHTTPAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.HTTPAddress); err != nil {
		return fmt.Errorf("invalid HTTP address: %w", err)
	}

	if settings.GRPCAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.GRPCAddress); err != nil {
			return fmt.Errorf("invalid gRPC address: %w", err)
		}
	}

	if settings.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval %s: %w", settings.RefreshInterval, errNegativeValue)
	}

	if settings.Workers < 0 {
		return fmt.Errorf("workers %d: %w", settings.Workers, errNegativeValue)
	}

	if settings.Workers == 0 {
		settings.Workers = runtime.NumCPU()
	}

	// Unknown locales fall back to the default one instead of failing.
	locale, _ := news.ParseLocale(settings.NewsLocale)
	settings.NewsLocale = string(locale)

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	return nil
}
