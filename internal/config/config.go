package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/osutil"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "wfkit"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "WFKIT"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug        bool   `mapstructure:"debug"`
	LogFormat    string `mapstructure:"log_format"`
	LogFile      string `mapstructure:"log_file"`
	LogQuiet     bool   `mapstructure:"log_quiet"` // log to log_file only
	WorkflowsDir string `mapstructure:"workflows_dir"`

	// Index store settings
	Storage struct {
		Driver string `mapstructure:"driver"` // sqlite, postgres, memory
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"storage"`

	// Backup settings
	Backup struct {
		Dir         string   `mapstructure:"dir"`
		Compression string   `mapstructure:"compression"` // gzip, bzip2, xz
		Digest      string   `mapstructure:"digest"`      // sha256, blake2b
		KeepDays    int      `mapstructure:"keep_days"`
		ConfigFiles []string `mapstructure:"config_files"`
	} `mapstructure:"backup"`

	Organizer struct {
		OutputDir string `mapstructure:"output_dir"`
	} `mapstructure:"organizer"`

	Lint struct {
		ErrorHandlingThreshold int `mapstructure:"error_handling_threshold"`
	} `mapstructure:"lint"`

	Server struct {
		Addr string `mapstructure:"addr"`

		// Tracing exporter: none, stdout or otlp
		Tracing      string `mapstructure:"tracing"`
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"server"`

	// VirusTotal settings for URL audits
	VirusTotal struct {
		APIKey          string `mapstructure:"api_key"`
		RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
		RetryCount      int    `mapstructure:"retry_count"`
		CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	} `mapstructure:"virustotal"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	mu sync.Mutex
)

func init() {
	// Usable defaults before Initialize runs, e.g. for flag defaults
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(&Instance)
}

// Initialize loads configuration into Instance. A .env file in the working
// directory is applied to the environment first.
func Initialize(cfgFile string) error {
	mu.Lock()
	defer mu.Unlock()

	_ = godotenv.Load()

	cfg, used, err := Load(cfgFile)
	if err != nil {
		return err
	}

	Instance = *cfg
	ConfigFile = used
	ConfigLoaded = used != ""
	return nil
}

// Load reads configuration from cfgFile (or the standard search paths when
// empty), environment variables and defaults. It returns the config and the
// file that was used, if any.
func Load(cfgFile string) (*AppConfig, string, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	used := ""
	if readErr := v.ReadInConfig(); readErr != nil {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, "", fmt.Errorf("error reading config file: %w", readErr)
		}
	} else {
		used = v.ConfigFileUsed()
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("%w: %s", errors.ErrConfigParseError, err.Error())
	}

	if err := validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, used, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")
	v.SetDefault("log_quiet", false)
	v.SetDefault("workflows_dir", "workflows")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "workflows.db")

	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.compression", "gzip")
	v.SetDefault("backup.digest", "sha256")
	v.SetDefault("backup.keep_days", 30)
	v.SetDefault("backup.config_files", []string{
		"wfkit.yaml",
		".env",
		"README.md",
		"CLAUDE.md",
	})

	v.SetDefault("organizer.output_dir", "organized_workflows")
	v.SetDefault("lint.error_handling_threshold", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tracing", "none")
	v.SetDefault("server.otlp_endpoint", "localhost:4318")

	v.SetDefault("virustotal.api_key", "")
	v.SetDefault("virustotal.rate_limit_per_min", 4)
	v.SetDefault("virustotal.retry_count", 3)
	v.SetDefault("virustotal.cache_ttl_seconds", 3600)
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")

	if osutil.IsRunningInPipeline() {
		return
	}

	if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
		v.AddConfigPath(configDir)
	}

	if systemConfigDir, err := fsutil.GetSystemConfigDir(AppName); err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.LogFormat {
	case "json", "human":
	default:
		return fmt.Errorf("%w: log_format %q must be json or human", errors.ErrConfigInvalid, cfg.LogFormat)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: storage.driver %q must be sqlite, postgres or memory", errors.ErrConfigInvalid, cfg.Storage.Driver)
	}

	switch cfg.Backup.Compression {
	case "none", "gzip", "bzip2", "xz":
	default:
		return fmt.Errorf("%w: backup.compression %q must be none, gzip, bzip2 or xz", errors.ErrConfigInvalid, cfg.Backup.Compression)
	}

	switch cfg.Backup.Digest {
	case "sha256", "blake2b":
	default:
		return fmt.Errorf("%w: backup.digest %q must be sha256 or blake2b", errors.ErrConfigInvalid, cfg.Backup.Digest)
	}

	switch cfg.Server.Tracing {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("%w: server.tracing %q must be none, stdout or otlp", errors.ErrConfigInvalid, cfg.Server.Tracing)
	}

	if cfg.Backup.KeepDays < 0 {
		return fmt.Errorf("%w: backup.keep_days %d must not be negative", errors.ErrConfigInvalid, cfg.Backup.KeepDays)
	}

	return nil
}

// DefaultLogFile returns the log file path used when log_file is set to "auto"
func DefaultLogFile() string {
	logDir, err := fsutil.GetLogDir(AppName)
	if err != nil {
		return filepath.Join("logs", AppName+".log")
	}
	return filepath.Join(logDir, AppName+".log")
}
