package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const EnvPrefix = "YTQD"

type Config struct {
	Port     string
	LogLevel string
	LogFile  string

	DataDir        string
	DownloadDir    string
	OutputTemplate string

	RetryBudget     int
	RetryBackoff    time.Duration
	Retries         int
	FragmentRetries int
	AdvanceDelay    time.Duration

	FFmpegPath      string
	CleanupSchedule string

	MetadataCacheTTL    time.Duration
	MetadataConcurrency int
}

func Default() Config {
	return Config{
		Port:                "8080",
		LogLevel:            "info",
		DataDir:             "./data",
		DownloadDir:         "./downloads",
		OutputTemplate:      "%(title).200B.%(ext)s",
		RetryBudget:         3,
		RetryBackoff:        3 * time.Second,
		Retries:             10,
		FragmentRetries:     10,
		AdvanceDelay:        100 * time.Millisecond,
		CleanupSchedule:     "@hourly",
		MetadataCacheTTL:    10 * time.Minute,
		MetadataConcurrency: 4,
	}
}

// file is the on-disk shape of Config. Durations are written as "3s".
type file struct {
	Port                string `toml:"port"`
	LogLevel            string `toml:"log_level"`
	LogFile             string `toml:"log_file"`
	DataDir             string `toml:"data_dir"`
	DownloadDir         string `toml:"download_dir"`
	OutputTemplate      string `toml:"output_template"`
	RetryBudget         int    `toml:"retry_budget"`
	RetryBackoff        string `toml:"retry_backoff"`
	Retries             int    `toml:"retries"`
	FragmentRetries     int    `toml:"fragment_retries"`
	AdvanceDelay        string `toml:"advance_delay"`
	FFmpegPath          string `toml:"ffmpeg_path"`
	CleanupSchedule     string `toml:"cleanup_schedule"`
	MetadataCacheTTL    string `toml:"metadata_cache_ttl"`
	MetadataConcurrency int    `toml:"metadata_concurrency"`
}

func (c Config) file() file {
	return file{
		Port:                c.Port,
		LogLevel:            c.LogLevel,
		LogFile:             c.LogFile,
		DataDir:             c.DataDir,
		DownloadDir:         c.DownloadDir,
		OutputTemplate:      c.OutputTemplate,
		RetryBudget:         c.RetryBudget,
		RetryBackoff:        c.RetryBackoff.String(),
		Retries:             c.Retries,
		FragmentRetries:     c.FragmentRetries,
		AdvanceDelay:        c.AdvanceDelay.String(),
		FFmpegPath:          c.FFmpegPath,
		CleanupSchedule:     c.CleanupSchedule,
		MetadataCacheTTL:    c.MetadataCacheTTL.String(),
		MetadataConcurrency: c.MetadataConcurrency,
	}
}

// Load reads defaults, then the optional TOML file at path, then YTQD_*
// environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("download_dir", d.DownloadDir)
	v.SetDefault("output_template", d.OutputTemplate)
	v.SetDefault("retry_budget", d.RetryBudget)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("fragment_retries", d.FragmentRetries)
	v.SetDefault("advance_delay", d.AdvanceDelay)
	v.SetDefault("ffmpeg_path", d.FFmpegPath)
	v.SetDefault("cleanup_schedule", d.CleanupSchedule)
	v.SetDefault("metadata_cache_ttl", d.MetadataCacheTTL)
	v.SetDefault("metadata_concurrency", d.MetadataConcurrency)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		Port:                v.GetString("port"),
		LogLevel:            v.GetString("log_level"),
		LogFile:             v.GetString("log_file"),
		DataDir:             v.GetString("data_dir"),
		DownloadDir:         v.GetString("download_dir"),
		OutputTemplate:      v.GetString("output_template"),
		RetryBudget:         v.GetInt("retry_budget"),
		RetryBackoff:        v.GetDuration("retry_backoff"),
		Retries:             v.GetInt("retries"),
		FragmentRetries:     v.GetInt("fragment_retries"),
		AdvanceDelay:        v.GetDuration("advance_delay"),
		FFmpegPath:          v.GetString("ffmpeg_path"),
		CleanupSchedule:     v.GetString("cleanup_schedule"),
		MetadataCacheTTL:    v.GetDuration("metadata_cache_ttl"),
		MetadataConcurrency: v.GetInt("metadata_concurrency"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must be set"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir must be set"))
	}
	if c.OutputTemplate == "" {
		errs = append(errs, errors.New("output_template must be set"))
	}
	if c.RetryBudget < 1 {
		errs = append(errs, errors.New("retry_budget must be at least 1"))
	}
	if c.RetryBackoff < 0 || c.AdvanceDelay < 0 {
		errs = append(errs, errors.New("retry_backoff and advance_delay must not be negative"))
	}
	if c.MetadataConcurrency < 1 {
		errs = append(errs, errors.New("metadata_concurrency must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func (c Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

func (c Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	return nil
}

// WriteSample writes the default config to path. Existing files are kept
// unless overwrite is set.
func WriteSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := toml.Marshal(Default().file())
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
