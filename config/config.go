package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var SupportedCodecs = []string{"mp3", "flac", "aac"}

const (
	DefaultDownloadBaseDir = "downloads"
	DefaultPreferredCodec  = "mp3"
	DefaultBatchSize       = 100
	DefaultMaxRetries      = 3
	DefaultTrackPacing     = 500 * time.Millisecond
	DefaultParallelRuns    = 1
	DefaultLogLevel        = "info"
	maxBatchSize           = 1000
	maxMaxRetries          = 10
)

type Config struct {
	DownloadBaseDir string        `json:"download_base_dir" yaml:"download_base_dir"`
	PreferredCodec  string        `json:"preferred_codec"   yaml:"preferred_codec"`
	BatchSize       int           `json:"batch_size"        yaml:"batch_size"`
	MaxRetries      int           `json:"max_retries"       yaml:"max_retries"`
	TrackPacing     time.Duration `json:"track_pacing"      yaml:"track_pacing"`
	ParallelRuns    int           `json:"parallel_runs"     yaml:"parallel_runs"`
	LedgerPath      string        `json:"ledger_path"       yaml:"ledger_path"`
	LogLevel        string        `json:"log_level"         yaml:"log_level"`
	TagMP3          *bool         `json:"tag_mp3"           yaml:"tag_mp3"`
}

func Default() *Config {
	cfg := new(Config)
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.DownloadBaseDir == "" {
		cfg.DownloadBaseDir = DefaultDownloadBaseDir
	}
	if cfg.PreferredCodec == "" {
		cfg.PreferredCodec = DefaultPreferredCodec
	}
	cfg.PreferredCodec = strings.ToLower(cfg.PreferredCodec)
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.TrackPacing == 0 {
		cfg.TrackPacing = DefaultTrackPacing
	}
	if cfg.ParallelRuns == 0 {
		cfg.ParallelRuns = DefaultParallelRuns
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if nil == cfg.TagMP3 {
		tag := true
		cfg.TagMP3 = &tag
	}
}

func (cfg *Config) ShouldTagMP3() bool {
	return nil != cfg.TagMP3 && *cfg.TagMP3
}

func (cfg *Config) Validate() error {
	if !slices.Contains(SupportedCodecs, cfg.PreferredCodec) {
		return fmt.Errorf("preferred codec %q is not one of %s", cfg.PreferredCodec, strings.Join(SupportedCodecs, ", "))
	}

	if cfg.BatchSize < 1 || cfg.BatchSize > maxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", maxBatchSize, cfg.BatchSize)
	}

	if cfg.MaxRetries < 1 || cfg.MaxRetries > maxMaxRetries {
		return fmt.Errorf("max retries must be between 1 and %d, got %d", maxMaxRetries, cfg.MaxRetries)
	}

	if cfg.TrackPacing < 0 {
		return errors.New("track pacing must not be negative")
	}

	if cfg.ParallelRuns < 1 {
		return errors.New("parallel runs must be at least 1")
	}

	return nil
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config file %q: %v", filePath, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}

func FromString(data string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(data), &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
