// Package config resolves runtime settings from defaults, an optional YAML
// file and MCZ2OSZ_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSpeedModifier     = 1.0
	defaultOverallDifficulty = 8.0
	defaultListenAddr        = ":8080"
	defaultUploadDir         = "uploads"
	defaultWatchDebounce     = 2 * time.Second
	defaultFetchRateLimit    = 30
	defaultFetchConcurrency  = 2
	defaultFetchUserAgent    = "mcz2osz"
	defaultFetchTimeout      = 10 * time.Minute
)

// ConfigEnv names the variable consulted when Load gets no path.
const ConfigEnv = "MCZ2OSZ_CONFIG"

type Config struct {
	Workers           int
	Rate              bool
	SpeedModifier     float64
	OverallDifficulty float64
	PreviewOffset     bool
	ProbeAudio        bool
	Summary           bool

	Database        string
	CardDir         string
	CardPlaceholder string

	Listen         string
	UploadDir      string
	AllowedOrigins []string

	WatchDebounce time.Duration

	Fetch Fetch
}

type Fetch struct {
	RateLimit   int // requests per minute
	Concurrency int
	UserAgent   string
	Timeout     time.Duration
}

type fileYAML struct {
	Workers           *int     `yaml:"workers"`
	Rate              *bool    `yaml:"rate"`
	SpeedModifier     *float64 `yaml:"speed_modifier"`
	OverallDifficulty *float64 `yaml:"overall_difficulty"`
	PreviewOffset     *bool    `yaml:"preview_offset"`
	ProbeAudio        *bool    `yaml:"probe_audio"`
	Summary           *bool    `yaml:"summary"`
	Database          string   `yaml:"database"`
	CardDir           string   `yaml:"card_dir"`
	CardPlaceholder   string   `yaml:"card_placeholder"`
	Listen            string   `yaml:"listen"`
	UploadDir         string   `yaml:"upload_dir"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	WatchDebounce     string   `yaml:"watch_debounce"`
	Fetch             struct {
		RateLimit   *int   `yaml:"rate_limit"`
		Concurrency *int   `yaml:"concurrency"`
		UserAgent   string `yaml:"user_agent"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"fetch"`
}

func Default() Config {
	return Config{
		Workers:           runtime.NumCPU(),
		Rate:              true,
		SpeedModifier:     defaultSpeedModifier,
		OverallDifficulty: defaultOverallDifficulty,
		Summary:           true,
		PreviewOffset:     true,
		Listen:            defaultListenAddr,
		UploadDir:         defaultUploadDir,
		AllowedOrigins:    []string{"*"},
		WatchDebounce:     defaultWatchDebounce,
		Fetch: Fetch{
			RateLimit:   defaultFetchRateLimit,
			Concurrency: defaultFetchConcurrency,
			UserAgent:   defaultFetchUserAgent,
			Timeout:     defaultFetchTimeout,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (or at
// $MCZ2OSZ_CONFIG when path is empty) and then with the environment. A
// missing explicit file is an error; no file at all is fine.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigEnv))
	}
	if path != "" {
		if err := cfg.loadFile(expandHome(path)); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}

	cfg.Database = expandHome(cfg.Database)
	cfg.CardDir = expandHome(cfg.CardDir)
	cfg.CardPlaceholder = expandHome(cfg.CardPlaceholder)
	cfg.UploadDir = expandHome(cfg.UploadDir)
	return cfg, cfg.validate()
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var y fileYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	setPtr(&cfg.Workers, y.Workers)
	setPtr(&cfg.Rate, y.Rate)
	setPtr(&cfg.SpeedModifier, y.SpeedModifier)
	setPtr(&cfg.OverallDifficulty, y.OverallDifficulty)
	setPtr(&cfg.PreviewOffset, y.PreviewOffset)
	setPtr(&cfg.ProbeAudio, y.ProbeAudio)
	setPtr(&cfg.Summary, y.Summary)
	setString(&cfg.Database, y.Database)
	setString(&cfg.CardDir, y.CardDir)
	setString(&cfg.CardPlaceholder, y.CardPlaceholder)
	setString(&cfg.Listen, y.Listen)
	setString(&cfg.UploadDir, y.UploadDir)
	if len(y.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = y.AllowedOrigins
	}
	if err := setDuration(&cfg.WatchDebounce, y.WatchDebounce); err != nil {
		return fmt.Errorf("%s: watch_debounce: %w", path, err)
	}
	setPtr(&cfg.Fetch.RateLimit, y.Fetch.RateLimit)
	setPtr(&cfg.Fetch.Concurrency, y.Fetch.Concurrency)
	setString(&cfg.Fetch.UserAgent, y.Fetch.UserAgent)
	if err := setDuration(&cfg.Fetch.Timeout, y.Fetch.Timeout); err != nil {
		return fmt.Errorf("%s: fetch.timeout: %w", path, err)
	}
	return nil
}

func (cfg *Config) loadEnv() error {
	ints := map[string]*int{
		"MCZ2OSZ_WORKERS":           &cfg.Workers,
		"MCZ2OSZ_FETCH_RATE_LIMIT":  &cfg.Fetch.RateLimit,
		"MCZ2OSZ_FETCH_CONCURRENCY": &cfg.Fetch.Concurrency,
	}
	for key, dst := range ints {
		if value := env(key); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"MCZ2OSZ_SPEED_MODIFIER": &cfg.SpeedModifier,
		"MCZ2OSZ_OD":             &cfg.OverallDifficulty,
	}
	for key, dst := range floats {
		if value := env(key); value != "" {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	bools := map[string]*bool{
		"MCZ2OSZ_RATE":           &cfg.Rate,
		"MCZ2OSZ_PREVIEW_OFFSET": &cfg.PreviewOffset,
		"MCZ2OSZ_PROBE_AUDIO":    &cfg.ProbeAudio,
		"MCZ2OSZ_SUMMARY":        &cfg.Summary,
	}
	for key, dst := range bools {
		if value := env(key); value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"MCZ2OSZ_WATCH_DEBOUNCE": &cfg.WatchDebounce,
		"MCZ2OSZ_FETCH_TIMEOUT":  &cfg.Fetch.Timeout,
	}
	for key, dst := range durations {
		if err := setDuration(dst, env(key)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	setString(&cfg.Database, env("MCZ2OSZ_DATABASE"))
	setString(&cfg.CardDir, env("MCZ2OSZ_CARD_DIR"))
	setString(&cfg.CardPlaceholder, env("MCZ2OSZ_CARD_PLACEHOLDER"))
	setString(&cfg.Listen, env("MCZ2OSZ_LISTEN"))
	setString(&cfg.UploadDir, env("MCZ2OSZ_UPLOAD_DIR"))
	setString(&cfg.Fetch.UserAgent, env("MCZ2OSZ_FETCH_USER_AGENT"))
	if value := env("MCZ2OSZ_ALLOWED_ORIGINS"); value != "" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}
	return nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	case !(cfg.SpeedModifier > 0):
		return fmt.Errorf("speed_modifier must be positive, got %v", cfg.SpeedModifier)
	case cfg.OverallDifficulty < 0 || cfg.OverallDifficulty > 10:
		return fmt.Errorf("overall_difficulty must be within 0..10, got %v", cfg.OverallDifficulty)
	case cfg.Fetch.RateLimit < 1:
		return fmt.Errorf("fetch.rate_limit must be positive, got %d", cfg.Fetch.RateLimit)
	case cfg.Fetch.Concurrency < 1:
		return fmt.Errorf("fetch.concurrency must be positive, got %d", cfg.Fetch.Concurrency)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("negative duration %s", v)
	}
	*dst = d
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
