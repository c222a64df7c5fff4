// Package config loads the settings of the causalimpact binaries. Defaults are overlaid by
// an optional YAML file which is in turn overlaid by CAUSALIMPACT_ prefixed environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/event"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rickar/cal/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "CAUSALIMPACT"

// Config is the complete configuration of the CLI and HTTP server
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	// RunTimeout caps a single analysis and becomes the optimizer runtime limit
	RunTimeout     time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// AnalysisConfig mirrors the analysis options that can be set without code
type AnalysisConfig struct {
	Fitter            string   `yaml:"fitter" envconfig:"FITTER" validate:"oneof=mle grid"`
	Method            string   `yaml:"method" envconfig:"METHOD" validate:"oneof=lbfgs bfgs neldermead"`
	MaxIterations     int      `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"min=1"`
	MinTrainingPoints int      `yaml:"min_training_points" envconfig:"MIN_TRAINING_POINTS" validate:"min=2"`
	Zscore            float64  `yaml:"zscore" envconfig:"ZSCORE" validate:"gt=0"`
	FillPolicy        string   `yaml:"fill_policy" envconfig:"FILL_POLICY" validate:"oneof=ffill_bfill zero"`
	DateAliases       []string `yaml:"date_aliases" envconfig:"DATE_ALIASES" validate:"min=1,dive,required"`
	Holidays          bool     `yaml:"holidays" envconfig:"HOLIDAYS"`
	HolidayCalendar   string   `yaml:"holiday_calendar" envconfig:"HOLIDAY_CALENDAR" validate:"oneof=us br"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RunTimeout:      30 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Analysis: AnalysisConfig{
			Fitter:            forecast.FitterMLE,
			Method:            statespace.MethodLBFGS,
			MaxIterations:     statespace.DefaultMaxIterations,
			MinTrainingPoints: forecast.DefaultMinTrainingPoints,
			Zscore:            forecast.DefaultZscore,
			FillPolicy:        string(timedataset.FillForwardBackward),
			DateAliases:       append([]string(nil), ingest.DefaultDateAliases...),
			Holidays:          true,
			HolidayCalendar:   event.CalendarBR,
		},
	}
}

// LoadEnvFiles loads dotenv files into the process environment. Missing files are skipped
// and variables already set are not overridden.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("unable to load env file %s, %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path if it is not empty,
// and the environment, in increasing order of precedence
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file, %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s, %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("unable to load config from env, %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	c.Analysis.Fitter = strings.ToLower(c.Analysis.Fitter)
	c.Analysis.Method = strings.ToLower(c.Analysis.Method)
	c.Analysis.HolidayCalendar = strings.ToLower(c.Analysis.HolidayCalendar)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed, %w", err)
	}
	return nil
}

// ForecastOptions converts the analysis settings into counterfactual model options
func (a AnalysisConfig) ForecastOptions() *forecast.Options {
	opt := forecast.NewDefaultOptions()
	opt.FitterType = a.Fitter
	opt.MinTrainingPoints = a.MinTrainingPoints
	opt.Zscore = a.Zscore
	opt.MLEOptions.Method = a.Method
	opt.MLEOptions.MaxIterations = a.MaxIterations
	return opt
}

// Options converts the analysis settings into analyzer options
func (a AnalysisConfig) Options() (*causalimpact.Options, error) {
	opt := causalimpact.NewDefaultOptions()
	opt.ForecastOptions = a.ForecastOptions()
	opt.FillPolicy = timedataset.FillPolicy(a.FillPolicy)
	opt.Resolver = &ingest.ColumnResolver{DateAliases: append([]string(nil), a.DateAliases...)}
	opt.Holidays = []*cal.Holiday{}
	if a.Holidays {
		hols, err := event.Calendar(a.HolidayCalendar)
		if err != nil {
			return nil, err
		}
		opt.Holidays = hols
	}
	return opt, nil
}
