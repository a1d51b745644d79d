package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"tickbayes/internal/common"
	"tickbayes/internal/market"
	"tickbayes/internal/pipeline"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	APIKey          string        `validate:"required_if=Source api"`
	BaseURL         string        `validate:"required,url"`
	RESTTimeout     time.Duration `validate:"min=1s,max=1m"`
	Symbol          string        `validate:"required"`
	Interval        string        `validate:"oneof=1min 5min 15min 30min 60min"`
	Source          string        `validate:"oneof=api file store"`
	InputPath       string        `validate:"required_if=Source file"`
	DataPath        string        `validate:"required_if=Source store"`
	OutputPath      string        `validate:"required"`
	ParsePolicy     string        `validate:"oneof=fallback strict"`
	SeriesOrder     string        `validate:"oneof=chronological source"`
	VarSmoothing    float64       `validate:"gt=0,lt=1"`
	RefreshInterval time.Duration `validate:"min=1m,max=24h"`
	MetricsPort     int           `validate:"omitempty,min=1024,max=65535"`
	LogLevel        string        `validate:"oneof=trace debug info warn error"`
	LogFile         string
}

type APIConfig struct {
	Key         string `yaml:"key"`
	BaseURL     string `yaml:"baseURL" default:"https://www.alphavantage.co"`
	RESTTimeout string `yaml:"restTimeout" default:"10s"`
}

type SeriesConfig struct {
	Symbol      string `yaml:"symbol" default:"IBM"`
	Interval    string `yaml:"interval" default:"1min"`
	Source      string `yaml:"source" default:"api"`
	InputPath   string `yaml:"inputPath"`
	ParsePolicy string `yaml:"parsePolicy" default:"fallback"`
	Order       string `yaml:"order" default:"chronological"`
}

type MLConfig struct {
	VarSmoothing float64 `yaml:"varSmoothing" default:"1e-9"`
}

type SystemConfig struct {
	DataPath        string `yaml:"dataPath"`
	OutputPath      string `yaml:"outputPath" default:"./run_results"`
	RefreshInterval string `yaml:"refreshInterval" default:"5m"`
	MetricsPort     int    `yaml:"metricsPort" default:"8080"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
	File  string `yaml:"file"`
}

type ConfigFile struct {
	API     APIConfig     `yaml:"api"`
	Series  SeriesConfig  `yaml:"series"`
	ML      MLConfig      `yaml:"ml"`
	System  SystemConfig  `yaml:"system"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load builds Settings from defaults, the optional YAML file named by
// CONFIG_FILE and the environment, in increasing priority. A .env file in the
// working directory is loaded first when present.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var config ConfigFile
	if err := defaults.Set(&config); err != nil {
		return Settings{}, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		if err := loadYAML(configPath, &config); err != nil {
			return Settings{}, err
		}
	}

	applyEnv(&config)

	settings, err := config.settings()
	if err != nil {
		return Settings{}, err
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func loadYAML(path string, config *ConfigFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overrides file values with the environment.
func applyEnv(c *ConfigFile) {
	c.API.Key = getEnvOrDefault(common.EnvAPIKey, c.API.Key)
	c.API.BaseURL = getEnvOrDefault(common.EnvBaseURL, c.API.BaseURL)
	c.API.RESTTimeout = getEnvOrDefault(common.EnvRESTTimeout, c.API.RESTTimeout)

	c.Series.Symbol = getEnvOrDefault(common.EnvSymbol, c.Series.Symbol)
	c.Series.Interval = getEnvOrDefault(common.EnvInterval, c.Series.Interval)
	c.Series.Source = getEnvOrDefault(common.EnvSource, c.Series.Source)
	c.Series.InputPath = getEnvOrDefault(common.EnvInputPath, c.Series.InputPath)
	c.Series.ParsePolicy = getEnvOrDefault(common.EnvParsePolicy, c.Series.ParsePolicy)
	c.Series.Order = getEnvOrDefault(common.EnvSeriesOrder, c.Series.Order)

	c.ML.VarSmoothing = getFloatOrDefault(common.EnvVarSmoothing, c.ML.VarSmoothing)

	c.System.DataPath = getEnvOrDefault(common.EnvDataPath, c.System.DataPath)
	c.System.OutputPath = getEnvOrDefault(common.EnvOutputPath, c.System.OutputPath)
	c.System.RefreshInterval = getEnvOrDefault(common.EnvRefreshInterval, c.System.RefreshInterval)
	c.System.MetricsPort = getIntOrDefault(common.EnvMetricsPort, c.System.MetricsPort)

	c.Logging.Level = getEnvOrDefault(common.EnvLogLevel, c.Logging.Level)
	c.Logging.File = getEnvOrDefault(common.EnvLogFile, c.Logging.File)
}

func (c ConfigFile) settings() (Settings, error) {
	restTimeout, err := time.ParseDuration(c.API.RESTTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid REST timeout %q: %w", c.API.RESTTimeout, err)
	}

	refresh, err := time.ParseDuration(c.System.RefreshInterval)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid refresh interval %q: %w", c.System.RefreshInterval, err)
	}

	return Settings{
		APIKey:          c.API.Key,
		BaseURL:         c.API.BaseURL,
		RESTTimeout:     restTimeout,
		Symbol:          c.Series.Symbol,
		Interval:        c.Series.Interval,
		Source:          c.Series.Source,
		InputPath:       c.Series.InputPath,
		DataPath:        c.System.DataPath,
		OutputPath:      c.System.OutputPath,
		ParsePolicy:     c.Series.ParsePolicy,
		SeriesOrder:     c.Series.Order,
		VarSmoothing:    c.ML.VarSmoothing,
		RefreshInterval: refresh,
		MetricsPort:     c.System.MetricsPort,
		LogLevel:        c.Logging.Level,
		LogFile:         c.Logging.File,
	}, nil
}

// PipelineConfig returns the runner configuration for these settings.
func (s Settings) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Symbol:       s.Symbol,
		Interval:     s.Interval,
		Policy:       market.ParsePolicy(s.ParsePolicy),
		Order:        pipeline.Ordering(s.SeriesOrder),
		VarSmoothing: s.VarSmoothing,
	}
}

// ParseOptions returns the parser options for these settings.
func (s Settings) ParseOptions() market.ParseOptions {
	return s.PipelineConfig().ParseOptions()
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
