package common

// Data sources
const (
	SourceAPI   = "api"
	SourceFile  = "file"
	SourceStore = "store"
)

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvAPIKey          = "ALPHAVANTAGE_API_KEY"
	EnvBaseURL         = "BASE_URL"
	EnvRESTTimeout     = "REST_TIMEOUT"
	EnvSymbol          = "SYMBOL"
	EnvInterval        = "INTERVAL"
	EnvSource          = "SOURCE"
	EnvInputPath       = "INPUT_PATH"
	EnvDataPath        = "DATA_PATH"
	EnvOutputPath      = "OUTPUT_PATH"
	EnvParsePolicy     = "PARSE_POLICY"
	EnvSeriesOrder     = "SERIES_ORDER"
	EnvVarSmoothing    = "VAR_SMOOTHING"
	EnvRefreshInterval = "REFRESH_INTERVAL"
	EnvMetricsPort     = "METRICS_PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
)

// Configuration defaults
const (
	DefaultBaseURL         = "https://www.alphavantage.co"
	DefaultSymbol          = "IBM"
	DefaultInterval        = "1min"
	DefaultSource          = SourceAPI
	DefaultOutputPath      = "./run_results"
	DefaultParsePolicy     = "fallback"
	DefaultSeriesOrder     = "chronological"
	DefaultVarSmoothing    = 1e-9
	DefaultRESTTimeout     = "10s"
	DefaultRefreshInterval = "5m"
	DefaultMetricsPort     = 8080
	DefaultLogLevel        = "info"
)
