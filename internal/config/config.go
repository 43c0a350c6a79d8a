package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// HistoryConfig controls the durable interaction log shared by the feature
// areas. Window is the number of entries the default (truncated) view shows.
type HistoryConfig struct {
	Path   string `yaml:"path"`
	Window int    `yaml:"window"`
}

type CatalogConfig struct {
	Path      string `yaml:"path"`
	SampleDir string `yaml:"sample_dir"`
}

// EngineConfig points at the speech-generation collaborator.
type EngineConfig struct {
	Mode      string `yaml:"mode"` // mock, http
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ExtractorConfig struct {
	Mode          string `yaml:"mode"` // mock, http
	Endpoint      string `yaml:"endpoint"`
	TimeoutMS     int    `yaml:"timeout_ms"`
	DefaultMethod string `yaml:"default_method"` // sentences, paragraphs
	MaxChars      int    `yaml:"max_chars"`
}

type TransformerConfig struct {
	Mode      string `yaml:"mode"` // mock, http
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type StudioConfig struct {
	ProgressResetMS int `yaml:"progress_reset_ms"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	History     HistoryConfig     `yaml:"history"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Engine      EngineConfig      `yaml:"engine"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Transformer TransformerConfig `yaml:"transformer"`
	Studio      StudioConfig      `yaml:"studio"`
}

func Default() Config {
	return Config{
		RuntimeName: "voxcraft",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		History: HistoryConfig{
			Path:   "./data/history.db",
			Window: 10,
		},
		Catalog: CatalogConfig{
			Path:      "./data/catalog.db",
			SampleDir: "./data/voices",
		},
		Engine: EngineConfig{
			Mode:      "mock",
			Endpoint:  "http://localhost:5000",
			TimeoutMS: 120000,
		},
		Extractor: ExtractorConfig{
			Mode:          "mock",
			Endpoint:      "http://localhost:5001",
			TimeoutMS:     60000,
			DefaultMethod: "sentences",
			MaxChars:      500,
		},
		Transformer: TransformerConfig{
			Mode:      "mock",
			Endpoint:  "http://localhost:5002",
			TimeoutMS: 120000,
		},
		Studio: StudioConfig{
			ProgressResetMS: 1000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, errors.New("config file not found: " + path)
			}
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOX_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOX_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOX_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOX_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOX_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOX_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOX_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "VOX_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOX_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "VOX_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "VOX_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOX_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOX_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOX_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOX_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOX_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "VOX_HISTORY_PATH")
	overrideInt(&cfg.History.Window, "VOX_HISTORY_WINDOW")
	overrideString(&cfg.Catalog.Path, "VOX_CATALOG_PATH")
	overrideString(&cfg.Catalog.SampleDir, "VOX_CATALOG_SAMPLE_DIR")
	overrideString(&cfg.Engine.Mode, "VOX_ENGINE_MODE")
	overrideString(&cfg.Engine.Endpoint, "VOX_ENGINE_ENDPOINT")
	overrideInt(&cfg.Engine.TimeoutMS, "VOX_ENGINE_TIMEOUT_MS")
	overrideString(&cfg.Extractor.Mode, "VOX_EXTRACTOR_MODE")
	overrideString(&cfg.Extractor.Endpoint, "VOX_EXTRACTOR_ENDPOINT")
	overrideInt(&cfg.Extractor.TimeoutMS, "VOX_EXTRACTOR_TIMEOUT_MS")
	overrideString(&cfg.Extractor.DefaultMethod, "VOX_EXTRACTOR_DEFAULT_METHOD")
	overrideInt(&cfg.Extractor.MaxChars, "VOX_EXTRACTOR_MAX_CHARS")
	overrideString(&cfg.Transformer.Mode, "VOX_TRANSFORMER_MODE")
	overrideString(&cfg.Transformer.Endpoint, "VOX_TRANSFORMER_ENDPOINT")
	overrideInt(&cfg.Transformer.TimeoutMS, "VOX_TRANSFORMER_TIMEOUT_MS")
	overrideInt(&cfg.Studio.ProgressResetMS, "VOX_STUDIO_PROGRESS_RESET_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	if cfg.History.Window <= 0 {
		return errors.New("history.window must be positive")
	}
	if cfg.Catalog.Path == "" {
		return errors.New("catalog.path must not be empty")
	}
	if cfg.Catalog.SampleDir == "" {
		return errors.New("catalog.sample_dir must not be empty")
	}
	switch cfg.Engine.Mode {
	case "mock", "http":
	default:
		return errors.New("engine.mode must be one of mock|http")
	}
	if cfg.Engine.Mode == "http" && cfg.Engine.Endpoint == "" {
		return errors.New("engine.endpoint must be set when mode=http")
	}
	switch cfg.Extractor.Mode {
	case "mock", "http":
	default:
		return errors.New("extractor.mode must be one of mock|http")
	}
	if cfg.Extractor.Mode == "http" && cfg.Extractor.Endpoint == "" {
		return errors.New("extractor.endpoint must be set when mode=http")
	}
	switch cfg.Extractor.DefaultMethod {
	case "sentences", "paragraphs":
	default:
		return errors.New("extractor.default_method must be one of sentences|paragraphs")
	}
	if cfg.Extractor.MaxChars <= 0 {
		return errors.New("extractor.max_chars must be positive")
	}
	switch cfg.Transformer.Mode {
	case "mock", "http":
	default:
		return errors.New("transformer.mode must be one of mock|http")
	}
	if cfg.Transformer.Mode == "http" && cfg.Transformer.Endpoint == "" {
		return errors.New("transformer.endpoint must be set when mode=http")
	}
	if cfg.Studio.ProgressResetMS < 0 {
		return errors.New("studio.progress_reset_ms must be >= 0")
	}
	return nil
}
