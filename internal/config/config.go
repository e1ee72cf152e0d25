package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	History     HistoryConfig     `yaml:"history"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Translation TranslationConfig `yaml:"translation"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Keywords    KeywordsConfig    `yaml:"keywords"`
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

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// AudioConfig describes the chunks produced by the capture stage.
type AudioConfig struct {
	FrameSubject string `yaml:"frame_subject"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	BitDepth     int    `yaml:"bit_depth"`
	QueueSize    int    `yaml:"queue_size"`
}

type RecognitionConfig struct {
	Mode              string `yaml:"mode"` // auto, mock, exec, whisper
	Command           string `yaml:"command"`
	ModelPath         string `yaml:"model_path"`
	Threads           int    `yaml:"threads"`
	SourceLanguage    string `yaml:"source_language"`
	Gate              bool   `yaml:"gate"`
	Debug             bool   `yaml:"debug"`
	OutputDir         string `yaml:"output_dir"`
	PollTimeoutMS     int    `yaml:"poll_timeout_ms"`
	DedupWindowMS     int    `yaml:"dedup_window_ms"`
	LogFlushThreshold int    `yaml:"log_flush_threshold"`
}

type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	RequestSubject string `yaml:"request_subject"`
	ResultSubject  string `yaml:"result_subject"`
}

type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServerURL string `yaml:"server_url"`
	Workers   int    `yaml:"workers"`
	TimeoutMS int    `yaml:"timeout_ms"`
	QueueSize int    `yaml:"queue_size"`
}

type KeywordsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	SearchEndpoint string `yaml:"search_endpoint"`
	MaxArticles    int    `yaml:"max_articles"`
	MaxImages      int    `yaml:"max_images"`
	TimeoutMS      int    `yaml:"timeout_ms"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

func Default() Config {
	return Config{
		RuntimeName: "rttd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		History: HistoryConfig{
			Path:          "./data/rttd-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
		Audio: AudioConfig{
			FrameSubject: "audio.frame",
			SampleRate:   16000,
			Channels:     1,
			BitDepth:     16,
			QueueSize:    32,
		},
		Recognition: RecognitionConfig{
			Mode:              "auto",
			ModelPath:         "./models/ggml-large-v3-turbo.bin",
			SourceLanguage:    "en",
			Gate:              true,
			OutputDir:         "logs",
			PollTimeoutMS:     500,
			DedupWindowMS:     1500,
			LogFlushThreshold: 10,
		},
		Translation: TranslationConfig{
			Enabled:        true,
			RequestSubject: "translation.request",
			ResultSubject:  "translation.result",
		},
		Dashboard: DashboardConfig{
			Enabled:   true,
			ServerURL: "http://localhost:8000",
			Workers:   4,
			TimeoutMS: 2000,
			QueueSize: 256,
		},
		Keywords: KeywordsConfig{
			Enabled:        true,
			SearchEndpoint: "http://localhost:8888",
			MaxArticles:    3,
			MaxImages:      3,
			TimeoutMS:      10000,
			MaxConcurrency: 4,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "RTTD_RUNTIME_NAME")
	overrideString(&cfg.Environment, "RTTD_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "RTTD_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "RTTD_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "RTTD_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "RTTD_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "RTTD_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "RTTD_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "RTTD_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "RTTD_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "RTTD_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "RTTD_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "RTTD_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "RTTD_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "RTTD_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "RTTD_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "RTTD_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "RTTD_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "RTTD_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "RTTD_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxSessions, "RTTD_HISTORY_MAX_SESSIONS")
	overrideBool(&cfg.History.VacuumOnStart, "RTTD_HISTORY_VACUUM_ON_START")
	overrideString(&cfg.Audio.FrameSubject, "RTTD_AUDIO_FRAME_SUBJECT")
	overrideInt(&cfg.Audio.SampleRate, "RTTD_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "RTTD_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.BitDepth, "RTTD_AUDIO_BIT_DEPTH")
	overrideInt(&cfg.Audio.QueueSize, "RTTD_AUDIO_QUEUE_SIZE")
	overrideString(&cfg.Recognition.Mode, "RTTD_RECOGNITION_MODE")
	overrideString(&cfg.Recognition.Command, "RTTD_RECOGNITION_COMMAND")
	overrideString(&cfg.Recognition.ModelPath, "RTTD_RECOGNITION_MODEL_PATH")
	overrideInt(&cfg.Recognition.Threads, "RTTD_RECOGNITION_THREADS")
	overrideString(&cfg.Recognition.SourceLanguage, "RTTD_RECOGNITION_SOURCE_LANGUAGE")
	overrideBool(&cfg.Recognition.Gate, "RTTD_RECOGNITION_GATE")
	overrideBool(&cfg.Recognition.Debug, "RTTD_RECOGNITION_DEBUG")
	overrideString(&cfg.Recognition.OutputDir, "RTTD_RECOGNITION_OUTPUT_DIR")
	overrideInt(&cfg.Recognition.PollTimeoutMS, "RTTD_RECOGNITION_POLL_TIMEOUT_MS")
	overrideInt(&cfg.Recognition.DedupWindowMS, "RTTD_RECOGNITION_DEDUP_WINDOW_MS")
	overrideInt(&cfg.Recognition.LogFlushThreshold, "RTTD_RECOGNITION_LOG_FLUSH_THRESHOLD")
	overrideBool(&cfg.Translation.Enabled, "RTTD_TRANSLATION_ENABLED")
	overrideString(&cfg.Translation.RequestSubject, "RTTD_TRANSLATION_REQUEST_SUBJECT")
	overrideString(&cfg.Translation.ResultSubject, "RTTD_TRANSLATION_RESULT_SUBJECT")
	overrideBool(&cfg.Dashboard.Enabled, "RTTD_DASHBOARD_ENABLED")
	overrideString(&cfg.Dashboard.ServerURL, "RTTD_DASHBOARD_SERVER_URL")
	overrideInt(&cfg.Dashboard.Workers, "RTTD_DASHBOARD_WORKERS")
	overrideInt(&cfg.Dashboard.TimeoutMS, "RTTD_DASHBOARD_TIMEOUT_MS")
	overrideInt(&cfg.Dashboard.QueueSize, "RTTD_DASHBOARD_QUEUE_SIZE")
	overrideBool(&cfg.Keywords.Enabled, "RTTD_KEYWORDS_ENABLED")
	overrideString(&cfg.Keywords.SearchEndpoint, "RTTD_KEYWORDS_SEARCH_ENDPOINT")
	overrideInt(&cfg.Keywords.MaxArticles, "RTTD_KEYWORDS_MAX_ARTICLES")
	overrideInt(&cfg.Keywords.MaxImages, "RTTD_KEYWORDS_MAX_IMAGES")
	overrideInt(&cfg.Keywords.TimeoutMS, "RTTD_KEYWORDS_TIMEOUT_MS")
	overrideInt(&cfg.Keywords.MaxConcurrency, "RTTD_KEYWORDS_MAX_CONCURRENCY")
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

// Validate reports the first configuration problem found in cfg.
func Validate(cfg Config) error {
	return validate(cfg)
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
	if cfg.History.Path == "" && cfg.History.RetentionMode != "ephemeral" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Audio.FrameSubject == "" {
		return errors.New("audio.frame_subject must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	switch cfg.Audio.BitDepth {
	case 8, 16, 24, 32:
	default:
		return errors.New("audio.bit_depth must be one of 8|16|24|32")
	}
	switch cfg.Recognition.Mode {
	case "auto", "mock", "exec", "whisper":
	default:
		return errors.New("recognition.mode must be one of auto|mock|exec|whisper")
	}
	if cfg.Recognition.Mode == "exec" && cfg.Recognition.Command == "" {
		return errors.New("recognition.command must be set when mode=exec")
	}
	if cfg.Recognition.Mode == "whisper" && cfg.Recognition.ModelPath == "" {
		return errors.New("recognition.model_path must be set when mode=whisper")
	}
	if cfg.Recognition.SourceLanguage == "" {
		return errors.New("recognition.source_language must not be empty")
	}
	if cfg.Recognition.OutputDir == "" {
		return errors.New("recognition.output_dir must not be empty")
	}
	if cfg.Recognition.PollTimeoutMS <= 0 {
		return errors.New("recognition.poll_timeout_ms must be positive")
	}
	if cfg.Recognition.DedupWindowMS < 0 {
		return errors.New("recognition.dedup_window_ms must be >= 0")
	}
	if cfg.Recognition.LogFlushThreshold <= 0 {
		return errors.New("recognition.log_flush_threshold must be >= 1")
	}
	if cfg.Translation.Enabled {
		if cfg.Translation.RequestSubject == "" {
			return errors.New("translation.request_subject must be set when translation is enabled")
		}
		if cfg.Translation.ResultSubject == "" {
			return errors.New("translation.result_subject must be set when translation is enabled")
		}
	}
	if cfg.Dashboard.Enabled {
		if cfg.Dashboard.ServerURL == "" {
			return errors.New("dashboard.server_url must be set when dashboard is enabled")
		}
		if cfg.Dashboard.Workers <= 0 {
			return errors.New("dashboard.workers must be >= 1")
		}
		if cfg.Dashboard.TimeoutMS <= 0 {
			return errors.New("dashboard.timeout_ms must be positive")
		}
	}
	if cfg.Keywords.Enabled {
		if cfg.Keywords.SearchEndpoint == "" {
			return errors.New("keywords.search_endpoint must be set when keywords are enabled")
		}
		if cfg.Keywords.MaxArticles < 0 || cfg.Keywords.MaxImages < 0 {
			return errors.New("keywords.max_articles and keywords.max_images must be >= 0")
		}
		if cfg.Keywords.MaxConcurrency <= 0 {
			return errors.New("keywords.max_concurrency must be >= 1")
		}
	}
	return nil
}
