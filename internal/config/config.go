package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/loqalabs/file2text/internal/fault"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel         string  `yaml:"log_level"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	OTLPInsecure     bool    `yaml:"otlp_insecure"`
	PrometheusBind   string  `yaml:"prometheus_bind"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName   string              `yaml:"runtime_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	Node          NodeConfig          `yaml:"node"`
	Worker        WorkerConfig        `yaml:"worker"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Output        OutputConfig        `yaml:"output"`
	Media         MediaConfig         `yaml:"media"`
	Text          TextConfig          `yaml:"text"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Diarization   DiarizationConfig   `yaml:"diarization"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Vectorization VectorizationConfig `yaml:"vectorization"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

// WorkerConfig controls the bus job worker of the daemon.
type WorkerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Subject        string `yaml:"subject"`
	QueueGroup     string `yaml:"queue_group"`
	Concurrency    int    `yaml:"max_concurrency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PipelineConfig selects the optional stages and batch behaviour.
type PipelineConfig struct {
	Transcribe      bool `yaml:"transcribe"`
	Diarize         bool `yaml:"diarize"`
	Summarize       bool `yaml:"summarize"`
	Vectorize       bool `yaml:"vectorize"`
	Workers         int  `yaml:"workers"`
	DeleteProcessed bool `yaml:"delete_processed"`
	WriteJSON       bool `yaml:"write_json"`
}

// OutputConfig locates batch input and the artifact directories. TextDir
// and SummaryDir are resolved against Dir when relative.
type OutputConfig struct {
	InputDir   string `yaml:"input_dir"`
	Dir        string `yaml:"dir"`
	TextDir    string `yaml:"text_dir"`
	SummaryDir string `yaml:"summary_dir"`
	CacheDir   string `yaml:"cache_dir"`
}

type MediaConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	TempDir    string `yaml:"temp_dir"`
}

type TextConfig struct {
	Interjections []string `yaml:"interjections"`
}

type TranscriptionConfig struct {
	Mode           string `yaml:"mode"` // mock, exec, deepgram
	Command        string `yaml:"command"`
	Model          string `yaml:"model"`
	Device         string `yaml:"device"`
	Language       string `yaml:"language"`
	InitialPrompt  string `yaml:"initial_prompt"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DiarizationConfig struct {
	Mode        string `yaml:"mode"` // mock, exec
	Command     string `yaml:"command"`
	AuthToken   string `yaml:"auth_token"`
	MinSpeakers int    `yaml:"min_speakers"`
	MaxSpeakers int    `yaml:"max_speakers"`
}

type SummarizationConfig struct {
	Mode             string  `yaml:"mode"` // mock, exec, ollama
	Command          string  `yaml:"command"`
	Endpoint         string  `yaml:"endpoint"`
	Model            string  `yaml:"model"`
	FullMaxLength    int     `yaml:"full_max_length"`
	FullMinLength    int     `yaml:"full_min_length"`
	SpeakerMaxLength int     `yaml:"speaker_max_length"`
	SpeakerMinLength int     `yaml:"speaker_min_length"`
	Temperature      float64 `yaml:"temperature"`
	MaxRetries       int     `yaml:"max_retries"`
}

type VectorizationConfig struct {
	Mode       string `yaml:"mode"` // mock, exec, ollama
	Command    string `yaml:"command"`
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	Dimension  int    `yaml:"dimension"`
	MaxRetries int    `yaml:"max_retries"`
}

func Default() Config {
	return Config{
		RuntimeName: "file2text",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:         "info",
			OTLPEndpoint:     "",
			OTLPInsecure:     true,
			PrometheusBind:   ":9091",
			TraceSampleRatio: 1,
		},
		Bus: BusConfig{
			Embedded:       true,
			Host:           "0.0.0.0",
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "file2text-node-1",
			Role:              "worker",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Worker: WorkerConfig{
			Enabled:        true,
			Subject:        "file2text.jobs.process",
			QueueGroup:     "file2text-workers",
			Concurrency:    1,
			TimeoutSeconds: 3600,
		},
		Pipeline: PipelineConfig{
			Transcribe: true,
			Diarize:    false,
			Summarize:  true,
			Vectorize:  false,
			Workers:    1,
		},
		Output: OutputConfig{
			InputDir:   "./files",
			Dir:        "./output",
			TextDir:    "text",
			SummaryDir: "sumText",
			CacheDir:   defaultCacheDir(),
		},
		Media: MediaConfig{
			FFmpegPath: "ffmpeg",
			SampleRate: 16000,
			Channels:   1,
		},
		Transcription: TranscriptionConfig{
			Mode:           "mock",
			Model:          "medium",
			Device:         "cuda",
			Language:       "ru",
			InitialPrompt:  "Это запись разговора на русском языке.",
			TimeoutSeconds: 3600,
		},
		Diarization: DiarizationConfig{
			Mode: "mock",
		},
		Summarization: SummarizationConfig{
			Mode:             "mock",
			Endpoint:         "http://localhost:11434",
			Model:            "IlyaGusev/rut5_base_sum_gazeta",
			FullMaxLength:    300,
			FullMinLength:    100,
			SpeakerMaxLength: 200,
			SpeakerMinLength: 50,
			Temperature:      0,
			MaxRetries:       3,
		},
		Vectorization: VectorizationConfig{
			Mode:       "mock",
			Endpoint:   "http://localhost:11434",
			Model:      "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
			Dimension:  384,
			MaxRetries: 3,
		},
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "file2text")
	}
	return filepath.Join(base, "file2text")
}

// Load reads the optional YAML file over Default, applies environment
// overrides (after loading a .env file from the working directory when
// present) and validates the result. Validation failures are configuration
// errors.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadDotEnv(".env"); err != nil {
		return cfg, fault.Configuration("config", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fault.Configuration("config", fmt.Errorf("config file not found: %w", err))
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fault.Configuration("config", fmt.Errorf("failed to parse config file: %w", err))
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, fault.Configuration("config", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// TextPath returns the directory for transcript artifacts.
func (o OutputConfig) TextPath() string { return o.resolve(o.TextDir) }

// SummaryPath returns the directory for summary artifacts.
func (o OutputConfig) SummaryPath() string { return o.resolve(o.SummaryDir) }

func (o OutputConfig) resolve(dir string) string {
	if dir == "" {
		return o.Dir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(o.Dir, dir)
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(t.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "FILE2TEXT_RUNTIME_NAME")
	overrideString(&cfg.Environment, "FILE2TEXT_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "FILE2TEXT_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "FILE2TEXT_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "FILE2TEXT_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "FILE2TEXT_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "FILE2TEXT_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "FILE2TEXT_TELEMETRY_PROMETHEUS_BIND")
	overrideFloat(&cfg.Telemetry.TraceSampleRatio, "FILE2TEXT_TELEMETRY_TRACE_SAMPLE_RATIO")
	overrideBool(&cfg.Bus.Embedded, "FILE2TEXT_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "FILE2TEXT_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "FILE2TEXT_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "FILE2TEXT_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "FILE2TEXT_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "FILE2TEXT_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "FILE2TEXT_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "FILE2TEXT_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "FILE2TEXT_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "FILE2TEXT_NODE_ID")
	overrideString(&cfg.Node.Role, "FILE2TEXT_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatInterval, "FILE2TEXT_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "FILE2TEXT_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideBool(&cfg.Worker.Enabled, "FILE2TEXT_WORKER_ENABLED")
	overrideString(&cfg.Worker.Subject, "FILE2TEXT_WORKER_SUBJECT")
	overrideString(&cfg.Worker.QueueGroup, "FILE2TEXT_WORKER_QUEUE_GROUP")
	overrideInt(&cfg.Worker.Concurrency, "FILE2TEXT_WORKER_MAX_CONCURRENCY")
	overrideInt(&cfg.Worker.TimeoutSeconds, "FILE2TEXT_WORKER_TIMEOUT_SECONDS")
	overrideBool(&cfg.Pipeline.Transcribe, "FILE2TEXT_PIPELINE_TRANSCRIBE")
	overrideBool(&cfg.Pipeline.Diarize, "FILE2TEXT_PIPELINE_DIARIZE")
	overrideBool(&cfg.Pipeline.Summarize, "FILE2TEXT_PIPELINE_SUMMARIZE")
	overrideBool(&cfg.Pipeline.Vectorize, "FILE2TEXT_PIPELINE_VECTORIZE")
	overrideInt(&cfg.Pipeline.Workers, "FILE2TEXT_PIPELINE_WORKERS")
	overrideBool(&cfg.Pipeline.DeleteProcessed, "FILE2TEXT_PIPELINE_DELETE_PROCESSED")
	overrideBool(&cfg.Pipeline.WriteJSON, "FILE2TEXT_PIPELINE_WRITE_JSON")
	overrideString(&cfg.Output.InputDir, "FILE2TEXT_INPUT_DIR")
	overrideString(&cfg.Output.Dir, "FILE2TEXT_OUTPUT_DIR")
	overrideString(&cfg.Output.TextDir, "FILE2TEXT_OUTPUT_TEXT_DIR")
	overrideString(&cfg.Output.SummaryDir, "FILE2TEXT_OUTPUT_SUMMARY_DIR")
	overrideString(&cfg.Output.CacheDir, "FILE2TEXT_CACHE_DIR")
	overrideString(&cfg.Media.FFmpegPath, "FILE2TEXT_FFMPEG_PATH")
	overrideInt(&cfg.Media.SampleRate, "FILE2TEXT_MEDIA_SAMPLE_RATE")
	overrideInt(&cfg.Media.Channels, "FILE2TEXT_MEDIA_CHANNELS")
	overrideString(&cfg.Media.TempDir, "FILE2TEXT_MEDIA_TEMP_DIR")
	overrideStringSlice(&cfg.Text.Interjections, "FILE2TEXT_TEXT_INTERJECTIONS")
	overrideString(&cfg.Transcription.Mode, "FILE2TEXT_TRANSCRIPTION_MODE")
	overrideString(&cfg.Transcription.Command, "FILE2TEXT_TRANSCRIPTION_COMMAND")
	overrideString(&cfg.Transcription.Model, "WHISPER_MODEL")
	overrideString(&cfg.Transcription.Model, "FILE2TEXT_TRANSCRIPTION_MODEL")
	overrideString(&cfg.Transcription.Device, "WHISPER_DEVICE")
	overrideString(&cfg.Transcription.Device, "FILE2TEXT_TRANSCRIPTION_DEVICE")
	overrideString(&cfg.Transcription.Language, "FILE2TEXT_TRANSCRIPTION_LANGUAGE")
	overrideString(&cfg.Transcription.InitialPrompt, "FILE2TEXT_TRANSCRIPTION_INITIAL_PROMPT")
	overrideString(&cfg.Transcription.APIKey, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Transcription.APIKey, "FILE2TEXT_TRANSCRIPTION_API_KEY")
	overrideInt(&cfg.Transcription.TimeoutSeconds, "FILE2TEXT_TRANSCRIPTION_TIMEOUT_SECONDS")
	overrideString(&cfg.Diarization.Mode, "FILE2TEXT_DIARIZATION_MODE")
	overrideString(&cfg.Diarization.Command, "FILE2TEXT_DIARIZATION_COMMAND")
	overrideString(&cfg.Diarization.AuthToken, "HUGGINGFACE_TOKEN")
	overrideString(&cfg.Diarization.AuthToken, "FILE2TEXT_DIARIZATION_AUTH_TOKEN")
	overrideInt(&cfg.Diarization.MinSpeakers, "FILE2TEXT_DIARIZATION_MIN_SPEAKERS")
	overrideInt(&cfg.Diarization.MaxSpeakers, "FILE2TEXT_DIARIZATION_MAX_SPEAKERS")
	overrideString(&cfg.Summarization.Mode, "FILE2TEXT_SUMMARIZATION_MODE")
	overrideString(&cfg.Summarization.Command, "FILE2TEXT_SUMMARIZATION_COMMAND")
	overrideString(&cfg.Summarization.Endpoint, "FILE2TEXT_SUMMARIZATION_ENDPOINT")
	overrideString(&cfg.Summarization.Model, "SUMMARIZER_MODEL")
	overrideString(&cfg.Summarization.Model, "FILE2TEXT_SUMMARIZATION_MODEL")
	overrideInt(&cfg.Summarization.FullMaxLength, "FILE2TEXT_SUMMARIZATION_FULL_MAX_LENGTH")
	overrideInt(&cfg.Summarization.FullMinLength, "FILE2TEXT_SUMMARIZATION_FULL_MIN_LENGTH")
	overrideInt(&cfg.Summarization.SpeakerMaxLength, "FILE2TEXT_SUMMARIZATION_SPEAKER_MAX_LENGTH")
	overrideInt(&cfg.Summarization.SpeakerMinLength, "FILE2TEXT_SUMMARIZATION_SPEAKER_MIN_LENGTH")
	overrideFloat(&cfg.Summarization.Temperature, "FILE2TEXT_SUMMARIZATION_TEMPERATURE")
	overrideInt(&cfg.Summarization.MaxRetries, "FILE2TEXT_SUMMARIZATION_MAX_RETRIES")
	overrideString(&cfg.Vectorization.Mode, "FILE2TEXT_VECTORIZATION_MODE")
	overrideString(&cfg.Vectorization.Command, "FILE2TEXT_VECTORIZATION_COMMAND")
	overrideString(&cfg.Vectorization.Endpoint, "FILE2TEXT_VECTORIZATION_ENDPOINT")
	overrideString(&cfg.Vectorization.Model, "VECTORIZER_MODEL")
	overrideString(&cfg.Vectorization.Model, "FILE2TEXT_VECTORIZATION_MODEL")
	overrideInt(&cfg.Vectorization.Dimension, "FILE2TEXT_VECTORIZATION_DIMENSION")
	overrideInt(&cfg.Vectorization.MaxRetries, "FILE2TEXT_VECTORIZATION_MAX_RETRIES")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
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
	} else if len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when embedded mode is disabled")
	}
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.HeartbeatInterval <= 0 {
		return errors.New("node.heartbeat_interval_ms must be positive")
	}
	if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
		return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Telemetry.TraceSampleRatio < 0 || cfg.Telemetry.TraceSampleRatio > 1 {
		return errors.New("telemetry.trace_sample_ratio must be between 0 and 1")
	}
	if cfg.Worker.Enabled {
		if cfg.Worker.Subject == "" {
			return errors.New("worker.subject must not be empty when the worker is enabled")
		}
		if cfg.Worker.Concurrency <= 0 {
			return errors.New("worker.max_concurrency must be >= 1")
		}
	}
	if cfg.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if cfg.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	if cfg.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if cfg.Media.Channels <= 0 {
		return errors.New("media.channels must be positive")
	}
	if cfg.Pipeline.Transcribe {
		switch cfg.Transcription.Mode {
		case "mock", "exec", "deepgram":
		default:
			return errors.New("transcription.mode must be one of mock|exec|deepgram")
		}
		if cfg.Transcription.Model == "" {
			return errors.New("transcription.model must not be empty")
		}
		if cfg.Transcription.Mode == "exec" && cfg.Transcription.Command == "" {
			return errors.New("transcription.command must be set when mode=exec")
		}
		if cfg.Transcription.Mode == "deepgram" && cfg.Transcription.APIKey == "" {
			return errors.New("transcription.api_key (DEEPGRAM_API_KEY) must be set when mode=deepgram")
		}
	}
	if cfg.Pipeline.Diarize {
		switch cfg.Diarization.Mode {
		case "mock", "exec":
		default:
			return errors.New("diarization.mode must be one of mock|exec")
		}
		if cfg.Diarization.Mode == "exec" {
			if cfg.Diarization.Command == "" {
				return errors.New("diarization.command must be set when mode=exec")
			}
			if cfg.Diarization.AuthToken == "" {
				return errors.New("diarization.auth_token (HUGGINGFACE_TOKEN) must be set to run diarization")
			}
		}
		if cfg.Diarization.MaxSpeakers > 0 && cfg.Diarization.MinSpeakers > cfg.Diarization.MaxSpeakers {
			return errors.New("diarization.min_speakers must not exceed max_speakers")
		}
	}
	if cfg.Pipeline.Summarize {
		switch cfg.Summarization.Mode {
		case "mock", "exec", "ollama":
		default:
			return errors.New("summarization.mode must be one of mock|exec|ollama")
		}
		if cfg.Summarization.Model == "" {
			return errors.New("summarization.model must not be empty")
		}
		if cfg.Summarization.Mode == "ollama" && cfg.Summarization.Endpoint == "" {
			return errors.New("summarization.endpoint must be set when mode=ollama")
		}
		if cfg.Summarization.Mode == "exec" && cfg.Summarization.Command == "" {
			return errors.New("summarization.command must be set when mode=exec")
		}
		if cfg.Summarization.FullMinLength < 0 || cfg.Summarization.FullMaxLength < cfg.Summarization.FullMinLength {
			return errors.New("summarization.full_max_length must be >= full_min_length >= 0")
		}
		if cfg.Summarization.SpeakerMinLength < 0 || cfg.Summarization.SpeakerMaxLength < cfg.Summarization.SpeakerMinLength {
			return errors.New("summarization.speaker_max_length must be >= speaker_min_length >= 0")
		}
	}
	if cfg.Pipeline.Vectorize {
		switch cfg.Vectorization.Mode {
		case "mock", "exec", "ollama":
		default:
			return errors.New("vectorization.mode must be one of mock|exec|ollama")
		}
		if cfg.Vectorization.Model == "" {
			return errors.New("vectorization.model must not be empty")
		}
		if cfg.Vectorization.Mode == "ollama" && cfg.Vectorization.Endpoint == "" {
			return errors.New("vectorization.endpoint must be set when mode=ollama")
		}
		if cfg.Vectorization.Mode == "exec" && cfg.Vectorization.Command == "" {
			return errors.New("vectorization.command must be set when mode=exec")
		}
		if cfg.Vectorization.Dimension <= 0 {
			return errors.New("vectorization.dimension must be positive")
		}
	}
	return nil
}
