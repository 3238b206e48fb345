package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/file2text/internal/fault"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Transcription.Model != "medium" || cfg.Transcription.Language != "ru" {
		t.Fatalf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	if cfg.Summarization.FullMaxLength != 300 || cfg.Summarization.SpeakerMinLength != 50 {
		t.Fatalf("unexpected summary bounds: %+v", cfg.Summarization)
	}
	if cfg.Vectorization.Dimension != 384 {
		t.Fatalf("expected vector dimension 384, got %d", cfg.Vectorization.Dimension)
	}
	if got := cfg.Output.TextPath(); got != filepath.Join("./output", "text") {
		t.Fatalf("unexpected text path %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FILE2TEXT_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("FILE2TEXT_BUS_USERNAME", "alice")
	t.Setenv("FILE2TEXT_BUS_PASSWORD", "secret")
	t.Setenv("FILE2TEXT_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("FILE2TEXT_NODE_ID", "test-node")
	t.Setenv("FILE2TEXT_PIPELINE_WORKERS", "4")
	t.Setenv("FILE2TEXT_PIPELINE_VECTORIZE", "true")
	t.Setenv("FILE2TEXT_OUTPUT_DIR", "/tmp/out")
	t.Setenv("FILE2TEXT_TEXT_INTERJECTIONS", "Ага, Угу")
	t.Setenv("WHISPER_MODEL", "small")
	t.Setenv("WHISPER_DEVICE", "cpu")
	t.Setenv("SUMMARIZER_MODEL", "custom/summarizer")
	t.Setenv("VECTORIZER_MODEL", "custom/vectorizer")
	t.Setenv("HUGGINGFACE_TOKEN", "hf_token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Node.ID != "test-node" {
		t.Fatalf("expected node id override")
	}
	if cfg.Pipeline.Workers != 4 || !cfg.Pipeline.Vectorize {
		t.Fatalf("expected pipeline overrides, got %+v", cfg.Pipeline)
	}
	if cfg.Output.SummaryPath() != filepath.Join("/tmp/out", "sumText") {
		t.Fatalf("unexpected summary path %q", cfg.Output.SummaryPath())
	}
	if len(cfg.Text.Interjections) != 2 || cfg.Text.Interjections[1] != "Угу" {
		t.Fatalf("unexpected interjections %v", cfg.Text.Interjections)
	}
	if cfg.Transcription.Model != "small" || cfg.Transcription.Device != "cpu" {
		t.Fatalf("expected legacy whisper overrides, got %+v", cfg.Transcription)
	}
	if cfg.Summarization.Model != "custom/summarizer" || cfg.Vectorization.Model != "custom/vectorizer" {
		t.Fatalf("expected model overrides")
	}
	if cfg.Diarization.AuthToken != "hf_token" {
		t.Fatalf("expected diarization token from HUGGINGFACE_TOKEN")
	}
}

func TestPrefixedOverrideWinsOverLegacyName(t *testing.T) {
	t.Setenv("WHISPER_MODEL", "small")
	t.Setenv("FILE2TEXT_TRANSCRIPTION_MODEL", "large-v3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transcription.Model != "large-v3" {
		t.Fatalf("expected large-v3, got %q", cfg.Transcription.Model)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file2text.yaml")
	data := []byte(`
runtime_name: scribe
pipeline:
  diarize: true
  vectorize: true
diarization:
  mode: mock
summarization:
  mode: ollama
  model: llama3.2:latest
  full_max_length: 400
vectorization:
  mode: ollama
  model: nomic-embed-text
  dimension: 768
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "scribe" || !cfg.Pipeline.Diarize {
		t.Fatalf("expected yaml values, got %+v", cfg)
	}
	if cfg.Summarization.FullMaxLength != 400 || cfg.Summarization.FullMinLength != 100 {
		t.Fatalf("expected merged summary bounds, got %+v", cfg.Summarization)
	}
	if cfg.Vectorization.Dimension != 768 {
		t.Fatalf("expected dimension 768, got %d", cfg.Vectorization.Dimension)
	}
}

func TestMissingConfigFileIsConfigurationError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDiarizationRequiresToken(t *testing.T) {
	t.Setenv("HUGGINGFACE_TOKEN", "")
	t.Setenv("FILE2TEXT_PIPELINE_DIARIZE", "true")
	t.Setenv("FILE2TEXT_DIARIZATION_MODE", "exec")
	t.Setenv("FILE2TEXT_DIARIZATION_COMMAND", "python3 diarize.py")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when diarization token is missing")
	}
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !fault.AbortsRun(err) {
		t.Fatal("missing token must abort the run")
	}
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	cases := map[string]func(*Config){
		"transcription": func(c *Config) { c.Transcription.Mode = "cloud" },
		"summarization": func(c *Config) { c.Summarization.Mode = "cloud" },
		"exec command":  func(c *Config) { c.Transcription.Mode = "exec" },
		"deepgram key":  func(c *Config) { c.Transcription.Mode = "deepgram" },
		"workers":       func(c *Config) { c.Pipeline.Workers = 0 },
		"bounds":        func(c *Config) { c.Summarization.FullMaxLength = 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
