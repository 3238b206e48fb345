package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/loqalabs/file2text/internal/bus"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Telemetry.PrometheusBind = "127.0.0.1:0"
	cfg.Telemetry.TraceSampleRatio = 0
	cfg.Bus.Host = "127.0.0.1"
	cfg.Bus.Port = -1
	cfg.Node.HeartbeatInterval = 100
	cfg.Node.HeartbeatTimeout = 1000
	cfg.Worker.TimeoutSeconds = 10
	cfg.Output = config.OutputConfig{
		Dir:        dir,
		TextDir:    "text",
		SummaryDir: "sumText",
		CacheDir:   filepath.Join(dir, "cache"),
	}
	return cfg
}

func writeWAV(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 16000),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestReadinessBeforeStart(t *testing.T) {
	rt := New(config.Default(), discardLogger())

	rec := httptest.NewRecorder()
	rt.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	rt.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRuntimeServesJobs(t *testing.T) {
	cfg := testConfig(t)
	rt := New(cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("runtime did not stop")
		}
	})

	require.Eventually(t, rt.ready.Load, 5*time.Second, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	rt.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	input := filepath.Join(t.TempDir(), "call.wav")
	writeWAV(t, input)

	busCfg := config.BusConfig{Servers: []string{rt.nats.ClientURL()}, ConnectTimeout: 2000}
	client, err := bus.Connect(context.Background(), busCfg, "runtime-test", discardLogger())
	require.NoError(t, err)
	defer client.Close()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	var out protocol.ProcessResult
	require.NoError(t, client.RequestJSON(reqCtx, protocol.SubjectProcess, protocol.ProcessRequest{JobID: "job-1", Path: input}, &out))

	require.Equal(t, protocol.StatusCompleted, out.Status, out.Error)
	assert.Equal(t, "job-1", out.JobID)
	fullText := out.Artifacts["full_text"]
	require.NotEmpty(t, fullText)
	data, err := os.ReadFile(fullText)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[transcript of call.wav]")
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "text", "call_full.txt"), fullText)
}

func TestTelemetryExposesMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.TraceSampleRatio = 0
	shutdown, handler, err := setupTelemetry(cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	require.NotNil(t, handler)

	counter, err := otel.Meter("runtime-test").Int64Counter("file2text.test.jobs")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "file2text_test_jobs_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
