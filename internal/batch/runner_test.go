package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/loqalabs/file2text/internal/artifact"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu       sync.Mutex
	errs     map[string]error
	seen     []string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeProcessor) Process(_ context.Context, path string, _ pipeline.Options) (*pipeline.Result, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, path)
	err := f.errs[filepath.Base(path)]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{AudioPath: path, Text: "текст " + filepath.Base(path), Metadata: map[string]any{}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func newWriter(t *testing.T) *artifact.Writer {
	return artifact.NewWriter(config.OutputConfig{Dir: t.TempDir(), TextDir: "text", SummaryDir: "sum"}, false)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.mp3", "a.MP4", "notes.txt", "c.wav")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755))

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.MP4"),
		filepath.Join(dir, "b.mp3"),
		filepath.Join(dir, "c.wav"),
	}, paths)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestRunContinuesAfterUnitFailure(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp3", "b.mp3", "c.mp3")
	proc := &fakeProcessor{errs: map[string]error{
		"b.mp3": fault.Resource("transcribe", errors.New("CUDA out of memory")),
	}}
	w := newWriter(t)
	r := NewRunner(proc, w, Options{Workers: 2, DeleteProcessed: true}, discardLogger())

	report, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Items[1].Err, fault.ErrResource)
	assert.FileExists(t, filepath.Join(w.TextDir(), "a_full.txt"))
	assert.Equal(t, filepath.Join(w.TextDir(), "c_full.txt"), report.Items[2].Paths.FullText)

	assert.NoFileExists(t, paths[0])
	assert.FileExists(t, paths[1])
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
}

func TestRunAbortsOnConfigurationError(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp3", "b.mp3", "c.mp3", "d.mp3")
	proc := &fakeProcessor{errs: map[string]error{
		"a.mp3": fault.Configurationf("diarize", "HUGGINGFACE_TOKEN is not set"),
	}}
	r := NewRunner(proc, newWriter(t), Options{Workers: 1}, discardLogger())

	report, err := r.Run(context.Background(), paths)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 3, report.Skipped)
	assert.Len(t, proc.seen, 1)
}
