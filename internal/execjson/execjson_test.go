package execjson

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/file2text/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestParse(t *testing.T) {
	cmd, err := Parse(`python3 "my helper.py" --flag`)
	require.NoError(t, err)
	assert.Equal(t, "python3", cmd.Name())
	assert.Equal(t, []string{"my helper.py", "--flag"}, cmd.args)

	_, err = Parse("   ")
	assert.Error(t, err)
}

func TestRunRoundTripsJSON(t *testing.T) {
	script := writeScript(t, `cat >/dev/null; echo '{"summary":"ok","arg":"'"$1"'","token":"'"$TOKEN"'"}'`)
	cmd, err := Parse("sh " + script)
	require.NoError(t, err)

	var out struct {
		Summary string `json:"summary"`
		Arg     string `json:"arg"`
		Token   string `json:"token"`
	}
	err = cmd.WithEnv("TOKEN=secret").Run(context.Background(), []string{"--audio"}, map[string]string{"text": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
	assert.Equal(t, "--audio", out.Arg)
	assert.Equal(t, "secret", out.Token)
}

func TestRunClassifiesOutOfMemory(t *testing.T) {
	script := writeScript(t, `echo "RuntimeError: CUDA out of memory. Tried to allocate" >&2; exit 1`)
	cmd, err := Parse("sh " + script)
	require.NoError(t, err)

	err = cmd.Run(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrResource)
}

func TestRunMissingExecutable(t *testing.T) {
	cmd, err := Parse("definitely-not-a-real-binary-file2text")
	require.NoError(t, err)

	err = cmd.Run(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestRunPlainFailure(t *testing.T) {
	script := writeScript(t, `echo "bad input" >&2; exit 3`)
	cmd, err := Parse("sh " + script)
	require.NoError(t, err)

	err = cmd.Run(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.False(t, fault.Fatal(err))
	assert.Contains(t, err.Error(), "bad input")
}
