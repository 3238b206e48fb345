package capability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/file2text/internal/bus"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/natsserver"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	log := discardLogger()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Host: "127.0.0.1", Port: -1}, log)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, "registry-test", log)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func startRegistry(t *testing.T, client *bus.Client, id string, stages ...protocol.StageCapability) *Registry {
	t.Helper()
	node := config.NodeConfig{ID: id, Role: "worker", HeartbeatInterval: 50, HeartbeatTimeout: 500}
	reg, err := NewRegistry(context.Background(), node, stages, client, discardLogger())
	require.NoError(t, err)
	return reg
}

func stage(name, backend string) protocol.StageCapability {
	return protocol.StageCapability{Stage: name, Backend: backend}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Diarize = true
	cfg.Pipeline.Summarize = false

	stages := FromConfig(cfg)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Stage
	}
	assert.Equal(t, []string{"media", "transcribe", "diarize"}, names)
	assert.Equal(t, "mock", stages[1].Backend)
	assert.Equal(t, "medium", stages[1].Attributes["model"])
}

func TestRequired(t *testing.T) {
	assert.Equal(t, []string{"media", "transcribe", "summarize"},
		Required(pipeline.Options{Transcribe: true, Summarize: true}))
	assert.Equal(t, []string{"media", "transcribe", "diarize", "vectorize"},
		Required(pipeline.Options{Transcribe: true, Diarize: true, Vectorize: true}))
}

func TestSelectPrefersIdleNodes(t *testing.T) {
	nodes := []Node{
		nodeFromStatus(protocol.NodeStatus{NodeID: "b", ActiveJobs: 2, Stages: []protocol.StageCapability{stage("media", "ffmpeg"), stage("transcribe", "exec")}}, time.Now()),
		nodeFromStatus(protocol.NodeStatus{NodeID: "c", ActiveJobs: 0, Stages: []protocol.StageCapability{stage("media", "ffmpeg")}}, time.Now()),
		nodeFromStatus(protocol.NodeStatus{NodeID: "a", ActiveJobs: 2, Stages: []protocol.StageCapability{stage("media", "ffmpeg"), stage("transcribe", "mock")}}, time.Now()),
	}
	got := Select(nodes, "media", "transcribe")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "exec", got[1].Backend("transcribe"))
	assert.Len(t, Select(nodes, "media"), 3)
	assert.Equal(t, "c", Select(nodes, "media")[0].ID)
}

func TestRegistryTracksPeerStages(t *testing.T) {
	client := startBus(t)
	reg := startRegistry(t, client, "node-a", stage("media", "ffmpeg"), stage("transcribe", "exec"), stage("summarize", "ollama"))
	defer reg.Close()
	assert.True(t, reg.Healthy())

	opts := pipeline.Options{Transcribe: true, Vectorize: true}
	err := reg.Check(opts)
	require.Error(t, err)
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
	assert.Contains(t, err.Error(), "vectorize")

	peer := startRegistry(t, client, "node-b", stage("media", "ffmpeg"), stage("transcribe", "mock"), stage("vectorize", "mock"))
	peer.SetLoad(func() int { return 3 })

	require.Eventually(t, func() bool {
		nodes := Select(reg.Nodes(), "vectorize")
		return len(nodes) == 1 && nodes[0].ActiveJobs == 3
	}, 2*time.Second, 20*time.Millisecond)
	assert.NoError(t, reg.Check(opts))
	assert.NoError(t, reg.Check(pipeline.Options{Transcribe: true, Summarize: true}))

	peer.Close()
	require.Eventually(t, func() bool {
		return len(reg.Nodes()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Error(t, reg.Check(opts))
}

func TestDiscover(t *testing.T) {
	client := startBus(t)
	a := startRegistry(t, client, "node-a", stage("media", "ffmpeg"), stage("transcribe", "exec"))
	defer a.Close()
	b := startRegistry(t, client, "node-b", stage("media", "ffmpeg"), stage("diarize", "exec"))
	defer b.Close()

	nodes, err := Discover(context.Background(), client, 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "node-a", nodes[0].ID)
	assert.True(t, nodes[1].Serves("media", "diarize"))
	assert.Empty(t, Select(nodes, "summarize"))
}
