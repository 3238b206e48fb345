package protocol

import (
	"encoding/json"
	"time"
)

// ProcessRequest asks a worker to run the pipeline over one file that is
// reachable from the worker's filesystem. Nil stage flags fall back to the
// worker's configuration.
type ProcessRequest struct {
	JobID      string `json:"job_id,omitempty"`
	Path       string `json:"path"`
	Language   string `json:"language,omitempty"`
	Transcribe *bool  `json:"transcribe,omitempty"`
	Diarize    *bool  `json:"diarize,omitempty"`
	Summarize  *bool  `json:"summarize,omitempty"`
	Vectorize  *bool  `json:"vectorize,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ProcessResult reports the outcome of a ProcessRequest.
type ProcessResult struct {
	JobID     string            `json:"job_id"`
	Path      string            `json:"path"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	LatencyMS int64             `json:"latency_ms"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	SubjectProcess       = "file2text.jobs.process"
	SubjectCompleted     = "file2text.jobs.completed"
	SubjectFailed        = "file2text.jobs.failed"
	SubjectNodeAnnounce  = "ctrl.node.announce"
	SubjectNodeHeartbeat = "ctrl.node.heartbeat"
	SubjectNodeDiscover  = "ctrl.node.discover"
)

// StageCapability is a pipeline stage a node can run and the backend mode
// serving it.
type StageCapability struct {
	Stage      string            `json:"stage"`
	Backend    string            `json:"backend"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NodeStatus is published when a node starts, on every heartbeat and in
// reply to discovery requests.
type NodeStatus struct {
	NodeID     string            `json:"node_id"`
	Role       string            `json:"role"`
	Stages     []StageCapability `json:"stages"`
	ActiveJobs int               `json:"active_jobs"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Bool returns a pointer for the optional stage flags.
func Bool(v bool) *bool { return &v }
