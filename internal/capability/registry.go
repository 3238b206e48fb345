// Package capability tracks which nodes on the bus can run which pipeline
// stages.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/file2text/internal/bus"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Node is the last status received from a file2text node.
type Node struct {
	ID         string
	Role       string
	Stages     map[string]protocol.StageCapability
	ActiveJobs int
	LastSeen   time.Time
}

// Serves reports whether the node runs every one of stages.
func (n Node) Serves(stages ...string) bool {
	for _, s := range stages {
		if _, ok := n.Stages[s]; !ok {
			return false
		}
	}
	return true
}

// Backend returns the backend mode the node uses for stage, or "".
func (n Node) Backend(stage string) string {
	return n.Stages[stage].Backend
}

func nodeFromStatus(st protocol.NodeStatus, seen time.Time) Node {
	stages := make(map[string]protocol.StageCapability, len(st.Stages))
	for _, s := range st.Stages {
		stages[s.Stage] = s
	}
	return Node{
		ID:         st.NodeID,
		Role:       st.Role,
		Stages:     stages,
		ActiveJobs: st.ActiveJobs,
		LastSeen:   seen,
	}
}

// Select returns the nodes serving every one of stages, least busy first.
func Select(nodes []Node, stages ...string) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Serves(stages...) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ActiveJobs != nodes[j].ActiveJobs {
			return nodes[i].ActiveJobs < nodes[j].ActiveJobs
		}
		return nodes[i].ID < nodes[j].ID
	})
}

type Registry struct {
	cfg    config.NodeConfig
	stages []protocol.StageCapability
	log    *slog.Logger
	bus    *bus.Client
	mu     sync.RWMutex
	nodes  map[string]Node
	load   func() int
	subs   []*nats.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry announces the local node with its stages, answers discovery
// requests and follows the status of the other nodes. Nodes silent for
// longer than the heartbeat timeout are forgotten.
func NewRegistry(ctx context.Context, cfg config.NodeConfig, stages []protocol.StageCapability, busClient *bus.Client, log *slog.Logger) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		cfg:    cfg,
		stages: stages,
		log:    log.With(slog.String("component", "capability-registry")),
		bus:    busClient,
		nodes:  make(map[string]Node),
		cancel: cancel,
	}

	if err := r.subscribe(); err != nil {
		cancel()
		r.unsubscribe()
		return nil, err
	}
	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slogError(err))
	}
	if err := r.publish(protocol.SubjectNodeAnnounce); err != nil {
		r.log.Warn("failed to announce node", slogError(err))
	}

	r.wg.Add(1)
	go r.run(ctx)
	return r, nil
}

func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
	r.unsubscribe()
}

// SetLoad installs the source of the active job count reported in
// heartbeats.
func (r *Registry) SetLoad(fn func() int) {
	r.mu.Lock()
	r.load = fn
	r.mu.Unlock()
}

func (r *Registry) subscribe() error {
	conn := r.bus.Conn()
	for subject, handler := range map[string]nats.MsgHandler{
		protocol.SubjectNodeAnnounce:         r.handleStatus,
		protocol.SubjectNodeHeartbeat + ".*": r.handleStatus,
		protocol.SubjectNodeDiscover:         r.handleDiscover,
	} {
		sub, err := conn.Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

func (r *Registry) unsubscribe() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.subs = nil
}

func (r *Registry) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Duration(r.cfg.HeartbeatInterval) * time.Millisecond)
	defer ticker.Stop()

	subject := protocol.SubjectNodeHeartbeat + "." + r.cfg.ID
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.publish(subject); err != nil {
				r.log.Warn("failed to publish heartbeat", slogError(err))
			}
			r.prune(time.Now())
		}
	}
}

func (r *Registry) status() protocol.NodeStatus {
	r.mu.RLock()
	load := r.load
	r.mu.RUnlock()

	st := protocol.NodeStatus{
		NodeID:    r.cfg.ID,
		Role:      r.cfg.Role,
		Stages:    r.stages,
		Timestamp: time.Now().UTC(),
	}
	if load != nil {
		st.ActiveJobs = load()
	}
	return st
}

// publish sends the local status on subject and records it directly, so
// the local node stays known even when the bus drops our own messages.
func (r *Registry) publish(subject string) error {
	st := r.status()
	r.observe(st, time.Now())
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.bus.Conn().Publish(subject, payload)
}

func (r *Registry) handleStatus(msg *nats.Msg) {
	var st protocol.NodeStatus
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		r.log.Warn("invalid node status", slogError(err))
		return
	}
	if st.NodeID == "" {
		r.log.Warn("node status without id", slog.String("subject", msg.Subject))
		return
	}
	r.observe(st, time.Now())
}

func (r *Registry) handleDiscover(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	payload, err := json.Marshal(r.status())
	if err != nil {
		r.log.Warn("failed to encode node status", slogError(err))
		return
	}
	if err := msg.Respond(payload); err != nil {
		r.log.Warn("failed to answer discovery", slogError(err))
	}
}

// observe stores st using the local receive time, so peers with skewed
// clocks are not pruned early.
func (r *Registry) observe(st protocol.NodeStatus, seen time.Time) {
	node := nodeFromStatus(st, seen)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.nodes[node.ID]; !known && node.ID != r.cfg.ID {
		r.log.Info("node joined", slog.String("node", node.ID), slog.Int("stages", len(node.Stages)))
	}
	r.nodes[node.ID] = node
}

func (r *Registry) prune(now time.Time) {
	timeout := time.Duration(r.cfg.HeartbeatTimeout) * time.Millisecond
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, node := range r.nodes {
		if now.Sub(node.LastSeen) > timeout {
			delete(r.nodes, id)
			r.log.Info("node expired", slog.String("node", id))
		}
	}
}

// Healthy reports whether the local node has heartbeated within the
// timeout.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[r.cfg.ID]
	if !ok {
		return false
	}
	return time.Since(node.LastSeen) <= time.Duration(r.cfg.HeartbeatTimeout)*time.Millisecond
}

// Nodes returns every known node, least busy first.
func (r *Registry) Nodes() []Node {
	r.mu.RLock()
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sortNodes(out)
	return out
}

// Check returns a configuration error when no known node can run a job
// with opts.
func (r *Registry) Check(opts pipeline.Options) error {
	required := Required(opts)
	if len(Select(r.Nodes(), required...)) == 0 {
		return fault.Configuration("capability", fmt.Errorf("no node serves stages %s", strings.Join(required, ", ")))
	}
	return nil
}

// Discover asks every registry on the bus for its status and collects the
// answers that arrive within wait.
func Discover(ctx context.Context, client *bus.Client, wait time.Duration) ([]Node, error) {
	conn := client.Conn()
	inbox := nats.NewInbox()
	sub, err := conn.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("subscribe discovery inbox: %w", err)
	}
	defer sub.Unsubscribe()

	if err := conn.PublishRequest(protocol.SubjectNodeDiscover, inbox, nil); err != nil {
		return nil, fmt.Errorf("publish discovery: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	byID := make(map[string]Node)
	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			break
		}
		var st protocol.NodeStatus
		if err := json.Unmarshal(msg.Data, &st); err != nil || st.NodeID == "" {
			continue
		}
		byID[st.NodeID] = nodeFromStatus(st, time.Now())
	}

	nodes := make([]Node, 0, len(byID))
	for _, n := range byID {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	return nodes, nil
}

func (r *Registry) initMetrics() error {
	meter := otel.Meter("github.com/loqalabs/file2text/capability")
	serving, err := meter.Int64ObservableGauge("file2text.nodes.serving",
		metric.WithDescription("Known nodes serving each pipeline stage"))
	if err != nil {
		return err
	}
	active, err := meter.Int64ObservableGauge("file2text.nodes.active_jobs",
		metric.WithDescription("Jobs running on known nodes"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		perStage := make(map[string]int64)
		var jobs int64
		for _, n := range r.Nodes() {
			jobs += int64(n.ActiveJobs)
			for stage := range n.Stages {
				perStage[stage]++
			}
		}
		for stage, count := range perStage {
			obs.ObserveInt64(serving, count, metric.WithAttributes(attribute.String("stage", stage)))
		}
		obs.ObserveInt64(active, jobs)
		return nil
	}, serving, active)
	return err
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
