// Package worker serves processing jobs received over NATS.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/file2text/internal/artifact"
	"github.com/loqalabs/file2text/internal/bus"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrShuttingDown answers jobs that arrive while the worker is closing.
var ErrShuttingDown = errors.New("worker is shutting down")

// Processor runs the pipeline over one file.
type Processor interface {
	Process(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

type Service struct {
	cfg      config.WorkerConfig
	bus      *bus.Client
	proc     Processor
	writer   *artifact.Writer
	defaults pipeline.Options
	sem      chan struct{}
	mu       sync.Mutex
	closed   bool
	active   atomic.Int64
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ready    atomic.Bool
	logger   *slog.Logger
	jobs     metric.Int64Counter
}

// NewService builds a worker. A nil writer disables artifact files; results
// are then only returned on the bus.
func NewService(parent context.Context, cfg config.WorkerConfig, busClient *bus.Client, proc Processor, writer *artifact.Writer, defaults pipeline.Options, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	s := &Service{
		cfg:      cfg,
		bus:      busClient,
		proc:     proc,
		writer:   writer,
		defaults: defaults,
		sem:      make(chan struct{}, concurrency),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "worker")),
	}
	jobs, err := otel.Meter("github.com/loqalabs/file2text/worker").Int64Counter("file2text.worker.jobs",
		metric.WithDescription("Processing jobs handled by status"))
	if err != nil {
		s.logger.Warn("failed to create job counter", slogError(err))
	}
	s.jobs = jobs
	return s
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	subject := s.cfg.Subject
	if subject == "" {
		subject = protocol.SubjectProcess
	}
	sub, err := s.bus.Conn().QueueSubscribe(subject, s.cfg.QueueGroup, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe process jobs: %w", err)
	}
	s.sub = sub
	s.ready.Store(true)
	s.logger.Info("worker listening", slog.String("subject", subject), slog.String("queue", s.cfg.QueueGroup))
	return nil
}

// Close stops accepting jobs and cancels the running ones. Every job
// received before or during Close is answered, late ones with
// ErrShuttingDown.
func (s *Service) Close() {
	s.ready.Store(false)
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Active returns the number of jobs currently running.
func (s *Service) Active() int {
	return int(s.active.Load())
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready.Load()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.ProcessRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode process request", slogError(err))
		s.finish(msg, protocol.ProcessResult{
			Status:    protocol.StatusFailed,
			Error:     "invalid request: " + err.Error(),
			ErrorKind: fault.KindConfiguration.String(),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.finish(msg, rejected(req, ErrShuttingDown))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			s.finish(msg, rejected(req, ErrShuttingDown))
			return
		}
		defer func() { <-s.sem }()
		s.active.Add(1)
		defer s.active.Add(-1)
		s.finish(msg, s.run(req))
	}()
}

func rejected(req protocol.ProcessRequest, err error) protocol.ProcessResult {
	return protocol.ProcessResult{
		JobID:     req.JobID,
		Path:      req.Path,
		TraceID:   req.TraceID,
		Status:    protocol.StatusFailed,
		Error:     err.Error(),
		ErrorKind: fault.KindOf(err).String(),
		Timestamp: time.Now().UTC(),
	}
}

func (s *Service) run(req protocol.ProcessRequest) protocol.ProcessResult {
	out := protocol.ProcessResult{JobID: req.JobID, Path: req.Path, TraceID: req.TraceID}
	log := s.logger.With(slog.String("job_id", req.JobID), slog.String("path", req.Path))

	ctx := s.ctx
	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	start := time.Now()
	err := s.process(ctx, req, &out)
	out.LatencyMS = time.Since(start).Milliseconds()
	out.Timestamp = time.Now().UTC()
	if err != nil {
		out.Status = protocol.StatusFailed
		out.Error = err.Error()
		out.ErrorKind = fault.KindOf(err).String()
		log.Warn("job failed", slogError(err))
		return out
	}
	out.Status = protocol.StatusCompleted
	log.Info("job complete", slog.Int64("latency_ms", out.LatencyMS))
	return out
}

func (s *Service) process(ctx context.Context, req protocol.ProcessRequest, out *protocol.ProcessResult) error {
	if req.Path == "" {
		return fault.Configuration("worker", errors.New("request has no path"))
	}
	res, err := s.proc.Process(ctx, req.Path, s.options(req))
	if err != nil {
		return err
	}
	if s.writer != nil {
		paths, err := s.writer.Write(media.BaseName(req.Path), res)
		if err != nil {
			return fmt.Errorf("write artifacts: %w", err)
		}
		out.Artifacts = artifactMap(paths)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	out.Result = data
	return nil
}

func (s *Service) options(req protocol.ProcessRequest) pipeline.Options {
	opts := s.defaults
	if req.Language != "" {
		opts.Language = req.Language
	}
	apply := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&opts.Transcribe, req.Transcribe)
	apply(&opts.Diarize, req.Diarize)
	apply(&opts.Summarize, req.Summarize)
	apply(&opts.Vectorize, req.Vectorize)
	return opts
}

// finish publishes the result on the status subject and answers the
// requester when the job arrived as a request.
func (s *Service) finish(msg *nats.Msg, result protocol.ProcessResult) {
	if s.jobs != nil {
		s.jobs.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", result.Status)))
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to encode job result", slogError(err))
		return
	}
	subject := protocol.SubjectCompleted
	if result.Status != protocol.StatusCompleted {
		subject = protocol.SubjectFailed
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish job result", slogError(err))
	}
	if msg.Reply != "" {
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("failed to reply to job request", slogError(err))
		}
	}
}

func artifactMap(p artifact.Paths) map[string]string {
	m := map[string]string{}
	add := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	add("full_text", p.FullText)
	add("speaker_text", p.SpeakerText)
	add("summary_full", p.SummaryFull)
	add("summary_speakers", p.SummarySpeakers)
	add("summary_combined", p.SummaryCombined)
	add("vectors", p.Vectors)
	add("json", p.JSON)
	return m
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
