package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/file2text/internal/artifact"
	"github.com/loqalabs/file2text/internal/batch"
	"github.com/loqalabs/file2text/internal/bus"
	"github.com/loqalabs/file2text/internal/capability"
	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/protocol"
	"github.com/loqalabs/file2text/internal/repetition"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/vectorize"
)

// stageFlags lets a command switch optional stages on or off over the
// configured selection.
type stageFlags struct {
	language  string
	diarize   bool
	vectorize bool
	noSummary bool
	json      bool
}

func (s *stageFlags) register(fs *flag.FlagSet, summaries bool) {
	fs.StringVar(&s.language, "lang", "", "Transcription language (defaults to config)")
	fs.BoolVar(&s.diarize, "diarize", false, "Attribute segments to speakers")
	fs.BoolVar(&s.vectorize, "vectorize", false, "Embed the transcript")
	fs.BoolVar(&s.json, "json", false, "Also write the result as JSON")
	if summaries {
		fs.BoolVar(&s.noSummary, "no-summary", false, "Skip summarization")
	}
}

func runProcess(ctx context.Context, args []string) error {
	return processFiles(ctx, "process", args, true)
}

func runTranscribe(ctx context.Context, args []string) error {
	return processFiles(ctx, "transcribe", args, false)
}

func processFiles(ctx context.Context, name string, args []string, summaries bool) error {
	var (
		c      common
		stages stageFlags
	)
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.register(fs)
	stages.register(fs, summaries)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%s: expected at least one media file", name)
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	cfg.Pipeline.Transcribe = true
	cfg.Pipeline.Diarize = cfg.Pipeline.Diarize || stages.diarize
	cfg.Pipeline.Vectorize = cfg.Pipeline.Vectorize || stages.vectorize
	cfg.Pipeline.Summarize = summaries && cfg.Pipeline.Summarize && !stages.noSummary

	orchestrator, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	opts := pipeline.OptionsFromConfig(cfg.Pipeline)
	opts.Language = stages.language
	writer := artifact.NewWriter(cfg.Output, cfg.Pipeline.WriteJSON || stages.json)

	var failed int
	for _, path := range fs.Args() {
		res, err := orchestrator.Process(ctx, path, opts)
		if err != nil {
			if errors.Is(err, media.ErrUnsupported) {
				logger.Warn("skipping unsupported file", "path", path)
				continue
			}
			if fault.AbortsRun(err) {
				return err
			}
			logger.Error("processing failed", "path", path, "error", err)
			failed++
			continue
		}
		paths, err := writer.Write(media.BaseName(path), res)
		if err != nil {
			return err
		}
		printJSON(paths)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, fs.NArg())
	}
	return nil
}

func runSummarize(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	cfg.Pipeline = config.PipelineConfig{Summarize: true}
	orchestrator, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	writer := artifact.NewWriter(cfg.Output, false)
	sources, err := writer.Scan()
	if err != nil {
		return err
	}
	sup := repetition.NewWithInterjections(cfg.Text.Interjections)

	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var full string
		if src.FullText != "" {
			text, err := artifact.ReadText(src.FullText)
			if err != nil {
				return err
			}
			full = orchestrator.SummarizeFull(ctx, text)
		}
		var bySpeaker speakers.SpeakersText
		if src.SpeakerText != "" {
			text, err := artifact.ReadText(src.SpeakerText)
			if err != nil {
				return err
			}
			if parsed := artifact.ParseSpeakerText(text, sup); len(parsed.Labels()) > 0 {
				bySpeaker = orchestrator.SummarizeBySpeakers(ctx, parsed)
			}
		}
		paths, err := writer.WriteSummaries(src.Base, full, bySpeaker)
		if err != nil {
			return err
		}
		logger.Info("summaries written", "base", src.Base)
		printJSON(paths)
	}
	return nil
}

func runVectorize(ctx context.Context, args []string) error {
	var (
		c         common
		query     string
		topK      int
		threshold float64
		out       string
	)
	fs := flag.NewFlagSet("vectorize", flag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&query, "query", "", "Rank the inputs by similarity to this text")
	fs.IntVar(&topK, "top", 5, "Number of matches to print")
	fs.Float64Var(&threshold, "threshold", 0, "Minimum cosine similarity")
	fs.StringVar(&out, "out", "", "Write the vectors to this CBOR file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("vectorize: expected at least one text file")
	}

	cfg, _, err := c.load()
	if err != nil {
		return err
	}
	v, err := vectorize.FromConfig(cfg.Vectorization)
	if err != nil {
		return err
	}

	texts := make([]string, 0, fs.NArg())
	for _, path := range fs.Args() {
		text, err := artifact.ReadText(path)
		if err != nil {
			return err
		}
		texts = append(texts, text)
	}

	if out != "" {
		vectors, err := vectorize.VectorizeBatch(ctx, v, texts)
		if err != nil {
			return err
		}
		if err := vectorize.SaveFile(out, vectorize.Prepare(v, vectors...)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d vectors to %s\n", len(vectors), out)
	}

	if query != "" {
		matches, err := vectorize.Search(ctx, v, query, texts, topK, threshold)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Printf("%.4f\t%s\n", m.Score, filepath.Base(fs.Arg(m.Index)))
		}
	}
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	var (
		c       common
		input   string
		workers int
		remove  bool
	)
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&input, "input", "", "Directory with media files (defaults to config)")
	fs.IntVar(&workers, "workers", 0, "Files processed in parallel (defaults to config)")
	fs.BoolVar(&remove, "delete", false, "Delete sources after successful processing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	if input == "" {
		input = cfg.Output.InputDir
	}
	if workers <= 0 {
		workers = cfg.Pipeline.Workers
	}

	orchestrator, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	paths, err := batch.Discover(input)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Info("no media files found", "dir", input)
		return nil
	}

	runner := batch.NewRunner(orchestrator, artifact.NewWriter(cfg.Output, cfg.Pipeline.WriteJSON), batch.Options{
		Pipeline:        pipeline.OptionsFromConfig(cfg.Pipeline),
		Workers:         workers,
		DeleteProcessed: cfg.Pipeline.DeleteProcessed || remove,
	}, logger)
	report, err := runner.Run(ctx, paths)
	printJSON(report)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, len(paths))
	}
	return nil
}

func runSubmit(ctx context.Context, args []string) error {
	var (
		c        common
		stages   stageFlags
		timeout  time.Duration
		discover time.Duration
	)
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	c.register(fs)
	stages.register(fs, true)
	fs.DurationVar(&timeout, "timeout", time.Hour, "How long to wait for the result")
	fs.DurationVar(&discover, "discover", 500*time.Millisecond, "How long to wait for nodes to answer discovery (0 skips the check)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("submit: expected exactly one media file")
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	client, err := bus.Connect(ctx, cfg.Bus, "file2text-cli", logger)
	if err != nil {
		return err
	}
	defer client.Close()

	req := protocol.ProcessRequest{
		JobID:    uuid.NewString(),
		Path:     path,
		Language: stages.language,
	}
	if stages.diarize {
		req.Diarize = protocol.Bool(true)
	}
	if stages.vectorize {
		req.Vectorize = protocol.Bool(true)
	}
	if stages.noSummary {
		req.Summarize = protocol.Bool(false)
	}

	if discover > 0 {
		if err := checkNodes(ctx, client, discover, req); err != nil {
			return err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var result protocol.ProcessResult
	if err := client.RequestJSON(reqCtx, cfg.Worker.Subject, req, &result); err != nil {
		return err
	}
	printJSON(result)
	if result.Status != protocol.StatusCompleted {
		return fmt.Errorf("job %s failed: %s", result.JobID, result.Error)
	}
	return nil
}

// checkNodes fails when no node on the bus serves the stages the request
// turns on explicitly. Stages left to the daemon's defaults are not checked.
func checkNodes(ctx context.Context, client *bus.Client, wait time.Duration, req protocol.ProcessRequest) error {
	nodes, err := capability.Discover(ctx, client, wait)
	if err != nil {
		return err
	}
	required := capability.Required(pipeline.Options{
		Transcribe: true,
		Diarize:    req.Diarize != nil && *req.Diarize,
		Vectorize:  req.Vectorize != nil && *req.Vectorize,
	})
	if len(capability.Select(nodes, required...)) == 0 {
		return fault.Configuration("submit", fmt.Errorf("none of %d nodes serves stages %s", len(nodes), strings.Join(required, ", ")))
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
