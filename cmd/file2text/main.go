package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
)

var version = "0.1.0-dev"

const usage = `usage: file2text <command> [flags] [args]

commands:
  process    run the pipeline over media files and write artifacts
  transcribe transcribe media files without summaries
  summarize  summarize transcripts found in the text directory
  vectorize  embed text files, optionally searching them with -query
  batch      process every media file in the input directory
  submit     send a file to a running daemon over the bus
  version    print the version`

type command func(ctx context.Context, args []string) error

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	commands := map[string]command{
		"process":    runProcess,
		"transcribe": runTranscribe,
		"summarize":  runSummarize,
		"vectorize":  runVectorize,
		"batch":      runBatch,
		"submit":     runSubmit,
	}

	name := os.Args[1]
	switch name {
	case "version":
		fmt.Println(version)
		return
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", name, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		if fault.KindOf(err) == fault.KindConfiguration {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

// common holds the flags every pipeline command accepts.
type common struct {
	configPath string
	verbose    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "file2text.yaml", "Path to configuration file")
	fs.BoolVar(&c.verbose, "v", false, "Log at debug level")
}

// load reads the configuration. A missing file at the default path is not
// an error for the CLI; defaults and environment overrides apply.
func (c *common) load() (config.Config, *slog.Logger, error) {
	path := c.configPath
	if _, err := os.Stat(path); err != nil && path == "file2text.yaml" {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.Telemetry.SlogLevel()
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
