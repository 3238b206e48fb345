// Package media turns input recordings into the 16 kHz mono WAV files the
// speech backends expect.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
)

// ErrUnsupported is returned for files that are neither audio nor video.
var ErrUnsupported = errors.New("unsupported media format")

// Converter runs ffmpeg.
type Converter struct {
	ffmpeg     string
	sampleRate int
	channels   int
	dir        string
}

// NewConverter writes converted files to cfg.TempDir, or to cacheDir when
// that is empty.
func NewConverter(cfg config.MediaConfig, cacheDir string) *Converter {
	dir := cfg.TempDir
	if dir == "" {
		dir = cacheDir
	}
	if dir == "" {
		dir = os.TempDir()
	}
	c := &Converter{ffmpeg: cfg.FFmpegPath, sampleRate: cfg.SampleRate, channels: cfg.Channels, dir: dir}
	if c.ffmpeg == "" {
		c.ffmpeg = "ffmpeg"
	}
	if c.sampleRate <= 0 {
		c.sampleRate = 16000
	}
	if c.channels <= 0 {
		c.channels = 1
	}
	return c
}

// Prepare returns a WAV path for input. WAV files are used as they are;
// audio is resampled and video has its audio track extracted.
func (c *Converter) Prepare(ctx context.Context, input string) (string, error) {
	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fault.NotFound("media", fmt.Errorf("file not found: %s", input))
		}
		return "", fmt.Errorf("stat %s: %w", input, err)
	}
	if ext(input) == ".wav" {
		return input, nil
	}
	if !IsSupported(input) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(input))
	}
	if _, err := exec.LookPath(c.ffmpeg); err != nil {
		return "", fault.Configuration("media", fmt.Errorf("ffmpeg not found (%s): %w", c.ffmpeg, err))
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	out := filepath.Join(c.dir, BaseName(input)+"_16k.wav")
	args := []string{"-i", input}
	if IsVideo(input) {
		args = append(args, "-vn", "-acodec", "pcm_s16le")
	}
	args = append(args,
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", strconv.Itoa(c.channels),
		"-sample_fmt", "s16",
		"-y", out,
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
