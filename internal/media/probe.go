package media

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Info describes a PCM WAV file.
type Info struct {
	Format   *audio.Format
	BitDepth int
	Duration time.Duration
}

// Probe reads the WAV header of path.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("%s is not a valid wav file", path)
	}
	duration, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("wav duration: %w", err)
	}
	return Info{
		Format:   dec.Format(),
		BitDepth: int(dec.BitDepth),
		Duration: duration,
	}, nil
}
