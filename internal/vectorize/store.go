package vectorize

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Export is the shape handed to vector databases and persisted next to the
// transcripts.
type Export struct {
	Model     string      `cbor:"model" json:"model"`
	Dimension int         `cbor:"dimension" json:"dimension"`
	Vectors   [][]float32 `cbor:"vectors" json:"vectors"`
}

// Prepare wraps vectors with the producing model.
func Prepare(v Vectorizer, vectors ...[]float32) Export {
	return Export{Model: v.Model(), Dimension: v.Dimension(), Vectors: vectors}
}

// SaveFile writes e as CBOR.
func SaveFile(path string, e Export) error {
	data, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// LoadFile reads a file written by SaveFile.
func LoadFile(path string) (Export, error) {
	var e Export
	data, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read vectors: %w", err)
	}
	if err := cbor.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode vectors: %w", err)
	}
	return e, nil
}
