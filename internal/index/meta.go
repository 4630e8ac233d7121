package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Meta describes a persisted scene index: the sampling parameters and the
// timestamp for each indexed vector. Timestamps[i] is the source time of the
// vector at position i, so search positions map straight to seconds.
type Meta struct {
	SampleIntervalSec int       `json:"sample_interval_sec"`
	FrameWidth        int       `json:"frame_width"`
	Count             int       `json:"count"`
	Duration          float64   `json:"duration,omitempty"` // probed source length, seconds
	Timestamps        []float64 `json:"timestamps"`
}

// SaveMeta writes the metadata document next to the vector file, published
// atomically via temp-and-rename.
func SaveMeta(path string, m *Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index meta: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return fmt.Errorf("create temp meta: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index meta: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp meta: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish index meta: %w", err)
	}
	return nil
}

// LoadMeta reads a metadata document written by SaveMeta.
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index meta: %w", err)
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode index meta: %w", err)
	}
	return &m, nil
}
