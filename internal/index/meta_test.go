package index

import (
	"path/filepath"
	"testing"
)

func TestMetaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	in := &Meta{
		SampleIntervalSec: 3,
		FrameWidth:        320,
		Count:             4,
		Timestamps:        []float64{0, 3, 6, 9},
	}
	if err := SaveMeta(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := LoadMeta(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.SampleIntervalSec != 3 || out.Count != 4 || len(out.Timestamps) != 4 {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.Timestamps[3] != 9 {
		t.Errorf("timestamp mismatch: %v", out.Timestamps)
	}
}

func TestLoadMetaMissing(t *testing.T) {
	if _, err := LoadMeta(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing meta file")
	}
}
