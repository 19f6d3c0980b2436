package engine

import (
	"errors"
	"testing"
	"time"
)

func outcome(format Format, size int64, d time.Duration) Outcome {
	return Outcome{
		Strategy: Strategy{Format: format},
		Size:     size,
		Duration: d,
		Data:     payload(size),
	}
}

func TestPickWinnerPolicies(t *testing.T) {
	outcomes := []Outcome{
		outcome(FormatAVIF, 40_000, 900*time.Millisecond),
		outcome(FormatWebP, 30_000, 300*time.Millisecond),
		outcome(FormatJPEG, 45_000, 100*time.Millisecond),
		outcome(FormatJPEG, 80_000, 50*time.Millisecond), // over budget
		{Strategy: Strategy{Format: FormatAVIF}, Err: errors.New("boom")},
	}
	const target = 50_000

	tests := []struct {
		name     string
		policy   Policy
		wantSize int64
	}{
		{"Size", PolicySize, 30_000},
		{"Speed", PolicySpeed, 45_000},
		{"Quality", PolicyQuality, 45_000},
		{"Auto", PolicyAuto, 45_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := pickWinner(outcomes, target, tt.policy)
			if w == nil {
				t.Fatal("pickWinner returned nil")
			}
			if w.Size != tt.wantSize {
				t.Errorf("winner size = %d, want %d", w.Size, tt.wantSize)
			}
		})
	}
}

func TestPickWinnerAutoPrefersSafetyNearCeiling(t *testing.T) {
	// The richest fit uses >95% of the budget; auto retreats to the
	// smallest result instead.
	outcomes := []Outcome{
		outcome(FormatJPEG, 49_000, time.Second),
		outcome(FormatWebP, 20_000, time.Second),
	}
	w := pickWinner(outcomes, 50_000, PolicyAuto)
	if w == nil {
		t.Fatal("pickWinner returned nil")
	}
	if w.Size != 20_000 {
		t.Errorf("winner size = %d, want 20000", w.Size)
	}
}

func TestPickWinnerNoneFit(t *testing.T) {
	outcomes := []Outcome{
		outcome(FormatJPEG, 90_000, time.Second),
		{Strategy: Strategy{Format: FormatWebP}, Err: errors.New("boom")},
	}
	if w := pickWinner(outcomes, 50_000, PolicyAuto); w != nil {
		t.Errorf("pickWinner = %+v, want nil", w)
	}
}

func TestCandidateFormats(t *testing.T) {
	tests := []struct {
		name    string
		alpha   bool
		quality int
		want    []Format
	}{
		{"Opaque", false, 80, []Format{FormatAVIF, FormatWebP, FormatJPEG}},
		{"OpaqueHighQuality", false, 95, []Format{FormatAVIF, FormatWebP, FormatJPEG, FormatPNG}},
		{"Alpha", true, 80, []Format{FormatAVIF, FormatWebP, FormatPNG}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := candidateFormats(tt.alpha, tt.quality)
			if len(got) != len(tt.want) {
				t.Fatalf("candidates = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidates = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestBuildCatalogResizeLadder(t *testing.T) {
	opts := Options{Format: FormatJPEG}.Resolve()
	catalog := buildCatalog(opts, false, Strategy{})

	wantLen := len(extremePresets[FormatJPEG]) * (1 + len(extremeResizeFactors))
	if len(catalog) != wantLen {
		t.Errorf("catalog length = %d, want %d", len(catalog), wantLen)
	}

	factors := map[float64]bool{}
	for _, s := range catalog {
		factors[s.ResizeFactor] = true
		if s.Format != FormatJPEG {
			t.Errorf("unexpected format %s in explicit-format catalog", s.Format)
		}
	}
	for _, f := range extremeResizeFactors {
		if !factors[f] {
			t.Errorf("factor %v missing from catalog", f)
		}
	}
}

func TestBuildCatalogKeepDimensions(t *testing.T) {
	opts := Options{KeepDimensions: true}.Resolve()
	catalog := buildCatalog(opts, false, Strategy{})
	for _, s := range catalog {
		if s.ResizeFactor != 0 {
			t.Errorf("resize factor %v present despite KeepDimensions", s.ResizeFactor)
		}
	}
}

func TestBuildCatalogAutoCoversViableFormats(t *testing.T) {
	opts := Options{}.Resolve()
	catalog := buildCatalog(opts, true, Strategy{})
	seen := map[Format]bool{}
	for _, s := range catalog {
		seen[s.Format] = true
	}
	if seen[FormatJPEG] {
		t.Errorf("JPEG offered for an alpha source")
	}
	for _, f := range []Format{FormatAVIF, FormatWebP, FormatPNG} {
		if !seen[f] {
			t.Errorf("format %s missing from auto catalog", f)
		}
	}
}
