package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"imgpress/internal/engine"
)

// fakeEngine scripts per-file outcomes. It is stateless per call and safe for
// the concurrent bounded path.
type fakeEngine struct {
	failOn  string
	panicOn string
	calls   *atomic.Int64
}

func (f *fakeEngine) Compress(_ context.Context, unit engine.Unit) (*engine.Result, error) {
	if f.calls != nil {
		f.calls.Add(1)
	}
	name := unit.Name()
	if f.panicOn != "" && name == f.panicOn {
		panic("scripted panic for " + name)
	}
	if f.failOn != "" && name == f.failOn {
		return nil, fmt.Errorf("%w: scripted failure", engine.ErrEncodeFailure)
	}

	switch u := unit.(type) {
	case engine.WholeFile:
		return &engine.Result{
			InputFile:      u.Path,
			OutputFile:     u.Path + ".webp",
			OriginalSize:   1000,
			CompressedSize: 400,
		}, nil
	case engine.Fragment:
		return &engine.Result{
			InputFile:      u.Origin,
			OriginalSize:   int64(len(u.Data)),
			CompressedSize: int64(len(u.Data)) / 2,
			Data:           make([]byte, len(u.Data)/2),
			FragmentIndex:  u.Index,
			FragmentTotal:  u.Total,
			FragmentOrigin: u.Origin,
		}, nil
	default:
		return nil, engine.ErrUnsupportedFormat
	}
}

func newTestPool(t *testing.T, eng Compressor, mutate func(*Config)) *Pool {
	t.Helper()
	cfg := Config{
		NewImageEngine: func(engine.Options) Compressor { return eng },
		Split: func(paths []string, _ int) []engine.Unit {
			units := make([]engine.Unit, len(paths))
			for i, p := range paths {
				units[i] = engine.WholeFile{Path: p}
			}
			return units
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPartitionExhaustiveness(t *testing.T) {
	tests := []struct {
		name    string
		units   int
		threads int
	}{
		{"Even", 12, 4},
		{"Remainder", 13, 4},
		{"FewerThanThreads", 3, 8},
		{"Single", 1, 4},
		{"OneThread", 9, 1},
		{"Many", 1000, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := make([]engine.Unit, tt.units)
			for i := range units {
				units[i] = engine.WholeFile{Path: fmt.Sprintf("f%04d.jpg", i)}
			}

			chunks := partition(units, tt.threads)
			if len(chunks) > tt.threads {
				t.Errorf("%d chunks exceed thread count %d", len(chunks), tt.threads)
			}

			var flat []engine.Unit
			for _, c := range chunks {
				if len(c) == 0 {
					t.Error("empty chunk not dropped")
				}
				flat = append(flat, c...)
			}
			if len(flat) != tt.units {
				t.Fatalf("chunks contain %d units, want %d", len(flat), tt.units)
			}
			for i := range flat {
				if flat[i] != units[i] {
					t.Fatalf("unit %d reordered or duplicated", i)
				}
			}
		})
	}
}

func TestPartitionEmpty(t *testing.T) {
	if chunks := partition(nil, 4); chunks != nil {
		t.Errorf("partition(nil) = %v, want nil", chunks)
	}
}

func TestMergeCommutativity(t *testing.T) {
	chunks := []*ChunkResult{
		{Processed: 2, SizeReduction: 100,
			Errors: []FileError{{File: "a.jpg", Err: errors.New("x")}},
			Files:  []FilePair{{InputFile: "b.jpg", OutputFile: "b.webp"}}},
		{Processed: 3, SizeReduction: 250,
			Files: []FilePair{{InputFile: "c.jpg", OutputFile: "c.webp"}, {InputFile: "d.jpg", OutputFile: "d.webp"}}},
		{Processed: 1, SizeReduction: 50,
			Errors: []FileError{{File: "e.jpg", Err: errors.New("y")}}},
	}

	merged := func(order []int) *BatchResult {
		b := &BatchResult{}
		for _, i := range order {
			b.Merge(chunks[i])
		}
		b.normalize()
		return b
	}

	reference := merged([]int{0, 1, 2})
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		order := r.Perm(len(chunks))
		got := merged(order)
		if got.Processed != reference.Processed ||
			got.TotalSizeReduction != reference.TotalSizeReduction ||
			len(got.Errors) != len(reference.Errors) ||
			len(got.Files) != len(reference.Files) {
			t.Fatalf("merge order %v: totals diverge: %+v vs %+v", order, got, reference)
		}
		for i := range got.Files {
			if got.Files[i] != reference.Files[i] {
				t.Fatalf("merge order %v: files diverge at %d", order, i)
			}
		}
		for i := range got.Errors {
			if got.Errors[i].File != reference.Errors[i].File {
				t.Fatalf("merge order %v: errors diverge at %d", order, i)
			}
		}
	}
}

func TestSmallBatchUsesBoundedPath(t *testing.T) {
	var calls atomic.Int64
	eng := &fakeEngine{calls: &calls}

	splitCalled := false
	p := newTestPool(t, eng, func(cfg *Config) {
		cfg.Split = func(paths []string, _ int) []engine.Unit {
			splitCalled = true
			return nil
		}
	})

	files := []string{"a.jpg", "b.jpg", "c.jpg"}
	batch, err := p.ProcessFiles(context.Background(), files, engine.Options{})
	if err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if splitCalled {
		t.Error("fragmenter ran on the bounded path")
	}
	if batch.Processed != 3 {
		t.Errorf("Processed = %d, want 3", batch.Processed)
	}
	if calls.Load() != 3 {
		t.Errorf("engine calls = %d, want 3", calls.Load())
	}
	if batch.TotalSizeReduction != 3*600 {
		t.Errorf("TotalSizeReduction = %d, want 1800", batch.TotalSizeReduction)
	}
}

func TestPoolPathErrorIsolation(t *testing.T) {
	eng := &fakeEngine{failOn: "b.jpg"}
	p := newTestPool(t, eng, nil)

	files := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	batch, err := p.ProcessFiles(context.Background(), files, engine.Options{Threads: 2})
	if err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if batch.Processed != 4 {
		t.Errorf("Processed = %d, want 4", batch.Processed)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].File != "b.jpg" {
		t.Fatalf("Errors = %+v, want one entry for b.jpg", batch.Errors)
	}
	if !errors.Is(batch.Errors[0].Err, engine.ErrEncodeFailure) {
		t.Errorf("error = %v, want ErrEncodeFailure", batch.Errors[0].Err)
	}
	// The failing file's chunk still delivered its sibling successes.
	for _, want := range []string{"a.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		found := false
		for _, pair := range batch.Files {
			if pair.InputFile == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing success for %s", want)
		}
	}
}

func TestWorkerFaultAbortsBatch(t *testing.T) {
	eng := &fakeEngine{panicOn: "c.jpg"}
	p := newTestPool(t, eng, nil)

	files := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg"}
	batch, err := p.ProcessFiles(context.Background(), files, engine.Options{Threads: 2})
	if !errors.Is(err, ErrWorkerFault) {
		t.Fatalf("err = %v, want ErrWorkerFault", err)
	}
	if batch != nil {
		t.Errorf("batch = %+v, want nil on worker fault", batch)
	}
}

func TestForceThreadsFragmentScenario(t *testing.T) {
	eng := &fakeEngine{}
	p := newTestPool(t, eng, func(cfg *Config) {
		cfg.Split = func(paths []string, threadCount int) []engine.Unit {
			// Oversized image cut into threadCount bands.
			units := make([]engine.Unit, threadCount)
			for i := range units {
				units[i] = engine.Fragment{
					Data:   make([]byte, 1024),
					Index:  i,
					Total:  threadCount,
					Origin: paths[0],
					Ext:    ".png",
				}
			}
			return units
		}
	})

	batch, err := p.ProcessFiles(context.Background(), []string{"big.png"},
		engine.Options{ForceThreads: true, Threads: 4})
	if err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if batch.Processed != 4 {
		t.Fatalf("Processed = %d, want 4", batch.Processed)
	}

	seen := map[int]bool{}
	for _, res := range batch.Results {
		if res.OutputFile != "" {
			t.Errorf("fragment result has output file %q", res.OutputFile)
		}
		if res.FragmentTotal != 4 || res.FragmentOrigin != "big.png" {
			t.Errorf("fragment tags = %d/%d origin %q", res.FragmentIndex, res.FragmentTotal, res.FragmentOrigin)
		}
		seen[res.FragmentIndex] = true
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Errorf("fragment index %d missing", i)
		}
	}
}

func TestInvalidTargetRejectedBeforeWork(t *testing.T) {
	var calls atomic.Int64
	eng := &fakeEngine{calls: &calls}
	p := newTestPool(t, eng, nil)

	_, err := p.ProcessFiles(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"},
		engine.Options{TargetSize: -5})
	if !errors.Is(err, engine.ErrInvalidTargetSize) {
		t.Fatalf("err = %v, want ErrInvalidTargetSize", err)
	}
	if calls.Load() != 0 {
		t.Errorf("engine ran %d times before validation", calls.Load())
	}
}

func TestEmptyBatch(t *testing.T) {
	p := newTestPool(t, &fakeEngine{}, nil)
	batch, err := p.ProcessFiles(context.Background(), nil, engine.Options{})
	if err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if batch.Processed != 0 {
		t.Errorf("Processed = %d, want 0", batch.Processed)
	}
}

func TestUnsupportedFilesRecordedPerItem(t *testing.T) {
	p := newTestPool(t, &fakeEngine{}, nil)

	files := []string{"a.jpg", "b.jpg", "c.jpg", "notes.txt", "d.jpg"}
	batch, err := p.ProcessFiles(context.Background(), files, engine.Options{Threads: 2})
	if err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if batch.Processed != 4 {
		t.Errorf("Processed = %d, want 4", batch.Processed)
	}
	if len(batch.Errors) != 1 || !errors.Is(batch.Errors[0].Err, engine.ErrUnsupportedFormat) {
		t.Fatalf("Errors = %+v, want one ErrUnsupportedFormat", batch.Errors)
	}
}

func TestProgressMessagesObserved(t *testing.T) {
	var progress, completes atomic.Int64
	p := newTestPool(t, &fakeEngine{}, func(cfg *Config) {
		cfg.OnMessage = func(m Message) {
			switch m.Kind {
			case MsgProgress:
				progress.Add(1)
			case MsgComplete:
				completes.Add(1)
			}
		}
	})

	files := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	if _, err := p.ProcessFiles(context.Background(), files, engine.Options{Threads: 2}); err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if progress.Load() != 4 {
		t.Errorf("progress messages = %d, want 4", progress.Load())
	}
	if completes.Load() != 2 {
		t.Errorf("complete messages = %d, want 2 (one per worker)", completes.Load())
	}
}
