package pool

import (
	"sort"

	"imgpress/internal/engine"
)

// MessageKind discriminates worker-to-pool messages.
type MessageKind int

const (
	// MsgProgress reports one unit finishing successfully.
	MsgProgress MessageKind = iota
	// MsgError reports one unit failing; the worker continues.
	MsgError
	// MsgComplete is a worker's terminal message carrying its chunk result.
	MsgComplete
	// MsgWorkerError is a worker's terminal message after its own runtime
	// failed. It aborts the whole batch.
	MsgWorkerError
)

// Message is one event from a worker. Progress and error messages are
// per-unit; complete and worker-error are terminal, exactly one per worker.
type Message struct {
	Kind   MessageKind
	Worker int

	// Per-unit fields (progress/error).
	File           string
	OriginalSize   int64
	CompressedSize int64
	Err            error

	// Terminal payloads.
	Chunk *ChunkResult
}

// FileError records one unit's failure inside a batch.
type FileError struct {
	File   string
	Err    error
	Worker int
}

// FilePair maps an input to the output it produced. Fragments have no
// output file and carry their origin as input.
type FilePair struct {
	InputFile  string
	OutputFile string
}

// ChunkResult accumulates one worker's outcomes.
type ChunkResult struct {
	Processed     int
	SizeReduction int64
	Errors        []FileError
	Files         []FilePair
	Results       []*engine.Result
}

// add records one successful unit result.
func (c *ChunkResult) add(res *engine.Result) {
	c.Processed++
	if saved := res.OriginalSize - res.CompressedSize; saved > 0 {
		c.SizeReduction += saved
	}
	c.Files = append(c.Files, FilePair{InputFile: res.InputFile, OutputFile: res.OutputFile})
	c.Results = append(c.Results, res)
}

// BatchResult is the aggregate of one ProcessFiles invocation.
type BatchResult struct {
	Processed          int
	TotalSizeReduction int64
	Errors             []FileError
	Files              []FilePair
	Results            []*engine.Result
}

// Merge folds one chunk into the batch. Merging is commutative and
// associative: workers complete in nondeterministic order, and any merge
// order must produce identical totals.
func (b *BatchResult) Merge(c *ChunkResult) {
	if c == nil {
		return
	}
	b.Processed += c.Processed
	b.TotalSizeReduction += c.SizeReduction
	b.Errors = append(b.Errors, c.Errors...)
	b.Files = append(b.Files, c.Files...)
	b.Results = append(b.Results, c.Results...)
}

// normalize orders the accumulated lists deterministically so callers see
// stable output regardless of worker completion order.
func (b *BatchResult) normalize() {
	sort.Slice(b.Files, func(i, j int) bool {
		if b.Files[i].InputFile != b.Files[j].InputFile {
			return b.Files[i].InputFile < b.Files[j].InputFile
		}
		return b.Files[i].OutputFile < b.Files[j].OutputFile
	})
	sort.Slice(b.Errors, func(i, j int) bool { return b.Errors[i].File < b.Errors[j].File })
	sort.Slice(b.Results, func(i, j int) bool {
		ri, rj := b.Results[i], b.Results[j]
		if ri.InputFile != rj.InputFile {
			return ri.InputFile < rj.InputFile
		}
		return ri.FragmentIndex < rj.FragmentIndex
	})
}
