package engine

// Result describes the outcome of compressing one unit. OriginalSize and
// CompressedSize are populated even when the original bytes were kept.
type Result struct {
	// InputFile is the source path (the origin path for fragments).
	InputFile string
	// OutputFile is the written file; empty for fragments and buffer-only
	// results.
	OutputFile string

	OriginalSize   int64
	CompressedSize int64
	// ReductionPercent is (original-compressed)/original*100.
	ReductionPercent float64

	// Image metadata read from the decoded source.
	Width    int
	Height   int
	Format   Format
	HasAlpha bool

	// KeptOriginal is set when no candidate beat the input and the original
	// bytes were carried through unchanged.
	KeptOriginal bool

	// Data holds the compressed payload for fragment and buffer inputs;
	// nil when the result was persisted to OutputFile.
	Data []byte

	// Fragment attribution; Total is 0 for whole files.
	FragmentIndex  int
	FragmentTotal  int
	FragmentOrigin string
}

// reduction computes the percentage saved, guarding a zero original.
func reduction(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) * 100 / float64(original)
}
