package pool

import "imgpress/internal/engine"

// partition slices units into at most threadCount chunks of near-equal size:
// ceil(total/threadCount) units per chunk, last chunk possibly shorter, empty
// chunks dropped. Concatenating the chunks reproduces the input exactly; the
// assignment is static, with no work stealing.
func partition(units []engine.Unit, threadCount int) [][]engine.Unit {
	if len(units) == 0 || threadCount < 1 {
		return nil
	}

	perChunk := (len(units) + threadCount - 1) / threadCount
	chunks := make([][]engine.Unit, 0, threadCount)
	for start := 0; start < len(units); start += perChunk {
		end := start + perChunk
		if end > len(units) {
			end = len(units)
		}
		chunks = append(chunks, units[start:end])
	}
	return chunks
}
