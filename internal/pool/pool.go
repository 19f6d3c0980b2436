package pool

import (
	"context"
	"errors"
	"sync"

	"imgpress/internal/engine"
	"imgpress/internal/fragment"
	"imgpress/internal/history"
	"imgpress/internal/logging"
	"imgpress/internal/metrics"
	"imgpress/internal/sysinfo"
	"imgpress/internal/video"
	"imgpress/internal/workers"
)

// ErrWorkerFault indicates a worker's own runtime failed, as opposed to a
// unit failing inside it. It is the only per-worker condition that aborts a
// batch.
var ErrWorkerFault = errors.New("worker fault")

// smallBatchThreshold is the batch size below which the pool is skipped in
// favor of the bounded in-process path, unless ForceThreads is set.
const smallBatchThreshold = 4

// Compressor is the capability both engines expose: compress one unit.
type Compressor interface {
	Compress(ctx context.Context, unit engine.Unit) (*engine.Result, error)
}

// Config wires the pool's collaborators. NewImageEngine is required; the
// rest are optional.
type Config struct {
	// NewImageEngine builds the per-worker image engine.
	NewImageEngine func(opts engine.Options) Compressor
	// NewVideoEngine builds a per-worker video engine; only called for
	// chunks that contain video files.
	NewVideoEngine func(tools video.ToolPaths, opts engine.Options) Compressor
	// DiscoverTools resolves video tool paths once per batch. Defaults to
	// video.DiscoverTools when NewVideoEngine is set.
	DiscoverTools func() (video.ToolPaths, error)
	// History, when non-nil, lets workers skip already-compressed files.
	History *history.Store
	// Split expands oversized images into fragments under ForceThreads.
	// Defaults to fragment.Split.
	Split func(paths []string, threadCount int) []engine.Unit
	// OnMessage, when non-nil, observes every worker message (progress,
	// error, terminal). Called from the aggregation goroutine, in order of
	// arrival.
	OnMessage func(Message)
}

// Pool partitions batches across workers and aggregates their results.
type Pool struct {
	cfg Config
}

// New validates the configuration and builds a pool.
func New(cfg Config) (*Pool, error) {
	if cfg.NewImageEngine == nil {
		return nil, errors.New("pool: NewImageEngine is required")
	}
	if cfg.Split == nil {
		cfg.Split = fragment.Split
	}
	if cfg.DiscoverTools == nil {
		cfg.DiscoverTools = video.DiscoverTools
	}
	return &Pool{cfg: cfg}, nil
}

// ProcessFiles compresses every file in the batch. Per-file failures are
// collected into the result; the returned error is non-nil only for
// invalid options or a worker fault, in which case no partial result is
// returned. All spawned workers are terminated before ProcessFiles returns.
func (p *Pool) ProcessFiles(ctx context.Context, files []string, opts engine.Options) (*BatchResult, error) {
	opts = opts.Resolve()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &BatchResult{}, nil
	}

	threadCount := workers.Count(opts.Threads, opts.Ultrafast)
	for _, warning := range sysinfo.Advise(sysinfo.Read(), threadCount) {
		logging.Warn("%s", warning)
	}

	if len(files) < smallBatchThreshold && !opts.ForceThreads {
		logging.Debug("batch of %d below pool threshold, using bounded in-process path", len(files))
		return p.processBounded(ctx, files, opts)
	}

	units := make([]engine.Unit, 0, len(files))
	if opts.ForceThreads {
		units = p.cfg.Split(files, threadCount)
	} else {
		for _, f := range files {
			units = append(units, engine.WholeFile{Path: f})
		}
	}

	chunks := partition(units, threadCount)
	logging.Info("dispatching %d units across %d workers", len(units), len(chunks))

	var tools video.ToolPaths
	if needsVideo(chunks) {
		if p.cfg.NewVideoEngine != nil {
			resolved, err := p.cfg.DiscoverTools()
			if err != nil {
				logging.Warn("video tools unavailable, video files will error per-item: %v", err)
			} else {
				tools = resolved
			}
		}
	}

	// Buffered for every possible message so workers never block on a
	// slow aggregator.
	msgs := make(chan Message, len(units)+len(chunks))

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		payload := workerPayload{index: i, chunk: chunk, opts: opts, tools: tools}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(workerCtx, payload, msgs)
		}()
	}
	metrics.WorkersActive.Set(float64(len(chunks)))
	defer metrics.WorkersActive.Set(0)

	batch := &BatchResult{}
	var fault error
	for remaining := len(chunks); remaining > 0; {
		msg := <-msgs
		if p.cfg.OnMessage != nil {
			p.cfg.OnMessage(msg)
		}
		switch msg.Kind {
		case MsgComplete:
			remaining--
			batch.Merge(msg.Chunk)
		case MsgWorkerError:
			remaining--
			if fault == nil {
				fault = msg.Err
				// Siblings observe this at their next unit boundary;
				// in-flight units finish first.
				cancel()
			}
		}
	}

	// Termination is awaited, not fire-and-forget: no worker survives
	// this call, on success or failure.
	wg.Wait()

	if fault != nil {
		return nil, fault
	}
	batch.normalize()
	return batch, nil
}

// processBounded handles small batches without the pool: one engine shared
// across bounded goroutines, a counting semaphore capping in-flight files,
// per-file errors isolated exactly as in pool mode.
func (p *Pool) processBounded(ctx context.Context, files []string, opts engine.Options) (*BatchResult, error) {
	sem := make(chan struct{}, opts.Parallel)

	var mu sync.Mutex
	chunk := &ChunkResult{}

	var wg sync.WaitGroup
	for _, file := range files {
		wg.Add(1)
		go func(file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Each in-flight file gets its own engine: Compress on one
			// engine instance is not safe for concurrent use.
			eng := p.cfg.NewImageEngine(opts)
			res, err := p.processUnit(ctx, engine.WholeFile{Path: file}, eng, p.boundedVideoEngine(opts))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				chunk.Errors = append(chunk.Errors, FileError{File: file, Err: err})
				if p.cfg.OnMessage != nil {
					p.cfg.OnMessage(Message{Kind: MsgError, File: file, Err: err})
				}
				return
			}
			chunk.add(res)
			if p.cfg.OnMessage != nil {
				p.cfg.OnMessage(Message{
					Kind:           MsgProgress,
					File:           file,
					OriginalSize:   res.OriginalSize,
					CompressedSize: res.CompressedSize,
				})
			}
		}(file)
	}
	wg.Wait()

	batch := &BatchResult{}
	batch.Merge(chunk)
	batch.normalize()
	return batch, nil
}

// boundedVideoEngine lazily builds a video engine for the in-process path.
func (p *Pool) boundedVideoEngine(opts engine.Options) Compressor {
	if p.cfg.NewVideoEngine == nil {
		return nil
	}
	tools, err := p.cfg.DiscoverTools()
	if err != nil {
		return nil
	}
	return p.cfg.NewVideoEngine(tools, opts)
}

func needsVideo(chunks [][]engine.Unit) bool {
	for _, chunk := range chunks {
		if chunkHasVideo(chunk) {
			return true
		}
	}
	return false
}
