package pool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imgpress/internal/engine"
	"imgpress/internal/history"
	"imgpress/internal/logging"
	"imgpress/internal/mediatypes"
	"imgpress/internal/metrics"
	"imgpress/internal/video"
)

// workerPayload is the immutable value handed to a worker at spawn time.
// Workers receive everything they need here; there is no ambient state.
type workerPayload struct {
	index int
	chunk []engine.Unit
	opts  engine.Options
	// tools is only populated when the chunk contains video files.
	tools video.ToolPaths
}

// runWorker is one worker runtime: it owns one image engine (and a video
// engine when its chunk needs one), processes its chunk sequentially, and
// emits per-unit progress/error messages plus exactly one terminal message.
func (p *Pool) runWorker(ctx context.Context, payload workerPayload, msgs chan<- Message) {
	defer func() {
		if r := recover(); r != nil {
			msgs <- Message{
				Kind:   MsgWorkerError,
				Worker: payload.index,
				Err:    fmt.Errorf("%w: worker %d panicked: %v", ErrWorkerFault, payload.index, r),
			}
		}
	}()

	imageEngine := p.cfg.NewImageEngine(payload.opts)
	if imageEngine == nil {
		msgs <- Message{
			Kind:   MsgWorkerError,
			Worker: payload.index,
			Err:    fmt.Errorf("%w: worker %d has no image engine", ErrWorkerFault, payload.index),
		}
		return
	}

	var videoEngine Compressor
	if chunkHasVideo(payload.chunk) {
		if p.cfg.NewVideoEngine == nil {
			msgs <- Message{
				Kind:   MsgWorkerError,
				Worker: payload.index,
				Err:    fmt.Errorf("%w: worker %d assigned video with no video engine", ErrWorkerFault, payload.index),
			}
			return
		}
		videoEngine = p.cfg.NewVideoEngine(payload.tools, payload.opts)
	}

	chunk := &ChunkResult{}
	for _, unit := range payload.chunk {
		// Cancellation is only observed between units; a started unit
		// runs to completion.
		if ctx.Err() != nil {
			break
		}

		res, err := p.processUnit(ctx, unit, imageEngine, videoEngine)
		if err != nil {
			chunk.Errors = append(chunk.Errors, FileError{File: unit.Name(), Err: err, Worker: payload.index})
			metrics.FilesProcessedTotal.WithLabelValues(unitKind(unit), "error").Inc()
			msgs <- Message{Kind: MsgError, Worker: payload.index, File: unit.Name(), Err: err}
			continue
		}
		chunk.add(res)
		msgs <- Message{
			Kind:           MsgProgress,
			Worker:         payload.index,
			File:           unit.Name(),
			OriginalSize:   res.OriginalSize,
			CompressedSize: res.CompressedSize,
		}
	}

	msgs <- Message{Kind: MsgComplete, Worker: payload.index, Chunk: chunk}
}

// processUnit dispatches one unit to the right engine, applying the
// already-compressed skip for whole files.
func (p *Pool) processUnit(ctx context.Context, unit engine.Unit, imageEngine, videoEngine Compressor) (*engine.Result, error) {
	switch u := unit.(type) {
	case engine.WholeFile:
		kind := mediatypes.GetFileType(strings.ToLower(filepath.Ext(u.Path)))
		switch kind {
		case mediatypes.FileTypeImage:
			if res, skipped := p.skipIfRecorded(u.Path); skipped {
				return res, nil
			}
			res, err := imageEngine.Compress(ctx, unit)
			if err == nil {
				p.recordResult(u.Path, res)
			}
			return res, err
		case mediatypes.FileTypeVideo:
			if videoEngine == nil {
				return nil, fmt.Errorf("%w: no video engine for %s", engine.ErrUnsupportedFormat, u.Path)
			}
			return videoEngine.Compress(ctx, unit)
		default:
			return nil, fmt.Errorf("%w: %s", engine.ErrUnsupportedFormat, u.Path)
		}
	case engine.Fragment:
		// Fragments are always images and never consult the ledger.
		return imageEngine.Compress(ctx, unit)
	default:
		return nil, fmt.Errorf("%w: unknown unit %T", engine.ErrUnsupportedFormat, unit)
	}
}

// skipIfRecorded returns a zero-reduction success for inputs the ledger has
// already seen unchanged.
func (p *Pool) skipIfRecorded(path string) (*engine.Result, bool) {
	if p.cfg.History == nil {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if !p.cfg.History.AlreadyCompressed(path, info.Size(), info.ModTime()) {
		return nil, false
	}

	logging.Debug("skipping %s: already compressed", path)
	metrics.FilesProcessedTotal.WithLabelValues("image", "skipped").Inc()
	return &engine.Result{
		InputFile:      path,
		OutputFile:     path,
		OriginalSize:   info.Size(),
		CompressedSize: info.Size(),
		KeptOriginal:   true,
	}, true
}

func (p *Pool) recordResult(path string, res *engine.Result) {
	if p.cfg.History == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	p.cfg.History.Record(history.Entry{
		Path:           path,
		Size:           info.Size(),
		ModTime:        info.ModTime(),
		OutputPath:     res.OutputFile,
		CompressedSize: res.CompressedSize,
	})
}

func chunkHasVideo(chunk []engine.Unit) bool {
	for _, unit := range chunk {
		if u, ok := unit.(engine.WholeFile); ok {
			ext := strings.ToLower(filepath.Ext(u.Path))
			if mediatypes.GetFileType(ext) == mediatypes.FileTypeVideo {
				return true
			}
		}
	}
	return false
}

func unitKind(unit engine.Unit) string {
	switch u := unit.(type) {
	case engine.Fragment:
		return "fragment"
	case engine.WholeFile:
		if mediatypes.GetFileType(strings.ToLower(filepath.Ext(u.Path))) == mediatypes.FileTypeVideo {
			return "video"
		}
		return "image"
	default:
		return "image"
	}
}
