package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"imgpress/internal/codec"
	"imgpress/internal/engine"
	"imgpress/internal/history"
	"imgpress/internal/logging"
	"imgpress/internal/mediatypes"
	"imgpress/internal/pool"
	"imgpress/internal/video"

	"github.com/schollz/progressbar/v3"
)

func main() {
	var (
		quality     = flag.Int("quality", 80, "encode quality (1-100)")
		format      = flag.String("format", "auto", "output format: auto, jpeg, webp, avif, png")
		target      = flag.String("target", "", "byte budget per file, e.g. 500KB")
		strategy    = flag.String("strategy", "auto", "winner policy under a budget: auto, size, quality, speed")
		width       = flag.Int("width", 0, "max output width (0 = unbounded)")
		height      = flag.Int("height", 0, "max output height (0 = unbounded)")
		keepDims    = flag.Bool("keep-dimensions", false, "never resize")
		ultrafast   = flag.Bool("ultrafast", false, "bias everything toward speed")
		threads     = flag.Int("threads", 0, "worker count (0 = derive from CPU)")
		forceThread = flag.Bool("force-threads", false, "use the worker pool even for small batches; enables fragmentation")
		parallel    = flag.Int("parallel", 0, "in-flight cap for small batches (0 = default)")
		outDir      = flag.String("out", "", "output directory (default: alongside inputs)")
		ledgerPath  = flag.String("ledger", "", "path to the compression ledger database (empty = disabled)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: imgpress [flags] <file|dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := engine.Options{
		Quality:        *quality,
		Format:         engine.Format(*format),
		Strategy:       engine.Policy(*strategy),
		Width:          *width,
		Height:         *height,
		KeepDimensions: *keepDims,
		Ultrafast:      *ultrafast,
		Threads:        *threads,
		ForceThreads:   *forceThread,
		Parallel:       *parallel,
		OutputDir:      *outDir,
	}
	if *target != "" {
		size, err := engine.ParseByteSize(*target)
		if err != nil {
			logging.Fatal("bad -target: %v", err)
		}
		opts.TargetSize = size
	}

	files, err := collectFiles(flag.Args())
	if err != nil {
		logging.Fatal("%v", err)
	}
	if len(files) == 0 {
		logging.Info("nothing to do")
		return
	}

	codec.InitVips()
	defer codec.ShutdownVips()

	var ledger *history.Store
	if *ledgerPath != "" {
		ledger, err = history.Open(*ledgerPath)
		if err != nil {
			logging.Fatal("open ledger: %v", err)
		}
		defer ledger.Close()
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("compressing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	p, err := pool.New(pool.Config{
		NewImageEngine: func(opts engine.Options) pool.Compressor {
			return engine.New(codec.Opener{}, opts)
		},
		NewVideoEngine: func(tools video.ToolPaths, opts engine.Options) pool.Compressor {
			return video.New(tools, opts)
		},
		History: ledger,
		OnMessage: func(m pool.Message) {
			switch m.Kind {
			case pool.MsgProgress:
				_ = bar.Add(1)
			case pool.MsgError:
				_ = bar.Add(1)
				logging.Error("%s: %v", m.File, m.Err)
			}
		},
	})
	if err != nil {
		logging.Fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch, err := p.ProcessFiles(ctx, files, opts)
	if err != nil {
		logging.Fatal("batch failed: %v", err)
	}
	_ = bar.Finish()

	fmt.Printf("processed %d file(s), saved %s\n", batch.Processed, formatBytes(batch.TotalSizeReduction))
	if len(batch.Errors) > 0 {
		fmt.Printf("%d file(s) failed:\n", len(batch.Errors))
		for _, fe := range batch.Errors {
			fmt.Printf("  %s: %v\n", fe.File, fe.Err)
		}
		os.Exit(1)
	}
}

// collectFiles expands the argument list into media file paths, walking
// directories recursively.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			if mediatypes.IsMediaFile(ext) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
