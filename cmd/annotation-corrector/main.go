package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/annotation-corrector/internal/config"
	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/history"
	"github.com/ironsheep/annotation-corrector/internal/logging"
	"github.com/ironsheep/annotation-corrector/internal/ocr"
	"github.com/ironsheep/annotation-corrector/internal/predictions"
	"github.com/ironsheep/annotation-corrector/internal/server"
	"github.com/ironsheep/annotation-corrector/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("annotation-corrector %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	if err := run(os.Args[1:]); err != nil {
		log.WithError(err).Error("annotation-corrector failed")
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("annotation-corrector - review model predictions against YOLO labels")
	fmt.Println()
	fmt.Println("Usage: annotation-corrector --images DIR --labels DIR --corrected DIR [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --model PATH         YOLO ONNX model (onnx backend)")
	fmt.Println("  --backend NAME       onnx, rectangles, text or ocr (default onnx)")
	fmt.Println("  --predictions        Replay predictions from <corrected>/predicted_labels")
	fmt.Println("  --classes PATH       Class names file, one per line")
	fmt.Println("  --confidence N       Detection confidence threshold (default 0.25)")
	fmt.Println("  --iou N              NMS IoU threshold (default 0.45)")
	fmt.Println("  --slice              Detect on overlapping tiles")
	fmt.Println("  --slice-size N       Tile size in pixels (default 640)")
	fmt.Println("  --overlap N          Tile overlap ratio (default 0.2)")
	fmt.Println("  --extensions LIST    Image extensions to scan")
	fmt.Println("  --listen ADDR        Serve review clients over WebSocket instead of stdio")
	fmt.Println("  --history PATH       Save journal database, \"none\" to disable")
	fmt.Println("  --log-level LEVEL    debug, info, warn or error")
	fmt.Println("  --log-file PATH      Also append logs to this file")
	fmt.Println("  --ort-lib PATH       onnxruntime shared library")
	fmt.Println("  --env-file PATH      Environment file (default .env)")
	fmt.Println("  --version, -v        Print version information")
	fmt.Println("  --help, -h           Print this help message")
	fmt.Println()
	fmt.Println("Every option can also be set as ANNOTATION_<NAME>, e.g. ANNOTATION_LOG_LEVEL=debug.")
	fmt.Println()
	fmt.Println("Without --listen the review protocol is served over stdin/stdout.")
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the review protocol.
	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	log.WithFields(log.Fields{
		"version": Version,
		"commit":  GitCommit,
		"mode":    cfg.Mode(),
		"backend": cfg.Backend,
	}).Debug("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var det detection.Detector
	if cfg.Mode() == predictions.ModeLive {
		d, closer, err := newDetector(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()
		det = d
	}

	classNames, err := resolveClassNames(cfg, det)
	if err != nil {
		return err
	}

	result, err := session.Build(ctx, session.BuildConfig{
		ImagesDir:    cfg.ImagesDir,
		LabelsDir:    cfg.LabelsDir,
		CorrectedDir: cfg.CorrectedDir,
		Extensions:   cfg.Extensions,
		Mode:         cfg.Mode(),
		Detector:     det,
	})
	if err != nil {
		return err
	}

	if len(result.Queue) == 0 {
		log.Info("nothing to review")
		return nil
	}

	ctrl := session.NewController(result.Queue, classNames)
	srv := server.New(ctrl, Version)

	if cfg.HistoryEnabled() {
		store, err := history.New(cfg.History)
		if err != nil {
			log.WithError(err).WithField("path", cfg.History).Warn("save history disabled")
		} else {
			defer store.Close()
			ctrl.SetRecorder(store)
			srv.SetHistory(store)
		}
	}

	log.WithField("images", ctrl.Len()).Info("review ready")

	if cfg.Listen != "" {
		return srv.ListenAndServe(ctx, cfg.Listen)
	}
	return srv.Run()
}

// newDetector builds the configured backend, wrapped for tiled inference
// when slicing is enabled.
func newDetector(cfg *config.Config) (detection.Detector, io.Closer, error) {
	var det detection.Detector
	var closer io.Closer = nopCloser{}

	switch cfg.Backend {
	case config.BackendONNX:
		var classes []string
		if cfg.ClassesFile != "" {
			names, err := config.LoadClassNames(cfg.ClassesFile)
			if err != nil {
				return nil, nil, err
			}
			classes = names
		}
		d, err := detection.NewONNXDetector(detection.ONNXConfig{
			ModelPath:           cfg.ModelPath,
			SharedLibraryPath:   cfg.ORTLibrary,
			InputSize:           640,
			Classes:             classes,
			ConfidenceThreshold: cfg.Confidence,
			IoUThreshold:        cfg.IoU,
		})
		if err != nil {
			return nil, nil, err
		}
		det, closer = d, d
	case config.BackendRectangles:
		det = detection.NewShapeDetector()
	case config.BackendText:
		det = &detection.TextRegionDetector{MinConfidence: cfg.Confidence}
	case config.BackendOCR:
		d := ocr.NewWordDetector()
		d.MinConfidence = cfg.Confidence
		det = d
	default:
		return nil, nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.Slice {
		det = detection.NewSliced(det, cfg.SliceSize, cfg.Overlap, cfg.IoU)
	}
	return det, closer, nil
}

// resolveClassNames prefers the class names file, then the backend's own
// names. Replay mode without a names file has none.
func resolveClassNames(cfg *config.Config, det detection.Detector) ([]string, error) {
	if cfg.ClassesFile != "" {
		return config.LoadClassNames(cfg.ClassesFile)
	}
	if namer, ok := det.(detection.ClassNamer); ok {
		return namer.ClassNames(), nil
	}
	return nil, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
