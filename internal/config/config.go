// Package config loads command line and environment settings.
//
// Every flag has an ANNOTATION_<NAME> environment default (dashes become
// underscores). A .env file, or the file named by --env-file, is read first;
// variables already set in the environment take precedence over it, and
// flags take precedence over both.
package config

import (
	"bufio"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ironsheep/annotation-corrector/internal/imaging"
	"github.com/ironsheep/annotation-corrector/internal/predictions"
)

const envPrefix = "ANNOTATION_"

// Detection backends.
const (
	BackendONNX       = "onnx"
	BackendRectangles = "rectangles"
	BackendText       = "text"
	BackendOCR        = "ocr"
)

// HistoryDisabled turns off the save journal.
const HistoryDisabled = "none"

// Config holds all runtime settings.
type Config struct {
	ImagesDir    string
	LabelsDir    string
	CorrectedDir string

	Replay      bool
	Backend     string
	ModelPath   string
	ORTLibrary  string
	ClassesFile string
	Confidence  float64
	IoU         float64

	Slice     bool
	SliceSize int
	Overlap   float64

	Extensions []string
	Listen     string
	History    string

	LogLevel string
	LogFile  string
	EnvFile  string
}

// Load reads the environment file, then parses args (without the program
// name) over environment defaults.
func Load(args []string) (*Config, error) {
	envFile, explicit := envFileFromArgs(args)
	if err := godotenv.Load(envFile); err != nil && (explicit || !os.IsNotExist(err)) {
		return nil, errors.Wrapf(err, "failed to load env file %s", envFile)
	}

	cfg := &Config{EnvFile: envFile}
	var extensions string

	fs := flag.NewFlagSet("annotation-corrector", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ImagesDir, "images", getEnv("IMAGES", ""), "Directory of images to review")
	fs.StringVar(&cfg.LabelsDir, "labels", getEnv("LABELS", ""), "Directory of existing YOLO label files")
	fs.StringVar(&cfg.CorrectedDir, "corrected", getEnv("CORRECTED", ""), "Directory for corrected label files")
	fs.BoolVar(&cfg.Replay, "predictions", getEnvAsBool("PREDICTIONS", false), "Replay predictions from side files instead of running a detector")
	fs.StringVar(&cfg.Backend, "backend", getEnv("BACKEND", BackendONNX), "Detection backend: onnx, rectangles, text or ocr")
	fs.StringVar(&cfg.ModelPath, "model", getEnv("MODEL", ""), "Path to YOLO ONNX model file")
	fs.StringVar(&cfg.ORTLibrary, "ort-lib", getEnv("ORT_LIB", ""), "Path to the onnxruntime shared library")
	fs.StringVar(&cfg.ClassesFile, "classes", getEnv("CLASSES", ""), "Class names file, one name per line")
	fs.Float64Var(&cfg.Confidence, "confidence", getEnvAsFloat("CONFIDENCE", 0.25), "Detection confidence threshold")
	fs.Float64Var(&cfg.IoU, "iou", getEnvAsFloat("IOU", 0.45), "IoU threshold for non-maximum suppression")
	fs.BoolVar(&cfg.Slice, "slice", getEnvAsBool("SLICE", false), "Run detection on overlapping tiles")
	fs.IntVar(&cfg.SliceSize, "slice-size", getEnvAsInt("SLICE_SIZE", 640), "Tile size in pixels")
	fs.Float64Var(&cfg.Overlap, "overlap", getEnvAsFloat("OVERLAP", 0.2), "Tile overlap ratio")
	fs.StringVar(&extensions, "extensions", getEnv("EXTENSIONS", strings.Join(imaging.DefaultExtensions, ",")), "Comma separated image extensions")
	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ""), "WebSocket listen address; empty serves on stdin/stdout")
	fs.StringVar(&cfg.History, "history", getEnv("HISTORY", ""), "Save journal database path; \"none\" disables it")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, "log-file", getEnv("LOG_FILE", ""), "Also append logs to this file")
	fs.StringVar(&cfg.EnvFile, "env-file", envFile, "Environment file to load")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "invalid arguments")
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg.Extensions = splitList(extensions)
	if cfg.History == "" && cfg.CorrectedDir != "" {
		cfg.History = filepath.Join(cfg.CorrectedDir, "history.db")
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	return cfg, nil
}

// Mode returns the prediction mode selected by the configuration.
func (c *Config) Mode() predictions.Mode {
	if c.Replay {
		return predictions.ModeReplay
	}
	return predictions.ModeLive
}

// HistoryEnabled reports whether saves should be journaled.
func (c *Config) HistoryEnabled() bool {
	return c.History != "" && c.History != HistoryDisabled
}

// Validate checks settings before any work starts.
func (c *Config) Validate() error {
	if c.ImagesDir == "" {
		return errors.New("--images is required")
	}
	if err := requireDir(c.ImagesDir); err != nil {
		return err
	}
	if c.LabelsDir == "" {
		return errors.New("--labels is required")
	}
	if err := requireDir(c.LabelsDir); err != nil {
		return err
	}
	if c.CorrectedDir == "" {
		return errors.New("--corrected is required")
	}

	switch c.Backend {
	case BackendONNX, BackendRectangles, BackendText, BackendOCR:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if !c.Replay && c.Backend == BackendONNX && c.ModelPath == "" {
		return errors.New("--model is required for the onnx backend")
	}

	if c.Confidence < 0 || c.Confidence > 1 {
		return errors.Errorf("--confidence must be in [0, 1], got %v", c.Confidence)
	}
	if c.IoU <= 0 || c.IoU > 1 {
		return errors.Errorf("--iou must be in (0, 1], got %v", c.IoU)
	}
	if c.SliceSize <= 0 {
		return errors.Errorf("--slice-size must be positive, got %d", c.SliceSize)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return errors.Errorf("--overlap must be in [0, 1), got %v", c.Overlap)
	}
	if len(c.Extensions) == 0 {
		return errors.New("--extensions must name at least one extension")
	}
	return nil
}

// LoadClassNames reads one class name per line, ignoring blank lines.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open class names %s", path)
	}
	defer f.Close()

	names := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, errors.Wrapf(scanner.Err(), "failed to read class names %s", path)
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "cannot access %s", path)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", path)
	}
	return nil
}

// envFileFromArgs finds --env-file in args ahead of full flag parsing. It
// reports whether the file was named explicitly.
func envFileFromArgs(args []string) (string, bool) {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "env-file" {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	return getEnv("ENV_FILE", ".env"), os.Getenv(envPrefix+"ENV_FILE") != ""
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
