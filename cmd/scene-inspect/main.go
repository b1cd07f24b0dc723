// Command scene-inspect loads a camera/point-cloud dataset the way the
// training pipeline would and prints what it found: dataset layout,
// camera counts per resolution scale, scene extent and the model
// initialisation mode. Useful for validating a capture before committing
// to a training run.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/QingfengLee/gaussian-splatting/internal/dataset"
	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
	"github.com/QingfengLee/gaussian-splatting/internal/scene"
	"github.com/QingfengLee/gaussian-splatting/internal/splat"
)

var (
	sourcePath = flag.String("source", "", "Dataset root directory (required)")
	modelPath  = flag.String("model", "", "Model output directory (required)")
	images     = flag.String("images", "images", "Image subfolder for COLMAP datasets")
	eval       = flag.Bool("eval", false, "Hold out the dataset's test split")
	whiteBg    = flag.Bool("white-background", false, "Composite image alpha over white")
	resolution = flag.Int("resolution", -1, "Downscale factor (1, 2, 4 or 8); -1 selects automatically")
	scalesCSV  = flag.String("scales", "1.0", "Comma-separated resolution scales")
	iteration  = flag.Int("iteration", scene.LoadLatest, "Checkpoint iteration to resume; -1 picks the latest")
	shuffle    = flag.Bool("shuffle", false, "Shuffle camera order")
	seed       = flag.Int64("seed", 0, "Random seed for shuffling (0 leaves the source unseeded)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *sourcePath == "" || *modelPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	scales, err := parseScales(*scalesCSV)
	if err != nil {
		log.Fatalf("invalid -scales: %v", err)
	}

	logger, err := buildLogger(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	opts := scene.Options{
		Shuffle:          *shuffle,
		ResolutionScales: scales,
		Logger:           sugar,
	}
	if *seed != 0 {
		opts.Rand = rand.New(rand.NewSource(*seed))
	}
	// -iteration only resumes when passed explicitly; the default run is
	// a fresh one.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "iteration" {
			opts.LoadIteration = iteration
		}
	})

	fs := fsutil.OSFileSystem{}
	layout := dataset.Classify(fs, *sourcePath)
	fmt.Printf("dataset layout: %s\n", layout)

	model := splat.NewPointModel(fs)
	s, err := scene.New(scene.Config{
		ModelPath:       *modelPath,
		SourcePath:      *sourcePath,
		Images:          *images,
		Eval:            *eval,
		WhiteBackground: *whiteBg,
		DownscaleFactor: *resolution,
	}, model, opts)
	if err != nil {
		sugar.Fatalw("failed to load scene", "error", err)
	}

	switch mode := s.Mode().(type) {
	case scene.ResumeFromIteration:
		fmt.Printf("resumed from iteration %d\n", mode.Iteration)
	case scene.FreshTraining:
		fmt.Println("fresh training run")
	}
	fmt.Printf("scene extent: %.4f\n", s.Extent())
	if model.Cloud() != nil {
		fmt.Printf("point cloud: %d points\n", model.Cloud().Len())
	}

	for _, scale := range scales {
		train, err := s.TrainCameras(scale)
		if err != nil {
			sugar.Fatalw("camera lookup failed", "scale", scale, "error", err)
		}
		test, err := s.TestCameras(scale)
		if err != nil {
			sugar.Fatalw("camera lookup failed", "scale", scale, "error", err)
		}
		fmt.Printf("scale %g: %d train cameras, %d test cameras", scale, len(train), len(test))
		if len(train) > 0 {
			fmt.Printf(" (%dx%d)", train[0].Width, train[0].Height)
		}
		fmt.Println()
	}
}

func parseScales(csv string) ([]float64, error) {
	var scales []float64
	for _, field := range strings.Split(csv, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		s, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", field, err)
		}
		if s <= 0 {
			return nil, fmt.Errorf("scale %v must be positive", s)
		}
		scales = append(scales, s)
	}
	if len(scales) == 0 {
		return nil, fmt.Errorf("no scales given")
	}
	return scales, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
