// Package scene wires a camera/point-cloud dataset to a point-based
// model for novel-view-synthesis training. It classifies the dataset
// layout, dispatches to the matching loader, persists camera metadata and
// the input point cloud for fresh runs, builds per-resolution-scale
// camera lists and initialises or restores the model.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/QingfengLee/gaussian-splatting/internal/camera"
	"github.com/QingfengLee/gaussian-splatting/internal/dataset"
	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
	"github.com/QingfengLee/gaussian-splatting/internal/ply"
)

var (
	// ErrUnknownLayout is returned when the source directory matches no
	// recognised dataset format.
	ErrUnknownLayout = errors.New("scene: could not recognize scene type")
	// ErrNoLoader is returned when the classified layout has no
	// registered loader.
	ErrNoLoader = errors.New("scene: no loader registered for layout")
	// ErrNoCheckpoints is returned when LoadLatest finds no saved
	// iterations under the model path.
	ErrNoCheckpoints = errors.New("scene: no saved iterations found")
	// ErrUnknownScale is returned when a camera list is requested for a
	// resolution scale that was not built at construction.
	ErrUnknownScale = errors.New("scene: resolution scale was not requested at construction")
)

// LoadLatest selects the highest saved iteration when passed as the
// load-iteration option.
const LoadLatest = -1

// Model is the point-based model mutated by the orchestrator. Exactly one
// of Load or CreateFromPointCloud is invoked during construction.
type Model interface {
	// Load restores the model from a persisted snapshot.
	Load(path string) error
	// CreateFromPointCloud initialises a fresh model from the source
	// point cloud, scaled to the scene extent.
	CreateFromPointCloud(pc *ply.PointCloud, extent float64) error
	// Save persists the model's current state.
	Save(path string) error
}

// Config mirrors the training pipeline's model parameters.
type Config struct {
	// ModelPath is the output directory for this training run.
	ModelPath string
	// SourcePath is the dataset root directory.
	SourcePath string
	// Images names the dataset's image subfolder.
	Images string
	// Eval holds out the dataset's test split.
	Eval bool
	// WhiteBackground composites image alpha over white.
	WhiteBackground bool
	// DownscaleFactor is the explicit resolution divider (1, 2, 4, 8)
	// or -1 for automatic selection.
	DownscaleFactor int
}

// Options control construction behaviour beyond the model parameters.
type Options struct {
	// LoadIteration selects the checkpoint to resume from: nil starts a
	// fresh run, LoadLatest scans for the highest saved iteration and a
	// non-negative value resumes that exact iteration.
	LoadIteration *int
	// Shuffle randomises train and test camera order independently.
	Shuffle bool
	// ResolutionScales lists the scales camera lists are built at;
	// empty defaults to [1.0].
	ResolutionScales []float64
	// Rand drives shuffling and synthetic data generation; nil falls
	// back to a time-seeded source.
	Rand *rand.Rand
	// Logger receives progress logging; nil disables it.
	Logger *zap.SugaredLogger
	// FS overrides the filesystem; nil uses the OS filesystem.
	FS fsutil.FileSystem
	// Loaders overrides the package-level loader registry per layout.
	Loaders map[dataset.Layout]dataset.Loader
}

// InitMode says how the model was initialised; it is either
// ResumeFromIteration or FreshTraining.
type InitMode interface{ isInitMode() }

// ResumeFromIteration restores the model from a saved checkpoint.
type ResumeFromIteration struct{ Iteration int }

// FreshTraining initialises the model from the source point cloud.
type FreshTraining struct{}

func (ResumeFromIteration) isInitMode() {}
func (FreshTraining) isInitMode()       {}

// Scene owns the per-scale camera lists and the model initialised from a
// loaded dataset.
type Scene struct {
	cfg    Config
	fs     fsutil.FileSystem
	log    *zap.SugaredLogger
	model  Model
	mode   InitMode
	extent float64

	trainCameras map[float64][]*camera.Camera
	testCameras  map[float64][]*camera.Camera
}

// New loads the dataset at cfg.SourcePath and initialises model from it.
// For fresh runs it writes input.ply and cameras.json under
// cfg.ModelPath; when resuming it restores the model from the selected
// checkpoint and writes nothing.
func New(cfg Config, model Model, opts Options) (*Scene, error) {
	if model == nil {
		return nil, errors.New("scene: model must not be nil")
	}

	fs := opts.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	scales := opts.ResolutionScales
	if len(scales) == 0 {
		scales = []float64{1.0}
	}
	for _, s := range scales {
		if s <= 0 {
			return nil, fmt.Errorf("scene: resolution scale must be positive, got %v", s)
		}
	}

	s := &Scene{
		cfg:          cfg,
		fs:           fs,
		log:          log,
		model:        model,
		trainCameras: make(map[float64][]*camera.Camera),
		testCameras:  make(map[float64][]*camera.Camera),
	}

	mode, err := resolveInitMode(fs, cfg.ModelPath, opts.LoadIteration)
	if err != nil {
		return nil, err
	}
	s.mode = mode
	if resume, ok := mode.(ResumeFromIteration); ok {
		log.Infow("loading trained model", "iteration", resume.Iteration)
	}

	info, err := s.loadSceneInfo(rng, opts.Loaders)
	if err != nil {
		return nil, err
	}

	if _, fresh := mode.(FreshTraining); fresh {
		if err := s.persistSceneInputs(info); err != nil {
			return nil, err
		}
	}

	if opts.Shuffle {
		rng.Shuffle(len(info.TrainCameras), func(i, j int) {
			info.TrainCameras[i], info.TrainCameras[j] = info.TrainCameras[j], info.TrainCameras[i]
		})
		rng.Shuffle(len(info.TestCameras), func(i, j int) {
			info.TestCameras[i], info.TestCameras[j] = info.TestCameras[j], info.TestCameras[i]
		})
	}

	s.extent = info.Normalization.Radius

	builder := &camera.Builder{DownscaleFactor: cfg.DownscaleFactor, Log: log}
	for _, scale := range scales {
		log.Infow("loading training cameras", "scale", scale)
		s.trainCameras[scale] = builder.List(info.TrainCameras, scale)
		log.Infow("loading test cameras", "scale", scale)
		s.testCameras[scale] = builder.List(info.TestCameras, scale)
	}

	switch m := mode.(type) {
	case ResumeFromIteration:
		path := checkpointPath(cfg.ModelPath, m.Iteration)
		if err := model.Load(path); err != nil {
			return nil, fmt.Errorf("scene: load model from %s: %w", path, err)
		}
	case FreshTraining:
		if err := model.CreateFromPointCloud(info.PointCloud, s.extent); err != nil {
			return nil, fmt.Errorf("scene: create model from point cloud: %w", err)
		}
	}

	return s, nil
}

// resolveInitMode turns the load-iteration option into an init mode,
// scanning the checkpoint directory when the latest is requested.
func resolveInitMode(fs fsutil.FileSystem, modelPath string, loadIteration *int) (InitMode, error) {
	if loadIteration == nil {
		return FreshTraining{}, nil
	}
	if *loadIteration == LoadLatest {
		iter, err := MaxSavedIteration(fs, filepath.Join(modelPath, "point_cloud"))
		if err != nil {
			return nil, err
		}
		return ResumeFromIteration{Iteration: iter}, nil
	}
	if *loadIteration < 0 {
		return nil, fmt.Errorf("scene: invalid load iteration %d", *loadIteration)
	}
	return ResumeFromIteration{Iteration: *loadIteration}, nil
}

// loadSceneInfo classifies the source directory and runs the matching
// loader.
func (s *Scene) loadSceneInfo(rng *rand.Rand, overrides map[dataset.Layout]dataset.Loader) (*dataset.SceneDescription, error) {
	layout := dataset.Classify(s.fs, s.cfg.SourcePath)
	if layout == dataset.LayoutUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayout, s.cfg.SourcePath)
	}
	if layout == dataset.LayoutBlender {
		s.log.Infow("found transforms_train.json file, assuming Blender data set")
	}

	loader, ok := overrides[layout]
	if !ok {
		loader, ok = dataset.LoaderFor(layout)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, layout)
	}

	info, err := loader(s.fs, dataset.SourceConfig{
		Path:            s.cfg.SourcePath,
		Images:          s.cfg.Images,
		Eval:            s.cfg.Eval,
		WhiteBackground: s.cfg.WhiteBackground,
		Rand:            rng,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: load %s dataset: %w", layout, err)
	}
	return info, nil
}

// persistSceneInputs copies the source point cloud to input.ply and
// serializes every camera (test first, then train, sequential ids from
// zero) to cameras.json. Fresh-training runs only.
func (s *Scene) persistSceneInputs(info *dataset.SceneDescription) error {
	if err := s.fs.MkdirAll(s.cfg.ModelPath, 0755); err != nil {
		return fmt.Errorf("scene: create model path: %w", err)
	}

	if err := fsutil.Copy(s.fs, info.PlyPath, filepath.Join(s.cfg.ModelPath, "input.ply")); err != nil {
		return fmt.Errorf("scene: copy source point cloud: %w", err)
	}

	entries := make([]camera.Entry, 0, len(info.TestCameras)+len(info.TrainCameras))
	id := 0
	for _, records := range [][]dataset.CameraRecord{info.TestCameras, info.TrainCameras} {
		for _, rec := range records {
			entry, err := camera.ToJSON(id, rec)
			if err != nil {
				return fmt.Errorf("scene: serialize camera: %w", err)
			}
			entries = append(entries, entry)
			id++
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("scene: marshal cameras.json: %w", err)
	}
	if err := s.fs.WriteFile(filepath.Join(s.cfg.ModelPath, "cameras.json"), data, 0644); err != nil {
		return fmt.Errorf("scene: write cameras.json: %w", err)
	}
	return nil
}

// Save persists the model under point_cloud/iteration_<n>/point_cloud.ply,
// creating intermediate directories and overwriting any previous content.
func (s *Scene) Save(iteration int) error {
	if iteration < 0 {
		return fmt.Errorf("scene: invalid save iteration %d", iteration)
	}
	path := checkpointPath(s.cfg.ModelPath, iteration)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("scene: create checkpoint directory: %w", err)
	}
	if err := s.model.Save(path); err != nil {
		return fmt.Errorf("scene: save model to %s: %w", path, err)
	}
	return nil
}

// TrainCameras returns the train camera list built at the given scale.
func (s *Scene) TrainCameras(scale float64) ([]*camera.Camera, error) {
	cams, ok := s.trainCameras[scale]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownScale, scale)
	}
	return cams, nil
}

// TestCameras returns the test camera list built at the given scale.
func (s *Scene) TestCameras(scale float64) ([]*camera.Camera, error) {
	cams, ok := s.testCameras[scale]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownScale, scale)
	}
	return cams, nil
}

// Extent returns the scene's bounding-sphere radius.
func (s *Scene) Extent() float64 { return s.extent }

// Mode reports whether the scene resumed a checkpoint or started fresh.
func (s *Scene) Mode() InitMode { return s.mode }

// checkpointPath is the snapshot location for one iteration.
func checkpointPath(modelPath string, iteration int) string {
	return filepath.Join(modelPath, "point_cloud",
		fmt.Sprintf("iteration_%d", iteration), "point_cloud.ply")
}
