// Package dataset loads scene descriptions from on-disk camera datasets.
//
// A dataset directory is classified into a Layout and handed to the
// matching Loader, which produces the SceneDescription consumed by the
// scene orchestrator: ordered train/test camera records, the source point
// cloud and the normalization used to scale the scene extent.
package dataset

import (
	"math"
	"math/rand"

	"github.com/QingfengLee/gaussian-splatting/internal/ply"
)

// CameraRecord holds the per-image calibration of one camera. Rotation is
// the camera-to-world rotation (the transpose of the world-to-camera
// rotation, COLMAP convention) and Translation the world-to-camera
// translation. Records are immutable once loaded.
type CameraRecord struct {
	UID         int
	Rotation    [3][3]float64
	Translation [3]float64
	FovX        float64
	FovY        float64
	ImagePath   string
	ImageName   string
	Width       int
	Height      int
}

// Normalization scales the scene so model initialisation is resolution
// independent: Radius is the bounding-sphere radius over all camera
// positions and Translate recentres them at the origin.
type Normalization struct {
	Translate [3]float64
	Radius    float64
}

// SceneDescription is a loader's output: everything the orchestrator
// needs to set up training on one dataset.
type SceneDescription struct {
	TrainCameras  []CameraRecord
	TestCameras   []CameraRecord
	Normalization Normalization
	PointCloud    *ply.PointCloud
	PlyPath       string
}

// SourceConfig carries the loader inputs shared by all dataset formats.
type SourceConfig struct {
	// Path is the dataset root directory.
	Path string
	// Images names the image subfolder for COLMAP datasets ("images"
	// when empty).
	Images string
	// Eval holds out the dataset's test split instead of folding it
	// into the training set.
	Eval bool
	// WhiteBackground tells downstream image loaders to composite
	// alpha over white rather than black.
	WhiteBackground bool
	// Rand seeds any synthetic data generation; nil falls back to an
	// unseeded source.
	Rand *rand.Rand
}

// Fov2Focal converts a field of view in radians to a focal length in
// pixels for the given image dimension.
func Fov2Focal(fov float64, pixels int) float64 {
	return float64(pixels) / (2 * math.Tan(fov/2))
}

// Focal2Fov converts a focal length in pixels back to a field of view in
// radians for the given image dimension.
func Focal2Fov(focal float64, pixels int) float64 {
	return 2 * math.Atan(float64(pixels)/(2*focal))
}
