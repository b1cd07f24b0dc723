package dataset

import (
	"encoding/json"
	"fmt"
	"image"
	"math/rand"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"gonum.org/v1/gonum/mat"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
	"github.com/QingfengLee/gaussian-splatting/internal/ply"
)

// randomPointCount is the size of the synthetic point cloud generated for
// Blender scenes shipped without one.
const randomPointCount = 100_000

// shC0 is the zeroth spherical-harmonics basis constant used to turn
// random SH coefficients into RGB.
const shC0 = 0.28209479177387814

// transformsFile mirrors the NeRF-synthetic transforms_*.json schema.
type transformsFile struct {
	CameraAngleX float64           `json:"camera_angle_x"`
	Frames       []transformsFrame `json:"frames"`
}

type transformsFrame struct {
	FilePath        string        `json:"file_path"`
	TransformMatrix [4][4]float64 `json:"transform_matrix"`
}

// ReadBlenderScene loads a NeRF-synthetic (Blender) dataset: camera poses
// from transforms_train.json and transforms_test.json, image dimensions
// probed from the image headers, and the point cloud from points3d.ply.
// When the dataset has no point cloud, a seeded random one is synthesised
// and written back so later runs and external tools see the same points.
func ReadBlenderScene(fsys fsutil.FileSystem, cfg SourceConfig) (*SceneDescription, error) {
	train, err := readCamerasFromTransforms(fsys, cfg.Path, "transforms_train.json", 0)
	if err != nil {
		return nil, err
	}

	var test []CameraRecord
	testPath := filepath.Join(cfg.Path, "transforms_test.json")
	if fsys.Exists(testPath) {
		test, err = readCamerasFromTransforms(fsys, cfg.Path, "transforms_test.json", len(train))
		if err != nil {
			return nil, err
		}
	}

	if !cfg.Eval {
		train = append(train, test...)
		test = nil
	}

	norm, err := ComputeNormalization(train)
	if err != nil {
		return nil, err
	}

	plyPath := filepath.Join(cfg.Path, "points3d.ply")
	var pc *ply.PointCloud
	if fsys.Exists(plyPath) {
		pc, err = readPointCloud(fsys, plyPath)
		if err != nil {
			return nil, err
		}
	} else {
		pc = randomPointCloud(cfg.Rand, randomPointCount)
		if err := writePointCloud(fsys, plyPath, pc); err != nil {
			return nil, err
		}
	}

	return &SceneDescription{
		TrainCameras:  train,
		TestCameras:   test,
		Normalization: norm,
		PointCloud:    pc,
		PlyPath:       plyPath,
	}, nil
}

// readCamerasFromTransforms parses one transforms file into camera
// records, assigning UIDs starting at uidBase.
func readCamerasFromTransforms(fsys fsutil.FileSystem, dir, name string, uidBase int) ([]CameraRecord, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", name, err)
	}

	var tf transformsFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", name, err)
	}

	records := make([]CameraRecord, 0, len(tf.Frames))
	for i, frame := range tf.Frames {
		rec, err := frameToRecord(fsys, dir, frame, uidBase+i, tf.CameraAngleX)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s frame %d: %w", name, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func frameToRecord(fsys fsutil.FileSystem, dir string, frame transformsFrame, uid int, cameraAngleX float64) (CameraRecord, error) {
	imagePath := frame.FilePath
	if filepath.Ext(imagePath) == "" {
		imagePath += ".png"
	}
	imagePath = filepath.Join(dir, imagePath)

	width, height, err := probeImageSize(fsys, imagePath)
	if err != nil {
		return CameraRecord{}, err
	}

	// The transforms store OpenGL camera-to-world poses; flip the Y and
	// Z axes to COLMAP convention before inverting to world-to-camera.
	c2w := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := frame.TransformMatrix[i][j]
			if j == 1 || j == 2 {
				v = -v
			}
			c2w.Set(i, j, v)
		}
	}
	var w2c mat.Dense
	if err := w2c.Inverse(c2w); err != nil {
		return CameraRecord{}, fmt.Errorf("singular transform_matrix: %w", err)
	}

	var rec CameraRecord
	rec.UID = uid
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// Store the camera-to-world rotation.
			rec.Rotation[i][j] = w2c.At(j, i)
		}
		rec.Translation[i] = w2c.At(i, 3)
	}

	rec.FovX = cameraAngleX
	rec.FovY = Focal2Fov(Fov2Focal(cameraAngleX, width), height)
	rec.ImagePath = imagePath
	rec.ImageName = strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	rec.Width = width
	rec.Height = height
	return rec, nil
}

// probeImageSize decodes only the image header to get its dimensions.
func probeImageSize(fsys fsutil.FileSystem, path string) (int, int, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// randomPointCloud synthesises n points uniformly in [-1.3, 1.3]^3 with
// colours derived from random SH coefficients and zero normals.
func randomPointCloud(rng *rand.Rand, n int) *ply.PointCloud {
	random := rand.Float64
	if rng != nil {
		random = rng.Float64
	}

	pc := &ply.PointCloud{
		Points:  make([][3]float64, n),
		Colors:  make([][3]float64, n),
		Normals: make([][3]float64, n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			pc.Points[i][j] = random()*2.6 - 1.3
			pc.Colors[i][j] = shC0*(random()/255) + 0.5
		}
	}
	return pc
}

func readPointCloud(fsys fsutil.FileSystem, path string) (*ply.PointCloud, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open point cloud %s: %w", path, err)
	}
	defer f.Close()

	pc, err := ply.Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: read point cloud %s: %w", path, err)
	}
	return pc, nil
}

func writePointCloud(fsys fsutil.FileSystem, path string, pc *ply.PointCloud) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create point cloud %s: %w", path, err)
	}
	if err := ply.Write(f, pc, ply.BinaryLittleEndian); err != nil {
		f.Close()
		return fmt.Errorf("dataset: write point cloud %s: %w", path, err)
	}
	return f.Close()
}
