package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
	"github.com/QingfengLee/gaussian-splatting/internal/ply"
)

func writePNG(t *testing.T, fs fsutil.FileSystem, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func writeTransforms(t *testing.T, fs fsutil.FileSystem, path string, angleX float64, frames []transformsFrame) {
	t.Helper()
	data, err := json.Marshal(transformsFile{CameraAngleX: angleX, Frames: frames})
	if err != nil {
		t.Fatalf("marshal transforms: %v", err)
	}
	if err := fs.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write transforms: %v", err)
	}
}

// frameAt returns an axis-aligned frame whose camera sits at pos.
func frameAt(name string, pos [3]float64) transformsFrame {
	return transformsFrame{
		FilePath: name,
		TransformMatrix: [4][4]float64{
			{1, 0, 0, pos[0]},
			{0, 1, 0, pos[1]},
			{0, 0, 1, pos[2]},
			{0, 0, 0, 1},
		},
	}
}

// blenderFixture populates fs with a two-train one-test Blender dataset.
func blenderFixture(t *testing.T, fs fsutil.FileSystem) {
	t.Helper()
	const root = "/data/lego"
	writeTransforms(t, fs, root+"/transforms_train.json", 0.7, []transformsFrame{
		frameAt("./train/r_0", [3]float64{0, 0, 4}),
		frameAt("./train/r_1", [3]float64{4, 0, 0}),
	})
	writeTransforms(t, fs, root+"/transforms_test.json", 0.7, []transformsFrame{
		frameAt("./test/r_0", [3]float64{0, 4, 0}),
	})
	for _, p := range []string{root + "/train/r_0.png", root + "/train/r_1.png", root + "/test/r_0.png"} {
		writePNG(t, fs, p, 8, 4)
	}
}

func TestReadBlenderSceneEval(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs)

	info, err := ReadBlenderScene(fs, SourceConfig{
		Path: "/data/lego",
		Eval: true,
		Rand: rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}

	if len(info.TrainCameras) != 2 {
		t.Errorf("train cameras = %d, want 2", len(info.TrainCameras))
	}
	if len(info.TestCameras) != 1 {
		t.Errorf("test cameras = %d, want 1", len(info.TestCameras))
	}

	rec := info.TrainCameras[0]
	if rec.Width != 8 || rec.Height != 4 {
		t.Errorf("image size = %dx%d, want 8x4", rec.Width, rec.Height)
	}
	if rec.ImageName != "r_0" {
		t.Errorf("image name = %q, want r_0", rec.ImageName)
	}
	if rec.FovX != 0.7 {
		t.Errorf("FovX = %v, want 0.7", rec.FovX)
	}
	wantFovY := Focal2Fov(Fov2Focal(0.7, 8), 4)
	if math.Abs(rec.FovY-wantFovY) > 1e-12 {
		t.Errorf("FovY = %v, want %v", rec.FovY, wantFovY)
	}

	// Cameras sit at distance 4 from the origin; their mean is off-origin
	// so the radius must be positive and below 1.1*8.
	if info.Normalization.Radius <= 0 || info.Normalization.Radius > 8.8 {
		t.Errorf("Radius = %v out of expected range", info.Normalization.Radius)
	}
}

func TestReadBlenderSceneFoldsTestSplit(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs)

	info, err := ReadBlenderScene(fs, SourceConfig{
		Path: "/data/lego",
		Eval: false,
		Rand: rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}

	if len(info.TrainCameras) != 3 {
		t.Errorf("train cameras = %d, want 3 (test folded in)", len(info.TrainCameras))
	}
	if len(info.TestCameras) != 0 {
		t.Errorf("test cameras = %d, want 0", len(info.TestCameras))
	}
}

func TestReadBlenderSceneCameraPose(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs)

	info, err := ReadBlenderScene(fs, SourceConfig{
		Path: "/data/lego",
		Eval: true,
		Rand: rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}

	// The recovered camera center must match the frame's position
	// regardless of the OpenGL/COLMAP axis flip.
	center, err := CameraCenter(info.TrainCameras[1])
	if err != nil {
		t.Fatalf("CameraCenter failed: %v", err)
	}
	want := [3]float64{4, 0, 0}
	for i := 0; i < 3; i++ {
		if math.Abs(center[i]-want[i]) > 1e-9 {
			t.Errorf("center[%d] = %v, want %v", i, center[i], want[i])
		}
	}
}

func TestReadBlenderSceneSynthesisesPointCloud(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs)

	info, err := ReadBlenderScene(fs, SourceConfig{
		Path: "/data/lego",
		Eval: true,
		Rand: rand.New(rand.NewSource(42)),
	})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}

	if info.PointCloud.Len() != randomPointCount {
		t.Errorf("point cloud size = %d, want %d", info.PointCloud.Len(), randomPointCount)
	}
	for _, p := range info.PointCloud.Points[:10] {
		for j := 0; j < 3; j++ {
			if p[j] < -1.3 || p[j] > 1.3 {
				t.Errorf("point coordinate %v outside [-1.3, 1.3]", p[j])
			}
		}
	}

	// The synthesised cloud is written back for later runs.
	if !fs.Exists("/data/lego/points3d.ply") {
		t.Error("expected points3d.ply to be written back")
	}

	// Same seed, same cloud.
	fs2 := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs2)
	info2, err := ReadBlenderScene(fs2, SourceConfig{
		Path: "/data/lego",
		Eval: true,
		Rand: rand.New(rand.NewSource(42)),
	})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if info.PointCloud.Points[i] != info2.PointCloud.Points[i] {
			t.Fatalf("point[%d] differs across identically seeded runs", i)
		}
	}
}

func TestReadBlenderSceneUsesExistingPointCloud(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	blenderFixture(t, fs)

	existing := &ply.PointCloud{Points: [][3]float64{{1, 2, 3}, {4, 5, 6}}}
	var buf bytes.Buffer
	if err := ply.Write(&buf, existing, ply.BinaryLittleEndian); err != nil {
		t.Fatalf("write ply: %v", err)
	}
	if err := fs.WriteFile("/data/lego/points3d.ply", buf.Bytes(), 0644); err != nil {
		t.Fatalf("write points3d.ply: %v", err)
	}

	info, err := ReadBlenderScene(fs, SourceConfig{Path: "/data/lego", Eval: true})
	if err != nil {
		t.Fatalf("ReadBlenderScene failed: %v", err)
	}
	if info.PointCloud.Len() != 2 {
		t.Errorf("point cloud size = %d, want 2", info.PointCloud.Len())
	}
	if info.PlyPath != "/data/lego/points3d.ply" {
		t.Errorf("PlyPath = %q", info.PlyPath)
	}
}

func TestReadBlenderSceneErrors(t *testing.T) {
	t.Run("missing transforms", func(t *testing.T) {
		fs := fsutil.NewMemoryFileSystem()
		fs.MkdirAll("/data/empty", 0755)
		if _, err := ReadBlenderScene(fs, SourceConfig{Path: "/data/empty"}); err == nil {
			t.Error("expected error for missing transforms_train.json")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		fs := fsutil.NewMemoryFileSystem()
		writeTransforms(t, fs, "/data/lego/transforms_train.json", 0.7, []transformsFrame{
			frameAt("./train/r_0", [3]float64{0, 0, 4}),
		})
		_, err := ReadBlenderScene(fs, SourceConfig{Path: "/data/lego"})
		if err == nil {
			t.Error("expected error for missing frame image")
		}
	})

	t.Run("bad json", func(t *testing.T) {
		fs := fsutil.NewMemoryFileSystem()
		fs.WriteFile("/data/lego/transforms_train.json", []byte("{"), 0644)
		if _, err := ReadBlenderScene(fs, SourceConfig{Path: "/data/lego"}); err == nil {
			t.Error("expected error for malformed transforms JSON")
		}
	})
}

func BenchmarkRandomPointCloud(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < b.N; i++ {
		randomPointCloud(rng, 10_000)
	}
}

func ExampleClassify() {
	fs := fsutil.NewMemoryFileSystem()
	fs.MkdirAll("/scenes/garden/sparse/0", 0755)

	fmt.Println(Classify(fs, "/scenes/garden"))
	// Output: Colmap
}
