package dataset

import (
	"math"
	"testing"
)

var identityRotation = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// recordAt builds a record whose camera sits at the given world position
// (identity rotation, so the world-to-camera translation is the negated
// position).
func recordAt(uid int, pos [3]float64) CameraRecord {
	return CameraRecord{
		UID:         uid,
		Rotation:    identityRotation,
		Translation: [3]float64{-pos[0], -pos[1], -pos[2]},
	}
}

func TestCameraCenter(t *testing.T) {
	rec := recordAt(0, [3]float64{1, -2, 3})

	got, err := CameraCenter(rec)
	if err != nil {
		t.Fatalf("CameraCenter failed: %v", err)
	}

	want := [3]float64{1, -2, 3}
	for i := 0; i < 3; i++ {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("center[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestComputeNormalization(t *testing.T) {
	records := []CameraRecord{
		recordAt(0, [3]float64{0, 0, 0}),
		recordAt(1, [3]float64{2, 0, 0}),
	}

	norm, err := ComputeNormalization(records)
	if err != nil {
		t.Fatalf("ComputeNormalization failed: %v", err)
	}

	// Mean camera position is (1,0,0); the farthest camera is 1 away.
	if math.Abs(norm.Radius-1.1) > 1e-9 {
		t.Errorf("Radius = %v, want 1.1", norm.Radius)
	}
	wantTranslate := [3]float64{-1, 0, 0}
	for i := 0; i < 3; i++ {
		if math.Abs(norm.Translate[i]-wantTranslate[i]) > 1e-9 {
			t.Errorf("Translate[%d] = %v, want %v", i, norm.Translate[i], wantTranslate[i])
		}
	}
}

func TestComputeNormalizationEmpty(t *testing.T) {
	norm, err := ComputeNormalization(nil)
	if err != nil {
		t.Fatalf("ComputeNormalization failed: %v", err)
	}
	if norm.Radius != 1 {
		t.Errorf("Radius = %v, want fallback 1", norm.Radius)
	}
}

func TestFovFocalRoundTrip(t *testing.T) {
	const fov = 0.8
	const pixels = 800

	focal := Fov2Focal(fov, pixels)
	if got := Focal2Fov(focal, pixels); math.Abs(got-fov) > 1e-12 {
		t.Errorf("Focal2Fov(Fov2Focal(%v)) = %v", fov, got)
	}
}
