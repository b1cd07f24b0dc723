package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// worldToView builds the 4x4 world-to-camera matrix for a record.
func worldToView(rec CameraRecord) *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// Rotation is stored camera-to-world; transpose back.
			m.Set(i, j, rec.Rotation[j][i])
		}
		m.Set(i, 3, rec.Translation[i])
	}
	m.Set(3, 3, 1)
	return m
}

// CameraCenter returns the world-space position of a camera.
func CameraCenter(rec CameraRecord) ([3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(worldToView(rec)); err != nil {
		return [3]float64{}, fmt.Errorf("dataset: camera %d has a singular pose: %w", rec.UID, err)
	}
	return [3]float64{inv.At(0, 3), inv.At(1, 3), inv.At(2, 3)}, nil
}

// ComputeNormalization derives the scene normalization from camera
// positions: the translate recentres the cameras at their mean and the
// radius is 1.1 times the distance to the farthest camera, giving the
// bounding sphere the model is initialised against.
func ComputeNormalization(records []CameraRecord) (Normalization, error) {
	if len(records) == 0 {
		return Normalization{Radius: 1}, nil
	}

	centers := make([][3]float64, len(records))
	var mean [3]float64
	for i, rec := range records {
		c, err := CameraCenter(rec)
		if err != nil {
			return Normalization{}, err
		}
		centers[i] = c
		for j := 0; j < 3; j++ {
			mean[j] += c[j]
		}
	}
	for j := 0; j < 3; j++ {
		mean[j] /= float64(len(records))
	}

	var maxDist float64
	for _, c := range centers {
		var d float64
		for j := 0; j < 3; j++ {
			diff := c[j] - mean[j]
			d += diff * diff
		}
		if d = math.Sqrt(d); d > maxDist {
			maxDist = d
		}
	}

	return Normalization{
		Translate: [3]float64{-mean[0], -mean[1], -mean[2]},
		Radius:    maxDist * 1.1,
	}, nil
}
