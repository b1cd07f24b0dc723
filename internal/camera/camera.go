// Package camera builds resolution-scaled camera objects from dataset
// records and serializes them for the cameras.json sidecar.
package camera

import (
	"math"

	"go.uber.org/zap"

	"github.com/QingfengLee/gaussian-splatting/internal/dataset"
)

// highResWidth is the width above which auto resolution selection starts
// downscaling images.
const highResWidth = 1600

// Camera is one training or test view at a concrete rendering resolution.
// The pose and field of view come straight from the source record; Width
// and Height carry the applied resolution scaling.
type Camera struct {
	UID         int
	Rotation    [3][3]float64
	Translation [3]float64
	FovX        float64
	FovY        float64
	ImageName   string
	ImagePath   string
	Width       int
	Height      int
}

// Builder turns camera records into Camera lists. DownscaleFactor is the
// -r flag of the training pipeline: 1, 2, 4 or 8 divide the source
// resolution explicitly, -1 selects automatically (images wider than
// 1600px are scaled down to it).
type Builder struct {
	DownscaleFactor int
	Log             *zap.SugaredLogger

	warnedHighRes bool
}

// List builds one Camera per record at the given resolution scale,
// preserving record order.
func (b *Builder) List(records []dataset.CameraRecord, scale float64) []*Camera {
	cameras := make([]*Camera, 0, len(records))
	for _, rec := range records {
		cameras = append(cameras, b.build(rec, scale))
	}
	return cameras
}

func (b *Builder) build(rec dataset.CameraRecord, scale float64) *Camera {
	factor := scale
	switch b.DownscaleFactor {
	case 1, 2, 4, 8:
		factor *= float64(b.DownscaleFactor)
	default:
		if rec.Width > highResWidth {
			if !b.warnedHighRes && b.Log != nil {
				b.Log.Infow("encountered images larger than 1600px wide, rescaling to 1600px; use an explicit downscale factor of 1 to keep the original resolution",
					"width", rec.Width)
			}
			b.warnedHighRes = true
			factor *= float64(rec.Width) / highResWidth
		}
	}

	return &Camera{
		UID:         rec.UID,
		Rotation:    rec.Rotation,
		Translation: rec.Translation,
		FovX:        rec.FovX,
		FovY:        rec.FovY,
		ImageName:   rec.ImageName,
		ImagePath:   rec.ImagePath,
		Width:       scaleDim(rec.Width, factor),
		Height:      scaleDim(rec.Height, factor),
	}
}

func scaleDim(dim int, factor float64) int {
	if factor <= 0 {
		return dim
	}
	scaled := int(math.Round(float64(dim) / factor))
	if scaled < 1 {
		return 1
	}
	return scaled
}
