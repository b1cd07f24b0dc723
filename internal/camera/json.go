package camera

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/QingfengLee/gaussian-splatting/internal/dataset"
)

// Entry is one element of the cameras.json array. Position and Rotation
// are the camera-to-world pose; FX/FY are focal lengths in pixels at the
// source resolution.
type Entry struct {
	ID       int           `json:"id"`
	ImgName  string        `json:"img_name"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Position [3]float64    `json:"position"`
	Rotation [3][3]float64 `json:"rotation"`
	FY       float64       `json:"fy"`
	FX       float64       `json:"fx"`
}

// ToJSON serializes one camera record under the given sequential id.
func ToJSON(id int, rec dataset.CameraRecord) (Entry, error) {
	w2c := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			w2c.Set(i, j, rec.Rotation[j][i])
		}
		w2c.Set(i, 3, rec.Translation[i])
	}
	w2c.Set(3, 3, 1)

	var c2w mat.Dense
	if err := c2w.Inverse(w2c); err != nil {
		return Entry{}, fmt.Errorf("camera %d: singular pose: %w", rec.UID, err)
	}

	entry := Entry{
		ID:      id,
		ImgName: rec.ImageName,
		Width:   rec.Width,
		Height:  rec.Height,
		FY:      dataset.Fov2Focal(rec.FovY, rec.Height),
		FX:      dataset.Fov2Focal(rec.FovX, rec.Width),
	}
	for i := 0; i < 3; i++ {
		entry.Position[i] = c2w.At(i, 3)
		for j := 0; j < 3; j++ {
			entry.Rotation[i][j] = c2w.At(i, j)
		}
	}
	return entry, nil
}
