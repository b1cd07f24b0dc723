// Package splat provides a file-backed point model. It persists and
// restores point-cloud snapshots in the layout the training pipeline
// expects but carries none of the optimization state a full Gaussian
// model would; it stands in for one in tooling and tests.
package splat

import (
	"errors"
	"fmt"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
	"github.com/QingfengLee/gaussian-splatting/internal/ply"
)

// ErrNotInitialized is returned by Save before the model was loaded or
// created.
var ErrNotInitialized = errors.New("splat: model not initialized")

// PointModel holds a point set and the spatial extent it was initialised
// against. It implements the scene orchestrator's Model contract.
type PointModel struct {
	fs     fsutil.FileSystem
	cloud  *ply.PointCloud
	extent float64
}

// NewPointModel creates an empty model over the given filesystem; nil
// selects the OS filesystem.
func NewPointModel(fsys fsutil.FileSystem) *PointModel {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &PointModel{fs: fsys}
}

// Load restores the point set from a PLY snapshot.
func (m *PointModel) Load(path string) error {
	f, err := m.fs.Open(path)
	if err != nil {
		return fmt.Errorf("splat: open snapshot %s: %w", path, err)
	}
	defer f.Close()

	pc, err := ply.Read(f)
	if err != nil {
		return fmt.Errorf("splat: read snapshot %s: %w", path, err)
	}
	m.cloud = pc
	return nil
}

// CreateFromPointCloud initialises the model from a source point cloud,
// copying the columns so later mutations don't alias the loader's data.
func (m *PointModel) CreateFromPointCloud(pc *ply.PointCloud, extent float64) error {
	if pc == nil {
		return errors.New("splat: nil point cloud")
	}
	m.cloud = &ply.PointCloud{
		Points:  clone(pc.Points),
		Colors:  clone(pc.Colors),
		Normals: clone(pc.Normals),
	}
	m.extent = extent
	return nil
}

// Save writes the current point set as a binary PLY snapshot.
func (m *PointModel) Save(path string) error {
	if m.cloud == nil {
		return ErrNotInitialized
	}

	f, err := m.fs.Create(path)
	if err != nil {
		return fmt.Errorf("splat: create snapshot %s: %w", path, err)
	}
	if err := ply.Write(f, m.cloud, ply.BinaryLittleEndian); err != nil {
		f.Close()
		return fmt.Errorf("splat: write snapshot %s: %w", path, err)
	}
	return f.Close()
}

// Cloud returns the model's point set, nil before initialisation.
func (m *PointModel) Cloud() *ply.PointCloud { return m.cloud }

// Extent returns the spatial extent passed at creation.
func (m *PointModel) Extent() float64 { return m.extent }

func clone(rows [][3]float64) [][3]float64 {
	if rows == nil {
		return nil
	}
	out := make([][3]float64, len(rows))
	copy(out, rows)
	return out
}
