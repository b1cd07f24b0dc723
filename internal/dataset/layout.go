package dataset

import (
	"path/filepath"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
)

// Layout identifies the on-disk format of a dataset directory.
type Layout int

const (
	// LayoutUnknown means the directory matched no known dataset format.
	LayoutUnknown Layout = iota
	// LayoutColmap is a COLMAP reconstruction (a sparse/ subdirectory).
	LayoutColmap
	// LayoutBlender is a NeRF-synthetic dataset (transforms_train.json).
	LayoutBlender
)

// String returns the loader-registry name of the layout.
func (l Layout) String() string {
	switch l {
	case LayoutColmap:
		return "Colmap"
	case LayoutBlender:
		return "Blender"
	}
	return "Unknown"
}

// Classify sniffs the dataset format of sourcePath. A sparse/
// subdirectory wins over transforms_train.json, matching the order
// COLMAP exports are probed in.
func Classify(fsys fsutil.FileSystem, sourcePath string) Layout {
	if fsys.Exists(filepath.Join(sourcePath, "sparse")) {
		return LayoutColmap
	}
	if fsys.Exists(filepath.Join(sourcePath, "transforms_train.json")) {
		return LayoutBlender
	}
	return LayoutUnknown
}
