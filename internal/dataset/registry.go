package dataset

import (
	"sync"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
)

// Loader reads a scene description from a dataset directory.
type Loader func(fsys fsutil.FileSystem, cfg SourceConfig) (*SceneDescription, error)

var (
	registryMu sync.RWMutex
	registry   = map[Layout]Loader{
		LayoutBlender: ReadBlenderScene,
	}
)

// RegisterLoader installs a loader for a dataset layout, replacing any
// previous registration. The COLMAP reader lives outside this module and
// registers itself here.
func RegisterLoader(layout Layout, fn Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[layout] = fn
}

// LoaderFor returns the registered loader for a layout.
func LoaderFor(layout Layout) (Loader, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[layout]
	return fn, ok
}
