package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/QingfengLee/gaussian-splatting/internal/fsutil"
)

// MaxSavedIteration scans a checkpoint directory for iteration_<n>
// entries and returns the highest n. It returns ErrNoCheckpoints when the
// directory is missing or holds no iteration entries.
func MaxSavedIteration(fsys fsutil.FileSystem, dir string) (int, error) {
	if !fsys.Exists(dir) {
		return 0, fmt.Errorf("%w: %s does not exist", ErrNoCheckpoints, dir)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scene: scan %s: %w", dir, err)
	}

	best := -1
	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry.Name(), "iteration_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		if n > best {
			best = n
		}
	}

	if best < 0 {
		return 0, fmt.Errorf("%w: nothing under %s", ErrNoCheckpoints, dir)
	}
	return best, nil
}
