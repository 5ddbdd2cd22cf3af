package capture

import (
	"path/filepath"
	"sort"

	"facewatch/internal/core"
)

// DeviceGlob matches V4L2 capture nodes.
const DeviceGlob = "/dev/video*"

// ListDevices returns the capture device paths matching pattern, ordered by
// device index. Paths that do not parse as a device selector are skipped.
func ListDevices(pattern string) []string {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	type device struct {
		path  string
		index int
	}
	devices := make([]device, 0, len(matches))
	for _, m := range matches {
		n, err := core.ParseDeviceSelector(filepath.Base(m))
		if err != nil {
			continue
		}
		devices = append(devices, device{path: m, index: n})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].index < devices[j].index })

	paths := make([]string, len(devices))
	for i, d := range devices {
		paths[i] = d.path
	}
	return paths
}
