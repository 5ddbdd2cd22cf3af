// Face detection parameters and region helpers shared by detector backends
package detect

import (
	"image"

	"facewatch/internal/core"
)

// Params are the cascade detection constants.
type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// DefaultParams returns scale_factor=1.1, min_neighbors=4 and a 30 pixel
// minimum face size.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  1.1,
		MinNeighbors: 4,
		MinSize:      30,
	}
}

// ClipRegions converts raw detections into regions contained in bounds.
// Detections that fall entirely outside are dropped.
func ClipRegions(raw []image.Rectangle, bounds image.Rectangle) []core.FaceRegion {
	regions := make([]core.FaceRegion, 0, len(raw))
	for _, r := range raw {
		clipped := r.Canon().Intersect(bounds)
		if clipped.Empty() {
			continue
		}
		regions = append(regions, core.FaceRegion{Rectangle: clipped})
	}
	return regions
}

// Static returns the same regions for every frame, clipped to its bounds.
// Useful for demos and calibration runs without a cascade file.
type Static []image.Rectangle

func (s Static) Detect(frame core.Frame) ([]core.FaceRegion, error) {
	return ClipRegions(s, frame.Bounds()), nil
}
