// Frame and face region types shared by every pipeline stage
package core

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// Frame is one decoded image sampled from a video source.
// The pixel buffer is never modified after capture; stages that draw on a
// frame work on a clone.
type Frame struct {
	Image     *image.NRGBA
	Seq       uint64
	Timestamp time.Time
}

// NewFrame wraps img as a Frame. Images that are not zero-origin NRGBA are
// converted so every stage sees the same channel layout.
func NewFrame(img image.Image, seq uint64, ts time.Time) Frame {
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = imaging.Clone(img)
	}
	return Frame{Image: nrgba, Seq: seq, Timestamp: ts}
}

// Bounds returns the frame rectangle.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

func (f Frame) Width() int  { return f.Bounds().Dx() }
func (f Frame) Height() int { return f.Bounds().Dy() }

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Bounds().Empty()
}

// ValidateFrame checks a frame for basic requirements
func ValidateFrame(f Frame) error {
	if f.Empty() {
		return fmt.Errorf("frame is empty")
	}

	// Check for reasonable size limits (prevent memory issues)
	const maxDimension = 16384
	if f.Width() > maxDimension || f.Height() > maxDimension {
		return fmt.Errorf("frame too large: %dx%d (max: %d)", f.Width(), f.Height(), maxDimension)
	}

	return nil
}

// FaceRegion is an axis-aligned bounding box locating a face in frame
// coordinates.
type FaceRegion struct {
	image.Rectangle
}

// NewFaceRegion builds a region from its top-left corner and size.
func NewFaceRegion(x, y, width, height int) FaceRegion {
	return FaceRegion{Rectangle: image.Rect(x, y, x+width, y+height)}
}

func (r FaceRegion) X() int      { return r.Min.X }
func (r FaceRegion) Y() int      { return r.Min.Y }
func (r FaceRegion) Width() int  { return r.Dx() }
func (r FaceRegion) Height() int { return r.Dy() }

// Within reports whether the region is non-empty and fully inside bounds.
func (r FaceRegion) Within(bounds image.Rectangle) bool {
	return !r.Empty() && r.In(bounds)
}

func (r FaceRegion) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X(), r.Y(), r.Width(), r.Height())
}

// ArchivedFace is a persisted face crop.
type ArchivedFace struct {
	Path      string
	Region    FaceRegion
	CreatedAt time.Time
}
