// Detection overlay and display scaling
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"facewatch/internal/core"
)

const (
	DisplayWidth  = 640
	DisplayHeight = 480
	DefaultStroke = 2
)

// DefaultColor is the rectangle color drawn around faces.
var DefaultColor = color.NRGBA{G: 255, A: 255}

// Annotator outlines face regions and scales frames for display.
type Annotator struct {
	Color  color.NRGBA
	Stroke int
	Width  int
	Height int
}

// NewAnnotator returns an annotator drawing 2px green outlines onto a
// 640x480 display.
func NewAnnotator() *Annotator {
	return &Annotator{
		Color:  DefaultColor,
		Stroke: DefaultStroke,
		Width:  DisplayWidth,
		Height: DisplayHeight,
	}
}

// Annotate returns a copy of frame with one outline per region. The input
// frame is not modified; with no regions the copy is pixel-identical.
func (a *Annotator) Annotate(frame core.Frame, regions []core.FaceRegion) core.Frame {
	if frame.Empty() {
		return frame
	}
	canvas := imaging.Clone(frame.Image)
	for _, r := range regions {
		a.outline(canvas, r.Rectangle)
	}
	return core.Frame{Image: canvas, Seq: frame.Seq, Timestamp: frame.Timestamp}
}

// Display scales frame to exactly Width x Height.
func (a *Annotator) Display(frame core.Frame) image.Image {
	if frame.Empty() {
		return imaging.New(a.Width, a.Height, color.NRGBA{A: 255})
	}
	return imaging.Resize(frame.Image, a.Width, a.Height, imaging.Linear)
}

// outline draws the stroke inside r, clipped to the canvas.
func (a *Annotator) outline(dst *image.NRGBA, r image.Rectangle) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(a.Color)
	s := min(a.Stroke, r.Dx(), r.Dy())

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+s),
		image.Rect(r.Min.X, r.Max.Y-s, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+s, r.Max.Y),
		image.Rect(r.Max.X-s, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}
