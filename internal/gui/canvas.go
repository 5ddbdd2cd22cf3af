// internal/gui/canvas.go
// Video canvas receiving the rendered frame of each cycle
package gui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/disintegration/imaging"
)

// VideoCanvas shows the latest display frame. It implements
// core.DisplaySink; Present must run on the Fyne goroutine, which holds when
// cycles are dispatched with fyne.Do.
type VideoCanvas struct {
	image       *canvas.Image
	placeholder image.Image
	card        *widget.Card
	presented   int
}

func NewVideoCanvas(width, height int) *VideoCanvas {
	placeholder := imaging.New(width, height, color.NRGBA{R: 240, G: 240, B: 240, A: 255})

	img := canvas.NewImageFromImage(placeholder)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	img.SetMinSize(fyne.NewSize(float32(width), float32(height)))

	return &VideoCanvas{
		image:       img,
		placeholder: placeholder,
		card:        widget.NewCard("Video", "", img),
	}
}

func (vc *VideoCanvas) GetContainer() fyne.CanvasObject {
	return vc.card
}

// Present replaces the displayed frame.
func (vc *VideoCanvas) Present(img image.Image) {
	vc.image.Image = img
	vc.image.Refresh()
	vc.presented++
}

// Clear restores the blank placeholder.
func (vc *VideoCanvas) Clear() {
	vc.image.Image = vc.placeholder
	vc.image.Refresh()
}

// Presented returns the number of frames shown so far.
func (vc *VideoCanvas) Presented() int {
	return vc.presented
}
