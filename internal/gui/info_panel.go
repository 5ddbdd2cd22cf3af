// internal/gui/info_panel.go
// Status panel: face count, pipeline state and current source
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"facewatch/internal/core"
)

// InfoPanel shows what the pipeline is doing.
type InfoPanel struct {
	container *fyne.Container

	faceLabel   *widget.Label
	stateLabel  *widget.Label
	sourceLabel *widget.Label
	statusLabel *widget.Label
}

func NewInfoPanel(storageDir string) *InfoPanel {
	ip := &InfoPanel{
		faceLabel:   widget.NewLabelWithStyle(FaceCountText(0), fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		stateLabel:  widget.NewLabel("State: idle"),
		sourceLabel: widget.NewLabel("Source: none"),
		statusLabel: widget.NewLabel("Ready"),
	}

	ip.container = container.NewVBox(
		ip.faceLabel,
		widget.NewSeparator(),
		ip.stateLabel,
		ip.sourceLabel,
		widget.NewLabel("Saving faces to: "+storageDir),
		widget.NewSeparator(),
		ip.statusLabel,
	)
	return ip
}

func (ip *InfoPanel) GetContainer() fyne.CanvasObject {
	return widget.NewCard("Status", "", ip.container)
}

// FaceCountText is the label text for n faces.
func FaceCountText(n int) string {
	return fmt.Sprintf("Faces detected: %d", n)
}

func (ip *InfoPanel) SetFaceCount(n int) {
	ip.faceLabel.SetText(FaceCountText(n))
}

func (ip *InfoPanel) SetState(s core.State, target core.Target, open bool) {
	ip.stateLabel.SetText("State: " + s.String())
	if open {
		ip.sourceLabel.SetText("Source: " + target.String())
	} else {
		ip.sourceLabel.SetText("Source: none")
	}
}

func (ip *InfoPanel) SetStatus(message string) {
	ip.statusLabel.SetText(message)
}
