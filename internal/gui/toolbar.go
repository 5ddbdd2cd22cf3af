// internal/gui/toolbar.go
// Source controls: device selector, start, stop and open file
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"facewatch/internal/core"
)

// VideoExtensions are offered by the open file dialog.
var VideoExtensions = []string{".mp4", ".avi", ".mkv"}

type Toolbar struct {
	window fyne.Window
	logger *logrus.Logger

	container *fyne.Container

	deviceSelect *widget.Select
	startBtn     *widget.Button
	stopBtn      *widget.Button
	openBtn      *widget.Button

	// Callbacks
	onStart    func(selector string)
	onStop     func()
	onOpenFile func(path string)
}

func NewToolbar(window fyne.Window, devices []string, logger *logrus.Logger) *Toolbar {
	tb := &Toolbar{
		window: window,
		logger: logger,
	}
	tb.initializeUI(devices)
	return tb
}

func (tb *Toolbar) initializeUI(devices []string) {
	titleLabel := widget.NewLabelWithStyle("Face Watch", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	tb.deviceSelect = widget.NewSelect(devices, nil)
	if len(devices) > 0 {
		tb.deviceSelect.SetSelected(devices[0])
	}
	tb.deviceSelect.PlaceHolder = "Select camera"

	tb.startBtn = widget.NewButtonWithIcon("Start Camera", theme.MediaPlayIcon(), func() {
		if tb.onStart != nil {
			tb.onStart(tb.deviceSelect.Selected)
		}
	})
	tb.startBtn.Importance = widget.HighImportance

	tb.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		if tb.onStop != nil {
			tb.onStop()
		}
	})
	tb.stopBtn.Disable()

	tb.openBtn = widget.NewButtonWithIcon("Open Video File", theme.FolderOpenIcon(), tb.OpenFileDialog)

	tb.container = container.NewHBox(
		titleLabel,
		widget.NewSeparator(),
		tb.deviceSelect,
		tb.startBtn,
		tb.stopBtn,
		widget.NewSeparator(),
		tb.openBtn,
	)
}

func (tb *Toolbar) GetContainer() fyne.CanvasObject {
	return tb.container
}

// OpenFileDialog asks for a video file and hands its path to the open
// callback.
func (tb *Toolbar) OpenFileDialog() {
	tb.logger.Info("Opening file dialog for video selection")

	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			tb.logger.WithError(err).Error("File dialog error")
			dialog.ShowError(err, tb.window)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		tb.logger.WithField("filepath", path).Info("Video file selected")
		if tb.onOpenFile != nil {
			tb.onOpenFile(path)
		}
	}, tb.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(VideoExtensions))
	fileDialog.Show()
}

// SetState enables the controls valid in state s: Start and the device
// selector only while idle, Stop only while running. Open File is always
// available.
func (tb *Toolbar) SetState(s core.State) {
	if s == core.Running {
		tb.startBtn.Disable()
		tb.deviceSelect.Disable()
		tb.stopBtn.Enable()
		return
	}
	tb.startBtn.Enable()
	tb.deviceSelect.Enable()
	tb.stopBtn.Disable()
}

func (tb *Toolbar) SetCallbacks(onStart func(string), onStop func(), onOpenFile func(string)) {
	tb.onStart = onStart
	tb.onStop = onStop
	tb.onOpenFile = onOpenFile
}
