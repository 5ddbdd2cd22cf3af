// Menu handler for application actions
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// MenuHandler builds the main menu
type MenuHandler struct {
	window     fyne.Window
	storageDir string

	onOpenVideo func()
	onStop      func()
}

func NewMenuHandler(window fyne.Window, storageDir string) *MenuHandler {
	return &MenuHandler{
		window:     window,
		storageDir: storageDir,
	}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Video...", func() {
			if mh.onOpenVideo != nil {
				mh.onOpenVideo()
			}
		}),
		fyne.NewMenuItem("Stop", func() {
			if mh.onStop != nil {
				mh.onStop()
			}
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", func() {
			mh.window.Close()
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, helpMenu)
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel("Face Watch"),
		widget.NewSeparator(),
		widget.NewLabel("Detects faces in camera or video input"),
		widget.NewLabel("and saves every detected face as a JPEG."),
		widget.NewSeparator(),
		widget.NewLabel("Faces are saved to: "+mh.storageDir),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(400, 240))
	aboutDialog.Show()
}

func (mh *MenuHandler) SetCallbacks(onOpenVideo, onStop func()) {
	mh.onOpenVideo = onOpenVideo
	mh.onStop = onStop
}
