// Main application window wiring the controls to the face pipeline
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"github.com/sirupsen/logrus"

	"facewatch/internal/core"
)

// Application is the desktop front end of the pipeline controller.
//
// Controller observers fire on the goroutine that drove the change. Button
// handlers run on the Fyne goroutine and cycles are dispatched through
// fyne.Do, so observers may touch widgets directly.
type Application struct {
	app    fyne.App
	window fyne.Window
	logger *logrus.Logger

	ctrl *core.Controller

	video       *VideoCanvas
	toolbar     *Toolbar
	info        *InfoPanel
	menuHandler *MenuHandler
}

// NewApplication builds the window. video must be the DisplaySink the
// controller was created with.
func NewApplication(app fyne.App, ctrl *core.Controller, video *VideoCanvas, devices []string, storageDir string, logger *logrus.Logger) *Application {
	window := app.NewWindow("Face Watch")
	window.Resize(fyne.NewSize(960, 600))
	window.CenterOnScreen()

	a := &Application{
		app:    app,
		window: window,
		logger: logger,
		ctrl:   ctrl,
		video:  video,
	}

	a.toolbar = NewToolbar(window, devices, logger)
	a.info = NewInfoPanel(storageDir)
	a.menuHandler = NewMenuHandler(window, storageDir)

	a.setupLayout()
	a.setupCallbacks()
	return a
}

func (a *Application) setupLayout() {
	content := container.NewBorder(
		a.toolbar.GetContainer(), // top
		nil,                      // bottom
		nil,                      // left
		a.info.GetContainer(),    // right
		container.NewPadded(a.video.GetContainer()),
	)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(content)
}

func (a *Application) setupCallbacks() {
	a.ctrl.SetCallbacks(
		// onStateChange
		func(s core.State) {
			a.toolbar.SetState(s)
			target, open := a.ctrl.Target()
			a.info.SetState(s, target, open)
			if s == core.Idle {
				a.video.Clear()
				a.info.SetStatus("Stopped")
			}
		},
		// onFaceCount
		func(n int) {
			a.info.SetFaceCount(n)
		},
		// onError
		func(err error) {
			a.showError("Processing Error", err)
		},
	)

	a.toolbar.SetCallbacks(
		// onStart
		func(selector string) {
			if err := a.ctrl.Start(selector); err != nil {
				a.showError("Camera Unavailable", err)
				return
			}
			a.info.SetStatus(fmt.Sprintf("Camera %s running", selector))
		},
		// onStop
		a.ctrl.Stop,
		// onOpenFile
		a.openFile,
	)

	a.menuHandler.SetCallbacks(a.toolbar.OpenFileDialog, a.ctrl.Stop)
}

func (a *Application) openFile(path string) {
	if err := a.ctrl.OpenFile(path); err != nil {
		a.showError("Cannot Open Video", err)
		return
	}
	a.info.SetStatus("Playing " + path)
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.ctrl.Close()
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.info.SetStatus(fmt.Sprintf("Error: %s", err.Error()))
}
