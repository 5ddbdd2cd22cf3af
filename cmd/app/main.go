// Face Watch: face detection and archiving for camera and video input

package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

const (
	AppName    = "Face Watch"
	AppID      = "io.facewatch.app"
	AppVersion = "1.0.0"
)

func main() {
	Execute()
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
		return logger
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		logger.WithField("level", level).Warn("Unknown log level, using info")
	}

	return logger
}
