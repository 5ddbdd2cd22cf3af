package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facewatch/internal/core"
	"facewatch/internal/detect"
)

// Cascade detects faces with an OpenCV Haar cascade classifier.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     detect.Params
	logger     *logrus.Logger
}

// NewCascade loads the classifier from path, typically
// haarcascade_frontalface_default.xml.
func NewCascade(path string, params detect.Params, logger *logrus.Logger) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier: %s", path)
	}

	logger.WithFields(logrus.Fields{
		"cascade":       path,
		"scale_factor":  params.ScaleFactor,
		"min_neighbors": params.MinNeighbors,
		"min_size":      params.MinSize,
	}).Info("Face detector initialized")

	return &Cascade{
		classifier: classifier,
		params:     params,
		logger:     logger,
	}, nil
}

func (c *Cascade) Detect(frame core.Frame) ([]core.FaceRegion, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", core.ErrDetectorFailure)
	}

	// ImageToMatRGB copies the pixels, so the frame is left untouched
	bgr, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame: %v", core.ErrDetectorFailure, err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	minSize := image.Pt(c.params.MinSize, c.params.MinSize)

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(gray, c.params.ScaleFactor, c.params.MinNeighbors, 0, minSize, image.Point{})
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"seq":   frame.Seq,
		"faces": len(rects),
	}).Debug("Cascade detection finished")

	return detect.ClipRegions(rects, frame.Bounds()), nil
}

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
