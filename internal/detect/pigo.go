package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"

	"facewatch/internal/core"
)

const (
	pigoShiftFactor = 0.1
	pigoIoU         = 0.2
	// DefaultPigoMinQuality drops weak pigo detections.
	DefaultPigoMinQuality = 5.0
)

// Pigo detects faces with the pure-Go pixel intensity comparison cascade.
type Pigo struct {
	classifier *pigo.Pigo
	params     Params
	minQuality float32
	logger     *logrus.Logger
}

// LoadPigo reads a packed pigo cascade (for example "facefinder") from disk.
func LoadPigo(path string, params Params, logger *logrus.Logger) (*Pigo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pigo cascade: %w", err)
	}
	return NewPigo(data, params, logger)
}

func NewPigo(cascade []byte, params Params, logger *logrus.Logger) (*Pigo, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"scale_factor": params.ScaleFactor,
		"min_size":     params.MinSize,
	}).Info("Pigo face detector initialized")

	return &Pigo{
		classifier: classifier,
		params:     params,
		minQuality: DefaultPigoMinQuality,
		logger:     logger,
	}, nil
}

func (p *Pigo) Detect(frame core.Frame) ([]core.FaceRegion, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", core.ErrDetectorFailure)
	}

	cols, rows := frame.Width(), frame.Height()
	pixels := pigo.RgbToGrayscale(frame.Image)

	params := pigo.CascadeParams{
		MinSize:     p.params.MinSize,
		MaxSize:     min(cols, rows),
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: p.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0)
	dets = p.classifier.ClusterDetections(dets, pigoIoU)

	raw := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < p.minQuality {
			continue
		}
		half := det.Scale / 2
		raw = append(raw, image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half))
	}

	p.logger.WithFields(logrus.Fields{
		"seq":        frame.Seq,
		"candidates": len(dets),
		"faces":      len(raw),
	}).Debug("Pigo detection finished")

	return ClipRegions(raw, frame.Bounds()), nil
}
