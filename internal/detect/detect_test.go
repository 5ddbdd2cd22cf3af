package detect

import (
	"image"
	"image/color"
	"io"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/core"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.1, p.ScaleFactor)
	assert.Equal(t, 4, p.MinNeighbors)
	assert.Equal(t, 30, p.MinSize)
}

func TestClipRegions(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	tests := []struct {
		name string
		raw  []image.Rectangle
		want []core.FaceRegion
	}{
		{
			name: "inside",
			raw:  []image.Rectangle{image.Rect(10, 10, 40, 40)},
			want: []core.FaceRegion{core.NewFaceRegion(10, 10, 30, 30)},
		},
		{
			name: "overhanging edge is clipped",
			raw:  []image.Rectangle{image.Rect(-5, 60, 20, 95)},
			want: []core.FaceRegion{core.NewFaceRegion(0, 60, 20, 20)},
		},
		{
			name: "outside is dropped",
			raw:  []image.Rectangle{image.Rect(120, 10, 140, 30)},
			want: []core.FaceRegion{},
		},
		{
			name: "inverted corners are normalized",
			raw:  []image.Rectangle{{Min: image.Pt(40, 40), Max: image.Pt(10, 10)}},
			want: []core.FaceRegion{core.NewFaceRegion(10, 10, 30, 30)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClipRegions(tt.raw, bounds)
			assert.Equal(t, tt.want, got)
			for _, r := range got {
				assert.True(t, r.Within(bounds))
			}
		})
	}
}

func TestStaticDoesNotMutateFrame(t *testing.T) {
	img := imaging.New(50, 50, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	frame := core.NewFrame(img, 1, time.Now())
	before := append([]uint8(nil), img.Pix...)

	regions, err := Static{image.Rect(5, 5, 25, 25)}.Detect(frame)
	require.NoError(t, err)
	assert.Len(t, regions, 1)
	assert.Equal(t, before, img.Pix)
}

// TestPigoDetector needs a packed cascade, e.g. pigo's cascade/facefinder.
func TestPigoDetector(t *testing.T) {
	path := os.Getenv("FACEWATCH_TEST_PIGO_CASCADE")
	if path == "" {
		t.Skip("FACEWATCH_TEST_PIGO_CASCADE not set")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d, err := LoadPigo(path, DefaultParams(), logger)
	require.NoError(t, err)

	// a flat image has no faces
	frame := core.NewFrame(imaging.New(320, 240, color.Gray{Y: 128}), 1, time.Now())
	regions, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, regions)

	_, err = d.Detect(core.Frame{})
	assert.ErrorIs(t, err, core.ErrDetectorFailure)
}

func TestLoadPigoMissingFile(t *testing.T) {
	_, err := LoadPigo("does-not-exist", DefaultParams(), logrus.New())
	assert.Error(t, err)
}
