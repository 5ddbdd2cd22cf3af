// Face crop persistence with collision-free timestamp names
package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"facewatch/internal/core"
)

const (
	filePrefix      = "face_"
	timestampLayout = "20060102_150405"
	maxNameAttempts = 10000
)

// FaceArchiver writes one compressed image per detected face into a single
// storage directory.
type FaceArchiver struct {
	mu      sync.Mutex
	dir     string
	format  imaging.Format
	ext     string
	quality int
	now     func() time.Time
	logger  *logrus.Logger

	lastStamp string
	nextIndex int
}

// Option configures a FaceArchiver.
type Option func(*FaceArchiver)

// WithClock replaces time.Now for name generation.
func WithClock(now func() time.Time) Option {
	return func(a *FaceArchiver) { a.now = now }
}

// WithJPEGQuality sets the JPEG quality (1-100).
func WithJPEGQuality(q int) Option {
	return func(a *FaceArchiver) { a.quality = q }
}

// WithFormat selects the output extension: ".jpg", ".jpeg" or ".png".
func WithFormat(ext string) Option {
	return func(a *FaceArchiver) { a.ext = strings.ToLower(ext) }
}

// NewFaceArchiver creates the storage directory if it is absent.
func NewFaceArchiver(dir string, logger *logrus.Logger, opts ...Option) (*FaceArchiver, error) {
	a := &FaceArchiver{
		dir:     dir,
		ext:     ".jpg",
		quality: 95,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	if !isSupportedImageFormat(a.ext) {
		return nil, fmt.Errorf("unsupported archive format: %s", a.ext)
	}
	format, err := imaging.FormatFromExtension(a.ext)
	if err != nil {
		return nil, fmt.Errorf("unsupported archive format: %w", err)
	}
	a.format = format

	if a.quality < 1 || a.quality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", a.quality)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create storage directory: %v", core.ErrStorageWrite, err)
	}

	logger.WithFields(logrus.Fields{
		"dir":    dir,
		"format": a.format.String(),
	}).Info("Face archive ready")

	return a, nil
}

// Dir returns the storage directory.
func (a *FaceArchiver) Dir() string { return a.dir }

// Archive crops frame to region and persists it. Names are
// face_<YYYYMMDD_HHMMSS>.<ext>; faces archived within the same second get a
// _<n> suffix, and an existing file is never overwritten.
func (a *FaceArchiver) Archive(frame core.Frame, region core.FaceRegion) (core.ArchivedFace, error) {
	if frame.Empty() {
		return core.ArchivedFace{}, fmt.Errorf("%w: empty frame", core.ErrStorageWrite)
	}
	if !region.Within(frame.Bounds()) {
		return core.ArchivedFace{}, fmt.Errorf("%w: region %s outside frame %v", core.ErrStorageWrite, region, frame.Bounds())
	}

	crop := imaging.Crop(frame.Image, region.Rectangle)

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now()
	file, path, err := a.createUnique(ts)
	if err != nil {
		return core.ArchivedFace{}, err
	}

	if err := imaging.Encode(file, crop, a.format, imaging.JPEGQuality(a.quality)); err != nil {
		file.Close()
		os.Remove(path)
		return core.ArchivedFace{}, fmt.Errorf("%w: encode %s: %v", core.ErrStorageWrite, path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return core.ArchivedFace{}, fmt.Errorf("%w: close %s: %v", core.ErrStorageWrite, path, err)
	}

	a.logger.WithFields(logrus.Fields{
		"path":   path,
		"region": region.String(),
	}).Debug("Face saved")

	return core.ArchivedFace{Path: path, Region: region, CreatedAt: ts}, nil
}

// createUnique opens a new file for ts with O_EXCL, moving to the next
// disambiguator when the name is taken.
func (a *FaceArchiver) createUnique(ts time.Time) (*os.File, string, error) {
	stamp := ts.Format(timestampLayout)
	if stamp != a.lastStamp {
		a.lastStamp = stamp
		a.nextIndex = 0
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(a.dir, archiveName(stamp, a.nextIndex, a.ext))
		a.nextIndex++

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return file, path, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return nil, "", fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	return nil, "", fmt.Errorf("%w: no free name for %s after %d attempts", core.ErrStorageWrite, stamp, maxNameAttempts)
}

func archiveName(stamp string, index int, ext string) string {
	if index == 0 {
		return filePrefix + stamp + ext
	}
	return fmt.Sprintf("%s%s_%d%s", filePrefix, stamp, index, ext)
}

func isSupportedImageFormat(ext string) bool {
	for _, format := range []string{".jpg", ".jpeg", ".png"} {
		if ext == format {
			return true
		}
	}
	return false
}
