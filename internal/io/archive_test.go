package io

import (
	"image"
	"image/color"
	stdio "io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/core"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(stdio.Discard)
	return logger
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func testFrame(w, h int) core.Frame {
	return core.NewFrame(imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255}), 1, time.Now())
}

func TestNewFaceArchiverCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "faces")

	_, err := NewFaceArchiver(dir, quietLogger())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFaceArchiverRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFaceArchiver(dir, quietLogger(), WithFormat(".gif"))
	assert.Error(t, err)

	_, err = NewFaceArchiver(dir, quietLogger(), WithJPEGQuality(0))
	assert.Error(t, err)
}

func TestArchiveCropDimensions(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFaceArchiver(dir, quietLogger())
	require.NoError(t, err)

	frame := testFrame(320, 240)
	region := core.NewFaceRegion(40, 30, 64, 48)

	face, err := a.Archive(frame, region)
	require.NoError(t, err)
	assert.Equal(t, region, face.Region)

	img, err := imaging.Open(face.Path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 48), img.Bounds().Size())
}

func TestArchiveNaming(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 10, 18, 14, 5, 9, 0, time.Local)
	a, err := NewFaceArchiver(dir, quietLogger(), WithClock(fixedClock(ts)))
	require.NoError(t, err)

	frame := testFrame(100, 100)
	region := core.NewFaceRegion(10, 10, 20, 20)

	first, err := a.Archive(frame, region)
	require.NoError(t, err)
	second, err := a.Archive(frame, region)
	require.NoError(t, err)
	third, err := a.Archive(frame, region)
	require.NoError(t, err)

	assert.Equal(t, "face_20261018_140509.jpg", filepath.Base(first.Path))
	assert.Equal(t, "face_20261018_140509_1.jpg", filepath.Base(second.Path))
	assert.Equal(t, "face_20261018_140509_2.jpg", filepath.Base(third.Path))

	pattern := regexp.MustCompile(`^face_\d{8}_\d{6}(_\d+)?\.jpg$`)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Regexp(t, pattern, e.Name())
	}
}

func TestArchiveNeverOverwritesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)

	// a file left by an earlier run in the same second
	existing := filepath.Join(dir, "face_20260102_030405.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0644))

	a, err := NewFaceArchiver(dir, quietLogger(), WithClock(fixedClock(ts)))
	require.NoError(t, err)

	face, err := a.Archive(testFrame(50, 50), core.NewFaceRegion(0, 0, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, "face_20260102_030405_1.jpg", filepath.Base(face.Path))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestArchiveCounterResetsOnNewSecond(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	clock := ts
	a, err := NewFaceArchiver(dir, quietLogger(), WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	frame := testFrame(50, 50)
	region := core.NewFaceRegion(0, 0, 10, 10)

	_, err = a.Archive(frame, region)
	require.NoError(t, err)
	_, err = a.Archive(frame, region)
	require.NoError(t, err)

	clock = ts.Add(time.Second)
	face, err := a.Archive(frame, region)
	require.NoError(t, err)
	assert.Equal(t, "face_20260102_030406.jpg", filepath.Base(face.Path))
}

func TestArchiveErrors(t *testing.T) {
	a, err := NewFaceArchiver(t.TempDir(), quietLogger())
	require.NoError(t, err)

	_, err = a.Archive(testFrame(50, 50), core.NewFaceRegion(40, 40, 20, 20))
	assert.ErrorIs(t, err, core.ErrStorageWrite)

	_, err = a.Archive(core.Frame{}, core.NewFaceRegion(0, 0, 1, 1))
	assert.ErrorIs(t, err, core.ErrStorageWrite)

	// storage directory removed underneath the archiver
	require.NoError(t, os.RemoveAll(a.Dir()))
	_, err = a.Archive(testFrame(50, 50), core.NewFaceRegion(0, 0, 10, 10))
	assert.ErrorIs(t, err, core.ErrStorageWrite)
}

func TestArchivePNG(t *testing.T) {
	a, err := NewFaceArchiver(t.TempDir(), quietLogger(), WithFormat(".png"))
	require.NoError(t, err)

	face, err := a.Archive(testFrame(60, 40), core.NewFaceRegion(5, 5, 30, 20))
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(face.Path))

	img, err := imaging.Open(face.Path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 20), img.Bounds().Size())
}
