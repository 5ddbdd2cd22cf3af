// Pure-Go file decoding through an ffmpeg MJPEG pipe
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"facewatch/internal/core"
)

const megabyte = 1024 * 1024

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// SplitJpeg is a bufio.SplitFunc that extracts whole JPEG images from a
// concatenated MJPEG stream using the SOI/EOI markers.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// CheckFile verifies that path names a readable regular file.
func CheckFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory, expected a video file", core.ErrSourceUnavailable, path)
	}
	return nil
}

// FFmpegOpener decodes video files by running ffmpeg and reading MJPEG
// frames from its stdout. It does not open capture devices.
type FFmpegOpener struct {
	Binary string
	logger *logrus.Logger
}

func NewFFmpegOpener(binary string, logger *logrus.Logger) *FFmpegOpener {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegOpener{Binary: binary, logger: logger}
}

// NewFFmpegCmd creates the decoder command. -loglevel error keeps the stderr
// buffer small.
func (o *FFmpegOpener) NewFFmpegCmd(inputPath string) *exec.Cmd {
	return exec.Command(o.Binary, "-hide_banner", "-loglevel", "error", "-i", inputPath, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

func (o *FFmpegOpener) Open(target core.Target) (core.FrameSource, error) {
	if !target.IsFile() {
		return nil, fmt.Errorf("%w: ffmpeg backend cannot open %s", core.ErrSourceUnavailable, target)
	}
	if err := CheckFile(target.Path); err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(o.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", core.ErrSourceUnavailable, o.Binary, err)
	}

	cmd := o.NewFFmpegCmd(target.Path)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create ffmpeg stdout pipe: %v", core.ErrSourceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", core.ErrSourceUnavailable, err)
	}

	src := newStreamSource(stdout, func() error {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return cmd.Wait()
	})

	// Prime the first frame so undecodable files fail at open time
	first, err := src.Read()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: no decodable frames in %s: %v %s", core.ErrSourceUnavailable, target.Path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	src.primed = &first

	o.logger.WithFields(logrus.Fields{
		"target": target.String(),
		"width":  first.Width(),
		"height": first.Height(),
	}).Info("FFmpeg decoder opened")

	return src, nil
}

// streamSource reads JPEG frames from a concatenated MJPEG stream.
type streamSource struct {
	mu      sync.Mutex
	r       io.ReadCloser
	scanner *bufio.Scanner
	release func() error
	primed  *core.Frame
	seq     uint64
	closed  bool
}

func newStreamSource(r io.ReadCloser, release func() error) *streamSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)
	return &streamSource{r: r, scanner: scanner, release: release}
}

func (s *streamSource) Read() (core.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.Frame{}, core.ErrEndOfStream
	}
	if s.primed != nil {
		f := *s.primed
		s.primed = nil
		return f, nil
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return core.Frame{}, fmt.Errorf("read mjpeg stream: %w", err)
		}
		return core.Frame{}, core.ErrEndOfStream
	}

	img, err := imaging.Decode(bytes.NewReader(s.scanner.Bytes()))
	if err != nil {
		return core.Frame{}, fmt.Errorf("decode frame %d: %w", s.seq+1, err)
	}

	s.seq++
	return core.NewFrame(img, s.seq, time.Now()), nil
}

func (s *streamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.r.Close()
	if s.release != nil {
		// ffmpeg exits non-zero when killed; that is expected here
		_ = s.release()
	}
	return err
}
