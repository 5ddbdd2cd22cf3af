// Runtime configuration: compiled defaults with .env and environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultStorageDir   = "faces"
	DefaultCascadeFile  = "haarcascade_frontalface_default.xml"
	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 4
	DefaultMinFaceSize  = 30
	DefaultJPEGQuality  = 95
	DefaultCycleDelay   = 10 * time.Millisecond
	DefaultDevice       = "0"
	DefaultFFmpeg       = "ffmpeg"

	DisplayWidth  = 640
	DisplayHeight = 480

	DetectorCascade = "cascade"
	DetectorPigo    = "pigo"

	SourceOpenCV = "opencv"
	SourceFFmpeg = "ffmpeg"

	envPrefix = "FACEWATCH_"
)

// Config holds every tunable value of the application.
type Config struct {
	StorageDir   string
	JPEGQuality  int
	Detector     string
	CascadeFile  string
	ScaleFactor  float64
	MinNeighbors int
	MinFaceSize  int
	Source       string
	FFmpegBinary string
	Device       string
	CycleDelay   time.Duration
	PreviewAddr  string
	LogLevel     string
	Debug        bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StorageDir:   DefaultStorageDir,
		JPEGQuality:  DefaultJPEGQuality,
		Detector:     DetectorCascade,
		CascadeFile:  DefaultCascadeFile,
		ScaleFactor:  DefaultScaleFactor,
		MinNeighbors: DefaultMinNeighbors,
		MinFaceSize:  DefaultMinFaceSize,
		Source:       SourceOpenCV,
		FFmpegBinary: DefaultFFmpeg,
		Device:       DefaultDevice,
		CycleDelay:   DefaultCycleDelay,
		LogLevel:     "info",
	}
}

// Load starts from Default and applies FACEWATCH_* values, first from the
// given .env files (missing files are skipped) and then from the process
// environment, which takes precedence.
func Load(envFiles ...string) (Config, error) {
	values := map[string]string{}
	for _, file := range envFiles {
		parsed, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range parsed {
			values[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			return v, true
		}
		v, ok := values[envPrefix+key]
		return v, ok && v != ""
	}

	cfg := Default()
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	setString("STORAGE_DIR", &cfg.StorageDir)
	setInt("JPEG_QUALITY", &cfg.JPEGQuality)
	setString("DETECTOR", &cfg.Detector)
	setString("CASCADE", &cfg.CascadeFile)
	setInt("MIN_NEIGHBORS", &cfg.MinNeighbors)
	setInt("MIN_FACE_SIZE", &cfg.MinFaceSize)
	setString("SOURCE", &cfg.Source)
	setString("FFMPEG", &cfg.FFmpegBinary)
	setString("DEVICE", &cfg.Device)
	setString("PREVIEW_ADDR", &cfg.PreviewAddr)
	setString("LOG_LEVEL", &cfg.LogLevel)

	if v, ok := lookup("SCALE_FACTOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSCALE_FACTOR: %w", envPrefix, err))
		} else {
			cfg.ScaleFactor = f
		}
	}
	if v, ok := lookup("CYCLE_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCYCLE_DELAY: %w", envPrefix, err))
		} else {
			cfg.CycleDelay = d
		}
	}
	if v, ok := lookup("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDEBUG: %w", envPrefix, err))
		} else {
			cfg.Debug = b
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.StorageDir == "" {
		errs = append(errs, errors.New("storage dir must not be empty"))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality must be 1-100, got %d", c.JPEGQuality))
	}
	if c.Detector != DetectorCascade && c.Detector != DetectorPigo {
		errs = append(errs, fmt.Errorf("unknown detector %q (want %s or %s)", c.Detector, DetectorCascade, DetectorPigo))
	}
	if c.CascadeFile == "" {
		errs = append(errs, errors.New("cascade file must not be empty"))
	}
	if c.ScaleFactor <= 1 {
		errs = append(errs, fmt.Errorf("scale factor must be greater than 1, got %g", c.ScaleFactor))
	}
	if c.MinNeighbors < 0 {
		errs = append(errs, fmt.Errorf("min neighbors must not be negative, got %d", c.MinNeighbors))
	}
	if c.MinFaceSize < 1 {
		errs = append(errs, fmt.Errorf("min face size must be positive, got %d", c.MinFaceSize))
	}
	if c.Source != SourceOpenCV && c.Source != SourceFFmpeg {
		errs = append(errs, fmt.Errorf("unknown source backend %q (want %s or %s)", c.Source, SourceOpenCV, SourceFFmpeg))
	}
	if c.CycleDelay <= 0 {
		errs = append(errs, fmt.Errorf("cycle delay must be positive, got %s", c.CycleDelay))
	}
	return errors.Join(errs...)
}
