// Prometheus instrumentation for the face pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "facewatch"

// Pipeline records cycle measurements. It satisfies core.CycleRecorder.
type Pipeline struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	facesDetected   prometheus.Counter
	lastFaceCount   prometheus.Gauge
	archiveErrors   prometheus.Counter
	cycleDuration   prometheus.Histogram
	running         prometheus.Gauge
}

// NewPipeline registers the pipeline collectors on a private registry,
// together with the Go runtime and process collectors.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames that completed a detection cycle.",
		}),
		facesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_detected_total",
			Help:      "Face regions found across all cycles.",
		}),
		lastFaceCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_face_count",
			Help:      "Faces found by the most recent cycle.",
		}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Face crops that could not be written.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent reading, detecting, archiving and rendering one frame.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a source is open, 0 when idle.",
		}),
	}

	p.registry.MustRegister(
		p.framesProcessed,
		p.facesDetected,
		p.lastFaceCount,
		p.archiveErrors,
		p.cycleDuration,
		p.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the collectors for an HTTP handler.
func (p *Pipeline) Registry() *prometheus.Registry { return p.registry }

func (p *Pipeline) ObserveCycle(faces int, seconds float64) {
	p.framesProcessed.Inc()
	p.facesDetected.Add(float64(faces))
	p.lastFaceCount.Set(float64(faces))
	p.cycleDuration.Observe(seconds)
}

func (p *Pipeline) ArchiveFailed() { p.archiveErrors.Inc() }

func (p *Pipeline) SetRunning(running bool) {
	if running {
		p.running.Set(1)
		return
	}
	p.running.Set(0)
}
