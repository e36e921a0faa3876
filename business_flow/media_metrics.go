package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathPassthrough = "passthrough"
	pathTranscode   = "transcode"
	pathNone        = "none"
)

var (
	mediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Media uploads partitioned by outcome code and processing path",
		},
		[]string{"outcome", "path"},
	)

	mediaTranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_transcode_duration_seconds",
			Help:    "Time spent decoding, resizing and encoding one image",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source_format"},
	)

	mediaStoredBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_stored_bytes_total",
			Help: "Bytes written to the storage namespace",
		},
		[]string{"path"},
	)
)

func observeUpload(outcome, path string) {
	mediaUploadsTotal.With(prometheus.Labels{"outcome": outcome, "path": path}).Inc()
}
