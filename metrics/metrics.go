// Package metrics exposes Prometheus metrics about chunk uploads.
package metrics

import (
	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the chunk upload metrics of one process.
type Collector struct {
	ChunksTotal    *prometheus.CounterVec
	BytesSent      prometheus.Counter
	FilesTotal     *prometheus.CounterVec
	Progress       prometheus.Gauge
	ChunkDurations prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunk_upload_chunks_total",
				Help: "Total number of settled chunk uploads",
			},
			[]string{"status"},
		),
		BytesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunk_upload_bytes_sent_total",
				Help: "Total number of chunk payload bytes of succeeded chunks",
			},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunk_upload_files_total",
				Help: "Total number of file uploads",
			},
			[]string{"status"},
		),
		Progress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chunk_upload_progress_percent",
				Help: "Overall progress of the latest file upload",
			},
		),
		ChunkDurations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunk_upload_chunk_duration_seconds",
				Help:    "Time to send a single chunk",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(c.ChunksTotal, c.BytesSent, c.FilesTotal, c.Progress, c.ChunkDurations)
	}

	return c
}

// Callbacks returns upload callbacks feeding the collector, chained with next.
func (c *Collector) Callbacks(next chunkuploader.Callbacks) chunkuploader.Callbacks {
	return chunkuploader.Callbacks{
		OnProgress: func(e chunkuploader.ProgressEvent) {
			c.Progress.Set(float64(e.Percentage))
			if next.OnProgress != nil {
				next.OnProgress(e)
			}
		},
		OnComplete: func(r chunkuploader.ChunkResult) {
			c.ChunksTotal.WithLabelValues(string(r.Status)).Inc()
			if r.Status == chunkuploader.StatusSucceeded {
				c.BytesSent.Add(float64(r.Sent))
				c.ChunkDurations.Observe(r.Duration.Seconds())
			}
			if next.OnComplete != nil {
				next.OnComplete(r)
			}
		},
	}
}

// FileSettled counts a finished file upload and sets the progress gauge to the settled percentage.
// Progress events of different chunks may arrive out of order, the settled percentage is final.
func (c *Collector) FileSettled(result *chunkuploader.UploadResult, err error) {
	status := chunkuploader.StatusSucceeded
	if err != nil {
		status = chunkuploader.StatusFailed
	}
	c.FilesTotal.WithLabelValues(string(status)).Inc()
	if result != nil {
		c.Progress.Set(float64(result.Percentage))
	}
}
