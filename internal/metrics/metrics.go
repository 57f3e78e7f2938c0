package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksAttempted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "generation_chunks_attempted_total",
		Help:      "Student chunks sent to the generator.",
	})

	ChunksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "generation_chunks_failed_total",
		Help:      "Student chunks whose generation call failed and were skipped.",
	})

	StudentsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "generation_students_total",
		Help:      "Student results returned by the generator.",
	})

	ChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reportgen",
		Name:      "generation_chunk_duration_seconds",
		Help:      "Latency of one generation call.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	PagesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "export_pages_total",
		Help:      "Report card pages rasterized into PDF files.",
	})

	FilesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "export_files_total",
		Help:      "PDF files saved by the export pipeline.",
	})

	ExportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "export_failures_total",
		Help:      "Export invocations aborted by a render failure.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportgen",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
)
