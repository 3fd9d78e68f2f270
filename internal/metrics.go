package internal

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "cfm_http_request_duration_seconds",
		Help: "The duration of host HTTP requests in seconds.",
		Buckets: []float64{
			0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10,
			30, 60, 300,
		},
	},
		[]string{"route"},
	)
	StoredFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfm_stored_files",
		Help: "The number of file records currently stored.",
	})
	Http400Errors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfm_400_errors",
		Help: "The total number of HTTP 4xx client errors.",
	})
	Http500Errors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfm_500_errors",
		Help: "The total number of HTTP 5xx server errors.",
	})
	MemoryUsage = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cfm_memory_usage_bytes",
		Help: "The current memory usage.",
	},
		func() float64 {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.Alloc)
		},
	)
)
