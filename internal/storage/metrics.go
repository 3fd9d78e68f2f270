package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfm_uploads_total",
		Help: "The total number of uploads by media kind and outcome.",
	},
		[]string{"kind", "outcome"},
	)
	UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "cfm_upload_duration_seconds",
		Help: "The duration of uploads in seconds, including derivatives.",
		Buckets: []float64{
			0.1, 0.5, 1, 2.5, 5, 10,
			30, 60, 300, 900,
		},
	},
		[]string{"kind"},
	)
	UploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "cfm_upload_size_bytes",
		Help: "The size of uploaded files in bytes.",
		Buckets: []float64{
			1024, 32768, 262144,
			1048576, 8388608, 52428800,
			268435456, 1073741824,
		},
	},
		[]string{"kind"},
	)
	StreamChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfm_stream_chunks_total",
		Help: "The total number of tus chunks sent to Stream.",
	})
	DerivativesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfm_derivatives_total",
		Help: "The total number of webp derivatives by outcome.",
	},
		[]string{"outcome"},
	)
	DeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfm_deletes_total",
		Help: "The total number of remote deletes by asset and outcome.",
	},
		[]string{"asset", "outcome"},
	)
)
