package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalTicketsCreated is the total number of tickets created.
	TotalTicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_total_created",
			Help: "Total number of tickets created",
		},
	)

	// TotalTicketsClosed is the total number of tickets closed, by who
	// triggered the close (user or the inactivity monitor).
	TotalTicketsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_total_closed",
			Help: "Total number of tickets closed",
		},
		[]string{"actor"},
	)

	// SweepDuration is the duration of inactivity monitor sweeps.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "ticket_sweep_duration",
			Help: "Duration of inactivity monitor sweeps",
		},
	)

	// TranscriptBytes is the size of generated transcripts.
	TranscriptBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_transcript_bytes",
			Help:    "Size of generated transcripts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)
