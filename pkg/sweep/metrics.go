package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dgxrm_cycle_duration_seconds",
			Help:    "Time taken by a complete sweep cycle",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	cycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dgxrm_cycle_total",
			Help: "Total number of sweep cycles",
		},
		[]string{"status"}, // success or error
	)

	collectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dgxrm_collector_duration_seconds",
			Help:    "Time taken by individual inventory collectors",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"collector"}, // gpu, slurm, docker, proctree
	)

	collectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dgxrm_collection_errors_total",
			Help: "Inventory sources that failed soft during a cycle",
		},
		[]string{"collector"},
	)

	classifiedProcesses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dgxrm_classified_processes_total",
			Help: "GPU processes classified, by verdict",
		},
		[]string{"classification"},
	)

	reclaimedProcesses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dgxrm_reclaimed_processes_total",
			Help: "Orphan reclamation outcomes",
		},
		[]string{"result"}, // graceful, forced, failed, dry_run
	)

	gpuProcessCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dgxrm_gpu_processes",
			Help: "GPU processes observed in the last cycle",
		},
	)
)
