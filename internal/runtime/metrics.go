package runtime

import "github.com/prometheus/client_golang/prometheus"

var (
	compilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genaid",
			Subsystem: "compile",
			Name:      "compiles_total",
			Help:      "Total successful ahead-of-time graph compilations",
		},
		[]string{"graph"},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genaid",
			Subsystem: "compile",
			Name:      "cache_hits_total",
			Help:      "Compiled artifacts accepted without recompilation",
		},
		[]string{"graph"},
	)

	cacheInvalidTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genaid",
			Subsystem: "compile",
			Name:      "cache_invalid_total",
			Help:      "Existing compiled artifacts rejected by validation",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(compilesTotal, cacheHitsTotal, cacheInvalidTotal)
}
