package realtime

import (
	"github.com/Dosada05/lanparty/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var subscribersGauge = promauto.With(metrics.Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Name:      "realtime_subscribers",
		Help:      "Number of open realtime subscriptions",
	},
)
