package listener

import "github.com/prometheus/client_golang/prometheus"

var (
	interactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dusseldorf_interactions_total",
		Help: "Interactions recorded per protocol.",
	}, []string{"protocol"})

	recordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dusseldorf_interaction_record_errors_total",
		Help: "Interaction log writes that failed, per protocol.",
	}, []string{"protocol"})

	// RequestsTotal counts wire requests seen per protocol, including
	// ones that resolved to no zone.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dusseldorf_listener_requests_total",
		Help: "Wire requests received per protocol.",
	}, []string{"protocol"})
)

func init() {
	prometheus.MustRegister(interactionsTotal, recordErrors, RequestsTotal)
}
