package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OTPSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_sent_total",
			Help: "Total number of OTP send attempts.",
		},
		[]string{"result"},
	)

	OTPVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of OTP verification attempts.",
		},
		[]string{"result"},
	)

	BridgeTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_bridge_tokens_total",
			Help: "Verification bridge tokens issued and validated.",
		},
		[]string{"flow", "result"},
	)

	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phone_gate_decisions_total",
			Help: "Verification gate decisions by gate and outcome.",
		},
		[]string{"gate", "outcome"},
	)
)

// MustRegister registers every collector with reg. Counters can be
// incremented without registration, so tests never need to call it.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		OTPSentTotal,
		OTPVerifiedTotal,
		BridgeTokensTotal,
		GateDecisionsTotal,
	)
}

// Outcome maps an error to a "success"/"failure" label.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
