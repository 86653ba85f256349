package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "failure", Outcome(errors.New("boom")))
}

func TestMustRegister_AllCollectorsGathered(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	OTPSentTotal.WithLabelValues("success").Inc()
	GateDecisionsTotal.WithLabelValues("ledger", "new_address_required").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["otp_sent_total"])
	assert.True(t, names["phone_gate_decisions_total"])
}

func TestMustRegister_TwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)
	assert.Panics(t, func() { MustRegister(reg) })
}
