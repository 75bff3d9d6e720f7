package metrics

import "testing"

func TestCountersAcceptKnownLabels(t *testing.T) {
	SavesTotal.WithValues(OutcomeSuccess).Inc()
	SavesTotal.WithValues(OutcomeFailure).Inc()
	LoadsTotal.WithValues(OutcomeSuccess).Inc()
	VerifyFailuresTotal.WithValues(CheckMAC).Inc()
	VerifyFailuresTotal.WithValues(CheckSignature).Inc()
}
