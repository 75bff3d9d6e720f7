// Package metrics exposes modelpack's small set of named Prometheus
// counters, mirroring the teacher's metrics package: one Namespace per
// subsystem, a handful of named counters, registered with the
// docker/go-metrics default registry.
package metrics

import "github.com/docker/go-metrics"

const namespacePrefix = "modelpack"

var archiveNamespace = metrics.NewNamespace(namespacePrefix, "archive", nil)

var (
	// SavesTotal counts successful and failed manifestv3.Write calls,
	// labeled by outcome. A Save that fails before reaching Write is not
	// counted.
	SavesTotal = archiveNamespace.NewLabeledCounter("saves_total", "number of Save calls", "outcome")

	// LoadsTotal counts successful and failed manifestv3.Read calls,
	// labeled by outcome. A Load that fails before reaching Read, or in
	// the membership check after it, is not counted as a failure.
	LoadsTotal = archiveNamespace.NewLabeledCounter("loads_total", "number of Load calls", "outcome")

	// VerifyFailuresTotal counts MAC and signature verification
	// failures, labeled by the kind of check that failed.
	VerifyFailuresTotal = archiveNamespace.NewLabeledCounter("verify_failures_total", "number of integrity or signature verification failures", "check")
)

func init() {
	metrics.Register(archiveNamespace)
}

// OutcomeSuccess and OutcomeFailure are the label values SavesTotal and
// LoadsTotal accept for the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CheckMAC and CheckSignature are the label values VerifyFailuresTotal
// accepts for the "check" label.
const (
	CheckMAC       = "mac"
	CheckSignature = "signature"
)
