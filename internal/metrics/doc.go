// Package metrics records run, target and transfer metrics.
//
// Components receive a Recorder and default to NoopRecorder, so nothing needs
// a nil check:
//
//	worker := dispatch.NewWorker(dest, transfer, metrics.NoopRecorder{})
//
// The daemon swaps in a PrometheusRecorder and serves its registry on
// /metrics through HTTPHandler. One-shot runs keep the noop recorder.
package metrics
