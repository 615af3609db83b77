// Package observe provides store.Observer implementations for Prometheus
// metrics and OpenTelemetry tracing.
//
//	reg := prometheus.NewRegistry()
//	s := store.New(creator,
//	    store.WithObserver(observe.NewMetrics(observe.WithRegistry(reg))),
//	    store.WithObserver(observe.NewTracing()),
//	)
package observe
