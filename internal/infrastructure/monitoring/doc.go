/*
Package monitoring provides Prometheus metrics for the gateway.

It tracks classification verdicts, enforcement passes, suppressed controls,
intercepted clicks, upstream traffic, and gateway request latency. The
collector owns its own registry so multiple instances can coexist in tests.

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

Metrics implements both the wire-path verdict reporter and the enforcer
reporter, so a single collector can be handed to both layers.
*/
package monitoring
