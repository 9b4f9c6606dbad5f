/*
Package monitoring exposes Prometheus metrics for the HTTP API, the
coordination service client, the catalog mirror and the renderer.

Every Record method is safe to call on a nil *Metrics, so components can be
built without metrics in tests.

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(reg, reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
