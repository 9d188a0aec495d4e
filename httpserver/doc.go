/*
Package httpserver runs the invoice financing API.

Server wraps the protocol routes with access logging
(flashbots/go-utils httplogger) and adds operational endpoints:

  - GET /livez - liveness probe
  - GET /readyz - readiness probe, 503 while draining
  - GET /drain - mark the server not ready ahead of a shutdown
  - GET /undrain - mark the server ready again
  - /debug/pprof - profiling, when EnablePprof is set

Prometheus metrics are served by a separate metrics.MetricsServer on
MetricsAddr. RunInBackground starts both listeners and Shutdown stops them
within GracefulShutdownDuration.
*/
package httpserver
