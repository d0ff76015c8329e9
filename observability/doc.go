// Package observability initializes OpenTelemetry metrics and tracing
// and bridges gatekit's internal counters into exported instruments.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg, log)
//	defer mp.Shutdown(ctx)
//
//	col, err := observability.NewCollector(observability.Meter("gatekit"), gw, reg, breakers)
//	defer col.Close()
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, tcfg, log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "gateway.dispatch")
//	defer span.End()
package observability
