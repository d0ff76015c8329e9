// Package bootstrap assembles a gatekit process from its root configuration.
//
// New wires the circuit breaker manager, service registry, gateway, shared
// Redis cache, telemetry exporters and HTTP server, and registers each as a
// lifecycle component. Run starts everything, blocks on SIGINT/SIGTERM and
// shuts down gracefully in reverse order.
//
//	var cfg config.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.New(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.Run(context.Background())
//
// Backends join the dispatch pool through app.RegisterService, typically
// from an OnReady hook.
package bootstrap
