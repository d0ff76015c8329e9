package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/logger"
)

// StartMonitor launches the periodic health monitor. Probes run on
// ProbeInterval and immediately for freshly registered services.
func (r *Registry) StartMonitor(ctx context.Context) {
	if r.monitorCancel != nil {
		return
	}
	mctx, cancel := context.WithCancel(ctx)
	r.monitorCancel = cancel
	r.monitorDone = make(chan struct{})

	go r.monitorLoop(mctx)
	r.log.Info("health monitor started", logger.Fields("interval", r.cfg.ProbeInterval.String()))
}

// StopMonitor stops the health monitor and waits for it to exit.
func (r *Registry) StopMonitor() {
	if r.monitorCancel == nil {
		return
	}
	r.monitorCancel()
	<-r.monitorDone
	r.monitorCancel = nil
	r.log.Info("health monitor stopped")
}

func (r *Registry) monitorLoop(ctx context.Context) {
	defer close(r.monitorDone)

	ticker := time.NewTicker(r.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.probeNow:
			r.mu.RLock()
			rec, ok := r.records[id]
			r.mu.RUnlock()
			if ok {
				r.probe(ctx, rec)
			}
		case <-ticker.C:
			r.probeAll(ctx)
		}
	}
}

func (r *Registry) probeAll(ctx context.Context) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		r.probe(ctx, rec)
	}
}

// probe runs one health check through the service's probe breaker so a
// flapping service's probes back off along with its traffic.
func (r *Registry) probe(ctx context.Context, rec *record) {
	rec.mu.Lock()
	id := rec.desc.ID
	eng := rec.engine
	rec.mu.Unlock()

	cb := r.breakers.Get(ProbeBreakerPrefix + id)

	var reported Health
	err := cb.Execute(func() error {
		probeCtx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		defer cancel()

		h, err := eng.HealthCheck(probeCtx)
		if err != nil {
			return err
		}
		if h == HealthUnhealthy {
			return fmt.Errorf("service %s reports unhealthy", id)
		}
		reported = h
		return nil
	})

	if errors.Is(err, breaker.ErrCircuitOpen) {
		// Probes for this service are backing off; keep the last known
		// health rather than counting a probe we never sent.
		return
	}

	r.applyProbeResult(rec, reported, err)
}

// applyProbeResult moves a record through the health state machine:
// FailuresToUnhealthy consecutive failures demote to unhealthy, a single
// success lifts unhealthy to degraded, and SuccessesToHealthy consecutive
// successes promote degraded to healthy.
func (r *Registry) applyProbeResult(rec *record, reported Health, probeErr error) {
	rec.mu.Lock()
	before := rec.health

	if probeErr != nil {
		rec.consecFailures++
		rec.consecSuccesses = 0
		if rec.consecFailures >= r.cfg.FailuresToUnhealthy && rec.health != HealthUnhealthy {
			rec.health = HealthUnhealthy
		}
	} else {
		rec.consecFailures = 0
		rec.consecSuccesses++
		rec.lastSeen = time.Now()

		switch rec.health {
		case HealthUnknown:
			rec.health = HealthHealthy
		case HealthUnhealthy:
			rec.health = HealthDegraded
			rec.consecSuccesses = 1
		case HealthDegraded:
			if rec.consecSuccesses >= r.cfg.SuccessesToHealthy {
				rec.health = HealthHealthy
			}
		}

		// A backend reporting degraded stays in the secondary tier no
		// matter how many probes succeed.
		if reported == HealthDegraded {
			rec.health = HealthDegraded
			rec.consecSuccesses = 0
		}
	}

	after := rec.health
	desc := rec.desc
	rec.mu.Unlock()

	if before != after {
		r.invalidateFindFor(desc)
		r.log.Info("service health transition", logger.Fields(
			"service_id", desc.ID,
			"from", before.String(),
			"to", after.String(),
		))
	}
}
