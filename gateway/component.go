package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/analyticore/gatekit/component"
)

// Pool adapts the gateway to the component lifecycle so the bootstrap
// registry starts and stops it in order with everything else.
type Pool struct {
	g *Gateway
}

// NewPool wraps g for lifecycle management.
func NewPool(g *Gateway) *Pool { return &Pool{g: g} }

func (p *Pool) Name() string { return "gateway" }

func (p *Pool) Start(ctx context.Context) error {
	return p.g.Start(ctx)
}

func (p *Pool) Stop(ctx context.Context) error {
	grace := p.g.config.ShutdownGrace
	if dl, ok := ctx.Deadline(); ok {
		if remain := time.Until(dl); remain < grace {
			grace = remain
		}
	}
	p.g.Stop(grace)
	return nil
}

func (p *Pool) Health(ctx context.Context) component.Health {
	p.g.mu.Lock()
	running := p.g.started && !p.g.stopped
	p.g.mu.Unlock()
	if !running {
		return component.Health{
			Name:    p.Name(),
			Status:  component.StatusUnhealthy,
			Message: "worker pool not running",
		}
	}
	depth := p.g.queue.depth()
	if capacity := p.g.config.QueueCapacity; capacity > 0 && depth >= capacity {
		return component.Health{
			Name:    p.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("queue saturated at %d", depth),
		}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}
