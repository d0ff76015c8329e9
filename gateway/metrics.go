package gateway

import (
	"sync/atomic"

	apperrors "github.com/analyticore/gatekit/errors"
)

// Metrics is a point-in-time snapshot of gateway activity.
type Metrics struct {
	Accepted   uint64 `json:"accepted"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Rejected   uint64 `json:"rejected"`
	Expired    uint64 `json:"expired"`
	CacheHits  uint64 `json:"cache_hits"`
	Retries    uint64 `json:"retries"`
	Fallbacks  uint64 `json:"fallbacks"`
	QueueDepth int    `json:"queue_depth"`
	InFlight   int64  `json:"in_flight"`

	ByPriority map[string]uint64 `json:"by_priority"`
	ByCategory map[string]uint64 `json:"by_category"`
}

const (
	priorityTiers     = int(PriorityCritical) + 1
	failureCategories = int(apperrors.CategoryValidation) + 1
)

// counters aggregates gateway activity with atomics so the hot path
// never takes a lock for accounting.
type counters struct {
	accepted  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	expired   atomic.Uint64
	cacheHits atomic.Uint64
	retries   atomic.Uint64
	fallbacks atomic.Uint64
	inFlight  atomic.Int64

	byPriority [priorityTiers]atomic.Uint64
	byCategory [failureCategories]atomic.Uint64
}

func (c *counters) priority(p Priority) *atomic.Uint64 {
	if p < 0 || int(p) >= priorityTiers {
		p = PriorityNormal
	}
	return &c.byPriority[p]
}

func (c *counters) category(cat apperrors.Category) *atomic.Uint64 {
	if cat < 0 || int(cat) >= failureCategories {
		cat = apperrors.CategoryUnknown
	}
	return &c.byCategory[cat]
}

func (c *counters) snapshot(queueDepth int) Metrics {
	m := Metrics{
		Accepted:   c.accepted.Load(),
		Completed:  c.completed.Load(),
		Failed:     c.failed.Load(),
		Rejected:   c.rejected.Load(),
		Expired:    c.expired.Load(),
		CacheHits:  c.cacheHits.Load(),
		Retries:    c.retries.Load(),
		Fallbacks:  c.fallbacks.Load(),
		QueueDepth: queueDepth,
		InFlight:   c.inFlight.Load(),
		ByPriority: make(map[string]uint64, priorityTiers),
		ByCategory: make(map[string]uint64, failureCategories),
	}
	for i := 0; i < priorityTiers; i++ {
		if v := c.byPriority[i].Load(); v > 0 {
			m.ByPriority[Priority(i).String()] = v
		}
	}
	for i := 0; i < failureCategories; i++ {
		if v := c.byCategory[i].Load(); v > 0 {
			m.ByCategory[apperrors.Category(i).String()] = v
		}
	}
	return m
}
