// Package stats emits aggregate, operator-facing federation health
// metrics: how many known instances are live, blocked, or dead. It is
// the Prometheus-backed replacement for the periodic stats channel
// described in SPEC_FULL.md's supplemented-features section (grounded
// on crates/federate/src/stats.rs, which prints the same three counts
// to a log line on an interval instead).
package stats

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/log"
)

var instanceGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fedcore",
	Subsystem: "federation",
	Name:      "instances",
	Help:      "Known federation instances by liveness tag.",
}, []string{"liveness"})

// Collector periodically recomputes each known instance's liveness tag
// and republishes the aggregate counts, mirroring the send manager's
// own recheck-on-a-timer shape (§4.6).
type Collector struct {
	store     db.DB
	interval  time.Duration
	deadAfter time.Duration

	stopCh chan struct{}
}

func New(store db.DB, interval, deadAfter time.Duration) *Collector {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Collector{store: store, interval: interval, deadAfter: deadAfter, stopCh: make(chan struct{})}
}

// Start runs the collector loop until Stop is called or ctx is done.
// It performs one collection immediately so the gauges aren't empty
// between process start and the first tick.
func (c *Collector) Start(ctx context.Context) {
	c.collect(ctx)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) Stop() { close(c.stopCh) }

func (c *Collector) collect(ctx context.Context) {
	instances, err := c.store.ListInstances(ctx)
	if err != nil {
		log.WithContext(ctx).Errorf("stats: list instances: %v", err)
		return
	}

	counts := map[gtsmodel.LivenessTag]float64{
		gtsmodel.LivenessAllowed: 0,
		gtsmodel.LivenessBlocked: 0,
		gtsmodel.LivenessDead:    0,
	}

	for _, inst := range instances {
		tag := c.liveness(ctx, inst)
		counts[tag]++
	}

	for tag, n := range counts {
		instanceGauge.WithLabelValues(tag.String()).Set(n)
	}
}

// liveness derives an instance's reporting tag (§3): Blocked if the
// operator disallowed it, Dead if FederationQueueState.IsDead reports
// continuous failure for at least deadAfter, Allowed otherwise. This is
// the same IsDead check the send manager uses to decide whether to
// tear a worker down (internal/send.Manager.isDead) — the gauge and the
// worker teardown always agree on which instances are dead.
func (c *Collector) liveness(ctx context.Context, inst *gtsmodel.Instance) gtsmodel.LivenessTag {
	if !inst.Allowed {
		return gtsmodel.LivenessBlocked
	}

	state, err := c.store.GetFederationQueueState(ctx, inst.ID)
	if err != nil {
		log.WithContext(ctx).Warnf("stats: %s: load queue state: %v", inst.Domain, err)
		return gtsmodel.LivenessAllowed
	}

	if state.IsDead(c.deadAfter) {
		return gtsmodel.LivenessDead
	}
	return gtsmodel.LivenessAllowed
}
