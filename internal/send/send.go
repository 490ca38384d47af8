// Package send implements the outbound delivery side of the
// federation core (§4.6, §4.7): a manager that shards ownership of
// known remote instances across a fixed process_count/process_index,
// and spawns one long-lived worker per owned, allowed instance to
// drain its activity-log backlog with signed HTTP Signature POSTs and
// exponential backoff.
package send

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/httpsig"
	"github.com/federatedforum/fedcore/internal/log"
)

// Doer is the HTTP surface a worker needs to deliver a signed POST.
// Satisfied by *internal/httpclient.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls sharding, batching, and backoff; values come from
// internal/config.
type Config struct {
	ProcessCount           int
	ProcessIndex           int
	RecheckInterval        time.Duration
	BatchSize              int
	PerInstanceConcurrency int
	BackoffBase            time.Duration
	BackoffCap             time.Duration
	DeadThreshold          time.Duration
}

// Manager owns the set of running per-instance send workers and keeps
// it in sync with the known-instance table on a timer (§4.6).
type Manager struct {
	cfg     Config
	store   db.DB
	client  Doer
	host    string
	pending *pendingCache
	dropped *droppedSet

	mu      sync.Mutex
	workers map[string]*instanceWorker // keyed by Instance.ID

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Manager. Call Start to begin syncing and draining.
func New(cfg Config, store db.DB, client Doer, host string) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		client:  client,
		host:    host,
		pending: newPendingQueue(),
		dropped: newDroppedSet(),
		workers: make(map[string]*instanceWorker),
		stopCh:  make(chan struct{}),
	}
}

// Start performs an immediate sync and launches the periodic recheck
// loop (§4.6 "periodically rechecking known instances").
func (m *Manager) Start(ctx context.Context) error {
	m.syncWorkers(ctx)

	interval := m.cfg.RecheckInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	m.ticker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.recheckLoop(ctx)
	return nil
}

// Stop halts the recheck loop and every running worker, waiting for
// them to finish their current delivery attempt.
func (m *Manager) Stop() error {
	close(m.stopCh)
	if m.ticker != nil {
		m.ticker.Stop()
	}

	m.mu.Lock()
	for id, w := range m.workers {
		w.stop()
		delete(m.workers, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Manager) recheckLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.ticker.C:
			m.syncWorkers(ctx)
		}
	}
}

// syncWorkers lists every known instance, starts a worker for each one
// this process owns, is allowed to federate, and is not Dead, and tears
// down workers for instances that became blocked, Dead, or reassigned
// since the last sync (§4.6 "stop workers for instances that have
// become blocked or dead", §4.7 "the instance transitions to Dead; the
// manager then tears the worker down").
func (m *Manager) syncWorkers(ctx context.Context) {
	instances, err := m.store.ListInstances(ctx)
	if err != nil {
		log.WithContext(ctx).Errorf("send: list instances: %v", err)
		return
	}

	owned := make(map[string]bool, len(instances))

	m.mu.Lock()
	for _, inst := range instances {
		if inst.Domain == m.host {
			continue
		}
		if !m.owns(inst.ID) || !inst.Allowed {
			continue
		}
		if m.isDead(ctx, inst) {
			continue
		}
		owned[inst.ID] = true
		if _, running := m.workers[inst.ID]; running {
			continue
		}
		w := newInstanceWorker(m.cfg, m.store, m.client, m.pending, m.dropped, inst)
		m.workers[inst.ID] = w
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(ctx)
		}()
		log.Infof("send: started worker for instance %s", inst.Domain)
	}

	for id, w := range m.workers {
		if !owned[id] {
			w.stop()
			delete(m.workers, id)
			log.Infof("send: stopped worker for instance %s (blocked, dead, or reassigned)", w.instance.Domain)
		}
	}
	m.mu.Unlock()
}

// isDead reports whether inst has been failing continuously for at
// least cfg.DeadThreshold (§3 Dead liveness tag). A missing queue state
// (never attempted, or store error) is never Dead.
func (m *Manager) isDead(ctx context.Context, inst *gtsmodel.Instance) bool {
	if m.cfg.DeadThreshold <= 0 {
		return false
	}
	state, err := m.store.GetFederationQueueState(ctx, inst.ID)
	if err != nil {
		return false
	}
	return state.IsDead(m.cfg.DeadThreshold)
}

// owns reports whether instanceID falls in this process's shard, using
// a stable hash so every process in a process_count fleet agrees on
// ownership without coordination (§4.6 "sharded by process_count/
// process_index").
func (m *Manager) owns(instanceID string) bool {
	if m.cfg.ProcessCount <= 1 {
		return true
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(instanceID))
	shard := int(h.Sum32() % uint32(m.cfg.ProcessCount))
	return shard == (m.cfg.ProcessIndex-1+m.cfg.ProcessCount)%m.cfg.ProcessCount
}

// DropQueued evicts any not-yet-delivered activity whose object is
// objectURI from every worker's in-memory queue (§4.4 side effect of
// Delete/Remove: don't bother delivering a copy of something that's
// already gone by the time its turn comes up).
func (m *Manager) DropQueued(objectURI string) {
	m.dropped.mark(objectURI)
	m.pending.Delete("ObjectID", objectURI)
}

// Signer resolves a local actor's HTTP Signature signer by ap_id, so
// a worker can sign on behalf of whichever local actor authored a
// given queued activity.
func Signer(actor *gtsmodel.Actor) (*httpsig.Signer, error) {
	return httpsig.NewSigner(actor.URI+"#main-key", actor.PrivateKeyPEM)
}
