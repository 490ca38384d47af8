// Package inbox implements the shared inbox HTTP endpoint (§4.3):
// bounded-size reads, HTTP Signature verification, dedup against the
// activity log, and a per-source-instance ordered receive queue
// drained by a fixed worker pool.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"codeberg.org/gruf/go-bytesize"
	"codeberg.org/gruf/go-mutexes"

	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/concurrency"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/httpsig"
	"github.com/federatedforum/fedcore/internal/log"
)

// Dispatcher hands a fully-resolved, in-order activity off to the
// processing layer (internal/dispatch). sourceInstance is the domain
// the activity arrived from, used by the dispatcher for authority
// checks.
type Dispatcher func(ctx context.Context, sourceInstance string, activity *ap.Activity) error

// KeyResolver resolves an HTTP Signature keyId to the signing actor's
// public key PEM and owning actor URI, dereferencing the actor if
// necessary. Implemented by internal/dereferencing.
type KeyResolver func(ctx context.Context, keyID string) (pubKeyPEM, ownerActorURI string, err error)

// Config controls queue sizing and timing; values come from
// internal/config.
type Config struct {
	ReceiveDelay      time.Duration
	HighWaterMark     int
	WorkerCount       int
	MaxBodyBytes      int64
	ClockSkew         time.Duration
	WorkerExitTimeout time.Duration
}

// Manager owns the per-instance receive queues and the worker pool
// that drains them.
type Manager struct {
	cfg        Config
	store      db.DB
	resolveKey KeyResolver
	dispatch   Dispatcher

	// locks serializes push/pop access per source instance (§4.3: each
	// instance's queue is its own ordering domain, so one noisy source
	// never blocks another's dispatch). qmu guards only the queues map's
	// own structure (insert/delete of an entry), which is orthogonal to
	// locking a given source's heap.
	locks  mutexes.MutexMap
	qmu    sync.Mutex
	queues map[string]*instanceQueue

	workers *concurrency.WorkerPool[dispatchMsg]
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type dispatchMsg struct {
	sourceInstance string
	activity       *ap.Activity
}

// New constructs a Manager. Call Start before serving traffic, and
// Stop on shutdown to drain in-flight work within WorkerExitTimeout.
func New(cfg Config, store db.DB, resolveKey KeyResolver, dispatch Dispatcher) *Manager {
	workerCount := cfg.WorkerCount
	if workerCount < 1 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	workers := concurrency.NewWorkerPool[dispatchMsg](workerCount, 100)
	m := &Manager{
		cfg:        cfg,
		store:      store,
		resolveKey: resolveKey,
		dispatch:   dispatch,
		locks:      mutexes.NewMap(),
		queues:     make(map[string]*instanceQueue),
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
	workers.SetProcessor(m.process)
	log.Infof("inbox: accepting requests up to %s, high-water mark %d per source instance",
		bytesize.Size(cfg.MaxBodyBytes), cfg.HighWaterMark)
	return m
}

// Start launches the worker pool and the ordered-delivery sweep loop.
func (m *Manager) Start() error {
	if err := m.workers.Start(); err != nil {
		return err
	}
	tickInterval := m.cfg.ReceiveDelay / 5
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	m.ticker = time.NewTicker(tickInterval)
	m.wg.Add(1)
	go m.sweepLoop()
	return nil
}

// Stop halts the sweep loop and the worker pool, waiting up to
// WorkerExitTimeout for the sweep goroutine to exit before giving up.
func (m *Manager) Stop() error {
	close(m.stopCh)
	if m.ticker != nil {
		m.ticker.Stop()
	}

	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()

	timeout := m.cfg.WorkerExitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnf("inbox: sweep loop did not exit within %s", timeout)
	}

	return m.workers.Stop()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-m.ticker.C:
			m.sweep(now)
		}
	}
}

// sweep visits every source-instance queue in random order (fairness:
// no single high-volume instance can starve others of dispatch slots)
// and enqueues every item that has cleared its receive delay.
func (m *Manager) sweep(now time.Time) {
	m.qmu.Lock()
	instances := make([]string, 0, len(m.queues))
	for inst := range m.queues {
		instances = append(instances, inst)
	}
	m.qmu.Unlock()

	rand.Shuffle(len(instances), func(i, j int) { instances[i], instances[j] = instances[j], instances[i] })

	var toDispatch []dispatchMsg
	for _, inst := range instances {
		unlock := m.locks.Lock(inst)

		m.qmu.Lock()
		q, ok := m.queues[inst]
		m.qmu.Unlock()
		if !ok {
			// Already drained and dropped by a concurrent sweep/enqueue
			// race; nothing left to pop for this source.
			unlock()
			continue
		}

		for _, it := range q.popReady(now, m.cfg.ReceiveDelay) {
			toDispatch = append(toDispatch, dispatchMsg{sourceInstance: inst, activity: it.activity})
		}
		if q.len() == 0 {
			m.qmu.Lock()
			delete(m.queues, inst)
			m.qmu.Unlock()
		}
		unlock()
	}

	for _, msg := range toDispatch {
		m.workers.Queue(msg)
	}
}

func (m *Manager) process(ctx context.Context, msg dispatchMsg) error {
	if err := m.dispatch(ctx, msg.sourceInstance, msg.activity); err != nil {
		log.WithContext(ctx).Errorf("inbox: dispatch of %s from %s failed: %v", msg.activity.ID, msg.sourceInstance, err)
		return err
	}
	return nil
}

// enqueue pushes a parsed activity onto its source instance's ordered
// queue, creating the queue on first use. Locked per source instance
// (§4.3) so a burst from one instance never holds up another's
// enqueue or the sweep loop's pop from an unrelated queue.
func (m *Manager) enqueue(sourceInstance string, act *ap.Activity) error {
	unlock := m.locks.Lock(sourceInstance)
	defer unlock()

	m.qmu.Lock()
	q, ok := m.queues[sourceInstance]
	if !ok {
		q = newInstanceQueue(m.cfg.HighWaterMark)
		m.queues[sourceInstance] = q
	}
	m.qmu.Unlock()

	it := &item{activity: act, queuedAt: time.Now()}
	if act.Published != nil {
		it.published = *act.Published
	}
	return q.tryPush(it)
}

// ServeHTTP is the shared-inbox POST handler (§4.3 steps 1-7).
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, m.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}

	ownerURI, err := httpsig.Verify(ctx, r, body, m.cfg.ClockSkew, httpsig.KeyOwnerResolver(m.resolveKey))
	if err != nil {
		log.WithContext(ctx).Warnf("inbox: signature verification failed: %v", err)
		http.Error(w, "invalid http signature", http.StatusUnauthorized)
		return
	}

	act, err := ap.Parse(body)
	if err != nil {
		if errors.Is(err, ap.ErrUnknownType) || errors.Is(err, ap.ErrUnknownVariant) || errors.Is(err, ap.ErrAnnounceNotAllowed) ||
			errors.Is(err, ap.ErrMalformedObject) || errors.Is(err, ap.ErrMissingID) {
			http.Error(w, "activity could not be decoded", http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if act.Actor != "" && act.Actor != ownerURI {
		// The signing key's owner must match the activity's claimed
		// actor (§4.8): otherwise any signed actor could forge
		// activities on another actor's behalf.
		http.Error(w, "signing actor does not match activity actor", http.StatusUnauthorized)
		return
	}

	if _, err := m.store.GetActivityLogEntryByAPID(ctx, act.ID); err == nil {
		// Already seen: ack without re-processing (§4.3 dedup).
		w.WriteHeader(http.StatusAccepted)
		return
	} else if !errors.Is(err, db.ErrNoEntries) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sourceInstance, err := instanceOf(act.Actor)
	if err != nil {
		http.Error(w, "activity actor is not a valid URL", http.StatusBadRequest)
		return
	}

	if err := m.enqueue(sourceInstance, act); err != nil {
		log.WithContext(ctx).Warnf("inbox: source instance %s at high-water mark, rejecting", sourceInstance)
		http.Error(w, "too many in-flight activities from your instance", http.StatusServiceUnavailable)
		return
	}

	entry := &gtsmodel.ActivityLogEntry{APID: act.ID, Data: body, PublishedAt: time.Now().UTC()}
	if act.Published != nil {
		entry.PublishedAt = *act.Published
	}
	if err := m.store.PutActivityLogEntry(ctx, entry); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		log.WithContext(ctx).Warnf("inbox: record %s in activity log: %v", act.ID, err)
	}

	w.WriteHeader(http.StatusAccepted)
}

func instanceOf(actorURI string) (string, error) {
	u, err := url.Parse(actorURI)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("inbox: %w", err)
	}
	return u.Hostname(), nil
}
