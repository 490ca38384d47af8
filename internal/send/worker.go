package send

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtserror"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/httpsig"
	"github.com/federatedforum/fedcore/internal/log"
)

// errNotLocalSigner is returned when an activity log entry's claimed
// actor cannot sign outbound requests (not local, or no private key).
var errNotLocalSigner = errors.New("send: actor is not a local signer")

// emptyBatchPoll is how long an instance worker waits before re-reading
// the activity log after a batch came back empty.
const emptyBatchPoll = 5 * time.Second

// instanceWorker drains the activity log for one remote instance
// (§4.7): load cursor, batch-read, sign and POST each entry in order,
// advancing the cursor before the next attempt, retrying the current
// entry with backoff on failure.
type instanceWorker struct {
	cfg      Config
	store    db.DB
	client   Doer
	pending  *pendingCache
	dropped  *droppedSet
	instance *gtsmodel.Instance

	stopCh chan struct{}
}

func newInstanceWorker(cfg Config, store db.DB, client Doer, pending *pendingCache, dropped *droppedSet, instance *gtsmodel.Instance) *instanceWorker {
	return &instanceWorker{
		cfg:      cfg,
		store:    store,
		client:   client,
		pending:  pending,
		dropped:  dropped,
		instance: instance,
		stopCh:   make(chan struct{}),
	}
}

func (w *instanceWorker) stop() { close(w.stopCh) }

func (w *instanceWorker) run(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		state, err := w.store.GetFederationQueueState(ctx, w.instance.ID)
		if err != nil {
			log.WithContext(ctx).Errorf("send: %s: load queue state: %v", w.instance.Domain, err)
			if !w.sleep(emptyBatchPoll) {
				return
			}
			continue
		}

		if wait := w.backoffRemaining(state); wait > 0 {
			if !w.sleep(wait) {
				return
			}
			continue
		}

		batch, err := w.store.GetActivityLogEntriesAfter(ctx, state.Cursor(), w.instance.Domain, w.cfg.BatchSize)
		if err != nil {
			log.WithContext(ctx).Errorf("send: %s: read batch: %v", w.instance.Domain, err)
			if !w.sleep(emptyBatchPoll) {
				return
			}
			continue
		}

		if len(batch) == 0 {
			if !w.sleep(emptyBatchPoll) {
				return
			}
			continue
		}

		if !w.drain(ctx, state, batch) {
			return
		}
	}
}

// drain attempts delivery of every entry in batch, in order, stopping
// (without consuming the rest) on the first retryable failure so the
// same entry is retried next cycle. Returns false if the worker was
// asked to stop mid-batch.
func (w *instanceWorker) drain(ctx context.Context, state *gtsmodel.FederationQueueState, batch []*gtsmodel.ActivityLogEntry) bool {
	objectIDs := make(map[string]string, len(batch))
	for _, entry := range batch {
		oid := objectIDOf(entry.Data)
		objectIDs[entry.APID] = oid
		w.pending.Put(&pendingSend{
			InstanceID: w.instance.ID,
			APID:       entry.APID,
			ObjectID:   oid,
			Entry:      entry,
		})
	}

	for _, entry := range batch {
		select {
		case <-w.stopCh:
			return false
		case <-ctx.Done():
			return false
		default:
		}

		if w.instance.InboxURL == "" {
			// Nothing we can deliver to yet; re-read the instance row in
			// case the resolver has learned an inbox for it since, else
			// retry later without counting it as a delivery failure.
			inst, err := w.store.GetInstanceByDomain(ctx, w.instance.Domain)
			if err != nil || inst.InboxURL == "" {
				return w.sleep(emptyBatchPoll)
			}
			w.instance.InboxURL = inst.InboxURL
		}

		var outcome outcome
		if w.dropped.check(objectIDs[entry.APID]) {
			// Dropped by a concurrent Delete/Remove while this batch
			// sat queued (§4.4 DropQueued side effect).
			outcome = outcomeDrop
		} else {
			outcome = w.attempt(ctx, entry)
		}
		w.pending.Delete("APID", entry.APID)

		switch outcome {
		case outcomeSuccess:
			published := entry.PublishedAt
			id := entry.ID
			state.LastSuccessfulID = &id
			state.LastSuccessfulPublishedAt = &published
			state.FailCount = 0
			state.LastRetryAt = nil
			state.FirstFailureAt = nil
			if err := w.store.UpsertFederationQueueState(ctx, state); err != nil {
				log.WithContext(ctx).Errorf("send: %s: persist cursor: %v", w.instance.Domain, err)
			}

		case outcomeDrop:
			id := entry.ID
			state.LastSuccessfulID = &id
			state.FailCount = 0
			state.LastRetryAt = nil
			state.FirstFailureAt = nil
			if err := w.store.UpsertFederationQueueState(ctx, state); err != nil {
				log.WithContext(ctx).Errorf("send: %s: persist cursor: %v", w.instance.Domain, err)
			}

		case outcomeRetry:
			now := time.Now().UTC()
			state.FailCount++
			state.LastRetryAt = &now
			if state.FirstFailureAt == nil {
				state.FirstFailureAt = &now
			}
			if err := w.store.UpsertFederationQueueState(ctx, state); err != nil {
				log.WithContext(ctx).Errorf("send: %s: persist failure: %v", w.instance.Domain, err)
			}
			return true // retry this same entry next loop iteration
		}
	}
	return true
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeDrop
	outcomeRetry
)

// attempt signs and POSTs a single activity-log entry to the
// instance's shared inbox (§4.7 steps 3-6).
func (w *instanceWorker) attempt(ctx context.Context, entry *gtsmodel.ActivityLogEntry) outcome {
	act, err := ap.Parse(entry.Data)
	if err != nil {
		log.WithContext(ctx).Warnf("send: %s: entry %d undecodable, dropping: %v", w.instance.Domain, entry.ID, err)
		return outcomeDrop
	}

	signer, err := w.signerFor(ctx, act.Actor)
	if err != nil {
		log.WithContext(ctx).Warnf("send: %s: entry %d has no signable local actor, dropping: %v", w.instance.Domain, entry.ID, err)
		return outcomeDrop
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.instance.InboxURL, bytes.NewReader(entry.Data))
	if err != nil {
		log.WithContext(ctx).Warnf("send: %s: entry %d: build request: %v", w.instance.Domain, entry.ID, err)
		return outcomeDrop
	}
	req.Header.Set("Content-Type", `application/activity+json`)
	req.ContentLength = int64(len(entry.Data))

	if err := signer.Sign(req, entry.Data); err != nil {
		log.WithContext(ctx).Warnf("send: %s: entry %d: sign request: %v", w.instance.Domain, entry.ID, err)
		return outcomeRetry
	}

	rsp, err := w.client.Do(req)
	if err != nil {
		log.WithContext(ctx).Warnf("send: %s: entry %d: request failed: %v", w.instance.Domain, entry.ID, err)
		return outcomeRetry
	}
	defer rsp.Body.Close()

	if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
		return outcomeSuccess
	}
	if gtserror.IsRetryableUpstream(rsp.StatusCode) {
		return outcomeRetry
	}
	log.WithContext(ctx).Warnf("send: %s: entry %d rejected with status %d, dropping", w.instance.Domain, entry.ID, rsp.StatusCode)
	return outcomeDrop
}

// signerFor resolves the local actor that authored an outbound
// activity and builds its HTTP Signature signer. Only local actors
// with a private key can originate outbound sends.
func (w *instanceWorker) signerFor(ctx context.Context, actorURI string) (*httpsig.Signer, error) {
	actor, err := w.store.GetActorByURI(ctx, actorURI)
	if err != nil {
		return nil, err
	}
	if !actor.Local || actor.PrivateKeyPEM == "" {
		return nil, errNotLocalSigner
	}
	return Signer(actor)
}

// objectIDOf extracts the object URI a queued activity targets, for
// DropQueued matching. Undo/Announce wrap another activity; the object
// that matters for drop-matching is the wrapped activity's object, not
// the wrapper's own (an Undo has no ObjectID of its own — see
// ap.Activity.Inner doc comment).
func objectIDOf(raw []byte) string {
	act, err := ap.Parse(raw)
	if err != nil {
		return ""
	}
	if act.Inner != nil {
		if inner := objectIDFromActivity(act.Inner); inner != "" {
			return inner
		}
	}
	return act.ObjectID
}

func objectIDFromActivity(act *ap.Activity) string {
	if act.ObjectID != "" {
		return act.ObjectID
	}
	return act.ID
}

// backoffRemaining returns how long the worker should still wait
// before its next attempt, per the exponential-backoff-with-jitter
// curve in §4.7 step 6 (base, doubling, capped, ±25% jitter).
func (w *instanceWorker) backoffRemaining(state *gtsmodel.FederationQueueState) time.Duration {
	if state.FailCount == 0 || state.LastRetryAt == nil {
		return 0
	}

	base := w.cfg.BackoffBase
	if base <= 0 {
		base = 60 * time.Second
	}
	capDur := w.cfg.BackoffCap
	if capDur <= 0 {
		capDur = time.Hour
	}

	backoff := base
	for i := int32(1); i < state.FailCount && backoff < capDur; i++ {
		backoff *= 2
	}
	if backoff > capDur {
		backoff = capDur
	}

	jitter := 1 + (rand.Float64()*0.5 - 0.25) // +/-25%
	backoff = time.Duration(float64(backoff) * jitter)

	elapsed := time.Since(*state.LastRetryAt)
	if elapsed >= backoff {
		return 0
	}
	return backoff - elapsed
}

// sleep waits d, returning false if the worker was stopped first.
func (w *instanceWorker) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.stopCh:
		return false
	case <-t.C:
		return true
	}
}
