package send

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

func newWorkerForBackoffTest(base, cap time.Duration) *instanceWorker {
	return &instanceWorker{
		cfg: Config{BackoffBase: base, BackoffCap: cap},
	}
}

func TestBackoffRemainingZeroWithoutFailures(t *testing.T) {
	w := newWorkerForBackoffTest(time.Minute, time.Hour)
	state := &gtsmodel.FederationQueueState{}
	assert.Equal(t, time.Duration(0), w.backoffRemaining(state))
}

func TestBackoffRemainingWaitsAfterFreshFailure(t *testing.T) {
	w := newWorkerForBackoffTest(time.Minute, time.Hour)
	now := time.Now().UTC()
	state := &gtsmodel.FederationQueueState{FailCount: 1, LastRetryAt: &now}

	remaining := w.backoffRemaining(state)
	// base is 60s +/-25% jitter, just retried, so it should still have
	// most of the window left.
	assert.Greater(t, remaining, 30*time.Second)
	assert.LessOrEqual(t, remaining, 75*time.Second)
}

func TestBackoffRemainingElapsesToZero(t *testing.T) {
	w := newWorkerForBackoffTest(time.Minute, time.Hour)
	past := time.Now().UTC().Add(-2 * time.Hour)
	state := &gtsmodel.FederationQueueState{FailCount: 1, LastRetryAt: &past}

	assert.Equal(t, time.Duration(0), w.backoffRemaining(state))
}

func TestBackoffRemainingCapsAtBackoffCap(t *testing.T) {
	w := newWorkerForBackoffTest(time.Minute, 5*time.Minute)
	now := time.Now().UTC()
	// 10 failures would double a 1-minute base past any sane bound;
	// the cap must win regardless of FailCount.
	state := &gtsmodel.FederationQueueState{FailCount: 10, LastRetryAt: &now}

	remaining := w.backoffRemaining(state)
	require.LessOrEqual(t, remaining, 5*time.Minute+5*time.Minute/4) // cap + 25% jitter headroom
}

func TestObjectIDOfPlainActivity(t *testing.T) {
	raw := []byte(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://remote.example/activities/create/1",
		"type": "Create",
		"actor": "https://remote.example/u/alice",
		"object": "https://remote.example/objects/1"
	}`)
	assert.Equal(t, "https://remote.example/objects/1", objectIDOf(raw))
}

func TestObjectIDOfUndoPrefersInnerObject(t *testing.T) {
	raw := []byte(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://remote.example/activities/undo/1",
		"type": "Undo",
		"actor": "https://remote.example/u/alice",
		"object": {
			"id": "https://remote.example/activities/like/1",
			"type": "Like",
			"actor": "https://remote.example/u/alice",
			"object": "https://remote.example/objects/1"
		}
	}`)
	assert.Equal(t, "https://remote.example/objects/1", objectIDOf(raw))
}

func TestObjectIDOfUndecodableReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", objectIDOf([]byte("not json")))
}
