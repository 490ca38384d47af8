package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// fakeFederationStore answers GetFederationQueueState from a fixed map
// and leaves every other db.DB method unimplemented (embedding the nil
// interface) since liveness never touches them.
type fakeFederationStore struct {
	db.DB
	states map[string]*gtsmodel.FederationQueueState
}

func (f *fakeFederationStore) GetFederationQueueState(ctx context.Context, instanceID string) (*gtsmodel.FederationQueueState, error) {
	state, ok := f.states[instanceID]
	if !ok {
		return nil, errors.New("no queue state")
	}
	return state, nil
}

func TestLivenessBlockedWinsOverFailureState(t *testing.T) {
	longAgo := time.Now().UTC().Add(-100 * time.Hour)
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{
		"inst-1": {FirstFailureAt: &longAgo},
	}}
	c := New(store, time.Minute, 72*time.Hour)

	inst := &gtsmodel.Instance{ID: "inst-1", Domain: "blocked.example", Allowed: false}
	assert.Equal(t, gtsmodel.LivenessBlocked, c.liveness(context.Background(), inst))
}

func TestLivenessAllowedWithNoFailureHistory(t *testing.T) {
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{
		"inst-1": {},
	}}
	c := New(store, time.Minute, 72*time.Hour)

	inst := &gtsmodel.Instance{ID: "inst-1", Domain: "healthy.example", Allowed: true}
	assert.Equal(t, gtsmodel.LivenessAllowed, c.liveness(context.Background(), inst))
}

func TestLivenessAllowedWhileWithinDeadThreshold(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour)
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{
		"inst-1": {FirstFailureAt: &recent},
	}}
	c := New(store, time.Minute, 72*time.Hour)

	inst := &gtsmodel.Instance{ID: "inst-1", Domain: "failing.example", Allowed: true}
	assert.Equal(t, gtsmodel.LivenessAllowed, c.liveness(context.Background(), inst))
}

func TestLivenessDeadPastThreshold(t *testing.T) {
	longAgo := time.Now().UTC().Add(-100 * time.Hour)
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{
		"inst-1": {FirstFailureAt: &longAgo},
	}}
	c := New(store, time.Minute, 72*time.Hour)

	inst := &gtsmodel.Instance{ID: "inst-1", Domain: "dead.example", Allowed: true}
	assert.Equal(t, gtsmodel.LivenessDead, c.liveness(context.Background(), inst))
}

func TestLivenessAllowedWhenQueueStateMissing(t *testing.T) {
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{}}
	c := New(store, time.Minute, 72*time.Hour)

	inst := &gtsmodel.Instance{ID: "unknown-inst", Domain: "new.example", Allowed: true}
	assert.Equal(t, gtsmodel.LivenessAllowed, c.liveness(context.Background(), inst))
}

func TestLivenessAllowedWhenDeadThresholdDisabled(t *testing.T) {
	longAgo := time.Now().UTC().Add(-1000 * time.Hour)
	store := &fakeFederationStore{states: map[string]*gtsmodel.FederationQueueState{
		"inst-1": {FirstFailureAt: &longAgo},
	}}
	c := New(store, time.Minute, 0)

	inst := &gtsmodel.Instance{ID: "inst-1", Domain: "unbounded.example", Allowed: true}
	assert.Equal(t, gtsmodel.LivenessAllowed, c.liveness(context.Background(), inst))
}
