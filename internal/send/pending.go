package send

import (
	"codeberg.org/gruf/go-structr"

	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// pendingCache is the concrete structr-backed index type shared by the
// manager and every instance worker.
type pendingCache = structr.Cache[*pendingSend]

// pendingSend is one batch-read activity log entry sitting in a
// worker's in-memory queue between read and delivery attempt. Indexing
// it by ObjectID lets a later Delete/Remove drop an outbound copy
// that's no longer worth delivering, mirroring the teacher's
// `Queue.Delete("ObjectID", ...)` idiom in its delivery worker
// (internal/processing/workers/fromfediapi.go). The actual "is it
// still queued" check a worker performs before attempting delivery
// goes through a separate droppedSet rather than a structr read-back,
// since only insert (Put) and evict (Delete) are grounded usages.
type pendingSend struct {
	InstanceID string
	APID       string
	ObjectID   string
	Entry      *gtsmodel.ActivityLogEntry
}

// newPendingQueue builds the shared in-memory index of in-flight
// outbound sends. This sits in front of the durable activity_log/
// federation_queue_state cursor, not in place of it: losing this
// index (process restart) only means a handful of already-superseded
// activities get attempted once more before 404/410ing out naturally.
func newPendingQueue() *pendingCache {
	c := new(structr.Cache[*pendingSend])
	c.Init(structr.CacheConfig[*pendingSend]{
		Indices: []structr.IndexConfig{
			{Fields: "InstanceID", Multiple: true},
			{Fields: "APID"},
			{Fields: "ObjectID", Multiple: true},
		},
		MaxSize: 4096,
		Copy: func(p *pendingSend) *pendingSend {
			cp := *p
			return &cp
		},
	})
	return c
}
