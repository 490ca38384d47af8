package db

import (
	"context"
	"errors"

	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// Error is returned by every store method; callers check it with
// errors.Is against the sentinels below rather than switching on a
// driver-specific type.
type Error = error

var (
	ErrNoEntries     Error = errors.New("db: no entries")
	ErrAlreadyExists Error = errors.New("db: already exists")
)

// Where is a generic equality/inequality filter consumed by
// selectWhere/updateWhere/deleteWhere in bundb/util.go.
type Where struct {
	Key   string
	Value any
	Not   bool
}

// Actors covers the actor table: local and cached-remote Person/Group/
// Application records (gtsmodel.Actor).
type Actors interface {
	GetActorByID(ctx context.Context, id string) (*gtsmodel.Actor, error)
	GetActorByURI(ctx context.Context, uri string) (*gtsmodel.Actor, error)
	GetActorByUsernameDomain(ctx context.Context, username, domain string) (*gtsmodel.Actor, error)
	PutActor(ctx context.Context, actor *gtsmodel.Actor) error
	UpdateActor(ctx context.Context, actor *gtsmodel.Actor, columns ...string) error
	DeleteActorByID(ctx context.Context, id string) error
}

// Content covers posts, comments and private messages.
type Content interface {
	GetPostByID(ctx context.Context, id string) (*gtsmodel.Post, error)
	GetPostByURI(ctx context.Context, uri string) (*gtsmodel.Post, error)
	PutPost(ctx context.Context, post *gtsmodel.Post) error
	UpdatePost(ctx context.Context, post *gtsmodel.Post, columns ...string) error
	DeletePostByID(ctx context.Context, id string) error

	GetCommentByID(ctx context.Context, id string) (*gtsmodel.Comment, error)
	GetCommentByURI(ctx context.Context, uri string) (*gtsmodel.Comment, error)
	PutComment(ctx context.Context, comment *gtsmodel.Comment) error
	UpdateComment(ctx context.Context, comment *gtsmodel.Comment, columns ...string) error
	DeleteCommentByID(ctx context.Context, id string) error

	GetPrivateMessageByURI(ctx context.Context, uri string) (*gtsmodel.PrivateMessage, error)
	PutPrivateMessage(ctx context.Context, pm *gtsmodel.PrivateMessage) error
	DeletePrivateMessageByID(ctx context.Context, id string) error

	PutVote(ctx context.Context, vote *gtsmodel.Vote) error
	GetVote(ctx context.Context, voterID, targetID string) (*gtsmodel.Vote, error)
	DeleteVote(ctx context.Context, voterID, targetID string) error
}

// Relationships covers follows, follow requests, blocks and community
// moderator grants.
type Relationships interface {
	GetFollow(ctx context.Context, sourceActorID, targetActorID string) (*gtsmodel.Follow, error)
	GetFollowByURI(ctx context.Context, uri string) (*gtsmodel.Follow, error)
	PutFollow(ctx context.Context, follow *gtsmodel.Follow) error
	DeleteFollowByURI(ctx context.Context, uri string) error
	DeleteFollow(ctx context.Context, sourceActorID, targetActorID string) error
	IsFollowing(ctx context.Context, sourceActorID, targetActorID string) (bool, error)
	CountFollowers(ctx context.Context, targetActorID string) (int, error)
	GetFollowerInboxes(ctx context.Context, targetActorID string) ([]string, error)

	GetFollowRequestByURI(ctx context.Context, uri string) (*gtsmodel.FollowRequest, error)
	PutFollowRequest(ctx context.Context, req *gtsmodel.FollowRequest) error
	DeleteFollowRequestByURI(ctx context.Context, uri string) error

	GetBlock(ctx context.Context, sourceActorID, targetActorID string) (*gtsmodel.Block, error)
	GetBlockByURI(ctx context.Context, uri string) (*gtsmodel.Block, error)
	PutBlock(ctx context.Context, block *gtsmodel.Block) error
	DeleteBlockByURI(ctx context.Context, uri string) error
	IsBlocked(ctx context.Context, sourceActorID, targetActorID string) (bool, error)

	IsCommunityModerator(ctx context.Context, communityID, actorID string) (bool, error)
	PutCommunityModerator(ctx context.Context, communityID, actorID string) error
	DeleteCommunityModerator(ctx context.Context, communityID, actorID string) error

	PutReport(ctx context.Context, report *gtsmodel.Report) error
}

// Instances covers the known-instance table used for liveness tracking
// and dead-instance backoff.
type Instances interface {
	GetInstanceByDomain(ctx context.Context, domain string) (*gtsmodel.Instance, error)
	PutInstance(ctx context.Context, instance *gtsmodel.Instance) error
	UpdateInstance(ctx context.Context, instance *gtsmodel.Instance, columns ...string) error
	ListInstances(ctx context.Context) ([]*gtsmodel.Instance, error)
}

// Federation covers the append-only activity log and the per-instance
// outbound send cursor.
type Federation interface {
	PutActivityLogEntry(ctx context.Context, entry *gtsmodel.ActivityLogEntry) error
	GetActivityLogEntryByAPID(ctx context.Context, apID string) (*gtsmodel.ActivityLogEntry, error)
	GetActivityLogEntriesAfter(ctx context.Context, afterID int64, forInstance string, limit int) ([]*gtsmodel.ActivityLogEntry, error)

	GetFederationQueueState(ctx context.Context, instanceID string) (*gtsmodel.FederationQueueState, error)
	UpsertFederationQueueState(ctx context.Context, state *gtsmodel.FederationQueueState) error
}

// DB is the full store surface used by the rest of the module.
type DB interface {
	Actors
	Content
	Relationships
	Instances
	Federation
}
