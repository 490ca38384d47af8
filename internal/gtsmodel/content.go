package gtsmodel

import "time"

// Post is a community-scoped top-level content object (§3).
type Post struct {
	ID          string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI         string    `bun:"uri,type:varchar,nullzero,notnull,unique"`
	CreatorID   string    `bun:"creator_id,type:varchar,nullzero,notnull"`
	CommunityID string    `bun:"community_id,type:varchar,nullzero,notnull"`

	Title     string `bun:"title,type:text,nullzero"`
	URL       string `bun:"url,type:varchar,nullzero"`
	Body      string `bun:"body,type:text,nullzero"`
	Thumbnail string `bun:"thumbnail,type:varchar,nullzero"`

	PublishedAt time.Time  `bun:"published_at,nullzero,notnull"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero"`

	Local   bool `bun:"local,notnull,default:false"`
	Deleted bool `bun:"deleted,notnull,default:false"`
	Removed bool `bun:"removed,notnull,default:false"`
	Featured bool `bun:"featured,notnull,default:false"`

	Score int64 `bun:"score,notnull,default:0"`
}

// Comment is a reply, either to a Post directly or to another Comment
// (§3: "ancestor path").
type Comment struct {
	ID        string `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI       string `bun:"uri,type:varchar,nullzero,notnull,unique"`
	CreatorID string `bun:"creator_id,type:varchar,nullzero,notnull"`
	PostID    string `bun:"post_id,type:varchar,nullzero,notnull"`

	// Path is the materialized ancestor path, root-to-self, each
	// segment a Comment ID, dot-separated (e.g. "0.4.9"), following
	// the nested-set-free adjacency convention threaded forums use
	// for ancestor queries.
	Path string `bun:"path,type:varchar,nullzero,notnull"`
	Body string `bun:"body,type:text,nullzero,notnull"`

	PublishedAt time.Time  `bun:"published_at,nullzero,notnull"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero"`

	Local   bool `bun:"local,notnull,default:false"`
	Deleted bool `bun:"deleted,notnull,default:false"`
	Removed bool `bun:"removed,notnull,default:false"`

	Score int64 `bun:"score,notnull,default:0"`
}

// PrivateMessage is a direct, non-community-scoped message (§3). Never
// re-announced: it is never community-scoped (SPEC_FULL).
type PrivateMessage struct {
	ID          string `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI         string `bun:"uri,type:varchar,nullzero,notnull,unique"`
	CreatorID   string `bun:"creator_id,type:varchar,nullzero,notnull"`
	RecipientID string `bun:"recipient_id,type:varchar,nullzero,notnull"`
	Body        string `bun:"body,type:text,nullzero,notnull"`

	PublishedAt time.Time  `bun:"published_at,nullzero,notnull"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero"`

	Deleted bool `bun:"deleted,notnull,default:false"`
}

// Vote is a Like/Dislike on a Post or Comment, uniquely keyed by
// voter+target and always a *replacement*, not a delta (§3, §4.4).
type Vote struct {
	VoterID  string `bun:"voter_id,pk,type:varchar,nullzero,notnull"`
	TargetID string `bun:"target_id,pk,type:varchar,nullzero,notnull"`

	// Score is +1 (Like) or -1 (Dislike).
	Score int8 `bun:"score,notnull"`
}

// Follow is a follower edge: AccountID follows TargetID (a Person or a
// Community/Group).
type Follow struct {
	ID             string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI            string    `bun:"uri,type:varchar,nullzero,notnull,unique"`
	AccountID      string    `bun:"account_id,type:varchar,nullzero,notnull"`
	TargetAccountID string   `bun:"target_account_id,type:varchar,nullzero,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull"`
}

// FollowRequest is a pending Follow awaiting Accept/Reject.
type FollowRequest struct {
	ID              string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI             string    `bun:"uri,type:varchar,nullzero,notnull,unique"`
	AccountID       string    `bun:"account_id,type:varchar,nullzero,notnull"`
	TargetAccountID string    `bun:"target_account_id,type:varchar,nullzero,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull"`
}

// Block is a Person-to-Person block (§4.1 Block<Person>/Undo<Block>).
type Block struct {
	ID              string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI             string    `bun:"uri,type:varchar,nullzero,notnull,unique"`
	AccountID       string    `bun:"account_id,type:varchar,nullzero,notnull"`
	TargetAccountID string    `bun:"target_account_id,type:varchar,nullzero,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull"`
}

// CommunityModerator records membership in a community's moderator
// collection (SPEC_FULL: CollectionAdd/Remove on moderators, §4.1/§4.4).
type CommunityModerator struct {
	CommunityID string `bun:"community_id,pk,type:varchar,nullzero,notnull"`
	AccountID   string `bun:"account_id,pk,type:varchar,nullzero,notnull"`
}

// Report is an inbound Flag, accepted but never re-announced
// (SPEC_FULL supplemented feature).
type Report struct {
	ID          string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	URI         string    `bun:"uri,type:varchar,nullzero,notnull,unique"`
	ReporterID  string     `bun:"reporter_id,type:varchar,nullzero,notnull"`
	TargetURI   string     `bun:"target_uri,type:varchar,nullzero,notnull"`
	Reason      string     `bun:"reason,type:text,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull"`
}
