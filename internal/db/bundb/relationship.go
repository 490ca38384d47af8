package bundb

import (
	"context"
	"errors"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/uptrace/bun"
)

func (s *Store) GetFollow(ctx context.Context, sourceActorID, targetActorID string) (*gtsmodel.Follow, error) {
	var follow gtsmodel.Follow
	if err := s.conn.NewSelect().Model(&follow).
		Where("? = ?", bun.Ident("account_id"), sourceActorID).
		Where("? = ?", bun.Ident("target_account_id"), targetActorID).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &follow, nil
}

func (s *Store) GetFollowByURI(ctx context.Context, uri string) (*gtsmodel.Follow, error) {
	var follow gtsmodel.Follow
	if err := s.conn.NewSelect().Model(&follow).
		Where("? = ?", bun.Ident("uri"), uri).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &follow, nil
}

func (s *Store) PutFollow(ctx context.Context, follow *gtsmodel.Follow) error {
	if _, err := s.conn.NewInsert().Model(follow).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeleteFollowByURI(ctx context.Context, uri string) error {
	if _, err := s.conn.NewDelete().
		Table("follows").
		Where("? = ?", bun.Ident("uri"), uri).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeleteFollow(ctx context.Context, sourceActorID, targetActorID string) error {
	if _, err := s.conn.NewDelete().
		Table("follows").
		Where("? = ?", bun.Ident("account_id"), sourceActorID).
		Where("? = ?", bun.Ident("target_account_id"), targetActorID).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, sourceActorID, targetActorID string) (bool, error) {
	_, err := s.GetFollow(ctx, sourceActorID, targetActorID)
	if err != nil {
		if errors.Is(err, db.ErrNoEntries) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountFollowers counts the follow rows whose target is the given
// actor. The announce recipient resolution does not call it.
func (s *Store) CountFollowers(ctx context.Context, targetActorID string) (int, error) {
	n, err := s.conn.NewSelect().
		Table("follows").
		Where("? = ?", bun.Ident("target_account_id"), targetActorID).
		Count(ctx)
	if err != nil {
		return 0, s.conn.ProcessError(err)
	}
	return n, nil
}

// GetFollowerInboxes returns the (deduplicated) set of shared-inbox or
// inbox URLs for every actor following targetActorID, used to build
// the recipient set for a Community announce (§4.5 step 2).
func (s *Store) GetFollowerInboxes(ctx context.Context, targetActorID string) ([]string, error) {
	var inboxes []string
	if err := s.conn.NewSelect().
		TableExpr("follows AS follow").
		Join("JOIN actors AS actor ON actor.id = follow.account_id").
		ColumnExpr("DISTINCT COALESCE(NULLIF(actor.shared_inbox, ?), actor.inbox)", "").
		Where("? = ?", bun.Ident("follow.target_account_id"), targetActorID).
		Scan(ctx, &inboxes); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return inboxes, nil
}

func (s *Store) GetFollowRequestByURI(ctx context.Context, uri string) (*gtsmodel.FollowRequest, error) {
	var req gtsmodel.FollowRequest
	if err := s.conn.NewSelect().Model(&req).
		Where("? = ?", bun.Ident("uri"), uri).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &req, nil
}

func (s *Store) PutFollowRequest(ctx context.Context, req *gtsmodel.FollowRequest) error {
	if _, err := s.conn.NewInsert().Model(req).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeleteFollowRequestByURI(ctx context.Context, uri string) error {
	if _, err := s.conn.NewDelete().
		Table("follow_requests").
		Where("? = ?", bun.Ident("uri"), uri).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) GetBlock(ctx context.Context, sourceActorID, targetActorID string) (*gtsmodel.Block, error) {
	var block gtsmodel.Block
	if err := s.conn.NewSelect().Model(&block).
		Where("? = ?", bun.Ident("account_id"), sourceActorID).
		Where("? = ?", bun.Ident("target_account_id"), targetActorID).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &block, nil
}

func (s *Store) GetBlockByURI(ctx context.Context, uri string) (*gtsmodel.Block, error) {
	var block gtsmodel.Block
	if err := s.conn.NewSelect().Model(&block).
		Where("? = ?", bun.Ident("uri"), uri).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &block, nil
}

func (s *Store) PutBlock(ctx context.Context, block *gtsmodel.Block) error {
	if _, err := s.conn.NewInsert().Model(block).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeleteBlockByURI(ctx context.Context, uri string) error {
	if _, err := s.conn.NewDelete().
		Table("blocks").
		Where("? = ?", bun.Ident("uri"), uri).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) IsBlocked(ctx context.Context, sourceActorID, targetActorID string) (bool, error) {
	_, err := s.GetBlock(ctx, sourceActorID, targetActorID)
	if err != nil {
		if errors.Is(err, db.ErrNoEntries) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) IsCommunityModerator(ctx context.Context, communityID, actorID string) (bool, error) {
	n, err := s.conn.NewSelect().
		Table("community_moderators").
		Where("? = ?", bun.Ident("community_id"), communityID).
		Where("? = ?", bun.Ident("account_id"), actorID).
		Count(ctx)
	if err != nil {
		return false, s.conn.ProcessError(err)
	}
	return n > 0, nil
}

func (s *Store) PutCommunityModerator(ctx context.Context, communityID, actorID string) error {
	mod := &gtsmodel.CommunityModerator{CommunityID: communityID, AccountID: actorID}
	if _, err := s.conn.NewInsert().Model(mod).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeleteCommunityModerator(ctx context.Context, communityID, actorID string) error {
	if _, err := s.conn.NewDelete().
		Table("community_moderators").
		Where("? = ?", bun.Ident("community_id"), communityID).
		Where("? = ?", bun.Ident("account_id"), actorID).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) PutReport(ctx context.Context, report *gtsmodel.Report) error {
	if _, err := s.conn.NewInsert().Model(report).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

var _ db.Relationships = (*Store)(nil)
