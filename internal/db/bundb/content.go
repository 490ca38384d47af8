package bundb

import (
	"context"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/uptrace/bun"
)

func (s *Store) GetPostByID(ctx context.Context, id string) (*gtsmodel.Post, error) {
	return s.content.LoadPost("ID", func() (*gtsmodel.Post, error) {
		var post gtsmodel.Post
		if err := s.conn.NewSelect().Model(&post).
			Where("? = ?", bun.Ident("id"), id).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &post, nil
	}, id)
}

func (s *Store) GetPostByURI(ctx context.Context, uri string) (*gtsmodel.Post, error) {
	return s.content.LoadPost("URI", func() (*gtsmodel.Post, error) {
		var post gtsmodel.Post
		if err := s.conn.NewSelect().Model(&post).
			Where("? = ?", bun.Ident("uri"), uri).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &post, nil
	}, uri)
}

func (s *Store) PutPost(ctx context.Context, post *gtsmodel.Post) error {
	if _, err := s.conn.NewInsert().Model(post).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.PutPost(post)
	return nil
}

func (s *Store) UpdatePost(ctx context.Context, post *gtsmodel.Post, columns ...string) error {
	q := s.conn.NewUpdate().Model(post).Where("? = ?", bun.Ident("id"), post.ID)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.InvalidatePost(post.ID)
	return nil
}

func (s *Store) DeletePostByID(ctx context.Context, id string) error {
	if _, err := s.conn.NewDelete().
		Table("posts").
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.InvalidatePost(id)
	return nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*gtsmodel.Comment, error) {
	return s.content.LoadComment("ID", func() (*gtsmodel.Comment, error) {
		var comment gtsmodel.Comment
		if err := s.conn.NewSelect().Model(&comment).
			Where("? = ?", bun.Ident("id"), id).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &comment, nil
	}, id)
}

func (s *Store) GetCommentByURI(ctx context.Context, uri string) (*gtsmodel.Comment, error) {
	return s.content.LoadComment("URI", func() (*gtsmodel.Comment, error) {
		var comment gtsmodel.Comment
		if err := s.conn.NewSelect().Model(&comment).
			Where("? = ?", bun.Ident("uri"), uri).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &comment, nil
	}, uri)
}

func (s *Store) PutComment(ctx context.Context, comment *gtsmodel.Comment) error {
	if _, err := s.conn.NewInsert().Model(comment).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.PutComment(comment)
	return nil
}

func (s *Store) UpdateComment(ctx context.Context, comment *gtsmodel.Comment, columns ...string) error {
	q := s.conn.NewUpdate().Model(comment).Where("? = ?", bun.Ident("id"), comment.ID)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.InvalidateComment(comment.ID)
	return nil
}

func (s *Store) DeleteCommentByID(ctx context.Context, id string) error {
	if _, err := s.conn.NewDelete().
		Table("comments").
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.content.InvalidateComment(id)
	return nil
}

func (s *Store) GetPrivateMessageByURI(ctx context.Context, uri string) (*gtsmodel.PrivateMessage, error) {
	var pm gtsmodel.PrivateMessage
	if err := s.conn.NewSelect().Model(&pm).
		Where("? = ?", bun.Ident("uri"), uri).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &pm, nil
}

func (s *Store) PutPrivateMessage(ctx context.Context, pm *gtsmodel.PrivateMessage) error {
	if _, err := s.conn.NewInsert().Model(pm).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) DeletePrivateMessageByID(ctx context.Context, id string) error {
	if _, err := s.conn.NewDelete().
		Table("private_messages").
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) PutVote(ctx context.Context, vote *gtsmodel.Vote) error {
	// A vote is always a replacement, never a delta (§3): upsert on the
	// (voter_id, target_id) primary key.
	if _, err := s.conn.NewInsert().Model(vote).
		On("CONFLICT (voter_id, target_id) DO UPDATE").
		Set("? = EXCLUDED.score", bun.Ident("score")).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) GetVote(ctx context.Context, voterID, targetID string) (*gtsmodel.Vote, error) {
	var vote gtsmodel.Vote
	if err := s.conn.NewSelect().Model(&vote).
		Where("? = ?", bun.Ident("voter_id"), voterID).
		Where("? = ?", bun.Ident("target_id"), targetID).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &vote, nil
}

func (s *Store) DeleteVote(ctx context.Context, voterID, targetID string) error {
	if _, err := s.conn.NewDelete().
		Table("votes").
		Where("? = ?", bun.Ident("voter_id"), voterID).
		Where("? = ?", bun.Ident("target_id"), targetID).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

var _ db.Content = (*Store)(nil)
