package bundb

import (
	"context"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/uptrace/bun"
)

func (s *Store) GetActorByID(ctx context.Context, id string) (*gtsmodel.Actor, error) {
	return s.actors.Load("ID", func() (*gtsmodel.Actor, error) {
		var actor gtsmodel.Actor
		if err := s.conn.NewSelect().Model(&actor).
			Where("? = ?", bun.Ident("id"), id).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &actor, nil
	}, id)
}

func (s *Store) GetActorByURI(ctx context.Context, uri string) (*gtsmodel.Actor, error) {
	return s.actors.Load("URI", func() (*gtsmodel.Actor, error) {
		var actor gtsmodel.Actor
		if err := s.conn.NewSelect().Model(&actor).
			Where("? = ?", bun.Ident("uri"), uri).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &actor, nil
	}, uri)
}

func (s *Store) GetActorByUsernameDomain(ctx context.Context, username, domain string) (*gtsmodel.Actor, error) {
	return s.actors.Load("Username.Domain", func() (*gtsmodel.Actor, error) {
		var actor gtsmodel.Actor
		if err := s.conn.NewSelect().Model(&actor).
			Join("JOIN instances AS instance ON instance.id = actor.instance_id").
			Where("? = ?", bun.Ident("actor.username"), username).
			Where("? = ?", bun.Ident("instance.domain"), domain).
			Scan(ctx); err != nil {
			return nil, s.conn.ProcessError(err)
		}
		return &actor, nil
	}, username, domain)
}

func (s *Store) PutActor(ctx context.Context, actor *gtsmodel.Actor) error {
	if _, err := s.conn.NewInsert().Model(actor).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.actors.Put(actor)
	return nil
}

func (s *Store) UpdateActor(ctx context.Context, actor *gtsmodel.Actor, columns ...string) error {
	q := s.conn.NewUpdate().Model(actor).Where("? = ?", bun.Ident("id"), actor.ID)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.actors.Invalidate("ID", actor.ID)
	return nil
}

func (s *Store) DeleteActorByID(ctx context.Context, id string) error {
	if _, err := s.conn.NewDelete().
		Table("actors").
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	s.actors.Invalidate("ID", id)
	return nil
}

var _ db.Actors = (*Store)(nil)
