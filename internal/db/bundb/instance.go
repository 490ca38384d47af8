package bundb

import (
	"context"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/uptrace/bun"
)

func (s *Store) GetInstanceByDomain(ctx context.Context, domain string) (*gtsmodel.Instance, error) {
	var instance gtsmodel.Instance
	if err := s.conn.NewSelect().Model(&instance).
		Where("? = ?", bun.Ident("domain"), domain).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &instance, nil
}

func (s *Store) PutInstance(ctx context.Context, instance *gtsmodel.Instance) error {
	if _, err := s.conn.NewInsert().Model(instance).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) UpdateInstance(ctx context.Context, instance *gtsmodel.Instance, columns ...string) error {
	q := s.conn.NewUpdate().Model(instance).Where("? = ?", bun.Ident("id"), instance.ID)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

// ListInstances returns every known instance, ordered by domain. Used
// by the send manager (§4.6) to shard ownership across processes.
func (s *Store) ListInstances(ctx context.Context) ([]*gtsmodel.Instance, error) {
	var instances []*gtsmodel.Instance
	if err := s.conn.NewSelect().Model(&instances).
		OrderExpr("? ASC", bun.Ident("domain")).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return instances, nil
}

var _ db.Instances = (*Store)(nil)
