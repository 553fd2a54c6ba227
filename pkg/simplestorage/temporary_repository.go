package simplestorage

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

type temporaryRepository struct {
	*Repository[*Temporary]
}

// NewTemporaryRepository creates the temporary repository over store.
func NewTemporaryRepository(store Store[*Temporary], opts ...RepositoryOption[*Temporary]) TemporaryRepository {
	return &temporaryRepository{
		Repository: NewRepository("temporary", store, func() *Temporary { return &Temporary{} }, opts...),
	}
}

func (r *temporaryRepository) AllExpired(ctx context.Context, now time.Time) ([]*Temporary, error) {
	items, err := r.store.List(ctx, Filter{ExpiresBefore: now})
	if err != nil {
		return nil, r.fail("list expired", uuid.Nil, uuid.Nil, err)
	}
	slices.SortStableFunc(items, func(a, b *Temporary) int {
		if c := bytes.Compare(a.TenantID[:], b.TenantID[:]); c != 0 {
			return c
		}
		return a.ExpiryDate.Compare(b.ExpiryDate)
	})
	return items, nil
}
