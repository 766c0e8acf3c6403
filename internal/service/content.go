package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/query"
)

type contentPage = model.Page[model.ContentItem]

func (d *Dashboard) params(p model.ListParams) model.ListParams {
	if p.Limit <= 0 && d.pageSize > 0 {
		p.Limit = d.pageSize
	}
	return p.Normalize()
}

// ContentKey is the cache key of one list read. Searches live under their own prefix
// so their filtered totals never reach the shared state.
func ContentKey(kind model.Kind, p model.ListParams) query.Key {
	if p.Search != "" {
		return query.NewKey(searchPrefix+kind.Resource(), p.Page, p.Limit, p.SortBy, p.SortOrder, p.Search)
	}
	return query.NewKey(contentPrefix+kind.Resource(), p.Page, p.Limit, p.SortBy, p.SortOrder)
}

func pinnedKey(kind model.Kind) query.Key { return query.Key(pinnedPrefix + kind.Resource()) }

func contentKindPrefix(kind model.Kind) query.Key {
	return query.Key(contentPrefix + kind.Resource() + "/")
}

func searchKindPrefix(kind model.Kind) query.Key {
	return query.Key(searchPrefix + kind.Resource() + "/")
}

// ListContent reads one page of kind through the cache. Settled reads are copied
// into the shared state.
func (d *Dashboard) ListContent(ctx context.Context, kind model.Kind, p model.ListParams) (contentPage, error) {
	p = d.params(p)
	return query.Query(ctx, d.Cache, ContentKey(kind, p), func(ctx context.Context) (contentPage, error) {
		return d.API.Content(kind).List(ctx, p)
	})
}

// RefetchContent re-reads one page, bypassing the cache.
func (d *Dashboard) RefetchContent(ctx context.Context, kind model.Kind, p model.ListParams) (contentPage, error) {
	p = d.params(p)
	return query.Refetch(ctx, d.Cache, ContentKey(kind, p), func(ctx context.Context) (contentPage, error) {
		return d.API.Content(kind).List(ctx, p)
	})
}

// DeleteContent deletes an item and then refetches every cached read of its kind.
func (d *Dashboard) DeleteContent(ctx context.Context, kind model.Kind, id string) error {
	_, err := query.Mutate(ctx, d.Cache, "delete "+kind.Resource(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.API.Content(kind).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	d.refresh(ctx, kind)
	return nil
}

// SaveContent creates an item when id is empty and updates it otherwise.
func (d *Dashboard) SaveContent(ctx context.Context, kind model.Kind, id string, in model.ContentInput) (model.ContentItem, error) {
	op := "create " + kind.Resource()
	if id != "" {
		op = "update " + kind.Resource()
	}
	it, err := query.Mutate(ctx, d.Cache, op, func(ctx context.Context) (model.ContentItem, error) {
		if id == "" {
			return d.API.Content(kind).Create(ctx, in)
		}
		return d.API.Content(kind).Update(ctx, id, in)
	})
	if err != nil {
		return it, err
	}
	d.refresh(ctx, kind)
	return it, nil
}

// SetPinned flags or unflags an item and refreshes the kind's reads.
func (d *Dashboard) SetPinned(ctx context.Context, kind model.Kind, id string, pinned bool) (model.ContentItem, error) {
	it, err := query.Mutate(ctx, d.Cache, "pin "+kind.Resource(), func(ctx context.Context) (model.ContentItem, error) {
		return d.API.Content(kind).SetPinned(ctx, id, pinned)
	})
	if err != nil {
		return it, err
	}
	d.refresh(ctx, kind)
	return it, nil
}

// SetStatus sends a status change and refreshes the kind's reads.
func (d *Dashboard) SetStatus(ctx context.Context, kind model.Kind, id, status string) (model.ContentItem, error) {
	it, err := query.Mutate(ctx, d.Cache, "status "+kind.Resource(), func(ctx context.Context) (model.ContentItem, error) {
		return d.API.Content(kind).SetStatus(ctx, id, status)
	})
	if err != nil {
		return it, err
	}
	d.refresh(ctx, kind)
	return it, nil
}

// Pinned reads the pinned items of kind through the cache.
func (d *Dashboard) Pinned(ctx context.Context, kind model.Kind) ([]model.ContentItem, error) {
	return query.Query(ctx, d.Cache, pinnedKey(kind), func(ctx context.Context) ([]model.ContentItem, error) {
		return d.API.Content(kind).Pinned(ctx)
	})
}

// PinnedAndRemaining returns the pinned section and the page without any pinned id.
func (d *Dashboard) PinnedAndRemaining(ctx context.Context, kind model.Kind, p model.ListParams) (top, rest []model.ContentItem, meta model.Meta, err error) {
	pinned, err := d.Pinned(ctx, kind)
	if err != nil {
		return nil, nil, meta, err
	}
	page, err := d.ListContent(ctx, kind, p)
	if err != nil {
		return nil, nil, meta, err
	}
	top, rest = model.Partition(pinned, page.Items)
	return top, rest, page.Meta, nil
}

// Stats returns the total item count per kind, reading kinds not yet synced.
func (d *Dashboard) Stats(ctx context.Context) (map[model.Kind]int, error) {
	have := d.State.Totals()
	for _, k := range model.Kinds {
		if _, ok := have[k]; ok {
			continue
		}
		if _, err := d.ListContent(ctx, k, model.ListParams{}); err != nil {
			return nil, err
		}
	}
	return d.State.Totals(), nil
}

// refresh re-issues every cached read of kind. Failures stay on the cache entries.
func (d *Dashboard) refresh(ctx context.Context, kind model.Kind) {
	keys := d.Cache.InvalidatePrefix(contentKindPrefix(kind))
	keys = append(keys, d.Cache.InvalidatePrefix(searchKindPrefix(kind))...)
	d.Cache.Invalidate(pinnedKey(kind))
	keys = append(keys, pinnedKey(kind))
	if err := d.Cache.RefetchKeys(ctx, keys...); err != nil {
		d.log.Warn("refetch after mutation", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// syncState copies every settled list read into the shared state.
func (d *Dashboard) syncState(s query.Snapshot) {
	if s.Status != query.Success {
		return
	}
	page, ok := s.Data.(contentPage)
	if !ok {
		return
	}
	kind, ok := kindFromKey(s.Key)
	if !ok {
		return
	}
	d.State.SetCollection(kind, page)
}
