package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/mediadesk/internal/model"
)

func page(total int, ids ...string) model.Page[model.ContentItem] {
	p := model.Page[model.ContentItem]{Meta: model.Meta{Page: 1, Limit: 10, Total: total}}
	for _, id := range ids {
		p.Items = append(p.Items, model.ContentItem{ID: id})
	}
	return p
}

func TestStore_SetReplacesWholeSlice(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetCollection(model.KindBlog, page(3, "a", "b", "c"))
	s.SetCollection(model.KindBlog, page(1, "z"))

	c, ok := s.Collection(model.KindBlog)
	require.True(t, ok)
	require.Len(t, c.Items, 1)
	require.Equal(t, "z", c.Items[0].ID)

	_, ok = s.Collection(model.KindVideo)
	require.False(t, ok)
}

func TestStore_CollectionIsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetCollection(model.KindVideo, page(1, "v"))
	c, _ := s.Collection(model.KindVideo)
	c.Items[0].ID = "mutated"
	again, _ := s.Collection(model.KindVideo)
	require.Equal(t, "v", again.Items[0].ID)
}

func TestStore_TotalsAndReset(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetCollection(model.KindBlog, page(23, "a"))
	s.SetCollection(model.KindPodcast, page(4, "p"))
	require.Equal(t, map[model.Kind]int{model.KindBlog: 23, model.KindPodcast: 4}, s.Totals())

	s.Reset()
	require.Empty(t, s.Totals())
	for _, k := range model.Kinds {
		_, ok := s.Collection(k)
		require.False(t, ok)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := New()
	var wg sync.WaitGroup
	for _, k := range model.Kinds {
		wg.Add(2)
		go func(k model.Kind) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.SetCollection(k, page(i, "x"))
			}
		}(k)
		go func(k model.Kind) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = s.Collection(k)
				_ = s.Totals()
			}
		}(k)
	}
	wg.Wait()
	require.Len(t, s.Totals(), len(model.Kinds))
}
