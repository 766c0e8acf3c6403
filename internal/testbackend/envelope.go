package testbackend

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/and161185/mediadesk/internal/model"
)

func jsonRaw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// pageParams reads page, limit, sortBy, sortOrder and search with the client's defaults.
func pageParams(c *gin.Context) (model.ListParams, bool) {
	p := model.ListParams{
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Search:    c.Query("search"),
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"limit", &p.Limit}} {
		v := c.Query(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, "Invalid "+f.name)
			return p, false
		}
		*f.dst = n
	}
	return p.Normalize(), true
}

// paginate slices items for p; TotalPages is ceil(total/limit).
func paginate[T any](items []T, p model.ListParams) ([]T, model.Meta) {
	total := len(items)
	meta := model.Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
	start := (p.Page - 1) * p.Limit
	if start >= total {
		return []T{}, meta
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, meta
}

func filterSortContent(items []model.ContentItem, p model.ListParams) []model.ContentItem {
	out := make([]model.ContentItem, 0, len(items))
	q := strings.ToLower(p.Search)
	for _, it := range items {
		if q == "" || strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
		}
	}
	desc := p.SortOrder == "desc"
	switch p.SortBy {
	case "title":
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return out[i].Title > out[j].Title
			}
			return out[i].Title < out[j].Title
		})
	case "createdAt", "updatedAt":
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].CreatedAt, out[j].CreatedAt
			if p.SortBy == "updatedAt" {
				a, b = out[i].UpdatedAt, out[j].UpdatedAt
			}
			if desc {
				return a.After(b)
			}
			return a.Before(b)
		})
	}
	return out
}
