package service

import (
	"context"

	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/optimistic"
	"github.com/and161185/mediadesk/internal/query"
)

var suggestionAccessor = optimistic.Accessor[model.Suggestion]{
	ID:     func(s model.Suggestion) string { return s.ID },
	WithID: func(s model.Suggestion, id string) model.Suggestion { s.ID = id; return s },
}

// Suggestions returns the optimistic life-suggestion list, loading it on first use.
func (d *Dashboard) Suggestions(ctx context.Context) (*optimistic.List[model.Suggestion], error) {
	d.sugMu.Lock()
	l := d.suggestions
	d.sugMu.Unlock()
	if l != nil {
		return l, nil
	}
	items, err := query.Query(ctx, d.Cache, suggestionsKey, d.API.ListSuggestions)
	if err != nil {
		return nil, err
	}
	d.sugMu.Lock()
	defer d.sugMu.Unlock()
	if d.suggestions == nil {
		d.suggestions = optimistic.New(suggestionAccessor, items, d.log)
	}
	return d.suggestions, nil
}

// AddSuggestion shows the entry at once and rolls it back if the server rejects it.
func (d *Dashboard) AddSuggestion(ctx context.Context, text, author string) (model.Suggestion, error) {
	l, err := d.Suggestions(ctx)
	if err != nil {
		return model.Suggestion{}, err
	}
	s, err := l.Add(ctx, model.Suggestion{Text: text, Author: author}, d.API.AddSuggestion)
	if err != nil {
		return s, err
	}
	d.Cache.Invalidate(suggestionsKey)
	return s, nil
}

// RemoveSuggestion hides the entry at once and restores it if the delete fails.
func (d *Dashboard) RemoveSuggestion(ctx context.Context, id string) error {
	l, err := d.Suggestions(ctx)
	if err != nil {
		return err
	}
	if err := l.Remove(ctx, id, d.API.RemoveSuggestion); err != nil {
		return err
	}
	d.Cache.Invalidate(suggestionsKey)
	return nil
}

// Notifications reads one inbox page through the cache.
func (d *Dashboard) Notifications(ctx context.Context, p model.ListParams) (model.Page[model.Notification], error) {
	p = d.params(p)
	key := query.NewKey(notificationsPrefix, p.Page, p.Limit)
	return query.Query(ctx, d.Cache, key, func(ctx context.Context) (model.Page[model.Notification], error) {
		return d.API.ListNotifications(ctx, p)
	})
}

// MarkRead marks one notification read, or all of them when id is empty.
func (d *Dashboard) MarkRead(ctx context.Context, id string) error {
	_, err := query.Mutate(ctx, d.Cache, "notifications read", func(ctx context.Context) (struct{}, error) {
		if id == "" {
			return struct{}{}, d.API.MarkAllNotificationsRead(ctx)
		}
		return struct{}{}, d.API.MarkNotificationRead(ctx, id)
	})
	if err != nil {
		return err
	}
	return d.Cache.RefetchKeys(ctx, d.Cache.InvalidatePrefix(notificationsPrefix)...)
}

// SocialLinks reads the footer links through the cache.
func (d *Dashboard) SocialLinks(ctx context.Context) ([]model.SocialLink, error) {
	return query.Query(ctx, d.Cache, socialKey, d.API.ListSocialLinks)
}

// SaveSocialLink creates l when it has no id and updates it otherwise.
func (d *Dashboard) SaveSocialLink(ctx context.Context, l model.SocialLink) (model.SocialLink, error) {
	out, err := query.Mutate(ctx, d.Cache, "save social link", func(ctx context.Context) (model.SocialLink, error) {
		if l.ID == "" {
			return d.API.CreateSocialLink(ctx, l)
		}
		return d.API.UpdateSocialLink(ctx, l)
	})
	if err != nil {
		return out, err
	}
	d.Cache.Invalidate(socialKey)
	return out, nil
}

// WebsiteContent reads the site settings through the cache.
func (d *Dashboard) WebsiteContent(ctx context.Context) (model.WebsiteContent, error) {
	return query.Query(ctx, d.Cache, siteKey, d.API.GetWebsiteContent)
}

// UpdateWebsiteContent patches the site settings and refetches them.
func (d *Dashboard) UpdateWebsiteContent(ctx context.Context, in model.WebsiteContentInput) (model.WebsiteContent, error) {
	out, err := query.Mutate(ctx, d.Cache, "update website content", func(ctx context.Context) (model.WebsiteContent, error) {
		return d.API.UpdateWebsiteContent(ctx, in)
	})
	if err != nil {
		return out, err
	}
	d.Cache.Invalidate(siteKey)
	return out, nil
}
