package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/live"
	"github.com/and161185/mediadesk/internal/live/wschannel"
	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/richtext"
)

const excerptLen = 60

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// parse runs fs over args and turns flag errors into errUsage.
func parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func need(fs *flag.FlagSet, names ...string) error {
	var missing []string
	for _, n := range names {
		if f := fs.Lookup(n); f == nil || f.Value.String() == "" {
			missing = append(missing, "-"+n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", errUsage, fs.Name(), strings.Join(missing, " "))
	}
	return nil
}

func kindFlag(fs *flag.FlagSet) *string {
	return fs.String("kind", "blog", "content kind: blog, video, podcast or publication")
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "email", "password"); err != nil {
		return err
	}
	u, err := a.d.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", u.Email)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.d.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	u, err := a.d.API.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> %s\n", u.Name, u.Email, u.Role)
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	kind := kindFlag(fs)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 0, "page size (default from config)")
	sortBy := fs.String("sort", "", "sort field: title, createdAt or updatedAt")
	order := fs.String("order", "", "asc or desc")
	search := fs.String("search", "", "title filter")
	if err := parse(fs, args); err != nil {
		return err
	}
	k, err := model.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	top, rest, meta, err := a.d.PinnedAndRemaining(ctx, k, model.ListParams{
		Page: *page, Limit: *limit, SortBy: *sortBy, SortOrder: *order, Search: *search,
	})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tEXCERPT")
	for _, it := range top {
		writeItem(tw, it, "* ")
	}
	for _, it := range rest {
		writeItem(tw, it, "")
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "page %d/%d, %d %s\n", meta.Page, meta.TotalPages, meta.Total, k.Resource())
	return nil
}

func writeItem(w io.Writer, it model.ContentItem, mark string) {
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", mark, it.ID, it.Status, it.Title, richtext.Excerpt(it.Description, excerptLen))
}

func cmdPinned(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("pinned", flag.ContinueOnError)
	kind := kindFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	k, err := model.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	items, err := a.d.Pinned(ctx, k)
	if err != nil {
		return err
	}
	printJSON(a.out, items)
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	kind := kindFlag(fs)
	id := fs.String("id", "", "item id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	k, err := model.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	if err := a.d.DeleteContent(ctx, k, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s %s\n", k, *id)
	return nil
}

func cmdPin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("pin", flag.ContinueOnError)
	kind := kindFlag(fs)
	id := fs.String("id", "", "item id")
	off := fs.Bool("off", false, "unpin instead")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	k, err := model.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	it, err := a.d.SetPinned(ctx, k, *id, !*off)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s pinned=%t\n", it.ID, it.Pinned)
	return nil
}

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	kind := fs.String("kind", "podcast", "content kind")
	title := fs.String("title", "", "title")
	desc := fs.String("description", "", "description (HTML)")
	file := fs.String("file", "", "media file")
	cover := fs.String("cover", "", "cover image")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "title", "file"); err != nil {
		return err
	}
	k, err := model.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	start := time.Now()
	it, err := a.d.SaveContent(ctx, k, "", model.ContentInput{
		Title:       *title,
		Description: *desc,
		MediaFile:   *file,
		CoverFile:   *cover,
	})
	if err != nil {
		return err
	}
	a.log.Info("uploaded", zap.String("id", it.ID), zap.Duration("took", time.Since(start)))
	printJSON(a.out, it)
	return nil
}

func cmdStats(ctx context.Context, a *app, _ []string) error {
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	stats, err := a.d.Stats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, k := range model.Kinds {
		fmt.Fprintf(tw, "%s\t%d\n", k.Resource(), stats[k])
	}
	return tw.Flush()
}

func cmdSuggestions(ctx context.Context, a *app, _ []string) error {
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	l, err := a.d.Suggestions(ctx)
	if err != nil {
		return err
	}
	for _, s := range l.Snapshot() {
		fmt.Fprintf(a.out, "%s\t%s", s.ID, s.Text)
		if s.Author != "" {
			fmt.Fprintf(a.out, " (%s)", s.Author)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func cmdSuggestAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("suggest-add", flag.ContinueOnError)
	text := fs.String("text", "", "suggestion text")
	author := fs.String("author", "", "author")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	s, err := a.d.AddSuggestion(ctx, *text, *author)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, s.ID)
	return nil
}

func cmdSuggestRemove(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("suggest-rm", flag.ContinueOnError)
	id := fs.String("id", "", "suggestion id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	if err := a.d.RemoveSuggestion(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func cmdNotifications(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	p, err := a.d.Notifications(ctx, model.ListParams{Page: *page})
	if err != nil {
		return err
	}
	for _, n := range p.Items {
		mark := " "
		if !n.Read {
			mark = "●"
		}
		fmt.Fprintf(a.out, "%s %s  %s  %s\n", mark, n.ID, n.CreatedAt.Format(time.DateTime), n.Title)
	}
	return nil
}

func cmdRead(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	id := fs.String("id", "", "notification id")
	all := fs.Bool("all", false, "mark every notification read")
	if err := parse(fs, args); err != nil {
		return err
	}
	if (*id == "") == !*all {
		return fmt.Errorf("%w: read needs exactly one of -id or -all", errUsage)
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	if err := a.d.MarkRead(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func cmdSocial(ctx context.Context, a *app, _ []string) error {
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}
	links, err := a.d.SocialLinks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, l := range links {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ID, l.Platform, l.URL)
	}
	return tw.Flush()
}

// realtimeURL is the configured socket URL, or the API base URL with a ws scheme.
func realtimeURL(a *app) string {
	if a.cfg.Realtime.URL != "" {
		return a.cfg.Realtime.URL
	}
	u := a.cfg.API.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func (a *app) broadcaster(podcastID string, opts ...live.Option) *live.Broadcaster {
	dialer := wschannel.Dialer{URL: realtimeURL(a), Tokens: a.d.Tokens, Log: a.log}
	return a.d.Broadcaster(podcastID, live.Config{
		Namespace:         a.cfg.Realtime.Namespace,
		ReconnectInterval: a.cfg.Realtime.ReconnectInterval,
	}, dialer, opts...)
}

func cmdLive(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	podcast := fs.String("podcast", "", "podcast id")
	file := fs.String("file", "", "encoded audio to stream")
	chunk := fs.Int("chunk", defaultChunkSize, "bytes per chunk")
	every := fs.Duration("every", 250*time.Millisecond, "delay between chunks")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "podcast", "file"); err != nil {
		return err
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}

	b := a.broadcaster(*podcast, live.WithStateHook(func(s live.State) {
		fmt.Fprintf(a.out, "state: %s\n", s)
	}))
	defer func() { _ = b.Close() }()
	if err := b.Open(ctx); err != nil {
		return err
	}

	src, err := openFileSource(*file, *chunk, *every)
	if err != nil {
		return err
	}
	if err := b.GoLive(ctx, src); err != nil {
		_ = src.Close()
		return err
	}

	select {
	case <-src.Done():
	case <-ctx.Done():
		_ = src.Close()
	}
	waitDelivered(ctx, b, src.Sent())

	st := b.Stats()
	fmt.Fprintf(a.out, "sent %d chunks, dropped %d, listeners %d\n", st.Sequence-st.Dropped, st.Dropped, st.Listeners)
	fmt.Fprintln(a.out, "broadcast left running; end it with: mediadesk live-stop -podcast", *podcast)
	return nil
}

// waitDelivered blocks until the pump has taken n chunks or a short grace period passes.
func waitDelivered(ctx context.Context, b *live.Broadcaster, n int64) {
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for b.Stats().Sequence < n {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

func cmdLiveStop(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("live-stop", flag.ContinueOnError)
	podcast := fs.String("podcast", "", "podcast id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(fs, "podcast"); err != nil {
		return err
	}
	if err := a.d.RequireAuth(ctx); err != nil {
		return err
	}

	b := a.broadcaster(*podcast)
	defer func() { _ = b.Close() }()
	if err := b.Open(ctx); err != nil && b.State() != live.Reconnecting {
		return err
	}
	err := b.Stop(ctx)
	if errors.Is(err, live.ErrState) {
		// not flagged on this machine; end the server session directly
		_, err = a.d.API.EndLive(ctx, *podcast)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ended")
	return nil
}
