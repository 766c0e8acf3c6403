// Package live mirrors a server-owned podcast broadcast and streams captured audio
// into it over the real-time channel.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/storage"
)

// State is the local view of the broadcast.
type State int

const (
	Idle State = iota
	Connecting
	Ready
	Live
	Reconnecting
	Ended
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Live:
		return "live"
	case Reconnecting:
		return "reconnecting"
	case Ended:
		return "ended"
	default:
		return "idle"
	}
}

// DefaultReconnectInterval is used when Config leaves it unset.
const DefaultReconnectInterval = 2 * time.Second

// ErrState is returned when an operation does not apply to the current state.
var ErrState = errors.New("live: operation not allowed in current state")

// Config tunes the transport side of a Broadcaster.
type Config struct {
	Namespace         string
	ReconnectInterval time.Duration
}

// Stats is a snapshot of the mirror. Audio delivery is best effort: every captured
// chunk advances Sequence, and chunks that could not be handed to the transport are
// counted in Dropped and never resent.
type Stats struct {
	State     State
	Listeners int
	Sequence  int64
	Dropped   int64
	Session   model.LiveSession
}

// Broadcaster drives one podcast's live session from the broadcaster side.
type Broadcaster struct {
	podcastID string
	cfg       Config
	dialer    Dialer
	sessions  Sessions
	flags     storage.Storage
	log       *zap.Logger
	onState   func(State)

	mu           sync.Mutex
	state        State
	ch           Channel
	src          Source
	stopPump     context.CancelFunc
	first        bool
	session      model.LiveSession
	seq, dropped int64
	reconnecting bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Broadcaster.
type Option func(*Broadcaster)

func WithLogger(l *zap.Logger) Option { return func(b *Broadcaster) { b.log = l } }

// WithStateHook registers fn to run on every state change. fn is called with the
// broadcaster's lock held and must not call back into it.
func WithStateHook(fn func(State)) Option { return func(b *Broadcaster) { b.onState = fn } }

// NewBroadcaster returns an idle mirror for podcastID. flags persists the live flag
// across restarts.
func NewBroadcaster(podcastID string, cfg Config, d Dialer, s Sessions, flags storage.Storage, opts ...Option) *Broadcaster {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	b := &Broadcaster{
		podcastID: podcastID,
		cfg:       cfg,
		dialer:    d,
		sessions:  s,
		flags:     flags,
		log:       zap.NewNop(),
		session:   model.LiveSession{PodcastID: podcastID, Status: model.LiveScheduled},
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With(zap.String("podcast", podcastID))
	return b
}

// State reports the current state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of counters and session data.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:     b.state,
		Listeners: b.session.Listeners,
		Sequence:  b.seq,
		Dropped:   b.dropped,
		Session:   b.session,
	}
}

func (b *Broadcaster) set(s State) {
	if b.state == s {
		return
	}
	b.log.Debug("live state", zap.Stringer("from", b.state), zap.Stringer("to", s))
	b.state = s
	if b.onState != nil {
		b.onState(s)
	}
}

// Open connects and joins the podcast as broadcaster. When the persisted live flag is
// set the mirror reports Live right away and the join confirms it; otherwise a
// successful join leaves it Ready.
func (b *Broadcaster) Open(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Idle {
		b.mu.Unlock()
		return ErrState
	}
	flagged := b.flagged(ctx)
	if flagged {
		b.session.Status = model.LiveOn
		b.set(Live)
	} else {
		b.set(Connecting)
	}
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	lifetime := b.ctx
	b.mu.Unlock()

	ch, err := b.join(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if lifetime.Err() != nil {
		if ch != nil {
			_ = ch.Close()
		}
		return context.Canceled
	}
	if err != nil {
		if flagged {
			b.set(Reconnecting)
			b.startReconnect()
		} else {
			b.cancel()
			b.set(Idle)
		}
		return fmt.Errorf("live: open: %w", err)
	}
	b.attach(ch)
	if !flagged {
		b.set(Ready)
	}
	return nil
}

// GoLive starts the server session and begins streaming src. From Ready it calls
// StartLive and persists the live flag. From a resumed Live or Reconnecting state it
// only attaches capture.
func (b *Broadcaster) GoLive(ctx context.Context, src Source) error {
	b.mu.Lock()
	switch {
	case b.state == Ready:
		b.mu.Unlock()
		sess, err := b.sessions.StartLive(ctx, b.podcastID)
		if err != nil {
			return err
		}
		if err := b.flags.Set(ctx, model.LiveFlagKey(b.podcastID), "true"); err != nil {
			b.log.Warn("persist live flag", zap.Error(err))
		}
		b.mu.Lock()
		if b.state != Ready {
			b.mu.Unlock()
			return ErrState
		}
		b.session = sess
		b.session.Status = model.LiveOn
		b.set(Live)
	case (b.state == Live || b.state == Reconnecting) && b.src == nil:
	default:
		b.mu.Unlock()
		return ErrState
	}
	b.startPump(src)
	b.mu.Unlock()
	return nil
}

// Stop ends the server session, then marks the mirror Ended and clears the flag.
func (b *Broadcaster) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Live && b.state != Reconnecting {
		b.mu.Unlock()
		return ErrState
	}
	b.mu.Unlock()

	sess, err := b.sessions.EndLive(ctx, b.podcastID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if sess.SessionID != "" {
		b.session.SessionID = sess.SessionID
	}
	b.mu.Unlock()
	b.end(ctx)
	return nil
}

// Close releases capture and transport. The server session and the persisted flag are
// left alone, so a later Open resumes as Live.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.cancel == nil {
		b.mu.Unlock()
		return nil
	}
	b.cancel()
	b.haltPump()
	ch := b.ch
	b.ch = nil
	if b.state != Ended {
		b.set(Idle)
	}
	b.mu.Unlock()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	b.wg.Wait()
	return err
}

func (b *Broadcaster) flagged(ctx context.Context) bool {
	v, ok, err := b.flags.Get(ctx, model.LiveFlagKey(b.podcastID))
	if err != nil {
		b.log.Warn("read live flag", zap.Error(err))
		return false
	}
	return ok && v == "true"
}

func (b *Broadcaster) join(ctx context.Context) (Channel, error) {
	ch, err := b.dialer.Dial(ctx, b.cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if _, err := ch.EmitWithAck(ctx, EventJoin, joinPayload{PodcastID: b.podcastID, Role: "broadcaster"}); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("join: %w", err)
	}
	return ch, nil
}

// attach requires b.mu. A new channel is a new stream for listeners, so the next
// chunk is sent as the first one.
func (b *Broadcaster) attach(ch Channel) {
	b.ch = ch
	b.first = true
	b.wg.Add(1)
	go b.watch(b.ctx, ch)
}

func (b *Broadcaster) watch(ctx context.Context, ch Channel) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch.Done():
			b.lost(ch)
			return
		case ev, ok := <-ch.Events():
			if !ok {
				b.lost(ch)
				return
			}
			b.handle(ctx, ev)
		}
	}
}

func (b *Broadcaster) handle(ctx context.Context, ev Event) {
	switch ev.Name {
	case EventListenerUpdate:
		var p listenerPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			b.log.Warn("bad listener-update", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.session.Listeners = p.Count
		b.mu.Unlock()
	case EventLiveEnded:
		b.end(ctx)
	default:
		b.log.Debug("ignored event", zap.String("event", ev.Name))
	}
}

func (b *Broadcaster) lost(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != ch || b.ctx.Err() != nil {
		return
	}
	b.ch = nil
	b.log.Info("transport lost", zap.Stringer("state", b.state))
	switch b.state {
	case Live:
		b.set(Reconnecting)
		b.startReconnect()
	case Ended:
	default:
		b.cancel()
		b.set(Idle)
	}
}

// startReconnect requires b.mu.
func (b *Broadcaster) startReconnect() {
	if b.reconnecting {
		return
	}
	b.reconnecting = true
	b.wg.Add(1)
	go b.reconnect(b.ctx)
}

func (b *Broadcaster) reconnect(ctx context.Context) {
	defer b.wg.Done()
	t := time.NewTicker(b.cfg.ReconnectInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.reconnecting = false
			b.mu.Unlock()
			return
		case <-t.C:
		}
		ch, err := b.join(ctx)
		if err != nil {
			b.log.Debug("reconnect failed", zap.Error(err))
			continue
		}
		b.mu.Lock()
		b.reconnecting = false
		if ctx.Err() != nil || b.state != Reconnecting {
			b.mu.Unlock()
			_ = ch.Close()
			return
		}
		b.attach(ch)
		b.set(Live)
		b.mu.Unlock()
		b.log.Info("rejoined")
		return
	}
}

// startPump requires b.mu.
func (b *Broadcaster) startPump(src Source) {
	ctx, stop := context.WithCancel(b.ctx)
	b.src, b.stopPump, b.first = src, stop, true
	b.wg.Add(1)
	go b.pump(ctx, src)
}

// haltPump requires b.mu.
func (b *Broadcaster) haltPump() {
	if b.stopPump != nil {
		b.stopPump()
		b.stopPump = nil
	}
	if b.src != nil {
		if err := b.src.Close(); err != nil {
			b.log.Warn("close capture", zap.Error(err))
		}
		b.src = nil
	}
}

func (b *Broadcaster) pump(ctx context.Context, src Source) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-src.Chunks():
			if !ok {
				return
			}
			b.send(ctx, c)
		}
	}
}

func (b *Broadcaster) send(ctx context.Context, c Chunk) {
	b.mu.Lock()
	ch, live, first := b.ch, b.state == Live, b.first
	b.seq++
	if ch == nil || !live {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.first = false
	b.session.Sequence = b.seq
	b.mu.Unlock()

	err := ch.Emit(ctx, EventAudio, audioPayload{
		PodcastID: b.podcastID,
		Chunk:     base64.StdEncoding.EncodeToString(c.Data),
		MimeType:  c.MimeType,
		IsFirst:   first,
	})
	if err != nil {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.log.Debug("chunk dropped", zap.Error(err))
	}
}

func (b *Broadcaster) end(ctx context.Context) {
	b.mu.Lock()
	if b.state == Ended {
		b.mu.Unlock()
		return
	}
	b.session.Status = model.LiveEnded
	b.haltPump()
	b.set(Ended)
	b.mu.Unlock()
	if err := b.flags.Delete(ctx, model.LiveFlagKey(b.podcastID)); err != nil {
		b.log.Warn("clear live flag", zap.Error(err))
	}
}
