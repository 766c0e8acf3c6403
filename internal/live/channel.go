package live

import (
	"context"
	"encoding/json"

	"github.com/and161185/mediadesk/internal/model"
)

// Event names on the podcast namespace.
const (
	EventJoin           = "join-podcast"
	EventAudio          = "broadcast-audio"
	EventListenerUpdate = "listener-update"
	EventLiveEnded      = "live-ended"
)

// DefaultNamespace is the real-time namespace podcasts are broadcast on.
const DefaultNamespace = "/podcast"

// Event is an inbound server message.
type Event struct {
	Name string
	Data json.RawMessage
}

// Channel is a connected real-time transport. Emit is fire-and-forget: a nil error
// only means the frame was handed to the transport.
type Channel interface {
	Emit(ctx context.Context, event string, data any) error
	EmitWithAck(ctx context.Context, event string, data any) (json.RawMessage, error)
	Events() <-chan Event
	// Done is closed once the transport is gone.
	Done() <-chan struct{}
	Close() error
}

// Dialer opens a Channel on a namespace.
type Dialer interface {
	Dial(ctx context.Context, namespace string) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, namespace string) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context, namespace string) (Channel, error) {
	return f(ctx, namespace)
}

// Chunk is one encoded slice of captured audio.
type Chunk struct {
	Data     []byte
	MimeType string
}

// Source produces captured audio. Chunks is closed when capture ends.
type Source interface {
	Chunks() <-chan Chunk
	Close() error
}

// Sessions is the backend side of a live broadcast.
type Sessions interface {
	StartLive(ctx context.Context, podcastID string) (model.LiveSession, error)
	EndLive(ctx context.Context, podcastID string) (model.LiveSession, error)
}

type joinPayload struct {
	PodcastID string `json:"podcastId"`
	Role      string `json:"role"`
}

type audioPayload struct {
	PodcastID string `json:"podcastId"`
	Chunk     string `json:"chunk"` // base64
	MimeType  string `json:"mimeType"`
	IsFirst   bool   `json:"isFirst"`
}

type listenerPayload struct {
	Count int `json:"count"`
}
