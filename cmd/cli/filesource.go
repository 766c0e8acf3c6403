package main

import (
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/and161185/mediadesk/internal/live"
)

const defaultChunkSize = 16 << 10

// fileSource replays an encoded audio file as capture chunks at a fixed pace.
type fileSource struct {
	f        *os.File
	size     int
	every    time.Duration
	mimeType string

	chunks chan live.Chunk
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	sent   atomic.Int64
}

func openFileSource(path string, size int, every time.Duration) (*fileSource, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = "audio/webm"
	}
	s := &fileSource{
		f:        f,
		size:     size,
		every:    every,
		mimeType: mt,
		chunks:   make(chan live.Chunk),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *fileSource) run() {
	defer close(s.done)
	defer close(s.chunks)
	defer s.f.Close()
	var tick <-chan time.Time
	if s.every > 0 {
		t := time.NewTicker(s.every)
		defer t.Stop()
		tick = t.C
	}
	for first := true; ; first = false {
		if !first && tick != nil {
			select {
			case <-s.stop:
				return
			case <-tick:
			}
		}
		buf := make([]byte, s.size)
		n, err := io.ReadFull(s.f, buf)
		if n > 0 {
			select {
			case <-s.stop:
				return
			case s.chunks <- live.Chunk{Data: buf[:n], MimeType: s.mimeType}:
				s.sent.Add(1)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *fileSource) Chunks() <-chan live.Chunk { return s.chunks }

// Done is closed once the file is exhausted or the source is closed.
func (s *fileSource) Done() <-chan struct{} { return s.done }

// Sent reports how many chunks were handed out.
func (s *fileSource) Sent() int64 { return s.sent.Load() }

func (s *fileSource) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
