// Package clipboard synchronizes the host clipboard with connected clients.
//
// Clipboard contents cross the wire as Clipboard control messages on the
// TCP channel (clipboard payloads are unbounded and loss-intolerant, unlike
// the UDP media path). Reading and writing the actual OS clipboard is left
// to a Provider implementation; this package owns polling, change
// detection, and the synchronizer goroutine, not the OS integration itself.
package clipboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ContentType identifies the encoding of a clipboard payload.
type ContentType int

const (
	ContentTypeNone ContentType = iota
	ContentTypeText
	ContentTypeRTF
	ContentTypeImage
)

func (t ContentType) String() string {
	switch t {
	case ContentTypeText:
		return "text"
	case ContentTypeRTF:
		return "rtf"
	case ContentTypeImage:
		return "image"
	default:
		return "none"
	}
}

// Content is a clipboard payload as exchanged between host and provider.
// ImageFormat is only meaningful when Type is ContentTypeImage (e.g. "png").
type Content struct {
	Type        ContentType
	Text        string
	RTF         string
	Image       []byte
	ImageFormat string
}

func (c Content) Empty() bool {
	return c.Type == ContentTypeNone
}

// Provider reads and writes the local clipboard. Implementations are
// platform-specific UI integrations and are reached only through this
// interface; none are provided here.
type Provider interface {
	GetContent() (Content, error)
	SetContent(Content) error
}

// NopProvider is an in-memory Provider with no OS integration: it holds
// whatever content was last set and returns it. It is the default backend
// when no platform integration is wired in, and a convenient stand-in for
// tests.
type NopProvider struct {
	mu      sync.Mutex
	content Content
}

func (p *NopProvider) GetContent() (Content, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

func (p *NopProvider) SetContent(c Content) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = c
	return nil
}

// Synchronizer polls a Provider for local clipboard changes and pushes them
// out through the outbound callback, while remote updates are applied
// through ApplyRemote.
// It runs as a single background goroutine, mirroring the rest of the
// session's per-concern worker goroutines.
type Synchronizer struct {
	provider Provider
	interval time.Duration
	outbound func(Content)

	mu   sync.Mutex
	last Content

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewSynchronizer builds a Synchronizer. outbound is invoked from the polling
// goroutine whenever the local clipboard changes; it should be cheap
// (typically a channel send or control-message enqueue).
func NewSynchronizer(provider Provider, pollInterval time.Duration, outbound func(Content)) *Synchronizer {
	if provider == nil {
		provider = &NopProvider{}
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Synchronizer{
		provider: provider,
		interval: pollInterval,
		outbound: outbound,
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop. It returns immediately; call Stop to
// terminate it.
func (s *Synchronizer) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

func (s *Synchronizer) pollOnce() {
	content, err := s.provider.GetContent()
	if err != nil {
		slog.Warn("clipboard poll failed", "error", err)
		return
	}
	if content.Empty() {
		return
	}

	s.mu.Lock()
	changed := !contentEqual(content, s.last)
	if changed {
		s.last = content
	}
	s.mu.Unlock()

	if changed && s.outbound != nil {
		s.outbound(content)
	}
}

// ApplyRemote writes clipboard content received from the peer into the local
// provider, and records it so the next poll does not echo it back out.
func (s *Synchronizer) ApplyRemote(content Content) error {
	s.mu.Lock()
	s.last = content
	s.mu.Unlock()
	return s.provider.SetContent(content)
}

// Stop halts the polling goroutine and waits for it to exit.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func contentEqual(a, b Content) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ContentTypeText:
		return a.Text == b.Text
	case ContentTypeRTF:
		return a.RTF == b.RTF
	case ContentTypeImage:
		return a.ImageFormat == b.ImageFormat && string(a.Image) == string(b.Image)
	default:
		return true
	}
}
