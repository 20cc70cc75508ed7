package clipboard

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSynchronizerDetectsLocalChange(t *testing.T) {
	provider := &NopProvider{}
	var mu sync.Mutex
	var seen []Content

	sync_ := NewSynchronizer(provider, 10*time.Millisecond, func(c Content) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sync_.Start(ctx)
	defer sync_.Stop()

	if err := provider.SetContent(Content{Type: ContentTypeText, Text: "hello"}); err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("expected at least one outbound callback")
	}
	if seen[0].Text != "hello" {
		t.Fatalf("seen[0].Text = %q, want %q", seen[0].Text, "hello")
	}
}

func TestSynchronizerDoesNotEchoRemoteUpdate(t *testing.T) {
	provider := &NopProvider{}
	var calls int
	var mu sync.Mutex

	s := NewSynchronizer(provider, 10*time.Millisecond, func(c Content) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	if err := s.ApplyRemote(Content{Type: ContentTypeText, Text: "from-peer"}); err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("outbound called %d times after ApplyRemote, want 0", calls)
	}
}

func TestContentEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Content
		want bool
	}{
		{"both empty", Content{}, Content{}, true},
		{"same text", Content{Type: ContentTypeText, Text: "a"}, Content{Type: ContentTypeText, Text: "a"}, true},
		{"different text", Content{Type: ContentTypeText, Text: "a"}, Content{Type: ContentTypeText, Text: "b"}, false},
		{"different type", Content{Type: ContentTypeText, Text: "a"}, Content{Type: ContentTypeRTF, RTF: "a"}, false},
		{"same image", Content{Type: ContentTypeImage, Image: []byte{1, 2}, ImageFormat: "png"}, Content{Type: ContentTypeImage, Image: []byte{1, 2}, ImageFormat: "png"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := contentEqual(tc.a, tc.b); got != tc.want {
				t.Fatalf("contentEqual(%+v, %+v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
