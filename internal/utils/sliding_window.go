package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.hits)
}

// Allow records a hit and reports true only while fewer than limit hits fall
// inside the window.
func (w *SlidingWindow) Allow(now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.hits) >= limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// Next returns when the oldest hit leaves the window.
func (w *SlidingWindow) Next(now time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.hits) == 0 {
		return now
	}
	return w.hits[0].Add(w.window)
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// KeyedWindow keeps one sliding window per key.
type KeyedWindow struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewKeyedWindow(window time.Duration) *KeyedWindow {
	return &KeyedWindow{window: window, windows: make(map[string]*SlidingWindow)}
}

func (k *KeyedWindow) get(key string) *SlidingWindow {
	k.mu.Lock()
	defer k.mu.Unlock()
	w := k.windows[key]
	if w == nil {
		w = NewSlidingWindow(k.window)
		k.windows[key] = w
	}
	return w
}

func (k *KeyedWindow) Allow(key string, now time.Time, limit int) bool {
	return k.get(key).Allow(now, limit)
}

func (k *KeyedWindow) Next(key string, now time.Time) time.Time {
	return k.get(key).Next(now)
}

func (k *KeyedWindow) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.windows, key)
}
