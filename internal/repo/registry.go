// Package repo is the in-memory store for per-source frame buffers.
//
// The Registry is the shared resource between the producer callbacks and any
// number of detached replay/export workers. One mutex serializes every
// mutation and every read that iterates buffer contents; workers then operate
// on already-taken snapshots outside the lock, so a long replay never blocks
// capture.
package repo

import (
	"sort"
	"sync"

	"github.com/edirooss/replayd/internal/domain/frame"
	"go.uber.org/zap"
)

// Snapshot is a point-in-time, independently owned copy of one buffer's
// contents. Frame data is shared by pointer with the live buffer; the
// sequences themselves are caller-owned.
type Snapshot struct {
	Source string
	Video  []*frame.VideoFrame
	Audio  []*frame.AudioFrame
}

// BufferSummary is a cheap occupancy view of one buffer.
type BufferSummary struct {
	Source        string `json:"source"`
	VideoFrames   int    `json:"video_frames"`
	AudioFrames   int    `json:"audio_frames"`
	VideoCapacity int    `json:"video_capacity"`
	AudioCapacity int    `json:"audio_capacity"`
}

// Registry maps source names to their frame buffers and owns their lifecycle.
//
// Keys are the source's display name at registration time. A renamed source
// orphans its old entry until the next structural rebuild; this mirrors the
// host pipeline's behavior and is a known limitation, not reconciled here.
type Registry struct {
	log  *zap.Logger
	spec BufferSpec

	mu      sync.Mutex
	buffers map[string]*FrameBuffer
}

// NewRegistry builds an empty registry; spec sizes every buffer it creates.
func NewRegistry(log *zap.Logger, spec BufferSpec) *Registry {
	return &Registry{
		log:     log.Named("registry"),
		spec:    spec,
		buffers: make(map[string]*FrameBuffer),
	}
}

// Rebuild atomically replaces the whole registry with fresh empty buffers for
// names. Buffers absent from names are dropped and their frames released.
func (r *Registry) Rebuild(names []string) {
	next := make(map[string]*FrameBuffer, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		next[name] = NewFrameBuffer(r.spec)
	}

	r.mu.Lock()
	r.buffers = next
	r.mu.Unlock()

	r.log.Info("registry rebuilt", zap.Int("buffers", len(next)))
}

// Ensure creates an empty buffer for name if absent. Used for late-discovered
// sources so no capture frame is dropped due to a missing entry.
func (r *Registry) Ensure(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.buffers[name]; !ok {
		r.buffers[name] = NewFrameBuffer(r.spec)
	}
	r.mu.Unlock()
}

// PushVideo stores f in source's buffer, creating the buffer on first contact.
func (r *Registry) PushVideo(source string, f *frame.VideoFrame) {
	if source == "" || f == nil {
		return
	}
	r.mu.Lock()
	b, ok := r.buffers[source]
	if !ok {
		b = NewFrameBuffer(r.spec)
		r.buffers[source] = b
	}
	b.PushVideo(f)
	r.mu.Unlock()
}

// PushAudio stores f in source's buffer, creating the buffer on first contact.
func (r *Registry) PushAudio(source string, f *frame.AudioFrame) {
	if source == "" || f == nil {
		return
	}
	r.mu.Lock()
	b, ok := r.buffers[source]
	if !ok {
		b = NewFrameBuffer(r.spec)
		r.buffers[source] = b
	}
	b.PushAudio(f)
	r.mu.Unlock()
}

// Snapshot copies source's buffer contents under the registry lock.
// The second result is false when the source has no buffer; absence means
// "not yet monitored", not an error.
func (r *Registry) Snapshot(source string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buffers[source]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Source: source,
		Video:  b.SnapshotVideo(),
		Audio:  b.SnapshotAudio(),
	}, true
}

// Snapshots copies every buffer, sorted by source name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.buffers))
	for name, b := range r.buffers {
		out = append(out, Snapshot{
			Source: name,
			Video:  b.SnapshotVideo(),
			Audio:  b.SnapshotAudio(),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Summaries reports occupancy for every buffer, sorted by source name.
func (r *Registry) Summaries() []BufferSummary {
	r.mu.Lock()
	out := make([]BufferSummary, 0, len(r.buffers))
	for name, b := range r.buffers {
		out = append(out, BufferSummary{
			Source:        name,
			VideoFrames:   b.VideoLen(),
			AudioFrames:   b.AudioLen(),
			VideoCapacity: b.VideoCap(),
			AudioCapacity: b.AudioCap(),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.buffers))
	for name := range r.buffers {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len reports the number of registered buffers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// ClearAll drops every buffer. Used on global disable/unload; callers must
// have unsubscribed producers first so no write races the clear.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.buffers = make(map[string]*FrameBuffer)
	r.mu.Unlock()

	r.log.Info("registry cleared")
}
