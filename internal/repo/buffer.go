package repo

import (
	"time"

	"github.com/edirooss/replayd/internal/domain/frame"
)

// FrameBuffer is a fixed-capacity, time-windowed FIFO of frames for one
// source. Video and audio run as independent sequences with independently
// derived capacities; the buffer makes no attempt to keep the two streams
// aligned.
//
// Capacity is fixed at construction from retention × nominal rate. Changing
// the frame rate means rebuilding the buffer, not resizing in place.
//
// FrameBuffer is not internally synchronized. All access goes through the
// Registry, whose single mutex serializes pushes, snapshots and rebuilds
// (see Registry).
type FrameBuffer struct {
	video []*frame.VideoFrame
	audio []*frame.AudioFrame

	videoCap int
	audioCap int
}

// BufferSpec derives frame-count capacities for new buffers.
type BufferSpec struct {
	Retention time.Duration // retained time span (default 30s)
	VideoFPS  int           // nominal video frames per second
	AudioRate int           // nominal audio frames (chunks) per second
}

// NewFrameBuffer builds an empty buffer sized for spec's retention window.
// A capacity never goes below one frame.
func NewFrameBuffer(spec BufferSpec) *FrameBuffer {
	secs := spec.Retention.Seconds()

	videoCap := int(secs * float64(spec.VideoFPS))
	if videoCap < 1 {
		videoCap = 1
	}
	audioCap := int(secs * float64(spec.AudioRate))
	if audioCap < 1 {
		audioCap = 1
	}

	return &FrameBuffer{
		video:    make([]*frame.VideoFrame, 0, videoCap),
		audio:    make([]*frame.AudioFrame, 0, audioCap),
		videoCap: videoCap,
		audioCap: audioCap,
	}
}

// PushVideo appends f, evicting the oldest frame when at capacity.
// Nil frames are ignored (validation happens at the capture boundary).
func (b *FrameBuffer) PushVideo(f *frame.VideoFrame) {
	if f == nil {
		return
	}
	if len(b.video) >= b.videoCap {
		// Drop the oldest reference; clear the slot so the evicted frame
		// isn't pinned by the backing array.
		b.video[0] = nil
		b.video = append(b.video[:0], b.video[1:]...)
	}
	b.video = append(b.video, f)
}

// PushAudio appends f, evicting the oldest frame when at capacity.
func (b *FrameBuffer) PushAudio(f *frame.AudioFrame) {
	if f == nil {
		return
	}
	if len(b.audio) >= b.audioCap {
		b.audio[0] = nil
		b.audio = append(b.audio[:0], b.audio[1:]...)
	}
	b.audio = append(b.audio, f)
}

// SnapshotVideo returns an independent ordered copy of the current video
// sequence. The slice is caller-owned; frame data is shared by pointer, so a
// later eviction cannot invalidate the copy.
func (b *FrameBuffer) SnapshotVideo() []*frame.VideoFrame {
	out := make([]*frame.VideoFrame, len(b.video))
	copy(out, b.video)
	return out
}

// SnapshotAudio returns an independent ordered copy of the current audio
// sequence.
func (b *FrameBuffer) SnapshotAudio() []*frame.AudioFrame {
	out := make([]*frame.AudioFrame, len(b.audio))
	copy(out, b.audio)
	return out
}

// VideoLen reports the current number of buffered video frames.
func (b *FrameBuffer) VideoLen() int { return len(b.video) }

// AudioLen reports the current number of buffered audio frames.
func (b *FrameBuffer) AudioLen() int { return len(b.audio) }

// VideoCap reports the fixed video capacity.
func (b *FrameBuffer) VideoCap() int { return b.videoCap }

// AudioCap reports the fixed audio capacity.
func (b *FrameBuffer) AudioCap() int { return b.audioCap }
