// Package frame holds the value types for captured media data.
//
// Two families of types exist:
//
//   - RawVideo / RawAudio: borrowed views over a producer-owned buffer. They
//     are valid only for the duration of a delivery callback; the producer
//     reuses the backing memory after the callback returns.
//   - VideoFrame / AudioFrame: owned, immutable copies stored in buffers.
//     Every plane/channel is independently allocated by CopyVideo/CopyAudio,
//     so a stored frame never aliases producer memory.
package frame

import "errors"

// ErrInvalidInput rejects nil, zero-dimension or zero-sample frames at the
// capture boundary.
var ErrInvalidInput = errors.New("invalid frame")

// RawVideo is a borrowed video frame as delivered by the host pipeline.
type RawVideo struct {
	Planes    [][]byte
	Width     int
	Height    int
	Format    string // pixel format tag, e.g. "I420"
	Timestamp uint64 // capture time, ns; monotone non-decreasing per source
}

// RawAudio is a borrowed audio frame as delivered by the host pipeline.
type RawAudio struct {
	Channels   [][]byte
	Samples    int
	SampleRate int
	Format     string // sample format tag, e.g. "FLTP"
	Timestamp  uint64
}

// VideoFrame is an owned, immutable copy of one video frame.
type VideoFrame struct {
	Planes    [][]byte
	Width     int
	Height    int
	Format    string
	Timestamp uint64
}

// AudioFrame is an owned, immutable copy of one audio frame.
type AudioFrame struct {
	Channels   [][]byte
	Samples    int
	SampleRate int
	Format     string
	Timestamp  uint64
}

// CopyVideo deep-copies a borrowed frame into an owned VideoFrame.
// Every plane gets its own allocation; the result holds no reference to raw.
func CopyVideo(raw *RawVideo) (*VideoFrame, error) {
	if raw == nil || raw.Width <= 0 || raw.Height <= 0 || len(raw.Planes) == 0 {
		return nil, ErrInvalidInput
	}

	planes := make([][]byte, len(raw.Planes))
	for i, p := range raw.Planes {
		planes[i] = append([]byte(nil), p...)
	}

	return &VideoFrame{
		Planes:    planes,
		Width:     raw.Width,
		Height:    raw.Height,
		Format:    raw.Format,
		Timestamp: raw.Timestamp,
	}, nil
}

// CopyAudio deep-copies a borrowed frame into an owned AudioFrame.
func CopyAudio(raw *RawAudio) (*AudioFrame, error) {
	if raw == nil || raw.Samples <= 0 || len(raw.Channels) == 0 {
		return nil, ErrInvalidInput
	}

	channels := make([][]byte, len(raw.Channels))
	for i, c := range raw.Channels {
		channels[i] = append([]byte(nil), c...)
	}

	return &AudioFrame{
		Channels:   channels,
		Samples:    raw.Samples,
		SampleRate: raw.SampleRate,
		Format:     raw.Format,
		Timestamp:  raw.Timestamp,
	}, nil
}
