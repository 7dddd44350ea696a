// Package host defines the collaborator interfaces the core needs from the
// surrounding media pipeline: source discovery, frame delivery, scene control
// and muxing sinks. The pipeline itself (frame production, encoding, scene
// ownership) lives outside this process boundary; hostsim provides an
// in-process implementation for development and tests.
package host

import "github.com/edirooss/replayd/internal/domain/frame"

// SourceKind discriminates scene sources from plain inputs.
type SourceKind string

const (
	KindScene SourceKind = "scene"
	KindInput SourceKind = "input"
)

// SourceInfo describes one host source as seen during enumeration.
type SourceInfo struct {
	Name     string
	Kind     SourceKind
	HasVideo bool
	HasAudio bool
}

// VideoFunc receives a borrowed video frame. The frame is valid only for the
// duration of the call; implementations must copy what they keep.
type VideoFunc func(source string, raw *frame.RawVideo)

// AudioFunc receives a borrowed audio frame under the same lifetime contract
// as VideoFunc.
type AudioFunc func(source string, raw *frame.RawAudio)

// Enumerator walks the host's known sources.
type Enumerator interface {
	// EachSource invokes visit once per known source.
	EachSource(visit func(SourceInfo))
}

// FrameTap manages per-source frame delivery subscriptions. Callbacks run on
// the host's media threads and must not block.
type FrameTap interface {
	SubscribeVideo(source string, fn VideoFunc) error
	SubscribeAudio(source string, fn AudioFunc) error
	UnsubscribeVideo(source string) error
	UnsubscribeAudio(source string) error
}

// SceneControl drives the host's scene graph and feeds frames into a named
// output source for on-screen playback.
type SceneControl interface {
	CurrentScene() (string, error)
	SetCurrentScene(name string) error

	// EnsureScene and EnsureSceneSource are idempotent: an existing
	// scene/source is reused, never duplicated.
	EnsureScene(name string) error
	EnsureSceneSource(scene, source string) error

	OutputVideo(source string, f *frame.VideoFrame) error
	OutputAudio(source string, f *frame.AudioFrame) error
}

// MuxSink writes frames into a single-file container.
type MuxSink interface {
	Start() error
	FeedVideo(f *frame.VideoFrame) error
	FeedAudio(f *frame.AudioFrame) error
	Stop() error
}

// SinkFactory creates muxing sinks.
type SinkFactory interface {
	CreateMuxer(path, videoCodec, audioCodec string) (MuxSink, error)
}

// Host aggregates everything the core consumes from the media pipeline.
type Host interface {
	Enumerator
	FrameTap
	SceneControl
	SinkFactory
}
