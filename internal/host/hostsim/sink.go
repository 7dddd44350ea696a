package hostsim

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edirooss/replayd/internal/domain/frame"
	"github.com/edirooss/replayd/internal/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileSink is the simulator's muxer: a single file of length-prefixed frame
// records. Good enough to materialize exports on disk and assert on them in
// tests; a real host would hand us an encoder-backed muxer here.
type FileSink struct {
	log        *zap.Logger
	id         string
	path       string
	videoCodec string
	audioCodec string
	failStart  bool

	f           *os.File
	started     bool
	videoFrames int
	audioFrames int
}

var _ host.MuxSink = (*FileSink)(nil)

// CreateMuxer builds a FileSink for path. The file itself is created on
// Start, matching the host contract (create may succeed while start fails).
func (s *Sim) CreateMuxer(path, videoCodec, audioCodec string) (host.MuxSink, error) {
	if s.FailMuxCreate {
		return nil, fmt.Errorf("muxer unavailable")
	}
	if path == "" {
		return nil, fmt.Errorf("empty output path")
	}

	return &FileSink{
		log:        s.log.Named("sink"),
		id:         uuid.NewString(),
		path:       path,
		videoCodec: videoCodec,
		audioCodec: audioCodec,
		failStart:  s.FailMuxStart,
	}, nil
}

// Start opens the output file and writes the container header.
func (k *FileSink) Start() error {
	if k.started {
		return nil
	}
	if k.failStart {
		return fmt.Errorf("sink start refused")
	}

	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return fmt.Errorf("mkdir output dir: %w", err)
	}
	f, err := os.Create(k.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", k.path, err)
	}
	k.f = f

	header := fmt.Sprintf("RPLY:%s:%s\n", k.videoCodec, k.audioCodec)
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}

	k.started = true
	k.log.Debug("sink started", zap.String("id", k.id), zap.String("path", k.path))
	return nil
}

func (k *FileSink) FeedVideo(f *frame.VideoFrame) error {
	if !k.started {
		return fmt.Errorf("sink not started")
	}
	if f == nil {
		return fmt.Errorf("nil frame")
	}

	size := 0
	for _, p := range f.Planes {
		size += len(p)
	}
	if err := k.writeRecord('V', f.Timestamp, size); err != nil {
		return err
	}
	for _, p := range f.Planes {
		if _, err := k.f.Write(p); err != nil {
			return fmt.Errorf("write video payload: %w", err)
		}
	}
	k.videoFrames++
	return nil
}

func (k *FileSink) FeedAudio(f *frame.AudioFrame) error {
	if !k.started {
		return fmt.Errorf("sink not started")
	}
	if f == nil {
		return fmt.Errorf("nil frame")
	}

	size := 0
	for _, c := range f.Channels {
		size += len(c)
	}
	if err := k.writeRecord('A', f.Timestamp, size); err != nil {
		return err
	}
	for _, c := range f.Channels {
		if _, err := k.f.Write(c); err != nil {
			return fmt.Errorf("write audio payload: %w", err)
		}
	}
	k.audioFrames++
	return nil
}

func (k *FileSink) writeRecord(kind byte, ts uint64, size int) error {
	var hdr [13]byte
	hdr[0] = kind
	binary.LittleEndian.PutUint64(hdr[1:9], ts)
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(size))
	if _, err := k.f.Write(hdr[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	return nil
}

// Stop flushes and closes the output file.
func (k *FileSink) Stop() error {
	if !k.started {
		return nil
	}
	k.started = false

	err := k.f.Close()
	k.log.Debug("sink stopped",
		zap.String("id", k.id),
		zap.String("path", k.path),
		zap.Int("video_frames", k.videoFrames),
		zap.Int("audio_frames", k.audioFrames),
	)
	if err != nil {
		return fmt.Errorf("close %s: %w", k.path, err)
	}
	return nil
}
