package service

import (
	"fmt"
	"path/filepath"

	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/host"
	"github.com/edirooss/replayd/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Container/codec selection for exported files.
const (
	exportVideoCodec = "h264"
	exportAudioCodec = "aac"
	exportSuffix     = "_replay.mp4"
)

// Outcome is one source's result in a bulk export.
type Outcome struct {
	Source  string `json:"source"`
	Path    string `json:"path,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExportService materializes buffer snapshots into container files. Failures
// abort only the affected source; bulk runs accumulate per-source outcomes
// and never raise a single collective failure.
type ExportService struct {
	log      *zap.Logger
	sinks    host.SinkFactory
	reg      *repo.Registry
	diag     *diag.Log
	settings *Settings

	sg singleflight.Group // coalesces concurrent save-all runs per directory
}

// NewExportService wires the export engine.
func NewExportService(log *zap.Logger, sinks host.SinkFactory, reg *repo.Registry, dg *diag.Log, settings *Settings) *ExportService {
	return &ExportService{
		log:      log.Named("export"),
		sinks:    sinks,
		reg:      reg,
		diag:     dg,
		settings: settings,
	}
}

// Export writes snap to <dir>/<source>_replay.mp4 via a muxer sink: create,
// start, feed frames in index order (audio i paired with video i when both
// exist), stop. Returns the written path.
func (s *ExportService) Export(snap repo.Snapshot, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("export %q: %w: no output directory", snap.Source, ErrInvalidInput)
	}
	if len(snap.Video) == 0 {
		return "", fmt.Errorf("export %q: %w", snap.Source, ErrNoFrames)
	}

	path := filepath.Join(dir, snap.Source+exportSuffix)

	sink, err := s.sinks.CreateMuxer(path, exportVideoCodec, exportAudioCodec)
	if err != nil {
		return "", fmt.Errorf("export %q: %w: %v", snap.Source, ErrSinkCreate, err)
	}
	if err := sink.Start(); err != nil {
		return "", fmt.Errorf("export %q: %w: %v", snap.Source, ErrSinkStart, err)
	}

	for i, vf := range snap.Video {
		if i < len(snap.Audio) {
			if err := sink.FeedAudio(snap.Audio[i]); err != nil {
				s.log.Warn("audio feed failed", zap.String("source", snap.Source), zap.Int("index", i), zap.Error(err))
			}
		}
		if err := sink.FeedVideo(vf); err != nil {
			sink.Stop()
			return "", fmt.Errorf("export %q: feed video frame %d: %w", snap.Source, i, err)
		}
	}

	if err := sink.Stop(); err != nil {
		return "", fmt.Errorf("export %q: stop sink: %w", snap.Source, err)
	}

	s.log.Info("export written",
		zap.String("source", snap.Source),
		zap.String("path", path),
		zap.Int("video_frames", len(snap.Video)),
		zap.Int("audio_frames", len(snap.Audio)),
	)
	return path, nil
}

// SaveAll exports every registered buffer independently. Empty buffers are
// reported as skipped; a failing source never aborts its siblings. When dir
// is empty the configured output directory is used. Concurrent SaveAll calls
// for the same directory are coalesced into one run sharing its outcomes.
func (s *ExportService) SaveAll(dir string) []Outcome {
	if dir == "" {
		dir = s.settings.OutputDir()
	}

	v, _, shared := s.sg.Do("save-all:"+dir, func() (any, error) {
		return s.saveAll(dir), nil
	})
	if shared {
		s.log.Debug("save-all coalesced", zap.String("dir", dir))
	}
	return v.([]Outcome)
}

func (s *ExportService) saveAll(dir string) []Outcome {
	snaps := s.reg.Snapshots()

	outcomes := make([]Outcome, 0, len(snaps))
	for _, snap := range snaps {
		if len(snap.Video) == 0 {
			outcomes = append(outcomes, Outcome{Source: snap.Source, Skipped: true})
			continue
		}

		path, err := s.Export(snap, dir)
		if err != nil {
			s.diag.Append(fmt.Sprintf("save-all: %v", err))
			outcomes = append(outcomes, Outcome{Source: snap.Source, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{Source: snap.Source, Path: path})
	}

	s.log.Info("save-all finished", zap.String("dir", dir), zap.Int("sources", len(outcomes)))
	return outcomes
}
