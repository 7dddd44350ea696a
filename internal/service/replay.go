package service

import (
	"fmt"
	"time"

	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/host"
	"github.com/edirooss/replayd/internal/repo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Names of the scene/source the replay pipeline materializes on demand.
const (
	ReplaySceneName  = "Replay Scene"
	ReplaySourceName = "ReplaySource"
)

// -----------------------------------------------------------------------------
// ReplayService
// -----------------------------------------------------------------------------
//
// Per request (keyed by source name):
//   1. Validate: registry entry with a non-empty video snapshot, else reject
//      with no side effects.
//   2. Prepare sink: ensure replay scene + output source (idempotent).
//   3. Remember origin: current scene, restored afterward.
//   4. Switch to the replay scene.
//   5. Export the snapshot to file, then stream it into the replay source at
//      the nominal frame cadence (audio i paired with video i when present).
//   6. Restore the origin scene, even if playback partially failed.
//
// Steps 2–6 run on a detached worker; Request returns once validation
// passes. Worker failures land in diagnostics only (fire and forget). A later
// disable or rebuild does not interrupt a running worker: it plays its
// already-taken snapshot, and only its scene re-resolution can fail (logged,
// not fatal).

// ReplayService drives buffer playback into the replay scene.
type ReplayService struct {
	log      *zap.Logger
	host     host.Host
	reg      *repo.Registry
	diag     *diag.Log
	exports  *ExportService
	settings *Settings

	frameInterval time.Duration
}

// NewReplayService wires the replay engine. videoFPS sets the playback
// cadence (fixed sleep per frame); non-positive values default to 30.
func NewReplayService(log *zap.Logger, h host.Host, reg *repo.Registry, dg *diag.Log, exports *ExportService, settings *Settings, videoFPS int) *ReplayService {
	if videoFPS <= 0 {
		videoFPS = 30
	}
	return &ReplayService{
		log:           log.Named("replay"),
		host:          h,
		reg:           reg,
		diag:          dg,
		exports:       exports,
		settings:      settings,
		frameInterval: time.Second / time.Duration(videoFPS),
	}
}

// Request validates and, when accepted, launches a detached replay worker.
// Returns the worker's job id. Rejections (ErrInvalidInput, ErrNotFound,
// ErrNoFrames) have no side effects, in particular no scene switch.
func (s *ReplayService) Request(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("replay: %w: no scene name provided", ErrInvalidInput)
	}

	snap, ok := s.reg.Snapshot(source)
	if !ok {
		return "", fmt.Errorf("replay %q: %w", source, ErrNotFound)
	}
	if len(snap.Video) == 0 {
		return "", fmt.Errorf("replay %q: %w", source, ErrNoFrames)
	}

	job := uuid.NewString()
	s.log.Info("replay accepted",
		zap.String("job", job),
		zap.String("source", source),
		zap.Int("video_frames", len(snap.Video)),
		zap.Int("audio_frames", len(snap.Audio)),
	)

	go s.run(job, snap)
	return job, nil
}

func (s *ReplayService) run(job string, snap repo.Snapshot) {
	log := s.log.With(zap.String("job", job), zap.String("source", snap.Source))

	if err := s.host.EnsureScene(ReplaySceneName); err != nil {
		s.diag.Append(fmt.Sprintf("failed to create replay scene: %v", err))
		return
	}
	if err := s.host.EnsureSceneSource(ReplaySceneName, ReplaySourceName); err != nil {
		s.diag.Append(fmt.Sprintf("failed to create replay source: %v", err))
		return
	}

	prev, err := s.host.CurrentScene()
	if err != nil {
		// No origin to restore; playback still proceeds.
		log.Warn("current scene unresolved", zap.Error(err))
		prev = ""
	}

	if err := s.host.SetCurrentScene(ReplaySceneName); err != nil {
		s.diag.Append(fmt.Sprintf("scene not found: %s", ReplaySceneName))
		return
	}
	defer func() {
		if prev == "" {
			return
		}
		if err := s.host.SetCurrentScene(prev); err != nil {
			// Origin may have vanished while we were detached.
			s.diag.Append(fmt.Sprintf("scene not found: %s", prev))
		}
	}()

	// Export first, then play, both against the same snapshot.
	if path, err := s.exports.Export(snap, s.settings.OutputDir()); err != nil {
		s.diag.Append(fmt.Sprintf("save during replay of %q failed: %v", snap.Source, err))
	} else {
		log.Info("replay saved", zap.String("path", path))
	}

	s.play(log, snap)
	log.Info("replay finished")
}

// play streams the snapshot into the replay source in original order, one
// fixed sleep per step. Index pairing approximates A/V alignment; no
// timestamp matching is attempted.
func (s *ReplayService) play(log *zap.Logger, snap repo.Snapshot) {
	for i, vf := range snap.Video {
		if i < len(snap.Audio) {
			if err := s.host.OutputAudio(ReplaySourceName, snap.Audio[i]); err != nil {
				log.Warn("audio output failed", zap.Int("index", i), zap.Error(err))
			}
		}
		if err := s.host.OutputVideo(ReplaySourceName, vf); err != nil {
			s.diag.Append(fmt.Sprintf("replay source not found: %v", err))
			return
		}
		time.Sleep(s.frameInterval)
	}
}
