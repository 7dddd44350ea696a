package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/domain/frame"
	"github.com/edirooss/replayd/internal/host"
	"github.com/edirooss/replayd/internal/repo"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// CaptureService
// -----------------------------------------------------------------------------
//
// Producer side of the buffer pipeline.
//
// Contract
//   • Enable: enumerate sources, rebuild the registry, subscribe per eligible
//     source. Re-running Enable is the resync path for structural changes.
//   • Ingress: every delivered raw frame is deep-copied before it reaches the
//     registry. The host reuses the delivery buffer after the callback
//     returns; a borrowed pointer must never outlive the callback.
//   • Disable: unsubscribe everything FIRST, then clear the registry, so no
//     producer write can race the clear.
//   • Invalid frames and copy failures are dropped locally with a diagnostic;
//     the stream continues.
//
// Source selection
//   • An active group restricts monitoring to its member names. Unknown or
//     empty group falls back to all video/audio-capable sources (with a
//     diagnostic for the unknown case).
//   • The replay scene and replay source are always excluded to avoid
//     feedback through the playback path.

// CaptureService binds host frame delivery to the buffer registry.
type CaptureService struct {
	log    *zap.Logger
	host   host.Host
	reg    *repo.Registry
	diag   *diag.Log
	groups map[string][]string // group name -> member source names

	mu        sync.Mutex
	enabled   bool
	group     string
	videoSubs []string
	audioSubs []string
}

// NewCaptureService wires the capture binding. groups may be nil.
func NewCaptureService(log *zap.Logger, h host.Host, reg *repo.Registry, dg *diag.Log, groups map[string][]string) *CaptureService {
	return &CaptureService{
		log:    log.Named("capture"),
		host:   h,
		reg:    reg,
		diag:   dg,
		groups: groups,
	}
}

// Enable starts capture: rebuilds the registry for the monitored source set
// and subscribes to frame delivery. Idempotent; re-running resyncs.
func (s *CaptureService) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = true
	s.resyncLocked()
}

// Disable stops capture and releases every buffer. Unsubscribe happens before
// the clear by construction.
func (s *CaptureService) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unsubscribeAllLocked()
	s.enabled = false
	s.reg.ClearAll()
	s.log.Info("capture disabled")
}

// Resync re-runs the enable sequence after a structural change (source
// added/removed, group membership changed). No-op while disabled.
func (s *CaptureService) Resync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	s.resyncLocked()
}

// SetActiveGroup switches the monitored group and resyncs when enabled.
func (s *CaptureService) SetActiveGroup(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.group = name
	if s.enabled {
		s.resyncLocked()
	}
}

// Enabled reports the global capture flag.
func (s *CaptureService) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *CaptureService) resyncLocked() {
	s.unsubscribeAllLocked()

	targets := s.monitoredLocked()

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	s.reg.Rebuild(names)

	for _, t := range targets {
		if t.HasVideo {
			if err := s.host.SubscribeVideo(t.Name, s.onVideo); err != nil {
				s.diag.Append(fmt.Sprintf("video subscription failed for %q: %v", t.Name, err))
			} else {
				s.videoSubs = append(s.videoSubs, t.Name)
			}
		}
		if t.HasAudio {
			if err := s.host.SubscribeAudio(t.Name, s.onAudio); err != nil {
				s.diag.Append(fmt.Sprintf("audio subscription failed for %q: %v", t.Name, err))
			} else {
				s.audioSubs = append(s.audioSubs, t.Name)
			}
		}
	}

	s.log.Info("capture synced",
		zap.String("group", s.group),
		zap.Int("sources", len(targets)),
		zap.Int("video_subs", len(s.videoSubs)),
		zap.Int("audio_subs", len(s.audioSubs)),
	)
}

func (s *CaptureService) unsubscribeAllLocked() {
	for _, name := range s.videoSubs {
		if err := s.host.UnsubscribeVideo(name); err != nil {
			s.log.Warn("video unsubscribe failed", zap.String("source", name), zap.Error(err))
		}
	}
	for _, name := range s.audioSubs {
		if err := s.host.UnsubscribeAudio(name); err != nil {
			s.log.Warn("audio unsubscribe failed", zap.String("source", name), zap.Error(err))
		}
	}
	s.videoSubs = nil
	s.audioSubs = nil
}

// monitoredLocked resolves the current monitored source set.
func (s *CaptureService) monitoredLocked() []host.SourceInfo {
	byName := make(map[string]host.SourceInfo)
	s.host.EachSource(func(info host.SourceInfo) {
		byName[info.Name] = info
	})

	if s.group != "" {
		members, ok := s.groups[s.group]
		if !ok {
			s.diag.Append(fmt.Sprintf("group not found: %s; monitoring all sources", s.group))
		} else {
			out := make([]host.SourceInfo, 0, len(members))
			for _, name := range members {
				if name == ReplaySceneName || name == ReplaySourceName {
					continue
				}
				if info, ok := byName[name]; ok {
					out = append(out, info)
				} else {
					// Buffer the name anyway; the source may appear later.
					out = append(out, host.SourceInfo{Name: name})
				}
			}
			return out
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]host.SourceInfo, 0, len(names))
	for _, name := range names {
		info := byName[name]
		if !info.HasVideo && !info.HasAudio {
			continue
		}
		if name == ReplaySceneName || name == ReplaySourceName {
			continue
		}
		out = append(out, info)
	}
	return out
}

// onVideo is the video ingress callback. Runs on a host media thread; copies
// and returns, never blocks on anything but the registry mutex.
func (s *CaptureService) onVideo(source string, raw *frame.RawVideo) {
	f, err := frame.CopyVideo(raw)
	if err != nil {
		s.diag.Append(fmt.Sprintf("dropped video frame from %q: %v", source, err))
		return
	}
	s.reg.PushVideo(source, f)
}

// onAudio is the audio ingress callback.
func (s *CaptureService) onAudio(source string, raw *frame.RawAudio) {
	f, err := frame.CopyAudio(raw)
	if err != nil {
		s.diag.Append(fmt.Sprintf("dropped audio frame from %q: %v", source, err))
		return
	}
	s.reg.PushAudio(source, f)
}
