package service

import (
	"strings"
	"testing"
	"time"

	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/domain/frame"
	"github.com/edirooss/replayd/internal/host"
	"github.com/edirooss/replayd/internal/host/hostsim"
	"github.com/edirooss/replayd/internal/repo"
	"go.uber.org/zap"
)

// Shared fixtures. The hostsim package doubles as the host for every service
// test; buffers are sized generously unless a test needs eviction.

var testSpec = repo.BufferSpec{Retention: time.Hour, VideoFPS: 1, AudioRate: 1}

func defaultSimSources() []hostsim.SourceConfig {
	return []hostsim.SourceConfig{
		{Name: "Main Scene", Kind: host.KindScene, Video: true, Audio: true},
		{Name: "Guest Camera", Kind: host.KindInput, Video: true, Audio: true},
		{Name: "Desk Mic", Kind: host.KindInput, Audio: true},
	}
}

type fixture struct {
	sim      *hostsim.Sim
	reg      *repo.Registry
	diag     *diag.Log
	settings *Settings
	capture  *CaptureService
	export   *ExportService
	replay   *ReplayService
}

func newFixture(t *testing.T, groups map[string][]string) *fixture {
	t.Helper()
	log := zap.NewNop()

	sim := hostsim.New(log, hostsim.Config{Sources: defaultSimSources()})
	reg := repo.NewRegistry(log, testSpec)
	dg := diag.New(log)
	settings := NewSettings(t.TempDir())

	export := NewExportService(log, sim, reg, dg, settings)
	// High fps keeps playback pacing near-instant in tests.
	replay := NewReplayService(log, sim, reg, dg, export, settings, 1000)
	capture := NewCaptureService(log, sim, reg, dg, groups)

	return &fixture{
		sim:      sim,
		reg:      reg,
		diag:     dg,
		settings: settings,
		capture:  capture,
		export:   export,
		replay:   replay,
	}
}

func simInput(name string) hostsim.SourceConfig {
	return hostsim.SourceConfig{Name: name, Kind: host.KindInput, Video: true, Audio: true}
}

func mkVideo(ts uint64) *frame.VideoFrame {
	return &frame.VideoFrame{Planes: [][]byte{{byte(ts)}}, Width: 1, Height: 1, Timestamp: ts}
}

func mkAudio(ts uint64) *frame.AudioFrame {
	return &frame.AudioFrame{Channels: [][]byte{{byte(ts)}}, Samples: 1, Timestamp: ts}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func diagContains(dg *diag.Log, substr string) bool {
	for _, e := range dg.Tail() {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
