package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReplayRejectsUnknownSource(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.replay.Request("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if sw := fx.sim.Switches(); len(sw) != 0 {
		t.Errorf("rejected request switched scenes: %v", sw)
	}
}

func TestReplayRejectsEmptyBuffer(t *testing.T) {
	fx := newFixture(t, nil)
	fx.reg.Ensure("Main Scene")

	_, err := fx.replay.Request("Main Scene")
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("err = %v, want ErrNoFrames", err)
	}
	if sw := fx.sim.Switches(); len(sw) != 0 {
		t.Errorf("rejected request switched scenes: %v", sw)
	}
}

func TestReplayRejectsEmptyName(t *testing.T) {
	fx := newFixture(t, nil)
	if _, err := fx.replay.Request(""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReplayPlaysExportsAndRestores(t *testing.T) {
	fx := newFixture(t, nil)

	for i := 1; i <= 5; i++ {
		fx.reg.PushVideo("Main Scene", mkVideo(uint64(i)))
	}
	for i := 1; i <= 3; i++ {
		fx.reg.PushAudio("Main Scene", mkAudio(uint64(i)))
	}

	job, err := fx.replay.Request("Main Scene")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if job == "" {
		t.Fatal("empty job id")
	}

	waitFor(t, 2*time.Second, "replay to finish", func() bool {
		return len(fx.sim.Switches()) >= 2
	})

	sw := fx.sim.Switches()
	if sw[0] != ReplaySceneName || sw[len(sw)-1] != "Main Scene" {
		t.Errorf("switch sequence = %v, want replay scene then origin", sw)
	}

	video, audio := fx.sim.OutputCounts(ReplaySourceName)
	if video != 5 || audio != 3 {
		t.Errorf("replay output = %d video / %d audio, want 5/3", video, audio)
	}

	// The export ran against the same snapshot before playback.
	path := filepath.Join(fx.settings.OutputDir(), "Main Scene_replay.mp4")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestReplayExportFailureDoesNotStopPlayback(t *testing.T) {
	fx := newFixture(t, nil)
	fx.sim.FailMuxCreate = true

	fx.reg.PushVideo("Main Scene", mkVideo(1))

	if _, err := fx.replay.Request("Main Scene"); err != nil {
		t.Fatalf("Request: %v", err)
	}

	waitFor(t, 2*time.Second, "replay to finish", func() bool {
		return len(fx.sim.Switches()) >= 2
	})

	if video, _ := fx.sim.OutputCounts(ReplaySourceName); video != 1 {
		t.Errorf("playback output = %d frames, want 1", video)
	}
	if !diagContains(fx.diag, "sink creation failed") {
		t.Error("missing diagnostic for failed export")
	}
}

// A detached worker reads its earlier snapshot while the producer keeps
// pushing; the final buffer reflects only producer activity.
func TestReplayDuringActiveCapture(t *testing.T) {
	fx := newFixture(t, nil)

	const before, during = 5, 200

	for i := 1; i <= before; i++ {
		fx.reg.PushVideo("Guest Camera", mkVideo(uint64(i)))
	}

	if _, err := fx.replay.Request("Guest Camera"); err != nil {
		t.Fatalf("Request: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := before + 1; i <= before+during; i++ {
			fx.reg.PushVideo("Guest Camera", mkVideo(uint64(i)))
		}
	}()

	<-done
	waitFor(t, 2*time.Second, "replay to finish", func() bool {
		return len(fx.sim.Switches()) >= 2
	})

	snap, _ := fx.reg.Snapshot("Guest Camera")
	if len(snap.Video) != before+during {
		t.Errorf("final buffer = %d frames, want %d", len(snap.Video), before+during)
	}
	// The worker played the snapshot taken at request time, not the newer
	// frames.
	if video, _ := fx.sim.OutputCounts(ReplaySourceName); video != before {
		t.Errorf("replay output = %d frames, want %d", video, before)
	}
}
