// Package hostsim is an in-process stand-in for the host media pipeline.
// It emits synthetic frames for a configured set of sources, keeps a minimal
// scene table, and muxes to trivial length-prefixed files. replayd runs
// against it in -simulate mode; the service tests use it as their host
// double.
//
// The simulator honors the borrowed-frame contract: each source reuses one
// scratch raw frame across deliveries, so a subscriber that retains the
// pointer past the callback will observe corruption, exactly like a real
// pipeline.
package hostsim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edirooss/replayd/internal/domain/frame"
	"github.com/edirooss/replayd/internal/host"
	"go.uber.org/zap"
)

// SourceConfig declares one simulated source.
type SourceConfig struct {
	Name  string
	Kind  host.SourceKind
	Video bool
	Audio bool
}

// Config controls the simulated pipeline.
type Config struct {
	Sources   []SourceConfig
	VideoFPS  int // synthetic video rate (default 30)
	AudioRate int // synthetic audio chunk rate (default 50)
	Width     int // default 320
	Height    int // default 180
}

func (c *Config) setDefaults() {
	if c.VideoFPS <= 0 {
		c.VideoFPS = 30
	}
	if c.AudioRate <= 0 {
		c.AudioRate = 50
	}
	if c.Width <= 0 {
		c.Width = 320
	}
	if c.Height <= 0 {
		c.Height = 180
	}
}

type simSource struct {
	info host.SourceInfo
	seq  uint64

	// scratch buffers reused across emissions (borrowed-frame contract)
	rawVideo frame.RawVideo
	rawAudio frame.RawAudio
}

// Sim implements host.Host over an in-memory world.
type Sim struct {
	log *zap.Logger
	cfg Config

	// Failure injection for sink paths.
	FailMuxCreate bool
	FailMuxStart  bool

	mu        sync.Mutex
	sources   map[string]*simSource
	scenes    map[string][]string // scene name -> source names
	current   string
	switches  []string
	videoSubs map[string]host.VideoFunc
	audioSubs map[string]host.AudioFunc
	outVideo  map[string]int
	outAudio  map[string]int

	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

var _ host.Host = (*Sim)(nil)

// New builds a simulator for cfg's sources. Scene-kind sources get an entry
// in the scene table; the first scene becomes the active one.
func New(log *zap.Logger, cfg Config) *Sim {
	cfg.setDefaults()

	s := &Sim{
		log:       log.Named("hostsim"),
		cfg:       cfg,
		sources:   make(map[string]*simSource),
		scenes:    make(map[string][]string),
		videoSubs: make(map[string]host.VideoFunc),
		audioSubs: make(map[string]host.AudioFunc),
		outVideo:  make(map[string]int),
		outAudio:  make(map[string]int),
	}

	for _, sc := range cfg.Sources {
		s.addSource(sc)
		if sc.Kind == host.KindScene && s.current == "" {
			s.current = sc.Name
		}
	}
	return s
}

func (s *Sim) addSource(sc SourceConfig) {
	src := &simSource{
		info: host.SourceInfo{
			Name:     sc.Name,
			Kind:     sc.Kind,
			HasVideo: sc.Video,
			HasAudio: sc.Audio,
		},
	}
	src.rawVideo = frame.RawVideo{
		Planes: [][]byte{make([]byte, s.cfg.Width*s.cfg.Height)},
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		Format: "I420",
	}
	src.rawAudio = frame.RawAudio{
		Channels:   [][]byte{make([]byte, 1024), make([]byte, 1024)},
		Samples:    256,
		SampleRate: 48000,
		Format:     "FLTP",
	}

	s.sources[sc.Name] = src
	if sc.Kind == host.KindScene {
		s.scenes[sc.Name] = nil
	}
}

// --- host.Enumerator ---

// EachSource visits the simulated sources in name order.
func (s *Sim) EachSource(visit func(host.SourceInfo)) {
	s.mu.Lock()
	infos := make([]host.SourceInfo, 0, len(s.sources))
	for _, src := range s.sources {
		infos = append(infos, src.info)
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	for _, info := range infos {
		visit(info)
	}
}

// --- host.FrameTap ---

func (s *Sim) SubscribeVideo(source string, fn host.VideoFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[source]
	if !ok {
		return fmt.Errorf("source not found: %s", source)
	}
	if !src.info.HasVideo {
		return fmt.Errorf("source has no video: %s", source)
	}
	s.videoSubs[source] = fn
	return nil
}

func (s *Sim) SubscribeAudio(source string, fn host.AudioFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[source]
	if !ok {
		return fmt.Errorf("source not found: %s", source)
	}
	if !src.info.HasAudio {
		return fmt.Errorf("source has no audio: %s", source)
	}
	s.audioSubs[source] = fn
	return nil
}

func (s *Sim) UnsubscribeVideo(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videoSubs, source)
	return nil
}

func (s *Sim) UnsubscribeAudio(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audioSubs, source)
	return nil
}

// EmitVideo pushes one synthetic video frame through source's subscription,
// reusing the source's scratch buffer. Timestamps advance by the nominal
// frame interval per emission. Tests drive this directly; Start drives it on
// a ticker.
func (s *Sim) EmitVideo(source string) {
	s.mu.Lock()
	src, ok := s.sources[source]
	fn := s.videoSubs[source]
	if !ok || fn == nil {
		s.mu.Unlock()
		return
	}

	src.seq++
	raw := &src.rawVideo
	raw.Timestamp = src.seq * uint64(time.Second/time.Duration(s.cfg.VideoFPS))
	for i := range raw.Planes[0] {
		raw.Planes[0][i] = byte(src.seq) // scribble so stale references show
	}
	s.mu.Unlock()

	fn(source, raw)
}

// EmitAudio pushes one synthetic audio frame through source's subscription.
func (s *Sim) EmitAudio(source string) {
	s.mu.Lock()
	src, ok := s.sources[source]
	fn := s.audioSubs[source]
	if !ok || fn == nil {
		s.mu.Unlock()
		return
	}

	src.seq++
	raw := &src.rawAudio
	raw.Timestamp = src.seq * uint64(time.Second/time.Duration(s.cfg.AudioRate))
	for i := range raw.Channels[0] {
		raw.Channels[0][i] = byte(src.seq)
	}
	s.mu.Unlock()

	fn(source, raw)
}

// Start launches the synthetic producers. Each subscribed source emits video
// at VideoFPS and audio at AudioRate until Stop.
func (s *Sim) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.wg.Add(1)
		go s.produce(name)
	}
	s.log.Info("synthetic producers started", zap.Int("sources", len(names)))
}

func (s *Sim) produce(source string) {
	defer s.wg.Done()

	video := time.NewTicker(time.Second / time.Duration(s.cfg.VideoFPS))
	audio := time.NewTicker(time.Second / time.Duration(s.cfg.AudioRate))
	defer video.Stop()
	defer audio.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-video.C:
			s.EmitVideo(source)
		case <-audio.C:
			s.EmitAudio(source)
		}
	}
}

// Stop halts the synthetic producers and waits for them to exit.
func (s *Sim) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("synthetic producers stopped")
}

// --- host.SceneControl ---

func (s *Sim) CurrentScene() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return "", fmt.Errorf("no active scene")
	}
	return s.current, nil
}

func (s *Sim) SetCurrentScene(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scenes[name]; !ok {
		return fmt.Errorf("scene not found: %s", name)
	}
	s.current = name
	s.switches = append(s.switches, name)
	return nil
}

func (s *Sim) EnsureScene(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scenes[name]; ok {
		return nil
	}
	s.scenes[name] = nil
	if _, ok := s.sources[name]; !ok {
		s.sources[name] = &simSource{info: host.SourceInfo{Name: name, Kind: host.KindScene}}
	}
	return nil
}

func (s *Sim) EnsureSceneSource(scene, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.scenes[scene]
	if !ok {
		return fmt.Errorf("scene not found: %s", scene)
	}
	for _, m := range members {
		if m == source {
			return nil
		}
	}
	if _, ok := s.sources[source]; !ok {
		s.sources[source] = &simSource{info: host.SourceInfo{Name: source, Kind: host.KindInput, HasVideo: true, HasAudio: true}}
	}
	s.scenes[scene] = append(members, source)
	return nil
}

func (s *Sim) OutputVideo(source string, f *frame.VideoFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[source]; !ok {
		return fmt.Errorf("source not found: %s", source)
	}
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	s.outVideo[source]++
	return nil
}

func (s *Sim) OutputAudio(source string, f *frame.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[source]; !ok {
		return fmt.Errorf("source not found: %s", source)
	}
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	s.outAudio[source]++
	return nil
}

// --- test/observation accessors ---

// Switches returns the scene names activated so far, in order.
func (s *Sim) Switches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.switches...)
}

// OutputCounts reports how many video/audio frames were delivered to the
// named output source.
func (s *Sim) OutputCounts(source string) (video, audio int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outVideo[source], s.outAudio[source]
}

// RemoveSource drops a source (and its scene entry) to model a structural
// change in the host.
func (s *Sim) RemoveSource(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sources, name)
	delete(s.scenes, name)
	delete(s.videoSubs, name)
	delete(s.audioSubs, name)
	if s.current == name {
		s.current = ""
	}
}

// AddSource registers a new source at runtime.
func (s *Sim) AddSource(sc SourceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addSource(sc)
}
