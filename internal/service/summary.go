package service

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edirooss/replayd/internal/repo"
	"go.uber.org/zap"
)

type SummaryOptions struct {
	// TTL controls how long we serve the in-memory snapshot.
	// 150–400ms works well for ~1s polling; default 250ms.
	TTL time.Duration
}

func (o *SummaryOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
}

// SummaryResult lets the handler set headers/telemetry.
type SummaryResult struct {
	Data        []repo.BufferSummary
	CacheHit    bool
	GeneratedAt time.Time // snapshot timestamp
}

// SummaryService serves a TTL-cached occupancy view of the registry so that
// UI polling doesn't contend on the registry lock at frame-delivery rates.
type SummaryService struct {
	log *zap.Logger
	reg *repo.Registry

	mu      sync.RWMutex
	cache   []repo.BufferSummary
	expires time.Time
	genAt   time.Time

	opts SummaryOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewSummaryService wires the registry and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewSummaryService(log *zap.Logger, reg *repo.Registry, opts SummaryOptions) *SummaryService {
	opts.setDefaults()

	return &SummaryService{
		log:  log.Named("summary"),
		reg:  reg,
		opts: opts,
		now:  time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Multiple concurrent refreshes are coalesced.
func (s *SummaryService) Get() SummaryResult {
	// Fast path: fresh cache
	s.mu.RLock()
	if s.cache != nil && s.now().Before(s.expires) {
		out := cloneSummaries(s.cache)
		genAt := s.genAt
		s.mu.RUnlock()
		return SummaryResult{Data: out, CacheHit: true, GeneratedAt: genAt}
	}
	s.mu.RUnlock()

	// Slow path: singleflight refresh
	v, _, _ := s.sg.Do("summary-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		s.mu.RLock()
		if s.cache != nil && s.now().Before(s.expires) {
			out := cloneSummaries(s.cache)
			genAt := s.genAt
			s.mu.RUnlock()
			return SummaryResult{Data: out, CacheHit: true, GeneratedAt: genAt}, nil
		}
		s.mu.RUnlock()

		start := s.now()
		data := s.reg.Summaries()

		// Publish new snapshot
		s.mu.Lock()
		s.cache = data
		s.expires = s.now().Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		return SummaryResult{Data: cloneSummaries(data), CacheHit: false, GeneratedAt: start}, nil
	})

	return v.(SummaryResult)
}

func cloneSummaries(in []repo.BufferSummary) []repo.BufferSummary {
	out := make([]repo.BufferSummary, len(in))
	copy(out, in)
	return out
}
