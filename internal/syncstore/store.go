package syncstore

import (
	"context"
	"sync"
	"time"

	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/pkg/logger"
)

// DefaultPollInterval is the delay between polls while any record is
// processing.
const DefaultPollInterval = 2 * time.Second

// LoadState describes the outcome of the most recent fetch.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateError   LoadState = "error"
)

// Config tunes the store. The zero value uses DefaultPollInterval.
type Config struct {
	PollInterval time.Duration
}

// Snapshot is a point-in-time copy of the store. Polling reports whether
// another poll will follow the current collection.
type Snapshot struct {
	Records   []domain.Voicemail
	State     LoadState
	Err       error
	FetchedAt time.Time
	Fetching  bool
	Polling   bool
}

// ChangeHook runs after every fetch outcome. Hooks are never run concurrently
// with each other and must not call Fetch.
type ChangeHook func(snapshot Snapshot, changes []Change)

// Store is the client-side cache of the voicemail collection. It keeps at most
// one fetch in flight, coalesces invalidations that arrive during a fetch into
// a single follow-up, and polls only while some record is still processing.
type Store struct {
	api      ports.VoicemailLister
	interval time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	records   []domain.Voicemail
	state     LoadState
	lastErr   error
	fetchedAt time.Time
	detector  *changeDetector
	hooks     []ChangeHook

	inFlight bool
	pending  bool
	idle     chan struct{}

	started    bool
	pollCtx    context.Context
	pollCancel context.CancelFunc
	timer      *time.Timer
	tickSeq    uint64
}

// New creates a store that lists records through api.
func New(api ports.VoicemailLister, cfg Config, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Store{
		api:      api,
		interval: interval,
		logger:   log.Named("sync"),
		records:  []domain.Voicemail{},
		state:    StateLoading,
		detector: newChangeDetector(),
	}
}

// OnChange registers a hook run after every fetch.
func (s *Store) OnChange(hook ChangeHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Start enables polling and issues a fresh fetch. Polling requests are bound to
// ctx and to the next Stop.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.pollCtx, s.pollCancel = context.WithCancel(ctx)
	s.requestLocked()
}

// Stop cancels the scheduled poll and aborts a polling fetch in flight. The
// collection is kept.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.pollCancel()
	s.pollCtx, s.pollCancel = nil, nil
	s.stopTimerLocked()
}

// Invalidate requests a refetch. While a fetch is in flight any number of
// invalidations collapse into exactly one follow-up fetch.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.requestLocked()
	s.mu.Unlock()
}

// Fetch invalidates the collection and waits for the fetch cycle to settle.
// It returns the error of the last fetch in that cycle.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	idle := s.requestLocked()
	s.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// requestLocked starts a fetch cycle or marks a follow-up on the running one.
// The returned channel closes when the cycle finishes.
func (s *Store) requestLocked() <-chan struct{} {
	if s.inFlight {
		s.pending = true
		return s.idle
	}
	s.stopTimerLocked()
	s.inFlight = true
	s.idle = make(chan struct{})
	go s.cycle(s.idle)
	return s.idle
}

func (s *Store) cycle(idle chan struct{}) {
	for {
		s.mu.Lock()
		ctx := s.fetchContextLocked()
		s.mu.Unlock()

		records, err := s.api.List(ctx)

		snapshot, changes, ok := s.apply(ctx, records, err)
		if ok {
			s.notify(snapshot, changes)
		}

		s.mu.Lock()
		if s.pending {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.inFlight = false
		s.idle = nil
		s.scheduleLocked()
		close(idle)
		s.mu.Unlock()
		return
	}
}

func (s *Store) fetchContextLocked() context.Context {
	if s.started && s.pollCtx != nil {
		return s.pollCtx
	}
	return context.Background()
}

// apply installs a fetch result. It reports false when the fetch was cancelled
// by Stop, in which case nothing changes.
func (s *Store) apply(ctx context.Context, records []domain.Voicemail, err error) (Snapshot, []Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("fetch cancelled")
			return Snapshot{}, nil, false
		}
		if !domain.IsKind(err, domain.KindFetch) {
			err = domain.NewError(domain.KindFetch, "list voicemails", err)
		}
		s.state = StateError
		s.lastErr = err
		s.logger.Warn("fetch failed, keeping previous collection",
			logger.Error(err),
			logger.Int("records", len(s.records)),
		)
		return s.hookSnapshotLocked(), nil, true
	}

	merged := s.guardRegressions(records)
	changes := s.detector.detect(merged)
	s.records = merged
	s.state = StateReady
	s.lastErr = nil
	s.fetchedAt = time.Now()
	s.logger.Debug("fetch applied",
		logger.Int("records", len(merged)),
		logger.Int("changes", len(changes)),
		logger.Bool("processing", domain.AnyProcessing(merged)),
	)
	return s.hookSnapshotLocked(), changes, true
}

// guardRegressions keeps the known terminal record when a fetch reports it as
// processing again.
func (s *Store) guardRegressions(fetched []domain.Voicemail) []domain.Voicemail {
	terminal := make(map[string]domain.Voicemail, len(s.records))
	for _, record := range s.records {
		if !record.Processing() {
			terminal[record.ID] = record
		}
	}

	merged := make([]domain.Voicemail, 0, len(fetched))
	for _, record := range fetched {
		if known, ok := terminal[record.ID]; ok && record.Processing() {
			s.logger.Warn("ignoring status regression",
				logger.String("id", record.ID),
				logger.String("known_status", string(known.Status)),
			)
			record = known
		}
		merged = append(merged, record)
	}
	return merged
}

func (s *Store) notify(snapshot Snapshot, changes []Change) {
	s.mu.Lock()
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot, changes)
	}
}

// scheduleLocked arms a single poll when the store is started and the
// collection still has processing records.
func (s *Store) scheduleLocked() {
	if !s.started || !domain.AnyProcessing(s.records) {
		return
	}
	s.tickSeq++
	seq := s.tickSeq
	s.timer = time.AfterFunc(s.interval, func() { s.tick(seq) })
}

func (s *Store) tick(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.tickSeq || !s.started {
		return
	}
	s.timer = nil
	if s.inFlight {
		s.logger.Debug("poll dropped, fetch in flight")
		return
	}
	s.requestLocked()
}

func (s *Store) stopTimerLocked() {
	s.tickSeq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) snapshotLocked() Snapshot {
	records := make([]domain.Voicemail, len(s.records))
	copy(records, s.records)
	return Snapshot{
		Records:   records,
		State:     s.state,
		Err:       s.lastErr,
		FetchedAt: s.fetchedAt,
		Fetching:  s.inFlight,
		Polling:   s.started && domain.AnyProcessing(s.records),
	}
}

// hookSnapshotLocked is the snapshot handed to hooks from inside a cycle; the
// fetch that produced it has already landed.
func (s *Store) hookSnapshotLocked() Snapshot {
	snapshot := s.snapshotLocked()
	snapshot.Fetching = s.pending
	return snapshot
}
