// Package synchronizer detects ban records that still have to be published
// to a platform by re-reading the store on a fixed cadence.
//
// Detection is level-based: every tick re-derives what is missing from the
// current rows, so a record keeps being reported until the consumer's own
// write (attaching or clearing a post id) makes it ineligible. Consumers
// must tolerate duplicate events.
package synchronizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bansync/internal/crash"
	"bansync/internal/logger"
	"bansync/internal/models"
	"bansync/internal/storage"
)

// Strategy selects how a tick finds candidate records.
type Strategy string

const (
	// StrategyPredicate asks the store for each problem class directly.
	StrategyPredicate Strategy = "predicate"
	// StrategyCursor reads every record newer than the cursor and classifies
	// it locally.
	StrategyCursor Strategy = "cursor"
)

// ParseStrategy validates a strategy name from config.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPredicate, StrategyCursor:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown sync strategy %q", s)
}

// Store is the read side of the ban record store used by the poll loop.
type Store interface {
	LatestFetcher
	GetNewerThan(ctx context.Context, id uint) ([]*models.BanRecord, error)
	GetNeedingPost(ctx context.Context, p models.Platform) ([]*models.BanRecord, error)
	GetNeedingStatusUpdate(ctx context.Context, p models.Platform) ([]*models.BanRecord, error)
}

// Event reports that Record needs Class handled on Platform. Record is a
// snapshot taken during the tick.
type Event struct {
	Record   *models.BanRecord
	Class    ProblemClass
	Platform models.Platform
}

type Options struct {
	Strategy     Strategy
	Interval     time.Duration
	QueryTimeout time.Duration
	Buffer       int
}

const defaultInterval = 5 * time.Second

// Synchronizer runs the poll loop for one platform.
type Synchronizer struct {
	store    Store
	platform models.Platform
	cursor   *Cursor
	opts     Options
}

// New creates a synchronizer for platform p. cursor is only consulted by
// StrategyCursor; when nil, a cursor that loads its baseline from store is
// created.
func New(store Store, p models.Platform, cursor *Cursor, opts Options) *Synchronizer {
	if opts.Strategy == "" {
		opts.Strategy = StrategyPredicate
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if cursor == nil && opts.Strategy == StrategyCursor {
		cursor = NewCursor(store)
	}
	return &Synchronizer{
		store:    store,
		platform: p,
		cursor:   cursor,
		opts:     opts,
	}
}

func (s *Synchronizer) Platform() models.Platform {
	return s.platform
}

// Events starts the poll loop in its own goroutine and returns the channel
// it publishes to. The channel is closed once ctx is cancelled.
func (s *Synchronizer) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, s.opts.Buffer)
	crash.SafeGoroutine("sync-"+string(s.platform), func() {
		defer close(out)
		_ = s.Run(ctx, out)
	})
	return out
}

// Run ticks until ctx is cancelled, sending events to out. A failed tick is
// logged and retried after the next interval. Run always returns ctx.Err().
func (s *Synchronizer) Run(ctx context.Context, out chan<- Event) error {
	logger.Infof("Starting %s synchronizer: strategy=%s interval=%s", s.platform, s.opts.Strategy, s.opts.Interval)

	send := func(ev Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(s.opts.Interval)
	defer timer.Stop()

	for {
		if err := s.Tick(ctx, send); err != nil && ctx.Err() == nil {
			logger.Warningf("%s sync tick failed, retrying in %s: %v", s.platform, s.opts.Interval, err)
		}

		timer.Reset(s.opts.Interval)
		select {
		case <-ctx.Done():
			logger.Infof("%s synchronizer stopped", s.platform)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick performs one scan and hands every event to emit in ascending record
// id order. Emission stops at the first emit error.
func (s *Synchronizer) Tick(ctx context.Context, emit func(Event) error) error {
	start := time.Now()
	var err error
	switch s.opts.Strategy {
	case StrategyCursor:
		err = s.cursorTick(ctx, emit)
	default:
		err = s.predicateTick(ctx, emit)
	}
	tickDuration.WithLabelValues(string(s.platform)).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	ticksTotal.WithLabelValues(string(s.platform), string(s.opts.Strategy), result).Inc()
	return err
}

func (s *Synchronizer) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = storage.WithCaller(ctx, "sync-"+string(s.platform))
	if s.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Synchronizer) predicateTick(ctx context.Context, emit func(Event) error) error {
	qctx, cancel := s.queryContext(ctx)
	needPost, err := s.store.GetNeedingPost(qctx, s.platform)
	if err != nil {
		cancel()
		return fmt.Errorf("query records needing post: %w", err)
	}
	needUpdate, err := s.store.GetNeedingStatusUpdate(qctx, s.platform)
	cancel()
	if err != nil {
		return fmt.Errorf("query records needing status update: %w", err)
	}

	events := make([]Event, 0, len(needPost)+len(needUpdate))
	events = s.collect(events, needPost, ClassNeedsPost)
	events = s.collect(events, needUpdate, ClassNeedsStatusUpdate)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Record.ID < events[j].Record.ID
	})

	for _, ev := range events {
		if err := s.emit(emit, ev); err != nil {
			return err
		}
	}
	return nil
}

// collect keeps the records that still classify as want. The store already
// filtered them; this drops rows the store matched but the rules reject,
// such as an unknown status value.
func (s *Synchronizer) collect(events []Event, records []*models.BanRecord, want ProblemClass) []Event {
	for _, record := range records {
		if got := Classify(record, s.platform); got != want {
			s.skip(record)
			continue
		}
		events = append(events, Event{Record: record, Class: want, Platform: s.platform})
	}
	return events
}

func (s *Synchronizer) cursorTick(ctx context.Context, emit func(Event) error) error {
	qctx, cancel := s.queryContext(ctx)
	from, err := s.cursor.Current(qctx)
	if err != nil {
		cancel()
		return err
	}
	records, err := s.store.GetNewerThan(qctx, from)
	cancel()
	if err != nil {
		return fmt.Errorf("query records newer than %d: %w", from, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return recordID(records[i]) < recordID(records[j])
	})

	for _, record := range records {
		if record == nil {
			continue
		}
		if class := Classify(record, s.platform); class != ClassNone {
			if err := s.emit(emit, Event{Record: record, Class: class, Platform: s.platform}); err != nil {
				return err
			}
		} else if !record.Status.Valid() {
			s.skip(record)
		}
		// advance only after the event was handed over
		s.cursor.Advance(record.ID)
	}

	current, _ := s.cursor.Current(ctx)
	cursorPosition.WithLabelValues(string(s.platform)).Set(float64(current))
	return nil
}

func (s *Synchronizer) emit(emit func(Event) error, ev Event) error {
	if err := emit(ev); err != nil {
		return err
	}
	eventsEmitted.WithLabelValues(string(s.platform), ev.Class.String()).Inc()
	return nil
}

func (s *Synchronizer) skip(record *models.BanRecord) {
	recordsSkipped.WithLabelValues(string(s.platform)).Inc()
	if record == nil {
		logger.Warningf("%s sync: store returned an empty record", s.platform)
		return
	}
	logger.Warningf("%s sync: skipping ban record %d with status %q", s.platform, record.ID, string(record.Status))
}

func recordID(r *models.BanRecord) uint {
	if r == nil {
		return 0
	}
	return r.ID
}
