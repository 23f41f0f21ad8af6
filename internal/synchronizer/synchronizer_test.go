package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bansync/internal/models"
	"bansync/internal/storage/storagetest"
)

// flakyStore fails the next n queries, then delegates.
type flakyStore struct {
	Store
	mu       sync.Mutex
	failures int
	override []*models.BanRecord
}

var errConnLost = errors.New("connection lost")

func (f *flakyStore) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyStore) GetNeedingPost(ctx context.Context, p models.Platform) ([]*models.BanRecord, error) {
	if f.fail() {
		return nil, errConnLost
	}
	if f.override != nil {
		return f.override, nil
	}
	return f.Store.GetNeedingPost(ctx, p)
}

func (f *flakyStore) GetNewerThan(ctx context.Context, id uint) ([]*models.BanRecord, error) {
	if f.fail() {
		return nil, errConnLost
	}
	if f.override != nil {
		return f.override, nil
	}
	return f.Store.GetNewerThan(ctx, id)
}

type recorder struct {
	events []Event
}

func (r *recorder) emit(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) ids() []uint {
	out := make([]uint, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Record.ID)
	}
	return out
}

func tick(t *testing.T, s *Synchronizer) *recorder {
	t.Helper()
	rec := &recorder{}
	require.NoError(t, s.Tick(context.Background(), rec.emit))
	return rec
}

func TestPredicateNewRecordScenario(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 10, Subject: "griefer"})
	s := New(repo, models.PlatformVK, nil, Options{Strategy: StrategyPredicate})

	first := tick(t, s)
	require.Len(t, first.events, 1)
	assert.EqualValues(t, 10, first.events[0].Record.ID)
	assert.Equal(t, ClassNeedsPost, first.events[0].Class)
	assert.Equal(t, models.PlatformVK, first.events[0].Platform)

	require.NoError(t, repo.AttachPost(context.Background(), models.PlatformVK, 10, 555))

	second := tick(t, s)
	assert.Empty(t, second.events)
}

func TestPredicateStatusChangeScenario(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 20, VKPost: storagetest.Int64(777)})
	s := New(repo, models.PlatformVK, nil, Options{Strategy: StrategyPredicate})

	assert.Empty(t, tick(t, s).events)

	require.NoError(t, repo.Confirm(context.Background(), 20))

	got := tick(t, s)
	require.Len(t, got.events, 1)
	assert.EqualValues(t, 20, got.events[0].Record.ID)
	assert.Equal(t, ClassNeedsStatusUpdate, got.events[0].Class)
}

func TestPredicateReemitsUntilConsumerWrites(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 1})
	s := New(repo, models.PlatformTelegram, nil, Options{})

	assert.Equal(t, []uint{1}, tick(t, s).ids())
	assert.Equal(t, []uint{1}, tick(t, s).ids())
}

func TestPredicateOrdersAcrossClasses(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo,
		&models.BanRecord{ID: 3, Status: models.DecisionApproved, TelegramPost: storagetest.Int64(30)},
		&models.BanRecord{ID: 1, Status: models.DecisionRejected, TelegramPost: storagetest.Int64(10)},
		&models.BanRecord{ID: 2},
	)
	s := New(repo, models.PlatformTelegram, nil, Options{Strategy: StrategyPredicate})

	got := tick(t, s)
	assert.Equal(t, []uint{1, 2, 3}, got.ids())
	assert.Equal(t, ClassNeedsStatusUpdate, got.events[0].Class)
	assert.Equal(t, ClassNeedsPost, got.events[1].Class)
}

func TestPredicateSkipsMalformedRecords(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	store := &flakyStore{Store: repo, override: []*models.BanRecord{
		nil,
		{ID: 2, Status: models.Decision("revoked")},
		{ID: 3, Status: models.DecisionPending},
	}}
	s := New(store, models.PlatformTelegram, nil, Options{})

	got := tick(t, s)
	assert.Equal(t, []uint{3}, got.ids())
}

func TestCursorScanAscending(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 3}, &models.BanRecord{ID: 1}, &models.BanRecord{ID: 2})
	s := New(repo, models.PlatformTelegram, NewCursorAt(0), Options{Strategy: StrategyCursor})

	got := tick(t, s)
	assert.Equal(t, []uint{1, 2, 3}, got.ids())
	for _, ev := range got.events {
		assert.Equal(t, ClassNeedsPost, ev.Class)
	}

	assert.Empty(t, tick(t, s).events)
}

func TestCursorScanSkipsBacklogAfterRestart(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	for i := uint(1); i <= 50; i++ {
		storagetest.Seed(t, repo, &models.BanRecord{ID: i})
	}
	s := New(repo, models.PlatformVK, nil, Options{Strategy: StrategyCursor})

	assert.Empty(t, tick(t, s).events)

	storagetest.Seed(t, repo, &models.BanRecord{ID: 51})
	got := tick(t, s)
	assert.Equal(t, []uint{51}, got.ids())
	assert.Empty(t, tick(t, s).events)
}

func TestCursorScanIgnoresRecordsThatNeedNothing(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo,
		&models.BanRecord{ID: 1, VKPost: storagetest.Int64(5)},
		&models.BanRecord{ID: 2},
	)
	cursor := NewCursorAt(0)
	s := New(repo, models.PlatformVK, cursor, Options{Strategy: StrategyCursor})

	assert.Equal(t, []uint{2}, tick(t, s).ids())
	current, err := cursor.Current(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, current)
}

func TestCursorNotAdvancedPastUnsentEvent(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 1}, &models.BanRecord{ID: 2})
	cursor := NewCursorAt(0)
	s := New(repo, models.PlatformVK, cursor, Options{Strategy: StrategyCursor})

	stop := errors.New("consumer gone")
	sent := 0
	err := s.Tick(context.Background(), func(ev Event) error {
		if sent == 1 {
			return stop
		}
		sent++
		return nil
	})
	assert.ErrorIs(t, err, stop)

	current, err := cursor.Current(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, current)

	assert.Equal(t, []uint{2}, tick(t, s).ids())
}

func TestTickReportsStoreFailure(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	store := &flakyStore{Store: repo, failures: 1}

	predicate := New(store, models.PlatformVK, nil, Options{})
	assert.ErrorIs(t, predicate.Tick(context.Background(), (&recorder{}).emit), errConnLost)

	store.failures = 1
	cursor := New(store, models.PlatformVK, NewCursorAt(0), Options{Strategy: StrategyCursor})
	assert.ErrorIs(t, cursor.Tick(context.Background(), (&recorder{}).emit), errConnLost)
}

func TestRunSurvivesTransientFailures(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 7})
	store := &flakyStore{Store: repo, failures: 2}
	s := New(store, models.PlatformTelegram, nil, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Events(ctx)

	select {
	case ev := <-events:
		assert.EqualValues(t, 7, ev.Record.ID)
		assert.Equal(t, ClassNeedsPost, ev.Class)
	case <-time.After(5 * time.Second):
		t.Fatal("no event after transient failures")
	}
}

func TestEventsClosedOnCancel(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	storagetest.Seed(t, repo, &models.BanRecord{ID: 1})
	s := New(repo, models.PlatformVK, nil, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	events := s.Events(ctx)
	<-events
	cancel()

	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestRunReturnsContextError(t *testing.T) {
	repo, _ := storagetest.NewRepository(t)
	s := New(repo, models.PlatformVK, nil, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx, make(chan Event)), context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy("cursor")
	require.NoError(t, err)
	assert.Equal(t, StrategyCursor, got)

	_, err = ParseStrategy("webhook")
	assert.Error(t, err)
}
