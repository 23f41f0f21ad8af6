package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"bansync/internal/logger"
	"bansync/internal/models"
	"bansync/internal/storage"
	"bansync/internal/synchronizer"
)

var eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bansync_events_handled_total",
	Help: "Change events processed by the platform consumer",
}, []string{"platform", "class", "result"}) // result: published, updated, stale, failed

// Publisher performs the platform side effect for an event.
type Publisher interface {
	Platform() models.Platform
	// Publish creates the announcement and returns its post id.
	Publish(ctx context.Context, record *models.BanRecord) (int64, error)
	// PublishDecision updates the announcement postID with the record's
	// final status. A positive return value is a comment post id.
	PublishDecision(ctx context.Context, record *models.BanRecord, postID int64) (int64, error)
}

// Records is the part of the lifecycle API the consumer writes through.
type Records interface {
	Get(ctx context.Context, id uint) (*models.BanRecord, error)
	AttachPost(ctx context.Context, p models.Platform, id uint, postID int64) error
	AttachSecondaryPost(ctx context.Context, id uint, postID int64) error
	ClearPost(ctx context.Context, p models.Platform, id uint) error
}

// ErrEventsClosed is returned by Consume when the synchronizer stopped
// publishing while the consumer was still expected to run.
var ErrEventsClosed = errors.New("event channel closed")

// EventHandler consumes one platform's events, one at a time.
type EventHandler struct {
	publisher Publisher
	records   Records
	limiter   *rate.Limiter
}

// NewEventHandler paces publishing to perSecond calls; zero or less disables pacing.
func NewEventHandler(publisher Publisher, records Records, perSecond float64) *EventHandler {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &EventHandler{
		publisher: publisher,
		records:   records,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Consume handles events until ctx is cancelled. A failed event is logged
// and left for the synchronizer to report again. If the channel is closed
// first, Consume returns ErrEventsClosed so the caller can stop or restart.
func (h *EventHandler) Consume(ctx context.Context, events <-chan synchronizer.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%s: %w", h.publisher.Platform(), ErrEventsClosed)
			}
			if err := h.Handle(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warningf("Error handling %s event for ban %d on %s: %v", ev.Class, recordID(ev), ev.Platform, err)
			}
		}
	}
}

// Handle applies one event. The record is re-read first so duplicates and
// events overtaken by an earlier delivery are dropped.
func (h *EventHandler) Handle(ctx context.Context, ev synchronizer.Event) error {
	p := h.publisher.Platform()
	if ev.Platform != p {
		return fmt.Errorf("event for %s delivered to %s handler", ev.Platform, p)
	}
	if ev.Record == nil {
		return fmt.Errorf("event without record")
	}

	ctx = storage.WithCaller(ctx, "consume-"+string(p))
	record, err := h.records.Get(ctx, ev.Record.ID)
	if err != nil {
		return fmt.Errorf("reload ban %d: %w", ev.Record.ID, err)
	}
	if record == nil || synchronizer.Classify(record, p) != ev.Class {
		logger.Debugf("Dropping stale %s event for ban %d on %s", ev.Class, ev.Record.ID, p)
		h.count(ev, "stale")
		return nil
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	switch ev.Class {
	case synchronizer.ClassNeedsPost:
		err = h.publish(ctx, record)
	case synchronizer.ClassNeedsStatusUpdate:
		err = h.updateStatus(ctx, record)
	default:
		err = fmt.Errorf("unexpected problem class %s", ev.Class)
	}
	if err != nil {
		h.count(ev, "failed")
		return err
	}
	return nil
}

func (h *EventHandler) publish(ctx context.Context, record *models.BanRecord) error {
	p := h.publisher.Platform()
	postID, err := h.publisher.Publish(ctx, record)
	if err != nil {
		return err
	}
	// a failure here means the post is created again on the next tick
	if err := h.records.AttachPost(ctx, p, record.ID, postID); err != nil {
		return err
	}
	eventsHandled.WithLabelValues(string(p), synchronizer.ClassNeedsPost.String(), "published").Inc()
	return nil
}

func (h *EventHandler) updateStatus(ctx context.Context, record *models.BanRecord) error {
	p := h.publisher.Platform()
	commentID, err := h.publisher.PublishDecision(ctx, record, *record.Post(p))
	if err != nil {
		return err
	}
	if commentID > 0 {
		if err := h.records.AttachSecondaryPost(ctx, record.ID, commentID); err != nil {
			return err
		}
	}
	if err := h.records.ClearPost(ctx, p, record.ID); err != nil {
		return err
	}
	eventsHandled.WithLabelValues(string(p), synchronizer.ClassNeedsStatusUpdate.String(), "updated").Inc()
	return nil
}

func (h *EventHandler) count(ev synchronizer.Event, result string) {
	eventsHandled.WithLabelValues(string(ev.Platform), ev.Class.String(), result).Inc()
}

func recordID(ev synchronizer.Event) uint {
	if ev.Record == nil {
		return 0
	}
	return ev.Record.ID
}
