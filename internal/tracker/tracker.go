package tracker

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"cleanflow/internal/domain"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/feed"
	"cleanflow/internal/repo"
)

// RangeError reports a coordinate outside its valid range, or a non-finite
// value. The sample is discarded without touching the store.
type RangeError struct {
	Field string
	Value float64
}

func (e RangeError) Error() string {
	return fmt.Sprintf("%s out of range: %v", e.Field, e.Value)
}

// ValidateCoordinates checks a position sample. NaN and infinities are
// rejected along with out-of-range values.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return RangeError{Field: "lat", Value: lat}
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return RangeError{Field: "lng", Value: lng}
	}
	return nil
}

// Tracker ingests collector position samples. Writes are last-write-wins:
// a delayed older sample can overwrite a newer one, and the next sample
// corrects it. Positions do not go through the event log; the feed message
// is the only notification.
type Tracker struct {
	Repo repo.Repo
	Feed feed.Publisher
	Now  func() time.Time
}

func (t Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Report stores one sample for the calling collector's own record and
// publishes the updated collector to the feed.
func (t Tracker) Report(ctx context.Context, ident access.Identity, lat, lng float64) (domain.Collector, error) {
	if ident.Role != domain.RoleCollector {
		return domain.Collector{}, access.ForbiddenError{Role: ident.Role}
	}
	if err := ValidateCoordinates(lat, lng); err != nil {
		return domain.Collector{}, err
	}
	c, err := t.Repo.GetCollectorByAccount(ctx, ident.AccountID)
	if err != nil {
		return domain.Collector{}, err
	}
	observedAt := t.now().UTC().Format(time.RFC3339)
	if err := t.Repo.UpdateCollectorPosition(ctx, c.ID, lat, lng, observedAt); err != nil {
		return domain.Collector{}, err
	}
	c.CurrentLat = &lat
	c.CurrentLng = &lng
	c.LastLocationUpdate = &observedAt
	if t.Feed != nil {
		if err := t.Feed.Publish(feed.CollectionCollectors, c.ID, c); err != nil {
			log.Printf("[tracker] feed publish collector %s failed: %v", c.ID, err)
		}
	}
	return c, nil
}

// PositionSource yields the current position of a device. Implementations
// may block; they must honor ctx cancellation.
type PositionSource interface {
	Sample(ctx context.Context) (lat, lng float64, err error)
}

// Sampler polls a PositionSource on an interval and reports each sample.
// Source errors and rejected samples are logged and skipped; the loop keeps
// running until Stop.
type Sampler struct {
	Tracker  Tracker
	Source   PositionSource
	Identity access.Identity
	Interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the sampling loop. It reports one sample immediately, then
// once per interval.
func (s *Sampler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.sampleOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	lat, lng, err := s.Source.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[tracker] position source: %v", err)
		}
		return
	}
	if _, err := s.Tracker.Report(ctx, s.Identity, lat, lng); err != nil {
		if ctx.Err() == nil {
			log.Printf("[tracker] report position: %v", err)
		}
	}
}

// Stop cancels the loop and waits for it to exit. No samples are reported
// after Stop returns.
func (s *Sampler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
