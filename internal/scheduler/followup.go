package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/observability"
	"github.com/spec-kit/assist-service/internal/repository"
)

// Sink receives notification events produced by a scan.
type Sink interface {
	Notify(ctx context.Context, notification domain.Notification) error
}

// Locker provides the single-flight guarantee across scanner instances.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ScanResult summarizes one scan pass.
type ScanResult struct {
	Notified int
	Failed   int
	// Skipped is true when another scan held the lock and this pass did nothing.
	Skipped bool
}

// FollowUpScanner periodically notifies requesters of active requests whose
// follow-up deadline has passed.
//
// With RenotifyEveryScan set (the default, matching the source behavior) the
// scan does not advance NextFollowUpAt after notifying, so a due request is
// notified again on every pass until the requester updates sub-status or
// closes it. With it unset the deadline moves one interval out after each
// successful notification.
type FollowUpScanner struct {
	requests repository.RequestRepository
	sink     Sink
	locker   Locker
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	renotify bool
	now      func() time.Time
}

// ScannerDependencies bundles collaborators for the scanner.
type ScannerDependencies struct {
	RequestRepo       repository.RequestRepository
	Sink              Sink
	Locker            Locker
	Logger            *zap.Logger
	Metrics           *observability.Metrics
	FollowUpInterval  time.Duration
	RenotifyEveryScan bool
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// NewFollowUpScanner constructs the scanner.
func NewFollowUpScanner(deps ScannerDependencies) *FollowUpScanner {
	interval := deps.FollowUpInterval
	if interval <= 0 {
		interval = time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpScanner{
		requests: deps.RequestRepo,
		sink:     deps.Sink,
		locker:   deps.Locker,
		logger:   logger,
		metrics:  deps.Metrics,
		interval: interval,
		renotify: deps.RenotifyEveryScan,
		now:      now,
	}
}

// RunScan executes one scan pass. Per-request notification failures are logged
// and counted without aborting the rest of the batch.
func (s *FollowUpScanner) RunScan(ctx context.Context) (ScanResult, error) {
	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx)
		if err != nil {
			return ScanResult{}, fmt.Errorf("acquire scan lock: %w", err)
		}
		if !acquired {
			s.logger.Info("follow-up scan already running; skipping")
			return ScanResult{Skipped: true}, nil
		}
		defer func() {
			if err := s.locker.Release(ctx); err != nil {
				s.logger.Warn("release scan lock", zap.Error(err))
			}
		}()
	}

	now := s.now()
	due, err := s.requests.ListDueFollowUps(ctx, now)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list due follow-ups: %w", err)
	}

	var result ScanResult
	for i := range due {
		request := &due[i]
		notification := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    request.RequesterID,
			Type:      domain.NotificationFollowUpDue,
			Title:     followUpTitle(request.Kind),
			Message:   followUpMessage(request.Kind),
			RelatedID: request.ID,
			CreatedAt: now,
		}
		if err := s.sink.Notify(ctx, notification); err != nil {
			result.Failed++
			s.logger.Error("notify follow-up",
				zap.String("request_id", request.ID),
				zap.String("requester_id", request.RequesterID),
				zap.Error(err))
			continue
		}
		result.Notified++

		if !s.renotify {
			next := now.Add(s.interval)
			request.NextFollowUpAt = &next
			if err := s.requests.Update(ctx, request, request.Status); err != nil {
				// the request moved on since the snapshot; the next scan
				// re-reads fresh state
				s.logger.Warn("advance follow-up deadline",
					zap.String("request_id", request.ID),
					zap.Error(err))
			}
		}
	}

	s.metrics.RecordScan(result.Notified, result.Failed)
	s.logger.Info("follow-up scan complete",
		zap.Int("due", len(due)),
		zap.Int("notified", result.Notified),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Run drives RunScan on a ticker until ctx is cancelled.
func (s *FollowUpScanner) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunScan(ctx); err != nil {
				s.logger.Error("follow-up scan failed", zap.Error(err))
			}
		}
	}
}

func followUpTitle(kind domain.RequestKind) string {
	if kind == domain.RequestKindVehicleRecovery {
		return "Vehicle recovery check-in"
	}
	return "Deer recovery check-in"
}

func followUpMessage(kind domain.RequestKind) string {
	if kind == domain.RequestKindVehicleRecovery {
		return "Still stuck? Update your vehicle recovery request or close it if you got help."
	}
	return "Any luck with the track? Update your recovery request or close it if you found your deer."
}
