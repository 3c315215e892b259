package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hombenai/herd-bot/internal/models"
)

// Sender delivers one alert photo to one recipient.
type Sender interface {
	SendAlert(ctx context.Context, userID, photoRef, caption string) error
}

// Report is the aggregate outcome of one fan-out. Err collects every
// per-recipient failure; partial failure never fails the triggering
// operation, it is only reported here.
type Report struct {
	Sent   int
	Failed int
	Err    error
}

// Broadcaster fans a missing-animal alert out to all known users through a
// bounded worker pool, so one slow recipient can't serialize the alert.
type Broadcaster struct {
	sender      Sender
	workers     int
	sendTimeout time.Duration
	logger      *zap.Logger
}

func New(sender Sender, workers int, sendTimeout time.Duration, logger *zap.Logger) *Broadcaster {
	if workers < 1 {
		workers = 1
	}
	return &Broadcaster{
		sender:      sender,
		workers:     workers,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// MissingAlert notifies every recipient, the reporter included, that the
// animal has been reported missing.
func (b *Broadcaster) MissingAlert(ctx context.Context, animal models.Animal, reporter models.User, recipients []models.User) Report {
	caption := fmt.Sprintf("🚨 MISSING COW ALERT 🚨\nName: %s\nOwner: %s\nPlease contact the owner if found.",
		animal.Name, reporter.Name)

	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, rcpt := range recipients {
		rcpt := rcpt
		g.Go(func() error {
			sendCtx := ctx
			if b.sendTimeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, b.sendTimeout)
				defer cancel()
			}

			err := b.sender.SendAlert(sendCtx, rcpt.ID, animal.PhotoRef, caption)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Err = multierr.Append(report.Err,
					fmt.Errorf("delivery to user %s failed: %w", rcpt.ID, err))
				b.logger.Warn("failed to deliver missing alert",
					zap.Error(err),
					zap.String("user_id", rcpt.ID),
					zap.String("animal_id", animal.ID))
			} else {
				report.Sent++
			}
			// Errors are collected, never returned: a failed recipient must
			// not cancel the remaining deliveries.
			return nil
		})
	}
	g.Wait()

	b.logger.Info("missing alert broadcast finished",
		zap.String("animal_id", animal.ID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
	return report
}
