// Package jobs runs periodic reporting tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/stats"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// system is the principal scheduled jobs act as
var system = domain.Principal{Admin: true}

// Summarizer is satisfied by *stats.Engine.
type Summarizer interface {
	DailySummary(ctx context.Context, p domain.Principal, date time.Time) (*stats.Summary, error)
}

// Scheduler wraps a UTC cron instance.
type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithLocation(time.UTC)), now: time.Now}
}

// AddDailySummary logs the previous UTC day's summary on every tick of schedule
// (standard five-field cron syntax).
func (s *Scheduler) AddDailySummary(schedule string, src Summarizer) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := RunDailySummary(ctx, src, s.now().UTC().AddDate(0, 0, -1)); err != nil {
			logrus.WithError(err).Error("[SUMMARY-JOB] Daily summary failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule daily summary %q: %w", schedule, err)
	}
	logrus.WithField("schedule", schedule).Info("[SUMMARY-JOB] Daily summary scheduled")
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts new runs and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// RunDailySummary computes and logs the summary for date.
func RunDailySummary(ctx context.Context, src Summarizer, date time.Time) (*stats.Summary, error) {
	sum, err := src.DailySummary(ctx, system, date)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"date":              sum.Date,
		"total":             sum.TotalTransactions,
		"successful":        sum.Successful,
		"failed":            sum.Failed,
		"pending":           sum.Pending,
		"total_amount":      sum.TotalAmount.StringFixed(2),
		"successful_amount": sum.SuccessfulAmount.StringFixed(2),
	}).Info("[SUMMARY-JOB] Daily payment summary")
	return sum, nil
}
