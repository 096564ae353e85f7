package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"smartcal/internal/assistant"
	"smartcal/internal/models"
)

// Refresher periodically reloads the upcoming events working set.
type Refresher struct {
	cron      *cron.Cron
	logger    *slog.Logger
	assistant *assistant.Assistant
}

// NewRefresher schedules a refresh on spec (standard cron or "@every 5m").
func NewRefresher(logger *slog.Logger, a *assistant.Assistant, spec string, loc *time.Location) (*Refresher, error) {
	r := &Refresher{
		cron:      cron.New(cron.WithLocation(loc)),
		logger:    logger,
		assistant: a,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("Refresh scheduler started")
}

func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Refresh scheduler stopped")
}

func (r *Refresher) run() {
	err := r.assistant.Refresh(context.Background())
	switch {
	case err == nil:
		r.logger.Debug("Upcoming events refreshed", "count", len(r.assistant.Upcoming()))
	case errors.Is(err, models.ErrNotAuthenticated):
		// nothing to refresh while logged out
	case errors.Is(err, models.ErrAuthExpired):
		r.logger.Warn("Session expired during scheduled refresh")
	default:
		r.logger.Error("Scheduled refresh failed", "error", err)
	}
}
