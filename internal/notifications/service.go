package notifications

import (
	"context"
	"fmt"

	"github.com/washpoint/washpoint-backend/internal/realtime"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

// Notifier delivers best-effort job notifications. Delivery failures are
// logged and never roll back committed state.
type Notifier interface {
	JobEvent(ctx context.Context, eventType string, job *models.Job)
	CleanerJobOffer(ctx context.Context, cleanerID int64, job *models.Job)
}

type service struct {
	hub  *realtime.Hub
	logg *logger.Logger
}

// NewService builds the default notifier publishing to the realtime hub.
func NewService(hub *realtime.Hub, logg *logger.Logger) (Notifier, error) {
	if hub == nil {
		return nil, fmt.Errorf("realtime hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{hub: hub, logg: logg}, nil
}

func (s *service) JobEvent(ctx context.Context, eventType string, job *models.Job) {
	if job == nil {
		return
	}
	s.hub.Publish(ctx, realtime.Event{
		Type:       eventType,
		JobID:      job.ID,
		CustomerID: job.CustomerID,
		CleanerID:  job.CleanerID,
		CompanyID:  job.CompanyID,
		Status:     string(job.Status),
	})
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":  eventType,
		"job_id": job.ID,
		"status": job.Status,
	}), "job notification published")
}

// CleanerJobOffer targets one cleaner with a job they may accept, used by
// dispatch fan-out so off-area cleaners see nothing.
func (s *service) CleanerJobOffer(ctx context.Context, cleanerID int64, job *models.Job) {
	if job == nil {
		return
	}
	s.hub.Publish(ctx, realtime.Event{
		Type:       "job.offer",
		JobID:      job.ID,
		CustomerID: job.CustomerID,
		CleanerID:  &cleanerID,
		CompanyID:  job.CompanyID,
		Status:     string(job.Status),
	})
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":      "job.offer",
		"job_id":     job.ID,
		"cleaner_id": cleanerID,
	}), "job offer published")
}

// NopNotifier discards every notification, for tests and tooling.
type NopNotifier struct{}

func (NopNotifier) JobEvent(ctx context.Context, eventType string, job *models.Job) {}
func (NopNotifier) CleanerJobOffer(ctx context.Context, cleanerID int64, job *models.Job) {}
