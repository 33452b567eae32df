package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/washpoint/washpoint-backend/api/controllers"
	webhookcontrollers "github.com/washpoint/washpoint-backend/api/controllers/webhooks"
	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/dispatch"
	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/payments"
	"github.com/washpoint/washpoint-backend/internal/realtime"
	"github.com/washpoint/washpoint-backend/pkg/config"
	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/redis"
	"github.com/washpoint/washpoint-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	jobsService jobs.Service,
	cleanersService cleaners.Service,
	geofenceRepo geofence.Repository,
	engine *dispatch.Engine,
	reconciler *payments.Reconciler,
	stripeClient *stripe.Client,
	webhookGuard *payments.IdempotencyGuard,
	hub *realtime.Hub,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(reconciler, stripeClient, webhookGuard, logg))
	})

	bookingPolicy := middleware.NewRateLimitPolicy("booking", cfg.RateLimit.BookingWindow, cfg.RateLimit.BookingLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/stream", controllers.JobStream(hub, logg))

		r.Route("/jobs", func(r chi.Router) {
			r.With(middleware.RateLimit(bookingPolicy, redisClient, logg)).
				Post("/", controllers.CreateJob(jobsService, logg))
			r.Get("/mine", controllers.ListMyJobs(jobsService, logg))
			r.Get("/available", controllers.AvailableJobs(engine, logg))
			r.Get("/{jobId}", controllers.GetJob(jobsService, logg))
			r.Post("/{jobId}/accept", controllers.AcceptJob(jobsService, logg))
			r.Post("/{jobId}/start", controllers.StartJob(jobsService, logg))
			r.Post("/{jobId}/complete", controllers.CompleteJob(jobsService, logg))
			r.Post("/{jobId}/cancel", controllers.CancelJob(jobsService, logg))
			r.Post("/{jobId}/refund", controllers.RefundJob(jobsService, logg))
		})

		r.Route("/cleaners", func(r chi.Router) {
			r.Get("/", controllers.ListCleaners(cleanersService, logg))
			r.Post("/me/duty", controllers.SetDutyStatus(cleanersService, logg))
			r.Post("/me/location", controllers.UpdateLocation(cleanersService, logg))
			r.Put("/{cleanerId}/geofences", controllers.AssignGeofences(cleanersService, logg))
		})

		r.Route("/geofences", func(r chi.Router) {
			r.Get("/", controllers.ListGeofences(geofenceRepo, logg))
			r.Post("/", controllers.CreateGeofence(geofenceRepo, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/confirm", controllers.ConfirmPayment(reconciler, logg))
		})
	})

	return r
}
