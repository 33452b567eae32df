package controllers

import (
	"net/http"

	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/internal/realtime"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

// JobStream upgrades to a websocket and streams job-state events scoped to
// the authenticated identity. Customers see their jobs, cleaners their
// offers and assignments, companies their whole fleet.
func JobStream(hub *realtime.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event hub unavailable"))
			return
		}

		topics := topicsFromIdentity(r)
		if len(topics) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "no identity to subscribe with"))
			return
		}

		realtime.ServeWS(hub, logg, w, r, topics)
	}
}

func topicsFromIdentity(r *http.Request) []realtime.Topic {
	ctx := r.Context()
	var topics []realtime.Topic
	if id := middleware.CustomerIDFromContext(ctx); id > 0 {
		topics = append(topics, realtime.Topic{Kind: realtime.TopicCustomer, ID: id})
	}
	if id := middleware.CleanerIDFromContext(ctx); id > 0 {
		topics = append(topics, realtime.Topic{Kind: realtime.TopicCleaner, ID: id})
	}
	if id := middleware.CompanyIDFromContext(ctx); id > 0 {
		topics = append(topics, realtime.Topic{Kind: realtime.TopicCompany, ID: id})
	}
	return topics
}
