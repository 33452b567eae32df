package geofence

import (
	"context"
	"fmt"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/metrics"
	"github.com/washpoint/washpoint-backend/pkg/types"
)

// Resolver answers whether a cleaner's service area covers a location.
type Resolver struct {
	repo    Repository
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger
}

// NewResolver builds a resolver backed by the geofence repository. Metrics
// and logger may be nil; malformed polygons are then degraded silently.
func NewResolver(repo Repository, metricsC *metrics.DispatchMetrics, logg *logger.Logger) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("geofence repository required")
	}
	return &Resolver{repo: repo, metrics: metricsC, logg: logg}, nil
}

// EligibleForLocation reports whether the cleaner may take work at the point.
// The assign-all marker overrides explicit polygon assignments entirely; a
// cleaner with no marker and no assignments covers nothing, which is a valid
// configuration, not an error. Malformed polygons (fewer than three
// vertices) never match and are counted and logged so operators can find
// the broken fence.
func (r *Resolver) EligibleForLocation(ctx context.Context, cleaner *models.Cleaner, lat, lng float64) (bool, error) {
	if cleaner == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "cleaner required")
	}
	if cleaner.AssignAllGeofences {
		return true, nil
	}

	polygons, err := r.polygonsFor(ctx, cleaner)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner geofences")
	}

	eligible := false
	malformed := 0
	for _, polygon := range polygons {
		if !polygon.Valid() {
			malformed++
			r.metrics.IncMalformedPolygon()
			continue
		}
		if PointInPolygon(lat, lng, polygon) {
			eligible = true
		}
	}
	if malformed > 0 && r.logg != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"cleaner_id":         cleaner.ID,
			"malformed_polygons": malformed,
		}), "cleaner has malformed geofence polygons, treated as non-matching")
	}
	return eligible, nil
}

func (r *Resolver) polygonsFor(ctx context.Context, cleaner *models.Cleaner) ([]types.Polygon, error) {
	if len(cleaner.Geofences) > 0 {
		polygons := make([]types.Polygon, 0, len(cleaner.Geofences))
		for _, fence := range cleaner.Geofences {
			polygons = append(polygons, fence.Vertices)
		}
		return polygons, nil
	}
	return r.repo.ListPolygonsForCleaner(ctx, cleaner.ID)
}
