package models

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/types"
)

// Geofence is a company-scoped named polygon bounding a service area.
type Geofence struct {
	ID        int64         `gorm:"column:id;primaryKey;autoIncrement"`
	CompanyID int64         `gorm:"column:company_id;not null;index"`
	Name      string        `gorm:"column:name;not null"`
	Vertices  types.Polygon `gorm:"column:vertices;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CleanerGeofence maps a cleaner to one assigned geofence.
type CleanerGeofence struct {
	CleanerID  int64 `gorm:"column:cleaner_id;primaryKey"`
	GeofenceID int64 `gorm:"column:geofence_id;primaryKey"`
}
