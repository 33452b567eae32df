package models

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// Cleaner is a worker account attached to a company. AssignAllGeofences is
// the sentinel "assigned to every company geofence" marker; when set it
// overrides any explicit geofence assignments.
type Cleaner struct {
	ID        int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CompanyID int64               `gorm:"column:company_id;not null;index"`
	Name      string              `gorm:"column:name;not null"`
	Phone     string              `gorm:"column:phone"`
	Status    enums.CleanerStatus `gorm:"column:status;type:text;not null;default:'off_duty'"`
	Active    bool                `gorm:"column:active;not null;default:true"`

	Lat *float64 `gorm:"column:lat"`
	Lng *float64 `gorm:"column:lng"`

	AssignAllGeofences bool `gorm:"column:assign_all_geofences;not null;default:false"`

	Geofences []Geofence `gorm:"many2many:cleaner_geofences;"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
