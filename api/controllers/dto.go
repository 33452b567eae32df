package controllers

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// JobResponse is the wire shape of a job.
type JobResponse struct {
	ID                 int64                `json:"id"`
	CompanyID          int64                `json:"companyId"`
	CustomerID         int64                `json:"customerId"`
	CleanerID          *int64               `json:"cleanerId,omitempty"`
	RequestedCleanerID *int64               `json:"requestedCleanerId,omitempty"`
	AssignmentMode     enums.AssignmentMode `json:"assignmentMode"`
	Status             enums.JobStatus      `json:"status"`
	BaseFils           int64                `json:"baseFils"`
	TipFils            int64                `json:"tipFils"`
	PlatformFeeFils    int64                `json:"platformFeeFils"`
	TotalFils          int64                `json:"totalFils"`
	Currency           enums.Currency       `json:"currency"`
	Package            enums.PackageType    `json:"package"`
	Lat                float64              `json:"lat"`
	Lng                float64              `json:"lng"`
	Address            string               `json:"address"`
	AssignedAt         *time.Time           `json:"assignedAt,omitempty"`
	StartedAt          *time.Time           `json:"startedAt,omitempty"`
	CompletedAt        *time.Time           `json:"completedAt,omitempty"`
	RefundedAt         *time.Time           `json:"refundedAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
}

func toJobResponse(job *models.Job) JobResponse {
	return JobResponse{
		ID:                 job.ID,
		CompanyID:          job.CompanyID,
		CustomerID:         job.CustomerID,
		CleanerID:          job.CleanerID,
		RequestedCleanerID: job.RequestedCleanerID,
		AssignmentMode:     job.AssignmentMode,
		Status:             job.Status,
		BaseFils:           job.BaseFils,
		TipFils:            job.TipFils,
		PlatformFeeFils:    job.PlatformFeeFils,
		TotalFils:          job.TotalFils,
		Currency:           job.Currency,
		Package:            job.Package,
		Lat:                job.Lat,
		Lng:                job.Lng,
		Address:            job.Address,
		AssignedAt:         job.AssignedAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		RefundedAt:         job.RefundedAt,
		CreatedAt:          job.CreatedAt,
	}
}

func toJobResponses(jobs []models.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	return out
}

// CleanerResponse is the wire shape of a cleaner.
type CleanerResponse struct {
	ID                 int64               `json:"id"`
	CompanyID          int64               `json:"companyId"`
	Name               string              `json:"name"`
	Status             enums.CleanerStatus `json:"status"`
	Active             bool                `json:"active"`
	Lat                *float64            `json:"lat,omitempty"`
	Lng                *float64            `json:"lng,omitempty"`
	AssignAllGeofences bool                `json:"assignAllGeofences"`
}

func toCleanerResponse(cleaner *models.Cleaner) CleanerResponse {
	return CleanerResponse{
		ID:                 cleaner.ID,
		CompanyID:          cleaner.CompanyID,
		Name:               cleaner.Name,
		Status:             cleaner.Status,
		Active:             cleaner.Active,
		Lat:                cleaner.Lat,
		Lng:                cleaner.Lng,
		AssignAllGeofences: cleaner.AssignAllGeofences,
	}
}

func toCleanerResponses(cleaners []models.Cleaner) []CleanerResponse {
	out := make([]CleanerResponse, 0, len(cleaners))
	for i := range cleaners {
		out = append(out, toCleanerResponse(&cleaners[i]))
	}
	return out
}

// GeofenceResponse is the wire shape of a geofence.
type GeofenceResponse struct {
	ID        int64       `json:"id"`
	CompanyID int64       `json:"companyId"`
	Name      string      `json:"name"`
	Vertices  [][]float64 `json:"vertices"`
}

func toGeofenceResponse(fence *models.Geofence) GeofenceResponse {
	vertices := make([][]float64, 0, len(fence.Vertices))
	for _, v := range fence.Vertices {
		vertices = append(vertices, []float64{v.Lat(), v.Lng()})
	}
	return GeofenceResponse{
		ID:        fence.ID,
		CompanyID: fence.CompanyID,
		Name:      fence.Name,
		Vertices:  vertices,
	}
}

func toGeofenceResponses(fences []models.Geofence) []GeofenceResponse {
	out := make([]GeofenceResponse, 0, len(fences))
	for i := range fences {
		out = append(out, toGeofenceResponse(&fences[i]))
	}
	return out
}
