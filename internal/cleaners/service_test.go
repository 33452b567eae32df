package cleaners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/types"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCleanersRepo struct {
	cleaners map[int64]*models.Cleaner
	updates  []map[string]any
}

func newStubCleanersRepo(cleaners ...*models.Cleaner) *stubCleanersRepo {
	s := &stubCleanersRepo{cleaners: map[int64]*models.Cleaner{}}
	for _, c := range cleaners {
		s.cleaners[c.ID] = c
	}
	return s
}

func (s *stubCleanersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCleanersRepo) Create(ctx context.Context, cleaner *models.Cleaner) (*models.Cleaner, error) {
	s.cleaners[cleaner.ID] = cleaner
	return cleaner, nil
}

func (s *stubCleanersRepo) FindByID(ctx context.Context, id int64) (*models.Cleaner, error) {
	c, ok := s.cleaners[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (s *stubCleanersRepo) FindByIDForUpdate(ctx context.Context, id int64) (*models.Cleaner, error) {
	return s.FindByID(ctx, id)
}

func (s *stubCleanersRepo) ListByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	var out []models.Cleaner
	for _, c := range s.cleaners {
		if c.CompanyID == companyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubCleanersRepo) ListOnDutyByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	var out []models.Cleaner
	for _, c := range s.cleaners {
		if c.CompanyID == companyID && c.Active && c.Status == enums.CleanerStatusOnDuty {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubCleanersRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	s.updates = append(s.updates, updates)
	c, ok := s.cleaners[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		c.Status = v.(enums.CleanerStatus)
	}
	if v, ok := updates["assign_all_geofences"]; ok {
		c.AssignAllGeofences = v.(bool)
	}
	return nil
}

type stubFenceRepo struct {
	fences       map[int64]*models.Geofence
	replacedWith []int64
}

func newStubFenceRepo(fences ...*models.Geofence) *stubFenceRepo {
	s := &stubFenceRepo{fences: map[int64]*models.Geofence{}}
	for _, f := range fences {
		s.fences[f.ID] = f
	}
	return s
}

func (s *stubFenceRepo) WithTx(tx *gorm.DB) geofence.Repository { return s }

func (s *stubFenceRepo) Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error) {
	s.fences[fence.ID] = fence
	return fence, nil
}

func (s *stubFenceRepo) FindByID(ctx context.Context, id int64) (*models.Geofence, error) {
	f, ok := s.fences[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (s *stubFenceRepo) ListByCompany(ctx context.Context, companyID int64) ([]models.Geofence, error) {
	return nil, nil
}

func (s *stubFenceRepo) ListPolygonsForCleaner(ctx context.Context, cleanerID int64) ([]types.Polygon, error) {
	return nil, nil
}

func (s *stubFenceRepo) ReplaceCleanerAssignments(ctx context.Context, cleanerID int64, geofenceIDs []int64) error {
	s.replacedWith = geofenceIDs
	return nil
}

func newTestService(t *testing.T, repo Repository, fences geofence.Repository) Service {
	t.Helper()
	svc, err := NewService(repo, fences, stubTxRunner{})
	require.NoError(t, err)
	return svc
}

func TestSetDutyStatusTogglesOnAndOff(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, CompanyID: 10, Active: true, Status: enums.CleanerStatusOffDuty})
	svc := newTestService(t, repo, newStubFenceRepo())

	cleaner, err := svc.SetDutyStatus(context.Background(), 1, enums.CleanerStatusOnDuty)
	require.NoError(t, err)
	assert.Equal(t, enums.CleanerStatusOnDuty, cleaner.Status)

	cleaner, err = svc.SetDutyStatus(context.Background(), 1, enums.CleanerStatusOffDuty)
	require.NoError(t, err)
	assert.Equal(t, enums.CleanerStatusOffDuty, cleaner.Status)
}

func TestSetDutyStatusRejectsBusyTarget(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, Active: true, Status: enums.CleanerStatusOnDuty})
	svc := newTestService(t, repo, newStubFenceRepo())

	_, err := svc.SetDutyStatus(context.Background(), 1, enums.CleanerStatusBusy)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSetDutyStatusRejectsWhileBusy(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, Active: true, Status: enums.CleanerStatusBusy})
	svc := newTestService(t, repo, newStubFenceRepo())

	_, err := svc.SetDutyStatus(context.Background(), 1, enums.CleanerStatusOffDuty)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSetDutyStatusUnknownCleaner(t *testing.T) {
	svc := newTestService(t, newStubCleanersRepo(), newStubFenceRepo())

	_, err := svc.SetDutyStatus(context.Background(), 99, enums.CleanerStatusOnDuty)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAssignGeofencesValidatesOwnership(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, CompanyID: 10, Active: true})
	fences := newStubFenceRepo(&models.Geofence{ID: 5, CompanyID: 99})
	svc := newTestService(t, repo, fences)

	err := svc.AssignGeofences(context.Background(), AssignGeofencesInput{
		CleanerID:   1,
		CompanyID:   10,
		GeofenceIDs: []int64{5},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAssignGeofencesExplicitSet(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, CompanyID: 10, Active: true, AssignAllGeofences: true})
	fences := newStubFenceRepo(&models.Geofence{ID: 5, CompanyID: 10})
	svc := newTestService(t, repo, fences)

	err := svc.AssignGeofences(context.Background(), AssignGeofencesInput{
		CleanerID:   1,
		CompanyID:   10,
		GeofenceIDs: []int64{5},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, fences.replacedWith)
	assert.False(t, repo.cleaners[1].AssignAllGeofences)
}

func TestAssignGeofencesAssignAllClearsExplicit(t *testing.T) {
	repo := newStubCleanersRepo(&models.Cleaner{ID: 1, CompanyID: 10, Active: true})
	fences := newStubFenceRepo()
	svc := newTestService(t, repo, fences)

	err := svc.AssignGeofences(context.Background(), AssignGeofencesInput{
		CleanerID: 1,
		CompanyID: 10,
		AssignAll: true,
	})
	require.NoError(t, err)
	assert.Nil(t, fences.replacedWith)
	assert.True(t, repo.cleaners[1].AssignAllGeofences)
}
