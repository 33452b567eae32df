package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/types"
)

type stubJobsRepo struct {
	pool map[int64][]models.Job
}

func (s *stubJobsRepo) WithTx(tx *gorm.DB) jobs.Repository { return s }

func (s *stubJobsRepo) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	return job, nil
}

func (s *stubJobsRepo) FindByID(ctx context.Context, id int64) (*models.Job, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobsRepo) FindByIDForUpdate(ctx context.Context, id int64) (*models.Job, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobsRepo) FindByPaymentRef(ctx context.Context, ref string) (*models.Job, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobsRepo) FindByPaymentRefForUpdate(ctx context.Context, ref string) (*models.Job, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobsRepo) FindPaidBefore(ctx context.Context, cutoff time.Time) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobsRepo) ListPoolByCompany(ctx context.Context, companyID int64) ([]models.Job, error) {
	return s.pool[companyID], nil
}

func (s *stubJobsRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobsRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	return nil
}

type stubCleanersRepo struct {
	cleaners map[int64]*models.Cleaner
	onDuty   []models.Cleaner
}

func (s *stubCleanersRepo) WithTx(tx *gorm.DB) cleaners.Repository { return s }

func (s *stubCleanersRepo) Create(ctx context.Context, cleaner *models.Cleaner) (*models.Cleaner, error) {
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
	return nil, nil
}

func (s *stubCleanersRepo) ListOnDutyByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	return s.onDuty, nil
}

func (s *stubCleanersRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	return nil
}

type stubGeofenceRepo struct {
	polygons map[int64][]types.Polygon
	err      error
}

func (s *stubGeofenceRepo) WithTx(tx *gorm.DB) geofence.Repository { return s }

func (s *stubGeofenceRepo) Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error) {
	return fence, nil
}

func (s *stubGeofenceRepo) FindByID(ctx context.Context, id int64) (*models.Geofence, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGeofenceRepo) ListByCompany(ctx context.Context, companyID int64) ([]models.Geofence, error) {
	return nil, nil
}

func (s *stubGeofenceRepo) ListPolygonsForCleaner(ctx context.Context, cleanerID int64) ([]types.Polygon, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.polygons[cleanerID], nil
}

func (s *stubGeofenceRepo) ReplaceCleanerAssignments(ctx context.Context, cleanerID int64, geofenceIDs []int64) error {
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	offers []int64
}

func (n *recordingNotifier) JobEvent(ctx context.Context, eventType string, job *models.Job) {}

func (n *recordingNotifier) CleanerJobOffer(ctx context.Context, cleanerID int64, job *models.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offers = append(n.offers, cleanerID)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func unitSquare() types.Polygon {
	return types.Polygon{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
}

func newEngine(t *testing.T, jobsRepo *stubJobsRepo, cleanersRepo *stubCleanersRepo, fenceRepo *stubGeofenceRepo) (*Engine, *recordingNotifier) {
	t.Helper()
	resolver, err := geofence.NewResolver(fenceRepo, nil, nil)
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	engine, err := NewEngine(EngineParams{
		Jobs:     jobsRepo,
		Cleaners: cleanersRepo,
		Resolver: resolver,
		Notifier: notifier,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return engine, notifier
}

func TestFanOutNotifiesOnlyEligibleCleaners(t *testing.T) {
	cleanersRepo := &stubCleanersRepo{
		onDuty: []models.Cleaner{
			{ID: 1, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty},
			{ID: 2, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty},
			{ID: 3, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty, AssignAllGeofences: true},
		},
	}
	fenceRepo := &stubGeofenceRepo{polygons: map[int64][]types.Polygon{
		1: {unitSquare()},
		// cleaner 2 covers a disjoint area
		2: {{{100, 100}, {100, 110}, {110, 110}, {110, 100}}},
	}}
	engine, notifier := newEngine(t, &stubJobsRepo{}, cleanersRepo, fenceRepo)

	job := &models.Job{ID: 42, CompanyID: 1, Status: enums.JobStatusPaid, Lat: 5, Lng: 5}
	require.NoError(t, engine.FanOut(context.Background(), job))

	assert.ElementsMatch(t, []int64{1, 3}, notifier.offers)
}

func TestFanOutDegradesFailedChecksToIneligible(t *testing.T) {
	cleanersRepo := &stubCleanersRepo{
		onDuty: []models.Cleaner{
			{ID: 1, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty},
			{ID: 2, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty, AssignAllGeofences: true},
		},
	}
	fenceRepo := &stubGeofenceRepo{err: errors.New("connection reset")}
	engine, notifier := newEngine(t, &stubJobsRepo{}, cleanersRepo, fenceRepo)

	job := &models.Job{ID: 42, CompanyID: 1, Status: enums.JobStatusPaid, Lat: 5, Lng: 5}
	require.NoError(t, engine.FanOut(context.Background(), job))

	// cleaner 1's polygon load failed; cleaner 2 never hits the repo
	assert.Equal(t, []int64{2}, notifier.offers)
}

func TestFanOutRequiresJob(t *testing.T) {
	engine, _ := newEngine(t, &stubJobsRepo{}, &stubCleanersRepo{}, &stubGeofenceRepo{})

	err := engine.FanOut(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAvailableJobsRecomputesEligibilityPerJob(t *testing.T) {
	cleaner := &models.Cleaner{ID: 7, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty}
	cleanersRepo := &stubCleanersRepo{cleaners: map[int64]*models.Cleaner{7: cleaner}}
	jobsRepo := &stubJobsRepo{pool: map[int64][]models.Job{
		1: {
			{ID: 1, CompanyID: 1, Status: enums.JobStatusPaid, Lat: 5, Lng: 5},
			{ID: 2, CompanyID: 1, Status: enums.JobStatusPaid, Lat: 50, Lng: 50},
		},
	}}
	fenceRepo := &stubGeofenceRepo{polygons: map[int64][]types.Polygon{7: {unitSquare()}}}
	engine, _ := newEngine(t, jobsRepo, cleanersRepo, fenceRepo)

	available, err := engine.AvailableJobs(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, int64(1), available[0].ID)
}

func TestAvailableJobsRejectsDeactivatedCleaner(t *testing.T) {
	cleaner := &models.Cleaner{ID: 7, CompanyID: 1, Active: false, Status: enums.CleanerStatusOnDuty}
	cleanersRepo := &stubCleanersRepo{cleaners: map[int64]*models.Cleaner{7: cleaner}}
	engine, _ := newEngine(t, &stubJobsRepo{}, cleanersRepo, &stubGeofenceRepo{})

	_, err := engine.AvailableJobs(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAvailableJobsUnknownCleaner(t *testing.T) {
	engine, _ := newEngine(t, &stubJobsRepo{}, &stubCleanersRepo{}, &stubGeofenceRepo{})

	_, err := engine.AvailableJobs(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestEligibleForDirect(t *testing.T) {
	cases := []struct {
		name    string
		cleaner *models.Cleaner
		want    bool
	}{
		{"on duty same company", &models.Cleaner{CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty}, true},
		{"nil cleaner", nil, false},
		{"wrong company", &models.Cleaner{CompanyID: 2, Active: true, Status: enums.CleanerStatusOnDuty}, false},
		{"deactivated", &models.Cleaner{CompanyID: 1, Active: false, Status: enums.CleanerStatusOnDuty}, false},
		{"off duty", &models.Cleaner{CompanyID: 1, Active: true, Status: enums.CleanerStatusOffDuty}, false},
		{"busy", &models.Cleaner{CompanyID: 1, Active: true, Status: enums.CleanerStatusBusy}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EligibleForDirect(tc.cleaner, 1))
		})
	}
}
