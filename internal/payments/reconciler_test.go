package payments

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/finance"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/notifications"
	"github.com/washpoint/washpoint-backend/pkg/config"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"gorm.io/gorm"
)

type serialTxRunner struct {
	mu sync.Mutex
}

func (r *serialTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

type stubJobsRepo struct {
	mu   sync.Mutex
	jobs map[int64]*models.Job
}

func newStubJobsRepo(list ...*models.Job) *stubJobsRepo {
	s := &stubJobsRepo{jobs: map[int64]*models.Job{}}
	for _, j := range list {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubJobsRepo) WithTx(tx *gorm.DB) jobs.Repository { return s }

func (s *stubJobsRepo) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubJobsRepo) FindByID(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (s *stubJobsRepo) FindByIDForUpdate(ctx context.Context, id int64) (*models.Job, error) {
	return s.FindByID(ctx, id)
}

func (s *stubJobsRepo) FindByPaymentRef(ctx context.Context, ref string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.PaymentRef != nil && *job.PaymentRef == ref {
			return job, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobsRepo) FindByPaymentRefForUpdate(ctx context.Context, ref string) (*models.Job, error) {
	return s.FindByPaymentRef(ctx, ref)
}

func (s *stubJobsRepo) FindPaidBefore(ctx context.Context, cutoff time.Time) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobsRepo) ListPoolByCompany(ctx context.Context, companyID int64) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobsRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobsRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			job.Status = value.(enums.JobStatus)
		case "cleaner_id":
			id := value.(int64)
			job.CleanerID = &id
		case "requested_cleaner_id":
			job.RequestedCleanerID = nil
		case "assignment_mode":
			job.AssignmentMode = value.(enums.AssignmentMode)
		case "tip_fils":
			job.TipFils = value.(int64)
		case "total_fils":
			job.TotalFils = value.(int64)
		case "assigned_at":
			at := value.(time.Time)
			job.AssignedAt = &at
		}
	}
	return nil
}

type stubCleanersRepo struct {
	mu       sync.Mutex
	cleaners map[int64]*models.Cleaner
}

func newStubCleanersRepo(list ...*models.Cleaner) *stubCleanersRepo {
	s := &stubCleanersRepo{cleaners: map[int64]*models.Cleaner{}}
	for _, c := range list {
		s.cleaners[c.ID] = c
	}
	return s
}

func (s *stubCleanersRepo) WithTx(tx *gorm.DB) cleaners.Repository { return s }

func (s *stubCleanersRepo) Create(ctx context.Context, cleaner *models.Cleaner) (*models.Cleaner, error) {
	s.cleaners[cleaner.ID] = cleaner
	return cleaner, nil
}

func (s *stubCleanersRepo) FindByID(ctx context.Context, id int64) (*models.Cleaner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	return nil, nil
}

func (s *stubCleanersRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cleaners[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		c.Status = v.(enums.CleanerStatus)
	}
	return nil
}

type stubFinanceRepo struct {
	mu           sync.Mutex
	records      map[int64]*models.FinancialRecord
	transactions []models.Transaction
}

func newStubFinanceRepo() *stubFinanceRepo {
	return &stubFinanceRepo{records: map[int64]*models.FinancialRecord{}}
}

func (s *stubFinanceRepo) WithTx(tx *gorm.DB) finance.Repository { return s }

func (s *stubFinanceRepo) GetOrCreateRecord(ctx context.Context, record *models.FinancialRecord) (*models.FinancialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.JobID]; ok {
		return existing, nil
	}
	record.ID = int64(len(s.records) + 1)
	s.records[record.JobID] = record
	return record, nil
}

func (s *stubFinanceRepo) FindRecordByJob(ctx context.Context, jobID int64) (*models.FinancialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (s *stubFinanceRepo) SetReceiptIfAbsent(ctx context.Context, jobID int64, receiptRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobID]
	if !ok {
		return false, nil
	}
	if record.ReceiptRef != nil {
		return false, nil
	}
	record.ReceiptRef = &receiptRef
	return true, nil
}

func (s *stubFinanceRepo) SetCleaner(ctx context.Context, jobID, cleanerID int64) error {
	return nil
}

func (s *stubFinanceRepo) MarkRefunded(ctx context.Context, jobID int64, at time.Time) error {
	return nil
}

func (s *stubFinanceRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.ID = int64(len(s.transactions) + 1)
	s.transactions = append(s.transactions, *txn)
	return txn, nil
}

func (s *stubFinanceRepo) ListTransactionsByJob(ctx context.Context, jobID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, txn := range s.transactions {
		if txn.JobID == jobID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []int64
}

func (s *stubDispatcher) FanOut(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, job.ID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCalc(t *testing.T) *finance.Calculator {
	t.Helper()
	calc, err := finance.NewCalculator(config.FeesConfig{
		TaxRate:           "0.05",
		ProcessingRate:    "0.029",
		BasicPlatformFee:  "2.00",
		DeluxePlatformFee: "5.00",
	})
	require.NoError(t, err)
	return calc
}

type fixture struct {
	reconciler *Reconciler
	jobs       *stubJobsRepo
	cleaners   *stubCleanersRepo
	finance    *stubFinanceRepo
	dispatch   *stubDispatcher
}

func newFixture(t *testing.T, jobsRepo *stubJobsRepo, cleanersRepo *stubCleanersRepo) *fixture {
	t.Helper()
	financeRepo := newStubFinanceRepo()
	dispatcher := &stubDispatcher{}
	reconciler, err := NewReconciler(ReconcilerParams{
		Jobs:       jobsRepo,
		Cleaners:   cleanersRepo,
		Finance:    financeRepo,
		Tx:         &serialTxRunner{},
		Calculator: testCalc(t),
		Dispatch:   dispatcher,
		Notifier:   notifications.NopNotifier{},
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	return &fixture{
		reconciler: reconciler,
		jobs:       jobsRepo,
		cleaners:   cleanersRepo,
		finance:    financeRepo,
		dispatch:   dispatcher,
	}
}

func pendingJob(id int64, ref string) *models.Job {
	return &models.Job{
		ID:              id,
		CompanyID:       1,
		CustomerID:      7,
		Status:          enums.JobStatusPendingPayment,
		AssignmentMode:  enums.AssignmentModePool,
		BaseFils:        2500,
		PlatformFeeFils: 300,
		Currency:        enums.CurrencyAED,
		Package:         enums.PackageTypeCustom,
		PaymentRef:      &ref,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestConfirmPaymentPoolJob(t *testing.T) {
	job := pendingJob(42, "pi_42")
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo())

	confirmed, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
	require.NoError(t, err)

	assert.Equal(t, enums.JobStatusPaid, confirmed.Status)
	assert.Equal(t, int64(3013), confirmed.TotalFils)

	record := f.finance.records[42]
	require.NotNil(t, record)
	assert.Equal(t, int64(125), record.BaseTaxFils)
	assert.Equal(t, int64(73), record.ProcessingFeeFils)
	require.NotNil(t, record.ReceiptRef)

	txns, _ := f.finance.ListTransactionsByJob(context.Background(), 42)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.TransactionTypeCharge, txns[0].Type)

	assert.Equal(t, []int64{42}, f.dispatch.calls)
}

func TestConfirmPaymentIdempotentUnderRedelivery(t *testing.T) {
	job := pendingJob(42, "pi_42")
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo())

	first, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
	require.NoError(t, err)
	firstReceipt := *f.finance.records[42].ReceiptRef

	second, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Len(t, f.finance.records, 1)
	assert.Equal(t, firstReceipt, *f.finance.records[42].ReceiptRef)

	// the charge is only booked on the first pass
	txns, _ := f.finance.ListTransactionsByJob(context.Background(), 42)
	assert.Len(t, txns, 1)
	assert.Equal(t, []int64{42}, f.dispatch.calls)
}

func TestConfirmPaymentConcurrentDeliveriesOneReceipt(t *testing.T) {
	job := pendingJob(42, "pi_42")
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.finance.records, 1)
	require.NotNil(t, f.finance.records[42].ReceiptRef)
	txns, _ := f.finance.ListTransactionsByJob(context.Background(), 42)
	assert.Len(t, txns, 1)
}

func TestConfirmPaymentDirectAssignsImmediately(t *testing.T) {
	requested := int64(9)
	job := pendingJob(42, "pi_42")
	job.AssignmentMode = enums.AssignmentModeDirect
	job.RequestedCleanerID = &requested

	cleaner := &models.Cleaner{ID: 9, CompanyID: 1, Active: true, Status: enums.CleanerStatusOnDuty}
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo(cleaner))

	confirmed, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
	require.NoError(t, err)

	assert.Equal(t, enums.JobStatusAssigned, confirmed.Status)
	require.NotNil(t, confirmed.CleanerID)
	assert.Equal(t, int64(9), *confirmed.CleanerID)
	assert.Equal(t, enums.CleanerStatusBusy, cleaner.Status)

	record := f.finance.records[42]
	require.NotNil(t, record)
	require.NotNil(t, record.CleanerID)
	assert.Equal(t, int64(9), *record.CleanerID)

	// direct assignment never fans out
	assert.Empty(t, f.dispatch.calls)
}

func TestConfirmPaymentDirectFallbackToPool(t *testing.T) {
	cases := []struct {
		name    string
		cleaner *models.Cleaner
	}{
		{"nonexistent", nil},
		{"off duty", &models.Cleaner{ID: 9, CompanyID: 1, Active: true, Status: enums.CleanerStatusOffDuty}},
		{"busy", &models.Cleaner{ID: 9, CompanyID: 1, Active: true, Status: enums.CleanerStatusBusy}},
		{"wrong company", &models.Cleaner{ID: 9, CompanyID: 2, Active: true, Status: enums.CleanerStatusOnDuty}},
		{"deactivated", &models.Cleaner{ID: 9, CompanyID: 1, Active: false, Status: enums.CleanerStatusOnDuty}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requested := int64(9)
			job := pendingJob(42, "pi_42")
			job.AssignmentMode = enums.AssignmentModeDirect
			job.RequestedCleanerID = &requested

			var cleanersRepo *stubCleanersRepo
			if tc.cleaner != nil {
				cleanersRepo = newStubCleanersRepo(tc.cleaner)
			} else {
				cleanersRepo = newStubCleanersRepo()
			}
			f := newFixture(t, newStubJobsRepo(job), cleanersRepo)

			confirmed, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_42"})
			require.NoError(t, err)

			assert.Equal(t, enums.JobStatusPaid, confirmed.Status)
			assert.Equal(t, enums.AssignmentModePool, confirmed.AssignmentMode)
			assert.Nil(t, confirmed.RequestedCleanerID)
			assert.Nil(t, confirmed.CleanerID)
			// degraded jobs go through the pool fan-out
			assert.Equal(t, []int64{42}, f.dispatch.calls)
		})
	}
}

func TestConfirmPaymentAppliesTip(t *testing.T) {
	job := pendingJob(42, "pi_42")
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo())

	confirmed, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentRef: "pi_42",
		TipFils:    400,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(400), confirmed.TipFils)
	record := f.finance.records[42]
	require.NotNil(t, record)
	assert.Equal(t, int64(400), record.TipFils)
	assert.Equal(t, int64(20), record.TipTaxFils)
}

func TestConfirmPaymentForeignCompanyWritesNothing(t *testing.T) {
	job := pendingJob(42, "pi_42")
	f := newFixture(t, newStubJobsRepo(job), newStubCleanersRepo())

	_, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentRef: "pi_42",
		CompanyID:  99,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	// the denied caller must leave no trace: no status flip, no financial
	// record, no charge, no fan-out
	current, err := f.jobs.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusPendingPayment, current.Status)
	assert.Empty(t, f.finance.records)
	assert.Empty(t, f.finance.transactions)
	assert.Empty(t, f.dispatch.calls)

	// the owning company still confirms normally afterwards
	confirmed, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentRef: "pi_42",
		CompanyID:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusPaid, confirmed.Status)
}

func TestConfirmPaymentUnknownReference(t *testing.T) {
	f := newFixture(t, newStubJobsRepo(), newStubCleanersRepo())

	_, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_missing"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmPaymentValidation(t *testing.T) {
	f := newFixture(t, newStubJobsRepo(), newStubCleanersRepo())

	_, err := f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.reconciler.ConfirmPayment(context.Background(), ConfirmPaymentInput{PaymentRef: "pi_1", TipFils: -1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
