package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJobsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_jobs.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no jobs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS jobs",
		"FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE",
		"'refunded_unattended'",
		"idx_jobs_payment_ref ON jobs (payment_ref) WHERE payment_ref IS NOT NULL",
		"DROP TABLE IF EXISTS jobs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestFinancialRecordsMigrationEnforcesOneRecordPerJob(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_financial_records.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no financial_records migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}

	if !strings.Contains(string(data), "CREATE UNIQUE INDEX IF NOT EXISTS idx_financial_records_job") {
		t.Errorf("missing unique index on financial_records.job_id")
	}
}
