package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/database"
)

// TestDatabaseSetup wraps a connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and makes sure the tables the
// repositories read exist. Tests are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	setup := &TestDatabaseSetup{DB: db}
	t.Cleanup(setup.Close)

	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if err := setup.TruncateAllTables(ctx); err != nil {
		t.Fatalf("%v", err)
	}
	return setup
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS branches (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id uuid NOT NULL,
	name text NOT NULL
);
CREATE TABLE IF NOT EXISTS work_schedules (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id uuid NOT NULL,
	name text NOT NULL,
	plan_kind text NOT NULL,
	grace_period_minutes int NOT NULL DEFAULT 0,
	deleted_at timestamptz
);
CREATE TABLE IF NOT EXISTS work_schedule_times (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	work_schedule_id uuid NOT NULL REFERENCES work_schedules(id),
	day_of_week int NOT NULL,
	clock_in_time time NOT NULL,
	clock_out_time time NOT NULL,
	is_next_day_checkout boolean NOT NULL DEFAULT false
);
CREATE TABLE IF NOT EXISTS employees (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id uuid NOT NULL,
	full_name text NOT NULL,
	employee_code text,
	biometric_id text,
	branch_id uuid REFERENCES branches(id),
	work_schedule_id uuid REFERENCES work_schedules(id),
	deleted_at timestamptz
);
CREATE TABLE IF NOT EXISTS employee_schedule_assignments (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id uuid NOT NULL REFERENCES employees(id),
	work_schedule_id uuid NOT NULL REFERENCES work_schedules(id),
	start_date date NOT NULL,
	end_date date NOT NULL
);
CREATE TABLE IF NOT EXISTS work_schedule_exclusions (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id uuid NOT NULL REFERENCES employees(id),
	day_of_week int NOT NULL,
	mode text NOT NULL,
	ignore_until time,
	effective_from date,
	effective_to date
);
CREATE TABLE IF NOT EXISTS biometric_identity_mappings (
	company_id uuid NOT NULL,
	token text NOT NULL,
	employee_id uuid NOT NULL REFERENCES employees(id),
	created_at timestamptz NOT NULL DEFAULT NOW(),
	updated_at timestamptz NOT NULL DEFAULT NOW(),
	PRIMARY KEY (company_id, token)
);
`

// TruncateAllTables removes every row the tests may have written.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"biometric_identity_mappings",
		"work_schedule_exclusions",
		"employee_schedule_assignments",
		"employees",
		"work_schedule_times",
		"work_schedules",
		"branches",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
