package scheduler

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/amakaflow/wmec/internal/database"
	"github.com/amakaflow/wmec/internal/models"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchedulerStartStop(t *testing.T) {
	db := testDB(t)
	s := New(db)
	s.Start()
	// Stop should return without blocking.
	s.Stop()
}

func TestMaintenanceCleanup(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()

	// Create an expired pairing token and a still-valid one.
	if _, err := models.InsertPairingToken(db, "p1", "expiredtoken", "AAAAAA", now.Add(-time.Hour), now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("insert expired token: %v", err)
	}
	if _, err := models.InsertPairingToken(db, "p1", "validtoken", "BBBBBB", now.Add(5*time.Minute), now); err != nil {
		t.Fatalf("insert valid token: %v", err)
	}

	// Create a bulk job that has been running for two days and a fresh one.
	stale, err := models.CreateBulkJob(db, "p1", "file")
	if err != nil {
		t.Fatalf("create stale job: %v", err)
	}
	if err := models.StartBulkJob(db, stale.ID, "garmin", 3); err != nil {
		t.Fatalf("start stale job: %v", err)
	}
	if _, err := db.Exec(`UPDATE bulk_import_jobs SET updated_at = ? WHERE id = ?`, now.Add(-48*time.Hour), stale.ID); err != nil {
		t.Fatalf("backdate stale job: %v", err)
	}

	fresh, err := models.CreateBulkJob(db, "p1", "file")
	if err != nil {
		t.Fatalf("create fresh job: %v", err)
	}
	if err := models.StartBulkJob(db, fresh.ID, "garmin", 3); err != nil {
		t.Fatalf("start fresh job: %v", err)
	}

	// Run maintenance directly.
	s := &Scheduler{db: db}
	s.runMaintenance()

	// Expired token should be gone, valid token should remain.
	if _, err := models.GetPairingToken(db, "expiredtoken"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expired token lookup: err = %v, want ErrNotFound", err)
	}
	if _, err := models.GetPairingToken(db, "validtoken"); err != nil {
		t.Errorf("valid token lookup: %v", err)
	}

	// The stale job is swept to failed, the fresh one keeps running.
	staleJob, err := models.GetBulkJob(db, stale.ID, "p1")
	if err != nil {
		t.Fatalf("get stale job: %v", err)
	}
	if staleJob.Status != models.JobFailed || !staleJob.Error.Valid || staleJob.Error.String != "abandoned" {
		t.Errorf("stale job = %q/%v, want failed/abandoned", staleJob.Status, staleJob.Error)
	}

	freshJob, err := models.GetBulkJob(db, fresh.ID, "p1")
	if err != nil {
		t.Fatalf("get fresh job: %v", err)
	}
	if freshJob.Status != models.JobRunning {
		t.Errorf("fresh job status = %q, want running", freshJob.Status)
	}

	// Status reflects the pass.
	st := s.Status()
	if st.TokensDeleted != 1 {
		t.Errorf("tokens deleted = %d, want 1", st.TokensDeleted)
	}
	if st.JobsAbandoned != 1 {
		t.Errorf("jobs abandoned = %d, want 1", st.JobsAbandoned)
	}
	if st.LastRun.IsZero() || !st.NextRun.After(st.LastRun) {
		t.Errorf("run times = %v/%v", st.LastRun, st.NextRun)
	}
}
