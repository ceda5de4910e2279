package main

import (
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/jobs"
	"github.com/zulandar/switchboard/internal/models"
)

func TestJobsList_Empty(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCommand(t, "jobs", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("jobs list failed: %v", err)
	}
	if !strings.Contains(out, "No jobs found") {
		t.Errorf("output = %s", out)
	}
}

func TestJobsLifecycleViaCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	gormDB, err := openJobsDB(cfg)
	if err != nil {
		t.Fatalf("openJobsDB failed: %v", err)
	}
	rec, err := jobs.Create(gormDB, jobs.CreateOpts{UserID: "U1", UserName: "alice", Title: "summarize"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := runCommand(t, "jobs", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("jobs list failed: %v", err)
	}
	if !strings.Contains(out, rec.JobID) || !strings.Contains(out, "summarize") {
		t.Errorf("list output missing job: %s", out)
	}

	if _, err := runCommand(t, "jobs", "status", rec.JobID, models.JobStatusCompleted, "--config", cfg); err != nil {
		t.Fatalf("jobs status failed: %v", err)
	}
	got, err := jobs.Get(gormDB, rec.JobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if _, err := runCommand(t, "jobs", "delete", rec.JobID, "--config", cfg); err != nil {
		t.Fatalf("jobs delete failed: %v", err)
	}
	if _, err := jobs.Get(gormDB, rec.JobID); err == nil {
		t.Errorf("job still visible after delete")
	}

	if _, err := runCommand(t, "jobs", "restore", rec.JobID, "--config", cfg); err != nil {
		t.Fatalf("jobs restore failed: %v", err)
	}
	if _, err := jobs.Get(gormDB, rec.JobID); err != nil {
		t.Errorf("job not visible after restore: %v", err)
	}
}

func TestJobsStatus_RejectsInvalid(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCommand(t, "jobs", "status", "job_none", "bogus", "--config", cfg)
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}
